package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hailam/chesswager/internal/auth"
	"github.com/hailam/chesswager/internal/chess"
	"github.com/hailam/chesswager/internal/lobby"
)

func (s *Server) handleHealth(c *gin.Context) {
	data := gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
	if s.chain != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		data["chains"] = s.chain.ValidateConnectivity(ctx)
	}
	if s.poller != nil {
		data["poller"] = s.poller.Status()
	}
	respondOK(c, data)
}

func (s *Server) handleListGames(c *gin.Context) {
	state := lobby.GameState(strings.ToUpper(c.Query("state")))
	switch state {
	case "", lobby.StateCreated, lobby.StateWaiting, lobby.StateStarted, lobby.StateSettled:
	default:
		respondError(c, http.StatusBadRequest, "unknown state filter")
		return
	}
	owner, ok := optionalAddress(c, "owner")
	if !ok {
		return
	}
	opponent, ok := optionalAddress(c, "opponent")
	if !ok {
		return
	}
	respondOK(c, s.lobby.ListAll(state, owner, opponent))
}

func (s *Server) handleListOpen(c *gin.Context) {
	exclude, ok := optionalAddress(c, "excludeUser")
	if !ok {
		return
	}
	respondOK(c, s.lobby.ListOpen(exclude))
}

func (s *Server) handleListActive(c *gin.Context) {
	user, ok := requiredAddress(c, "user")
	if !ok {
		return
	}
	respondOK(c, s.lobby.ListActive(user))
}

func (s *Server) handleListInvitations(c *gin.Context) {
	user, ok := requiredAddress(c, "user")
	if !ok {
		return
	}
	respondOK(c, s.lobby.ListInvitations(user))
}

func (s *Server) handleListSettled(c *gin.Context) {
	user, ok := requiredAddress(c, "userAddress")
	if !ok {
		return
	}
	respondOK(c, s.lobby.ListSettled(user))
}

func (s *Server) handleStats(c *gin.Context) {
	respondOK(c, s.lobby.Stats())
}

func (s *Server) handleGetGame(c *gin.Context) {
	g, err := s.lobby.GetGame(c.Param("id"))
	if err != nil {
		s.respondLobbyError(c, err)
		return
	}
	respondOK(c, g)
}

func (s *Server) handleChessState(c *gin.Context) {
	g, err := s.lobby.GetGame(c.Param("id"))
	if err != nil {
		s.respondLobbyError(c, err)
		return
	}
	if g.Chess == nil {
		respondError(c, http.StatusNotFound, "game has not started")
		return
	}
	respondOK(c, g.Chess)
}

func (s *Server) handleValidMoves(c *gin.Context) {
	caller, ok := auth.Caller(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "unauthenticated")
		return
	}
	from, ok := pathSquare(c)
	if !ok {
		return
	}
	moves, err := s.lobby.ValidMoves(c.Param("id"), from, caller)
	if err != nil {
		s.respondLobbyError(c, err)
		return
	}
	if moves == nil {
		moves = []chess.Square{}
	}
	respondOK(c, moves)
}

// moveRequest is the POST body for move submission.
type moveRequest struct {
	From struct {
		Row int `json:"row"`
		Col int `json:"col"`
	} `json:"from"`
	To struct {
		Row int `json:"row"`
		Col int `json:"col"`
	} `json:"to"`
	PromotionPiece string `json:"promotionPiece"`
}

func (s *Server) handleMakeMove(c *gin.Context) {
	caller, ok := auth.Caller(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	from := chess.Square{Row: req.From.Row, Col: req.From.Col}
	to := chess.Square{Row: req.To.Row, Col: req.To.Col}
	if !from.InBounds() || !to.InBounds() {
		respondError(c, http.StatusBadRequest, "coordinates must be in [0,7]")
		return
	}
	promotion, ok := parsePromotion(req.PromotionPiece)
	if !ok {
		respondError(c, http.StatusBadRequest, "invalid promotion piece")
		return
	}

	result, err := s.lobby.MakeMove(c.Param("id"), from, to, promotion, caller)
	if err != nil {
		s.respondLobbyError(c, err)
		return
	}
	respondOK(c, result)
}

// respondLobbyError maps lobby and engine errors to status codes.
func (s *Server) respondLobbyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, lobby.ErrNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, lobby.ErrNotParticipant), errors.Is(err, lobby.ErrNotYourTurn):
		respondError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, lobby.ErrNotStarted),
		errors.Is(err, lobby.ErrGameSettled),
		errors.Is(err, chess.ErrIllegalMove),
		errors.Is(err, chess.ErrNoPiece),
		errors.Is(err, chess.ErrWrongColor),
		errors.Is(err, chess.ErrOffBoard),
		errors.Is(err, chess.ErrGameOver):
		respondError(c, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "internal error")
	}
}

// pathSquare parses the :row/:col path segments as a board square.
func pathSquare(c *gin.Context) (chess.Square, bool) {
	row, err1 := strconv.Atoi(c.Param("row"))
	col, err2 := strconv.Atoi(c.Param("col"))
	sq := chess.Square{Row: row, Col: col}
	if err1 != nil || err2 != nil || !sq.InBounds() {
		respondError(c, http.StatusBadRequest, "coordinates must be in [0,7]")
		return chess.Square{}, false
	}
	return sq, true
}

// parsePromotion maps the optional promotionPiece body field to a piece
// type. Accepts single letters and full names; empty means engine default.
func parsePromotion(s string) (*chess.PieceType, bool) {
	if s == "" {
		return nil, true
	}
	var p chess.PieceType
	switch strings.ToUpper(s) {
	case "Q", "QUEEN":
		p = chess.Queen
	case "R", "ROOK":
		p = chess.Rook
	case "B", "BISHOP":
		p = chess.Bishop
	case "N", "KNIGHT":
		p = chess.Knight
	default:
		return nil, false
	}
	return &p, true
}

func optionalAddress(c *gin.Context, key string) (string, bool) {
	v := c.Query(key)
	if v == "" {
		return "", true
	}
	if !common.IsHexAddress(v) {
		respondError(c, http.StatusBadRequest, key+" must be a hex address")
		return "", false
	}
	return v, true
}

func requiredAddress(c *gin.Context, key string) (string, bool) {
	v := c.Query(key)
	if v == "" {
		respondError(c, http.StatusBadRequest, key+" query parameter is required")
		return "", false
	}
	if !common.IsHexAddress(v) {
		respondError(c, http.StatusBadRequest, key+" must be a hex address")
		return "", false
	}
	return v, true
}
