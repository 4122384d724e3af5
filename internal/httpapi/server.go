// Package httpapi exposes the lobby over HTTP. It validates request shapes,
// delegates to the lobby, and serializes results in a
// {success, data, error} envelope.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hailam/chesswager/internal/auth"
	"github.com/hailam/chesswager/internal/lobby"
	"github.com/hailam/chesswager/internal/poller"
)

// ConnectivityChecker reports RPC reachability per configured chain.
// *ethchain.Client implements it.
type ConnectivityChecker interface {
	ValidateConnectivity(ctx context.Context) map[int64]bool
}

// PollerStatus exposes the event poller's progress for the health endpoint.
// *poller.Poller implements it.
type PollerStatus interface {
	Status() poller.Status
}

// Server bundles the dependencies of the HTTP layer.
type Server struct {
	lobby    *lobby.Lobby
	verifier auth.TokenVerifier
	chain    ConnectivityChecker
	poller   PollerStatus
	log      *zap.Logger
}

// New creates a server. chain and poller may be nil; the health endpoint
// then omits those sections.
func New(lb *lobby.Lobby, verifier auth.TokenVerifier, chain ConnectivityChecker, pollerStatus PollerStatus, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		lobby:    lb,
		verifier: verifier,
		chain:    chain,
		poller:   pollerStatus,
		log:      log.Named("http"),
	}
}

// Router builds the gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLog())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Authorization", "Content-Type"},
		MaxAge:          12 * time.Hour,
	}))

	r.GET("/health", s.handleHealth)

	games := r.Group("/api/games")
	{
		games.GET("", s.handleListGames)
		games.GET("/open", s.handleListOpen)
		games.GET("/active", s.handleListActive)
		games.GET("/invitations", s.handleListInvitations)
		games.GET("/settled", s.handleListSettled)
		games.GET("/stats", s.handleStats)
		games.GET("/:id", s.handleGetGame)
		games.GET("/:id/chess", s.handleChessState)

		authed := games.Group("", auth.Middleware(s.verifier))
		authed.GET("/:id/chess/valid-moves/:row/:col", s.handleValidMoves)
		authed.POST("/:id/chess/move", s.handleMakeMove)
	}
	return r
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}
