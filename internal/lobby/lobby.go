package lobby

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hailam/chesswager/internal/chess"
)

// Errors surfaced to the transport layer, which maps them to status codes.
var (
	ErrNotFound       = errors.New("game not found")
	ErrNotParticipant = errors.New("caller is not a participant in this game")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrNotStarted     = errors.New("game has not started")
	ErrGameSettled    = errors.New("game is already settled")
)

// CreationEvent carries a GameCreated observation plus the opponent read
// back from the contract (empty for open games).
type CreationEvent struct {
	GameID          string
	Creator         string
	Opponent        string
	Wager           *big.Int
	ChainID         int64
	ContractAddress string
	TxHash          string
	Block           uint64
}

// JoinEvent carries a GameJoined observation.
type JoinEvent struct {
	GameID string
	Joiner string
	Wager  *big.Int
	Block  uint64
}

// SettlementDispatcher receives the winner of a checkmated game. Dispatch is
// called outside the lobby lock and must not block on chain I/O in the
// caller's goroutine.
type SettlementDispatcher interface {
	Dispatch(gameID, winnerAddress string, chainID int64)
}

// MoveResult is returned by MakeMove: the accepted move and a snapshot of
// the game after it.
type MoveResult struct {
	Move chess.Move `json:"move"`
	Game *Game      `json:"gameState"`
}

// Stats counts games per lifecycle state.
type Stats struct {
	Total   int `json:"total"`
	Waiting int `json:"waiting"`
	Started int `json:"started"`
	Settled int `json:"settled"`
}

// Lobby is the in-memory store of games. A single mutex serializes every
// read and mutation; all operations under it are brief.
type Lobby struct {
	mu         sync.Mutex
	games      map[string]*Game
	dispatcher SettlementDispatcher
	log        *zap.Logger
	now        func() time.Time
}

// New creates an empty lobby. dispatcher may be nil, in which case
// checkmates settle the record without a chain call (used in tests).
func New(dispatcher SettlementDispatcher, log *zap.Logger) *Lobby {
	if log == nil {
		log = zap.NewNop()
	}
	return &Lobby{
		games:      make(map[string]*Game),
		dispatcher: dispatcher,
		log:        log.Named("lobby"),
		now:        time.Now,
	}
}

// SetDispatcher wires the settlement dispatcher after construction. The
// settler itself needs the lobby, so boot wires the two in this order.
func (l *Lobby) SetDispatcher(d SettlementDispatcher) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dispatcher = d
}

// UpsertFromCreation inserts a game observed on chain. Re-delivery of the
// same gameId is a no-op, which makes poller retries safe.
func (l *Lobby) UpsertFromCreation(evt CreationEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.games[evt.GameID]; ok {
		return
	}

	g := &Game{
		ID:          evt.GameID,
		Owner:       lower(evt.Creator),
		Opponent:    lower(evt.Opponent),
		Wager:       NewWei(evt.Wager),
		NetworkType: NetworkEVM,
		ChainID:     evt.ChainID,
		State:       StateWaiting,
		CreatedAt:   l.now(),
		Escrow: &EscrowInfo{
			ContractAddress: lower(evt.ContractAddress),
			CreationTxHash:  lower(evt.TxHash),
			CreationBlock:   evt.Block,
		},
	}
	l.games[g.ID] = g
	l.log.Info("game created",
		zap.String("gameId", g.ID),
		zap.String("owner", g.Owner),
		zap.String("opponent", g.Opponent),
		zap.String("wager", g.Wager.String()),
		zap.Int64("chainId", g.ChainID))
}

// ApplyJoin starts a waiting game: sets the opponent, stamps startedAt, and
// seeds the chess state. Applying a join to an already started game is a
// no-op.
func (l *Lobby) ApplyJoin(evt JoinEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.games[evt.GameID]
	if !ok {
		l.log.Warn("join for unknown game", zap.String("gameId", evt.GameID))
		return
	}
	if g.State != StateCreated && g.State != StateWaiting {
		return
	}

	now := l.now()
	g.Opponent = lower(evt.Joiner)
	g.State = StateStarted
	g.StartedAt = &now
	g.Chess = chess.NewState()
	l.log.Info("game started",
		zap.String("gameId", g.ID),
		zap.String("joiner", g.Opponent))
}

// GetGame returns a snapshot of one game.
func (l *Lobby) GetGame(id string) (*Game, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return g.Clone(), nil
}

// List returns snapshots of every game matching the filter, oldest first.
func (l *Lobby) list(match func(*Game) bool) []*Game {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []*Game
	for _, g := range l.games {
		if match(g) {
			out = append(out, g.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ListAll returns every game, optionally filtered by state, owner, and
// opponent (empty values match anything).
func (l *Lobby) ListAll(state GameState, owner, opponent string) []*Game {
	return l.list(func(g *Game) bool {
		if state != "" && g.State != state {
			return false
		}
		if owner != "" && !sameAddress(g.Owner, owner) {
			return false
		}
		if opponent != "" && !sameAddress(g.Opponent, opponent) {
			return false
		}
		return true
	})
}

// ListByOwner returns games created by addr.
func (l *Lobby) ListByOwner(addr string) []*Game {
	return l.list(func(g *Game) bool { return sameAddress(g.Owner, addr) })
}

// ListByOpponent returns games where addr is the named opponent.
func (l *Lobby) ListByOpponent(addr string) []*Game {
	return l.list(func(g *Game) bool { return sameAddress(g.Opponent, addr) })
}

// ListOpen returns joinable games with no named opponent, excluding those
// owned by excludeAddr when given.
func (l *Lobby) ListOpen(excludeAddr string) []*Game {
	return l.list(func(g *Game) bool {
		return g.IsOpen() && !(excludeAddr != "" && sameAddress(g.Owner, excludeAddr))
	})
}

// ListInvitations returns waiting games naming addr as the opponent.
func (l *Lobby) ListInvitations(addr string) []*Game {
	return l.list(func(g *Game) bool {
		return g.State == StateWaiting && g.Opponent != "" && sameAddress(g.Opponent, addr)
	})
}

// ListActive returns started games addr participates in.
func (l *Lobby) ListActive(addr string) []*Game {
	return l.list(func(g *Game) bool {
		return g.State == StateStarted && g.HasParticipant(addr)
	})
}

// ListSettled returns settled games addr participated in.
func (l *Lobby) ListSettled(addr string) []*Game {
	return l.list(func(g *Game) bool {
		return g.State == StateSettled && g.HasParticipant(addr)
	})
}

// Stats returns game counts per state.
func (l *Lobby) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	var s Stats
	for _, g := range l.games {
		s.Total++
		switch g.State {
		case StateCreated, StateWaiting:
			s.Waiting++
		case StateStarted:
			s.Started++
		case StateSettled:
			s.Settled++
		}
	}
	return s
}

// ValidMoves returns the legal destinations for the caller's piece. The
// caller must be a participant of a started game and it must be their turn.
func (l *Lobby) ValidMoves(id string, from chess.Square, caller string) ([]chess.Square, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := authorizeMove(g, caller); err != nil {
		return nil, err
	}
	return g.Chess.ValidMoves(from), nil
}

// MakeMove applies a move on behalf of caller. A checkmate settles the game
// and hands the winner to the dispatcher after the lock is released; a
// stalemate settles without a winner and without settlement.
func (l *Lobby) MakeMove(id string, from, to chess.Square, promotion *chess.PieceType, caller string) (*MoveResult, error) {
	l.mu.Lock()

	g, ok := l.games[id]
	if !ok {
		l.mu.Unlock()
		return nil, ErrNotFound
	}
	if err := authorizeMove(g, caller); err != nil {
		l.mu.Unlock()
		return nil, err
	}

	next, move, err := g.Chess.MakeMove(from, to, promotion)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	g.Chess = next

	var winnerAddr string
	if next.Status.Terminal() {
		now := l.now()
		g.State = StateSettled
		g.SettledAt = &now
		if next.Status == chess.StatusCheckmate && next.Winner != nil {
			w := *next.Winner
			g.Winner = &w
			if w == chess.White {
				winnerAddr = g.Owner
			} else {
				winnerAddr = g.Opponent
			}
		}
		l.log.Info("game finished",
			zap.String("gameId", g.ID),
			zap.String("status", string(next.Status)),
			zap.String("winner", winnerAddr))
	}

	result := &MoveResult{Move: move, Game: g.Clone()}
	chainID := g.ChainID
	dispatcher := l.dispatcher
	l.mu.Unlock()

	// Settlement runs off the caller's path; the dispatcher owns retries.
	if winnerAddr != "" && dispatcher != nil {
		dispatcher.Dispatch(id, winnerAddr, chainID)
	}
	return result, nil
}

// RecordSettlementTx stores the settlement transaction hash once the chain
// call succeeds.
func (l *Lobby) RecordSettlementTx(id, txHash string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.games[id]
	if !ok {
		return ErrNotFound
	}
	if g.Escrow == nil {
		g.Escrow = &EscrowInfo{}
	}
	g.Escrow.SettlementTxHash = lower(txHash)
	return nil
}

// authorizeMove checks game state, participation, and turn order. Caller
// holds the lobby lock.
func authorizeMove(g *Game, caller string) error {
	switch g.State {
	case StateStarted:
	case StateSettled:
		return ErrGameSettled
	default:
		return ErrNotStarted
	}
	color, ok := g.colorOf(caller)
	if !ok {
		return ErrNotParticipant
	}
	if g.Chess == nil {
		return fmt.Errorf("started game %s has no chess state", g.ID)
	}
	if g.Chess.CurrentPlayer != color {
		return ErrNotYourTurn
	}
	return nil
}

func lower(s string) string {
	return strings.ToLower(s)
}
