// Package settle turns checkmates into escrow payouts. It receives winner
// handoffs from the lobby, calls settleGame on the contract with the
// server's settler key, and records the resulting transaction.
package settle

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/hailam/chesswager/internal/lobby"
)

// EscrowCaller is the slice of the escrow binding the settler needs.
// *ethchain.Escrow implements it.
type EscrowCaller interface {
	SettleGame(ctx context.Context, gameID string, winner common.Address) (*types.Receipt, error)
	ChainID() int64
}

// Archiver persists settled games for postmortems. *store.Store implements
// it; nil disables archiving.
type Archiver interface {
	ArchiveGame(g *lobby.Game) error
}

const (
	defaultMaxAttempts = 3
	defaultBackoff     = 5 * time.Second
	queueCapacity      = 64
)

type task struct {
	gameID  string
	winner  string
	chainID int64
}

// Settler processes settlement handoffs on a background goroutine. It
// implements lobby.SettlementDispatcher.
type Settler struct {
	escrow   EscrowCaller
	lobby    *lobby.Lobby
	archiver Archiver
	log      *zap.Logger

	queue       chan task
	maxAttempts int
	backoff     time.Duration
}

// New creates a settler. archiver may be nil.
func New(escrow EscrowCaller, lb *lobby.Lobby, archiver Archiver, log *zap.Logger) *Settler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Settler{
		escrow:      escrow,
		lobby:       lb,
		archiver:    archiver,
		log:         log.Named("settler"),
		queue:       make(chan task, queueCapacity),
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
	}
}

// Dispatch enqueues a settlement without blocking the caller. The queue is
// in-memory only; the chain remains the source of truth if the process
// dies with work pending.
func (s *Settler) Dispatch(gameID, winnerAddress string, chainID int64) {
	t := task{gameID: gameID, winner: winnerAddress, chainID: chainID}
	select {
	case s.queue <- t:
	default:
		s.log.Error("settlement queue full, dropping",
			zap.String("gameId", gameID),
			zap.String("winner", winnerAddress))
	}
}

// Run processes the queue until ctx is cancelled.
func (s *Settler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-s.queue:
			s.process(ctx, t)
		}
	}
}

// process settles one game with bounded retry. Failures after the last
// attempt are logged and abandoned; the winner can still use the
// contract's withdrawal path.
func (s *Settler) process(ctx context.Context, t task) {
	if t.chainID != s.escrow.ChainID() {
		s.log.Error("settlement for unbound chain",
			zap.String("gameId", t.gameID),
			zap.Int64("chainId", t.chainID),
			zap.Int64("escrowChainId", s.escrow.ChainID()))
		return
	}

	winner := common.HexToAddress(t.winner)
	delay := s.backoff
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		receipt, err := s.escrow.SettleGame(ctx, t.gameID, winner)
		if err == nil {
			s.finish(t, receipt)
			return
		}
		s.log.Warn("settlement attempt failed",
			zap.String("gameId", t.gameID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt == s.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
	}
	s.log.Error("settlement abandoned after retries",
		zap.String("gameId", t.gameID),
		zap.String("winner", t.winner))
}

func (s *Settler) finish(t task, receipt *types.Receipt) {
	txHash := receipt.TxHash.Hex()
	s.log.Info("game settled on chain",
		zap.String("gameId", t.gameID),
		zap.String("winner", t.winner),
		zap.String("txHash", txHash))

	if err := s.lobby.RecordSettlementTx(t.gameID, txHash); err != nil {
		s.log.Warn("recording settlement tx failed",
			zap.String("gameId", t.gameID), zap.Error(err))
	}
	if s.archiver == nil {
		return
	}
	g, err := s.lobby.GetGame(t.gameID)
	if err != nil {
		return
	}
	if err := s.archiver.ArchiveGame(g); err != nil {
		s.log.Warn("archiving settled game failed",
			zap.String("gameId", t.gameID), zap.Error(err))
	}
}
