// Package poller drives the lobby from on-chain facts: it periodically
// scans the escrow contract's logs and reconciles creations and joins into
// game records.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/hailam/chesswager/internal/ethchain"
	"github.com/hailam/chesswager/internal/lobby"
)

// DefaultInterval is the tick period.
const DefaultInterval = 2 * time.Second

// ChainSource is the slice of the escrow binding the poller needs.
// *ethchain.Escrow implements it.
type ChainSource interface {
	CurrentBlock(ctx context.Context) (uint64, error)
	FilterEvents(ctx context.Context, fromBlock, toBlock uint64) (*ethchain.EscrowEvents, error)
	GetGame(ctx context.Context, gameID string) (*ethchain.ContractGame, error)
	Address() common.Address
	ChainID() int64
}

// CheckpointStore persists poller progress across restarts. *store.Store
// implements it; a nil store starts from the chain head every boot.
type CheckpointStore interface {
	Checkpoint(chainID int64) (uint64, bool, error)
	SaveCheckpoint(chainID int64, block uint64) error
}

// Status is a snapshot of poller health for the health endpoint.
type Status struct {
	Running            bool   `json:"running"`
	ChainID            int64  `json:"chainId"`
	LastProcessedBlock uint64 `json:"lastProcessedBlock"`
	LastError          string `json:"lastError,omitempty"`
}

// Poller scans one escrow contract on one chain.
type Poller struct {
	source      ChainSource
	lobby       *lobby.Lobby
	checkpoints CheckpointStore
	interval    time.Duration
	log         *zap.Logger

	mu            sync.Mutex
	running       bool
	lastProcessed uint64
	lastError     string
}

// New creates a poller. checkpoints may be nil.
func New(source ChainSource, lb *lobby.Lobby, checkpoints CheckpointStore, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		source:      source,
		lobby:       lb,
		checkpoints: checkpoints,
		interval:    DefaultInterval,
		log:         log.Named("poller"),
	}
}

// SetInterval overrides the tick period; useful in tests.
func (p *Poller) SetInterval(d time.Duration) {
	p.interval = d
}

// Run polls until ctx is cancelled. Ticks run on a single goroutine, so a
// slow tick delays the next one rather than overlapping it.
func (p *Poller) Run(ctx context.Context) error {
	start, err := p.startingBlock(ctx)
	if err != nil {
		return fmt.Errorf("poller init: %w", err)
	}

	p.mu.Lock()
	p.running = true
	p.lastProcessed = start
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	p.log.Info("poller started",
		zap.Int64("chainId", p.source.ChainID()),
		zap.String("contract", p.source.Address().Hex()),
		zap.Uint64("fromBlock", start))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.Tick(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.log.Warn("poll tick failed, will retry range", zap.Error(err))
			}
		}
	}
}

// startingBlock resumes from the saved checkpoint when one exists,
// otherwise from the current head (no historical backfill).
func (p *Poller) startingBlock(ctx context.Context) (uint64, error) {
	if p.checkpoints != nil {
		block, found, err := p.checkpoints.Checkpoint(p.source.ChainID())
		if err != nil {
			p.log.Warn("checkpoint read failed", zap.Error(err))
		} else if found {
			return block, nil
		}
	}
	return p.source.CurrentBlock(ctx)
}

// Tick processes one polling window. The checkpoint advances only after
// the whole range succeeds, so a failed range is retried; lobby upserts are
// idempotent, which makes the retry safe.
func (p *Poller) Tick(ctx context.Context) error {
	p.mu.Lock()
	last := p.lastProcessed
	p.mu.Unlock()

	current, err := p.source.CurrentBlock(ctx)
	if err != nil {
		p.noteError(err)
		return err
	}
	if current <= last {
		return nil
	}

	events, err := p.source.FilterEvents(ctx, last+1, current)
	if err != nil {
		p.noteError(err)
		return err
	}

	// Creations first: a join in the same batch must find its game.
	for _, evt := range events.Created {
		p.applyCreated(ctx, evt)
	}
	for _, evt := range events.Joined {
		p.lobby.ApplyJoin(lobby.JoinEvent{
			GameID: evt.GameID,
			Joiner: evt.Joiner.Hex(),
			Wager:  evt.Wager,
			Block:  evt.Block,
		})
	}

	p.mu.Lock()
	p.lastProcessed = current
	p.lastError = ""
	p.mu.Unlock()

	if p.checkpoints != nil {
		if err := p.checkpoints.SaveCheckpoint(p.source.ChainID(), current); err != nil {
			p.log.Warn("checkpoint save failed", zap.Error(err))
		}
	}
	return nil
}

// applyCreated reads the optional named opponent back from the contract;
// the event does not carry it. A failed read falls back to treating the
// game as open.
func (p *Poller) applyCreated(ctx context.Context, evt ethchain.GameCreatedEvent) {
	opponent := ""
	game, err := p.source.GetGame(ctx, evt.GameID)
	if err != nil {
		p.log.Warn("getGame read failed, treating game as open",
			zap.String("gameId", evt.GameID), zap.Error(err))
	} else if game.Opponent != (common.Address{}) {
		opponent = game.Opponent.Hex()
	}

	p.lobby.UpsertFromCreation(lobby.CreationEvent{
		GameID:          evt.GameID,
		Creator:         evt.Creator.Hex(),
		Opponent:        opponent,
		Wager:           evt.Wager,
		ChainID:         p.source.ChainID(),
		ContractAddress: p.source.Address().Hex(),
		TxHash:          evt.TxHash.Hex(),
		Block:           evt.Block,
	})
}

func (p *Poller) noteError(err error) {
	p.mu.Lock()
	p.lastError = err.Error()
	p.mu.Unlock()
}

// Status reports poller health.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		Running:            p.running,
		ChainID:            p.source.ChainID(),
		LastProcessedBlock: p.lastProcessed,
		LastError:          p.lastError,
	}
}
