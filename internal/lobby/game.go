// Package lobby holds the authoritative in-memory game records and the
// lifecycle state machine that ties escrow events, chess adjudication, and
// settlement together.
package lobby

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/hailam/chesswager/internal/chess"
)

// GameState is the lifecycle state of a game.
type GameState string

const (
	StateCreated GameState = "CREATED"
	StateWaiting GameState = "WAITING"
	StateStarted GameState = "STARTED"
	StateSettled GameState = "SETTLED"
)

// NetworkType identifies the chain family a game is escrowed on. SOL is
// reserved and unused.
type NetworkType string

const (
	NetworkEVM NetworkType = "EVM"
	NetworkSOL NetworkType = "SOL"
)

// EscrowInfo records the on-chain footprint of a game.
type EscrowInfo struct {
	ContractAddress  string `json:"contractAddress"`
	CreationTxHash   string `json:"creationTxHash"`
	CreationBlock    uint64 `json:"creationBlock"`
	SettlementTxHash string `json:"settlementTxHash,omitempty"`
}

// Wei is a wei amount that serializes as a decimal string, since wagers
// routinely exceed 2^53.
type Wei struct {
	big.Int
}

// NewWei wraps a big.Int amount; nil becomes zero.
func NewWei(v *big.Int) *Wei {
	w := &Wei{}
	if v != nil {
		w.Set(v)
	}
	return w
}

func (w *Wei) MarshalJSON() ([]byte, error) {
	return []byte(`"` + w.String() + `"`), nil
}

func (w *Wei) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if _, ok := w.SetString(s, 10); !ok {
		return fmt.Errorf("invalid wei amount %q", s)
	}
	return nil
}

// Game is the central entity. The lobby owns every instance; callers only
// ever see clones.
type Game struct {
	ID          string       `json:"id"`
	Owner       string       `json:"owner"`
	Opponent    string       `json:"opponent,omitempty"`
	Wager       *Wei         `json:"wager"`
	NetworkType NetworkType  `json:"networkType"`
	ChainID     int64        `json:"chainId"`
	State       GameState    `json:"state"`
	CreatedAt   time.Time    `json:"createdAt"`
	StartedAt   *time.Time   `json:"startedAt,omitempty"`
	SettledAt   *time.Time   `json:"settledAt,omitempty"`
	Chess       *chess.State `json:"chessState,omitempty"`
	Winner      *chess.Color `json:"winner,omitempty"`
	Escrow      *EscrowInfo  `json:"escrow,omitempty"`
}

// Clone returns a deep copy safe to hand outside the lobby.
func (g *Game) Clone() *Game {
	c := *g
	if g.Wager != nil {
		c.Wager = NewWei(&g.Wager.Int)
	}
	if g.StartedAt != nil {
		t := *g.StartedAt
		c.StartedAt = &t
	}
	if g.SettledAt != nil {
		t := *g.SettledAt
		c.SettledAt = &t
	}
	if g.Chess != nil {
		c.Chess = g.Chess.Clone()
	}
	if g.Winner != nil {
		w := *g.Winner
		c.Winner = &w
	}
	if g.Escrow != nil {
		e := *g.Escrow
		c.Escrow = &e
	}
	return &c
}

// IsOpen reports whether any second player may still join.
func (g *Game) IsOpen() bool {
	return g.State == StateWaiting && g.Opponent == ""
}

// HasParticipant reports whether addr is the owner or opponent. Address
// comparison is case-insensitive hex.
func (g *Game) HasParticipant(addr string) bool {
	return sameAddress(g.Owner, addr) || (g.Opponent != "" && sameAddress(g.Opponent, addr))
}

// colorOf maps a participant address to its side: the creator plays White.
func (g *Game) colorOf(addr string) (chess.Color, bool) {
	if sameAddress(g.Owner, addr) {
		return chess.White, true
	}
	if g.Opponent != "" && sameAddress(g.Opponent, addr) {
		return chess.Black, true
	}
	return "", false
}

func sameAddress(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}
