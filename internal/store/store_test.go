package store

import (
	"math/big"
	"testing"
	"time"

	"github.com/hailam/chesswager/internal/chess"
	"github.com/hailam/chesswager/internal/lobby"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCheckpoint(t *testing.T) {
	s := openTestStore(t)

	t.Run("missing checkpoint", func(t *testing.T) {
		_, found, err := s.Checkpoint(11155111)
		if err != nil {
			t.Fatalf("Checkpoint failed: %v", err)
		}
		if found {
			t.Error("Expected no checkpoint before first save")
		}
	})

	t.Run("round trip", func(t *testing.T) {
		if err := s.SaveCheckpoint(11155111, 123456); err != nil {
			t.Fatalf("SaveCheckpoint failed: %v", err)
		}
		block, found, err := s.Checkpoint(11155111)
		if err != nil {
			t.Fatalf("Checkpoint failed: %v", err)
		}
		if !found || block != 123456 {
			t.Errorf("Expected block 123456, got %d (found=%v)", block, found)
		}
	})

	t.Run("chains are independent", func(t *testing.T) {
		if err := s.SaveCheckpoint(84532, 99); err != nil {
			t.Fatalf("SaveCheckpoint failed: %v", err)
		}
		block, _, err := s.Checkpoint(11155111)
		if err != nil {
			t.Fatalf("Checkpoint failed: %v", err)
		}
		if block != 123456 {
			t.Errorf("Checkpoint for chain 11155111 clobbered: got %d", block)
		}
	})
}

func TestGameArchive(t *testing.T) {
	s := openTestStore(t)

	winner := chess.White
	now := time.Now().UTC()
	game := &lobby.Game{
		ID:          "g1",
		Owner:       "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Opponent:    "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		Wager:       lobby.NewWei(big.NewInt(1e16)),
		NetworkType: lobby.NetworkEVM,
		ChainID:     11155111,
		State:       lobby.StateSettled,
		CreatedAt:   now,
		SettledAt:   &now,
		Winner:      &winner,
	}

	if err := s.ArchiveGame(game); err != nil {
		t.Fatalf("ArchiveGame failed: %v", err)
	}

	t.Run("load one", func(t *testing.T) {
		got, err := s.ArchivedGame("g1")
		if err != nil {
			t.Fatalf("ArchivedGame failed: %v", err)
		}
		if got == nil {
			t.Fatal("Expected archived game")
		}
		if got.ID != "g1" || got.State != lobby.StateSettled {
			t.Errorf("Unexpected game: %+v", got)
		}
		if got.Wager.String() != "10000000000000000" {
			t.Errorf("Wager did not round-trip: %s", got.Wager.String())
		}
		if got.Winner == nil || *got.Winner != chess.White {
			t.Error("Winner did not round-trip")
		}
	})

	t.Run("missing game is nil", func(t *testing.T) {
		got, err := s.ArchivedGame("missing")
		if err != nil {
			t.Fatalf("ArchivedGame failed: %v", err)
		}
		if got != nil {
			t.Error("Expected nil for unknown id")
		}
	})

	t.Run("list all", func(t *testing.T) {
		game2 := *game
		game2.ID = "g2"
		if err := s.ArchiveGame(&game2); err != nil {
			t.Fatalf("ArchiveGame failed: %v", err)
		}
		all, err := s.ArchivedGames()
		if err != nil {
			t.Fatalf("ArchivedGames failed: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("Expected 2 archived games, got %d", len(all))
		}
	})
}
