// Package store persists the small amount of state worth keeping across
// restarts: the poller's per-chain block checkpoint and an archive of
// settled games. The lobby itself stays in memory; the chain is the
// authoritative record of funds.
package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/hailam/chesswager/internal/lobby"
)

// Key prefixes
const (
	prefixCheckpoint = "checkpoint/"
	prefixSettled    = "settled/"
)

// Store wraps BadgerDB for persistent storage.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the store in dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // Disable logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func checkpointKey(chainID int64) []byte {
	return []byte(fmt.Sprintf("%s%d", prefixCheckpoint, chainID))
}

// Checkpoint returns the last processed block for chainID. The second
// return is false when no checkpoint has been saved yet.
func (s *Store) Checkpoint(chainID int64) (uint64, bool, error) {
	var block uint64
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(checkpointKey(chainID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("corrupt checkpoint for chain %d", chainID)
			}
			block = binary.BigEndian.Uint64(val)
			found = true
			return nil
		})
	})
	return block, found, err
}

// SaveCheckpoint records the last fully processed block for chainID.
func (s *Store) SaveCheckpoint(chainID int64, block uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], block)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(checkpointKey(chainID), buf[:])
	})
}

// ArchiveGame stores a snapshot of a settled game for postmortems.
func (s *Store) ArchiveGame(g *lobby.Game) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal game %s: %w", g.ID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixSettled+g.ID), data)
	})
}

// ArchivedGame loads one archived game, or nil if absent.
func (s *Store) ArchivedGame(id string) (*lobby.Game, error) {
	var g *lobby.Game
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixSettled + id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			g = &lobby.Game{}
			return json.Unmarshal(val, g)
		})
	})
	return g, err
}

// ArchivedGames returns every archived settled game.
func (s *Store) ArchivedGames() ([]*lobby.Game, error) {
	var out []*lobby.Game
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(prefixSettled)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				g := &lobby.Game{}
				if err := json.Unmarshal(val, g); err != nil {
					return err
				}
				out = append(out, g)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}
