package chess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// emptyState builds a position with no pieces for targeted setups.
func emptyState(current Color) *State {
	return &State{CurrentPlayer: current, Status: StatusActive, FullMoveNumber: 1}
}

func put(s *State, row, col int, pt PieceType, c Color) {
	s.Board[row][col] = &Piece{Type: pt, Color: c}
}

func sq(row, col int) Square {
	return Square{Row: row, Col: col}
}

// playMoves applies a sequence of moves, failing the test on any rejection.
func playMoves(t *testing.T, s *State, moves ...[2]Square) *State {
	t.Helper()
	for i, m := range moves {
		next, _, err := s.MakeMove(m[0], m[1], nil)
		require.NoErrorf(t, err, "move %d %v -> %v", i+1, m[0], m[1])
		s = next
	}
	return s
}

func TestValidMovesInitialPosition(t *testing.T) {
	s := NewState()

	t.Run("empty square", func(t *testing.T) {
		assert.Empty(t, s.ValidMoves(sq(4, 4)))
	})

	t.Run("opponent piece", func(t *testing.T) {
		assert.Empty(t, s.ValidMoves(sq(1, 4)), "black pawn while white to move")
	})

	t.Run("pawn single and double advance", func(t *testing.T) {
		moves := s.ValidMoves(sq(6, 4))
		assert.ElementsMatch(t, []Square{sq(5, 4), sq(4, 4)}, moves)
	})

	t.Run("knight jumps over pawns", func(t *testing.T) {
		moves := s.ValidMoves(sq(7, 1))
		assert.ElementsMatch(t, []Square{sq(5, 0), sq(5, 2)}, moves)
	})

	t.Run("blocked sliders", func(t *testing.T) {
		assert.Empty(t, s.ValidMoves(sq(7, 0)), "rook")
		assert.Empty(t, s.ValidMoves(sq(7, 2)), "bishop")
		assert.Empty(t, s.ValidMoves(sq(7, 3)), "queen")
		assert.Empty(t, s.ValidMoves(sq(7, 4)), "king")
	})
}

func TestPawnDoubleAdvanceOnlyFromStartRank(t *testing.T) {
	s := playMoves(t, NewState(),
		[2]Square{sq(6, 4), sq(5, 4)},
		[2]Square{sq(1, 0), sq(2, 0)},
	)
	moves := s.ValidMoves(sq(5, 4))
	assert.ElementsMatch(t, []Square{sq(4, 4)}, moves, "no double advance after leaving start rank")
}

func TestSliderStopsAtFirstOccupant(t *testing.T) {
	s := emptyState(White)
	put(s, 7, 4, King, White)
	put(s, 0, 4, King, Black)
	put(s, 4, 0, Rook, White)
	put(s, 4, 3, Pawn, White)  // own piece: stop before
	put(s, 2, 0, Pawn, Black)  // enemy piece: include and stop

	moves := s.ValidMoves(sq(4, 0))
	assert.Contains(t, moves, sq(4, 1))
	assert.Contains(t, moves, sq(4, 2))
	assert.NotContains(t, moves, sq(4, 3), "blocked by own pawn")
	assert.Contains(t, moves, sq(2, 0), "first enemy is capturable")
	assert.NotContains(t, moves, sq(1, 0), "no sliding past a capture")
}

func TestKingSafetyFilter(t *testing.T) {
	t.Run("pinned piece cannot move off the line", func(t *testing.T) {
		s := emptyState(White)
		put(s, 7, 4, King, White)
		put(s, 0, 4, King, Black)
		put(s, 5, 4, Rook, White)
		put(s, 2, 4, Rook, Black)

		moves := s.ValidMoves(sq(5, 4))
		for _, m := range moves {
			assert.Equal(t, 4, m.Col, "pinned rook must stay on the king's file, got %v", m)
		}
		assert.Contains(t, moves, sq(2, 4), "capturing the pinning rook is legal")
	})

	t.Run("king cannot step into attack", func(t *testing.T) {
		s := emptyState(White)
		put(s, 7, 4, King, White)
		put(s, 0, 0, King, Black)
		put(s, 0, 3, Rook, Black)

		moves := s.ValidMoves(sq(7, 4))
		assert.NotContains(t, moves, sq(7, 3))
		assert.NotContains(t, moves, sq(6, 3))
		assert.Contains(t, moves, sq(7, 5))
	})

	t.Run("checked side must resolve the check", func(t *testing.T) {
		s := emptyState(White)
		put(s, 7, 4, King, White)
		put(s, 0, 0, King, Black)
		put(s, 0, 4, Rook, Black)
		put(s, 6, 0, Rook, White)

		// Rook moves that do not block or capture stay illegal.
		moves := s.ValidMoves(sq(6, 0))
		assert.ElementsMatch(t, []Square{sq(6, 4)}, moves, "only the blocking square")
	})
}

func TestCastlingGeneration(t *testing.T) {
	base := func() *State {
		s := emptyState(White)
		put(s, 7, 4, King, White)
		put(s, 7, 7, Rook, White)
		put(s, 7, 0, Rook, White)
		put(s, 0, 4, King, Black)
		s.Castling = CastlingRights{
			White: SideRights{KingSide: true, QueenSide: true},
			Black: SideRights{KingSide: true, QueenSide: true},
		}
		return s
	}

	t.Run("both sides available", func(t *testing.T) {
		moves := base().ValidMoves(sq(7, 4))
		assert.Contains(t, moves, sq(7, 6))
		assert.Contains(t, moves, sq(7, 2))
	})

	t.Run("denied while in check", func(t *testing.T) {
		s := base()
		put(s, 0, 4, King, Black)
		put(s, 3, 4, Rook, Black)
		moves := s.ValidMoves(sq(7, 4))
		assert.NotContains(t, moves, sq(7, 6))
		assert.NotContains(t, moves, sq(7, 2))
	})

	t.Run("denied when transit square is attacked", func(t *testing.T) {
		s := base()
		put(s, 0, 5, Rook, Black)
		moves := s.ValidMoves(sq(7, 4))
		assert.NotContains(t, moves, sq(7, 6), "king may not pass through an attacked square")
		assert.Contains(t, moves, sq(7, 2), "queen side unaffected")
	})

	t.Run("denied when destination is attacked", func(t *testing.T) {
		s := base()
		put(s, 0, 6, Rook, Black)
		moves := s.ValidMoves(sq(7, 4))
		assert.NotContains(t, moves, sq(7, 6))
	})

	t.Run("denied when blocked", func(t *testing.T) {
		s := base()
		put(s, 7, 1, Knight, White)
		moves := s.ValidMoves(sq(7, 4))
		assert.NotContains(t, moves, sq(7, 2))
		assert.Contains(t, moves, sq(7, 6))
	})

	t.Run("denied without rights", func(t *testing.T) {
		s := base()
		s.Castling.White = SideRights{}
		moves := s.ValidMoves(sq(7, 4))
		assert.NotContains(t, moves, sq(7, 6))
		assert.NotContains(t, moves, sq(7, 2))
	})

	t.Run("denied when home rook is missing", func(t *testing.T) {
		s := base()
		s.Board[7][7] = nil
		moves := s.ValidMoves(sq(7, 4))
		assert.NotContains(t, moves, sq(7, 6))
	})
}

func TestValidMovesMatchMakeMove(t *testing.T) {
	// Round-trip property on the opening position: every generated move is
	// accepted and a sample of non-generated ones is rejected.
	s := NewState()
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			from := sq(r, c)
			valid := s.ValidMoves(from)
			for _, to := range valid {
				_, _, err := s.MakeMove(from, to, nil)
				assert.NoErrorf(t, err, "%v -> %v should be accepted", from, to)
			}
		}
	}

	rejected := [][2]Square{
		{sq(7, 0), sq(5, 0)}, // rook through own pawn
		{sq(6, 4), sq(3, 4)}, // pawn triple advance
		{sq(7, 1), sq(5, 1)}, // knight straight ahead
		{sq(7, 4), sq(6, 4)}, // king onto own pawn
	}
	for _, m := range rejected {
		_, _, err := s.MakeMove(m[0], m[1], nil)
		assert.ErrorIsf(t, err, ErrIllegalMove, "%v -> %v should be rejected", m[0], m[1])
	}
}
