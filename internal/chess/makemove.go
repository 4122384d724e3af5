package chess

// MakeMove validates and applies a move, returning the successor state and
// the accepted move record. The receiver is never mutated.
//
// Promotion selects the piece a pawn becomes on reaching the last rank;
// nil means Queen. It is ignored for non-promoting moves.
func (s *State) MakeMove(from, to Square, promotion *PieceType) (*State, Move, error) {
	if s.Status.Terminal() {
		return nil, Move{}, ErrGameOver
	}
	if !from.InBounds() || !to.InBounds() {
		return nil, Move{}, ErrOffBoard
	}
	p := s.PieceAt(from)
	if p == nil {
		return nil, Move{}, ErrNoPiece
	}
	if p.Color != s.CurrentPlayer {
		return nil, Move{}, ErrWrongColor
	}
	// A legal position never exposes a king to capture; reject outright in
	// case one slips through.
	if target := s.PieceAt(to); target != nil && target.Type == King {
		return nil, Move{}, ErrIllegalMove
	}
	if !containsSquare(s.ValidMoves(from), to) {
		return nil, Move{}, ErrIllegalMove
	}

	next := s.Clone()
	mover := *next.Board[from.Row][from.Col]
	move := Move{From: from, To: to, Piece: mover}

	captured := next.Board[to.Row][to.Col]
	if mover.Type == Pawn && next.EnPassant != nil && *next.EnPassant == to &&
		from.Col != to.Col && captured == nil {
		captured = next.Board[from.Row][to.Col]
		next.Board[from.Row][to.Col] = nil
		move.EnPassant = true
	}
	if captured != nil {
		cp := *captured
		move.Captured = &cp
		if mover.Color == White {
			next.Captured.White = append(next.Captured.White, cp)
		} else {
			next.Captured.Black = append(next.Captured.Black, cp)
		}
	}

	next.Board[to.Row][to.Col] = next.Board[from.Row][from.Col]
	next.Board[from.Row][from.Col] = nil

	// Castling moves the rook across the king.
	if mover.Type == King && from.Col == 4 && (to.Col == 6 || to.Col == 2) {
		move.Castling = true
		home := homeRow(mover.Color)
		if to.Col == 6 {
			next.Board[home][5] = next.Board[home][7]
			next.Board[home][7] = nil
		} else {
			next.Board[home][3] = next.Board[home][0]
			next.Board[home][0] = nil
		}
	}

	if mover.Type == Pawn && to.Row == promotionRow(mover.Color) {
		promo := Queen
		if promotion != nil && isPromotionTarget(*promotion) {
			promo = *promotion
		}
		next.Board[to.Row][to.Col].Type = promo
		move.Promotion = &promo
	}

	next.updateCastlingRights(mover, from, to, captured)

	next.EnPassant = nil
	if mover.Type == Pawn && abs(to.Row-from.Row) == 2 {
		next.EnPassant = &Square{Row: (from.Row + to.Row) / 2, Col: from.Col}
	}

	if captured != nil || mover.Type == Pawn {
		next.HalfMoveClock = 0
	} else {
		next.HalfMoveClock++
	}
	if mover.Color == Black {
		next.FullMoveNumber++
	}

	next.MoveHistory = append(next.MoveHistory, move)
	next.CurrentPlayer = mover.Color.Other()
	next.Winner = nil

	inCheck := next.InCheck(next.CurrentPlayer)
	hasMoves := next.hasAnyLegalMove()
	switch {
	case inCheck && !hasMoves:
		next.Status = StatusCheckmate
		winner := mover.Color
		next.Winner = &winner
	case inCheck:
		next.Status = StatusCheck
	case !hasMoves:
		next.Status = StatusStalemate
	default:
		next.Status = StatusActive
	}

	return next, move, nil
}

// updateCastlingRights voids rights disturbed by the move: any king move,
// any rook move off its home square, and any capture on a home rook square.
func (s *State) updateCastlingRights(mover Piece, from, to Square, captured *Piece) {
	void := func(c Color, col int) {
		rights := &s.Castling.White
		if c == Black {
			rights = &s.Castling.Black
		}
		if col == 7 {
			rights.KingSide = false
		} else {
			rights.QueenSide = false
		}
	}

	if mover.Type == King {
		void(mover.Color, 7)
		void(mover.Color, 0)
	}
	if mover.Type == Rook && from.Row == homeRow(mover.Color) && (from.Col == 0 || from.Col == 7) {
		void(mover.Color, from.Col)
	}
	if captured != nil && captured.Type == Rook &&
		to.Row == homeRow(captured.Color) && (to.Col == 0 || to.Col == 7) {
		void(captured.Color, to.Col)
	}
}

func isPromotionTarget(pt PieceType) bool {
	return pt == Queen || pt == Rook || pt == Bishop || pt == Knight
}

func containsSquare(squares []Square, sq Square) bool {
	for _, s := range squares {
		if s == sq {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
