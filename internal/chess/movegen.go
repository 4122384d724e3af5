package chess

var knightOffsets = [8][2]int{
	{-2, -1}, {-2, 1}, {-1, -2}, {-1, 2},
	{1, -2}, {1, 2}, {2, -1}, {2, 1},
}

var kingOffsets = [8][2]int{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

var rookDirections = [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}

var bishopDirections = [4][2]int{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}

// ValidMoves returns the legal destinations for the piece on from. It is
// empty when from is empty, the piece belongs to the side not to move, or
// every candidate would leave the mover's own king attacked.
func (s *State) ValidMoves(from Square) []Square {
	p := s.PieceAt(from)
	if p == nil || p.Color != s.CurrentPlayer {
		return nil
	}

	candidates := s.rawMoves(from)
	if p.Type == King {
		candidates = append(candidates, s.castlingMoves(from)...)
	}

	var legal []Square
	for _, to := range candidates {
		if !s.simulate(from, to).InCheck(p.Color) {
			legal = append(legal, to)
		}
	}
	return legal
}

// rawMoves generates the geometric moves for the piece on from, before any
// king-safety filtering. Castling is handled separately.
func (s *State) rawMoves(from Square) []Square {
	p := s.PieceAt(from)
	if p == nil {
		return nil
	}

	switch p.Type {
	case Pawn:
		return s.pawnMoves(from, p.Color)
	case Knight:
		return s.stepMoves(from, p.Color, knightOffsets[:])
	case King:
		return s.stepMoves(from, p.Color, kingOffsets[:])
	case Rook:
		return s.slideMoves(from, p.Color, rookDirections[:])
	case Bishop:
		return s.slideMoves(from, p.Color, bishopDirections[:])
	case Queen:
		moves := s.slideMoves(from, p.Color, rookDirections[:])
		return append(moves, s.slideMoves(from, p.Color, bishopDirections[:])...)
	}
	return nil
}

func (s *State) pawnMoves(from Square, c Color) []Square {
	var moves []Square
	dir := pawnDirection(c)

	one := Square{Row: from.Row + dir, Col: from.Col}
	if one.InBounds() && s.PieceAt(one) == nil {
		moves = append(moves, one)
		two := Square{Row: from.Row + 2*dir, Col: from.Col}
		if from.Row == pawnStartRow(c) && two.InBounds() && s.PieceAt(two) == nil {
			moves = append(moves, two)
		}
	}

	for _, dc := range [2]int{-1, 1} {
		to := Square{Row: from.Row + dir, Col: from.Col + dc}
		if !to.InBounds() {
			continue
		}
		if target := s.PieceAt(to); target != nil && target.Color != c {
			moves = append(moves, to)
		} else if target == nil && s.EnPassant != nil && *s.EnPassant == to {
			moves = append(moves, to)
		}
	}
	return moves
}

func (s *State) stepMoves(from Square, c Color, offsets [][2]int) []Square {
	var moves []Square
	for _, off := range offsets {
		to := Square{Row: from.Row + off[0], Col: from.Col + off[1]}
		if !to.InBounds() {
			continue
		}
		if target := s.PieceAt(to); target == nil || target.Color != c {
			moves = append(moves, to)
		}
	}
	return moves
}

func (s *State) slideMoves(from Square, c Color, directions [][2]int) []Square {
	var moves []Square
	for _, dir := range directions {
		for step := 1; step < 8; step++ {
			to := Square{Row: from.Row + dir[0]*step, Col: from.Col + dir[1]*step}
			if !to.InBounds() {
				break
			}
			target := s.PieceAt(to)
			if target == nil {
				moves = append(moves, to)
				continue
			}
			if target.Color != c {
				moves = append(moves, to)
			}
			break
		}
	}
	return moves
}

// castlingMoves returns the castling destinations available to the king on
// from. The king must not be in check, the rights must hold, the squares
// between king and rook must be empty, the home rook must be in place, and
// the square the king passes over must not be attacked. The destination
// square is covered by the caller's king-safety filter.
func (s *State) castlingMoves(from Square) []Square {
	p := s.PieceAt(from)
	if p == nil || p.Type != King {
		return nil
	}
	home := homeRow(p.Color)
	if from.Row != home || from.Col != 4 {
		return nil
	}
	if s.attacked(from, p.Color.Other()) {
		return nil
	}

	rights := s.Castling.White
	if p.Color == Black {
		rights = s.Castling.Black
	}

	var moves []Square
	enemy := p.Color.Other()

	if rights.KingSide && s.homeRookPresent(p.Color, 7) &&
		s.Board[home][5] == nil && s.Board[home][6] == nil &&
		!s.attacked(Square{Row: home, Col: 5}, enemy) {
		moves = append(moves, Square{Row: home, Col: 6})
	}
	if rights.QueenSide && s.homeRookPresent(p.Color, 0) &&
		s.Board[home][1] == nil && s.Board[home][2] == nil && s.Board[home][3] == nil &&
		!s.attacked(Square{Row: home, Col: 3}, enemy) {
		moves = append(moves, Square{Row: home, Col: 2})
	}
	return moves
}

func (s *State) homeRookPresent(c Color, col int) bool {
	p := s.Board[homeRow(c)][col]
	return p != nil && p.Type == Rook && p.Color == c
}

// attacked reports whether any piece of color by attacks sq, using raw
// attack patterns with slider blocking.
func (s *State) attacked(sq Square, by Color) bool {
	// Pawns attack diagonally forward.
	dir := pawnDirection(by)
	for _, dc := range [2]int{-1, 1} {
		origin := Square{Row: sq.Row - dir, Col: sq.Col + dc}
		if p := s.PieceAt(origin); p != nil && p.Type == Pawn && p.Color == by {
			return true
		}
	}

	for _, off := range knightOffsets {
		origin := Square{Row: sq.Row + off[0], Col: sq.Col + off[1]}
		if p := s.PieceAt(origin); p != nil && p.Type == Knight && p.Color == by {
			return true
		}
	}

	for _, off := range kingOffsets {
		origin := Square{Row: sq.Row + off[0], Col: sq.Col + off[1]}
		if p := s.PieceAt(origin); p != nil && p.Type == King && p.Color == by {
			return true
		}
	}

	if s.slidingAttack(sq, by, rookDirections[:], Rook) {
		return true
	}
	return s.slidingAttack(sq, by, bishopDirections[:], Bishop)
}

func (s *State) slidingAttack(sq Square, by Color, directions [][2]int, slider PieceType) bool {
	for _, dir := range directions {
		for step := 1; step < 8; step++ {
			origin := Square{Row: sq.Row + dir[0]*step, Col: sq.Col + dir[1]*step}
			if !origin.InBounds() {
				break
			}
			p := s.PieceAt(origin)
			if p == nil {
				continue
			}
			if p.Color == by && (p.Type == slider || p.Type == Queen) {
				return true
			}
			break
		}
	}
	return false
}

// simulate applies a candidate move to a scratch copy for king-safety
// testing. Rook transit on castling and promotion do not affect whether the
// mover's king ends up attacked, so only the moving piece and any captured
// pawn are handled.
func (s *State) simulate(from, to Square) *State {
	c := s.Clone()
	p := c.Board[from.Row][from.Col]
	if p != nil && p.Type == Pawn && c.EnPassant != nil && *c.EnPassant == to &&
		from.Col != to.Col && c.Board[to.Row][to.Col] == nil {
		c.Board[from.Row][to.Col] = nil
	}
	c.Board[to.Row][to.Col] = p
	c.Board[from.Row][from.Col] = nil
	return c
}

// hasAnyLegalMove reports whether the side to move has at least one legal
// move.
func (s *State) hasAnyLegalMove() bool {
	for r := 0; r < 8; r++ {
		for col := 0; col < 8; col++ {
			p := s.Board[r][col]
			if p == nil || p.Color != s.CurrentPlayer {
				continue
			}
			if len(s.ValidMoves(Square{Row: r, Col: col})) > 0 {
				return true
			}
		}
	}
	return false
}
