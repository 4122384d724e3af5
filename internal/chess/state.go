package chess

// CapturedPieces holds the pieces each side has taken, in capture order.
type CapturedPieces struct {
	White []Piece `json:"white"`
	Black []Piece `json:"black"`
}

// State is a complete chess position plus the bookkeeping the rules need.
// Board cells hold nil for empty squares.
type State struct {
	Board          [8][8]*Piece   `json:"board"`
	CurrentPlayer  Color          `json:"currentPlayer"`
	MoveHistory    []Move         `json:"moveHistory"`
	Captured       CapturedPieces `json:"capturedPieces"`
	Status         Status         `json:"gameStatus"`
	Winner         *Color         `json:"winner,omitempty"`
	Castling       CastlingRights `json:"castlingRights"`
	EnPassant      *Square        `json:"enPassantTarget,omitempty"`
	HalfMoveClock  int            `json:"halfMoveClock"`
	FullMoveNumber int            `json:"fullMoveNumber"`
}

var backRank = [8]PieceType{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

// NewState returns the standard starting position, White to move.
func NewState() *State {
	s := &State{
		CurrentPlayer: White,
		Status:        StatusActive,
		Castling: CastlingRights{
			White: SideRights{KingSide: true, QueenSide: true},
			Black: SideRights{KingSide: true, QueenSide: true},
		},
		FullMoveNumber: 1,
	}
	for col := 0; col < 8; col++ {
		s.Board[0][col] = &Piece{Type: backRank[col], Color: Black}
		s.Board[1][col] = &Piece{Type: Pawn, Color: Black}
		s.Board[6][col] = &Piece{Type: Pawn, Color: White}
		s.Board[7][col] = &Piece{Type: backRank[col], Color: White}
	}
	return s
}

// Clone creates a deep copy of the state. Mutating the copy never affects
// the original.
func (s *State) Clone() *State {
	c := *s
	for r := 0; r < 8; r++ {
		for col := 0; col < 8; col++ {
			if s.Board[r][col] != nil {
				p := *s.Board[r][col]
				c.Board[r][col] = &p
			}
		}
	}
	c.MoveHistory = append([]Move(nil), s.MoveHistory...)
	c.Captured.White = append([]Piece(nil), s.Captured.White...)
	c.Captured.Black = append([]Piece(nil), s.Captured.Black...)
	if s.Winner != nil {
		w := *s.Winner
		c.Winner = &w
	}
	if s.EnPassant != nil {
		ep := *s.EnPassant
		c.EnPassant = &ep
	}
	return &c
}

// PieceAt returns the piece on sq, or nil if the square is empty or off the
// board.
func (s *State) PieceAt(sq Square) *Piece {
	if !sq.InBounds() {
		return nil
	}
	return s.Board[sq.Row][sq.Col]
}

// kingSquare locates the king of the given color. Returns false only for
// malformed positions with no king on the board.
func (s *State) kingSquare(c Color) (Square, bool) {
	for r := 0; r < 8; r++ {
		for col := 0; col < 8; col++ {
			p := s.Board[r][col]
			if p != nil && p.Type == King && p.Color == c {
				return Square{Row: r, Col: col}, true
			}
		}
	}
	return Square{}, false
}

// InCheck reports whether the given color's king is attacked.
func (s *State) InCheck(c Color) bool {
	ksq, ok := s.kingSquare(c)
	if !ok {
		return false
	}
	return s.attacked(ksq, c.Other())
}

// pawnDirection is the row delta a pawn of the given color advances by.
func pawnDirection(c Color) int {
	if c == White {
		return -1
	}
	return 1
}

// pawnStartRow is the rank pawns of the given color start on.
func pawnStartRow(c Color) int {
	if c == White {
		return 6
	}
	return 1
}

// promotionRow is the rank a pawn of the given color promotes on.
func promotionRow(c Color) int {
	if c == White {
		return 0
	}
	return 7
}

// homeRow is the back rank of the given color.
func homeRow(c Color) int {
	if c == White {
		return 7
	}
	return 0
}
