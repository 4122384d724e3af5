// Package chess implements the rule engine that adjudicates wagered games.
// It is pure: every operation takes a State and returns a new one, so callers
// can hold snapshots without worrying about aliasing.
//
// Coordinates are row/column with row 0 as Black's back rank and row 7 as
// White's back rank; White advances toward row 0.
package chess

import "errors"

// Color identifies a side.
type Color string

const (
	White Color = "W"
	Black Color = "B"
)

// Other returns the opposing color.
func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// String returns a human-readable color name.
func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// PieceType identifies a kind of piece using its FEN-style letter.
type PieceType string

const (
	King   PieceType = "K"
	Queen  PieceType = "Q"
	Rook   PieceType = "R"
	Bishop PieceType = "B"
	Knight PieceType = "N"
	Pawn   PieceType = "P"
)

// Piece is one piece on the board.
type Piece struct {
	Type  PieceType `json:"type"`
	Color Color     `json:"color"`
}

// Square addresses a board cell. Row and Col are in [0,7].
type Square struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// InBounds reports whether the square lies on the board.
func (sq Square) InBounds() bool {
	return sq.Row >= 0 && sq.Row < 8 && sq.Col >= 0 && sq.Col < 8
}

// Status is the game status after the most recent move.
type Status string

const (
	StatusActive    Status = "active"
	StatusCheck     Status = "check"
	StatusCheckmate Status = "checkmate"
	StatusStalemate Status = "stalemate"
	StatusDraw      Status = "draw"
)

// Terminal reports whether the status ends the game.
func (s Status) Terminal() bool {
	return s == StatusCheckmate || s == StatusStalemate || s == StatusDraw
}

// SideRights tracks the two castling options for one color.
type SideRights struct {
	KingSide  bool `json:"kingSide"`
	QueenSide bool `json:"queenSide"`
}

// CastlingRights tracks castling availability for both colors.
type CastlingRights struct {
	White SideRights `json:"white"`
	Black SideRights `json:"black"`
}

// Move records one accepted move.
type Move struct {
	From      Square     `json:"from"`
	To        Square     `json:"to"`
	Piece     Piece      `json:"piece"`
	Captured  *Piece     `json:"captured,omitempty"`
	Promotion *PieceType `json:"promotion,omitempty"`
	Castling  bool       `json:"castling,omitempty"`
	EnPassant bool       `json:"enPassant,omitempty"`
}

// Errors returned by MakeMove.
var (
	ErrNoPiece     = errors.New("no piece on source square")
	ErrWrongColor  = errors.New("piece does not belong to the player to move")
	ErrIllegalMove = errors.New("illegal move")
	ErrGameOver    = errors.New("game is over")
	ErrOffBoard    = errors.New("square is off the board")
)
