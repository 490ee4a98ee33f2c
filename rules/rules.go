// Package rules wraps the chess rules engine behind the narrow surface the
// relay consults: legal destinations, move classification, application and
// terminal outcomes. The relay itself never inspects a position beyond this
// interface.
package rules

import (
	"encoding/json"
	"errors"
)

var ErrIllegalMove = errors.New("illegal move")

// Board is one game's position. Squares are 0-63 indices, a1=0 and h8=63.
// Pieces travel as FEN symbols ("P", "q", ...), empty squares as "".
type Board interface {
	// FEN returns the piece-placement field of the position, the form the
	// clients render from.
	FEN() string
	WhiteToMove() bool
	PieceAt(square int) string
	// DestinationsFrom lists the squares legally reachable from square,
	// with the piece currently occupying each.
	DestinationsFrom(square int) []Destination
	IsLegal(from, to int, promotion string) bool
	IsCastling(from, to int) bool
	IsEnPassant(from, to int) bool
	// IsPromotion reports whether a move from-to would require a promotion
	// choice before it can be applied.
	IsPromotion(from, to int) bool
	// Apply validates and plays the move, advancing the turn. promotion is
	// the chosen piece symbol for promoting pushes, "" otherwise.
	Apply(from, to int, promotion string) error
	// InCheck reports whether the last applied move left the side to move
	// in check.
	InCheck() bool
	Outcome() Outcome
	LastMove() *LastMove
}

// Factory produces a fresh starting position. Injected into the registry so
// tests can script boards.
type Factory func() Board

// Destination is one reachable square; encodes as [square, piece] to match
// the wire format.
type Destination struct {
	Square int
	Piece  string
}

func (d Destination) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{d.Square, d.Piece})
}

// LastMove is the most recent applied move; encodes as [from, to, piece].
type LastMove struct {
	From  int
	To    int
	Piece string
}

func (m LastMove) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]interface{}{m.From, m.To, m.Piece})
}

type OutcomeKind int

const (
	NoOutcome OutcomeKind = iota
	Checkmate
	Stalemate
)

// Outcome is a terminal verdict. Only checkmate and stalemate are
// recognized; other draw classes are deliberately not surfaced.
type Outcome struct {
	Kind     OutcomeKind
	WhiteWon bool
}

func (o Outcome) Finished() bool {
	return o.Kind != NoOutcome
}

func (o Outcome) Reason() string {
	switch o.Kind {
	case Checkmate:
		return "Checkmate"
	case Stalemate:
		return "Stalemate"
	}
	return ""
}

// CastlingRook gives the rook relocation implied by a castling king move,
// derived from the king's destination square.
func CastlingRook(kingTo int) (from, to int, piece string) {
	rank := kingTo / 8
	if kingTo%8 == 2 { // queenside: a-file rook to d-file
		from, to = rank*8, rank*8+3
	} else { // kingside: h-file rook to f-file
		from, to = rank*8+7, rank*8+5
	}
	piece = "r"
	if rank == 0 {
		piece = "R"
	}
	return from, to, piece
}

// EnPassantVictim gives the square of the pawn captured en passant: the
// capture file at the capturing pawn's starting rank.
func EnPassantVictim(from, to int) int {
	return (from/8)*8 + to%8
}

// SquareName converts a 0-63 index to algebraic notation ("e4").
func SquareName(square int) string {
	return string(rune('a'+square%8)) + string(rune('1'+square/8))
}
