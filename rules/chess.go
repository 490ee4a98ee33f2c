package rules

import (
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// chessBoard adapts corentings/chess to the Board interface.
type chessBoard struct {
	game *nchess.Game
	// check mirrors whether the last applied move gave check, taken from
	// the SAN encoding of that move.
	check bool
	last  *LastMove
}

// NewBoard returns a board in the standard starting position.
func NewBoard() Board {
	return &chessBoard{game: nchess.NewGame()}
}

// NewBoardFEN returns a board set up from a full FEN record.
func NewBoardFEN(fen string) (Board, error) {
	option, err := nchess.FEN(fen)
	if err != nil {
		return nil, err
	}
	return &chessBoard{game: nchess.NewGame(option)}, nil
}

func (b *chessBoard) FEN() string {
	return strings.Fields(b.game.FEN())[0]
}

func (b *chessBoard) WhiteToMove() bool {
	return b.game.Position().Turn() == nchess.White
}

func (b *chessBoard) PieceAt(square int) string {
	piece := b.game.Position().Board().Piece(nchess.Square(square))
	if piece == nchess.NoPiece {
		return ""
	}
	return fenSymbol(piece)
}

func (b *chessBoard) DestinationsFrom(square int) []Destination {
	seen := make(map[int]bool)
	var dests []Destination
	for _, m := range b.game.ValidMoves() {
		if int(m.S1()) != square {
			continue
		}
		to := int(m.S2())
		if seen[to] {
			// promotions enumerate one move per piece choice
			continue
		}
		seen[to] = true
		dests = append(dests, Destination{Square: to, Piece: b.PieceAt(to)})
	}
	return dests
}

func (b *chessBoard) IsLegal(from, to int, promotion string) bool {
	uci := uciString(from, to, promotion)
	for _, m := range b.game.ValidMoves() {
		if m.String() == uci {
			return true
		}
	}
	return false
}

func (b *chessBoard) IsCastling(from, to int) bool {
	piece := b.PieceAt(from)
	if piece != "K" && piece != "k" {
		return false
	}
	fileDiff := to%8 - from%8
	return fileDiff == 2 || fileDiff == -2
}

func (b *chessBoard) IsEnPassant(from, to int) bool {
	piece := b.PieceAt(from)
	if piece != "P" && piece != "p" {
		return false
	}
	// a pawn capture onto an empty square only happens en passant
	return from%8 != to%8 && b.PieceAt(to) == ""
}

func (b *chessBoard) IsPromotion(from, to int) bool {
	piece := b.PieceAt(from)
	if piece != "P" && piece != "p" {
		return false
	}
	rank := to / 8
	return rank == 0 || rank == 7
}

func (b *chessBoard) Apply(from, to int, promotion string) error {
	if !b.IsLegal(from, to, promotion) {
		return ErrIllegalMove
	}

	pos := b.game.Position()
	move, err := nchess.UCINotation{}.Decode(pos, uciString(from, to, promotion))
	if err != nil {
		return ErrIllegalMove
	}
	if err := b.game.Move(move, nil); err != nil {
		return ErrIllegalMove
	}

	// SAN carries the check/mate marker for the move just played.
	san := nchess.AlgebraicNotation{}.Encode(pos, move)
	b.check = strings.HasSuffix(san, "+") || strings.HasSuffix(san, "#")
	b.last = &LastMove{From: from, To: to, Piece: b.PieceAt(to)}
	return nil
}

func (b *chessBoard) InCheck() bool {
	return b.check
}

func (b *chessBoard) Outcome() Outcome {
	switch b.game.Method() {
	case nchess.Checkmate:
		return Outcome{Kind: Checkmate, WhiteWon: b.game.Outcome() == nchess.WhiteWon}
	case nchess.Stalemate:
		return Outcome{Kind: Stalemate}
	}
	return Outcome{}
}

func (b *chessBoard) LastMove() *LastMove {
	return b.last
}

func uciString(from, to int, promotion string) string {
	return SquareName(from) + SquareName(to) + strings.ToLower(promotion)
}

var pieceLetters = map[nchess.PieceType]string{
	nchess.King:   "k",
	nchess.Queen:  "q",
	nchess.Rook:   "r",
	nchess.Bishop: "b",
	nchess.Knight: "n",
	nchess.Pawn:   "p",
}

func fenSymbol(piece nchess.Piece) string {
	letter := pieceLetters[piece.Type()]
	if piece.Color() == nchess.White {
		return strings.ToUpper(letter)
	}
	return letter
}
