// game/game.go
package game

import (
	"errors"
	"sync"
	"time"

	"github.com/wfunc/chessrelay/network"
	"github.com/wfunc/chessrelay/rules"
	"github.com/wfunc/chessrelay/session"
)

// Role is the side a connection has claimed. White moves first.
type Role bool

const (
	White Role = true
	Black Role = false
)

var (
	ErrGameFull = errors.New("game already has two players")
	// ErrNoSeat means both roles are claimed by fewer than two endpoints,
	// which the full check should make impossible. Fatal to the request
	// only.
	ErrNoSeat = errors.New("no free role to assign")
)

// Game is one relay game: the board, the claimed seats and the attached
// endpoints. Every read-then-write sequence and every broadcast produced by
// a single mutation runs under one mutex, so broadcasts for one move are
// observed in production order and two moves can never interleave.
type Game struct {
	Key       string
	CreatedAt time.Time

	board       rules.Board
	seats       map[*session.Session]Role
	moves       int
	broadcaster Broadcaster
	mutex       sync.Mutex
}

func newGame(key string, board rules.Board, broadcaster Broadcaster) *Game {
	return &Game{
		Key:         key,
		CreatedAt:   time.Now(),
		board:       board,
		seats:       make(map[*session.Session]Role),
		broadcaster: broadcaster,
	}
}

// Attach claims a seat for s: the unclaimed role, white first. Seat and
// endpoint membership always change together.
func (g *Game) Attach(s *session.Session) (Role, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if len(g.seats) >= 2 {
		return Black, ErrGameFull
	}

	whiteTaken, blackTaken := false, false
	for _, role := range g.seats {
		if role == White {
			whiteTaken = true
		} else {
			blackTaken = true
		}
	}

	var role Role
	switch {
	case !whiteTaken:
		role = White
	case !blackTaken:
		role = Black
	default:
		return Black, ErrNoSeat
	}

	g.seats[s] = role
	s.GameKey = g.Key
	return role, nil
}

// Detach releases s's seat and tells the remaining endpoint. Safe to call
// for a session that was never attached or was already detached.
func (g *Game) Detach(s *session.Session) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, attached := g.seats[s]; !attached {
		return
	}
	delete(g.seats, s)
	s.GameKey = ""

	g.broadcastLocked(nil, &network.Disconnected{
		Type:     network.TypeDisconnected,
		Board:    g.board.FEN(),
		Finished: g.board.Outcome().Finished(),
		LastMove: g.board.LastMove(),
	})
}

// NotifyJoined tells everyone but the joiner that a player arrived.
func (g *Game) NotifyJoined(joiner *session.Session) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.broadcastLocked(joiner, &network.PlayerJoined{
		Type:     network.TypePlayerJoined,
		Board:    g.board.FEN(),
		Full:     len(g.seats) == 2,
		LastMove: g.board.LastMove(),
	})
}

func (g *Game) Empty() bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return len(g.seats) == 0
}

func (g *Game) PlayerCount() int {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return len(g.seats)
}

func (g *Game) Moves() int {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.moves
}

// IsTurn reports whether role is the side to move.
func (g *Game) IsTurn(role Role) bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.board.WhiteToMove() == bool(role)
}

func (g *Game) BoardFEN() string {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.board.FEN()
}

// Destinations answers a select/hover: the piece on square and where it may
// legally go.
func (g *Game) Destinations(square int) (string, []rules.Destination) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.board.PieceAt(square), g.board.DestinationsFrom(square)
}

// RequiresPromotion reports whether the move needs a piece choice before it
// can be applied.
func (g *Game) RequiresPromotion(from, to int) bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.board.IsPromotion(from, to)
}

// Snapshot is the state a joining client needs to render the game.
type Snapshot struct {
	Board          string
	Turn           bool
	Check          bool
	Finished       bool
	FinishedReason string
	Winner         interface{}
	LastMove       *rules.LastMove
	Full           bool
}

func (g *Game) Snapshot() Snapshot {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	outcome := g.board.Outcome()
	return Snapshot{
		Board:          g.board.FEN(),
		Turn:           g.board.WhiteToMove(),
		Check:          g.board.InCheck(),
		Finished:       outcome.Finished(),
		FinishedReason: outcome.Reason(),
		Winner:         winnerValue(outcome),
		LastMove:       g.board.LastMove(),
		Full:           len(g.seats) == 2,
	}
}

// winnerValue mirrors the wire contract: -1 while undecided, the winning
// color on checkmate, null on stalemate.
func winnerValue(outcome rules.Outcome) interface{} {
	switch outcome.Kind {
	case rules.Checkmate:
		return outcome.WhiteWon
	case rules.Stalemate:
		return nil
	}
	return -1
}

// MoveResult summarizes an applied move for callers (archiving, logging).
type MoveResult struct {
	Piece   string
	Check   bool
	Outcome rules.Outcome
}

// Play validates and applies a move, emitting every resulting broadcast in
// order under the game lock: the auxiliary rook relocation of a castle
// before the king move, the principal move, the en passant clear, then any
// terminal verdict.
func (g *Game) Play(from, to int, promotion string) (*MoveResult, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if !g.board.IsLegal(from, to, promotion) {
		return nil, rules.ErrIllegalMove
	}

	castling := g.board.IsCastling(from, to)
	enPassant := g.board.IsEnPassant(from, to)

	piece := g.board.PieceAt(from)
	if promotion != "" {
		piece = promotion
	}

	if castling {
		rookFrom, rookTo, rookPiece := rules.CastlingRook(to)
		contribute := false
		g.broadcastLocked(nil, &network.Play{
			Type:           network.TypePlay,
			StartSquare:    rookFrom,
			EndSquare:      rookTo,
			Piece:          rookPiece,
			ContributeTurn: &contribute,
		})
	}

	if err := g.board.Apply(from, to, promotion); err != nil {
		return nil, err
	}
	g.moves++

	check := g.board.InCheck()
	g.broadcastLocked(nil, &network.Play{
		Type:        network.TypePlay,
		StartSquare: from,
		EndSquare:   to,
		Piece:       piece,
		Check:       &check,
	})

	if enPassant {
		g.broadcastLocked(nil, &network.Clear{
			Type:  network.TypeClear,
			Piece: rules.EnPassantVictim(from, to),
		})
	}

	outcome := g.board.Outcome()
	switch outcome.Kind {
	case rules.Checkmate:
		g.broadcastLocked(nil, &network.Win{
			Type:   network.TypeWin,
			Winner: outcome.WhiteWon,
		})
	case rules.Stalemate:
		g.broadcastLocked(nil, &network.Draw{
			Type:   network.TypeDraw,
			Reason: "stalemate",
		})
	}

	return &MoveResult{Piece: piece, Check: check, Outcome: outcome}, nil
}

func (g *Game) broadcastLocked(except *session.Session, payload interface{}) {
	targets := make([]*session.Session, 0, len(g.seats))
	for s := range g.seats {
		if s == except {
			continue
		}
		targets = append(targets, s)
	}
	if len(targets) == 0 {
		return
	}
	_ = g.broadcaster.Broadcast(targets, payload)
}
