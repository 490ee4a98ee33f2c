package server

import (
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/chessrelay/broadcast"
	"github.com/wfunc/chessrelay/game"
	"github.com/wfunc/chessrelay/monitor"
	"github.com/wfunc/chessrelay/network"
	"github.com/wfunc/chessrelay/rules"
	"github.com/wfunc/chessrelay/services"
	"github.com/wfunc/chessrelay/session"
	"github.com/wfunc/chessrelay/timer"
)

const startPlacement = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR"

// fakeConn feeds scripted frames to a handler and records everything sent
// back. Closing the in channel plays a client hangup.
type fakeConn struct {
	in     chan *network.ClientMessage
	out    chan interface{}
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan *network.ClientMessage, 16),
		out:    make(chan interface{}, 64),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Send(payload interface{}) error {
	select {
	case c.out <- payload:
	case <-c.closed:
	}
	return nil
}

func (c *fakeConn) ReadMessage() (*network.ClientMessage, error) {
	select {
	case msg, ok := <-c.in:
		if !ok {
			return nil, io.EOF
		}
		return msg, nil
	case <-c.closed:
		return nil, net.ErrClosed
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 54321}
}

func (c *fakeConn) hangUp() {
	close(c.in)
}

// newTestServer assembles a server without listeners; handlers are driven
// directly through fake connections.
func newTestServer(grace time.Duration, factory rules.Factory) *GameServer {
	return &GameServer{
		gracePeriod:    grace,
		registry:       game.NewRegistry(factory, broadcast.NewSessionBroadcaster()),
		sessionManager: session.NewManager(),
		archive:        services.NewArchiveService(nil),
		monitor:        monitor.NewMonitor("test"),
		timers:         timer.NewManager(),
	}
}

func dial(s *GameServer) *fakeConn {
	c := newFakeConn()
	go s.handleConnection(c)
	return c
}

func recv(t *testing.T, c *fakeConn) interface{} {
	t.Helper()
	select {
	case payload := <-c.out:
		return payload
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a server message")
		return nil
	}
}

func joinFrame(key string, reconnecting bool) *network.ClientMessage {
	return &network.ClientMessage{Type: network.TypeJoin, Join: &key, Reconnecting: reconnecting}
}

func playFrame(player bool, from, to int) *network.ClientMessage {
	return &network.ClientMessage{
		Type:        network.TypePlay,
		Player:      &player,
		StartSquare: &from,
		EndSquare:   &to,
	}
}

func TestCreateGameHandshake(t *testing.T) {
	s := newTestServer(time.Minute, rules.NewBoard)
	defer s.timers.Stop()

	c := dial(s)
	defer c.hangUp()
	c.in <- &network.ClientMessage{Type: network.TypeNew}

	msg, ok := recv(t, c).(*network.New)
	if !ok {
		t.Fatal("expected a new-game acknowledgement")
	}
	key, found := strings.CutPrefix(msg.URL, "./chess.html?join=")
	if !found {
		t.Fatalf("join url = %q, want a ./chess.html?join= link", msg.URL)
	}
	if len(key) != game.KeyLength {
		t.Errorf("key %q has length %d, want %d", key, len(key), game.KeyLength)
	}

	g, exists := s.registry.Lookup(key)
	if !exists {
		t.Fatal("created game not resolvable by its key")
	}
	// creating does not claim a seat; joining does
	if g.PlayerCount() != 0 {
		t.Errorf("creator took a seat, PlayerCount() = %d", g.PlayerCount())
	}
}

func TestInvalidFirstFrame(t *testing.T) {
	s := newTestServer(time.Minute, rules.NewBoard)
	defer s.timers.Stop()

	c := dial(s)
	defer c.hangUp()
	c.in <- &network.ClientMessage{Type: network.TypeHover}

	msg, ok := recv(t, c).(*network.Redirect)
	if !ok {
		t.Fatal("expected a redirect")
	}
	if msg.Type != network.TypeInvalidURL || msg.URL != network.HomeURL {
		t.Errorf("redirect = %+v, want invalid url to home", msg)
	}
}

func TestJoinUnknownKey(t *testing.T) {
	s := newTestServer(time.Minute, rules.NewBoard)
	defer s.timers.Stop()

	c := dial(s)
	c.in <- joinFrame("ZZZZ", false)
	msg, ok := recv(t, c).(*network.Redirect)
	if !ok {
		t.Fatal("expected a redirect")
	}
	if msg.Type != network.TypeBadRequest || msg.URL != network.BadRequestURL {
		t.Errorf("redirect = %+v, want bad request", msg)
	}
	c.hangUp()

	// a reconnect attempt gets a reconnecting failure instead
	r := dial(s)
	defer r.hangUp()
	r.in <- joinFrame("ZZZZ", true)
	rec, ok := recv(t, r).(*network.Reconnecting)
	if !ok {
		t.Fatal("expected a reconnecting response")
	}
	if rec.Success {
		t.Error("reconnect into an unknown game should fail")
	}
}

func TestJoinAndPlayScenario(t *testing.T) {
	s := newTestServer(time.Minute, rules.NewBoard)
	defer s.timers.Stop()

	g, err := s.registry.CreateGame()
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	key := g.Key

	a := dial(s)
	defer a.hangUp()
	a.in <- joinFrame(strings.ToLower(key), false) // keys are typed, any case
	initA, ok := recv(t, a).(*network.Init)
	if !ok {
		t.Fatal("expected an init for the first joiner")
	}
	if !initA.Player {
		t.Error("first joiner should play white")
	}
	if initA.Board != startPlacement || !initA.Turn || initA.Winner != -1 {
		t.Errorf("init = %+v, want fresh game state", initA)
	}
	if initA.Join != key {
		t.Errorf("init join = %q, want %q", initA.Join, key)
	}

	b := dial(s)
	defer b.hangUp()
	b.in <- joinFrame(key, false)
	initB, ok := recv(t, b).(*network.Init)
	if !ok {
		t.Fatal("expected an init for the second joiner")
	}
	if initB.Player {
		t.Error("second joiner should play black")
	}

	joined, ok := recv(t, a).(*network.PlayerJoined)
	if !ok {
		t.Fatal("first joiner should hear about the second")
	}
	if !joined.Full {
		t.Error("join notice should report the game full")
	}

	// black moving on white's turn is refused without touching the board
	b.in <- playFrame(false, 52, 36)
	if _, ok := recv(t, b).(*network.NotYourTurn); !ok {
		t.Fatal("expected a notYourTurn refusal")
	}
	if g.BoardFEN() != startPlacement {
		t.Error("refused move reached the board")
	}

	// hovers preview destinations for the side to move
	square := 12
	a.in <- &network.ClientMessage{Type: network.TypeHover, Square: &square}
	sel, ok := recv(t, a).(*network.Select)
	if !ok {
		t.Fatal("expected a hover reply")
	}
	if sel.Type != network.TypeHover || sel.Square != 12 || sel.Piece != "P" {
		t.Errorf("hover reply = %+v", sel)
	}
	if len(sel.AvailableMoves) != 2 {
		t.Errorf("e2 has %d destinations, want 2", len(sel.AvailableMoves))
	}

	// white plays e4; both endpoints see the same move
	a.in <- playFrame(true, 12, 28)
	for _, c := range []*fakeConn{a, b} {
		move, ok := recv(t, c).(*network.Play)
		if !ok {
			t.Fatal("expected the move broadcast")
		}
		if move.StartSquare != 12 || move.EndSquare != 28 || move.Piece != "P" {
			t.Errorf("move = %+v, want e2 to e4", move)
		}
		if move.Check == nil || *move.Check {
			t.Error("e4 should broadcast check=false")
		}
	}

	// opponent hovers are dropped without a reply; resize doubles as a
	// barrier proving nothing was queued
	b.in <- &network.ClientMessage{Type: network.TypeHover, Square: &square}
	b.in <- &network.ClientMessage{Type: network.TypeResize}
	resize, ok := recv(t, b).(*network.Resize)
	if !ok {
		t.Fatal("hover out of turn should be dropped silently")
	}
	if resize.Board != "rnbqkbnr/pppppppp/8/8/4P3/8/PPPPPPPP/RNBQKBNR" {
		t.Errorf("resize board = %q", resize.Board)
	}
}

func TestThirdJoinRedirectsFull(t *testing.T) {
	s := newTestServer(time.Minute, rules.NewBoard)
	defer s.timers.Stop()

	g, _ := s.registry.CreateGame()
	a := dial(s)
	defer a.hangUp()
	a.in <- joinFrame(g.Key, false)
	recv(t, a)
	b := dial(s)
	defer b.hangUp()
	b.in <- joinFrame(g.Key, false)
	recv(t, b)

	c := dial(s)
	defer c.hangUp()
	c.in <- joinFrame(g.Key, false)
	msg, ok := recv(t, c).(*network.Redirect)
	if !ok {
		t.Fatal("expected a redirect for the third joiner")
	}
	if msg.Type != network.TypeFull {
		t.Errorf("redirect type = %q, want full", msg.Type)
	}
	if g.PlayerCount() != 2 {
		t.Errorf("PlayerCount() = %d after refused join, want 2", g.PlayerCount())
	}

	// a vanished player's reconnect finds the seat taken
	r := dial(s)
	defer r.hangUp()
	r.in <- joinFrame(g.Key, true)
	rec, ok := recv(t, r).(*network.Reconnecting)
	if !ok {
		t.Fatal("expected a reconnecting response")
	}
	if rec.Success {
		t.Error("reconnect into a full game should fail")
	}
}

func TestLeaveNotifiesOpponent(t *testing.T) {
	s := newTestServer(time.Minute, rules.NewBoard)
	defer s.timers.Stop()

	g, _ := s.registry.CreateGame()
	a := dial(s)
	a.in <- joinFrame(g.Key, false)
	recv(t, a)
	b := dial(s)
	defer b.hangUp()
	b.in <- joinFrame(g.Key, false)
	recv(t, b)
	recv(t, a) // player joined

	a.hangUp()

	msg, ok := recv(t, b).(*network.Disconnected)
	if !ok {
		t.Fatal("expected an opponent disconnected notice")
	}
	if msg.Board != startPlacement || msg.Finished {
		t.Errorf("disconnect notice = %+v", msg)
	}
	if _, exists := s.registry.Lookup(g.Key); !exists {
		t.Error("game with a remaining player must not be deleted")
	}
}

func TestReconnectHandshake(t *testing.T) {
	s := newTestServer(time.Minute, rules.NewBoard)
	defer s.timers.Stop()

	g, _ := s.registry.CreateGame()
	a := dial(s)
	a.in <- joinFrame(g.Key, false)
	recv(t, a)
	a.in <- playFrame(true, 12, 28)
	recv(t, a)
	a.hangUp()

	waitFor(t, func() bool { return g.PlayerCount() == 0 }, "player never detached")

	r := dial(s)
	defer r.hangUp()
	r.in <- joinFrame(g.Key, true)
	rec, ok := recv(t, r).(*network.Reconnecting)
	if !ok {
		t.Fatal("expected a reconnecting response")
	}
	if !rec.Success || rec.Join != g.Key {
		t.Errorf("reconnect = %+v, want success into %s", rec, g.Key)
	}
	// the position survived the disconnect
	if got := g.BoardFEN(); got != "rnbqkbnr/pppppppp/8/8/4P3/8/PPPPPPPP/RNBQKBNR" {
		t.Errorf("board after reconnect = %q", got)
	}
}

func TestReaperDeletesAbandonedGame(t *testing.T) {
	s := newTestServer(50*time.Millisecond, rules.NewBoard)
	defer s.timers.Stop()

	g, _ := s.registry.CreateGame()
	a := dial(s)
	a.in <- joinFrame(g.Key, false)
	recv(t, a)
	a.hangUp()

	waitFor(t, func() bool {
		_, exists := s.registry.Lookup(g.Key)
		return !exists
	}, "abandoned game never reaped")
}

func TestReattachWithinGraceKeepsGame(t *testing.T) {
	s := newTestServer(150*time.Millisecond, rules.NewBoard)
	defer s.timers.Stop()

	g, _ := s.registry.CreateGame()
	a := dial(s)
	a.in <- joinFrame(g.Key, false)
	recv(t, a)
	a.in <- playFrame(true, 12, 28)
	recv(t, a)
	a.hangUp()

	b := dial(s)
	defer b.hangUp()
	b.in <- joinFrame(g.Key, false)
	initB, ok := recv(t, b).(*network.Init)
	if !ok {
		t.Fatal("expected an init inside the grace period")
	}
	if initB.Board != "rnbqkbnr/pppppppp/8/8/4P3/8/PPPPPPPP/RNBQKBNR" {
		t.Errorf("rejoin board = %q, want the position after e4", initB.Board)
	}
	if initB.LastMove == nil || initB.LastMove.From != 12 || initB.LastMove.To != 28 {
		t.Errorf("rejoin last move = %+v, want e2 to e4", initB.LastMove)
	}

	// let the reap fire; the occupied game must survive it
	time.Sleep(500 * time.Millisecond)
	if _, exists := s.registry.Lookup(g.Key); !exists {
		t.Error("reaper deleted a game somebody rejoined")
	}
}

func TestPromotionPrompt(t *testing.T) {
	factory := func() rules.Board {
		b, err := rules.NewBoardFEN("4k3/P7/8/8/8/8/8/4K3 w - - 0 1")
		if err != nil {
			panic(err)
		}
		return b
	}
	s := newTestServer(time.Minute, factory)
	defer s.timers.Stop()

	g, _ := s.registry.CreateGame()
	a := dial(s)
	defer a.hangUp()
	a.in <- joinFrame(g.Key, false)
	recv(t, a)

	a.in <- playFrame(true, 48, 56)
	if _, ok := recv(t, a).(*network.Promotion); !ok {
		t.Fatal("promoting push should prompt for a piece")
	}

	a.in <- &network.ClientMessage{Piece: "q"}
	move, ok := recv(t, a).(*network.Play)
	if !ok {
		t.Fatal("expected the promotion move broadcast")
	}
	if move.Piece != "q" {
		t.Errorf("move piece = %q, want the chosen q", move.Piece)
	}
	if move.Check == nil || !*move.Check {
		t.Error("a8=Q should check the black king")
	}
}

func TestPromotionCancelled(t *testing.T) {
	const placement = "4k3/P7/8/8/8/8/8/4K3"
	factory := func() rules.Board {
		b, err := rules.NewBoardFEN(placement + " w - - 0 1")
		if err != nil {
			panic(err)
		}
		return b
	}
	s := newTestServer(time.Minute, factory)
	defer s.timers.Stop()

	g, _ := s.registry.CreateGame()
	a := dial(s)
	defer a.hangUp()
	a.in <- joinFrame(g.Key, false)
	recv(t, a)

	a.in <- playFrame(true, 48, 56)
	recv(t, a) // promotion prompt

	// a reply without a piece abandons the move; resize is the barrier
	a.in <- &network.ClientMessage{Type: network.TypeHover}
	a.in <- &network.ClientMessage{Type: network.TypeResize}
	resize, ok := recv(t, a).(*network.Resize)
	if !ok {
		t.Fatal("cancelled promotion should produce no move")
	}
	if resize.Board != placement {
		t.Errorf("board after cancel = %q, want untouched", resize.Board)
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal(msg)
}
