package session

import (
	"net"
	"testing"

	"github.com/wfunc/chessrelay/network"
)

// mockConnection records sends and close calls.
type mockConnection struct {
	sent   []interface{}
	closed bool
}

func (m *mockConnection) Send(payload interface{}) error {
	m.sent = append(m.sent, payload)
	return nil
}

func (m *mockConnection) ReadMessage() (*network.ClientMessage, error) {
	return nil, net.ErrClosed
}

func (m *mockConnection) Close() error {
	m.closed = true
	return nil
}

func (m *mockConnection) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 12345}
}

func TestSessionSend(t *testing.T) {
	conn := &mockConnection{}
	s := NewSession("s1", conn)

	if s.GetID() != "s1" {
		t.Errorf("GetID() = %q, want s1", s.GetID())
	}
	if err := s.Send("hello"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(conn.sent) != 1 || conn.sent[0] != "hello" {
		t.Errorf("connection saw %v, want [hello]", conn.sent)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !conn.closed {
		t.Error("Close should reach the connection")
	}
}

func TestManagerAddGetRemove(t *testing.T) {
	m := NewManager()
	s := NewSession("s1", &mockConnection{})

	m.Add(s)
	if m.Count() != 1 {
		t.Errorf("Count() = %d, want 1", m.Count())
	}
	got, exists := m.Get("s1")
	if !exists || got != s {
		t.Error("Get should return the added session")
	}

	m.Remove("s1")
	if _, exists := m.Get("s1"); exists {
		t.Error("removed session still resolvable")
	}
	if m.Count() != 0 {
		t.Errorf("Count() = %d, want 0", m.Count())
	}

	m.Remove("s1") // absent id: no-op
}

func TestManagerCloseAll(t *testing.T) {
	m := NewManager()
	conns := []*mockConnection{{}, {}, {}}
	for i, c := range conns {
		m.Add(NewSession(string(rune('a'+i)), c))
	}

	m.CloseAll()
	for i, c := range conns {
		if !c.closed {
			t.Errorf("connection %d not closed", i)
		}
	}
}
