// broadcast/broadcast.go
package broadcast

import (
	"github.com/wfunc/chessrelay/session"
)

// Broadcaster fans one payload out to a set of endpoints.
type Broadcaster interface {
	Broadcast(targets []*session.Session, payload interface{}) error
}

// SessionBroadcaster sends to each target in turn. Send errors are skipped:
// a dying peer is detected and cleaned up by its own read loop, not here.
type SessionBroadcaster struct{}

func NewSessionBroadcaster() *SessionBroadcaster {
	return &SessionBroadcaster{}
}

func (b *SessionBroadcaster) Broadcast(targets []*session.Session, payload interface{}) error {
	for _, s := range targets {
		if err := s.Send(payload); err != nil {
			continue
		}
	}
	return nil
}
