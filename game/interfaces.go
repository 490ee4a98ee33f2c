package game

import (
	"github.com/wfunc/chessrelay/session"
)

// Broadcaster delivers one payload to a set of endpoints. Defined here to
// keep the concrete fan-out implementation out of this package.
type Broadcaster interface {
	Broadcast(targets []*session.Session, payload interface{}) error
}
