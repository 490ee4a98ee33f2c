// game/registry.go
package game

import (
	"errors"
	"math/rand"
	"strings"
	"sync"

	"github.com/wfunc/chessrelay/rules"
)

const (
	// KeyLength keeps join keys short enough to read over a shoulder.
	KeyLength    = 4
	keyAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxKeyTrials = 1000
)

// ErrKeyspaceExhausted means key generation collided maxKeyTrials times.
// With 36^4 keys this marks a pathologically full registry; the request
// fails, the process does not.
var ErrKeyspaceExhausted = errors.New("could not generate a unique join key")

// Registry maps live join keys to games. Keys are generated, inserted and
// deleted under one lock, so concurrent creations can neither observe nor
// produce duplicates.
type Registry struct {
	games       map[string]*Game
	newBoard    rules.Factory
	broadcaster Broadcaster
	mutex       sync.RWMutex
}

func NewRegistry(newBoard rules.Factory, broadcaster Broadcaster) *Registry {
	return &Registry{
		games:       make(map[string]*Game),
		newBoard:    newBoard,
		broadcaster: broadcaster,
	}
}

// CreateGame allocates a fresh game under a collision-free key.
func (r *Registry) CreateGame() (*Game, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i := 0; i < maxKeyTrials; i++ {
		key := randomKey()
		if _, taken := r.games[key]; taken {
			continue
		}
		g := newGame(key, r.newBoard(), r.broadcaster)
		r.games[key] = g
		return g, nil
	}
	return nil, ErrKeyspaceExhausted
}

// Lookup is case-insensitive; keys travel uppercased but clients type them.
func (r *Registry) Lookup(key string) (*Game, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	g, exists := r.games[strings.ToUpper(key)]
	return g, exists
}

// Delete removes a game. Deleting an absent key is a no-op, so the reaper
// firing late or twice is harmless.
func (r *Registry) Delete(key string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.games, key)
}

func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.games)
}

func randomKey() string {
	var b strings.Builder
	for i := 0; i < KeyLength; i++ {
		b.WriteByte(keyAlphabet[rand.Intn(len(keyAlphabet))])
	}
	return b.String()
}
