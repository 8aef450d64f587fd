// internal/lobby/tokens.go
package lobby

import "sync"

// tokens hands out one mutual-exclusion token per key. Entries are dropped once nobody holds or
// waits for them.
type tokens[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*token
}

type token struct {
	sync.Mutex
	refs int
}

func newTokens[K comparable]() *tokens[K] {
	return &tokens[K]{locks: make(map[K]*token)}
}

// Lock blocks until the token for key is held and returns its release func.
func (t *tokens[K]) Lock(key K) func() {
	t.mu.Lock()
	tok := t.locks[key]
	if tok == nil {
		tok = &token{}
		t.locks[key] = tok
	}
	tok.refs++
	t.mu.Unlock()

	tok.Lock()
	return func() { t.release(key, tok) }
}

func (t *tokens[K]) release(key K, tok *token) {
	tok.Unlock()
	t.mu.Lock()
	tok.refs--
	if tok.refs == 0 {
		delete(t.locks, key)
	}
	t.mu.Unlock()
}

func (t *tokens[K]) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
