// Package latest discards results of superseded requests. Each Begin on a
// resource issues a newer token; only the newest token may apply its result.
package latest

import "sync"

type Token struct {
	resource string
	seq      uint64
}

func (t Token) Resource() string { return t.resource }

type Tokens struct {
	mu     sync.Mutex
	next   uint64
	latest map[string]uint64
}

func New() *Tokens {
	return &Tokens{latest: make(map[string]uint64)}
}

// Begin supersedes every earlier token for resource.
func (t *Tokens) Begin(resource string) Token {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.latest[resource] = t.next
	return Token{resource: resource, seq: t.next}
}

func (t *Tokens) IsCurrent(tok Token) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return tok.seq != 0 && t.latest[tok.resource] == tok.seq
}

// Apply runs fn only if tok is still the newest for its resource. fn runs
// while holding the lock, so no newer Begin can interleave with it.
func (t *Tokens) Apply(tok Token, fn func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tok.seq == 0 || t.latest[tok.resource] != tok.seq {
		return false
	}
	fn()
	return true
}

// Done releases the resource entry when tok is still the newest.
func (t *Tokens) Done(tok Token) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.latest[tok.resource] == tok.seq {
		delete(t.latest, tok.resource)
	}
}
