// Package access holds the one-time pass that admits a player into the war
// room view.
package access

import (
	"sync"

	"github.com/google/uuid"
)

// Pass is a single-read authorization flag. Grant arms it; the first Consume
// after a Grant succeeds and disarms it.
type Pass struct {
	mu    sync.Mutex
	token string
}

// Grant arms the pass and returns the token that was issued. Granting again
// before consumption replaces the token.
func (p *Pass) Grant() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = uuid.NewString()
	return p.token
}

// Consume reports whether the pass was armed, disarming it either way.
func (p *Pass) Consume() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	ok := p.token != ""
	p.token = ""
	return ok
}

// Granted reports whether the pass is armed without consuming it.
func (p *Pass) Granted() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token != ""
}
