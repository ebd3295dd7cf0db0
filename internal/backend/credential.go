package backend

import (
	"math/rand"
	"sync"

	"rook/internal/logging"
)

// Credential wraps a single API key. The raw value never leaves this type
// except through Raw(), which only the invokers call; all logging goes
// through Masked().
type Credential struct {
	raw string
}

// Raw returns the full key for use in an outbound request.
func (c Credential) Raw() string {
	return c.raw
}

// Masked returns a loggable form of the key: the last six characters behind
// an ellipsis. Keys of eight characters or fewer are shown whole behind the
// ellipsis since a suffix of them would be most of the key anyway.
func (c Credential) Masked() string {
	if c.raw == "" {
		return "EMPTY"
	}
	if len(c.raw) <= 8 {
		return "..." + c.raw
	}
	return "..." + c.raw[len(c.raw)-6:]
}

// Pool holds the configured credentials and a rotation cursor. All methods
// are safe for concurrent use.
type Pool struct {
	mu    sync.Mutex
	creds []Credential
	index int
}

// NewPool builds a pool from the configured key list, skipping empty
// entries. The starting cursor is randomized so that restarts spread load
// across the key set instead of always burning the first key.
func NewPool(keys []string) (*Pool, error) {
	creds := make([]Credential, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		creds = append(creds, Credential{raw: k})
	}
	if len(creds) == 0 {
		return nil, ErrNoCredentials
	}
	p := &Pool{
		creds: creds,
		index: rand.Intn(len(creds)),
	}
	logging.KeyPool("pool initialized with %d key(s), starting at %s", len(creds), p.creds[p.index].Masked())
	return p, nil
}

// Size returns the number of credentials in the pool.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.creds)
}

// Current returns the credential at the cursor without advancing it.
func (p *Pool) Current() Credential {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.creds[p.index]
}

// Rotate advances the cursor one position, wrapping at the end, and returns
// the new current credential.
func (p *Pool) Rotate() Credential {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.index = (p.index + 1) % len(p.creds)
	next := p.creds[p.index]
	logging.KeyPoolDebug("rotated to %s (%d/%d)", next.Masked(), p.index+1, len(p.creds))
	return next
}

// MarkDead records that a credential hit a hard quota wall and rotates past
// it. The credential stays in the pool: daily quotas reset, and with a small
// key set evicting would rapidly empty the pool.
func (p *Pool) MarkDead(c Credential) Credential {
	logging.KeyPool("key %s exhausted, rotating", c.Masked())
	return p.Rotate()
}
