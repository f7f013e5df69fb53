package storage

import (
	"context"
	"sync"
	"time"
)

// Ephemeral is an in-process key-value store whose entries expire. It holds
// per-run state such as launched sessions and the last canvas target.
type Ephemeral struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]ephemeralEntry
}

type ephemeralEntry struct {
	value   []byte
	expires time.Time
}

// Keys used by the launcher.
const (
	CanvasTargetKey  = "canvas-target"
	SessionKeyPrefix = "session:"
)

// SessionKey returns the ephemeral key for a session id.
func SessionKey(id string) string {
	return SessionKeyPrefix + id
}

// NewEphemeral creates a store whose entries live for ttl. A zero ttl keeps
// entries until deleted.
func NewEphemeral(ttl time.Duration) *Ephemeral {
	return &Ephemeral{ttl: ttl, now: time.Now, entries: make(map[string]ephemeralEntry)}
}

func (e *Ephemeral) Set(key string, value []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry := ephemeralEntry{value: append([]byte(nil), value...)}
	if e.ttl > 0 {
		entry.expires = e.now().Add(e.ttl)
	}
	e.entries[key] = entry
}

func (e *Ephemeral) Get(key string) ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(entry) {
		delete(e.entries, key)
		return nil, false
	}
	return append([]byte(nil), entry.value...), true
}

func (e *Ephemeral) Delete(key string) {
	e.mu.Lock()
	delete(e.entries, key)
	e.mu.Unlock()
}

// Len counts live entries.
func (e *Ephemeral) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, entry := range e.entries {
		if !e.expired(entry) {
			n++
		}
	}
	return n
}

func (e *Ephemeral) expired(entry ephemeralEntry) bool {
	return !entry.expires.IsZero() && !e.now().Before(entry.expires)
}

// Sweep drops expired entries and returns how many were removed.
func (e *Ephemeral) Sweep() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	removed := 0
	for key, entry := range e.entries {
		if e.expired(entry) {
			delete(e.entries, key)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps every interval until ctx is done.
func (e *Ephemeral) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Sweep()
		}
	}
}
