package server

import (
	"errors"
	"sync"
)

var (
	errTooManyClients = errors.New("too many mirror clients")
	errSessionClaimed = errors.New("session already has a mirror client")
)

// connLimiter caps concurrent mirror channels overall and per session id. A
// second channel on a live session would restart it and tear it down again on
// its own disconnect, so the per-session cap defaults to one.
type connLimiter struct {
	max        int
	perSession int

	mu       sync.Mutex
	active   int
	sessions map[string]int
}

func newConnLimiter(max, perSession int) *connLimiter {
	return &connLimiter{max: max, perSession: perSession, sessions: make(map[string]int)}
}

// Acquire claims a slot for sessionID. Non-positive caps are unlimited.
func (l *connLimiter) Acquire(sessionID string) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.max > 0 && l.active >= l.max {
		return errTooManyClients
	}
	if l.perSession > 0 && l.sessions[sessionID] >= l.perSession {
		return errSessionClaimed
	}
	l.active++
	l.sessions[sessionID]++
	return nil
}

func (l *connLimiter) Release(sessionID string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	n, ok := l.sessions[sessionID]
	if !ok {
		return
	}
	l.active--
	if n > 1 {
		l.sessions[sessionID] = n - 1
	} else {
		delete(l.sessions, sessionID)
	}
}
