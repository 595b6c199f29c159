package server

import (
	"errors"
	"sync"

	"github.com/NicolasHaas/staffchat/pkg/directory"
)

var ErrAlreadyLoggedIn = errors.New("server: username already has an active session")

// SessionRegistry maps logged-in usernames to their live sessions. It is the
// single source of truth for who is reachable right now.
//
// One mutex covers both the map and the directory's online flag, so the two
// change atomically with respect to concurrent logins and logouts: no caller
// can observe a username in the registry with online=false, or vice versa.
type SessionRegistry struct {
	dir *directory.Directory

	mu       sync.Mutex
	sessions map[string]*ClientSession
}

// NewSessionRegistry creates an empty registry bound to a directory.
func NewSessionRegistry(dir *directory.Directory) *SessionRegistry {
	return &SessionRegistry{
		dir:      dir,
		sessions: make(map[string]*ClientSession),
	}
}

// Add claims username for s and marks it online. The check-and-insert is
// atomic: a second login for an active username fails with ErrAlreadyLoggedIn
// and does not evict the first session.
func (r *SessionRegistry) Add(username string, s *ClientSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[username]; exists {
		return ErrAlreadyLoggedIn
	}
	r.sessions[username] = s
	r.dir.SetOnline(username, true)
	return nil
}

// Remove releases username and marks it offline, but only if s still holds
// it. Idempotent: removing a username that is absent, or held by a different
// session, is a no-op.
func (r *SessionRegistry) Remove(username string, s *ClientSession) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.sessions[username]; ok && cur == s {
		delete(r.sessions, username)
		r.dir.SetOnline(username, false)
	}
}

// Lookup returns the session holding username, or nil.
func (r *SessionRegistry) Lookup(username string) *ClientSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[username]
}

// Count returns the number of logged-in sessions.
func (r *SessionRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// All returns a snapshot of the logged-in sessions.
func (r *SessionRegistry) All() []*ClientSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*ClientSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		result = append(result, s)
	}
	return result
}
