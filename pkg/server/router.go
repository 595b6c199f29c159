package server

import (
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/NicolasHaas/staffchat/pkg/directory"
	"github.com/NicolasHaas/staffchat/pkg/model"
	"github.com/NicolasHaas/staffchat/pkg/protocol"
)

const maxMessageLength = 2000

// Router dispatches decoded frames against the shared directory and session
// registry. It is stateless; all per-connection state lives on the session.
type Router struct {
	dir      *directory.Directory
	registry *SessionRegistry
	metrics  *Metrics
}

// NewRouter creates a router over the shared directory and registry.
func NewRouter(dir *directory.Directory, registry *SessionRegistry, metrics *Metrics) *Router {
	return &Router{dir: dir, registry: registry, metrics: metrics}
}

// Dispatch handles one request frame from s. Every request is answered by
// exactly one OK or Error frame, except logout, which has no reply.
func (rt *Router) Dispatch(s *ClientSession, f *protocol.Frame) {
	switch {
	case f.Register != nil:
		rt.handleRegister(s, f.Register)
	case f.Login != nil:
		rt.handleLogin(s, f.Login)
	case f.Logout != nil:
		rt.handleLogout(s)
	case f.UserListRequest != nil:
		rt.handleUserList(s)
	case f.Search != nil:
		rt.handleSearch(s, f.Search)
	case f.SendMessage != nil:
		rt.handleSendMessage(s, f.SendMessage)
	default:
		// Reply/push kinds and empty envelopes are nothing a client should
		// ever send.
		s.sendError(protocol.CodeBadRequest, "unexpected frame: "+f.Kind())
	}
}

func (rt *Router) handleRegister(s *ClientSession, req *protocol.Register) {
	err := rt.dir.Register(req.Username, req.Password, req.FullName, req.Department, req.Position)
	switch {
	case err == nil:
		rt.metrics.Registrations.Inc()
		slog.Info("user registered", "user", req.Username, "session", s.id)
		s.sendOK("register", req.Username)
	case errors.Is(err, directory.ErrAlreadyExists):
		s.sendError(protocol.CodeAlreadyExists, "username already exists")
	default:
		s.sendError(protocol.CodeBadRequest, err.Error())
	}
}

func (rt *Router) handleLogin(s *ClientSession, req *protocol.Login) {
	if s.authenticated {
		s.sendError(protocol.CodeBadRequest, "already logged in as "+s.username)
		return
	}

	if err := rt.dir.Authenticate(req.Username, req.Password); err != nil {
		rt.metrics.AuthFailure.Inc()
		slog.Debug("login failed", "user", req.Username, "session", s.id, "err", err)
		s.sendError(protocol.CodeBadCredentials, "invalid credentials")
		return
	}

	// Claim the username and flip the presence flag in one atomic step.
	if err := rt.registry.Add(req.Username, s); err != nil {
		rt.metrics.AuthFailure.Inc()
		s.sendError(protocol.CodeAlreadyLoggedIn, "user already logged in elsewhere")
		return
	}

	s.username = req.Username
	s.authenticated = true
	rt.metrics.AuthSuccess.Inc()
	slog.Info("user logged in", "user", req.Username, "session", s.id)
	s.sendOK("login", req.Username)
}

func (rt *Router) handleLogout(s *ClientSession) {
	if !s.authenticated {
		s.sendError(protocol.CodeAuthRequired, "not logged in")
		return
	}
	rt.registry.Remove(s.username, s)
	slog.Info("user logged out", "user", s.username, "session", s.id)
	s.username = ""
	s.authenticated = false
	// No reply; the connection stays open and may log in again.
}

func (rt *Router) handleUserList(s *ClientSession) {
	if !rt.requireAuth(s) {
		return
	}
	// The caller is excluded from its own list.
	entries := userEntries(rt.dir.ListOnline(), s.username)
	s.send(&protocol.Frame{UserList: &protocol.UserList{Users: entries}})
}

func (rt *Router) handleSearch(s *ClientSession, req *protocol.Search) {
	if !rt.requireAuth(s) {
		return
	}
	entries := userEntries(rt.dir.Search(req.Query), "")
	s.send(&protocol.Frame{SearchResults: &protocol.SearchResults{Users: entries}})
}

func (rt *Router) handleSendMessage(s *ClientSession, req *protocol.SendMessage) {
	if !rt.requireAuth(s) {
		return
	}

	text := sanitizeText(strings.TrimSpace(req.Text))
	if text == "" {
		s.sendError(protocol.CodeBadRequest, "empty message")
		return
	}
	if len(text) > maxMessageLength {
		s.sendError(protocol.CodeBadRequest, "message too long")
		return
	}

	target := rt.registry.Lookup(req.To)
	if target == nil {
		// No mailbox for offline users: drop the message, tell the sender.
		rt.metrics.MessagesUndeliverable.Inc()
		s.sendError(protocol.CodeOffline, "recipient offline: "+req.To)
		return
	}

	target.send(&protocol.Frame{Deliver: &protocol.Deliver{
		From:      s.username,
		Text:      text,
		Timestamp: time.Now().Unix(),
	}})
	rt.metrics.MessagesDelivered.Inc()
	s.sendOK("send", req.To)
}

// requireAuth rejects protected operations on unauthenticated sessions with a
// single Error frame. The connection stays open.
func (rt *Router) requireAuth(s *ClientSession) bool {
	if !s.authenticated {
		s.sendError(protocol.CodeAuthRequired, "login required")
		return false
	}
	return true
}

// userEntries converts directory records to protocol entries, skipping
// exclude if non-empty.
func userEntries(records []model.UserRecord, exclude string) []protocol.UserEntry {
	entries := make([]protocol.UserEntry, 0, len(records))
	for _, u := range records {
		if exclude != "" && u.Username == exclude {
			continue
		}
		entries = append(entries, protocol.UserEntry{
			Username:   u.Username,
			FullName:   u.FullName,
			Department: u.Department,
			Position:   u.Position,
			Online:     u.Online,
		})
	}
	return entries
}

// sanitizeText strips control characters (except newline) from user-supplied
// text to prevent UI spoofing, terminal escape injection, and null-byte
// attacks.
func sanitizeText(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return ' ' // collapse newlines to spaces
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
