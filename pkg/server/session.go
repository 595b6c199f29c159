package server

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NicolasHaas/staffchat/pkg/protocol"
)

// ClientSession owns one client connection: its read loop, frame decoder,
// authentication state, and outbound write queue.
//
// username and authenticated are mutated only by the session's own read
// goroutine (the router runs dispatch synchronously on it), so they need no
// lock. The write queue is shared: any session may enqueue a frame on any
// other during message delivery, so it carries its own mutex.
type ClientSession struct {
	id   uuid.UUID
	conn net.Conn
	srv  *Server
	dec  *protocol.Decoder

	username      string
	authenticated bool

	wmu      sync.Mutex
	queue    [][]byte
	draining bool
	closed   bool

	closeOnce sync.Once
}

func newClientSession(conn net.Conn, srv *Server) *ClientSession {
	return &ClientSession{
		id:   uuid.New(),
		conn: conn,
		srv:  srv,
		dec:  protocol.NewDecoder(),
	}
}

// run is the session's read loop. It blocks until the peer disconnects, the
// stream proves malformed, or the server shuts the connection down, then runs
// teardown exactly once.
func (s *ClientSession) run() {
	defer s.teardown()

	remote := s.conn.RemoteAddr().String()
	slog.Debug("session started", "session", s.id, "remote", remote)

	buf := make([]byte, 4096)
	for {
		if s.srv.cfg.IdleTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.srv.cfg.IdleTimeout))
		}

		n, err := s.conn.Read(buf)
		if n > 0 {
			frames, ferr := s.dec.Feed(buf[:n])
			for _, f := range frames {
				s.srv.metrics.FramesIn.Inc()
				s.srv.router.Dispatch(s, f)
			}
			if ferr != nil {
				// Protocol-fatal: close without further processing.
				s.srv.metrics.ProtocolErrors.Inc()
				slog.Warn("protocol error, closing session", "session", s.id, "remote", remote, "err", ferr)
				return
			}
		}
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				slog.Debug("read error", "session", s.id, "remote", remote, "err", err)
			}
			return
		}
	}
}

// send encodes a frame and enqueues it for writing. Errors are
// non-actionable for the caller: a failed write surfaces as a read error on
// the session's own loop and triggers teardown.
func (s *ClientSession) send(f *protocol.Frame) {
	buf, err := protocol.Encode(f)
	if err != nil {
		slog.Error("encode failed", "session", s.id, "kind", f.Kind(), "err", err)
		return
	}
	s.enqueue(buf)
}

func (s *ClientSession) sendOK(op, detail string) {
	s.send(&protocol.Frame{OK: &protocol.OK{Op: op, Detail: detail}})
}

func (s *ClientSession) sendError(code int32, message string) {
	s.send(&protocol.Frame{Error: &protocol.Error{Code: code, Message: message}})
}

// enqueue appends an encoded frame to the outbound queue and starts a drain
// if none is running. The drain writes one frame at a time, so the socket
// never has two writes in flight and frame boundaries cannot interleave,
// no matter which session's goroutine enqueued.
func (s *ClientSession) enqueue(buf []byte) {
	s.wmu.Lock()
	if s.closed {
		s.wmu.Unlock()
		return
	}
	s.queue = append(s.queue, buf)
	if !s.draining {
		s.draining = true
		go s.drain()
	}
	s.wmu.Unlock()
}

func (s *ClientSession) drain() {
	for {
		s.wmu.Lock()
		if s.closed || len(s.queue) == 0 {
			s.draining = false
			s.wmu.Unlock()
			return
		}
		buf := s.queue[0]
		s.queue = s.queue[1:]
		s.wmu.Unlock()

		if _, err := s.conn.Write(buf); err != nil {
			// Transport failure: treat like a disconnect. Closing the conn
			// unblocks the read loop, which runs teardown.
			slog.Debug("write failed", "session", s.id, "err", err)
			s.close()
			return
		}
		s.srv.metrics.FramesOut.Inc()
	}
}

// close shuts the connection down and stops accepting outbound frames.
// Safe to call from any goroutine, any number of times.
func (s *ClientSession) close() {
	s.closeOnce.Do(func() {
		s.wmu.Lock()
		s.closed = true
		s.queue = nil
		s.wmu.Unlock()
		_ = s.conn.Close()
	})
}

// teardown releases the session's registry entry and presence flag as one
// atomic step, then closes the socket. Runs once, on the read goroutine.
func (s *ClientSession) teardown() {
	if s.authenticated {
		s.srv.registry.Remove(s.username, s)
		slog.Info("user disconnected", "user", s.username, "session", s.id)
		s.authenticated = false
		s.username = ""
	} else {
		slog.Debug("session closed", "session", s.id)
	}
	s.close()
	s.srv.metrics.ActiveConnections.Dec()
	s.srv.metrics.DisconnectsTotal.Inc()
}
