package server

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn adapts a websocket connection to net.Conn so websocket clients run
// through the same session pipeline as raw TCP clients. Each binary websocket
// message carries whole encoded frames; the session's drain writes exactly
// one frame per Write call, so outbound messages stay one-frame-sized.
type wsConn struct {
	ws   *websocket.Conn
	rbuf []byte // unread tail of the current inbound message
}

func (c *wsConn) Read(p []byte) (int, error) {
	for len(c.rbuf) == 0 {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			return 0, err
		}
		if msgType != websocket.BinaryMessage {
			continue // text/ping noise, framing lives in binary messages
		}
		c.rbuf = data
	}
	n := copy(p, c.rbuf)
	c.rbuf = c.rbuf[n:]
	return n, nil
}

func (c *wsConn) Write(p []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error                { return c.ws.Close() }
func (c *wsConn) LocalAddr() net.Addr         { return c.ws.LocalAddr() }
func (c *wsConn) RemoteAddr() net.Addr        { return c.ws.RemoteAddr() }
func (c *wsConn) SetReadDeadline(t time.Time) error  { return c.ws.SetReadDeadline(t) }
func (c *wsConn) SetWriteDeadline(t time.Time) error { return c.ws.SetWriteDeadline(t) }

func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The chat protocol authenticates per connection; browser origin carries
	// no trust here.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsHandler serves /ws upgrades, feeding each websocket connection into the
// regular session pipeline.
func (s *Server) wsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
			return
		}
		s.handleConn(&wsConn{ws: ws})
	})
	return mux
}

// StartWebSocket starts the optional websocket listener. Frames on it are
// identical to TCP frames, carried as binary messages.
func (s *Server) StartWebSocket() error {
	addr := s.cfg.WSAddr
	if addr == "" {
		return nil // websocket transport disabled
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.wsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("websocket listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("websocket HTTP error", "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = srv.Close()
	}()
	return nil
}
