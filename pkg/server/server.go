// Package server implements the staffchat server: TCP listener, per-client
// sessions, request routing, and presence tracking.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/NicolasHaas/staffchat/pkg/directory"
)

// Dependencies holds external collaborators for the server. The server
// assumes ownership of Directory and closes it on shutdown.
type Dependencies struct {
	Directory *directory.Directory
}

// Server is the main staffchat server.
type Server struct {
	cfg      Config
	dir      *directory.Directory
	registry *SessionRegistry
	router   *Router
	metrics  *Metrics

	ln     net.Listener
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Server instance.
func New(cfg Config, deps Dependencies) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:     cfg,
		dir:     deps.Directory,
		metrics: NewMetrics(),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.registry = NewSessionRegistry(s.dir)
	s.router = NewRouter(s.dir, s.registry, s.metrics)
	return s
}

// Directory returns the server's user directory.
func (s *Server) Directory() *directory.Directory {
	return s.dir
}

// Registry returns the live session registry.
func (s *Server) Registry() *SessionRegistry {
	return s.registry
}

// Addr returns the bound TCP listen address, valid after Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Start binds the listeners and begins accepting connections in the
// background. It does not block.
func (s *Server) Start() error {
	if s.dir == nil {
		return fmt.Errorf("server: missing directory dependency")
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	s.ln = ln
	slog.Info("chat server listening", "addr", ln.Addr())

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
					slog.Error("accept error", "err", err)
					continue
				}
			}
			go s.handleConn(conn)
		}
	}()

	if err := s.StartWebSocket(); err != nil {
		_ = ln.Close()
		return err
	}
	s.StartMetricsHTTP()
	return nil
}

// handleConn runs the session lifecycle for one accepted connection.
func (s *Server) handleConn(conn net.Conn) {
	s.metrics.ConnectionsTotal.Inc()
	s.metrics.ActiveConnections.Inc()
	slog.Debug("new connection", "remote", conn.RemoteAddr())

	sess := newClientSession(conn, s)
	sess.run()
}

// Run starts the server and blocks until a shutdown signal.
func (s *Server) Run() error {
	if err := s.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	return s.Shutdown()
}

// Shutdown stops the listeners, disconnects active sessions, and flushes the
// directory to its store.
func (s *Server) Shutdown() error {
	s.cancel()
	if s.ln != nil {
		_ = s.ln.Close()
	}
	for _, sess := range s.registry.All() {
		sess.close()
	}
	return s.dir.Close()
}
