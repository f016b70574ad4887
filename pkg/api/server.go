// Package api assembles the HTTP observation surface: the chi router,
// its middleware chain, and the server lifecycle around them.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/goclaw/sigmux/config"
	"github.com/goclaw/sigmux/pkg/logger"
)

// Server is the lifecycle contract the daemon wires into its run loop.
type Server interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// HTTPServer serves the observation API over plain HTTP.
type HTTPServer struct {
	srv *http.Server
	log logger.Logger
}

// NewHTTPServer builds the full router and binds it to the address and
// HTTP limits from cfg.Server.
func NewHTTPServer(cfg *config.Config, log logger.Logger, handlers *Handlers) *HTTPServer {
	return &HTTPServer{
		srv: &http.Server{
			Addr:           cfg.Server.Addr(),
			Handler:        NewRouter(cfg, log, handlers),
			ReadTimeout:    cfg.Server.HTTP.ReadTimeout,
			WriteTimeout:   cfg.Server.HTTP.WriteTimeout,
			IdleTimeout:    cfg.Server.HTTP.IdleTimeout,
			MaxHeaderBytes: cfg.Server.HTTP.MaxHeaderBytes,
		},
		log: log,
	}
}

// Start serves requests until Shutdown is called or the listener
// fails. A clean shutdown returns nil.
func (s *HTTPServer) Start() error {
	s.log.Info("Starting HTTP server",
		"addr", s.srv.Addr,
		"read_timeout", s.srv.ReadTimeout,
		"write_timeout", s.srv.WriteTimeout,
	)

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests
// until ctx expires.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}
