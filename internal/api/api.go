// Package api provides the HTTP surface of the outreach server: the provider
// webhooks that receive inbound SMS, the manual follow-up trigger, and the
// health probe.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/flow"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/followup"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// Timeouts for the HTTP server. Webhook bodies are small; slow clients get
// cut off rather than holding connections open.
const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 60 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Server wires the HTTP endpoints to the inbound flow engine and the
// follow-up runner. All collaborators are injected.
type Server struct {
	engine *flow.Engine
	runner *followup.Runner
	addr   string
}

// Opts holds configuration for the API server.
type Opts struct {
	Addr string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// NewServer builds the API server over the given collaborators.
func NewServer(engine *flow.Engine, runner *followup.Runner, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{engine: engine, runner: runner, addr: cfg.Addr}
}

// Handler returns the route table as an http.Handler, exposed separately so
// tests can drive it with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhooks/telnyx", s.telnyxWebhookHandler)
	mux.HandleFunc("/webhooks/twilio", s.twilioWebhookHandler)
	mux.HandleFunc("/followups/run", s.followupsHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run serves HTTP until the context is canceled, then drains in-flight
// requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
