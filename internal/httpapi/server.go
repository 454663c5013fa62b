// Package httpapi implements spec component C8: the HTTP server exposing
// POST /v1/messages, POST /v1/debug/echo, and GET /health, request/response
// framing, and log redaction. Its lifecycle (listener, Start, Shutdown) is
// adapted from the teacher's proxy.Proxy.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/northlake-dev/msgbridge/internal/capability"
	"github.com/northlake-dev/msgbridge/internal/endpointkind"
	"github.com/northlake-dev/msgbridge/internal/modelselect"
	"github.com/northlake-dev/msgbridge/internal/providerid"
	"github.com/northlake-dev/msgbridge/internal/secret"
	"github.com/northlake-dev/msgbridge/internal/upstream"
)

// Config is the subset of process configuration the server needs: the
// env vars enumerated in §6, already parsed by internal/app.
type Config struct {
	Provider         providerid.ID
	BaseURL          string
	AnthropicVersion string
	ModelDefaults    modelselect.Defaults
	ForceToolError   bool
	Debug            bool
	RatePerSecond    float64

	// OAuthTokenSource, when set, is consulted by resolveKey as a
	// lower-priority secret source for the anthropic provider, after the
	// env-var priority list of §4.1 is exhausted (SPEC_FULL.md §B). It is
	// normally internal/app's *app.PersistentTokenSource.Token wrapped to
	// return the bare access token string.
	OAuthTokenSource func() (string, error)
}

// Server wires C1–C7 and C9 behind the three routes of §4.8.
type Server struct {
	cfg      Config
	env      secret.Env
	detector *endpointkind.Detector
	registry *capability.Registry
	client   *upstream.Client
	logger   *slog.Logger

	mux    *http.ServeMux
	server *http.Server
}

// New builds a Server. client must be bound to cfg.BaseURL.
func New(cfg Config, env secret.Env, detector *endpointkind.Detector, registry *capability.Registry, client *upstream.Client, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{cfg: cfg, env: env, detector: detector, registry: registry, client: client, logger: logger}

	mux := http.NewServeMux()
	mux.Handle("POST /v1/messages", applyMiddlewares(http.HandlerFunc(s.handleMessages), logging(logger, cfg.Debug), recovery))
	mux.Handle("POST /v1/debug/echo", applyMiddlewares(http.HandlerFunc(s.handleDebugEcho), logging(logger, cfg.Debug), recovery))
	mux.Handle("GET /health", applyMiddlewares(http.HandlerFunc(s.handleHealth), logging(logger, cfg.Debug), recovery))
	s.mux = mux

	return s
}

var _ http.Handler = (*Server)(nil)

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// Start binds to address (normally loopback per §4.8) and serves in the
// background, returning a channel for runtime errors.
func (s *Server) Start(ctx context.Context, address string) (<-chan error, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("httpapi: failed to listen on %s: %w", address, err)
	}

	s.server = &http.Server{
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  90 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		err := s.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		_ = s.server.Close()
		return fmt.Errorf("httpapi: graceful shutdown failed: %w", err)
	}
	return nil
}
