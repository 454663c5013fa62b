// Package app orchestrates process lifecycle: loading configuration,
// wiring the C1–C9 components behind internal/httpapi.Server, and
// running/stopping the HTTP listener, in the style of the teacher's
// proxy.Proxy lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/northlake-dev/msgbridge/internal/capability"
	"github.com/northlake-dev/msgbridge/internal/endpointkind"
	"github.com/northlake-dev/msgbridge/internal/httpapi"
	"github.com/northlake-dev/msgbridge/internal/secret"
	anthropictokensource "github.com/northlake-dev/msgbridge/internal/tokensource"
	"github.com/northlake-dev/msgbridge/internal/upstream"
)

// App orchestrates the lifecycle of the HTTP server and its collaborators.
type App struct {
	cfg    *Config
	server *httpapi.Server
}

// New builds an App from the ambient Config and the spec.md §6 runtime
// environment. env is consulted both for the *_API_KEY priority list (C1)
// and, via LoadRuntime, for the raw domain variables; production callers
// pass secret.OSEnv{} and os.LookupEnv respectively.
func New(cfg *Config, env secret.Env, lookup func(string) (string, bool)) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	runtime, err := LoadRuntime(lookup)
	if err != nil {
		return nil, fmt.Errorf("failed to load runtime configuration: %w", err)
	}

	port, err := Port(lookup, cfg.Server.Port)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve listen port: %w", err)
	}
	cfg.Server.Port = port

	var oauthSource func() (string, error)
	if cfg.Auth.Enabled {
		source, err := newOAuthTokenSource(cfg.Auth)
		if err != nil {
			return nil, fmt.Errorf("failed to create oauth token source: %w", err)
		}
		oauthSource = func() (string, error) {
			token, err := source.Token()
			if err != nil {
				return "", err
			}
			return token.AccessToken, nil
		}
	}

	client := upstream.New(runtime.BaseURL, 10)
	cache := endpointkind.NewCache()
	detector := endpointkind.NewDetector(cache, client, runtime.EndpointOverrides)

	serverCfg := httpapi.Config{
		Provider:         runtime.Provider,
		BaseURL:          runtime.BaseURL,
		AnthropicVersion: runtime.AnthropicVersion,
		ModelDefaults:    runtime.ModelDefaults,
		ForceToolError:   runtime.ForceToolError,
		Debug:            runtime.Debug,
		RatePerSecond:    10,
		OAuthTokenSource: oauthSource,
	}

	server := httpapi.New(serverCfg, env, detector, capability.DefaultRegistry(), client, slog.Default())

	return &App{cfg: cfg, server: server}, nil
}

// Start starts the HTTP server and blocks until shutdown is triggered by
// ctx cancellation or a runtime error, then runs shutdown in reverse
// order with a bounded timeout (errgroup, mirroring the teacher's app.go).
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
	var shutdownFuncs []func(context.Context) error

	slog.InfoContext(gCtx, "starting server", "address", address)
	errCh, err := a.server.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("server startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.server.Shutdown)

	g.Go(func() error {
		select {
		case err := <-errCh:
			if err != nil {
				slog.ErrorContext(gCtx, "server runtime error", "error", err)
				return fmt.Errorf("server: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", address)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}
	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}

// newOAuthTokenSource builds the persistent, refreshing OAuth token source
// backing the anthropic provider's fallback secret (SPEC_FULL.md §B). No
// I/O happens until the first Token() call.
func newOAuthTokenSource(cfg AuthConfig) (*PersistentTokenSource, error) {
	store, err := cfg.NewTokenStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}

	factory := func(token string) oauth2.TokenSource {
		return anthropictokensource.NewTokenSource(token, anthropictokensource.Endpoint)
	}

	return NewPersistentTokenSource(factory, store)
}

// OSLookup adapts os.LookupEnv to the lookup signature LoadRuntime and
// Port expect, for production wiring.
func OSLookup(key string) (string, bool) { return os.LookupEnv(key) }
