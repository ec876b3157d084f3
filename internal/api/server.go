// Package api provides the HTTP webhook server for the fulfillment service.
//
// It exposes the assistant platform's webhook endpoint and a health probe.
// Intent routing, identity resolution, and command execution live in the
// fulfillment package; this layer only handles transport concerns.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sanjeet990/MarswaveHome/internal/fulfillment"
	"github.com/Sanjeet990/MarswaveHome/internal/infrastructure/config"
	"github.com/Sanjeet990/MarswaveHome/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// IntentHandler routes one decoded webhook request. Satisfied by
// fulfillment.Dispatcher.
type IntentHandler interface {
	Handle(ctx context.Context, token string, req *fulfillment.Request) (any, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.ServerConfig
	Logger     *logging.Logger
	Dispatcher IntentHandler
	Version    string
}

// Server is the HTTP webhook server.
//
// It manages the HTTP listener, routes, and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg        config.ServerConfig
	logger     *logging.Logger
	dispatcher IntentHandler
	version    string
	server     *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, dispatcher)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	return &Server{
		cfg:        deps.Config,
		logger:     deps.Logger,
		dispatcher: deps.Dispatcher,
		version:    deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       s.cfg.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.ReadTimeout(),
		WriteTimeout:      s.cfg.WriteTimeout(),
		IdleTimeout:       s.cfg.IdleTimeout(),
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("webhook server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("webhook server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("webhook server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("webhook server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down webhook server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("webhook server not started")
	}

	return nil
}
