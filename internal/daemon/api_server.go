package daemon

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hashicorp/go-hclog"

	"github.com/ojamals/mcpregd/internal/api"
	"github.com/ojamals/mcpregd/internal/cmd"
	"github.com/ojamals/mcpregd/internal/errors"
)

// APIServer manages the coordinator's HTTP API.
// NewAPIServer should be used to create instances of APIServer.
type APIServer struct {
	logger hclog.Logger
	deps   APIDependencies
	opts   APIOptions
}

// NewAPIServer creates a new API server with the provided dependencies and options.
// Applies default options first, then user-provided options to ensure all fields have valid values.
func NewAPIServer(deps APIDependencies, opt ...APIOption) (*APIServer, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies for API server: %w", err)
	}

	// Ensure we always start with defaults and apply user options on top.
	apiOpts, err := NewAPIOptions(opt...)
	if err != nil {
		return nil, fmt.Errorf("invalid API options: %w", err)
	}

	return &APIServer{
		logger: deps.Logger.Named("api"),
		deps:   deps,
		opts:   apiOpts,
	}, nil
}

// Start starts the API server and blocks until the context is canceled or an error occurs.
func (a *APIServer) Start(ctx context.Context) error {
	mux := chi.NewMux()
	mux.Use(middleware.StripSlashes)

	if a.opts.CORS.Enabled {
		a.applyCORS(mux)
	}

	config := huma.DefaultConfig("mcpregd docs", cmd.Version())
	router := humachi.New(mux, config)

	// Configure the error handling wrapping.
	huma.NewErrorWithContext = errorHandler(a.logger)

	apiPathPrefix, err := api.RegisterRoutes(
		router,
		a.deps.Directory,
		a.deps.Registrar,
		a.deps.Caller,
		a.deps.CallTimeout,
	)
	if err != nil {
		return fmt.Errorf("failed to register API routes: %w", err)
	}

	srv := &http.Server{
		Addr:    a.deps.Addr,
		Handler: mux,
	}
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("Starting API server", "address", a.deps.Addr, "prefix", apiPathPrefix)
		if err := srv.ListenAndServe(); err != nil && !stdErrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Handle graceful shutdown.
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.opts.ShutdownTimeout)
		defer cancel()
		a.logger.Info("Shutting down API server...")
		_ = srv.Shutdown(shutdownCtx)
		a.logger.Info("Shutdown complete")
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// applyCORS applies CORS middleware to the router based on the configured options.
func (a *APIServer) applyCORS(mux *chi.Mux) {
	a.logger.Info("Enabling CORS", "origins", a.opts.CORS.AllowOrigins)

	corsOptions := cors.Options{
		AllowedOrigins:   a.opts.CORS.AllowOrigins,
		AllowedMethods:   a.opts.CORS.AllowMethods,
		AllowedHeaders:   a.opts.CORS.AllowedHeaders,
		ExposedHeaders:   a.opts.CORS.ExposedHeaders,
		AllowCredentials: a.opts.CORS.AllowCredentials,
		MaxAge:           int(a.opts.CORS.MaxAge.Seconds()),
	}

	// Handle wildcard origins properly.
	for i, origin := range corsOptions.AllowedOrigins {
		if origin == "*" {
			corsOptions.AllowedOrigins = []string{"*"}
			corsOptions.AllowCredentials = false
			break
		}
		corsOptions.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	mux.Use(cors.Handler(corsOptions))
}

// mapError maps application domain errors to appropriate HTTP status codes.
//
// This function is the central place where domain errors from internal/errors are converted to HTTP responses.
// When adding new errors to internal/errors/errors.go, you MUST add them here to prevent them from falling
// through to the default case which returns HTTP 500.
//
// NOTE: Keep this function in sync with internal/errors/errors.go.
// Every error defined there should have an explicit case here otherwise it will default to 500.
//
// Mapping guidelines:
//   - 400: Client errors (bad input, invalid requests)
//   - 403: Lease/ownership errors
//   - 404: Resource not found errors
//   - 409: Conflicts requiring a different request to resolve
//   - 502: Backend failures
//   - 503: Coordinator capacity errors
//   - 504: Backend deadline errors
//   - 500: Unexpected internal errors (default case)
//
// Don't forget to:
// 1. Add test cases to TestMapError (internal/daemon/api_server_test.go)
// 2. Update the documentation in internal/errors/errors.go
func mapError(logger hclog.Logger, err error) huma.StatusError {
	switch {
	case stdErrors.Is(err, errors.ErrValidation):
		return huma.Error400BadRequest(err.Error())
	case stdErrors.Is(err, errors.ErrInvalidLease):
		return huma.Error403Forbidden(err.Error())
	case stdErrors.Is(err, errors.ErrUnknownServer):
		return huma.Error404NotFound(err.Error())
	case stdErrors.Is(err, errors.ErrUnknownTool):
		return huma.Error404NotFound(err.Error())
	case stdErrors.Is(err, errors.ErrNameConflict):
		return huma.Error409Conflict(err.Error())
	case stdErrors.Is(err, errors.ErrPortConflict):
		return huma.Error409Conflict(err.Error())
	case stdErrors.Is(err, errors.ErrAmbiguousTool):
		return huma.Error409Conflict(err.Error())
	case stdErrors.Is(err, errors.ErrPortRangeExhausted):
		logger.Error("Port range exhausted", "error", err)
		return huma.Error503ServiceUnavailable(err.Error())
	case stdErrors.Is(err, errors.ErrTimeout):
		logger.Error("Backend deadline exceeded", "error", err)
		return huma.Error504GatewayTimeout(err.Error())
	case stdErrors.Is(err, errors.ErrToolCallFailed):
		logger.Error("Tool call failed", "error", err)
		return huma.Error502BadGateway("Backend error calling tool", err)
	case stdErrors.Is(err, errors.ErrTransport):
		logger.Error("Backend unreachable", "error", err)
		return huma.Error502BadGateway("Backend unreachable", err)
	default:
		logger.Error("Unexpected error", "error", err)
		return huma.Error500InternalServerError("Internal server error", err)
	}
}

// errorHandler wraps error handling for the application when converting to API friendly errors.
// It allows the logger to be supplied to functions that resolve huma.StatusError,
// and it supports different behaviors based on the variadic errors parameter.
func errorHandler(logger hclog.Logger) func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
	return func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		switch len(errs) {
		case 0:
			// No errors provided; return a generic error.
			return huma.NewError(status, msg)
		case 1:
			// Single error; map it directly.
			return mapError(logger, errs[0])
		default:
			// Multiple errors; join them and map.
			combinedErr := stdErrors.Join(errs...)
			return mapError(logger, combinedErr)
		}
	}
}
