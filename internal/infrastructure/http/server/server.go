package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"selsup/crptgateway/internal/infrastructure/config"
	httperrors "selsup/crptgateway/internal/infrastructure/http"
	"selsup/crptgateway/internal/infrastructure/http/middleware"
)

// Server exposes the gateway API over HTTP.
type Server struct {
	cfg        config.AppConfig
	log        *slog.Logger
	httpServer *http.Server
	auth       *middleware.JWTAuthenticator
}

// Options wires the handlers into the router. Any nil submission handler
// answers 503 so the route table stays stable.
type Options struct {
	Config         config.AppConfig
	Logger         *slog.Logger
	HealthHandler  http.Handler
	MetricsHandler http.Handler
	SubmitHandler  http.Handler
	BatchHandler   http.Handler
}

func New(opts Options) (*Server, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.HealthHandler == nil {
		return nil, errors.New("health handler is required")
	}

	auth, err := middleware.NewJWTAuthenticator(opts.Config.Auth, opts.Logger)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(opts.Logger))
	r.Use(auth.Middleware)

	r.Method(http.MethodGet, "/health", opts.HealthHandler)
	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	unavailable := unavailableHandler(opts.Logger)
	r.Route("/api/v1/documents", func(r chi.Router) {
		r.Use(middleware.Deadline(opts.Config.HTTP.WriteTimeout))
		r.Method(http.MethodPost, "/", orDefault(opts.SubmitHandler, unavailable))
		r.Method(http.MethodPost, "/batch", orDefault(opts.BatchHandler, unavailable))
	})

	srv := &http.Server{
		Addr:         opts.Config.HTTP.Address(),
		Handler:      r,
		ReadTimeout:  opts.Config.HTTP.ReadTimeout,
		WriteTimeout: opts.Config.HTTP.WriteTimeout,
		IdleTimeout:  opts.Config.HTTP.IdleTimeout,
	}

	return &Server{cfg: opts.Config, log: opts.Logger, httpServer: srv, auth: auth}, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests for at
// most ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server started", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutting down HTTP server", "timeout", s.cfg.HTTP.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Close releases the JWKS refresher.
func (s *Server) Close() {
	s.auth.Close()
}

func orDefault(h, fallback http.Handler) http.Handler {
	if h == nil {
		return fallback
	}
	return h
}

func unavailableHandler(log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httperrors.WriteError(w, http.StatusServiceUnavailable, "Service unavailable", []string{"document submission is not configured"}, log)
	})
}
