package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"dnakit/internal/config"
	"dnakit/internal/domain"
	"dnakit/internal/logging"
	"dnakit/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Services are the collaborators the HTTP layer dispatches to.
type Services struct {
	Bookings domain.Reconciler
	Kits     domain.KitEditor
	Sessions *session.Parser
	// Ready backs /readyz; nil means always ready.
	Ready func(ctx context.Context) error
}

// HTTPServer exposes the booking table and the kit editor over HTTP.
type HTTPServer struct {
	cfg     *config.Config
	svc     Services
	logger  zerolog.Logger
	limiter *rateLimiter
	handler http.Handler
	server  *http.Server
	now     func() time.Time
}

func NewHTTPServer(cfg *config.Config, svc Services, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:     cfg,
		svc:     svc,
		logger:  logging.Component(logger, "http"),
		limiter: newRateLimiter(cfg.RateLimit),
		now:     time.Now,
	}
	srv.handler = otelhttp.NewHandler(srv.routes(), cfg.App.Name)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.handler,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	return srv
}

func (s *HTTPServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(loggingMiddleware(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(sessionAuth(s.svc.Sessions))
		r.Use(s.limiter.Middleware)

		r.Route("/my/bookings", func(r chi.Router) {
			r.Get("/", s.handleListBookings)
			r.Route("/{bookingId}", func(r chi.Router) {
				r.Post("/check-in", s.handleCheckIn)
				r.Post("/kit/receive", s.handleReceiveKit)
				r.Post("/kit/ship", s.handleShipKit)
				r.Post("/cancel", s.handleCancel)
				r.Get("/journal", s.handleJournal)
			})
		})

		r.Route("/kits", func(r chi.Router) {
			r.Use(requireRole(s.cfg.Auth.StaffRoles))
			r.Get("/", s.handleListKits)
			r.Post("/", s.handleCreateKit)
			r.Get("/export", s.handleExportKits)
			r.Put("/{kitId}/status", s.handleSetKitStatus)
		})
	})

	return r
}

// Handler returns the fully wrapped handler, mostly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return errors.New("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
