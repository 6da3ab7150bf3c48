// Package server exposes habit ingestion and behavioral insights over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/habitsense/analytics"
	"github.com/hrygo/habitsense/internal/logging"
	"github.com/hrygo/habitsense/internal/profile"
	"github.com/hrygo/habitsense/plugin/coach"
	"github.com/hrygo/habitsense/server/metrics"
	"github.com/hrygo/habitsense/server/reportcache"
	"github.com/hrygo/habitsense/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	engine     *analytics.Engine
	reports    *reportcache.Cache
	coach      *coach.Coach
	metrics    *metrics.Exporter
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithClock replaces the wall clock used as the reference time of analyses.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// WithCoach replaces the coach built from the profile.
func WithCoach(c *coach.Coach) Option {
	return func(s *Server) {
		s.coach = c
	}
}

func NewServer(_ context.Context, profile *profile.Profile, store *store.Store, opts ...Option) (*Server, error) {
	if profile == nil || store == nil {
		return nil, errors.New("profile and store are required")
	}

	s := &Server{
		Profile: profile,
		Store:   store,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.metrics = metrics.NewExporter(metrics.DefaultConfig())
	s.engine = analytics.NewEngine(
		analytics.WithLogger(s.logger),
		analytics.WithRecorder(s.metrics),
	)
	if profile.ReportCacheSize > 0 {
		ttl := time.Duration(profile.ReportCacheTTL) * time.Second
		s.reports = reportcache.New(s.engine, profile.ReportCacheSize, ttl, s.metrics, s.logger)
	}
	if s.coach == nil {
		s.coach = coach.New(coach.ConfigFromProfile(profile), s.metrics, s.logger)
	}

	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: shortuuid.New,
	}))
	echoServer.Use(s.requestLogger)
	s.echoServer = echoServer

	s.registerRoutes()

	s.logger.Info("Server: initialized",
		"driver", profile.Driver,
		"trend_baseline", profile.TrendBaseline,
		"report_cache", profile.ReportCacheSize,
		"coach_enabled", s.coach.Enabled(),
	)
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echoServer.GET("/healthz", s.handleHealth)
	s.echoServer.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

	users := s.echoServer.Group("/api/v1/users/:user", middleware.CORS())
	users.GET("/habits", s.handleListHabits)
	users.POST("/habits", s.handleCreateHabit)
	users.PATCH("/habits/:uid", s.handleUpdateHabit)
	users.POST("/logs", s.handleCreateLog)
	users.POST("/events", s.handleCreateEvent)
	users.GET("/insights", s.handleInsights)
	users.POST("/coach", s.handleCoach)
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(_ context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", address)
	}

	go func() {
		if err := s.echoServer.Server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server: serve failed", "error", err)
		}
	}()
	s.logger.Info("Server: listening", "address", listener.Addr().String())
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		s.logger.Error("Server: failed to shutdown", "error", err)
	}
	if err := s.Store.Close(); err != nil {
		s.logger.Error("Server: failed to close store", "error", err)
	}
	s.logger.Info("Server: stopped")
}

// requestLogger attaches a request-scoped logger to the request context and logs the outcome.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		logger := s.logger.With("request_id", c.Response().Header().Get(echo.HeaderXRequestID))
		req := c.Request()
		c.SetRequest(req.WithContext(logging.ToContext(req.Context(), logger)))

		err := next(c)
		if err != nil {
			c.Error(err)
		}
		logger.Debug("Server: request",
			"method", req.Method,
			"uri", req.RequestURI,
			"status", c.Response().Status,
			"duration", time.Since(start),
		)
		return nil
	}
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.Store.GetDriver().GetDB().PingContext(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Version: s.Profile.Version})
	}
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Version: s.Profile.Version})
}
