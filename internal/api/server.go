// Package api serves decision synthesis over HTTP: POST /synthesize, plus
// /health and Prometheus /metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kingrea/warroom/internal/metrics"
	"github.com/kingrea/warroom/internal/synthesis"
)

// Version is reported by /health.
const Version = "1.0.0"

// ServerStatus reports runtime lifecycle states for the HTTP server.
type ServerStatus string

const (
	StatusStarting ServerStatus = "starting"
	StatusReady    ServerStatus = "ready"
	StatusDraining ServerStatus = "draining"
)

// Server wraps the echo router and the listener behind it.
type Server struct {
	settings Settings
	synth    synthesis.Synthesizer
	logger   *zap.Logger
	metrics  *metrics.Metrics
	clock    func() time.Time
	echo     *echo.Echo

	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	status    ServerStatus
	startTime time.Time
}

// Option customizes server construction.
type Option func(*Server)

// WithLogger overrides the default no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records request counters and exposes /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithClock allows tests to control timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// NewServer prepares a server that answers with synth. A nil synthesizer
// answers every request with 500.
func NewServer(settings Settings, synth synthesis.Synthesizer, opts ...Option) *Server {
	settings.normalize()
	if synth == nil {
		synth = synthesis.Disabled{}
	}
	s := &Server{
		settings: settings,
		synth:    synth,
		logger:   zap.NewNop(),
		clock:    time.Now,
		status:   StatusStarting,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestLog)
	s.echo = e
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.HEAD("/health", s.handleHealth)
	s.echo.POST("/synthesize", s.handleSynthesize)
	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}
}

func (s *Server) requestLog(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		duration := time.Since(start)
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveHTTP(c.Request().Method, route, c.Response().Status, duration)
		s.logger.Info("http request",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", duration),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		)
		return nil
	}
}

// Handler exposes the router for in-process use and tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start binds the TCP listener and begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("api: server is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("api: server already started")
	}
	addr := s.settings.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api: listen %s: %w", addr, err)
	}
	s.listener = listener
	s.startTime = s.clock()
	server := &http.Server{
		Handler:      s.echo,
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		IdleTimeout:  s.settings.IdleTimeout,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.server = server
	s.status = StatusReady
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api: serve error", zap.Error(err))
		}
	}()
	s.logger.Info("api: listening", zap.String("addr", listener.Addr().String()))
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight requests to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	s.status = StatusDraining
	deadline := ctx
	if deadline == nil {
		var cancel context.CancelFunc
		deadline, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	s.logger.Info("api: shutting down")
	if err := s.server.Shutdown(deadline); err != nil {
		return err
	}
	s.listener = nil
	s.server = nil
	return nil
}

// Addr returns the bound TCP address once the server has started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the HTTP base URL (scheme + host:port) for the running server.
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		return s.settings.URL()
	}
	return "http://" + addr
}

// Status reports the server's lifecycle state.
func (s *Server) Status() ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Server) uptimeSeconds() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startTime.IsZero() {
		return 0
	}
	return int64(s.clock().Sub(s.startTime).Seconds())
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:        string(s.Status()),
		Version:       Version,
		UptimeSeconds: s.uptimeSeconds(),
	})
}

// handleSynthesize rejects malformed input before any model call; backend
// and parse failures surface as 500 with the error text.
func (s *Server) handleSynthesize(c echo.Context) error {
	req := c.Request()
	if req.Body == nil {
		return c.JSON(http.StatusBadRequest, synthesis.Response{Error: "empty body"})
	}
	reader := http.MaxBytesReader(c.Response(), req.Body, s.settings.MaxBodyBytes)
	defer reader.Close()
	body, err := io.ReadAll(reader)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return c.JSON(http.StatusRequestEntityTooLarge, synthesis.Response{Error: "payload exceeds limit"})
		}
		return c.JSON(http.StatusBadRequest, synthesis.Response{Error: "unable to read body"})
	}
	var in synthesis.Request
	if err := json.Unmarshal(body, &in); err != nil {
		s.logger.Warn("invalid synthesize request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, synthesis.Response{Error: "Invalid JSON body"})
	}
	if strings.TrimSpace(in.DirectiveText) == "" {
		return c.JSON(http.StatusBadRequest, synthesis.Response{Error: "directiveText is required"})
	}

	summary, err := s.synth.Synthesize(req.Context(), in.DirectiveText, in.History)
	if err != nil {
		s.logger.Warn("synthesis failed",
			zap.Error(err),
			zap.String("result", synthesis.Describe(err)),
			zap.Int("turns", len(in.History)),
		)
		return c.JSON(http.StatusInternalServerError, synthesis.Response{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, synthesis.Response{Summary: &summary})
}
