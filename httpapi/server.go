// Package httpapi exposes a Service over HTTP with gin.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/poiesic/auditel"
)

const (
	// DefaultCookieName holds the session id.
	DefaultCookieName = "auditel_session"

	// DefaultSessionMaxAge is the session cookie lifetime.
	DefaultSessionMaxAge = 30 * 24 * time.Hour

	shutdownTimeout = 10 * time.Second
)

// ErrServiceRequired is returned when no Service is given.
var ErrServiceRequired = errors.New("service is required")

// Server routes HTTP requests to a Service.
type Server struct {
	svc        *auditel.Service
	engine     *gin.Engine
	cookieName string
	cookieAge  time.Duration
	logger     *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
	}
}

// WithSessionCookie sets the session cookie name and lifetime.
func WithSessionCookie(name string, maxAge time.Duration) Option {
	return func(s *Server) {
		if name != "" {
			s.cookieName = name
		}
		if maxAge > 0 {
			s.cookieAge = maxAge
		}
	}
}

// NewServer builds the router for svc.
func NewServer(svc *auditel.Service, opts ...Option) (*Server, error) {
	if svc == nil {
		return nil, ErrServiceRequired
	}
	s := &Server{
		svc:        svc,
		cookieName: DefaultCookieName,
		cookieAge:  DefaultSessionMaxAge,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "httpapi")

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.logger))
	r.Use(sessionCookie(s.cookieName, s.cookieAge))

	r.POST("/ask", s.ask)
	r.POST("/clear", s.clear)
	r.GET("/health", s.health)
	r.GET("/cache/stats", s.cacheStats)
	r.POST("/cache/clear", s.clearCache)
	r.POST("/cache/purge", s.purgeCache)
	r.POST("/scraping/test", s.scrapingTest)
	r.GET("/normativa/detail", s.detail)

	r.NoRoute(func(c *gin.Context) {
		RespondError(c, http.StatusNotFound, "Endpoint no encontrado")
	})
	s.engine = r
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
