// Package api exposes the app over HTTP with gin. Routes are declared in a
// single table and registered at startup.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tunefriends/internal/app"
	apperrors "tunefriends/internal/errors"
)

const sessionCookie = "session"

type Options struct {
	// RateLimit is the sustained requests per second allowed per client.
	// Zero disables limiting.
	RateLimit    float64
	RateBurst    int
	SecureCookie bool
	Logger       *slog.Logger
}

type Server struct {
	app     *app.App
	log     *slog.Logger
	limiter *RateLimiter
	metrics *Metrics
	secure  bool
}

// NewRouter builds the gin engine serving every route plus /health and
// /metrics.
func NewRouter(a *app.App, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{
		app:     a,
		log:     opts.Logger,
		limiter: NewRateLimiter(opts.RateLimit, opts.RateBurst),
		metrics: NewMetrics(),
		secure:  opts.SecureCookie,
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.metrics.Middleware(), s.limiter.Middleware())
	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	for _, route := range s.routes() {
		r.Handle(route.Method, route.Path, s.wrap(route))
	}
	r.NoRoute(func(c *gin.Context) {
		s.fail(c, apperrors.NotFound(fmt.Sprintf("No route for %s %s!", c.Request.Method, c.Request.URL.Path)))
	})
	return r
}

// Serve runs an HTTP server for handler until ctx is cancelled, then shuts
// it down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, log *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	if err := s.app.Ping(c.Request.Context()); err != nil {
		s.log.WarnContext(c.Request.Context(), "health check failed", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fail writes err as {"msg", "code"} with the status of its kind.
func (s *Server) fail(c *gin.Context, err error) {
	ctx := c.Request.Context()
	resolved := s.app.Resolve(ctx, err)
	if resolved.Kind == apperrors.KindUnavailable {
		s.log.ErrorContext(ctx, "request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
	}
	c.AbortWithStatusJSON(resolved.Kind.HTTPStatus(), gin.H{"msg": resolved.Message, "code": resolved.Code})
}
