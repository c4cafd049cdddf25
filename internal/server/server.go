package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/monitoring"
	"github.com/ducminhle1904/crypto-sl-optimizer/internal/storage"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/optimization"
)

// Config configures the HTTP server
type Config struct {
	Addr  string
	Debug bool
}

// Server exposes search progress, stored runs, health and metrics over HTTP
type Server struct {
	cfg     Config
	engine  *gin.Engine
	tracker *optimization.ProgressTracker
	store   *storage.Store
	health  *monitoring.HealthChecker
}

// New creates a server. store may be nil, in which case the run endpoints
// answer 503.
func New(cfg Config, tracker *optimization.ProgressTracker, store *storage.Store, health *monitoring.HealthChecker) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if tracker == nil {
		tracker = optimization.DefaultTracker
	}
	if health == nil {
		health = monitoring.NewHealthChecker()
	}

	s := &Server{cfg: cfg, tracker: tracker, store: store, health: health}
	r := gin.New()
	r.Use(gin.Recovery(), LoggerMiddleware(cfg.Debug))
	s.setupRoutes(r)
	s.engine = r
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) setupRoutes(r *gin.Engine) {
	r.GET("/health", gin.WrapH(s.health))
	r.GET("/metrics", gin.WrapH(monitoring.NewMetricsHandler()))
	r.GET("/progress", s.getProgress)

	api := r.Group("/api")
	{
		api.GET("/progress", s.getProgress)
		api.GET("/runs", s.listRuns)
		api.GET("/runs/:id", s.getRun)
		api.GET("/runs/:id/trades", s.getTrades)
		api.DELETE("/runs/:id", s.deleteRun)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("🌐 HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			log.Error().Err(err).Msg("❌ HTTP server failed")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("❌ HTTP server shutdown failed")
		return err
	}
	log.Info().Msg("✅ HTTP server stopped")
	return nil
}

// LoggerMiddleware logs requests with zerolog. Unless logAll is set only
// responses with status >= 400 are logged.
func LoggerMiddleware(logAll bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		if !logAll && status < 400 {
			return
		}
		ev := log.Info()
		if status >= 500 {
			ev = log.Error()
		} else if status >= 400 {
			ev = log.Warn()
		}
		if msg := c.Errors.ByType(gin.ErrorTypePrivate).String(); msg != "" {
			ev = ev.Str("error", msg)
		}
		ev.Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client", c.ClientIP()).
			Str("method", c.Request.Method).
			Str("path", path).
			Msg("[GIN]")
	}
}
