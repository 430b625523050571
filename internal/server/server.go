// Package server exposes one run of a record store over a small JSON API:
// full-text search, document reassembly and bookmarks ("marks").
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/recordex/internal/store"
	"github.com/Aman-CERP/recordex/internal/telemetry"
)

// shutdownTimeout bounds how long in-flight requests may finish.
const shutdownTimeout = 5 * time.Second

// Config configures a Server.
type Config struct {
	// RunID selects the run every request reads and marks.
	RunID string

	// MaxLimit caps the limit query parameter of /api/search.
	MaxLimit int

	// CacheSize is the number of reassembled documents kept in memory.
	CacheSize int

	// CacheTTL expires cached documents; zero keeps them until evicted.
	CacheTTL time.Duration

	// RateLimit is the sustained /api request rate per second, with Burst
	// requests allowed above it. Zero disables limiting.
	RateLimit int
	Burst     int

	// Queries receives one event per answered search. Nil disables
	// query telemetry and /api/queries.
	Queries *telemetry.Collector
}

// docKey identifies one cached reassembly.
type docKey struct {
	docID    string
	maxChars int
}

// Server serves the search API for one run.
type Server struct {
	db     *store.DB
	cfg    Config
	logger *slog.Logger
	docs   *expirable.LRU[docKey, store.DocText]
	engine *gin.Engine
}

// New creates a Server. A nil logger means slog.Default().
func New(db *store.DB, cfg Config, logger *slog.Logger) *Server {
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 100
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		db:     db,
		cfg:    cfg,
		logger: logger.With(slog.String("run", cfg.RunID)),
		docs:   expirable.NewLRU[docKey, store.DocText](cfg.CacheSize, nil, cfg.CacheTTL),
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(s.logger), gin.Recovery(), noStore())

	api := r.Group("/api")
	if s.cfg.RateLimit > 0 {
		api.Use(rateLimit(s.cfg.RateLimit, s.cfg.Burst))
	}
	api.GET("/search", s.handleSearch)
	api.GET("/doc", s.handleDoc)
	api.POST("/mark", s.handleMark)
	api.GET("/marks", s.handleMarks)
	api.GET("/export", s.handleExport)
	api.GET("/stats", s.handleStats)
	if s.cfg.Queries != nil {
		api.GET("/queries", s.handleQueries)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server_listening", slog.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	if s.cfg.Queries != nil {
		g.Go(func() error {
			if err := s.cfg.Queries.Run(gctx); err != nil {
				s.logger.Warn("telemetry_flush_failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		s.logger.Info("server_stopped")
		return nil
	})

	return g.Wait()
}

// forgetDoc drops every cached reassembly of docID.
func (s *Server) forgetDoc(docID string) {
	for _, k := range s.docs.Keys() {
		if k.docID == docID {
			s.docs.Remove(k)
		}
	}
}
