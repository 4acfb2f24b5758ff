// Package server exposes a bootstrapped backend over HTTP. Every endpoint is
// read-only.
package server

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/dbstarter/internal/metrics"
	"github.com/mesh-intelligence/dbstarter/internal/sqlite"
	"github.com/mesh-intelligence/dbstarter/pkg/types"
	"github.com/mesh-intelligence/dbstarter/pkg/version"
)

// RequestIDHeader carries the per-request id.
const RequestIDHeader = "X-Request-ID"

// Backend is the part of *sqlite.Backend the server reads from.
type Backend interface {
	DB() (*sql.DB, error)
	Databases(ctx context.Context) ([]sqlite.DatabaseInfo, error)
	Tables(ctx context.Context) ([]sqlite.TableInfo, error)
	Views(ctx context.Context) ([]sqlite.ViewInfo, error)
	MetaRows(ctx context.Context) ([]types.MetaRecord, error)
	MetaHistory(ctx context.Context) ([]types.MetaHistoryRecord, error)
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	RunID     string    `json:"run_id,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// MetaResponse is returned by GET /meta.
type MetaResponse struct {
	Meta         *types.MetaRecord         `json:"meta"`
	HistoryCount int                       `json:"history_count"`
	History      []types.MetaHistoryRecord `json:"history,omitempty"`
}

// InventoryResponse is returned by GET /inventory.
type InventoryResponse struct {
	Databases []sqlite.DatabaseInfo `json:"databases"`
	Tables    []sqlite.TableInfo    `json:"tables"`
	Views     []sqlite.ViewInfo     `json:"views"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server serves status endpoints for one backend.
type Server struct {
	backend Backend
	metrics *metrics.Metrics
	logger  *zap.Logger
	runID   string
	router  *gin.Engine
}

// New builds the router. m may be nil, in which case /metrics is not
// registered.
func New(backend Backend, m *metrics.Metrics, logger *zap.Logger, runID string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		backend: backend,
		metrics: m,
		logger:  logger.Named("server"),
		runID:   runID,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(s.accessLog())
	if m != nil {
		router.Use(m.Middleware())
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}
	router.GET("/healthz", s.health)
	router.GET("/meta", s.meta)
	router.GET("/inventory", s.inventory)
	s.router = router
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.logger.Info("status server stopped")
		return nil
	}
}

func (s *Server) health(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   version.Version,
		RunID:     s.runID,
	}

	db, err := s.backend.DB()
	if err == nil {
		err = db.PingContext(c.Request.Context())
	}
	if err != nil {
		resp.Status = "unhealthy"
		resp.Message = err.Error()
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) meta(c *gin.Context) {
	if !s.usable(c) {
		return
	}
	ctx := c.Request.Context()

	rows, err := s.backend.MetaRows(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	history, err := s.backend.MetaHistory(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := MetaResponse{HistoryCount: len(history)}
	if len(rows) > 1 {
		s.fail(c, types.ErrLedgerCorrupt)
		return
	}
	if len(rows) == 1 {
		resp.Meta = &rows[0]
	}
	if c.Query("history") == "true" {
		resp.History = history
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) inventory(c *gin.Context) {
	if !s.usable(c) {
		return
	}
	ctx := c.Request.Context()

	var (
		resp InventoryResponse
		err  error
	)
	if resp.Databases, err = s.backend.Databases(ctx); err != nil {
		s.fail(c, err)
		return
	}
	if resp.Tables, err = s.backend.Tables(ctx); err != nil {
		s.fail(c, err)
		return
	}
	if resp.Views, err = s.backend.Views(ctx); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// usable writes 503 and returns false when the backend refuses access.
func (s *Server) usable(c *gin.Context) bool {
	if _, err := s.backend.DB(); err != nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return false
	}
	return true
}

func (s *Server) fail(c *gin.Context, err error) {
	s.logger.Error("request failed",
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", c.GetString(RequestIDHeader)),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

// requestID reuses the caller's X-Request-ID or generates one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(RequestIDHeader, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", c.GetString(RequestIDHeader)))
	}
}
