// Package server exposes the engine over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/morozRed/medkb/internal/config"
	"github.com/morozRed/medkb/internal/engine"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	engine  *engine.Engine
	logger  *zap.Logger
	cfg     config.ServerConfig
	limiter *rate.Limiter
}

func New(eng *engine.Engine, cfg config.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	burst := cfg.MutationBurst
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(cfg.MutationRate)
	if cfg.MutationRate <= 0 {
		limit = rate.Inf
	}
	return &Server{
		engine:  eng,
		logger:  logger,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Handler builds the gin router with every route registered.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog(s.logger))
	RegisterRoutes(router, NewHandlers(s.engine, s.logger), s.limiter)
	return router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}
