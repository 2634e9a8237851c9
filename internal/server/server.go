package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lessonsync-api/internal/bootstrap"
)

const shutdownTimeout = 10 * time.Second

// Server owns the HTTP listener and the dependency graph behind it.
type Server struct {
	deps   *bootstrap.Dependencies
	http   *http.Server
	logger *zap.Logger
}

// New prepares the listener on the configured port.
func New(deps *bootstrap.Dependencies) *Server {
	return &Server{
		deps:   deps,
		logger: deps.Logger,
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", deps.Config.Port),
			Handler:           deps.Router(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Run serves until ctx is cancelled or the listener fails, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.deps.Start(ctx)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.http.Addr), zap.String("env", s.deps.Config.Env))
		serverErrors <- s.http.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			s.deps.Close()
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutdown requested")
	}
	return s.Shutdown()
}

// Shutdown stops accepting requests, waits for in-flight ones, then drains notifications
// and closes connections.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.http.Shutdown(ctx)
	if err != nil {
		s.logger.Error("http shutdown failed", zap.Error(err))
	}
	s.deps.Close()
	s.logger.Info("server stopped")
	return err
}
