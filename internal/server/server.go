// Package server exposes sessions over HTTP. Runs stream back as
// server-sent events.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/trendyard/internal/logging"
	"github.com/zulandar/trendyard/internal/models"
	"github.com/zulandar/trendyard/internal/session"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Sessions is the session API the handlers drive. *session.Service
// implements it.
type Sessions interface {
	StartRun(ctx context.Context, req session.StartRequest, sink session.Sink) error
	Decide(ctx context.Context, req session.DecideRequest, sink session.Sink) error
	Get(ctx context.Context, id string) (*models.Session, []models.Message, error)
	Reset(ctx context.Context, id, query string) (*models.Session, error)
	PendingApproval(ctx context.Context, id string) (*models.PendingApproval, error)
}

// Opts configures the HTTP server.
type Opts struct {
	Sessions         Sessions
	Port             int
	AllowedOrigins   []string
	DefaultPlatforms []string
	DefaultMode      models.Mode
	Logger           *zap.Logger
}

// Handler builds the router.
func Handler(opts Opts) (http.Handler, error) {
	if opts.Sessions == nil {
		return nil, errors.New("server: sessions are required")
	}
	if opts.DefaultMode == "" {
		opts.DefaultMode = models.ModeDeep
	}
	log := logging.OrNop(opts.Logger)

	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog(log), cors(opts.AllowedOrigins))
	registerRoutes(router, &handlers{
		sessions:         opts.Sessions,
		defaultPlatforms: opts.DefaultPlatforms,
		defaultMode:      opts.DefaultMode,
		log:              log,
	})
	return router, nil
}

// Start serves the API until ctx is cancelled, then shuts down gracefully.
func Start(ctx context.Context, opts Opts) error {
	if opts.Port <= 0 {
		opts.Port = 8000
	}
	gin.SetMode(gin.ReleaseMode)
	handler, err := Handler(opts)
	if err != nil {
		return err
	}
	log := logging.OrNop(opts.Logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("server shutdown", zap.Error(err))
		}
	}()

	log.Info("server listening", zap.Int("port", opts.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	<-done
	return nil
}
