package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/trendyard/internal/models"
	"github.com/zulandar/trendyard/internal/server"
	"github.com/zulandar/trendyard/internal/sweeper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(configPath *string) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the approval sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, *configPath, port)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default from config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if port <= 0 {
		port = a.cfg.Server.Port
	}

	sw, err := sweeper.New(sweeper.Opts{
		DB:       a.db,
		Schedule: a.cfg.Sweeper.Schedule,
		TTL:      a.cfg.Sweeper.ApprovalTTL,
		Logger:   a.log,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx, server.Opts{
			Sessions:         a.session,
			Port:             port,
			AllowedOrigins:   a.cfg.Server.AllowedOrigins,
			DefaultPlatforms: a.cfg.Defaults.Platforms,
			DefaultMode:      models.Mode(a.cfg.Defaults.Mode),
			Logger:           a.log,
		})
	})
	g.Go(func() error {
		return sw.Run(gctx)
	})

	err = g.Wait()
	a.log.Info("shut down", zap.Error(err))
	return err
}
