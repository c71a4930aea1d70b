package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/zulandar/trendyard/internal/models"
	"github.com/zulandar/trendyard/internal/session"
)

func newRunCmd(configPath *string) *cobra.Command {
	var (
		query     string
		platforms []string
		sessionID string
		persona   string
		mode      string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Research trends for a query and stop for approval",
		Long: "Runs trend research for a query and stops at the approval checkpoint.\n" +
			"Continue with: ty decide <session> approve|refine|restart",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, *configPath, session.StartRequest{
				SessionID: sessionID,
				Query:     query,
				Platforms: platforms,
				Persona:   models.Persona(persona),
				Mode:      models.Mode(mode),
			})
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "topic or campaign to research (required)")
	cmd.Flags().StringSliceVarP(&platforms, "platform", "p", nil, "target platform, repeatable (default from config)")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id (default: generated)")
	cmd.Flags().StringVar(&persona, "persona", "", "prompt persona: author or founder")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "fast or deep (default from config)")
	cmd.MarkFlagRequired("query")
	return cmd
}

func runRun(cmd *cobra.Command, configPath string, req session.StartRequest) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(req.Platforms) == 0 {
		req.Platforms = a.cfg.Defaults.Platforms
	}
	if req.Mode == "" {
		req.Mode = models.Mode(a.cfg.Defaults.Mode)
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	p := newPrinter(cmd.OutOrStdout())
	if p.human {
		fmt.Fprintf(p.out, "Session %s\n", req.SessionID)
	}
	if err := a.session.StartRun(ctx, req, p.event); err != nil {
		return err
	}
	if p.human {
		fmt.Fprintf(p.out, "\nNext: ty decide %s approve\n", req.SessionID)
	}
	return nil
}
