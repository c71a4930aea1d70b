package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"github.com/zulandar/trendyard/internal/event"
	"github.com/zulandar/trendyard/internal/session"
)

func newDecideCmd(configPath *string) *cobra.Command {
	var (
		text   string
		toClip bool
	)

	cmd := &cobra.Command{
		Use:   "decide <session> approve|refine|restart",
		Short: "Approve, refine or restart a session waiting for approval",
		Long: "approve generates ideas from the stored research.\n" +
			"refine re-runs research with --text appended to the original query.\n" +
			"restart re-runs research with --text as the new query, or the original one.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := session.ParseAction(args[1])
			if err != nil {
				return err
			}
			return runDecide(cmd, *configPath, session.DecideRequest{
				SessionID: args[0],
				Action:    action,
				Text:      text,
			}, toClip)
		},
	}

	cmd.Flags().StringVarP(&text, "text", "t", "", "refinement text, or the new query for restart")
	cmd.Flags().BoolVar(&toClip, "copy", false, "copy the generated ideas to the clipboard")
	return cmd
}

func runDecide(cmd *cobra.Command, configPath string, req session.DecideRequest, toClip bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	p := newPrinter(cmd.OutOrStdout())
	sink := func(ev event.Event) error {
		if err := p.event(ev); err != nil {
			return err
		}
		if done, ok := ev.(event.Complete); ok && toClip {
			copyIdeas(cmd, done.Ideas)
		}
		return nil
	}
	return a.session.Decide(ctx, req, sink)
}

// copyIdeas puts the ideas on the clipboard. A missing clipboard is only a
// warning.
func copyIdeas(cmd *cobra.Command, ideas map[string][]string) {
	if err := clipboard.WriteAll(ideasText(ideas)); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: copy to clipboard: %v\n", err)
		return
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Ideas copied to clipboard.")
}
