package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newSessionCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and reset sessions",
	}
	cmd.AddCommand(newSessionShowCmd(configPath))
	cmd.AddCommand(newSessionResetCmd(configPath))
	return cmd
}

func newSessionShowCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a session and its transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			sess, msgs, err := a.session.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return newPrinter(cmd.OutOrStdout()).session(sess, msgs)
		},
	}
}

func newSessionResetCmd(configPath *string) *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "reset <id>",
		Short: "Clear a session's results and transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := a.session.Reset(ctx, args[0], query)
			if err != nil {
				return err
			}
			p := newPrinter(cmd.OutOrStdout())
			if !p.human {
				return p.value(sess)
			}
			fmt.Fprintf(p.out, "Session %s reset (status %s)\n", sess.SessionID, sess.Status)
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "replace the stored query")
	return cmd
}
