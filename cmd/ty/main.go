package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "ty",
		Short:         "Trendyard: trend research and content ideas",
		Long:          "Trendyard researches what is trending for a topic, waits for your approval, then drafts post ideas per platform.",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "trendyard.yaml", "path to Trendyard config file")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd(&configPath))
	cmd.AddCommand(newServeCmd(&configPath))
	cmd.AddCommand(newRunCmd(&configPath))
	cmd.AddCommand(newDecideCmd(&configPath))
	cmd.AddCommand(newSessionCmd(&configPath))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ty %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
