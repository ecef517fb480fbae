package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "nicofit",
		Short: "Local-first workout log with a remote mirror",
		Long: `nicofit keeps the workout state on this machine, merges it with a
remote mirror on every save and suggests the next working set per exercise.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to config file")

	root.AddCommand(newStatusCmd(&configPath))
	root.AddCommand(newSyncCmd(&configPath))
	root.AddCommand(newLoginCmd(&configPath))
	root.AddCommand(newSuggestCmd(&configPath))
	root.AddCommand(newHistoryCmd(&configPath))
	root.AddCommand(newImportAlphaCmd(&configPath))
	root.AddCommand(newMCPCmd(&configPath))
	return root
}
