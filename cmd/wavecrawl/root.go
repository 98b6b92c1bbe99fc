// Package main provides the entry point for the wavecrawl CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for wavecrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wavecrawl",
		Short: "Wave-synchronized web crawler with word-frequency reports",
		Long: `wavecrawl crawls web sites breadth-first in synchronized depth waves and
reports the most frequent words on every page it visits.

Each crawl is bounded three ways: a maximum link depth from the seed, a
wall-clock time limit checked between waves, and an optional page budget.
Every run is saved locally, so repeated crawls of the same site can be
compared with 'wavecrawl history'.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
