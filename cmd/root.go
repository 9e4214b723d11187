// Package cmd wires the token server's command-line surface, grounded on
// cmd/warden.go's root-command shape: a cobra.Command tree with one
// subcommand that actually runs the server.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/HaKr/token-server/cmd/server"
)

var rootCmd = &cobra.Command{
	Use:   "token-server",
	Short: "A one-shot token exchange service",
	Long: `token-server issues short-lived, single-use tokens and lets callers
exchange a live token for its successor in one atomic step. Every
presented token either rotates exactly once or is rejected outright;
there is no way to read a token's metadata without consuming it.`,
}

// Execute runs the root command under a context that cancels on SIGINT or
// SIGTERM, printing any returned error to stderr and exiting non-zero.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(server.ServerCmd)
}
