// Package cli implements the seed command line tool: loading fixture
// addresses into a running server and minting bearer tokens for it.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Address book seeding and token tool",
		Long: `seed loads fixture addresses into a running address book server
and mints bearer tokens for servers started with AUTH_JWT_SECRET.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(newLoadCmd())
	cmd.AddCommand(newTokenCmd())
	return cmd
}

// Root returns the root command.
func Root() *cobra.Command {
	return rootCmd
}
