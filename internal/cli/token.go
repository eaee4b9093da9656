package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/utafrali/AddressBook/internal/auth"
)

type tokenOptions struct {
	secret  string
	issuer  string
	subject string
	ttl     time.Duration
}

func newTokenCmd() *cobra.Command {
	opts := tokenOptions{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for mutating routes",
		Long: `Mint an HS256 bearer token accepted by a server started with the same
AUTH_JWT_SECRET and AUTH_ISSUER. The token is printed to stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.secret == "" {
				return fmt.Errorf("--secret is required")
			}
			token, err := auth.NewJWTManager(opts.secret, opts.issuer).
				GenerateToken(opts.subject, auth.ScopeWrite, opts.ttl)
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.secret, "secret", "", "signing secret (AUTH_JWT_SECRET of the server)")
	cmd.Flags().StringVar(&opts.issuer, "issuer", "addressbook", "token issuer (AUTH_ISSUER of the server)")
	cmd.Flags().StringVar(&opts.subject, "subject", "seed", "token subject")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
