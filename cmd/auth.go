package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gokturkhatay/smartinbox/internal/google"
)

func newAuthCmd() *cobra.Command {
	var (
		account  string
		authCode string
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize a Google account for Gmail access",
		Long: `Run the Google OAuth flow for an account and store the resulting token
in the local cache (~/.cache/smartinbox/).

Without --code the command prints the authorization URL, waits for the
code on stdin and then exchanges it. With --code the exchange happens
immediately, which is handy for scripted setups:

  smartinbox auth --account work
  smartinbox auth --account work --code 4/0Af...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if google.HasTokenForAccount(account) && !force {
				fmt.Fprintf(cmd.OutOrStdout(), "Account %q already has a stored token. Use --force to re-authorize.\n", account)
				return nil
			}

			if authCode == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Open the following URL in a browser and approve access:\n\n  %s\n\n", google.GetAuthURLForAccount(account))
				fmt.Fprint(cmd.OutOrStdout(), "Enter the authorization code: ")
				reader := bufio.NewReader(os.Stdin)
				line, err := reader.ReadString('\n')
				if err != nil {
					return fmt.Errorf("failed to read authorization code: %w", err)
				}
				authCode = strings.TrimSpace(line)
				if authCode == "" {
					return fmt.Errorf("no authorization code entered")
				}
			}

			if err := google.SaveTokenForAccount(ctx, account, authCode); err != nil {
				return fmt.Errorf("failed to save token for account %s: %w", account, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Token stored for account %q.\n", account)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "default", "Google account name to authorize (default: 'default')")
	cmd.Flags().StringVar(&authCode, "code", "", "Authorization code obtained from the Google consent page")
	cmd.Flags().BoolVar(&force, "force", false, "Re-authorize even if a token is already stored")

	return cmd
}
