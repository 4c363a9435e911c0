package cmd

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/nfrund/parley/cmd/parley-cli/internal/format"
	"github.com/nfrund/parley/internal/auth"
	"github.com/nfrund/parley/internal/database"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue and verify access tokens",
	Long: `Tokens are signed with JWT_SECRET, so issue and verify only agree with a
server that runs with the same secret.`,
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue <id|email>",
	Short: "Issue an access token for an existing user",
	Args:  cobra.ExactArgs(1),
	RunE: withServices(func(ctx context.Context, cmd *cobra.Command, args []string, i do.Injector) error {
		stores, err := do.Invoke[*database.Stores](i)
		if err != nil {
			return err
		}
		tokens, err := do.Invoke[*auth.TokenService](i)
		if err != nil {
			return err
		}
		user, err := lookupUser(ctx, stores.Users, args[0])
		if err != nil {
			return err
		}
		token, err := tokens.Issue(user.ID)
		if err != nil {
			return err
		}

		if outputFormat == "json" {
			return format.JSON(cmd.OutOrStdout(), map[string]string{"token": token})
		}
		success(cmd, "Token for %s, valid for %s:", user.Email, tokens.TTL())
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	}),
}

var tokenVerifyCmd = &cobra.Command{
	Use:   "verify <token>",
	Short: "Check a token and show the user it belongs to",
	Args:  cobra.ExactArgs(1),
	RunE: withServices(func(ctx context.Context, cmd *cobra.Command, args []string, i do.Injector) error {
		authenticator, err := do.Invoke[*auth.Authenticator](i)
		if err != nil {
			return err
		}
		user, err := authenticator.Authenticate(ctx, args[0])
		if err != nil {
			return err
		}

		if outputFormat == "json" {
			return format.JSON(cmd.OutOrStdout(), user.Profile())
		}
		success(cmd, "Token is valid")
		format.Users(cmd.OutOrStdout(), user)
		return nil
	}),
}

func init() {
	tokenCmd.AddCommand(tokenIssueCmd, tokenVerifyCmd)
	rootCmd.AddCommand(tokenCmd)
}
