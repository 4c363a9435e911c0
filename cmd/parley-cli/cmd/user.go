package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/nfrund/parley/cmd/parley-cli/internal/format"
	"github.com/nfrund/parley/internal/account"
	"github.com/nfrund/parley/internal/database"
	"github.com/nfrund/parley/internal/domain"
)

var (
	createEmail    string
	createName     string
	createPassword string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
	Long: `Create, inspect and delete users in the configured store.

Examples:
  parley-cli user create --email ann@example.com --name Ann --password secret123
  parley-cli user show ann@example.com
  parley-cli user delete 0190f4c6-...`,
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a new user",
	Args:  cobra.NoArgs,
	RunE: withServices(func(ctx context.Context, cmd *cobra.Command, _ []string, i do.Injector) error {
		accounts, err := do.Invoke[*account.Service](i)
		if err != nil {
			return err
		}
		session, err := accounts.Signup(ctx, account.SignupInput{
			Email:    createEmail,
			Password: createPassword,
			Name:     createName,
		})
		if err != nil {
			return err
		}

		if outputFormat == "json" {
			return format.JSON(cmd.OutOrStdout(), session)
		}
		success(cmd, "User %s created", session.User.Email)
		format.Users(cmd.OutOrStdout(), session.User)
		return nil
	}),
}

var userShowCmd = &cobra.Command{
	Use:   "show <id|email>",
	Short: "Show a user by id or email",
	Args:  cobra.ExactArgs(1),
	RunE: withServices(func(ctx context.Context, cmd *cobra.Command, args []string, i do.Injector) error {
		stores, err := do.Invoke[*database.Stores](i)
		if err != nil {
			return err
		}
		user, err := lookupUser(ctx, stores.Users, args[0])
		if err != nil {
			return err
		}

		if outputFormat == "json" {
			return format.JSON(cmd.OutOrStdout(), user)
		}
		format.Users(cmd.OutOrStdout(), user)
		return nil
	}),
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete <id|email>",
	Short: "Delete a user. Their messages stay in history.",
	Args:  cobra.ExactArgs(1),
	RunE: withServices(func(ctx context.Context, cmd *cobra.Command, args []string, i do.Injector) error {
		stores, err := do.Invoke[*database.Stores](i)
		if err != nil {
			return err
		}
		accounts, err := do.Invoke[*account.Service](i)
		if err != nil {
			return err
		}
		user, err := lookupUser(ctx, stores.Users, args[0])
		if err != nil {
			return err
		}
		if err := accounts.Delete(ctx, user.ID); err != nil {
			return err
		}
		success(cmd, "User %s deleted", user.Email)
		return nil
	}),
}

// lookupUser treats a key containing "@" as an email address.
func lookupUser(ctx context.Context, users domain.UserDirectory, key string) (*domain.User, error) {
	var (
		user *domain.User
		err  error
	)
	if strings.Contains(key, "@") {
		user, err = users.FindUserByEmail(ctx, domain.NormalizeEmail(key))
	} else {
		user, err = users.FindUserByID(ctx, key)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return nil, errors.New("user not found: " + key)
	}
	return user, err
}

func init() {
	userCreateCmd.Flags().StringVar(&createEmail, "email", "", "email address (required)")
	userCreateCmd.Flags().StringVar(&createName, "name", "", "display name (required)")
	userCreateCmd.Flags().StringVar(&createPassword, "password", "", "password, at least 6 characters (required)")
	_ = userCreateCmd.MarkFlagRequired("email")
	_ = userCreateCmd.MarkFlagRequired("name")
	_ = userCreateCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userCreateCmd, userShowCmd, userDeleteCmd)
	rootCmd.AddCommand(userCmd)
}
