package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gookit/color"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/nfrund/parley/internal/app"
	"github.com/nfrund/parley/internal/config"
	"github.com/nfrund/parley/internal/database"
	"github.com/nfrund/parley/internal/logging"
)

var outputFormat string

var rootCmd = &cobra.Command{
	Use:   "parley-cli",
	Short: "Parley administration tool",
	Long: `parley-cli works directly against the configured store. It reads the same
environment (and .env file) as the server.

Available commands:
  user      Create, show and delete users
  token     Issue and verify access tokens
  history   Print the stored messages of a room
  version   Print the version number

Use "parley-cli [command] --help" for more information about a specific command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.Red.Sprintf("Error: %v", err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "table", "output format: table or json")
}

// withServices loads configuration, opens the stores and hands the service
// container to fn. The stores are closed when fn returns.
func withServices(fn func(ctx context.Context, cmd *cobra.Command, args []string, i do.Injector) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		if outputFormat != "table" && outputFormat != "json" {
			return fmt.Errorf("unknown format %q, expected table or json", outputFormat)
		}

		cfg, err := config.New()
		if err != nil {
			return err
		}
		// Keep logs out of the command output.
		logging.New(cfg.LogFormat, "error")

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		i := app.NewContainer(cfg)
		stores, err := do.Invoke[*database.Stores](i)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, stores.Close(context.Background()))
		}()

		return fn(ctx, cmd, args, i)
	}
}

func success(cmd *cobra.Command, format string, args ...any) {
	if outputFormat == "table" {
		fmt.Fprintln(cmd.OutOrStdout(), color.Green.Sprintf(format, args...))
	}
}
