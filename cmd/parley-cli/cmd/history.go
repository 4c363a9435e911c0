package cmd

import (
	"context"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/nfrund/parley/cmd/parley-cli/internal/format"
	"github.com/nfrund/parley/internal/chat"
)

var (
	historyLimit int
	historySkip  int
)

var historyCmd = &cobra.Command{
	Use:   "history <room>",
	Short: "Print stored messages of a room, oldest first",
	Long: `Prints one page of a room's history the way clients receive it.
--skip counts messages back from the newest one.

Examples:
  parley-cli history lobby                 # latest page
  parley-cli history lobby --limit 20 --skip 20
  parley-cli history lobby --format json`,
	Args: cobra.ExactArgs(1),
	RunE: withServices(func(ctx context.Context, cmd *cobra.Command, args []string, i do.Injector) error {
		history, err := do.Invoke[*chat.History](i)
		if err != nil {
			return err
		}
		page, err := history.Fetch(ctx, args[0], historyLimit, historySkip)
		if err != nil {
			return err
		}

		if outputFormat == "json" {
			return format.JSON(cmd.OutOrStdout(), page)
		}
		if len(page) == 0 {
			success(cmd, "No messages in %s", args[0])
			return nil
		}
		format.Messages(cmd.OutOrStdout(), page)
		return nil
	}),
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "page size; 0 selects HISTORY_DEFAULT_LIMIT")
	historyCmd.Flags().IntVar(&historySkip, "skip", 0, "number of newest messages to skip")
	rootCmd.AddCommand(historyCmd)
}
