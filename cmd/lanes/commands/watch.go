package commands

import (
	"encoding/json"
	"fmt"

	"github.com/dyluth/lanes/internal/printer"
	"github.com/dyluth/lanes/internal/render"
	"github.com/dyluth/lanes/internal/watch"
	"github.com/dyluth/lanes/pkg/board"
	"github.com/spf13/cobra"
)

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var (
		output string
		column string
		cardID string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream board changes as they happen",
		Long: `Stream board change events until interrupted.

Events are hints: Redis Pub/Sub drops them while a subscriber is
disconnected, so run 'lanes show' for the authoritative board.

Output Formats:
  default - Human-readable, one line per event
  json    - Line-delimited JSON for programmatic processing

Examples:
  lanes watch
  lanes watch --column done
  lanes watch --output=json > events.jsonl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "default" && output != "json" {
				return printer.Error(
					"invalid output format",
					fmt.Sprintf("Unknown format: %s", output),
					[]string{"Valid formats: default, json"},
				)
			}
			filter := watch.Filter{Column: board.ColumnID(column), CardID: cardID}
			if column != "" {
				if _, err := columnArg(column); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			s, err := openSession(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			sub, err := s.store.SubscribeEvents(ctx, s.scope)
			if err != nil {
				return printer.BoardError(err, s.scope)
			}
			defer sub.Close()

			if output == "default" {
				printer.Step("Watching board '%s' (Ctrl-C to stop)\n", s.scope)
			}

			enc := json.NewEncoder(s.out)
			err = watch.Stream(ctx, sub, filter, func(e board.Event) error {
				if output == "json" {
					return enc.Encode(e)
				}
				_, err := fmt.Fprintln(s.out, render.EventLine(e))
				return err
			}, s.log)
			if err != nil {
				return printer.BoardError(err, s.scope)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "default", "Output format (default or json)")
	cmd.Flags().StringVar(&column, "column", "", "Only show events for this column")
	cmd.Flags().StringVar(&cardID, "card", "", "Only show events for this card id")
	return cmd
}
