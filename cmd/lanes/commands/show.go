package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/lanes/internal/filter"
	"github.com/dyluth/lanes/internal/printer"
	"github.com/dyluth/lanes/internal/render"
	"github.com/dyluth/lanes/internal/watch"
	"github.com/dyluth/lanes/pkg/board"
	"github.com/spf13/cobra"
)

func newShowCmd(opts *globalOptions) *cobra.Command {
	var (
		output   string
		criteria filter.Criteria
		column   string
		follow   bool
	)

	cmd := &cobra.Command{
		Use:   "show [CARD_ID]",
		Short: "Display the board or one card",
		Long: `Display the board.

Board Mode (no CARD_ID):
  Every column in pipeline order, as a table, JSON, or JSONL stream.
  --column, --title, --tag and --assignee narrow the cards shown.
  --follow redraws the board whenever it changes, until interrupted.

Card Mode (with CARD_ID):
  One card as pretty-printed JSON. Accepts a unique id prefix.

Examples:
  lanes show
  lanes show --output=jsonl | jq 'select(.column=="done") | .title'
  lanes show --tag ui --assignee Alice
  lanes show --title "*export*"
  lanes show 0f8e2a`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := render.ParseFormat(output)
			if err != nil {
				return printer.Error("invalid output format", err.Error(), []string{"Valid formats: table, json, jsonl"})
			}
			criteria.Column = board.ColumnID(column)
			if err := criteria.Validate(); err != nil {
				return printer.Error("invalid filter", err.Error(), nil)
			}

			s, err := openSession(cmd.Context(), cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			b, err := s.store.GetBoard(cmd.Context(), s.scope)
			if err != nil {
				return printer.BoardError(err, s.scope)
			}

			if len(args) == 0 {
				if follow {
					return followBoard(cmd.Context(), s, criteria, format)
				}
				if criteria.HasFilters() {
					b = criteria.Apply(b)
				}
				return render.Board(s.out, b, format)
			}

			m, err := resolveCard(b, args[0], s.scope)
			if err != nil {
				return err
			}
			return render.CardJSON(s.out, m.Column, m.Card)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", string(render.FormatTable), "Output format: table, json or jsonl (board mode)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Redraw the board on every change (board mode)")
	cmd.Flags().StringVar(&column, "column", "", "Only show cards in this column")
	cmd.Flags().StringVar(&criteria.TitleGlob, "title", "", "Only show cards whose title matches this glob (case-insensitive)")
	cmd.Flags().StringVar(&criteria.Tag, "tag", "", "Only show cards with this tag")
	cmd.Flags().StringVar(&criteria.Assignee, "assignee", "", "Only show cards assigned to this name")
	return cmd
}

// followBoard renders the board, then re-renders after each change event.
// Events only trigger a refetch, so a dropped event delays but never corrupts the view.
func followBoard(ctx context.Context, s *session, criteria filter.Criteria, format render.Format) error {
	sub, err := s.store.SubscribeEvents(ctx, s.scope)
	if err != nil {
		return printer.BoardError(err, s.scope)
	}
	defer sub.Close()

	if err := s.load(ctx); err != nil {
		return err
	}
	draw := func() error {
		b := s.ctrl.Snapshot()
		if criteria.HasFilters() {
			b = criteria.Apply(b)
		}
		return render.Board(s.out, b, format)
	}
	if err := draw(); err != nil {
		return err
	}

	err = watch.Stream(ctx, sub, watch.Filter{}, func(e board.Event) error {
		if err := s.ctrl.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.WithError(err).Warn("Board refresh failed")
			return nil
		}
		if format == render.FormatTable {
			fmt.Fprintf(s.out, "\n--- %s ---\n", render.EventLine(e))
		}
		return draw()
	}, s.log)
	if err != nil {
		return printer.BoardError(err, s.scope)
	}
	return nil
}

func newBoardsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "boards",
		Short: "List provisioned boards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			scopes, err := s.store.ListScopes(cmd.Context())
			if err != nil {
				return printer.BoardError(err, s.scope)
			}
			if len(scopes) == 0 {
				printer.Info("No boards provisioned. Run 'lanes init' to create one.\n")
				return nil
			}
			for _, scope := range scopes {
				marker := " "
				if scope == s.scope {
					marker = "*"
				}
				fmt.Fprintf(s.out, "%s %s\n", marker, scope)
			}
			return nil
		},
	}
}

// columnArg validates a column given on the command line.
func columnArg(s string) (board.ColumnID, error) {
	col := board.ColumnID(s)
	if err := col.Validate(); err != nil {
		return "", printer.Error("invalid column", err.Error(), []string{"Columns: idea, next, in-progress, done"})
	}
	return col, nil
}
