package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dyluth/lanes/internal/mutation"
	"github.com/dyluth/lanes/internal/printer"
	"github.com/dyluth/lanes/internal/render"
	"github.com/dyluth/lanes/internal/watch"
	"github.com/dyluth/lanes/pkg/board"
	"github.com/spf13/cobra"
)

// settleTimeout bounds how long a command waits for its mutations to be confirmed.
const settleTimeout = time.Minute

// withBoard opens a session, loads the board into a controller and runs fn.
func withBoard(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.load(ctx); err != nil {
		return err
	}
	// A locally rejected action may have started a reconcile; let it finish before Close
	defer func() {
		sctx, cancel := settleContext(ctx)
		defer cancel()
		_ = s.ctrl.Settle(sctx)
	}()
	return fn(ctx, s)
}

func settleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, settleTimeout)
}

func newAddCmd(opts *globalOptions) *cobra.Command {
	var (
		column      string
		description string
		tags        []string
	)

	cmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Add a card",
		Long: `Add a card to the idea column (or --column).

Examples:
  lanes add "Dark mode"
  lanes add "Export to CSV" --tag data --tag export -d "Users keep asking"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			col, err := columnArg(column)
			if err != nil {
				return err
			}
			return withBoard(cmd, opts, func(ctx context.Context, s *session) error {
				card, err := s.ctrl.Add(col, mutation.CardData{Title: args[0], Description: description, Tags: tags})
				if err != nil {
					return s.rejected(err)
				}

				sctx, cancel := settleContext(ctx)
				defer cancel()
				if err := s.commit(sctx); err != nil {
					return err
				}
				id := s.ctrl.StoredID(card.ID)
				if _, stored, ok := s.ctrl.Snapshot().Locate(id); ok {
					card = stored
				}
				printer.Success("Added %s to %s: %s\n", id, col, card.Title)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&column, "column", string(board.ColumnIdea), "Column to add the card to")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Card description")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Card tag (repeatable)")
	return cmd
}

func newMoveCmd(opts *globalOptions) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "move CARD_ID COLUMN",
		Short: "Move a card to another column",
		Long: `Move a card to the end of another column.

The card is removed from its current column, then appended to COLUMN.
If the second step fails the card is missing until someone re-adds it;
the command reports the failure and the board shows the stored state.

Use --wait to block until the card is visible in COLUMN in the store.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := columnArg(args[1])
			if err != nil {
				return err
			}
			return withBoard(cmd, opts, func(ctx context.Context, s *session) error {
				m, err := s.resolve(args[0])
				if err != nil {
					return err
				}
				if err := s.ctrl.Move(m.Card.ID, m.Column, to); err != nil {
					return s.rejected(err)
				}

				sctx, cancel := settleContext(ctx)
				defer cancel()
				if err := s.commit(sctx); err != nil {
					return err
				}

				if wait > 0 {
					printer.Step("Waiting for %s to appear in %s...\n", m.Card.ID, to)
					if _, err := watch.WaitForCard(ctx, s.store, s.scope, to, m.Card.ID, wait); err != nil {
						return printer.BoardError(err, s.scope)
					}
				}
				printer.Success("Moved %s: %s → %s\n", m.Card.ID, m.Column, to)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 0, "Wait up to this long for the card to be visible in the target column")
	return cmd
}

func newReorderCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder COLUMN CARD_ID...",
		Short: "Set the order of a column",
		Long: `Set the order of every card in a column.

The ids must be exactly the column's current cards, in the new order.
Unique id prefixes are accepted.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			col, err := columnArg(args[0])
			if err != nil {
				return err
			}
			return withBoard(cmd, opts, func(ctx context.Context, s *session) error {
				ids := make([]string, 0, len(args)-1)
				for _, ref := range args[1:] {
					m, err := s.resolve(ref)
					if err != nil {
						return err
					}
					ids = append(ids, m.Card.ID)
				}
				if err := s.ctrl.Reorder(col, ids); err != nil {
					return s.rejected(err)
				}

				sctx, cancel := settleContext(ctx)
				defer cancel()
				if err := s.commit(sctx); err != nil {
					return err
				}
				printer.Success("Reordered %s\n", col)
				return nil
			})
		},
	}
}

func newAssignCmd(opts *globalOptions, assign bool) *cobra.Command {
	use, short, verb := "assign CARD_ID NAME", "Add a collaborator to a card", "Assigned"
	if !assign {
		use, short, verb = "unassign CARD_ID NAME", "Remove a collaborator from a card", "Unassigned"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Long: short + `.

Names are free text. The roster only offers suggestions; a name that is
not on it is accepted with a warning.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[1])
			return withBoard(cmd, opts, func(ctx context.Context, s *session) error {
				m, err := s.resolve(args[0])
				if err != nil {
					return err
				}

				if assign {
					warnUnknownCollaborator(ctx, s, name)
				}
				if err := s.ctrl.Assign(m.Column, m.Card.ID, name, assign); err != nil {
					return s.rejected(err)
				}

				sctx, cancel := settleContext(ctx)
				defer cancel()
				if err := s.commit(sctx); err != nil {
					return err
				}
				printer.Success("%s %s on %s\n", verb, name, m.Card.ID)
				return nil
			})
		},
	}
}

func warnUnknownCollaborator(ctx context.Context, s *session, name string) {
	collabs, err := s.rosterProvider().List(ctx)
	if err != nil {
		s.log.WithError(err).Warn("Roster unavailable")
		return
	}
	for _, c := range collabs {
		if c.Name == name {
			return
		}
	}
	printer.Warning("%s is not on the roster\n", name)
}

func newDeleteCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete CARD_ID",
		Short: "Delete a card from the idea column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoard(cmd, opts, func(ctx context.Context, s *session) error {
				m, err := s.resolve(args[0])
				if err != nil {
					return err
				}
				if err := s.ctrl.Delete(m.Column, m.Card.ID); err != nil {
					return s.rejected(err)
				}

				sctx, cancel := settleContext(ctx)
				defer cancel()
				if err := s.commit(sctx); err != nil {
					return err
				}
				printer.Success("Deleted %s: %s\n", m.Card.ID, m.Card.Title)
				return nil
			})
		},
	}
}

func newIdeaCmd(opts *globalOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "idea PROMPT...",
		Short: "Generate an idea card from a prompt",
		Long: `Ask the configured idea generator for a card and add it to the idea column.

Requires ideas.provider in lanes.yml and its API key in the environment.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := render.ParseFormat(output)
			if err != nil {
				return printer.Error("invalid output format", err.Error(), []string{"Valid formats: table, json"})
			}

			ctx := cmd.Context()
			s, err := openSession(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.withGenerator(ctx); err != nil {
				return err
			}

			printer.Step("Generating idea...\n")
			card, err := s.svc.GenerateCard(ctx, s.scope, strings.Join(args, " "))
			if err != nil {
				return printer.BoardError(err, s.scope)
			}

			if format != render.FormatTable {
				return render.CardJSON(s.out, board.ColumnIdea, card)
			}
			printer.Success("Added %s to %s: %s\n", card.ID, board.ColumnIdea, card.Title)
			if card.Description != "" {
				fmt.Fprintf(s.out, "  %s\n", card.Description)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", string(render.FormatTable), "Output format: table or json")
	return cmd
}
