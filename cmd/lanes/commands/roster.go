package commands

import (
	"fmt"
	"strings"

	"github.com/dyluth/lanes/internal/printer"
	"github.com/dyluth/lanes/pkg/board"
	"github.com/spf13/cobra"
)

func newRosterCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "List collaborators suggested for assignment",
		Long: `List the collaborator roster: names from lanes.yml merged with the
names stored for this board. The roster is advisory; assignment accepts
any name.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			collabs, err := s.rosterProvider().List(cmd.Context())
			if err != nil {
				return printer.BoardError(err, s.scope)
			}
			if len(collabs) == 0 {
				printer.Info("Roster is empty. Add someone with 'lanes roster add NAME'.\n")
				return nil
			}
			for _, c := range collabs {
				if c.AvatarURL != "" {
					fmt.Fprintf(s.out, "%s\t%s\n", c.Name, c.AvatarURL)
				} else {
					fmt.Fprintln(s.out, c.Name)
				}
			}
			return nil
		},
	}

	var avatar string
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a collaborator to this board's stored roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			collab := board.Collaborator{Name: strings.TrimSpace(args[0]), AvatarURL: avatar}
			if err := s.store.SetCollaborator(cmd.Context(), s.scope, collab); err != nil {
				return printer.BoardError(err, s.scope)
			}
			printer.Success("Added %s to the roster of '%s'\n", collab.Name, s.scope)
			return nil
		},
	}
	add.Flags().StringVar(&avatar, "avatar", "", "Avatar URL")

	remove := &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a collaborator from this board's stored roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			name := strings.TrimSpace(args[0])
			if err := s.store.RemoveCollaborator(cmd.Context(), s.scope, name); err != nil {
				return printer.BoardError(err, s.scope)
			}
			printer.Success("Removed %s from the roster of '%s'\n", name, s.scope)
			return nil
		},
	}

	cmd.AddCommand(add, remove)
	return cmd
}
