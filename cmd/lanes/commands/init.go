package commands

import (
	"fmt"
	"os"

	"github.com/dyluth/lanes/internal/config"
	"github.com/dyluth/lanes/internal/printer"
	"github.com/spf13/cobra"
)

func newInitCmd(opts *globalOptions) *cobra.Command {
	var force, configOnly bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write lanes.yml and provision the board",
		Long: `Initialize a lanes workspace.

Creates:
  • lanes.yml - configuration file (skipped if it exists, unless --force)
  • the board's four column records in Redis (idempotent)

Use --config-only to write lanes.yml without contacting Redis.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wrote, err := writeConfig(opts.configPath, force)
			if err != nil {
				return err
			}
			if wrote {
				printer.Success("Wrote %s\n", opts.configPath)
			} else {
				printer.Info("Keeping existing %s (use --force to overwrite)\n", opts.configPath)
			}
			if configOnly {
				return nil
			}

			s, err := openSession(cmd.Context(), cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			created, err := s.store.ProvisionBoard(cmd.Context(), s.scope)
			if err != nil {
				return printer.BoardError(err, s.scope)
			}
			if created {
				printer.Success("Provisioned board '%s'\n", s.scope)
			} else {
				printer.Info("Board '%s' already provisioned\n", s.scope)
			}

			printer.Info("\nNext steps:\n")
			printer.Info("  1. Add a card:   lanes add \"My first idea\"\n")
			printer.Info("  2. See the board: lanes show\n")
			return nil
		},
	}

	// Note: Cannot use -f shorthand, it reads like a file flag next to --config
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing lanes.yml")
	cmd.Flags().BoolVar(&configOnly, "config-only", false, "Only write lanes.yml")
	return cmd
}

// writeConfig writes the template unless path exists and force is false.
func writeConfig(path string, force bool) (bool, error) {
	if _, err := os.Stat(path); err == nil && !force {
		return false, nil
	}
	if err := os.WriteFile(path, []byte(config.Template()), 0o644); err != nil {
		return false, printer.Error("initialization failed", fmt.Sprintf("Failed to write %s: %v", path, err), nil)
	}
	return true, nil
}
