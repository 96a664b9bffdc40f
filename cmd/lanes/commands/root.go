package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/lanes/internal/config"
	"github.com/spf13/cobra"
)

var versionString = "dev"

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	scope      string
	verbose    bool
}

// NewRootCmd builds the lanes command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "lanes",
		Short: "Lanes - collaborative card board",
		Long: `Lanes keeps a shared four-column board (idea, next, in-progress, done)
in Redis and lets many clients move, reorder, assign, add and delete
cards concurrently.

Changes are applied to the local view first and confirmed against the
store; when the store disagrees the view is replaced with the store's board.`,
		Version: versionString,
		// Show help instead of silently succeeding
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		FParseErrWhitelist: cobra.FParseErrWhitelist{},
		SilenceErrors:      true,
		SilenceUsage:       true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "Path to lanes.yml")
	root.PersistentFlags().StringVarP(&opts.scope, "scope", "s", "", "Board scope (overrides lanes.yml and LANES_SCOPE)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log store retries and reconciliation to stderr")

	root.AddCommand(
		newInitCmd(opts),
		newBoardsCmd(opts),
		newShowCmd(opts),
		newAddCmd(opts),
		newMoveCmd(opts),
		newReorderCmd(opts),
		newAssignCmd(opts, true),
		newAssignCmd(opts, false),
		newDeleteCmd(opts),
		newIdeaCmd(opts),
		newRosterCmd(opts),
		newWatchCmd(opts),
	)
	return root
}

// Execute runs the lanes command tree against os.Args. Ctrl-C cancels the
// command's context so watch and --wait stop cleanly.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	versionString = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}
