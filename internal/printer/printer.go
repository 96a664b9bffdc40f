package printer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dyluth/lanes/internal/ideas"
	"github.com/dyluth/lanes/pkg/board"
	"github.com/fatih/color"
)

func init() {
	// Users can disable colors with NO_COLOR
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// SetOutput redirects normal and error output. Nil restores the default.
func SetOutput(out, errOut io.Writer) {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	stdout, stderr = out, errOut
}

// Success prints a success message in green with a checkmark prefix
func Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		msg = "✓ " + msg
	}
	green.Fprint(stdout, msg)
}

// Info prints an informational message in the default color
func Info(format string, a ...any) {
	fmt.Fprintf(stdout, format, a...)
}

// Warning prints a warning message in yellow to stderr
func Warning(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		msg = "⚠️  " + msg
	}
	yellow.Fprint(stderr, msg)
}

// Step prints a step message with emphasis (used in multi-step operations)
func Step(format string, a ...any) {
	cyan.Fprintf(stdout, "→ %s", fmt.Sprintf(format, a...))
}

// Error prints a formatted error with title, explanation, and suggestions to stderr
// and returns a simple error for Cobra
func Error(title string, explanation string, suggestions []string) error {
	return ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext is Error with key/value details, printed in key order
func ErrorWithContext(title string, explanation string, context map[string]string, suggestions []string) error {
	red.Fprintf(stderr, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(stderr, "%s\n", explanation)
	}

	if len(context) > 0 {
		keys := make([]string, 0, len(context))
		for k := range context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintf(stderr, "\n")
		for _, k := range keys {
			fmt.Fprintf(stderr, "  %s: %s\n", k, context[k])
		}
	}

	if len(suggestions) > 0 {
		fmt.Fprintf(stderr, "\n")
		if len(suggestions) == 1 {
			fmt.Fprintf(stderr, "%s\n", suggestions[0])
		} else {
			fmt.Fprintf(stderr, "Either:\n")
			for i, suggestion := range suggestions {
				fmt.Fprintf(stderr, "  %d. %s\n", i+1, suggestion)
			}
		}
	}

	// SilenceErrors keeps Cobra from printing this again
	return fmt.Errorf("%s", title)
}

// BoardError prints a board failure with a title and suggestions chosen by its kind.
func BoardError(err error, scope board.Scope) error {
	ctx := map[string]string{"Scope": string(scope), "Cause": err.Error()}

	switch {
	case errors.Is(err, board.ErrColumnNotFound):
		return ErrorWithContext("board not provisioned", "The board has no column records yet.", ctx,
			[]string{fmt.Sprintf("Run 'lanes init --scope %s' to create it", scope)})
	case errors.Is(err, board.ErrCardNotFound):
		return ErrorWithContext("card not found", "The card is not in that column. Someone may have moved or deleted it.", ctx,
			[]string{"Run 'lanes show' to see the current board"})
	case errors.Is(err, board.ErrOrderMismatch):
		return ErrorWithContext("order does not match column", "The ids given must be exactly the column's current cards.", ctx,
			[]string{"Run 'lanes show' and retry with the current ids"})
	case errors.Is(err, board.ErrForbidden):
		return ErrorWithContext("operation not allowed", "Cards can only be deleted while they are in the idea column.", ctx,
			[]string{"Move the card back to idea first: lanes move <card> idea"})
	case errors.Is(err, board.ErrInvalidArgument):
		return ErrorWithContext("invalid argument", "", ctx, nil)
	case errors.Is(err, ideas.ErrGeneration):
		return ErrorWithContext("idea generation failed", "No card was created.", ctx,
			[]string{"Check the ideas section of lanes.yml and the API key environment variable"})
	case board.IsTransient(err):
		return ErrorWithContext("board store unavailable", "The request timed out or Redis could not be reached.", ctx,
			[]string{"Check that Redis is running and redis.url is correct", "Retry the command"})
	default:
		return ErrorWithContext("command failed", "", ctx, nil)
	}
}
