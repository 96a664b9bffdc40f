package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dyluth/lanes/internal/config"
	"github.com/dyluth/lanes/internal/controller"
	"github.com/dyluth/lanes/internal/ideas"
	"github.com/dyluth/lanes/internal/logging"
	"github.com/dyluth/lanes/internal/mutation"
	"github.com/dyluth/lanes/internal/printer"
	"github.com/dyluth/lanes/internal/resolver"
	"github.com/dyluth/lanes/internal/roster"
	"github.com/dyluth/lanes/pkg/board"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// session is everything one command invocation needs to talk to a board.
type session struct {
	cfg   *config.LanesConfig
	scope board.Scope
	log   *logrus.Entry
	store *board.Client
	svc   *mutation.Service
	ctrl  *controller.Controller
	out   io.Writer
}

// openSession loads configuration and connects to the board store.
// Returned errors have already been printed.
func openSession(ctx context.Context, cmd *cobra.Command, opts *globalOptions) (*session, error) {
	cfg, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		return nil, printer.ErrorWithContext(
			"invalid configuration",
			err.Error(),
			map[string]string{"Config": opts.configPath},
			[]string{"Run 'lanes init' to write a default lanes.yml"},
		)
	}

	scope := cfg.Scope
	if opts.scope != "" {
		scope = board.Scope(opts.scope)
		if err := scope.Validate(); err != nil {
			return nil, printer.BoardError(err, scope)
		}
	}

	// The CLI talks to humans on stderr; structured logs are opt-in
	logCfg := cfg.Log
	logCfg.Format = "text"
	if !opts.verbose {
		logCfg.Level = "error"
	}
	logger, err := logging.New(logCfg, "lanes", cmd.ErrOrStderr())
	if err != nil {
		return nil, printer.Error("invalid configuration", err.Error(), nil)
	}

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, printer.Error("invalid configuration", fmt.Sprintf("Failed to parse redis.url: %v", err), nil)
	}

	store, err := board.NewClient(redisOpts, cfg.Client.Name)
	if err != nil {
		return nil, printer.BoardError(err, scope)
	}
	store.WithLogger(logger)

	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", cfg.Redis.URL),
			map[string]string{"Cause": err.Error()},
			[]string{"Check that Redis is running", "Point redis.url in lanes.yml (or LANES_REDIS_URL) at it"},
		)
	}

	return &session{
		cfg:   cfg,
		scope: scope,
		log:   logger,
		store: store,
		svc:   mutation.NewService(store, nil, retryPolicy(cfg.Retry), logger),
		out:   cmd.OutOrStdout(),
	}, nil
}

func (s *session) Close() {
	if s.ctrl != nil {
		s.ctrl.Close()
	}
	s.store.Close()
}

// withGenerator swaps in the configured idea generator.
func (s *session) withGenerator(ctx context.Context) error {
	gen, err := ideas.FromConfig(ctx, s.cfg.Ideas)
	if err != nil {
		return printer.ErrorWithContext(
			"idea generation unavailable",
			err.Error(),
			map[string]string{"Provider": s.cfg.Ideas.Provider},
			[]string{"Set ideas.provider: genai in lanes.yml and export the API key"},
		)
	}
	s.svc = mutation.NewService(s.store, gen, retryPolicy(s.cfg.Retry), s.log)
	return nil
}

// load starts a controller on the current board.
func (s *session) load(ctx context.Context) error {
	s.ctrl = controller.New(s.scope, s.svc, s.store, controller.Options{
		Origin:          s.cfg.Client.Name,
		MutationTimeout: s.cfg.Client.MutationTimeout,
		MaxInFlight:     s.cfg.Client.MaxInFlight,
		Logger:          s.log,
	})
	if err := s.ctrl.Load(ctx); err != nil {
		return printer.BoardError(err, s.scope)
	}
	return nil
}

// resolve finds a card on the loaded board by id or unique id prefix.
func (s *session) resolve(ref string) (resolver.Match, error) {
	return resolveCard(s.ctrl.Snapshot(), ref, s.scope)
}

func resolveCard(b *board.Board, ref string, scope board.Scope) (resolver.Match, error) {
	m, err := resolver.ResolveCard(b, ref)
	if err == nil {
		return m, nil
	}
	var ambiguous *resolver.AmbiguousError
	if errors.As(err, &ambiguous) {
		return m, printer.Error("ambiguous card id", resolver.FormatAmbiguousError(ambiguous), nil)
	}
	return m, printer.BoardError(err, scope)
}

// commit waits for the controller's mutations and reports the first failure.
// A rejected mutation has already been rolled back to the store's board.
func (s *session) commit(ctx context.Context) error {
	settleErr := s.ctrl.Settle(ctx)

	select {
	case n := <-s.ctrl.Notices():
		return printer.BoardError(n.Err, s.scope)
	default:
	}
	if settleErr != nil {
		return printer.BoardError(settleErr, s.scope)
	}
	return nil
}

// rejected prints an error from a controller action that failed local rules.
func (s *session) rejected(err error) error {
	return printer.BoardError(err, s.scope)
}

// rosterProvider merges the configured roster with the one stored in Redis.
func (s *session) rosterProvider() roster.Provider {
	return roster.Merge(roster.Static(s.cfg.Roster), roster.NewRedisProvider(s.store, s.scope))
}

func retryPolicy(cfg config.RetryConfig) mutation.RetryPolicy {
	return mutation.RetryPolicy{
		MaxAttempts:     cfg.MaxAttempts,
		InitialInterval: cfg.InitialInterval,
		MaxInterval:     cfg.MaxInterval,
	}
}
