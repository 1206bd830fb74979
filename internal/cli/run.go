package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/reflux/internal/config"
	"github.com/roach88/reflux/internal/counter"
	"github.com/roach88/reflux/internal/runloop"
	"github.com/roach88/reflux/internal/rx"
	"github.com/roach88/reflux/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config  string
	Journal string
	Metrics bool
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	States  []counter.State `json:"states"`
	Final   counter.State   `json:"final"`
	Journal string          `json:"journal,omitempty"`
	Metrics *MetricsSummary `json:"metrics,omitempty"`
}

// runItem is one parsed input: an action or a named thunk.
type runItem struct {
	action store.Action
	thunk  store.Thunk[counter.State]
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [actions...]",
		Short: "Dispatch actions to a counter store",
		Long: `Build a counter store from a config and dispatch actions to it through
the single-writer run loop, printing every state subscribers are notified of.

Actions are taken from the arguments, or one per line from stdin when none
are given. Blank lines and lines starting with # are skipped.

  increase | inc | +      add one
  decrease | dec | -      subtract one
  set:<n>                 replace the count
  thunk:<name>            run a named thunk (increment_if_odd, increment_twice, reset)

Examples:
  reflux run + + -
  reflux run --config reflux.cue set:5 thunk:increment_if_odd
  reflux run --journal ./reflux.db --metrics inc inc
  printf 'inc\ninc\n' | reflux run --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStore(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "path to a CUE config file or directory")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "record dispatches to this SQLite journal")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "instrument dispatches and report totals")

	return cmd
}

func runStore(opts *RunOptions, args []string, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return configExitError(err)
	}
	if opts.Journal != "" {
		cfg.Journal = opts.Journal
		if !cfg.Has(config.MiddlewareJournal) {
			cfg.Middleware = append(cfg.Middleware, config.MiddlewareJournal)
		}
	}
	if opts.Metrics && !cfg.Has(config.MiddlewareMetrics) {
		cfg.Middleware = append(cfg.Middleware, config.MiddlewareMetrics)
	}

	lines := args
	if len(lines) == 0 {
		if lines, err = readLines(cmd.InOrStdin()); err != nil {
			return WrapExitError(ExitCommandError, "failed to read actions", err)
		}
	}
	items, err := parseItems(lines)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid action", err)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stk, err := newStack(ctx, cfg, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build store", err)
	}
	defer func() {
		if closeErr := stk.Close(); closeErr != nil {
			logger.Error("error closing journal", "error", closeErr)
		}
	}()

	// Subscribe before the loop starts: the store is only touched from the
	// loop goroutine afterwards.
	adapter := rx.NewAdapter(stk.store)
	var states []counter.State
	adapter.State().Listen(func(s counter.State) {
		states = append(states, s)
		if !formatter.JSON() {
			fmt.Fprintf(formatter.Writer, "count=%d\n", s.Count)
		}
	})

	loop := runloop.New(stk.store, runloop.WithLogger[counter.State](logger))
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	sink := rx.NewSink(loop)
	for _, item := range items {
		if item.thunk != nil {
			loop.EnqueueThunk(item.thunk)
			continue
		}
		sink.Put(item.action)
	}
	loop.Stop()

	if err := <-done; err != nil {
		return WrapExitError(ExitFailure, "run interrupted", err)
	}
	final := adapter.State().Latest()
	adapter.Close()

	logger.Info("run finished", "dispatched", len(items), "notifications", len(states), "count", final.Count)

	result := RunResult{States: states, Final: final}
	if stk.journal != nil {
		result.Journal = stk.journal.Path()
	}
	if cfg.Has(config.MiddlewareMetrics) {
		if result.Metrics, err = stk.metrics(); err != nil {
			return WrapExitError(ExitFailure, "failed to read metrics", err)
		}
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	if result.Metrics != nil {
		fmt.Fprintf(formatter.Writer, "dispatched=%d suppressed=%d\n",
			result.Metrics.Dispatched, result.Metrics.Suppressed)
	}
	return nil
}

// readLines returns the non-blank, non-comment lines of r.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

func parseItems(lines []string) ([]runItem, error) {
	items := make([]runItem, 0, len(lines))
	for _, line := range lines {
		if name, ok := strings.CutPrefix(line, "thunk:"); ok {
			thunk, err := counter.Thunk(name)
			if err != nil {
				return nil, err
			}
			items = append(items, runItem{thunk: thunk})
			continue
		}
		action, err := counter.ParseAction(line)
		if err != nil {
			return nil, err
		}
		items = append(items, runItem{action: action})
	}
	return items, nil
}

// loadConfig loads path, or returns the defaults when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// configExitError maps a config error to an exit code: a missing file is a
// command error, anything the file says wrong is a failure.
func configExitError(err error) error {
	if config.IsNotFound(err) {
		return WrapExitError(ExitCommandError, "config not found", err)
	}
	return WrapExitError(ExitFailure, "invalid config", err)
}
