package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/reflux/internal/counter"
	"github.com/roach88/reflux/internal/ir"
	"github.com/roach88/reflux/internal/journal"
	"github.com/roach88/reflux/internal/middleware"
	"github.com/roach88/reflux/internal/store"
	"github.com/roach88/reflux/internal/testutil"
)

// Scenario middleware names. "drop:<tag>" takes the action tag to drop.
const (
	MiddlewareLogger  = "logger"
	MiddlewareMetrics = "metrics"
	MiddlewareDrop    = "drop"
)

// MiddlewareNames lists the middleware a scenario may install.
func MiddlewareNames() []string {
	return []string{MiddlewareLogger, MiddlewareMetrics, MiddlewareDrop + ":<action>"}
}

// Harness holds the per-run wiring for one scenario.
//
// Every run gets its own in-memory journal, a sequential dispatch id
// generator and a fresh clock, so identical scenarios produce identical
// traces.
type Harness struct {
	scenario *Scenario
	journal  *journal.Journal
	store    *store.Store[counter.State]
	notes    *testutil.StateRecorder[counter.State]
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Returns an error only when the run could not be set up (journal, unknown
// action). A run that executes but misses its expectations returns a failing
// Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with an explicit logger for the store, the journal
// recorder and the "logger" middleware.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	if scenario == nil {
		return nil, fmt.Errorf("scenario is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx := context.Background()

	j, err := journal.Open(journal.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	h, err := newHarness(scenario, j, logger)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.runStep(step); err != nil {
			result.AddError(fmt.Sprintf("steps[%d]: %v", i, err))
			break
		}
		if step.ExpectCount != nil {
			if got := h.store.State().Count; got != *step.ExpectCount {
				result.AddError(fmt.Sprintf("steps[%d]: count mismatch: expected %d, got %d",
					i, *step.ExpectCount, got))
			}
		}
	}

	if err := h.collect(ctx, result); err != nil {
		return nil, err
	}

	checkExpectation(result, scenario.Expect)
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	h.logger.Debug("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"dispatches", len(result.Trace))
	return result, nil
}

func newHarness(scenario *Scenario, j *journal.Journal, logger *slog.Logger) (*Harness, error) {
	rec := journal.NewRecorder(j,
		journal.WithIDGenerator(journal.NewSequentialGenerator("dispatch")),
		journal.WithClock(journal.NewClock()),
		journal.WithLogger(logger),
	)

	// The journal sits outermost so it sees dispatches that later
	// middleware drops.
	chain := []store.Middleware[counter.State]{journal.Middleware[counter.State](rec)}
	for _, name := range scenario.Middleware {
		mw, err := buildMiddleware(name, logger)
		if err != nil {
			return nil, err
		}
		chain = append(chain, mw)
	}

	st := counter.NewStore(scenario.Initial,
		store.WithMiddleware(chain...),
		store.WithMaxDepth[counter.State](scenario.MaxDepth),
		store.WithLogger[counter.State](logger),
	)

	h := &Harness{
		scenario: scenario,
		journal:  j,
		store:    st,
		notes:    testutil.NewStateRecorder[counter.State](),
		logger:   logger,
	}
	store.Subscribe(st, h.notes)

	for i, r := range scenario.Reactions {
		action, err := counter.Decode(r.Dispatch, r.Args)
		if err != nil {
			return nil, fmt.Errorf("reactions[%d]: %w", i, err)
		}
		h.react(r.When, action)
	}
	return h, nil
}

// react registers a subscriber that dispatches action the first time it
// sees the count when.
func (h *Harness) react(when int, action store.Action) {
	fired := false
	h.store.SubscribeFunc(func(s counter.State) {
		if fired || s.Count != when {
			return
		}
		fired = true
		h.store.Dispatch(action)
	})
}

// runStep dispatches one step. Store panics (depth exceeded, reducer
// dispatch) are returned as errors.
func (h *Harness) runStep(step Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if perr, ok := r.(error); ok {
				err = perr
				return
			}
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if step.Thunk != "" {
		thunk, err := counter.Thunk(step.Thunk)
		if err != nil {
			return err
		}
		h.store.DispatchThunk(thunk)
		return nil
	}

	action, err := counter.Decode(step.Dispatch, step.Args)
	if err != nil {
		return err
	}
	h.store.Dispatch(action)
	return nil
}

// collect reads the journal back into the trace and snapshots the final
// state and notifications.
func (h *Harness) collect(ctx context.Context, result *Result) error {
	records, err := h.journal.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("read trace: %w", err)
	}
	for _, rec := range records {
		result.AddTrace(TraceEvent{
			Seq:        rec.Seq,
			DispatchID: rec.DispatchID,
			Action:     rec.ActionType,
			Args:       rec.Action,
			Applied:    rec.Applied,
			Changed:    rec.Changed,
			Depth:      rec.Depth,
			State:      rec.After,
		})
	}

	state, err := ir.ObjectFromGo(h.store.State())
	if err != nil {
		return fmt.Errorf("encode final state: %w", err)
	}
	result.State = state

	for _, s := range h.notes.States() {
		result.Notifications = append(result.Notifications, s.Count)
	}
	return nil
}

func checkExpectation(result *Result, expect *Expectation) {
	if expect == nil {
		return
	}

	if expect.State != nil {
		want, err := ir.ObjectFromGo(expect.State)
		switch {
		case err != nil:
			result.AddError(fmt.Sprintf("expect.state: %v", err))
		case !reflect.DeepEqual(want, result.State):
			result.AddError(fmt.Sprintf("state mismatch: expected %s, got %s",
				formatValue(want), formatValue(result.State)))
		}
	}

	if expect.Notifications != nil && !slices.Equal(expect.Notifications, result.Notifications) {
		result.AddError(fmt.Sprintf("notifications mismatch: expected %v, got %v",
			expect.Notifications, result.Notifications))
	}
}

// parseMiddleware splits a scenario middleware name into kind and argument
// and checks it.
func parseMiddleware(name string) (kind, arg string, err error) {
	kind, arg, _ = strings.Cut(name, ":")
	switch kind {
	case MiddlewareLogger, MiddlewareMetrics:
		if arg != "" {
			return "", "", fmt.Errorf("%s takes no argument", kind)
		}
	case MiddlewareDrop:
		if arg == "" {
			return "", "", fmt.Errorf("drop requires an action, e.g. drop:%s", counter.TypeDecrease)
		}
	default:
		return "", "", fmt.Errorf("unknown middleware %q (want one of %v)", name, MiddlewareNames())
	}
	return kind, arg, nil
}

func buildMiddleware(name string, logger *slog.Logger) (store.Middleware[counter.State], error) {
	kind, arg, err := parseMiddleware(name)
	if err != nil {
		return nil, err
	}
	switch kind {
	case MiddlewareLogger:
		return middleware.Logger[counter.State](logger), nil
	case MiddlewareMetrics:
		// Private registry: scenarios never share collectors.
		m := middleware.NewMetrics(prometheus.NewRegistry(), "scenario")
		return middleware.Instrument[counter.State](m), nil
	default:
		return middleware.Drop[counter.State](arg), nil
	}
}

func formatValue(v ir.IRValue) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
