package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/reflux/internal/config"
	"github.com/roach88/reflux/internal/counter"
	"github.com/roach88/reflux/internal/journal"
	"github.com/roach88/reflux/internal/middleware"
	"github.com/roach88/reflux/internal/store"
)

// stack is a counter store wired from a Config.
type stack struct {
	store     *store.Store[counter.State]
	journal   *journal.Journal
	registry  *prometheus.Registry
	namespace string
}

// newStack builds the store and its middleware in the order the config lists
// them. Duplicate names are installed once.
func newStack(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *stack, err error) {
	s := &stack{
		registry:  prometheus.NewRegistry(),
		namespace: cfg.MetricsNamespace,
	}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	seen := make(map[string]bool, len(cfg.Middleware))
	var chain []store.Middleware[counter.State]
	for _, name := range cfg.Middleware {
		if seen[name] {
			continue
		}
		seen[name] = true

		switch name {
		case config.MiddlewareJournal:
			mw, err := s.openJournal(ctx, cfg.Journal, logger)
			if err != nil {
				return nil, err
			}
			chain = append(chain, mw)
		case config.MiddlewareLogger:
			chain = append(chain, middleware.Logger[counter.State](logger))
		case config.MiddlewareMetrics:
			m := middleware.NewMetrics(s.registry, cfg.MetricsNamespace)
			chain = append(chain, middleware.Instrument[counter.State](m))
		default:
			return nil, fmt.Errorf("unknown middleware %q", name)
		}
	}

	s.store = counter.NewStore(cfg.Initial,
		store.WithMiddleware(chain...),
		store.WithMaxDepth[counter.State](cfg.MaxDepth),
		store.WithLogger[counter.State](logger),
	)
	return s, nil
}

// openJournal opens path and returns the recording middleware. An existing
// journal is appended to: the clock resumes after its last seq.
func (s *stack) openJournal(ctx context.Context, path string, logger *slog.Logger) (store.Middleware[counter.State], error) {
	j, err := journal.Open(path)
	if err != nil {
		return nil, err
	}
	s.journal = j

	last, err := j.LastSeq(ctx)
	if err != nil {
		return nil, err
	}
	logger.Debug("journal open", "path", j.Path(), "last_seq", last)

	rec := journal.NewRecorder(j,
		journal.WithClock(journal.NewClockAt(last)),
		journal.WithLogger(logger),
	)
	return journal.Middleware[counter.State](rec), nil
}

// MetricsSummary totals the dispatch counters across action types.
type MetricsSummary struct {
	Dispatched int `json:"dispatched"`
	Suppressed int `json:"suppressed"`
}

func (s *stack) metrics() (*MetricsSummary, error) {
	families, err := s.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	prefix := s.namespace + "_store_"
	summary := &MetricsSummary{}
	for _, mf := range families {
		total := 0.0
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		switch mf.GetName() {
		case prefix + "dispatched_total":
			summary.Dispatched = int(total)
		case prefix + "suppressed_total":
			summary.Suppressed = int(total)
		}
	}
	return summary, nil
}

// Close releases the journal, if one was opened.
func (s *stack) Close() error {
	if s.journal == nil {
		return nil
	}
	return s.journal.Close()
}
