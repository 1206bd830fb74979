package journal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/reflux/internal/ir"
	"github.com/roach88/reflux/internal/store"
)

// Recorder turns dispatches into journal records.
//
// Thread-safety: Recorder is as safe as the store it observes; the store is
// single-threaded, so writes happen on the dispatching goroutine.
type Recorder struct {
	journal *Journal
	ids     IDGenerator
	clock   *Clock
	logger  *slog.Logger
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithIDGenerator sets the dispatch id source.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) RecorderOption {
	return func(r *Recorder) {
		if g != nil {
			r.ids = g
		}
	}
}

// WithClock sets the sequence clock.
// Default: a fresh Clock starting at 1.
func WithClock(c *Clock) RecorderOption {
	return func(r *Recorder) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithLogger sets the logger used to report write failures.
func WithLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRecorder creates a recorder writing into j.
func NewRecorder(j *Journal, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		journal: j,
		ids:     UUIDv7Generator{},
		clock:   NewClock(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Entry is what the middleware observed for one dispatch, before encoding.
type Entry struct {
	Seq        int64
	DispatchID string
	Action     store.Action
	Before     any
	After      any
	Applied    bool
	Depth      int
}

// Encode converts an entry into its canonical record form.
func Encode(e Entry) (Record, error) {
	actionType := store.TypeOf(e.Action)

	payload, err := ir.ObjectFromGo(e.Action)
	if err != nil {
		return Record{}, fmt.Errorf("encode action %s: %w", actionType, err)
	}
	actionHash, err := ir.ActionHash(actionType, payload)
	if err != nil {
		return Record{}, err
	}

	before, err := ir.FromGo(e.Before)
	if err != nil {
		return Record{}, fmt.Errorf("encode state before: %w", err)
	}
	after, err := ir.FromGo(e.After)
	if err != nil {
		return Record{}, fmt.Errorf("encode state after: %w", err)
	}

	beforeHash, err := ir.StateHash(before)
	if err != nil {
		return Record{}, err
	}
	afterHash, err := ir.StateHash(after)
	if err != nil {
		return Record{}, err
	}

	return Record{
		Seq:        e.Seq,
		DispatchID: e.DispatchID,
		ActionType: actionType,
		Action:     payload,
		ActionHash: actionHash,
		Before:     before,
		After:      after,
		StateHash:  afterHash,
		Applied:    e.Applied,
		Changed:    beforeHash != afterHash,
		Depth:      e.Depth,
	}, nil
}

// Record encodes and writes one entry.
func (r *Recorder) Record(ctx context.Context, e Entry) error {
	rec, err := Encode(e)
	if err != nil {
		return err
	}
	return r.journal.Write(ctx, rec)
}

// Middleware returns a store middleware that journals every dispatch that
// reaches it, whether or not the rest of the chain lets it through.
//
// The seq and dispatch id are taken before next runs, so nested dispatches
// triggered downstream sort after their parent. Failures are logged and
// never propagated: dispatch cannot fail.
func Middleware[S any](r *Recorder) store.Middleware[S] {
	return func(api store.API[S], action store.Action, next store.Next) {
		seq := r.clock.Next()
		id := r.ids.Generate()
		depth := api.Depth()
		before := api.State()
		version := api.Version()

		next(action)

		err := r.Record(context.Background(), Entry{
			Seq:        seq,
			DispatchID: id,
			Action:     action,
			Before:     before,
			After:      api.State(),
			Applied:    api.Version() != version,
			Depth:      depth,
		})
		if err != nil {
			r.logger.Error("journal write failed",
				"dispatch_id", id,
				"action", store.TypeOf(action),
				"error", err)
		}
	}
}
