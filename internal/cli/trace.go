package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/reflux/internal/ir"
	"github.com/roach88/reflux/internal/journal"
	"github.com/roach88/reflux/internal/query"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Journal string
	Action   string // optional - filter to one action type
	Dropped  bool   // only dispatches that never reached the reducer
	Changed  bool   // only dispatches that changed state
	MinDepth int    // only dispatches nested at least this deep
	Verify   bool   // recompute state hashes
}

// TraceEvent is one journaled dispatch in the timeline.
type TraceEvent struct {
	Seq        int64          `json:"seq"`
	DispatchID string         `json:"dispatch_id"`
	Action     string         `json:"action"`
	Args       map[string]any `json:"args"`
	Before     any            `json:"before"`
	After      any            `json:"after"`
	StateHash  string         `json:"state_hash"`
	Applied    bool           `json:"applied"`
	Changed    bool           `json:"changed"`
	Depth      int            `json:"depth"`
}

// TraceStats summarizes the timeline.
type TraceStats struct {
	Dispatches int `json:"dispatches"`
	Applied    int `json:"applied"`
	Suppressed int `json:"suppressed"`
	Changed    int `json:"changed"`
	MaxDepth   int `json:"max_depth"`
}

// TraceResult is the JSON payload of the trace command.
type TraceResult struct {
	Journal  string       `json:"journal"`
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the dispatches recorded in a journal",
		Long: `Show the dispatches recorded in a journal, ordered by seq.

Each entry shows the action, whether it reached the reducer, whether the
state changed, and how deeply it was nested. --verify recomputes every state
hash and fails on a mismatch.

Examples:
  reflux trace --journal ./reflux.db
  reflux trace --journal ./reflux.db --action set_count
  reflux trace --journal ./reflux.db --dropped
  reflux trace --journal ./reflux.db --changed --min-depth 2
  reflux trace --journal ./reflux.db --verify --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("journal")
	cmd.Flags().StringVar(&opts.Action, "action", "", "filter to one action type")
	cmd.Flags().BoolVar(&opts.Dropped, "dropped", false, "only show dispatches suppressed by middleware")
	cmd.Flags().BoolVar(&opts.Changed, "changed", false, "only show dispatches that changed state")
	cmd.Flags().IntVar(&opts.MinDepth, "min-depth", 0, "only show dispatches nested at least this deep")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "recompute and check state hashes")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	// Open would create an empty journal; a trace of a missing file is a typo.
	if _, err := os.Stat(opts.Journal); err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", opts.Journal))
	}

	j, err := journal.Open(opts.Journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	records, err := j.Query(ctx, tracePredicate(opts))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	if opts.Verify {
		if err := verifyRecords(records); err != nil {
			return WrapExitError(ExitFailure, "journal verification failed", err)
		}
	}

	result := TraceResult{
		Journal:  opts.Journal,
		Timeline: buildTimeline(records),
	}
	result.Stats = buildStats(result.Timeline)

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
}

// tracePredicate turns the filter flags into a journal query.
func tracePredicate(opts *TraceOptions) query.Predicate {
	var preds []query.Predicate
	if opts.Action != "" {
		preds = append(preds, query.ActionIs(opts.Action))
	}
	if opts.Dropped {
		preds = append(preds, query.Equals{Field: query.FieldApplied, Value: ir.IRBool(false)})
	}
	if opts.Changed {
		preds = append(preds, query.Equals{Field: query.FieldChanged, Value: ir.IRBool(true)})
	}
	if opts.MinDepth > 0 {
		preds = append(preds, query.AtLeast{Field: query.FieldDepth, Value: ir.IRInt(opts.MinDepth)})
	}
	return query.AllOf(preds...)
}

// verifyRecords recomputes each after-state hash.
func verifyRecords(records []journal.Record) error {
	for _, rec := range records {
		hash, err := ir.StateHash(rec.After)
		if err != nil {
			return fmt.Errorf("seq %d: %w", rec.Seq, err)
		}
		if hash != rec.StateHash {
			return fmt.Errorf("seq %d (%s): state hash mismatch: stored %s, computed %s",
				rec.Seq, rec.DispatchID, rec.StateHash, hash)
		}
	}
	return nil
}

func buildTimeline(records []journal.Record) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(records))
	for _, rec := range records {
		args, _ := ir.ToGo(rec.Action).(map[string]any)
		timeline = append(timeline, TraceEvent{
			Seq:        rec.Seq,
			DispatchID: rec.DispatchID,
			Action:     rec.ActionType,
			Args:       args,
			Before:     ir.ToGo(rec.Before),
			After:      ir.ToGo(rec.After),
			StateHash:  rec.StateHash,
			Applied:    rec.Applied,
			Changed:    rec.Changed,
			Depth:      rec.Depth,
		})
	}
	return timeline
}

func buildStats(timeline []TraceEvent) TraceStats {
	var stats TraceStats
	for _, e := range timeline {
		stats.Dispatches++
		if e.Applied {
			stats.Applied++
		} else {
			stats.Suppressed++
		}
		if e.Changed {
			stats.Changed++
		}
		stats.MaxDepth = max(stats.MaxDepth, e.Depth)
	}
	return stats
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	fmt.Fprintf(w, "Trace for Journal: %s\n", result.Journal)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no dispatches)")
	}
	for _, event := range result.Timeline {
		formatTimelineEvent(w, event, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Dispatches: %d\n", result.Stats.Dispatches)
	fmt.Fprintf(w, "  Applied:    %d\n", result.Stats.Applied)
	fmt.Fprintf(w, "  Suppressed: %d\n", result.Stats.Suppressed)
	fmt.Fprintf(w, "  Changed:    %d\n", result.Stats.Changed)
	fmt.Fprintf(w, "  Max Depth:  %d\n", result.Stats.MaxDepth)

	return nil
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, event TraceEvent, verbose bool) {
	status := "dropped"
	switch {
	case event.Changed:
		status = "changed"
	case event.Applied:
		status = "unchanged"
	}

	indent := strings.Repeat("  ", max(event.Depth-1, 0))
	fmt.Fprintf(w, "  %s[%d] %s%s %s -> %s (%s)\n",
		indent, event.Seq, event.Action, formatArgs(event.Args),
		formatValue(event.Before), formatValue(event.After), status)
	if verbose {
		fmt.Fprintf(w, "  %s     ID: %s\n", indent, truncateID(event.DispatchID))
		fmt.Fprintf(w, "  %s     Hash: %s\n", indent, truncateID(event.StateHash))
	}
}

// formatArgs formats a map of args for display.
// Uses sorted keys to ensure deterministic output.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value for display, handling nested structures deterministically.
func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		if len(val) == 0 {
			return "{}"
		}
		return formatArgs(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
