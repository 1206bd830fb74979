package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/reflux/internal/ir"
)

// TraceSnapshot is what a golden file records for one scenario run.
// It is serialized with ir.MarshalCanonical, so identical runs produce
// identical bytes.
type TraceSnapshot struct {
	ScenarioName  string       `json:"scenario_name"`
	Trace         []TraceEvent `json:"trace"`
	State         ir.IRObject  `json:"state"`
	Notifications []int        `json:"notifications"`
}

// NewSnapshot builds the snapshot of a result.
func NewSnapshot(name string, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName:  name,
		Trace:         result.Trace,
		State:         result.State,
		Notifications: result.Notifications,
	}
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
func (s TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		args := event.Args
		if args == nil {
			args = ir.IRObject{}
		}
		trace[i] = map[string]any{
			"seq":         event.Seq,
			"dispatch_id": event.DispatchID,
			"action":      event.Action,
			"args":        args,
			"applied":     event.Applied,
			"changed":     event.Changed,
			"depth":       event.Depth,
			"state":       event.State,
		}
	}

	notifications := make([]any, len(s.Notifications))
	for i, n := range s.Notifications {
		notifications[i] = n
	}

	state := s.State
	if state == nil {
		state = ir.IRObject{}
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
		"state":         state,
		"notifications": notifications,
	}
}

// Marshal returns the canonical JSON bytes of the snapshot.
func (s TraceSnapshot) Marshal() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(scenarioName, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}

// GoldenPath returns the golden file path for a scenario under dir.
func GoldenPath(dir, scenarioName string) string {
	return filepath.Join(dir, scenarioName+".golden")
}

// CompareGolden checks a result against its golden file under dir, outside
// of a test. A missing golden file is an error.
func CompareGolden(dir, scenarioName string, result *Result) error {
	data, err := NewSnapshot(scenarioName, result).Marshal()
	if err != nil {
		return err
	}

	path := GoldenPath(dir, scenarioName)
	want, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read golden file: %w", err)
	}
	if !bytes.Equal(want, data) {
		return fmt.Errorf("trace differs from %s\n  expected: %s\n  actual:   %s", path, want, data)
	}
	return nil
}

// UpdateGolden writes the golden file for a result, creating dir if needed.
func UpdateGolden(dir, scenarioName string, result *Result) error {
	data, err := NewSnapshot(scenarioName, result).Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create golden dir: %w", err)
	}
	if err := os.WriteFile(GoldenPath(dir, scenarioName), data, 0o644); err != nil {
		return fmt.Errorf("write golden file: %w", err)
	}
	return nil
}
