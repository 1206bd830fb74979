package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/reflux/internal/counter"
)

// Scenario is a scripted run of the counter store: an initial state, a
// middleware stack, a list of dispatches and thunks, and what the run must
// produce.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Initial is the state the store starts from.
	Initial counter.State `yaml:"initial"`

	// Middleware lists the middleware installed after the journal, outermost
	// first. See MiddlewareNames.
	Middleware []string `yaml:"middleware,omitempty"`

	// MaxDepth overrides the store's nesting limit. Zero keeps the default.
	MaxDepth int `yaml:"max_depth,omitempty"`

	// Reactions are subscribers that dispatch once when they first see a
	// given count. They drive nested dispatch.
	Reactions []Reaction `yaml:"reactions,omitempty"`

	// Steps run in order, each to completion.
	Steps []Step `yaml:"steps"`

	// Expect checks the final state and the notification sequence.
	Expect *Expectation `yaml:"expect,omitempty"`

	// Assertions validate the trace and final state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one dispatch or one thunk. Exactly one of Dispatch and Thunk is set.
type Step struct {
	// Dispatch is an action tag (e.g. "increase", "set_count").
	Dispatch string `yaml:"dispatch,omitempty"`

	// Args are the action arguments.
	Args map[string]any `yaml:"args,omitempty"`

	// Thunk names a counter thunk (e.g. "increment_if_odd").
	Thunk string `yaml:"thunk,omitempty"`

	// ExpectCount, when set, is the count required right after this step.
	ExpectCount *int `yaml:"expect_count,omitempty"`
}

// Reaction dispatches an action the first time its subscriber sees When.
type Reaction struct {
	When     int            `yaml:"when"`
	Dispatch string         `yaml:"dispatch"`
	Args     map[string]any `yaml:"args,omitempty"`
}

// Expectation is compared exactly against the run.
type Expectation struct {
	// State is the expected final state, every field.
	State map[string]any `yaml:"state,omitempty"`

	// Notifications is the expected sequence of counts delivered to a
	// subscriber registered before the first step, replay included.
	Notifications []int `yaml:"notifications,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an action appears in the trace with matching args
	// - "trace_order": actions appear in order
	// - "trace_count": an action appears exactly N times
	// - "final_state": final state contains the expected fields
	Type string `yaml:"type"`

	// Action is the action tag (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Args are the expected action arguments (trace_contains).
	// Subset match - only specified fields are validated.
	Args map[string]any `yaml:"args,omitempty"`

	// Applied restricts trace_contains and trace_count to dispatches that did
	// or did not reach the reducer.
	Applied *bool `yaml:"applied,omitempty"`

	// Expect contains expected field values (final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Actions is the expected action order (trace_order).
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML from memory.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches "assertion:" vs "assertions:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios returns the .yaml and .yml files under dir in lexical order.
// A non-empty filter is a glob matched against the file name without its
// extension.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be non-negative")
	}

	for i, name := range s.Middleware {
		if _, _, err := parseMiddleware(name); err != nil {
			return fmt.Errorf("middleware[%d]: %w", i, err)
		}
	}

	for i, r := range s.Reactions {
		if r.Dispatch == "" {
			return fmt.Errorf("reactions[%d]: dispatch is required", i)
		}
		if _, err := counter.Decode(r.Dispatch, r.Args); err != nil {
			return fmt.Errorf("reactions[%d]: %w", i, err)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch {
	case step.Dispatch == "" && step.Thunk == "":
		return fmt.Errorf("one of dispatch or thunk is required")
	case step.Dispatch != "" && step.Thunk != "":
		return fmt.Errorf("dispatch and thunk are mutually exclusive")
	case step.Thunk != "":
		if len(step.Args) > 0 {
			return fmt.Errorf("thunk %s takes no args", step.Thunk)
		}
		_, err := counter.Thunk(step.Thunk)
		return err
	default:
		_, err := counter.Decode(step.Dispatch, step.Args)
		return err
	}
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
