package harness

import "github.com/roach88/reflux/internal/ir"

// TraceEvent is one journaled dispatch, in seq order.
type TraceEvent struct {
	Seq        int64       `json:"seq"`
	DispatchID string      `json:"dispatch_id"`
	Action     string      `json:"action"`
	Args       ir.IRObject `json:"args"`
	Applied    bool        `json:"applied"`
	Changed    bool        `json:"changed"`
	Depth      int         `json:"depth"`
	State      ir.IRValue  `json:"state"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every dispatch that reached the journal, nested ones
	// included, ordered by seq.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final store state.
	State ir.IRObject `json:"state"`

	// Notifications are the counts delivered to the recording subscriber.
	Notifications []int `json:"notifications"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:          true,
		Trace:         []TraceEvent{},
		Errors:        []string{},
		State:         ir.IRObject{},
		Notifications: []int{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends one trace event.
func (r *Result) AddTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}
