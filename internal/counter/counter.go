// Package counter is the demo domain: a single integer driven by increase,
// decrease and set_count actions.
package counter

import "github.com/roach88/reflux/internal/store"

// State is the counter state.
type State struct {
	Count int `json:"count" yaml:"count"`
}

// Action tags.
const (
	TypeIncrease = "increase"
	TypeDecrease = "decrease"
	TypeSetCount = "set_count"
)

// Increase adds one.
type Increase struct{}

func (Increase) ActionType() string { return TypeIncrease }

// Decrease subtracts one.
type Decrease struct{}

func (Decrease) ActionType() string { return TypeDecrease }

// SetCount replaces the count.
type SetCount struct {
	Count int `json:"count" yaml:"count"`
}

func (SetCount) ActionType() string { return TypeSetCount }

// Gain handles Increase and Decrease.
var Gain = store.Handlers[State]{
	TypeIncrease: func(s State, _ store.Action) State { return State{Count: s.Count + 1} },
	TypeDecrease: func(s State, _ store.Action) State { return State{Count: s.Count - 1} },
}.Reducer()

// SetCountReducer handles SetCount.
var SetCountReducer = store.Handlers[State]{
	TypeSetCount: func(s State, a store.Action) State {
		set, ok := a.(SetCount)
		if !ok {
			return s
		}
		return State{Count: set.Count}
	},
}.Reducer()

// Reducer is the full counter reducer.
var Reducer = store.Combine(Gain, SetCountReducer)

// NewStore creates a counter store.
func NewStore(initial State, opts ...store.Option[State]) *store.Store[State] {
	return store.New(initial, Reducer, opts...)
}
