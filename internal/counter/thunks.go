package counter

import (
	"fmt"
	"slices"

	"github.com/roach88/reflux/internal/store"
)

// IncrementIfOdd increases the count only when it is odd.
func IncrementIfOdd(s State, api store.API[State]) {
	if s.Count%2 != 0 {
		api.Dispatch(Increase{})
	}
}

// IncrementTwice dispatches two increases; each goes through the full chain.
func IncrementTwice(_ State, api store.API[State]) {
	api.Dispatch(Increase{})
	api.Dispatch(Increase{})
}

// Reset sets the count back to zero unless it already is.
func Reset(s State, api store.API[State]) {
	if s.Count != 0 {
		api.Dispatch(SetCount{Count: 0})
	}
}

var thunks = map[string]store.Thunk[State]{
	"increment_if_odd": IncrementIfOdd,
	"increment_twice":  IncrementTwice,
	"reset":            Reset,
}

// Thunk looks up a named thunk for scenarios and the command line.
func Thunk(name string) (store.Thunk[State], error) {
	th, ok := thunks[name]
	if !ok {
		return nil, fmt.Errorf("unknown thunk %q", name)
	}
	return th, nil
}

// ThunkNames lists the named thunks in sorted order.
func ThunkNames() []string {
	names := make([]string, 0, len(thunks))
	for name := range thunks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
