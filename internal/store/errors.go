package store

import (
	"errors"
	"fmt"
)

// DispatchError reports a misuse of the dispatch pipeline.
//
// Dispatch cannot fail for well-behaved callers, so these are raised as panics:
//   - Reducer dispatch: a reducer called Dispatch or DispatchThunk
//   - Depth exceeded: nested dispatch went past the configured max depth
type DispatchError struct {
	// Code identifies the error category.
	Code DispatchErrorCode

	// Message is a human-readable description.
	Message string

	// ActionType is the tag of the action being dispatched, if any.
	ActionType string

	// Depth is the dispatch depth at the time of the error.
	Depth int
}

// DispatchErrorCode categorizes dispatch errors.
type DispatchErrorCode string

const (
	// ErrCodeReducerDispatch indicates a reducer tried to dispatch.
	ErrCodeReducerDispatch DispatchErrorCode = "REDUCER_DISPATCH"

	// ErrCodeDepthExceeded indicates nested dispatch exceeded the max depth.
	ErrCodeDepthExceeded DispatchErrorCode = "DEPTH_EXCEEDED"
)

// Error implements the error interface.
func (e *DispatchError) Error() string {
	if e.ActionType != "" {
		return fmt.Sprintf("%s: %s (action=%s, depth=%d)", e.Code, e.Message, e.ActionType, e.Depth)
	}
	return fmt.Sprintf("%s: %s (depth=%d)", e.Code, e.Message, e.Depth)
}

// IsReducerDispatch returns true if err is a reducer dispatch error.
// Uses errors.As to handle wrapped errors.
func IsReducerDispatch(err error) bool {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Code == ErrCodeReducerDispatch
	}
	return false
}

// IsDepthExceeded returns true if err is a depth exceeded error.
func IsDepthExceeded(err error) bool {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Code == ErrCodeDepthExceeded
	}
	return false
}

func newReducerDispatchError(actionType string, depth int) *DispatchError {
	return &DispatchError{
		Code:       ErrCodeReducerDispatch,
		Message:    "reducers must not dispatch",
		ActionType: actionType,
		Depth:      depth,
	}
}

func newDepthError(actionType string, depth, maxDepth int) *DispatchError {
	return &DispatchError{
		Code:       ErrCodeDepthExceeded,
		Message:    fmt.Sprintf("nested dispatch exceeded max depth (%d >= %d)", depth, maxDepth),
		ActionType: actionType,
		Depth:      depth,
	}
}
