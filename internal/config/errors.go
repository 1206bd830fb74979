package config

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
)

// Error codes for ConfigError.
const (
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeLoadFailed = "LOAD_FAILED"
	ErrCodeInvalid    = "INVALID"
)

// ConfigError is a configuration failure with the CUE position, if known.
type ConfigError struct {
	Code    string
	Message string
	Pos     token.Pos

	// Count is the number of CUE errors reported; only the first is kept.
	Count int
}

func (e *ConfigError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsInvalid returns true if err is a schema violation.
func IsInvalid(err error) bool {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeInvalid
	}
	return false
}

// IsNotFound returns true if the config path does not exist.
func IsNotFound(err error) bool {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeNotFound
	}
	return false
}
