package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for expected failure modes
var (
	ErrUnsupportedInput  = errors.New("unsupported input")
	ErrInsufficientData  = errors.New("insufficient data")
	ErrTaskNotFound      = errors.New("task not found")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrFileTooLarge      = errors.New("file exceeds size limit")
)

// ConfigError reports a request or configuration parameter outside its
// allowed range. Out-of-range values are rejected, never clamped.
type ConfigError struct {
	Param string
	Value float64
	Min   float64
	Max   float64
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("parameter %s=%g out of range [%g, %g]", e.Param, e.Value, e.Min, e.Max)
}

// NewConfigError creates a ConfigError
func NewConfigError(param string, value, min, max float64) *ConfigError {
	return &ConfigError{Param: param, Value: value, Min: min, Max: max}
}

// IsConfigError returns true if err is a parameter-range violation
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
