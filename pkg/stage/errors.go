package stage

import (
	"github.com/cockroachdb/errors"

	"github.com/ib-77/ropchain/pkg/bundle"
)

var (
	// ErrInvalidInput marks a stage that failed fast because a required
	// input key was absent, empty or of the wrong type.
	ErrInvalidInput = errors.New("invalid input")
	// ErrExecutionFault marks any operational fault inside a stage: I/O,
	// decoding, a missing resource or a recovered panic.
	ErrExecutionFault = errors.New("execution fault")
)

// InvalidInput builds an ErrInvalidInput failure with a descriptive cause.
func InvalidInput(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidInput)
}

// Fault wraps err as an execution fault with context. A nil err stays nil.
func Fault(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrap(err, msg), ErrExecutionFault)
}

// RequireString returns the non-empty string stored under key or an
// ErrInvalidInput error naming the key.
func RequireString(in bundle.Bundle, key string) (string, error) {
	s, ok, err := in.GetString(key)
	if err != nil {
		return "", errors.Mark(err, ErrInvalidInput)
	}
	if !ok || s == "" {
		return "", InvalidInput("invalid input: %q is missing or empty", key)
	}
	return s, nil
}

// OptionalInt returns the integer under key, def when absent.
func OptionalInt(in bundle.Bundle, key string, def int64) (int64, error) {
	v, ok, err := in.GetInt(key)
	if err != nil {
		return 0, errors.Mark(err, ErrInvalidInput)
	}
	if !ok {
		return def, nil
	}
	return v, nil
}
