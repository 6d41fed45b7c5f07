package chain

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// ErrChainAborted matches a chain failure after which downstream
	// stages never ran.
	ErrChainAborted = errors.New("chain aborted")
	// ErrChainConsumed is returned when a chain is enqueued a second time.
	ErrChainConsumed = errors.New("chain already consumed")
	// ErrInvalidChain marks Build errors and nil chains.
	ErrInvalidChain = errors.New("invalid chain")
	// ErrNoOutcome is the cause used when a stage returns a zero Result.
	ErrNoOutcome = errors.New("stage returned no outcome")
)

// StageError is the cause of a failed chain: which stage failed, where it
// sat in the chain, why, and which stages were skipped because of it.
type StageError struct {
	Stage   string
	Index   int
	Cause   error
	Skipped []string
}

func (e *StageError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "stage %q (#%d) failed: %v", e.Stage, e.Index, e.Cause)
	if len(e.Skipped) > 0 {
		fmt.Fprintf(&sb, "; aborted %s", strings.Join(e.Skipped, ", "))
	}
	return sb.String()
}

func (e *StageError) Unwrap() error { return e.Cause }

// Is matches ErrChainAborted when at least one stage was skipped.
func (e *StageError) Is(target error) bool {
	return target == ErrChainAborted && len(e.Skipped) > 0
}

// FailedStage extracts the failing stage name from a chain failure.
func FailedStage(err error) (string, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
