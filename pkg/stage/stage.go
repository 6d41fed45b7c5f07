package stage

import (
	"context"
	"runtime/debug"

	"github.com/cockroachdb/errors"

	"github.com/ib-77/ropchain/pkg/bundle"
	"github.com/ib-77/ropchain/pkg/rop"
	"github.com/ib-77/ropchain/pkg/rop/solo"
)

// Outcome is what a stage, and a whole chain, reports.
type Outcome = rop.Result[bundle.Bundle]

// Stage is one unit of work in a chain. Execute must never panic past its
// boundary; every fault comes back as a failed Outcome.
type Stage interface {
	Name() string
	Execute(ctx context.Context, in bundle.Bundle) Outcome
}

// ExecFunc is the plain-function form of a stage body.
type ExecFunc func(ctx context.Context, in bundle.Bundle) (bundle.Bundle, error)

type funcStage struct {
	name   string
	fn     ExecFunc
	schema *Schema
}

// Func adapts fn into a Stage. Errors returned by fn become failures
// classified as ErrExecutionFault unless they already carry
// ErrInvalidInput; a panic inside fn is recovered into ErrExecutionFault.
func Func(name string, fn ExecFunc) Stage {
	return &funcStage{name: name, fn: fn}
}

// FuncWithSchema is Func plus a declared input/output contract.
func FuncWithSchema(name string, schema Schema, fn ExecFunc) Stage {
	return &funcStage{name: name, fn: fn, schema: &schema}
}

func (s *funcStage) Name() string { return s.name }

func (s *funcStage) Execute(ctx context.Context, in bundle.Bundle) Outcome {
	return Run(ctx, in, s.fn)
}

func (s *funcStage) Schema() Schema {
	if s.schema == nil {
		return Schema{}
	}
	return *s.schema
}

// Run executes fn on the success track and folds its error or panic into a
// failed Outcome. Stage implementations that are not built with Func call it
// to honour the no-escape contract.
func Run(ctx context.Context, in bundle.Bundle, fn ExecFunc) Outcome {
	return solo.Try(ctx, rop.Success(in), func(ctx context.Context, in bundle.Bundle) (out bundle.Bundle, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.Mark(
					errors.Newf("panic: %v\n%s", r, debug.Stack()),
					ErrExecutionFault,
				)
			}
		}()
		out, err = fn(ctx, in)
		if err != nil {
			return bundle.Bundle{}, Classify(err)
		}
		return out, nil
	})
}

// Classify marks err as an execution fault unless it is already an
// invalid-input failure.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrExecutionFault) {
		return err
	}
	return errors.Mark(err, ErrExecutionFault)
}
