package chain

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ib-77/ropchain/pkg/bundle"
	"github.com/ib-77/ropchain/pkg/rop"
	"github.com/ib-77/ropchain/pkg/rop/solo"
	"github.com/ib-77/ropchain/pkg/stage"
)

// Executor runs built chains. It holds no per-chain state and may be shared
// by any number of goroutines, each running its own chain.
type Executor struct {
	log zerolog.Logger
	now func() time.Time
}

type Option func(*Executor)

func WithLogger(log zerolog.Logger) Option {
	return func(e *Executor) { e.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

func NewExecutor(opts ...Option) *Executor {
	e := &Executor{log: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enqueue runs c to completion or first failure and returns the terminal
// outcome: the last stage's outcome on success, or a failure whose cause is
// a *StageError naming the failing stage.
func (e *Executor) Enqueue(ctx context.Context, c *Chain) stage.Outcome {
	return e.Run(ctx, c).Outcome
}

// Run is Enqueue with a per-stage report.
//
// Stage i+1 is invoked only after stage i returned success. Its input is
// the bundle attached with WithInput if any, otherwise stage i's output.
// The head receives its attached bundle or an empty one. Stages run on the
// calling goroutine. If ctx is done before a stage starts, that stage is
// not invoked and the chain fails in its name.
func (e *Executor) Run(ctx context.Context, c *Chain) Report {
	if c == nil {
		return Report{Outcome: rop.Fail[bundle.Bundle](errors.Wrap(ErrInvalidChain, "nil chain"))}
	}
	if !c.consumed.CompareAndSwap(false, true) {
		return Report{
			ChainID: c.id,
			Outcome: rop.Fail[bundle.Bundle](errors.Wrapf(ErrChainConsumed, "chain %s", c.id)),
		}
	}

	log := e.log.With().Str("chain", c.id.String()).Logger()
	started := e.now()
	report := Report{ChainID: c.id, Started: started, Steps: make([]Step, 0, len(c.links))}

	current := bundle.Empty()
	if head := c.links[0].input; head != nil {
		current = *head
	}

	var last stage.Outcome
	for i, l := range c.links {
		if i > 0 && l.input != nil {
			current = *l.input
		}
		name := l.stage.Name()
		stageLog := log.With().Str("stage", name).Int("index", i).Logger()

		if err := ctx.Err(); err != nil {
			last = rop.Fail[bundle.Bundle](errors.Wrap(err, "chain cancelled before stage"))
			report.Steps = append(report.Steps, Step{Stage: name, Index: i, Status: StepFailed, Started: e.now(), Err: last.Err()})
		} else {
			stageLog.Debug().Stringer("input", current).Msg("stage started")
			stepStart := e.now()
			last = l.stage.Execute(ctx, current)
			if last.IsEmpty() {
				last = rop.Fail[bundle.Bundle](errors.Mark(ErrNoOutcome, stage.ErrExecutionFault))
			}
			took := e.now().Sub(stepStart)

			step := Step{Stage: name, Index: i, Status: StepSucceeded, Started: stepStart, Took: took}
			solo.DoubleTee(ctx, last,
				func(ctx context.Context, out bundle.Bundle) {
					stageLog.Debug().Dur("took", took).Stringer("output", out).Msg("stage succeeded")
				},
				func(ctx context.Context, err error) {
					step.Status = StepFailed
					step.Err = err
					level := zerolog.ErrorLevel
					if rop.IsCancellationError(err) {
						level = zerolog.WarnLevel
					}
					stageLog.WithLevel(level).Err(err).Dur("took", took).Msg("stage failed")
				})
			report.Steps = append(report.Steps, step)
		}

		if !last.IsSuccess() {
			report.Outcome = e.abort(c, i, last.Err(), &report)
			report.Took = e.now().Sub(started)
			log.Info().Str("failed_stage", name).Dur("took", report.Took).Msg("chain failed")
			return report
		}
		current = last.Result()
	}

	report.Outcome = last
	report.Took = e.now().Sub(started)
	log.Info().Int("stages", len(c.links)).Dur("took", report.Took).Msg("chain succeeded")
	return report
}

// abort records every stage after failed as skipped and builds the chain
// failure.
func (e *Executor) abort(c *Chain, failed int, cause error, report *Report) stage.Outcome {
	failedName := c.links[failed].stage.Name()
	se := &StageError{Stage: failedName, Index: failed, Cause: cause}
	for j := failed + 1; j < len(c.links); j++ {
		name := c.links[j].stage.Name()
		se.Skipped = append(se.Skipped, name)
		report.Steps = append(report.Steps, Step{
			Stage:  name,
			Index:  j,
			Status: StepAborted,
			Err:    errors.Wrapf(ErrChainAborted, "upstream stage %q failed", failedName),
		})
	}
	return rop.Fail[bundle.Bundle](se)
}

// StepStatus is the per-stage result recorded in a Report.
type StepStatus string

const (
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
	StepAborted   StepStatus = "aborted"
)

type Step struct {
	Stage   string
	Index   int
	Status  StepStatus
	Started time.Time
	Took    time.Duration
	Err     error
}

// Report describes one run of a chain.
type Report struct {
	ChainID uuid.UUID
	Outcome stage.Outcome
	Started time.Time
	Took    time.Duration
	Steps   []Step
}

// FailedStep returns the step that failed, if any.
func (r Report) FailedStep() (Step, bool) {
	for _, s := range r.Steps {
		if s.Status == StepFailed {
			return s, true
		}
	}
	return Step{}, false
}
