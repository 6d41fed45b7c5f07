// Package client is the host-facing entry point: it turns a blur request
// into a cleanup, transform, persist chain and runs it in the background.
package client

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/ib-77/ropchain/pkg/bundle"
	"github.com/ib-77/ropchain/pkg/chain"
	"github.com/ib-77/ropchain/pkg/stage"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("client closed")

// Stages are the three stages every blur chain is assembled from.
type Stages struct {
	Cleanup   stage.Stage
	Transform stage.Stage
	Persist   stage.Stage
}

func (s Stages) validate() error {
	if s.Cleanup == nil || s.Transform == nil || s.Persist == nil {
		return errors.New("client: cleanup, transform and persist stages are required")
	}
	return nil
}

type Request struct {
	ImageURI  string
	BlurLevel int
}

// Recorder receives the report of every finished chain.
type Recorder interface {
	Record(ctx context.Context, rep chain.Report) error
}

type Option func(*Client)

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.rec = r }
}

// WithMaxConcurrent bounds the number of chains running at once.
// n <= 0 means unbounded.
func WithMaxConcurrent(n int) Option {
	return func(c *Client) { c.maxConcurrent = n }
}

// WithSubmitRate throttles Submit to perSec submissions per second.
func WithSubmitRate(perSec float64, burst int) Option {
	return func(c *Client) {
		if perSec <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

type Client struct {
	exec          *chain.Executor
	stages        Stages
	log           zerolog.Logger
	rec           Recorder
	limiter       *rate.Limiter
	maxConcurrent int
	slots         *semaphore.Weighted

	g      errgroup.Group
	mu     sync.Mutex
	closed bool
}

// New builds a client running chains on exec. It panics when a stage is
// missing, as that is a wiring bug.
func New(exec *chain.Executor, stages Stages, opts ...Option) *Client {
	if exec == nil {
		panic("client: nil executor")
	}
	if err := stages.validate(); err != nil {
		panic(err.Error())
	}
	c := &Client{exec: exec, stages: stages, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxConcurrent > 0 {
		c.slots = semaphore.NewWeighted(int64(c.maxConcurrent))
	}
	return c
}

// ApplyBlur submits a blur of the image at uri with the given level.
func (c *Client) ApplyBlur(ctx context.Context, level int, uri string) (*Handle, error) {
	return c.Submit(ctx, Request{ImageURI: uri, BlurLevel: level})
}

// Submit assembles the chain for req and schedules it. The request is not
// validated here: an empty ImageURI surfaces as an invalid-input failure of
// the transform stage.
//
// Submit waits for the rate limiter and, when MaxConcurrent chains are
// already running, for a free slot. Both waits give up with ctx.Err() once
// ctx is done. ctx also governs the chain itself: cancelling it stops the
// chain before its next stage.
//
// Every chain gets its own RUN_ID, passed to the cleanup and transform
// stages, so concurrent chains keep their scratch files apart.
func (c *Client) Submit(ctx context.Context, req Request) (*Handle, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "submit throttled")
		}
	}

	runID := uuid.NewString()
	input := bundle.NewBuilder().
		PutString(KeyImageURI, req.ImageURI).
		PutInt(KeyBlurLevel, int64(req.BlurLevel)).
		PutString(KeyRunID, runID).
		Build()

	ch, err := chain.BeginWith(c.stages.Cleanup).
		Then(c.stages.Transform).
		Then(c.stages.Persist).
		WithInput(c.stages.Cleanup, bundle.NewBuilder().PutString(KeyRunID, runID).Build()).
		WithInput(c.stages.Transform, input).
		Build()
	if err != nil {
		return nil, err
	}

	if err := c.acquire(ctx); err != nil {
		return nil, errors.Wrap(err, "wait for slot")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.release()
		return nil, ErrClosed
	}

	h := newHandle(ch.ID())
	log := c.log.With().Str("chain", ch.ID().String()).Str("run", runID).Logger()
	log.Info().Str("image", req.ImageURI).Int("level", req.BlurLevel).Msg("chain submitted")

	c.g.Go(func() error {
		defer c.release()
		rep := c.exec.Run(ctx, ch)
		if c.rec != nil {
			if err := c.rec.Record(context.WithoutCancel(ctx), rep); err != nil {
				log.Warn().Err(err).Msg("record run failed")
			}
		}
		h.resolve(rep.Outcome)
		return nil
	})
	return h, nil
}

// acquire takes a run slot. A free slot is taken even when ctx is already
// done; the chain then fails on its own.
func (c *Client) acquire(ctx context.Context) error {
	if c.slots == nil || c.slots.TryAcquire(1) {
		return nil
	}
	return c.slots.Acquire(ctx, 1)
}

func (c *Client) release() {
	if c.slots != nil {
		c.slots.Release(1)
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close rejects further submissions and waits for in-flight chains.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.g.Wait()
}

// Handle observes one submitted chain.
type Handle struct {
	id      uuid.UUID
	done    chan struct{}
	outcome stage.Outcome
}

func newHandle(id uuid.UUID) *Handle {
	return &Handle{id: id, done: make(chan struct{})}
}

func (h *Handle) resolve(o stage.Outcome) {
	h.outcome = o
	close(h.done)
}

// ID is the chain id.
func (h *Handle) ID() uuid.UUID { return h.id }

// Done is closed once the terminal outcome is available.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Outcome returns the terminal outcome without blocking; ok is false while
// the chain is still running.
func (h *Handle) Outcome() (stage.Outcome, bool) {
	select {
	case <-h.done:
		return h.outcome, true
	default:
		return stage.Outcome{}, false
	}
}

// Wait blocks until the chain finishes or ctx is done.
func (h *Handle) Wait(ctx context.Context) (stage.Outcome, error) {
	select {
	case <-h.done:
		return h.outcome, nil
	case <-ctx.Done():
		return stage.Outcome{}, ctx.Err()
	}
}
