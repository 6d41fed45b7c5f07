package chain

import (
	"reflect"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/ib-77/ropchain/pkg/bundle"
	"github.com/ib-77/ropchain/pkg/rop"
	"github.com/ib-77/ropchain/pkg/stage"
)

type link struct {
	stage stage.Stage
	input *bundle.Bundle // nil: inherit the previous stage's output
}

// Builder assembles an ordered list of stages. Then and WithInput modify the
// builder in place and return it for chaining.
type Builder struct {
	links []link
	errs  []error
}

// BeginWith starts a new chain whose head is st.
func BeginWith(st stage.Stage) *Builder {
	return (&Builder{}).Then(st)
}

// Then appends st after the current tail.
func (b *Builder) Then(st stage.Stage) *Builder {
	if rop.IsNil(st) {
		b.errs = append(b.errs, errors.Newf("stage #%d is nil", len(b.links)))
		return b
	}
	b.links = append(b.links, link{stage: st})
	return b
}

// WithInput attaches an explicit input bundle to st. The bundle replaces
// whatever the previous stage produces. When st was appended more than once
// the latest occurrence receives the input.
func (b *Builder) WithInput(st stage.Stage, in bundle.Bundle) *Builder {
	for i := len(b.links) - 1; i >= 0; i-- {
		if sameStage(b.links[i].stage, st) {
			b.links[i].input = &in
			return b
		}
	}
	name := "<nil>"
	if !rop.IsNil(st) {
		name = st.Name()
	}
	b.errs = append(b.errs, errors.Newf("WithInput: stage %q is not part of the chain", name))
	return b
}

// Build validates the assembled stages and returns an immutable Chain.
// Schema contracts are checked on every edge where a stage inherits its
// input from the previous stage.
func (b *Builder) Build() (*Chain, error) {
	errs := append([]error(nil), b.errs...)
	if len(b.links) == 0 && len(errs) == 0 {
		errs = append(errs, errors.New("chain has no stages"))
	}
	for i := 1; i < len(b.links); i++ {
		next := b.links[i]
		if next.input != nil {
			continue
		}
		prev := b.links[i-1]
		out := stage.SchemaOf(prev.stage).Output
		in := stage.SchemaOf(next.stage).Input
		if err := stage.Compatible(out, in); err != nil {
			errs = append(errs, errors.Wrapf(err, "%s -> %s", prev.stage.Name(), next.stage.Name()))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Mark(errors.Join(errs...), ErrInvalidChain)
	}

	links := make([]link, len(b.links))
	copy(links, b.links)
	return &Chain{id: uuid.New(), links: links}, nil
}

func sameStage(a, b stage.Stage) bool {
	if rop.IsNil(a) || rop.IsNil(b) {
		return false
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	if reflect.TypeOf(a).Comparable() {
		return a == b
	}
	return a.Name() == b.Name()
}

// Chain is a built, linear sequence of stages. It runs at most once.
type Chain struct {
	id       uuid.UUID
	links    []link
	consumed atomic.Bool
}

func (c *Chain) ID() uuid.UUID { return c.id }

func (c *Chain) Len() int { return len(c.links) }

// Stages returns the stage names in execution order.
func (c *Chain) Stages() []string {
	names := make([]string, len(c.links))
	for i, l := range c.links {
		names[i] = l.stage.Name()
	}
	return names
}

// Input returns the explicit input attached to the i-th stage, if any.
func (c *Chain) Input(i int) (bundle.Bundle, bool) {
	if i < 0 || i >= len(c.links) || c.links[i].input == nil {
		return bundle.Bundle{}, false
	}
	return *c.links[i].input, true
}

// Consumed reports whether the chain has already been handed to an executor.
func (c *Chain) Consumed() bool { return c.consumed.Load() }
