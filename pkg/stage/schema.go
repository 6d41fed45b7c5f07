package stage

import (
	"fmt"
	"slices"

	"github.com/cockroachdb/errors"
)

// Contract names a versioned set of bundle keys exchanged between two
// adjacent stages.
type Contract struct {
	Name    string
	Version int
	Keys    []string
}

func (c Contract) IsZero() bool {
	return c.Name == "" && len(c.Keys) == 0
}

func (c Contract) String() string {
	if c.Name == "" {
		return fmt.Sprintf("%v", c.Keys)
	}
	return fmt.Sprintf("%s/v%d%v", c.Name, c.Version, c.Keys)
}

// Schema declares what a stage reads from its inherited input and what it
// writes to its output.
type Schema struct {
	Input  Contract
	Output Contract
}

// Schemed is implemented by stages that declare a Schema.
type Schemed interface {
	Schema() Schema
}

// SchemaOf returns the declared schema of st, or the zero Schema.
func SchemaOf(st Stage) Schema {
	if s, ok := st.(Schemed); ok {
		return s.Schema()
	}
	return Schema{}
}

// Compatible checks that out (the previous stage's output) satisfies in
// (the next stage's input). Undeclared contracts are always compatible.
func Compatible(out, in Contract) error {
	if out.IsZero() || in.IsZero() {
		return nil
	}
	if out.Name != "" && in.Name != "" {
		if out.Name != in.Name || out.Version != in.Version {
			return errors.Newf("contract %s does not match %s", out, in)
		}
	}
	for _, k := range in.Keys {
		if !slices.Contains(out.Keys, k) {
			return errors.Newf("key %q required by %s is not provided by %s", k, in, out)
		}
	}
	return nil
}
