package chain

import (
	"context"
	"testing"

	crdb "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ib-77/ropchain/pkg/bundle"
	"github.com/ib-77/ropchain/pkg/stage"
)

var imageV1 = stage.Contract{Name: "image", Version: 1, Keys: []string{keyURI}}

func schemed(name string, sch stage.Schema) stage.Stage {
	return stage.FuncWithSchema(name, sch, func(ctx context.Context, in bundle.Bundle) (bundle.Bundle, error) {
		return in, nil
	})
}

func TestBuilder_ThenIsInPlace(t *testing.T) {
	t.Parallel()

	b := BeginWith(echo("a"))
	same := b.Then(echo("b"))
	if same != b {
		t.Fatalf("Then must return the same builder")
	}
	c := mustBuild(t, b)
	assert.Equal(t, []string{"a", "b"}, c.Stages())
}

func TestBuilder_ChainIsImmutableAfterBuild(t *testing.T) {
	t.Parallel()

	b := BeginWith(echo("a"))
	c := mustBuild(t, b)
	b.Then(echo("late"))

	assert.Equal(t, []string{"a"}, c.Stages())
}

func TestBuilder_NilStage(t *testing.T) {
	t.Parallel()

	var typedNil *spy
	_, err := BeginWith(echo("a")).Then(typedNil).Build()
	assert.True(t, crdb.Is(err, ErrInvalidChain), "got %v", err)

	_, err = BeginWith(nil).Build()
	assert.True(t, crdb.Is(err, ErrInvalidChain))
}

func TestBuilder_WithInputUnknownStage(t *testing.T) {
	t.Parallel()

	_, err := BeginWith(echo("a")).WithInput(echo("a"), uri("x")).Build()
	require.Error(t, err)
	assert.True(t, crdb.Is(err, ErrInvalidChain))
	assert.Contains(t, err.Error(), "not part of the chain")
}

func TestBuilder_WithInputTargetsLatestOccurrence(t *testing.T) {
	t.Parallel()

	s := echo("twice")
	c := mustBuild(t, BeginWith(s).Then(s).WithInput(s, uri("x")))

	_, ok := c.Input(0)
	assert.False(t, ok)
	in, ok := c.Input(1)
	assert.True(t, ok)
	assert.True(t, in.Equal(uri("x")))
}

func TestBuilder_SchemaMatch(t *testing.T) {
	t.Parallel()

	producer := schemed("Transform", stage.Schema{Output: imageV1})
	consumer := schemed("Persist", stage.Schema{Input: imageV1, Output: imageV1})

	_, err := BeginWith(producer).Then(consumer).Build()
	assert.NoError(t, err)
}

func TestBuilder_SchemaMismatchIsBuildError(t *testing.T) {
	t.Parallel()

	producer := schemed("Transform", stage.Schema{Output: stage.Contract{Name: "image", Version: 2, Keys: []string{keyURI}}})
	consumer := schemed("Persist", stage.Schema{Input: imageV1})

	_, err := BeginWith(producer).Then(consumer).Build()
	require.Error(t, err)
	assert.True(t, crdb.Is(err, ErrInvalidChain))
	assert.Contains(t, err.Error(), "Transform -> Persist")
}

func TestBuilder_SchemaSkippedForExplicitInput(t *testing.T) {
	t.Parallel()

	cleanup := schemed("Cleanup", stage.Schema{Output: stage.Contract{Name: "none", Version: 1}})
	transform := schemed("Transform", stage.Schema{Input: imageV1, Output: imageV1})

	_, err := BeginWith(cleanup).Then(transform).Build()
	assert.Error(t, err, "inherited edge is checked")

	_, err = BeginWith(cleanup).Then(transform).WithInput(transform, bundle.Empty()).Build()
	assert.NoError(t, err, "explicit input is validated by the stage at run time")
}

func TestBuilder_EmptyBuilder(t *testing.T) {
	t.Parallel()

	_, err := (&Builder{}).Build()
	assert.True(t, crdb.Is(err, ErrInvalidChain))
}
