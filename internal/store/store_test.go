package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ib-77/ropchain/pkg/bundle"
	"github.com/ib-77/ropchain/pkg/chain"
	"github.com/ib-77/ropchain/pkg/rop"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "db", "runs.db")}, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, s)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_Disabled(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{"", "none", " NONE "} {
		s, err := Open(Config{Driver: driver}, zerolog.Nop())
		assert.NoError(t, err)
		assert.Nil(t, s)
	}

	var s *Store
	assert.NoError(t, s.Record(context.Background(), chain.Report{}))
	runs, err := s.Recent(context.Background(), 5)
	assert.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, s.Close())
}

func TestOpen_Errors(t *testing.T) {
	t.Parallel()

	_, err := Open(Config{Driver: "postgres"}, zerolog.Nop())
	assert.ErrorContains(t, err, "unknown store driver")

	_, err = Open(Config{Driver: "sqlite"}, zerolog.Nop())
	assert.ErrorContains(t, err, "path is required")
}

func TestRecord_RoundTrip(t *testing.T) {
	t.Parallel()
	s := openTemp(t)
	ctx := context.Background()

	out := bundle.NewBuilder().PutString("IMAGE_URI", "file:///out/a.png").Build()
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ok := chain.Report{
		ChainID: uuid.New(),
		Outcome: rop.Success(out),
		Started: start,
		Took:    1500 * time.Millisecond,
		Steps: []chain.Step{
			{Stage: "Cleanup", Status: chain.StepSucceeded},
			{Stage: "Blur", Status: chain.StepSucceeded},
			{Stage: "Save", Status: chain.StepSucceeded},
		},
	}
	failed := chain.Report{
		ChainID: uuid.New(),
		Outcome: rop.Fail[bundle.Bundle](&chain.StageError{
			Stage:   "Blur",
			Index:   1,
			Cause:   errors.New("Invalid input URI"),
			Skipped: []string{"Save"},
		}),
		Started: start.Add(time.Minute),
		Steps: []chain.Step{
			{Stage: "Cleanup", Status: chain.StepSucceeded},
			{Stage: "Blur", Status: chain.StepFailed},
			{Stage: "Save", Status: chain.StepAborted},
		},
	}

	require.NoError(t, s.Record(ctx, ok))
	require.NoError(t, s.Record(ctx, failed))

	runs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// newest first
	assert.Equal(t, failed.ChainID, runs[0].ID)
	assert.Equal(t, StatusFailed, runs[0].Status)
	assert.Equal(t, "Blur", runs[0].FailedStage)
	assert.Contains(t, runs[0].Error, "Invalid input URI")
	assert.True(t, runs[0].Output.IsEmpty())

	assert.Equal(t, ok.ChainID, runs[1].ID)
	assert.Equal(t, StatusSucceeded, runs[1].Status)
	assert.Equal(t, []string{"Cleanup", "Blur", "Save"}, runs[1].Stages)
	assert.True(t, out.Equal(runs[1].Output))
	assert.True(t, start.Equal(runs[1].StartedAt))
	assert.Equal(t, 1500*time.Millisecond, runs[1].Took)
}

func TestRecent_Limit(t *testing.T) {
	t.Parallel()
	s := openTemp(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(ctx, chain.Report{
			ChainID: uuid.New(),
			Outcome: rop.Success(bundle.Empty()),
			Started: base.Add(time.Duration(i) * time.Second),
		}))
	}

	runs, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.True(t, runs[0].StartedAt.After(runs[1].StartedAt))
	assert.Empty(t, runs[0].Stages)
}

func TestRecord_DuplicateID(t *testing.T) {
	t.Parallel()
	s := openTemp(t)

	rep := chain.Report{ChainID: uuid.New(), Outcome: rop.Success(bundle.Empty()), Started: time.Now()}
	require.NoError(t, s.Record(context.Background(), rep))
	assert.Error(t, s.Record(context.Background(), rep))
}

func TestRecord_NonFiniteOutput(t *testing.T) {
	t.Parallel()
	s := openTemp(t)
	ctx := context.Background()

	out := bundle.NewBuilder().PutFloat("score", math.NaN()).PutFloat("max", math.Inf(1)).Build()
	rep := chain.Report{ChainID: uuid.New(), Outcome: rop.Success(out), Started: time.Now()}
	require.NoError(t, s.Record(ctx, rep))

	runs, err := s.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, out.Equal(runs[0].Output))
}
