package operations_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sovpanel/internal/infrastructure"
	"sovpanel/internal/ingest"
	"sovpanel/internal/operations"
	"sovpanel/internal/operations/testutil"
	sharedtest "sovpanel/internal/shared/testutil"
)

func newManager(t *testing.T, steps ...operations.Step) (*operations.Manager, *sharedtest.BufferedSlogHandler) {
	t.Helper()
	logger, handler := sharedtest.NewTestLogger(t)
	m := operations.NewManager(nil, nil, nil, logger)
	for _, s := range steps {
		require.NoError(t, m.RegisterStep(s))
	}
	return m, handler
}

func TestManagerRunsStepsInOrder(t *testing.T) {
	var rec testutil.Recorder
	m, handler := newManager(t,
		rec.Step("export", "audit"),
		rec.Step("load"),
		rec.Step("merge", "load"),
		rec.Step("audit", "merge"),
	)

	state, err := m.Run(context.Background(), operations.OperationRequest{ID: "run-1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"load", "merge", "audit", "export"}, rec.Order())
	assert.Equal(t, operations.OperationStatusCompleted, state.GetStatus())
	for _, id := range rec.Order() {
		assert.Equal(t, operations.StepStatusCompleted, state.GetStep(id).GetStatus(), id)
	}

	sharedtest.AssertLogContains(t, handler, slog.LevelInfo, "pipeline_finished")
	sharedtest.AssertNoErrors(t, handler)

	resp := m.Response(state)
	assert.Equal(t, "run-1", resp.ID)
	assert.Empty(t, resp.Error)
}

func TestManagerStopsAtFatalError(t *testing.T) {
	load := testutil.NewMockStep("load")
	load.ExecuteFunc = func(context.Context, *operations.OperationState) error {
		return fmt.Errorf("source gfd: %w", ingest.ErrEmptySource)
	}
	merge := testutil.NewMockStep("merge", "load")
	audit := testutil.NewMockStep("audit", "merge")
	other := testutil.NewMockStep("report")

	m, handler := newManager(t, load, merge, audit, other)
	state, err := m.Run(context.Background(), operations.OperationRequest{})
	require.Error(t, err)

	assert.Equal(t, operations.ErrorTypeEmptySource, operations.GetErrorType(err))
	assert.ErrorIs(t, err, ingest.ErrEmptySource)
	assert.Equal(t, operations.OperationStatusFailed, state.GetStatus())
	assert.True(t, state.HasFailures())

	assert.Equal(t, 0, merge.GetExecuteCalls())
	assert.Equal(t, 0, other.GetExecuteCalls())
	assert.Equal(t, operations.StepStatusSkipped, state.GetStep("merge").GetStatus())
	assert.Equal(t, "dependency load failed", state.GetStep("merge").Message)
	assert.Equal(t, 0, audit.GetExecuteCalls())
	assert.Equal(t, "dependency merge failed", state.GetStep("audit").Message, "dependents are skipped transitively")
	assert.Equal(t, operations.StepStatusSkipped, state.GetStep("report").GetStatus())

	records := handler.GetRecordsByMessage("step_failed")
	require.Len(t, records, 1)
	errType, _ := records[0].Attr("error_type")
	assert.Equal(t, "empty_source", errType)
}

func TestManagerValidationFailure(t *testing.T) {
	merge := testutil.NewMockStep("merge")
	merge.ValidateFunc = func(*operations.OperationState) error {
		return errors.New("no tables to merge")
	}

	m, _ := newManager(t, merge)
	state, err := m.Run(context.Background(), operations.OperationRequest{})
	require.Error(t, err)

	assert.Equal(t, operations.ErrorTypeValidation, operations.GetErrorType(err))
	assert.Equal(t, 0, merge.GetExecuteCalls())
	assert.Equal(t, operations.StepStatusFailed, state.GetStep("merge").GetStatus())
}

func TestManagerStepTimeout(t *testing.T) {
	slow := testutil.NewMockStep("worldbank")
	slow.ExecuteFunc = func(ctx context.Context, _ *operations.OperationState) error {
		<-ctx.Done()
		return ctx.Err()
	}

	logger, _ := sharedtest.NewTestLogger(t)
	cfg := operations.NewConfig()
	cfg.SetStepTimeout("worldbank", 20*time.Millisecond)
	m := operations.NewManager(nil, cfg, nil, logger)
	require.NoError(t, m.RegisterStep(slow))

	start := time.Now()
	_, err := m.Run(context.Background(), operations.OperationRequest{})
	require.Error(t, err)
	assert.Equal(t, operations.ErrorTypeTimeout, operations.GetErrorType(err))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 20*time.Millisecond, cfg.GetStepTimeout("worldbank"))
	assert.Equal(t, operations.DefaultStepTimeout, cfg.GetStepTimeout("load"))
}

func TestManagerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := testutil.NewMockStep("load")
	first.ExecuteFunc = func(context.Context, *operations.OperationState) error {
		cancel()
		return nil
	}
	second := testutil.NewMockStep("merge", "load")

	m, _ := newManager(t, first, second)
	state, err := m.Run(ctx, operations.OperationRequest{})
	require.Error(t, err)

	assert.Equal(t, operations.ErrorTypeCancellation, operations.GetErrorType(err))
	assert.Equal(t, operations.OperationStatusCancelled, state.GetStatus())
	assert.Equal(t, 0, second.GetExecuteCalls())
	assert.Equal(t, operations.StepStatusSkipped, state.GetStep("merge").GetStatus())
}

func TestManagerSelectedSteps(t *testing.T) {
	var rec testutil.Recorder
	m, _ := newManager(t, rec.Step("load"), rec.Step("worldbank", "load"), rec.Step("merge", "load"))

	_, err := m.Run(context.Background(), operations.OperationRequest{Steps: []string{"worldbank"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"worldbank"}, rec.Order())

	_, err = m.Run(context.Background(), operations.OperationRequest{Steps: []string{"nope"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requested step not found")
}

func TestManagerRunIDReachesSteps(t *testing.T) {
	var seen string
	step := testutil.NewMockStep("load")
	step.ExecuteFunc = func(ctx context.Context, _ *operations.OperationState) error {
		seen = infrastructure.GetRunID(ctx)
		return nil
	}

	m, _ := newManager(t, step)
	ctx := infrastructure.WithRunID(context.Background(), "from-context")
	state, err := m.Run(ctx, operations.OperationRequest{})
	require.NoError(t, err)
	assert.Equal(t, "from-context", seen)
	assert.Equal(t, "from-context", state.ID)

	state, err = m.Run(context.Background(), operations.OperationRequest{})
	require.NoError(t, err)
	assert.Len(t, state.ID, 36)
}

func TestManagerLogsDrops(t *testing.T) {
	step := testutil.NewMockStep("load")
	step.ExecuteFunc = func(_ context.Context, state *operations.OperationState) error {
		state.Drops.Add(ingest.DropUnresolvedCountry, "gfd_yields", 3)
		state.Drops.Add(ingest.DropBadValue, "gfd_yields", 1)
		return nil
	}

	m, handler := newManager(t, step)
	state, err := m.Run(context.Background(), operations.OperationRequest{})
	require.NoError(t, err)

	records := handler.GetRecordsByMessage("rows_dropped")
	require.Len(t, records, 2)
	reason, _ := records[0].Attr("reason")
	assert.Equal(t, "bad_value", reason)

	resp := m.Response(state)
	assert.Equal(t, []operations.DropCount{
		{Reason: "bad_value", Source: "gfd_yields", Count: 1},
		{Reason: "unresolved_country", Source: "gfd_yields", Count: 3},
	}, resp.Drops)
}
