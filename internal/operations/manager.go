package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sovpanel/internal/infrastructure"
)

// Manager orchestrates pipeline runs
type Manager struct {
	registry *Registry
	config   *Config
	tracer   *OperationTracer
	logger   *slog.Logger
}

// NewManager creates a new manager. A nil tracer disables instrumentation.
func NewManager(registry *Registry, config *Config, tracer *OperationTracer, logger *slog.Logger) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if config == nil {
		config = NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		registry: registry,
		config:   config,
		tracer:   tracer,
		logger:   logger.With(slog.String("component", "pipeline")),
	}
}

// RegisterStep registers a step with the pipeline
func (m *Manager) RegisterStep(step Step) error {
	return m.registry.Register(step)
}

// GetRegistry returns the registry for accessing registered steps
func (m *Manager) GetRegistry() *Registry {
	return m.registry
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *Config {
	return m.config
}

// Run executes the registered steps in dependency order. The returned state
// carries every product of the run even when a step failed.
func (m *Manager) Run(ctx context.Context, req OperationRequest) (*OperationState, error) {
	if req.ID == "" {
		req.ID = infrastructure.GetRunID(ctx)
	}
	if req.ID == "" {
		req.ID = infrastructure.NewRunID()
	}
	ctx = infrastructure.WithRunID(ctx, req.ID)

	state := NewOperationState(req.ID)

	steps, err := m.selectSteps(req.Steps)
	if err != nil {
		m.logger.ErrorContext(ctx, "pipeline_plan_failed", slog.String("error", err.Error()))
		state.Fail(err)
		return state, err
	}
	for _, step := range steps {
		state.SetStep(step.ID(), NewStepState(step.ID(), step.Name()))
	}

	ctx, span := m.tracer.TraceRun(ctx, req.ID, len(steps))
	defer span.End()

	state.Start()
	m.logger.InfoContext(ctx, "pipeline_started", slog.Int("step_count", len(steps)))

	err = m.executeSequential(ctx, state, steps)
	switch {
	case err == nil:
		state.Complete()
	case errors.Is(err, context.Canceled) || GetErrorType(err) == ErrorTypeCancellation:
		state.Cancel()
		state.Error = err
	default:
		state.Fail(err)
	}

	m.logSummary(ctx, state)
	m.tracer.RecordRunCompletion(ctx, span, state.GetStatus(), state.Duration(), state.Drops.Total())
	return state, err
}

// Response converts a finished state into its summary
func (m *Manager) Response(state *OperationState) *OperationResponse {
	resp := &OperationResponse{
		ID:       state.ID,
		Status:   state.GetStatus(),
		Duration: state.Duration(),
		Steps:    state.Steps,
		Drops:    state.Drops.Entries(),
		Warnings: len(state.Warnings.Errors),
		Outputs:  state.Outputs,
	}
	if state.Error != nil {
		resp.Error = state.Error.Error()
	}
	return resp
}

// selectSteps orders every step, or only the requested ones
func (m *Manager) selectSteps(ids []string) ([]Step, error) {
	ordered, err := m.registry.GetDependencyOrder()
	if err != nil {
		return nil, fmt.Errorf("failed to get dependency order: %w", err)
	}
	if len(ids) == 0 {
		return ordered, nil
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !m.registry.Has(id) {
			return nil, fmt.Errorf("requested step not found: %s", id)
		}
		wanted[id] = true
	}
	selected := make([]Step, 0, len(ids))
	for _, step := range ordered {
		if wanted[step.ID()] {
			selected = append(selected, step)
		}
	}
	return selected, nil
}

// executeSequential executes steps one by one and stops at the first failure
func (m *Manager) executeSequential(ctx context.Context, state *OperationState, steps []Step) error {
	for i, step := range steps {
		if ctx.Err() != nil {
			m.logger.WarnContext(ctx, "pipeline_cancelled", slog.String("step", step.ID()))
			m.skipRemaining(state, steps[i:], "pipeline cancelled")
			return NewCancellationError(step.ID())
		}

		m.logger.InfoContext(ctx, "executing_step",
			slog.String("step", step.ID()),
			slog.Int("step_number", i+1),
			slog.Int("total_steps", len(steps)))

		if err := m.executeStep(ctx, state, step); err != nil {
			m.logger.ErrorContext(ctx, "step_failed",
				slog.String("step", step.ID()),
				slog.String("error_type", string(GetErrorType(err))),
				slog.String("error", err.Error()))
			m.skipDependentSteps(state, steps, step.ID())
			return err
		}
	}
	return nil
}

// executeStep runs one step under its timeout
func (m *Manager) executeStep(ctx context.Context, state *OperationState, step Step) error {
	stepState := state.GetStep(step.ID())
	if stepState == nil {
		return NewFatalError(fmt.Sprintf("state of step %s not found", step.ID()), nil)
	}

	if err := m.checkDependencies(state, step); err != nil {
		stepState.Skip(err.Error())
		return err
	}
	if err := step.Validate(state); err != nil {
		verr := NewValidationError(step.ID(), err.Error())
		stepState.Fail(verr)
		return verr
	}

	timeout := m.config.GetStepTimeout(step.ID())
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stepCtx, span := m.tracer.TraceStep(stepCtx, state.ID, step.ID())
	defer span.End()

	stepState.Start()
	start := time.Now()
	err := step.Execute(stepCtx, state)
	duration := time.Since(start)

	if err == nil && stepCtx.Err() != nil && ctx.Err() == nil {
		// the step ignored its deadline
		err = NewTimeoutError(step.ID(), timeout.String())
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = NewTimeoutError(step.ID(), timeout.String())
		}
		opErr := Classify(step.ID(), err)
		stepState.Fail(opErr)
		m.tracer.RecordStepCompletion(stepCtx, span, step.ID(), duration, opErr)
		return opErr
	}

	stepState.Complete()
	m.tracer.RecordStepCompletion(stepCtx, span, step.ID(), duration, nil)
	m.logger.InfoContext(ctx, "step_completed",
		slog.String("step", step.ID()),
		slog.Duration("duration", duration))
	return nil
}

// checkDependencies verifies that every dependency in this run completed.
// Dependencies outside the run are the caller's responsibility.
func (m *Manager) checkDependencies(state *OperationState, step Step) error {
	for _, dep := range step.GetDependencies() {
		depState := state.GetStep(dep)
		if depState == nil {
			continue
		}
		if status := depState.GetStatus(); status != StepStatusCompleted {
			return NewDependencyError(step.ID(), dep,
				fmt.Sprintf("dependency %s not completed (status: %s)", dep, status))
		}
	}
	return nil
}

// skipDependentSteps marks the steps that depend on the failed step,
// directly or transitively, as skipped, then stops the rest of the run
func (m *Manager) skipDependentSteps(state *OperationState, steps []Step, failedID string) {
	for _, dependent := range m.registry.GetDependents(failedID) {
		stepState := state.GetStep(dependent.ID())
		if stepState != nil && stepState.GetStatus() == StepStatusPending {
			stepState.Skip(fmt.Sprintf("dependency %s failed", failedID))
			m.skipDependentSteps(state, steps, dependent.ID())
		}
	}
	for _, step := range steps {
		if s := state.GetStep(step.ID()); s != nil && s.GetStatus() == StepStatusPending {
			s.Skip(fmt.Sprintf("pipeline stopped at %s", failedID))
		}
	}
}

func (m *Manager) skipRemaining(state *OperationState, steps []Step, reason string) {
	for _, step := range steps {
		if s := state.GetStep(step.ID()); s != nil && s.GetStatus() == StepStatusPending {
			s.Skip(reason)
		}
	}
}

// logSummary reports the outcome of the run and every drop count, so a
// reduction in rows is never silent
func (m *Manager) logSummary(ctx context.Context, state *OperationState) {
	for _, d := range state.Drops.Entries() {
		m.logger.InfoContext(ctx, "rows_dropped",
			slog.String("reason", d.Reason),
			slog.String("source", d.Source),
			slog.Int("count", d.Count))
	}

	attrs := []any{
		slog.String("status", string(state.GetStatus())),
		slog.Duration("duration", state.Duration()),
		slog.Int("dropped", state.Drops.Total()),
		slog.Int("warnings", len(state.Warnings.Errors)),
	}
	if state.Panel != nil {
		attrs = append(attrs, slog.Int("panel_rows", state.Panel.Len()),
			slog.Int("panel_columns", len(state.Panel.Columns())))
	}
	if state.Error != nil {
		attrs = append(attrs, slog.String("error", state.Error.Error()))
		m.logger.ErrorContext(ctx, "pipeline_finished", attrs...)
		return
	}
	m.logger.InfoContext(ctx, "pipeline_finished", attrs...)
}
