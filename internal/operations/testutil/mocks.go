package testutil

import (
	"context"
	"sync"
	"time"

	"sovpanel/internal/operations"
)

// MockStep is a configurable mock implementation of the step interface
type MockStep struct {
	IDValue           string
	NameValue         string
	DependenciesValue []string

	// Configurable functions
	ExecuteFunc  func(ctx context.Context, state *operations.OperationState) error
	ValidateFunc func(state *operations.OperationState) error

	// Call tracking
	mu            sync.Mutex
	ExecuteCalls  int
	ExecuteArgs   []ExecuteCall
	ValidateCalls int
}

// ExecuteCall tracks arguments passed to Execute
type ExecuteCall struct {
	Ctx   context.Context
	State *operations.OperationState
	Time  time.Time
}

// NewMockStep creates a mock that succeeds
func NewMockStep(id string, deps ...string) *MockStep {
	return &MockStep{IDValue: id, NameValue: id, DependenciesValue: deps}
}

// ID returns the step ID
func (m *MockStep) ID() string {
	return m.IDValue
}

// Name returns the step name
func (m *MockStep) Name() string {
	return m.NameValue
}

// GetDependencies returns the step dependencies
func (m *MockStep) GetDependencies() []string {
	if m.DependenciesValue == nil {
		return []string{}
	}
	return m.DependenciesValue
}

// Execute runs the mock execute function
func (m *MockStep) Execute(ctx context.Context, state *operations.OperationState) error {
	m.mu.Lock()
	m.ExecuteCalls++
	m.ExecuteArgs = append(m.ExecuteArgs, ExecuteCall{Ctx: ctx, State: state, Time: time.Now()})
	m.mu.Unlock()

	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, state)
	}
	return nil
}

// Validate runs the mock validate function
func (m *MockStep) Validate(state *operations.OperationState) error {
	m.mu.Lock()
	m.ValidateCalls++
	m.mu.Unlock()

	if m.ValidateFunc != nil {
		return m.ValidateFunc(state)
	}
	return nil
}

// GetExecuteCalls returns the number of Execute calls
func (m *MockStep) GetExecuteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ExecuteCalls
}

// GetValidateCalls returns the number of Validate calls
func (m *MockStep) GetValidateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ValidateCalls
}

// Recorder records the order in which steps ran
type Recorder struct {
	mu    sync.Mutex
	order []string
}

// Step returns a mock that appends its ID to the recorder when executed
func (r *Recorder) Step(id string, deps ...string) *MockStep {
	m := NewMockStep(id, deps...)
	m.ExecuteFunc = func(context.Context, *operations.OperationState) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.order = append(r.order, id)
		return nil
	}
	return m
}

// Order returns the executed step IDs
func (r *Recorder) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
