package operations

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Step represents a single step of the pipeline
type Step interface {
	// ID returns the unique identifier for this step
	ID() string

	// Name returns the human-readable name for this step
	Name() string

	// Execute runs the step with the given context and operation state
	Execute(ctx context.Context, state *OperationState) error

	// Validate checks if the step can be executed with the current state
	Validate(state *OperationState) error

	// GetDependencies returns the IDs of steps that must complete before this step
	GetDependencies() []string
}

// StepStatus represents the current status of a step
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusActive    StepStatus = "active"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// StepState represents the runtime state of a step
type StepState struct {
	mu        sync.RWMutex
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Status    StepStatus             `json:"status"`
	StartTime *time.Time             `json:"start_time,omitempty"`
	EndTime   *time.Time             `json:"end_time,omitempty"`
	Message   string                 `json:"message"`
	Error     error                  `json:"-"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewStepState creates a new step state with default values
func NewStepState(id, name string) *StepState {
	return &StepState{
		ID:       id,
		Name:     name,
		Status:   StepStatusPending,
		Metadata: make(map[string]interface{}),
	}
}

// Start marks the step as active and sets the start time
func (s *StepState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.StartTime = &now
	s.Status = StepStatusActive
}

// Complete marks the step as completed and sets the end time
func (s *StepState) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StepStatusCompleted
}

// Fail marks the step as failed with the given error
func (s *StepState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StepStatusFailed
	s.Error = err
}

// Skip marks the step as skipped with the given reason
func (s *StepState) Skip(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StepStatusSkipped
	s.Message = reason
}

// GetStatus returns the current status
func (s *StepState) GetStatus() StepStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// SetMetadata records a value reported at the end of the step
func (s *StepState) SetMetadata(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Metadata == nil {
		s.Metadata = make(map[string]interface{})
	}
	s.Metadata[key] = value
}

// GetMetadata returns a metadata value
func (s *StepState) GetMetadata(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.Metadata[key]
	return v, ok
}

// Duration returns the duration of the step execution
func (s *StepState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.StartTime == nil {
		return 0
	}
	if s.EndTime != nil {
		return s.EndTime.Sub(*s.StartTime)
	}
	return time.Since(*s.StartTime)
}

// BaseStep provides common functionality for Step implementations
type BaseStep struct {
	id           string
	name         string
	dependencies []string
}

// NewBaseStep creates a new base step
func NewBaseStep(id, name string, dependencies []string) BaseStep {
	if dependencies == nil {
		dependencies = []string{}
	}
	return BaseStep{
		id:           id,
		name:         name,
		dependencies: dependencies,
	}
}

// ID returns the step ID
func (b *BaseStep) ID() string {
	if b == nil {
		return ""
	}
	return b.id
}

// Name returns the step name
func (b *BaseStep) Name() string {
	if b == nil {
		return ""
	}
	return b.name
}

// GetDependencies returns the step dependencies
func (b *BaseStep) GetDependencies() []string {
	if b == nil {
		return nil
	}
	return b.dependencies
}

// Validate provides a default validation that always passes
func (b *BaseStep) Validate(state *OperationState) error {
	if b == nil {
		return fmt.Errorf("BaseStep is nil")
	}
	return nil
}
