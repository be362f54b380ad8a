package operations

import (
	"sync"
	"time"

	"sovpanel/internal/audit"
	"sovpanel/internal/countries"
	"sovpanel/internal/ingest"
	"sovpanel/internal/normalize"
	"sovpanel/internal/panel"
	"sovpanel/pkg/contracts/domain"
)

// OperationStatus represents the overall run status
type OperationStatus string

const (
	OperationStatusPending   OperationStatus = "pending"
	OperationStatusRunning   OperationStatus = "running"
	OperationStatusCompleted OperationStatus = "completed"
	OperationStatusFailed    OperationStatus = "failed"
	OperationStatusCancelled OperationStatus = "cancelled"
)

// OperationState is the state of one pipeline run. Steps run one at a time
// and hand their products to later steps through the exported fields.
type OperationState struct {
	mu sync.RWMutex

	ID        string          `json:"id"`
	Status    OperationStatus `json:"status"`
	StartTime time.Time       `json:"start_time"`
	EndTime   *time.Time      `json:"end_time,omitempty"`

	Steps map[string]*StepState `json:"steps"`

	Error error `json:"-"`

	// Loads holds one result per configured source, in config order
	Loads []ingest.Result
	// Normalization holds one entry per table in Tables
	Normalization []normalize.Stats
	// Tables are the monthly tables to merge, sources first then World Bank
	Tables []*domain.Table
	// Unresolved lists identifiers no rule could map
	Unresolved []countries.UnresolvedEntry
	Merges     []panel.MergeReport
	Panel      *panel.Panel
	Report     *audit.Report
	// Outputs are the files written by the export step
	Outputs []string

	Drops    *DropCounter
	Warnings ErrorList
}

// NewOperationState creates a new run state
func NewOperationState(id string) *OperationState {
	return &OperationState{
		ID:        id,
		Status:    OperationStatusPending,
		StartTime: time.Now(),
		Steps:     make(map[string]*StepState),
		Drops:     NewDropCounter(),
	}
}

// Start marks the run as running
func (p *OperationState) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Status = OperationStatusRunning
	p.StartTime = time.Now()
}

// Complete marks the run as completed
func (p *OperationState) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusCompleted
}

// Fail marks the run as failed
func (p *OperationState) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusFailed
	p.Error = err
}

// Cancel marks the run as cancelled
func (p *OperationState) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusCancelled
}

// GetStatus returns the run status
func (p *OperationState) GetStatus() OperationStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Status
}

// GetStep returns the state of a specific step
func (p *OperationState) GetStep(stepID string) *StepState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Steps[stepID]
}

// SetStep updates the state of a specific step
func (p *OperationState) SetStep(stepID string, state *StepState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Steps[stepID] = state
}

// AddTable queues a monthly table for the merge
func (p *OperationState) AddTable(table *domain.Table, stats normalize.Stats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Tables = append(p.Tables, table)
	p.Normalization = append(p.Normalization, stats)
}

// Warn records a recoverable error
func (p *OperationState) Warn(err *OperationError) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Warnings.Add(err)
}

// AddOutput records a written file
func (p *OperationState) AddOutput(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Outputs = append(p.Outputs, path)
}

// Duration returns the duration of the run
func (p *OperationState) Duration() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.EndTime != nil {
		return p.EndTime.Sub(p.StartTime)
	}
	return time.Since(p.StartTime)
}

// HasFailures returns true if any step has failed
func (p *OperationState) HasFailures() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, step := range p.Steps {
		if step.GetStatus() == StepStatusFailed {
			return true
		}
	}
	return false
}
