package operations

import (
	"time"
)

// Pipeline step identifiers
const (
	StepIDLoad      = "load"
	StepIDWorldBank = "worldbank"
	StepIDMerge     = "merge"
	StepIDAudit     = "audit"
	StepIDExport    = "export"
)

// Pipeline step names
const (
	StepNameLoad      = "Source Loading"
	StepNameWorldBank = "World Bank Fetch"
	StepNameMerge     = "Panel Merge"
	StepNameAudit     = "Coverage Audit"
	StepNameExport    = "Export"
)

// Default timeouts
const (
	DefaultStepTimeout      = 30 * time.Minute
	DefaultWorldBankTimeout = 60 * time.Minute
)

// Drop reasons added on top of the loader's
const (
	DropDuplicate   = "duplicate"
	DropUnmatched   = "unmatched_key"
	DropExternalAPI = "external_api"
)

// OperationRequest starts a pipeline run
type OperationRequest struct {
	// ID becomes the run ID; one is generated when empty
	ID string `json:"id"`
	// Steps restricts the run to these step IDs. Empty runs every step.
	Steps []string `json:"steps,omitempty"`
}

// OperationResponse summarizes a finished run
type OperationResponse struct {
	ID       string                `json:"id"`
	Status   OperationStatus       `json:"status"`
	Duration time.Duration         `json:"duration"`
	Steps    map[string]*StepState `json:"steps"`
	Drops    []DropCount           `json:"drops"`
	Warnings int                   `json:"warnings"`
	Outputs  []string              `json:"outputs"`
	Error    string                `json:"error,omitempty"`
}
