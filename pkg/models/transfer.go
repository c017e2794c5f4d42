package models

import (
	"math"
	"strings"
	"time"
)

// TransferStatus is the lifecycle state of a transfer run.
type TransferStatus string

const (
	TransferStatusIdle      TransferStatus = "idle"
	TransferStatusRunning   TransferStatus = "running"
	TransferStatusCompleted TransferStatus = "completed"
	TransferStatusFailed    TransferStatus = "failed"
	TransferStatusCancelled TransferStatus = "cancelled"
)

// IsTerminal reports whether no further transitions happen from this status.
func (s TransferStatus) IsTerminal() bool {
	return s == TransferStatusCompleted || s == TransferStatusFailed || s == TransferStatusCancelled
}

// RecordStatus is the outcome of processing one workflow.
type RecordStatus string

const (
	RecordStatusTransferred RecordStatus = "transferred"
	RecordStatusSkipped     RecordStatus = "skipped"
	RecordStatusFailed      RecordStatus = "failed"
)

// SimulatedTargetID is the target id recorded for dry-run transfers.
const SimulatedTargetID = "simulated"

// Progress is a point-in-time snapshot of a run.
type Progress struct {
	Total       int            `json:"total"`
	Processed   int            `json:"processed"`
	Transferred int            `json:"transferred"`
	Skipped     int            `json:"skipped"`
	Failed      int            `json:"failed"`
	Percentage  int            `json:"percentage"`
	Status      TransferStatus `json:"status"`
}

// Percent computes the rounded completion percentage for processed out of total.
func Percent(processed, total int) int {
	if total <= 0 {
		return 0
	}

	return int(math.Round(float64(processed) * 100 / float64(total)))
}

// WorkflowResult records what happened to a single SOURCE workflow.
type WorkflowResult struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Tags      []string     `json:"tags,omitempty"`
	Status    RecordStatus `json:"status"`
	Simulated bool         `json:"simulated,omitempty"`
	TargetID  string       `json:"targetId,omitempty"`
	Reason    string       `json:"reason,omitempty"`

	Workflow *Workflow `json:"-"`
}

// NewWorkflowResult starts a result for the given workflow.
func NewWorkflowResult(workflow *Workflow) WorkflowResult {
	return WorkflowResult{
		ID:       workflow.ID,
		Name:     workflow.Name,
		Tags:     workflow.TagNames(),
		Workflow: workflow,
	}
}

// ReportFormat is the output format of a generated report.
type ReportFormat string

const (
	ReportFormatMarkdown ReportFormat = "markdown"
	ReportFormatJSON     ReportFormat = "json"
	ReportFormatCSV      ReportFormat = "csv"
	ReportFormatUnknown  ReportFormat = "unknown"
)

// InferReportFormat derives the report format from a reporter name.
func InferReportFormat(reporter string) ReportFormat {
	lower := strings.ToLower(reporter)

	switch {
	case strings.Contains(lower, "markdown"):
		return ReportFormatMarkdown
	case strings.Contains(lower, "json"):
		return ReportFormatJSON
	case strings.Contains(lower, "csv"):
		return ReportFormatCSV
	default:
		return ReportFormatUnknown
	}
}

// ReportFile is an artifact written by a reporter.
type ReportFile struct {
	Reporter string       `json:"reporter"`
	Path     string       `json:"path"`
	Format   ReportFormat `json:"format"`
}

// Summary is the immutable outcome of a transfer run.
type Summary struct {
	RunID       string           `json:"runId"`
	Total       int              `json:"total"`
	Transferred int              `json:"transferred"`
	Skipped     int              `json:"skipped"`
	Failed      int              `json:"failed"`
	Processed   int              `json:"processed"`
	Workflows   []WorkflowResult `json:"workflows"`
	Duration    time.Duration    `json:"duration"`
	StartTime   time.Time        `json:"startTime"`
	EndTime     time.Time        `json:"endTime"`
	DryRun      bool             `json:"dryRun"`
	Cancelled   bool             `json:"cancelled"`
	Reports     []ReportFile     `json:"reports"`
}

// SuccessRate is the share of processed workflows that were transferred, in percent.
func (s *Summary) SuccessRate() float64 {
	if s.Processed == 0 {
		return 0
	}

	return float64(s.Transferred) * 100 / float64(s.Processed)
}
