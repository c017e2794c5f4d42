package models

// Severity classifies a validation finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationPhaseStandalone marks findings collected outside of a transfer run.
const ValidationPhaseStandalone = "standalone"

// Issue is one finding reported by a validator.
type Issue struct {
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
	Phase     string   `json:"phase"`
	Validator string   `json:"validator"`
}

// WorkflowIssues groups the findings for one workflow.
type WorkflowIssues struct {
	WorkflowID   string  `json:"workflowId"`
	WorkflowName string  `json:"workflowName"`
	Issues       []Issue `json:"issues"`
}

// ValidationReport is the result of validating SOURCE workflows without transferring them.
// Any finding, including a warning, makes a workflow count as invalid; WarningsOnly counts
// the invalid workflows that had no errors.
type ValidationReport struct {
	Total        int              `json:"total"`
	Valid        int              `json:"valid"`
	Invalid      int              `json:"invalid"`
	WarningsOnly int              `json:"warningsOnly"`
	Errors       int              `json:"errors"`
	Warnings     int              `json:"warnings"`
	Validators   []string         `json:"validators"`
	Issues       []WorkflowIssues `json:"issues"`
}
