// Package protocol defines the capability contracts of transfer plugins.
package protocol

import (
	"context"

	"github.com/dukex/flowtransfer/pkg/models"
)

// PluginType is the capability a plugin provides.
type PluginType string

const (
	PluginTypeDeduplicator PluginType = "deduplicator"
	PluginTypeValidator    PluginType = "validator"
	PluginTypeReporter     PluginType = "reporter"
)

// IsValid reports whether t is a known plugin type.
func (t PluginType) IsValid() bool {
	switch t {
	case PluginTypeDeduplicator, PluginTypeValidator, PluginTypeReporter:
		return true
	default:
		return false
	}
}

// PluginInfo describes a plugin.
type PluginInfo struct {
	Name        string     `json:"name"`
	Version     string     `json:"version"`
	Type        PluginType `json:"type"`
	Enabled     bool       `json:"enabled"`
	Description string     `json:"description,omitempty"`
}

// Plugin is implemented by every plugin.
type Plugin interface {
	Info() PluginInfo
}

// Deduplicator decides whether a SOURCE workflow already exists on TARGET.
// Reason describes the most recent positive match and must be read right after IsDuplicate.
type Deduplicator interface {
	Plugin
	IsDuplicate(ctx context.Context, workflow *models.Workflow, targets []*models.Workflow) (bool, error)
	Reason() string
}

// ValidationOutcome is the verdict of a validator on one workflow.
type ValidationOutcome struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// NewValidationOutcome builds an outcome that is valid exactly when there are no errors.
func NewValidationOutcome(errs, warnings []string) ValidationOutcome {
	return ValidationOutcome{
		Valid:    len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
	}
}

// Validator checks a workflow. Errors block its transfer; warnings are informational.
type Validator interface {
	Plugin
	Validate(ctx context.Context, workflow *models.Workflow) ValidationOutcome
}

// Reporter renders a run summary into an artifact and returns its location.
type Reporter interface {
	Plugin
	Generate(ctx context.Context, summary *models.Summary) (string, error)
}
