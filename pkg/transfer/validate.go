package transfer

import (
	"context"

	"github.com/dukex/flowtransfer/pkg/models"
	"github.com/dukex/flowtransfer/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
)

// Validate runs the requested validators over the filtered SOURCE workflows
// without touching TARGET. Any finding, warnings included, makes a workflow
// invalid. Validate does not change the manager's progress.
func (m *Manager) Validate(ctx context.Context, opts Options) (*models.ValidationReport, error) {
	if m.Progress().Status == models.TransferStatusRunning {
		return nil, ErrManagerBusy
	}

	ctx, span := otelhelper.StartSpan(ctx, m.tracer, "transfer.validate")
	defer span.End()

	opts, err := opts.prepare()
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	err = m.checkConnectivity(ctx, m.source)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	sources, err := m.fetch(ctx, "source", m.source)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	selected := opts.Filters.Apply(sources)
	validators := m.resolveValidators(m.logger, opts.Validators)

	report := &models.ValidationReport{
		Total:      len(selected),
		Validators: make([]string, 0, len(validators)),
		Issues:     []models.WorkflowIssues{},
	}

	for _, validator := range validators {
		report.Validators = append(report.Validators, validator.name)
	}

	for _, workflow := range selected {
		found := models.WorkflowIssues{WorkflowID: workflow.ID, WorkflowName: workflow.Name}
		errorCount := 0

		for _, validator := range validators {
			outcome := validator.Validate(ctx, workflow)

			for _, message := range outcome.Errors {
				found.Issues = append(found.Issues, models.Issue{
					Severity:  models.SeverityError,
					Message:   message,
					Phase:     models.ValidationPhaseStandalone,
					Validator: validator.name,
				})
				errorCount++
			}

			for _, message := range outcome.Warnings {
				found.Issues = append(found.Issues, models.Issue{
					Severity:  models.SeverityWarning,
					Message:   message,
					Phase:     models.ValidationPhaseStandalone,
					Validator: validator.name,
				})
			}
		}

		if len(found.Issues) == 0 {
			report.Valid++

			continue
		}

		report.Invalid++
		report.Errors += errorCount
		report.Warnings += len(found.Issues) - errorCount

		if errorCount == 0 {
			report.WarningsOnly++
		}

		report.Issues = append(report.Issues, found)
	}

	otelhelper.SetOK(span, attribute.Int(otelhelper.TotalKey, report.Total))

	m.logger.InfoContext(ctx, "Validation finished",
		"total", report.Total,
		"valid", report.Valid,
		"invalid", report.Invalid,
		"errors", report.Errors,
		"warnings", report.Warnings,
	)

	return report, nil
}
