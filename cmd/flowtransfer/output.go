package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dukex/flowtransfer/pkg/eventbus"
	"github.com/dukex/flowtransfer/pkg/events"
	"github.com/dukex/flowtransfer/pkg/models"
)

func printSummary(w io.Writer, summary *models.Summary) {
	title := "Transfer"
	if summary.DryRun {
		title = "Dry run"
	}

	if summary.Cancelled {
		title += " (cancelled)"
	}

	fmt.Fprintf(w, "\n%s %s finished in %s\n", title, summary.RunID, summary.Duration)
	fmt.Fprintf(w, "  total:       %d\n", summary.Total)
	fmt.Fprintf(w, "  processed:   %d\n", summary.Processed)
	fmt.Fprintf(w, "  transferred: %d\n", summary.Transferred)
	fmt.Fprintf(w, "  skipped:     %d\n", summary.Skipped)
	fmt.Fprintf(w, "  failed:      %d\n", summary.Failed)

	for _, result := range summary.Workflows {
		if result.Status == models.RecordStatusFailed {
			fmt.Fprintf(w, "  ! %s (%s): %s\n", result.Name, result.ID, result.Reason)
		}
	}

	for _, report := range summary.Reports {
		fmt.Fprintf(w, "  report: %s\n", report.Path)
	}
}

func printValidation(w io.Writer, report *models.ValidationReport) {
	fmt.Fprintf(w, "Validated %d workflows: %d valid, %d invalid (%d with warnings only)\n",
		report.Total, report.Valid, report.Invalid, report.WarningsOnly)

	for _, workflow := range report.Issues {
		fmt.Fprintf(w, "\n%s (%s)\n", workflow.WorkflowName, workflow.WorkflowID)

		for _, issue := range workflow.Issues {
			fmt.Fprintf(w, "  [%s] %s: %s\n", issue.Severity, issue.Validator, issue.Message)
		}
	}
}

// watchProgress prints one line per processed workflow as events arrive on the bus.
func watchProgress(ctx context.Context, bus eventbus.EventSubscriber, w io.Writer) error {
	var mu sync.Mutex

	err := bus.Handle(events.TransferStartedEvent, func(_ context.Context, event any) error {
		started, ok := event.(*events.TransferStarted)
		if !ok {
			return nil
		}

		mu.Lock()
		defer mu.Unlock()

		fmt.Fprintf(w, "Transferring %d workflows (run %s)\n", started.Total, started.RunID)

		return nil
	})
	if err != nil {
		return err
	}

	err = bus.Handle(events.WorkflowProcessedEvent, func(_ context.Context, event any) error {
		processed, ok := event.(*events.WorkflowProcessed)
		if !ok {
			return nil
		}

		mu.Lock()
		defer mu.Unlock()

		fmt.Fprintf(w, "[%3d%%] %-11s %s\n",
			processed.Progress.Percentage, processed.Result.Status, processed.Result.Name)

		return nil
	})
	if err != nil {
		return err
	}

	return bus.Subscribe(ctx)
}
