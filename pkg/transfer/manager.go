// Package transfer moves workflows from a SOURCE instance to a TARGET instance
// through a deduplication, validation and reporting pipeline.
package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dukex/flowtransfer/pkg/apiclient"
	"github.com/dukex/flowtransfer/pkg/eventbus"
	"github.com/dukex/flowtransfer/pkg/events"
	"github.com/dukex/flowtransfer/pkg/models"
	"github.com/dukex/flowtransfer/pkg/otelhelper"
	"github.com/dukex/flowtransfer/pkg/protocol"
	"github.com/dukex/flowtransfer/pkg/registry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Manager runs one transfer. It is single-use: once a run reaches a terminal
// status, Reset must be called before the next Transfer.
type Manager struct {
	source   apiclient.WorkflowAPI
	target   apiclient.WorkflowAPI
	registry *registry.Registry
	logger   *slog.Logger

	publisher eventbus.EventPublisher
	tracer    trace.Tracer
	signals   []os.Signal
	now       func() time.Time

	mu        sync.RWMutex
	progress  models.Progress
	runID     string
	cancelled atomic.Bool
}

type Option func(*Manager)

// WithEventPublisher publishes lifecycle events for every run.
func WithEventPublisher(publisher eventbus.EventPublisher) Option {
	return func(m *Manager) {
		m.publisher = publisher
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(m *Manager) {
		if tracer != nil {
			m.tracer = tracer
		}
	}
}

// WithSignals replaces the OS signals that cancel a running transfer.
// No signals disables the hook.
func WithSignals(signals ...os.Signal) Option {
	return func(m *Manager) {
		m.signals = signals
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func NewManager(
	source, target apiclient.WorkflowAPI,
	reg *registry.Registry,
	logger *slog.Logger,
	opts ...Option,
) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		source:   source,
		target:   target,
		registry: reg,
		logger:   logger.With("module", "transfer_manager"),
		tracer:   otelhelper.NoopTracer(),
		signals:  []os.Signal{os.Interrupt, syscall.SIGTERM},
		now:      time.Now,
		progress: models.Progress{Status: models.TransferStatusIdle},
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Progress returns a snapshot of the current run.
func (m *Manager) Progress() models.Progress {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.progress
}

// RunID identifies the current or last run. Empty before the first run.
func (m *Manager) RunID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.runID
}

// Cancel asks a running transfer to stop before its next workflow. It returns
// false when no transfer is running.
func (m *Manager) Cancel() bool {
	m.mu.RLock()
	status := m.progress.Status
	m.mu.RUnlock()

	if status != models.TransferStatusRunning {
		return false
	}

	if !m.cancelled.Swap(true) {
		m.logger.Info("Cancellation requested", "run_id", m.RunID())
	}

	return true
}

// Reset returns a finished manager to idle.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.progress.Status == models.TransferStatusRunning {
		return ErrManagerBusy
	}

	m.progress = models.Progress{Status: models.TransferStatusIdle}
	m.runID = ""
	m.cancelled.Store(false)

	return nil
}

func (m *Manager) begin() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.progress.Status == models.TransferStatusRunning:
		return "", ErrManagerBusy
	case m.progress.Status.IsTerminal():
		return "", ErrManagerUsed
	}

	m.runID = uuid.New().String()
	m.progress = models.Progress{Status: models.TransferStatusRunning}
	m.cancelled.Store(false)

	return m.runID, nil
}

func (m *Manager) setStatus(status models.TransferStatus) models.Progress {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.progress.Status = status

	return m.progress
}

func (m *Manager) setTotal(total int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.progress.Total = total
}

// Transfer runs the full pipeline and returns the run summary. Per-workflow
// failures are recorded in the summary; only pre-flight problems return an error.
func (m *Manager) Transfer(ctx context.Context, opts Options) (*models.Summary, error) {
	runID, err := m.begin()
	if err != nil {
		return nil, err
	}

	logger := m.logger.With("run_id", runID)
	start := m.now()

	ctx, span := otelhelper.StartSpan(ctx, m.tracer, "transfer.run",
		attribute.String(otelhelper.RunIDKey, runID),
		attribute.Bool(otelhelper.DryRunKey, opts.DryRun),
	)
	defer span.End()

	summary, err := m.run(ctx, logger, runID, start, opts)
	if err != nil {
		m.setStatus(models.TransferStatusFailed)
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "Transfer failed", "error", err)
		m.publish(ctx, logger, runID, events.TransferFailed{
			BaseEvent: events.NewBaseEvent(events.TransferFailedEvent, runID),
			Error:     err.Error(),
		})

		return nil, err
	}

	status := models.TransferStatusCompleted
	if summary.Cancelled {
		status = models.TransferStatusCancelled
	}

	progress := m.setStatus(status)
	otelhelper.SetOK(span, attribute.Int(otelhelper.TotalKey, summary.Total))

	logger.InfoContext(ctx, "Transfer finished",
		"status", status,
		"total", summary.Total,
		"transferred", summary.Transferred,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"duration", summary.Duration,
	)

	m.publish(ctx, logger, runID, events.TransferFinished{
		BaseEvent: events.NewBaseEvent(events.TransferFinishedEvent, runID),
		Progress:  progress,
		Cancelled: summary.Cancelled,
		Duration:  summary.Duration,
	})

	return summary, nil
}

type plugins struct {
	deduplicator     protocol.Deduplicator
	deduplicatorName string
	validators       []namedValidator
	reporters        []namedReporter
}

type namedValidator struct {
	name string
	protocol.Validator
}

type namedReporter struct {
	name string
	protocol.Reporter
}

func (m *Manager) run(
	ctx context.Context,
	logger *slog.Logger,
	runID string,
	start time.Time,
	opts Options,
) (*models.Summary, error) {
	opts, err := opts.prepare()
	if err != nil {
		return nil, err
	}

	err = m.checkConnectivity(ctx, m.source, m.target)
	if err != nil {
		return nil, err
	}

	stop := m.installSignalHooks(logger)
	defer stop()

	loaded, err := m.loadPlugins(logger, opts)
	if err != nil {
		return nil, err
	}

	sources, err := m.fetch(ctx, "source", m.source)
	if err != nil {
		return nil, err
	}

	targets, err := m.fetch(ctx, "target", m.target)
	if err != nil {
		return nil, err
	}

	selected := opts.Filters.Apply(sources)
	m.setTotal(len(selected))

	logger.InfoContext(ctx, "Starting transfer",
		"source_workflows", len(sources),
		"target_workflows", len(targets),
		"selected", len(selected),
		"dry_run", opts.DryRun,
		"parallelism", opts.Parallelism,
	)

	m.publish(ctx, logger, runID, events.TransferStarted{
		BaseEvent: events.NewBaseEvent(events.TransferStartedEvent, runID),
		Total:     len(selected),
		DryRun:    opts.DryRun,
	})

	if len(selected) == 0 {
		logger.InfoContext(ctx, "No workflows match the filters")

		end := m.now()

		return &models.Summary{
			RunID:     runID,
			Workflows: []models.WorkflowResult{},
			Reports:   []models.ReportFile{},
			Duration:  end.Sub(start),
			StartTime: start,
			EndTime:   end,
			DryRun:    opts.DryRun,
		}, nil
	}

	results, cancelled := m.process(ctx, logger, runID, opts, loaded, selected, targets)

	end := m.now()
	summary := &models.Summary{
		RunID:     runID,
		Total:     len(selected),
		Workflows: results,
		Duration:  end.Sub(start),
		StartTime: start,
		EndTime:   end,
		DryRun:    opts.DryRun,
		Cancelled: cancelled,
		Reports:   []models.ReportFile{},
	}

	for _, result := range results {
		switch result.Status {
		case models.RecordStatusTransferred:
			summary.Transferred++
		case models.RecordStatusSkipped:
			summary.Skipped++
		case models.RecordStatusFailed:
			summary.Failed++
		}
	}

	summary.Processed = summary.Transferred + summary.Skipped + summary.Failed
	summary.Reports = m.generateReports(ctx, logger, loaded.reporters, summary)

	return summary, nil
}

func (m *Manager) checkConnectivity(ctx context.Context, instances ...apiclient.WorkflowAPI) error {
	ctx, span := otelhelper.StartSpan(ctx, m.tracer, "transfer.connectivity")
	defer span.End()

	failures := make([]string, 0, len(instances))

	for i, instance := range instances {
		result := instance.TestConnection(ctx)
		if !result.Success {
			failures = append(failures, fmt.Sprintf("%s: %s", instanceName(instance, i), result.Error))
		}
	}

	if len(failures) > 0 {
		err := newError("connectivity", ErrConnectivity, "%s", strings.Join(failures, "; "))
		otelhelper.SetError(span, err)

		return err
	}

	return nil
}

type named interface {
	Name() string
}

func instanceName(instance apiclient.WorkflowAPI, position int) string {
	if n, ok := instance.(named); ok && n.Name() != "" {
		return n.Name()
	}

	if position == 0 {
		return "source"
	}

	return "target"
}

func (m *Manager) installSignalHooks(logger *slog.Logger) func() {
	if len(m.signals) == 0 {
		return func() {}
	}

	sigs := make(chan os.Signal, 1)
	done := make(chan struct{})

	signal.Notify(sigs, m.signals...)

	go func() {
		for {
			select {
			case sig := <-sigs:
				logger.Warn("Received signal, cancelling transfer", "signal", sig.String())
				m.Cancel()
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

func (m *Manager) loadPlugins(logger *slog.Logger, opts Options) (plugins, error) {
	loaded := plugins{deduplicatorName: opts.Deduplicator}

	dedup, ok := m.registry.Deduplicator(opts.Deduplicator)
	if !ok {
		return loaded, newError("load_plugins", ErrPluginNotFound, "deduplicator %q", opts.Deduplicator)
	}

	loaded.deduplicator = dedup
	loaded.validators = m.resolveValidators(logger, opts.Validators)

	for _, name := range opts.Reporters {
		reporter, ok := m.registry.Reporter(name)
		if !ok {
			logger.Warn("Reporter not found, skipping", "reporter", name)

			continue
		}

		loaded.reporters = append(loaded.reporters, namedReporter{name: name, Reporter: reporter})
	}

	if len(loaded.reporters) == 0 {
		logger.Warn("No reporters loaded, no report will be generated")
	}

	return loaded, nil
}

func (m *Manager) resolveValidators(logger *slog.Logger, names []string) []namedValidator {
	validators := make([]namedValidator, 0, len(names))

	for _, name := range names {
		validator, ok := m.registry.Validator(name)
		if !ok {
			logger.Warn("Validator not found, skipping", "validator", name)

			continue
		}

		validators = append(validators, namedValidator{name: name, Validator: validator})
	}

	if len(validators) == 0 {
		logger.Warn("No validators loaded, workflows will not be validated")
	}

	return validators
}

func (m *Manager) fetch(ctx context.Context, name string, instance apiclient.WorkflowAPI) ([]*models.Workflow, error) {
	ctx, span := otelhelper.StartSpan(ctx, m.tracer, "transfer.fetch",
		attribute.String(otelhelper.InstanceKey, name))
	defer span.End()

	workflows, err := instance.GetWorkflows(ctx)
	if err != nil {
		wrapped := &Error{Op: "fetch", Err: fmt.Errorf("%w from %s: %w", ErrFetch, name, err)}
		otelhelper.SetError(span, wrapped)

		return nil, wrapped
	}

	span.SetAttributes(attribute.Int(otelhelper.TotalKey, len(workflows)))

	return workflows, nil
}

// process walks the selected workflows in order. TARGET writes run on up to
// opts.Parallelism goroutines; everything else runs on the calling goroutine.
func (m *Manager) process(
	ctx context.Context,
	logger *slog.Logger,
	runID string,
	opts Options,
	loaded plugins,
	selected, targets []*models.Workflow,
) ([]models.WorkflowResult, bool) {
	results := make([]models.WorkflowResult, len(selected))
	done := make([]bool, len(selected))
	cancelled := false

	var writes errgroup.Group
	writes.SetLimit(opts.Parallelism)

	for i, workflow := range selected {
		if m.cancelled.Load() || ctx.Err() != nil {
			logger.InfoContext(ctx, "Transfer cancelled", "remaining", len(selected)-i)

			cancelled = true

			break
		}

		result := models.NewWorkflowResult(workflow)

		if reason, skip := m.screen(ctx, logger, opts, loaded, workflow, targets); skip {
			result.Status = models.RecordStatusSkipped
			result.Reason = reason
			m.complete(ctx, logger, runID, results, done, i, result)

			continue
		}

		if opts.DryRun {
			result.Status = models.RecordStatusTransferred
			result.Simulated = true
			result.TargetID = models.SimulatedTargetID
			m.complete(ctx, logger, runID, results, done, i, result)

			continue
		}

		write := func() error {
			m.complete(ctx, logger, runID, results, done, i, m.create(ctx, logger, result))

			return nil
		}

		if opts.Parallelism == 1 {
			_ = write()

			continue
		}

		writes.Go(write)
	}

	_ = writes.Wait()

	processed := make([]models.WorkflowResult, 0, len(selected))
	for i, ok := range done {
		if ok {
			processed = append(processed, results[i])
		}
	}

	return processed, cancelled
}

// screen runs deduplication, validation and the credential guard, returning
// the skip reason when the workflow must not be written.
func (m *Manager) screen(
	ctx context.Context,
	logger *slog.Logger,
	opts Options,
	loaded plugins,
	workflow *models.Workflow,
	targets []*models.Workflow,
) (string, bool) {
	duplicate, err := loaded.deduplicator.IsDuplicate(ctx, workflow, targets)
	if err != nil {
		logger.WarnContext(ctx, "Deduplication failed, skipping workflow",
			"workflow_id", workflow.ID, "deduplicator", loaded.deduplicatorName, "error", err)

		return fmt.Sprintf("deduplication failed: %v", err), true
	}

	if duplicate {
		return loaded.deduplicator.Reason(), true
	}

	failures := make([]string, 0)

	for _, validator := range loaded.validators {
		outcome := validator.Validate(ctx, workflow)

		for _, warning := range outcome.Warnings {
			logger.DebugContext(ctx, "Validation warning",
				"workflow_id", workflow.ID, "validator", validator.name, "warning", warning)
		}

		if !outcome.Valid {
			failures = append(failures, fmt.Sprintf("%s: %s", validator.name, strings.Join(outcome.Errors, "; ")))
		}
	}

	if len(failures) > 0 {
		return "validation failed: " + strings.Join(failures, "; "), true
	}

	if opts.SkipCredentials && workflow.HasCredentials() {
		return "workflow uses credentials", true
	}

	return "", false
}

func (m *Manager) create(ctx context.Context, logger *slog.Logger, result models.WorkflowResult) models.WorkflowResult {
	ctx, span := otelhelper.StartSpan(ctx, m.tracer, "transfer.create",
		attribute.String(otelhelper.WorkflowIDKey, result.ID),
		attribute.String(otelhelper.WorkflowNameKey, result.Name),
	)
	defer span.End()

	created, err := m.target.CreateWorkflow(ctx, result.Workflow.Clone())
	if err != nil {
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "Failed to create workflow on target",
			"workflow_id", result.ID, "workflow_name", result.Name, "error", err)

		result.Status = models.RecordStatusFailed
		result.Reason = err.Error()

		return result
	}

	result.Status = models.RecordStatusTransferred
	if created != nil {
		result.TargetID = created.ID
	}

	otelhelper.SetOK(span, attribute.String(otelhelper.RecordStatusKey, string(result.Status)))

	return result
}

// complete stores the result at its source index and advances the progress counters.
func (m *Manager) complete(
	ctx context.Context,
	logger *slog.Logger,
	runID string,
	results []models.WorkflowResult,
	done []bool,
	index int,
	result models.WorkflowResult,
) {
	m.mu.Lock()

	results[index] = result
	done[index] = true

	switch result.Status {
	case models.RecordStatusTransferred:
		m.progress.Transferred++
	case models.RecordStatusSkipped:
		m.progress.Skipped++
	case models.RecordStatusFailed:
		m.progress.Failed++
	}

	m.progress.Processed++
	m.progress.Percentage = models.Percent(m.progress.Processed, m.progress.Total)
	progress := m.progress

	m.mu.Unlock()

	logger.InfoContext(ctx, "Workflow processed",
		"workflow_id", result.ID,
		"workflow_name", result.Name,
		"status", result.Status,
		"reason", result.Reason,
		"progress", progress.Percentage,
	)

	m.publish(ctx, logger, runID, events.WorkflowProcessed{
		BaseEvent: events.NewBaseEvent(events.WorkflowProcessedEvent, runID),
		Result:    result,
		Progress:  progress,
	})
}

func (m *Manager) generateReports(
	ctx context.Context,
	logger *slog.Logger,
	reporters []namedReporter,
	summary *models.Summary,
) []models.ReportFile {
	reports := make([]models.ReportFile, 0, len(reporters))

	for _, reporter := range reporters {
		path, err := generate(ctx, reporter, summary)
		if err != nil {
			logger.ErrorContext(ctx, "Report generation failed", "reporter", reporter.name, "error", err)

			continue
		}

		logger.InfoContext(ctx, "Report generated", "reporter", reporter.name, "path", path)

		reports = append(reports, models.ReportFile{
			Reporter: reporter.name,
			Path:     path,
			Format:   models.InferReportFormat(reporter.name),
		})
	}

	return reports
}

func generate(ctx context.Context, reporter namedReporter, summary *models.Summary) (path string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reporter %s panicked: %v", reporter.name, r)
		}
	}()

	return reporter.Generate(ctx, summary)
}

func (m *Manager) publish(ctx context.Context, logger *slog.Logger, runID string, event eventbus.Event) {
	if m.publisher == nil {
		return
	}

	err := m.publisher.Publish(ctx, runID, event)
	if err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
