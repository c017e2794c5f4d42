package transfer_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/dukex/flowtransfer/pkg/apiclient"
	"github.com/dukex/flowtransfer/pkg/events"
	"github.com/dukex/flowtransfer/pkg/mocks"
	"github.com/dukex/flowtransfer/pkg/models"
	"github.com/dukex/flowtransfer/pkg/plugins/dedup"
	"github.com/dukex/flowtransfer/pkg/plugins/validate"
	"github.com/dukex/flowtransfer/pkg/protocol"
	"github.com/dukex/flowtransfer/pkg/registry"
	"github.com/dukex/flowtransfer/pkg/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func workflow(id, name string, tags ...string) *models.Workflow {
	w := &models.Workflow{
		ID:   id,
		Name: name,
		Nodes: []*models.Node{
			{Name: "Start", Type: "n8n-nodes-base.manualTrigger", TypeVersion: 1},
		},
		Connections: map[string]any{},
	}

	for _, tag := range tags {
		w.Tags = append(w.Tags, models.Tag{Name: tag})
	}

	return w
}

type fakeReporter struct {
	name string
	path string
	err  error

	mu       sync.Mutex
	received *models.Summary
}

func (f *fakeReporter) Info() protocol.PluginInfo {
	return protocol.PluginInfo{Name: f.name, Version: "1.0.0", Type: protocol.PluginTypeReporter, Enabled: true}
}

func (f *fakeReporter) Generate(_ context.Context, summary *models.Summary) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.received = summary

	return f.path, f.err
}

type env struct {
	source   *mocks.MockWorkflowAPI
	target   *mocks.MockWorkflowAPI
	registry *registry.Registry
	manager  *transfer.Manager
}

func newEnv(t *testing.T, sources, targets []*models.Workflow, opts ...transfer.Option) *env {
	t.Helper()

	source := &mocks.MockWorkflowAPI{}
	target := &mocks.MockWorkflowAPI{}

	source.On("TestConnection", mock.Anything).Return(apiclient.ConnectionResult{Success: true}).Maybe()
	target.On("TestConnection", mock.Anything).Return(apiclient.ConnectionResult{Success: true}).Maybe()
	source.On("GetWorkflows", mock.Anything).Return(sources, nil).Maybe()
	target.On("GetWorkflows", mock.Anything).Return(targets, nil).Maybe()

	reg := registry.NewRegistry(slog.Default())
	require.NoError(t, reg.Register(dedup.NewStandard()))
	require.NoError(t, reg.Register(dedup.NewStrict()))
	require.NoError(t, reg.Register(validate.NewIntegrity()))

	opts = append([]transfer.Option{transfer.WithSignals()}, opts...)

	return &env{
		source:   source,
		target:   target,
		registry: reg,
		manager:  transfer.NewManager(source, target, reg, slog.Default(), opts...),
	}
}

func (e *env) expectCreate() {
	e.target.On("CreateWorkflow", mock.Anything, mock.Anything).
		Return(func(_ context.Context, w *models.Workflow) (*models.Workflow, error) {
			return &models.Workflow{ID: "t-" + w.ID, Name: w.Name}, nil
		})
}

func quiet() transfer.Options {
	return transfer.Options{Reporters: []string{}}
}

func assertAccounting(t *testing.T, summary *models.Summary, progress models.Progress) {
	t.Helper()

	assert.Equal(t, summary.Processed, summary.Transferred+summary.Skipped+summary.Failed)
	assert.LessOrEqual(t, summary.Processed, summary.Total)
	assert.Len(t, summary.Workflows, summary.Processed)

	assert.Equal(t, summary.Total, progress.Total)
	assert.Equal(t, summary.Processed, progress.Processed)
	assert.Equal(t, summary.Transferred, progress.Transferred)
	assert.Equal(t, summary.Skipped, progress.Skipped)
	assert.Equal(t, summary.Failed, progress.Failed)
}

func names(results []models.WorkflowResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Name)
	}

	return out
}

func TestTransfer_FiltersByTags(t *testing.T) {
	t.Parallel()

	sources := []*models.Workflow{
		workflow("a", "A", "production", "critical"),
		workflow("b", "B", "staging"),
		workflow("c", "C", "production"),
	}

	tests := []struct {
		name    string
		filters transfer.Filters
		want    []string
	}{
		{
			name:    "tags",
			filters: transfer.Filters{Tags: []string{"production"}},
			want:    []string{"A", "C"},
		},
		{
			name:    "tags and exclude tags",
			filters: transfer.Filters{Tags: []string{"production"}, ExcludeTags: []string{"critical"}},
			want:    []string{"C"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newEnv(t, sources, nil)
			e.expectCreate()

			opts := quiet()
			opts.Filters = tt.filters

			summary, err := e.manager.Transfer(context.Background(), opts)
			require.NoError(t, err)

			assert.Equal(t, tt.want, names(summary.Workflows))
			assert.Equal(t, len(tt.want), summary.Total)
			assert.Equal(t, len(tt.want), summary.Transferred)
			assertAccounting(t, summary, e.manager.Progress())
			e.target.AssertNumberOfCalls(t, "CreateWorkflow", len(tt.want))
		})
	}
}

func TestTransfer_NoMatchesCompletesEmpty(t *testing.T) {
	t.Parallel()

	e := newEnv(t, []*models.Workflow{workflow("a", "A", "production")}, nil)

	opts := quiet()
	opts.Filters.Tags = []string{"nonexistent"}

	summary, err := e.manager.Transfer(context.Background(), opts)
	require.NoError(t, err)

	assert.Zero(t, summary.Total)
	assert.Zero(t, summary.Transferred)
	assert.Zero(t, summary.Skipped)
	assert.Zero(t, summary.Failed)
	assert.Empty(t, summary.Workflows)
	assert.Equal(t, models.TransferStatusCompleted, e.manager.Progress().Status)
	e.target.AssertNotCalled(t, "CreateWorkflow", mock.Anything, mock.Anything)
}

func TestTransfer_DryRunNeverWrites(t *testing.T) {
	t.Parallel()

	e := newEnv(t, []*models.Workflow{workflow("a", "A"), workflow("b", "B")}, nil)

	opts := quiet()
	opts.DryRun = true

	summary, err := e.manager.Transfer(context.Background(), opts)
	require.NoError(t, err)

	assert.True(t, summary.DryRun)
	assert.Equal(t, 2, summary.Transferred)

	for _, result := range summary.Workflows {
		assert.Equal(t, models.RecordStatusTransferred, result.Status)
		assert.True(t, result.Simulated)
		assert.Equal(t, models.SimulatedTargetID, result.TargetID)
	}

	e.target.AssertNotCalled(t, "CreateWorkflow", mock.Anything, mock.Anything)
	assertAccounting(t, summary, e.manager.Progress())
}

func TestTransfer_SingleFailureIsIsolated(t *testing.T) {
	t.Parallel()

	sources := []*models.Workflow{workflow("a", "A"), workflow("b", "B"), workflow("c", "C")}
	e := newEnv(t, sources, nil)

	e.target.On("CreateWorkflow", mock.Anything, mock.MatchedBy(func(w *models.Workflow) bool { return w.ID == "b" })).
		Return(nil, errors.New("POST /workflows failed with status 400"))
	e.expectCreate()

	summary, err := e.manager.Transfer(context.Background(), quiet())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Transferred)
	assert.Zero(t, summary.Skipped)
	assert.Equal(t, []string{"A", "B", "C"}, names(summary.Workflows))
	assert.Equal(t, models.RecordStatusFailed, summary.Workflows[1].Status)
	assert.Contains(t, summary.Workflows[1].Reason, "status 400")
	assert.Equal(t, "t-a", summary.Workflows[0].TargetID)
	assert.Equal(t, models.TransferStatusCompleted, e.manager.Progress().Status)
	assertAccounting(t, summary, e.manager.Progress())
}

func TestTransfer_SkipsDuplicatesInvalidAndCredentialed(t *testing.T) {
	t.Parallel()

	invalid := workflow("b", "Broken")
	invalid.Nodes = nil

	credentialed := workflow("c", "Uses Slack")
	credentialed.Nodes[0].Credentials = map[string]any{"slackApi": map[string]any{"id": "1"}}

	sources := []*models.Workflow{workflow("a", "Existing"), invalid, credentialed, workflow("d", "Fresh")}
	targets := []*models.Workflow{workflow("99", "existing")}

	e := newEnv(t, sources, targets)
	e.expectCreate()

	opts := quiet()
	opts.SkipCredentials = true

	summary, err := e.manager.Transfer(context.Background(), opts)
	require.NoError(t, err)

	require.Len(t, summary.Workflows, 4)
	assert.Equal(t, 3, summary.Skipped)
	assert.Equal(t, 1, summary.Transferred)

	assert.Equal(t, `workflow "existing" already exists on target (id 99)`, summary.Workflows[0].Reason)
	assert.Contains(t, summary.Workflows[1].Reason, "validation failed: integrity-validator: workflow has no nodes")
	assert.Equal(t, "workflow uses credentials", summary.Workflows[2].Reason)
	assert.Equal(t, models.RecordStatusTransferred, summary.Workflows[3].Status)

	e.target.AssertNumberOfCalls(t, "CreateWorkflow", 1)
}

func TestTransfer_CredentialsTransferredWithoutGuard(t *testing.T) {
	t.Parallel()

	credentialed := workflow("c", "Uses Slack")
	credentialed.Nodes[0].Credentials = map[string]any{"slackApi": map[string]any{"id": "1"}}

	e := newEnv(t, []*models.Workflow{credentialed}, nil)
	e.expectCreate()

	summary, err := e.manager.Transfer(context.Background(), quiet())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Transferred)
}

func TestTransfer_MissingDeduplicatorIsFatal(t *testing.T) {
	t.Parallel()

	e := newEnv(t, []*models.Workflow{workflow("a", "A")}, nil)

	opts := quiet()
	opts.Deduplicator = "fuzzy-deduplicator"

	summary, err := e.manager.Transfer(context.Background(), opts)
	require.ErrorIs(t, err, transfer.ErrPluginNotFound)
	assert.Nil(t, summary)
	assert.Contains(t, err.Error(), "fuzzy-deduplicator")
	assert.Equal(t, models.TransferStatusFailed, e.manager.Progress().Status)
	e.target.AssertNotCalled(t, "CreateWorkflow", mock.Anything, mock.Anything)
}

func TestTransfer_MissingValidatorIsSkipped(t *testing.T) {
	t.Parallel()

	invalid := workflow("b", "Broken")
	invalid.Nodes = nil

	e := newEnv(t, []*models.Workflow{workflow("a", "A"), invalid}, nil)
	e.expectCreate()

	opts := quiet()
	opts.Validators = []string{"missing-validator", validate.IntegrityName}

	summary, err := e.manager.Transfer(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Transferred)
	assert.Equal(t, 1, summary.Skipped)
}

func TestTransfer_EmptyValidatorListTransfersEverything(t *testing.T) {
	t.Parallel()

	invalid := workflow("b", "Broken")
	invalid.Nodes = nil

	e := newEnv(t, []*models.Workflow{invalid}, nil)
	e.expectCreate()

	opts := quiet()
	opts.Validators = []string{}

	summary, err := e.manager.Transfer(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Transferred)
}

func TestTransfer_InvalidOptionsFailBeforeIO(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil, nil)

	opts := quiet()
	opts.Parallelism = 11

	_, err := e.manager.Transfer(context.Background(), opts)
	require.ErrorIs(t, err, transfer.ErrValidation)

	var transferErr *transfer.Error
	require.ErrorAs(t, err, &transferErr)
	assert.Equal(t, "validate_options", transferErr.Op)

	assert.Equal(t, models.TransferStatusFailed, e.manager.Progress().Status)
	e.source.AssertNotCalled(t, "TestConnection", mock.Anything)
	e.target.AssertNotCalled(t, "TestConnection", mock.Anything)
	e.source.AssertNotCalled(t, "GetWorkflows", mock.Anything)
}

func TestTransfer_ConnectivityFailure(t *testing.T) {
	t.Parallel()

	source := &mocks.MockWorkflowAPI{}
	target := &mocks.MockWorkflowAPI{}

	source.On("TestConnection", mock.Anything).Return(apiclient.ConnectionResult{Success: true})
	target.On("TestConnection", mock.Anything).
		Return(apiclient.ConnectionResult{Error: "authentication failed: unauthorized"})

	reg := registry.NewRegistry(nil)
	require.NoError(t, reg.Register(dedup.NewStandard()))

	manager := transfer.NewManager(source, target, reg, nil, transfer.WithSignals())

	_, err := manager.Transfer(context.Background(), quiet())
	require.ErrorIs(t, err, transfer.ErrConnectivity)
	assert.Contains(t, err.Error(), "target: authentication failed")
	assert.Equal(t, models.TransferStatusFailed, manager.Progress().Status)
	source.AssertNotCalled(t, "GetWorkflows", mock.Anything)
}

func TestTransfer_FetchFailure(t *testing.T) {
	t.Parallel()

	source := &mocks.MockWorkflowAPI{}
	target := &mocks.MockWorkflowAPI{}

	source.On("TestConnection", mock.Anything).Return(apiclient.ConnectionResult{Success: true})
	target.On("TestConnection", mock.Anything).Return(apiclient.ConnectionResult{Success: true})
	source.On("GetWorkflows", mock.Anything).Return(nil, errors.New("GET /workflows failed with status 502"))

	reg := registry.NewRegistry(nil)
	require.NoError(t, reg.Register(dedup.NewStandard()))

	manager := transfer.NewManager(source, target, reg, nil, transfer.WithSignals())

	_, err := manager.Transfer(context.Background(), quiet())
	require.ErrorIs(t, err, transfer.ErrFetch)
	assert.Contains(t, err.Error(), "source")
	assert.Equal(t, models.TransferStatusFailed, manager.Progress().Status)
}

func TestTransfer_CancelWhileIdle(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil, nil)

	assert.False(t, e.manager.Cancel())
	assert.Equal(t, models.TransferStatusIdle, e.manager.Progress().Status)
}

func TestTransfer_CancelStopsBeforeNextWorkflow(t *testing.T) {
	t.Parallel()

	sources := []*models.Workflow{workflow("a", "A"), workflow("b", "B"), workflow("c", "C")}
	e := newEnv(t, sources, nil)

	e.target.On("CreateWorkflow", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			assert.True(t, e.manager.Cancel())
			assert.True(t, e.manager.Cancel())
		}).
		Return(&models.Workflow{ID: "t-1"}, nil)

	summary, err := e.manager.Transfer(context.Background(), quiet())
	require.NoError(t, err)

	assert.True(t, summary.Cancelled)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, models.TransferStatusCancelled, e.manager.Progress().Status)
	assert.False(t, e.manager.Cancel())
	e.target.AssertNumberOfCalls(t, "CreateWorkflow", 1)
	assertAccounting(t, summary, e.manager.Progress())
}

func TestTransfer_ContextCancellation(t *testing.T) {
	t.Parallel()

	sources := []*models.Workflow{workflow("a", "A"), workflow("b", "B")}
	e := newEnv(t, sources, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e.target.On("CreateWorkflow", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(&models.Workflow{ID: "t-1"}, nil)

	summary, err := e.manager.Transfer(ctx, quiet())
	require.NoError(t, err)

	assert.True(t, summary.Cancelled)
	assert.Equal(t, 1, summary.Processed)
}

func TestTransfer_ParallelWritesKeepSourceOrder(t *testing.T) {
	t.Parallel()

	sources := make([]*models.Workflow, 0, 8)
	for i := range 8 {
		sources = append(sources, workflow(fmt.Sprint(i), fmt.Sprintf("Workflow %d", i)))
	}

	e := newEnv(t, sources, nil)
	e.expectCreate()

	opts := quiet()
	opts.Parallelism = 4

	summary, err := e.manager.Transfer(context.Background(), opts)
	require.NoError(t, err)

	require.Len(t, summary.Workflows, 8)

	for i, result := range summary.Workflows {
		assert.Equal(t, fmt.Sprint(i), result.ID)
		assert.Equal(t, "t-"+result.ID, result.TargetID)
	}

	assert.Equal(t, 100, e.manager.Progress().Percentage)
	e.target.AssertNumberOfCalls(t, "CreateWorkflow", 8)
	assertAccounting(t, summary, e.manager.Progress())
}

func TestTransfer_ReporterFailureIsSoft(t *testing.T) {
	t.Parallel()

	e := newEnv(t, []*models.Workflow{workflow("a", "A")}, nil)
	e.expectCreate()

	good := &fakeReporter{name: "json-reporter", path: "/tmp/report.json"}
	bad := &fakeReporter{name: "markdown-reporter", err: errors.New("disk full")}

	require.NoError(t, e.registry.Register(good))
	require.NoError(t, e.registry.Register(bad))

	opts := quiet()
	opts.Reporters = []string{"markdown-reporter", "missing-reporter", "json-reporter"}

	summary, err := e.manager.Transfer(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, []models.ReportFile{
		{Reporter: "json-reporter", Path: "/tmp/report.json", Format: models.ReportFormatJSON},
	}, summary.Reports)
	assert.Equal(t, 1, good.received.Transferred)
	assert.Equal(t, models.TransferStatusCompleted, e.manager.Progress().Status)
}

func TestTransfer_DefaultsSelectStandardPlugins(t *testing.T) {
	t.Parallel()

	e := newEnv(t, []*models.Workflow{workflow("a", "A")}, nil)
	e.expectCreate()

	reporter := &fakeReporter{name: transfer.DefaultReporter, path: "report.md"}
	require.NoError(t, e.registry.Register(reporter))

	summary, err := e.manager.Transfer(context.Background(), transfer.Options{})
	require.NoError(t, err)

	require.Len(t, summary.Reports, 1)
	assert.Equal(t, models.ReportFormatMarkdown, summary.Reports[0].Format)
}

func TestTransfer_ManagerIsSingleUse(t *testing.T) {
	t.Parallel()

	e := newEnv(t, []*models.Workflow{workflow("a", "A")}, nil)
	e.expectCreate()

	first, err := e.manager.Transfer(context.Background(), quiet())
	require.NoError(t, err)

	_, err = e.manager.Transfer(context.Background(), quiet())
	require.ErrorIs(t, err, transfer.ErrManagerUsed)

	require.NoError(t, e.manager.Reset())
	assert.Equal(t, models.Progress{Status: models.TransferStatusIdle}, e.manager.Progress())

	second, err := e.manager.Transfer(context.Background(), quiet())
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestTransfer_PublishesLifecycleEvents(t *testing.T) {
	t.Parallel()

	publisher := &mocks.MockEventBus{}
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	e := newEnv(t, []*models.Workflow{workflow("a", "A"), workflow("b", "B")}, nil,
		transfer.WithEventPublisher(publisher))
	e.expectCreate()

	summary, err := e.manager.Transfer(context.Background(), quiet())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Transferred)

	types := make([]events.EventType, 0)
	for _, call := range publisher.Calls {
		assert.Equal(t, summary.RunID, call.Arguments.String(1))

		event, ok := call.Arguments.Get(2).(interface{ GetType() events.EventType })
		require.True(t, ok)

		types = append(types, event.GetType())
	}

	assert.Equal(t, []events.EventType{
		events.TransferStartedEvent,
		events.WorkflowProcessedEvent,
		events.WorkflowProcessedEvent,
		events.TransferFinishedEvent,
	}, types)
}
