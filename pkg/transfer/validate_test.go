package transfer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dukex/flowtransfer/pkg/apiclient"
	"github.com/dukex/flowtransfer/pkg/mocks"
	"github.com/dukex/flowtransfer/pkg/models"
	"github.com/dukex/flowtransfer/pkg/plugins/validate"
	"github.com/dukex/flowtransfer/pkg/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func assertTargetUntouched(t *testing.T, target *mocks.MockWorkflowAPI) {
	t.Helper()

	assert.Empty(t, target.Calls)
}

func TestValidate_CountsWarningsAsInvalid(t *testing.T) {
	t.Parallel()

	noTrigger := workflow("b", "No trigger", "production")
	noTrigger.Nodes[0].Type = "n8n-nodes-base.set"

	broken := workflow("c", "", "production")

	sources := []*models.Workflow{workflow("a", "Sound", "production"), noTrigger, broken, workflow("d", "Other", "staging")}
	e := newEnv(t, sources, nil)

	opts := transfer.Options{Filters: transfer.Filters{Tags: []string{"production"}}}

	report, err := e.manager.Validate(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Valid)
	assert.Equal(t, 2, report.Invalid)
	assert.Equal(t, 1, report.WarningsOnly)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, 1, report.Warnings)
	assert.Equal(t, []string{validate.IntegrityName}, report.Validators)

	require.Len(t, report.Issues, 2)
	assert.Equal(t, "b", report.Issues[0].WorkflowID)
	assert.Equal(t, models.Issue{
		Severity:  models.SeverityWarning,
		Message:   "workflow has no trigger node",
		Phase:     models.ValidationPhaseStandalone,
		Validator: validate.IntegrityName,
	}, report.Issues[0].Issues[0])
	assert.Equal(t, models.SeverityError, report.Issues[1].Issues[0].Severity)

	assertTargetUntouched(t, e.target)
	assert.Equal(t, models.TransferStatusIdle, e.manager.Progress().Status)
}

func TestValidate_NeverTouchesTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(e *env)
		opts  transfer.Options
		err   error
	}{
		{
			name:  "success",
			setup: func(*env) {},
		},
		{
			name: "source unreachable",
			setup: func(e *env) {
				e.source.ExpectedCalls = nil
				e.source.On("TestConnection", mock.Anything).
					Return(apiclient.ConnectionResult{Error: "dial tcp: connection refused"})
			},
			err: transfer.ErrConnectivity,
		},
		{
			name: "source listing fails",
			setup: func(e *env) {
				e.source.ExpectedCalls = nil
				e.source.On("TestConnection", mock.Anything).Return(apiclient.ConnectionResult{Success: true})
				e.source.On("GetWorkflows", mock.Anything).Return(nil, errors.New("boom"))
			},
			err: transfer.ErrFetch,
		},
		{
			name: "invalid options",
			opts: transfer.Options{Parallelism: -1},
			setup: func(*env) {},
			err:   transfer.ErrValidation,
		},
		{
			name:  "unknown validator",
			opts:  transfer.Options{Validators: []string{"missing"}},
			setup: func(*env) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newEnv(t, []*models.Workflow{workflow("a", "A")}, []*models.Workflow{workflow("z", "A")})
			tt.setup(e)

			_, err := e.manager.Validate(context.Background(), tt.opts)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
			} else {
				require.NoError(t, err)
			}

			assertTargetUntouched(t, e.target)
		})
	}
}

func TestValidate_UnknownValidatorLeavesEverythingValid(t *testing.T) {
	t.Parallel()

	broken := workflow("a", "")
	e := newEnv(t, []*models.Workflow{broken}, nil)

	report, err := e.manager.Validate(context.Background(), transfer.Options{Validators: []string{"missing"}})
	require.NoError(t, err)

	assert.Empty(t, report.Validators)
	assert.Equal(t, 1, report.Valid)
	assert.Empty(t, report.Issues)
}
