package scheduler_test

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/flowtransfer/pkg/apiclient"
	"github.com/dukex/flowtransfer/pkg/mocks"
	"github.com/dukex/flowtransfer/pkg/models"
	"github.com/dukex/flowtransfer/pkg/plugins/dedup"
	"github.com/dukex/flowtransfer/pkg/registry"
	"github.com/dukex/flowtransfer/pkg/scheduler"
	"github.com/dukex/flowtransfer/pkg/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func factory(t *testing.T, built *atomic.Int32) scheduler.ManagerFactory {
	t.Helper()

	reg := registry.NewRegistry(slog.Default())
	require.NoError(t, reg.Register(dedup.NewStandard()))

	return func() *transfer.Manager {
		built.Add(1)

		source := &mocks.MockWorkflowAPI{}
		target := &mocks.MockWorkflowAPI{}

		for _, api := range []*mocks.MockWorkflowAPI{source, target} {
			api.On("TestConnection", mock.Anything).Return(apiclient.ConnectionResult{Success: true})
		}

		source.On("GetWorkflows", mock.Anything).Return([]*models.Workflow{{ID: "1", Name: "A"}}, nil)
		target.On("GetWorkflows", mock.Anything).Return([]*models.Workflow{}, nil)

		return transfer.NewManager(source, target, reg, slog.Default(), transfer.WithSignals())
	}
}

func dryRun() transfer.Options {
	return transfer.Options{DryRun: true, Validators: []string{}, Reporters: []string{}}
}

func TestNew_RejectsInvalidSchedule(t *testing.T) {
	t.Parallel()

	var built atomic.Int32

	_, err := scheduler.New("", dryRun(), factory(t, &built), slog.Default())
	require.ErrorIs(t, err, scheduler.ErrInvalidSchedule)

	_, err = scheduler.New("every minute", dryRun(), factory(t, &built), slog.Default())
	require.ErrorIs(t, err, scheduler.ErrInvalidSchedule)

	_, err = scheduler.New("*/5 * * * *", dryRun(), factory(t, &built), slog.Default())
	require.NoError(t, err)
}

func TestRunOnce_UsesFreshManager(t *testing.T) {
	t.Parallel()

	var built atomic.Int32

	s, err := scheduler.New("@hourly", dryRun(), factory(t, &built), slog.Default())
	require.NoError(t, err)

	assert.Equal(t, models.TransferStatusIdle, s.Progress().Status)
	assert.False(t, s.Cancel())
	assert.Empty(t, s.RunID())

	first, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	second, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), built.Load())
	assert.Equal(t, 2, s.Runs())
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, second.RunID, s.RunID())
	assert.Equal(t, models.TransferStatusCompleted, s.Progress().Status)

	last, lastErr := s.Last()
	require.NoError(t, lastErr)
	assert.Same(t, second, last)
	assert.Equal(t, 1, last.Transferred)
}

func TestStart_RunsOnSchedule(t *testing.T) {
	t.Parallel()

	var built atomic.Int32

	s, err := scheduler.New("@every 1s", dryRun(), factory(t, &built), slog.Default())
	require.NoError(t, err)

	finished := make(chan *models.Summary, 4)
	s.OnRun(func(summary *models.Summary, err error) {
		if err == nil {
			finished <- summary
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx))

	select {
	case summary := <-finished:
		assert.True(t, summary.DryRun)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled transfer did not run")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()

	require.NoError(t, s.Stop(stopCtx))
}
