package mocks

import (
	"context"

	"github.com/dukex/flowtransfer/pkg/apiclient"
	"github.com/dukex/flowtransfer/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockWorkflowAPI is a mock implementation of apiclient.WorkflowAPI interface.
type MockWorkflowAPI struct {
	mock.Mock
}

func (m *MockWorkflowAPI) TestConnection(ctx context.Context) apiclient.ConnectionResult {
	args := m.Called(ctx)

	return args.Get(0).(apiclient.ConnectionResult)
}

func (m *MockWorkflowAPI) GetWorkflows(ctx context.Context) ([]*models.Workflow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockWorkflowAPI) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowAPI) CreateWorkflow(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	args := m.Called(ctx, workflow)
	if fn, ok := args.Get(0).(func(context.Context, *models.Workflow) (*models.Workflow, error)); ok {
		return fn(ctx, workflow)
	}

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowAPI) UpdateWorkflow(ctx context.Context, id string, workflow *models.Workflow) (*models.Workflow, error) {
	args := m.Called(ctx, id, workflow)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowAPI) DeleteWorkflow(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

var _ apiclient.WorkflowAPI = (*MockWorkflowAPI)(nil)
