// Package apiclient provides a typed client for the workflow REST API of an automation instance.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/dukex/flowtransfer/pkg/httpclient"
	"github.com/dukex/flowtransfer/pkg/models"
)

const (
	// APIKeyHeader carries the static API key on every request.
	APIKeyHeader = "X-N8N-API-KEY"

	apiPrefix    = "/api/v1"
	pageSize     = 250
	maxPages     = 1000
	workflowPath = "/workflows"
)

var (
	// ErrInvalidInstance is returned when the instance configuration is incomplete.
	ErrInvalidInstance = errors.New("invalid instance configuration")
	// ErrUnexpectedResponse is returned when a response body has an unknown shape.
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// Instance identifies an automation instance.
type Instance struct {
	Name   string `mapstructure:"name"    json:"name"`
	URL    string `mapstructure:"url"     json:"url"     validate:"required,url"`
	APIKey string `mapstructure:"api_key" json:"-"       validate:"required"`
}

// ConnectionResult is the outcome of a connectivity probe.
type ConnectionResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// WorkflowAPI is the set of workflow operations an instance exposes.
type WorkflowAPI interface {
	TestConnection(ctx context.Context) ConnectionResult
	GetWorkflows(ctx context.Context) ([]*models.Workflow, error)
	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	CreateWorkflow(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error)
	UpdateWorkflow(ctx context.Context, id string, workflow *models.Workflow) (*models.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error
}

// Client talks to one instance.
type Client struct {
	name   string
	http   *httpclient.Client
	logger *slog.Logger
}

var _ WorkflowAPI = (*Client)(nil)

// New creates a client for the instance on top of the retrying HTTP client.
func New(instance Instance, logger *slog.Logger, opts ...httpclient.Option) (*Client, error) {
	if instance.URL == "" || instance.APIKey == "" {
		return nil, fmt.Errorf("%w: url and api key are required for %q", ErrInvalidInstance, instance.Name)
	}

	if logger == nil {
		logger = slog.Default()
	}

	name := instance.Name
	if name == "" {
		name = instance.URL
	}

	baseURL := strings.TrimRight(instance.URL, "/")
	if !strings.HasSuffix(baseURL, apiPrefix) {
		baseURL += apiPrefix
	}

	logger = logger.With("module", "api_client", "instance", name)

	return &Client{
		name: name,
		http: httpclient.New(httpclient.Config{
			BaseURL: baseURL,
			Headers: map[string]string{APIKeyHeader: instance.APIKey},
		}, logger, opts...),
		logger: logger,
	}, nil
}

// Name returns the instance name used in logs.
func (c *Client) Name() string {
	return c.name
}

// Stats returns the request counters of the underlying HTTP client.
func (c *Client) Stats() httpclient.Stats {
	return c.http.Stats()
}

// TestConnection probes the instance. Failures, including rejected credentials, are
// reported in the result instead of as an error.
func (c *Client) TestConnection(ctx context.Context) ConnectionResult {
	_, err := c.http.Request(ctx, workflowPath, httpclient.RequestOptions{
		Query: url.Values{"limit": {"1"}},
	})
	if err != nil {
		c.logger.WarnContext(ctx, "Connection test failed", "error", err)

		message := err.Error()
		if httpclient.IsUnauthorized(err) {
			message = "authentication failed: " + message
		}

		return ConnectionResult{Success: false, Error: message}
	}

	return ConnectionResult{Success: true}
}

type workflowPage struct {
	Data       []*models.Workflow `json:"data"`
	NextCursor *string            `json:"nextCursor"`
}

// GetWorkflows lists every workflow on the instance, following cursors when the instance paginates.
func (c *Client) GetWorkflows(ctx context.Context) ([]*models.Workflow, error) {
	var (
		workflows []*models.Workflow
		cursor    string
	)

	for range maxPages {
		query := url.Values{"limit": {strconv.Itoa(pageSize)}}
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		raw, err := c.http.Do(ctx, workflowPath, httpclient.RequestOptions{Query: query})
		if err != nil {
			return nil, fmt.Errorf("failed to list workflows on %s: %w", c.name, err)
		}

		page, err := decodeWorkflowPage(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to list workflows on %s: %w", c.name, err)
		}

		workflows = append(workflows, page.Data...)

		if page.NextCursor == nil || *page.NextCursor == "" || *page.NextCursor == cursor {
			break
		}

		cursor = *page.NextCursor
	}

	c.logger.DebugContext(ctx, "Fetched workflows", "count", len(workflows))

	return workflows, nil
}

// decodeWorkflowPage accepts both a bare array and a {"data": [...]} envelope.
func decodeWorkflowPage(raw []byte) (workflowPage, error) {
	var page workflowPage

	trimmed := strings.TrimSpace(string(raw))
	switch {
	case trimmed == "" || trimmed == "null":
		return page, nil
	case strings.HasPrefix(trimmed, "["):
		err := json.Unmarshal(raw, &page.Data)
		if err != nil {
			return page, fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
		}

		return page, nil
	case strings.HasPrefix(trimmed, "{"):
		err := json.Unmarshal(raw, &page)
		if err != nil {
			return page, fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
		}

		return page, nil
	default:
		return page, fmt.Errorf("%w: workflow listing is not JSON", ErrUnexpectedResponse)
	}
}

// GetWorkflow fetches a single workflow.
func (c *Client) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	var workflow models.Workflow

	err := c.http.RequestJSON(ctx, workflowPath+"/"+url.PathEscape(id), httpclient.RequestOptions{}, &workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow %s on %s: %w", id, c.name, err)
	}

	return &workflow, nil
}

// writePayload holds the fields the API accepts on create and update; the rest is server owned.
type writePayload struct {
	Name        string         `json:"name"`
	Nodes       []*models.Node `json:"nodes"`
	Connections map[string]any `json:"connections"`
	Settings    map[string]any `json:"settings"`
	StaticData  any            `json:"staticData,omitempty"`
	PinData     map[string]any `json:"pinData,omitempty"`
	Tags        []writeTag     `json:"tags,omitempty"`
}

// writeTag references a tag by name; ids are local to each instance.
type writeTag struct {
	Name string `json:"name"`
}

func newWritePayload(workflow *models.Workflow) writePayload {
	payload := writePayload{
		Name:        workflow.Name,
		Nodes:       workflow.Nodes,
		Connections: workflow.Connections,
		Settings:    workflow.Settings,
		StaticData:  workflow.StaticData,
		PinData:     workflow.PinData,
	}

	for _, name := range workflow.TagNames() {
		payload.Tags = append(payload.Tags, writeTag{Name: name})
	}

	if payload.Nodes == nil {
		payload.Nodes = []*models.Node{}
	}

	if payload.Connections == nil {
		payload.Connections = map[string]any{}
	}

	if payload.Settings == nil {
		payload.Settings = map[string]any{}
	}

	return payload
}

// CreateWorkflow creates the workflow and returns it as stored by the instance.
func (c *Client) CreateWorkflow(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	var created models.Workflow

	err := c.http.RequestJSON(ctx, workflowPath, httpclient.RequestOptions{
		Method: "POST",
		Body:   newWritePayload(workflow),
	}, &created)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow %q on %s: %w", workflow.Name, c.name, err)
	}

	c.logger.InfoContext(ctx, "Created workflow", "name", workflow.Name, "id", created.ID)

	return &created, nil
}

// UpdateWorkflow replaces the content of an existing workflow.
func (c *Client) UpdateWorkflow(ctx context.Context, id string, workflow *models.Workflow) (*models.Workflow, error) {
	var updated models.Workflow

	err := c.http.RequestJSON(ctx, workflowPath+"/"+url.PathEscape(id), httpclient.RequestOptions{
		Method: "PATCH",
		Body:   newWritePayload(workflow),
	}, &updated)
	if err != nil {
		return nil, fmt.Errorf("failed to update workflow %s on %s: %w", id, c.name, err)
	}

	return &updated, nil
}

// DeleteWorkflow removes a workflow.
func (c *Client) DeleteWorkflow(ctx context.Context, id string) error {
	_, err := c.http.Do(ctx, workflowPath+"/"+url.PathEscape(id), httpclient.RequestOptions{Method: "DELETE"})
	if err != nil {
		return fmt.Errorf("failed to delete workflow %s on %s: %w", id, c.name, err)
	}

	return nil
}
