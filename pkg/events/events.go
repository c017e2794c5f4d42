// Package events defines the lifecycle notifications emitted during a transfer run.
package events

import (
	"time"

	"github.com/dukex/flowtransfer/pkg/models"
	"github.com/google/uuid"
)

type EventType string

const Topic = "flowtransfer.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	TransferStartedEvent   EventType = "transfer.started"
	WorkflowProcessedEvent EventType = "transfer.workflow.processed"
	TransferFinishedEvent  EventType = "transfer.finished"
	TransferFailedEvent    EventType = "transfer.failed"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
}

func NewBaseEvent(eventType EventType, runID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		RunID:     runID,
	}
}

// TransferStarted is emitted once the filtered workflow list is known.
type TransferStarted struct {
	BaseEvent

	Total  int  `json:"total"`
	DryRun bool `json:"dry_run"`
}

func (e TransferStarted) GetType() EventType {
	return TransferStartedEvent
}

// WorkflowProcessed is emitted after each workflow reaches its final status.
type WorkflowProcessed struct {
	BaseEvent

	Result   models.WorkflowResult `json:"result"`
	Progress models.Progress       `json:"progress"`
}

func (e WorkflowProcessed) GetType() EventType {
	return WorkflowProcessedEvent
}

// TransferFinished is emitted when a run completes or is cancelled.
type TransferFinished struct {
	BaseEvent

	Progress  models.Progress `json:"progress"`
	Cancelled bool            `json:"cancelled"`
	Duration  time.Duration   `json:"duration"`
}

func (e TransferFinished) GetType() EventType {
	return TransferFinishedEvent
}

// TransferFailed is emitted when a run aborts on a fatal error.
type TransferFailed struct {
	BaseEvent

	Error string `json:"error"`
}

func (e TransferFailed) GetType() EventType {
	return TransferFailedEvent
}
