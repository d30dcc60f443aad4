// Package pubsub provides a generic publish/subscribe event system.
package pubsub

import (
	"context"
	"time"
)

// EventType identifies which pipeline lifecycle moment an event describes.
type EventType string

const (
	LogLineEvent      EventType = "log_line"
	JobQueuedEvent    EventType = "job_queued"
	JobStartedEvent   EventType = "job_started"
	JobSkippedEvent   EventType = "job_skipped"
	JobFinishedEvent  EventType = "job_finished"
	StageAppliedEvent EventType = "stage_applied"
	StageSkippedEvent EventType = "stage_skipped"
	RunFinishedEvent  EventType = "run_finished"
	EngineActiveEvent EventType = "engine_active"
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Progress is the payload for pipeline lifecycle events. Index and Total
// are 1-based counters when the publisher knows them, zero otherwise.
type Progress struct {
	Stage  string
	Volume string
	Detail string
	Index  int
	Total  int
	Err    error
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
