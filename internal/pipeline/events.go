package pipeline

import "github.com/justinsane/ClassicRides/internal/memory"

// Event types published by a session.
const (
	EventStage       = "stage"       // a pipeline run moved to a new stage
	EventMemoryReady = "memoryReady" // a memory was generated or revised and persisted
	EventError       = "error"       // a run failed
)

// Event is a notification about pipeline progress. Listeners decide
// what to do with it (the web client plays a horn sound on
// memoryReady).
type Event struct {
	Type    string         `json:"type"`
	Stage   State          `json:"stage,omitempty"`
	Message string         `json:"message,omitempty"`
	Memory  *memory.Memory `json:"memory,omitempty"`
}

// EventSink receives pipeline events. Publish must not block; slow
// consumers drop events rather than stalling a run.
type EventSink interface {
	Publish(evt Event)
}
