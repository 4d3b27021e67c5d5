package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventModelLoaded   EventType = "model_loaded"
	EventModelRejected EventType = "model_rejected"
	EventClassified    EventType = "classified"
	EventReveal        EventType = "reveal"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// ModelEvent reports the outcome of a load attempt.
type ModelEvent struct {
	EventBase
	Source string `json:"source"` // "text", "structured", "store" or "classifier"
	Nodes  int    `json:"nodes,omitempty"`
	Err    error  `json:"-"`
}

// ClassifyEvent reports a finished classification call.
type ClassifyEvent struct {
	EventBase
	Label       string        `json:"label"`
	Steps       int           `json:"steps"`
	Ambiguities int           `json:"ambiguities,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// RevealKind identifies which of the two reveal machines emitted an event.
type RevealKind string

const (
	RevealConstruction RevealKind = "construction"
	RevealPlayback     RevealKind = "playback"
)

// Phase is the state of a reveal machine.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseRunning  Phase = "running"
	PhaseComplete Phase = "complete"
)

// RevealEvent is emitted on every transition of a reveal machine.
type RevealEvent struct {
	EventBase
	Kind      RevealKind `json:"kind"`
	RunID     string     `json:"run_id"`
	Phase     Phase      `json:"phase"`
	Cursor    int        `json:"cursor"`
	Total     int        `json:"total"`
	Message   string     `json:"message,omitempty"`
	Label     string     `json:"label,omitempty"`
	Cancelled bool       `json:"cancelled,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnModelLoad func(context.Context, *ModelEvent)
	OnClassify  func(context.Context, *ClassifyEvent)
	OnReveal    func(context.Context, *RevealEvent)
}
