package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventSaveStart  EventType = "save_start"
	EventSaved      EventType = "saved"
	EventSaveFailed EventType = "save_failed"
)

// SaveEvent describes one autosave attempt of a form.
type SaveEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	FormID    string    `json:"formId"`
	Attempt   int       `json:"attempt,omitempty"`
	Err       string    `json:"error,omitempty"`
}

// SaveHooks defines callbacks for autosave observability.
type SaveHooks struct {
	OnSaveStart  func(context.Context, *SaveEvent)
	OnSaved      func(context.Context, *SaveEvent, BookingFlowData)
	OnSaveFailed func(context.Context, *SaveEvent)
}

// ChangeEvent is emitted by watchable stores when a form changes.
type ChangeEvent struct {
	FormID    string    `json:"formId"`
	Op        string    `json:"op"` // save, delete
	Timestamp time.Time `json:"timestamp"`
}
