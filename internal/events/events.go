// Package events carries session lifecycle notifications out of the manager
// without blocking auth flows: an async buffered Dispatcher feeds one
// structured Sink, and a Registry fans change callbacks out to UI
// subscribers.
package events

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Session lifecycle event types.
const (
	TypeSignedIn        = "signed_in"
	TypeSignedUp        = "signed_up"
	TypeTokenRefreshed  = "token_refreshed"
	TypeSessionRestored = "session_restored"
	TypeSignedOut       = "signed_out"
)

// Event is the canonical session lifecycle record. It never carries token
// material.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	UserID    string    `json:"user_id,omitempty"`
	Tier      string    `json:"tier,omitempty"`
}

// Sink receives emitted events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.writer.Write(append(data, '\n'))
}
