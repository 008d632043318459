package store

import (
	"context"
	"testing"

	"phone-agent/internal/events"
)

func TestRecorder_LogsBothDirections(t *testing.T) {
	bus := events.NewBus()
	st := NewMemoryStore()
	r := NewRecorder(st, nil)
	r.Register(bus)

	bus.TranscriptFinal.Publish(events.TranscriptFinal{CallID: "CA1", Text: "Press 1 for billing"})
	bus.Speak.Publish(events.Speak{CallID: "CA1", Text: "Hi, I'm calling about billing"})
	bus.Speak.Publish(events.Speak{CallID: "CA1", Text: ""}) // ignored

	lines, err := st.ListTranscript(context.Background(), "CA1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %+v, want 2", lines)
	}
	if lines[0].Role != "remote" || lines[1].Role != "agent" {
		t.Fatalf("roles = %s, %s", lines[0].Role, lines[1].Role)
	}
	if lines[0].At.IsZero() {
		t.Fatalf("timestamp not set")
	}
}
