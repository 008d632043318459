package tts

import (
	"context"
	"sync"
	"testing"
	"time"

	"phone-agent/internal/events"
)

// gateSynth blocks each utterance until released, recording play order.
type gateSynth struct {
	started chan string
	release chan struct{}

	mu     sync.Mutex
	played []string
}

func newGateSynth() *gateSynth {
	return &gateSynth{
		started: make(chan string, 8),
		release: make(chan struct{}),
	}
}

func (g *gateSynth) Speak(ctx context.Context, callID, text string) error {
	g.mu.Lock()
	g.played = append(g.played, text)
	g.mu.Unlock()
	g.started <- text
	select {
	case <-g.release:
	case <-ctx.Done():
	}
	return nil
}

func waitStart(t *testing.T, g *gateSynth) string {
	t.Helper()
	select {
	case text := <-g.started:
		return text
	case <-time.After(2 * time.Second):
		t.Fatalf("no utterance started")
		return ""
	}
}

func TestManager_PlaysImmediatelyWhenIdle(t *testing.T) {
	bus := events.NewBus()
	synth := newGateSynth()
	m := NewManager(bus, synth, nil)
	m.Register()

	done := make(chan events.TTSCompleted, 1)
	bus.TTSCompleted.Subscribe(func(ev events.TTSCompleted) { done <- ev })

	bus.Speak.Publish(events.Speak{CallID: "CA1", Text: "hello", Priority: events.PriorityMedium, Context: "greeting"})
	if got := waitStart(t, synth); got != "hello" {
		t.Fatalf("started %q", got)
	}
	synth.release <- struct{}{}

	select {
	case ev := <-done:
		if ev.CallID != "CA1" || ev.Context != "greeting" {
			t.Fatalf("completion = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no completion event")
	}
}

func TestManager_HighPriorityJumpsQueue(t *testing.T) {
	bus := events.NewBus()
	synth := newGateSynth()
	m := NewManager(bus, synth, nil)
	m.Register()

	bus.Speak.Publish(events.Speak{CallID: "CA1", Text: "first", Priority: events.PriorityLow})
	waitStart(t, synth)

	// Queued while first is in flight.
	bus.Speak.Publish(events.Speak{CallID: "CA1", Text: "low", Priority: events.PriorityLow})
	bus.Speak.Publish(events.Speak{CallID: "CA1", Text: "urgent", Priority: events.PriorityHigh})
	if m.Pending("CA1") != 2 {
		t.Fatalf("pending = %d, want 2", m.Pending("CA1"))
	}

	synth.release <- struct{}{}
	if got := waitStart(t, synth); got != "urgent" {
		t.Fatalf("second utterance = %q, want urgent", got)
	}
	synth.release <- struct{}{}
	if got := waitStart(t, synth); got != "low" {
		t.Fatalf("third utterance = %q, want low", got)
	}
	synth.release <- struct{}{}
}

func TestManager_FIFOWithinPriority(t *testing.T) {
	bus := events.NewBus()
	synth := newGateSynth()
	m := NewManager(bus, synth, nil)
	m.Register()

	bus.Speak.Publish(events.Speak{CallID: "CA1", Text: "first", Priority: events.PriorityMedium})
	waitStart(t, synth)
	bus.Speak.Publish(events.Speak{CallID: "CA1", Text: "second", Priority: events.PriorityMedium})
	bus.Speak.Publish(events.Speak{CallID: "CA1", Text: "third", Priority: events.PriorityMedium})

	synth.release <- struct{}{}
	if got := waitStart(t, synth); got != "second" {
		t.Fatalf("got %q, want second", got)
	}
	synth.release <- struct{}{}
	if got := waitStart(t, synth); got != "third" {
		t.Fatalf("got %q, want third", got)
	}
	synth.release <- struct{}{}
}

func TestManager_CallEndDropsQueue(t *testing.T) {
	bus := events.NewBus()
	synth := newGateSynth()
	m := NewManager(bus, synth, nil)
	m.Register()

	bus.Speak.Publish(events.Speak{CallID: "CA1", Text: "first", Priority: events.PriorityMedium})
	waitStart(t, synth)
	bus.Speak.Publish(events.Speak{CallID: "CA1", Text: "never", Priority: events.PriorityMedium})

	bus.CallEnded.Publish(events.CallEnded{CallID: "CA1"})
	synth.release <- struct{}{}

	// The queued utterance must not start after teardown.
	select {
	case got := <-synth.started:
		t.Fatalf("unexpected utterance %q after call end", got)
	case <-time.After(200 * time.Millisecond):
	}
	if m.Pending("CA1") != 0 {
		t.Fatalf("pending = %d, want 0", m.Pending("CA1"))
	}
}

func TestManager_EmptyTextIgnored(t *testing.T) {
	bus := events.NewBus()
	synth := newGateSynth()
	m := NewManager(bus, synth, nil)
	m.Register()

	bus.Speak.Publish(events.Speak{CallID: "CA1", Text: ""})
	select {
	case got := <-synth.started:
		t.Fatalf("unexpected utterance %q", got)
	case <-time.After(100 * time.Millisecond):
	}
}
