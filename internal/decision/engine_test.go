package decision

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"phone-agent/internal/events"
)

// stubOracle scripts oracle behavior per test.
type stubOracle struct {
	result  Result
	err     error
	block   chan struct{} // when non-nil, Decide blocks until closed
	decided chan struct{} // when non-nil, closed after Decide returns
}

func (s *stubOracle) Decide(ctx context.Context, in Input) (Result, error) {
	if s.block != nil {
		<-s.block
	}
	if s.decided != nil {
		defer close(s.decided)
	}
	return s.result, s.err
}

func (s *stubOracle) Summarize(ctx context.Context, goal string, actions []string) (string, error) {
	return "summary", nil
}

func startCall(bus *events.Bus, callID string, goal string) {
	bus.CallInitiated.Publish(events.CallInitiated{
		CallID:      callID,
		PhoneNumber: "+15550001111",
		Goal:        goal,
		CompanyName: "Acme Medical",
	})
}

func TestEngine_MenuTranscriptEmitsPressKey(t *testing.T) {
	bus := events.NewBus()
	oracle := &stubOracle{result: Result{SelectedOption: "2", Reasoning: "menu", Confidence: 0.95, NextAction: ActionPressKey}}
	e := NewEngine(bus, oracle, nil, nil)
	e.Register()

	pressed := make(chan events.PressKey, 1)
	bus.PressKey.Subscribe(func(ev events.PressKey) { pressed <- ev })

	startCall(bus, "CA1", "Schedule an appointment")
	bus.TranscriptFinal.Publish(events.TranscriptFinal{CallID: "CA1", Text: "Press 1 for billing, press 2 for appointments."})

	select {
	case ev := <-pressed:
		if ev.Digits != "2" {
			t.Fatalf("digits = %q, want 2", ev.Digits)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no press-key action emitted")
	}

	s, ok := e.Session("CA1")
	if !ok {
		t.Fatalf("session missing")
	}
	if s.State != StateActing {
		t.Fatalf("state = %s, want %s", s.State, StateActing)
	}
	if len(s.ActionHistory) != 1 {
		t.Fatalf("history = %v", s.ActionHistory)
	}
}

func TestEngine_ClosedRecordingHangsUpAndDeletesSession(t *testing.T) {
	bus := events.NewBus()
	e := NewEngine(bus, &stubOracle{}, nil, nil)
	e.Register()

	var hangup *events.Hangup
	bus.Hangup.Subscribe(func(ev events.Hangup) { hangup = &ev })

	startCall(bus, "CA1", "Reach billing")
	bus.TranscriptFinal.Publish(events.TranscriptFinal{CallID: "CA1", Text: "Thank you for calling. Our office is currently closed."})

	if hangup == nil || hangup.CallID != "CA1" {
		t.Fatalf("expected hangup for CA1, got %+v", hangup)
	}
	if _, ok := e.Session("CA1"); ok {
		t.Fatalf("session should be deleted on termination")
	}
}

func TestEngine_ClosedNoticeWithoutAutomatedCuesHangsUp(t *testing.T) {
	bus := events.NewBus()
	e := NewEngine(bus, &stubOracle{}, nil, nil)
	e.Register()

	var hangup *events.Hangup
	bus.Hangup.Subscribe(func(ev events.Hangup) { hangup = &ev })

	startCall(bus, "CA1", "Reach billing")
	// This phrasing carries no menu or recording cues, so it classifies
	// as human speech; the closed notice must terminate anyway.
	bus.TranscriptFinal.Publish(events.TranscriptFinal{CallID: "CA1", Text: "Sorry, we're currently closed, please call back during business hours"})

	if hangup == nil || hangup.CallID != "CA1" {
		t.Fatalf("expected hangup for CA1, got %+v", hangup)
	}
	if _, ok := e.Session("CA1"); ok {
		t.Fatalf("session should be deleted on termination")
	}
}

func TestEngine_OracleFailureFallsBackToHeuristic(t *testing.T) {
	bus := events.NewBus()
	oracle := &stubOracle{err: errors.New("backend down"), decided: make(chan struct{})}
	e := NewEngine(bus, oracle, nil, nil)
	e.Register()

	pressed := make(chan events.PressKey, 1)
	bus.PressKey.Subscribe(func(ev events.PressKey) { pressed <- ev })

	startCall(bus, "CA1", "Ask about billing")
	bus.TranscriptFinal.Publish(events.TranscriptFinal{CallID: "CA1", Text: "Press 1 for billing, press 2 for appointments."})

	var ev events.PressKey
	select {
	case ev = <-pressed:
	case <-time.After(2 * time.Second):
		t.Fatalf("no fallback action emitted")
	}
	if ev.Digits != "1" {
		t.Fatalf("digits = %q, want 1", ev.Digits)
	}
	if !strings.Contains(ev.Reasoning, "Heuristic") {
		t.Fatalf("reasoning %q should name the heuristic", ev.Reasoning)
	}

	s, ok := e.Session("CA1")
	if !ok || s.LastDecision == nil {
		t.Fatalf("session or decision missing")
	}
	if s.LastDecision.Confidence != 0.7 {
		t.Fatalf("confidence = %v, want 0.7", s.LastDecision.Confidence)
	}
}

func TestEngine_DecisionForEndedCallIsDiscarded(t *testing.T) {
	bus := events.NewBus()
	oracle := &stubOracle{
		result:  Result{SelectedOption: "1", NextAction: ActionPressKey},
		block:   make(chan struct{}),
		decided: make(chan struct{}),
	}
	e := NewEngine(bus, oracle, nil, nil)
	e.Register()

	pressed := make(chan events.PressKey, 1)
	bus.PressKey.Subscribe(func(ev events.PressKey) { pressed <- ev })

	startCall(bus, "CA1", "Reach billing")
	bus.TranscriptFinal.Publish(events.TranscriptFinal{CallID: "CA1", Text: "Press 1 for billing."})

	// Call ends while the oracle is still thinking.
	bus.CallEnded.Publish(events.CallEnded{CallID: "CA1"})
	close(oracle.block)
	<-oracle.decided

	select {
	case ev := <-pressed:
		t.Fatalf("action emitted for torn-down call: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
	if e.ActiveSessions() != 0 {
		t.Fatalf("sessions = %d, want 0", e.ActiveSessions())
	}
}

func TestEngine_EnteringWaitMovesToWaiting(t *testing.T) {
	bus := events.NewBus()
	e := NewEngine(bus, &stubOracle{}, nil, nil)
	e.Register()

	startCall(bus, "CA1", "Reach billing")
	bus.EnteringWait.Publish(events.EnteringWait{CallID: "CA1", Action: "press_key", Key: "1"})

	s, ok := e.Session("CA1")
	if !ok {
		t.Fatalf("session missing")
	}
	if s.State != StateWaiting {
		t.Fatalf("state = %s, want %s", s.State, StateWaiting)
	}
}

func TestEngine_IgnoresTranscriptWhileActing(t *testing.T) {
	bus := events.NewBus()
	oracle := &stubOracle{result: Result{SelectedOption: "1", NextAction: ActionPressKey}, decided: make(chan struct{})}
	e := NewEngine(bus, oracle, nil, nil)
	e.Register()

	pressed := make(chan events.PressKey, 2)
	bus.PressKey.Subscribe(func(ev events.PressKey) { pressed <- ev })

	startCall(bus, "CA1", "Reach billing")
	bus.TranscriptFinal.Publish(events.TranscriptFinal{CallID: "CA1", Text: "Press 1 for billing."})
	<-pressed // first decision lands, state is now acting

	bus.TranscriptFinal.Publish(events.TranscriptFinal{CallID: "CA1", Text: "Press 1 for billing."})
	select {
	case ev := <-pressed:
		t.Fatalf("transcript processed while acting: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestEngine_UnknownCallIgnored(t *testing.T) {
	bus := events.NewBus()
	e := NewEngine(bus, &stubOracle{}, nil, nil)
	e.Register()

	bus.TranscriptFinal.Publish(events.TranscriptFinal{CallID: "CA-missing", Text: "Press 1 for billing."})
	if e.ActiveSessions() != 0 {
		t.Fatalf("no session should be created from a stray transcript")
	}
}
