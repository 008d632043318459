package conversation

import (
	"context"
	"strings"
	"sync"
	"testing"

	"phone-agent/internal/events"
	"phone-agent/internal/store"
)

// stubStore records outcome upserts.
type stubStore struct {
	mu       sync.Mutex
	outcomes map[string]store.Outcome
}

func newStubStore() *stubStore {
	return &stubStore{outcomes: make(map[string]store.Outcome)}
}

func (s *stubStore) UpsertCall(ctx context.Context, rec store.CallRecord) error { return nil }
func (s *stubStore) GetCall(ctx context.Context, callID string) (store.CallRecord, error) {
	return store.CallRecord{}, store.ErrNotFound
}
func (s *stubStore) UpsertOutcome(ctx context.Context, o store.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[o.CallID] = o
	return nil
}
func (s *stubStore) GetOutcome(ctx context.Context, callID string) (store.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.outcomes[callID]
	if !ok {
		return store.Outcome{}, store.ErrNotFound
	}
	return o, nil
}
func (s *stubStore) AppendTranscript(ctx context.Context, line store.TranscriptLine) error {
	return nil
}
func (s *stubStore) ListTranscript(ctx context.Context, callID string) ([]store.TranscriptLine, error) {
	return nil, nil
}

func newTestHandler(t *testing.T) (*Handler, *events.Bus, *stubStore, *[]events.Speak) {
	t.Helper()
	bus := events.NewBus()
	st := newStubStore()
	h := NewHandler(bus, st, nil)
	h.PhraseIndex = func(int) int { return 0 }
	h.Register()

	spoken := &[]events.Speak{}
	bus.Speak.Subscribe(func(ev events.Speak) { *spoken = append(*spoken, ev) })

	bus.CallInitiated.Publish(events.CallInitiated{
		CallID:      "CA1",
		PhoneNumber: "+15550001111",
		Goal:        "Get contact info for the cardiologist",
		CompanyName: "Valley Medical",
	})
	return h, bus, st, spoken
}

func TestHandler_FirstHumanSpeechAsksExactlyOnce(t *testing.T) {
	h, bus, _, spoken := newTestHandler(t)

	reached := 0
	bus.HumanReached.Subscribe(func(events.HumanReached) { reached++ })

	bus.TranscriptFinal.Publish(events.TranscriptFinal{CallID: "CA1", Text: "Hello, this is the front desk, how can I help you?"})

	if reached != 1 {
		t.Fatalf("human-reached events = %d, want 1", reached)
	}
	if len(*spoken) != 1 {
		t.Fatalf("speak events = %d, want 1", len(*spoken))
	}
	q := (*spoken)[0]
	if !strings.Contains(q.Text, "cardiolog") {
		t.Fatalf("question %q should target the goal", q.Text)
	}

	s, ok := h.Session("CA1")
	if !ok || !s.HasReachedHuman || !s.HasAskedQuestion {
		t.Fatalf("session = %+v", s)
	}
}

func TestHandler_ContactInfoResolvesCall(t *testing.T) {
	h, bus, st, spoken := newTestHandler(t)

	bus.TranscriptFinal.Publish(events.TranscriptFinal{CallID: "CA1", Text: "Hello, this is the front desk, how can I help you?"})
	bus.TranscriptFinal.Publish(events.TranscriptFinal{CallID: "CA1", Text: "Dr. Lee's direct line is 555-222-3333."})

	if len(*spoken) != 2 {
		t.Fatalf("speak events = %d, want question + closing", len(*spoken))
	}
	closing := (*spoken)[1]
	if closing.Priority != events.PriorityHigh {
		t.Fatalf("closing priority = %s, want high", closing.Priority)
	}

	if _, ok := h.Session("CA1"); ok {
		t.Fatalf("session should be deleted after capture")
	}

	o, err := st.GetOutcome(context.Background(), "CA1")
	if err != nil {
		t.Fatalf("outcome: %v", err)
	}
	if !o.Success || !strings.Contains(o.Response, "555-222-3333") {
		t.Fatalf("outcome = %+v", o)
	}
}

func TestHandler_QuestionGetsClarificationWithoutConsumingAsk(t *testing.T) {
	h, bus, _, spoken := newTestHandler(t)

	bus.TranscriptFinal.Publish(events.TranscriptFinal{CallID: "CA1", Text: "Hello, this is the front desk, how can I help you?"})
	bus.TranscriptFinal.Publish(events.TranscriptFinal{CallID: "CA1", Text: "Why do you need that?"})

	if len(*spoken) != 2 {
		t.Fatalf("speak events = %d, want question + clarification", len(*spoken))
	}

	s, ok := h.Session("CA1")
	if !ok || !s.HasAskedQuestion {
		t.Fatalf("asked state must survive a clarification: %+v", s)
	}

	// The answer after the clarification still resolves the call.
	bus.TranscriptFinal.Publish(events.TranscriptFinal{CallID: "CA1", Text: "Sure, it's 555-222-3333."})
	if _, ok := h.Session("CA1"); ok {
		t.Fatalf("session should resolve after the clarified answer")
	}
}

func TestHandler_FollowUpCapClosesPolitely(t *testing.T) {
	h, bus, st, spoken := newTestHandler(t)
	h.MaxFollowUps = 1

	bus.TranscriptFinal.Publish(events.TranscriptFinal{CallID: "CA1", Text: "Hello, this is the front desk, how can I help you?"})
	bus.TranscriptFinal.Publish(events.TranscriptFinal{CallID: "CA1", Text: "Let me check on that."})
	bus.TranscriptFinal.Publish(events.TranscriptFinal{CallID: "CA1", Text: "Still looking, hang on."})

	last := (*spoken)[len(*spoken)-1]
	if last.Text != politeClose {
		t.Fatalf("last utterance = %q, want polite close", last.Text)
	}
	if _, ok := h.Session("CA1"); ok {
		t.Fatalf("session should be deleted after the cap")
	}

	o, err := st.GetOutcome(context.Background(), "CA1")
	if err != nil {
		t.Fatalf("outcome: %v", err)
	}
	if o.Success {
		t.Fatalf("capped conversation must not be a success")
	}
}

func TestHandler_VoicemailSpeaksThenHangsUpOnCompletion(t *testing.T) {
	_, bus, st, spoken := newTestHandler(t)

	var hangups []events.Hangup
	bus.Hangup.Subscribe(func(ev events.Hangup) { hangups = append(hangups, ev) })

	bus.TranscriptFinal.Publish(events.TranscriptFinal{CallID: "CA1", Text: "Please leave a message after the beep."})

	if len(*spoken) != 1 {
		t.Fatalf("speak events = %d, want 1", len(*spoken))
	}
	vm := (*spoken)[0]
	if vm.Priority != events.PriorityHigh {
		t.Fatalf("voicemail priority = %s, want high", vm.Priority)
	}
	if len(hangups) != 0 {
		t.Fatalf("hangup must wait for playback completion")
	}

	// Playback completion for the voicemail utterance triggers hangup.
	bus.TTSCompleted.Publish(events.TTSCompleted{CallID: "CA1", Context: vm.Context})
	if len(hangups) != 1 {
		t.Fatalf("hangups = %d, want 1", len(hangups))
	}

	o, err := st.GetOutcome(context.Background(), "CA1")
	if err != nil {
		t.Fatalf("outcome: %v", err)
	}
	if o.Success {
		t.Fatalf("voicemail outcome must not be a success")
	}
}

func TestHandler_ClosedNoticeDoesNotStartConversation(t *testing.T) {
	h, bus, _, spoken := newTestHandler(t)

	bus.TranscriptFinal.Publish(events.TranscriptFinal{CallID: "CA1", Text: "Sorry, we're currently closed, please call back during business hours"})

	if len(*spoken) != 0 {
		t.Fatalf("spoke to a closed recording: %+v", *spoken)
	}
	s, ok := h.Session("CA1")
	if !ok || s.HasReachedHuman {
		t.Fatalf("session = %+v, closed notice must not count as a human", s)
	}
}

func TestHandler_DuplicateVoicemailLinesLeaveOneMessage(t *testing.T) {
	_, bus, _, spoken := newTestHandler(t)

	bus.TranscriptFinal.Publish(events.TranscriptFinal{CallID: "CA1", Text: "You've reached Valley Medical. Please leave a message."})
	bus.TranscriptFinal.Publish(events.TranscriptFinal{CallID: "CA1", Text: "Record your message after the tone."})

	if len(*spoken) != 1 {
		t.Fatalf("speak events = %d, want a single voicemail message", len(*spoken))
	}
}

func TestHandler_CompletionAfterCallEndDoesNotHangUp(t *testing.T) {
	_, bus, _, spoken := newTestHandler(t)

	hangups := 0
	bus.Hangup.Subscribe(func(events.Hangup) { hangups++ })

	bus.TranscriptFinal.Publish(events.TranscriptFinal{CallID: "CA1", Text: "Hello, this is the front desk, how can I help you?"})
	bus.TranscriptFinal.Publish(events.TranscriptFinal{CallID: "CA1", Text: "Dr. Lee's direct line is 555-222-3333."})

	// The carrier reports the call gone before the closing line plays out.
	bus.CallEnded.Publish(events.CallEnded{CallID: "CA1"})
	bus.TTSCompleted.Publish(events.TTSCompleted{CallID: "CA1", Context: (*spoken)[1].Context})

	if hangups != 0 {
		t.Fatalf("hangup emitted for an already-ended call")
	}
}

func TestHandler_QuestionCompletionDoesNotHangUp(t *testing.T) {
	_, bus, _, _ := newTestHandler(t)

	hangups := 0
	bus.Hangup.Subscribe(func(events.Hangup) { hangups++ })

	bus.TTSCompleted.Publish(events.TTSCompleted{CallID: "CA1", Context: "conversation_question"})
	if hangups != 0 {
		t.Fatalf("question playback completion must not hang up")
	}
}

func TestComposeVoicemail_IncludesCallerDetails(t *testing.T) {
	msg := ComposeVoicemail("My name is Jordan Avery from Birch Events, calling about catering availability. Call back at 555-867-5309.", "Harvest Kitchen")
	for _, want := range []string{"Harvest Kitchen", "Jordan Avery", "catering", "555-867-5309"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("voicemail %q missing %q", msg, want)
		}
	}
}
