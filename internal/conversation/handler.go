package conversation

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"phone-agent/internal/classifier"
	"phone-agent/internal/events"
	"phone-agent/internal/store"
)

// TTS context tags used to chain post-playback logic.
const (
	ttsContextQuestion  = "conversation_question"
	ttsContextVoicemail = "voicemail_message"
	ttsContextClosing   = "closing_line"
)

// Session tracks the scripted human exchange for one call. The map is
// owned exclusively by the Handler and keyed by the same call id as the
// decision engine's sessions, but the two maps never share entries.
//
// Invariant: at most one outstanding question per session. The intro
// question is issued once (guarded by HasReachedHuman); follow-ups and
// clarifications re-prompt for the same question and never stack.
type Session struct {
	CallID       string
	Goal         string
	TargetPerson string
	BusinessName string

	HasReachedHuman  bool
	HasAskedQuestion bool
	HasLeftVoicemail bool
	QuestionAsked    string
	HumanResponse    string

	// FollowUps counts incomplete-reply prompts; bounded by
	// MaxFollowUps to avoid circling forever inside the call window.
	FollowUps int

	CreatedAt time.Time
}

// Handler runs the human-conversation mini state machine:
// not-reached → reached-awaiting-response → resolved.
type Handler struct {
	Store store.Store // optional; nil disables persistence

	Clock func() time.Time

	// PhraseIndex picks a follow-up variant given the table size.
	// Injectable so tests can pin the phrase.
	PhraseIndex func(n int) int

	MaxFollowUps int

	bus *events.Bus
	log *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	// pendingHangup holds the calls whose closing or voicemail utterance
	// is still playing. Entries are removed on call end, so a completion
	// event racing call.ended never hangs up a dead call id.
	pendingHangup map[string]string
}

const defaultMaxFollowUps = 3

func NewHandler(bus *events.Bus, st store.Store, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		Store:         st,
		Clock:         time.Now,
		PhraseIndex:   rand.Intn,
		MaxFollowUps:  defaultMaxFollowUps,
		bus:           bus,
		log:           log,
		sessions:      make(map[string]*Session),
		pendingHangup: make(map[string]string),
	}
}

// Register subscribes the handler to its bus topics.
func (h *Handler) Register() {
	h.bus.CallInitiated.Subscribe(h.handleCallInitiated)
	h.bus.TranscriptFinal.Subscribe(h.handleTranscript)
	h.bus.TTSCompleted.Subscribe(h.handleTTSCompleted)
	h.bus.CallEnded.Subscribe(func(ev events.CallEnded) { h.dropSession(ev.CallID) })
	h.bus.CallTerminated.Subscribe(func(ev events.CallTerminated) { h.dropSession(ev.CallID) })
}

// Session returns a copy of the conversation session, if one exists.
func (h *Handler) Session(callID string) (Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[callID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

func (h *Handler) handleCallInitiated(ev events.CallInitiated) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[ev.CallID]; ok {
		return
	}
	h.sessions[ev.CallID] = &Session{
		CallID:       ev.CallID,
		Goal:         ev.Goal,
		BusinessName: ev.CompanyName,
		CreatedAt:    h.Clock(),
	}
}

func (h *Handler) handleTranscript(ev events.TranscriptFinal) {
	h.mu.Lock()
	s, ok := h.sessions[ev.CallID]
	if !ok {
		h.mu.Unlock()
		return
	}

	if classifier.IsClosedNotice(ev.Text) {
		// Closed notices are the decision engine's to hang up; greeting
		// one as a live human would talk to a recording.
		h.mu.Unlock()
		return
	}

	cls := classifier.Classify(ev.Text)
	switch {
	case cls.Kind == classifier.KindVoicemail && !s.HasReachedHuman && !s.HasLeftVoicemail:
		s.HasLeftVoicemail = true
		h.pendingHangup[ev.CallID] = "voicemail delivered"
		goal, business := s.Goal, s.BusinessName
		h.mu.Unlock()
		h.leaveVoicemail(ev.CallID, goal, business)

	case cls.Kind == classifier.KindHumanSpeech && !s.HasReachedHuman:
		s.HasReachedHuman = true
		question := introAndQuestion(s.Goal, s.BusinessName, s.TargetPerson)
		s.HasAskedQuestion = true
		s.QuestionAsked = question
		h.mu.Unlock()

		h.log.Info("human reached", "call_id", ev.CallID)
		h.bus.HumanReached.Publish(events.HumanReached{CallID: ev.CallID, Transcript: ev.Text})
		// Speak immediately: dead air after a greeting loses the caller.
		h.bus.Speak.Publish(events.Speak{CallID: ev.CallID, Text: question, Priority: events.PriorityMedium, Context: ttsContextQuestion})

	case cls.Kind == classifier.KindHumanSpeech && s.HasAskedQuestion:
		h.handleReply(s, ev)

	default:
		// Hold messages and menus mid-conversation are not ours to act on.
		h.mu.Unlock()
	}
}

// handleReply is called with h.mu held and must release it.
func (h *Handler) handleReply(s *Session, ev events.TranscriptFinal) {
	a := AnalyzeResponse(ev.Text)
	switch {
	case a.HasContactInfo:
		s.HumanResponse = ev.Text
		resolved := *s
		delete(h.sessions, s.CallID)
		h.pendingHangup[s.CallID] = "conversation complete"
		h.mu.Unlock()

		h.persistOutcome(resolved, true)
		h.bus.Speak.Publish(events.Speak{CallID: ev.CallID, Text: closingLine, Priority: events.PriorityHigh, Context: ttsContextClosing})

	case a.IsQuestion:
		goal := s.Goal
		h.mu.Unlock()
		// The original question stays pending; clarifying does not
		// consume the asked state.
		h.bus.Speak.Publish(events.Speak{CallID: ev.CallID, Text: clarificationFor(goal), Priority: events.PriorityMedium, Context: ttsContextQuestion})

	default:
		s.FollowUps++
		if s.FollowUps > h.MaxFollowUps {
			resolved := *s
			delete(h.sessions, s.CallID)
			h.pendingHangup[s.CallID] = "conversation complete"
			h.mu.Unlock()

			h.persistOutcome(resolved, false)
			h.bus.Speak.Publish(events.Speak{CallID: ev.CallID, Text: politeClose, Priority: events.PriorityHigh, Context: ttsContextClosing})
			return
		}
		prompt := followUpPrompts[h.PhraseIndex(len(followUpPrompts))]
		h.mu.Unlock()
		h.bus.Speak.Publish(events.Speak{CallID: ev.CallID, Text: prompt, Priority: events.PriorityMedium, Context: ttsContextQuestion})
	}
}

func (h *Handler) leaveVoicemail(callID, goal, businessName string) {
	msg := ComposeVoicemail(goal, businessName)
	h.log.Info("leaving voicemail", "call_id", callID)

	h.persistOutcome(Session{CallID: callID, Goal: goal, HumanResponse: "voicemail left: " + msg}, false)
	// Hangup is chained off the TTSCompleted event for this utterance,
	// never a fixed timer, so the message is not cut off.
	h.bus.Speak.Publish(events.Speak{CallID: callID, Text: msg, Priority: events.PriorityHigh, Context: ttsContextVoicemail})
}

func (h *Handler) handleTTSCompleted(ev events.TTSCompleted) {
	if ev.Context != ttsContextVoicemail && ev.Context != ttsContextClosing {
		return
	}
	h.mu.Lock()
	reason, ok := h.pendingHangup[ev.CallID]
	delete(h.pendingHangup, ev.CallID)
	h.mu.Unlock()
	if !ok {
		// The call ended before playback finished; nothing to hang up.
		return
	}
	h.bus.Hangup.Publish(events.Hangup{CallID: ev.CallID, Reason: reason})
}

func (h *Handler) dropSession(callID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, callID)
	delete(h.pendingHangup, callID)
}

// persistOutcome is best-effort: storage trouble must never block the
// closing line or the hangup.
func (h *Handler) persistOutcome(s Session, success bool) {
	if h.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	o := store.Outcome{
		CallID:     s.CallID,
		Goal:       s.Goal,
		Response:   s.HumanResponse,
		Success:    success,
		CapturedAt: h.Clock(),
	}
	if err := h.Store.UpsertOutcome(ctx, o); err != nil {
		h.log.Warn("outcome persist failed", "call_id", s.CallID, "err", err)
	}
}
