package decision

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"phone-agent/internal/classifier"
	"phone-agent/internal/events"
	"phone-agent/internal/store"
)

// Engine runs the per-call navigation state machine.
//
// Correctness model (no locks across suspension points): every
// asynchronous continuation re-checks that the session still exists
// before mutating or emitting. A decision computed for a call that ended
// mid-flight is discarded with a log line; it is a designed-for race
// outcome, not an error.
type Engine struct {
	Oracle Oracle
	Store  store.Store // optional; nil disables persistence

	// Clock and DecisionTimeout are injectable for tests.
	Clock           func() time.Time
	DecisionTimeout time.Duration

	bus      *events.Bus
	fallback *HeuristicOracle
	log      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*CallSession
}

const defaultDecisionTimeout = 15 * time.Second

func NewEngine(bus *events.Bus, oracle Oracle, st store.Store, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		Oracle:          oracle,
		Store:           st,
		Clock:           time.Now,
		DecisionTimeout: defaultDecisionTimeout,
		bus:             bus,
		fallback:        NewHeuristicOracle(),
		log:             log,
		sessions:        make(map[string]*CallSession),
	}
}

// Register subscribes the engine to its bus topics. Call once at wiring
// time, before any call is placed.
func (e *Engine) Register() {
	e.bus.CallInitiated.Subscribe(e.handleCallInitiated)
	e.bus.TranscriptFinal.Subscribe(e.handleTranscript)
	e.bus.EnteringWait.Subscribe(e.handleEnteringWait)
	e.bus.HumanReached.Subscribe(e.handleHumanReached)
	e.bus.CallEnded.Subscribe(func(ev events.CallEnded) { e.endSession(ev.CallID) })
	e.bus.CallTerminated.Subscribe(func(ev events.CallTerminated) { e.endSession(ev.CallID) })
}

// Session returns a copy of the session for callID, if one exists.
func (e *Engine) Session(callID string) (CallSession, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[callID]
	if !ok {
		return CallSession{}, false
	}
	return *s, true
}

// ActiveSessions reports how many calls the engine is tracking.
func (e *Engine) ActiveSessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

func (e *Engine) handleCallInitiated(ev events.CallInitiated) {
	e.mu.Lock()
	if _, ok := e.sessions[ev.CallID]; ok {
		e.mu.Unlock()
		return
	}
	s := &CallSession{
		CallID:      ev.CallID,
		PhoneNumber: ev.PhoneNumber,
		Goal:        ev.Goal,
		CompanyName: ev.CompanyName,
		State:       StateListening,
		StartTime:   e.Clock(),
	}
	e.sessions[ev.CallID] = s
	e.mu.Unlock()

	e.log.Info("call session started", "call_id", ev.CallID, "goal", ev.Goal)
	e.persistCall(*s)
}

func (e *Engine) handleTranscript(ev events.TranscriptFinal) {
	e.mu.Lock()
	s, ok := e.sessions[ev.CallID]
	if !ok {
		e.mu.Unlock()
		return
	}
	if s.State != StateListening && s.State != StateWaiting {
		// A decision is already in flight; the next menu will be
		// re-heard after the action executes.
		e.mu.Unlock()
		return
	}

	cls := classifier.Classify(ev.Text)

	// Explicit closed/disconnected notices terminate regardless of how
	// the line classified: "sorry, we're currently closed" reads as
	// human speech but still ends the call. The goodbye fallback stays
	// gated to automated kinds.
	terminate := classifier.IsClosedNotice(ev.Text)
	if !terminate && (cls.Kind == classifier.KindIVRMenu || cls.Kind == classifier.KindAutomatedOther) {
		terminate = classifier.ShouldTerminate(ev.Text)
	}
	if terminate {
		delete(e.sessions, ev.CallID)
		e.mu.Unlock()
		e.log.Info("terminating call", "call_id", ev.CallID, "transcript", ev.Text)
		e.bus.Hangup.Publish(events.Hangup{CallID: ev.CallID, Reason: "business closed or unreachable"})
		return
	}

	switch cls.Kind {
	case classifier.KindIVRMenu:
		s.State = StateDeciding
		in := Input{
			CallID:          s.CallID,
			Goal:            s.Goal,
			CompanyName:     s.CompanyName,
			PreviousActions: append([]string(nil), s.ActionHistory...),
			MenuOptions:     cls.Options,
			FullText:        ev.Text,
		}
		e.mu.Unlock()
		go e.decide(in)
	default:
		// Voicemail, hold messages, and human speech belong to the
		// conversation handler; the engine keeps listening.
		e.mu.Unlock()
	}
}

// decide runs the oracle with a hard timeout and emits the chosen
// action, unless the session was torn down while the oracle was
// thinking.
func (e *Engine) decide(in Input) {
	ctx, cancel := context.WithTimeout(context.Background(), e.DecisionTimeout)
	defer cancel()

	res, err := e.Oracle.Decide(ctx, in)
	if err != nil {
		e.log.Warn("oracle decision failed, using heuristic fallback", "call_id", in.CallID, "err", err)
		res, _ = e.fallback.Decide(context.Background(), in)
	}

	e.mu.Lock()
	s, ok := e.sessions[in.CallID]
	if !ok {
		e.mu.Unlock()
		e.log.Info("discarding decision for ended call", "call_id", in.CallID)
		return
	}
	s.ActionHistory = append(s.ActionHistory, fmt.Sprintf("%s -> %s (%s)", res.NextAction, res.SelectedOption, res.Reasoning))
	s.LastDecision = &res
	s.State = StateActing
	e.mu.Unlock()

	switch res.NextAction {
	case ActionPressKey:
		e.bus.PressKey.Publish(events.PressKey{CallID: in.CallID, Digits: res.SelectedOption, Reasoning: res.Reasoning})
	case ActionSpeak:
		e.bus.Speak.Publish(events.Speak{CallID: in.CallID, Text: res.Response, Priority: events.PriorityMedium})
	case ActionHangup:
		e.bus.Hangup.Publish(events.Hangup{CallID: in.CallID, Reason: res.Reasoning})
	case ActionWait:
		e.mu.Lock()
		if s, ok := e.sessions[in.CallID]; ok {
			s.State = StateListening
		}
		e.mu.Unlock()
	}
}

func (e *Engine) handleEnteringWait(ev events.EnteringWait) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.sessions[ev.CallID]; ok {
		s.State = StateWaiting
	}
}

func (e *Engine) handleHumanReached(ev events.HumanReached) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.sessions[ev.CallID]; ok {
		// Conversation mode takes over on its own session; the engine
		// just stops expecting menus.
		s.State = StateListening
	}
}

// endSession deletes the session immediately and unconditionally. Any
// in-flight decision for this call id will find the map empty and
// discard itself.
func (e *Engine) endSession(callID string) {
	e.mu.Lock()
	s, ok := e.sessions[callID]
	if ok {
		delete(e.sessions, callID)
	}
	e.mu.Unlock()
	if !ok {
		return
	}

	e.log.Info("call session ended", "call_id", callID, "duration", e.Clock().Sub(s.StartTime).String(), "actions", len(s.ActionHistory))
	if len(s.ActionHistory) > 0 {
		snapshot := *s
		go e.summarize(snapshot)
	}
}

// summarize is best-effort: a summary that cannot be produced or saved
// is logged and dropped, never surfaced as a call failure.
func (e *Engine) summarize(s CallSession) {
	ctx, cancel := context.WithTimeout(context.Background(), e.DecisionTimeout)
	defer cancel()

	summary, err := e.Oracle.Summarize(ctx, s.Goal, s.ActionHistory)
	if err != nil {
		e.log.Warn("call summary failed", "call_id", s.CallID, "err", err)
		return
	}
	if e.Store == nil {
		return
	}

	o, err := e.Store.GetOutcome(ctx, s.CallID)
	if err != nil {
		o = store.Outcome{CallID: s.CallID, Goal: s.Goal, CapturedAt: e.Clock()}
	}
	o.Summary = summary
	if err := e.Store.UpsertOutcome(ctx, o); err != nil {
		e.log.Warn("call summary persist failed", "call_id", s.CallID, "err", err)
	}
}

func (e *Engine) persistCall(s CallSession) {
	if e.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rec := store.CallRecord{
		CallID:      s.CallID,
		PhoneNumber: s.PhoneNumber,
		Goal:        s.Goal,
		CompanyName: s.CompanyName,
		State:       string(s.State),
		StartedAt:   s.StartTime,
		UpdatedAt:   e.Clock(),
	}
	if err := e.Store.UpsertCall(ctx, rec); err != nil {
		e.log.Warn("call persist failed", "call_id", s.CallID, "err", err)
	}
}
