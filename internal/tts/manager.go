package tts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"phone-agent/internal/events"
)

// Synthesizer is the speech collaborator. Speak must return only once
// playback of the utterance has finished (or ctx expired), because
// completion events chain follow-up logic like post-voicemail hangups.
type Synthesizer interface {
	Speak(ctx context.Context, callID, text string) error
}

type item struct {
	text     string
	priority events.Priority
	ctxTag   string
}

// session is one call's speech queue: pending items ordered by priority
// (FIFO within a priority), at most one utterance in flight.
type session struct {
	queue    []item
	inFlight bool
}

// Manager serializes speech per call. It consumes Speak events, plays
// them one at a time through the synthesizer, and publishes a
// TTSCompleted event per utterance carrying the request's context tag.
type Manager struct {
	Synth Synthesizer

	// SpeakTimeout bounds a single utterance, covering synthesis plus
	// playback of the longest composed message.
	SpeakTimeout time.Duration

	bus *events.Bus
	log *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

const defaultSpeakTimeout = 2 * time.Minute

func NewManager(bus *events.Bus, synth Synthesizer, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		Synth:        synth,
		SpeakTimeout: defaultSpeakTimeout,
		bus:          bus,
		log:          log,
		sessions:     make(map[string]*session),
	}
}

// Register subscribes the manager to its bus topics.
func (m *Manager) Register() {
	m.bus.Speak.Subscribe(m.enqueue)
	m.bus.CallEnded.Subscribe(func(ev events.CallEnded) { m.drop(ev.CallID) })
	m.bus.CallTerminated.Subscribe(func(ev events.CallTerminated) { m.drop(ev.CallID) })
}

// Pending reports queued (not yet in-flight) utterances for a call.
func (m *Manager) Pending(callID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[callID]; ok {
		return len(s.queue)
	}
	return 0
}

func rank(p events.Priority) int {
	switch p {
	case events.PriorityHigh:
		return 2
	case events.PriorityMedium:
		return 1
	default:
		return 0
	}
}

func (m *Manager) enqueue(ev events.Speak) {
	if ev.Text == "" {
		return
	}
	it := item{text: ev.Text, priority: ev.Priority, ctxTag: ev.Context}

	m.mu.Lock()
	s, ok := m.sessions[ev.CallID]
	if !ok {
		s = &session{}
		m.sessions[ev.CallID] = s
	}

	// Insert after the last item of equal or higher priority.
	pos := len(s.queue)
	for i, q := range s.queue {
		if rank(it.priority) > rank(q.priority) {
			pos = i
			break
		}
	}
	s.queue = append(s.queue, item{})
	copy(s.queue[pos+1:], s.queue[pos:])
	s.queue[pos] = it

	if s.inFlight {
		m.mu.Unlock()
		return
	}
	s.inFlight = true
	next := s.queue[0]
	s.queue = s.queue[1:]
	m.mu.Unlock()

	go m.play(ev.CallID, next)
}

func (m *Manager) play(callID string, it item) {
	ctx, cancel := context.WithTimeout(context.Background(), m.SpeakTimeout)
	err := m.Synth.Speak(ctx, callID, it.text)
	cancel()
	if err != nil {
		m.log.Warn("speech playback failed", "call_id", callID, "err", err)
	}

	// Completion fires even after a playback error so chained logic
	// (e.g. hang up after voicemail) is never stranded.
	m.bus.TTSCompleted.Publish(events.TTSCompleted{CallID: callID, Context: it.ctxTag})

	m.mu.Lock()
	s, ok := m.sessions[callID]
	if !ok {
		// Call ended while speaking; the queue is already gone.
		m.mu.Unlock()
		return
	}
	if len(s.queue) == 0 {
		s.inFlight = false
		m.mu.Unlock()
		return
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	m.mu.Unlock()

	go m.play(callID, next)
}

func (m *Manager) drop(callID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, callID)
}
