package progress

import (
	"sync"
	"time"

	"phone-agent/internal/events"
)

// TimeoutProfile tells the telephony webhook layer how long to listen
// for speech before giving up, and whether to play a prompt beep.
type TimeoutProfile struct {
	Timeout time.Duration
	Silent  bool
}

var (
	// waitingProfile applies after the system pressed a key or asked a
	// question: IVR systems can take a long time to play the next menu,
	// so listen patiently.
	waitingProfile = TimeoutProfile{Timeout: 120 * time.Second, Silent: true}

	// humanProfile applies mid-dialogue: shorter window, never beep at
	// a person.
	humanProfile = TimeoutProfile{Timeout: 30 * time.Second, Silent: true}

	// defaultProfile applies during active IVR exploration.
	defaultProfile = TimeoutProfile{Timeout: 30 * time.Second, Silent: true}
)

// Tracker is the single source of truth for which listening profile an
// in-progress call uses. Lookups are O(1); a call id is never in both
// the waiting and human-conversation sets at once (entering one clears
// the other).
type Tracker struct {
	mu      sync.RWMutex
	waiting map[string]struct{}
	human   map[string]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{
		waiting: make(map[string]struct{}),
		human:   make(map[string]struct{}),
	}
}

// Register wires the tracker to the only three signals allowed to
// mutate it.
func (t *Tracker) Register(bus *events.Bus) {
	bus.EnteringWait.Subscribe(func(ev events.EnteringWait) { t.MarkWaiting(ev.CallID) })
	bus.HumanReached.Subscribe(func(ev events.HumanReached) { t.MarkHuman(ev.CallID) })
	bus.CallEnded.Subscribe(func(ev events.CallEnded) { t.Remove(ev.CallID) })
	bus.CallTerminated.Subscribe(func(ev events.CallTerminated) { t.Remove(ev.CallID) })
}

func (t *Tracker) MarkWaiting(callID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.human, callID)
	t.waiting[callID] = struct{}{}
}

func (t *Tracker) MarkHuman(callID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.waiting, callID)
	t.human[callID] = struct{}{}
}

func (t *Tracker) Remove(callID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.waiting, callID)
	delete(t.human, callID)
}

// IsWaiting reports membership in the waiting set.
func (t *Tracker) IsWaiting(callID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.waiting[callID]
	return ok
}

// IsHumanConversation reports membership in the human-conversation set.
func (t *Tracker) IsHumanConversation(callID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.human[callID]
	return ok
}

// ProfileFor resolves the listening profile for a call.
func (t *Tracker) ProfileFor(callID string) TimeoutProfile {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if _, ok := t.waiting[callID]; ok {
		return waitingProfile
	}
	if _, ok := t.human[callID]; ok {
		return humanProfile
	}
	return defaultProfile
}
