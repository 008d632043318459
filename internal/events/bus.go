package events

import "sync"

// Topic is a fan-out channel for one event kind.
//
// Semantics are deliberately weak: Publish invokes subscribers in
// subscription order on the publishing goroutine, and no ordering is
// guaranteed across topics or across call identifiers. Subscribers that
// need to suspend (oracle calls, provider I/O) must do so on their own
// goroutine and re-validate session existence afterwards; the bus never
// re-delivers and never blocks on slow work handed off by a subscriber.
type Topic[T any] struct {
	mu   sync.RWMutex
	subs []func(T)
}

// Subscribe registers a handler. Handlers must not panic; a handler that
// needs to do slow work should capture the payload and return.
func (t *Topic[T]) Subscribe(fn func(T)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs = append(t.subs, fn)
}

// Publish delivers v to every subscriber. Fire-and-forget: there is no
// error path and no acknowledgment.
func (t *Topic[T]) Publish(v T) {
	t.mu.RLock()
	subs := t.subs
	t.mu.RUnlock()
	for _, fn := range subs {
		fn(v)
	}
}

// Bus groups one typed topic per event kind. Components communicate only
// through the bus; no component calls another component's methods for
// call-lifecycle notifications.
type Bus struct {
	CallInitiated   Topic[CallInitiated]
	TranscriptFinal Topic[TranscriptFinal]
	CallEnded       Topic[CallEnded]
	CallTerminated  Topic[CallTerminated]
	TTSCompleted    Topic[TTSCompleted]

	PressKey     Topic[PressKey]
	Speak        Topic[Speak]
	Hangup       Topic[Hangup]
	EnteringWait Topic[EnteringWait]
	HumanReached Topic[HumanReached]
}

func NewBus() *Bus { return &Bus{} }
