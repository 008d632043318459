package telephony

import (
	"context"
	"sync"
)

// PlaybackWaiter bridges the gap between "TwiML accepted" and "playback
// finished". Say/digits TwiML ends with a Redirect back to the voice
// webhook, so the next webhook hit for a call id means the previous
// utterance finished playing.
//
// Expect must be called before the utterance is sent; it hands back the
// signal channel so a webhook arriving between send and wait can never
// lose the notification.
type PlaybackWaiter struct {
	mu      sync.Mutex
	waiters map[string]chan struct{}
}

func NewPlaybackWaiter() *PlaybackWaiter {
	return &PlaybackWaiter{waiters: make(map[string]chan struct{})}
}

// Expect registers interest for callID and returns the channel Notify
// will close. A second Expect for the same call id replaces the first.
func (w *PlaybackWaiter) Expect(callID string) <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(chan struct{})
	w.waiters[callID] = ch
	return ch
}

// Await blocks until the expected channel closes or ctx is done.
func (w *PlaybackWaiter) Await(ctx context.Context, callID string, ch <-chan struct{}) error {
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		w.Drop(callID)
		return ctx.Err()
	}
}

// Notify releases the pending awaiter for callID, if any. A voice
// webhook hit with no expectation registered (the initial call answer)
// is a no-op.
func (w *PlaybackWaiter) Notify(callID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ch, ok := w.waiters[callID]; ok {
		close(ch)
		delete(w.waiters, callID)
	}
}

// Drop abandons the expectation, e.g. when sending the utterance failed
// or the call died mid-playback.
func (w *PlaybackWaiter) Drop(callID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.waiters, callID)
}
