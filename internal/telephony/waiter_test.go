package telephony

import (
	"context"
	"testing"
	"time"
)

func TestWaiter_NotifyBeforeAwaitStillReleases(t *testing.T) {
	w := NewPlaybackWaiter()
	ch := w.Expect("CA1")

	// Playback finished before the sender got around to waiting.
	w.Notify("CA1")

	if err := w.Await(context.Background(), "CA1", ch); err != nil {
		t.Fatalf("await: %v", err)
	}
}

func TestWaiter_AwaitHonorsContext(t *testing.T) {
	w := NewPlaybackWaiter()
	ch := w.Expect("CA1")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := w.Await(ctx, "CA1", ch); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestWaiter_StrayNotifyIsNoop(t *testing.T) {
	w := NewPlaybackWaiter()
	w.Notify("CA-unknown") // initial call answer, nothing expected
	w.Notify("CA-unknown") // must not panic on repeat
}

func TestWaiter_ExpectReplacesPrevious(t *testing.T) {
	w := NewPlaybackWaiter()
	old := w.Expect("CA1")
	fresh := w.Expect("CA1")

	w.Notify("CA1")
	select {
	case <-fresh:
	case <-time.After(time.Second):
		t.Fatalf("fresh expectation not released")
	}
	select {
	case <-old:
		t.Fatalf("stale expectation must not be released")
	default:
	}
}
