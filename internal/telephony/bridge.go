package telephony

import (
	"context"
	"log/slog"
	"time"

	"phone-agent/internal/events"
)

// Bridge consumes outbound action events and executes them against the
// dialer. It is the component that emits EnteringWait: only after a key
// press has actually been sent does the listening policy switch to the
// patient profile.
type Bridge struct {
	Dialer Dialer

	// ActionTimeout bounds each provider API call.
	ActionTimeout time.Duration

	bus *events.Bus
	log *slog.Logger
}

const defaultActionTimeout = 10 * time.Second

func NewBridge(bus *events.Bus, d Dialer, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{
		Dialer:        d,
		ActionTimeout: defaultActionTimeout,
		bus:           bus,
		log:           log,
	}
}

// Register subscribes the bridge to action topics. Provider calls run on
// their own goroutine so bus publication never blocks on carrier I/O.
func (b *Bridge) Register() {
	b.bus.PressKey.Subscribe(func(ev events.PressKey) { go b.pressKey(ev) })
	b.bus.Hangup.Subscribe(func(ev events.Hangup) { go b.hangup(ev) })
}

func (b *Bridge) pressKey(ev events.PressKey) {
	ctx, cancel := context.WithTimeout(context.Background(), b.ActionTimeout)
	defer cancel()

	if err := b.Dialer.SendDigits(ctx, ev.CallID, ev.Digits); err != nil {
		b.log.Error("dtmf send failed", "call_id", ev.CallID, "digits", ev.Digits, "err", err)
		return
	}
	b.log.Info("pressed key", "call_id", ev.CallID, "digits", ev.Digits, "reasoning", ev.Reasoning)
	b.bus.EnteringWait.Publish(events.EnteringWait{CallID: ev.CallID, Action: "press_key", Key: ev.Digits})
}

func (b *Bridge) hangup(ev events.Hangup) {
	ctx, cancel := context.WithTimeout(context.Background(), b.ActionTimeout)
	defer cancel()

	if err := b.Dialer.Hangup(ctx, ev.CallID); err != nil {
		b.log.Error("hangup failed", "call_id", ev.CallID, "err", err)
		return
	}
	b.log.Info("hung up", "call_id", ev.CallID, "reason", ev.Reason)
}
