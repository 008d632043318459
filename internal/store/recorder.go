package store

import (
	"context"
	"log/slog"
	"time"

	"phone-agent/internal/events"
)

// Recorder tails the event bus and logs both sides of every call into
// the transcript table: finalized remote speech and everything the agent
// queues to say. Writes are best-effort, matching the rest of the
// call-flow persistence.
type Recorder struct {
	Store Store
	Clock func() time.Time

	log *slog.Logger
}

func NewRecorder(st Store, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{Store: st, Clock: time.Now, log: log}
}

// Register subscribes the recorder to both speech directions.
func (r *Recorder) Register(bus *events.Bus) {
	bus.TranscriptFinal.Subscribe(func(ev events.TranscriptFinal) {
		r.append(TranscriptLine{CallID: ev.CallID, Role: "remote", Text: ev.Text})
	})
	bus.Speak.Subscribe(func(ev events.Speak) {
		r.append(TranscriptLine{CallID: ev.CallID, Role: "agent", Text: ev.Text})
	})
}

func (r *Recorder) append(line TranscriptLine) {
	if line.Text == "" {
		return
	}
	line.At = r.Clock()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Store.AppendTranscript(ctx, line); err != nil {
		r.log.Warn("transcript append failed", "call_id", line.CallID, "err", err)
	}
}
