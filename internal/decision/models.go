package decision

import (
	"context"
	"time"

	"phone-agent/internal/classifier"
)

// State is the per-call engine state.
//
// Normal loop: listening → deciding → acting → waiting → listening.
// Call teardown deletes the session from any state.
type State string

const (
	StateListening State = "listening"
	StateDeciding  State = "deciding"
	StateActing    State = "acting"
	StateWaiting   State = "waiting"
)

// Action is what the engine wants the telephony layer to do next.
type Action string

const (
	ActionPressKey Action = "press_key"
	ActionSpeak    Action = "speak"
	ActionWait     Action = "wait"
	ActionHangup   Action = "hangup"
)

// CallSession tracks one active call. Sessions are owned exclusively by
// the Engine; no other component reads or mutates this map.
type CallSession struct {
	CallID       string
	PhoneNumber  string
	Goal         string
	CompanyName  string
	TargetPerson string

	State State

	// ActionHistory is append-only and doubles as the decision
	// rationale log for the end-of-call summary.
	ActionHistory []string
	LastDecision  *Result

	StartTime time.Time
}

// Input is everything the oracle gets to see when picking the next
// navigation step.
type Input struct {
	CallID          string                  `json:"call_id"`
	Goal            string                  `json:"goal"`
	CompanyName     string                  `json:"company_name"`
	PreviousActions []string                `json:"previous_actions"`
	MenuOptions     []classifier.MenuOption `json:"menu_options"`
	FullText        string                  `json:"full_text"`
}

// Result is the oracle's (or fallback's) selected step.
type Result struct {
	SelectedOption string  `json:"selected_option"`
	Reasoning      string  `json:"reasoning"`
	Response       string  `json:"response,omitempty"`
	Confidence     float64 `json:"confidence"`
	NextAction     Action  `json:"next_action"`
}

// Oracle selects navigation actions and produces call summaries. It is a
// pluggable collaborator: an AI backend in production, a deterministic
// heuristic in tests or when no backend is configured.
//
// Decide must respect ctx cancellation; the engine enforces a hard
// timeout and discards late results.
type Oracle interface {
	Decide(ctx context.Context, in Input) (Result, error)
	Summarize(ctx context.Context, goal string, actions []string) (string, error)
}
