package store

import (
	"context"
	"errors"
	"time"
)

// Store is the persistence collaborator for the call core. The core only
// needs key-value upsert/read keyed by call identifier and business
// identifier; schema layout is owned by the repository implementations.
//
// Writes from call-flow paths are best-effort: callers log failures and
// keep the call moving rather than blocking on storage.

var ErrNotFound = errors.New("store: not found")

// CallRecord is the durable snapshot of one call leg.
type CallRecord struct {
	CallID      string    `json:"call_id" db:"call_id"`
	BusinessID  string    `json:"business_id,omitempty" db:"business_id"`
	PhoneNumber string    `json:"phone_number" db:"phone_number"`
	Goal        string    `json:"goal" db:"goal"`
	CompanyName string    `json:"company_name" db:"company_name"`
	State       string    `json:"state" db:"state"`
	StartedAt   time.Time `json:"started_at" db:"started_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Outcome is the final result of one call: what was captured, whether
// the goal succeeded, and the oracle's summary of how it went.
type Outcome struct {
	CallID     string    `json:"call_id" db:"call_id"`
	BusinessID string    `json:"business_id,omitempty" db:"business_id"`
	Goal       string    `json:"goal" db:"goal"`
	Summary    string    `json:"summary,omitempty" db:"summary"`
	Response   string    `json:"response,omitempty" db:"response"`
	Success    bool      `json:"success" db:"success"`
	CapturedAt time.Time `json:"captured_at" db:"captured_at"`
}

// TranscriptLine is one logged utterance, either side of the call.
type TranscriptLine struct {
	CallID string    `json:"call_id" db:"call_id"`
	Role   string    `json:"role" db:"role"` // "remote" or "agent"
	Text   string    `json:"text" db:"text"`
	At     time.Time `json:"at" db:"at"`
}

type Store interface {
	UpsertCall(ctx context.Context, rec CallRecord) error
	GetCall(ctx context.Context, callID string) (CallRecord, error)

	UpsertOutcome(ctx context.Context, o Outcome) error
	GetOutcome(ctx context.Context, callID string) (Outcome, error)

	AppendTranscript(ctx context.Context, line TranscriptLine) error
	ListTranscript(ctx context.Context, callID string) ([]TranscriptLine, error)
}
