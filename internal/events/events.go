package events

// Event payloads exchanged between the call-orchestration components.
//
// Every payload is a plain value type; topics are typed per event kind so
// a subscriber can never receive the wrong shape. Call identifiers are
// opaque provider call SIDs.

// CallInitiated announces that an outbound call leg has been created and
// a session should start tracking it.
type CallInitiated struct {
	CallID      string `json:"call_id"`
	PhoneNumber string `json:"phone_number"`
	Goal        string `json:"goal"`
	CompanyName string `json:"company_name"`
}

// TranscriptFinal carries one finalized speech-recognition result.
type TranscriptFinal struct {
	CallID     string  `json:"call_id"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// CallEnded signals normal call teardown. Every component that holds
// per-call state must purge it on receipt.
type CallEnded struct {
	CallID string `json:"call_id"`
}

// CallTerminated signals forced teardown (carrier error, operator kill).
// Handled identically to CallEnded by state owners.
type CallTerminated struct {
	CallID string `json:"call_id"`
}

// TTSCompleted reports that one queued utterance finished playback.
// Context is the tag supplied on the Speak request, used to chain
// follow-up logic (e.g. hang up after a voicemail message).
type TTSCompleted struct {
	CallID  string `json:"call_id"`
	Context string `json:"context"`
}

// PressKey instructs the telephony layer to send DTMF digits.
type PressKey struct {
	CallID    string `json:"call_id"`
	Digits    string `json:"digits"`
	Reasoning string `json:"reasoning"`
}

// Priority orders queued speech requests.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Speak instructs the TTS layer to say text on the call.
type Speak struct {
	CallID   string   `json:"call_id"`
	Text     string   `json:"text"`
	Priority Priority `json:"priority"`

	// Context is echoed back on the matching TTSCompleted event.
	Context string `json:"context,omitempty"`
}

// Hangup instructs the telephony layer to end the call.
type Hangup struct {
	CallID string `json:"call_id"`
	Reason string `json:"reason"`
}

// EnteringWait is emitted by the telephony layer after it has executed a
// key press, so listeners can switch to the patient listening profile.
type EnteringWait struct {
	CallID string `json:"call_id"`
	Action string `json:"action"`
	Key    string `json:"key"`
}

// HumanReached is emitted the first time a transcript on a call is
// classified as live human speech.
type HumanReached struct {
	CallID     string `json:"call_id"`
	Transcript string `json:"transcript"`
}
