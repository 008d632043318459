package workflow

import "time"

// Status is the business-level state spanning potentially multiple calls
// to the same target.
//
// pending → verifying → {verified | failed_verification}
// verified → gathering_info → {completed | failed}
// any state → failed on exception; skipVerification jumps pending → verified.
type Status string

const (
	StatusPending            Status = "pending"
	StatusVerifying          Status = "verifying"
	StatusVerified           Status = "verified"
	StatusFailedVerification Status = "failed_verification"
	StatusGatheringInfo      Status = "gathering_info"
	StatusCompleted          Status = "completed"
	StatusFailed             Status = "failed"
)

// Workflow is the per-business record. It outlives individual calls and
// is correlated to them purely by the stored call SIDs.
//
// Invariant: InformationCallSid is only ever set after Status has passed
// through verified (or verification was explicitly skipped at start).
type Workflow struct {
	BusinessID  string `json:"business_id"`
	PhoneNumber string `json:"phone_number"`
	Goal        string `json:"goal"`
	CompanyName string `json:"company_name"`

	SkipVerification bool `json:"skip_verification"`

	Status Status `json:"status"`

	VerificationCallSid string `json:"verification_call_sid,omitempty"`
	InformationCallSid  string `json:"information_call_sid,omitempty"`

	VerificationResult string `json:"verification_result,omitempty"`
	InformationResult  string `json:"information_result,omitempty"`
	Error              string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (w Workflow) terminal() bool {
	switch w.Status {
	case StatusFailedVerification, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// StartRequest describes one business target to work.
type StartRequest struct {
	BusinessID       string `json:"business_id"`
	PhoneNumber      string `json:"phone_number"`
	Goal             string `json:"goal"`
	CompanyName      string `json:"company_name"`
	SkipVerification bool   `json:"skip_verification"`
}

// BatchResult reports one target's fate in a batch run. A failed start
// is captured here and never aborts the remaining batch.
type BatchResult struct {
	BusinessID string `json:"business_id"`
	Started    bool   `json:"started"`
	Error      string `json:"error,omitempty"`
}
