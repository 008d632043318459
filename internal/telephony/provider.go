package telephony

import (
	"context"

	"phone-agent/internal/events"
)

// Dialer is the provider-agnostic boundary for outbound call control.
//
// Rules:
// - No provider SDK/API calls outside telephony adapters.
// - Request/response types stay provider-agnostic; carrier payloads are
//   opaque to everything above this package.
type Dialer interface {
	Name() string

	// PlaceCall originates a call leg and returns the provider call id.
	PlaceCall(ctx context.Context, req OutboundCallRequest) (OutboundCallResult, error)

	// SendDigits plays DTMF digits into the live call.
	SendDigits(ctx context.Context, callID, digits string) error

	// Say speaks text on the live call. It returns once the utterance
	// has been accepted; playback completion is observed through the
	// voice webhook (see PlaybackWaiter).
	Say(ctx context.Context, callID, text string) error

	// Hangup ends the call leg.
	Hangup(ctx context.Context, callID string) error
}

// OutboundCallRequest describes one call to place.
type OutboundCallRequest struct {
	To           string `json:"to"`
	Goal         string `json:"goal"`
	CompanyName  string `json:"company_name,omitempty"`
	TargetPerson string `json:"target_person,omitempty"`
}

// OutboundCallResult is returned by the provider on successful origination.
type OutboundCallResult struct {
	CallID string `json:"call_id"`
}

// Initiate places a call and announces it on the bus so every component
// creates its per-call state before the first webhook arrives.
func Initiate(ctx context.Context, d Dialer, bus *events.Bus, req OutboundCallRequest) (string, error) {
	res, err := d.PlaceCall(ctx, req)
	if err != nil {
		return "", err
	}
	bus.CallInitiated.Publish(events.CallInitiated{
		CallID:      res.CallID,
		PhoneNumber: req.To,
		Goal:        req.Goal,
		CompanyName: req.CompanyName,
	})
	return res.CallID, nil
}
