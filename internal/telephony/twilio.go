package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TwilioDialer drives outbound calls through the Twilio REST API.
//
// Live-call control (digits, speech, hangup) is done by updating the
// call with new TwiML; the webhook layer owns the listening loop.
type TwilioDialer struct {
	AccountSID string
	AuthToken  string
	FromNumber string

	// PublicBaseURL is the externally reachable base for webhook URLs,
	// e.g. https://agent.example.com.
	PublicBaseURL string

	HTTPClient *http.Client

	// APIBase is overridable for tests.
	APIBase string
}

const (
	twilioAPIBase = "https://api.twilio.com"

	VoiceWebhookPath      = "/webhooks/twilio/voice"
	TranscriptWebhookPath = "/webhooks/twilio/transcript"
	StatusWebhookPath     = "/webhooks/twilio/status"
)

func NewTwilioDialer(accountSID, authToken, fromNumber, publicBaseURL string) *TwilioDialer {
	return &TwilioDialer{
		AccountSID:    accountSID,
		AuthToken:     authToken,
		FromNumber:    fromNumber,
		PublicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		HTTPClient:    &http.Client{Timeout: 10 * time.Second},
		APIBase:       twilioAPIBase,
	}
}

func (d *TwilioDialer) Name() string { return "twilio" }

type twilioCallResponse struct {
	Sid     string `json:"sid"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (d *TwilioDialer) PlaceCall(ctx context.Context, req OutboundCallRequest) (OutboundCallResult, error) {
	if req.To == "" {
		return OutboundCallResult{}, fmt.Errorf("telephony: to number required")
	}
	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", d.FromNumber)
	form.Set("Url", d.PublicBaseURL+VoiceWebhookPath)
	form.Set("Method", "POST")
	form.Set("StatusCallback", d.PublicBaseURL+StatusWebhookPath)
	form.Set("StatusCallbackMethod", "POST")
	form.Set("StatusCallbackEvent", "completed")

	resp, err := d.post(ctx, fmt.Sprintf("/2010-04-01/Accounts/%s/Calls.json", d.AccountSID), form)
	if err != nil {
		return OutboundCallResult{}, fmt.Errorf("telephony: place call: %w", err)
	}
	if resp.Sid == "" {
		return OutboundCallResult{}, fmt.Errorf("telephony: place call rejected: %s (code %d)", resp.Message, resp.Code)
	}
	return OutboundCallResult{CallID: resp.Sid}, nil
}

func (d *TwilioDialer) SendDigits(ctx context.Context, callID, digits string) error {
	twiml, err := digitsTwiML(digits, d.PublicBaseURL+VoiceWebhookPath)
	if err != nil {
		return err
	}
	return d.updateCall(ctx, callID, url.Values{"Twiml": {twiml}})
}

func (d *TwilioDialer) Say(ctx context.Context, callID, text string) error {
	twiml, err := sayTwiML(text, d.PublicBaseURL+VoiceWebhookPath)
	if err != nil {
		return err
	}
	return d.updateCall(ctx, callID, url.Values{"Twiml": {twiml}})
}

func (d *TwilioDialer) Hangup(ctx context.Context, callID string) error {
	return d.updateCall(ctx, callID, url.Values{"Status": {"completed"}})
}

func (d *TwilioDialer) updateCall(ctx context.Context, callID string, form url.Values) error {
	if callID == "" {
		return fmt.Errorf("telephony: call id required")
	}
	_, err := d.post(ctx, fmt.Sprintf("/2010-04-01/Accounts/%s/Calls/%s.json", d.AccountSID, callID), form)
	return err
}

func (d *TwilioDialer) post(ctx context.Context, path string, form url.Values) (twilioCallResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.APIBase+path, strings.NewReader(form.Encode()))
	if err != nil {
		return twilioCallResponse{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(d.AccountSID, d.AuthToken)

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return twilioCallResponse{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return twilioCallResponse{}, err
	}

	var out twilioCallResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return twilioCallResponse{}, fmt.Errorf("twilio response decode: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, fmt.Errorf("twilio status %d: %s (code %d)", resp.StatusCode, out.Message, out.Code)
	}
	return out, nil
}
