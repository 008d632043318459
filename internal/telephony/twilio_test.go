package telephony

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testDialer(t *testing.T, handler http.HandlerFunc) *TwilioDialer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	d := NewTwilioDialer("AC123", "token", "+15550001111", "https://agent.example.com")
	d.APIBase = srv.URL
	return d
}

func TestTwilioDialer_PlaceCall(t *testing.T) {
	var form map[string][]string
	d := testDialer(t, func(w http.ResponseWriter, r *http.Request) {
		if u, _, _ := r.BasicAuth(); u != "AC123" {
			t.Errorf("basic auth user = %q", u)
		}
		if !strings.HasSuffix(r.URL.Path, "/Accounts/AC123/Calls.json") {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = r.ParseForm()
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"CA-new","status":"queued"}`))
	})

	res, err := d.PlaceCall(context.Background(), OutboundCallRequest{To: "+15559998888", Goal: "Reach billing"})
	if err != nil {
		t.Fatalf("place call: %v", err)
	}
	if res.CallID != "CA-new" {
		t.Fatalf("call id = %q", res.CallID)
	}
	if got := form["Url"]; len(got) != 1 || got[0] != "https://agent.example.com"+VoiceWebhookPath {
		t.Fatalf("webhook url = %v", got)
	}
	if got := form["StatusCallback"]; len(got) != 1 || got[0] != "https://agent.example.com"+StatusWebhookPath {
		t.Fatalf("status callback = %v", got)
	}
}

func TestTwilioDialer_PlaceCallRejection(t *testing.T) {
	d := testDialer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"invalid number","code":21211}`))
	})

	if _, err := d.PlaceCall(context.Background(), OutboundCallRequest{To: "+1"}); err == nil {
		t.Fatalf("expected rejection error")
	}
}

func TestTwilioDialer_SendDigitsUpdatesCallWithTwiml(t *testing.T) {
	var twiml string
	d := testDialer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/Calls/CA1.json") {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = r.ParseForm()
		twiml = r.PostFormValue("Twiml")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sid":"CA1"}`))
	})

	if err := d.SendDigits(context.Background(), "CA1", "2"); err != nil {
		t.Fatalf("send digits: %v", err)
	}
	if !strings.Contains(twiml, `digits="2"`) || !strings.Contains(twiml, "<Redirect") {
		t.Fatalf("twiml = %q", twiml)
	}
}

func TestTwilioDialer_HangupSetsCompleted(t *testing.T) {
	var status string
	d := testDialer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		status = r.PostFormValue("Status")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sid":"CA1"}`))
	})

	if err := d.Hangup(context.Background(), "CA1"); err != nil {
		t.Fatalf("hangup: %v", err)
	}
	if status != "completed" {
		t.Fatalf("status = %q", status)
	}
}

func TestTwilioDialer_RequiresCallID(t *testing.T) {
	d := NewTwilioDialer("AC123", "token", "+15550001111", "https://agent.example.com")
	if err := d.SendDigits(context.Background(), "", "1"); err == nil {
		t.Fatalf("expected error for empty call id")
	}
}
