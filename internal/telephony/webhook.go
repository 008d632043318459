package telephony

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"phone-agent/internal/events"
	"phone-agent/internal/progress"
	"phone-agent/pkg/logger"
)

// WebhookHandlers converts Twilio voice callbacks into bus events and
// answers with TwiML. No business logic here: which timeout window to
// listen with is resolved by the progress tracker, and everything else
// is decided by bus subscribers.
type WebhookHandlers struct {
	Bus     *events.Bus
	Tracker *progress.Tracker
	Waiter  *PlaybackWaiter
}

// HandleVoice answers the initial call leg and every Redirect back into
// the listening loop.
func (h WebhookHandlers) HandleVoice(c *gin.Context) {
	log := logger.FromGin(c)

	callID := c.PostForm("CallSid")
	if callID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "CallSid required"})
		return
	}

	// A voice hit after a Say/Play redirect means the utterance
	// finished; release any blocked playback awaiter.
	if h.Waiter != nil {
		h.Waiter.Notify(callID)
	}

	h.respondListen(c, callID, log)
}

// HandleTranscript receives Gather results (speech or DTMF echo) and
// publishes finalized transcripts.
func (h WebhookHandlers) HandleTranscript(c *gin.Context) {
	log := logger.FromGin(c)

	callID := c.PostForm("CallSid")
	if callID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "CallSid required"})
		return
	}

	if speech := strings.TrimSpace(c.PostForm("SpeechResult")); speech != "" {
		conf := 0.0
		if v := c.PostForm("Confidence"); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				conf = f
			}
		}
		log.Debug("transcript received", "call_id", callID, "confidence", conf)
		h.Bus.TranscriptFinal.Publish(events.TranscriptFinal{CallID: callID, Text: speech, Confidence: conf})
	}

	h.respondListen(c, callID, log)
}

// HandleStatus receives call status callbacks and publishes teardown
// events.
func (h WebhookHandlers) HandleStatus(c *gin.Context) {
	log := logger.FromGin(c)

	callID := c.PostForm("CallSid")
	status := c.PostForm("CallStatus")
	if callID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "CallSid required"})
		return
	}

	switch status {
	case "completed", "busy", "no-answer":
		log.Info("call ended", "call_id", callID, "status", status)
		h.Bus.CallEnded.Publish(events.CallEnded{CallID: callID})
	case "failed", "canceled":
		log.Info("call terminated", "call_id", callID, "status", status)
		h.Bus.CallTerminated.Publish(events.CallTerminated{CallID: callID})
	}
	c.Status(http.StatusNoContent)
}

func (h WebhookHandlers) respondListen(c *gin.Context, callID string, log *slog.Logger) {
	profile := h.Tracker.ProfileFor(callID)
	twiml, err := listenTwiML(TranscriptWebhookPath, int(profile.Timeout.Seconds()), profile.Silent)
	if err != nil {
		log.Error("twiml render failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, twiml)
}
