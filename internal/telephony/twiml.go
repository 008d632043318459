package telephony

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// Minimal TwiML builder for the verbs this adapter needs. Intentionally
// avoids any provider SDK dependency.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type twimlGather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr"`
	Action        string   `xml:"action,attr"`
	Method        string   `xml:"method,attr"`
	Timeout       int      `xml:"timeout,attr"`
	SpeechTimeout string   `xml:"speechTimeout,attr,omitempty"`
	Verbs         []any    `xml:",any"`
}

type twimlPlay struct {
	XMLName xml.Name `xml:"Play"`
	Digits  string   `xml:"digits,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type twimlPause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr"`
}

type twimlRedirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr"`
	URL     string   `xml:",chardata"`
}

func renderTwiML(verbs ...any) (string, error) {
	r := twimlResponse{Verbs: verbs}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// listenTwiML renders the Gather the webhook layer answers with: keep
// the line open and stream speech results back to transcriptPath.
// timeoutSec comes from the progress tracker's profile; silent profiles
// gather without any prompt verb.
func listenTwiML(transcriptPath string, timeoutSec int, silent bool) (string, error) {
	g := twimlGather{
		Input:         "speech dtmf",
		Action:        transcriptPath,
		Method:        "POST",
		Timeout:       timeoutSec,
		SpeechTimeout: "auto",
	}
	if !silent {
		g.Verbs = append(g.Verbs, twimlSay{Text: "Hello?"})
	}
	return renderTwiML(g)
}

// digitsTwiML renders DTMF playback followed by a redirect back into the
// listening loop.
func digitsTwiML(digits, voicePath string) (string, error) {
	if digits == "" {
		return "", fmt.Errorf("telephony: digits required")
	}
	return renderTwiML(
		twimlPlay{Digits: digits},
		twimlRedirect{Method: "POST", URL: voicePath},
	)
}

// sayTwiML renders speech followed by a redirect; the redirect hitting
// the voice webhook is what signals playback completion.
func sayTwiML(text, voicePath string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("telephony: text required")
	}
	return renderTwiML(
		twimlSay{Text: text},
		twimlRedirect{Method: "POST", URL: voicePath},
	)
}
