package classifier

import (
	"regexp"
	"strings"
)

// Termination heuristic: detects recordings indicating the dialed
// business is closed, disconnected, or otherwise not worth navigating.
// Both functions are pure functions of the text. IsClosedNotice is safe
// on any transcript kind; ShouldTerminate adds the goodbye fallback and
// must only be applied to transcripts classified as automated, or long
// human explanations will trip it.

var terminationKeywords = []string{
	"permanently closed",
	"no longer in service",
	"has been disconnected",
	"is not in service",
	"out of service",
	"currently closed",
	"we are closed",
	"we're closed",
	"office is closed",
	"closed for the holiday",
	"no longer in business",
	"number you have dialed is incorrect",
}

// hoursRe matches "our hours of operation are nine to five" style
// recordings; on its own it is ambiguous, so it only terminates when the
// text also says the business is closed or asks to call back.
var hoursRe = regexp.MustCompile(`(?i)\bhours(?: of operation)?\b.*\b(?:to|through|until)\b`)

var goodbyeCues = []string{"thank you for calling", "goodbye", "have a great day"}

// IsClosedNotice reports whether the text explicitly says the business
// is closed or the number unreachable. The phrases are unambiguous even
// in live speech ("sorry, we're currently closed"), so unlike
// ShouldTerminate this check applies to every transcript kind.
func IsClosedNotice(transcript string) bool {
	text := strings.TrimSpace(transcript)
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)

	if containsAny(lower, terminationKeywords) {
		return true
	}

	return hoursRe.MatchString(text) &&
		(strings.Contains(lower, "closed") || strings.Contains(lower, "call back"))
}

// ShouldTerminate reports whether the call should be hung up instead of
// navigated further.
func ShouldTerminate(transcript string) bool {
	text := strings.TrimSpace(transcript)
	if text == "" {
		return false
	}
	if IsClosedNotice(text) {
		return true
	}
	lower := strings.ToLower(text)

	// Generic wrap-up fallback: a long recording with no menu cues that
	// ends in a farewell usually precedes an automatic disconnect.
	hasNoOptions := len(ExtractMenuOptions(text)) == 0
	if hasNoOptions && len(text) > 120 && containsAny(lower, goodbyeCues) {
		return true
	}

	return false
}
