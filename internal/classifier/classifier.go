package classifier

import (
	"regexp"
	"sort"
	"strings"
)

// Kind labels one finalized transcript line.
type Kind string

const (
	KindIVRMenu        Kind = "ivr_menu"
	KindVoicemail      Kind = "voicemail"
	KindHoldMessage    Kind = "hold_message"
	KindHumanSpeech    Kind = "human_speech"
	KindAutomatedOther Kind = "automated_other"

	// KindUnknown is returned for utterances too short to classify.
	// Callers should treat it as noise and take no action.
	KindUnknown Kind = "unknown"
)

// MenuOption is one navigable IVR menu entry extracted from a transcript.
type MenuOption struct {
	Key         string  `json:"key"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// Classification is the result of classifying a single transcript line.
// Options is populated only for KindIVRMenu.
type Classification struct {
	Kind    Kind         `json:"kind"`
	Options []MenuOption `json:"options,omitempty"`
}

// menuConfidenceThreshold is the minimum per-option confidence required
// for the line to count as an IVR menu.
const menuConfidenceThreshold = 0.5

// minUtteranceChars is the minimum length for a line to be classifiable.
const minUtteranceChars = 3

// Menu grammar patterns, ordered by decreasing clarity. A phrase that
// names both the key and what it does scores higher than a bare
// "press N" fragment.
var menuPatterns = []struct {
	re         *regexp.Regexp
	keyIdx     int
	descIdx    int
	confidence float64
}{
	// "press 1 for billing" / "dial 2 to reach scheduling"
	{regexp.MustCompile(`(?i)\b(?:press|dial)\s+([0-9*#])\s+(?:for|to|if)\s+([a-zA-Z0-9'\- ]+)`), 1, 2, 0.9},
	// "for billing, press 1"
	{regexp.MustCompile(`(?i)\bfor\s+([a-zA-Z0-9'\- ]+?),?\s+(?:press|dial)\s+([0-9*#])\b`), 2, 1, 0.85},
	// "say appointments or press 3"
	{regexp.MustCompile(`(?i)\bsay\s+([a-zA-Z'\- ]+?)\s+or\s+press\s+([0-9*#])\b`), 2, 1, 0.8},
	// bare "press 5" with no stated purpose
	{regexp.MustCompile(`(?i)\b(?:press|say)\s+([0-9*#])\b`), 1, 0, 0.55},
}

var voicemailKeywords = []string{
	"leave a message",
	"leave your message",
	"leave me a message",
	"after the tone",
	"after the beep",
	"at the tone",
	"record your message",
	"mailbox",
	"voicemail",
	"not available to take your call",
	"unable to take your call",
}

var holdKeywords = []string{
	"please hold",
	"please stay on the line",
	"hold the line",
	"remain on the line",
	"transferring",
	"your call is important",
	"next available representative",
	"next available agent",
	"all of our representatives",
	"currently assisting other",
}

var automatedKeywords = []string{
	"press",
	"extension",
	"main menu",
	"this call may be recorded",
	"this call may be monitored",
	"para espanol",
	"para español",
	"enter your",
	"thank you for calling",
}

// Classify decides what a finalized transcript line represents. It is a
// pure function of the text: the same input always yields the same
// result.
//
// The human branch is deliberately the default: "not automated" is the
// operative test, not a positive model of human language.
func Classify(transcript string) Classification {
	text := strings.TrimSpace(transcript)
	if len(text) < minUtteranceChars || len(strings.Fields(text)) == 0 {
		return Classification{Kind: KindUnknown}
	}
	lower := strings.ToLower(text)

	if opts := ExtractMenuOptions(text); len(opts) > 0 {
		for _, o := range opts {
			if o.Confidence > menuConfidenceThreshold {
				return Classification{Kind: KindIVRMenu, Options: opts}
			}
		}
	}

	if containsAny(lower, voicemailKeywords) {
		return Classification{Kind: KindVoicemail}
	}
	if containsAny(lower, holdKeywords) {
		return Classification{Kind: KindHoldMessage}
	}
	if containsAny(lower, automatedKeywords) {
		return Classification{Kind: KindAutomatedOther}
	}

	return Classification{Kind: KindHumanSpeech}
}

// ExtractMenuOptions pulls (key, description, confidence) tuples out of
// menu-like phrasing. Options are deduplicated by key, keeping the
// highest-confidence phrasing, and returned in key order.
func ExtractMenuOptions(text string) []MenuOption {
	best := make(map[string]MenuOption)
	for _, p := range menuPatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			key := m[p.keyIdx]
			desc := ""
			if p.descIdx > 0 {
				desc = normalizeDescription(m[p.descIdx])
			}
			opt := MenuOption{Key: key, Description: desc, Confidence: p.confidence}
			if prev, ok := best[key]; !ok || opt.Confidence > prev.Confidence {
				best[key] = opt
			}
		}
	}
	if len(best) == 0 {
		return nil
	}
	out := make([]MenuOption, 0, len(best))
	for _, o := range best {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func normalizeDescription(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimSuffix(s, " please")
	return strings.Trim(s, " .,;")
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
