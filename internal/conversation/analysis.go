package conversation

import (
	"regexp"
	"strings"
)

// Analysis classifies a human reply to the outstanding question.
type Analysis struct {
	HasContactInfo bool
	IsQuestion     bool
	Incomplete     bool
}

var (
	phoneRe = regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	extRe   = regexp.MustCompile(`(?i)\b(?:ext\.?|extension)\s*\d+`)
	titleRe = regexp.MustCompile(`(?i)\b(?:dr\.?|mr\.?|ms\.?|mrs\.?|doctor|manager|director|nurse|office)\b`)
)

var interrogatives = []string{
	"who", "what", "when", "where", "why", "how",
	"can", "could", "would", "will", "do", "does", "did",
	"is", "are", "may", "which",
}

// AnalyzeResponse is a pure function of the reply text. Contact info
// wins over question detection: a reply that both asks something and
// contains a number is treated as captured information.
func AnalyzeResponse(text string) Analysis {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	if phoneRe.MatchString(trimmed) || emailRe.MatchString(trimmed) ||
		(extRe.MatchString(trimmed) && titleRe.MatchString(trimmed)) {
		return Analysis{HasContactInfo: true}
	}

	if strings.Contains(trimmed, "?") {
		return Analysis{IsQuestion: true}
	}
	if fields := strings.Fields(lower); len(fields) > 0 {
		first := strings.Trim(fields[0], ",.")
		for _, w := range interrogatives {
			if first == w {
				return Analysis{IsQuestion: true}
			}
		}
	}

	return Analysis{Incomplete: true}
}
