package conversation

import (
	"fmt"
	"regexp"
	"strings"
)

// Voicemail composition: build a professional message from whatever
// caller identity and purpose can be extracted from the free-text goal.

var (
	callerNameRe  = regexp.MustCompile(`(?i)\b(?:my name is|this is)\s+([a-zA-Z][a-zA-Z .'\-]{1,40})`)
	callerCoRe    = regexp.MustCompile(`(?i)\b(?:from|with|at)\s+([A-Z][a-zA-Z0-9 &.'\-]{1,40})`)
	callbackRe    = regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	callerEmailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
)

var purposeCues = []string{
	"catering", "pricing", "quote", "appointment", "availability",
	"contact info", "contact information", "reservation", "estimate",
}

// ComposeVoicemail builds the message spoken into a voicemail box when
// no human was reached.
func ComposeVoicemail(goal, businessName string) string {
	var b strings.Builder

	b.WriteString("Hello")
	if businessName != "" {
		fmt.Fprintf(&b, ", this message is for %s", businessName)
	}
	b.WriteString(". ")

	if m := callerNameRe.FindStringSubmatch(goal); m != nil {
		name := strings.TrimRight(strings.TrimSpace(m[1]), ".")
		fmt.Fprintf(&b, "My name is %s", name)
		if m := callerCoRe.FindStringSubmatch(goal); m != nil {
			fmt.Fprintf(&b, " from %s", strings.TrimRight(strings.TrimSpace(m[1]), "."))
		}
		b.WriteString(". ")
	} else {
		b.WriteString("I'm calling on behalf of a client. ")
	}

	purpose := "to get in touch"
	for _, cue := range purposeCues {
		if strings.Contains(strings.ToLower(goal), cue) {
			purpose = "regarding " + cue
			break
		}
	}
	fmt.Fprintf(&b, "I'm reaching out %s. ", purpose)

	if m := callbackRe.FindString(goal); m != "" {
		fmt.Fprintf(&b, "You can reach me at %s. ", m)
	} else if m := callerEmailRe.FindString(goal); m != "" {
		fmt.Fprintf(&b, "You can reach me by email at %s. ", m)
	}

	b.WriteString("I'd appreciate a call back at your earliest convenience. Thank you!")
	return b.String()
}
