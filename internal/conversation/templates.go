package conversation

import (
	"fmt"
	"strings"
)

// Phrase tables for the scripted exchange. Selection among follow-up
// variants goes through an injected index function so tests stay
// deterministic.

func introAndQuestion(goal, businessName, targetPerson string) string {
	intro := "Hi, I'm calling on behalf of a client"
	if businessName != "" {
		intro = fmt.Sprintf("Hi, I'm calling %s on behalf of a client", businessName)
	}

	g := strings.ToLower(goal)
	switch {
	case targetPerson != "":
		return fmt.Sprintf("%s. Could you share the best phone number or email to reach %s directly?", intro, targetPerson)
	case strings.Contains(g, "cardiolog"):
		return fmt.Sprintf("%s. Could you share the contact information for a cardiologist at your practice?", intro)
	case strings.Contains(g, "doctor") || strings.Contains(g, "physician"):
		return fmt.Sprintf("%s. Could you share the best way to reach one of your doctors directly?", intro)
	case strings.Contains(g, "manager") || strings.Contains(g, "owner"):
		return fmt.Sprintf("%s. Could I get the manager's direct contact information?", intro)
	default:
		return fmt.Sprintf("%s. %s. Could you share the relevant contact information?", intro, goal)
	}
}

var followUpPrompts = []string{
	"Thanks, could you also give me a phone number or email for that?",
	"Got it. What's the best number or email to use for that?",
	"Almost there, I just need a direct phone number or email address.",
	"Could you spell out the phone number or email for me, please?",
}

func clarificationFor(goal string) string {
	return fmt.Sprintf("Of course. I'm trying to %s, and I just need a direct phone number or email address.", strings.ToLower(strings.TrimSpace(goal)))
}

const closingLine = "That's exactly what I needed, thank you so much for your help. Have a great day!"

const politeClose = "I understand, thank you for your time anyway. Have a great day!"
