package decision

import (
	"context"
	"fmt"
	"strings"
)

// HeuristicOracle is the deterministic fallback oracle. It never fails
// and never blocks, so a call is never left stuck without an action when
// the AI backend is down or slow.
//
// Selection: infer goal categories from the goal text, match category
// cues against menu option descriptions, break ties by the option's own
// extraction confidence.
type HeuristicOracle struct{}

func NewHeuristicOracle() *HeuristicOracle { return &HeuristicOracle{} }

// heuristicConfidence is the fixed confidence reported for fallback
// decisions; callers can distinguish them from AI decisions by it and by
// the "Heuristic" reasoning prefix.
const heuristicConfidence = 0.7

// Categories are ordered by priority; the first category inferred from
// the goal that also matches an option wins.
var categories = []struct {
	name       string
	goalCues   []string
	optionCues []string
}{
	{"emergency", []string{"emergency", "urgent"}, []string{"emergency", "urgent"}},
	{"doctor", []string{"doctor", "physician", "cardiolog", "medical", "dr.", "dr "}, []string{"doctor", "physician", "provider", "nurse", "clinic", "medical", "cardiology"}},
	{"appointment", []string{"appointment", "schedule", "booking"}, []string{"appointment", "schedule", "scheduling", "booking"}},
	{"billing", []string{"billing", "invoice", "payment", "price", "pricing", "cost"}, []string{"billing", "payment", "account", "invoice"}},
	{"manager", []string{"manager", "owner", "supervisor"}, []string{"manager", "management", "administration", "office"}},
	{"operator", []string{"contact", "speak", "representative", "information", "info", "reach"}, []string{"operator", "representative", "customer service", "agent", "front desk", "reception", "speak"}},
}

func (h *HeuristicOracle) Decide(ctx context.Context, in Input) (Result, error) {
	goal := strings.ToLower(in.Goal)

	for _, cat := range categories {
		if !containsAny(goal, cat.goalCues) {
			continue
		}
		best := -1
		for i, opt := range in.MenuOptions {
			if !containsAny(strings.ToLower(opt.Description), cat.optionCues) {
				continue
			}
			if best < 0 || opt.Confidence > in.MenuOptions[best].Confidence {
				best = i
			}
		}
		if best >= 0 {
			opt := in.MenuOptions[best]
			return Result{
				SelectedOption: opt.Key,
				Reasoning:      fmt.Sprintf("Heuristic match: option %s (%s) fits goal category %q", opt.Key, opt.Description, cat.name),
				Confidence:     heuristicConfidence,
				NextAction:     ActionPressKey,
			}, nil
		}
	}

	// No category matched: prefer the operator convention ("0"), then
	// the clearest option on the menu.
	for _, opt := range in.MenuOptions {
		if opt.Key == "0" {
			return Result{
				SelectedOption: "0",
				Reasoning:      "Heuristic fallback: no category match, pressing 0 for an operator",
				Confidence:     heuristicConfidence,
				NextAction:     ActionPressKey,
			}, nil
		}
	}
	best := -1
	for i, opt := range in.MenuOptions {
		if best < 0 || opt.Confidence > in.MenuOptions[best].Confidence {
			best = i
		}
	}
	if best >= 0 {
		opt := in.MenuOptions[best]
		return Result{
			SelectedOption: opt.Key,
			Reasoning:      fmt.Sprintf("Heuristic fallback: selecting clearest option %s (%s)", opt.Key, opt.Description),
			Confidence:     heuristicConfidence,
			NextAction:     ActionPressKey,
		}, nil
	}

	// Menu detection fired but extraction produced nothing usable; wait
	// for the next prompt instead of guessing a digit.
	return Result{
		Reasoning:  "Heuristic fallback: no usable options, waiting for the next prompt",
		Confidence: heuristicConfidence,
		NextAction: ActionWait,
	}, nil
}

func (h *HeuristicOracle) Summarize(ctx context.Context, goal string, actions []string) (string, error) {
	return fmt.Sprintf("Navigated %d step(s) toward goal %q: %s", len(actions), goal, strings.Join(actions, "; ")), nil
}

func containsAny(s string, cues []string) bool {
	for _, c := range cues {
		if strings.Contains(s, c) {
			return true
		}
	}
	return false
}
