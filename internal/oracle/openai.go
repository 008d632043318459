package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"phone-agent/internal/classifier"
	"phone-agent/internal/decision"
)

// OpenAIOracle implements decision.Oracle against the OpenAI chat API.
//
// The engine enforces its own hard timeout, so this client keeps retries
// short: transient failures get a small number of attempts with linear
// backoff, and any error after that surfaces to the engine, which falls
// back to the heuristic oracle.
type OpenAIOracle struct {
	client     *openai.Client
	model      string
	maxRetries int
	retryDelay time.Duration
}

const defaultModel = openai.GPT4oMini

func NewOpenAIOracle(apiKey, model string) (*OpenAIOracle, error) {
	if apiKey == "" {
		return nil, errors.New("oracle: api key is required")
	}
	if model == "" {
		model = defaultModel
	}
	return &OpenAIOracle{
		client:     openai.NewClient(apiKey),
		model:      model,
		maxRetries: 2,
		retryDelay: 500 * time.Millisecond,
	}, nil
}

const decideSystemPrompt = `You navigate phone menus (IVR systems) on behalf of a caller.
Given the caller's goal and the menu options heard, pick the single best next step.
Respond with JSON only, using this shape:
{"selected_option":"<menu key>","reasoning":"<one sentence>","response":"<text to speak, if any>","confidence":<0..1>,"next_action":"press_key|speak|wait|hangup"}`

type decidePayload struct {
	SelectedOption string  `json:"selected_option"`
	Reasoning      string  `json:"reasoning"`
	Response       string  `json:"response"`
	Confidence     float64 `json:"confidence"`
	NextAction     string  `json:"next_action"`
}

func (o *OpenAIOracle) Decide(ctx context.Context, in decision.Input) (decision.Result, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Goal: %s\n", in.Goal)
	if in.CompanyName != "" {
		fmt.Fprintf(&sb, "Calling: %s\n", in.CompanyName)
	}
	if len(in.PreviousActions) > 0 {
		fmt.Fprintf(&sb, "Actions taken so far:\n")
		for _, a := range in.PreviousActions {
			fmt.Fprintf(&sb, "- %s\n", a)
		}
	}
	fmt.Fprintf(&sb, "Menu heard: %s\nOptions:\n", in.FullText)
	for _, opt := range in.MenuOptions {
		fmt.Fprintf(&sb, "- key %s: %s (confidence %.2f)\n", opt.Key, opt.Description, opt.Confidence)
	}

	content, err := o.complete(ctx, decideSystemPrompt, sb.String(), true)
	if err != nil {
		return decision.Result{}, err
	}

	var p decidePayload
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		return decision.Result{}, fmt.Errorf("oracle: bad decision payload: %w", err)
	}

	res := decision.Result{
		SelectedOption: p.SelectedOption,
		Reasoning:      p.Reasoning,
		Response:       p.Response,
		Confidence:     p.Confidence,
		NextAction:     decision.Action(p.NextAction),
	}
	switch res.NextAction {
	case decision.ActionPressKey, decision.ActionSpeak, decision.ActionWait, decision.ActionHangup:
	default:
		return decision.Result{}, fmt.Errorf("oracle: unknown next_action %q", p.NextAction)
	}
	if res.NextAction == decision.ActionPressKey && !validKey(res.SelectedOption, in.MenuOptions) {
		return decision.Result{}, fmt.Errorf("oracle: selected option %q is not on the menu", res.SelectedOption)
	}
	return res, nil
}

const summarizeSystemPrompt = `Summarize in two sentences how an automated phone call went,
given the caller's goal and the navigation actions taken. Plain text only.`

func (o *OpenAIOracle) Summarize(ctx context.Context, goal string, actions []string) (string, error) {
	user := fmt.Sprintf("Goal: %s\nActions:\n- %s", goal, strings.Join(actions, "\n- "))
	return o.complete(ctx, summarizeSystemPrompt, user, false)
}

func (o *OpenAIOracle) complete(ctx context.Context, system, user string, jsonMode bool) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.2,
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	var lastErr error
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(o.retryDelay * time.Duration(attempt)):
			}
		}
		resp, err := o.client.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = errors.New("oracle: empty completion")
			continue
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	}
	return "", fmt.Errorf("oracle: completion failed after %d attempts: %w", o.maxRetries+1, lastErr)
}

func validKey(key string, opts []classifier.MenuOption) bool {
	for _, o := range opts {
		if o.Key == key {
			return true
		}
	}
	return false
}
