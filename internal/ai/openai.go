// Package ai writes short engagement summaries for a tracked id using an
// OpenAI-compatible chat completion endpoint.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	altai "github.com/sashabaranov/go-openai"

	"trackdash/internal/model"
	"trackdash/internal/util"
)

var ErrDisabled = errors.New("ai summaries disabled (offline or no OPENAI_API_KEY)")

// Summary is the structured answer the model is asked for.
type Summary struct {
	Headline   string   `json:"headline"`
	Engagement string   `json:"engagement"`
	Signals    []string `json:"signals"`
	BotRisk    string   `json:"botRisk"`
}

func (s Summary) Text() string {
	var b strings.Builder
	b.WriteString(s.Headline)
	if s.Engagement != "" {
		b.WriteString("\nEngagement: " + s.Engagement)
	}
	if s.BotRisk != "" {
		b.WriteString("\nBot risk: " + s.BotRisk)
	}
	for _, sig := range s.Signals {
		b.WriteString("\n• " + sig)
	}
	return b.String()
}

type OpenAIClient struct {
	apiKey  string
	baseURL string
	model   string
	timeout time.Duration
}

func NewOpenAIClient(apiKey, baseURL, model string, timeout time.Duration) *OpenAIClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIClient{apiKey: apiKey, baseURL: baseURL, model: model, timeout: timeout}
}

func (c *OpenAIClient) Enabled() bool { return c != nil && c.apiKey != "" }

// DescribeTrack asks the model to summarise one record and its clicks.
func (c *OpenAIClient) DescribeTrack(ctx context.Context, r model.TrackRecord, clicks []model.ClickEvent) (Summary, error) {
	if !c.Enabled() {
		return Summary{}, ErrDisabled
	}
	prompt, err := buildTrackPrompt(r, clicks)
	if err != nil {
		return Summary{}, err
	}
	ctx2, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	resp, err := c.call(ctx2, prompt)
	if err != nil {
		return Summary{}, fmt.Errorf("describe %s: %w", r.TrackID, err)
	}
	var out Summary
	if err := json.Unmarshal([]byte(resp), &out); err != nil {
		return Summary{}, fmt.Errorf("describe %s: decode answer: %w", r.TrackID, err)
	}
	if out.Headline == "" {
		return Summary{}, fmt.Errorf("describe %s: empty headline", r.TrackID)
	}
	return out, nil
}

func (c *OpenAIClient) call(ctx context.Context, prompt string) (string, error) {
	cfg := altai.DefaultConfig(c.apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	cli := altai.NewClientWithConfig(cfg)
	resp, err := cli.CreateChatCompletion(ctx, altai.ChatCompletionRequest{
		Model: c.model,
		Messages: []altai.ChatCompletionMessage{
			{Role: altai.ChatMessageRoleSystem, Content: "You analyse email open and click telemetry and return ONLY strict JSON following the specified contract. No prose, no code fences."},
			{Role: altai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature:    0.2,
		ResponseFormat: &altai.ChatCompletionResponseFormat{Type: altai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

const maxPromptClicks = 50

func buildTrackPrompt(r model.TrackRecord, clicks []model.ClickEvent) (string, error) {
	if len(clicks) > maxPromptClicks {
		clicks = clicks[:maxPromptClicks]
	}
	// Recipient and IP are left out of what leaves the machine.
	r.Recipient, r.IPAddress = "", ""
	r.Subject, r.Label, r.Referer = util.RedactPII(r.Subject), util.RedactPII(r.Label), util.RedactPII(r.Referer)
	payload, err := json.Marshal(struct {
		Track  model.TrackRecord  `json:"track"`
		Clicks []model.ClickEvent `json:"clicks"`
	}{r, clicks})
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("Summarise the engagement of this tracked email and return ONLY strict JSON matching this contract: ")
	b.WriteString("{headline, engagement, signals:[string], botRisk}. headline is one sentence; engagement is low|medium|high; botRisk is low|medium|high with a short reason.\n")
	b.WriteString("Data:\n")
	b.Write(payload)
	return b.String(), nil
}
