// Package ai wraps the chat-completion provider for AI-assisted
// campaign copywriting. Structured generation paths require the model
// to return JSON; a non-JSON reply is a hard failure surfaced to the
// caller, never silently retried.
package ai

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/flmlnk/flmlnk-backend/internal/config"
)

// Draft is the structured output of a campaign drafting call.
type Draft struct {
	Subject   string `json:"subject"`
	Preheader string `json:"preheader"`
	HTMLBody  string `json:"html_body"`
	TextBody  string `json:"text_body"`
}

// Candidates is the structured output of subject-line generation.
type Candidates struct {
	Subjects []string `json:"subjects"`
}

type Drafter struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

const draftSystemPrompt = `You write email campaigns for actors and filmmakers on Flmlnk.
Respond with a JSON object: {"subject","preheader","html_body","text_body"}.
The bodies may use the placeholders {name} and {profile_name}. Keep the tone personal and direct.`

const candidatesSystemPrompt = `You write email subject lines for actors and filmmakers on Flmlnk.
Respond with a JSON object: {"subjects": ["...", ...]} containing exactly five candidates.`

// NewDrafter builds a drafter from config. A missing API key is a
// configuration error surfaced on construction.
func NewDrafter(cfg *config.OpenAIConfig) (*Drafter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is not configured")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Drafter{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// DraftCampaign asks the model for full campaign copy based on the
// creator's brief.
func (d *Drafter) DraftCampaign(ctx context.Context, profileName, brief string) (*Draft, error) {
	content, err := d.complete(ctx, draftSystemPrompt,
		fmt.Sprintf("Creator: %s\nBrief: %s", profileName, brief))
	if err != nil {
		return nil, err
	}

	var draft Draft
	if err := json.Unmarshal([]byte(content), &draft); err != nil {
		return nil, fmt.Errorf("model returned malformed JSON: %w", err)
	}
	if draft.Subject == "" || draft.HTMLBody == "" {
		return nil, fmt.Errorf("model response missing subject or html_body")
	}
	return &draft, nil
}

// SubjectCandidates asks the model for alternative subject lines.
func (d *Drafter) SubjectCandidates(ctx context.Context, profileName, subject string) ([]string, error) {
	content, err := d.complete(ctx, candidatesSystemPrompt,
		fmt.Sprintf("Creator: %s\nCurrent subject: %s", profileName, subject))
	if err != nil {
		return nil, err
	}

	var c Candidates
	if err := json.Unmarshal([]byte(content), &c); err != nil {
		return nil, fmt.Errorf("model returned malformed JSON: %w", err)
	}
	if len(c.Subjects) == 0 {
		return nil, fmt.Errorf("model response contained no subjects")
	}
	return c.Subjects, nil
}

func (d *Drafter) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       d.model,
		Temperature: d.temperature,
		MaxTokens:   d.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
