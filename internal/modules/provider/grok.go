package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/geolens/engine/internal/config"
	openai "github.com/openai/openai-go/v2"
)

const defaultGrokModel = "grok-3"

// grokAdapter calls xAI chat completions with live search through the
// OpenAI-compatible client.
type grokAdapter struct {
	client openai.Client
	model  string
}

func newGrokAdapter(cfg config.ProviderConfig, httpClient *http.Client) *grokAdapter {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGrokModel
	}
	baseURL := normalizeVersionedBaseURL(cfg.Endpoint, defaultXAIBaseURL)
	return &grokAdapter{
		client: newOpenAIClient(cfg.Key(), baseURL, httpClient),
		model:  model,
	}
}

type chatCompletionRequest struct {
	Model            string              `json:"model"`
	Messages         []map[string]string `json:"messages"`
	SearchParameters map[string]any      `json:"search_parameters"`
}

type chatCompletionPayload struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

func (a *grokAdapter) Run(ctx context.Context, prompt string) (*Result, error) {
	body := chatCompletionRequest{
		Model:    a.model,
		Messages: []map[string]string{{"role": "user", "content": prompt}},
		SearchParameters: map[string]any{
			"mode":             "auto",
			"return_citations": true,
		},
	}
	var raw []byte
	if err := a.client.Post(ctx, "chat/completions", body, &raw); err != nil {
		return nil, classify(Grok, err)
	}
	return parseChatCompletionPayload(raw)
}

func parseChatCompletionPayload(raw []byte) (*Result, error) {
	var payload chatCompletionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, malformed(Grok, "decode chat completion payload: %w", err)
	}
	if len(payload.Choices) == 0 || strings.TrimSpace(payload.Choices[0].Message.Content) == "" {
		return nil, malformed(Grok, "empty answer text")
	}

	res := &Result{
		Text:          payload.Choices[0].Message.Content,
		SearchQueries: []string{},
		Citations:     make([]Citation, 0, len(payload.Citations)),
	}
	for _, u := range payload.Citations {
		if u = strings.TrimSpace(u); u != "" {
			res.Citations = append(res.Citations, Citation{URL: u})
		}
	}
	return res, nil
}
