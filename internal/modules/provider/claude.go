package provider

import (
	"context"
	"net/http"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/geolens/engine/internal/config"
)

const (
	defaultClaudeModel  = "claude-sonnet-4-5"
	claudeMaxTokens     = 2048
	claudeMaxSearchUses = 5
)

// claudeAdapter calls the Anthropic Messages API with the server-side web search tool.
type claudeAdapter struct {
	client anthropic.Client
	model  string
}

func newClaudeAdapter(cfg config.ProviderConfig, httpClient *http.Client) *claudeAdapter {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultClaudeModel
	}
	return &claudeAdapter{
		client: newAnthropicClient(cfg.Key(), normalizeAnthropicBaseURL(cfg.Endpoint), httpClient),
		model:  model,
	}
}

func (a *claudeAdapter) Run(ctx context.Context, prompt string) (*Result, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: claudeMaxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Tools: []anthropic.ToolUnionParam{{
			OfWebSearchTool20250305: &anthropic.WebSearchTool20250305Param{
				MaxUses: anthropic.Int(claudeMaxSearchUses),
			},
		}},
	})
	if err != nil {
		return nil, classify(Claude, err)
	}
	return fromMessage(msg)
}

func fromMessage(msg *anthropic.Message) (*Result, error) {
	res := &Result{SearchQueries: []string{}, Citations: []Citation{}}
	var searched []Citation
	var text strings.Builder
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.ServerToolUseBlock:
			if input, ok := v.Input.(map[string]any); ok {
				q, _ := input["query"].(string)
				res.SearchQueries = appendQuery(res.SearchQueries, q)
			}
		case anthropic.WebSearchToolResultBlock:
			// an error result is an object and yields no sources
			for _, r := range v.Content.AsWebSearchResultBlockArray() {
				if r.URL != "" {
					searched = append(searched, Citation{URL: r.URL, Title: r.Title})
				}
			}
		case anthropic.TextBlock:
			text.WriteString(v.Text)
			for _, c := range v.Citations {
				if c.Type != "web_search_result_location" {
					continue
				}
				loc := c.AsWebSearchResultLocation()
				if loc.URL == "" {
					continue
				}
				res.Citations = append(res.Citations, Citation{
					URL:     loc.URL,
					Title:   loc.Title,
					Snippet: strings.TrimSpace(loc.CitedText),
				})
			}
		}
	}

	if len(res.Citations) == 0 && len(searched) > 0 {
		res.Citations = searched
	}
	res.Text = text.String()
	if strings.TrimSpace(res.Text) == "" {
		return nil, malformed(Claude, "empty answer text")
	}
	return res, nil
}
