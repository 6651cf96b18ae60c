package provider

import (
	"context"
	"net/http"
	"strings"

	"github.com/geolens/engine/internal/config"
	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/responses"
)

const defaultChatGPTModel = "gpt-4o"

// chatGPTAdapter calls the OpenAI Responses API with the web_search tool.
type chatGPTAdapter struct {
	client openai.Client
	model  string
}

func newChatGPTAdapter(cfg config.ProviderConfig, httpClient *http.Client) *chatGPTAdapter {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultChatGPTModel
	}
	baseURL := normalizeVersionedBaseURL(cfg.Endpoint, defaultOpenAIBaseURL)
	return &chatGPTAdapter{
		client: newOpenAIClient(cfg.Key(), baseURL, httpClient),
		model:  model,
	}
}

func (a *chatGPTAdapter) Run(ctx context.Context, prompt string) (*Result, error) {
	resp, err := a.client.Responses.New(ctx, responses.ResponseNewParams{
		Model: a.model,
		Input: responses.ResponseNewParamsInputUnion{OfString: openai.String(prompt)},
		Tools: []responses.ToolUnionParam{
			responses.ToolParamOfWebSearch(responses.WebSearchToolTypeWebSearch),
		},
	})
	if err != nil {
		return nil, classify(ChatGPT, err)
	}
	return fromResponse(resp)
}

func fromResponse(resp *responses.Response) (*Result, error) {
	res := &Result{SearchQueries: []string{}, Citations: []Citation{}}
	var text strings.Builder
	for _, item := range resp.Output {
		switch v := item.AsAny().(type) {
		case responses.ResponseFunctionWebSearch:
			res.SearchQueries = appendQuery(res.SearchQueries, v.Action.Query)
		case responses.ResponseOutputMessage:
			for _, part := range v.Content {
				if part.Type != "output_text" {
					continue
				}
				out := part.AsOutputText()
				text.WriteString(out.Text)
				for _, ann := range out.Annotations {
					if ann.Type != "url_citation" {
						continue
					}
					cite := ann.AsURLCitation()
					if cite.URL == "" {
						continue
					}
					res.Citations = append(res.Citations, Citation{
						URL:     cite.URL,
						Title:   cite.Title,
						Snippet: runeSpan(out.Text, int(cite.StartIndex), int(cite.EndIndex)),
					})
				}
			}
		}
	}

	res.Text = text.String()
	if strings.TrimSpace(res.Text) == "" {
		return nil, malformed(ChatGPT, "empty answer text")
	}
	return res, nil
}

// runeSpan returns text[start:end] in runes, or "" for an out-of-range span.
func runeSpan(text string, start, end int) string {
	runes := []rune(text)
	if start < 0 || end > len(runes) || start >= end {
		return ""
	}
	return strings.TrimSpace(string(runes[start:end]))
}
