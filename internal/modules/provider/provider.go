// Package provider dispatches prompts to web-search-enabled answer engines and
// normalizes their answers into text, search queries and citations.
package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/geolens/engine/internal/config"
)

// ID identifies an answer provider.
type ID string

const (
	ChatGPT ID = config.ProviderChatGPT
	Claude  ID = config.ProviderClaude
	Grok    ID = config.ProviderGrok
)

var aliases = map[string]ID{
	"chatgpt":   ChatGPT,
	"openai":    ChatGPT,
	"gpt":       ChatGPT,
	"claude":    Claude,
	"anthropic": Claude,
	"grok":      Grok,
	"xai":       Grok,
}

// All lists the supported providers in display order.
func All() []ID { return []ID{ChatGPT, Claude, Grok} }

// ParseID normalizes raw and resolves aliases.
func ParseID(raw string) (ID, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, "_", "-")
	if id, ok := aliases[key]; ok {
		return id, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, raw)
}

// Citation is a source the answer engine referenced.
type Citation struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// Result is a normalized provider answer.
type Result struct {
	Text          string     `json:"text"`
	SearchQueries []string   `json:"searchQueries"`
	Citations     []Citation `json:"citations"`
}

// Adapter runs one prompt against one upstream model. Implementations make a
// single outbound call and never retry.
type Adapter interface {
	Run(ctx context.Context, prompt string) (*Result, error)
}

// AdapterFunc adapts a plain function to the Adapter interface.
type AdapterFunc func(ctx context.Context, prompt string) (*Result, error)

func (f AdapterFunc) Run(ctx context.Context, prompt string) (*Result, error) {
	return f(ctx, prompt)
}

func appendQuery(queries []string, q string) []string {
	q = strings.TrimSpace(q)
	if q == "" {
		return queries
	}
	return append(queries, q)
}
