package provider

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/geolens/engine/internal/config"
	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockedClient(t *testing.T) *http.Client {
	t.Helper()
	client := &http.Client{}
	gock.InterceptClient(client)
	t.Cleanup(func() {
		gock.RestoreClient(client)
		gock.Off()
	})
	return client
}

func TestParseID(t *testing.T) {
	tests := []struct {
		raw  string
		want ID
	}{
		{"chatgpt", ChatGPT},
		{" OpenAI ", ChatGPT},
		{"Claude", Claude},
		{"anthropic", Claude},
		{"GROK", Grok},
		{"xai", Grok},
	}
	for _, tt := range tests {
		got, err := ParseID(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseID("gemini")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestChatGPTParsesSearchQueriesAndCitations(t *testing.T) {
	client := mockedClient(t)
	gock.New("https://api.openai.test").
		Post("/v1/responses").
		MatchHeader("Authorization", "Bearer sk-test").
		Reply(200).
		JSON(map[string]any{
			"output": []any{
				map[string]any{"type": "web_search_call", "action": map[string]any{"query": "best protein milk"}},
				map[string]any{"type": "message", "content": []any{
					map[string]any{
						"type": "output_text",
						"text": "Fairlife is popular. Chobani too.",
						"annotations": []any{
							map[string]any{"type": "url_citation", "url": "https://www.fairlife.com/", "title": "fairlife", "start_index": 0, "end_index": 20},
						},
					},
				}},
			},
		})

	adapter := newChatGPTAdapter(config.ProviderConfig{APIKey: "sk-test", Endpoint: "https://api.openai.test/v1"}, client)
	res, err := adapter.Run(context.Background(), "best protein milk?")
	require.NoError(t, err)

	assert.Equal(t, "Fairlife is popular. Chobani too.", res.Text)
	assert.Equal(t, []string{"best protein milk"}, res.SearchQueries)
	require.Len(t, res.Citations, 1)
	assert.Equal(t, Citation{URL: "https://www.fairlife.com/", Title: "fairlife", Snippet: "Fairlife is popular."}, res.Citations[0])
	assert.True(t, gock.IsDone())
}

func TestClaudeFallsBackToSearchResults(t *testing.T) {
	client := mockedClient(t)
	gock.New("https://api.anthropic.test").
		Post("/v1/messages").
		Reply(200).
		JSON(map[string]any{
			"content": []any{
				map[string]any{"type": "server_tool_use", "name": "web_search", "input": map[string]any{"query": "crm tools"}},
				map[string]any{"type": "web_search_tool_result", "content": []any{
					map[string]any{"type": "web_search_result", "url": "https://hubspot.com/crm", "title": "HubSpot"},
					map[string]any{"type": "web_search_result", "url": "https://salesforce.com", "title": "Salesforce"},
				}},
				map[string]any{"type": "text", "text": "Try HubSpot or Salesforce."},
			},
		})

	adapter := newClaudeAdapter(config.ProviderConfig{APIKey: "sk-ant", Endpoint: "https://api.anthropic.test"}, client)
	res, err := adapter.Run(context.Background(), "which crm?")
	require.NoError(t, err)

	assert.Equal(t, "Try HubSpot or Salesforce.", res.Text)
	assert.Equal(t, []string{"crm tools"}, res.SearchQueries)
	require.Len(t, res.Citations, 2)
	assert.Equal(t, "https://hubspot.com/crm", res.Citations[0].URL)
}

func TestClaudePrefersInlineCitations(t *testing.T) {
	client := mockedClient(t)
	gock.New("https://api.anthropic.test").
		Post("/v1/messages").
		MatchHeader("X-Api-Key", "sk-ant").
		Reply(200).
		JSON(map[string]any{
			"content": []any{
				map[string]any{"type": "web_search_tool_result", "content": map[string]any{"type": "web_search_tool_result_error", "error_code": "max_uses_exceeded"}},
				map[string]any{"type": "web_search_tool_result", "content": []any{
					map[string]any{"type": "web_search_result", "url": "https://a.com", "title": "A"},
				}},
				map[string]any{"type": "text", "text": "A is good.", "citations": []any{
					map[string]any{"type": "web_search_result_location", "url": "https://b.com", "title": "B", "cited_text": " B says A is good "},
				}},
			},
		})

	adapter := newClaudeAdapter(config.ProviderConfig{APIKey: "sk-ant", Endpoint: "https://api.anthropic.test/v1"}, client)
	res, err := adapter.Run(context.Background(), "is A good?")
	require.NoError(t, err)
	assert.Equal(t, "A is good.", res.Text)
	assert.Empty(t, res.SearchQueries)
	assert.Equal(t, []Citation{{URL: "https://b.com", Title: "B", Snippet: "B says A is good"}}, res.Citations)
}

func TestGrokReturnsCitationList(t *testing.T) {
	client := mockedClient(t)
	gock.New("https://api.x.test").
		Post("/v1/chat/completions").
		Reply(200).
		JSON(map[string]any{
			"choices":   []any{map[string]any{"message": map[string]any{"role": "assistant", "content": "Use Linear."}}},
			"citations": []string{"https://linear.app", "https://linear.app"},
		})

	adapter := newGrokAdapter(config.ProviderConfig{APIKey: "xai-test", Endpoint: "https://api.x.test"}, client)
	res, err := adapter.Run(context.Background(), "issue tracker?")
	require.NoError(t, err)
	assert.Equal(t, "Use Linear.", res.Text)
	assert.Len(t, res.Citations, 2)
	assert.Empty(t, res.SearchQueries)
}

func TestUpstreamErrorIsTyped(t *testing.T) {
	client := mockedClient(t)
	gock.New("https://api.openai.test").
		Post("/v1/responses").
		Reply(429).
		JSON(map[string]any{"error": map[string]any{"message": "rate limited", "type": "rate_limit"}})

	adapter := newChatGPTAdapter(config.ProviderConfig{APIKey: "sk-test", Endpoint: "https://api.openai.test/v1"}, client)
	_, err := adapter.Run(context.Background(), "hello")

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindUpstream, perr.Kind)
	assert.Equal(t, 429, perr.StatusCode)
	assert.True(t, perr.Retryable())
}

func TestTransportDeadlineIsTimeout(t *testing.T) {
	client := mockedClient(t)
	gock.New("https://api.openai.test").
		Post("/v1/responses").
		ReplyError(context.DeadlineExceeded)

	adapter := newChatGPTAdapter(config.ProviderConfig{APIKey: "sk-test", Endpoint: "https://api.openai.test/v1"}, client)
	_, err := adapter.Run(context.Background(), "hello")

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindTimeout, perr.Kind)
}

func TestEmptyAnswerIsMalformed(t *testing.T) {
	_, err := parseChatCompletionPayload([]byte(`{"choices":[]}`))
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindMalformed, perr.Kind)

	client := mockedClient(t)
	gock.New("https://api.openai.test").
		Post("/v1/responses").
		Reply(200).
		JSON(map[string]any{
			"output": []any{
				map[string]any{"type": "web_search_call", "action": map[string]any{"query": "anything"}},
				map[string]any{"type": "message", "content": []any{map[string]any{"type": "refusal", "refusal": "no"}}},
			},
		})
	adapter := newChatGPTAdapter(config.ProviderConfig{APIKey: "sk-test", Endpoint: "https://api.openai.test/v1"}, client)
	_, err = adapter.Run(context.Background(), "hello")
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindMalformed, perr.Kind)
	assert.Equal(t, ChatGPT, perr.Provider)
}

func TestRegistryEnforcesPerCallTimeout(t *testing.T) {
	r := NewRegistry(5)
	r.Register(Claude, AdapterFunc(func(ctx context.Context, prompt string) (*Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), 20*time.Millisecond, 600)

	start := time.Now()
	_, err := r.Run(context.Background(), Claude, "slow question")
	assert.Less(t, time.Since(start), time.Second)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindTimeout, perr.Kind)
	assert.Equal(t, "claude: timeout: context deadline exceeded", perr.Error())
}

func TestRegistryConfiguredAndInvalidInput(t *testing.T) {
	r := NewRegistryFromConfig(config.ProvidersConfig{
		ChatGPT: config.ProviderConfig{APIKey: "sk-test"},
	}, 3)

	assert.NoError(t, r.Configured(ChatGPT))
	assert.ErrorIs(t, r.Configured(Grok), ErrNotConfigured)
	assert.ErrorIs(t, r.Configured(ID("gemini")), ErrUnknownProvider)
	assert.Equal(t, []ID{ChatGPT}, r.IDs())

	_, err := r.Run(context.Background(), ChatGPT, "   ")
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindInvalidInput, perr.Kind)

	_, err = r.Run(context.Background(), Grok, "hello")
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindMissingCredentials, perr.Kind)
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestNormalizeBaseURLs(t *testing.T) {
	assert.Equal(t, "https://api.x.ai/v1/", normalizeVersionedBaseURL("", defaultXAIBaseURL))
	assert.Equal(t, "https://proxy.local/openai/v1/", normalizeVersionedBaseURL("https://proxy.local/openai", defaultOpenAIBaseURL))
	assert.Equal(t, "https://api.anthropic.com/", normalizeAnthropicBaseURL("https://api.anthropic.com/v1/"))
}
