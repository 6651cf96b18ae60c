package provider

import (
	"net/http"
	neturl "net/url"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
)

const (
	defaultOpenAIBaseURL    = "https://api.openai.com/v1"
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultXAIBaseURL       = "https://api.x.ai/v1"
)

// normalizeVersionedBaseURL makes sure an OpenAI-style base URL ends in /v1/.
func normalizeVersionedBaseURL(raw, fallback string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		base = fallback
	}
	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.TrimRight(base, "/") + "/"
	}
	path := strings.TrimRight(parsed.Path, "/")
	if !strings.HasSuffix(path, "/v1") {
		path += "/v1"
	}
	parsed.Path = path + "/"
	return parsed.String()
}

// normalizeAnthropicBaseURL strips a trailing /v1 since request paths carry it.
func normalizeAnthropicBaseURL(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	if base == "" {
		base = defaultAnthropicBaseURL
	}
	base = strings.TrimSuffix(base, "/v1")
	return base + "/"
}

func newOpenAIClient(apiKey, baseURL string, httpClient *http.Client) openai.Client {
	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(apiKey),
		openaioption.WithBaseURL(baseURL),
		openaioption.WithMaxRetries(0),
	}
	if httpClient != nil {
		opts = append(opts, openaioption.WithHTTPClient(httpClient))
	}
	return openai.NewClient(opts...)
}

func newAnthropicClient(apiKey, baseURL string, httpClient *http.Client) anthropic.Client {
	opts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(apiKey),
		anthropicoption.WithBaseURL(baseURL),
		anthropicoption.WithMaxRetries(0),
	}
	if httpClient != nil {
		opts = append(opts, anthropicoption.WithHTTPClient(httpClient))
	}
	return anthropic.NewClient(opts...)
}
