package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/geolens/engine/internal/config"
	"github.com/invopop/jsonschema"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
	jetai "go.jetify.com/ai"
	jetapi "go.jetify.com/ai/api"
	jetanthropic "go.jetify.com/ai/provider/anthropic"
	jetopenai "go.jetify.com/ai/provider/openai"
)

// ClassifiedBrand is one brand the classifier found in an answer.
type ClassifiedBrand struct {
	Name        string `json:"name" jsonschema:"description=Brand or company name as written in the answer"`
	Domain      string `json:"domain,omitempty" jsonschema:"description=The brand's website domain if known, e.g. example.com"`
	Highlighted bool   `json:"highlighted" jsonschema:"description=True if the answer recommends this brand as the top pick"`
	CitationURL string `json:"citation_url,omitempty" jsonschema:"description=URL cited next to this brand, if any"`
}

// Classification is the structured output of the secondary LLM call.
type Classification struct {
	Brands    []ClassifiedBrand `json:"brands" jsonschema:"description=Every distinct brand mentioned, in order of first appearance"`
	Position  *int              `json:"position,omitempty" jsonschema:"description=1-based rank of the tracked brand among the brands, omitted if absent"`
	Sentiment *float64          `json:"sentiment,omitempty" jsonschema:"minimum=-1,maximum=1,description=Tone towards the tracked brand from -1 (negative) to 1 (positive)"`
}

// Classifier extracts brands and the tracked brand's rank and tone from text.
type Classifier interface {
	Classify(ctx context.Context, text, brandName, domain string) (*Classification, error)
}

// LLMClassifier classifies answers with a separately configured language model.
type LLMClassifier struct {
	model     jetapi.LanguageModel
	maxTokens int
	timeout   time.Duration
	schema    string
}

// NewLLMClassifier builds the classifier model from config.
func NewLLMClassifier(cfg config.ClassifierConfig) (*LLMClassifier, error) {
	model, err := buildLanguageModel(cfg)
	if err != nil {
		return nil, err
	}
	schema, err := classificationSchema()
	if err != nil {
		return nil, err
	}
	return &LLMClassifier{
		model:     model,
		maxTokens: cfg.MaxOutputTokens,
		timeout:   cfg.Timeout,
		schema:    schema,
	}, nil
}

func (c *LLMClassifier) Classify(ctx context.Context, text, brandName, domain string) (*Classification, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := jetai.GenerateText(
		ctx,
		buildClassifierMessages(c.schema, text, brandName, domain),
		jetai.WithModel(c.model),
		jetai.WithMaxOutputTokens(c.maxTokens),
	)
	if err != nil {
		return nil, err
	}
	raw, err := extractTextFromAIResponse(resp)
	if err != nil {
		return nil, err
	}
	return parseClassification(raw)
}

func parseClassification(raw string) (*Classification, error) {
	var out Classification
	if err := unmarshalAIJSON(raw, &out); err != nil {
		return nil, err
	}
	if out.Brands == nil {
		return nil, fmt.Errorf("%w: brands is missing", errInvalidJSON)
	}
	return &out, nil
}

func classificationSchema() (string, error) {
	r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	data, err := json.Marshal(r.Reflect(&Classification{}))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func buildClassifierMessages(schema, text, brandName, domain string) []jetapi.Message {
	system := "You analyze answers produced by AI assistants for brand visibility research. " +
		"List every brand, company or product maker the answer mentions. " +
		"Reply with a single JSON object that validates against this JSON schema and nothing else:\n" + schema
	prompt := fmt.Sprintf("Tracked brand: %s\nTracked domain: %s\n\nAnswer:\n%s", brandName, domain, text)
	return []jetapi.Message{
		&jetapi.SystemMessage{Content: system},
		&jetapi.UserMessage{Content: jetapi.ContentFromText(prompt)},
	}
}

func extractTextFromAIResponse(resp *jetapi.Response) (string, error) {
	if resp == nil {
		return "", errors.New("empty response from classifier")
	}
	var full strings.Builder
	for _, block := range resp.Content {
		textBlock, ok := block.(*jetapi.TextBlock)
		if !ok || textBlock.Text == "" {
			continue
		}
		full.WriteString(textBlock.Text)
	}
	text := full.String()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty response from classifier")
	}
	return text, nil
}

func buildLanguageModel(cfg config.ClassifierConfig) (jetapi.LanguageModel, error) {
	apiKey := cfg.Key()
	if apiKey == "" {
		return nil, errors.New("classifier api key is empty")
	}
	modelID := strings.TrimSpace(cfg.Model)
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")

	switch cfg.Type {
	case config.ClassifierAnthropic:
		if modelID == "" {
			modelID = "claude-haiku-4-5"
		}
		opts := []anthropicoption.RequestOption{
			anthropicoption.WithAPIKey(apiKey),
			anthropicoption.WithMaxRetries(0),
		}
		if endpoint != "" {
			opts = append(opts, anthropicoption.WithBaseURL(endpoint))
		}
		client := anthropicclient.NewClient(opts...)
		return jetanthropic.NewLanguageModel(modelID, jetanthropic.WithClient(client)), nil
	case config.ClassifierOpenAI, "":
		if modelID == "" {
			modelID = "gpt-4o-mini"
		}
		opts := []openaioption.RequestOption{
			openaioption.WithAPIKey(apiKey),
			openaioption.WithMaxRetries(0),
		}
		if endpoint != "" {
			opts = append(opts, openaioption.WithBaseURL(endpoint))
		}
		client := openaiclient.NewClient(opts...)
		return jetopenai.NewLanguageModel(modelID, jetopenai.WithClient(client)), nil
	}
	return nil, fmt.Errorf("unsupported classifier type %q", cfg.Type)
}
