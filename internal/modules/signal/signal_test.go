package signal

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type classifierFunc func(ctx context.Context, text, brandName, domain string) (*Classification, error)

func (f classifierFunc) Classify(ctx context.Context, text, brandName, domain string) (*Classification, error) {
	return f(ctx, text, brandName, domain)
}

func fixed(c *Classification) Classifier {
	return classifierFunc(func(context.Context, string, string, string) (*Classification, error) {
		return c, nil
	})
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestAnalyzeMatchesBrandNameWithoutDomain(t *testing.T) {
	e := NewExtractor(fixed(&Classification{Brands: []ClassifiedBrand{{Name: "Fairlife"}, {Name: "Chobani"}}}))

	got := e.Analyze(context.Background(), "For protein shakes, Fairlife is a solid choice.", "fairlife.com", "fairlife")
	assert.True(t, got.Mentioned)
	require.NotNil(t, got.Position)
	assert.Equal(t, 1, *got.Position)
	require.NotNil(t, got.ContextSnippet)
	assert.Contains(t, *got.ContextSnippet, "Fairlife")

	got = e.Analyze(context.Background(), "Order the ultra-filtered milk at FAIRLIFE.COM today.", "www.fairlife.com", "Unrelated Inc")
	assert.True(t, got.Mentioned)
}

func TestAnalyzeClassifierFailureIsNeutral(t *testing.T) {
	failing := classifierFunc(func(context.Context, string, string, string) (*Classification, error) {
		return nil, errors.New("classifier unavailable")
	})
	got := NewExtractor(failing).Analyze(context.Background(), "Acme is great, see acme.com", "acme.com", "Acme")

	assert.False(t, got.Mentioned)
	assert.Empty(t, got.Brands)
	assert.NotNil(t, got.Brands)
	assert.Nil(t, got.Position)
	assert.Nil(t, got.Sentiment)
	assert.Nil(t, got.ContextSnippet)
}

func TestAnalyzeEmptyTextSkipsClassifier(t *testing.T) {
	called := false
	c := classifierFunc(func(context.Context, string, string, string) (*Classification, error) {
		called = true
		return &Classification{Brands: []ClassifiedBrand{}}, nil
	})
	got := NewExtractor(c).Analyze(context.Background(), "   ", "acme.com", "Acme")
	assert.False(t, called)
	assert.False(t, got.Mentioned)
}

func TestAnalyzeClampsSentimentAndIgnoresBadPosition(t *testing.T) {
	e := NewExtractor(fixed(&Classification{
		Brands:    []ClassifiedBrand{{Name: "Rival"}, {Name: "Acme", Domain: "https://shop.acme.com/x"}},
		Position:  intPtr(0),
		Sentiment: floatPtr(3.5),
	}))
	got := e.Analyze(context.Background(), "Rival first, then acme.com.", "acme.com", "Acme Corp")

	require.True(t, got.Mentioned)
	require.NotNil(t, got.Sentiment)
	assert.Equal(t, 1.0, *got.Sentiment)
	require.NotNil(t, got.Position)
	assert.Equal(t, 2, *got.Position)
	assert.Equal(t, "acme.com", got.Brands[1].Domain)
}

func TestAnalyzeNotMentionedKeepsCompetitors(t *testing.T) {
	e := NewExtractor(fixed(&Classification{
		Brands:    []ClassifiedBrand{{Name: "HubSpot", Highlighted: true}, {Name: " hubspot "}, {Name: "Salesforce"}},
		Sentiment: floatPtr(0.4),
	}))
	got := e.Analyze(context.Background(), "HubSpot and Salesforce lead the market.", "pipedrive.com", "Pipedrive")

	assert.False(t, got.Mentioned)
	assert.Nil(t, got.Sentiment)
	require.Len(t, got.Brands, 2)
	assert.Equal(t, ExtractedBrand{Name: "HubSpot", Position: 1, Highlighted: true}, got.Brands[0])
	assert.Equal(t, 2, got.Brands[1].Position)
}

func TestNormalizeBrandsCapsList(t *testing.T) {
	in := make([]ClassifiedBrand, 0, 40)
	for i := 0; i < 40; i++ {
		in = append(in, ClassifiedBrand{Name: "Brand " + strings.Repeat("x", i+1)})
	}
	assert.Len(t, normalizeBrands(in), MaxBrands)
}

func TestNilClassifierUsesHeuristicOnly(t *testing.T) {
	got := NewExtractor(nil).Analyze(context.Background(), "We recommend acme.com.", "acme.com", "Acme")
	assert.True(t, got.Mentioned)
	assert.Empty(t, got.Brands)
	assert.Nil(t, got.Position)
}

func TestMatcherIgnoresBareDomainLabel(t *testing.T) {
	apple := newMatcher("apple.com", "Apple Inc")
	assert.False(t, apple.match("Pineapple juice from Dole is a classic."))
	assert.True(t, apple.match("Order from Apple.com directly."))
	assert.True(t, apple.match("apple inc ships the most units"))

	notion := newMatcher("https://www.notion.so/", "Notion Labs")
	assert.False(t, notion.match("I have no notion of what works best for teams."))
	assert.True(t, notion.match("Docs live on notion.so and www.notion.so alike."))

	got := NewExtractor(nil).Analyze(context.Background(), "Pineapple juice from Dole is a classic.", "apple.com", "Apple Inc")
	assert.False(t, got.Mentioned)
}

func TestContextSnippetCutsAndCollapses(t *testing.T) {
	text := strings.Repeat("a ", 200) + "Acme\n\nrocks " + strings.Repeat("b ", 200)
	m := newMatcher("acme.com", "Acme")
	pos, n := m.find(text)
	require.GreaterOrEqual(t, pos, 0)

	snippet := contextSnippet(text, pos, n)
	assert.True(t, strings.HasPrefix(snippet, "…"))
	assert.True(t, strings.HasSuffix(snippet, "…"))
	assert.Contains(t, snippet, "Acme rocks")
	assert.LessOrEqual(t, len([]rune(snippet)), 2*snippetRadius+len("Acme")+2)
}

func TestBaseDomainAndHostname(t *testing.T) {
	assert.Equal(t, "example.co.uk", BaseDomain("https://www.shop.example.co.uk/path"))
	assert.Equal(t, "fairlife.com", BaseDomain("fairlife.com"))
	assert.Equal(t, "news.bbc.co.uk", Hostname("HTTPS://WWW.News.BBC.co.uk:443/a?b"))
	assert.Equal(t, "", Hostname("not a url"))
	assert.Equal(t, "", BaseDomain(""))
}

func TestParseClassification(t *testing.T) {
	got, err := parseClassification("```json\n{\"brands\":[{\"name\":\"Acme\",\"highlighted\":true}],\"position\":1,\"sentiment\":0.5}\n```")
	require.NoError(t, err)
	require.Len(t, got.Brands, 1)
	assert.Equal(t, 1, *got.Position)

	_, err = parseClassification("Sorry, I cannot help with that.")
	assert.ErrorIs(t, err, errInvalidJSON)

	_, err = parseClassification(`{"position":1}`)
	assert.ErrorIs(t, err, errInvalidJSON)
}

func TestClassificationSchemaDescribesBrands(t *testing.T) {
	schema, err := classificationSchema()
	require.NoError(t, err)
	assert.Contains(t, schema, `"brands"`)
	assert.Contains(t, schema, `"highlighted"`)
}
