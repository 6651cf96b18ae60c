// Package signal turns a raw answer into the tracked brand's visibility signal
// and the list of competitor brands it mentions.
package signal

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"
)

// MaxBrands caps the brands kept per answer.
const MaxBrands = 25

// ExtractedBrand is one brand referenced in an answer.
type ExtractedBrand struct {
	Name        string `json:"name"`
	Domain      string `json:"domain,omitempty"`
	Position    int    `json:"position"`
	Highlighted bool   `json:"highlighted"`
	CitationURL string `json:"citationUrl,omitempty"`
}

// Analysis is the extractor's verdict for one answer.
type Analysis struct {
	Mentioned      bool             `json:"mentioned"`
	Position       *int             `json:"position"`
	Sentiment      *float64         `json:"sentiment"`
	ContextSnippet *string          `json:"contextSnippet"`
	Brands         []ExtractedBrand `json:"brands"`
}

func neutral() Analysis {
	return Analysis{Brands: []ExtractedBrand{}}
}

// Extractor combines the substring heuristic with the classifier.
type Extractor struct {
	classifier Classifier
	logger     *zap.Logger
}

type ExtractorOption func(*Extractor)

func WithLogger(l *zap.Logger) ExtractorOption {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l.Named("SignalExtractor")
		}
	}
}

// NewExtractor creates an extractor. With a nil classifier only the
// heuristic runs and no brands are extracted.
func NewExtractor(classifier Classifier, opts ...ExtractorOption) *Extractor {
	e := &Extractor{classifier: classifier, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze never fails: a classifier error yields the neutral result.
func (e *Extractor) Analyze(ctx context.Context, responseText, trackedDomain, trackedBrandName string) Analysis {
	if strings.TrimSpace(responseText) == "" {
		return neutral()
	}

	var cls *Classification
	if e.classifier != nil {
		var err error
		cls, err = e.classifier.Classify(ctx, responseText, trackedBrandName, trackedDomain)
		if err != nil {
			e.logger.Warn("classifier failed, recording no signal",
				zap.String("domain", trackedDomain),
				zap.Error(err),
			)
			return neutral()
		}
	}

	m := newMatcher(trackedDomain, trackedBrandName)
	out := neutral()
	if cls != nil {
		out.Brands = normalizeBrands(cls.Brands)
	}

	pos, n := m.find(responseText)
	if pos < 0 {
		return out
	}
	out.Mentioned = true
	snippet := contextSnippet(responseText, pos, n)
	out.ContextSnippet = &snippet

	if cls == nil {
		return out
	}
	if cls.Position != nil && *cls.Position >= 1 {
		p := *cls.Position
		out.Position = &p
	} else if p := trackedIndex(out.Brands, trackedDomain, trackedBrandName); p > 0 {
		out.Position = &p
	}
	if cls.Sentiment != nil && !math.IsNaN(*cls.Sentiment) {
		s := math.Max(-1, math.Min(1, *cls.Sentiment))
		out.Sentiment = &s
	}
	return out
}

// normalizeBrands trims, dedupes case-insensitively, normalizes domains to
// their registrable base, caps the list and numbers positions from 1.
func normalizeBrands(in []ClassifiedBrand) []ExtractedBrand {
	out := make([]ExtractedBrand, 0, min(len(in), MaxBrands))
	seen := make(map[string]struct{}, len(in))
	for _, b := range in {
		name := strings.Join(strings.Fields(b.Name), " ")
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ExtractedBrand{
			Name:        name,
			Domain:      BaseDomain(b.Domain),
			Position:    len(out) + 1,
			Highlighted: b.Highlighted,
			CitationURL: strings.TrimSpace(b.CitationURL),
		})
		if len(out) == MaxBrands {
			break
		}
	}
	return out
}

func trackedIndex(brands []ExtractedBrand, domain, brandName string) int {
	base := BaseDomain(domain)
	for _, b := range brands {
		if strings.EqualFold(b.Name, strings.TrimSpace(brandName)) || (base != "" && b.Domain == base) {
			return b.Position
		}
	}
	return 0
}
