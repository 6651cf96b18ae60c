package promptrun

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/geolens/engine/internal/models"
	"github.com/geolens/engine/internal/modules/provider"
	"github.com/geolens/engine/internal/modules/signal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dispatcher sends one prompt to one provider.
type Dispatcher interface {
	Run(ctx context.Context, id provider.ID, prompt string) (*provider.Result, error)
}

// Analyzer extracts the visibility signal from an answer. It must not fail.
type Analyzer interface {
	Analyze(ctx context.Context, responseText, trackedDomain, trackedBrandName string) signal.Analysis
}

// RunResult is the outcome of one executor invocation.
type RunResult struct {
	PromptRunID string `json:"promptRunId,omitempty"`
	Success     bool   `json:"success"`
	Mentioned   bool   `json:"mentioned"`
	Error       string `json:"error,omitempty"`
	// Interrupted is set when the caller's context ended the call. No run is recorded.
	Interrupted bool   `json:"interrupted,omitempty"`
}

// Executor runs one prompt through one provider and persists exactly one run.
type Executor struct {
	db         *gorm.DB
	dispatcher Dispatcher
	analyzer   Analyzer
	logger     *zap.Logger
	now        func() time.Time
}

type ExecutorOption func(*Executor)

func WithExecutorLogger(l *zap.Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.logger = l.Named("Executor")
		}
	}
}

func NewExecutor(db *gorm.DB, dispatcher Dispatcher, analyzer Analyzer, opts ...ExecutorOption) *Executor {
	e := &Executor{
		db:         db,
		dispatcher: dispatcher,
		analyzer:   analyzer,
		logger:     zap.NewNop(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunOne loads the prompt and its domain and runs it once. Only load failures
// are returned as errors; dispatch and persistence failures are in the result.
func (e *Executor) RunOne(ctx context.Context, promptID string, id provider.ID) (*RunResult, error) {
	var prompt models.PromptModel
	if err := e.db.WithContext(ctx).Where("id = ?", promptID).First(&prompt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromptNotFound
		}
		return nil, err
	}
	var domain models.DomainModel
	if err := e.db.WithContext(ctx).Where("id = ?", prompt.DomainID).First(&domain).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDomainNotFound
		}
		return nil, err
	}
	return e.run(ctx, &domain, &prompt, id), nil
}

func (e *Executor) run(ctx context.Context, domain *models.DomainModel, prompt *models.PromptModel, id provider.ID) *RunResult {
	log := e.logger.With(zap.String("prompt", prompt.ID), zap.String("provider", string(id)))
	// rows are written even if the caller gave up waiting
	persistCtx := context.WithoutCancel(ctx)

	executedAt := e.now()
	res, err := e.dispatch(ctx, id, prompt.Text)
	duration := time.Since(executedAt).Milliseconds()

	run := models.PromptRunModel{
		PromptID:    prompt.ID,
		LLMProvider: string(id),
		ExecutedAt:  executedAt,
		DurationMs:  duration,
	}

	if err != nil && ctx.Err() != nil {
		log.Info("run interrupted", zap.Error(err))
		return &RunResult{Error: err.Error(), Interrupted: true}
	}
	if err != nil {
		msg := err.Error()
		run.Error = &msg
		if dbErr := e.db.WithContext(persistCtx).Create(&run).Error; dbErr != nil {
			log.Error("failed to record failed run", zap.Error(dbErr))
			return &RunResult{Error: fmt.Sprintf("%s (not recorded: %v)", msg, dbErr)}
		}
		log.Warn("dispatch failed", zap.String("run", run.ID), zap.Error(err))
		return &RunResult{PromptRunID: run.ID, Error: msg}
	}

	analysis := e.analyzer.Analyze(ctx, res.Text, domain.Name, domain.BrandName)

	text := res.Text
	run.ResponseText = &text
	run.SearchQueries = models.StringArray(append([]string{}, res.SearchQueries...))
	run.Citations = toCitations(res.Citations)

	err = e.db.WithContext(persistCtx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return err
		}
		mention := toMentionAnalysis(run.ID, domain.ID, analysis)
		if err := tx.Create(&mention).Error; err != nil {
			return err
		}
		if brands := toBrandMentions(run.ID, analysis.Brands); len(brands) > 0 {
			if err := tx.Create(&brands).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Error("failed to persist run", zap.Error(err))
		return &RunResult{Error: fmt.Sprintf("persist run: %v", err)}
	}

	log.Debug("run recorded", zap.String("run", run.ID), zap.Bool("mentioned", analysis.Mentioned))
	return &RunResult{PromptRunID: run.ID, Success: true, Mentioned: analysis.Mentioned}
}

// dispatch turns a panicking adapter into a dispatch error so the run is still recorded.
func (e *Executor) dispatch(ctx context.Context, id provider.ID, text string) (res *provider.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%s: dispatch panicked: %v", id, r)
		}
	}()
	return e.dispatcher.Run(ctx, id, text)
}

func toCitations(in []provider.Citation) models.Citations {
	out := make(models.Citations, 0, len(in))
	for _, c := range in {
		out = append(out, models.Citation{URL: c.URL, Title: c.Title, Snippet: c.Snippet})
	}
	return out
}

func toMentionAnalysis(runID, domainID string, a signal.Analysis) models.MentionAnalysisModel {
	m := models.MentionAnalysisModel{
		PromptRunID:    runID,
		DomainID:       domainID,
		Mentioned:      a.Mentioned,
		Position:       a.Position,
		ContextSnippet: a.ContextSnippet,
	}
	if a.Sentiment != nil {
		s := strconv.FormatFloat(*a.Sentiment, 'f', -1, 64)
		m.SentimentScore = &s
	}
	return m
}

func toBrandMentions(runID string, brands []signal.ExtractedBrand) []models.BrandMentionModel {
	if len(brands) > signal.MaxBrands {
		brands = brands[:signal.MaxBrands]
	}
	out := make([]models.BrandMentionModel, 0, len(brands))
	for _, b := range brands {
		pos := b.Position
		out = append(out, models.BrandMentionModel{
			PromptRunID: runID,
			BrandName:   b.Name,
			BrandDomain: optional(b.Domain),
			Position:    &pos,
			Mentioned:   b.Highlighted,
			CitationURL: optional(b.CitationURL),
		})
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
