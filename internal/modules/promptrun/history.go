package promptrun

import (
	"context"
	"errors"

	"github.com/geolens/engine/internal/models"
	"github.com/geolens/engine/internal/pkg/pagination"
	"github.com/geolens/engine/internal/pkg/response"
	"gorm.io/gorm"
)

// History reads the append-only run log of a prompt.
type History struct {
	db *gorm.DB
}

func NewHistory(db *gorm.DB) *History {
	return &History{db: db}
}

// ListRuns pages a prompt's runs newest first, with their analysis and
// brand mentions. An empty llmProvider means every provider.
func (h *History) ListRuns(ctx context.Context, promptID, llmProvider string, q pagination.Query) ([]models.PromptRunModel, response.Pagination, error) {
	if err := h.ensurePrompt(ctx, promptID); err != nil {
		return nil, response.Pagination{}, err
	}

	query := h.db.WithContext(ctx).Model(&models.PromptRunModel{}).Where("prompt_id = ?", promptID)
	if llmProvider != "" {
		query = query.Where("llm_provider = ?", llmProvider)
	}
	withDetails := func(db *gorm.DB) *gorm.DB {
		return db.
			Preload("Analysis").
			Preload("BrandMentions", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
			Order("executed_at DESC").
			Order("id DESC")
	}

	runs := make([]models.PromptRunModel, 0)
	pag, err := pagination.Paginate(query, q, &runs, withDetails)
	if err != nil {
		return nil, response.Pagination{}, err
	}
	return runs, pag, nil
}

// Latest returns the newest run of a prompt for a provider, or nil when the
// prompt has never run there.
func (h *History) Latest(ctx context.Context, promptID, llmProvider string) (*models.PromptRunModel, error) {
	if err := h.ensurePrompt(ctx, promptID); err != nil {
		return nil, err
	}
	var run models.PromptRunModel
	err := h.db.WithContext(ctx).
		Where("prompt_id = ? AND llm_provider = ?", promptID, llmProvider).
		Preload("Analysis").
		Preload("BrandMentions", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("executed_at DESC").
		Order("id DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (h *History) ensurePrompt(ctx context.Context, promptID string) error {
	var exists int64
	if err := h.db.WithContext(ctx).Model(&models.PromptModel{}).Where("id = ?", promptID).Count(&exists).Error; err != nil {
		return err
	}
	if exists == 0 {
		return ErrPromptNotFound
	}
	return nil
}
