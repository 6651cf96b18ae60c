package models

import "time"

// PromptRunModel is one execution of a prompt against one provider.
// Exactly one row exists per executor invocation; Error is set when dispatch failed.
type PromptRunModel struct {
	RecordBase
	PromptID      string      `json:"prompt_id"      gorm:"type:char(36);index;not null"`
	LLMProvider   string      `json:"llm_provider"   gorm:"column:llm_provider;type:varchar(32);index;not null"`
	ExecutedAt    time.Time   `json:"executed_at"    gorm:"index;not null"`
	DurationMs    int64       `json:"duration_ms"    gorm:"not null"`
	ResponseText  *string     `json:"response_text"  gorm:"type:longtext"`
	SearchQueries StringArray `json:"search_queries" gorm:"type:text"`
	Citations     Citations   `json:"citations"      gorm:"type:longtext"`
	Error         *string     `json:"error"          gorm:"type:text"`

	Analysis      *MentionAnalysisModel `json:"analysis,omitempty"       gorm:"foreignKey:PromptRunID;constraint:OnDelete:CASCADE"`
	BrandMentions []BrandMentionModel   `json:"brand_mentions,omitempty" gorm:"foreignKey:PromptRunID;constraint:OnDelete:CASCADE"`
}

func (PromptRunModel) TableName() string { return "prompt_runs" }

// MentionAnalysisModel is the tracked brand verdict for one run.
type MentionAnalysisModel struct {
	RecordBase
	PromptRunID    string  `json:"prompt_run_id"   gorm:"type:char(36);not null;uniqueIndex:idx_mention_run_domain"`
	DomainID       string  `json:"domain_id"       gorm:"type:char(36);not null;uniqueIndex:idx_mention_run_domain;index"`
	Mentioned      bool    `json:"mentioned"       gorm:"not null"`
	Position       *int    `json:"position"`
	SentimentScore *string `json:"sentiment_score" gorm:"type:varchar(16)"` // decimal text, -1..1
	ContextSnippet *string `json:"context_snippet" gorm:"type:text"`
}

func (MentionAnalysisModel) TableName() string { return "mention_analyses" }

// BrandMentionModel is one brand referenced in a run's answer.
type BrandMentionModel struct {
	RecordBase
	PromptRunID string  `json:"prompt_run_id" gorm:"type:char(36);index;not null"`
	BrandName   string  `json:"brand_name"    gorm:"type:varchar(191);index;not null"`
	BrandDomain *string `json:"brand_domain"  gorm:"type:varchar(191)"`
	Position    *int    `json:"position"`
	Mentioned   bool    `json:"mentioned"     gorm:"not null"` // highlighted as the recommended brand
	CitationURL *string `json:"citation_url"  gorm:"type:text"`
}

func (BrandMentionModel) TableName() string { return "brand_mentions" }
