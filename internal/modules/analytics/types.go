package analytics

import (
	"time"

	"github.com/geolens/engine/internal/modules/provider"
)

// DefaultWindow is the look-back used when a filter has no From.
const DefaultWindow = 30 * 24 * time.Hour

const (
	rankingLimit      = 20
	uncategorizedName = "Uncategorized"
)

// Filter scopes a rollup to one domain and a time window.
type Filter struct {
	DomainID string
	From     time.Time
	To       time.Time
	Provider provider.ID // empty means every provider
	Brand    string      // source rollup only
}

type Visibility struct {
	MentionedRuns int64   `json:"mentionedRuns"`
	TotalRuns     int64   `json:"totalRuns"`
	Score         float64 `json:"score"`
}

type RankingRow struct {
	Name    string  `json:"name"`
	Count   int64   `json:"count"`
	Share   float64 `json:"share"`
	Tracked bool    `json:"tracked"`
}

type SourceRow struct {
	Domain string  `json:"domain"`
	Count  int64   `json:"count"`
	Share  float64 `json:"share"`
}

type TopicRow struct {
	TopicID string `json:"topicId"`
	Name    string `json:"name"`
	Visibility
}

type ModelRow struct {
	Provider      string  `json:"provider"`
	FailedRuns    int64   `json:"failedRuns"`
	AvgDurationMs float64 `json:"avgDurationMs"`
	Visibility
}

type TrendPoint struct {
	Date string `json:"date"`
	Visibility
}

// runRow is the slim projection every rollup starts from.
type runRow struct {
	ID          string    `gorm:"column:id"`
	LLMProvider string    `gorm:"column:llm_provider"`
	ExecutedAt  time.Time `gorm:"column:executed_at"`
	DurationMs  int64     `gorm:"column:duration_ms"`
	TopicID     *string   `gorm:"column:topic_id"`
	Failed      bool      `gorm:"column:failed"`
	Mentioned   bool      `gorm:"column:mentioned"`
}
