package models

import "time"

// PromptRunStatus is the batch state stored on a domain.
type PromptRunStatus string

const (
	PromptRunPending   PromptRunStatus = "pending"
	PromptRunRunning   PromptRunStatus = "running"
	PromptRunCompleted PromptRunStatus = "completed"
	// PromptRunFailed closes an interrupted batch. The status surface also
	// derives it for stale running batches.
	PromptRunFailed PromptRunStatus = "failed"
)

// DomainModel is a monitored website and the brand it represents.
// The prompt_run_* columns are owned by the batch orchestrator.
type DomainModel struct {
	Base
	Name      string `json:"name"       gorm:"type:varchar(191);uniqueIndex;not null"`
	BrandName string `json:"brand_name" gorm:"type:varchar(191);not null"`

	PromptRunStatus     PromptRunStatus `json:"prompt_run_status"      gorm:"type:varchar(16);not null;default:'pending'"`
	PromptRunProgress   int             `json:"prompt_run_progress"    gorm:"not null;default:0"`
	PromptRunTotal      int             `json:"prompt_run_total"       gorm:"not null;default:0"`
	PromptRunStartedAt  *time.Time      `json:"prompt_run_started_at"`
	PromptRunFinishedAt *time.Time      `json:"prompt_run_finished_at"`

	Prompts []PromptModel `json:"prompts,omitempty" gorm:"foreignKey:DomainID"`
	Topics  []TopicModel  `json:"topics,omitempty"  gorm:"foreignKey:DomainID"`
}

func (DomainModel) TableName() string { return "domains" }
