package promptrun

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geolens/engine/internal/models"
	"gorm.io/gorm"
)

// BatchStatus is the polled view of a domain's latest batch.
type BatchStatus struct {
	DomainID   string                 `json:"domainId"`
	Status     models.PromptRunStatus `json:"status"`
	Progress   int                    `json:"progress"`
	Total      int                    `json:"total"`
	StartedAt  *time.Time             `json:"startedAt"`
	FinishedAt *time.Time             `json:"finishedAt"`
	Stale      bool                   `json:"stale"`
}

// StatusStore keeps the batch counters on the domain row.
type StatusStore struct {
	db         *gorm.DB
	staleAfter time.Duration
	now        func() time.Time
}

// NewStatusStore creates a store that reports running batches older than
// staleAfter as failed.
func NewStatusStore(db *gorm.DB, staleAfter time.Duration) *StatusStore {
	return &StatusStore{
		db:         db,
		staleAfter: staleAfter,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *StatusStore) domains(ctx context.Context, domainID string) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.DomainModel{}).Where("id = ?", domainID)
}

// GetStatus reads the counters for domainID.
func (s *StatusStore) GetStatus(ctx context.Context, domainID string) (*BatchStatus, error) {
	var d models.DomainModel
	err := s.db.WithContext(ctx).
		Select("id", "prompt_run_status", "prompt_run_progress", "prompt_run_total", "prompt_run_started_at", "prompt_run_finished_at").
		Where("id = ?", domainID).
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDomainNotFound
	}
	if err != nil {
		return nil, err
	}

	st := &BatchStatus{
		DomainID:   d.ID,
		Status:     d.PromptRunStatus,
		Progress:   d.PromptRunProgress,
		Total:      d.PromptRunTotal,
		StartedAt:  d.PromptRunStartedAt,
		FinishedAt: d.PromptRunFinishedAt,
	}
	if st.Status == models.PromptRunRunning && s.isStale(d.PromptRunStartedAt) {
		st.Status = models.PromptRunFailed
		st.Stale = true
	}
	return st, nil
}

func (s *StatusStore) isStale(startedAt *time.Time) bool {
	if s.staleAfter <= 0 {
		return false
	}
	return startedAt == nil || s.now().Sub(*startedAt) > s.staleAfter
}

// SetStatus overwrites the status and, when given, progress and total.
func (s *StatusStore) SetStatus(ctx context.Context, domainID string, status models.PromptRunStatus, progress, total *int) error {
	updates := map[string]any{"prompt_run_status": status}
	if progress != nil {
		updates["prompt_run_progress"] = *progress
	}
	if total != nil {
		updates["prompt_run_total"] = *total
	}
	res := s.domains(ctx, domainID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDomainNotFound
	}
	return nil
}

// TryBegin claims the domain for a new batch of total units and returns the
// claim's start time, which identifies the batch in later writes. It reports
// false when another batch is running and not yet stale.
func (s *StatusStore) TryBegin(ctx context.Context, domainID string, total int) (time.Time, bool, error) {
	// millisecond precision survives a DATETIME(3) round trip
	now := s.now().Truncate(time.Millisecond)
	q := s.domains(ctx, domainID)
	if s.staleAfter > 0 {
		q = q.Where("(prompt_run_status <> ? OR prompt_run_started_at IS NULL OR prompt_run_started_at < ?)",
			models.PromptRunRunning, now.Add(-s.staleAfter))
	} else {
		q = q.Where("prompt_run_status <> ?", models.PromptRunRunning)
	}
	res := q.Updates(map[string]any{
		"prompt_run_status":      models.PromptRunRunning,
		"prompt_run_progress":    0,
		"prompt_run_total":       total,
		"prompt_run_started_at":  now,
		"prompt_run_finished_at": nil,
	})
	if res.Error != nil {
		return time.Time{}, false, fmt.Errorf("claim batch: %w", res.Error)
	}
	return now, res.RowsAffected == 1, nil
}

// Increment records one finished unit of the batch claimed at startedAt.
// Progress never passes total, and a reclaimed batch no longer counts.
func (s *StatusStore) Increment(ctx context.Context, domainID string, startedAt time.Time) error {
	return s.domains(ctx, domainID).
		Where("prompt_run_started_at = ? AND prompt_run_progress < prompt_run_total", startedAt).
		UpdateColumn("prompt_run_progress", gorm.Expr("prompt_run_progress + 1")).Error
}

// Finish closes the batch claimed at startedAt with status and processed
// units. It reports false when the domain has since been reclaimed.
func (s *StatusStore) Finish(ctx context.Context, domainID string, startedAt time.Time, status models.PromptRunStatus, processed int) (bool, error) {
	res := s.domains(ctx, domainID).
		Where("prompt_run_started_at = ?", startedAt).
		Updates(map[string]any{
			"prompt_run_status":      status,
			"prompt_run_progress":    processed,
			"prompt_run_finished_at": s.now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
