package promptrun

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/geolens/engine/internal/models"
	"github.com/geolens/engine/internal/modules/provider"
	"github.com/geolens/engine/internal/pkg/taskqueue"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	TaskTypeBatch      = "prompt_run.batch"
	DefaultConcurrency = 15

	writeAttempts = 3
	writeDelay    = 100 * time.Millisecond
)

// Configurer reports whether a provider can be dispatched to.
type Configurer interface {
	Configured(id provider.ID) error
}

// TaskRecorder stores one record per batch. *taskqueue.Service implements it.
type TaskRecorder interface {
	Enqueue(ctx context.Context, taskType string, payload interface{}, dedupKey, groupKey string) (*taskqueue.Task, error)
	UpdateStatus(ctx context.Context, id string, status taskqueue.TaskStatus, result interface{}, errMsg string) error
}

// BatchSummary is the outcome of one batch.
type BatchSummary struct {
	DomainID    string      `json:"domainId"`
	Provider    provider.ID `json:"provider"`
	Total       int         `json:"total"`
	Processed   int         `json:"processed"`
	Succeeded   int         `json:"succeeded"`
	Failed      int         `json:"failed"`
	Mentioned   int         `json:"mentioned"`
	Interrupted bool        `json:"interrupted"`
	StartedAt   time.Time   `json:"startedAt"`
	FinishedAt  time.Time   `json:"finishedAt"`
}

// BatchAck is returned to the trigger once a batch is claimed.
type BatchAck struct {
	Accepted     bool   `json:"accepted"`
	TotalPrompts int    `json:"totalPrompts"`
	TaskID       string `json:"taskId,omitempty"`
}

type batchPayload struct {
	DomainID string      `json:"domainId"`
	Provider provider.ID `json:"provider"`
	Total    int         `json:"total"`
}

// Orchestrator fans a domain's active prompts out to the executor under a
// bounded pool and keeps the domain's batch counters current.
type Orchestrator struct {
	db          *gorm.DB
	executor    *Executor
	providers   Configurer
	status      *StatusStore
	tasks       TaskRecorder
	concurrency int
	maxDuration time.Duration
	logger      *zap.Logger

	base    context.Context
	stop    context.CancelFunc
	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

type OrchestratorOption func(*Orchestrator)

func WithLogger(l *zap.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l.Named("Orchestrator")
		}
	}
}

// WithConcurrency sets the pool size used when a caller passes none.
func WithConcurrency(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithMaxDuration bounds every batch. Units not started by then are skipped
// and the batch is closed as failed. Keep it below the status store's stale age.
func WithMaxDuration(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.maxDuration = d }
}

func WithTasks(t TaskRecorder) OrchestratorOption {
	return func(o *Orchestrator) { o.tasks = t }
}

func NewOrchestrator(db *gorm.DB, executor *Executor, providers Configurer, status *StatusStore, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		db:          db,
		executor:    executor,
		providers:   providers,
		status:      status,
		concurrency: DefaultConcurrency,
		logger:      zap.NewNop(),
	}
	o.base, o.stop = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunBatch runs every active prompt of domainID against id and returns when
// the batch is finalized.
func (o *Orchestrator) RunBatch(ctx context.Context, domainID string, id provider.ID, concurrency int) (*BatchSummary, error) {
	if !o.track() {
		return nil, ErrShuttingDown
	}
	defer o.wg.Done()

	domain, prompts, err := o.prepare(ctx, domainID, id)
	if err != nil {
		return nil, err
	}
	startedAt, err := o.claim(ctx, domainID, len(prompts))
	if err != nil {
		return nil, err
	}
	taskID := o.recordTask(ctx, domainID, id, len(prompts))
	return o.execute(ctx, domain, prompts, id, concurrency, startedAt, taskID), nil
}

// StartBatch validates and claims synchronously, then runs the batch in the
// background with the configured concurrency.
func (o *Orchestrator) StartBatch(ctx context.Context, domainID string, id provider.ID) (*BatchAck, error) {
	if !o.track() {
		return nil, ErrShuttingDown
	}
	domain, prompts, err := o.prepare(ctx, domainID, id)
	var startedAt time.Time
	if err == nil {
		startedAt, err = o.claim(ctx, domainID, len(prompts))
	}
	if err != nil {
		o.wg.Done()
		return nil, err
	}
	taskID := o.recordTask(ctx, domainID, id, len(prompts))

	go func() {
		defer o.wg.Done()
		o.execute(o.base, domain, prompts, id, 0, startedAt, taskID)
	}()
	return &BatchAck{Accepted: true, TotalPrompts: len(prompts), TaskID: taskID}, nil
}

func (o *Orchestrator) track() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closing {
		return false
	}
	o.wg.Add(1)
	return true
}

// Close refuses new batches and interrupts the running ones, which then
// finalize as failed. Use Wait to block until they have.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closing = true
	o.mu.Unlock()
	o.stop()
}

// Wait blocks until every batch started through RunBatch or StartBatch has finished.
func (o *Orchestrator) Wait() { o.wg.Wait() }

func (o *Orchestrator) prepare(ctx context.Context, domainID string, id provider.ID) (*models.DomainModel, []models.PromptModel, error) {
	var domain models.DomainModel
	if err := o.db.WithContext(ctx).Where("id = ?", domainID).First(&domain).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrDomainNotFound
		}
		return nil, nil, err
	}

	if err := o.providers.Configured(id); err != nil {
		if errors.Is(err, provider.ErrNotConfigured) {
			return nil, nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, id)
		}
		return nil, nil, err
	}

	var candidates []models.PromptModel
	err := o.db.WithContext(ctx).
		Where("domain_id = ? AND active = ? AND archived = ?", domainID, true, false).
		Order("created_at ASC").
		Find(&candidates).Error
	if err != nil {
		return nil, nil, err
	}
	prompts := make([]models.PromptModel, 0, len(candidates))
	for i := range candidates {
		if candidates[i].Targets(string(id)) {
			prompts = append(prompts, candidates[i])
		}
	}
	if len(prompts) == 0 {
		return nil, nil, ErrNoActivePrompts
	}
	return &domain, prompts, nil
}

func (o *Orchestrator) claim(ctx context.Context, domainID string, total int) (time.Time, error) {
	startedAt, ok, err := o.status.TryBegin(ctx, domainID, total)
	if err != nil {
		return startedAt, err
	}
	if !ok {
		return startedAt, ErrBatchInProgress
	}
	return startedAt, nil
}

// bound derives the batch context: cancelled by the caller, by Close and by
// the max duration.
func (o *Orchestrator) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	var cancel context.CancelFunc
	if o.maxDuration > 0 {
		ctx, cancel = context.WithTimeout(ctx, o.maxDuration)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	stopAfter := context.AfterFunc(o.base, cancel)
	return ctx, func() {
		stopAfter()
		cancel()
	}
}

func (o *Orchestrator) execute(parent context.Context, domain *models.DomainModel, prompts []models.PromptModel, id provider.ID, concurrency int, startedAt time.Time, taskID string) (summary *BatchSummary) {
	if concurrency <= 0 {
		concurrency = o.concurrency
	}
	log := o.logger.With(zap.String("domain", domain.ID), zap.String("provider", string(id)))
	durable := context.WithoutCancel(parent)
	ctx, cancel := o.bound(parent)
	defer cancel()

	summary = &BatchSummary{
		DomainID:  domain.ID,
		Provider:  id,
		Total:     len(prompts),
		StartedAt: startedAt,
	}
	var mu sync.Mutex

	o.updateTask(durable, taskID, taskqueue.TaskRunning, nil, "")
	log.Info("batch started", zap.Int("total", len(prompts)), zap.Int("concurrency", concurrency))

	defer func() {
		if r := recover(); r != nil {
			log.Error("batch aborted by panic, forcing completion", zap.Any("panic", r))
		}
		mu.Lock()
		processed := summary.Processed
		mu.Unlock()

		status, taskStatus, errMsg := models.PromptRunCompleted, taskqueue.TaskCompleted, ""
		if processed < summary.Total && ctx.Err() != nil {
			summary.Interrupted = true
			status, taskStatus = models.PromptRunFailed, taskqueue.TaskFailed
			errMsg = fmt.Sprintf("interrupted after %d of %d prompts: %v", processed, summary.Total, context.Cause(ctx))
		}

		var owned bool
		if err := o.durableWrite(durable, func() (err error) {
			owned, err = o.status.Finish(durable, domain.ID, startedAt, status, processed)
			return err
		}); err != nil {
			log.Error("failed to finalize batch status", zap.Error(err))
		} else if !owned {
			log.Warn("batch was reclaimed before it finished, status left to the new batch")
		}
		summary.FinishedAt = time.Now().UTC()
		o.updateTask(durable, taskID, taskStatus, summary, errMsg)
		log.Info("batch finished",
			zap.String("status", string(status)),
			zap.Int("processed", summary.Processed),
			zap.Int("succeeded", summary.Succeeded),
			zap.Int("failed", summary.Failed),
			zap.Int("mentioned", summary.Mentioned),
			zap.Duration("took", summary.FinishedAt.Sub(startedAt)),
		)
	}()

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i := range prompts {
		if ctx.Err() != nil {
			break
		}
		prompt := &prompts[i]
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res := o.runUnit(ctx, domain, prompt, id)
			if res.Interrupted {
				return nil
			}

			mu.Lock()
			summary.Processed++
			switch {
			case res.Success:
				summary.Succeeded++
				if res.Mentioned {
					summary.Mentioned++
				}
			default:
				summary.Failed++
			}
			mu.Unlock()

			if err := o.durableWrite(durable, func() error {
				return o.status.Increment(durable, domain.ID, startedAt)
			}); err != nil {
				log.Warn("failed to record progress", zap.String("prompt", prompt.ID), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	return summary
}

// runUnit executes one prompt, turning a panic into a failed unit.
func (o *Orchestrator) runUnit(ctx context.Context, domain *models.DomainModel, prompt *models.PromptModel, id provider.ID) (res *RunResult) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("prompt run panicked", zap.String("prompt", prompt.ID), zap.Any("panic", r))
			res = &RunResult{Error: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return o.executor.run(ctx, domain, prompt, id)
}

func (o *Orchestrator) durableWrite(ctx context.Context, fn func() error) error {
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(writeAttempts),
		retry.Delay(writeDelay),
		retry.LastErrorOnly(true),
	)
}

func (o *Orchestrator) recordTask(ctx context.Context, domainID string, id provider.ID, total int) string {
	if o.tasks == nil {
		return ""
	}
	payload := batchPayload{DomainID: domainID, Provider: id, Total: total}
	task, err := o.tasks.Enqueue(ctx, TaskTypeBatch, payload, domainID+":"+string(id), domainID)
	if err != nil {
		o.logger.Warn("failed to record batch task", zap.String("domain", domainID), zap.Error(err))
		return ""
	}
	return task.ID
}

func (o *Orchestrator) updateTask(ctx context.Context, taskID string, status taskqueue.TaskStatus, result interface{}, errMsg string) {
	if o.tasks == nil || taskID == "" {
		return
	}
	if err := o.tasks.UpdateStatus(ctx, taskID, status, result, errMsg); err != nil {
		o.logger.Warn("failed to update batch task", zap.String("task", taskID), zap.Error(err))
	}
}

// RunScheduled runs a batch for every domain with active prompts against each
// provider in turn. Busy or empty domains and unconfigured providers are skipped.
func (o *Orchestrator) RunScheduled(ctx context.Context, providers []provider.ID) error {
	var domainIDs []string
	err := o.db.WithContext(ctx).Model(&models.PromptModel{}).
		Where("active = ? AND archived = ?", true, false).
		Distinct().
		Pluck("domain_id", &domainIDs).Error
	if err != nil {
		return err
	}

	var errs []error
	for _, id := range providers {
		for _, domainID := range domainIDs {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			summary, err := o.RunBatch(ctx, domainID, id, 0)
			switch {
			case err == nil:
				o.logger.Info("scheduled batch finished",
					zap.String("domain", domainID),
					zap.String("provider", string(id)),
					zap.Bool("interrupted", summary.Interrupted),
					zap.Int("succeeded", summary.Succeeded),
					zap.Int("failed", summary.Failed),
				)
			case errors.Is(err, ErrShuttingDown):
				return nil
			case errors.Is(err, ErrBatchInProgress), errors.Is(err, ErrNoActivePrompts), errors.Is(err, ErrProviderNotConfigured):
				o.logger.Info("scheduled batch skipped", zap.String("domain", domainID), zap.String("provider", string(id)), zap.Error(err))
			default:
				errs = append(errs, fmt.Errorf("domain %s provider %s: %w", domainID, id, err))
			}
		}
	}
	return errors.Join(errs...)
}
