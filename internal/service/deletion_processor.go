package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/division-console/internal/models"
	"github.com/noah-isme/division-console/pkg/credentials"
	appErrors "github.com/noah-isme/division-console/pkg/errors"
	"github.com/noah-isme/division-console/pkg/jobs"
)

const deletionJobType = "division.delete_batch"

type itemDeleter interface {
	DeleteItem(ctx context.Context, id string) (string, error)
}

type deletionRecorder interface {
	Record(ctx context.Context, entry *models.DeletionAuditEntry) error
}

// DeletionProcessorConfig tunes the worker.
type DeletionProcessorConfig struct {
	QueueSize   int
	EventBuffer int
	ItemTimeout time.Duration
}

// DeletionProcessor deletes batches one item at a time on a dedicated goroutine.
// Batches arrive through a FIFO queue and progress leaves through Events.
type DeletionProcessor struct {
	deleter     itemDeleter
	audit       deletionRecorder
	metrics     *MetricsService
	logger      *zap.Logger
	itemTimeout time.Duration

	queue     *jobs.Queue
	events    chan models.DeletionProgressEvent
	closeOnce sync.Once
}

// NewDeletionProcessor wires the worker. audit may be nil.
func NewDeletionProcessor(deleter itemDeleter, audit deletionRecorder, metrics *MetricsService, cfg DeletionProcessorConfig, logger *zap.Logger) *DeletionProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = 30 * time.Second
	}
	p := &DeletionProcessor{
		deleter:     deleter,
		audit:       audit,
		metrics:     metrics,
		logger:      logger,
		itemTimeout: cfg.ItemTimeout,
		events:      make(chan models.DeletionProgressEvent, cfg.EventBuffer),
	}
	p.queue = jobs.NewQueue("deletion", p.handle, jobs.QueueConfig{BufferSize: cfg.QueueSize, Logger: logger})
	return p
}

// Start launches the worker goroutine.
func (p *DeletionProcessor) Start(ctx context.Context) {
	p.queue.Start(ctx)
}

// Stop tears the worker down. The in-flight batch is abandoned without a terminal event,
// queued batches are dropped and Events is closed once the worker has exited.
func (p *DeletionProcessor) Stop() {
	p.queue.Stop()
	p.closeOnce.Do(func() { close(p.events) })
}

// Events is the ordered outbound event stream.
func (p *DeletionProcessor) Events() <-chan models.DeletionProgressEvent {
	return p.events
}

// Submit queues a batch behind any batch already running.
func (p *DeletionProcessor) Submit(batch models.DeletionBatch) error {
	if len(batch.IDs) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "deletion batch is empty")
	}
	return p.queue.Enqueue(jobs.Job{ID: batch.ID, Type: deletionJobType, Payload: batch})
}

// Depth returns the number of batches waiting behind the running one.
func (p *DeletionProcessor) Depth() int {
	return p.queue.Depth()
}

func (p *DeletionProcessor) handle(ctx context.Context, job jobs.Job) error {
	batch, ok := job.Payload.(models.DeletionBatch)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
	}
	p.metrics.SetDeletionQueueDepth(p.queue.Depth())
	return p.process(ctx, batch)
}

func (p *DeletionProcessor) process(ctx context.Context, batch models.DeletionBatch) error {
	start := time.Now()
	total := len(batch.IDs)
	failed := 0
	logger := p.logger.With(zap.String("batch_id", batch.ID), zap.String("path", batch.Path), zap.Int("total", total))
	logger.Info("deletion batch started")

	authCtx := credentials.WithBearer(ctx, batch.Token)
	for i, id := range batch.IDs {
		if ctx.Err() != nil {
			logger.Warn("deletion batch abandoned", zap.Int("completed", i))
			return ctx.Err()
		}

		message, err := p.deleteItem(authCtx, id)
		if ctx.Err() != nil {
			logger.Warn("deletion batch abandoned", zap.Int("completed", i))
			return ctx.Err()
		}

		completed := i + 1
		event := models.DeletionProgressEvent{
			BatchID:   batch.ID,
			Completed: completed,
			Total:     total,
			Percent:   models.ProgressPercent(completed, total),
		}
		if err != nil {
			failed++
			message = failureReason(err)
			event.Severity = models.SeverityError
			event.Message = fmt.Sprintf("Failed to delete %s (%d/%d): %s", id, completed, total, message)
			logger.Warn("deletion item failed", zap.String("id", id), zap.Error(err))
		} else {
			event.Severity = models.SeverityInfo
			event.Message = fmt.Sprintf("Deleted %s (%d/%d)", id, completed, total)
		}
		event.Failed = failed
		p.metrics.RecordDeletionItem(err == nil)
		p.record(ctx, batch, id, err, message)

		if !p.emit(ctx, event) {
			return ctx.Err()
		}
	}

	terminal := models.DeletionProgressEvent{
		BatchID:   batch.ID,
		Completed: total,
		Total:     total,
		Percent:   100,
		Failed:    failed,
		Path:      batch.Path,
		Terminal:  true,
	}
	if failed > 0 {
		terminal.Severity = models.SeverityError
		terminal.Message = fmt.Sprintf("Deleted %d/%d items, %d failed", total-failed, total, failed)
	} else {
		terminal.Severity = models.SeveritySuccess
		terminal.Message = fmt.Sprintf("Deleted %d/%d items", total, total)
	}
	p.metrics.ObserveDeletionBatch(terminal.Severity, time.Since(start))
	logger.Info("deletion batch finished", zap.Int("failed", failed), zap.Duration("elapsed", time.Since(start)))

	if !p.emit(ctx, terminal) {
		return ctx.Err()
	}
	return nil
}

// deleteItem bounds one remote call. Expiry counts as a failure of that item only.
func (p *DeletionProcessor) deleteItem(ctx context.Context, id string) (string, error) {
	itemCtx, cancel := context.WithTimeout(ctx, p.itemTimeout)
	defer cancel()

	type outcome struct {
		message string
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		message, err := p.deleter.DeleteItem(itemCtx, id)
		done <- outcome{message: message, err: err}
	}()

	select {
	case res := <-done:
		return res.message, res.err
	case <-itemCtx.Done():
		return "", itemCtx.Err()
	}
}

func (p *DeletionProcessor) emit(ctx context.Context, event models.DeletionProgressEvent) bool {
	select {
	case p.events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *DeletionProcessor) record(ctx context.Context, batch models.DeletionBatch, id string, itemErr error, message string) {
	if p.audit == nil {
		return
	}
	status := models.DeletionAuditDeleted
	if itemErr != nil {
		status = models.DeletionAuditFailed
	}
	entry := &models.DeletionAuditEntry{
		BatchID:    batch.ID,
		DivisionID: id,
		Path:       batch.Path,
		Status:     status,
		Message:    message,
	}
	if err := p.audit.Record(ctx, entry); err != nil {
		p.logger.Warn("record deletion audit failed", zap.String("batch_id", batch.ID), zap.String("id", id), zap.Error(err))
	}
}

func failureReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	if appErr := appErrors.FromError(err); appErr != nil && appErr.Code != appErrors.ErrInternal.Code {
		return appErr.Message
	}
	return err.Error()
}
