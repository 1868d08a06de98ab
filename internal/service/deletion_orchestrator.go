package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/division-console/internal/models"
	"github.com/noah-isme/division-console/pkg/credentials"
	appErrors "github.com/noah-isme/division-console/pkg/errors"
	"github.com/noah-isme/division-console/pkg/jobs"
)

// EventListener observes every deletion event in emission order.
type EventListener func(models.DeletionProgressEvent)

// RefreshListener is told which list view to refetch after a batch finishes.
type RefreshListener func(path string)

// DeletionOrchestrator owns the deletion worker for the process lifetime and projects its
// events onto AppState in the order they were emitted.
type DeletionOrchestrator struct {
	processor         *DeletionProcessor
	state             *AppState
	metrics           *MetricsService
	logger            *zap.Logger
	supervisorTimeout time.Duration

	mu         sync.Mutex
	started    bool
	stopped    bool
	supervisor *time.Timer
	onEvent    []EventListener
	onRefresh  []RefreshListener
	pumpDone   chan struct{}
}

// NewDeletionOrchestrator constructs the orchestrator. A zero supervisorTimeout disables the
// automatic reset of a stuck deleting flag.
func NewDeletionOrchestrator(processor *DeletionProcessor, state *AppState, metrics *MetricsService, supervisorTimeout time.Duration, logger *zap.Logger) *DeletionOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if state == nil {
		state = NewAppState()
	}
	return &DeletionOrchestrator{
		processor:         processor,
		state:             state,
		metrics:           metrics,
		logger:            logger,
		supervisorTimeout: supervisorTimeout,
		pumpDone:          make(chan struct{}),
	}
}

// State returns the shared state the orchestrator writes to.
func (o *DeletionOrchestrator) State() *AppState {
	return o.state
}

// OnEvent registers a listener. Listeners run on the event pump and must not block.
func (o *DeletionOrchestrator) OnEvent(listener EventListener) {
	o.mu.Lock()
	o.onEvent = append(o.onEvent, listener)
	o.mu.Unlock()
}

// OnRefresh registers a listener for terminal events.
func (o *DeletionOrchestrator) OnRefresh(listener RefreshListener) {
	o.mu.Lock()
	o.onRefresh = append(o.onRefresh, listener)
	o.mu.Unlock()
}

// Start launches the worker and the event pump. Later calls are no-ops.
func (o *DeletionOrchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started || o.stopped {
		return
	}
	o.started = true
	o.processor.Start(ctx)
	go o.pump()
}

// Stop tears the worker down and waits for the pump to drain what was already emitted.
func (o *DeletionOrchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	started := o.started
	o.stopSupervisorLocked()
	o.mu.Unlock()

	o.processor.Stop()
	if started {
		<-o.pumpDone
	}
}

// SubmitBatch queues ids for deletion and marks the console as deleting. The returned error
// covers admission only; the outcome arrives later as events.
func (o *DeletionOrchestrator) SubmitBatch(ctx context.Context, ids []string, path string) (*models.DeletionBatchResponse, error) {
	ids = dedupeIDs(ids)
	path = strings.TrimSpace(path)
	fields := map[string]string{}
	if len(ids) == 0 {
		fields["ids"] = "Select at least one item to delete."
	}
	if path == "" {
		fields["path"] = "The path field is required."
	}
	if len(fields) > 0 {
		return nil, appErrors.WithFields(appErrors.Clone(appErrors.ErrValidation, "invalid deletion batch"), fields)
	}

	batch := models.DeletionBatch{
		ID:          uuid.NewString(),
		IDs:         ids,
		Path:        path,
		Token:       credentials.Bearer(ctx),
		SubmittedAt: time.Now().UTC(),
	}

	o.state.beginBatch()
	if err := o.processor.Submit(batch); err != nil {
		o.state.abandonBatch()
		return nil, admissionError(err)
	}
	o.armSupervisor()
	o.metrics.SetDeletionQueueDepth(o.processor.Depth())
	o.logger.Info("deletion batch submitted", zap.String("batch_id", batch.ID), zap.String("path", path), zap.Int("total", len(ids)))
	return &models.DeletionBatchResponse{BatchID: batch.ID, Total: len(ids)}, nil
}

// ClearDeleting resets the deleting flag and progress when a terminal event will not arrive.
func (o *DeletionOrchestrator) ClearDeleting() {
	o.mu.Lock()
	o.stopSupervisorLocked()
	o.mu.Unlock()
	o.state.clearDeleting()
}

func (o *DeletionOrchestrator) pump() {
	defer close(o.pumpDone)
	for event := range o.processor.Events() {
		outstanding := o.state.apply(event)

		o.mu.Lock()
		eventListeners := append([]EventListener(nil), o.onEvent...)
		refreshListeners := append([]RefreshListener(nil), o.onRefresh...)
		if outstanding {
			o.resetSupervisorLocked()
		} else {
			o.stopSupervisorLocked()
		}
		o.mu.Unlock()

		for _, listener := range eventListeners {
			listener(event)
		}
		if event.Terminal {
			o.metrics.SetDeletionQueueDepth(o.processor.Depth())
			for _, listener := range refreshListeners {
				listener(event.Path)
			}
		}
	}
}

func (o *DeletionOrchestrator) armSupervisor() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resetSupervisorLocked()
}

func (o *DeletionOrchestrator) resetSupervisorLocked() {
	if o.supervisorTimeout <= 0 || o.stopped {
		return
	}
	if o.supervisor == nil {
		o.supervisor = time.AfterFunc(o.supervisorTimeout, o.supervise)
		return
	}
	o.supervisor.Reset(o.supervisorTimeout)
}

func (o *DeletionOrchestrator) stopSupervisorLocked() {
	if o.supervisor != nil {
		o.supervisor.Stop()
	}
}

func (o *DeletionOrchestrator) supervise() {
	if !o.state.IsDeleting() {
		return
	}
	o.logger.Warn("no deletion progress within supervisor timeout, clearing deleting flag", zap.Duration("timeout", o.supervisorTimeout))
	o.state.clearDeleting()
}

func admissionError(err error) error {
	switch {
	case errors.Is(err, jobs.ErrFull):
		return appErrors.Wrap(err, appErrors.ErrQueueFull.Code, appErrors.ErrQueueFull.Status, appErrors.ErrQueueFull.Message)
	case errors.Is(err, jobs.ErrStopped), errors.Is(err, jobs.ErrNotStarted):
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "deletion worker is not running")
	default:
		return err
	}
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
