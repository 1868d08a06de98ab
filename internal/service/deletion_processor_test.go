package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/division-console/internal/models"
	"github.com/noah-isme/division-console/pkg/credentials"
	appErrors "github.com/noah-isme/division-console/pkg/errors"
)

type deleterFunc func(ctx context.Context, id string) (string, error)

func (f deleterFunc) DeleteItem(ctx context.Context, id string) (string, error) {
	return f(ctx, id)
}

type auditStub struct {
	mu      sync.Mutex
	entries []models.DeletionAuditEntry
}

func (a *auditStub) Record(ctx context.Context, entry *models.DeletionAuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, *entry)
	return nil
}

func (a *auditStub) snapshot() []models.DeletionAuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.DeletionAuditEntry(nil), a.entries...)
}

func newTestProcessor(t *testing.T, deleter itemDeleter, audit deletionRecorder, cfg DeletionProcessorConfig) *DeletionProcessor {
	t.Helper()
	p := NewDeletionProcessor(deleter, audit, nil, cfg, nil)
	p.Start(context.Background())
	t.Cleanup(p.Stop)
	return p
}

// collectUntilTerminals reads events until n terminal events have been seen.
func collectUntilTerminals(t *testing.T, events <-chan models.DeletionProgressEvent, n int) []models.DeletionProgressEvent {
	t.Helper()
	var out []models.DeletionProgressEvent
	deadline := time.After(3 * time.Second)
	for seen := 0; seen < n; {
		select {
		case event, ok := <-events:
			require.True(t, ok, "events closed early")
			out = append(out, event)
			if event.Terminal {
				seen++
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %d terminal events, got %d events", n, len(out))
		}
	}
	return out
}

func submit(t *testing.T, p *DeletionProcessor, id string, ids ...string) {
	t.Helper()
	require.NoError(t, p.Submit(models.DeletionBatch{ID: id, IDs: ids, Path: "/division"}))
}

func TestDeletionProcessorEmitsProgressThenTerminal(t *testing.T) {
	audit := &auditStub{}
	p := newTestProcessor(t, deleterFunc(func(ctx context.Context, id string) (string, error) {
		return "Division deleted", nil
	}), audit, DeletionProcessorConfig{})

	submit(t, p, "batch-1", "1", "2", "3")
	events := collectUntilTerminals(t, p.Events(), 1)

	require.Len(t, events, 4)
	lastPercent := 0
	for i, event := range events[:3] {
		assert.Equal(t, i+1, event.Completed)
		assert.Equal(t, 3, event.Total)
		assert.GreaterOrEqual(t, event.Percent, lastPercent)
		assert.Equal(t, models.SeverityInfo, event.Severity)
		assert.False(t, event.Terminal)
		assert.Empty(t, event.Path)
		lastPercent = event.Percent
	}
	assert.Equal(t, 33, events[0].Percent)
	assert.Equal(t, 67, events[1].Percent)
	assert.Equal(t, 100, events[2].Percent)

	terminal := events[3]
	assert.True(t, terminal.Terminal)
	assert.Equal(t, models.SeveritySuccess, terminal.Severity)
	assert.Equal(t, 100, terminal.Percent)
	assert.Equal(t, 3, terminal.Completed)
	assert.Equal(t, "/division", terminal.Path)
	assert.Equal(t, "/division", terminal.Wire().Path)

	entries := audit.snapshot()
	require.Len(t, entries, 3)
	assert.Equal(t, models.DeletionAuditDeleted, entries[0].Status)
	assert.Equal(t, "Division deleted", entries[0].Message)
}

func TestDeletionProcessorContinuesAfterItemFailure(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
	)
	p := newTestProcessor(t, deleterFunc(func(ctx context.Context, id string) (string, error) {
		mu.Lock()
		calls = append(calls, id)
		mu.Unlock()
		if id == "2" {
			return "", appErrors.Clone(appErrors.ErrGateway, "Division still has children")
		}
		return "", nil
	}), nil, DeletionProcessorConfig{})

	submit(t, p, "batch-1", "1", "2", "3")
	events := collectUntilTerminals(t, p.Events(), 1)

	require.Len(t, events, 4)
	assert.Equal(t, models.SeverityInfo, events[0].Severity)
	assert.Equal(t, models.SeverityError, events[1].Severity)
	assert.Contains(t, events[1].Message, "Division still has children")
	assert.Equal(t, models.SeverityInfo, events[2].Severity)

	terminal := events[3]
	assert.Equal(t, models.SeverityError, terminal.Severity)
	assert.Equal(t, 3, terminal.Completed)
	assert.Equal(t, 1, terminal.Failed)
	assert.Equal(t, 100, terminal.Percent)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"1", "2", "3"}, calls)
}

func TestDeletionProcessorTimeoutIsItemFailure(t *testing.T) {
	p := newTestProcessor(t, deleterFunc(func(ctx context.Context, id string) (string, error) {
		if id == "slow" {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "", nil
	}), nil, DeletionProcessorConfig{ItemTimeout: 20 * time.Millisecond})

	submit(t, p, "batch-1", "slow", "fast")
	events := collectUntilTerminals(t, p.Events(), 1)

	require.Len(t, events, 3)
	assert.Equal(t, models.SeverityError, events[0].Severity)
	assert.Contains(t, events[0].Message, "timed out")
	assert.Equal(t, models.SeverityInfo, events[1].Severity)
	assert.Equal(t, models.SeverityError, events[2].Severity)
}

func TestDeletionProcessorTimeoutBoundsUnresponsiveCall(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	p := newTestProcessor(t, deleterFunc(func(ctx context.Context, id string) (string, error) {
		if id == "stuck" {
			<-release
		}
		return "", nil
	}), nil, DeletionProcessorConfig{ItemTimeout: 20 * time.Millisecond})

	submit(t, p, "batch-1", "stuck", "ok")
	events := collectUntilTerminals(t, p.Events(), 1)

	require.Len(t, events, 3)
	assert.Equal(t, models.SeverityError, events[0].Severity)
	assert.Equal(t, 1, events[2].Failed)
}

func TestDeletionProcessorQueuesSecondBatchWithoutInterleaving(t *testing.T) {
	var (
		mu       sync.Mutex
		calls    []string
		inFlight int
		overlap  bool
	)
	p := newTestProcessor(t, deleterFunc(func(ctx context.Context, id string) (string, error) {
		mu.Lock()
		inFlight++
		if inFlight > 1 {
			overlap = true
		}
		mu.Unlock()
		time.Sleep(2 * time.Millisecond)
		mu.Lock()
		inFlight--
		calls = append(calls, id)
		mu.Unlock()
		return "", nil
	}), nil, DeletionProcessorConfig{})

	submit(t, p, "a", "a1", "a2", "a3")
	submit(t, p, "b", "b1", "b2")
	events := collectUntilTerminals(t, p.Events(), 2)

	require.Len(t, events, 7)
	assert.Equal(t, "a", events[3].BatchID)
	assert.True(t, events[3].Terminal)
	for _, event := range events[4:] {
		assert.Equal(t, "b", event.BatchID)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a1", "a2", "a3", "b1", "b2"}, calls)
	assert.False(t, overlap)
}

func TestDeletionProcessorForwardsBatchCredential(t *testing.T) {
	tokens := make(chan string, 1)
	p := newTestProcessor(t, deleterFunc(func(ctx context.Context, id string) (string, error) {
		tokens <- credentials.Bearer(ctx)
		return "", nil
	}), nil, DeletionProcessorConfig{})

	require.NoError(t, p.Submit(models.DeletionBatch{ID: "b", IDs: []string{"1"}, Path: "/division", Token: "secret"}))
	collectUntilTerminals(t, p.Events(), 1)
	assert.Equal(t, "secret", <-tokens)
}

func TestDeletionProcessorTeardownStopsWithoutTerminal(t *testing.T) {
	started := make(chan struct{})
	var (
		mu    sync.Mutex
		calls []string
	)
	p := NewDeletionProcessor(deleterFunc(func(ctx context.Context, id string) (string, error) {
		mu.Lock()
		calls = append(calls, id)
		mu.Unlock()
		if id == "2" {
			close(started)
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "", nil
	}), nil, nil, DeletionProcessorConfig{ItemTimeout: time.Minute}, nil)
	p.Start(context.Background())

	require.NoError(t, p.Submit(models.DeletionBatch{ID: "b", IDs: []string{"1", "2", "3"}, Path: "/division"}))
	<-started
	p.Stop()

	var events []models.DeletionProgressEvent
	for event := range p.Events() {
		events = append(events, event)
	}
	for _, event := range events {
		assert.False(t, event.Terminal)
	}
	assert.LessOrEqual(t, len(events), 1)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"1", "2"}, calls)

	err := p.Submit(models.DeletionBatch{ID: "late", IDs: []string{"4"}, Path: "/division"})
	require.Error(t, err)
}

func TestDeletionProcessorRejectsEmptyBatch(t *testing.T) {
	p := newTestProcessor(t, deleterFunc(func(ctx context.Context, id string) (string, error) {
		return "", nil
	}), nil, DeletionProcessorConfig{})

	err := p.Submit(models.DeletionBatch{ID: "empty", Path: "/division"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
