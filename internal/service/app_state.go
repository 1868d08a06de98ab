package service

import (
	"strings"
	"sync"

	"github.com/noah-isme/division-console/internal/models"
)

// AppState is the console's shared state: search text, the latest toast, deletion progress
// and whether deletions are outstanding. Deletion fields are written only by the orchestrator.
type AppState struct {
	mu          sync.RWMutex
	search      string
	toast       models.ToastState
	progress    int
	outstanding int
}

// NewAppState returns an empty state.
func NewAppState() *AppState {
	return &AppState{toast: models.ToastState{Variant: models.SeverityDefault}}
}

// Snapshot returns a consistent copy of the state.
func (s *AppState) Snapshot() models.AppStateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.AppStateSnapshot{
		Search:           s.search,
		Toast:            s.toast,
		DeletingProgress: s.progress,
		IsDeleting:       s.outstanding > 0,
	}
}

// Search returns the stored list search text.
func (s *AppState) Search() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.search
}

// SetSearch stores the list search text.
func (s *AppState) SetSearch(search string) {
	s.mu.Lock()
	s.search = strings.TrimSpace(search)
	s.mu.Unlock()
}

// IsDeleting reports whether any submitted batch has not finished.
func (s *AppState) IsDeleting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outstanding > 0
}

func (s *AppState) beginBatch() {
	s.mu.Lock()
	if s.outstanding == 0 {
		s.progress = 0
	}
	s.outstanding++
	s.mu.Unlock()
}

func (s *AppState) abandonBatch() {
	s.mu.Lock()
	if s.outstanding > 0 {
		s.outstanding--
	}
	s.mu.Unlock()
}

// apply projects one event. It returns whether batches are still outstanding.
func (s *AppState) apply(event models.DeletionProgressEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = event.Percent
	s.toast = models.ToastState{Message: event.Message, Variant: event.Severity, Path: event.Path}
	if event.Terminal && s.outstanding > 0 {
		s.outstanding--
	}
	return s.outstanding > 0
}

func (s *AppState) clearDeleting() {
	s.mu.Lock()
	s.outstanding = 0
	s.progress = 0
	s.mu.Unlock()
}
