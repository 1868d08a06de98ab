package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/division-console/internal/models"
)

type parentLookup interface {
	Lookup(ctx context.Context, id int64) (*models.Division, error)
}

// HierarchyService resolves a division's parent for display. Only one hop is followed.
type HierarchyService struct {
	lookup parentLookup
	logger *zap.Logger
}

// NewHierarchyService constructs the resolver.
func NewHierarchyService(lookup parentLookup, logger *zap.Logger) *HierarchyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HierarchyService{lookup: lookup, logger: logger}
}

// Resolve streams the states of resolving parentID. A nil parent yields a single NoParent state;
// otherwise Loading is followed by Resolved or NotFound. The channel is closed after the terminal state.
func (s *HierarchyService) Resolve(ctx context.Context, parentID *int64) <-chan models.ParentState {
	states := make(chan models.ParentState, 2)
	if parentID == nil || *parentID <= 0 {
		states <- models.ParentState{Status: models.ParentNone}
		close(states)
		return states
	}

	id := *parentID
	states <- models.ParentState{Status: models.ParentLoading, ParentID: &id}
	go func() {
		defer close(states)
		states <- s.resolveOnce(ctx, id)
	}()
	return states
}

// ResolveTerminal blocks until the terminal state is known.
func (s *HierarchyService) ResolveTerminal(ctx context.Context, parentID *int64) models.ParentState {
	var last models.ParentState
	for state := range s.Resolve(ctx, parentID) {
		last = state
	}
	return last
}

func (s *HierarchyService) resolveOnce(ctx context.Context, id int64) models.ParentState {
	parent, err := s.lookup.Lookup(ctx, id)
	if err != nil {
		s.logger.Debug("parent resolution failed", zap.Int64("parent_id", id), zap.Error(err))
		return models.ParentState{Status: models.ParentNotFound, ParentID: &id}
	}
	if parent == nil {
		return models.ParentState{Status: models.ParentNotFound, ParentID: &id}
	}
	return models.ParentState{Status: models.ParentResolved, ParentID: &id, Name: parent.Name}
}
