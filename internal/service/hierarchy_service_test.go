package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/division-console/internal/models"
	appErrors "github.com/noah-isme/division-console/pkg/errors"
)

func drainParentStates(t *testing.T, states <-chan models.ParentState) []models.ParentState {
	t.Helper()
	var out []models.ParentState
	for state := range states {
		out = append(out, state)
	}
	return out
}

func TestHierarchyServiceResolveNoParent(t *testing.T) {
	svc := NewHierarchyService(NewDivisionService(newDivisionGatewayStub(), nil, nil, nil), nil)

	states := drainParentStates(t, svc.Resolve(context.Background(), nil))
	require.Len(t, states, 1)
	assert.Equal(t, models.ParentNone, states[0].Status)
	assert.Equal(t, "No Parent", states[0].Label())
}

func TestHierarchyServiceResolveNotFound(t *testing.T) {
	svc := NewHierarchyService(NewDivisionService(newDivisionGatewayStub(), nil, nil, nil), nil)

	states := drainParentStates(t, svc.Resolve(context.Background(), int64Ptr(5)))
	require.Len(t, states, 2)
	assert.Equal(t, models.ParentLoading, states[0].Status)
	assert.Equal(t, models.ParentNotFound, states[1].Status)
	assert.Equal(t, "Not Found", states[1].Label())
}

func TestHierarchyServiceResolveFound(t *testing.T) {
	gateway := newDivisionGatewayStub(models.Division{ID: 5, Name: "Finance", ParentID: int64Ptr(2)})
	svc := NewHierarchyService(NewDivisionService(gateway, nil, nil, nil), nil)

	states := drainParentStates(t, svc.Resolve(context.Background(), int64Ptr(5)))
	require.Len(t, states, 2)
	assert.Equal(t, "Loading...", states[0].Label())
	assert.Equal(t, models.ParentResolved, states[1].Status)
	assert.Equal(t, "Finance", states[1].Label())
	assert.Equal(t, 1, gateway.findCalls[5])
	assert.Zero(t, gateway.findCalls[2])
}

func TestHierarchyServiceResolveTerminalTreatsErrorsAsNotFound(t *testing.T) {
	gateway := newDivisionGatewayStub(models.Division{ID: 5, Name: "Finance"})
	gateway.findErr[5] = appErrors.Clone(appErrors.ErrGateway, "")
	svc := NewHierarchyService(NewDivisionService(gateway, nil, nil, nil), nil)

	state := svc.ResolveTerminal(context.Background(), int64Ptr(5))
	assert.True(t, state.Terminal())
	assert.Equal(t, models.ParentNotFound, state.Status)
}
