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
	appErrors "github.com/noah-isme/division-console/pkg/errors"
)

type divisionGatewayStub struct {
	mu        sync.Mutex
	items     map[int64]*models.Division
	nextID    int64
	listErr   error
	findErr   map[int64]error
	findCalls map[int64]int
	deleted   []int64
}

func newDivisionGatewayStub(items ...models.Division) *divisionGatewayStub {
	stub := &divisionGatewayStub{
		items:     map[int64]*models.Division{},
		nextID:    100,
		findErr:   map[int64]error{},
		findCalls: map[int64]int{},
	}
	for i := range items {
		item := items[i]
		stub.items[item.ID] = &item
	}
	return stub
}

func (g *divisionGatewayStub) List(ctx context.Context, filter models.DivisionFilter) (*models.DivisionPage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, g.listErr
	}
	page := &models.DivisionPage{Items: []models.Division{}, CurrentPage: filter.Page, LastPage: 1, PerPage: 10}
	for _, item := range g.items {
		page.Items = append(page.Items, *item)
	}
	page.TotalCount = len(page.Items)
	return page, nil
}

func (g *divisionGatewayStub) FindByID(ctx context.Context, id int64) (*models.Division, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.findCalls[id]++
	if err := g.findErr[id]; err != nil {
		return nil, err
	}
	item, ok := g.items[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "division not found")
	}
	copied := *item
	return &copied, nil
}

func (g *divisionGatewayStub) Create(ctx context.Context, input models.DivisionInput) (*models.Division, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	division := &models.Division{ID: g.nextID, Name: input.Name, Description: input.Description, ParentID: input.ParentID, CreatedAt: time.Now()}
	g.items[division.ID] = division
	copied := *division
	return &copied, nil
}

func (g *divisionGatewayStub) Update(ctx context.Context, id int64, input models.DivisionInput) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	item, ok := g.items[id]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "division not found")
	}
	item.Name = input.Name
	item.Description = input.Description
	item.ParentID = input.ParentID
	return nil
}

func (g *divisionGatewayStub) Delete(ctx context.Context, id int64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.items[id]; !ok {
		return "", appErrors.Clone(appErrors.ErrGateway, "Division not found")
	}
	delete(g.items, id)
	g.deleted = append(g.deleted, id)
	return "Division deleted", nil
}

type memoryCacheRepo struct {
	mu    sync.Mutex
	items map[string]interface{}
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{items: map[string]interface{}{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	division, ok := value.(*models.Division)
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*(dest.(*models.Division)) = *division
	return nil
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *memoryCacheRepo) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.items, key)
	}
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = map[string]interface{}{}
	return nil
}

func int64Ptr(v int64) *int64 { return &v }

func strPtr(v string) *string { return &v }

func TestDivisionServiceFetchPageReturnsEmptyPageOnGatewayError(t *testing.T) {
	gateway := newDivisionGatewayStub()
	gateway.listErr = appErrors.Clone(appErrors.ErrGateway, "")
	svc := NewDivisionService(gateway, nil, nil, nil)

	page, err := svc.FetchPage(context.Background(), 1, "")
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
	assert.Equal(t, 0, page.TotalCount)
	assert.Equal(t, 1, page.CurrentPage)
}

func TestDivisionServiceFetchPageRejectsInvalidPage(t *testing.T) {
	svc := NewDivisionService(newDivisionGatewayStub(), nil, nil, nil)

	_, err := svc.FetchPage(context.Background(), 0, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Contains(t, appErrors.FromError(err).Fields, "page")
}

func TestDivisionServiceFetchOneEmbedsParent(t *testing.T) {
	gateway := newDivisionGatewayStub(
		models.Division{ID: 1, Name: "Head Office"},
		models.Division{ID: 2, Name: "Finance", ParentID: int64Ptr(1)},
	)
	svc := NewDivisionService(gateway, nil, nil, nil)

	division, err := svc.FetchOne(context.Background(), 2)
	require.NoError(t, err)
	require.NotNil(t, division.DivisionParent)
	assert.Equal(t, "Head Office", division.DivisionParent.Name)
	assert.Nil(t, division.DivisionParent.DivisionParent)
}

func TestDivisionServiceFetchOneParentFailureYieldsNilParent(t *testing.T) {
	gateway := newDivisionGatewayStub(models.Division{ID: 2, Name: "Finance", ParentID: int64Ptr(1)})
	gateway.findErr[1] = appErrors.Clone(appErrors.ErrGateway, "")
	svc := NewDivisionService(gateway, nil, nil, nil)

	division, err := svc.FetchOne(context.Background(), 2)
	require.NoError(t, err)
	require.NotNil(t, division)
	assert.Nil(t, division.DivisionParent)
}

func TestDivisionServiceFetchOneMissingReturnsNil(t *testing.T) {
	svc := NewDivisionService(newDivisionGatewayStub(), nil, nil, nil)

	division, err := svc.FetchOne(context.Background(), 9)
	require.NoError(t, err)
	assert.Nil(t, division)
}

func TestDivisionServiceCreateValidation(t *testing.T) {
	svc := NewDivisionService(newDivisionGatewayStub(), nil, nil, nil)

	_, err := svc.Create(context.Background(), models.DivisionInput{Name: "   "})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, "The name field is required.", appErr.Fields["name"])
}

func TestDivisionServiceCreateThenFetchRoundTrip(t *testing.T) {
	gateway := newDivisionGatewayStub(models.Division{ID: 1, Name: "Head Office"})
	svc := NewDivisionService(gateway, nil, nil, nil)

	input := models.DivisionInput{Name: " Finance ", ParentID: int64Ptr(1), Description: strPtr("Money matters")}
	created, err := svc.Create(context.Background(), input)
	require.NoError(t, err)

	fetched, err := svc.FetchOne(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, "Finance", fetched.Name)
	require.NotNil(t, fetched.Description)
	assert.Equal(t, "Money matters", *fetched.Description)
	require.NotNil(t, fetched.ParentID)
	assert.Equal(t, int64(1), *fetched.ParentID)
	assert.Equal(t, "Head Office", fetched.DivisionParent.Name)
}

func TestDivisionServiceUpdateRejectsSelfParent(t *testing.T) {
	gateway := newDivisionGatewayStub(models.Division{ID: 4, Name: "Ops"})
	svc := NewDivisionService(gateway, nil, nil, nil)

	err := svc.Update(context.Background(), 4, models.DivisionInput{Name: "Ops", ParentID: int64Ptr(4)})
	require.Error(t, err)
	assert.Equal(t, "A division cannot be its own parent.", appErrors.FromError(err).Fields["division_id"])
}

func TestDivisionServiceUpdateInvalidatesCachedLookup(t *testing.T) {
	gateway := newDivisionGatewayStub(models.Division{ID: 1, Name: "Head Office"})
	cache := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, nil, true)
	svc := NewDivisionService(gateway, cache, nil, nil)
	ctx := context.Background()

	parent, err := svc.Lookup(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Head Office", parent.Name)
	_, err = svc.Lookup(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, gateway.findCalls[1])

	require.NoError(t, svc.Update(ctx, 1, models.DivisionInput{Name: "HQ"}))
	parent, err = svc.Lookup(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "HQ", parent.Name)
	assert.Equal(t, 2, gateway.findCalls[1])
}

func TestDivisionServiceDeleteItem(t *testing.T) {
	gateway := newDivisionGatewayStub(models.Division{ID: 3, Name: "Legal"})
	svc := NewDivisionService(gateway, nil, nil, nil)

	message, err := svc.DeleteItem(context.Background(), "3")
	require.NoError(t, err)
	assert.Equal(t, "Division deleted", message)
	assert.Equal(t, []int64{3}, gateway.deleted)

	_, err = svc.DeleteItem(context.Background(), "abc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestDivisionServiceOptionsExcludesCurrent(t *testing.T) {
	gateway := newDivisionGatewayStub(
		models.Division{ID: 1, Name: "Head Office"},
		models.Division{ID: 2, Name: "Finance"},
	)
	svc := NewDivisionService(gateway, nil, nil, nil)

	options, err := svc.Options(context.Background(), "", 0, 2)
	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, models.DivisionOption{ID: 1, Label: "Head Office"}, options[0])
}
