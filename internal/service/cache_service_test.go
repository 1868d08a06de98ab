package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/division-console/internal/models"
)

type failingCacheRepo struct {
	*memoryCacheRepo
	err error
}

func (f failingCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	return f.err
}

func TestCacheServiceHitMissAndMetrics(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewCacheService(newMemoryCacheRepo(), metrics, 0, nil, true)
	ctx := context.Background()

	var out models.Division
	hit, err := svc.Get(ctx, DivisionCacheKey(1), &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, DivisionCacheKey(1), &models.Division{ID: 1, Name: "Finance"}, 0))
	hit, err = svc.Get(ctx, DivisionCacheKey(1), &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "Finance", out.Name)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.CacheHits)
	assert.Equal(t, uint64(1), snapshot.CacheMisses)
	assert.InDelta(t, 0.5, snapshot.CacheHitRatio, 0.001)
}

func TestCacheServiceInvalidateDivisions(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, nil, 0, nil, true)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, DivisionCacheKey(1), &models.Division{ID: 1}, 0))
	require.NoError(t, svc.Set(ctx, DivisionCacheKey(2), &models.Division{ID: 2}, 0))
	require.NoError(t, svc.InvalidateDivisions(ctx))

	var out models.Division
	hit, err := svc.Get(ctx, DivisionCacheKey(2), &out)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())

	svc := NewCacheService(newMemoryCacheRepo(), nil, 0, nil, false)
	assert.NoError(t, svc.Set(context.Background(), "k", "v", 0))
	hit, err := svc.Get(context.Background(), "k", new(string))
	assert.NoError(t, err)
	assert.False(t, hit)
}

func TestCacheServiceSurfacesBackendErrors(t *testing.T) {
	svc := NewCacheService(failingCacheRepo{memoryCacheRepo: newMemoryCacheRepo(), err: errors.New("connection reset")}, nil, 0, nil, true)

	hit, err := svc.Get(context.Background(), DivisionCacheKey(1), &models.Division{})
	assert.False(t, hit)
	assert.EqualError(t, err, "connection reset")
}
