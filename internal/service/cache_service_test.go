package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

type failingCache struct{}

func (failingCache) Get(ctx context.Context, key string, dest interface{}) error {
	return errors.New("connection refused")
}

func (failingCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return errors.New("connection refused")
}

func (failingCache) DeleteByPattern(ctx context.Context, pattern string) error {
	return errors.New("connection refused")
}

func TestCacheServiceRecordsHitsAndMisses(t *testing.T) {
	metrics := NewMetricsService()
	repo := &memoryCache{}
	cache := NewCacheService(repo, metrics, time.Minute, nil, true)
	ctx := context.Background()

	var page cachedTimetablePage
	hit, err := cache.Get(ctx, "k", &page)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.Set(ctx, "k", cachedTimetablePage{Total: 3}, 0))
	hit, err = cache.Get(ctx, "k", &page)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 3, page.Total)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheHits))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheMisses))
	assert.Equal(t, 0.5, testutil.ToFloat64(metrics.cacheHitRatio))
}

func TestCacheServiceDisabled(t *testing.T) {
	cache := NewCacheService(failingCache{}, nil, 0, nil, false)
	hit, err := cache.Get(context.Background(), "k", &cachedTimetablePage{})
	assert.False(t, hit)
	assert.NoError(t, err)
	assert.NoError(t, cache.Set(context.Background(), "k", 1, 0))

	var nilCache *CacheService
	assert.False(t, nilCache.Enabled())
	nilCache.InvalidateTimetables(context.Background())
}

func TestCacheServiceSurfacesBackendErrors(t *testing.T) {
	cache := NewCacheService(failingCache{}, nil, 0, nil, true)
	hit, err := cache.Get(context.Background(), "k", &cachedTimetablePage{})
	assert.False(t, hit)
	assert.Error(t, err)
	assert.Error(t, cache.Invalidate(context.Background(), timetableCachePattern))
}

func TestTimetableCacheKeyIsStable(t *testing.T) {
	day := 2
	a := timetableCacheKey(models.TimetableFilter{StudentID: "X", DayOfWeek: &day, Page: 1, PageSize: 20})
	b := timetableCacheKey(models.TimetableFilter{StudentID: "X", DayOfWeek: &day, Page: 1, PageSize: 20})
	c := timetableCacheKey(models.TimetableFilter{StudentID: "Y", Page: 1, PageSize: 20})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Regexp(t, `^timetable:list:[0-9a-f]{40}$`, a)
}
