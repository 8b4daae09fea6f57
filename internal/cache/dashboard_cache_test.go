package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/phishguard-backend/internal/model"
)

func setupCache(t *testing.T) (*DashboardCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return &DashboardCache{Client: client, TTL: 30 * time.Second, Log: zerolog.Nop()}, mr
}

func TestDashboardRoundTripAndExpiry(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()
	org := uuid.New()

	_, ok := c.GetDashboard(ctx, org)
	assert.False(t, ok)

	want := &model.Dashboard{
		Summary:    model.DashboardSummary{TotalCampaigns: 3, AvgClickRate: 12.5},
		ClickTrend: []model.TimeSeriesPoint{{Date: "2026-03-10", Count: 2}},
	}
	c.SetDashboard(ctx, org, want)

	got, ok := c.GetDashboard(ctx, org)
	require.True(t, ok)
	assert.Equal(t, want.Summary, got.Summary)
	assert.Equal(t, want.ClickTrend, got.ClickTrend)

	mr.FastForward(31 * time.Second)
	_, ok = c.GetDashboard(ctx, org)
	assert.False(t, ok)
}

func TestDashboardCorruptEntryIsMiss(t *testing.T) {
	c, mr := setupCache(t)
	org := uuid.New()
	require.NoError(t, mr.Set(dashboardKey(org), "{not json"))

	_, ok := c.GetDashboard(context.Background(), org)
	assert.False(t, ok)
}

func TestNewRedisClient(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	client.Close()

	client, err = NewRedisClient(context.Background(), mr.Addr())
	require.NoError(t, err)
	client.Close()
}
