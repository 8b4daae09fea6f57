package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/phishguard-backend/internal/model"
)

func TestMemoryDashboardCache(t *testing.T) {
	c := NewMemoryDashboardCache(50 * time.Millisecond)
	ctx := context.Background()
	orgID := uuid.New()

	_, ok := c.GetDashboard(ctx, orgID)
	assert.False(t, ok)

	d := &model.Dashboard{Summary: model.DashboardSummary{TotalCampaigns: 3}}
	c.SetDashboard(ctx, orgID, d)
	d.Summary.TotalCampaigns = 99

	got, ok := c.GetDashboard(ctx, orgID)
	require.True(t, ok)
	assert.Equal(t, 3, got.Summary.TotalCampaigns)

	_, ok = c.GetDashboard(ctx, uuid.New())
	assert.False(t, ok, "other orgs miss")

	time.Sleep(80 * time.Millisecond)
	_, ok = c.GetDashboard(ctx, orgID)
	assert.False(t, ok, "expired")
}
