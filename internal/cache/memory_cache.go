package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/unclebandit/phishguard-backend/internal/model"
)

// MemoryDashboardCache keeps dashboards in process when no Redis is configured.
// Entries are per server instance.
type MemoryDashboardCache struct {
	cache *gocache.Cache
}

func NewMemoryDashboardCache(ttl time.Duration) *MemoryDashboardCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &MemoryDashboardCache{cache: gocache.New(ttl, 2*ttl)}
}

func (c *MemoryDashboardCache) GetDashboard(ctx context.Context, orgID uuid.UUID) (*model.Dashboard, bool) {
	v, ok := c.cache.Get(dashboardKey(orgID))
	if !ok {
		return nil, false
	}
	d, ok := v.(model.Dashboard)
	if !ok {
		return nil, false
	}
	return &d, true
}

// SetDashboard stores a copy so later changes by the caller do not leak into the cache.
func (c *MemoryDashboardCache) SetDashboard(ctx context.Context, orgID uuid.UUID, d *model.Dashboard) {
	c.cache.SetDefault(dashboardKey(orgID), *d)
}
