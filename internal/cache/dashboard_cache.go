package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/unclebandit/phishguard-backend/internal/model"
)

const dashboardKeyPrefix = "phishguard:dashboard:"

// DashboardCache keeps serialized dashboards in Redis for TTL.
// Redis failures are logged and treated as misses.
type DashboardCache struct {
	Client *redis.Client
	TTL    time.Duration
	Log    zerolog.Logger
}

// NewRedisClient parses a redis:// URL, falling back to a bare host:port address.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func dashboardKey(orgID uuid.UUID) string {
	return dashboardKeyPrefix + orgID.String()
}

func (c *DashboardCache) GetDashboard(ctx context.Context, orgID uuid.UUID) (*model.Dashboard, bool) {
	raw, err := c.Client.Get(ctx, dashboardKey(orgID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.Log.Warn().Err(err).Msg("dashboard cache read failed")
		}
		return nil, false
	}

	var d model.Dashboard
	if err := json.Unmarshal(raw, &d); err != nil {
		c.Log.Warn().Err(err).Msg("dashboard cache entry corrupt")
		return nil, false
	}
	return &d, true
}

func (c *DashboardCache) SetDashboard(ctx context.Context, orgID uuid.UUID, d *model.Dashboard) {
	raw, err := json.Marshal(d)
	if err != nil {
		return
	}
	if err := c.Client.Set(ctx, dashboardKey(orgID), raw, c.TTL).Err(); err != nil {
		c.Log.Warn().Err(err).Msg("dashboard cache write failed")
	}
}
