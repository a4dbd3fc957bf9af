package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apporder "github.com/Zhima-Mochi/kitchenledger/internal/application/order"

	"github.com/redis/go-redis/v9"
)

const orderKeyPrefix = "order:"

// OrderCache stores GetOrder read models as JSON under "order:<id>".
type OrderCache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

var _ apporder.Cache = (*OrderCache)(nil)

func NewOrderCache(rdb redis.UniversalClient, ttl time.Duration) *OrderCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &OrderCache{rdb: rdb, ttl: ttl}
}

func (c *OrderCache) Get(ctx context.Context, id string) (*apporder.OrderView, error) {
	raw, err := c.rdb.Get(ctx, orderKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apporder.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("order cache: get %s: %w", id, err)
	}
	var view apporder.OrderView
	if err := json.Unmarshal(raw, &view); err != nil {
		// A payload we cannot read is as good as absent.
		_ = c.rdb.Del(ctx, orderKeyPrefix+id).Err()
		return nil, apporder.ErrCacheMiss
	}
	return &view, nil
}

func (c *OrderCache) Set(ctx context.Context, view *apporder.OrderView) error {
	if view == nil || view.ID == "" {
		return nil
	}
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("order cache: encode %s: %w", view.ID, err)
	}
	if err := c.rdb.Set(ctx, orderKeyPrefix+view.ID, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("order cache: set %s: %w", view.ID, err)
	}
	return nil
}

func (c *OrderCache) Invalidate(ctx context.Context, id string) error {
	if err := c.rdb.Del(ctx, orderKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("order cache: invalidate %s: %w", id, err)
	}
	return nil
}
