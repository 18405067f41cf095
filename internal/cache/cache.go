package cache

import (
	"context"
	"time"

	"stockflow/backend/internal/domain"
)

// ItemCache holds item snapshots keyed by item code for fast cart lookups.
// Stock quantities in a cached snapshot may lag; checkout re-validates
// against the store.
type ItemCache interface {
	Get(ctx context.Context, code string) (*domain.Item, bool, error)
	Set(ctx context.Context, item *domain.Item, ttl time.Duration) error
	Invalidate(ctx context.Context, codes ...string) error
}

type NoopItemCache struct{}

func (NoopItemCache) Get(_ context.Context, _ string) (*domain.Item, bool, error) {
	return nil, false, nil
}

func (NoopItemCache) Set(_ context.Context, _ *domain.Item, _ time.Duration) error {
	return nil
}

func (NoopItemCache) Invalidate(_ context.Context, _ ...string) error {
	return nil
}
