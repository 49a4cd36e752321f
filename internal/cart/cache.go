// Package cart keeps a pull-based mirror of the server-side cart. The
// snapshot backs the badge counter and the preview listing; it is never
// authoritative and is only refreshed after startup and after a successful
// cart-mutating action.
package cart

import (
	"context"
	"sync"

	"github.com/soyeahso/shopchat/internal/api"
	"github.com/soyeahso/shopchat/internal/domain"
	"github.com/soyeahso/shopchat/internal/logging"
)

// Cache holds the last fetched cart snapshot.
type Cache struct {
	api *api.Client
	log *logging.Logger

	mu   sync.RWMutex
	snap domain.CartSnapshot
}

func NewCache(client *api.Client, log *logging.Logger) *Cache {
	return &Cache{api: client, log: log.Sub("cart")}
}

// Refresh re-fetches the cart. On failure the previous snapshot is kept.
func (c *Cache) Refresh(ctx context.Context) error {
	snap, err := c.api.Cart(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("cart refresh failed")
		return err
	}

	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the last fetched cart.
func (c *Cache) Snapshot() domain.CartSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := c.snap
	out.Items = make([]domain.CartLine, len(c.snap.Items))
	copy(out.Items, c.snap.Items)
	return out
}

// Count is the badge counter, the sum of per-line quantities.
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.ItemCount()
}

// Clear drops the local snapshot, used after a successful order empties the
// server cart.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.snap = domain.CartSnapshot{}
	c.mu.Unlock()
}
