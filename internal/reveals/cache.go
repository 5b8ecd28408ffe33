// internal/reveals/cache.go
package reveals

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"placement-backend/internal/common/logger"
)

const cacheTTL = 24 * time.Hour

// Cache is a read-through Redis cache over the reveal registry. Reveals are
// permanent, so a positive entry never goes stale; the TTL only bounds
// memory. Cache failures are swallowed: the database stays the source of
// truth.
type Cache struct {
	client *redis.Client
	logger logger.Logger
}

func NewCache(client *redis.Client, log logger.Logger) *Cache {
	return &Cache{
		client: client,
		logger: log.WithFields(map[string]interface{}{"component": "reveal-cache"}),
	}
}

func cacheKey(companyID, studentID int64) string {
	return fmt.Sprintf("reveal:%d:%d", companyID, studentID)
}

// IsRevealed returns true only on a cache hit. A miss or a Redis error both
// report false and the caller falls through to the database.
func (c *Cache) IsRevealed(ctx context.Context, companyID, studentID int64) bool {
	if c == nil || c.client == nil {
		return false
	}
	val, err := c.client.Get(ctx, cacheKey(companyID, studentID)).Result()
	if err != nil {
		return false
	}
	return val == "1"
}

// MarkRevealed records a revealed pair in the cache.
func (c *Cache) MarkRevealed(ctx context.Context, companyID, studentID int64) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(companyID, studentID), "1", cacheTTL).Err(); err != nil {
		c.logger.Warn("failed to cache reveal", map[string]interface{}{
			"companyId": companyID,
			"studentId": studentID,
			"error":     err,
		})
	}
}
