package doctors

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jeevancare/appointment-platform/pkg/logging"
)

// CachedDirectory is a read-through Redis cache in front of the doctor
// repository. Staleness is bounded by the TTL and never leaks into stored
// appointments: the fee written to the ledger is whatever the directory
// returned at booking time, cached or not.
type CachedDirectory struct {
	inner  Directory
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

func NewCachedDirectory(inner Directory, client *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedDirectory {
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedDirectory{inner: inner, client: client, ttl: ttl, logger: logger}
}

func cacheKey(id uuid.UUID) string {
	return "doctor:" + id.String()
}

// GetByID serves from cache when possible, falling back to the repository.
// Cache failures are logged and degrade to direct reads.
func (c *CachedDirectory) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	if c.client == nil {
		return c.inner.GetByID(ctx, id)
	}

	if raw, err := c.client.Get(ctx, cacheKey(id)).Bytes(); err == nil {
		var d Doctor
		if err := json.Unmarshal(raw, &d); err == nil {
			return &d, nil
		}
	} else if err != redis.Nil {
		c.logger.Warn("doctor cache read failed", "error", err, "doctor_id", id)
	}

	d, err := c.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(d); err == nil {
		if err := c.client.Set(ctx, cacheKey(id), raw, c.ttl).Err(); err != nil {
			c.logger.Warn("doctor cache write failed", "error", err, "doctor_id", id)
		}
	}
	return d, nil
}
