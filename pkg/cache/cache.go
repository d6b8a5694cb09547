// Package cache shares analysis snapshots between clients through Redis, so
// attaching to an analysis someone else already watches seeds without a
// round trip to the service. Every failure here degrades to a miss; the
// session never depends on the cache being up.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/repopulse/repopulse/pkg/api"
)

const snapshotTTL = 10 * time.Minute

// SnapshotCache stores analysis snapshots keyed by analysis id.
type SnapshotCache struct {
	client *redis.Client
}

// NewSnapshotCache wraps an existing redis client.
func NewSnapshotCache(client *redis.Client) *SnapshotCache {
	return &SnapshotCache{client: client}
}

func (c *SnapshotCache) key(id string) string {
	return fmt.Sprintf("repopulse:analysis:%s", id)
}

// Get returns a cached snapshot, or ok=false on miss or any redis error.
func (c *SnapshotCache) Get(ctx context.Context, id string) (api.AnalysisResult, bool) {
	data, err := c.client.Get(ctx, c.key(id)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("cache: GET %s failed: %v", c.key(id), err)
		}
		return api.AnalysisResult{}, false
	}

	var result api.AnalysisResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		log.Printf("cache: failed to unmarshal snapshot for %s: %v", id, err)
		return api.AnalysisResult{}, false
	}
	return result, true
}

// Set stores a snapshot with a TTL. Completed snapshots are pinned longer
// since they never change again.
func (c *SnapshotCache) Set(ctx context.Context, result api.AnalysisResult) {
	if result.AnalysisID == "" {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		log.Printf("cache: failed to marshal snapshot for %s: %v", result.AnalysisID, err)
		return
	}

	ttl := snapshotTTL
	if result.Status.Terminal() {
		ttl = 24 * time.Hour
	}

	if err := c.client.Set(ctx, c.key(result.AnalysisID), data, ttl).Err(); err != nil {
		log.Printf("cache: SET %s failed: %v", c.key(result.AnalysisID), err)
	}
}
