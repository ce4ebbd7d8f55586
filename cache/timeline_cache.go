package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"geojournal/model"

	"github.com/go-redis/redis/v8"
)

const (
	timelineEntriesKey = "timeline:entries"
	// timelineWarmKey marks the list as a faithful copy of the newest rows,
	// so an empty list can be told apart from a cold cache. It expires, so a
	// write the cache missed is served for at most one TTL.
	timelineWarmKey = "timeline:warm"

	defaultWarmTTL = 10 * time.Minute
)

// TimelineCache keeps the newest entries as a capped Redis list, newest at
// the head.
type TimelineCache struct {
	client  *redis.Client
	size    int
	warmTTL time.Duration
}

// NewTimelineCache creates a cache holding at most size entries that is
// refilled from the database at least every warmTTL.
func NewTimelineCache(client *redis.Client, size int, warmTTL time.Duration) *TimelineCache {
	if size <= 0 {
		size = 200
	}
	if warmTTL <= 0 {
		warmTTL = defaultWarmTTL
	}
	return &TimelineCache{client: client, size: size, warmTTL: warmTTL}
}

// Size is the maximum number of cached entries.
func (c *TimelineCache) Size() int {
	return c.size
}

// Push prepends an entry. A cold cache is left cold, since the list would
// not hold the rows before it.
func (c *TimelineCache) Push(ctx context.Context, entry *model.Entry) error {
	warm, err := c.client.Exists(ctx, timelineWarmKey).Result()
	if err != nil {
		return fmt.Errorf("check timeline cache: %w", err)
	}
	if warm == 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.LPush(ctx, timelineEntriesKey, data)
	pipe.LTrim(ctx, timelineEntriesKey, 0, int64(c.size-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push timeline entry: %w", err)
	}
	return nil
}

// Recent returns up to limit cached entries, newest first. ok is false when
// the cache is cold or cannot answer a request that large.
func (c *TimelineCache) Recent(ctx context.Context, limit int) ([]*model.Entry, bool, error) {
	if limit > c.size {
		return nil, false, nil
	}

	warm, err := c.client.Exists(ctx, timelineWarmKey).Result()
	if err != nil {
		return nil, false, fmt.Errorf("check timeline cache: %w", err)
	}
	if warm == 0 {
		return nil, false, nil
	}

	raw, err := c.client.LRange(ctx, timelineEntriesKey, 0, int64(limit-1)).Result()
	if err != nil && err != redis.Nil {
		return nil, false, fmt.Errorf("read timeline cache: %w", err)
	}

	entries := make([]*model.Entry, 0, len(raw))
	for _, item := range raw {
		var entry model.Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, false, fmt.Errorf("unmarshal cached entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	return entries, true, nil
}

// Fill replaces the cached list with entries (newest first) and marks the
// cache warm.
func (c *TimelineCache) Fill(ctx context.Context, entries []*model.Entry) error {
	if len(entries) > c.size {
		entries = entries[:c.size]
	}

	values := make([]interface{}, 0, len(entries))
	for _, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}
		values = append(values, data)
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, timelineEntriesKey)
	if len(values) > 0 {
		pipe.RPush(ctx, timelineEntriesKey, values...)
	}
	pipe.Set(ctx, timelineWarmKey, "1", c.warmTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("fill timeline cache: %w", err)
	}
	return nil
}

// Reset empties the cache. The empty list is still a faithful copy, so the
// cache stays warm.
func (c *TimelineCache) Reset(ctx context.Context) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, timelineEntriesKey)
	pipe.Set(ctx, timelineWarmKey, "1", c.warmTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("reset timeline cache: %w", err)
	}
	return nil
}

// Invalidate drops the warm marker and the list.
func (c *TimelineCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, timelineWarmKey, timelineEntriesKey).Err(); err != nil {
		return fmt.Errorf("invalidate timeline cache: %w", err)
	}
	return nil
}
