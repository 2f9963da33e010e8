package summary

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const invalidationChannel = "summary.invalidate"

// Cache is a Redis read cache for summary documents with per-document
// invalidation: a recompute drops exactly the rewritten document's entry
// instead of versioning the whole keyspace. A nil Cache or nil client
// degrades to pass-through loading.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// FetchJSON loads the cached document or populates it using the loader.
func (c *Cache) FetchJSON(ctx context.Context, id string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, dest)
	}
	key := keySummary(id)
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if err != redis.Nil {
		return err
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Invalidate drops one document's cache entry and announces the id so other
// processes can do the same.
func (c *Cache) Invalidate(ctx context.Context, id string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, keySummary(id)).Err(); err != nil {
		return err
	}
	return c.client.Publish(ctx, invalidationChannel, id).Err()
}

// ListenForInvalidation subscribes to invalidation announcements and drops
// the named document's entry on each. Re-deleting an already-deleted entry
// is harmless, so duplicate announcements need no dedup.
func (c *Cache) ListenForInvalidation(ctx context.Context, channel string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if channel == "" {
		channel = invalidationChannel
	}
	pubsub := c.client.Subscribe(ctx, channel)
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Payload == "" {
					continue
				}
				_ = c.client.Del(ctx, keySummary(msg.Payload)).Err()
			}
		}
	}()
	return nil
}

func keySummary(id string) string {
	return "summary:doc:" + id
}
