package rolestore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheKeyPrefix      = "rolestore:record:"
	generationKeyPrefix = "rolestore:gen:"
)

// Cache keeps Role Record documents in Redis keyed by email.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached document. ok is false on a miss.
func (c *Cache) Get(ctx context.Context, email string) (doc Document, ok bool, err error) {
	if c == nil || c.client == nil {
		return Document{}, false, nil
	}
	payload, err := c.client.Get(ctx, cacheKeyPrefix+email).Bytes()
	if errors.Is(err, redis.Nil) {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, err
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return Document{}, false, err
	}
	return doc, true, nil
}

// Generation returns the invalidation counter of email. Read it before loading a
// document from the store and hand it to Set.
func (c *Cache) Generation(ctx context.Context, email string) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	gen, err := c.client.Get(ctx, generationKeyPrefix+email).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Set stores doc under its email unless the record was invalidated after gen was
// read. stored is false when the write was skipped.
func (c *Cache) Set(ctx context.Context, doc Document, gen int64) (stored bool, err error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return false, err
	}
	genKey := generationKeyPrefix + doc.Email
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cacheKeyPrefix+doc.Email, raw, c.ttl)
			return nil
		})
		if err == nil {
			stored = true
		}
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return stored, err
}

// Invalidate drops the cached document and bumps the generation so in-flight
// reads of the old document are not cached.
func (c *Cache) Invalidate(ctx context.Context, email string) error {
	if c == nil || c.client == nil {
		return nil
	}
	genKey := generationKeyPrefix + email
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, c.ttl+time.Hour)
		pipe.Del(ctx, cacheKeyPrefix+email)
		return nil
	})
	return err
}
