// Package cache is the durable local key/value cache that serves every
// synchronous read and announces each mutation on the broadcast bus.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"portfolio-hub/internal/broadcast"
	"portfolio-hub/internal/models"

	"github.com/sirupsen/logrus"
)

// Key names one cached value
type Key string

// Keys outside the entity collections
const (
	KeyDrafts  Key = "drafts"
	KeyQueue   Key = "sync_queue"
	KeyIntents Key = "sync_intents"
	// last sign-in per process, never consulted for authorization
	KeyAdminToken  Key = "admin_token"
	KeyAdminUser   Key = "admin_user"
	KeyPortalEmail Key = "portal_user_email"
)

// KindKey returns the cache key holding an entity collection
func KindKey(k models.Kind) Key {
	return Key(k)
}

// Cache reads and writes JSON values through a Backend
type Cache struct {
	backend Backend
	bus     *broadcast.Bus
	log     logrus.FieldLogger
	mu      sync.Mutex
}

// New creates a cache over backend that publishes changes on bus
func New(backend Backend, bus *broadcast.Bus, log logrus.FieldLogger) *Cache {
	return &Cache{backend: backend, bus: bus, log: log}
}

// Bus returns the bus mutations are announced on
func (c *Cache) Bus() *broadcast.Bus {
	return c.bus
}

// Get decodes the value at key into dst. It reports false when the key was
// never written or holds unreadable data, leaving dst untouched.
func (c *Cache) Get(ctx context.Context, key Key, dst any) bool {
	raw, ok, err := c.backend.Load(ctx, string(key))
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache read failed")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("discarding unreadable cache entry")
		return false
	}
	return true
}

// Update runs fn with exclusive access to the cache. Values staged in the
// transaction are persisted when fn returns nil, then a single storage event
// lists every changed key.
func (c *Cache) Update(ctx context.Context, fn func(tx *Tx) error) error {
	c.mu.Lock()
	tx := &Tx{ctx: ctx, cache: c, staged: make(map[Key]*string)}
	err := fn(tx)
	var written []string
	if err == nil {
		written, err = tx.commit()
	}
	c.mu.Unlock()

	if len(written) > 0 && c.bus != nil {
		c.bus.PublishStorage(written...)
	}
	return err
}

// Set writes a single value and broadcasts
func (c *Cache) Set(ctx context.Context, key Key, value any) error {
	return c.Update(ctx, func(tx *Tx) error {
		return tx.Put(key, value)
	})
}

// Remove deletes a key and broadcasts
func (c *Cache) Remove(ctx context.Context, key Key) error {
	return c.Update(ctx, func(tx *Tx) error {
		tx.Delete(key)
		return nil
	})
}

// Tx stages writes inside Cache.Update
type Tx struct {
	ctx    context.Context
	cache  *Cache
	staged map[Key]*string // nil value marks a delete
	order  []Key
}

// Get reads key, seeing values staged earlier in the same transaction
func (tx *Tx) Get(key Key, dst any) bool {
	if v, ok := tx.staged[key]; ok {
		if v == nil {
			return false
		}
		return json.Unmarshal([]byte(*v), dst) == nil
	}
	return tx.cache.Get(tx.ctx, key, dst)
}

// Put stages value for key
func (tx *Tx) Put(key Key, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	s := string(data)
	tx.stage(key, &s)
	return nil
}

// Delete stages removal of key
func (tx *Tx) Delete(key Key) {
	tx.stage(key, nil)
}

func (tx *Tx) stage(key Key, v *string) {
	if _, seen := tx.staged[key]; !seen {
		tx.order = append(tx.order, key)
	}
	tx.staged[key] = v
}

func (tx *Tx) commit() ([]string, error) {
	written := make([]string, 0, len(tx.order))
	for _, key := range tx.order {
		var err error
		if v := tx.staged[key]; v == nil {
			err = tx.cache.backend.Remove(tx.ctx, string(key))
		} else {
			err = tx.cache.backend.Store(tx.ctx, string(key), *v)
		}
		if err != nil {
			return written, err
		}
		written = append(written, string(key))
	}
	return written, nil
}
