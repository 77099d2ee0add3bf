package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"portfolio-hub/internal/cache"
	"portfolio-hub/internal/models"
	"portfolio-hub/internal/normalize"
	"portfolio-hub/internal/remote"
)

// collection implements the cached read, remote fetch and fallback
// mutation pattern shared by every entity kind
type collection[T any] struct {
	s         *DataService
	kind      models.Kind
	noun      string
	normalize func(map[string]any) T
	id        func(T) string
	setID     func(*T, string)
	created   func(*T) *time.Time
	label     func(T) string

	// key is the merge identity, the id unless set or empty
	key func(T) string
	// defaults is served while the cache has never been written
	defaults func() []T
	// less orders the merged set after a fetch
	less func(a, b T) bool
	// audited collections log an activity for every synced mutation
	audited bool
}

func (c *collection[T]) cacheKey() cache.Key {
	return cache.KindKey(c.kind)
}

func (c *collection[T]) keyOf(item T) string {
	if c.key != nil {
		if k := c.key(item); k != "" {
			return k
		}
	}
	return c.id(item)
}

func (c *collection[T]) decode(raw []map[string]any) []T {
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		if r == nil {
			continue
		}
		out = append(out, c.normalize(r))
	}
	return out
}

func (c *collection[T]) fallback() []T {
	if c.defaults != nil {
		return c.defaults()
	}
	return []T{}
}

// get returns the cached set, or the defaults when nothing was cached
func (c *collection[T]) get(ctx context.Context) []T {
	var raw []map[string]any
	if !c.s.cache.Get(ctx, c.cacheKey(), &raw) {
		return c.fallback()
	}
	return c.decode(raw)
}

func (c *collection[T]) read(tx *cache.Tx) []T {
	var raw []map[string]any
	if !tx.Get(c.cacheKey(), &raw) {
		return c.fallback()
	}
	return c.decode(raw)
}

func (c *collection[T]) find(items []T, id string) (T, bool) {
	for _, item := range items {
		if c.id(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func (c *collection[T]) lookup(ctx context.Context, id string) (T, bool) {
	return c.find(c.get(ctx), id)
}

// fetch refreshes the cache from the remote store. When scope is set only
// the records it accepts are replaced and returned; the rest of the cached
// set is left alone. On failure the cached records are returned.
func (c *collection[T]) fetch(ctx context.Context, q remote.Query, scope func(T) bool) []T {
	return c.fetchMerged(ctx, q, scope, false)
}

// fetchMerged is fetch with a choice of which cached records in scope
// survive: only those with a pending write, or all of them when keepCached
// is set. Remote rows win on id either way.
func (c *collection[T]) fetchMerged(ctx context.Context, q remote.Query, scope func(T) bool, keepCached bool) []T {
	inScope := func(item T) bool { return scope == nil || scope(item) }

	rows, err := c.s.gw.Select(ctx, string(c.kind), q)
	if err != nil {
		c.s.logFor(c.kind, "fetch").WithError(err).Warn("remote fetch failed, serving cache")
		c.s.metrics.fetch(string(c.kind), false)
		return filter(c.get(ctx), inScope)
	}
	c.s.metrics.fetch(string(c.kind), true)

	fresh := make([]T, 0, len(rows))
	for _, row := range rows {
		fresh = append(fresh, c.normalize(row))
	}

	var merged []T
	returned := map[string]bool{}
	err = c.s.cache.Update(ctx, func(tx *cache.Tx) error {
		pendingIDs := queued(tx, c.kind)
		var out []T
		index := map[string]int{}
		put := func(item T) {
			k := c.keyOf(item)
			if i, ok := index[k]; ok {
				out[i] = item
				return
			}
			index[k] = len(out)
			out = append(out, item)
		}

		for _, item := range c.read(tx) {
			if !inScope(item) {
				put(item)
				continue
			}
			if _, local := pendingIDs[c.id(item)]; local || keepCached {
				put(item)
				returned[c.keyOf(item)] = true
			}
		}
		for _, item := range fresh {
			// deleted locally, the queued delete has not reached the remote yet
			if pendingIDs[c.id(item)] == models.OpDelete {
				continue
			}
			put(item)
			returned[c.keyOf(item)] = true
		}
		if out == nil {
			out = []T{}
		}
		if c.less != nil {
			sort.SliceStable(out, func(i, j int) bool { return c.less(out[i], out[j]) })
		}
		merged = out
		return tx.Put(c.cacheKey(), out)
	})
	if err != nil {
		c.s.logFor(c.kind, "fetch").WithError(err).Error("cache write failed")
	}
	return filter(merged, func(item T) bool { return returned[c.keyOf(item)] })
}

// add inserts item remotely, or keeps it locally under a temporary id
func (c *collection[T]) add(ctx context.Context, item T) Result[T] {
	log := c.s.logFor(c.kind, "add")
	row := normalize.ToRow(c.kind, item)

	rows, err := c.s.gw.Insert(ctx, string(c.kind), row)
	if err == nil {
		saved := item
		if len(rows) > 0 {
			saved = c.normalize(rows[0])
		}
		c.commit(ctx, models.ActivityCreate, saved, func(list []T) []T { return c.upsertInto(list, saved) })
		c.s.metrics.write(string(c.kind), "add", Synced)
		return synced(saved)
	}

	log.WithError(err).Warn("remote insert failed, keeping local record")
	local := item
	if c.id(local) == "" {
		c.setID(&local, c.s.tempID())
	}
	if ts := c.created(&local); ts.IsZero() {
		*ts = c.s.now().UTC()
	}
	c.commitPending(ctx, func(list []T) []T { return c.upsertInto(list, local) },
		pendingWrite(c.kind, models.OpInsert, c.id(local), row))
	c.s.metrics.write(string(c.kind), "add", PendingLocalWrite)
	return pending(local, err)
}

// upsert writes item keyed by conflictKey. The local fallback merges into a
// cached record with the same key instead of adding a second one.
func (c *collection[T]) upsert(ctx context.Context, item T, conflictKey string) Result[T] {
	log := c.s.logFor(c.kind, "upsert")
	row := normalize.ToRow(c.kind, item)
	existing, found := c.findKey(c.get(ctx), c.keyOf(item))
	activity := models.ActivityCreate
	if found {
		activity = models.ActivityUpdate
	}

	rows, err := c.s.gw.Upsert(ctx, string(c.kind), []remote.Row{row}, conflictKey)
	if err == nil {
		saved := item
		if len(rows) > 0 {
			saved = c.normalize(rows[0])
		}
		c.commit(ctx, activity, saved, func(list []T) []T { return c.upsertInto(list, saved) })
		c.s.metrics.write(string(c.kind), "upsert", Synced)
		return synced(saved)
	}

	log.WithError(err).Warn("remote upsert failed, keeping local record")
	local := item
	if found {
		local = c.merge(existing, nonEmpty(normalize.ToMap(item)))
	}
	if c.id(local) == "" {
		c.setID(&local, c.s.tempID())
	}
	if ts := c.created(&local); ts.IsZero() {
		*ts = c.s.now().UTC()
	}
	w := pendingWrite(c.kind, models.OpUpsert, c.id(local), row)
	w.ConflictKey = conflictKey
	c.commitPending(ctx, func(list []T) []T { return c.upsertInto(list, local) }, w)
	c.s.metrics.write(string(c.kind), "upsert", PendingLocalWrite)
	return pending(local, err)
}

// update applies a canonical field patch to the record with id
func (c *collection[T]) update(ctx context.Context, id string, patch map[string]any) (Result[T], error) {
	log := c.s.logFor(c.kind, "update").WithField("id", id)
	current, found := c.lookup(ctx, id)
	row := normalize.ToRow(c.kind, patch)
	delete(row, "id")

	if found && c.queuedCreate(ctx, id) != "" {
		updated := c.merge(current, patch)
		c.commitPending(ctx, func(list []T) []T { return c.upsertInto(list, updated) },
			pendingWrite(c.kind, models.OpUpdate, id, row))
		c.s.metrics.write(string(c.kind), "update", PendingLocalWrite)
		return pending(updated, nil), nil
	}

	rows, err := c.s.gw.Update(ctx, string(c.kind), row, remote.Eq("id", id))
	if err == nil {
		if len(rows) == 0 {
			return Result[T]{}, ErrNotFound
		}
		saved := c.normalize(rows[0])
		c.commit(ctx, models.ActivityUpdate, saved, func(list []T) []T { return c.upsertInto(list, saved) })
		c.s.metrics.write(string(c.kind), "update", Synced)
		return synced(saved), nil
	}

	if !found {
		log.WithError(err).Warn("remote update failed and record is not cached")
		return Result[T]{}, ErrNotFound
	}
	log.WithError(err).Warn("remote update failed, patching local record")
	updated := c.merge(current, patch)
	c.commitPending(ctx, func(list []T) []T { return c.upsertInto(list, updated) },
		pendingWrite(c.kind, models.OpUpdate, id, row))
	c.s.metrics.write(string(c.kind), "update", PendingLocalWrite)
	return pending(updated, err), nil
}

// remove deletes the record with id. A record that never reached the
// remote store is dropped together with its queued insert.
func (c *collection[T]) remove(ctx context.Context, id string) (Result[T], error) {
	log := c.s.logFor(c.kind, "delete").WithField("id", id)
	current, found := c.lookup(ctx, id)
	without := func(list []T) []T {
		return filter(list, func(item T) bool { return c.id(item) != id })
	}

	if found && c.queuedCreate(ctx, id) == models.OpInsert {
		c.commitPending(ctx, without, pendingWrite(c.kind, models.OpDelete, id, nil))
		c.s.metrics.write(string(c.kind), "delete", Synced)
		return synced(current), nil
	}

	err := c.s.gw.Delete(ctx, string(c.kind), remote.Eq("id", id))
	if err == nil {
		if found {
			c.commit(ctx, models.ActivityDelete, current, without)
		}
		c.s.metrics.write(string(c.kind), "delete", Synced)
		return synced(current), nil
	}

	log.WithError(err).Warn("remote delete failed, removing local record")
	c.commitPending(ctx, without, pendingWrite(c.kind, models.OpDelete, id, nil))
	c.s.metrics.write(string(c.kind), "delete", PendingLocalWrite)
	if !found {
		return pending(current, err), ErrNotFound
	}
	return pending(current, err), nil
}

// commit stores a remotely confirmed change and its activity as one cache
// update
func (c *collection[T]) commit(ctx context.Context, typ models.ActivityType, item T, apply func([]T) []T) {
	var act *models.Activity
	if c.audited {
		act = c.s.recordActivity(ctx, typ, c.describe(typ, item))
	}
	err := c.s.cache.Update(ctx, func(tx *cache.Tx) error {
		if err := tx.Put(c.cacheKey(), apply(c.read(tx))); err != nil {
			return err
		}
		if act != nil {
			return c.s.appendActivity(tx, *act)
		}
		return nil
	})
	if err != nil {
		c.s.logFor(c.kind, string(typ)).WithError(err).Error("cache write failed")
	}
}

func (c *collection[T]) commitPending(ctx context.Context, apply func([]T) []T, w models.PendingWrite) {
	err := c.s.cache.Update(ctx, func(tx *cache.Tx) error {
		if err := tx.Put(c.cacheKey(), apply(c.read(tx))); err != nil {
			return err
		}
		return c.s.enqueue(ctx, tx, w)
	})
	if err != nil {
		c.s.logFor(c.kind, string(w.Op)).WithError(err).Error("cache write failed")
	}
}

// queuedCreate returns the insert or upsert still queued for id, if any
func (c *collection[T]) queuedCreate(ctx context.Context, id string) models.WriteOp {
	for _, w := range c.s.PendingWrites(ctx) {
		if w.Kind == c.kind && w.EntityID == id && (w.Op == models.OpInsert || w.Op == models.OpUpsert) {
			return w.Op
		}
	}
	return ""
}

// upsertInto replaces the record with the same key or appends item
func (c *collection[T]) upsertInto(list []T, item T) []T {
	k, id := c.keyOf(item), c.id(item)
	out := make([]T, 0, len(list)+1)
	replaced := false
	for _, existing := range list {
		if c.keyOf(existing) == k || (id != "" && c.id(existing) == id) {
			if !replaced {
				out = append(out, item)
				replaced = true
			}
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append(out, item)
	}
	return out
}

// replaceID swaps the record known under oldID for its server copy
func (c *collection[T]) replaceID(list []T, oldID string, item T) []T {
	list = filter(list, func(existing T) bool { return c.id(existing) != oldID })
	return c.upsertInto(list, item)
}

func (c *collection[T]) findKey(items []T, key string) (T, bool) {
	for _, item := range items {
		if c.keyOf(item) == key {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// merge overlays canonical fields onto item
func (c *collection[T]) merge(item T, patch map[string]any) T {
	m := normalize.ToMap(item)
	for k, v := range normalize.ToMap(patch) {
		if k == "id" || k == "createdAt" {
			continue
		}
		m[k] = v
	}
	return c.normalize(m)
}

func (c *collection[T]) describe(typ models.ActivityType, item T) string {
	verb := map[models.ActivityType]string{
		models.ActivityCreate: "Added",
		models.ActivityUpdate: "Updated",
		models.ActivityDelete: "Deleted",
	}[typ]
	if c.label == nil || c.label(item) == "" {
		return fmt.Sprintf("%s %s", verb, c.noun)
	}
	return fmt.Sprintf("%s %s: %s", verb, c.noun, c.label(item))
}

// nonEmpty drops blank fields so they do not erase cached values
func nonEmpty(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if v == nil || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

func filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}
