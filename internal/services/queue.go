package services

import (
	"context"
	"fmt"

	"portfolio-hub/internal/cache"
	"portfolio-hub/internal/models"
	"portfolio-hub/internal/remote"

	"github.com/google/uuid"
)

// PendingWrites returns the reconciliation queue in replay order
func (s *DataService) PendingWrites(ctx context.Context) []models.PendingWrite {
	var q []models.PendingWrite
	if !s.cache.Get(ctx, cache.KeyQueue, &q) || q == nil {
		return []models.PendingWrite{}
	}
	return q
}

func readQueue(tx *cache.Tx) []models.PendingWrite {
	var q []models.PendingWrite
	if !tx.Get(cache.KeyQueue, &q) {
		return nil
	}
	return q
}

func (s *DataService) writeQueue(tx *cache.Tx, q []models.PendingWrite) error {
	if q == nil {
		q = []models.PendingWrite{}
	}
	if err := tx.Put(cache.KeyQueue, q); err != nil {
		return err
	}
	s.metrics.setQueueDepth(len(q))
	return nil
}

// enqueue adds w to the queue, folding it into earlier entries for the same
// record where the remote store only needs to see the final state
func (s *DataService) enqueue(ctx context.Context, tx *cache.Tx, w models.PendingWrite) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.QueuedAt.IsZero() {
		w.QueuedAt = s.now().UTC()
	}
	if w.Actor == "" {
		w.Actor = ActorFrom(ctx)
	}
	q := readQueue(tx)

	switch w.Op {
	case models.OpUpdate, models.OpUpsert:
		for i := range q {
			if !foldable(q[i], w) {
				continue
			}
			if q[i].Payload == nil {
				q[i].Payload = map[string]any{}
			}
			for k, v := range w.Payload {
				q[i].Payload[k] = v
			}
			return s.writeQueue(tx, q)
		}
	case models.OpDelete:
		kept := q[:0]
		dropped := false
		for _, e := range q {
			if e.Kind == w.Kind && e.EntityID == w.EntityID {
				if e.Op == models.OpInsert {
					dropped = true
				}
				continue
			}
			kept = append(kept, e)
		}
		q = kept
		if dropped {
			return s.writeQueue(tx, q)
		}
	}
	return s.writeQueue(tx, append(q, w))
}

// foldable reports whether a later write w can be merged into queued entry e
func foldable(e, w models.PendingWrite) bool {
	if e.Kind != w.Kind || e.Op == models.OpDelete {
		return false
	}
	if e.EntityID == w.EntityID {
		return true
	}
	if w.Op == models.OpUpsert && e.Op == models.OpUpsert && w.ConflictKey != "" {
		return fmt.Sprint(e.Payload[w.ConflictKey]) == fmt.Sprint(w.Payload[w.ConflictKey])
	}
	return false
}

// queued returns the ids of kind that still have a pending write
func queued(tx *cache.Tx, kind models.Kind) map[string]models.WriteOp {
	out := map[string]models.WriteOp{}
	for _, e := range readQueue(tx) {
		if e.Kind == kind {
			out[e.EntityID] = e.Op
		}
	}
	return out
}

func pendingWrite(kind models.Kind, op models.WriteOp, id string, row remote.Row) models.PendingWrite {
	return models.PendingWrite{Kind: kind, Op: op, EntityID: id, Payload: map[string]any(row)}
}
