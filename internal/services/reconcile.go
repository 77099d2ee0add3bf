package services

import (
	"context"
	"errors"
	"reflect"

	"portfolio-hub/internal/cache"
	"portfolio-hub/internal/models"
	"portfolio-hub/internal/remote"
)

// errGone marks a queued update whose row no longer exists remotely
var errGone = errors.New("row no longer exists")

// ReplayReport summarizes one drain of the reconciliation queue
type ReplayReport struct {
	Replayed  int `json:"replayed"`
	Failed    int `json:"failed"`
	Dropped   int `json:"dropped"`
	Remaining int `json:"remaining"`
}

// replayer applies a confirmed queued write to the cache
type replayer interface {
	applyReplay(tx *cache.Tx, w models.PendingWrite, row remote.Row) error
	replayMessage(w models.PendingWrite, row remote.Row) string
}

func (c *collection[T]) applyReplay(tx *cache.Tx, w models.PendingWrite, row remote.Row) error {
	if w.Op == models.OpDelete {
		var raw []map[string]any
		if !tx.Get(c.cacheKey(), &raw) {
			return nil
		}
		list := filter(c.decode(raw), func(item T) bool { return c.id(item) != w.EntityID })
		return tx.Put(c.cacheKey(), list)
	}
	if row == nil {
		return nil
	}
	saved := c.normalize(row)
	list := c.read(tx)
	if w.Op == models.OpUpdate {
		list = c.upsertInto(list, saved)
	} else {
		list = c.replaceID(list, w.EntityID, saved)
	}
	return tx.Put(c.cacheKey(), list)
}

func (c *collection[T]) replayMessage(w models.PendingWrite, row remote.Row) string {
	var item T
	if row != nil {
		item = c.normalize(row)
	}
	return c.describe(activityFor(w.Op), item)
}

func activityFor(op models.WriteOp) models.ActivityType {
	switch op {
	case models.OpInsert:
		return models.ActivityCreate
	case models.OpDelete:
		return models.ActivityDelete
	default:
		return models.ActivityUpdate
	}
}

// Reconcile drains the queue and resumes unfinished intents
func (s *DataService) Reconcile(ctx context.Context) (ReplayReport, error) {
	report, err := s.Replay(ctx)
	if err != nil {
		return report, err
	}
	s.ResumeIntents(ctx)
	return report, nil
}

// Replay sends queued writes to the remote store in order. A failed write
// keeps its entry and holds back later writes for the same record; an
// unavailable remote store ends the drain early.
func (s *DataService) Replay(ctx context.Context) (ReplayReport, error) {
	s.replayMu.Lock()
	defer s.replayMu.Unlock()

	var report ReplayReport
	blocked := map[string]bool{}
	for _, w := range s.PendingWrites(ctx) {
		record := string(w.Kind) + "/" + w.EntityID
		if blocked[record] {
			continue
		}
		if err := s.limiter.Wait(ctx); err != nil {
			report.Remaining = len(s.PendingWrites(ctx))
			return report, err
		}

		log := s.logFor(w.Kind, "replay").WithField("id", w.EntityID)
		row, err := s.replayWrite(ctx, w)
		switch {
		case err == nil:
			s.confirmReplay(ctx, w, row)
			report.Replayed++
			s.metrics.replay("ok")
			log.Info("pending write replayed")
		case errors.Is(err, errGone):
			s.dropQueued(ctx, w.ID)
			report.Dropped++
			s.metrics.replay("dropped")
			log.Warn("dropping pending update for a missing row")
		default:
			s.markFailed(ctx, w.ID, err)
			report.Failed++
			blocked[record] = true
			s.metrics.replay("failed")
			log.WithError(err).Warn("replay failed")
			if errors.Is(err, remote.ErrUnavailable) {
				report.Remaining = len(s.PendingWrites(ctx))
				return report, nil
			}
		}
	}
	report.Remaining = len(s.PendingWrites(ctx))
	return report, nil
}

func (s *DataService) replayWrite(ctx context.Context, w models.PendingWrite) (remote.Row, error) {
	table := string(w.Kind)
	payload := remote.Row(w.Payload)
	switch w.Op {
	case models.OpInsert:
		return first(s.gw.Insert(ctx, table, payload))
	case models.OpUpsert:
		return first(s.gw.Upsert(ctx, table, []remote.Row{payload}, w.ConflictKey))
	case models.OpUpdate:
		rows, err := s.gw.Update(ctx, table, payload, remote.Eq("id", w.EntityID))
		if err == nil && len(rows) == 0 {
			return nil, errGone
		}
		return first(rows, err)
	case models.OpDelete:
		return nil, s.gw.Delete(ctx, table, remote.Eq("id", w.EntityID))
	}
	return nil, errGone
}

func first(rows []remote.Row, err error) (remote.Row, error) {
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// confirmReplay removes the replayed entry, swaps the local record for the
// server copy and logs the activity, as one cache update
func (s *DataService) confirmReplay(ctx context.Context, w models.PendingWrite, row remote.Row) {
	target := s.replayTarget(w.Kind)
	var act *models.Activity
	if target != nil && w.Kind != models.KindActivities {
		act = s.recordActivity(WithActor(ctx, w.Actor), activityFor(w.Op), target.replayMessage(w, row))
	}
	newID := ""
	if row != nil {
		if id, ok := row["id"]; ok {
			newID = remote.Text(id)
		}
	}

	err := s.cache.Update(ctx, func(tx *cache.Tx) error {
		q := readQueue(tx)
		kept := make([]models.PendingWrite, 0, len(q))
		for _, e := range q {
			if e.ID != w.ID {
				kept = append(kept, e)
				continue
			}
			// written to while the replay was in flight
			if !reflect.DeepEqual(e.Payload, w.Payload) && w.Op != models.OpDelete && newID != "" {
				e.Op = models.OpUpdate
				e.EntityID = newID
				e.Attempts = 0
				e.LastError = ""
				kept = append(kept, e)
			}
		}
		if err := s.writeQueue(tx, kept); err != nil {
			return err
		}
		if target != nil {
			if err := target.applyReplay(tx, w, row); err != nil {
				return err
			}
		}
		if newID != "" && newID != w.EntityID {
			if err := s.remapIntents(tx, w.EntityID, newID); err != nil {
				return err
			}
		}
		if act != nil {
			return s.appendActivity(tx, *act)
		}
		return nil
	})
	if err != nil {
		s.logFor(w.Kind, "replay").WithError(err).Error("cache write failed")
	}
}

func (s *DataService) dropQueued(ctx context.Context, id string) {
	err := s.cache.Update(ctx, func(tx *cache.Tx) error {
		return s.writeQueue(tx, filter(readQueue(tx), func(e models.PendingWrite) bool { return e.ID != id }))
	})
	if err != nil {
		s.log.WithError(err).Error("cache write failed")
	}
}

func (s *DataService) markFailed(ctx context.Context, id string, cause error) {
	err := s.cache.Update(ctx, func(tx *cache.Tx) error {
		q := readQueue(tx)
		for i := range q {
			if q[i].ID == id {
				q[i].Attempts++
				q[i].LastError = cause.Error()
			}
		}
		return s.writeQueue(tx, q)
	})
	if err != nil {
		s.log.WithError(err).Error("cache write failed")
	}
}
