package services

import (
	"context"

	"portfolio-hub/internal/cache"
	"portfolio-hub/internal/models"

	"github.com/google/uuid"
)

// completed intents kept for inspection
const keepCompletedIntents = 100

// Intents returns the recorded cascades, oldest first
func (s *DataService) Intents(ctx context.Context) []models.Intent {
	var list []models.Intent
	if !s.cache.Get(ctx, cache.KeyIntents, &list) || list == nil {
		return []models.Intent{}
	}
	return list
}

func (s *DataService) beginIntent(ctx context.Context, kind, subject string, steps ...string) models.Intent {
	now := s.now().UTC()
	in := models.Intent{
		ID:        uuid.NewString(),
		Kind:      kind,
		SubjectID: subject,
		Actor:     ActorFrom(ctx),
		Status:    models.IntentPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, name := range steps {
		in.Steps = append(in.Steps, models.IntentStep{Name: name})
	}
	s.saveIntent(ctx, in)
	return in
}

// saveIntent stores in, replacing the entry with the same id
func (s *DataService) saveIntent(ctx context.Context, in models.Intent) {
	in.UpdatedAt = s.now().UTC()
	if in.Done() {
		in.Status = models.IntentComplete
	}
	err := s.cache.Update(ctx, func(tx *cache.Tx) error {
		var list []models.Intent
		tx.Get(cache.KeyIntents, &list)
		replaced := false
		for i := range list {
			if list[i].ID == in.ID {
				list[i] = in
				replaced = true
			}
		}
		if !replaced {
			list = append(list, in)
		}
		return tx.Put(cache.KeyIntents, pruneIntents(list))
	})
	if err != nil {
		s.log.WithError(err).WithField("intent", in.ID).Error("cache write failed")
	}
}

func (s *DataService) dropIntent(ctx context.Context, id string) {
	err := s.cache.Update(ctx, func(tx *cache.Tx) error {
		var list []models.Intent
		tx.Get(cache.KeyIntents, &list)
		return tx.Put(cache.KeyIntents, filter(list, func(in models.Intent) bool { return in.ID != id }))
	})
	if err != nil {
		s.log.WithError(err).WithField("intent", id).Error("cache write failed")
	}
}

// pruneIntents drops the oldest completed intents beyond the retention limit
func pruneIntents(list []models.Intent) []models.Intent {
	completed := 0
	for _, in := range list {
		if in.Status == models.IntentComplete {
			completed++
		}
	}
	out := make([]models.Intent, 0, len(list))
	for _, in := range list {
		if in.Status == models.IntentComplete && completed > keepCompletedIntents {
			completed--
			continue
		}
		out = append(out, in)
	}
	return out
}

// remapIntents points intents at the server id of a replayed record
func (s *DataService) remapIntents(tx *cache.Tx, oldID, newID string) error {
	var list []models.Intent
	if !tx.Get(cache.KeyIntents, &list) {
		return nil
	}
	changed := false
	for i := range list {
		if list[i].SubjectID == oldID {
			list[i].SubjectID = newID
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return tx.Put(cache.KeyIntents, list)
}

// ResumeIntents reruns the unfinished steps of every pending intent and
// returns how many completed
func (s *DataService) ResumeIntents(ctx context.Context) int {
	done := 0
	for _, in := range s.Intents(ctx) {
		if in.Status == models.IntentComplete {
			continue
		}
		switch in.Kind {
		case intentContractSign:
			in := in
			s.runContractSign(WithActor(ctx, in.Actor), &in)
			if in.Done() {
				done++
			}
		default:
			s.log.WithField("intent", in.ID).Warnf("unknown intent kind %q", in.Kind)
		}
	}
	return done
}
