package services

import (
	"context"

	"portfolio-hub/internal/cache"
	"portfolio-hub/internal/models"
	"portfolio-hub/internal/normalize"
	"portfolio-hub/internal/remote"

	"github.com/google/uuid"
)

// GetActivities returns the cached audit log, newest first
func (s *DataService) GetActivities(ctx context.Context) []models.Activity {
	return s.activities.get(ctx)
}

// FetchActivities refreshes the newest activities from the remote store
func (s *DataService) FetchActivities(ctx context.Context) []models.Activity {
	return s.activities.fetch(ctx, remote.Query{
		Order: []remote.Order{{Column: "created_at", Desc: true}},
		Limit: s.activityLimit,
	}, nil)
}

// recordActivity writes an audit entry to the remote store. A failed write
// is logged and dropped.
func (s *DataService) recordActivity(ctx context.Context, typ models.ActivityType, message string) *models.Activity {
	act := models.Activity{
		Type:       typ,
		Message:    message,
		ActorEmail: ActorFrom(ctx),
		CreatedAt:  s.now().UTC(),
	}
	rows, err := s.gw.Insert(ctx, string(models.KindActivities), normalize.ToRow(models.KindActivities, act))
	if err != nil {
		s.logFor(models.KindActivities, "add").WithError(err).Warn("activity not logged")
		return nil
	}
	if len(rows) > 0 {
		act = normalize.Activity(rows[0])
	}
	if act.ID == "" {
		act.ID = uuid.NewString()
	}
	return &act
}

// appendActivity prepends act to the cached log, keeping the newest entries
func (s *DataService) appendActivity(tx *cache.Tx, act models.Activity) error {
	list := append([]models.Activity{act}, s.activities.read(tx)...)
	if len(list) > s.activityLimit {
		list = list[:s.activityLimit]
	}
	return tx.Put(cache.KindKey(models.KindActivities), list)
}

// logActivity records an activity outside a collection mutation
func (s *DataService) logActivity(ctx context.Context, typ models.ActivityType, message string) bool {
	act := s.recordActivity(ctx, typ, message)
	if act == nil {
		return false
	}
	err := s.cache.Update(ctx, func(tx *cache.Tx) error {
		return s.appendActivity(tx, *act)
	})
	if err != nil {
		s.logFor(models.KindActivities, "add").WithError(err).Error("cache write failed")
	}
	return true
}
