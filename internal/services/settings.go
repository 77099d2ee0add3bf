package services

import (
	"context"

	"portfolio-hub/internal/cache"
	"portfolio-hub/internal/models"
	"portfolio-hub/internal/normalize"
	"portfolio-hub/internal/remote"
)

func (s *DataService) defaultSettings() models.Settings {
	return models.Settings{
		ID:         models.SettingsID,
		SiteName:   "Portfolio",
		AdminEmail: s.adminEmail,
		Features: map[string]bool{
			models.FeatureAIBuilder:     true,
			models.FeatureNotifications: true,
			models.FeatureSaveLocalCopy: true,
		},
	}
}

var settingsKey = cache.KindKey(models.KindSettings)

// GetSettings returns the cached site settings or the built-in defaults
func (s *DataService) GetSettings(ctx context.Context) models.Settings {
	var raw map[string]any
	if !s.cache.Get(ctx, settingsKey, &raw) || raw == nil {
		return s.defaultSettings()
	}
	return normalize.Settings(raw)
}

// FetchSettings refreshes the settings row
func (s *DataService) FetchSettings(ctx context.Context) models.Settings {
	rows, err := s.gw.Select(ctx, string(models.KindSettings), remote.Query{Limit: 1})
	if err != nil {
		s.logFor(models.KindSettings, "fetch").WithError(err).Warn("remote fetch failed, serving cache")
		s.metrics.fetch(string(models.KindSettings), false)
		return s.GetSettings(ctx)
	}
	s.metrics.fetch(string(models.KindSettings), true)
	if len(rows) == 0 {
		return s.GetSettings(ctx)
	}
	settings := normalize.Settings(rows[0])
	if err := s.cache.Set(ctx, settingsKey, settings); err != nil {
		s.logFor(models.KindSettings, "fetch").WithError(err).Error("cache write failed")
	}
	return settings
}

// UpdateSettings merges a canonical patch into the settings row
func (s *DataService) UpdateSettings(ctx context.Context, patch map[string]any) Result[models.Settings] {
	m := normalize.ToMap(s.GetSettings(ctx))
	for k, v := range patch {
		if k == "id" {
			continue
		}
		m[k] = v
	}
	updated := normalize.Settings(m)
	updated.UpdatedAt = s.now().UTC()
	row := normalize.ToRow(models.KindSettings, updated)

	rows, err := s.gw.Upsert(ctx, string(models.KindSettings), []remote.Row{row}, "id")
	if err == nil {
		saved := updated
		if len(rows) > 0 {
			saved = normalize.Settings(rows[0])
		}
		act := s.recordActivity(ctx, models.ActivityUpdate, "Updated settings")
		s.writeSettings(ctx, saved, func(tx *cache.Tx) error {
			if act == nil {
				return nil
			}
			return s.appendActivity(tx, *act)
		})
		s.metrics.write(string(models.KindSettings), "update", Synced)
		return synced(saved)
	}

	s.logFor(models.KindSettings, "update").WithError(err).Warn("remote upsert failed, keeping local settings")
	w := pendingWrite(models.KindSettings, models.OpUpsert, updated.ID, row)
	w.ConflictKey = "id"
	s.writeSettings(ctx, updated, func(tx *cache.Tx) error {
		return s.enqueue(ctx, tx, w)
	})
	s.metrics.write(string(models.KindSettings), "update", PendingLocalWrite)
	return pending(updated, err)
}

func (s *DataService) writeSettings(ctx context.Context, settings models.Settings, also func(tx *cache.Tx) error) {
	err := s.cache.Update(ctx, func(tx *cache.Tx) error {
		if err := tx.Put(settingsKey, settings); err != nil {
			return err
		}
		return also(tx)
	})
	if err != nil {
		s.logFor(models.KindSettings, "update").WithError(err).Error("cache write failed")
	}
}

type settingsReplayer struct {
	s *DataService
}

func (r settingsReplayer) applyReplay(tx *cache.Tx, _ models.PendingWrite, row remote.Row) error {
	if row == nil {
		return nil
	}
	return tx.Put(settingsKey, normalize.Settings(row))
}

func (r settingsReplayer) replayMessage(models.PendingWrite, remote.Row) string {
	return "Updated settings"
}
