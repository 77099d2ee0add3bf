package services

import (
	"context"
	"fmt"
	"strings"

	"portfolio-hub/internal/cache"
	"portfolio-hub/internal/models"
	"portfolio-hub/internal/normalize"
	"portfolio-hub/internal/remote"
)

func (s *DataService) GetNotifications(ctx context.Context, email string) []models.Notification {
	email = strings.ToLower(email)
	return filter(s.notifications.get(ctx), func(n models.Notification) bool {
		return email == "" || n.Recipient == email
	})
}

func (s *DataService) FetchNotifications(ctx context.Context, email string) []models.Notification {
	email = strings.ToLower(email)
	return s.notifications.fetch(ctx, ownedBy(email), func(n models.Notification) bool {
		return email == "" || n.Recipient == email
	})
}

// NewNotification stores a notification and announces it on the bus.
// Admin-addressed notifications also go out on the configured channels.
func (s *DataService) NewNotification(ctx context.Context, n models.Notification) Result[models.Notification] {
	n.Recipient = strings.ToLower(strings.TrimSpace(n.Recipient))
	if n.Type == "" {
		n.Type = "info"
	}
	res := s.notifications.add(ctx, n)
	if bus := s.cache.Bus(); bus != nil {
		bus.PublishNotification(res.Value)
	}

	if s.notifier != nil && res.Value.Recipient != "" && res.Value.Recipient == s.AdminEmail(ctx) {
		settings := s.GetSettings(ctx)
		if enabled, set := settings.Features[models.FeatureNotifications]; !set || enabled {
			if err := s.notifier.Send(ctx, res.Value); err != nil {
				s.logFor(models.KindNotifications, "dispatch").WithError(err).Error("outbound notification failed")
			}
		}
	}
	return res
}

func (s *DataService) MarkNotificationRead(ctx context.Context, id string) (Result[models.Notification], error) {
	return s.notifications.update(ctx, id, map[string]any{"isRead": true})
}

// MarkAllNotificationsRead marks every unread notification of email read
// with one remote update and returns how many cached entries changed
func (s *DataService) MarkAllNotificationsRead(ctx context.Context, email string) Result[int] {
	email = strings.ToLower(strings.TrimSpace(email))
	log := s.logFor(models.KindNotifications, "mark_all_read").WithField("email", email)
	unread := filter(s.GetNotifications(ctx, email), func(n models.Notification) bool { return !n.Read })

	patch := normalize.ToRow(models.KindNotifications, map[string]any{"isRead": true})
	_, remoteErr := s.gw.Update(ctx, string(models.KindNotifications), patch,
		remote.Eq("user_email", email), remote.Eq("is_read", false))

	var act *models.Activity
	if remoteErr == nil && len(unread) > 0 {
		act = s.recordActivity(ctx, models.ActivityUpdate, fmt.Sprintf("Marked %d notifications read", len(unread)))
	}
	if remoteErr != nil {
		log.WithError(remoteErr).Warn("remote update failed, marking local notifications")
	}

	ids := map[string]bool{}
	for _, n := range unread {
		ids[n.ID] = true
	}
	err := s.cache.Update(ctx, func(tx *cache.Tx) error {
		list := s.notifications.read(tx)
		for i := range list {
			if ids[list[i].ID] {
				list[i].Read = true
			}
		}
		if err := tx.Put(cache.KindKey(models.KindNotifications), list); err != nil {
			return err
		}
		if remoteErr != nil {
			for id := range ids {
				if err := s.enqueue(ctx, tx, pendingWrite(models.KindNotifications, models.OpUpdate, id, patch)); err != nil {
					return err
				}
			}
		}
		if act != nil {
			return s.appendActivity(tx, *act)
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Error("cache write failed")
	}

	if remoteErr != nil {
		s.metrics.write(string(models.KindNotifications), "update", PendingLocalWrite)
		return pending(len(unread), remoteErr)
	}
	s.metrics.write(string(models.KindNotifications), "update", Synced)
	return synced(len(unread))
}
