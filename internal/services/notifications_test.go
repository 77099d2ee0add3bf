package services

import (
	"context"
	"testing"

	"portfolio-hub/internal/models"
	"portfolio-hub/internal/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedNotifications(f *fixture) {
	f.gw.Seed("notifications",
		remote.Row{"id": "n1", "user_email": "c@example.com", "title": "One", "is_read": false, "created_at": "2026-02-01T00:00:00Z"},
		remote.Row{"id": "n2", "user_email": "c@example.com", "title": "Two", "is_read": false, "created_at": "2026-02-02T00:00:00Z"},
		remote.Row{"id": "n3", "user_email": "c@example.com", "title": "Seen", "is_read": true, "created_at": "2026-02-03T00:00:00Z"},
		remote.Row{"id": "n4", "user_email": "d@example.com", "title": "Other", "is_read": false, "created_at": "2026-02-04T00:00:00Z"},
	)
}

func TestFetchNotifications_ScopedToRecipient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedNotifications(f)

	mine := f.svc.FetchNotifications(ctx, "C@example.com")
	require.Len(t, mine, 3)
	assert.Equal(t, "n3", mine[0].ID, "newest first")

	f.svc.FetchNotifications(ctx, "d@example.com")
	assert.Len(t, f.svc.GetNotifications(ctx, ""), 4)
}

func TestMarkAllNotificationsRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedNotifications(f)
	f.svc.FetchNotifications(ctx, "")
	events, stop := f.storageEvents()
	defer stop()

	res := f.svc.MarkAllNotificationsRead(ctx, "c@example.com")
	assert.Equal(t, Synced, res.State)
	assert.Equal(t, 2, res.Value)
	assert.Len(t, *events, 1)

	for _, row := range rowsWhere(f.gw.Rows("notifications"), "user_email", "c@example.com") {
		assert.Equal(t, true, row["is_read"])
	}
	assert.Equal(t, false, rowsWhere(f.gw.Rows("notifications"), "id", "n4")[0]["is_read"])
	for _, n := range f.svc.GetNotifications(ctx, "c@example.com") {
		assert.True(t, n.Read)
	}
	assert.Equal(t, "Marked 2 notifications read", f.svc.GetActivities(ctx)[0].Message)
}

func TestMarkAllNotificationsRead_Offline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedNotifications(f)
	f.svc.FetchNotifications(ctx, "")
	f.gw.SetFailure(errOffline)

	res := f.svc.MarkAllNotificationsRead(ctx, "c@example.com")
	assert.True(t, res.Pending())
	assert.Equal(t, 2, res.Value)

	queue := f.svc.PendingWrites(ctx)
	require.Len(t, queue, 2)
	for _, w := range queue {
		assert.Equal(t, models.OpUpdate, w.Op)
		assert.Equal(t, true, w.Payload["is_read"])
	}

	f.gw.SetFailure(nil)
	report, err := f.svc.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Replayed)
	for _, row := range rowsWhere(f.gw.Rows("notifications"), "user_email", "c@example.com") {
		assert.Equal(t, true, row["is_read"])
	}
}

func TestMarkNotificationRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedNotifications(f)
	f.svc.FetchNotifications(ctx, "")

	res, err := f.svc.MarkNotificationRead(ctx, "n1")
	require.NoError(t, err)
	assert.True(t, res.Value.Read)
}
