package services

import (
	"context"
	"testing"
	"time"

	"portfolio-hub/internal/models"
	"portfolio-hub/internal/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDashboard(t *testing.T) {
	day := func(offset int) time.Time { return fixedNow.AddDate(0, 0, -offset) }
	leads := []models.Lead{
		{ID: "l1", CreatedAt: day(0)},
		{ID: "l2", CreatedAt: day(2)},
		{ID: "l3", CreatedAt: day(10)},
		{ID: "l4"},
	}
	requests := []models.GeneratedProject{
		{ID: "r1", Type: "web", CreatedAt: day(0)},
		{ID: "r2", Type: "web", CreatedAt: day(6)},
		{ID: "r3", Type: "mobile", CreatedAt: day(7)},
	}
	messages := []models.Message{
		{ID: "m1", Read: true, CreatedAt: day(1)},
		{ID: "m2", CreatedAt: day(1)},
	}

	stats := BuildDashboard(leads, requests, messages, fixedNow)
	assert.Equal(t, 4, stats.TotalUsers)
	assert.Equal(t, 3, stats.TotalGenProjects)
	assert.Equal(t, 2, stats.TotalMessages)
	assert.Equal(t, 1, stats.UnreadMessages)
	assert.Equal(t, 75.0, stats.ConversionRate)
	assert.Equal(t, map[string]int{"web": 2, "mobile": 1}, stats.ProjectTypes)

	require.Len(t, stats.Last7Days, 7)
	assert.Equal(t, models.DayStats{Date: "2026-02-23", Projects: 1}, stats.Last7Days[0])
	assert.Equal(t, models.DayStats{Date: "2026-02-27", Leads: 1}, stats.Last7Days[4])
	assert.Equal(t, models.DayStats{Date: "2026-02-28", Messages: 2}, stats.Last7Days[5])
	assert.Equal(t, models.DayStats{Date: "2026-03-01", Leads: 1, Projects: 1}, stats.Last7Days[6])
}

func TestBuildDashboard_Empty(t *testing.T) {
	stats := BuildDashboard(nil, nil, nil, fixedNow)
	assert.Zero(t, stats.ConversionRate)
	assert.Empty(t, stats.ProjectTypes)
	assert.Len(t, stats.Last7Days, 7)
}

func TestFetchDashboardStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gw.Seed("leads",
		remote.Row{"id": "l1", "name": "A", "email": "a@example.com"},
		remote.Row{"id": "l2", "name": "B", "email": "b@example.com"},
		remote.Row{"id": "l3", "name": "C", "email": "c@example.com"},
	)
	f.gw.Seed("generated_projects", remote.Row{"id": "r1", "project_name": "Shop", "project_type": "store", "user_email": "a@example.com"})
	f.gw.Seed("messages", remote.Row{"id": "m1", "name": "A", "email": "a@example.com", "message": "Hi", "is_read": false})

	stats := f.svc.FetchDashboardStats(ctx)
	assert.Equal(t, 3, stats.TotalUsers)
	assert.Equal(t, 1, stats.TotalGenProjects)
	assert.Equal(t, 1, stats.UnreadMessages)
	assert.Equal(t, 33.3, stats.ConversionRate)
	assert.Equal(t, 1, stats.ProjectTypes["store"])

	assert.Equal(t, stats.TotalUsers, f.svc.DashboardStats(ctx).TotalUsers)
}
