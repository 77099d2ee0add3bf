package services

import (
	"context"
	"math"
	"time"

	"portfolio-hub/internal/models"
)

const dashboardDays = 7

// DashboardStats computes the admin analytics from the cached collections
func (s *DataService) DashboardStats(ctx context.Context) models.DashboardStats {
	return BuildDashboard(s.GetUsers(ctx), s.GetGeneratedProjects(ctx), s.GetMessages(ctx), s.now())
}

// FetchDashboardStats refreshes the collections it reads before computing
func (s *DataService) FetchDashboardStats(ctx context.Context) models.DashboardStats {
	return BuildDashboard(s.FetchUsers(ctx), s.FetchGeneratedProjects(ctx), s.FetchMessages(ctx), s.now())
}

// BuildDashboard aggregates the given records. The daily series covers the
// seven UTC days ending on now, oldest first.
func BuildDashboard(leads []models.Lead, requests []models.GeneratedProject, messages []models.Message, now time.Time) models.DashboardStats {
	stats := models.DashboardStats{
		TotalUsers:       len(leads),
		TotalGenProjects: len(requests),
		TotalMessages:    len(messages),
		ProjectTypes:     map[string]int{},
		Last7Days:        make([]models.DayStats, dashboardDays),
	}
	if len(leads) > 0 {
		rate := float64(len(requests)) / float64(len(leads)) * 100
		stats.ConversionRate = math.Round(rate*10) / 10
	}

	index := map[string]int{}
	today := now.UTC()
	for i := 0; i < dashboardDays; i++ {
		day := today.AddDate(0, 0, i-dashboardDays+1).Format("2006-01-02")
		stats.Last7Days[i].Date = day
		index[day] = i
	}
	bucket := func(t time.Time) *models.DayStats {
		if t.IsZero() {
			return nil
		}
		if i, ok := index[t.UTC().Format("2006-01-02")]; ok {
			return &stats.Last7Days[i]
		}
		return nil
	}

	for _, l := range leads {
		if d := bucket(l.CreatedAt); d != nil {
			d.Leads++
		}
	}
	for _, p := range requests {
		typ := p.Type
		if typ == "" {
			typ = "other"
		}
		stats.ProjectTypes[typ]++
		if d := bucket(p.CreatedAt); d != nil {
			d.Projects++
		}
	}
	for _, m := range messages {
		if !m.Read {
			stats.UnreadMessages++
		}
		if d := bucket(m.CreatedAt); d != nil {
			d.Messages++
		}
	}
	return stats
}
