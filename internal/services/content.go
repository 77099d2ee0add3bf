package services

import (
	"context"
	"time"

	"portfolio-hub/internal/cache"
	"portfolio-hub/internal/models"
	"portfolio-hub/internal/remote"
)

// built-in content served until the first successful fetch
func defaultProjects() []models.Project {
	return []models.Project{
		{ID: "1", Name: "Smart Perfume Store", Category: models.CategoryWeb, Date: "2026-01-01", Status: "published",
			Image: "/project1.jpg", Description: "A complete web store for perfumes with AI recommendations."},
		{ID: "2", Name: "Order Delivery App", Category: models.CategoryMobile, Date: "2025-12-28", Status: "published",
			Image: "/project2.jpg", Description: "A mobile app for fast meal delivery."},
	}
}

func defaultSkills() []models.Skill {
	return []models.Skill{
		{ID: "1", Name: "React.js", Category: "Frontend", Level: 90},
		{ID: "2", Name: "Flutter", Category: "Mobile", Level: 90},
		{ID: "3", Name: "AI Integration", Category: "AI", Level: 90},
	}
}

func defaultNews() []models.NewsItem {
	return []models.NewsItem{
		{ID: "1", Title: "AI Project Builder launched", Content: "The beta of the project builder platform is live.",
			Date: "2026-01-03", CreatedAt: time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)},
	}
}

var newestQuery = remote.Query{Order: []remote.Order{{Column: "created_at", Desc: true}}}

// Projects

func (s *DataService) GetProjects(ctx context.Context) []models.Project {
	return s.projects.get(ctx)
}

func (s *DataService) FetchProjects(ctx context.Context) []models.Project {
	return s.projects.fetch(ctx, newestQuery, nil)
}

func (s *DataService) AddProject(ctx context.Context, p models.Project) Result[models.Project] {
	if p.Date == "" {
		p.Date = s.today()
	}
	return s.projects.add(ctx, p)
}

func (s *DataService) UpdateProject(ctx context.Context, id string, patch map[string]any) (Result[models.Project], error) {
	return s.projects.update(ctx, id, patch)
}

func (s *DataService) DeleteProject(ctx context.Context, id string) (Result[models.Project], error) {
	return s.projects.remove(ctx, id)
}

// Skills

func (s *DataService) GetSkills(ctx context.Context) []models.Skill {
	return s.skills.get(ctx)
}

func (s *DataService) FetchSkills(ctx context.Context) []models.Skill {
	return s.skills.fetch(ctx, remote.Query{}, nil)
}

func (s *DataService) AddSkill(ctx context.Context, k models.Skill) Result[models.Skill] {
	return s.skills.add(ctx, k)
}

func (s *DataService) UpdateSkill(ctx context.Context, id string, patch map[string]any) (Result[models.Skill], error) {
	return s.skills.update(ctx, id, patch)
}

func (s *DataService) DeleteSkill(ctx context.Context, id string) (Result[models.Skill], error) {
	return s.skills.remove(ctx, id)
}

// News

func (s *DataService) GetNews(ctx context.Context) []models.NewsItem {
	return s.news.get(ctx)
}

func (s *DataService) FetchNews(ctx context.Context) []models.NewsItem {
	return s.news.fetch(ctx, newestQuery, nil)
}

func (s *DataService) AddNews(ctx context.Context, n models.NewsItem) Result[models.NewsItem] {
	if n.Date == "" {
		n.Date = s.today()
	}
	return s.news.add(ctx, n)
}

func (s *DataService) UpdateNews(ctx context.Context, id string, patch map[string]any) (Result[models.NewsItem], error) {
	return s.news.update(ctx, id, patch)
}

func (s *DataService) DeleteNews(ctx context.Context, id string) (Result[models.NewsItem], error) {
	return s.news.remove(ctx, id)
}

// ResetToDefaults puts the built-in projects, skills, news and settings
// back into the cache. The remote store is not touched.
func (s *DataService) ResetToDefaults(ctx context.Context) error {
	return s.cache.Update(ctx, func(tx *cache.Tx) error {
		if err := tx.Put(cache.KindKey(models.KindProjects), defaultProjects()); err != nil {
			return err
		}
		if err := tx.Put(cache.KindKey(models.KindSkills), defaultSkills()); err != nil {
			return err
		}
		if err := tx.Put(cache.KindKey(models.KindNews), defaultNews()); err != nil {
			return err
		}
		return tx.Put(cache.KindKey(models.KindSettings), s.defaultSettings())
	})
}
