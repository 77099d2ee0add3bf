package services

import (
	"context"
	"strings"

	"portfolio-hub/internal/cache"
	"portfolio-hub/internal/models"
	"portfolio-hub/internal/normalize"
	"portfolio-hub/internal/remote"
)

// Leads

func (s *DataService) GetUsers(ctx context.Context) []models.Lead {
	return s.leads.get(ctx)
}

func (s *DataService) FetchUsers(ctx context.Context) []models.Lead {
	return s.leads.fetch(ctx, newestQuery, nil)
}

// AddUser upserts a lead by email, so a second submission with the same
// email updates the existing lead
func (s *DataService) AddUser(ctx context.Context, lead models.Lead) Result[models.Lead] {
	lead.Email = strings.ToLower(strings.TrimSpace(lead.Email))
	if lead.Email == "" {
		return s.leads.add(ctx, lead)
	}
	return s.leads.upsert(ctx, lead, "email")
}

func (s *DataService) DeleteUser(ctx context.Context, id string) (Result[models.Lead], error) {
	return s.leads.remove(ctx, id)
}

// Project requests

func (s *DataService) GetGeneratedProjects(ctx context.Context) []models.GeneratedProject {
	return s.requests.get(ctx)
}

func (s *DataService) FetchGeneratedProjects(ctx context.Context) []models.GeneratedProject {
	return s.requests.fetch(ctx, newestQuery, nil)
}

func (s *DataService) GetGeneratedProject(ctx context.Context, id string) (models.GeneratedProject, bool) {
	return s.requests.lookup(ctx, id)
}

func (s *DataService) AddGeneratedProject(ctx context.Context, p models.GeneratedProject) Result[models.GeneratedProject] {
	p.UserEmail = strings.ToLower(strings.TrimSpace(p.UserEmail))
	return s.requests.add(ctx, p)
}

func (s *DataService) UpdateGeneratedProject(ctx context.Context, id string, patch map[string]any) (Result[models.GeneratedProject], error) {
	return s.requests.update(ctx, id, patch)
}

func (s *DataService) DeleteGeneratedProject(ctx context.Context, id string) (Result[models.GeneratedProject], error) {
	return s.requests.remove(ctx, id)
}

// FetchUserProjects merges the cached requests of email with the remote
// rows owned by email or by the signed-in user, newest first
func (s *DataService) FetchUserProjects(ctx context.Context, email string) []models.GeneratedProject {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return []models.GeneratedProject{}
	}
	userID := ""
	if sess, err := s.gw.GetSession(ctx); err == nil && sess != nil && strings.EqualFold(sess.User.Email, email) {
		userID = sess.User.ID
	}

	q := remote.Query{
		AnyOf: []remote.Filter{remote.Eq("user_email", email)},
		Order: []remote.Order{{Column: "created_at", Desc: true}},
	}
	if userID != "" {
		q.AnyOf = append(q.AnyOf, remote.Eq("user_id", userID))
	}
	owned := func(p models.GeneratedProject) bool {
		return p.UserEmail == email || (userID != "" && p.UserID == userID)
	}
	return s.requests.fetchMerged(ctx, q, owned, true)
}

// SaveGeneratedProject stores a submitted request form. It replaces the
// request when p names a cached one, clears the form draft and records the
// submitter as a lead.
func (s *DataService) SaveGeneratedProject(ctx context.Context, draftID string, p models.GeneratedProject) Result[models.GeneratedProject] {
	var res Result[models.GeneratedProject]
	if _, exists := s.requests.lookup(ctx, p.ID); p.ID != "" && exists {
		patch := nonEmpty(normalize.ToMap(p))
		updated, err := s.requests.update(ctx, p.ID, patch)
		if err != nil {
			res = s.AddGeneratedProject(ctx, p)
		} else {
			res = updated
		}
	} else {
		res = s.AddGeneratedProject(ctx, p)
	}

	if draftID != "" {
		if err := s.DeleteDraft(ctx, res.Value.UserEmail, draftID); err != nil {
			s.logFor(models.KindGeneratedProjects, "save").WithError(err).Warn("draft not cleared")
		}
	}
	if res.Value.UserEmail != "" {
		s.AddUser(ctx, models.Lead{Name: res.Value.UserName, Email: res.Value.UserEmail, Role: RoleClient})
	}
	return res
}

// Drafts are local only and never normalized or logged. Each owner email
// has its own set of drafts.

type draftBook map[string]map[string]map[string]any

func ownerKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func readDrafts(tx *cache.Tx) draftBook {
	book := draftBook{}
	if !tx.Get(cache.KeyDrafts, &book) || book == nil {
		return draftBook{}
	}
	return book
}

// GetDrafts returns the drafts saved by owner, keyed by draft id
func (s *DataService) GetDrafts(ctx context.Context, owner string) map[string]map[string]any {
	book := draftBook{}
	if !s.cache.Get(ctx, cache.KeyDrafts, &book) || book[ownerKey(owner)] == nil {
		return map[string]map[string]any{}
	}
	return book[ownerKey(owner)]
}

func (s *DataService) GetDraft(ctx context.Context, owner, id string) (map[string]any, bool) {
	d, ok := s.GetDrafts(ctx, owner)[id]
	return d, ok
}

func (s *DataService) SaveDraft(ctx context.Context, owner, id string, data map[string]any) error {
	return s.cache.Update(ctx, func(tx *cache.Tx) error {
		book := readDrafts(tx)
		k := ownerKey(owner)
		if book[k] == nil {
			book[k] = map[string]map[string]any{}
		}
		book[k][id] = data
		return tx.Put(cache.KeyDrafts, book)
	})
}

func (s *DataService) DeleteDraft(ctx context.Context, owner, id string) error {
	return s.cache.Update(ctx, func(tx *cache.Tx) error {
		book := readDrafts(tx)
		k := ownerKey(owner)
		if _, ok := book[k][id]; !ok {
			return nil
		}
		delete(book[k], id)
		if len(book[k]) == 0 {
			delete(book, k)
		}
		return tx.Put(cache.KeyDrafts, book)
	})
}
