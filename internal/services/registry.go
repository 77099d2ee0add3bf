package services

import (
	"time"

	"portfolio-hub/internal/models"
	"portfolio-hub/internal/normalize"
)

func newestFirst(a, b time.Time) bool {
	return a.After(b)
}

func (s *DataService) registerCollections() {
	s.projects = &collection[models.Project]{
		s: s, kind: models.KindProjects, noun: "project", audited: true,
		normalize: normalize.Project,
		id:        func(p models.Project) string { return p.ID },
		setID:     func(p *models.Project, id string) { p.ID = id },
		created:   func(p *models.Project) *time.Time { return &p.CreatedAt },
		label:     func(p models.Project) string { return p.Name },
		defaults:  defaultProjects,
	}
	s.skills = &collection[models.Skill]{
		s: s, kind: models.KindSkills, noun: "skill", audited: true,
		normalize: normalize.Skill,
		id:        func(k models.Skill) string { return k.ID },
		setID:     func(k *models.Skill, id string) { k.ID = id },
		created:   func(k *models.Skill) *time.Time { return &k.CreatedAt },
		label:     func(k models.Skill) string { return k.Name },
		defaults:  defaultSkills,
	}
	s.news = &collection[models.NewsItem]{
		s: s, kind: models.KindNews, noun: "news", audited: true,
		normalize: normalize.News,
		id:        func(n models.NewsItem) string { return n.ID },
		setID:     func(n *models.NewsItem, id string) { n.ID = id },
		created:   func(n *models.NewsItem) *time.Time { return &n.CreatedAt },
		label:     func(n models.NewsItem) string { return n.Title },
		defaults:  defaultNews,
	}
	s.leads = &collection[models.Lead]{
		s: s, kind: models.KindLeads, noun: "user", audited: true,
		normalize: normalize.Lead,
		id:        func(l models.Lead) string { return l.ID },
		setID:     func(l *models.Lead, id string) { l.ID = id },
		created:   func(l *models.Lead) *time.Time { return &l.CreatedAt },
		label:     func(l models.Lead) string { return l.Email },
		key:       func(l models.Lead) string { return l.Email },
	}
	s.requests = &collection[models.GeneratedProject]{
		s: s, kind: models.KindGeneratedProjects, noun: "project request", audited: true,
		normalize: normalize.GeneratedProject,
		id:        func(p models.GeneratedProject) string { return p.ID },
		setID:     func(p *models.GeneratedProject, id string) { p.ID = id },
		created:   func(p *models.GeneratedProject) *time.Time { return &p.CreatedAt },
		label:     func(p models.GeneratedProject) string { return p.Name },
		less:      func(a, b models.GeneratedProject) bool { return newestFirst(a.CreatedAt, b.CreatedAt) },
	}
	s.messages = &collection[models.Message]{
		s: s, kind: models.KindMessages, noun: "message", audited: true,
		normalize: normalize.Message,
		id:        func(m models.Message) string { return m.ID },
		setID:     func(m *models.Message, id string) { m.ID = id },
		created:   func(m *models.Message) *time.Time { return &m.CreatedAt },
		label:     func(m models.Message) string { return m.Subject },
		less:      func(a, b models.Message) bool { return newestFirst(a.CreatedAt, b.CreatedAt) },
	}
	s.chat = &collection[models.ProjectMessage]{
		s: s, kind: models.KindProjectMessages, noun: "chat message", audited: true,
		normalize: normalize.ProjectMessage,
		id:        func(m models.ProjectMessage) string { return m.ID },
		setID:     func(m *models.ProjectMessage, id string) { m.ID = id },
		created:   func(m *models.ProjectMessage) *time.Time { return &m.CreatedAt },
		label:     func(m models.ProjectMessage) string { return m.ProjectID },
		less:      func(a, b models.ProjectMessage) bool { return a.CreatedAt.Before(b.CreatedAt) },
	}
	s.contracts = &collection[models.Contract]{
		s: s, kind: models.KindContracts, noun: "contract", audited: true,
		normalize: normalize.Contract,
		id:        func(c models.Contract) string { return c.ID },
		setID:     func(c *models.Contract, id string) { c.ID = id },
		created:   func(c *models.Contract) *time.Time { return &c.CreatedAt },
		label:     func(c models.Contract) string { return c.Title },
	}
	s.invoices = &collection[models.Invoice]{
		s: s, kind: models.KindInvoices, noun: "invoice", audited: true,
		normalize: normalize.Invoice,
		id:        func(i models.Invoice) string { return i.ID },
		setID:     func(i *models.Invoice, id string) { i.ID = id },
		created:   func(i *models.Invoice) *time.Time { return &i.CreatedAt },
		label:     func(i models.Invoice) string { return i.Title },
	}
	s.notifications = &collection[models.Notification]{
		s: s, kind: models.KindNotifications, noun: "notification", audited: true,
		normalize: normalize.Notification,
		id:        func(n models.Notification) string { return n.ID },
		setID:     func(n *models.Notification, id string) { n.ID = id },
		created:   func(n *models.Notification) *time.Time { return &n.CreatedAt },
		label:     func(n models.Notification) string { return n.Title },
		less:      func(a, b models.Notification) bool { return newestFirst(a.CreatedAt, b.CreatedAt) },
	}
	s.domains = &collection[models.Domain]{
		s: s, kind: models.KindDomains, noun: "domain", audited: true,
		normalize: normalize.Domain,
		id:        func(d models.Domain) string { return d.ID },
		setID:     func(d *models.Domain, id string) { d.ID = id },
		created:   func(d *models.Domain) *time.Time { return &d.CreatedAt },
		label:     func(d models.Domain) string { return d.FQDN() },
	}
	s.transactions = &collection[models.DomainTransaction]{
		s: s, kind: models.KindTransactions, noun: "transaction", audited: true,
		normalize: normalize.Transaction,
		id:        func(t models.DomainTransaction) string { return t.ID },
		setID:     func(t *models.DomainTransaction, id string) { t.ID = id },
		created:   func(t *models.DomainTransaction) *time.Time { return &t.CreatedAt },
		label:     func(t models.DomainTransaction) string { return t.Type },
		less:      func(a, b models.DomainTransaction) bool { return newestFirst(a.CreatedAt, b.CreatedAt) },
	}
	s.activities = &collection[models.Activity]{
		s: s, kind: models.KindActivities, noun: "activity",
		normalize: normalize.Activity,
		id:        func(a models.Activity) string { return a.ID },
		setID:     func(a *models.Activity, id string) { a.ID = id },
		created:   func(a *models.Activity) *time.Time { return &a.CreatedAt },
		less:      func(a, b models.Activity) bool { return newestFirst(a.CreatedAt, b.CreatedAt) },
	}
}

// replayTarget returns the store a queued write of kind belongs to
func (s *DataService) replayTarget(kind models.Kind) replayer {
	switch kind {
	case models.KindProjects:
		return s.projects
	case models.KindSkills:
		return s.skills
	case models.KindNews:
		return s.news
	case models.KindLeads:
		return s.leads
	case models.KindGeneratedProjects:
		return s.requests
	case models.KindMessages:
		return s.messages
	case models.KindProjectMessages:
		return s.chat
	case models.KindContracts:
		return s.contracts
	case models.KindInvoices:
		return s.invoices
	case models.KindNotifications:
		return s.notifications
	case models.KindDomains:
		return s.domains
	case models.KindTransactions:
		return s.transactions
	case models.KindSettings:
		return settingsReplayer{s}
	}
	return nil
}
