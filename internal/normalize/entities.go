package normalize

import (
	"strings"
	"time"

	"portfolio-hub/internal/models"
)

func view(kind models.Kind, raw map[string]any) record {
	return record(Canonical(kind, raw))
}

func Project(raw map[string]any) models.Project {
	r := view(models.KindProjects, raw)
	return models.Project{
		ID:          r.id(),
		Name:        r.str("name"),
		Category:    models.ProjectCategory(r.str("category")),
		Description: r.str("desc"),
		Link:        r.str("link"),
		Image:       r.str("image"),
		Status:      r.str("status"),
		Date:        r.str("date"),
		CreatedAt:   r.time("createdAt"),
	}
}

func Skill(raw map[string]any) models.Skill {
	r := view(models.KindSkills, raw)
	return models.Skill{
		ID:        r.id(),
		Name:      r.str("name"),
		Category:  r.str("category"),
		Level:     skillLevel(r),
		CreatedAt: r.time("createdAt"),
	}
}

func News(raw map[string]any) models.NewsItem {
	r := view(models.KindNews, raw)
	return models.NewsItem{
		ID:          r.id(),
		Title:       r.str("title"),
		Content:     r.str("content"),
		Image:       r.str("image"),
		Link:        r.str("link"),
		Date:        r.str("date"),
		Certificate: r.str("certificateLink"),
		CreatedAt:   r.time("createdAt"),
	}
}

// Lead lower-cases the email so upserts by email stay unique
func Lead(raw map[string]any) models.Lead {
	r := view(models.KindLeads, raw)
	return models.Lead{
		ID:        r.id(),
		Name:      r.str("name"),
		Email:     strings.ToLower(strings.TrimSpace(r.str("email"))),
		Phone:     r.str("phone"),
		Role:      r.str("role"),
		CreatedAt: r.time("createdAt"),
	}
}

func GeneratedProject(raw map[string]any) models.GeneratedProject {
	r := view(models.KindGeneratedProjects, raw)
	p := models.GeneratedProject{
		ID:          r.id(),
		UserEmail:   strings.ToLower(r.str("userEmail")),
		UserID:      r.str("userId"),
		UserName:    r.str("userName"),
		Name:        r.str("projectName"),
		Type:        r.str("projectType"),
		Stage:       models.ProjectStage(r.str("stage")),
		Status:      models.ProjectStatus(r.str("status")),
		Description: r.str("description"),
		Answers:     r.object("answers"),
		Files:       r.object("files"),
		CreatedAt:   r.time("createdAt"),
	}
	if p.Stage == "" {
		p.Stage = models.StageAnalysis
	}
	if p.Status == "" {
		p.Status = models.StatusPending
	}
	return p
}

func Message(raw map[string]any) models.Message {
	r := view(models.KindMessages, raw)
	m := models.Message{
		ID:        r.id(),
		Name:      r.str("name"),
		Email:     r.str("email"),
		Subject:   r.str("subject"),
		Body:      r.str("message"),
		Read:      r.boolean("read"),
		Replies:   []models.Reply{},
		CreatedAt: r.time("createdAt"),
	}
	for _, item := range r.list("replies") {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rep := record(obj)
		m.Replies = append(m.Replies, models.Reply{
			ID:      rep.id(),
			Content: rep.str("content"),
			Date:    rep.time("date"),
		})
	}
	return m
}

func ProjectMessage(raw map[string]any) models.ProjectMessage {
	r := view(models.KindProjectMessages, raw)
	return models.ProjectMessage{
		ID:         r.id(),
		ProjectID:  r.str("projectId"),
		SenderType: r.str("senderType"),
		Content:    r.str("content"),
		IsRead:     r.boolean("isRead"),
		CreatedAt:  r.time("createdAt"),
	}
}

func Contract(raw map[string]any) models.Contract {
	r := view(models.KindContracts, raw)
	c := models.Contract{
		ID:        r.id(),
		ProjectID: r.str("projectId"),
		UserEmail: strings.ToLower(r.str("userEmail")),
		Title:     r.str("title"),
		Amount:    r.float("amount"),
		Status:    models.ContractStatus(r.str("status")),
		CreatedAt: r.time("createdAt"),
	}
	if c.Status == "" {
		c.Status = models.ContractPending
	}
	if signed := r.time("signedAt"); !signed.IsZero() {
		c.SignedAt = &signed
	}
	return c
}

func Invoice(raw map[string]any) models.Invoice {
	r := view(models.KindInvoices, raw)
	inv := models.Invoice{
		ID:        r.id(),
		ProjectID: r.str("projectId"),
		UserEmail: strings.ToLower(r.str("userEmail")),
		Title:     r.str("title"),
		Amount:    r.float("amount"),
		Currency:  r.str("currency"),
		Status:    models.InvoiceStatus(r.str("status")),
		DueDate:   r.str("dueDate"),
		CreatedAt: r.time("createdAt"),
	}
	if inv.Currency == "" {
		inv.Currency = DefaultCurrency
	}
	if inv.Status == "" {
		inv.Status = models.InvoiceUnpaid
	}
	return inv
}

func Notification(raw map[string]any) models.Notification {
	r := view(models.KindNotifications, raw)
	n := models.Notification{
		ID:        r.id(),
		Recipient: strings.ToLower(r.str("userEmail")),
		Title:     r.str("title"),
		Message:   r.str("message"),
		Type:      r.str("type"),
		Link:      r.str("link"),
		Read:      r.boolean("isRead"),
		CreatedAt: r.time("createdAt"),
	}
	if n.Type == "" {
		n.Type = "info"
	}
	return n
}

func Activity(raw map[string]any) models.Activity {
	r := view(models.KindActivities, raw)
	return models.Activity{
		ID:         r.id(),
		Type:       models.ActivityType(r.str("type")),
		Message:    r.str("message"),
		ActorEmail: r.str("actorEmail"),
		CreatedAt:  r.time("createdAt"),
	}
}

func Settings(raw map[string]any) models.Settings {
	r := view(models.KindSettings, raw)
	s := models.Settings{
		ID:              r.id(),
		SiteName:        r.str("siteName"),
		AdminEmail:      r.str("adminEmail"),
		Features:        map[string]bool{},
		MaintenanceMode: r.boolean("maintenanceMode"),
		UpdatedAt:       r.time("updatedAt"),
	}
	if s.ID == "" {
		s.ID = models.SettingsID
	}
	features := record(r.object("features"))
	for name := range features {
		s.Features[name] = features.boolean(name)
	}
	return s
}

func Domain(raw map[string]any) models.Domain {
	r := view(models.KindDomains, raw)
	d := models.Domain{
		ID:         r.id(),
		Owner:      strings.ToLower(r.str("owner")),
		Name:       r.str("domainName"),
		Extension:  r.str("extension"),
		Status:     models.DomainStatus(r.str("status")),
		ExpiryDate: r.time("expiryDate"),
		WebsiteID:  r.str("websiteId"),
		AutoRenew:  r.boolean("autoRenew"),
		CreatedAt:  r.time("createdAt"),
	}
	if d.Name == "" {
		d.Name = r.str("full_domain")
	}
	if d.Extension == "" {
		if i := strings.Index(d.Name, "."); i > 0 {
			d.Name, d.Extension = d.Name[:i], d.Name[i:]
		}
	}
	if d.Extension != "" && !strings.HasPrefix(d.Extension, ".") {
		d.Extension = "." + d.Extension
	}
	if d.Status == "" {
		d.Status = models.DomainPending
	}
	return d
}

func Transaction(raw map[string]any) models.DomainTransaction {
	r := view(models.KindTransactions, raw)
	t := models.DomainTransaction{
		ID:            r.id(),
		Owner:         strings.ToLower(r.str("owner")),
		Amount:        r.float("amount"),
		Years:         r.integer("years"),
		Type:          r.str("transactionType"),
		PaymentStatus: models.PaymentStatus(r.str("paymentStatus")),
		Notes:         r.str("notes"),
		CreatedAt:     r.time("createdAt"),
	}
	if t.Years <= 0 {
		t.Years = 1
	}
	if t.PaymentStatus == "" {
		t.PaymentStatus = models.PaymentPending
	}
	return t
}

func DomainPrice(raw map[string]any) models.DomainPrice {
	r := view(models.KindDomainPricing, raw)
	p := models.DomainPrice{
		Extension: r.str("extension"),
		Price:     r.float("price"),
		Currency:  r.str("currency"),
	}
	if p.Extension != "" && !strings.HasPrefix(p.Extension, ".") {
		p.Extension = "." + p.Extension
	}
	if p.Currency == "" {
		p.Currency = DefaultCurrency
	}
	return p
}

// DefaultCurrency is assumed when a row carries no currency
const DefaultCurrency = "SAR"

// Stamp returns t, or now when t is unset
func Stamp(t, now time.Time) time.Time {
	if t.IsZero() {
		return now.UTC()
	}
	return t
}
