package models

import (
	"time"

	"gorm.io/datatypes"
)

// Kind identifies an entity collection. Its value doubles as the remote table
// name and the local cache key.
type Kind string

const (
	KindProjects          Kind = "projects"
	KindSkills            Kind = "skills"
	KindNews              Kind = "news"
	KindLeads             Kind = "leads"
	KindGeneratedProjects Kind = "generated_projects"
	KindMessages          Kind = "messages"
	KindContracts         Kind = "contracts"
	KindInvoices          Kind = "invoices"
	KindNotifications     Kind = "notifications"
	KindActivities        Kind = "activities"
	KindSettings          Kind = "settings"
	KindDomains           Kind = "domains"
	KindTransactions      Kind = "domain_transactions"
	KindProjectMessages   Kind = "project_messages"
	KindDomainPricing     Kind = "domain_pricing"
)

// WriteOp is the remote mutation a pending write replays
type WriteOp string

const (
	OpInsert WriteOp = "insert"
	OpUpdate WriteOp = "update"
	OpDelete WriteOp = "delete"
	OpUpsert WriteOp = "upsert"
)

// PendingWrite is a local mutation the remote store has not confirmed yet
type PendingWrite struct {
	ID          string         `json:"id"`
	Kind        Kind           `json:"kind"`
	Op          WriteOp        `json:"op"`
	EntityID    string         `json:"entityId"`
	Payload     map[string]any `json:"payload"` // remote column names
	ConflictKey string         `json:"conflictKey,omitempty"`
	Actor       string         `json:"actor,omitempty"`
	Attempts    int            `json:"attempts"`
	LastError   string         `json:"lastError,omitempty"`
	QueuedAt    time.Time      `json:"queuedAt"`
}

// IntentStatus is the progress of a multi-step intent
type IntentStatus string

const (
	IntentPending  IntentStatus = "pending"
	IntentComplete IntentStatus = "complete"
)

// IntentStep is one step of a saga intent
type IntentStep struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

// Intent records a multi-entity cascade so partial failures can be resumed
type Intent struct {
	ID        string       `json:"id"`
	Kind      string       `json:"kind"`
	SubjectID string       `json:"subjectId"`
	Actor     string       `json:"actor"`
	Steps     []IntentStep `json:"steps"`
	Status    IntentStatus `json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Step returns the named step, or nil
func (i *Intent) Step(name string) *IntentStep {
	for idx := range i.Steps {
		if i.Steps[idx].Name == name {
			return &i.Steps[idx]
		}
	}
	return nil
}

// Done reports whether every step has completed
func (i *Intent) Done() bool {
	for _, s := range i.Steps {
		if !s.Done {
			return false
		}
	}
	return true
}

// AdminUser is the profile kept for an authenticated administrator
type AdminUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// CacheEntry represents one key of the durable local cache in SQLite
type CacheEntry struct {
	Key       string         `gorm:"primarykey" json:"key"`
	Value     datatypes.JSON `gorm:"not null" json:"value"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TableName implements the GORM tabler interface.
func (CacheEntry) TableName() string { return "cache_entries" }
