package models

import "time"

// Notification is an in-app message addressed to one recipient
type Notification struct {
	ID        string    `json:"id"`
	Recipient string    `json:"userEmail"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"` // info/success/warning/contract/invoice/domain
	Link      string    `json:"link"`
	Read      bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// ActivityType is the kind of change an activity records
type ActivityType string

const (
	ActivityCreate ActivityType = "create"
	ActivityUpdate ActivityType = "update"
	ActivityDelete ActivityType = "delete"
)

// Activity is an append-only audit log entry
type Activity struct {
	ID         string       `json:"id"`
	Type       ActivityType `json:"type"`
	Message    string       `json:"message"`
	ActorEmail string       `json:"actorEmail"`
	CreatedAt  time.Time    `json:"createdAt"`
}
