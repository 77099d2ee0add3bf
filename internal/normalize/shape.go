// Package normalize maps rows from the remote store, and records left in
// the local cache by older releases, onto the canonical entity shapes.
package normalize

import (
	"strings"

	"portfolio-hub/internal/models"
)

// Shape is the layout a raw record arrived in
type Shape int

const (
	// ShapeCanonical is the camelCase layout the cache stores today.
	ShapeCanonical Shape = iota
	// ShapeRemote is the snake_case row layout of the remote store.
	ShapeRemote
	// ShapeLegacy is the flat local layout with timestamp/date keys and
	// display strings where numbers belong.
	ShapeLegacy
)

func (s Shape) String() string {
	switch s {
	case ShapeRemote:
		return "remote"
	case ShapeLegacy:
		return "legacy"
	default:
		return "canonical"
	}
}

// columns maps canonical field names to remote column names where they differ
type columns map[string]string

var common = columns{"createdAt": "created_at"}

var columnsByKind = map[models.Kind]columns{
	models.KindProjects: {"desc": "description"},
	models.KindNews:     {"certificateLink": "certificate_link"},
	models.KindGeneratedProjects: {
		"userEmail": "user_email", "userId": "user_id", "userName": "user_name",
		"projectName": "project_name", "projectType": "project_type",
	},
	models.KindMessages:        {"read": "is_read"},
	models.KindProjectMessages: {"projectId": "project_id", "senderType": "sender_type", "isRead": "is_read"},
	models.KindContracts:       {"projectId": "project_id", "userEmail": "user_email", "signedAt": "signed_at"},
	models.KindInvoices:        {"projectId": "project_id", "userEmail": "user_email", "dueDate": "due_date"},
	models.KindNotifications:   {"userEmail": "user_email", "isRead": "is_read"},
	models.KindActivities:      {"actorEmail": "actor_email"},
	models.KindSettings: {
		"siteName": "site_name", "adminEmail": "admin_email",
		"maintenanceMode": "maintenance_mode", "updatedAt": "updated_at",
	},
	models.KindDomains: {
		"owner": "user_email", "domainName": "domain_name", "expiryDate": "expiry_date",
		"websiteId": "website_id", "autoRenew": "auto_renew",
	},
	models.KindTransactions: {
		"owner": "user_email", "years": "years_purchased",
		"transactionType": "transaction_type", "paymentStatus": "payment_status",
	},
}

func columnsFor(kind models.Kind) columns {
	out := columns{}
	for k, v := range common {
		out[k] = v
	}
	for k, v := range columnsByKind[kind] {
		out[k] = v
	}
	return out
}

// RemoteColumn returns the remote column name of a canonical field
func RemoteColumn(kind models.Kind, field string) string {
	if col, ok := columnsFor(kind)[field]; ok {
		return col
	}
	return field
}

// Sniff picks the adapter for raw by the fields it carries
func Sniff(kind models.Kind, raw map[string]any) Shape {
	if _, ok := raw["createdAt"]; ok {
		return ShapeCanonical
	}
	for canonical, col := range columnsFor(kind) {
		if col == canonical {
			continue
		}
		if _, ok := raw[col]; ok {
			return ShapeRemote
		}
	}
	if _, ok := raw["timestamp"]; ok {
		return ShapeLegacy
	}
	if _, ok := raw["date"]; ok {
		return ShapeLegacy
	}
	if lvl, ok := raw["level"].(string); ok && lvl != "" {
		return ShapeLegacy
	}
	for _, flag := range []string{models.FeatureAIBuilder, models.FeatureNotifications, models.FeatureSaveLocalCopy} {
		if _, ok := raw[flag]; ok {
			return ShapeLegacy
		}
	}
	return ShapeCanonical
}

// Canonical adapts raw to canonical field names
func Canonical(kind models.Kind, raw map[string]any) map[string]any {
	var out record
	switch Sniff(kind, raw) {
	case ShapeRemote:
		out = fromRemote(kind, raw)
	case ShapeLegacy:
		out = fromLegacy(kind, raw)
	default:
		out = copyRecord(raw)
	}
	return out
}

func fromRemote(kind models.Kind, raw map[string]any) record {
	cols := columnsFor(kind)
	byColumn := make(map[string]string, len(cols))
	for canonical, col := range cols {
		byColumn[col] = canonical
	}
	out := make(record, len(raw))
	for k, v := range raw {
		if canonical, ok := byColumn[k]; ok {
			out[canonical] = v
			continue
		}
		if _, clash := out[k]; !clash {
			out[k] = v
		}
	}
	if _, ok := out["createdAt"]; !ok {
		legacyTimestamp(out, raw)
	}
	return out
}

func fromLegacy(kind models.Kind, raw map[string]any) record {
	out := copyRecord(raw)
	legacyTimestamp(out, raw)
	delete(out, "timestamp")

	switch kind {
	case models.KindSettings:
		features := map[string]any{}
		for k, v := range out.object("features") {
			features[k] = v
		}
		for _, flag := range []string{models.FeatureAIBuilder, models.FeatureNotifications, models.FeatureSaveLocalCopy} {
			if v, ok := raw[flag]; ok {
				features[flag] = v
				delete(out, flag)
			}
		}
		out["features"] = features
	}
	return out
}

// legacyTimestamp fills createdAt from the older timestamp keys
func legacyTimestamp(out record, raw map[string]any) {
	for _, key := range []string{"timestamp", "date"} {
		if v, ok := raw[key]; ok && !parseTime(v).IsZero() {
			out["createdAt"] = v
			return
		}
	}
}

func copyRecord(raw map[string]any) record {
	out := make(record, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	return out
}

var levelLabels = map[string]int{
	"expert":       90,
	"advanced":     75,
	"intermediate": 50,
	"beginner":     25,
}

// skillLevel reads a 0-100 level, accepting the old display labels
func skillLevel(r record) int {
	if label, ok := r["level"].(string); ok {
		if n, ok := levelLabels[strings.ToLower(strings.TrimSpace(label))]; ok {
			return n
		}
	}
	return clamp(r.integer("level"), 0, 100)
}
