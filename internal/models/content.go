package models

import "time"

// ProjectCategory is the portfolio section a project is shown under
type ProjectCategory string

const (
	CategoryWeb        ProjectCategory = "web"
	CategoryMobile     ProjectCategory = "mobile"
	CategoryAIBots     ProjectCategory = "ai-bots"
	CategoryOdoo       ProjectCategory = "odoo"
	CategoryOpenSource ProjectCategory = "open-source"
)

// Project represents a portfolio project shown on the public site
type Project struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    ProjectCategory `json:"category"`
	Description string          `json:"desc"`
	Link        string          `json:"link"`
	Image       string          `json:"image"`
	Status      string          `json:"status"`
	Date        string          `json:"date"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Skill represents a skill with a 0-100 proficiency level
type Skill struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Level     int       `json:"level"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewsItem represents a news post or certificate announcement
type NewsItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Image       string    `json:"image"`
	Link        string    `json:"link"`
	Date        string    `json:"date"`
	Certificate string    `json:"certificateLink"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Settings is the singleton site configuration record
type Settings struct {
	ID              string          `json:"id"`
	SiteName        string          `json:"siteName"`
	AdminEmail      string          `json:"adminEmail"`
	Features        map[string]bool `json:"features"`
	MaintenanceMode bool            `json:"maintenanceMode"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Feature toggle names used in Settings.Features
const (
	FeatureAIBuilder     = "enableAIBuilder"
	FeatureNotifications = "notifications"
	FeatureSaveLocalCopy = "saveLocalCopy"
)

// SettingsID is the fixed id of the singleton settings row
const SettingsID = "global"
