package models

import "time"

// Lead represents a visitor or registered client, unique by email
type Lead struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProjectStage is the delivery stage of a client project
type ProjectStage string

const (
	StageAnalysis ProjectStage = "analysis"
	StageDesign   ProjectStage = "design"
	StageDev      ProjectStage = "dev"
	StageQA       ProjectStage = "qa"
	StageLaunch   ProjectStage = "launch"
)

// ProjectStatus is the lifecycle status of a client project
type ProjectStatus string

const (
	StatusPending    ProjectStatus = "pending"
	StatusInProgress ProjectStatus = "in_progress"
	StatusCompleted  ProjectStatus = "completed"
	StatusCancelled  ProjectStatus = "cancelled"
	StatusDraft      ProjectStatus = "draft"
)

// GeneratedProject is a client's project request or build
type GeneratedProject struct {
	ID          string         `json:"id"`
	UserEmail   string         `json:"userEmail"`
	UserID      string         `json:"userId"`
	UserName    string         `json:"userName"`
	Name        string         `json:"projectName"`
	Type        string         `json:"projectType"`
	Stage       ProjectStage   `json:"stage"`
	Status      ProjectStatus  `json:"status"`
	Description string         `json:"description"`
	Answers     map[string]any `json:"answers"`
	Files       map[string]any `json:"files"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// Reply is an admin reply to a contact message
type Reply struct {
	ID      string    `json:"id"`
	Content string    `json:"content"`
	Date    time.Time `json:"date"`
}

// Message is a contact-form submission
type Message struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Body      string    `json:"message"`
	Read      bool      `json:"read"`
	Replies   []Reply   `json:"replies"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProjectMessage is a chat line between a client and the admin on a project
type ProjectMessage struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"projectId"`
	SenderType string    `json:"senderType"` // admin/client
	Content    string    `json:"content"`
	IsRead     bool      `json:"isRead"`
	CreatedAt  time.Time `json:"createdAt"`
}

// DashboardStats summarizes leads, project requests and contact messages
// for the admin analytics view
type DashboardStats struct {
	TotalUsers       int            `json:"totalUsers"`
	TotalGenProjects int            `json:"totalGenProjects"`
	TotalMessages    int            `json:"totalMessages"`
	UnreadMessages   int            `json:"unreadMessages"`
	ConversionRate   float64        `json:"conversionRate"` // requests per 100 leads
	ProjectTypes     map[string]int `json:"projectTypes"`
	Last7Days        []DayStats     `json:"last7Days"`
}

// DayStats counts the records created on one UTC day
type DayStats struct {
	Date     string `json:"date"`
	Leads    int    `json:"leads"`
	Projects int    `json:"projects"`
	Messages int    `json:"messages"`
}
