package models

import "time"

// Department roles. Admin sees every department.
const (
	RoleCyber = "cyber"
	RoleIT    = "it"
	RoleData  = "data"
	RoleAdmin = "admin"
)

// Chat message senders.
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Avatar       string    `json:"avatar,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Incident struct {
	ID          int64  `json:"incident_id"`
	Timestamp   string `json:"timestamp"`
	Severity    string `json:"severity" validate:"required"`
	Category    string `json:"category" validate:"required"`
	Status      string `json:"status" validate:"required"`
	Description string `json:"description"`
}

type Ticket struct {
	ID                  int64  `json:"ticket_id"`
	Priority            string `json:"priority" validate:"required"`
	Description         string `json:"description" validate:"required"`
	Status              string `json:"status" validate:"required"`
	AssignedTo          string `json:"assigned_to"`
	CreatedAt           string `json:"created_at"`
	ResolutionTimeHours int    `json:"resolution_time_hours" validate:"min=0"`
}

type Dataset struct {
	ID         int64  `json:"dataset_id"`
	Name       string `json:"name" validate:"required"`
	Rows       int    `json:"rows" validate:"min=0"`
	Columns    int    `json:"columns" validate:"min=0"`
	UploadedBy string `json:"uploaded_by"`
	UploadDate string `json:"upload_date"`
}

type ChatMessage struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Role        string `json:"role"`
	MessageRole string `json:"message_role"`
	Content     string `json:"content"`
	Timestamp   string `json:"timestamp"`
}

// CountRow is one bar of a grouped count (chart data).
type CountRow struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}
