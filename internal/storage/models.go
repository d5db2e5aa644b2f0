package storage

import "time"

// Audit actions.
const (
	ActionUpload   = "upload"
	ActionAnalyze  = "analyze"
	ActionExport   = "export"
	ActionChat     = "chat"
	ActionFeedback = "chart_feedback"
)

// AuditEntry is one recorded user action.
type AuditEntry struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	Action       string    `gorm:"size:32;index" json:"action"`
	ResourceType string    `gorm:"size:32" json:"resource_type"`
	ResourceID   string    `gorm:"size:64;index" json:"resource_id"`
	Details      string    `gorm:"type:text" json:"details,omitempty"`
	RemoteAddr   string    `gorm:"size:64" json:"remote_addr,omitempty"`
	Success      bool      `json:"success"`
}

// ChartPreference is the learned weight of one chart type in one domain.
type ChartPreference struct {
	ID         uint    `gorm:"primaryKey"`
	Domain     string  `gorm:"size:32;uniqueIndex:idx_domain_chart"`
	ChartType  string  `gorm:"size:32;uniqueIndex:idx_domain_chart"`
	Weight     float64 `gorm:"not null;default:0"`
	Selections int     `gorm:"not null;default:0"`
	Rejections int     `gorm:"not null;default:0"`
	UpdatedAt  time.Time
}
