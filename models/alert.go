package models

import "gorm.io/gorm"

type AlertType string

const (
	AlertStatusChange      AlertType = "status_change"
	AlertHealthDrop        AlertType = "health_drop"
	AlertBlacklistDetected AlertType = "blacklist_detected"
	AlertDNSIssue          AlertType = "dns_issue"
	AlertAutoPaused        AlertType = "auto_paused"
	AlertAutoRecovered     AlertType = "auto_recovered"
	AlertWarmupComplete    AlertType = "warmup_complete"
)

type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// WarmupAlert is an in-app notification record. Any warmup component may
// create one; the notification surface marks them read.
type WarmupAlert struct {
	gorm.Model
	MailboxID *uint         `gorm:"index" json:"mailbox_id"`
	AlertType AlertType     `gorm:"not null" json:"alert_type"`
	Severity  AlertSeverity `gorm:"default:'info'" json:"severity"`
	Title     string        `gorm:"not null" json:"title"`
	Message   string        `json:"message"`
	Details   string        `json:"details"` // JSON blob with extra context
	IsRead    bool          `gorm:"default:false;index" json:"is_read"`
}
