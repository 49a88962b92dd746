package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// WarmupStatus is the closed set of mailbox warmup states. All transitions
// are applied by the warmup engine; nothing else writes this column.
type WarmupStatus string

const (
	StatusInactive    WarmupStatus = "inactive"
	StatusWarmingUp   WarmupStatus = "warming_up"
	StatusColdReady   WarmupStatus = "cold_ready"
	StatusActive      WarmupStatus = "active"
	StatusPaused      WarmupStatus = "paused"
	StatusBlacklisted WarmupStatus = "blacklisted"
	StatusRecovering  WarmupStatus = "recovering"
)

// Connection test outcomes recorded by the external provisioning flow.
const (
	ConnectionUntested   = "untested"
	ConnectionTested     = "tested"
	ConnectionSuccessful = "successful"
	ConnectionFailed     = "failed"
)

// Mailbox represents a sending identity under warmup management
type Mailbox struct {
	gorm.Model

	// Basic identification
	Email       string `gorm:"not null;uniqueIndex" json:"email"`
	DisplayName string `json:"display_name"`

	// Provider configuration
	ProviderType string `gorm:"default:'smtp'" json:"provider_type"` // smtp, gmail, microsoft_365, other

	// ========= SMTP Configuration =========
	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `gorm:"default:587" json:"smtp_port"`
	SMTPPassword string `json:"-"` // Encrypted in application layer

	// ========= IMAP Configuration =========
	IMAPHost string `json:"imap_host"`
	IMAPPort int    `json:"imap_port" gorm:"default:993"`

	// ========= Warmup State =========
	WarmupStatus        WarmupStatus `gorm:"default:'inactive';index" json:"warmup_status"`
	IsActive            bool         `gorm:"default:true" json:"is_active"`
	WarmupStartedAt     *time.Time   `json:"warmup_started_at"`
	WarmupCompletedAt   *time.Time   `json:"warmup_completed_at"`
	WarmupDaysCompleted int          `gorm:"default:0" json:"warmup_days_completed"`
	// LastAdvanceAt gates day advancement to once per calendar day.
	LastAdvanceAt   *time.Time `json:"last_advance_at"`
	WarmupProfileID *uint      `json:"warmup_profile_id"`

	// ========= Usage Metrics =========
	DailySendLimit  int        `gorm:"default:30" json:"daily_send_limit"`
	EmailsSentToday int        `gorm:"default:0" json:"emails_sent_today"`
	TotalEmailsSent int        `gorm:"default:0" json:"total_emails_sent"`
	LastSentAt      *time.Time `json:"last_sent_at"`

	// ========= Deliverability Counters (lifetime) =========
	BounceCount    int `gorm:"default:0" json:"bounce_count"`
	ReplyCount     int `gorm:"default:0" json:"reply_count"`
	ComplaintCount int `gorm:"default:0" json:"complaint_count"`

	// ========= Peer Warmup Counters =========
	WarmupEmailsSent     int `gorm:"default:0" json:"warmup_emails_sent"`
	WarmupEmailsReceived int `gorm:"default:0" json:"warmup_emails_received"`
	WarmupOpens          int `gorm:"default:0" json:"warmup_opens"`
	WarmupReplies        int `gorm:"default:0" json:"warmup_replies"`

	// ========= Reputation Signals =========
	ConnectionStatus     string     `gorm:"default:'untested'" json:"connection_status"`
	ConnectionError      *string    `json:"connection_error"`
	LastConnectionTestAt *time.Time `json:"last_connection_test_at"`
	DNSScore             int        `gorm:"default:0" json:"dns_score"`
	IsBlacklisted        bool       `gorm:"default:false" json:"is_blacklisted"`
	LastDNSCheckAt       *time.Time `json:"last_dns_check_at"`
	LastBlacklistCheckAt *time.Time `json:"last_blacklist_check_at"`

	// ========= Recovery State =========
	AutoRecoveryStartedAt *time.Time `json:"auto_recovery_started_at"`

	Notes string `json:"notes"`
}

// Sanitize strips secrets before the record is returned by the API.
func (m *Mailbox) Sanitize() {
	m.SMTPPassword = ""
}

// Domain returns the part after the @ of the mailbox address.
func (m *Mailbox) Domain() string {
	parts := strings.SplitN(m.Email, "@", 2)
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}

// CanSend reports whether the outreach pipeline may use this mailbox.
func (m *Mailbox) CanSend() bool {
	return m.IsActive &&
		(m.WarmupStatus == StatusColdReady || m.WarmupStatus == StatusActive) &&
		m.EmailsSentToday < m.DailySendLimit
}

// RemainingDailyQuota returns how many more emails may be sent today.
func (m *Mailbox) RemainingDailyQuota() int {
	if m.EmailsSentToday >= m.DailySendLimit {
		return 0
	}
	return m.DailySendLimit - m.EmailsSentToday
}
