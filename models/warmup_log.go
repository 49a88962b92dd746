package models

import (
	"time"

	"gorm.io/gorm"
)

// WarmupDailyLog is an immutable daily snapshot per mailbox. One row per
// mailbox per calendar day, written once by the snapshot job and never
// updated, so historical analytics stay stable.
type WarmupDailyLog struct {
	gorm.Model
	MailboxID uint      `gorm:"not null;index:idx_daily_log_mailbox_date,unique" json:"mailbox_id"`
	LogDate   time.Time `gorm:"not null;index:idx_daily_log_mailbox_date,unique" json:"log_date"`

	EmailsSent     int `gorm:"default:0" json:"emails_sent"`
	EmailsReceived int `gorm:"default:0" json:"emails_received"`
	Opens          int `gorm:"default:0" json:"opens"`
	Replies        int `gorm:"default:0" json:"replies"`
	Bounces        int `gorm:"default:0" json:"bounces"`

	HealthScore float64 `gorm:"default:0" json:"health_score"`
	WarmupDay   int     `gorm:"default:0" json:"warmup_day"`
	Phase       int     `gorm:"default:0" json:"phase"`
	DailyLimit  int     `gorm:"default:0" json:"daily_limit"`

	BounceRate    float64 `gorm:"default:0" json:"bounce_rate"`
	ReplyRate     float64 `gorm:"default:0" json:"reply_rate"`
	ComplaintRate float64 `gorm:"default:0" json:"complaint_rate"`

	Blacklisted bool `gorm:"default:false" json:"blacklisted"`
}
