package models

import (
	"time"

	"gorm.io/gorm"
)

// WarmupEmailStatus tracks the lifecycle of one peer-to-peer message.
type WarmupEmailStatus string

const (
	EmailSent      WarmupEmailStatus = "sent"
	EmailDelivered WarmupEmailStatus = "delivered"
	EmailOpened    WarmupEmailStatus = "opened"
	EmailReplied   WarmupEmailStatus = "replied"
	EmailBounced   WarmupEmailStatus = "bounced"
	EmailFailed    WarmupEmailStatus = "failed"
)

// WarmupEmail is the audit trail for reputation-building traffic. Rows are
// never deleted; the tracking callback and the auto-reply cycle only mutate
// status and timestamps.
type WarmupEmail struct {
	gorm.Model
	SenderMailboxID   uint  `gorm:"not null;index" json:"sender_mailbox_id"`
	ReceiverMailboxID *uint `gorm:"index" json:"receiver_mailbox_id"` // nil for external receivers

	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
	BodyText string `json:"body_text"`

	MessageID     string            `json:"message_id"`
	TrackingToken string            `gorm:"uniqueIndex;size:64" json:"tracking_token"`
	Status        WarmupEmailStatus `gorm:"default:'sent';index" json:"status"`

	SentAt    time.Time  `json:"sent_at"`
	OpenedAt  *time.Time `json:"opened_at"`
	RepliedAt *time.Time `json:"replied_at"`

	AIGenerated bool   `gorm:"default:false" json:"ai_generated"`
	AIProvider  string `json:"ai_provider"`
}
