package models

import (
	"time"

	"gorm.io/gorm"
)

// DNSCheckResult is one row of append-only DNS authentication history per
// mailbox. The mailbox's cached dns_score always reflects the latest row.
type DNSCheckResult struct {
	gorm.Model
	MailboxID uint      `gorm:"not null;index" json:"mailbox_id"`
	Domain    string    `gorm:"not null" json:"domain"`
	CheckedAt time.Time `json:"checked_at"`

	SPFRecord string `json:"spf_record"`
	SPFValid  bool   `gorm:"default:false" json:"spf_valid"`

	DKIMSelector string `json:"dkim_selector"`
	DKIMValid    bool   `gorm:"default:false" json:"dkim_valid"`

	DMARCRecord string `json:"dmarc_record"`
	DMARCValid  bool   `gorm:"default:false" json:"dmarc_valid"`
	DMARCPolicy string `json:"dmarc_policy"` // none, quarantine, reject

	MXRecordsJSON string `json:"mx_records_json"`
	MXValid       bool   `gorm:"default:false" json:"mx_valid"`

	WHOISRegistrar string `json:"whois_registrar"`

	OverallScore int `gorm:"default:0" json:"overall_score"`
}

// BlacklistCheckResult is one row of append-only DNSBL history per mailbox.
type BlacklistCheckResult struct {
	gorm.Model
	MailboxID uint      `gorm:"not null;index" json:"mailbox_id"`
	Domain    string    `gorm:"not null" json:"domain"`
	IPAddress string    `json:"ip_address"`
	CheckedAt time.Time `json:"checked_at"`

	ResultsJSON  string `json:"results_json"` // per-provider listed/clean detail
	TotalChecked int    `gorm:"default:0" json:"total_checked"`
	TotalListed  int    `gorm:"default:0" json:"total_listed"`
	IsClean      bool   `gorm:"default:true" json:"is_clean"`
}
