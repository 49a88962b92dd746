package warmup

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"coldreach/models"

	"gorm.io/gorm"
)

// Reporter exports warmup history for offline analysis.
type Reporter struct {
	db *gorm.DB
}

func NewReporter(db *gorm.DB) *Reporter {
	return &Reporter{db: db}
}

// DailyLogs returns daily snapshots for one mailbox, oldest first. A zero
// time bound is open-ended.
func (r *Reporter) DailyLogs(mailboxID uint, from, to time.Time) ([]models.WarmupDailyLog, error) {
	query := r.db.Where("mailbox_id = ?", mailboxID)
	if !from.IsZero() {
		query = query.Where("log_date >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("log_date <= ?", to)
	}
	var logs []models.WarmupDailyLog
	if err := query.Order("log_date asc").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to load daily logs: %w", err)
	}
	return logs, nil
}

var csvHeader = []string{
	"date", "warmup_day", "phase", "daily_limit",
	"emails_sent", "emails_received", "opens", "replies", "bounces",
	"health_score", "bounce_rate", "reply_rate", "complaint_rate", "blacklisted",
}

// WriteCSV streams the daily history of one mailbox as CSV.
func (r *Reporter) WriteCSV(w io.Writer, mailboxID uint, from, to time.Time) error {
	logs, err := r.DailyLogs(mailboxID, from, to)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, entry := range logs {
		row := []string{
			entry.LogDate.Format("2006-01-02"),
			strconv.Itoa(entry.WarmupDay),
			strconv.Itoa(entry.Phase),
			strconv.Itoa(entry.DailyLimit),
			strconv.Itoa(entry.EmailsSent),
			strconv.Itoa(entry.EmailsReceived),
			strconv.Itoa(entry.Opens),
			strconv.Itoa(entry.Replies),
			strconv.Itoa(entry.Bounces),
			strconv.FormatFloat(entry.HealthScore, 'f', 1, 64),
			strconv.FormatFloat(entry.BounceRate, 'f', 2, 64),
			strconv.FormatFloat(entry.ReplyRate, 'f', 2, 64),
			strconv.FormatFloat(entry.ComplaintRate, 'f', 3, 64),
			strconv.FormatBool(entry.Blacklisted),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
