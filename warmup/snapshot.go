package warmup

import (
	"time"

	"coldreach/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SnapshotService writes the end-of-day analytics row for each managed
// mailbox and clears the daily send counters at midnight.
type SnapshotService struct {
	db     *gorm.DB
	logger *logrus.Entry
	clock  Clock
}

func NewSnapshotService(db *gorm.DB, logger *logrus.Entry, clock Clock) *SnapshotService {
	return &SnapshotService{db: db, logger: logger, clock: clock}
}

// TakeSnapshots writes one WarmupDailyLog per active mailbox for today. The
// job is idempotent: a mailbox that already has today's row is skipped, so
// a rerun after a crash never duplicates history.
func (ss *SnapshotService) TakeSnapshots() (int, error) {
	cfg := LoadConfig(ss.db)
	now := ss.clock.Now()
	logDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var mailboxes []models.Mailbox
	if err := ss.db.Where("is_active = ?", true).Find(&mailboxes).Error; err != nil {
		return 0, err
	}

	written := 0
	for i := range mailboxes {
		mb := &mailboxes[i]

		var existing int64
		if err := ss.db.Model(&models.WarmupDailyLog{}).
			Where("mailbox_id = ? AND log_date = ?", mb.ID, logDate).
			Count(&existing).Error; err != nil {
			ss.logger.WithError(err).WithField("mailbox", mb.Email).Error("snapshot lookup failed")
			continue
		}
		if existing > 0 {
			continue
		}

		mbCfg := ResolveConfig(ss.db, mb, cfg)
		health := CalculateHealthScore(mb, mbCfg, now)
		phase, _ := PhaseForDay(mb.WarmupDaysCompleted, mbCfg)

		entry := models.WarmupDailyLog{
			MailboxID:      mb.ID,
			LogDate:        logDate,
			EmailsSent:     mb.EmailsSentToday,
			EmailsReceived: mb.WarmupEmailsReceived,
			Opens:          mb.WarmupOpens,
			Replies:        mb.WarmupReplies,
			Bounces:        mb.BounceCount,
			HealthScore:    health.HealthScore,
			WarmupDay:      mb.WarmupDaysCompleted,
			Phase:          phase,
			DailyLimit:     mb.DailySendLimit,
			BounceRate:     health.BounceRate,
			ReplyRate:      health.ReplyRate,
			ComplaintRate:  health.ComplaintRate,
			Blacklisted:    mb.IsBlacklisted,
		}
		if err := ss.db.Create(&entry).Error; err != nil {
			ss.logger.WithError(err).WithField("mailbox", mb.Email).Error("failed to write daily snapshot")
			continue
		}
		written++
	}

	return written, nil
}

// ResetDailyCounts zeroes emails_sent_today for every mailbox. Runs once at
// midnight UTC.
func (ss *SnapshotService) ResetDailyCounts() (int64, error) {
	result := ss.db.Model(&models.Mailbox{}).
		Where("emails_sent_today > 0").
		Update("emails_sent_today", 0)
	if result.Error != nil {
		return 0, result.Error
	}
	ss.logger.WithField("mailboxes", result.RowsAffected).Info("daily send counters reset")
	return result.RowsAffected, nil
}
