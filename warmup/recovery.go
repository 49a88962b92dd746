package warmup

import (
	"fmt"
	"time"

	"coldreach/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Recovery ramp bounds. A recovering mailbox starts near zero and is
// handed back to warmup before it reaches full volume.
const (
	recoveryFloorLimit    = 2
	recoveryCeilingLimit  = 35
	recoveryCompleteLimit = 25
	recoveryMinDays       = 7
)

// RecoveryService brings paused and blacklisted mailboxes back into warmup
// through a reduced-volume ramp.
type RecoveryService struct {
	db     *gorm.DB
	logger *logrus.Entry
	clock  Clock
}

func NewRecoveryService(db *gorm.DB, logger *logrus.Entry, clock Clock) *RecoveryService {
	return &RecoveryService{db: db, logger: logger, clock: clock}
}

// Start moves a paused or blacklisted mailbox into recovery at minimum
// volume.
func (rs *RecoveryService) Start(mailbox *models.Mailbox) error {
	if mailbox.WarmupStatus != models.StatusPaused && mailbox.WarmupStatus != models.StatusBlacklisted {
		return fmt.Errorf("mailbox %s is %s, recovery needs paused or blacklisted", mailbox.Email, mailbox.WarmupStatus)
	}

	now := rs.clock.Now()
	err := rs.db.Model(&models.Mailbox{}).Where("id = ?", mailbox.ID).Updates(map[string]interface{}{
		"warmup_status":            models.StatusRecovering,
		"daily_send_limit":         recoveryFloorLimit,
		"emails_sent_today":        0,
		"warmup_days_completed":    0,
		"auto_recovery_started_at": now,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to start recovery for %s: %w", mailbox.Email, err)
	}

	if err := createAlert(rs.db, &mailbox.ID, models.AlertAutoRecovered, models.SeverityInfo,
		fmt.Sprintf("Recovery started for %s", mailbox.Email),
		fmt.Sprintf("Mailbox was %s; resuming at %d emails/day", mailbox.WarmupStatus, recoveryFloorLimit),
	); err != nil {
		rs.logger.WithError(err).Warn("failed to create recovery alert")
	}

	rs.logger.WithFields(logrus.Fields{
		"mailbox": mailbox.Email,
		"from":    mailbox.WarmupStatus,
	}).Info("recovery started")
	return nil
}

// Advance multiplies the daily limit by the ramp factor and promotes the
// mailbox back to warming_up once both the volume and duration thresholds
// are met.
func (rs *RecoveryService) Advance(mailbox *models.Mailbox, cfg Config) error {
	if mailbox.WarmupStatus != models.StatusRecovering {
		return fmt.Errorf("mailbox %s is %s, not recovering", mailbox.Email, mailbox.WarmupStatus)
	}

	// Truncation, not rounding: from the floor of 2 with a 1.5 factor the
	// ramp runs 2, 3, 4, 6, 9, 13, 19, 28.
	newLimit := int(float64(mailbox.DailySendLimit) * cfg.RecoveryRampFactor)
	if newLimit < recoveryFloorLimit {
		newLimit = recoveryFloorLimit
	}
	if newLimit > recoveryCeilingLimit {
		newLimit = recoveryCeilingLimit
	}

	now := rs.clock.Now()
	daysInRecovery := 0
	if mailbox.AutoRecoveryStartedAt != nil {
		daysInRecovery = int(now.Sub(*mailbox.AutoRecoveryStartedAt).Hours() / 24)
	}

	if newLimit >= recoveryCompleteLimit && daysInRecovery >= recoveryMinDays {
		err := rs.db.Model(&models.Mailbox{}).Where("id = ?", mailbox.ID).Updates(map[string]interface{}{
			"warmup_status":            models.StatusWarmingUp,
			"daily_send_limit":         newLimit,
			"is_blacklisted":           false,
			"warmup_days_completed":    gorm.Expr("warmup_days_completed + ?", 1),
			"auto_recovery_started_at": nil,
		}).Error
		if err != nil {
			return err
		}
		if err := createAlert(rs.db, &mailbox.ID, models.AlertAutoRecovered, models.SeverityInfo,
			fmt.Sprintf("Recovery complete for %s", mailbox.Email),
			fmt.Sprintf("Back to warming up after %d days at %d emails/day", daysInRecovery, newLimit),
		); err != nil {
			rs.logger.WithError(err).Warn("failed to create recovery alert")
		}
		rs.logger.WithField("mailbox", mailbox.Email).Info("recovery complete")
		return nil
	}

	return rs.db.Model(&models.Mailbox{}).Where("id = ?", mailbox.ID).Updates(map[string]interface{}{
		"daily_send_limit":      newLimit,
		"warmup_days_completed": gorm.Expr("warmup_days_completed + ?", 1),
	}).Error
}

// RunSweep is the scheduled entry point. It starts recovery for mailboxes
// that have sat paused or blacklisted past the wait period and advances the
// ramp for mailboxes already recovering. Returns (started, advanced).
func (rs *RecoveryService) RunSweep() (int, int, error) {
	cfg := LoadConfig(rs.db)
	if !cfg.AutoRecoveryEnabled {
		return 0, 0, nil
	}

	now := rs.clock.Now()
	cutoff := now.Add(-time.Duration(cfg.RecoveryWaitDays) * 24 * time.Hour)

	var waiting []models.Mailbox
	err := rs.db.Where("warmup_status IN ?", []models.WarmupStatus{models.StatusPaused, models.StatusBlacklisted}).
		Where("is_active = ?", true).
		Where("updated_at <= ?", cutoff).
		Find(&waiting).Error
	if err != nil {
		return 0, 0, err
	}

	// Snapshot the recovering set first so a mailbox started below does not
	// ramp in the same sweep.
	var recovering []models.Mailbox
	err = rs.db.Where("warmup_status = ?", models.StatusRecovering).
		Where("is_active = ?", true).
		Find(&recovering).Error
	if err != nil {
		return 0, 0, err
	}

	started := 0
	for i := range waiting {
		if err := rs.Start(&waiting[i]); err != nil {
			rs.logger.WithError(err).WithField("mailbox", waiting[i].Email).Error("failed to start recovery")
			continue
		}
		started++
	}

	advanced := 0
	for i := range recovering {
		if err := rs.Advance(&recovering[i], cfg); err != nil {
			rs.logger.WithError(err).WithField("mailbox", recovering[i].Email).Error("failed to advance recovery")
			continue
		}
		advanced++
	}

	return started, advanced, nil
}
