package warmup

import (
	"math/rand"
	"time"

	"coldreach/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AutoReplier answers a fraction of recently delivered peer warmup email so
// the conversations look two-sided to mailbox providers.
type AutoReplier struct {
	db     *gorm.DB
	logger *logrus.Entry
	clock  Clock
	mailer Mailer
}

func NewAutoReplier(db *gorm.DB, logger *logrus.Entry, clock Clock, mailer Mailer) *AutoReplier {
	return &AutoReplier{db: db, logger: logger, clock: clock, mailer: mailer}
}

// RunCycle replies to eligible warmup emails. An email is eligible when it
// was sent to a managed peer, has not been replied to, and is older than the
// minimum reply delay but younger than 24 hours. Emails that lose the reply
// probability draw this cycle stay eligible for the next one.
func (ar *AutoReplier) RunCycle() (*CycleResult, error) {
	cfg := LoadConfig(ar.db)

	if !cfg.AutoReplyEnabled {
		return &CycleResult{Skipped: true, Reason: "auto-reply disabled"}, nil
	}
	if skipWeekend(cfg, ar.clock.Now()) {
		return &CycleResult{Skipped: true, Reason: "weekend - skipping auto-reply"}, nil
	}

	now := ar.clock.Now()
	oldest := now.Add(-24 * time.Hour)
	youngest := now.Add(-time.Duration(cfg.AutoReplyMinDelay) * time.Minute)

	var candidates []models.WarmupEmail
	err := ar.db.Where("status IN ?", []models.WarmupEmailStatus{models.EmailSent, models.EmailOpened}).
		Where("receiver_mailbox_id IS NOT NULL").
		Where("replied_at IS NULL").
		Where("sent_at BETWEEN ? AND ?", oldest, youngest).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	provider := NewContentProvider(cfg)
	result := &CycleResult{}

	for i := range candidates {
		email := &candidates[i]
		if rand.Float64() > cfg.AutoReplyRate {
			continue
		}
		// Randomized reply delay so answers don't land in lockstep. An
		// email that is still too young stays a candidate for the next
		// cycle.
		delay := cfg.AutoReplyMinDelay
		if spread := cfg.AutoReplyMaxDelay - cfg.AutoReplyMinDelay; spread > 0 {
			delay += rand.Intn(spread + 1)
		}
		if now.Sub(email.SentAt) < time.Duration(delay)*time.Minute {
			continue
		}
		ar.reply(email, cfg, provider, result)
	}

	return result, nil
}

func (ar *AutoReplier) reply(original *models.WarmupEmail, cfg Config, provider ContentProvider, result *CycleResult) {
	var replier models.Mailbox
	if err := ar.db.First(&replier, *original.ReceiverMailboxID).Error; err != nil {
		ar.logger.WithError(err).WithField("warmup_email", original.ID).Warn("reply candidate has no receiver mailbox")
		return
	}
	var originalSender models.Mailbox
	if err := ar.db.First(&originalSender, original.SenderMailboxID).Error; err != nil {
		ar.logger.WithError(err).WithField("warmup_email", original.ID).Warn("reply candidate has no sender mailbox")
		return
	}
	if !replier.IsActive || replier.ConnectionStatus != models.ConnectionSuccessful {
		return
	}

	// Quota is checked and spent under the replier's send lock, shared with
	// the peer network, so an overlapping peer cycle cannot push the mailbox
	// past its daily limit.
	sendLocks.Lock(replier.ID)
	if err := ar.db.Select("emails_sent_today", "daily_send_limit").First(&replier, replier.ID).Error; err == nil &&
		replier.EmailsSentToday >= replier.DailySendLimit {
		sendLocks.Unlock(replier.ID)
		return
	}

	content := generateReply(provider, original.Subject, original.BodyText, displayName(&replier))
	token := uuid.New().String()
	bodyHTML := InjectTrackingPixel(content.BodyHTML, cfg.TrackingBaseURL, token)

	now := ar.clock.Now()
	messageID, sendErr := ar.mailer.Send(&replier, originalSender.Email, content.Subject, bodyHTML, content.BodyText)

	result.Total++
	detail := PairResult{Sender: replier.Email, Receiver: originalSender.Email}

	if sendErr != nil {
		sendLocks.Unlock(replier.ID)
		result.Failed++
		detail.Error = sendErr.Error()
		ar.logger.WithError(sendErr).WithFields(logrus.Fields{
			"replier": replier.Email,
			"to":      originalSender.Email,
		}).Warn("auto-reply send failed")
		result.Details = append(result.Details, detail)
		return
	}

	replyRecord := models.WarmupEmail{
		SenderMailboxID:   replier.ID,
		ReceiverMailboxID: &original.SenderMailboxID,
		Subject:           content.Subject,
		BodyHTML:          bodyHTML,
		BodyText:          content.BodyText,
		MessageID:         messageID,
		TrackingToken:     token,
		Status:            models.EmailSent,
		SentAt:            now,
		AIGenerated:       content.AIGenerated,
		AIProvider:        content.AIProvider,
	}
	if err := ar.db.Create(&replyRecord).Error; err != nil {
		ar.logger.WithError(err).Error("failed to record auto-reply email")
	}

	if err := ar.db.Model(&models.WarmupEmail{}).Where("id = ?", original.ID).Updates(map[string]interface{}{
		"status":     models.EmailReplied,
		"replied_at": now,
	}).Error; err != nil {
		ar.logger.WithError(err).Error("failed to mark original as replied")
	}

	err := ar.db.Model(&models.Mailbox{}).Where("id = ?", replier.ID).Updates(map[string]interface{}{
		"emails_sent_today":  gorm.Expr("emails_sent_today + ?", 1),
		"total_emails_sent":  gorm.Expr("total_emails_sent + ?", 1),
		"warmup_emails_sent": gorm.Expr("warmup_emails_sent + ?", 1),
		"last_sent_at":       now,
	}).Error
	sendLocks.Unlock(replier.ID)
	if err != nil {
		ar.logger.WithError(err).Error("failed to update replier counters")
	}

	sendLocks.Lock(originalSender.ID)
	err = ar.db.Model(&models.Mailbox{}).Where("id = ?", originalSender.ID).Updates(map[string]interface{}{
		"reply_count":            gorm.Expr("reply_count + ?", 1),
		"warmup_replies":         gorm.Expr("warmup_replies + ?", 1),
		"warmup_emails_received": gorm.Expr("warmup_emails_received + ?", 1),
	}).Error
	sendLocks.Unlock(originalSender.ID)
	if err != nil {
		ar.logger.WithError(err).Error("failed to update original sender counters")
	}

	result.Sent++
	detail.Success = true
	result.Details = append(result.Details, detail)
}
