package warmup

import (
	"math/rand"
	"strings"
	"time"

	"coldreach/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PairResult is the outcome of one (sender, peer) send attempt.
type PairResult struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// CycleResult summarizes one peer-warmup or auto-reply cycle.
type CycleResult struct {
	Skipped bool         `json:"skipped,omitempty"`
	Reason  string       `json:"reason,omitempty"`
	Total   int          `json:"total"`
	Sent    int          `json:"sent"`
	Failed  int          `json:"failed"`
	Details []PairResult `json:"details"`
}

// PeerNetwork exchanges synthetic conversational email between warming
// mailboxes to build sender reputation.
type PeerNetwork struct {
	db     *gorm.DB
	logger *logrus.Entry
	clock  Clock
	mailer Mailer
}

func NewPeerNetwork(db *gorm.DB, logger *logrus.Entry, clock Clock, mailer Mailer) *PeerNetwork {
	return &PeerNetwork{db: db, logger: logger, clock: clock, mailer: mailer}
}

// eligibleQuery selects active, successfully-connected mailboxes that are
// currently warming or recovering.
func (pn *PeerNetwork) eligibleQuery() *gorm.DB {
	return pn.db.Where("warmup_status IN ?", []models.WarmupStatus{models.StatusWarmingUp, models.StatusRecovering}).
		Where("is_active = ?", true).
		Where("connection_status = ?", models.ConnectionSuccessful)
}

// selectPeers picks up to max random partners for a sender. A mailbox is
// never its own peer.
func (pn *PeerNetwork) selectPeers(sender *models.Mailbox, max int) ([]models.Mailbox, error) {
	var peers []models.Mailbox
	if err := pn.eligibleQuery().Where("id != ?", sender.ID).Find(&peers).Error; err != nil {
		return nil, err
	}
	rand.Shuffle(len(peers), func(i, j int) { peers[i], peers[j] = peers[j], peers[i] })
	if len(peers) > max {
		peers = peers[:max]
	}
	return peers, nil
}

// RunCycle executes one peer warmup pass. A nil mailboxID runs every
// eligible sender. Weekend-skip and the enabled toggle short-circuit the
// cycle before any network activity.
func (pn *PeerNetwork) RunCycle(mailboxID *uint) (*CycleResult, error) {
	cfg := LoadConfig(pn.db)

	if skipWeekend(cfg, pn.clock.Now()) {
		return &CycleResult{Skipped: true, Reason: "weekend - skipping warmup"}, nil
	}
	if !cfg.PeerEnabled {
		return &CycleResult{Skipped: true, Reason: "peer warmup disabled"}, nil
	}

	query := pn.eligibleQuery()
	if mailboxID != nil {
		query = query.Where("id = ?", *mailboxID)
	}
	var senders []models.Mailbox
	if err := query.Find(&senders).Error; err != nil {
		return nil, err
	}

	provider := NewContentProvider(cfg)
	result := &CycleResult{}
	seeds := pn.resolveSeeds(cfg.SeedEmails)

	for i := range senders {
		sender := &senders[i]
		if sender.EmailsSentToday >= sender.DailySendLimit {
			continue
		}

		peers, err := pn.selectPeers(sender, cfg.PeerMaxPerCycle)
		if err != nil {
			pn.logger.WithError(err).WithField("mailbox", sender.Email).Error("peer selection failed")
			continue
		}

		for j := range peers {
			if sender.EmailsSentToday >= sender.DailySendLimit {
				break
			}
			peer := &peers[j]
			pn.send(sender, peer.Email, displayName(peer), &peer.ID, cfg, provider, result)
		}

		// One seed delivery per cycle keeps placement data flowing without
		// eating the whole peer budget.
		if len(seeds) > 0 && sender.EmailsSentToday < sender.DailySendLimit {
			seed := seeds[rand.Intn(len(seeds))]
			if seed.email != sender.Email {
				pn.send(sender, seed.email, localPart(seed.email), seed.mailboxID, cfg, provider, result)
			}
		}
	}

	return result, nil
}

// seedTarget is one configured seed address. mailboxID is set when the
// address belongs to a managed mailbox, which lets the placement check verify
// the delivery over IMAP.
type seedTarget struct {
	email     string
	mailboxID *uint
}

func (pn *PeerNetwork) resolveSeeds(addresses []string) []seedTarget {
	targets := make([]seedTarget, 0, len(addresses))
	for _, addr := range addresses {
		target := seedTarget{email: addr}
		var mb models.Mailbox
		if err := pn.db.Where("email = ?", addr).First(&mb).Error; err == nil {
			id := mb.ID
			target.mailboxID = &id
		}
		targets = append(targets, target)
	}
	return targets
}

func (pn *PeerNetwork) send(sender *models.Mailbox, toEmail, toName string, receiverID *uint, cfg Config, provider ContentProvider, result *CycleResult) {
	// The sender lock is shared with the auto-replier. Re-checking the quota
	// under it keeps the daily limit intact when a reply cycle spends sends
	// between our query and this send.
	sendLocks.Lock(sender.ID)

	var current models.Mailbox
	if err := pn.db.Select("emails_sent_today", "daily_send_limit").First(&current, sender.ID).Error; err == nil &&
		current.EmailsSentToday >= current.DailySendLimit {
		sendLocks.Unlock(sender.ID)
		sender.EmailsSentToday = current.EmailsSentToday
		return
	}

	content := generateContent(provider, displayName(sender), toName)
	token := uuid.New().String()
	bodyHTML := InjectTrackingPixel(content.BodyHTML, cfg.TrackingBaseURL, token)

	now := pn.clock.Now()
	messageID, sendErr := pn.mailer.Send(sender, toEmail, content.Subject, bodyHTML, content.BodyText)

	status := models.EmailSent
	if sendErr != nil {
		status = models.EmailFailed
	}
	record := models.WarmupEmail{
		SenderMailboxID:   sender.ID,
		ReceiverMailboxID: receiverID,
		Subject:           content.Subject,
		BodyHTML:          bodyHTML,
		BodyText:          content.BodyText,
		MessageID:         messageID,
		TrackingToken:     token,
		Status:            status,
		SentAt:            now,
		AIGenerated:       content.AIGenerated,
		AIProvider:        content.AIProvider,
	}
	if err := pn.db.Create(&record).Error; err != nil {
		pn.logger.WithError(err).Error("failed to record warmup email")
	}

	result.Total++
	detail := PairResult{Sender: sender.Email, Receiver: toEmail}

	if sendErr != nil {
		sendLocks.Unlock(sender.ID)
		result.Failed++
		detail.Error = sendErr.Error()
		pn.logger.WithError(sendErr).WithFields(logrus.Fields{
			"sender":   sender.Email,
			"receiver": toEmail,
		}).Warn("peer warmup send failed")
		result.Details = append(result.Details, detail)
		return
	}

	result.Sent++
	detail.Success = true
	result.Details = append(result.Details, detail)
	sender.EmailsSentToday++

	err := pn.db.Model(&models.Mailbox{}).Where("id = ?", sender.ID).Updates(map[string]interface{}{
		"emails_sent_today":  gorm.Expr("emails_sent_today + ?", 1),
		"total_emails_sent":  gorm.Expr("total_emails_sent + ?", 1),
		"warmup_emails_sent": gorm.Expr("warmup_emails_sent + ?", 1),
		"last_sent_at":       now,
	}).Error
	sendLocks.Unlock(sender.ID)
	if err != nil {
		pn.logger.WithError(err).Error("failed to update sender counters")
	}

	// The receiver lock is taken only after the sender lock is released; two
	// held at once could deadlock against a reply going the other way.
	if receiverID != nil {
		sendLocks.Lock(*receiverID)
		err = pn.db.Model(&models.Mailbox{}).Where("id = ?", *receiverID).
			Update("warmup_emails_received", gorm.Expr("warmup_emails_received + ?", 1)).Error
		sendLocks.Unlock(*receiverID)
		if err != nil {
			pn.logger.WithError(err).Error("failed to update peer counters")
		}
	}
}

func displayName(mb *models.Mailbox) string {
	if mb.DisplayName != "" {
		return mb.DisplayName
	}
	return localPart(mb.Email)
}

func localPart(email string) string {
	local, _, found := strings.Cut(email, "@")
	if found {
		return local
	}
	return email
}

func skipWeekend(cfg Config, now time.Time) bool {
	if !cfg.SkipWeekends {
		return false
	}
	wd := now.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
