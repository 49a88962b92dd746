package warmup

import (
	"testing"
	"time"

	"coldreach/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedWarmupEmail(t *testing.T, db *gorm.DB, sender, receiver *models.Mailbox, sentAt time.Time) *models.WarmupEmail {
	t.Helper()
	email := &models.WarmupEmail{
		SenderMailboxID:   sender.ID,
		ReceiverMailboxID: &receiver.ID,
		Subject:           "Quick question about your project",
		BodyText:          "Hi, just checking in.",
		BodyHTML:          "<html><body><p>Hi, just checking in.</p></body></html>",
		TrackingToken:     uuid.New().String(),
		Status:            models.EmailSent,
		SentAt:            sentAt,
	}
	require.NoError(t, db.Create(email).Error)
	return email
}

func alwaysReply(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(&models.Setting{Key: "warmup_auto_reply_rate", ValueJSON: "1"}).Error)
}

func TestAutoReplyAnswersEligibleEmail(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC)
	clock := newFakeClock(now)
	mailer := newFakeMailer()
	ar := NewAutoReplier(db, testLogger(), clock, mailer)
	alwaysReply(t, db)

	sender := seedMailbox(t, db, "alice@example.com", models.StatusWarmingUp)
	receiver := seedMailbox(t, db, "bob@example.org", models.StatusWarmingUp)
	original := seedWarmupEmail(t, db, sender, receiver, now.Add(-3*time.Hour))

	result, err := ar.RunCycle()
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, mailer.sentCount())
	assert.Equal(t, "bob@example.org", mailer.sent[0].From)
	assert.Equal(t, "alice@example.com", mailer.sent[0].To)
	assert.Contains(t, mailer.sent[0].Subject, "Re:")

	// The original is marked replied
	var got models.WarmupEmail
	require.NoError(t, db.First(&got, original.ID).Error)
	assert.Equal(t, models.EmailReplied, got.Status)
	require.NotNil(t, got.RepliedAt)

	// The reply itself is a new audit row from bob back to alice
	var reply models.WarmupEmail
	require.NoError(t, db.Where("sender_mailbox_id = ?", receiver.ID).First(&reply).Error)
	assert.Equal(t, sender.ID, *reply.ReceiverMailboxID)

	// Counters move on both sides
	gotSender := reloadMailbox(t, db, sender.ID)
	gotReceiver := reloadMailbox(t, db, receiver.ID)
	assert.Equal(t, 1, gotSender.ReplyCount)
	assert.Equal(t, 1, gotSender.WarmupReplies)
	assert.Equal(t, 1, gotReceiver.EmailsSentToday)
	assert.Equal(t, 1, gotReceiver.WarmupEmailsSent)
}

func TestAutoReplySkipsTooRecentEmail(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC)
	ar := NewAutoReplier(db, testLogger(), newFakeClock(now), newFakeMailer())
	alwaysReply(t, db)

	sender := seedMailbox(t, db, "alice@example.com", models.StatusWarmingUp)
	receiver := seedMailbox(t, db, "bob@example.org", models.StatusWarmingUp)
	original := seedWarmupEmail(t, db, sender, receiver, now.Add(-5*time.Minute))

	result, err := ar.RunCycle()
	require.NoError(t, err)
	assert.Equal(t, 0, result.Sent)

	// Still a candidate for the next cycle
	var got models.WarmupEmail
	require.NoError(t, db.First(&got, original.ID).Error)
	assert.Equal(t, models.EmailSent, got.Status)
}

func TestAutoReplyIgnoresStaleEmail(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC)
	mailer := newFakeMailer()
	ar := NewAutoReplier(db, testLogger(), newFakeClock(now), mailer)
	alwaysReply(t, db)

	sender := seedMailbox(t, db, "alice@example.com", models.StatusWarmingUp)
	receiver := seedMailbox(t, db, "bob@example.org", models.StatusWarmingUp)
	seedWarmupEmail(t, db, sender, receiver, now.Add(-30*time.Hour))

	result, err := ar.RunCycle()
	require.NoError(t, err)
	assert.Equal(t, 0, result.Sent)
	assert.Zero(t, mailer.sentCount())
}

func TestAutoReplyDisabled(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC)
	ar := NewAutoReplier(db, testLogger(), newFakeClock(now), newFakeMailer())

	require.NoError(t, db.Create(&models.Setting{Key: "warmup_auto_reply_enabled", ValueJSON: "false"}).Error)

	result, err := ar.RunCycle()
	require.NoError(t, err)
	assert.True(t, result.Skipped)
}

func TestAutoReplySkipsWeekend(t *testing.T) {
	db := newTestDB(t)
	saturday := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	ar := NewAutoReplier(db, testLogger(), newFakeClock(saturday), newFakeMailer())
	alwaysReply(t, db)

	result, err := ar.RunCycle()
	require.NoError(t, err)
	assert.True(t, result.Skipped)
}

func TestAutoReplySkipsExhaustedReplier(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC)
	mailer := newFakeMailer()
	ar := NewAutoReplier(db, testLogger(), newFakeClock(now), mailer)
	alwaysReply(t, db)

	sender := seedMailbox(t, db, "alice@example.com", models.StatusWarmingUp)
	receiver := seedMailbox(t, db, "bob@example.org", models.StatusWarmingUp, func(m *models.Mailbox) {
		m.DailySendLimit = 3
		m.EmailsSentToday = 3
	})
	seedWarmupEmail(t, db, sender, receiver, now.Add(-3*time.Hour))

	result, err := ar.RunCycle()
	require.NoError(t, err)
	assert.Equal(t, 0, result.Sent)
	assert.Zero(t, mailer.sentCount())
}
