package warmup

import (
	"fmt"
	"testing"
	"time"

	"coldreach/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeIMAPSession serves canned folder listings and message locations.
type fakeIMAPSession struct {
	folders  []string
	messages map[string][]string // folder -> message IDs
	closed   bool
}

func (fs *fakeIMAPSession) Folders() ([]string, error) {
	return fs.folders, nil
}

func (fs *fakeIMAPSession) FindMessage(folder, messageID string) (bool, string, error) {
	for _, id := range fs.messages[folder] {
		if id == messageID {
			return true, "a subject", nil
		}
	}
	return false, "", nil
}

func (fs *fakeIMAPSession) Close() error {
	fs.closed = true
	return nil
}

func seedReceivedEmail(t *testing.T, db *gorm.DB, sender, receiver *models.Mailbox, messageID string, sentAt time.Time) *models.WarmupEmail {
	t.Helper()
	email := &models.WarmupEmail{
		SenderMailboxID:   sender.ID,
		ReceiverMailboxID: &receiver.ID,
		Subject:           "Quick question for you",
		MessageID:         messageID,
		TrackingToken:     uuid.New().String(),
		Status:            models.EmailSent,
		SentAt:            sentAt,
	}
	require.NoError(t, db.Create(email).Error)
	return email
}

func TestPlacementCheckCountsInboxAndSpam(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	sender := seedMailbox(t, db, "alice@example.com", models.StatusWarmingUp)
	receiver := seedMailbox(t, db, "bob@example.org", models.StatusWarmingUp)

	seedReceivedEmail(t, db, sender, receiver, "<m1@example.com>", now.Add(-2*time.Hour))
	seedReceivedEmail(t, db, sender, receiver, "<m2@example.com>", now.Add(-3*time.Hour))
	seedReceivedEmail(t, db, sender, receiver, "<m3@example.com>", now.Add(-4*time.Hour))

	session := &fakeIMAPSession{
		folders: []string{"INBOX", "Drafts", "Junk"},
		messages: map[string][]string{
			"INBOX": {"<m1@example.com>", "<m2@example.com>"},
			"Junk":  {"<m3@example.com>"},
		},
	}
	pc := NewPlacementChecker(db, testLogger(), newFakeClock(now))
	pc.dial = func(*models.Mailbox) (imapSession, error) { return session, nil }

	result, err := pc.CheckMailbox(receiver)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Inbox)
	assert.Equal(t, 1, result.Spam)
	assert.Zero(t, result.Missing)
	assert.InDelta(t, 66.7, result.InboxRate, 0.01)
	assert.True(t, session.closed)
}

func TestPlacementCheckMissingDoesNotLowerRate(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	sender := seedMailbox(t, db, "alice@example.com", models.StatusWarmingUp)
	receiver := seedMailbox(t, db, "bob@example.org", models.StatusWarmingUp)

	seedReceivedEmail(t, db, sender, receiver, "<m1@example.com>", now.Add(-time.Hour))
	seedReceivedEmail(t, db, sender, receiver, "<gone@example.com>", now.Add(-time.Hour))

	session := &fakeIMAPSession{
		folders:  []string{"INBOX", "Spam"},
		messages: map[string][]string{"INBOX": {"<m1@example.com>"}},
	}
	pc := NewPlacementChecker(db, testLogger(), newFakeClock(now))
	pc.dial = func(*models.Mailbox) (imapSession, error) { return session, nil }

	result, err := pc.CheckMailbox(receiver)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inbox)
	assert.Equal(t, 1, result.Missing)
	assert.Equal(t, 100.0, result.InboxRate)
}

func TestPlacementCheckSkipsIMAPWhenNothingReceived(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	receiver := seedMailbox(t, db, "bob@example.org", models.StatusWarmingUp)

	pc := NewPlacementChecker(db, testLogger(), newFakeClock(now))
	pc.dial = func(*models.Mailbox) (imapSession, error) {
		return nil, fmt.Errorf("dial should not happen")
	}

	result, err := pc.CheckMailbox(receiver)
	require.NoError(t, err)
	assert.Zero(t, result.Total)
}

func TestPlacementCheckIgnoresOldAndFailedEmails(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	sender := seedMailbox(t, db, "alice@example.com", models.StatusWarmingUp)
	receiver := seedMailbox(t, db, "bob@example.org", models.StatusWarmingUp)

	seedReceivedEmail(t, db, sender, receiver, "<old@example.com>", now.Add(-48*time.Hour))
	failed := seedReceivedEmail(t, db, sender, receiver, "<failed@example.com>", now.Add(-time.Hour))
	require.NoError(t, db.Model(failed).Update("status", models.EmailFailed).Error)

	session := &fakeIMAPSession{folders: []string{"INBOX"}}
	pc := NewPlacementChecker(db, testLogger(), newFakeClock(now))
	pc.dial = func(*models.Mailbox) (imapSession, error) { return session, nil }

	result, err := pc.CheckMailbox(receiver)
	require.NoError(t, err)
	assert.Zero(t, result.Total)
}

func TestMatchSpamFolders(t *testing.T) {
	matched := matchSpamFolders([]string{"INBOX", "junk", "[Gmail]/Spam", "Archive"})
	assert.Equal(t, []string{"junk", "[Gmail]/Spam"}, matched)
}
