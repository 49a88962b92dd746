package warmup

import (
	"testing"
	"time"

	"coldreach/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInjectTrackingPixel(t *testing.T) {
	withBody := InjectTrackingPixel("<html><body><p>Hi</p></body></html>", "https://track.example.com/", "tok123")
	assert.Contains(t, withBody, `https://track.example.com/t/tok123/px.gif`)
	assert.True(t, len(withBody) > len("</body>"))
	// The pixel lands inside the body element.
	assert.Contains(t, withBody, `style="display:none" alt="" /></body>`)

	bare := InjectTrackingPixel("<p>Hi</p>", "https://track.example.com", "tok123")
	assert.Contains(t, bare, "/t/tok123/px.gif")
}

func TestTrackedLinkURL(t *testing.T) {
	link := TrackedLinkURL("https://track.example.com", "tok123", "https://example.com/page?a=1")
	assert.Equal(t, "https://track.example.com/t/tok123/l?url=https%3A%2F%2Fexample.com%2Fpage%3Fa%3D1", link)
}

func TestRecordOpenFirstOpenWins(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	sender := seedMailbox(t, db, "alice@example.com", models.StatusWarmingUp)
	receiver := seedMailbox(t, db, "bob@example.org", models.StatusWarmingUp)
	email := seedWarmupEmail(t, db, sender, receiver, now.Add(-time.Hour))

	found, err := RecordOpen(db, email.TrackingToken, now)
	require.NoError(t, err)
	assert.True(t, found)

	var got models.WarmupEmail
	require.NoError(t, db.First(&got, email.ID).Error)
	assert.Equal(t, models.EmailOpened, got.Status)
	require.NotNil(t, got.OpenedAt)
	firstOpen := *got.OpenedAt

	assert.Equal(t, 1, reloadMailbox(t, db, sender.ID).WarmupOpens)

	// A second open neither moves the timestamp nor double-counts.
	found, err = RecordOpen(db, email.TrackingToken, now.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, found)

	require.NoError(t, db.First(&got, email.ID).Error)
	assert.True(t, got.OpenedAt.Equal(firstOpen))
	assert.Equal(t, 1, reloadMailbox(t, db, sender.ID).WarmupOpens)
}

func TestRecordOpenUnknownToken(t *testing.T) {
	db := newTestDB(t)
	found, err := RecordOpen(db, "no-such-token", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRecordOpenPreservesRepliedStatus(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	sender := seedMailbox(t, db, "alice@example.com", models.StatusWarmingUp)
	receiver := seedMailbox(t, db, "bob@example.org", models.StatusWarmingUp)
	email := seedWarmupEmail(t, db, sender, receiver, now.Add(-2*time.Hour))
	require.NoError(t, db.Model(email).Updates(map[string]interface{}{
		"status":     models.EmailReplied,
		"replied_at": now.Add(-time.Hour),
	}).Error)

	// A late pixel load must not demote a replied email back to opened.
	found, err := RecordOpen(db, email.TrackingToken, now)
	require.NoError(t, err)
	assert.True(t, found)

	var got models.WarmupEmail
	require.NoError(t, db.First(&got, email.ID).Error)
	assert.Equal(t, models.EmailReplied, got.Status)
	require.NotNil(t, got.OpenedAt)
}

func TestRecordClickImpliesOpen(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	sender := seedMailbox(t, db, "alice@example.com", models.StatusWarmingUp)
	receiver := seedMailbox(t, db, "bob@example.org", models.StatusWarmingUp)
	email := seedWarmupEmail(t, db, sender, receiver, now.Add(-time.Hour))

	found, err := RecordClick(db, email.TrackingToken, now)
	require.NoError(t, err)
	assert.True(t, found)

	var got models.WarmupEmail
	require.NoError(t, db.First(&got, email.ID).Error)
	require.NotNil(t, got.OpenedAt)
}
