package warmup

import (
	"testing"
	"time"

	"coldreach/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoveryStart(t *testing.T) {
	db := newTestDB(t)
	clock := newFakeClock(time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC))
	svc := NewRecoveryService(db, testLogger(), clock)

	mb := seedMailbox(t, db, "paused@example.com", models.StatusPaused, func(m *models.Mailbox) {
		m.DailySendLimit = 20
		m.EmailsSentToday = 7
		m.WarmupDaysCompleted = 12
	})

	require.NoError(t, svc.Start(mb))

	got := reloadMailbox(t, db, mb.ID)
	assert.Equal(t, models.StatusRecovering, got.WarmupStatus)
	assert.Equal(t, 2, got.DailySendLimit)
	assert.Equal(t, 0, got.EmailsSentToday)
	assert.Equal(t, 0, got.WarmupDaysCompleted)
	require.NotNil(t, got.AutoRecoveryStartedAt)
}

func TestRecoveryStartRejectsWrongStatus(t *testing.T) {
	db := newTestDB(t)
	svc := NewRecoveryService(db, testLogger(), newFakeClock(time.Now().UTC()))

	mb := seedMailbox(t, db, "warm@example.com", models.StatusWarmingUp)
	assert.Error(t, svc.Start(mb))
}

func TestRecoveryAdvanceRamp(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 12, 6, 0, 0, 0, time.UTC)
	clock := newFakeClock(now)
	svc := NewRecoveryService(db, testLogger(), clock)
	cfg := DefaultConfig() // ramp factor 1.5

	started := now.Add(-24 * time.Hour)
	mb := seedMailbox(t, db, "ramp@example.com", models.StatusRecovering, func(m *models.Mailbox) {
		m.DailySendLimit = 2
		m.AutoRecoveryStartedAt = &started
	})

	// Fractional products truncate, so the early ramp climbs one step at a
	// time: 2 -> 3 -> 4 -> 6.
	require.NoError(t, svc.Advance(mb, cfg))
	got := reloadMailbox(t, db, mb.ID)
	assert.Equal(t, 3, got.DailySendLimit)
	assert.Equal(t, models.StatusRecovering, got.WarmupStatus)
	assert.Equal(t, 1, got.WarmupDaysCompleted)

	require.NoError(t, svc.Advance(got, cfg))
	got = reloadMailbox(t, db, mb.ID)
	assert.Equal(t, 4, got.DailySendLimit)
	assert.Equal(t, 2, got.WarmupDaysCompleted)

	require.NoError(t, svc.Advance(got, cfg))
	got = reloadMailbox(t, db, mb.ID)
	assert.Equal(t, 6, got.DailySendLimit)
	assert.Equal(t, 3, got.WarmupDaysCompleted)
}

func TestRecoveryCompletes(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 20, 6, 0, 0, 0, time.UTC)
	svc := NewRecoveryService(db, testLogger(), newFakeClock(now))

	started := now.Add(-8 * 24 * time.Hour)
	mb := seedMailbox(t, db, "healed@example.com", models.StatusRecovering, func(m *models.Mailbox) {
		m.DailySendLimit = 20
		m.AutoRecoveryStartedAt = &started
		m.IsBlacklisted = true
	})

	require.NoError(t, svc.Advance(mb, DefaultConfig()))

	got := reloadMailbox(t, db, mb.ID)
	assert.Equal(t, models.StatusWarmingUp, got.WarmupStatus)
	assert.Equal(t, 30, got.DailySendLimit)
	assert.False(t, got.IsBlacklisted)
	assert.Nil(t, got.AutoRecoveryStartedAt)
}

func TestRecoveryHoldsUntilMinimumDuration(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 20, 6, 0, 0, 0, time.UTC)
	svc := NewRecoveryService(db, testLogger(), newFakeClock(now))

	// Volume threshold met but only 2 days recovering
	started := now.Add(-2 * 24 * time.Hour)
	mb := seedMailbox(t, db, "early@example.com", models.StatusRecovering, func(m *models.Mailbox) {
		m.DailySendLimit = 20
		m.AutoRecoveryStartedAt = &started
	})

	require.NoError(t, svc.Advance(mb, DefaultConfig()))

	got := reloadMailbox(t, db, mb.ID)
	assert.Equal(t, models.StatusRecovering, got.WarmupStatus)
	assert.Equal(t, 30, got.DailySendLimit)
}

func TestRecoverySweepStartsWaitingMailboxes(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 20, 6, 0, 0, 0, time.UTC)
	svc := NewRecoveryService(db, testLogger(), newFakeClock(now))

	waiting := seedMailbox(t, db, "waiting@example.com", models.StatusPaused)
	recent := seedMailbox(t, db, "recent@example.com", models.StatusPaused)

	// The default wait period is 3 days; only the first mailbox has sat long
	// enough. UpdateColumn keeps gorm from touching updated_at.
	require.NoError(t, db.Model(waiting).UpdateColumn("updated_at", now.Add(-4*24*time.Hour)).Error)
	require.NoError(t, db.Model(recent).UpdateColumn("updated_at", now.Add(-1*24*time.Hour)).Error)

	started, advanced, err := svc.RunSweep()
	require.NoError(t, err)
	assert.Equal(t, 1, started)
	assert.Equal(t, 0, advanced)

	assert.Equal(t, models.StatusRecovering, reloadMailbox(t, db, waiting.ID).WarmupStatus)
	assert.Equal(t, models.StatusPaused, reloadMailbox(t, db, recent.ID).WarmupStatus)
}
