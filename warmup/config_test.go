package warmup

import (
	"testing"
	"time"

	"coldreach/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 30, cfg.TotalDays)
	assert.Equal(t, PhaseConfig{Days: 7, MinEmails: 2, MaxEmails: 5}, cfg.Phases[0])
	assert.Equal(t, PhaseConfig{Days: 9, MinEmails: 25, MaxEmails: 35}, cfg.Phases[3])
	assert.Equal(t, 100, cfg.WeightBounce+cfg.WeightReply+cfg.WeightComplaint+cfg.WeightAge)
	assert.True(t, cfg.SkipWeekends)
	assert.Equal(t, "default", cfg.DKIMSelector)
	assert.Equal(t, DefaultBlacklistProviders, cfg.BlacklistProviders)
}

func TestLoadConfigAppliesOverrides(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&models.Setting{Key: "warmup_total_days", ValueJSON: "45"}).Error)
	require.NoError(t, db.Create(&models.Setting{Key: "warmup_phase_1_max_emails", ValueJSON: "8"}).Error)
	require.NoError(t, db.Create(&models.Setting{Key: "warmup_skip_weekends", ValueJSON: "false"}).Error)
	require.NoError(t, db.Create(&models.Setting{Key: "warmup_dkim_selector", ValueJSON: `"s1"`}).Error)
	require.NoError(t, db.Create(&models.Setting{Key: "warmup_blacklist_providers", ValueJSON: `["zen.spamhaus.org"]`}).Error)

	cfg := LoadConfig(db)
	assert.Equal(t, 45, cfg.TotalDays)
	assert.Equal(t, 8, cfg.Phases[0].MaxEmails)
	assert.False(t, cfg.SkipWeekends)
	assert.Equal(t, "s1", cfg.DKIMSelector)
	assert.Equal(t, []string{"zen.spamhaus.org"}, cfg.BlacklistProviders)
}

func TestLoadConfigIgnoresMalformedValues(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&models.Setting{Key: "warmup_total_days", ValueJSON: "not-a-number"}).Error)
	require.NoError(t, db.Create(&models.Setting{Key: "warmup_auto_reply_rate", ValueJSON: ""}).Error)

	cfg := LoadConfig(db)
	assert.Equal(t, 30, cfg.TotalDays)
	assert.Equal(t, 0.5, cfg.AutoReplyRate)
}

func TestLoadConfigToleratesUnquotedStrings(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&models.Setting{Key: "warmup_dkim_selector", ValueJSON: "google"}).Error)
	require.NoError(t, db.Create(&models.Setting{Key: "warmup_blacklist_providers", ValueJSON: "zen.spamhaus.org, bl.spamcop.net"}).Error)

	cfg := LoadConfig(db)
	assert.Equal(t, "google", cfg.DKIMSelector)
	assert.Equal(t, []string{"zen.spamhaus.org", "bl.spamcop.net"}, cfg.BlacklistProviders)
}

func TestLoadConfigClampsOutOfRangeValues(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&models.Setting{Key: "warmup_auto_reply_rate", ValueJSON: "1.7"}).Error)
	require.NoError(t, db.Create(&models.Setting{Key: "warmup_phase_1_days", ValueJSON: "-2"}).Error)
	require.NoError(t, db.Create(&models.Setting{Key: "warmup_phase_2_max_emails", ValueJSON: "1"}).Error)
	require.NoError(t, db.Create(&models.Setting{Key: "warmup_recovery_ramp_factor", ValueJSON: "0.5"}).Error)

	cfg := LoadConfig(db)
	assert.Equal(t, 1.0, cfg.AutoReplyRate)
	assert.Equal(t, 1, cfg.Phases[0].Days)
	assert.Equal(t, cfg.Phases[1].MinEmails, cfg.Phases[1].MaxEmails)
	assert.Equal(t, 1.0, cfg.RecoveryRampFactor)
}

func TestResolveConfigAppliesProfilePatch(t *testing.T) {
	db := newTestDB(t)
	profile := models.WarmupProfile{
		Name:       "aggressive",
		ConfigJSON: `{"phase_1_max_emails": 10, "total_days": 21}`,
	}
	require.NoError(t, db.Create(&profile).Error)

	mb := seedMailbox(t, db, "alice@example.com", models.StatusWarmingUp, func(m *models.Mailbox) {
		m.WarmupProfileID = &profile.ID
	})

	cfg := ResolveConfig(db, mb, DefaultConfig())
	assert.Equal(t, 10, cfg.Phases[0].MaxEmails)
	assert.Equal(t, 21, cfg.TotalDays)
	// Untouched keys keep the global values.
	assert.Equal(t, 2, cfg.Phases[0].MinEmails)
	assert.Equal(t, 7, cfg.Phases[1].Days)
}

func TestResolveConfigWithoutProfile(t *testing.T) {
	db := newTestDB(t)
	mb := seedMailbox(t, db, "alice@example.com", models.StatusWarmingUp)

	cfg := ResolveConfig(db, mb, DefaultConfig())
	assert.Equal(t, DefaultConfig().TotalDays, cfg.TotalDays)
}

func TestResolveConfigIgnoresBrokenProfile(t *testing.T) {
	db := newTestDB(t)
	profile := models.WarmupProfile{Name: "broken", ConfigJSON: "{not json"}
	require.NoError(t, db.Create(&profile).Error)

	mb := seedMailbox(t, db, "alice@example.com", models.StatusWarmingUp, func(m *models.Mailbox) {
		m.WarmupProfileID = &profile.ID
	})

	cfg := ResolveConfig(db, mb, DefaultConfig())
	assert.Equal(t, 30, cfg.TotalDays)
}

func TestConfigSendWindow(t *testing.T) {
	cfg := DefaultConfig()
	start, end, loc := cfg.SendWindow()
	assert.Equal(t, 9, start)
	assert.Equal(t, 17, end)
	assert.Equal(t, time.UTC, loc)

	cfg.SendWindowStart = "10:30"
	cfg.SendWindowEnd = "14:00"
	cfg.Timezone = "America/New_York"
	start, end, loc = cfg.SendWindow()
	assert.Equal(t, 10, start)
	assert.Equal(t, 14, end)
	assert.Equal(t, "America/New_York", loc.String())

	// Garbage falls back to 09-17 UTC.
	cfg.SendWindowStart = "late morning"
	cfg.SendWindowEnd = "25:00"
	cfg.Timezone = "Mars/Olympus"
	start, end, loc = cfg.SendWindow()
	assert.Equal(t, 9, start)
	assert.Equal(t, 17, end)
	assert.Equal(t, time.UTC, loc)
}

func TestConfigSendWindowRejectsInvertedWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SendWindowStart = "18:00"
	cfg.SendWindowEnd = "08:00"
	start, end, _ := cfg.SendWindow()
	assert.Equal(t, 9, start)
	assert.Equal(t, 17, end)
}
