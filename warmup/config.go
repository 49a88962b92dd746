package warmup

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"coldreach/models"

	"gorm.io/gorm"
)

// DefaultBlacklistProviders are the DNSBL zones queried when the admin
// settings store has no warmup_blacklist_providers override.
var DefaultBlacklistProviders = []string{
	"zen.spamhaus.org",
	"bl.spamcop.net",
	"b.barracudacentral.org",
	"dnsbl.sorbs.net",
	"cbl.abuseat.org",
	"dnsbl-1.uceprotect.net",
}

// PhaseConfig is one of the four ramp phases.
type PhaseConfig struct {
	Days      int `json:"days"`
	MinEmails int `json:"min_emails"`
	MaxEmails int `json:"max_emails"`
}

// Config is the typed warmup configuration snapshot assembled once per run
// from the settings store. Downstream pure functions never re-parse raw
// setting values.
type Config struct {
	Phases    [4]PhaseConfig `json:"phases"`
	TotalDays int            `json:"total_days"`

	BounceRateGood   float64 `json:"bounce_rate_good"`
	BounceRateBad    float64 `json:"bounce_rate_bad"`
	ReplyRateGood    float64 `json:"reply_rate_good"`
	ComplaintRateBad float64 `json:"complaint_rate_bad"`

	WeightBounce    int `json:"weight_bounce_rate"`
	WeightReply     int `json:"weight_reply_rate"`
	WeightComplaint int `json:"weight_complaint_rate"`
	WeightAge       int `json:"weight_age"`

	AutoPauseBounceRate    float64 `json:"auto_pause_bounce_rate"`
	AutoPauseComplaintRate float64 `json:"auto_pause_complaint_rate"`
	MinEmailsForScoring    int     `json:"min_emails_for_scoring"`
	ActiveHealthThreshold  int     `json:"active_health_threshold"`
	ActiveMinDays          int     `json:"active_min_days"`

	PeerEnabled     bool `json:"peer_enabled"`
	PeerMaxPerCycle int  `json:"peer_max_emails_per_pair"`

	AutoReplyEnabled  bool    `json:"auto_reply_enabled"`
	AutoReplyRate     float64 `json:"auto_reply_rate"`
	AutoReplyMinDelay int     `json:"auto_reply_min_delay"` // minutes
	AutoReplyMaxDelay int     `json:"auto_reply_max_delay"` // minutes

	SkipWeekends    bool   `json:"skip_weekends"`
	SendWindowStart string `json:"send_window_start"`
	SendWindowEnd   string `json:"send_window_end"`
	Timezone        string `json:"timezone"`

	DKIMSelector         string   `json:"dkim_selector"`
	BlacklistProviders   []string `json:"blacklist_providers"`
	AutoPauseOnBlacklist bool     `json:"auto_pause_on_blacklist"`

	AutoRecoveryEnabled bool    `json:"auto_recovery_enabled"`
	RecoveryWaitDays    int     `json:"recovery_wait_days"`
	RecoveryRampFactor  float64 `json:"recovery_ramp_factor"`

	TrackingBaseURL string `json:"tracking_base_url"`

	AIProvider       string  `json:"ai_provider"`
	AIAPIKey         string  `json:"-"`
	AIBaseURL        string  `json:"ai_base_url"`
	AIModel          string  `json:"ai_model"`
	AITemperature    float64 `json:"ai_temperature"`
	ContentMaxLength int     `json:"content_max_length"`

	SeedEmails []string `json:"seed_emails"`
}

// DefaultConfig returns the hard-coded fallbacks applied when a settings key
// is absent or malformed. Missing configuration is never fatal.
func DefaultConfig() Config {
	return Config{
		Phases: [4]PhaseConfig{
			{Days: 7, MinEmails: 2, MaxEmails: 5},
			{Days: 7, MinEmails: 5, MaxEmails: 15},
			{Days: 7, MinEmails: 15, MaxEmails: 25},
			{Days: 9, MinEmails: 25, MaxEmails: 35},
		},
		TotalDays: 30,

		BounceRateGood:   2.0,
		BounceRateBad:    5.0,
		ReplyRateGood:    10.0,
		ComplaintRateBad: 0.1,

		WeightBounce:    35,
		WeightReply:     25,
		WeightComplaint: 25,
		WeightAge:       15,

		AutoPauseBounceRate:    5.0,
		AutoPauseComplaintRate: 0.3,
		MinEmailsForScoring:    10,
		ActiveHealthThreshold:  80,
		ActiveMinDays:          7,

		PeerEnabled:     true,
		PeerMaxPerCycle: 3,

		AutoReplyEnabled:  true,
		AutoReplyRate:     0.5,
		AutoReplyMinDelay: 15,
		AutoReplyMaxDelay: 90,

		SkipWeekends:    true,
		SendWindowStart: "09:00",
		SendWindowEnd:   "17:00",
		Timezone:        "UTC",

		DKIMSelector:         "default",
		BlacklistProviders:   DefaultBlacklistProviders,
		AutoPauseOnBlacklist: true,

		AutoRecoveryEnabled: true,
		RecoveryWaitDays:    3,
		RecoveryRampFactor:  1.5,

		TrackingBaseURL: "http://localhost:8000",

		AIProvider:       "",
		AITemperature:    0.8,
		ContentMaxLength: 200,
	}
}

// LoadConfig assembles the typed snapshot from the settings store. Every key
// falls back to its default when missing or malformed.
func LoadConfig(db *gorm.DB) Config {
	cfg := DefaultConfig()

	for i := 0; i < 4; i++ {
		n := i + 1
		cfg.Phases[i].Days = getInt(db, fmt.Sprintf("warmup_phase_%d_days", n), cfg.Phases[i].Days)
		cfg.Phases[i].MinEmails = getInt(db, fmt.Sprintf("warmup_phase_%d_min_emails", n), cfg.Phases[i].MinEmails)
		cfg.Phases[i].MaxEmails = getInt(db, fmt.Sprintf("warmup_phase_%d_max_emails", n), cfg.Phases[i].MaxEmails)
	}
	cfg.TotalDays = getInt(db, "warmup_total_days", cfg.TotalDays)

	cfg.BounceRateGood = getFloat(db, "warmup_bounce_rate_good", cfg.BounceRateGood)
	cfg.BounceRateBad = getFloat(db, "warmup_bounce_rate_bad", cfg.BounceRateBad)
	cfg.ReplyRateGood = getFloat(db, "warmup_reply_rate_good", cfg.ReplyRateGood)
	cfg.ComplaintRateBad = getFloat(db, "warmup_complaint_rate_bad", cfg.ComplaintRateBad)

	cfg.WeightBounce = getInt(db, "warmup_weight_bounce_rate", cfg.WeightBounce)
	cfg.WeightReply = getInt(db, "warmup_weight_reply_rate", cfg.WeightReply)
	cfg.WeightComplaint = getInt(db, "warmup_weight_complaint_rate", cfg.WeightComplaint)
	cfg.WeightAge = getInt(db, "warmup_weight_age", cfg.WeightAge)

	cfg.AutoPauseBounceRate = getFloat(db, "warmup_auto_pause_bounce_rate", cfg.AutoPauseBounceRate)
	cfg.AutoPauseComplaintRate = getFloat(db, "warmup_auto_pause_complaint_rate", cfg.AutoPauseComplaintRate)
	cfg.MinEmailsForScoring = getInt(db, "warmup_min_emails_for_scoring", cfg.MinEmailsForScoring)
	cfg.ActiveHealthThreshold = getInt(db, "warmup_active_health_threshold", cfg.ActiveHealthThreshold)
	cfg.ActiveMinDays = getInt(db, "warmup_active_min_days", cfg.ActiveMinDays)

	cfg.PeerEnabled = getBool(db, "warmup_peer_enabled", cfg.PeerEnabled)
	cfg.PeerMaxPerCycle = getInt(db, "warmup_peer_max_emails_per_pair", cfg.PeerMaxPerCycle)

	cfg.AutoReplyEnabled = getBool(db, "warmup_auto_reply_enabled", cfg.AutoReplyEnabled)
	cfg.AutoReplyRate = getFloat(db, "warmup_auto_reply_rate", cfg.AutoReplyRate)
	cfg.AutoReplyMinDelay = getInt(db, "warmup_auto_reply_min_delay", cfg.AutoReplyMinDelay)
	cfg.AutoReplyMaxDelay = getInt(db, "warmup_auto_reply_max_delay", cfg.AutoReplyMaxDelay)

	cfg.SkipWeekends = getBool(db, "warmup_skip_weekends", cfg.SkipWeekends)
	cfg.SendWindowStart = getString(db, "warmup_send_window_start", cfg.SendWindowStart)
	cfg.SendWindowEnd = getString(db, "warmup_send_window_end", cfg.SendWindowEnd)
	cfg.Timezone = getString(db, "warmup_timezone", cfg.Timezone)

	cfg.DKIMSelector = getString(db, "warmup_dkim_selector", cfg.DKIMSelector)
	cfg.BlacklistProviders = getStringList(db, "warmup_blacklist_providers", cfg.BlacklistProviders)
	cfg.AutoPauseOnBlacklist = getBool(db, "warmup_auto_pause_on_blacklist", cfg.AutoPauseOnBlacklist)

	cfg.AutoRecoveryEnabled = getBool(db, "warmup_auto_recovery_enabled", cfg.AutoRecoveryEnabled)
	cfg.RecoveryWaitDays = getInt(db, "warmup_recovery_wait_days", cfg.RecoveryWaitDays)
	cfg.RecoveryRampFactor = getFloat(db, "warmup_recovery_ramp_factor", cfg.RecoveryRampFactor)

	cfg.TrackingBaseURL = getString(db, "warmup_tracking_base_url", cfg.TrackingBaseURL)

	cfg.AIProvider = getString(db, "warmup_ai_provider", cfg.AIProvider)
	if cfg.AIProvider != "" {
		cfg.AIAPIKey = getString(db, cfg.AIProvider+"_api_key", "")
		cfg.AIBaseURL = getString(db, "warmup_ai_base_url", cfg.AIBaseURL)
		cfg.AIModel = getString(db, "warmup_ai_model", cfg.AIModel)
	}
	cfg.AITemperature = getFloat(db, "warmup_ai_temperature", cfg.AITemperature)
	cfg.ContentMaxLength = getInt(db, "warmup_content_max_length", cfg.ContentMaxLength)

	cfg.SeedEmails = getStringList(db, "warmup_seed_emails", cfg.SeedEmails)

	cfg.normalize()
	return cfg
}

// normalize clamps out-of-range values back to sane bounds.
func (c *Config) normalize() {
	for i := range c.Phases {
		if c.Phases[i].Days < 1 {
			c.Phases[i].Days = 1
		}
		if c.Phases[i].MinEmails < 1 {
			c.Phases[i].MinEmails = 1
		}
		if c.Phases[i].MaxEmails < c.Phases[i].MinEmails {
			c.Phases[i].MaxEmails = c.Phases[i].MinEmails
		}
	}
	if c.TotalDays < 1 {
		c.TotalDays = 1
	}
	if c.AutoReplyRate < 0 {
		c.AutoReplyRate = 0
	}
	if c.AutoReplyRate > 1 {
		c.AutoReplyRate = 1
	}
	if c.AutoReplyMinDelay < 1 {
		c.AutoReplyMinDelay = 1
	}
	if c.AutoReplyMaxDelay < c.AutoReplyMinDelay {
		c.AutoReplyMaxDelay = c.AutoReplyMinDelay
	}
	if c.RecoveryRampFactor < 1 {
		c.RecoveryRampFactor = 1
	}
	if len(c.BlacklistProviders) == 0 {
		c.BlacklistProviders = DefaultBlacklistProviders
	}
}

// SendWindow resolves the configured send window into start and end hours in
// the configured timezone. Unparseable values fall back to 09-17 UTC.
func (c Config) SendWindow() (startHour, endHour int, loc *time.Location) {
	startHour, endHour = 9, 17
	if h, ok := parseClockHour(c.SendWindowStart); ok {
		startHour = h
	}
	if h, ok := parseClockHour(c.SendWindowEnd); ok {
		endHour = h
	}
	if endHour < startHour {
		startHour, endHour = 9, 17
	}
	loc = time.UTC
	if c.Timezone != "" {
		if l, err := time.LoadLocation(c.Timezone); err == nil {
			loc = l
		}
	}
	return startHour, endHour, loc
}

// parseClockHour reads the hour out of an "HH:MM" clock value.
func parseClockHour(s string) (int, bool) {
	hh, _, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		hh = strings.TrimSpace(s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}

// profilePatch mirrors the WarmupProfile config payload. Only present keys
// override the global snapshot.
type profilePatch struct {
	Phase1Days      *int `json:"phase_1_days"`
	Phase1MinEmails *int `json:"phase_1_min_emails"`
	Phase1MaxEmails *int `json:"phase_1_max_emails"`
	Phase2Days      *int `json:"phase_2_days"`
	Phase2MinEmails *int `json:"phase_2_min_emails"`
	Phase2MaxEmails *int `json:"phase_2_max_emails"`
	Phase3Days      *int `json:"phase_3_days"`
	Phase3MinEmails *int `json:"phase_3_min_emails"`
	Phase3MaxEmails *int `json:"phase_3_max_emails"`
	Phase4Days      *int `json:"phase_4_days"`
	Phase4MinEmails *int `json:"phase_4_min_emails"`
	Phase4MaxEmails *int `json:"phase_4_max_emails"`
	TotalDays       *int `json:"total_days"`
}

// ResolveConfig applies a mailbox's warmup profile, when one is linked, over
// the global snapshot. Mailboxes without a profile use the snapshot as-is.
func ResolveConfig(db *gorm.DB, mailbox *models.Mailbox, base Config) Config {
	if mailbox.WarmupProfileID == nil {
		return base
	}
	var profile models.WarmupProfile
	if err := db.First(&profile, *mailbox.WarmupProfileID).Error; err != nil {
		return base
	}
	var patch profilePatch
	if err := json.Unmarshal([]byte(profile.ConfigJSON), &patch); err != nil {
		return base
	}

	cfg := base
	apply := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&cfg.Phases[0].Days, patch.Phase1Days)
	apply(&cfg.Phases[0].MinEmails, patch.Phase1MinEmails)
	apply(&cfg.Phases[0].MaxEmails, patch.Phase1MaxEmails)
	apply(&cfg.Phases[1].Days, patch.Phase2Days)
	apply(&cfg.Phases[1].MinEmails, patch.Phase2MinEmails)
	apply(&cfg.Phases[1].MaxEmails, patch.Phase2MaxEmails)
	apply(&cfg.Phases[2].Days, patch.Phase3Days)
	apply(&cfg.Phases[2].MinEmails, patch.Phase3MinEmails)
	apply(&cfg.Phases[2].MaxEmails, patch.Phase3MaxEmails)
	apply(&cfg.Phases[3].Days, patch.Phase4Days)
	apply(&cfg.Phases[3].MinEmails, patch.Phase4MinEmails)
	apply(&cfg.Phases[3].MaxEmails, patch.Phase4MaxEmails)
	apply(&cfg.TotalDays, patch.TotalDays)

	cfg.normalize()
	return cfg
}

// Settings readers. A malformed value behaves the same as a missing key.

func rawSetting(db *gorm.DB, key string) (string, bool) {
	var setting models.Setting
	if err := db.Where("key = ?", key).First(&setting).Error; err != nil {
		return "", false
	}
	if strings.TrimSpace(setting.ValueJSON) == "" {
		return "", false
	}
	return setting.ValueJSON, true
}

func getInt(db *gorm.DB, key string, fallback int) int {
	raw, ok := rawSetting(db, key)
	if !ok {
		return fallback
	}
	var v int
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return fallback
	}
	return v
}

func getFloat(db *gorm.DB, key string, fallback float64) float64 {
	raw, ok := rawSetting(db, key)
	if !ok {
		return fallback
	}
	var v float64
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return fallback
	}
	return v
}

func getBool(db *gorm.DB, key string, fallback bool) bool {
	raw, ok := rawSetting(db, key)
	if !ok {
		return fallback
	}
	var v bool
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return fallback
	}
	return v
}

func getString(db *gorm.DB, key string, fallback string) string {
	raw, ok := rawSetting(db, key)
	if !ok {
		return fallback
	}
	var v string
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		// Tolerate plain unquoted strings written by older admin panels.
		return raw
	}
	return v
}

func getStringList(db *gorm.DB, key string, fallback []string) []string {
	raw, ok := rawSetting(db, key)
	if !ok {
		return fallback
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return list
	}
	// Comma-separated form is accepted as well.
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		s = raw
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
