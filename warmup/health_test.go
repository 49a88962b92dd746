package warmup

import (
	"testing"
	"time"

	"coldreach/models"

	"github.com/stretchr/testify/assert"
)

func TestCalculateHealthScoreNewMailbox(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mb := &models.Mailbox{}
	mb.CreatedAt = now

	score := CalculateHealthScore(mb, cfg, now)

	// Zero sends: no rates, perfect bounce and complaint sub-scores, zero
	// reply and age sub-scores.
	assert.Equal(t, 0.0, score.BounceRate)
	assert.Equal(t, 100.0, score.BounceScore)
	assert.Equal(t, 0.0, score.ReplyScore)
	assert.Equal(t, 100.0, score.ComplaintScore)
	assert.Equal(t, 0.0, score.AgeScore)
	assert.Equal(t, 60.0, score.HealthScore)
}

func TestCalculateHealthScorePerfectMailbox(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	mb := &models.Mailbox{
		TotalEmailsSent: 1000,
		ReplyCount:      150, // 15% reply rate, above target
	}
	mb.CreatedAt = now.Add(-120 * 24 * time.Hour)

	score := CalculateHealthScore(mb, cfg, now)

	assert.Equal(t, 100.0, score.BounceScore)
	assert.Equal(t, 100.0, score.ReplyScore)
	assert.Equal(t, 100.0, score.ComplaintScore)
	assert.Equal(t, 100.0, score.AgeScore)
	assert.Equal(t, 100.0, score.HealthScore)
}

func TestCalculateHealthScoreBounceInterpolation(t *testing.T) {
	cfg := DefaultConfig() // good 2%, bad 5%
	now := time.Now().UTC()
	mb := &models.Mailbox{
		TotalEmailsSent: 1000,
		BounceCount:     35, // 3.5%, halfway between thresholds
	}
	mb.CreatedAt = now

	score := CalculateHealthScore(mb, cfg, now)
	assert.Equal(t, 3.5, score.BounceRate)
	assert.Equal(t, 50.0, score.BounceScore)
}

func TestCalculateHealthScoreBadRatesHitZero(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Now().UTC()
	mb := &models.Mailbox{
		TotalEmailsSent: 100,
		BounceCount:     10, // 10% >= bad threshold
		ComplaintCount:  1,  // 1% >= complaint threshold
	}
	mb.CreatedAt = now

	score := CalculateHealthScore(mb, cfg, now)
	assert.Equal(t, 0.0, score.BounceScore)
	assert.Equal(t, 0.0, score.ComplaintScore)
}

func TestCalculateHealthScoreAgeCaps(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Now().UTC()

	mb := &models.Mailbox{}
	mb.CreatedAt = now.Add(-45 * 24 * time.Hour)
	assert.Equal(t, 50.0, CalculateHealthScore(mb, cfg, now).AgeScore)

	mb.CreatedAt = now.Add(-400 * 24 * time.Hour)
	assert.Equal(t, 100.0, CalculateHealthScore(mb, cfg, now).AgeScore)
}

func TestCalculateHealthScoreZeroWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WeightBounce = 0
	cfg.WeightReply = 0
	cfg.WeightComplaint = 0
	cfg.WeightAge = 0

	mb := &models.Mailbox{TotalEmailsSent: 100, ReplyCount: 20}
	mb.CreatedAt = time.Now().UTC()

	score := CalculateHealthScore(mb, cfg, time.Now().UTC())
	assert.Equal(t, 0.0, score.HealthScore)
}
