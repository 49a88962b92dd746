package warmup

import (
	"math"
	"time"

	"coldreach/models"
)

// HealthScore is the full per-mailbox score breakdown.
type HealthScore struct {
	HealthScore    float64 `json:"health_score"`
	BounceScore    float64 `json:"bounce_score"`
	ReplyScore     float64 `json:"reply_score"`
	ComplaintScore float64 `json:"complaint_score"`
	AgeScore       float64 `json:"age_score"`
	BounceRate     float64 `json:"bounce_rate"`
	ReplyRate      float64 `json:"reply_rate"`
	ComplaintRate  float64 `json:"complaint_rate"`
	AccountAgeDays int     `json:"account_age_days"`
}

// CalculateHealthScore computes the 0-100 composite reputation score from a
// mailbox's lifetime counters. Pure function: zero sends yields zero rates,
// never a division fault.
func CalculateHealthScore(mailbox *models.Mailbox, cfg Config, now time.Time) HealthScore {
	totalSent := mailbox.TotalEmailsSent

	var bounceRate, replyRate, complaintRate float64
	if totalSent > 0 {
		bounceRate = float64(mailbox.BounceCount) / float64(totalSent) * 100
		replyRate = float64(mailbox.ReplyCount) / float64(totalSent) * 100
		complaintRate = float64(mailbox.ComplaintCount) / float64(totalSent) * 100
	}

	ageDays := 0
	if !mailbox.CreatedAt.IsZero() {
		ageDays = int(now.Sub(mailbox.CreatedAt).Hours() / 24)
		if ageDays < 0 {
			ageDays = 0
		}
	}

	// Bounce rate: lower is better, linear between good and bad thresholds.
	var bounceScore float64
	switch {
	case bounceRate <= cfg.BounceRateGood:
		bounceScore = 100
	case bounceRate >= cfg.BounceRateBad:
		bounceScore = 0
	default:
		bounceScore = 100 * (1 - (bounceRate-cfg.BounceRateGood)/(cfg.BounceRateBad-cfg.BounceRateGood))
	}

	// Reply rate: higher is better, target rate scores 100.
	var replyScore float64
	switch {
	case replyRate >= cfg.ReplyRateGood:
		replyScore = 100
	case replyRate <= 0:
		replyScore = 0
	default:
		replyScore = 100 * (replyRate / cfg.ReplyRateGood)
	}

	// Complaint rate: any complaints above the bad threshold zero the score.
	var complaintScore float64
	switch {
	case complaintRate <= 0:
		complaintScore = 100
	case complaintRate >= cfg.ComplaintRateBad:
		complaintScore = 0
	default:
		complaintScore = 100 * (1 - complaintRate/cfg.ComplaintRateBad)
	}

	// Account age: linear up to a 90-day cap.
	var ageScore float64
	if ageDays >= 90 {
		ageScore = 100
	} else {
		ageScore = 100 * float64(ageDays) / 90
	}

	totalWeight := cfg.WeightBounce + cfg.WeightReply + cfg.WeightComplaint + cfg.WeightAge
	var health float64
	if totalWeight > 0 {
		health = (bounceScore*float64(cfg.WeightBounce) +
			replyScore*float64(cfg.WeightReply) +
			complaintScore*float64(cfg.WeightComplaint) +
			ageScore*float64(cfg.WeightAge)) / float64(totalWeight)
	}

	return HealthScore{
		HealthScore:    round1(health),
		BounceScore:    round1(bounceScore),
		ReplyScore:     round1(replyScore),
		ComplaintScore: round1(complaintScore),
		AgeScore:       round1(ageScore),
		BounceRate:     round2(bounceRate),
		ReplyRate:      round2(replyRate),
		ComplaintRate:  round3(complaintRate),
		AccountAgeDays: ageDays,
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
