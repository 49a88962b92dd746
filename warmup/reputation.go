package warmup

import (
	"time"

	"coldreach/models"

	"gorm.io/gorm"
)

// DomainReputation is the current standing of one sending domain.
type DomainReputation struct {
	Domain       string     `json:"domain"`
	Score        int        `json:"score"`
	DNSScore     int        `json:"dns_score"`
	Blacklisted  bool       `json:"blacklisted"`
	BounceRate   float64    `json:"bounce_rate"`
	Mailboxes    int        `json:"mailboxes"`
	LastDNSCheck *time.Time `json:"last_dns_check"`
	LastBLCheck  *time.Time `json:"last_blacklist_check"`
}

// DomainScore derives a 0-100 reputation score for one mailbox from its
// cached DNS score, blacklist state and lifetime bounce rate.
func DomainScore(mb *models.Mailbox) int {
	score := mb.DNSScore
	if mb.IsBlacklisted {
		score -= 40
	}

	if mb.TotalEmailsSent > 0 {
		bounceRate := float64(mb.BounceCount) / float64(mb.TotalEmailsSent) * 100
		switch {
		case bounceRate > 5:
			score -= 20
		case bounceRate > 2:
			score -= 10
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// DomainReputations aggregates reputation per domain across all active
// mailboxes. A domain's score is the worst score among its mailboxes.
func DomainReputations(db *gorm.DB) ([]DomainReputation, error) {
	var mailboxes []models.Mailbox
	if err := db.Where("is_active = ?", true).Find(&mailboxes).Error; err != nil {
		return nil, err
	}

	byDomain := map[string]*DomainReputation{}
	var order []string
	for i := range mailboxes {
		mb := &mailboxes[i]
		domain := mb.Domain()
		if domain == "" {
			continue
		}

		rep, ok := byDomain[domain]
		if !ok {
			rep = &DomainReputation{Domain: domain, Score: 100}
			byDomain[domain] = rep
			order = append(order, domain)
		}
		rep.Mailboxes++

		score := DomainScore(mb)
		if score < rep.Score {
			rep.Score = score
			rep.DNSScore = mb.DNSScore
		}
		if mb.IsBlacklisted {
			rep.Blacklisted = true
		}
		if mb.TotalEmailsSent > 0 {
			rate := float64(mb.BounceCount) / float64(mb.TotalEmailsSent) * 100
			if rate > rep.BounceRate {
				rep.BounceRate = round2(rate)
			}
		}
		if rep.LastDNSCheck == nil || (mb.LastDNSCheckAt != nil && mb.LastDNSCheckAt.After(*rep.LastDNSCheck)) {
			rep.LastDNSCheck = mb.LastDNSCheckAt
		}
		if rep.LastBLCheck == nil || (mb.LastBlacklistCheckAt != nil && mb.LastBlacklistCheckAt.After(*rep.LastBLCheck)) {
			rep.LastBLCheck = mb.LastBlacklistCheckAt
		}
	}

	result := make([]DomainReputation, 0, len(order))
	for _, domain := range order {
		result = append(result, *byDomain[domain])
	}
	return result, nil
}
