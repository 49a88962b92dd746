package warmup

import (
	"testing"

	"coldreach/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainScore(t *testing.T) {
	mb := &models.Mailbox{DNSScore: 100}
	assert.Equal(t, 100, DomainScore(mb))

	mb.IsBlacklisted = true
	assert.Equal(t, 60, DomainScore(mb))

	// Elevated bounce rate costs 10, severe costs 20.
	mb = &models.Mailbox{DNSScore: 100, TotalEmailsSent: 100, BounceCount: 3}
	assert.Equal(t, 90, DomainScore(mb))
	mb.BounceCount = 8
	assert.Equal(t, 80, DomainScore(mb))

	// Never below zero.
	mb = &models.Mailbox{DNSScore: 0, IsBlacklisted: true, TotalEmailsSent: 10, BounceCount: 9}
	assert.Equal(t, 0, DomainScore(mb))
}

func TestDomainReputationsWorstMailboxWins(t *testing.T) {
	db := newTestDB(t)
	seedMailbox(t, db, "alice@example.com", models.StatusWarmingUp, func(m *models.Mailbox) {
		m.DNSScore = 100
	})
	seedMailbox(t, db, "bob@example.com", models.StatusWarmingUp, func(m *models.Mailbox) {
		m.DNSScore = 70
		m.IsBlacklisted = true
	})
	seedMailbox(t, db, "carol@other.org", models.StatusActive, func(m *models.Mailbox) {
		m.DNSScore = 100
	})
	// Inactive mailboxes are excluded entirely.
	seedMailbox(t, db, "dave@other.org", models.StatusPaused, func(m *models.Mailbox) {
		m.IsActive = false
		m.DNSScore = 0
	})

	reps, err := DomainReputations(db)
	require.NoError(t, err)
	require.Len(t, reps, 2)

	byDomain := map[string]DomainReputation{}
	for _, rep := range reps {
		byDomain[rep.Domain] = rep
	}

	example := byDomain["example.com"]
	assert.Equal(t, 30, example.Score)
	assert.Equal(t, 2, example.Mailboxes)
	assert.True(t, example.Blacklisted)

	other := byDomain["other.org"]
	assert.Equal(t, 100, other.Score)
	assert.Equal(t, 1, other.Mailboxes)
	assert.False(t, other.Blacklisted)
}
