package warmup

import (
	"encoding/json"
	"fmt"
	"strings"

	"coldreach/models"

	"github.com/likexian/whois"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Authentication record weights. A fully configured domain scores 100.
const (
	spfScore   = 35
	dkimScore  = 35
	dmarcScore = 30
)

// DNSChecker verifies the SPF, DKIM, DMARC and MX posture of mailbox
// domains and keeps the cached dns_score current.
type DNSChecker struct {
	db       *gorm.DB
	logger   *logrus.Entry
	clock    Clock
	resolver Resolver
	whois    func(domain string) (string, error)
}

func NewDNSChecker(db *gorm.DB, logger *logrus.Entry, clock Clock, resolver Resolver) *DNSChecker {
	return &DNSChecker{db: db, logger: logger, clock: clock, resolver: resolver,
		whois: func(domain string) (string, error) { return whois.Whois(domain) }}
}

// CheckMailbox runs a full authentication check for one mailbox and records
// the result. Lookup failures for individual records count as missing, not
// as errors; only a mailbox without a domain fails outright.
func (dc *DNSChecker) CheckMailbox(mailbox *models.Mailbox) (*models.DNSCheckResult, error) {
	domain := mailbox.Domain()
	if domain == "" {
		return nil, fmt.Errorf("mailbox %s has no domain", mailbox.Email)
	}
	cfg := ResolveConfig(dc.db, mailbox, LoadConfig(dc.db))

	result := models.DNSCheckResult{
		MailboxID:    mailbox.ID,
		Domain:       domain,
		CheckedAt:    dc.clock.Now(),
		DKIMSelector: cfg.DKIMSelector,
	}

	result.SPFRecord, result.SPFValid = dc.checkSPF(domain)
	result.DKIMValid = dc.checkDKIM(domain, cfg.DKIMSelector)
	result.DMARCRecord, result.DMARCValid, result.DMARCPolicy = dc.checkDMARC(domain)
	result.MXRecordsJSON, result.MXValid = dc.checkMX(domain)
	result.WHOISRegistrar = dc.lookupRegistrar(domain)

	score := 0
	if result.SPFValid {
		score += spfScore
	}
	if result.DKIMValid {
		score += dkimScore
	}
	if result.DMARCValid {
		score += dmarcScore
	}
	result.OverallScore = score

	if err := dc.db.Create(&result).Error; err != nil {
		return nil, fmt.Errorf("failed to save dns check: %w", err)
	}
	if err := dc.db.Model(&models.Mailbox{}).Where("id = ?", mailbox.ID).Updates(map[string]interface{}{
		"dns_score":         score,
		"last_dns_check_at": result.CheckedAt,
	}).Error; err != nil {
		dc.logger.WithError(err).WithField("mailbox", mailbox.Email).Error("failed to cache dns score")
	}

	if score < 100 {
		var missing []string
		if !result.SPFValid {
			missing = append(missing, "SPF")
		}
		if !result.DKIMValid {
			missing = append(missing, "DKIM")
		}
		if !result.DMARCValid {
			missing = append(missing, "DMARC")
		}
		if err := createAlert(dc.db, &mailbox.ID, models.AlertDNSIssue, models.SeverityWarning,
			fmt.Sprintf("DNS issues on %s", domain),
			fmt.Sprintf("Missing or invalid records: %s (score %d/100)", strings.Join(missing, ", "), score),
		); err != nil {
			dc.logger.WithError(err).Warn("failed to create dns alert")
		}
	}

	return &result, nil
}

// CheckAll runs the authentication check for every active mailbox currently
// under warmup management.
func (dc *DNSChecker) CheckAll() (int, error) {
	var mailboxes []models.Mailbox
	err := dc.db.Where("is_active = ?", true).
		Where("warmup_status IN ?", []models.WarmupStatus{
			models.StatusWarmingUp, models.StatusColdReady, models.StatusActive, models.StatusRecovering,
		}).Find(&mailboxes).Error
	if err != nil {
		return 0, err
	}

	checked := 0
	for i := range mailboxes {
		if _, err := dc.CheckMailbox(&mailboxes[i]); err != nil {
			dc.logger.WithError(err).WithField("mailbox", mailboxes[i].Email).Error("dns check failed")
			continue
		}
		checked++
	}
	return checked, nil
}

func (dc *DNSChecker) checkSPF(domain string) (string, bool) {
	records, err := dc.resolver.LookupTXT(domain)
	if err != nil {
		return "", false
	}
	for _, record := range records {
		if strings.HasPrefix(strings.TrimSpace(record), "v=spf1") {
			return record, true
		}
	}
	return "", false
}

func (dc *DNSChecker) checkDKIM(domain, selector string) bool {
	records, err := dc.resolver.LookupTXT(fmt.Sprintf("%s._domainkey.%s", selector, domain))
	if err != nil {
		return false
	}
	for _, record := range records {
		if strings.Contains(record, "v=DKIM1") || strings.Contains(record, "p=") {
			return true
		}
	}
	return false
}

func (dc *DNSChecker) checkDMARC(domain string) (record string, valid bool, policy string) {
	records, err := dc.resolver.LookupTXT("_dmarc." + domain)
	if err != nil {
		return "", false, ""
	}
	for _, r := range records {
		if !strings.HasPrefix(strings.TrimSpace(r), "v=DMARC1") {
			continue
		}
		for _, tag := range strings.Split(r, ";") {
			tag = strings.TrimSpace(tag)
			if strings.HasPrefix(tag, "p=") {
				policy = strings.TrimPrefix(tag, "p=")
			}
		}
		return r, true, policy
	}
	return "", false, ""
}

func (dc *DNSChecker) checkMX(domain string) (string, bool) {
	hosts, err := dc.resolver.LookupMX(domain)
	if err != nil || len(hosts) == 0 {
		return "[]", false
	}
	data, _ := json.Marshal(hosts)
	return string(data), true
}

// lookupRegistrar is best effort; a whois failure never fails the check.
func (dc *DNSChecker) lookupRegistrar(domain string) string {
	raw, err := dc.whois(domain)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "Registrar:") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "Registrar:"))
		}
	}
	return ""
}
