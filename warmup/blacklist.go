package warmup

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"coldreach/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// providerResult is one DNSBL verdict inside results_json.
type providerResult struct {
	Provider string `json:"provider"`
	Listed   bool   `json:"listed"`
	Error    string `json:"error,omitempty"`
}

// BlacklistChecker queries DNS blacklists for the sending IP of each
// mailbox domain. A hit can auto-pause the mailbox.
type BlacklistChecker struct {
	db       *gorm.DB
	logger   *logrus.Entry
	clock    Clock
	resolver Resolver
}

func NewBlacklistChecker(db *gorm.DB, logger *logrus.Entry, clock Clock, resolver Resolver) *BlacklistChecker {
	return &BlacklistChecker{db: db, logger: logger, clock: clock, resolver: resolver}
}

// reverseIPv4 turns "1.2.3.4" into "4.3.2.1" for DNSBL queries.
func reverseIPv4(ip string) (string, error) {
	octets := strings.Split(ip, ".")
	if len(octets) != 4 {
		return "", fmt.Errorf("not an IPv4 address: %s", ip)
	}
	return fmt.Sprintf("%s.%s.%s.%s", octets[3], octets[2], octets[1], octets[0]), nil
}

// CheckMailbox resolves the domain's sending IP and queries every configured
// DNSBL zone. A DNSBL lists an IP by answering the reversed-octet query;
// NXDOMAIN means clean.
func (bc *BlacklistChecker) CheckMailbox(mailbox *models.Mailbox) (*models.BlacklistCheckResult, error) {
	domain := mailbox.Domain()
	if domain == "" {
		return nil, fmt.Errorf("mailbox %s has no domain", mailbox.Email)
	}
	cfg := LoadConfig(bc.db)

	addrs, err := bc.resolver.LookupA(domain)
	if err != nil || len(addrs) == 0 {
		return nil, fmt.Errorf("cannot resolve sending IP for %s: %w", domain, err)
	}
	ip := addrs[0]

	reversed, err := reverseIPv4(ip)
	if err != nil {
		return nil, err
	}

	var details []providerResult
	listed := 0
	for _, provider := range cfg.BlacklistProviders {
		pr := providerResult{Provider: provider}
		query := reversed + "." + provider
		hits, lookupErr := bc.resolver.LookupA(query)
		switch {
		case lookupErr == nil && len(hits) > 0:
			pr.Listed = true
			listed++
		case lookupErr == nil, errors.Is(lookupErr, errNXDomain):
			// clean
		default:
			pr.Error = lookupErr.Error()
		}
		details = append(details, pr)
	}

	detailsJSON, _ := json.Marshal(details)
	result := models.BlacklistCheckResult{
		MailboxID:    mailbox.ID,
		Domain:       domain,
		IPAddress:    ip,
		CheckedAt:    bc.clock.Now(),
		ResultsJSON:  string(detailsJSON),
		TotalChecked: len(cfg.BlacklistProviders),
		TotalListed:  listed,
		IsClean:      listed == 0,
	}
	if err := bc.db.Create(&result).Error; err != nil {
		return nil, fmt.Errorf("failed to save blacklist check: %w", err)
	}

	wasBlacklisted := mailbox.IsBlacklisted
	updates := map[string]interface{}{
		"is_blacklisted":          listed > 0,
		"last_blacklist_check_at": result.CheckedAt,
	}

	if listed > 0 {
		// Auto-pause gates on status, not the is_blacklisted flag: a mailbox
		// paused by hand stays paused, and one already marked blacklisted is
		// left where it is.
		if cfg.AutoPauseOnBlacklist &&
			mailbox.WarmupStatus != models.StatusPaused &&
			mailbox.WarmupStatus != models.StatusBlacklisted {
			updates["warmup_status"] = models.StatusBlacklisted
		}
		if !wasBlacklisted {
			if err := createAlert(bc.db, &mailbox.ID, models.AlertBlacklistDetected, models.SeverityCritical,
				fmt.Sprintf("%s listed on %d blacklist(s)", domain, listed),
				fmt.Sprintf("IP %s appears on %d of %d checked DNSBL zones", ip, listed, result.TotalChecked),
			); err != nil {
				bc.logger.WithError(err).Warn("failed to create blacklist alert")
			}
		}
	}

	if err := bc.db.Model(&models.Mailbox{}).Where("id = ?", mailbox.ID).Updates(updates).Error; err != nil {
		bc.logger.WithError(err).WithField("mailbox", mailbox.Email).Error("failed to update blacklist state")
	}

	return &result, nil
}

// CheckAll queries the DNSBL zones for every active managed mailbox.
func (bc *BlacklistChecker) CheckAll() (int, error) {
	var mailboxes []models.Mailbox
	err := bc.db.Where("is_active = ?", true).
		Where("warmup_status IN ?", []models.WarmupStatus{
			models.StatusWarmingUp, models.StatusColdReady, models.StatusActive,
			models.StatusRecovering, models.StatusBlacklisted,
		}).Find(&mailboxes).Error
	if err != nil {
		return 0, err
	}

	checked := 0
	for i := range mailboxes {
		if _, err := bc.CheckMailbox(&mailboxes[i]); err != nil {
			bc.logger.WithError(err).WithField("mailbox", mailboxes[i].Email).Error("blacklist check failed")
			continue
		}
		checked++
	}
	return checked, nil
}
