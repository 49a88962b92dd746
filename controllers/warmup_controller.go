package controller

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"coldreach/config"
	"coldreach/models"
	"coldreach/utils"
	"coldreach/warmup"
)

const (
	ErrConnectionNotVerified = "mailbox connection must be tested successfully before starting warmup"
	ErrWarmupAlreadyRunning  = "warmup is already running for this mailbox"
	ErrWarmupNotRunning      = "warmup is not running for this mailbox"
)

type WarmupController struct {
	Logger    *logrus.Entry
	Engine    *warmup.Engine
	Peers     *warmup.PeerNetwork
	Replier   *warmup.AutoReplier
	DNS       *warmup.DNSChecker
	Blacklist *warmup.BlacklistChecker
	Recovery  *warmup.RecoveryService
	Reporter  *warmup.Reporter
	Placement *warmup.PlacementChecker
	Scheduler *warmup.Scheduler
}

func NewWarmupController(
	logger *logrus.Entry,
	engine *warmup.Engine,
	peers *warmup.PeerNetwork,
	replier *warmup.AutoReplier,
	dns *warmup.DNSChecker,
	blacklist *warmup.BlacklistChecker,
	recovery *warmup.RecoveryService,
	reporter *warmup.Reporter,
	placement *warmup.PlacementChecker,
	scheduler *warmup.Scheduler,
) *WarmupController {
	return &WarmupController{
		Logger:    logger,
		Engine:    engine,
		Peers:     peers,
		Replier:   replier,
		DNS:       dns,
		Blacklist: blacklist,
		Recovery:  recovery,
		Reporter:  reporter,
		Placement: placement,
		Scheduler: scheduler,
	}
}

func (wc *WarmupController) findMailbox(c *fiber.Ctx) *models.Mailbox {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": ErrInvalidMailboxID,
		})
		return nil
	}

	var mailbox models.Mailbox
	if err := config.DB.First(&mailbox, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			_ = c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": ErrMailboxNotFound,
			})
			return nil
		}
		wc.Logger.WithError(err).Error("database error fetching mailbox")
		_ = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
		return nil
	}
	return &mailbox
}

// StartWarmup activates warmup for a mailbox. The next assessment moves it
// from inactive to warming_up at day one volume.
func (wc *WarmupController) StartWarmup(c *fiber.Ctx) error {
	mailbox := wc.findMailbox(c)
	if mailbox == nil {
		return nil
	}

	if mailbox.ConnectionStatus != models.ConnectionSuccessful {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": ErrConnectionNotVerified,
		})
	}
	if mailbox.WarmupStatus == models.StatusWarmingUp || mailbox.WarmupStatus == models.StatusRecovering {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": ErrWarmupAlreadyRunning,
		})
	}

	if err := config.DB.Model(mailbox).Updates(map[string]interface{}{
		"warmup_status": models.StatusInactive,
		"is_active":     true,
	}).Error; err != nil {
		wc.Logger.WithError(err).Error("failed to activate mailbox")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	summary, err := wc.Engine.AssessOne(mailbox.ID, c.Locals("user").(*models.User).Email)
	if err != nil {
		wc.Logger.WithError(err).Error("initial assessment failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to start warmup",
		})
	}

	return c.JSON(fiber.Map{
		"message":    "warmup started",
		"assessment": summary,
	})
}

// PauseWarmup manually pauses a warming or recovering mailbox
func (wc *WarmupController) PauseWarmup(c *fiber.Ctx) error {
	mailbox := wc.findMailbox(c)
	if mailbox == nil {
		return nil
	}

	switch mailbox.WarmupStatus {
	case models.StatusWarmingUp, models.StatusRecovering, models.StatusColdReady, models.StatusActive:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": ErrWarmupNotRunning,
		})
	}

	if err := config.DB.Model(mailbox).Update("warmup_status", models.StatusPaused).Error; err != nil {
		wc.Logger.WithError(err).Error("failed to pause mailbox")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
	return c.JSON(fiber.Map{"message": "warmup paused"})
}

// ResumeWarmup puts a paused mailbox back into warming_up
func (wc *WarmupController) ResumeWarmup(c *fiber.Ctx) error {
	mailbox := wc.findMailbox(c)
	if mailbox == nil {
		return nil
	}

	if mailbox.WarmupStatus != models.StatusPaused {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "only paused mailboxes can be resumed",
		})
	}

	if err := config.DB.Model(mailbox).Update("warmup_status", models.StatusWarmingUp).Error; err != nil {
		wc.Logger.WithError(err).Error("failed to resume mailbox")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
	return c.JSON(fiber.Map{"message": "warmup resumed"})
}

// GetWarmupStatus returns the full warmup state of one mailbox
func (wc *WarmupController) GetWarmupStatus(c *fiber.Ctx) error {
	mailbox := wc.findMailbox(c)
	if mailbox == nil {
		return nil
	}

	cfg := warmup.ResolveConfig(config.DB, mailbox, warmup.LoadConfig(config.DB))
	health := warmup.CalculateHealthScore(mailbox, cfg, time.Now().UTC())
	phase, phaseName := warmup.PhaseForDay(mailbox.WarmupDaysCompleted, cfg)

	mailbox.Sanitize()
	return c.JSON(fiber.Map{
		"mailbox":      mailbox,
		"phase":        phase,
		"phase_name":   phaseName,
		"health":       health,
		"domain_score": warmup.DomainScore(mailbox),
	})
}

// GetOverview summarizes every managed mailbox
func (wc *WarmupController) GetOverview(c *fiber.Ctx) error {
	scores, err := wc.Engine.HealthScores()
	if err != nil {
		wc.Logger.WithError(err).Error("failed to compute health scores")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	var byStatus []struct {
		WarmupStatus models.WarmupStatus `json:"warmup_status"`
		Count        int64               `json:"count"`
	}
	if err := config.DB.Model(&models.Mailbox{}).
		Select("warmup_status, count(*) as count").
		Group("warmup_status").
		Scan(&byStatus).Error; err != nil {
		wc.Logger.WithError(err).Error("failed to aggregate statuses")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	return c.JSON(fiber.Map{
		"by_status": byStatus,
		"mailboxes": scores,
	})
}

// TriggerAssessment runs the state machine on demand, for one mailbox or all
func (wc *WarmupController) TriggerAssessment(c *fiber.Ctx) error {
	triggeredBy := c.Locals("user").(*models.User).Email

	var summary *warmup.AssessmentSummary
	var err error
	if param := c.Query("mailbox_id"); param != "" {
		id := c.QueryInt("mailbox_id")
		if id < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": ErrInvalidMailboxID,
			})
		}
		summary, err = wc.Engine.AssessOne(uint(id), triggeredBy)
	} else {
		summary, err = wc.Engine.AssessAll(triggeredBy)
	}
	if err != nil {
		wc.Logger.WithError(err).Error("assessment failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "assessment failed",
		})
	}
	return c.JSON(summary)
}

// GetSchedule returns the day-by-day ramp plan for a mailbox's config
func (wc *WarmupController) GetSchedule(c *fiber.Ctx) error {
	mailbox := wc.findMailbox(c)
	if mailbox == nil {
		return nil
	}
	cfg := warmup.ResolveConfig(config.DB, mailbox, warmup.LoadConfig(config.DB))
	return c.JSON(warmup.BuildSchedule(cfg))
}

// GetHealthScores returns the score breakdown for every active mailbox
func (wc *WarmupController) GetHealthScores(c *fiber.Ctx) error {
	scores, err := wc.Engine.HealthScores()
	if err != nil {
		wc.Logger.WithError(err).Error("failed to compute health scores")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
	return c.JSON(scores)
}

// TriggerPeerCycle runs a peer warmup pass on demand
func (wc *WarmupController) TriggerPeerCycle(c *fiber.Ctx) error {
	var mailboxID *uint
	if id := c.QueryInt("mailbox_id"); id > 0 {
		v := uint(id)
		mailboxID = &v
	}

	result, err := wc.Peers.RunCycle(mailboxID)
	if err != nil {
		wc.Logger.WithError(err).Error("peer cycle failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "peer cycle failed",
		})
	}
	return c.JSON(result)
}

// TriggerAutoReply runs an auto-reply pass on demand
func (wc *WarmupController) TriggerAutoReply(c *fiber.Ctx) error {
	result, err := wc.Replier.RunCycle()
	if err != nil {
		wc.Logger.WithError(err).Error("auto-reply cycle failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "auto-reply cycle failed",
		})
	}
	return c.JSON(result)
}

// TriggerDNSCheck verifies SPF/DKIM/DMARC for one mailbox
func (wc *WarmupController) TriggerDNSCheck(c *fiber.Ctx) error {
	mailbox := wc.findMailbox(c)
	if mailbox == nil {
		return nil
	}

	result, err := wc.DNS.CheckMailbox(mailbox)
	if err != nil {
		wc.Logger.WithError(err).Error("dns check failed")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "dns check failed",
		})
	}
	return c.JSON(result)
}

// TriggerBlacklistCheck queries DNSBL zones for one mailbox
func (wc *WarmupController) TriggerBlacklistCheck(c *fiber.Ctx) error {
	mailbox := wc.findMailbox(c)
	if mailbox == nil {
		return nil
	}

	result, err := wc.Blacklist.CheckMailbox(mailbox)
	if err != nil {
		wc.Logger.WithError(err).Error("blacklist check failed")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "blacklist check failed",
		})
	}
	return c.JSON(result)
}

// CheckPlacement inspects where recent warmup email landed for a mailbox
func (wc *WarmupController) CheckPlacement(c *fiber.Ctx) error {
	mailbox := wc.findMailbox(c)
	if mailbox == nil {
		return nil
	}

	result, err := wc.Placement.CheckMailbox(mailbox)
	if err != nil {
		wc.Logger.WithError(err).Error("placement check failed")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "placement check failed",
		})
	}
	return c.JSON(result)
}

// StartRecovery manually starts the reduced-volume recovery ramp
func (wc *WarmupController) StartRecovery(c *fiber.Ctx) error {
	mailbox := wc.findMailbox(c)
	if mailbox == nil {
		return nil
	}

	if err := wc.Recovery.Start(mailbox); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"message": "recovery started"})
}

// GetDailyLogs returns daily snapshot history for one mailbox
func (wc *WarmupController) GetDailyLogs(c *fiber.Ctx) error {
	mailbox := wc.findMailbox(c)
	if mailbox == nil {
		return nil
	}

	from, to := parseDateRange(c)
	logs, err := wc.Reporter.DailyLogs(mailbox.ID, from, to)
	if err != nil {
		wc.Logger.WithError(err).Error("failed to load daily logs")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
	return c.JSON(logs)
}

// GetEmailHistory lists the warmup email audit trail for one mailbox, sent
// and received, newest first
func (wc *WarmupController) GetEmailHistory(c *fiber.Ctx) error {
	mailbox := wc.findMailbox(c)
	if mailbox == nil {
		return nil
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 25)
	if limit < 1 || limit > 100 {
		limit = 25
	}

	query := config.DB.Model(&models.WarmupEmail{}).
		Where("sender_mailbox_id = ? OR receiver_mailbox_id = ?", mailbox.ID, mailbox.ID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		wc.Logger.WithError(err).Error("failed to count warmup emails")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	var emails []models.WarmupEmail
	if err := query.Order("sent_at desc").Offset((page - 1) * limit).Limit(limit).Find(&emails).Error; err != nil {
		wc.Logger.WithError(err).Error("failed to list warmup emails")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  emails,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetDNSHistory returns past DNS authentication checks for one mailbox,
// newest first
func (wc *WarmupController) GetDNSHistory(c *fiber.Ctx) error {
	mailbox := wc.findMailbox(c)
	if mailbox == nil {
		return nil
	}

	var results []models.DNSCheckResult
	if err := config.DB.Where("mailbox_id = ?", mailbox.ID).
		Order("checked_at desc").Limit(30).Find(&results).Error; err != nil {
		wc.Logger.WithError(err).Error("failed to load dns history")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
	return c.JSON(results)
}

// GetBlacklistHistory returns past DNSBL checks for one mailbox, newest first
func (wc *WarmupController) GetBlacklistHistory(c *fiber.Ctx) error {
	mailbox := wc.findMailbox(c)
	if mailbox == nil {
		return nil
	}

	var results []models.BlacklistCheckResult
	if err := config.DB.Where("mailbox_id = ?", mailbox.ID).
		Order("checked_at desc").Limit(30).Find(&results).Error; err != nil {
		wc.Logger.WithError(err).Error("failed to load blacklist history")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
	return c.JSON(results)
}

// ExportReport streams a mailbox's daily history as CSV, or JSON when
// requested with ?format=json
func (wc *WarmupController) ExportReport(c *fiber.Ctx) error {
	mailbox := wc.findMailbox(c)
	if mailbox == nil {
		return nil
	}

	from, to := parseDateRange(c)

	if c.Query("format") == "json" {
		logs, err := wc.Reporter.DailyLogs(mailbox.ID, from, to)
		if err != nil {
			wc.Logger.WithError(err).Error("json export failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "export failed",
			})
		}
		c.Set(fiber.HeaderContentDisposition,
			fmt.Sprintf(`attachment; filename="warmup-%d.json"`, mailbox.ID))
		return c.JSON(logs)
	}

	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="warmup-%d.csv"`, mailbox.ID))

	if err := wc.Reporter.WriteCSV(c.Response().BodyWriter(), mailbox.ID, from, to); err != nil {
		wc.Logger.WithError(err).Error("csv export failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "export failed",
		})
	}
	return nil
}

// GetDomainReputation aggregates reputation per sending domain
func (wc *WarmupController) GetDomainReputation(c *fiber.Ctx) error {
	reputations, err := warmup.DomainReputations(config.DB)
	if err != nil {
		wc.Logger.WithError(err).Error("failed to aggregate domain reputation")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
	return c.JSON(reputations)
}

// GetConfig returns the effective global warmup configuration
func (wc *WarmupController) GetConfig(c *fiber.Ctx) error {
	return c.JSON(warmup.LoadConfig(config.DB))
}

// UpdateConfig upserts warmup_* settings. Values are stored as JSON and
// picked up by the next config snapshot; invalid values fall back to
// defaults at load time.
func (wc *WarmupController) UpdateConfig(c *fiber.Ctx) error {
	var body map[string]interface{}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": ErrInvalidRequestBody,
		})
	}
	if len(body) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "no settings provided",
		})
	}

	for key, value := range body {
		if !strings.HasPrefix(key, "warmup_") {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": fmt.Sprintf("unknown setting %q: only warmup_* keys are allowed", key),
			})
		}
		data, err := json.Marshal(value)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": fmt.Sprintf("setting %q has an unserializable value", key),
			})
		}
		setting := models.Setting{Key: key, ValueJSON: string(data)}
		if err := config.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value_json", "updated_at"}),
		}).Create(&setting).Error; err != nil {
			wc.Logger.WithError(err).WithField("key", key).Error("failed to save setting")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}
	}

	return c.JSON(warmup.LoadConfig(config.DB))
}

// GetSchedulerStatus reports every background job with its next fire time
func (wc *WarmupController) GetSchedulerStatus(c *fiber.Ctx) error {
	return c.JSON(wc.Scheduler.Status())
}

// GetJobRuns returns recent pipeline executions, newest first
func (wc *WarmupController) GetJobRuns(c *fiber.Ctx) error {
	runs, err := wc.Scheduler.RecentRuns(c.QueryInt("limit", 50))
	if err != nil {
		wc.Logger.WithError(err).Error("failed to load job runs")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
	return c.JSON(runs)
}

func parseDateRange(c *fiber.Ctx) (time.Time, time.Time) {
	var from, to time.Time
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			from = t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			to = t
		}
	}
	return from, to
}
