package warmup

import (
	"encoding/json"
	"fmt"
	"strings"

	"coldreach/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AssessmentDetail is the per-mailbox outcome of one assessment pass.
type AssessmentDetail struct {
	MailboxID   uint    `json:"mailbox_id"`
	Email       string  `json:"email"`
	OldStatus   string  `json:"old_status"`
	NewStatus   string  `json:"new_status"`
	Action      string  `json:"action"`
	HealthScore float64 `json:"health_score"`
	DailyLimit  int     `json:"daily_limit"`
}

// AssessmentSummary aggregates one assessment run.
type AssessmentSummary struct {
	RunID         uint               `json:"run_id"`
	Assessed      int                `json:"assessed"`
	StatusChanges int                `json:"status_changes"`
	AutoPaused    int                `json:"auto_paused"`
	Promoted      int                `json:"promoted"`
	Errors        int                `json:"errors"`
	Details       []AssessmentDetail `json:"details"`
}

// Engine evaluates mailboxes against their metrics and applies status
// transitions. It is the only writer of the warmup_status column.
type Engine struct {
	db     *gorm.DB
	logger *logrus.Entry
	clock  Clock
}

func NewEngine(db *gorm.DB, logger *logrus.Entry, clock Clock) *Engine {
	return &Engine{db: db, logger: logger, clock: clock}
}

// AssessAll runs one assessment pass over every active, connected mailbox
// and persists a job-run record.
func (e *Engine) AssessAll(triggeredBy string) (*AssessmentSummary, error) {
	return e.run(triggeredBy, nil)
}

// AssessOne assesses a single mailbox by id.
func (e *Engine) AssessOne(mailboxID uint, triggeredBy string) (*AssessmentSummary, error) {
	return e.run(triggeredBy, &mailboxID)
}

func (e *Engine) run(triggeredBy string, mailboxID *uint) (*AssessmentSummary, error) {
	job := models.JobRun{
		PipelineName: "warmup_assessment",
		StartedAt:    e.clock.Now(),
		Status:       models.JobRunning,
		TriggeredBy:  triggeredBy,
	}
	if err := e.db.Create(&job).Error; err != nil {
		return nil, fmt.Errorf("failed to create job run: %w", err)
	}

	summary, err := e.assessBatch(mailboxID)
	now := e.clock.Now()
	if err != nil {
		job.Status = models.JobFailed
		job.EndedAt = &now
		job.ErrorMessage = err.Error()
		if dbErr := e.db.Save(&job).Error; dbErr != nil {
			e.logger.WithError(dbErr).Error("failed to record failed assessment run")
		}
		return nil, err
	}

	counters, _ := json.Marshal(map[string]int{
		"assessed":       summary.Assessed,
		"status_changes": summary.StatusChanges,
		"auto_paused":    summary.AutoPaused,
		"promoted":       summary.Promoted,
		"errors":         summary.Errors,
	})
	job.Status = models.JobCompleted
	job.EndedAt = &now
	job.CountersJSON = string(counters)
	if err := e.db.Save(&job).Error; err != nil {
		e.logger.WithError(err).Error("failed to record assessment run")
	}

	summary.RunID = job.ID
	return summary, nil
}

func (e *Engine) assessBatch(mailboxID *uint) (*AssessmentSummary, error) {
	cfg := LoadConfig(e.db)

	query := e.db.Where("connection_status = ?", models.ConnectionSuccessful)
	if mailboxID != nil {
		query = query.Where("id = ?", *mailboxID)
	} else {
		query = query.Where("is_active = ?", true)
	}

	var mailboxes []models.Mailbox
	if err := query.Find(&mailboxes).Error; err != nil {
		return nil, fmt.Errorf("failed to query mailboxes: %w", err)
	}

	summary := &AssessmentSummary{}
	for i := range mailboxes {
		mb := &mailboxes[i]
		detail, err := e.assessMailbox(mb, ResolveConfig(e.db, mb, cfg))
		if err != nil {
			summary.Errors++
			summary.Details = append(summary.Details, AssessmentDetail{
				MailboxID: mb.ID,
				Email:     mb.Email,
				Action:    "error: " + err.Error(),
			})
			e.logger.WithError(err).WithField("mailbox", mb.Email).Error("mailbox assessment failed")
			continue
		}
		summary.Assessed++
		if detail.OldStatus != detail.NewStatus {
			summary.StatusChanges++
		}
		if strings.Contains(detail.Action, "auto_paused") {
			summary.AutoPaused++
		}
		if strings.Contains(detail.Action, "promoted") {
			summary.Promoted++
		}
		summary.Details = append(summary.Details, detail)
	}
	return summary, nil
}

// assessMailbox applies at most one transition per pass. The auto-pause
// guard always runs before any promotion or day-advance logic so a mailbox
// can never advance on the same metrics snapshot that should pause it.
func (e *Engine) assessMailbox(mb *models.Mailbox, cfg Config) (AssessmentDetail, error) {
	now := e.clock.Now()
	health := CalculateHealthScore(mb, cfg, now)

	detail := AssessmentDetail{
		MailboxID:   mb.ID,
		Email:       mb.Email,
		OldStatus:   string(mb.WarmupStatus),
		NewStatus:   string(mb.WarmupStatus),
		Action:      "no_change",
		HealthScore: health.HealthScore,
		DailyLimit:  mb.DailySendLimit,
	}

	updates := map[string]interface{}{}

	if mb.TotalEmailsSent >= cfg.MinEmailsForScoring && mb.WarmupStatus != models.StatusPaused {
		var reasons []string
		if health.BounceRate > cfg.AutoPauseBounceRate {
			reasons = append(reasons, fmt.Sprintf("bounce_rate=%.1f%%", health.BounceRate))
		}
		if health.ComplaintRate > cfg.AutoPauseComplaintRate {
			reasons = append(reasons, fmt.Sprintf("complaint_rate=%.3f%%", health.ComplaintRate))
		}
		if len(reasons) > 0 {
			mb.WarmupStatus = models.StatusPaused
			detail.NewStatus = string(models.StatusPaused)
			detail.Action = "auto_paused (" + strings.Join(reasons, ", ") + ")"
			updates["warmup_status"] = models.StatusPaused
			if err := e.db.Model(mb).Updates(updates).Error; err != nil {
				return detail, err
			}
			if err := createAlert(e.db, &mb.ID, models.AlertAutoPaused, models.SeverityWarning,
				"Mailbox auto-paused: "+mb.Email, detail.Action); err != nil {
				e.logger.WithError(err).Warn("failed to create auto-pause alert")
			}
			return detail, nil
		}
	}

	switch mb.WarmupStatus {
	case models.StatusInactive:
		if mb.IsActive {
			limit := LimitForDay(1, cfg)
			updates["warmup_status"] = models.StatusWarmingUp
			updates["warmup_started_at"] = now
			updates["warmup_days_completed"] = 0
			updates["daily_send_limit"] = limit
			// Activation counts as today's advance; a second assessment the
			// same day must not also ramp day 1.
			updates["last_advance_at"] = now
			detail.NewStatus = string(models.StatusWarmingUp)
			detail.Action = "started_warmup"
			detail.DailyLimit = limit
		}

	case models.StatusWarmingUp:
		// Day advance is gated per calendar day, not per invocation, so
		// repeated assessment calls cannot accelerate the ramp.
		if mb.LastAdvanceAt != nil && sameCalendarDay(*mb.LastAdvanceAt, now) {
			detail.Action = "already_advanced_today"
			break
		}
		day := mb.WarmupDaysCompleted + 1
		if day > cfg.TotalDays {
			updates["warmup_status"] = models.StatusColdReady
			updates["warmup_completed_at"] = now
			detail.NewStatus = string(models.StatusColdReady)
			detail.Action = "warmup_completed"
		} else {
			limit := LimitForDay(day, cfg)
			phase, phaseName := PhaseForDay(day, cfg)
			updates["daily_send_limit"] = limit
			updates["warmup_days_completed"] = day
			updates["last_advance_at"] = now
			detail.DailyLimit = limit
			detail.Action = fmt.Sprintf("day_%d_phase_%d_%s", day, phase, phaseName)
		}

	case models.StatusColdReady:
		daysSinceReady := 0
		if mb.WarmupCompletedAt != nil {
			daysSinceReady = int(now.Sub(*mb.WarmupCompletedAt).Hours() / 24)
		}
		if daysSinceReady >= cfg.ActiveMinDays &&
			health.HealthScore >= float64(cfg.ActiveHealthThreshold) &&
			mb.TotalEmailsSent >= cfg.MinEmailsForScoring {
			updates["warmup_status"] = models.StatusActive
			detail.NewStatus = string(models.StatusActive)
			detail.Action = "promoted_to_active"
		}

	case models.StatusActive, models.StatusPaused, models.StatusBlacklisted, models.StatusRecovering:
		// Active is terminal-stable; paused, blacklisted and recovering
		// mailboxes belong to the auto-recovery controller.
	}

	if len(updates) > 0 {
		if err := e.db.Model(mb).Updates(updates).Error; err != nil {
			return detail, err
		}
	}

	if detail.OldStatus != detail.NewStatus {
		alertType := models.AlertStatusChange
		if detail.NewStatus == string(models.StatusColdReady) {
			alertType = models.AlertWarmupComplete
		}
		if err := createAlert(e.db, &mb.ID, alertType, models.SeverityInfo,
			fmt.Sprintf("Mailbox %s: %s → %s", mb.Email, detail.OldStatus, detail.NewStatus),
			detail.Action); err != nil {
			e.logger.WithError(err).Warn("failed to create status-change alert")
		}
	}

	return detail, nil
}

// HealthScores returns the score breakdown for every active mailbox.
func (e *Engine) HealthScores() ([]map[string]interface{}, error) {
	cfg := LoadConfig(e.db)
	var mailboxes []models.Mailbox
	if err := e.db.Where("is_active = ?", true).Find(&mailboxes).Error; err != nil {
		return nil, err
	}
	now := e.clock.Now()
	out := make([]map[string]interface{}, 0, len(mailboxes))
	for i := range mailboxes {
		mb := &mailboxes[i]
		score := CalculateHealthScore(mb, ResolveConfig(e.db, mb, cfg), now)
		out = append(out, map[string]interface{}{
			"mailbox_id":    mb.ID,
			"email":         mb.Email,
			"warmup_status": mb.WarmupStatus,
			"score":         score,
		})
	}
	return out, nil
}
