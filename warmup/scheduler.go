package warmup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"coldreach/models"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// schedule decides, from the previous and current tick times, whether a job
// is due. Implementations must be cheap; they run every tick.
type schedule interface {
	due(prev, now time.Time) bool
	next(now time.Time) time.Time
}

// dailyAt fires once per day at a fixed UTC time.
type dailyAt struct {
	hour, minute int
}

func (s dailyAt) next(now time.Time) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, time.UTC)
	if !candidate.After(now) {
		candidate = candidate.Add(24 * time.Hour)
	}
	return candidate
}

func (s dailyAt) due(prev, now time.Time) bool {
	target := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, time.UTC)
	return prev.Before(target) && !now.Before(target)
}

// hourlyBetween fires at a fixed minute of every hour within a window, start
// and end inclusive. The window is evaluated in loc; a nil loc means UTC.
type hourlyBetween struct {
	startHour, endHour, minute int
	loc                        *time.Location
}

func (s hourlyBetween) location() *time.Location {
	if s.loc != nil {
		return s.loc
	}
	return time.UTC
}

func (s hourlyBetween) due(prev, now time.Time) bool {
	local := now.In(s.location())
	for hour := s.startHour; hour <= s.endHour; hour++ {
		target := time.Date(local.Year(), local.Month(), local.Day(), hour, s.minute, 0, 0, s.location())
		if prev.Before(target) && !now.Before(target) {
			return true
		}
	}
	return false
}

func (s hourlyBetween) next(now time.Time) time.Time {
	local := now.In(s.location())
	for day := 0; day < 2; day++ {
		base := local.AddDate(0, 0, day)
		for hour := s.startHour; hour <= s.endHour; hour++ {
			candidate := time.Date(base.Year(), base.Month(), base.Day(), hour, s.minute, 0, 0, s.location())
			if candidate.After(now) {
				return candidate
			}
		}
	}
	return now.Add(24 * time.Hour)
}

// every fires on a fixed interval from scheduler start.
type every struct {
	interval time.Duration
	anchor   time.Time
}

func (s every) due(prev, now time.Time) bool {
	sincePrev := prev.Sub(s.anchor) / s.interval
	sinceNow := now.Sub(s.anchor) / s.interval
	return now.Sub(s.anchor) >= 0 && sinceNow > sincePrev
}

func (s every) next(now time.Time) time.Time {
	elapsed := now.Sub(s.anchor)
	if elapsed < 0 {
		return s.anchor
	}
	periods := elapsed/s.interval + 1
	return s.anchor.Add(periods * s.interval)
}

type job struct {
	name     string
	schedule schedule
	run      func() error

	mu        sync.Mutex
	running   bool
	lastRun   time.Time
	lastError string
}

// JobStatusInfo is one entry of the scheduler status report.
type JobStatusInfo struct {
	Name      string     `json:"name"`
	Running   bool       `json:"running"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	NextRun   time.Time  `json:"next_run"`
}

// Scheduler drives all periodic warmup pipelines from a single ticker. Each
// job holds its own run lock, so a slow DNS sweep never blocks the hourly
// peer cycle and a job never overlaps itself.
type Scheduler struct {
	db     *gorm.DB
	logger *logrus.Entry
	clock  Clock

	jobs []*job
	wg   sync.WaitGroup
}

// NewScheduler wires every periodic pipeline to its cadence. Daily jobs run
// in UTC; the send cycles follow the configured send window and timezone,
// resolved once at startup.
func NewScheduler(
	db *gorm.DB,
	logger *logrus.Entry,
	clock Clock,
	engine *Engine,
	peers *PeerNetwork,
	replier *AutoReplier,
	dnsChecker *DNSChecker,
	blChecker *BlacklistChecker,
	recovery *RecoveryService,
	snapshots *SnapshotService,
) *Scheduler {
	s := &Scheduler{db: db, logger: logger, clock: clock}
	anchor := clock.Now()
	winStart, winEnd, winLoc := LoadConfig(db).SendWindow()

	s.jobs = []*job{
		{
			name:     "daily_reset",
			schedule: dailyAt{hour: 0, minute: 0},
			run: func() error {
				_, err := snapshots.ResetDailyCounts()
				return err
			},
		},
		{
			name:     "daily_assessment",
			schedule: dailyAt{hour: 0, minute: 5},
			run: func() error {
				_, err := engine.AssessAll("scheduler")
				return err
			},
		},
		{
			name:     "recovery_sweep",
			schedule: dailyAt{hour: 6, minute: 0},
			run: func() error {
				_, _, err := recovery.RunSweep()
				return err
			},
		},
		{
			name:     "peer_cycle",
			schedule: hourlyBetween{startHour: winStart, endHour: winEnd, minute: 0, loc: winLoc},
			run: func() error {
				_, err := peers.RunCycle(nil)
				return err
			},
		},
		{
			name:     "auto_reply_cycle",
			schedule: hourlyBetween{startHour: winStart, endHour: winEnd, minute: 30, loc: winLoc},
			run: func() error {
				_, err := replier.RunCycle()
				return err
			},
		},
		{
			name:     "dns_check",
			schedule: every{interval: 12 * time.Hour, anchor: anchor.Add(5 * time.Minute)},
			run: func() error {
				_, err := dnsChecker.CheckAll()
				return err
			},
		},
		{
			name:     "blacklist_check",
			schedule: every{interval: 12 * time.Hour, anchor: anchor.Add(10 * time.Minute)},
			run: func() error {
				_, err := blChecker.CheckAll()
				return err
			},
		},
		{
			name:     "daily_snapshot",
			schedule: dailyAt{hour: 23, minute: 55},
			run: func() error {
				_, err := snapshots.TakeSnapshots()
				return err
			},
		},
	}
	return s
}

// Start runs the scheduler until ctx is cancelled, then waits for in-flight
// jobs to drain.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("starting warmup scheduler")
	ticker := time.NewTicker(30 * time.Second)
	prev := s.clock.Now()

	for {
		select {
		case <-ticker.C:
			now := s.clock.Now()
			s.tick(prev, now)
			prev = now
		case <-ctx.Done():
			ticker.Stop()
			s.logger.Info("stopping warmup scheduler, draining jobs")
			s.wg.Wait()
			return
		}
	}
}

// tick dispatches every due job. Exported to jobs via goroutines; a job
// still marked running from its previous fire is skipped, not queued.
func (s *Scheduler) tick(prev, now time.Time) {
	for _, j := range s.jobs {
		if !j.schedule.due(prev, now) {
			continue
		}

		j.mu.Lock()
		if j.running {
			j.mu.Unlock()
			s.logger.WithField("job", j.name).Warn("previous run still in progress, skipping")
			continue
		}
		j.running = true
		j.mu.Unlock()

		s.wg.Add(1)
		go s.runJob(j, now)
	}
}

func (s *Scheduler) runJob(j *job, now time.Time) {
	defer s.wg.Done()

	record := models.JobRun{
		PipelineName: j.name,
		StartedAt:    now,
		Status:       models.JobRunning,
		TriggeredBy:  "scheduler",
	}
	if err := s.db.Create(&record).Error; err != nil {
		s.logger.WithError(err).WithField("job", j.name).Error("failed to record job start")
	}

	s.logger.WithField("job", j.name).Info("job started")
	err := j.run()
	ended := s.clock.Now()

	j.mu.Lock()
	j.running = false
	j.lastRun = ended
	if err != nil {
		j.lastError = err.Error()
	} else {
		j.lastError = ""
	}
	j.mu.Unlock()

	updates := map[string]interface{}{
		"ended_at": ended,
		"status":   models.JobCompleted,
	}
	if err != nil {
		updates["status"] = models.JobFailed
		updates["error_message"] = err.Error()
		s.logger.WithError(err).WithField("job", j.name).Error("job failed")
		sentry.CaptureException(fmt.Errorf("scheduled job %s: %w", j.name, err))
	} else {
		s.logger.WithFields(logrus.Fields{
			"job":      j.name,
			"duration": ended.Sub(now).String(),
		}).Info("job completed")
	}
	if record.ID != 0 {
		if dbErr := s.db.Model(&models.JobRun{}).Where("id = ?", record.ID).Updates(updates).Error; dbErr != nil {
			s.logger.WithError(dbErr).WithField("job", j.name).Error("failed to record job end")
		}
	}
}

// Status reports every job with its last outcome and next fire time.
func (s *Scheduler) Status() []JobStatusInfo {
	now := s.clock.Now()
	statuses := make([]JobStatusInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		j.mu.Lock()
		info := JobStatusInfo{
			Name:      j.name,
			Running:   j.running,
			LastError: j.lastError,
			NextRun:   j.schedule.next(now),
		}
		if !j.lastRun.IsZero() {
			lastRun := j.lastRun
			info.LastRun = &lastRun
		}
		j.mu.Unlock()
		statuses = append(statuses, info)
	}
	return statuses
}

// RecentRuns returns the newest JobRun rows, newest first.
func (s *Scheduler) RecentRuns(limit int) ([]models.JobRun, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var runs []models.JobRun
	if err := s.db.Order("started_at desc").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
