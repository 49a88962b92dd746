package warmup

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"coldreach/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyAtDue(t *testing.T) {
	s := dailyAt{hour: 0, minute: 5}

	prev := time.Date(2026, 3, 2, 0, 4, 30, 0, time.UTC)
	now := time.Date(2026, 3, 2, 0, 5, 0, 0, time.UTC)
	assert.True(t, s.due(prev, now))

	// Already fired this window.
	prev = time.Date(2026, 3, 2, 0, 5, 30, 0, time.UTC)
	now = time.Date(2026, 3, 2, 0, 6, 0, 0, time.UTC)
	assert.False(t, s.due(prev, now))
}

func TestDailyAtNext(t *testing.T) {
	s := dailyAt{hour: 23, minute: 55}
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 23, 55, 0, 0, time.UTC), s.next(now))

	now = time.Date(2026, 3, 2, 23, 56, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 3, 23, 55, 0, 0, time.UTC), s.next(now))
}

func TestHourlyBetweenDue(t *testing.T) {
	s := hourlyBetween{startHour: 9, endHour: 17, minute: 0}

	prev := time.Date(2026, 3, 2, 8, 59, 30, 0, time.UTC)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	assert.True(t, s.due(prev, now))

	// Outside the send window.
	prev = time.Date(2026, 3, 2, 17, 59, 30, 0, time.UTC)
	now = time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	assert.False(t, s.due(prev, now))
}

func TestHourlyBetweenNext(t *testing.T) {
	s := hourlyBetween{startHour: 9, endHour: 17, minute: 30}

	now := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC), s.next(now))

	now = time.Date(2026, 3, 2, 9, 45, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC), s.next(now))

	// Past the window rolls to tomorrow morning.
	now = time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 3, 9, 30, 0, 0, time.UTC), s.next(now))
}

func TestHourlyBetweenHonorsLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	s := hourlyBetween{startHour: 9, endHour: 17, minute: 0, loc: loc}

	// 14:00 UTC is 09:00 local, the window start.
	prev := time.Date(2026, 3, 2, 13, 59, 30, 0, time.UTC)
	now := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	assert.True(t, s.due(prev, now))

	// 09:00 UTC is 04:00 local, before the window.
	prev = time.Date(2026, 3, 2, 8, 59, 30, 0, time.UTC)
	now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	assert.False(t, s.due(prev, now))

	next := s.next(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	assert.True(t, next.Equal(time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)))
}

func TestEveryDue(t *testing.T) {
	anchor := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	s := every{interval: 12 * time.Hour, anchor: anchor}

	assert.False(t, s.due(anchor.Add(-time.Minute), anchor.Add(-30*time.Second)))
	assert.True(t, s.due(anchor.Add(11*time.Hour+59*time.Minute), anchor.Add(12*time.Hour)))
	assert.False(t, s.due(anchor.Add(12*time.Hour), anchor.Add(12*time.Hour+time.Minute)))
	assert.Equal(t, anchor.Add(12*time.Hour), s.next(anchor.Add(time.Hour)))
}

func TestSchedulerRunsDueJob(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 2, 0, 5, 0, 0, time.UTC)
	s := &Scheduler{db: db, logger: testLogger(), clock: newFakeClock(now)}

	var calls atomic.Int32
	s.jobs = []*job{{
		name:     "test_job",
		schedule: dailyAt{hour: 0, minute: 5},
		run: func() error {
			calls.Add(1)
			return nil
		},
	}}

	s.tick(now.Add(-time.Minute), now)
	s.wg.Wait()

	assert.Equal(t, int32(1), calls.Load())

	var record models.JobRun
	require.NoError(t, db.Where("pipeline_name = ?", "test_job").First(&record).Error)
	assert.Equal(t, models.JobCompleted, record.Status)
	assert.Equal(t, "scheduler", record.TriggeredBy)
	require.NotNil(t, record.EndedAt)
}

func TestSchedulerSkipsOverlappingRun(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 2, 0, 5, 0, 0, time.UTC)
	s := &Scheduler{db: db, logger: testLogger(), clock: newFakeClock(now)}

	var calls atomic.Int32
	j := &job{
		name:     "slow_job",
		schedule: dailyAt{hour: 0, minute: 5},
		run: func() error {
			calls.Add(1)
			return nil
		},
	}
	j.running = true
	s.jobs = []*job{j}

	s.tick(now.Add(-time.Minute), now)
	s.wg.Wait()

	assert.Zero(t, calls.Load())
}

func TestSchedulerRecordsFailure(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 2, 0, 5, 0, 0, time.UTC)
	s := &Scheduler{db: db, logger: testLogger(), clock: newFakeClock(now)}

	s.jobs = []*job{{
		name:     "failing_job",
		schedule: dailyAt{hour: 0, minute: 5},
		run: func() error {
			return errors.New("smtp connection refused")
		},
	}}

	s.tick(now.Add(-time.Minute), now)
	s.wg.Wait()

	var record models.JobRun
	require.NoError(t, db.Where("pipeline_name = ?", "failing_job").First(&record).Error)
	assert.Equal(t, models.JobFailed, record.Status)
	assert.Contains(t, record.ErrorMessage, "connection refused")

	statuses := s.Status()
	require.Len(t, statuses, 1)
	assert.False(t, statuses[0].Running)
	assert.Contains(t, statuses[0].LastError, "connection refused")
	require.NotNil(t, statuses[0].LastRun)
}

func TestSchedulerWiresAllPipelines(t *testing.T) {
	db := newTestDB(t)
	clock := newFakeClock(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	logger := testLogger()
	mailer := newFakeMailer()
	resolver := newFakeResolver()

	engine := NewEngine(db, logger, clock)
	peers := NewPeerNetwork(db, logger, clock, mailer)
	replier := NewAutoReplier(db, logger, clock, mailer)
	dns := NewDNSChecker(db, logger, clock, resolver)
	bl := NewBlacklistChecker(db, logger, clock, resolver)
	recovery := NewRecoveryService(db, logger, clock)
	snapshots := NewSnapshotService(db, logger, clock)

	s := NewScheduler(db, logger, clock, engine, peers, replier, dns, bl, recovery, snapshots)

	names := make([]string, 0, len(s.jobs))
	for _, j := range s.jobs {
		names = append(names, j.name)
	}
	assert.ElementsMatch(t, []string{
		"daily_reset", "daily_assessment", "recovery_sweep", "peer_cycle",
		"auto_reply_cycle", "dns_check", "blacklist_check", "daily_snapshot",
	}, names)
}

func TestSchedulerUsesConfiguredSendWindow(t *testing.T) {
	db := newTestDB(t)
	clock := newFakeClock(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	logger := testLogger()
	mailer := newFakeMailer()
	resolver := newFakeResolver()

	require.NoError(t, db.Create(&models.Setting{Key: "warmup_send_window_start", ValueJSON: `"10:00"`}).Error)
	require.NoError(t, db.Create(&models.Setting{Key: "warmup_send_window_end", ValueJSON: `"14:00"`}).Error)

	engine := NewEngine(db, logger, clock)
	peers := NewPeerNetwork(db, logger, clock, mailer)
	replier := NewAutoReplier(db, logger, clock, mailer)
	dns := NewDNSChecker(db, logger, clock, resolver)
	bl := NewBlacklistChecker(db, logger, clock, resolver)
	recovery := NewRecoveryService(db, logger, clock)
	snapshots := NewSnapshotService(db, logger, clock)

	s := NewScheduler(db, logger, clock, engine, peers, replier, dns, bl, recovery, snapshots)

	for _, j := range s.jobs {
		switch j.name {
		case "peer_cycle":
			assert.Equal(t, hourlyBetween{startHour: 10, endHour: 14, minute: 0, loc: time.UTC}, j.schedule)
		case "auto_reply_cycle":
			assert.Equal(t, hourlyBetween{startHour: 10, endHour: 14, minute: 30, loc: time.UTC}, j.schedule)
		}
	}
}
