package warmup

import "math"

var phaseNames = [4]string{"Initial", "Building Trust", "Scaling Up", "Full Ramp"}

// PhaseForDay maps a 1-based warmup day onto one of the four ramp phases.
// Days past the end of phase 3 always land in phase 4, which is open-ended.
func PhaseForDay(day int, cfg Config) (int, string) {
	end := 0
	for i := 0; i < 3; i++ {
		end += cfg.Phases[i].Days
		if day <= end {
			return i + 1, phaseNames[i]
		}
	}
	return 4, phaseNames[3]
}

// LimitForDay returns the recommended daily send limit for a warmup day,
// linearly interpolated between the phase's min and max over its day span.
// Single-day phases use the max. The result is rounded and never below 1.
func LimitForDay(day int, cfg Config) int {
	phase, _ := PhaseForDay(day, cfg)
	pc := cfg.Phases[phase-1]

	phaseStart := 0
	for p := 1; p < phase; p++ {
		phaseStart += cfg.Phases[p-1].Days
	}
	dayInPhase := day - phaseStart

	if pc.Days <= 1 {
		return maxInt(1, pc.MaxEmails)
	}

	progress := float64(dayInPhase-1) / float64(pc.Days-1)
	limit := float64(pc.MinEmails) + progress*float64(pc.MaxEmails-pc.MinEmails)
	return maxInt(1, int(math.Round(limit)))
}

// SchedulePhase describes one phase row in the materialized schedule.
type SchedulePhase struct {
	Phase     int    `json:"phase"`
	Name      string `json:"name"`
	StartDay  int    `json:"start_day"`
	EndDay    int    `json:"end_day"`
	Days      int    `json:"days"`
	MinEmails int    `json:"min_emails"`
	MaxEmails int    `json:"max_emails"`
}

// ScheduleDay is one day of the materialized schedule.
type ScheduleDay struct {
	Day               int    `json:"day"`
	Phase             int    `json:"phase"`
	PhaseName         string `json:"phase_name"`
	RecommendedEmails int    `json:"recommended_emails"`
}

// Schedule is the full day-by-day ramp table for display.
type Schedule struct {
	TotalDays int             `json:"total_days"`
	Phases    []SchedulePhase `json:"phases"`
	Days      []ScheduleDay   `json:"schedule"`
}

// BuildSchedule materializes the ramp table for every day of the warmup.
func BuildSchedule(cfg Config) Schedule {
	sched := Schedule{TotalDays: cfg.TotalDays}

	offset := 0
	for i, pc := range cfg.Phases {
		sched.Phases = append(sched.Phases, SchedulePhase{
			Phase:     i + 1,
			Name:      phaseNames[i],
			StartDay:  offset + 1,
			EndDay:    offset + pc.Days,
			Days:      pc.Days,
			MinEmails: pc.MinEmails,
			MaxEmails: pc.MaxEmails,
		})
		offset += pc.Days
	}

	for day := 1; day <= cfg.TotalDays; day++ {
		phase, name := PhaseForDay(day, cfg)
		sched.Days = append(sched.Days, ScheduleDay{
			Day:               day,
			Phase:             phase,
			PhaseName:         name,
			RecommendedEmails: LimitForDay(day, cfg),
		})
	}
	return sched
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
