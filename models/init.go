package models

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate runs schema migration for every table the orchestrator owns and
// seeds the system warmup profiles.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&User{},
		&Mailbox{},
		&WarmupEmail{},
		&WarmupDailyLog{},
		&WarmupAlert{},
		&WarmupProfile{},
		&DNSCheckResult{},
		&BlacklistCheckResult{},
		&JobRun{},
		&Setting{},
	)
	if err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}
	return seedSystemProfiles(db)
}

// seedSystemProfiles creates the built-in presets once. They are immutable
// through the API, so re-running migration never touches existing rows.
func seedSystemProfiles(db *gorm.DB) error {
	profiles := []WarmupProfile{
		{
			Name:        "Conservative",
			Description: "Slow 5-week ramp for brand-new domains",
			IsSystem:    true,
			ConfigJSON:  `{"phase_1_days":10,"phase_1_min_emails":1,"phase_1_max_emails":3,"phase_2_days":10,"phase_2_min_emails":3,"phase_2_max_emails":10,"phase_3_days":10,"phase_3_min_emails":10,"phase_3_max_emails":20,"phase_4_days":5,"phase_4_min_emails":20,"phase_4_max_emails":30,"total_days":35}`,
		},
		{
			Name:        "Standard",
			Description: "Default 30-day ramp",
			IsSystem:    true,
			IsDefault:   true,
			ConfigJSON:  `{"phase_1_days":7,"phase_1_min_emails":2,"phase_1_max_emails":5,"phase_2_days":7,"phase_2_min_emails":5,"phase_2_max_emails":15,"phase_3_days":7,"phase_3_min_emails":15,"phase_3_max_emails":25,"phase_4_days":9,"phase_4_min_emails":25,"phase_4_max_emails":35,"total_days":30}`,
		},
		{
			Name:        "Aggressive",
			Description: "Fast 3-week ramp for aged domains with good history",
			IsSystem:    true,
			ConfigJSON:  `{"phase_1_days":5,"phase_1_min_emails":5,"phase_1_max_emails":10,"phase_2_days":5,"phase_2_min_emails":10,"phase_2_max_emails":20,"phase_3_days":5,"phase_3_min_emails":20,"phase_3_max_emails":30,"phase_4_days":6,"phase_4_min_emails":30,"phase_4_max_emails":40,"total_days":21}`,
		},
	}

	for _, p := range profiles {
		var existing WarmupProfile
		err := db.Where("name = ?", p.Name).First(&existing).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		if err := db.Create(&p).Error; err != nil {
			return fmt.Errorf("failed to seed profile %q: %w", p.Name, err)
		}
	}
	return nil
}
