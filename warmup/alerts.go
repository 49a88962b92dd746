package warmup

import (
	"coldreach/models"

	"gorm.io/gorm"
)

// createAlert writes a notification row. Alert failures are deliberately
// swallowed by callers: a missing notification must not fail the job that
// produced it.
func createAlert(db *gorm.DB, mailboxID *uint, alertType models.AlertType, severity models.AlertSeverity, title, message string) error {
	alert := models.WarmupAlert{
		MailboxID: mailboxID,
		AlertType: alertType,
		Severity:  severity,
		Title:     title,
		Message:   message,
	}
	return db.Create(&alert).Error
}
