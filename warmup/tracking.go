package warmup

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"coldreach/models"

	"gorm.io/gorm"
)

// TrackingPixelURL builds the open-tracking pixel URL for a token.
func TrackingPixelURL(baseURL, token string) string {
	return fmt.Sprintf("%s/t/%s/px.gif", strings.TrimRight(baseURL, "/"), token)
}

// TrackedLinkURL wraps a destination URL in the click-redirect endpoint.
func TrackedLinkURL(baseURL, token, originalURL string) string {
	return fmt.Sprintf("%s/t/%s/l?url=%s", strings.TrimRight(baseURL, "/"), token, url.QueryEscape(originalURL))
}

// InjectTrackingPixel appends the invisible open-tracking marker to an HTML
// body, before </body> when present.
func InjectTrackingPixel(bodyHTML, baseURL, token string) string {
	pixel := fmt.Sprintf(`<img src="%s" width="1" height="1" style="display:none" alt="" />`, TrackingPixelURL(baseURL, token))
	if strings.Contains(bodyHTML, "</body>") {
		return strings.Replace(bodyHTML, "</body>", pixel+"</body>", 1)
	}
	return bodyHTML + pixel
}

// RecordOpen marks a warmup email opened by its tracking token. The first
// open wins; later opens are no-ops. Returns false for unknown tokens.
func RecordOpen(db *gorm.DB, token string, now time.Time) (bool, error) {
	var email models.WarmupEmail
	if err := db.Where("tracking_token = ?", token).First(&email).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, err
	}
	if email.OpenedAt != nil {
		return true, nil
	}

	updates := map[string]interface{}{"opened_at": now}
	if email.Status == models.EmailSent {
		updates["status"] = models.EmailOpened
	}
	if err := db.Model(&email).Updates(updates).Error; err != nil {
		return false, err
	}

	if email.ReceiverMailboxID != nil {
		if err := db.Model(&models.Mailbox{}).Where("id = ?", email.SenderMailboxID).
			Update("warmup_opens", gorm.Expr("warmup_opens + ?", 1)).Error; err != nil {
			return false, err
		}
	}
	return true, nil
}

// RecordClick registers a click for a tracking token. Clicks imply opens.
func RecordClick(db *gorm.DB, token string, now time.Time) (bool, error) {
	var email models.WarmupEmail
	if err := db.Where("tracking_token = ?", token).First(&email).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, err
	}
	if email.OpenedAt == nil {
		if err := db.Model(&email).Update("opened_at", now).Error; err != nil {
			return false, err
		}
	}
	return true, nil
}
