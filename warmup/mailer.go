package warmup

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"coldreach/models"
	"coldreach/utils"

	"github.com/badoux/checkmail"
	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// Mailer delivers one warmup message through the sender's own SMTP
// credentials. Implementations return the generated Message-ID.
type Mailer interface {
	Send(sender *models.Mailbox, toEmail, subject, bodyHTML, bodyText string) (string, error)
}

// SMTPMailer sends peer warmup traffic over gomail with a per-send timeout
// and a bounded retry on temporary SMTP failures.
type SMTPMailer struct {
	maxRetries int
}

func NewSMTPMailer() *SMTPMailer {
	return &SMTPMailer{maxRetries: 3}
}

func (sm *SMTPMailer) Send(sender *models.Mailbox, toEmail, subject, bodyHTML, bodyText string) (string, error) {
	if err := checkmail.ValidateFormat(toEmail); err != nil {
		return "", fmt.Errorf("invalid recipient address %q: %w", toEmail, err)
	}

	password, err := utils.Decrypt(sender.SMTPPassword)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt SMTP password: %w", err)
	}

	host := sender.SMTPHost
	port := sender.SMTPPort
	if port == 0 {
		port = 587
	}

	dialer := gomail.NewDialer(host, port, sender.Email, password)
	dialer.TLSConfig = &tls.Config{ServerName: host}

	messageID := fmt.Sprintf("<%s@%s>", uuid.New().String(), sender.Domain())

	m := gomail.NewMessage()
	from := sender.Email
	if sender.DisplayName != "" {
		from = fmt.Sprintf("%s <%s>", sender.DisplayName, sender.Email)
	}
	m.SetHeader("From", from)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", subject)
	m.SetHeader("Message-ID", messageID)
	m.SetHeader("X-Priority", "3")
	m.SetBody("text/plain", bodyText)
	if bodyHTML != "" {
		m.AddAlternative("text/html", bodyHTML)
	}

	var lastErr error
	for attempt := 1; attempt <= sm.maxRetries; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(attempt*attempt) * time.Second
			time.Sleep(backoff)
		}

		if err := dialer.DialAndSend(m); err == nil {
			return messageID, nil
		} else {
			lastErr = err
			if !isTemporarySMTPError(err) {
				break
			}
		}
	}

	return "", fmt.Errorf("send to %s failed after retries: %w", toEmail, lastErr)
}

func isTemporarySMTPError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, marker := range []string{"try again", "temporary", "421", "450", "451", "452"} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}
