package warmup

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"coldreach/models"
	"coldreach/utils"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Folder names checked for spam placement, in order.
var spamFolderNames = []string{"Spam", "Junk", "Junk Email", "[Gmail]/Spam", "INBOX.Spam", "INBOX.Junk"}

// PlacementResult summarizes where recent warmup emails landed for one
// receiving mailbox.
type PlacementResult struct {
	Mailbox   string  `json:"mailbox"`
	Total     int     `json:"total"`
	Inbox     int     `json:"inbox"`
	Spam      int     `json:"spam"`
	Missing   int     `json:"missing"`
	InboxRate float64 `json:"inbox_rate"`
}

// imapSession is the slice of an IMAP connection the placement check needs.
// Tests supply a canned implementation.
type imapSession interface {
	Folders() ([]string, error)
	FindMessage(folder, messageID string) (found bool, subject string, err error)
	Close() error
}

type imapDialer func(mb *models.Mailbox) (imapSession, error)

// PlacementChecker connects to receiving mailboxes over IMAP and verifies
// whether peer warmup email landed in the inbox or the spam folder.
type PlacementChecker struct {
	db     *gorm.DB
	logger *logrus.Entry
	clock  Clock
	dial   imapDialer
}

func NewPlacementChecker(db *gorm.DB, logger *logrus.Entry, clock Clock) *PlacementChecker {
	return &PlacementChecker{db: db, logger: logger, clock: clock, dial: dialIMAP}
}

// CheckMailbox inspects the last 24 hours of warmup email received by one
// mailbox. An email found in neither the inbox nor a spam folder counts as
// missing; missing emails do not lower the inbox rate.
func (pc *PlacementChecker) CheckMailbox(mailbox *models.Mailbox) (*PlacementResult, error) {
	if mailbox.IMAPHost == "" {
		return nil, fmt.Errorf("mailbox %s has no IMAP configuration", mailbox.Email)
	}

	since := pc.clock.Now().Add(-24 * time.Hour)
	var received []models.WarmupEmail
	err := pc.db.Where("receiver_mailbox_id = ?", mailbox.ID).
		Where("sent_at >= ?", since).
		Where("status != ?", models.EmailFailed).
		Where("message_id != ''").
		Find(&received).Error
	if err != nil {
		return nil, err
	}

	result := &PlacementResult{Mailbox: mailbox.Email, Total: len(received)}
	if len(received) == 0 {
		return result, nil
	}

	session, err := pc.dial(mailbox)
	if err != nil {
		return nil, fmt.Errorf("imap connect to %s failed: %w", mailbox.IMAPHost, err)
	}
	defer session.Close()

	folders, err := session.Folders()
	if err != nil {
		return nil, fmt.Errorf("imap folder listing failed: %w", err)
	}
	spamFolders := matchSpamFolders(folders)

	for i := range received {
		email := &received[i]

		found, _, err := session.FindMessage("INBOX", email.MessageID)
		if err != nil {
			pc.logger.WithError(err).WithField("mailbox", mailbox.Email).Warn("inbox search failed")
			continue
		}
		if found {
			result.Inbox++
			continue
		}

		inSpam := false
		for _, folder := range spamFolders {
			found, subject, err := session.FindMessage(folder, email.MessageID)
			if err != nil {
				continue
			}
			if found {
				inSpam = true
				pc.logger.WithFields(logrus.Fields{
					"mailbox": mailbox.Email,
					"folder":  folder,
					"subject": subject,
				}).Warn("warmup email landed in spam")
				break
			}
		}
		if inSpam {
			result.Spam++
		} else {
			result.Missing++
		}
	}

	if located := result.Inbox + result.Spam; located > 0 {
		result.InboxRate = round1(float64(result.Inbox) / float64(located) * 100)
	}
	return result, nil
}

func matchSpamFolders(folders []string) []string {
	var matched []string
	for _, folder := range folders {
		for _, candidate := range spamFolderNames {
			if strings.EqualFold(folder, candidate) {
				matched = append(matched, folder)
				break
			}
		}
	}
	return matched
}

// dialIMAP opens a TLS IMAP session using the mailbox's stored credentials.
func dialIMAP(mb *models.Mailbox) (imapSession, error) {
	password, err := utils.Decrypt(mb.SMTPPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", mb.IMAPHost, mb.IMAPPort)
	c, err := client.DialTLS(addr, &tls.Config{ServerName: mb.IMAPHost})
	if err != nil {
		return nil, err
	}
	if err := c.Login(mb.Email, password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("imap login failed: %w", err)
	}
	return &liveIMAPSession{c: c}, nil
}

type liveIMAPSession struct {
	c *client.Client
}

func (s *liveIMAPSession) Folders() ([]string, error) {
	mailboxes := make(chan *imap.MailboxInfo, 32)
	done := make(chan error, 1)
	go func() {
		done <- s.c.List("", "*", mailboxes)
	}()
	var names []string
	for info := range mailboxes {
		names = append(names, info.Name)
	}
	if err := <-done; err != nil {
		return nil, err
	}
	return names, nil
}

func (s *liveIMAPSession) FindMessage(folder, messageID string) (bool, string, error) {
	if _, err := s.c.Select(folder, true); err != nil {
		return false, "", err
	}

	criteria := imap.NewSearchCriteria()
	criteria.Header.Add("Message-Id", messageID)
	ids, err := s.c.Search(criteria)
	if err != nil {
		return false, "", err
	}
	if len(ids) == 0 {
		return false, "", nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids[0])
	section := &imap.BodySectionName{Peek: true}
	messages := make(chan *imap.Message, 1)
	if err := s.c.Fetch(seqset, []imap.FetchItem{section.FetchItem()}, messages); err != nil {
		return true, "", nil
	}

	msg := <-messages
	if msg == nil {
		return true, "", nil
	}
	body := msg.GetBody(section)
	if body == nil {
		return true, "", nil
	}
	reader, err := mail.CreateReader(body)
	if err != nil {
		return true, "", nil
	}
	subject, _ := reader.Header.Subject()
	return true, subject, nil
}

func (s *liveIMAPSession) Close() error {
	return s.c.Logout()
}
