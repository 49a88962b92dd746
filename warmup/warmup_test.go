package warmup

import (
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"coldreach/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	return db
}

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log.WithField("test", true)
}

// fakeClock is a settable Clock for deterministic scheduling tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (fc *fakeClock) Now() time.Time {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.now
}

func (fc *fakeClock) Advance(d time.Duration) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.now = fc.now.Add(d)
}

func (fc *fakeClock) Set(t time.Time) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.now = t
}

type sentEmail struct {
	From    string
	To      string
	Subject string
}

// fakeMailer records sends instead of talking SMTP. Addresses in failTo
// return an error.
type fakeMailer struct {
	mu     sync.Mutex
	sent   []sentEmail
	failTo map[string]bool
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{failTo: map[string]bool{}}
}

func (fm *fakeMailer) Send(sender *models.Mailbox, toEmail, subject, bodyHTML, bodyText string) (string, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	if fm.failTo[toEmail] {
		return "", fmt.Errorf("simulated delivery failure to %s", toEmail)
	}
	fm.sent = append(fm.sent, sentEmail{From: sender.Email, To: toEmail, Subject: subject})
	return fmt.Sprintf("<test-%d@%s>", len(fm.sent), sender.Domain()), nil
}

func (fm *fakeMailer) sentCount() int {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return len(fm.sent)
}

// fakeResolver serves canned DNS answers. Missing names return errNXDomain.
type fakeResolver struct {
	txt map[string][]string
	mx  map[string][]string
	a   map[string][]string
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		txt: map[string][]string{},
		mx:  map[string][]string{},
		a:   map[string][]string{},
	}
}

func (fr *fakeResolver) LookupTXT(name string) ([]string, error) {
	if records, ok := fr.txt[name]; ok {
		return records, nil
	}
	return nil, errNXDomain
}

func (fr *fakeResolver) LookupMX(name string) ([]string, error) {
	if records, ok := fr.mx[name]; ok {
		return records, nil
	}
	return nil, errNXDomain
}

func (fr *fakeResolver) LookupA(name string) ([]string, error) {
	if records, ok := fr.a[name]; ok {
		return records, nil
	}
	return nil, errNXDomain
}

// seedMailbox inserts a connected, active mailbox ready for warmup traffic.
func seedMailbox(t *testing.T, db *gorm.DB, email string, status models.WarmupStatus, mutate ...func(*models.Mailbox)) *models.Mailbox {
	t.Helper()
	mb := &models.Mailbox{
		Email:            email,
		SMTPHost:         "smtp.example.com",
		SMTPPort:         587,
		IMAPHost:         "imap.example.com",
		IMAPPort:         993,
		WarmupStatus:     status,
		IsActive:         true,
		ConnectionStatus: models.ConnectionSuccessful,
		DailySendLimit:   10,
	}
	for _, fn := range mutate {
		fn(mb)
	}
	require.NoError(t, db.Create(mb).Error)
	return mb
}

func reloadMailbox(t *testing.T, db *gorm.DB, id uint) *models.Mailbox {
	t.Helper()
	var mb models.Mailbox
	require.NoError(t, db.First(&mb, id).Error)
	return &mb
}
