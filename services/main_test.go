package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"research-showcase-api/models"
	"research-showcase-api/storage"
	"research-showcase-api/utils"
)

// newTestDB returns a migrated sqlite database private to the test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "showcase.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

type userOpts struct {
	noEmail bool
	noInApp bool
}

func createUser(t *testing.T, db *gorm.DB, username string, role models.Role, opts ...userOpts) *models.User {
	t.Helper()
	u := &models.User{
		Username:                    username,
		Email:                       username + "@university.edu",
		FullName:                    strings.ToUpper(username[:1]) + username[1:],
		Password:                    "x",
		Role:                        role,
		NotifyByEmailOnStatusChange: true,
		NotifyInAppOnStatusChange:   true,
	}
	require.NoError(t, db.Create(u).Error)
	if len(opts) > 0 {
		// false is a zero value and would be replaced by the column default on insert.
		require.NoError(t, db.Model(u).Updates(map[string]interface{}{
			"notify_by_email_on_status_change": !opts[0].noEmail,
			"notify_in_app_on_status_change":   !opts[0].noInApp,
		}).Error)
		u.NotifyByEmailOnStatusChange = !opts[0].noEmail
		u.NotifyInAppOnStatusChange = !opts[0].noInApp
	}
	return u
}

func validInput(title string) SubmissionInput {
	presented := time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC)
	return SubmissionInput{Fields: utils.ProjectFields{
		Title:             title,
		Abstract:          strings.Repeat("This project studies undergraduate research outcomes. ", 3),
		StudentAuthorName: "Jordan Lee",
		ProjectSponsor:    "Office of Research",
		GithubLink:        "https://github.com/example/project",
		DatePresented:     &presented,
	}}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// newTestUploads returns an upload service backed by a temporary directory.
func newTestUploads(t *testing.T) (*UploadService, string) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFSStore(root, "/uploads")
	require.NoError(t, err)
	return NewUploadService(store), root
}

func storedFiles(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(root, p)
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	return files
}

func historyOf(t *testing.T, db *gorm.DB, projectID string) []models.StatusHistory {
	t.Helper()
	var rows []models.StatusHistory
	require.NoError(t, db.Where("project_id = ?", projectID).Order("history_id ASC").Find(&rows).Error)
	return rows
}

func count(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

// fakeNotifier records deliveries and optionally fails or stalls.
type fakeNotifier struct {
	channel string
	err     error
	delay   time.Duration
	refuse  bool

	mu    sync.Mutex
	calls []string
}

func (f *fakeNotifier) Channel() string { return f.channel }

func (f *fakeNotifier) Wants(recipient *models.User, kind string) bool { return !f.refuse }

func (f *fakeNotifier) Notify(ctx context.Context, recipient *models.User, kind, message string, link *string) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf("%d:%s:%s", recipient.UserID, kind, message))
	f.mu.Unlock()
	return f.err
}

func (f *fakeNotifier) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeMailer captures sent mail.
type fakeMailer struct {
	err error

	mu   sync.Mutex
	sent []EmailJob
}

func (m *fakeMailer) SendMail(to []string, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, EmailJob{To: to, Subject: subject, HTML: html})
	return nil
}

type fakeQueue struct {
	err  error
	jobs []EmailJob
}

func (q *fakeQueue) EnqueueEmail(ctx context.Context, job EmailJob) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}
