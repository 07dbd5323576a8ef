package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"leadpilot/models"
	"leadpilot/utils"
)

func newTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Prospect{},
		&models.Sequence{},
		&models.ScrapeJob{},
	))
	return db
}

// fakeProvider plays back a scripted poll sequence and a fixed result set.
type fakeProvider struct {
	statuses []string
	results  []models.Prospect
	startErr error
	polls    int
}

func (f *fakeProvider) StartJob(_ context.Context, _ map[string]string) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	return "run-1", nil
}

func (f *fakeProvider) PollStatus(_ context.Context, _ string) (string, error) {
	idx := f.polls
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	f.polls++
	return f.statuses[idx], nil
}

func (f *fakeProvider) FetchResults(_ context.Context, _ string) ([]models.Prospect, error) {
	return f.results, nil
}

func newWorker(db *gorm.DB, provider utils.LeadProvider) *ScrapeWorker {
	return NewScrapeWorker(db,
		map[string]utils.LeadProvider{"apify": provider},
		time.Millisecond, 5)
}

func queueJob(t *testing.T, db *gorm.DB) models.ScrapeJob {
	job := models.ScrapeJob{
		Provider: "apify",
		Config:   map[string]string{"actor": "test-actor", "query": "plumbers chicago"},
		Status:   models.ScrapeQueued,
	}
	require.NoError(t, db.Create(&job).Error)
	return job
}

func TestScrapeWorkerImportsAndScoresResults(t *testing.T) {
	db := newTestDB(t)
	provider := &fakeProvider{
		statuses: []string{utils.JobRunning, utils.JobSucceeded},
		results: []models.Prospect{
			{Email: "jane@acme.com", Name: "Jane Doe", Title: "Owner", Company: "Acme",
				Industry: "Manufacturing", EmployeeCount: 100, Phone: "+1 555 0100", Source: "apify"},
			{Email: "bob@firm.io", Name: "Bob Smith", Source: "apify"},
		},
	}
	sw := newWorker(db, provider)
	job := queueJob(t, db)

	sw.processQueuedJobs(context.Background())

	var got models.ScrapeJob
	require.NoError(t, db.First(&got, job.ID).Error)
	assert.Equal(t, models.ScrapeCompleted, got.Status)
	assert.Equal(t, "run-1", got.ProviderRef)
	assert.Equal(t, 2, got.RowsFetched)
	assert.Equal(t, 2, got.Imported)
	assert.Equal(t, 0, got.Duplicates)
	assert.Equal(t, 1, got.QualifiedRows)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)

	var jane models.Prospect
	require.NoError(t, db.Where("email = ?", "jane@acme.com").First(&jane).Error)
	assert.True(t, jane.Qualified)
	assert.NotZero(t, jane.Score)
}

func TestScrapeWorkerSkipsDuplicateEmails(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&models.Prospect{Email: "jane@acme.com", Name: "Existing"}).Error)

	provider := &fakeProvider{
		statuses: []string{utils.JobSucceeded},
		results: []models.Prospect{
			{Email: "JANE@acme.com", Name: "Jane Doe", Source: "apify"},
			{Email: "new@firm.io", Name: "New Lead", Source: "apify"},
		},
	}
	sw := newWorker(db, provider)
	job := queueJob(t, db)

	sw.processQueuedJobs(context.Background())

	var got models.ScrapeJob
	require.NoError(t, db.First(&got, job.ID).Error)
	assert.Equal(t, 1, got.Imported)
	assert.Equal(t, 1, got.Duplicates)

	// The existing record is untouched
	var existing models.Prospect
	require.NoError(t, db.Where("email = ?", "jane@acme.com").First(&existing).Error)
	assert.Equal(t, "Existing", existing.Name)
}

func TestScrapeWorkerMarksFailedOnProviderFailure(t *testing.T) {
	db := newTestDB(t)
	provider := &fakeProvider{statuses: []string{utils.JobFailed}}
	sw := newWorker(db, provider)
	job := queueJob(t, db)

	sw.processQueuedJobs(context.Background())

	var got models.ScrapeJob
	require.NoError(t, db.First(&got, job.ID).Error)
	assert.Equal(t, models.ScrapeFailed, got.Status)
	assert.NotEmpty(t, got.Error)
}

func TestScrapeWorkerTimesOutAfterAttemptBudget(t *testing.T) {
	db := newTestDB(t)
	provider := &fakeProvider{statuses: []string{utils.JobRunning}}
	sw := newWorker(db, provider)
	sw.MaxAttempts = 3
	job := queueJob(t, db)

	sw.processQueuedJobs(context.Background())

	var got models.ScrapeJob
	require.NoError(t, db.First(&got, job.ID).Error)
	assert.Equal(t, models.ScrapeFailed, got.Status)
	assert.Contains(t, got.Error, "timed out")
	assert.Equal(t, 3, provider.polls)
}

func TestScrapeWorkerUnknownProvider(t *testing.T) {
	db := newTestDB(t)
	sw := newWorker(db, &fakeProvider{statuses: []string{utils.JobSucceeded}})

	job := models.ScrapeJob{
		Provider: "does-not-exist",
		Config:   map[string]string{},
		Status:   models.ScrapeQueued,
	}
	require.NoError(t, db.Create(&job).Error)

	sw.processQueuedJobs(context.Background())

	var got models.ScrapeJob
	require.NoError(t, db.First(&got, job.ID).Error)
	assert.Equal(t, models.ScrapeFailed, got.Status)
}

func TestScrapeWorkerStartJobError(t *testing.T) {
	db := newTestDB(t)
	provider := &fakeProvider{startErr: errors.New("provider down")}
	sw := newWorker(db, provider)
	job := queueJob(t, db)

	sw.processQueuedJobs(context.Background())

	var got models.ScrapeJob
	require.NoError(t, db.First(&got, job.ID).Error)
	assert.Equal(t, models.ScrapeFailed, got.Status)
	assert.Contains(t, got.Error, "provider down")
}
