package worker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"leadpilot/apperrors"
	"leadpilot/models"
	"leadpilot/utils"
)

// ScrapeWorker drains queued scrape jobs: it starts the provider run, polls
// until the run finishes, then imports and scores the results. One job is
// processed at a time so provider rate limits stay comfortable.
type ScrapeWorker struct {
	DB        *gorm.DB
	Providers map[string]utils.LeadProvider
	Scoring   utils.ScoringConfig
	Logger    *logrus.Entry

	PollEvery   time.Duration
	MaxAttempts int
}

func NewScrapeWorker(db *gorm.DB, providers map[string]utils.LeadProvider, pollEvery time.Duration, maxAttempts int) *ScrapeWorker {
	return &ScrapeWorker{
		DB:          db,
		Providers:   providers,
		Scoring:     utils.DefaultScoringConfig(),
		Logger:      logrus.WithField("component", "scrape_worker"),
		PollEvery:   pollEvery,
		MaxAttempts: maxAttempts,
	}
}

func (sw *ScrapeWorker) Start(ctx context.Context) {
	sw.Logger.Info("scrape worker started")

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sw.Logger.Info("scrape worker shutting down")
			return
		case <-ticker.C:
			sw.processQueuedJobs(ctx)
		}
	}
}

func (sw *ScrapeWorker) processQueuedJobs(ctx context.Context) {
	var jobs []models.ScrapeJob
	if err := sw.DB.Where("status = ?", models.ScrapeQueued).
		Order("created_at asc").Find(&jobs).Error; err != nil {
		sw.Logger.WithError(err).Error("failed to fetch queued scrape jobs")
		return
	}

	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		if err := sw.runJob(ctx, &job); err != nil {
			sw.Logger.WithError(err).WithField("job", job.ID).Warn("scrape job failed")
			sw.markFailed(job.ID, err)
		}
	}
}

func (sw *ScrapeWorker) runJob(ctx context.Context, job *models.ScrapeJob) error {
	provider, ok := sw.Providers[job.Provider]
	if !ok {
		return apperrors.NewValidation("unknown provider %q", job.Provider)
	}

	ref, err := provider.StartJob(ctx, job.Config)
	if err != nil {
		return err
	}

	now := time.Now()
	if err := sw.DB.Model(job).Updates(map[string]interface{}{
		"status":       models.ScrapeRunning,
		"provider_ref": ref,
		"started_at":   now,
	}).Error; err != nil {
		return err
	}

	sw.Logger.WithFields(logrus.Fields{
		"job":      job.ID,
		"provider": job.Provider,
		"ref":      ref,
	}).Info("scrape job running")

	if err := sw.waitForCompletion(ctx, provider, ref); err != nil {
		return err
	}

	prospects, err := provider.FetchResults(ctx, ref)
	if err != nil {
		return err
	}

	imported, duplicates, qualified := sw.importProspects(prospects)

	return sw.DB.Model(job).Updates(map[string]interface{}{
		"status":         models.ScrapeCompleted,
		"completed_at":   time.Now(),
		"rows_fetched":   len(prospects),
		"imported":       imported,
		"duplicates":     duplicates,
		"qualified_rows": qualified,
	}).Error
}

// waitForCompletion polls the provider until the run reaches a terminal
// state or the attempt budget runs out.
func (sw *ScrapeWorker) waitForCompletion(ctx context.Context, provider utils.LeadProvider, ref string) error {
	for attempt := 1; attempt <= sw.MaxAttempts; attempt++ {
		status, err := provider.PollStatus(ctx, ref)
		if err != nil {
			return err
		}
		switch status {
		case utils.JobSucceeded:
			return nil
		case utils.JobFailed:
			return apperrors.NewTransport("provider run", errors.New("run ended in failure"))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sw.PollEvery):
		}
	}
	return apperrors.NewTimeout("provider run "+ref, sw.MaxAttempts)
}

// importProspects scores and inserts the normalized records. Records whose
// address already exists are counted as duplicates and skipped, never merged.
func (sw *ScrapeWorker) importProspects(prospects []models.Prospect) (imported, duplicates, qualified int) {
	for i := range prospects {
		p := &prospects[i]
		p.Email = strings.ToLower(strings.TrimSpace(p.Email))
		if p.Email == "" {
			continue
		}

		var count int64
		if err := sw.DB.Model(&models.Prospect{}).
			Where("email = ?", p.Email).Count(&count).Error; err != nil {
			sw.Logger.WithError(err).WithField("email", p.Email).Error("duplicate check failed")
			continue
		}
		if count > 0 {
			duplicates++
			continue
		}

		utils.ApplyScore(p, sw.Scoring)
		if err := sw.DB.Create(p).Error; err != nil {
			sw.Logger.WithError(err).WithField("email", p.Email).Error("failed to insert prospect")
			continue
		}
		imported++
		if p.Qualified {
			qualified++
		}
	}
	return imported, duplicates, qualified
}

func (sw *ScrapeWorker) markFailed(jobID uint, cause error) {
	sw.DB.Model(&models.ScrapeJob{}).Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":       models.ScrapeFailed,
			"completed_at": time.Now(),
			"error":        cause.Error(),
		})
}
