package models

import (
	"time"

	"gorm.io/gorm"
)

// Scrape job statuses.
const (
	ScrapeQueued    = "queued"
	ScrapeRunning   = "running"
	ScrapeCompleted = "completed"
	ScrapeFailed    = "failed"
)

// ScrapeJob is a persisted lead-sourcing task. The worker picks up queued
// jobs, drives the provider's start/poll/fetch cycle and imports the
// normalized rows, so callers can always retrieve the outcome instead of
// firing and forgetting.
type ScrapeJob struct {
	gorm.Model

	Provider string `gorm:"not null" json:"provider"` // apollo, scrapercity
	// Provider-specific search parameters, opaque to the worker
	Config map[string]string `gorm:"type:jsonb;serializer:json" json:"config"`

	Status      string     `gorm:"default:'queued';index" json:"status"`
	ProviderRef string     `json:"provider_ref"` // provider-side job id
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Error       string     `gorm:"type:text" json:"error"`

	// Results
	RowsFetched   int `gorm:"default:0" json:"rows_fetched"`
	Imported      int `gorm:"default:0" json:"imported"`
	Duplicates    int `gorm:"default:0" json:"duplicates"`
	QualifiedRows int `gorm:"default:0" json:"qualified_rows"`
}
