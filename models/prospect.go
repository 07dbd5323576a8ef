package models

import (
	"time"

	"gorm.io/gorm"
)

// Sequence status values a prospect moves through. A prospect belongs to at
// most one active sequence; replied and unsubscribed are terminal for it.
const (
	StatusNotStarted   = "not_started"
	StatusInSequence   = "in_sequence"
	StatusContacted    = "contacted"
	StatusReplied      = "replied"
	StatusPaused       = "paused"
	StatusRemoved      = "removed"
	StatusUnsubscribed = "unsubscribed"
)

// Seniority tiers assigned by the lead scorer.
const (
	SeniorityCLevel   = "C-Level/Owner"
	SeniorityVP       = "VP/Executive"
	SeniorityDirector = "Director"
	SeniorityManager  = "Manager"
	SeniorityStaff    = "Staff"
)

// Prospect represents a single person+company contact. Email is the natural
// key; rows are never physically deleted by sequence operations.
type Prospect struct {
	gorm.Model

	Email string `gorm:"not null;uniqueIndex" json:"email"`

	// Profile
	Name             string `json:"name"`
	Title            string `json:"title"`
	Company          string `json:"company"`
	Phone            string `json:"phone"`
	Website          string `json:"website"`
	LinkedInURL      string `json:"linkedin_url"`
	Location         string `json:"location"`
	Industry         string `json:"industry"`
	CompanySize      string `json:"company_size"`
	EmployeeCount    int    `gorm:"default:0" json:"employee_count"`
	EstimatedRevenue string `json:"estimated_revenue"`
	Source           string `json:"source"` // manual, csv, apollo, scrapercity

	// Scoring
	Score          int    `gorm:"default:0" json:"score"`
	Qualified      bool   `gorm:"default:false" json:"qualified"`
	TargetMatch    bool   `gorm:"default:false" json:"target_match"`
	SeniorityLevel string `json:"seniority_level"`
	EmailVerified  bool   `gorm:"default:false" json:"email_verified"`

	// Sequence state
	SequenceID          *uint      `gorm:"index" json:"sequence_id"`
	SequenceStep        string     `json:"sequence_step"`
	EmailSequenceStatus string     `gorm:"default:'not_started';index" json:"email_sequence_status"`
	EmailsSent          int        `gorm:"default:0" json:"emails_sent"`
	EmailOpened         bool       `gorm:"default:false" json:"email_opened"`
	EmailClicked        bool       `gorm:"default:false" json:"email_clicked"`
	EmailReplied        bool       `gorm:"default:false" json:"email_replied"`
	EmailBounced        bool       `gorm:"default:false" json:"email_bounced"`
	EmailUnsubscribed   bool       `gorm:"default:false" json:"email_unsubscribed"`
	EmailPositive       bool       `gorm:"default:false" json:"email_positive"`
	SequenceAddedAt     *time.Time `json:"sequence_added_at"`
	LastEmailSent       *time.Time `json:"last_email_sent"`
	RepliedAt           *time.Time `json:"replied_at"`

	// Relations
	TrackingRecords []TrackingRecord `gorm:"foreignKey:ProspectID" json:"tracking_records,omitempty"`
}

// Sendable reports whether the prospect is eligible for bulk-send candidate
// selection. Only in_sequence prospects are candidates; contacted prospects
// wait for an operator to name the next step.
func (p *Prospect) Sendable() bool {
	return p.EmailSequenceStatus == StatusInSequence
}
