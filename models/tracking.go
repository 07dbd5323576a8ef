package models

import (
	"time"

	"gorm.io/gorm"
)

// TrackingRecord is one row per individual send attempt. The token is an
// unpredictable value used as a public URL path segment for pixel/click/
// unsubscribe callbacks. First-event timestamps only move from unset to set;
// counters only increment.
type TrackingRecord struct {
	gorm.Model
	Token      string `gorm:"not null;uniqueIndex" json:"token"`
	ProspectID uint   `gorm:"not null;index" json:"prospect_id"`
	SequenceID uint   `gorm:"not null;index" json:"sequence_id"`

	TemplateKey string    `json:"template_key"`
	Subject     string    `json:"subject"`
	SenderEmail string    `json:"sender_email"`
	MessageID   string    `json:"message_id"`
	SentAt      time.Time `gorm:"not null" json:"sent_at"`

	// Opens
	FirstOpenedAt *time.Time `json:"first_opened_at"`
	LastOpenAt    *time.Time `json:"last_open_at"`
	OpenCount     int        `gorm:"default:0" json:"open_count"`

	// Clicks
	FirstClickedAt *time.Time `json:"first_clicked_at"`
	LastClickAt    *time.Time `json:"last_click_at"`
	ClickCount     int        `gorm:"default:0" json:"click_count"`

	// Terminal events
	RepliedAt      *time.Time `json:"replied_at"`
	Sentiment      string     `json:"sentiment"` // positive, neutral, negative
	BouncedAt      *time.Time `json:"bounced_at"`
	BounceReason   string     `json:"bounce_reason"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at"`

	// Device and location info from the first open
	UserAgent  string `json:"user_agent"`
	IPAddress  string `json:"ip_address"`
	DeviceType string `json:"device_type"` // mobile, tablet, desktop, unknown

	// Relations
	Prospect    Prospect     `json:"-"`
	ClickEvents []ClickEvent `gorm:"foreignKey:TrackingID" json:"click_events,omitempty"`
}

// ClickEvent is one entry in the ordered per-send click log.
type ClickEvent struct {
	gorm.Model
	TrackingID uint      `gorm:"not null;index" json:"tracking_id"`
	URL        string    `gorm:"not null" json:"url"`
	ClickedAt  time.Time `gorm:"not null" json:"clicked_at"`
}

// SendFailure is a persisted log entry for a send attempt that failed at the
// transport. Prospect state is untouched on failure; the row exists so the
// batch report and the dashboard can explain what went wrong.
type SendFailure struct {
	gorm.Model
	ProspectID  uint   `gorm:"not null;index" json:"prospect_id"`
	SequenceID  uint   `gorm:"not null;index" json:"sequence_id"`
	TemplateKey string `json:"template_key"`
	SenderEmail string `json:"sender_email"`
	Reason      string `gorm:"type:text" json:"reason"`
}
