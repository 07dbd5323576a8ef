package models

import "gorm.io/gorm"

// Distribution policies for picking a sender account per send.
const (
	PolicyRoundRobin = "round_robin"
	PolicyRandom     = "random"
	PolicyWeighted   = "weighted"
)

// Sequence is a named outreach campaign: an ordered list of message
// templates plus delivery configuration. Engagement stats are computed on
// read from prospects and tracking records; only ProspectsCount is stored,
// maintained by enroll/remove bookkeeping.
type Sequence struct {
	gorm.Model

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Status      string `gorm:"default:'draft'" json:"status"` // draft, active

	// Ordered templates and sender accounts, stored as JSON documents
	Templates []SequenceTemplate `gorm:"type:jsonb;serializer:json" json:"templates"`
	Senders   []SenderConfig     `gorm:"type:jsonb;serializer:json" json:"senders"`

	DistributionPolicy string `gorm:"default:'round_robin'" json:"distribution_policy"`
	DailyCapPerAccount int    `gorm:"default:50" json:"daily_cap_per_account"`

	TrackOpens  bool `gorm:"default:true" json:"track_opens"`
	TrackClicks bool `gorm:"default:true" json:"track_clicks"`

	ProspectsCount int `gorm:"default:0" json:"prospects_count"`
}

// SequenceTemplate is immutable message content keyed by a step key such as
// "day_1". Subject and body may contain {{name}}-style placeholders and
// {spin}a|b{endspin} alternation groups.
type SequenceTemplate struct {
	Key     string `json:"key"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// SenderConfig is one outbound delivery channel for a sequence. Credentials
// are handed straight to the mail transport; rotation state (daily counters,
// cursor) lives in memory and is rebuilt from this config.
type SenderConfig struct {
	FromEmail    string `json:"from_email"`
	FromName     string `json:"from_name"`
	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUsername string `json:"smtp_username"`
	SMTPPassword string `json:"-"`
	DailyCap     int    `json:"daily_cap"` // 0 means the sequence default applies
}

// Template returns the template for the given step key.
func (s *Sequence) Template(key string) (SequenceTemplate, bool) {
	for _, t := range s.Templates {
		if t.Key == key {
			return t, true
		}
	}
	return SequenceTemplate{}, false
}

// FirstStep returns the key of the first template, or "" when the sequence
// has no templates yet.
func (s *Sequence) FirstStep() string {
	if len(s.Templates) == 0 {
		return ""
	}
	return s.Templates[0].Key
}
