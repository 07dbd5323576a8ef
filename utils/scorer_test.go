package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"leadpilot/models"
)

func TestScoreProspectCompleteHighValueLead(t *testing.T) {
	cfg := DefaultScoringConfig()
	p := &models.Prospect{
		Name:          "Jane Doe",
		Email:         "jane.doe@acme.com",
		Company:       "Acme Manufacturing",
		Phone:         "+1 555 0100",
		Title:         "Owner",
		Industry:      "Manufacturing",
		EmployeeCount: 120,
		Website:       "https://acme.example",
		LinkedInURL:   "https://linkedin.com/in/janedoe",
		EmailVerified: true,
	}

	r := ScoreProspect(p, cfg)

	assert.Equal(t, 100, r.Score)
	assert.True(t, r.Qualified)
	assert.True(t, r.TargetMatch)
	assert.Equal(t, models.SeniorityCLevel, r.SeniorityLevel)
}

func TestScoreProspectSparseLeadNotQualified(t *testing.T) {
	cfg := DefaultScoringConfig()
	p := &models.Prospect{
		Email: "someone@example.com",
		Title: "Intern",
	}

	r := ScoreProspect(p, cfg)

	assert.Less(t, r.Score, cfg.QualifyThreshold)
	assert.False(t, r.Qualified)
	assert.False(t, r.TargetMatch)
	assert.Equal(t, models.SeniorityStaff, r.SeniorityLevel)
}

func TestScoreProspectDeterministic(t *testing.T) {
	cfg := DefaultScoringConfig()
	p := &models.Prospect{
		Name:          "Bob Smith",
		Email:         "bob@firm.io",
		Company:       "Firm",
		Title:         "VP of Sales",
		Industry:      "Logistics",
		EmployeeCount: 45,
	}

	first := ScoreProspect(p, cfg)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ScoreProspect(p, cfg))
	}
}

func TestScoreBoundedToHundred(t *testing.T) {
	cfg := DefaultScoringConfig()
	// Inflate every weight so the raw sum exceeds 100
	cfg.CLevelWeight = 90
	cfg.NameWeight = 50

	p := &models.Prospect{
		Name:    "Jane Doe",
		Email:   "jane@acme.com",
		Company: "Acme",
		Title:   "CEO",
	}

	r := ScoreProspect(p, cfg)
	assert.Equal(t, 100, r.Score)
}

func TestSeniorityFromTitle(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"CEO", models.SeniorityCLevel},
		{"Founder & CTO", models.SeniorityCLevel},
		{"Owner", models.SeniorityCLevel},
		{"VP of Engineering", models.SeniorityVP},
		{"Vice President of Sales", models.SeniorityVP},
		{"Executive Assistant", models.SeniorityVP},
		// Acronyms match whole words only: the cto in "Director" doesn't count
		{"Director of Operations", models.SeniorityDirector},
		{"Creative Director", models.SeniorityDirector},
		{"Head of Growth", models.SeniorityDirector},
		{"Sales Manager", models.SeniorityManager},
		{"Software Engineer", models.SeniorityStaff},
		{"", models.SeniorityStaff},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, SeniorityFromTitle(tc.title), "title=%q", tc.title)
	}
}

func TestValidLookingEmail(t *testing.T) {
	assert.True(t, ValidLookingEmail("jane.doe@acme.com"))
	assert.True(t, ValidLookingEmail("  Bob@Firm.io "))

	// Role mailboxes never count
	assert.False(t, ValidLookingEmail("info@acme.com"))
	assert.False(t, ValidLookingEmail("sales@acme.com"))
	assert.False(t, ValidLookingEmail("support@acme.com"))

	assert.False(t, ValidLookingEmail("not-an-email"))
	assert.False(t, ValidLookingEmail(""))
}

func TestTargetMatchNeedsThreeSignals(t *testing.T) {
	cfg := DefaultScoringConfig()

	// Priority industry + target title + employee band, but role email
	p := &models.Prospect{
		Name:          "Jane Doe",
		Email:         "info@acme.com",
		Company:       "Acme",
		Title:         "Owner",
		Industry:      "Construction",
		EmployeeCount: 80,
	}
	assert.True(t, ScoreProspect(p, cfg).TargetMatch)

	// Drop two signals: only title + email remain
	p.Industry = "Software"
	p.EmployeeCount = 3
	p.Email = "jane@acme.com"
	assert.False(t, ScoreProspect(p, cfg).TargetMatch)
}

func TestApplyScoreWritesFields(t *testing.T) {
	p := &models.Prospect{
		Name:          "Jane Doe",
		Email:         "jane@acme.com",
		Company:       "Acme Manufacturing",
		Phone:         "+1 555 0100",
		Title:         "President",
		Industry:      "Manufacturing",
		EmployeeCount: 100,
	}

	ApplyScore(p, DefaultScoringConfig())

	assert.NotZero(t, p.Score)
	assert.True(t, p.Qualified)
	assert.True(t, p.TargetMatch)
	assert.Equal(t, models.SeniorityCLevel, p.SeniorityLevel)
}
