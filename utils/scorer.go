package utils

import (
	"strings"
	"unicode"

	"github.com/badoux/checkmail"

	"leadpilot/models"
)

// ScoringConfig holds the weight table and targeting heuristics for the lead
// scorer. The weights are configuration, not law: the contract is monotonic
// in each signal, bounded to [0,100] and deterministic for identical input.
type ScoringConfig struct {
	QualifyThreshold int

	// Completeness bonuses
	NameWeight    int
	EmailWeight   int
	CompanyWeight int
	PhoneWeight   int

	// Seniority tier bonuses, highest tier first
	CLevelWeight   int
	VPWeight       int
	DirectorWeight int
	ManagerWeight  int
	StaffWeight    int

	IndustryWeight int
	EmployeeWeight int

	// Secondary signals
	VerifiedEmailWeight int
	LinkedInWeight      int
	WebsiteWeight       int

	PriorityIndustries []string
	TargetTitles       []string
	IdealEmployeeMin   int
	IdealEmployeeMax   int
}

// DefaultScoringConfig mirrors the weights the dashboard was tuned against:
// ~40 completeness, ~30 seniority, 15 industry, 10 employee band, ~10
// secondary signals.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		QualifyThreshold: 60,

		NameWeight:    10,
		EmailWeight:   15,
		CompanyWeight: 10,
		PhoneWeight:   5,

		CLevelWeight:   30,
		VPWeight:       24,
		DirectorWeight: 18,
		ManagerWeight:  12,
		StaffWeight:    5,

		IndustryWeight: 15,
		EmployeeWeight: 10,

		VerifiedEmailWeight: 5,
		LinkedInWeight:      3,
		WebsiteWeight:       2,

		PriorityIndustries: []string{
			"manufacturing", "construction", "logistics",
			"wholesale", "industrial services",
		},
		TargetTitles: []string{
			"owner", "founder", "ceo", "president",
			"vp", "vice president", "director", "head of",
		},
		IdealEmployeeMin: 20,
		IdealEmployeeMax: 500,
	}
}

// ScoreResult is the scorer output applied onto a prospect at ingestion.
type ScoreResult struct {
	Score          int
	Qualified      bool
	TargetMatch    bool
	SeniorityLevel string
}

// Generic role mailboxes are penalized and never count as a valid-looking
// email for target matching.
var roleAddressPrefixes = []string{
	"info", "contact", "admin", "support", "sales", "hello", "office", "team",
}

// ScoreProspect computes the quality score and derived flags for a prospect.
// Pure: no I/O, deterministic for identical input.
func ScoreProspect(p *models.Prospect, cfg ScoringConfig) ScoreResult {
	score := 0

	// Data completeness
	if strings.TrimSpace(p.Name) != "" {
		score += cfg.NameWeight
	}
	validEmail := ValidLookingEmail(p.Email)
	if validEmail {
		score += cfg.EmailWeight
	}
	if strings.TrimSpace(p.Company) != "" {
		score += cfg.CompanyWeight
	}
	if strings.TrimSpace(p.Phone) != "" {
		score += cfg.PhoneWeight
	}

	// Title seniority tier
	seniority := SeniorityFromTitle(p.Title)
	switch seniority {
	case models.SeniorityCLevel:
		score += cfg.CLevelWeight
	case models.SeniorityVP:
		score += cfg.VPWeight
	case models.SeniorityDirector:
		score += cfg.DirectorWeight
	case models.SeniorityManager:
		score += cfg.ManagerWeight
	default:
		score += cfg.StaffWeight
	}

	priorityIndustry := matchesAny(p.Industry, cfg.PriorityIndustries)
	if priorityIndustry {
		score += cfg.IndustryWeight
	}

	inBand := p.EmployeeCount >= cfg.IdealEmployeeMin && p.EmployeeCount <= cfg.IdealEmployeeMax
	if inBand {
		score += cfg.EmployeeWeight
	} else if p.EmployeeCount > 0 {
		// Some signal is better than none
		score += cfg.EmployeeWeight / 2
	}

	// Secondary signals
	if p.EmailVerified {
		score += cfg.VerifiedEmailWeight
	}
	if p.LinkedInURL != "" {
		score += cfg.LinkedInWeight
	}
	if p.Website != "" {
		score += cfg.WebsiteWeight
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	targetTitle := matchesAny(p.Title, cfg.TargetTitles)
	hits := 0
	for _, ok := range []bool{priorityIndustry, targetTitle, inBand, validEmail} {
		if ok {
			hits++
		}
	}

	return ScoreResult{
		Score:          score,
		Qualified:      score >= cfg.QualifyThreshold,
		TargetMatch:    hits >= 3,
		SeniorityLevel: seniority,
	}
}

// ApplyScore runs the scorer and writes the result onto the prospect.
func ApplyScore(p *models.Prospect, cfg ScoringConfig) {
	r := ScoreProspect(p, cfg)
	p.Score = r.Score
	p.Qualified = r.Qualified
	p.TargetMatch = r.TargetMatch
	p.SeniorityLevel = r.SeniorityLevel
}

// SeniorityFromTitle maps a job title to a seniority tier, highest tier
// wins. Short acronyms (ceo, cto, vp, ...) only match whole words so that
// "Director" never hits the cto inside it.
func SeniorityFromTitle(title string) string {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "vice president"):
		return models.SeniorityVP
	case hasAnyWord(t, "ceo", "cfo", "coo", "cto", "cmo") ||
		containsAny(t, "chief", "owner", "founder", "president", "principal"):
		return models.SeniorityCLevel
	case hasAnyWord(t, "vp") || containsAny(t, "executive"):
		return models.SeniorityVP
	case containsAny(t, "director", "head of"):
		return models.SeniorityDirector
	case containsAny(t, "manager", "lead"):
		return models.SeniorityManager
	default:
		return models.SeniorityStaff
	}
}

// ValidLookingEmail reports whether the address is syntactically valid and
// is not a generic role mailbox.
func ValidLookingEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if checkmail.ValidateFormat(email) != nil {
		return false
	}
	local := email[:strings.Index(email, "@")]
	for _, prefix := range roleAddressPrefixes {
		if local == prefix {
			return false
		}
	}
	return true
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func hasAnyWord(s string, words ...string) bool {
	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		for _, w := range words {
			if tok == w {
				return true
			}
		}
	}
	return false
}

func matchesAny(value string, patterns []string) bool {
	v := strings.ToLower(value)
	if v == "" {
		return false
	}
	for _, p := range patterns {
		if strings.Contains(v, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
