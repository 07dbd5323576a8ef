package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"leadpilot/apperrors"
	"leadpilot/models"
)

// Provider run states, normalized across providers.
const (
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
)

// LeadProvider is a remote scraping service that produces raw lead records.
// StartJob returns a provider-side reference used for polling and retrieval.
type LeadProvider interface {
	StartJob(ctx context.Context, config map[string]string) (string, error)
	PollStatus(ctx context.Context, ref string) (string, error)
	FetchResults(ctx context.Context, ref string) ([]models.Prospect, error)
}

// ApifyProvider runs Apify actors and reads their datasets.
type ApifyProvider struct {
	baseURL string
	token   string
	client  *http.Client
	log     *logrus.Entry
}

func NewApifyProvider(baseURL, token string) *ApifyProvider {
	return &ApifyProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     logrus.WithField("component", "apify"),
	}
}

type apifyRun struct {
	Data struct {
		ID               string `json:"id"`
		Status           string `json:"status"`
		DefaultDatasetID string `json:"defaultDatasetId"`
	} `json:"data"`
}

// StartJob launches the actor named in config["actor"] with the remaining
// config entries as actor input.
func (a *ApifyProvider) StartJob(ctx context.Context, config map[string]string) (string, error) {
	actor := config["actor"]
	if actor == "" {
		return "", apperrors.NewValidation("scrape config is missing the actor id")
	}

	input := make(map[string]string, len(config))
	for k, v := range config {
		if k != "actor" {
			input[k] = v
		}
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return "", apperrors.NewTransport("encode actor input", err)
	}

	url := fmt.Sprintf("%s/acts/%s/runs?token=%s", a.baseURL, actor, a.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", apperrors.NewTransport("start actor run", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var run apifyRun
	if err := a.do(req, &run); err != nil {
		return "", err
	}

	a.log.WithFields(logrus.Fields{
		"actor": actor,
		"run":   run.Data.ID,
	}).Info("actor run started")
	return run.Data.ID, nil
}

// PollStatus reports the run state for a previously started job.
func (a *ApifyProvider) PollStatus(ctx context.Context, ref string) (string, error) {
	url := fmt.Sprintf("%s/actor-runs/%s?token=%s", a.baseURL, ref, a.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", apperrors.NewTransport("poll actor run", err)
	}

	var run apifyRun
	if err := a.do(req, &run); err != nil {
		return "", err
	}

	switch run.Data.Status {
	case "SUCCEEDED":
		return JobSucceeded, nil
	case "FAILED", "ABORTED", "TIMED-OUT":
		return JobFailed, nil
	default:
		return JobRunning, nil
	}
}

// FetchResults downloads the run's dataset and normalizes every record.
func (a *ApifyProvider) FetchResults(ctx context.Context, ref string) ([]models.Prospect, error) {
	url := fmt.Sprintf("%s/actor-runs/%s?token=%s", a.baseURL, ref, a.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.NewTransport("fetch actor run", err)
	}
	var run apifyRun
	if err := a.do(req, &run); err != nil {
		return nil, err
	}
	if run.Data.DefaultDatasetID == "" {
		return nil, apperrors.NewTransport("fetch dataset", fmt.Errorf("run %s has no dataset", ref))
	}

	url = fmt.Sprintf("%s/datasets/%s/items?token=%s", a.baseURL, run.Data.DefaultDatasetID, a.token)
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.NewTransport("fetch dataset items", err)
	}

	var items []map[string]interface{}
	if err := a.do(req, &items); err != nil {
		return nil, err
	}

	prospects := make([]models.Prospect, 0, len(items))
	for _, item := range items {
		p := NormalizeRecord(item, "apify")
		if p.Email == "" {
			continue
		}
		prospects = append(prospects, p)
	}
	return prospects, nil
}

func (a *ApifyProvider) do(req *http.Request, out interface{}) error {
	resp, err := a.client.Do(req)
	if err != nil {
		return apperrors.NewTransport("provider request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.NewTransport("provider request",
			fmt.Errorf("%s returned %d", req.URL.Path, resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewTransport("decode provider response", err)
	}
	return nil
}

// NormalizeRecord maps a raw provider record onto the canonical prospect
// shape. Providers disagree on field names, so each canonical field tries a
// list of aliases in order. The record never crosses this boundary raw.
func NormalizeRecord(raw map[string]interface{}, source string) models.Prospect {
	return models.Prospect{
		Email:         strings.ToLower(pickString(raw, "email", "emailAddress", "email_address")),
		Name:          pickString(raw, "fullName", "full_name", "name", "contactName"),
		Title:         pickString(raw, "title", "jobTitle", "job_title", "position"),
		Company:       pickString(raw, "companyName", "company_name", "company", "organization"),
		Phone:         pickString(raw, "phone", "phoneNumber", "phone_number"),
		Website:       pickString(raw, "website", "websiteUrl", "website_url", "domain"),
		LinkedInURL:   pickString(raw, "linkedinUrl", "linkedin_url", "linkedin"),
		Location:      pickString(raw, "location", "city", "address"),
		Industry:      pickString(raw, "industry", "category"),
		CompanySize:   pickString(raw, "companySize", "company_size"),
		EmployeeCount: pickInt(raw, "employeeCount", "employee_count", "employees"),
		Source:        source,
	}
}

func pickString(raw map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := raw[key]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func pickInt(raw map[string]interface{}, keys ...string) int {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		case string:
			if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
				return i
			}
		}
	}
	return 0
}
