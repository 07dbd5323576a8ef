package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRecordFieldAliases(t *testing.T) {
	raw := map[string]interface{}{
		"full_name":     "Jane Doe",
		"email":         "Jane.Doe@Acme.com",
		"companyName":   "Acme Manufacturing",
		"jobTitle":      "Owner",
		"phone_number":  "+1 555 0100",
		"websiteUrl":    "https://acme.example",
		"linkedin_url":  "https://linkedin.com/in/janedoe",
		"city":          "Chicago",
		"industry":      "Manufacturing",
		"employeeCount": float64(120),
	}

	p := NormalizeRecord(raw, "apify")

	assert.Equal(t, "jane.doe@acme.com", p.Email)
	assert.Equal(t, "Jane Doe", p.Name)
	assert.Equal(t, "Acme Manufacturing", p.Company)
	assert.Equal(t, "Owner", p.Title)
	assert.Equal(t, "+1 555 0100", p.Phone)
	assert.Equal(t, "https://acme.example", p.Website)
	assert.Equal(t, "https://linkedin.com/in/janedoe", p.LinkedInURL)
	assert.Equal(t, "Chicago", p.Location)
	assert.Equal(t, "Manufacturing", p.Industry)
	assert.Equal(t, 120, p.EmployeeCount)
	assert.Equal(t, "apify", p.Source)
}

func TestNormalizeRecordAliasPrecedence(t *testing.T) {
	raw := map[string]interface{}{
		"fullName": "Jane Doe",
		"name":     "J. Doe",
		"email":    "jane@acme.com",
	}
	p := NormalizeRecord(raw, "apify")
	assert.Equal(t, "Jane Doe", p.Name)
}

func TestNormalizeRecordEmployeeCountAsString(t *testing.T) {
	raw := map[string]interface{}{
		"email":     "jane@acme.com",
		"employees": "45",
	}
	assert.Equal(t, 45, NormalizeRecord(raw, "apify").EmployeeCount)
}

func newApifyStub(t *testing.T, runStatus string, items []map[string]interface{}) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /acts/test-actor/runs", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "tok", r.URL.Query().Get("token"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"id": "run-1", "status": "RUNNING", "defaultDatasetId": "ds-1"},
		})
	})
	mux.HandleFunc("GET /actor-runs/run-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"id": "run-1", "status": runStatus, "defaultDatasetId": "ds-1"},
		})
	})
	mux.HandleFunc("GET /datasets/ds-1/items", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(items)
	})
	return httptest.NewServer(mux)
}

func TestApifyProviderLifecycle(t *testing.T) {
	items := []map[string]interface{}{
		{"email": "jane@acme.com", "fullName": "Jane Doe"},
		{"fullName": "No Email"}, // dropped: no address
		{"email": "bob@firm.io", "name": "Bob Smith"},
	}
	srv := newApifyStub(t, "SUCCEEDED", items)
	defer srv.Close()

	provider := NewApifyProvider(srv.URL, "tok")
	ctx := context.Background()

	ref, err := provider.StartJob(ctx, map[string]string{"actor": "test-actor", "query": "plumbers chicago"})
	require.NoError(t, err)
	assert.Equal(t, "run-1", ref)

	status, err := provider.PollStatus(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, JobSucceeded, status)

	prospects, err := provider.FetchResults(ctx, ref)
	require.NoError(t, err)
	require.Len(t, prospects, 2)
	assert.Equal(t, "jane@acme.com", prospects[0].Email)
	assert.Equal(t, "bob@firm.io", prospects[1].Email)
}

func TestApifyProviderStartJobRequiresActor(t *testing.T) {
	provider := NewApifyProvider("http://unused", "tok")
	_, err := provider.StartJob(context.Background(), map[string]string{"query": "x"})
	require.Error(t, err)
}

func TestApifyProviderMapsTerminalStatuses(t *testing.T) {
	for _, status := range []string{"FAILED", "ABORTED", "TIMED-OUT"} {
		srv := newApifyStub(t, status, nil)
		provider := NewApifyProvider(srv.URL, "tok")
		got, err := provider.PollStatus(context.Background(), "run-1")
		srv.Close()
		require.NoError(t, err)
		assert.Equal(t, JobFailed, got, "status=%s", status)
	}
}

func TestApifyProviderNonOKResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	provider := NewApifyProvider(srv.URL, "tok")
	_, err := provider.PollStatus(context.Background(), "run-1")
	require.Error(t, err)
}
