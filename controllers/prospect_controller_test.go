package controllers

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadpilot/models"
)

func setupProspectApp(t *testing.T) (*ProspectController, func(req *http.Request) *http.Response) {
	db := newTestDB(t)
	pc := NewProspectController(db, testLogger())

	app := newApp()
	app.Post("/api/v1/prospects", pc.CreateProspect)
	app.Get("/api/v1/prospects", pc.GetProspects)
	app.Get("/api/v1/prospects/:id", pc.GetProspect)
	app.Put("/api/v1/prospects/:id", pc.UpdateProspect)
	app.Delete("/api/v1/prospects/:id", pc.DeleteProspect)
	app.Post("/api/v1/prospects/:id/replied", pc.MarkReplied)
	app.Post("/api/v1/prospects/:id/pause", pc.PauseProspect)
	app.Post("/api/v1/prospects/:id/resume", pc.ResumeProspect)

	return pc, func(req *http.Request) *http.Response {
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp
	}
}

func TestCreateProspectScoresOnCreate(t *testing.T) {
	_, do := setupProspectApp(t)

	resp := do(jsonRequest("POST", "/api/v1/prospects", map[string]interface{}{
		"email":          "jane@acme.com",
		"name":           "Jane Doe",
		"title":          "Owner",
		"company":        "Acme Manufacturing",
		"phone":          "+1 555 0100",
		"industry":       "Manufacturing",
		"employee_count": 120,
	}))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	data := dataOf(t, resp)
	assert.Equal(t, "jane@acme.com", data["email"])
	assert.True(t, data["qualified"].(bool))
	assert.NotZero(t, data["score"])
	assert.Equal(t, models.StatusNotStarted, data["email_sequence_status"])
	assert.Equal(t, "manual", data["source"])
}

func TestCreateProspectDuplicateEmailConflicts(t *testing.T) {
	_, do := setupProspectApp(t)

	resp := do(jsonRequest("POST", "/api/v1/prospects", map[string]interface{}{"email": "jane@acme.com"}))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = do(jsonRequest("POST", "/api/v1/prospects", map[string]interface{}{"email": "Jane@Acme.com"}))
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestCreateProspectRequiresValidEmail(t *testing.T) {
	_, do := setupProspectApp(t)

	resp := do(jsonRequest("POST", "/api/v1/prospects", map[string]interface{}{"email": "not-an-email"}))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestGetProspectsFilters(t *testing.T) {
	pc, do := setupProspectApp(t)

	seed := []models.Prospect{
		{Email: "a@x.com", Name: "Alice", Company: "Acme", Score: 80, Qualified: true,
			EmailSequenceStatus: models.StatusInSequence},
		{Email: "b@y.com", Name: "Bob", Company: "Beta", Score: 30,
			EmailSequenceStatus: models.StatusNotStarted},
	}
	require.NoError(t, pc.DB.Create(&seed).Error)

	resp := do(jsonRequest("GET", "/api/v1/prospects?qualified=true", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.EqualValues(t, 1, body["total"])

	resp = do(jsonRequest("GET", "/api/v1/prospects?status=in_sequence", nil))
	body = decodeBody(t, resp)
	assert.EqualValues(t, 1, body["total"])

	resp = do(jsonRequest("GET", "/api/v1/prospects?search=acme", nil))
	body = decodeBody(t, resp)
	assert.EqualValues(t, 1, body["total"])

	resp = do(jsonRequest("GET", "/api/v1/prospects?min_score=50", nil))
	body = decodeBody(t, resp)
	assert.EqualValues(t, 1, body["total"])
}

func TestUpdateProspectRescores(t *testing.T) {
	pc, do := setupProspectApp(t)

	p := models.Prospect{Email: "jane@acme.com", Name: "Jane Doe", Title: "Intern"}
	require.NoError(t, pc.DB.Create(&p).Error)

	resp := do(jsonRequest("PUT", "/api/v1/prospects/1", map[string]interface{}{
		"title":          "CEO",
		"company":        "Acme Manufacturing",
		"industry":       "Manufacturing",
		"employee_count": 100,
		"phone":          "+1 555 0100",
	}))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	data := dataOf(t, resp)
	assert.True(t, data["qualified"].(bool))
	assert.Equal(t, models.SeniorityCLevel, data["seniority_level"])
}

func TestMarkRepliedIsTerminal(t *testing.T) {
	pc, do := setupProspectApp(t)

	seqID := uint(1)
	p := models.Prospect{Email: "jane@acme.com", SequenceID: &seqID,
		EmailSequenceStatus: models.StatusContacted}
	require.NoError(t, pc.DB.Create(&p).Error)

	resp := do(jsonRequest("POST", "/api/v1/prospects/1/replied", map[string]interface{}{"positive": true}))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var got models.Prospect
	require.NoError(t, pc.DB.First(&got, p.ID).Error)
	assert.Equal(t, models.StatusReplied, got.EmailSequenceStatus)
	assert.True(t, got.EmailReplied)
	assert.True(t, got.EmailPositive)
	assert.NotNil(t, got.RepliedAt)
}

func TestPauseAndResumeTransitions(t *testing.T) {
	pc, do := setupProspectApp(t)

	p := models.Prospect{Email: "jane@acme.com", EmailSequenceStatus: models.StatusInSequence}
	require.NoError(t, pc.DB.Create(&p).Error)

	resp := do(jsonRequest("POST", "/api/v1/prospects/1/pause", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var got models.Prospect
	require.NoError(t, pc.DB.First(&got, p.ID).Error)
	assert.Equal(t, models.StatusPaused, got.EmailSequenceStatus)

	// Pausing a paused prospect is rejected
	resp = do(jsonRequest("POST", "/api/v1/prospects/1/pause", nil))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = do(jsonRequest("POST", "/api/v1/prospects/1/resume", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	require.NoError(t, pc.DB.First(&got, p.ID).Error)
	assert.Equal(t, models.StatusInSequence, got.EmailSequenceStatus)
}

func TestDeleteProspectAdjustsSequenceCount(t *testing.T) {
	pc, do := setupProspectApp(t)

	seq := models.Sequence{Name: "Q3 Outreach", ProspectsCount: 1,
		Templates: []models.SequenceTemplate{{Key: "day_1", Subject: "s", Body: "b"}}}
	require.NoError(t, pc.DB.Create(&seq).Error)

	p := models.Prospect{Email: "jane@acme.com", SequenceID: &seq.ID,
		EmailSequenceStatus: models.StatusInSequence}
	require.NoError(t, pc.DB.Create(&p).Error)

	resp := do(jsonRequest("DELETE", "/api/v1/prospects/1", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var got models.Sequence
	require.NoError(t, pc.DB.First(&got, seq.ID).Error)
	assert.Equal(t, 0, got.ProspectsCount)

	var count int64
	pc.DB.Model(&models.Prospect{}).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestGetProspectNotFound(t *testing.T) {
	_, do := setupProspectApp(t)
	resp := do(jsonRequest("GET", "/api/v1/prospects/99", nil))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}
