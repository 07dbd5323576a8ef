package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"leadpilot/models"
	"leadpilot/utils"
)

// StatsController serves engagement analytics. Everything here is computed
// on read from prospects and tracking records; no counters are stored beyond
// sequence membership.
type StatsController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewStatsController(db *gorm.DB, logger *log.Logger) *StatsController {
	return &StatsController{
		DB:     db,
		Logger: logger,
	}
}

type sequenceStats struct {
	EmailsSent   int `json:"emails_sent"`
	Opened       int `json:"opened"`
	Clicked      int `json:"clicked"`
	Replied      int `json:"replied"`
	Bounced      int `json:"bounced"`
	Unsubscribed int `json:"unsubscribed"`

	OpenRate   float64 `json:"open_rate"`
	ClickRate  float64 `json:"click_rate"`
	ReplyRate  float64 `json:"reply_rate"`
	BounceRate float64 `json:"bounce_rate"`

	AvgHoursToOpen  *float64 `json:"avg_hours_to_open"`
	AvgHoursToClick *float64 `json:"avg_hours_to_click"`
	AvgHoursToReply *float64 `json:"avg_hours_to_reply"`
}

type stepStats struct {
	TemplateKey string  `json:"template_key"`
	EmailsSent  int     `json:"emails_sent"`
	Opened      int     `json:"opened"`
	Clicked     int     `json:"clicked"`
	Replied     int     `json:"replied"`
	OpenRate    float64 `json:"open_rate"`
	ReplyRate   float64 `json:"reply_rate"`
}

// GetSequenceStats returns engagement rates for one sequence.
func (st *StatsController) GetSequenceStats(c *fiber.Ctx) error {
	var sequence models.Sequence
	if err := st.DB.First(&sequence, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequence", err)
	}

	var stats sequenceStats
	if err := st.DB.Raw(`
        SELECT
            COUNT(*) AS emails_sent,
            SUM(CASE WHEN first_opened_at IS NOT NULL THEN 1 ELSE 0 END) AS opened,
            SUM(CASE WHEN first_clicked_at IS NOT NULL THEN 1 ELSE 0 END) AS clicked,
            SUM(CASE WHEN replied_at IS NOT NULL THEN 1 ELSE 0 END) AS replied,
            SUM(CASE WHEN bounced_at IS NOT NULL THEN 1 ELSE 0 END) AS bounced,
            SUM(CASE WHEN unsubscribed_at IS NOT NULL THEN 1 ELSE 0 END) AS unsubscribed,
            AVG(EXTRACT(EPOCH FROM (first_opened_at - sent_at)) / 3600.0) AS avg_hours_to_open,
            AVG(EXTRACT(EPOCH FROM (first_clicked_at - sent_at)) / 3600.0) AS avg_hours_to_click,
            AVG(EXTRACT(EPOCH FROM (replied_at - sent_at)) / 3600.0) AS avg_hours_to_reply
        FROM tracking_records
        WHERE sequence_id = ? AND deleted_at IS NULL
    `, sequence.ID).Scan(&stats).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to compute stats", err)
	}

	if stats.EmailsSent > 0 {
		total := float64(stats.EmailsSent)
		stats.OpenRate = pct(float64(stats.Opened), total)
		stats.ClickRate = pct(float64(stats.Clicked), total)
		stats.ReplyRate = pct(float64(stats.Replied), total)
		stats.BounceRate = pct(float64(stats.Bounced), total)
	}

	var steps []stepStats
	if err := st.DB.Raw(`
        SELECT
            template_key,
            COUNT(*) AS emails_sent,
            SUM(CASE WHEN first_opened_at IS NOT NULL THEN 1 ELSE 0 END) AS opened,
            SUM(CASE WHEN first_clicked_at IS NOT NULL THEN 1 ELSE 0 END) AS clicked,
            SUM(CASE WHEN replied_at IS NOT NULL THEN 1 ELSE 0 END) AS replied
        FROM tracking_records
        WHERE sequence_id = ? AND deleted_at IS NULL
        GROUP BY template_key
        ORDER BY template_key
    `, sequence.ID).Scan(&steps).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to compute step stats", err)
	}
	for i := range steps {
		if steps[i].EmailsSent > 0 {
			steps[i].OpenRate = pct(float64(steps[i].Opened), float64(steps[i].EmailsSent))
			steps[i].ReplyRate = pct(float64(steps[i].Replied), float64(steps[i].EmailsSent))
		}
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"sequence_id":     sequence.ID,
		"name":            sequence.Name,
		"prospects_count": sequence.ProspectsCount,
		"stats":           stats,
		"steps":           steps,
	}))
}

// GetOverview returns the cross-sequence dashboard numbers.
func (st *StatsController) GetOverview(c *fiber.Ctx) error {
	var prospectStats struct {
		Total       int `json:"total"`
		Qualified   int `json:"qualified"`
		TargetMatch int `json:"target_match"`
		InSequence  int `json:"in_sequence"`
		Contacted   int `json:"contacted"`
		Replied     int `json:"replied"`
	}
	if err := st.DB.Raw(`
        SELECT
            COUNT(*) AS total,
            SUM(CASE WHEN qualified THEN 1 ELSE 0 END) AS qualified,
            SUM(CASE WHEN target_match THEN 1 ELSE 0 END) AS target_match,
            SUM(CASE WHEN email_sequence_status = 'in_sequence' THEN 1 ELSE 0 END) AS in_sequence,
            SUM(CASE WHEN email_sequence_status = 'contacted' THEN 1 ELSE 0 END) AS contacted,
            SUM(CASE WHEN email_replied THEN 1 ELSE 0 END) AS replied
        FROM prospects
        WHERE deleted_at IS NULL
    `).Scan(&prospectStats).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to compute prospect stats", err)
	}

	var sendStats struct {
		EmailsSent int `json:"emails_sent"`
		Opened     int `json:"opened"`
		Clicked    int `json:"clicked"`
		Replied    int `json:"replied"`
		Bounced    int `json:"bounced"`
	}
	if err := st.DB.Raw(`
        SELECT
            COUNT(*) AS emails_sent,
            SUM(CASE WHEN first_opened_at IS NOT NULL THEN 1 ELSE 0 END) AS opened,
            SUM(CASE WHEN first_clicked_at IS NOT NULL THEN 1 ELSE 0 END) AS clicked,
            SUM(CASE WHEN replied_at IS NOT NULL THEN 1 ELSE 0 END) AS replied,
            SUM(CASE WHEN bounced_at IS NOT NULL THEN 1 ELSE 0 END) AS bounced
        FROM tracking_records
        WHERE deleted_at IS NULL
    `).Scan(&sendStats).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to compute send stats", err)
	}

	var failures int64
	st.DB.Model(&models.SendFailure{}).Count(&failures)

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"prospects":     prospectStats,
		"sends":         sendStats,
		"send_failures": failures,
	}))
}

func pct(part, total float64) float64 {
	return part / total * 100
}
