package controllers

import (
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"leadpilot/models"
	"leadpilot/utils"
)

// TrackingController handles the public callback endpoints that recipients'
// mail clients hit. These endpoints never leak whether a token exists: the
// pixel always serves the image and the redirect always redirects.
type TrackingController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewTrackingController(db *gorm.DB, logger *log.Logger) *TrackingController {
	return &TrackingController{
		DB:     db,
		Logger: logger,
	}
}

// TrackOpen serves the 1x1 pixel and records the open.
func (tc *TrackingController) TrackOpen(c *fiber.Ctx) error {
	token := c.Params("token")
	now := time.Now()

	var record models.TrackingRecord
	if err := tc.DB.Where("token = ?", token).First(&record).Error; err == nil {
		// First open captures the client fingerprint; later opens only bump
		// the counter. The conditional update keeps concurrent opens safe.
		userAgent := c.Get("User-Agent")
		tc.DB.Model(&models.TrackingRecord{}).
			Where("id = ? AND first_opened_at IS NULL", record.ID).
			Updates(map[string]interface{}{
				"first_opened_at": now,
				"user_agent":      userAgent,
				"ip_address":      c.IP(),
				"device_type":     utils.ClassifyDevice(userAgent),
			})
		tc.DB.Model(&models.TrackingRecord{}).
			Where("id = ?", record.ID).
			Updates(map[string]interface{}{
				"last_open_at": now,
				"open_count":   gorm.Expr("open_count + ?", 1),
			})
		tc.DB.Model(&models.Prospect{}).
			Where("id = ?", record.ProspectID).
			Update("email_opened", true)
	} else if err != gorm.ErrRecordNotFound {
		tc.Logger.Printf("Failed to look up tracking token: %v", err)
	}

	c.Set("Content-Type", "image/gif")
	c.Set("Cache-Control", "no-store, no-cache, must-revalidate")
	return c.Status(fiber.StatusOK).Send(utils.TransparentGIF)
}

// TrackClick records the click and redirects to the destination.
func (tc *TrackingController) TrackClick(c *fiber.Ctx) error {
	token := c.Params("token")
	target := c.Query("url")
	now := time.Now()

	if target == "" || (!strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://")) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid destination URL", nil)
	}

	var record models.TrackingRecord
	if err := tc.DB.Where("token = ?", token).First(&record).Error; err == nil {
		tc.DB.Model(&models.TrackingRecord{}).
			Where("id = ? AND first_clicked_at IS NULL", record.ID).
			Update("first_clicked_at", now)
		tc.DB.Model(&models.TrackingRecord{}).
			Where("id = ?", record.ID).
			Updates(map[string]interface{}{
				"last_click_at": now,
				"click_count":   gorm.Expr("click_count + ?", 1),
			})
		tc.DB.Create(&models.ClickEvent{
			TrackingID: record.ID,
			URL:        target,
			ClickedAt:  now,
		})
		tc.DB.Model(&models.Prospect{}).
			Where("id = ?", record.ProspectID).
			Update("email_clicked", true)
	} else if err != gorm.ErrRecordNotFound {
		tc.Logger.Printf("Failed to look up tracking token: %v", err)
	}

	// The recipient reaches their destination whether or not we know the token
	return c.Redirect(target, fiber.StatusFound)
}

// Unsubscribe opts the prospect out and confirms with a plain HTML page.
// Unsubscribed is terminal: the prospect is never enrolled or emailed again.
func (tc *TrackingController) Unsubscribe(c *fiber.Ctx) error {
	token := c.Params("token")
	now := time.Now()

	var record models.TrackingRecord
	if err := tc.DB.Where("token = ?", token).First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return tc.unsubscribePage(c, "This unsubscribe link is no longer valid.")
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to process unsubscribe", err)
	}

	tc.DB.Model(&models.TrackingRecord{}).
		Where("id = ? AND unsubscribed_at IS NULL", record.ID).
		Update("unsubscribed_at", now)

	var prospect models.Prospect
	if err := tc.DB.First(&prospect, record.ProspectID).Error; err == nil {
		if prospect.SequenceID != nil {
			tc.DB.Model(&models.Sequence{}).
				Where("id = ? AND prospects_count > 0", *prospect.SequenceID).
				Update("prospects_count", gorm.Expr("prospects_count - ?", 1))
		}
		tc.DB.Model(&prospect).Updates(map[string]interface{}{
			"email_unsubscribed":    true,
			"email_sequence_status": models.StatusUnsubscribed,
			"sequence_id":           nil,
			"sequence_step":         "",
		})
	}

	return tc.unsubscribePage(c, "You have been unsubscribed and will not receive further emails.")
}

func (tc *TrackingController) unsubscribePage(c *fiber.Ctx, message string) error {
	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.SendString(`<!DOCTYPE html><html><head><title>Unsubscribed</title></head>` +
		`<body style="font-family:Arial,Helvetica,sans-serif;text-align:center;margin-top:80px">` +
		`<h2>` + message + `</h2></body></html>`)
}

// HandleEvent ingests reply and bounce notifications from the mailbox
// webhook. Replies attach to the most recent send that has none yet.
func (tc *TrackingController) HandleEvent(c *fiber.Ctx) error {
	var input struct {
		Type      string `json:"type" validate:"required"`
		Email     string `json:"email" validate:"required,email"`
		Sentiment string `json:"sentiment"`
		Reason    string `json:"reason"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var prospect models.Prospect
	if err := tc.DB.Where("email = ?", strings.ToLower(input.Email)).First(&prospect).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Prospect not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch prospect", err)
	}

	now := time.Now()
	switch input.Type {
	case "reply":
		sentiment := input.Sentiment
		if sentiment == "" {
			sentiment = "neutral"
		}
		tc.DB.Model(&models.TrackingRecord{}).
			Where("id = (SELECT id FROM tracking_records WHERE prospect_id = ? AND replied_at IS NULL AND deleted_at IS NULL ORDER BY sent_at DESC LIMIT 1)", prospect.ID).
			Updates(map[string]interface{}{"replied_at": now, "sentiment": sentiment})
		updates := map[string]interface{}{
			"email_replied":         true,
			"replied_at":            now,
			"email_sequence_status": models.StatusReplied,
		}
		// Positive only ever moves unset -> set; a later neutral reply must
		// not clear it
		if sentiment == "positive" {
			updates["email_positive"] = true
		}
		tc.DB.Model(&prospect).Updates(updates)

	case "bounce":
		tc.DB.Model(&models.TrackingRecord{}).
			Where("id = (SELECT id FROM tracking_records WHERE prospect_id = ? AND bounced_at IS NULL AND deleted_at IS NULL ORDER BY sent_at DESC LIMIT 1)", prospect.ID).
			Updates(map[string]interface{}{"bounced_at": now, "bounce_reason": input.Reason})
		tc.DB.Model(&prospect).Updates(map[string]interface{}{
			"email_bounced":         true,
			"email_verified":        false,
			"email_sequence_status": models.StatusRemoved,
		})

	default:
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown event type: "+input.Type, nil)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Event recorded"}))
}
