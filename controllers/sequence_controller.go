package controllers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"leadpilot/config"
	"leadpilot/models"
	"leadpilot/utils"
)

type SequenceController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewSequenceController(db *gorm.DB, logger *log.Logger) *SequenceController {
	return &SequenceController{
		DB:     db,
		Logger: logger,
	}
}

type sequenceInput struct {
	Name               string                    `json:"name" validate:"required,min=1,max=200"`
	Description        string                    `json:"description"`
	Templates          []models.SequenceTemplate `json:"templates"`
	Senders            []models.SenderConfig     `json:"senders"`
	DistributionPolicy string                    `json:"distribution_policy" validate:"policy"`
	DailyCapPerAccount int                       `json:"daily_cap_per_account" validate:"omitempty,min=1"`
	TrackOpens         *bool                     `json:"track_opens"`
	TrackClicks        *bool                     `json:"track_clicks"`
}

// CreateSequence creates a new outreach sequence in draft status.
func (sc *SequenceController) CreateSequence(c *fiber.Ctx) error {
	var input sequenceInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	// Template keys must be unique within the sequence
	seen := make(map[string]bool)
	for _, t := range input.Templates {
		if t.Key == "" {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Template key is required", nil)
		}
		if seen[t.Key] {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Duplicate template key: "+t.Key, nil)
		}
		seen[t.Key] = true
	}

	sequence := models.Sequence{
		Name:               input.Name,
		Description:        input.Description,
		Status:             "draft",
		Templates:          input.Templates,
		Senders:            input.Senders,
		DistributionPolicy: input.DistributionPolicy,
		DailyCapPerAccount: input.DailyCapPerAccount,
		TrackOpens:         true,
		TrackClicks:        true,
	}
	if sequence.DistributionPolicy == "" {
		sequence.DistributionPolicy = models.PolicyRoundRobin
	}
	if sequence.DailyCapPerAccount == 0 {
		sequence.DailyCapPerAccount = config.AppConfig.DefaultDailyCap
	}
	if input.TrackOpens != nil {
		sequence.TrackOpens = *input.TrackOpens
	}
	if input.TrackClicks != nil {
		sequence.TrackClicks = *input.TrackClicks
	}

	if err := sc.DB.Create(&sequence).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create sequence", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(sequence))
}

// GetSequences lists all sequences.
func (sc *SequenceController) GetSequences(c *fiber.Ctx) error {
	var sequences []models.Sequence
	if err := sc.DB.Order("created_at DESC").Find(&sequences).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequences", err)
	}

	return c.JSON(utils.SuccessResponse(sequences))
}

// GetSequence returns a single sequence by ID
func (sc *SequenceController) GetSequence(c *fiber.Ctx) error {
	var sequence models.Sequence
	if err := sc.DB.First(&sequence, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequence", err)
	}

	return c.JSON(utils.SuccessResponse(sequence))
}

// UpdateSequence updates sequence configuration. Template edits apply to
// future sends only; in-flight prospects keep their step keys.
func (sc *SequenceController) UpdateSequence(c *fiber.Ctx) error {
	var input struct {
		Name               *string                   `json:"name"`
		Description        *string                   `json:"description"`
		Status             *string                   `json:"status"`
		Templates          []models.SequenceTemplate `json:"templates"`
		Senders            []models.SenderConfig     `json:"senders"`
		DistributionPolicy string                    `json:"distribution_policy" validate:"policy"`
		DailyCapPerAccount *int                      `json:"daily_cap_per_account"`
		TrackOpens         *bool                     `json:"track_opens"`
		TrackClicks        *bool                     `json:"track_clicks"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var sequence models.Sequence
	if err := sc.DB.First(&sequence, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequence", err)
	}

	if input.Name != nil {
		sequence.Name = *input.Name
	}
	if input.Description != nil {
		sequence.Description = *input.Description
	}
	if input.Status != nil {
		if *input.Status != "draft" && *input.Status != "active" {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Status must be draft or active", nil)
		}
		sequence.Status = *input.Status
	}
	if input.Templates != nil {
		sequence.Templates = input.Templates
	}
	if input.Senders != nil {
		sequence.Senders = input.Senders
	}
	if input.DistributionPolicy != "" {
		sequence.DistributionPolicy = input.DistributionPolicy
	}
	if input.DailyCapPerAccount != nil {
		sequence.DailyCapPerAccount = *input.DailyCapPerAccount
	}
	if input.TrackOpens != nil {
		sequence.TrackOpens = *input.TrackOpens
	}
	if input.TrackClicks != nil {
		sequence.TrackClicks = *input.TrackClicks
	}

	if err := sc.DB.Save(&sequence).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update sequence", err)
	}

	return c.JSON(utils.SuccessResponse(sequence))
}

// DeleteSequence removes a sequence and detaches its enrolled prospects.
func (sc *SequenceController) DeleteSequence(c *fiber.Ctx) error {
	var sequence models.Sequence
	if err := sc.DB.First(&sequence, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequence", err)
	}

	if err := sc.DB.Model(&models.Prospect{}).
		Where("sequence_id = ?", sequence.ID).
		Updates(map[string]interface{}{
			"sequence_id":           nil,
			"sequence_step":         "",
			"email_sequence_status": models.StatusRemoved,
		}).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to detach prospects", err)
	}

	if err := sc.DB.Delete(&sequence).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete sequence", err)
	}

	utils.Rotation.Drop(sequence.ID)

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Sequence deleted"}))
}

// EnrollProspects adds prospects to a sequence at its first step. Prospects
// already in the sequence are reset to the first step without affecting the
// membership count; unsubscribed prospects are never enrolled.
func (sc *SequenceController) EnrollProspects(c *fiber.Ctx) error {
	var input struct {
		ProspectIDs []uint `json:"prospect_ids" validate:"required,min=1"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var sequence models.Sequence
	if err := sc.DB.First(&sequence, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequence", err)
	}

	firstStep := sequence.FirstStep()
	if firstStep == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Sequence has no templates", nil)
	}

	var prospects []models.Prospect
	if err := sc.DB.Where("id IN ?", input.ProspectIDs).Find(&prospects).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch prospects", err)
	}

	now := time.Now()
	added, reenrolled, skipped := 0, 0, 0

	for i := range prospects {
		p := &prospects[i]

		if p.EmailSequenceStatus == models.StatusUnsubscribed {
			skipped++
			continue
		}

		alreadyHere := p.SequenceID != nil && *p.SequenceID == sequence.ID
		// Updates writes the new sequence_id back onto p, so remember where
		// the prospect came from before it runs
		movedFrom := uint(0)
		if p.SequenceID != nil && !alreadyHere {
			movedFrom = *p.SequenceID
		}

		updates := map[string]interface{}{
			"sequence_id":           sequence.ID,
			"sequence_step":         firstStep,
			"email_sequence_status": models.StatusInSequence,
			"sequence_added_at":     now,
		}
		if err := sc.DB.Model(p).Updates(updates).Error; err != nil {
			sc.Logger.Printf("Failed to enroll prospect %d: %v", p.ID, err)
			skipped++
			continue
		}

		if alreadyHere {
			reenrolled++
		} else {
			added++
			// Moving between sequences keeps the counts of both correct
			if movedFrom != 0 {
				sc.DB.Model(&models.Sequence{}).
					Where("id = ? AND prospects_count > 0", movedFrom).
					Update("prospects_count", gorm.Expr("prospects_count - ?", 1))
			}
		}
	}

	skipped += len(input.ProspectIDs) - len(prospects)

	if added > 0 {
		if err := sc.DB.Model(&sequence).
			Update("prospects_count", gorm.Expr("prospects_count + ?", added)).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update sequence count", err)
		}
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"added":      added,
		"reenrolled": reenrolled,
		"skipped":    skipped,
	}))
}

// RemoveFromSequence takes prospects out of a sequence. The prospect rows
// survive with their history; only the sequence linkage is cleared.
func (sc *SequenceController) RemoveFromSequence(c *fiber.Ctx) error {
	var input struct {
		ProspectIDs []uint `json:"prospect_ids" validate:"required,min=1"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var sequence models.Sequence
	if err := sc.DB.First(&sequence, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequence", err)
	}

	result := sc.DB.Model(&models.Prospect{}).
		Where("id IN ? AND sequence_id = ?", input.ProspectIDs, sequence.ID).
		Updates(map[string]interface{}{
			"sequence_id":           nil,
			"sequence_step":         "",
			"email_sequence_status": models.StatusRemoved,
		})
	if result.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to remove prospects", result.Error)
	}

	removed := int(result.RowsAffected)
	if removed > 0 {
		newCount := sequence.ProspectsCount - removed
		if newCount < 0 {
			newCount = 0
		}
		if err := sc.DB.Model(&sequence).Update("prospects_count", newCount).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update sequence count", err)
		}
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"removed": removed}))
}
