package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"leadpilot/models"
	"leadpilot/utils"
)

type ScrapeController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewScrapeController(db *gorm.DB, logger *log.Logger) *ScrapeController {
	return &ScrapeController{
		DB:     db,
		Logger: logger,
	}
}

// CreateScrapeJob queues a lead-sourcing job for the worker. The response
// carries the job id so the caller can poll for the outcome.
func (scc *ScrapeController) CreateScrapeJob(c *fiber.Ctx) error {
	var input struct {
		Provider string            `json:"provider" validate:"required"`
		Config   map[string]string `json:"config" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	job := models.ScrapeJob{
		Provider: input.Provider,
		Config:   input.Config,
		Status:   models.ScrapeQueued,
	}
	if err := scc.DB.Create(&job).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create scrape job", err)
	}

	return c.Status(fiber.StatusAccepted).JSON(utils.SuccessResponse(job))
}

// GetScrapeJobs lists scrape jobs, newest first.
func (scc *ScrapeController) GetScrapeJobs(c *fiber.Ctx) error {
	query := scc.DB.Model(&models.ScrapeJob{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var jobs []models.ScrapeJob
	if err := query.Order("created_at DESC").Limit(100).Find(&jobs).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch scrape jobs", err)
	}

	return c.JSON(utils.SuccessResponse(jobs))
}

// GetScrapeJob returns one scrape job with its import counters.
func (scc *ScrapeController) GetScrapeJob(c *fiber.Ctx) error {
	var job models.ScrapeJob
	if err := scc.DB.First(&job, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Scrape job not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch scrape job", err)
	}

	return c.JSON(utils.SuccessResponse(job))
}
