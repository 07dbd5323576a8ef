package controllers

import (
	"encoding/csv"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"leadpilot/models"
	"leadpilot/utils"
)

type ProspectController struct {
	DB      *gorm.DB
	Logger  *log.Logger
	Scoring utils.ScoringConfig
}

func NewProspectController(db *gorm.DB, logger *log.Logger) *ProspectController {
	return &ProspectController{
		DB:      db,
		Logger:  logger,
		Scoring: utils.DefaultScoringConfig(),
	}
}

// CreateProspect adds a single prospect and scores it immediately.
func (pc *ProspectController) CreateProspect(c *fiber.Ctx) error {
	var input struct {
		Email         string `json:"email" validate:"required,email"`
		Name          string `json:"name" validate:"omitempty,max=200"`
		Title         string `json:"title" validate:"omitempty,max=200"`
		Company       string `json:"company" validate:"omitempty,max=200"`
		Phone         string `json:"phone"`
		Website       string `json:"website"`
		LinkedInURL   string `json:"linkedin_url"`
		Location      string `json:"location"`
		Industry      string `json:"industry"`
		CompanySize   string `json:"company_size"`
		EmployeeCount int    `json:"employee_count"`
		Source        string `json:"source"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))

	// Check if prospect already exists
	var existing models.Prospect
	if err := pc.DB.Where("email = ?", email).First(&existing).Error; err == nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Prospect with this email already exists", nil)
	}

	source := input.Source
	if source == "" {
		source = "manual"
	}

	prospect := models.Prospect{
		Email:         email,
		Name:          input.Name,
		Title:         input.Title,
		Company:       input.Company,
		Phone:         input.Phone,
		Website:       input.Website,
		LinkedInURL:   input.LinkedInURL,
		Location:      input.Location,
		Industry:      input.Industry,
		CompanySize:   input.CompanySize,
		EmployeeCount: input.EmployeeCount,
		Source:        source,
	}
	utils.ApplyScore(&prospect, pc.Scoring)

	if err := pc.DB.Create(&prospect).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create prospect", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(prospect))
}

// GetProspects returns paginated prospects with filters
func (pc *ProspectController) GetProspects(c *fiber.Ctx) error {
	// Pagination
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit

	query := pc.DB.Model(&models.Prospect{})

	if search := c.Query("search"); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(email) LIKE ? OR LOWER(name) LIKE ? OR LOWER(company) LIKE ?",
			like, like, like)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("email_sequence_status = ?", status)
	}
	if qualified := c.Query("qualified"); qualified != "" {
		query = query.Where("qualified = ?", qualified == "true")
	}
	if seqID := c.Query("sequence_id"); seqID != "" {
		query = query.Where("sequence_id = ?", utils.ParseUint(seqID))
	}
	if minScore := c.Query("min_score"); minScore != "" {
		score, err := strconv.Atoi(minScore)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid min_score", err)
		}
		query = query.Where("score >= ?", score)
	}
	if industry := c.Query("industry"); industry != "" {
		query = query.Where("LOWER(industry) = ?", strings.ToLower(industry))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count prospects", err)
	}

	var prospects []models.Prospect
	if err := query.Order("score DESC, created_at DESC").
		Offset(offset).Limit(limit).Find(&prospects).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch prospects", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  prospects,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetProspect returns a single prospect by ID
func (pc *ProspectController) GetProspect(c *fiber.Ctx) error {
	var prospect models.Prospect
	if err := pc.DB.First(&prospect, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Prospect not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch prospect", err)
	}

	return c.JSON(utils.SuccessResponse(prospect))
}

// UpdateProspect updates profile fields and rescores the prospect.
func (pc *ProspectController) UpdateProspect(c *fiber.Ctx) error {
	var input struct {
		Email         string  `json:"email" validate:"omitempty,email"`
		Name          *string `json:"name"`
		Title         *string `json:"title"`
		Company       *string `json:"company"`
		Phone         *string `json:"phone"`
		Website       *string `json:"website"`
		LinkedInURL   *string `json:"linkedin_url"`
		Location      *string `json:"location"`
		Industry      *string `json:"industry"`
		CompanySize   *string `json:"company_size"`
		EmployeeCount *int    `json:"employee_count"`
		EmailVerified *bool   `json:"email_verified"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var prospect models.Prospect
	if err := pc.DB.First(&prospect, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Prospect not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch prospect", err)
	}

	// Changing the address must not collide with another prospect
	if input.Email != "" {
		email := strings.ToLower(strings.TrimSpace(input.Email))
		if email != prospect.Email {
			var existing models.Prospect
			if err := pc.DB.Where("email = ?", email).First(&existing).Error; err == nil {
				return utils.ErrorResponse(c, fiber.StatusConflict, "Prospect with this email already exists", nil)
			}
			prospect.Email = email
		}
	}
	if input.Name != nil {
		prospect.Name = *input.Name
	}
	if input.Title != nil {
		prospect.Title = *input.Title
	}
	if input.Company != nil {
		prospect.Company = *input.Company
	}
	if input.Phone != nil {
		prospect.Phone = *input.Phone
	}
	if input.Website != nil {
		prospect.Website = *input.Website
	}
	if input.LinkedInURL != nil {
		prospect.LinkedInURL = *input.LinkedInURL
	}
	if input.Location != nil {
		prospect.Location = *input.Location
	}
	if input.Industry != nil {
		prospect.Industry = *input.Industry
	}
	if input.CompanySize != nil {
		prospect.CompanySize = *input.CompanySize
	}
	if input.EmployeeCount != nil {
		prospect.EmployeeCount = *input.EmployeeCount
	}
	if input.EmailVerified != nil {
		prospect.EmailVerified = *input.EmailVerified
	}

	utils.ApplyScore(&prospect, pc.Scoring)

	if err := pc.DB.Save(&prospect).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update prospect", err)
	}

	return c.JSON(utils.SuccessResponse(prospect))
}

// DeleteProspect removes a prospect; membership bookkeeping on its sequence
// is adjusted first.
func (pc *ProspectController) DeleteProspect(c *fiber.Ctx) error {
	var prospect models.Prospect
	if err := pc.DB.First(&prospect, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Prospect not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch prospect", err)
	}

	if prospect.SequenceID != nil {
		pc.DB.Model(&models.Sequence{}).Where("id = ? AND prospects_count > 0", *prospect.SequenceID).
			Update("prospects_count", gorm.Expr("prospects_count - ?", 1))
	}

	if err := pc.DB.Delete(&prospect).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete prospect", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Prospect deleted"}))
}

// MarkReplied records a manual reply observation for a prospect. Replied is
// terminal: the prospect receives no further sequence emails.
func (pc *ProspectController) MarkReplied(c *fiber.Ctx) error {
	var input struct {
		Positive  bool   `json:"positive"`
		Sentiment string `json:"sentiment"`
	}
	if err := c.BodyParser(&input); err != nil && len(c.Body()) > 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	var prospect models.Prospect
	if err := pc.DB.First(&prospect, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Prospect not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch prospect", err)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"email_replied":         true,
		"email_positive":        input.Positive,
		"replied_at":            now,
		"email_sequence_status": models.StatusReplied,
	}
	if err := pc.DB.Model(&prospect).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to mark prospect replied", err)
	}

	// Stamp the most recent unreplied send, if any
	sentiment := input.Sentiment
	if sentiment == "" && input.Positive {
		sentiment = "positive"
	}
	pc.DB.Model(&models.TrackingRecord{}).
		Where("id = (SELECT id FROM tracking_records WHERE prospect_id = ? AND replied_at IS NULL AND deleted_at IS NULL ORDER BY sent_at DESC LIMIT 1)", prospect.ID).
		Updates(map[string]interface{}{"replied_at": now, "sentiment": sentiment})

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Prospect marked as replied"}))
}

// PauseProspect suspends sending to an in-sequence prospect.
func (pc *ProspectController) PauseProspect(c *fiber.Ctx) error {
	return pc.transitionStatus(c, models.StatusInSequence, models.StatusPaused, "Prospect paused")
}

// ResumeProspect puts a paused prospect back in rotation at its current step.
func (pc *ProspectController) ResumeProspect(c *fiber.Ctx) error {
	return pc.transitionStatus(c, models.StatusPaused, models.StatusInSequence, "Prospect resumed")
}

func (pc *ProspectController) transitionStatus(c *fiber.Ctx, from, to, message string) error {
	var prospect models.Prospect
	if err := pc.DB.First(&prospect, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Prospect not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch prospect", err)
	}

	if prospect.EmailSequenceStatus != from {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Prospect is "+prospect.EmailSequenceStatus+", expected "+from, nil)
	}

	if err := pc.DB.Model(&prospect).Update("email_sequence_status", to).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update prospect", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": message}))
}

// ImportProspects ingests a CSV upload. Rows are matched to columns by the
// header line; rows without an email or with a known email are skipped.
func (pc *ProspectController) ImportProspects(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File upload error", err)
	}

	// Check file size (max 5MB)
	if file.Size > 5<<20 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File too large (max 5MB)", nil)
	}

	src, err := file.Open()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to open file", err)
	}
	defer src.Close()

	reader := csv.NewReader(src)
	records, err := reader.ReadAll()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Failed to parse CSV file", err)
	}

	if len(records) < 2 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "CSV file must have at least a header and one row", nil)
	}

	header := records[0]
	rows := records[1:]

	batchSize := 100
	var batch []models.Prospect
	imported, duplicates, skipped := 0, 0, 0

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := pc.DB.Create(&batch).Error; err != nil {
			pc.Logger.Printf("Failed to import batch of prospects: %v", err)
		} else {
			imported += len(batch)
		}
		batch = nil
	}

	for _, row := range rows {
		if len(row) != len(header) {
			skipped++
			continue
		}

		data := make(map[string]string)
		for i, col := range header {
			data[strings.ToLower(strings.TrimSpace(col))] = strings.TrimSpace(row[i])
		}

		email := strings.ToLower(data["email"])
		if email == "" {
			skipped++
			continue
		}

		var count int64
		pc.DB.Model(&models.Prospect{}).Where("email = ?", email).Count(&count)
		if count > 0 {
			duplicates++
			continue
		}

		prospect := models.Prospect{
			Email:         email,
			Name:          data["name"],
			Title:         data["title"],
			Company:       data["company"],
			Phone:         data["phone"],
			Website:       data["website"],
			LinkedInURL:   data["linkedin_url"],
			Location:      data["location"],
			Industry:      data["industry"],
			CompanySize:   data["company_size"],
			EmployeeCount: atoiOrZero(data["employee_count"]),
			Source:        "csv",
		}
		utils.ApplyScore(&prospect, pc.Scoring)
		batch = append(batch, prospect)

		if len(batch) >= batchSize {
			flush()
		}
	}
	flush()

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message":    "Prospects imported successfully",
		"total_rows": len(rows),
		"imported":   imported,
		"duplicates": duplicates,
		"skipped":    skipped,
	}))
}

// ExportProspects exports prospects to CSV
func (pc *ProspectController) ExportProspects(c *fiber.Ctx) error {
	query := pc.DB.Model(&models.Prospect{})
	if qualified := c.Query("qualified"); qualified != "" {
		query = query.Where("qualified = ?", qualified == "true")
	}

	var prospects []models.Prospect
	if err := query.Order("score DESC").Find(&prospects).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch prospects", err)
	}

	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", "attachment; filename=prospects_export_"+time.Now().Format("20060102")+".csv")

	writer := csv.NewWriter(c)
	defer writer.Flush()

	header := []string{"email", "name", "title", "company", "phone", "industry", "employee_count", "score", "qualified", "status"}
	if err := writer.Write(header); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate CSV", err)
	}

	for _, p := range prospects {
		record := []string{
			p.Email,
			p.Name,
			p.Title,
			p.Company,
			p.Phone,
			p.Industry,
			strconv.Itoa(p.EmployeeCount),
			strconv.Itoa(p.Score),
			strconv.FormatBool(p.Qualified),
			p.EmailSequenceStatus,
		}
		if err := writer.Write(record); err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate CSV", err)
		}
	}

	return nil
}

func atoiOrZero(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
