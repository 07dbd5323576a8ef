package controllers

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"

	"leadpilot/apperrors"
	"leadpilot/config"
	"leadpilot/models"
	"leadpilot/utils"
)

// SendController drives the outreach engine: rendering, sender rotation,
// delivery and per-send tracking records. Sends only ever happen here, and
// only when an operator triggers them.
type SendController struct {
	DB       *gorm.DB
	Logger   *log.Logger
	Renderer *utils.Renderer

	// NewMailer builds the transport for one sender account. Swappable so
	// tests never open SMTP connections.
	NewMailer func(models.SenderConfig) utils.MailService

	// SendDelay is the pause between consecutive sends in a bulk run.
	SendDelay time.Duration

	progress *progressRegistry
}

func NewSendController(db *gorm.DB, logger *log.Logger) *SendController {
	return &SendController{
		DB:       db,
		Logger:   logger,
		Renderer: utils.NewRenderer(),
		NewMailer: func(sender models.SenderConfig) utils.MailService {
			return utils.NewSMTPMailer(sender, config.AppConfig.MailTimeout)
		},
		SendDelay: config.AppConfig.SendDelay,
		progress:  newProgressRegistry(),
	}
}

// SendOne sends the next sequence email to a single prospect. An explicit
// step key overrides the prospect's current step and becomes its new step.
func (sc *SendController) SendOne(c *fiber.Ctx) error {
	var sequence models.Sequence
	if err := sc.DB.First(&sequence, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequence", err)
	}

	var prospect models.Prospect
	if err := sc.DB.First(&prospect, c.Params("prospectID")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Prospect not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch prospect", err)
	}

	if prospect.SequenceID == nil || *prospect.SequenceID != sequence.ID {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Prospect is not enrolled in this sequence", nil)
	}
	switch prospect.EmailSequenceStatus {
	case models.StatusInSequence, models.StatusContacted:
	default:
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Prospect is "+prospect.EmailSequenceStatus+" and cannot be emailed", nil)
	}

	step := c.Query("step", prospect.SequenceStep)
	if step == "" {
		step = sequence.FirstStep()
	}

	record, err := sc.sendToProspect(c.Context(), &sequence, &prospect, step)
	if err != nil {
		return sc.sendErrorResponse(c, err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message":      "Email sent",
		"token":        record.Token,
		"message_id":   record.MessageID,
		"sender_email": record.SenderEmail,
		"step":         step,
	}))
}

// sendResult is the per-prospect outcome entry in a bulk-send report.
type sendResult struct {
	ProspectID  uint   `json:"prospect_id"`
	Email       string `json:"email"`
	Status      string `json:"status"` // sent, failed, skipped
	SenderEmail string `json:"sender_email,omitempty"`
	MessageID   string `json:"message_id,omitempty"`
	Error       string `json:"error,omitempty"`
}

// SendBulk sends one sequence email to every eligible prospect, pacing sends
// with the configured delay. A transport failure for one prospect does not
// stop the batch; exhausted sender quota does.
func (sc *SendController) SendBulk(c *fiber.Ctx) error {
	var input struct {
		ProspectIDs []uint `json:"prospect_ids"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&input); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
		}
	}

	var sequence models.Sequence
	if err := sc.DB.First(&sequence, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequence", err)
	}

	// Only in_sequence prospects are bulk candidates
	query := sc.DB.Where("sequence_id = ? AND email_sequence_status = ?",
		sequence.ID, models.StatusInSequence)
	if len(input.ProspectIDs) > 0 {
		query = query.Where("id IN ?", input.ProspectIDs)
	}

	var candidates []models.Prospect
	if err := query.Order("id asc").Find(&candidates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch prospects", err)
	}
	if len(candidates) == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "No eligible prospects to send to", nil)
	}

	sc.progress.start(sequence.ID, len(candidates))
	sent, failed, skipped := 0, 0, 0
	perSender := make(map[string]int)
	results := make([]sendResult, 0, len(candidates))

	ctx := context.Background()
	for i := range candidates {
		prospect := &candidates[i]
		step := prospect.SequenceStep
		if step == "" {
			step = sequence.FirstStep()
		}

		record, err := sc.sendToProspect(ctx, &sequence, prospect, step)
		if err != nil {
			var quotaErr *apperrors.QuotaExhaustedError
			if errors.As(err, &quotaErr) {
				// Nothing left to send with today; the rest wait for tomorrow
				skipped = len(candidates) - i
				for _, waiting := range candidates[i:] {
					results = append(results, sendResult{
						ProspectID: waiting.ID,
						Email:      waiting.Email,
						Status:     "skipped",
						Error:      err.Error(),
					})
				}
				break
			}
			failed++
			results = append(results, sendResult{
				ProspectID: prospect.ID,
				Email:      prospect.Email,
				Status:     "failed",
				Error:      err.Error(),
			})
			sc.progress.update(sequence.ID, sent, failed, prospect.Email)
			continue
		}

		sent++
		perSender[record.SenderEmail]++
		results = append(results, sendResult{
			ProspectID:  prospect.ID,
			Email:       prospect.Email,
			Status:      "sent",
			SenderEmail: record.SenderEmail,
			MessageID:   record.MessageID,
		})
		sc.progress.update(sequence.ID, sent, failed, prospect.Email)

		if i < len(candidates)-1 && sc.SendDelay > 0 {
			time.Sleep(sc.SendDelay)
		}
	}
	sc.progress.finish(sequence.ID)

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"total":      len(candidates),
		"sent":       sent,
		"failed":     failed,
		"skipped":    skipped,
		"per_sender": perSender,
		"results":    results,
	}))
}

// sendToProspect performs one complete send: pick a sender, render, deliver,
// and persist the outcome. On transport failure the prospect row is left
// untouched and a send failure row is written instead.
func (sc *SendController) sendToProspect(ctx context.Context, sequence *models.Sequence, prospect *models.Prospect, step string) (*models.TrackingRecord, error) {
	template, ok := sequence.Template(step)
	if !ok {
		return nil, apperrors.NewNotFound("template", step)
	}

	senders := sequence.Senders
	defaultCap := sequence.DailyCapPerAccount
	if len(senders) == 0 {
		fallback := config.AppConfig.Sender
		if fallback.SMTPHost == "" {
			return nil, apperrors.NewValidation("sequence has no senders and no default sender is configured")
		}
		senders = []models.SenderConfig{{
			FromEmail:    fallback.FromEmail,
			FromName:     fallback.FromName,
			SMTPHost:     fallback.SMTPHost,
			SMTPPort:     fallback.SMTPPort,
			SMTPUsername: fallback.SMTPUsername,
			SMTPPassword: fallback.SMTPPassword,
		}}
		defaultCap = 0 // the shared default account is uncapped
	}

	pool := utils.Rotation.PoolFor(sequence.ID, senders, sequence.DistributionPolicy, defaultCap)
	sender, err := pool.Next()
	if err != nil {
		return nil, err
	}

	token := utils.GenerateToken(prospect.Email)
	subject := sc.Renderer.Render(template.Subject, prospect)
	body := sc.Renderer.Render(template.Body, prospect)
	html := utils.BuildHTML(body, utils.HTMLOptions{
		BaseURL:     config.AppConfig.TrackingBaseURL,
		Token:       token,
		TrackOpens:  sequence.TrackOpens,
		TrackClicks: sequence.TrackClicks,
		SenderName:  sender.FromName,
	})

	mailer := sc.NewMailer(sender)
	messageID, err := mailer.Send(ctx, utils.Email{
		To:      prospect.Email,
		ToName:  prospect.Name,
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		failure := models.SendFailure{
			ProspectID:  prospect.ID,
			SequenceID:  sequence.ID,
			TemplateKey: step,
			SenderEmail: sender.FromEmail,
			Reason:      err.Error(),
		}
		if dbErr := sc.DB.Create(&failure).Error; dbErr != nil {
			sc.Logger.Printf("Failed to record send failure for prospect %d: %v", prospect.ID, dbErr)
		}
		return nil, err
	}

	now := time.Now()
	record := models.TrackingRecord{
		Token:       token,
		ProspectID:  prospect.ID,
		SequenceID:  sequence.ID,
		TemplateKey: step,
		Subject:     subject,
		SenderEmail: sender.FromEmail,
		MessageID:   messageID,
		SentAt:      now,
	}
	if err := sc.DB.Create(&record).Error; err != nil {
		return nil, err
	}

	if err := sc.DB.Model(prospect).Updates(map[string]interface{}{
		"email_sequence_status": models.StatusContacted,
		"sequence_step":         step,
		"last_email_sent":       now,
		"emails_sent":           gorm.Expr("emails_sent + ?", 1),
	}).Error; err != nil {
		return nil, err
	}

	return &record, nil
}

func (sc *SendController) sendErrorResponse(c *fiber.Ctx, err error) error {
	var (
		notFound  *apperrors.NotFoundError
		validate  *apperrors.ValidationError
		quota     *apperrors.QuotaExhaustedError
		transport *apperrors.TransportError
	)
	switch {
	case errors.As(err, &notFound):
		return utils.ErrorResponse(c, fiber.StatusNotFound, err.Error(), nil)
	case errors.As(err, &validate):
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	case errors.As(err, &quota):
		return utils.ErrorResponse(c, fiber.StatusTooManyRequests, err.Error(), nil)
	case errors.As(err, &transport):
		return utils.ErrorResponse(c, fiber.StatusBadGateway, "Email delivery failed", err)
	default:
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to send email", err)
	}
}

// BulkProgress is a live snapshot of one bulk run.
type BulkProgress struct {
	Total     int    `json:"total"`
	Sent      int    `json:"sent"`
	Failed    int    `json:"failed"`
	LastEmail string `json:"last_email"`
	Done      bool   `json:"done"`
}

type progressRegistry struct {
	mu   sync.RWMutex
	runs map[uint]*BulkProgress
}

func newProgressRegistry() *progressRegistry {
	return &progressRegistry{runs: make(map[uint]*BulkProgress)}
}

func (r *progressRegistry) start(sequenceID uint, total int) *BulkProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := &BulkProgress{Total: total}
	r.runs[sequenceID] = p
	return p
}

func (r *progressRegistry) update(sequenceID uint, sent, failed int, lastEmail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.runs[sequenceID]; ok {
		p.Sent = sent
		p.Failed = failed
		p.LastEmail = lastEmail
	}
}

func (r *progressRegistry) finish(sequenceID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.runs[sequenceID]; ok {
		p.Done = true
	}
}

// ProgressSocket streams live bulk-send progress for a sequence until the
// run finishes or the client disconnects.
func (sc *SendController) ProgressSocket(conn *websocket.Conn) {
	defer conn.Close()

	sequenceID := utils.ParseUint(conn.Params("id"))
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		progress, ok := sc.progress.snapshot(sequenceID)
		if !ok {
			progress = BulkProgress{Done: true}
		}
		if err := conn.WriteJSON(progress); err != nil {
			return
		}
		if progress.Done {
			return
		}
	}
}

// Snapshot returns a copy of the current progress for a sequence.
func (r *progressRegistry) snapshot(sequenceID uint) (BulkProgress, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.runs[sequenceID]
	if !ok {
		return BulkProgress{}, false
	}
	return *p, true
}
