package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jobeco/fairprice/internal/middleware"
	"github.com/jobeco/fairprice/internal/models"
	"github.com/jobeco/fairprice/internal/services"
	apperrors "github.com/jobeco/fairprice/pkg/errors"
	"github.com/jobeco/fairprice/pkg/logger"
	"github.com/jobeco/fairprice/pkg/response"
)

const attachmentField = "attachment"

// JobHandler records jobs and quotes, with an optional attachment each.
type JobHandler struct {
	jobs    *services.JobService
	uploads *services.UploadService
}

func NewJobHandler(jobs *services.JobService, uploads *services.UploadService) *JobHandler {
	return &JobHandler{jobs: jobs, uploads: uploads}
}

// jobPayload is the JSON body for jobs and quotes. Forms use the same keys.
type jobPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`

	DateStarted   string `json:"date_started"`
	DateFinished  string `json:"date_finished"`
	DateRequested string `json:"date_requested"`
	DateReceived  string `json:"date_received"`

	CallOutFee     *float64 `json:"call_out_fee"`
	MaterialsFee   *float64 `json:"materials_fee"`
	HourlyRate     *float64 `json:"hourly_rate"`
	HoursWorked    *float64 `json:"hours_worked"`
	HoursEstimated *float64 `json:"hours_estimated"`
	DailyRate      *float64 `json:"daily_rate"`
	DaysWorked     *float64 `json:"days_worked"`
	DaysEstimated  *float64 `json:"days_estimated"`
	TotalCost      *float64 `json:"total_cost"`
	TotalQuote     *float64 `json:"total_quote"`
	Rating         *int     `json:"rating"`
}

type convertPayload struct {
	DateFinished string   `json:"date_finished"`
	TotalCost    *float64 `json:"total_cost"`
	Rating       *int     `json:"rating"`
}

func isJSON(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "application/json")
}

// readJobPayload accepts JSON or a (multipart) form.
func readJobPayload(c *gin.Context) (jobPayload, error) {
	var p jobPayload
	if isJSON(c) {
		if err := c.ShouldBindJSON(&p); err != nil {
			return p, apperrors.NewBadRequest("invalid JSON payload")
		}
		return p, nil
	}

	p.Title = c.PostForm("title")
	p.Description = c.PostForm("description")
	p.DateStarted = c.PostForm("date_started")
	p.DateFinished = c.PostForm("date_finished")
	p.DateRequested = c.PostForm("date_requested")
	p.DateReceived = c.PostForm("date_received")

	amounts := []struct {
		field string
		dest  **float64
	}{
		{"call_out_fee", &p.CallOutFee},
		{"materials_fee", &p.MaterialsFee},
		{"hourly_rate", &p.HourlyRate},
		{"hours_worked", &p.HoursWorked},
		{"hours_estimated", &p.HoursEstimated},
		{"daily_rate", &p.DailyRate},
		{"days_worked", &p.DaysWorked},
		{"days_estimated", &p.DaysEstimated},
		{"total_cost", &p.TotalCost},
		{"total_quote", &p.TotalQuote},
	}
	for _, a := range amounts {
		value, err := parseAmount(a.field, c.PostForm(a.field))
		if err != nil {
			return p, err
		}
		*a.dest = value
	}

	rating, err := parseRating(c.PostForm("rating"))
	if err != nil {
		return p, err
	}
	p.Rating = rating
	return p, nil
}

func (p jobPayload) jobInput(attachment string) (services.JobInput, error) {
	started, err := parseDate("date_started", p.DateStarted)
	if err != nil {
		return services.JobInput{}, err
	}
	finished, err := parseDate("date_finished", p.DateFinished)
	if err != nil {
		return services.JobInput{}, err
	}
	return services.JobInput{
		Title:        p.Title,
		Description:  p.Description,
		DateStarted:  started,
		DateFinished: finished,
		CallOutFee:   p.CallOutFee,
		MaterialsFee: p.MaterialsFee,
		HourlyRate:   p.HourlyRate,
		HoursWorked:  p.HoursWorked,
		DailyRate:    p.DailyRate,
		DaysWorked:   p.DaysWorked,
		TotalCost:    p.TotalCost,
		Rating:       p.Rating,
		Attachment:   attachment,
	}, nil
}

func (p jobPayload) quoteInput(attachment string) (services.QuoteInput, error) {
	requested, err := parseDate("date_requested", p.DateRequested)
	if err != nil {
		return services.QuoteInput{}, err
	}
	received, err := parseDate("date_received", p.DateReceived)
	if err != nil {
		return services.QuoteInput{}, err
	}
	return services.QuoteInput{
		Title:          p.Title,
		Description:    p.Description,
		DateRequested:  requested,
		DateReceived:   received,
		CallOutFee:     p.CallOutFee,
		MaterialsFee:   p.MaterialsFee,
		HourlyRate:     p.HourlyRate,
		HoursEstimated: p.HoursEstimated,
		DailyRate:      p.DailyRate,
		DaysEstimated:  p.DaysEstimated,
		TotalQuote:     p.TotalQuote,
		Attachment:     attachment,
	}, nil
}

// saveAttachment stores the uploaded file, if any, and returns its name.
func (h *JobHandler) saveAttachment(c *gin.Context) (string, error) {
	if isJSON(c) || h.uploads == nil {
		return "", nil
	}
	header, err := c.FormFile(attachmentField)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.NewValidation(attachmentField, "Attachment could not be read")
	}
	return h.uploads.Save(requestContext(c), header)
}

// discardAttachment removes a stored file that is no longer referenced.
func (h *JobHandler) discardAttachment(c *gin.Context, name string) {
	if name == "" || h.uploads == nil {
		return
	}
	if err := h.uploads.Delete(requestContext(c), name); err != nil {
		logger.WithModule("jobs").Warn("failed to remove attachment",
			zap.String("attachment", name),
			zap.Error(err),
		)
	}
}

// POST /add_job/:tradesman_id
func (h *JobHandler) CreateJob(c *gin.Context) {
	payload, err := readJobPayload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	attachment, err := h.saveAttachment(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	input, err := payload.jobInput(attachment)
	if err != nil {
		h.discardAttachment(c, attachment)
		response.Error(c, err)
		return
	}

	job, err := h.jobs.CreateJob(requestContext(c), middleware.CurrentUserID(c), c.Param("tradesman_id"), input)
	if err != nil {
		h.discardAttachment(c, attachment)
		response.Error(c, err)
		return
	}
	response.Created(c, job)
}

// POST /add_quote/:tradesman_id
func (h *JobHandler) CreateQuote(c *gin.Context) {
	payload, err := readJobPayload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	attachment, err := h.saveAttachment(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	input, err := payload.quoteInput(attachment)
	if err != nil {
		h.discardAttachment(c, attachment)
		response.Error(c, err)
		return
	}

	quote, err := h.jobs.CreateQuote(requestContext(c), middleware.CurrentUserID(c), c.Param("tradesman_id"), input)
	if err != nil {
		h.discardAttachment(c, attachment)
		response.Error(c, err)
		return
	}
	response.Created(c, quote)
}

// GET /jobs
func (h *JobHandler) List(c *gin.Context) {
	ctx := requestContext(c)
	userID := middleware.CurrentUserID(c)

	jobs, err := h.jobs.ListForUser(ctx, userID, models.TypeJob)
	if err != nil {
		response.Error(c, err)
		return
	}
	quotes, err := h.jobs.ListForUser(ctx, userID, models.TypeQuote)
	if err != nil {
		response.Error(c, err)
		return
	}
	counts, err := h.jobs.StatusCounts(ctx, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"jobs": jobs, "quotes": quotes, "counts": counts})
}

// GET /jobs/:id
func (h *JobHandler) Get(c *gin.Context) {
	ctx := requestContext(c)
	job, err := h.jobs.Get(ctx, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	canEdit, err := h.jobs.CanEdit(ctx, middleware.CurrentUserID(c), job.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"job": job, "can_edit": canEdit})
}

// POST /edit_job/:id
//
// Quotes are edited with quote fields; everything else as a job.
func (h *JobHandler) Update(c *gin.Context) {
	ctx := requestContext(c)
	userID := middleware.CurrentUserID(c)

	existing, err := h.jobs.Get(ctx, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if existing.UserID != userID {
		response.Error(c, services.ErrJobNotEditable)
		return
	}

	payload, err := readJobPayload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	attachment, err := h.saveAttachment(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var updated *models.Job
	if existing.IsQuote() {
		var input services.QuoteInput
		if input, err = payload.quoteInput(attachment); err == nil {
			updated, err = h.jobs.UpdateQuote(ctx, userID, existing.ID, input)
		}
	} else {
		var input services.JobInput
		if input, err = payload.jobInput(attachment); err == nil {
			updated, err = h.jobs.Update(ctx, userID, existing.ID, input)
		}
	}
	if err != nil {
		h.discardAttachment(c, attachment)
		response.Error(c, err)
		return
	}

	if attachment != "" && existing.Attachment != "" && existing.Attachment != attachment {
		h.discardAttachment(c, existing.Attachment)
	}
	response.Success(c, http.StatusOK, updated)
}

// DELETE /jobs/:id
func (h *JobHandler) Delete(c *gin.Context) {
	deleted, err := h.jobs.Delete(requestContext(c), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.discardAttachment(c, deleted.Attachment)
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// POST /convert_quote_to_job/:id
func (h *JobHandler) ConvertQuote(c *gin.Context) {
	var payload convertPayload
	if isJSON(c) {
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&payload); err != nil {
				response.Error(c, apperrors.NewBadRequest("invalid JSON payload"))
				return
			}
		}
	} else {
		payload.DateFinished = c.PostForm("date_finished")
		total, err := parseAmount("total_cost", c.PostForm("total_cost"))
		if err != nil {
			response.Error(c, err)
			return
		}
		rating, err := parseRating(c.PostForm("rating"))
		if err != nil {
			response.Error(c, err)
			return
		}
		payload.TotalCost, payload.Rating = total, rating
	}

	finished, err := parseDate("date_finished", payload.DateFinished)
	if err != nil {
		response.Error(c, err)
		return
	}

	job, err := h.jobs.ConvertQuoteToJob(requestContext(c), middleware.CurrentUserID(c), c.Param("id"), services.ConvertInput{
		DateFinished: finished,
		TotalCost:    payload.TotalCost,
		Rating:       payload.Rating,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, job)
}

// POST /reject_quote/:id
func (h *JobHandler) RejectQuote(c *gin.Context) {
	quote, err := h.jobs.RejectQuote(requestContext(c), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, quote)
}
