package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/jobeco/fairprice/internal/models"
	apperrors "github.com/jobeco/fairprice/pkg/errors"
	"github.com/jobeco/fairprice/pkg/metrics"
	"github.com/jobeco/fairprice/pkg/validator"
)

var (
	// ErrJobNotFound indicates the requested job or quote does not exist.
	ErrJobNotFound = apperrors.NewNotFound("Job")
	// ErrQuoteNotFound indicates the requested quote does not exist.
	ErrQuoteNotFound = apperrors.NewNotFound("Quote")
	// ErrJobNotEditable is returned to anyone but the job's creator.
	ErrJobNotEditable = apperrors.NewAuthorization("You can only change jobs and quotes you created")
	// ErrQuoteNotPending is returned when a quote was already converted or declined.
	ErrQuoteNotPending = apperrors.NewBadRequest("Only pending quotes can be converted or declined")
)

// JobInput carries the fields of a completed job.
type JobInput struct {
	Title        string
	Description  string
	DateStarted  *time.Time
	DateFinished *time.Time
	CallOutFee   *float64
	MaterialsFee *float64
	HourlyRate   *float64
	HoursWorked  *float64
	DailyRate    *float64
	DaysWorked   *float64
	TotalCost    *float64
	Rating       *int
	Attachment   string
}

// QuoteInput carries the fields of an estimate.
type QuoteInput struct {
	Title          string
	Description    string
	DateRequested  *time.Time
	DateReceived   *time.Time
	CallOutFee     *float64
	MaterialsFee   *float64
	HourlyRate     *float64
	HoursEstimated *float64
	DailyRate      *float64
	DaysEstimated  *float64
	TotalQuote     *float64
	Attachment     string
}

// ConvertInput optionally completes a quote while converting it. Unset
// fields are carried over from the estimate.
type ConvertInput struct {
	DateFinished *time.Time
	TotalCost    *float64
	Rating       *int
}

// JobListing is a job with the username of whoever logged it.
type JobListing struct {
	Job     models.Job `json:"job"`
	AddedBy string     `json:"added_by"`
	Amount  *float64   `json:"amount,omitempty"`
}

// JobFilter narrows job searches.
type JobFilter struct {
	Term      string
	Trade     string
	MinRating int
	AddedBy   string
	Group     string
	Limit     int
}

// QuoteFilter narrows quote searches.
type QuoteFilter struct {
	Term     string
	Trade    string
	Postcode string
	Status   models.QuoteStatus
	Limit    int
}

// StatusCounts summarises a user's jobs and quotes.
type StatusCounts struct {
	Jobs           int64 `json:"jobs"`
	PendingQuotes  int64 `json:"pending_quotes"`
	DeclinedQuotes int64 `json:"declined_quotes"`
}

// JobService manages jobs and quotes.
type JobService struct {
	db           *gorm.DB
	auditService *AuditService
	groups       *GroupService
}

// NewJobService constructs a JobService instance.
func NewJobService(db *gorm.DB, auditService *AuditService, groups *GroupService) (*JobService, error) {
	if db == nil {
		return nil, errors.New("job service: db is required")
	}
	if groups == nil {
		return nil, errors.New("job service: group service is required")
	}
	return &JobService{db: db, auditService: auditService, groups: groups}, nil
}

var nonNegative = validator.Number{Min: validator.Bound(0)}

func validateCommon(title, description string, costs map[string]*float64) error {
	checks := []validator.Check{
		{Field: "title", Value: title, Rule: validator.String{Required: true, Max: 200}},
		{Field: "description", Value: description, Rule: validator.String{Max: 2000}},
	}
	for _, field := range costFieldOrder {
		if value, ok := costs[field]; ok {
			checks = append(checks, validator.Check{Field: field, Value: value, Rule: nonNegative})
		}
	}
	return validator.Fields(checks...)
}

var costFieldOrder = []string{
	"call_out_fee", "materials_fee", "hourly_rate", "hours_worked", "hours_estimated",
	"daily_rate", "days_worked", "days_estimated", "total_cost", "total_quote",
}

func validateJobInput(in JobInput) error {
	err := validateCommon(in.Title, in.Description, map[string]*float64{
		"call_out_fee":  in.CallOutFee,
		"materials_fee": in.MaterialsFee,
		"hourly_rate":   in.HourlyRate,
		"hours_worked":  in.HoursWorked,
		"daily_rate":    in.DailyRate,
		"days_worked":   in.DaysWorked,
		"total_cost":    in.TotalCost,
	})
	if err != nil {
		return err
	}
	if err := validateRating(in.Rating); err != nil {
		return err
	}
	if err := finiteTotal("total_cost", in.total()); err != nil {
		return err
	}
	if in.DateStarted != nil && in.DateFinished != nil && in.DateFinished.Before(*in.DateStarted) {
		return apperrors.NewValidation("date_finished", "Date finished cannot be before date started")
	}
	return nil
}

func validateQuoteInput(in QuoteInput) error {
	err := validateCommon(in.Title, in.Description, map[string]*float64{
		"call_out_fee":    in.CallOutFee,
		"materials_fee":   in.MaterialsFee,
		"hourly_rate":     in.HourlyRate,
		"hours_estimated": in.HoursEstimated,
		"daily_rate":      in.DailyRate,
		"days_estimated":  in.DaysEstimated,
		"total_quote":     in.TotalQuote,
	})
	if err != nil {
		return err
	}
	if err := finiteTotal("total_quote", in.total()); err != nil {
		return err
	}
	if in.DateRequested != nil && in.DateReceived != nil && in.DateReceived.Before(*in.DateRequested) {
		return apperrors.NewValidation("date_received", "Date received cannot be before date requested")
	}
	return nil
}

// finiteTotal catches totals that overflow even though every component is
// within bounds.
func finiteTotal(field string, total *float64) error {
	if total != nil && math.IsInf(*total, 0) {
		return apperrors.NewValidation(field, field+" is too large")
	}
	return nil
}

func validateRating(rating *int) error {
	if rating == nil {
		return nil
	}
	return (validator.Number{Min: validator.Bound(1), Max: validator.Bound(5)}).Validate("rating", rating)
}

// ComputeTotal adds the fee components that are present. It returns nil when
// nothing was supplied.
func ComputeTotal(callOut, materials, rate, hours, dailyRate, days *float64) *float64 {
	var total float64
	var present bool
	add := func(v float64) {
		total += v
		present = true
	}
	if callOut != nil {
		add(*callOut)
	}
	if materials != nil {
		add(*materials)
	}
	if rate != nil && hours != nil {
		add(*rate * *hours)
	}
	if dailyRate != nil && days != nil {
		add(*dailyRate * *days)
	}
	if !present {
		return nil
	}
	return &total
}

func toDate(t *time.Time) *datatypes.Date {
	if t == nil {
		return nil
	}
	d := datatypes.Date(*t)
	return &d
}

func (in JobInput) total() *float64 {
	if in.TotalCost != nil {
		return in.TotalCost
	}
	return ComputeTotal(in.CallOutFee, in.MaterialsFee, in.HourlyRate, in.HoursWorked, in.DailyRate, in.DaysWorked)
}

func (in QuoteInput) total() *float64 {
	if in.TotalQuote != nil {
		return in.TotalQuote
	}
	return ComputeTotal(in.CallOutFee, in.MaterialsFee, in.HourlyRate, in.HoursEstimated, in.DailyRate, in.DaysEstimated)
}

func (s *JobService) requireTradesman(ctx context.Context, tradesmanID string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Tradesman{}).Where("id = ?", tradesmanID).Count(&count).Error; err != nil {
		return dbError("job", "load tradesman", err)
	}
	if count == 0 {
		return ErrTradesmanNotFound
	}
	return nil
}

// CreateJob logs a completed job against a tradesman.
func (s *JobService) CreateJob(ctx context.Context, userID, tradesmanID string, in JobInput) (*models.Job, error) {
	ctx = ensureContext(ctx)

	if err := validateJobInput(in); err != nil {
		return nil, err
	}
	if err := s.requireTradesman(ctx, tradesmanID); err != nil {
		return nil, err
	}

	job := &models.Job{
		Type:         models.TypeJob,
		Status:       models.QuoteAccepted,
		UserID:       userID,
		TradesmanID:  tradesmanID,
		Title:        strings.TrimSpace(in.Title),
		Description:  strings.TrimSpace(in.Description),
		DateStarted:  toDate(in.DateStarted),
		DateFinished: toDate(in.DateFinished),
		CallOutFee:   in.CallOutFee,
		MaterialsFee: in.MaterialsFee,
		HourlyRate:   in.HourlyRate,
		HoursWorked:  in.HoursWorked,
		DailyRate:    in.DailyRate,
		DaysWorked:   in.DaysWorked,
		TotalCost:    in.total(),
		Rating:       in.Rating,
		Attachment:   in.Attachment,
	}
	if err := s.create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// CreateQuote records a pending estimate against a tradesman.
func (s *JobService) CreateQuote(ctx context.Context, userID, tradesmanID string, in QuoteInput) (*models.Job, error) {
	ctx = ensureContext(ctx)

	if err := validateQuoteInput(in); err != nil {
		return nil, err
	}
	if err := s.requireTradesman(ctx, tradesmanID); err != nil {
		return nil, err
	}

	quote := &models.Job{
		Type:           models.TypeQuote,
		Status:         models.QuotePending,
		UserID:         userID,
		TradesmanID:    tradesmanID,
		Title:          strings.TrimSpace(in.Title),
		Description:    strings.TrimSpace(in.Description),
		DateRequested:  toDate(in.DateRequested),
		DateReceived:   toDate(in.DateReceived),
		CallOutFee:     in.CallOutFee,
		MaterialsFee:   in.MaterialsFee,
		HourlyRate:     in.HourlyRate,
		HoursEstimated: in.HoursEstimated,
		DailyRate:      in.DailyRate,
		DaysEstimated:  in.DaysEstimated,
		TotalQuote:     in.total(),
		Attachment:     in.Attachment,
	}
	if err := s.create(ctx, quote); err != nil {
		return nil, err
	}
	return quote, nil
}

func (s *JobService) create(ctx context.Context, job *models.Job) error {
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		if isForeignKeyError(err) {
			return ErrUserNotFound
		}
		return dbError("job", "create "+string(job.Type), err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:    job.UserID,
		Action:     string(job.Type) + ".create",
		Resource:   string(job.Type),
		ResourceID: job.ID,
		Metadata:   map[string]any{"tradesman_id": job.TradesmanID},
	})
	return nil
}

// Get loads a job or quote with its tradesman.
func (s *JobService) Get(ctx context.Context, jobID string) (*models.Job, error) {
	ctx = ensureContext(ctx)

	var job models.Job
	err := s.db.WithContext(ctx).Preload("Tradesman").Take(&job, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, dbError("job", "load job", err)
	}
	return &job, nil
}

// CanEdit reports whether the user created the job.
func (s *JobService) CanEdit(ctx context.Context, userID, jobID string) (bool, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return false, err
	}
	return job.UserID == userID, nil
}

func (s *JobService) owned(ctx context.Context, userID, jobID string) (*models.Job, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, ErrJobNotEditable
	}
	return job, nil
}

// Update edits a job the user created.
func (s *JobService) Update(ctx context.Context, userID, jobID string, in JobInput) (*models.Job, error) {
	ctx = ensureContext(ctx)

	if err := validateJobInput(in); err != nil {
		return nil, err
	}
	job, err := s.owned(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if job.IsQuote() {
		return nil, apperrors.NewBadRequest("Quotes are edited with the quote form")
	}

	updates := map[string]any{
		"title":         strings.TrimSpace(in.Title),
		"description":   strings.TrimSpace(in.Description),
		"date_started":  toDate(in.DateStarted),
		"date_finished": toDate(in.DateFinished),
		"call_out_fee":  in.CallOutFee,
		"materials_fee": in.MaterialsFee,
		"hourly_rate":   in.HourlyRate,
		"hours_worked":  in.HoursWorked,
		"daily_rate":    in.DailyRate,
		"days_worked":   in.DaysWorked,
		"total_cost":    in.total(),
		"rating":        in.Rating,
	}
	if in.Attachment != "" {
		updates["attachment"] = in.Attachment
	}
	return s.apply(ctx, userID, job, "job.update", updates)
}

// UpdateQuote edits a pending quote the user created.
func (s *JobService) UpdateQuote(ctx context.Context, userID, quoteID string, in QuoteInput) (*models.Job, error) {
	ctx = ensureContext(ctx)

	if err := validateQuoteInput(in); err != nil {
		return nil, err
	}
	quote, err := s.owned(ctx, userID, quoteID)
	if err != nil {
		return nil, err
	}
	if !quote.IsQuote() {
		return nil, ErrQuoteNotFound
	}

	updates := map[string]any{
		"title":           strings.TrimSpace(in.Title),
		"description":     strings.TrimSpace(in.Description),
		"date_requested":  toDate(in.DateRequested),
		"date_received":   toDate(in.DateReceived),
		"call_out_fee":    in.CallOutFee,
		"materials_fee":   in.MaterialsFee,
		"hourly_rate":     in.HourlyRate,
		"hours_estimated": in.HoursEstimated,
		"daily_rate":      in.DailyRate,
		"days_estimated":  in.DaysEstimated,
		"total_quote":     in.total(),
	}
	if in.Attachment != "" {
		updates["attachment"] = in.Attachment
	}
	return s.apply(ctx, userID, quote, "quote.update", updates)
}

func (s *JobService) apply(ctx context.Context, userID string, job *models.Job, action string, updates map[string]any) (*models.Job, error) {
	if err := s.db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", job.ID).Updates(updates).Error; err != nil {
		return nil, dbError("job", "update", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:    userID,
		Action:     action,
		Resource:   string(job.Type),
		ResourceID: job.ID,
	})
	return s.Get(ctx, job.ID)
}

// Delete removes a job or quote the user created and returns it so the
// caller can clean up its attachment.
func (s *JobService) Delete(ctx context.Context, userID, jobID string) (*models.Job, error) {
	ctx = ensureContext(ctx)

	job, err := s.owned(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Delete(&models.Job{}, "id = ?", job.ID).Error; err != nil {
		return nil, dbError("job", "delete", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:    userID,
		Action:     string(job.Type) + ".delete",
		Resource:   string(job.Type),
		ResourceID: job.ID,
	})
	return job, nil
}

// ConvertQuoteToJob turns a pending quote into a job in place. Estimate
// figures become actual figures and the estimate columns are cleared, so
// the row cannot be turned back into a quote.
func (s *JobService) ConvertQuoteToJob(ctx context.Context, userID, quoteID string, in ConvertInput) (*models.Job, error) {
	ctx = ensureContext(ctx)

	if err := validateRating(in.Rating); err != nil {
		return nil, err
	}
	if in.TotalCost != nil {
		if err := nonNegative.Validate("total_cost", in.TotalCost); err != nil {
			return nil, err
		}
	}

	quote, err := s.ownedQuote(ctx, userID, quoteID)
	if err != nil {
		return nil, err
	}

	started := quote.DateReceived
	if quote.DateRequested != nil {
		started = quote.DateRequested
	}
	total := quote.TotalQuote
	if in.TotalCost != nil {
		total = in.TotalCost
	}
	if in.DateFinished != nil && started != nil && in.DateFinished.Before(time.Time(*started)) {
		return nil, apperrors.NewValidation("date_finished", "Date finished cannot be before date started")
	}

	updates := map[string]any{
		"type":            models.TypeJob,
		"status":          models.QuoteAccepted,
		"date_started":    started,
		"date_finished":   toDate(in.DateFinished),
		"hours_worked":    quote.HoursEstimated,
		"days_worked":     quote.DaysEstimated,
		"total_cost":      total,
		"rating":          in.Rating,
		"date_requested":  nil,
		"date_received":   nil,
		"hours_estimated": nil,
		"days_estimated":  nil,
		"total_quote":     nil,
	}

	if err := s.transitionQuote(ctx, quote.ID, updates); err != nil {
		return nil, err
	}

	metrics.QuoteOutcomes.WithLabelValues("converted").Inc()
	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:    userID,
		Action:     "quote.convert",
		Resource:   "job",
		ResourceID: quote.ID,
	})
	return s.Get(ctx, quote.ID)
}

// RejectQuote declines a pending quote.
func (s *JobService) RejectQuote(ctx context.Context, userID, quoteID string) (*models.Job, error) {
	ctx = ensureContext(ctx)

	quote, err := s.ownedQuote(ctx, userID, quoteID)
	if err != nil {
		return nil, err
	}
	if err := s.transitionQuote(ctx, quote.ID, map[string]any{"status": models.QuoteDeclined}); err != nil {
		return nil, err
	}

	metrics.QuoteOutcomes.WithLabelValues("declined").Inc()
	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:    userID,
		Action:     "quote.decline",
		Resource:   "quote",
		ResourceID: quote.ID,
	})
	return s.Get(ctx, quote.ID)
}

func (s *JobService) ownedQuote(ctx context.Context, userID, quoteID string) (*models.Job, error) {
	quote, err := s.Get(ctx, quoteID)
	if errors.Is(err, ErrJobNotFound) {
		return nil, ErrQuoteNotFound
	}
	if err != nil {
		return nil, err
	}
	if quote.UserID != userID {
		return nil, ErrJobNotEditable
	}
	if !quote.IsQuote() || quote.Status != models.QuotePending {
		return nil, ErrQuoteNotPending
	}
	return quote, nil
}

// transitionQuote applies updates only while the row is still a pending
// quote, so concurrent conversions cannot both succeed.
func (s *JobService) transitionQuote(ctx context.Context, quoteID string, updates map[string]any) error {
	res := s.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND type = ? AND status = ?", quoteID, models.TypeQuote, models.QuotePending).
		Updates(updates)
	if res.Error != nil {
		return dbError("job", "update quote", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrQuoteNotPending
	}
	return nil
}

// ListForUser lists the user's rows of the given type, newest first.
func (s *JobService) ListForUser(ctx context.Context, userID string, kind models.JobType) ([]models.Job, error) {
	ctx = ensureContext(ctx)

	var jobs []models.Job
	if err := s.db.WithContext(ctx).Preload("Tradesman").
		Where("user_id = ? AND type = ?", userID, kind).
		Order("created_at DESC").
		Find(&jobs).Error; err != nil {
		return nil, dbError("job", "list user jobs", err)
	}
	return jobs, nil
}

// ListForTradesman lists a tradesman's rows of the given type.
func (s *JobService) ListForTradesman(ctx context.Context, tradesmanID string, kind models.JobType) ([]JobListing, error) {
	ctx = ensureContext(ctx)

	return s.listings(s.db.WithContext(ctx).
		Where("jobs.tradesman_id = ? AND jobs.type = ?", tradesmanID, kind).
		Order("jobs.created_at DESC"), 0)
}

// ListForGroup lists jobs logged against tradesmen visible in the group.
// The caller must be a member.
func (s *JobService) ListForGroup(ctx context.Context, userID, groupID string) ([]JobListing, error) {
	ctx = ensureContext(ctx)

	if _, err := s.groups.RequireViewer(ctx, userID, groupID); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	linked := db.Model(&models.GroupTradesman{}).Select("tradesman_id").Where("group_id = ?", groupID)
	return s.listings(db.
		Where("jobs.type = ? AND jobs.tradesman_id IN (?)", models.TypeJob, linked).
		Order("jobs.created_at DESC"), 0)
}

// RecentCompletedForUser lists the user's finished jobs, most recent first.
func (s *JobService) RecentCompletedForUser(ctx context.Context, userID string, limit int) ([]models.Job, error) {
	ctx = ensureContext(ctx)

	var jobs []models.Job
	if err := s.db.WithContext(ctx).Preload("Tradesman").
		Where("user_id = ? AND type = ? AND date_finished IS NOT NULL", userID, models.TypeJob).
		Order("date_finished DESC").
		Limit(clampLimit(limit, 5, 50)).
		Find(&jobs).Error; err != nil {
		return nil, dbError("job", "list recent jobs", err)
	}
	return jobs, nil
}

// StatusCounts tallies the user's jobs and quotes by state. Converted quotes
// count as jobs.
func (s *JobService) StatusCounts(ctx context.Context, userID string) (StatusCounts, error) {
	ctx = ensureContext(ctx)

	type row struct {
		Type   models.JobType
		Status models.QuoteStatus
		Total  int64
	}
	var rows []row
	if err := s.db.WithContext(ctx).Model(&models.Job{}).
		Select("type, status, COUNT(*) AS total").
		Where("user_id = ?", userID).
		Group("type, status").
		Scan(&rows).Error; err != nil {
		return StatusCounts{}, dbError("job", "count statuses", err)
	}

	var counts StatusCounts
	for _, r := range rows {
		switch {
		case r.Type == models.TypeJob:
			counts.Jobs += r.Total
		case r.Status == models.QuotePending:
			counts.PendingQuotes += r.Total
		case r.Status == models.QuoteDeclined:
			counts.DeclinedQuotes += r.Total
		}
	}
	return counts, nil
}

// SearchJobs finds jobs by text, trade, minimum rating, author or group name.
func (s *JobService) SearchJobs(ctx context.Context, filter JobFilter) ([]JobListing, error) {
	ctx = ensureContext(ctx)
	db := s.db.WithContext(ctx)

	query := db.Joins("JOIN tradesmen ON tradesmen.id = jobs.tradesman_id").
		Where("jobs.type = ?", models.TypeJob)
	if strings.TrimSpace(filter.Term) != "" {
		pattern := likePattern(filter.Term)
		query = query.Where("LOWER(jobs.title) LIKE ? ESCAPE '!' OR LOWER(jobs.description) LIKE ? ESCAPE '!'", pattern, pattern)
	}
	if trade := strings.TrimSpace(filter.Trade); trade != "" {
		query = query.Where("LOWER(tradesmen.trade) = ?", strings.ToLower(trade))
	}
	if filter.MinRating > 0 {
		query = query.Where("jobs.rating >= ?", filter.MinRating)
	}
	if author := strings.TrimSpace(filter.AddedBy); author != "" {
		authors := db.Model(&models.User{}).Select("id").Where("username = ?", author)
		query = query.Where("jobs.user_id IN (?)", authors)
	}
	if name := strings.TrimSpace(filter.Group); name != "" {
		groups := db.Model(&models.Group{}).Select("id").Where("LOWER(name) = ?", strings.ToLower(name))
		linked := db.Model(&models.GroupTradesman{}).Select("tradesman_id").Where("group_id IN (?)", groups)
		query = query.Where("jobs.tradesman_id IN (?)", linked)
	}

	return s.listings(query.Order("jobs.created_at DESC"), clampLimit(filter.Limit, 50, 200))
}

// SearchQuotes finds quotes by text, trade, tradesman postcode or status.
func (s *JobService) SearchQuotes(ctx context.Context, filter QuoteFilter) ([]JobListing, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Joins("JOIN tradesmen ON tradesmen.id = jobs.tradesman_id").
		Where("jobs.type = ?", models.TypeQuote)
	if strings.TrimSpace(filter.Term) != "" {
		pattern := likePattern(filter.Term)
		query = query.Where(
			"LOWER(jobs.title) LIKE ? ESCAPE '!' OR LOWER(jobs.description) LIKE ? ESCAPE '!' OR LOWER(tradesmen.first_name) LIKE ? ESCAPE '!' OR LOWER(tradesmen.family_name) LIKE ? ESCAPE '!' OR LOWER(tradesmen.trade) LIKE ? ESCAPE '!'",
			pattern, pattern, pattern, pattern, pattern,
		)
	}
	if trade := strings.TrimSpace(filter.Trade); trade != "" {
		query = query.Where("LOWER(tradesmen.trade) = ?", strings.ToLower(trade))
	}
	if strings.TrimSpace(filter.Postcode) != "" {
		query = query.Where("LOWER(tradesmen.postcode) LIKE ? ESCAPE '!'", likePattern(filter.Postcode))
	}
	if filter.Status != "" {
		query = query.Where("jobs.status = ?", filter.Status)
	}

	return s.listings(query.Order("jobs.created_at DESC"), clampLimit(filter.Limit, 50, 200))
}

func (s *JobService) listings(query *gorm.DB, limit int) ([]JobListing, error) {
	if limit > 0 {
		query = query.Limit(limit)
	}

	var jobs []models.Job
	if err := query.Preload("Tradesman").Preload("User").Find(&jobs).Error; err != nil {
		return nil, dbError("job", "list jobs", err)
	}

	out := make([]JobListing, 0, len(jobs))
	for _, job := range jobs {
		listing := JobListing{Job: job, Amount: job.TotalCostOrQuote()}
		if job.User != nil {
			listing.AddedBy = job.User.Username
		}
		out = append(out, listing)
	}
	return out, nil
}
