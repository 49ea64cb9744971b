package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/jobeco/fairprice/internal/models"
)

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 200
)

// AuditEntry captures a single audit event to persist.
type AuditEntry struct {
	ActorID    string
	Username   string
	Action     string
	Resource   string
	ResourceID string
	Result     string
	IPAddress  string
	Metadata   map[string]any
}

// AuditFilters narrows audit queries. Category matches the action prefix,
// e.g. "invitation" selects invitation.create, invitation.accept and so on.
type AuditFilters struct {
	ActorID    string
	Action     string
	Category   string
	Resource   string
	ResourceID string
	Since      *time.Time
}

// AuditListOptions controls pagination and filtering for audit queries.
type AuditListOptions struct {
	Page     int
	PageSize int
	Filters  AuditFilters
}

// AuditPage is one page of audit rows, newest first.
type AuditPage struct {
	Entries []models.AuditLog
	Total   int64
	Page    int
	PerPage int
}

// AuditService persists and retrieves audit log entries.
type AuditService struct {
	db  *gorm.DB
	now func() time.Time
}

// AuditOption configures an AuditService.
type AuditOption func(*AuditService)

// WithAuditClock overrides the time source used for retention cut-offs.
func WithAuditClock(now func() time.Time) AuditOption {
	return func(s *AuditService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewAuditService constructs an AuditService using the provided database handle.
func NewAuditService(db *gorm.DB, opts ...AuditOption) (*AuditService, error) {
	if db == nil {
		return nil, errors.New("audit service: db is required")
	}
	svc := &AuditService{db: db, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Log stores an audit entry, marshalling metadata into JSON form.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	ctx = ensureContext(ctx)

	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return errors.New("audit service: action is required")
	}
	result := strings.TrimSpace(entry.Result)
	if result == "" {
		return errors.New("audit service: result is required")
	}

	row := models.AuditLog{
		Action:     action,
		Resource:   strings.TrimSpace(entry.Resource),
		ResourceID: strings.TrimSpace(entry.ResourceID),
		Result:     result,
		Username:   strings.TrimSpace(entry.Username),
		IPAddress:  strings.TrimSpace(entry.IPAddress),
	}
	if len(entry.Metadata) > 0 {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("audit service: marshal metadata: %w", err)
		}
		row.Metadata = datatypes.JSON(encoded)
	}
	if id := strings.TrimSpace(entry.ActorID); id != "" {
		row.ActorID = &id
	}

	return s.db.WithContext(ctx).Create(&row).Error
}

// List returns one page of audit rows matching opts.Filters.
func (s *AuditService) List(ctx context.Context, opts AuditListOptions) (AuditPage, error) {
	ctx = ensureContext(ctx)

	page := AuditPage{
		Page:    max(opts.Page, 1),
		PerPage: clampLimit(opts.PageSize, defaultAuditPageSize, maxAuditPageSize),
	}

	query := applyAuditFilters(s.db.WithContext(ctx).Model(&models.AuditLog{}), opts.Filters)
	if err := query.Count(&page.Total).Error; err != nil {
		return AuditPage{}, fmt.Errorf("audit service: count logs: %w", err)
	}
	if err := query.
		Order("created_at DESC").
		Offset((page.Page - 1) * page.PerPage).
		Limit(page.PerPage).
		Find(&page.Entries).Error; err != nil {
		return AuditPage{}, fmt.Errorf("audit service: list logs: %w", err)
	}
	return page, nil
}

// GroupActivity lists membership, invitation and tradesman events recorded
// against one group. Callers check moderator rights first.
func (s *AuditService) GroupActivity(ctx context.Context, groupID string, opts AuditListOptions) (AuditPage, error) {
	if strings.TrimSpace(groupID) == "" {
		return AuditPage{}, errors.New("audit service: group id is required")
	}
	opts.Filters.Resource = "group"
	opts.Filters.ResourceID = groupID
	return s.List(ctx, opts)
}

// CleanupOlderThan removes audit logs older than the retention window.
func (s *AuditService) CleanupOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	ctx = ensureContext(ctx)

	if retention <= 0 {
		return 0, errors.New("audit service: retention must be positive")
	}

	cutoff := s.now().Add(-retention)
	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("audit service: cleanup logs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func applyAuditFilters(query *gorm.DB, filters AuditFilters) *gorm.DB {
	if filters.ActorID != "" {
		query = query.Where("actor_id = ?", filters.ActorID)
	}
	if filters.Action != "" {
		query = query.Where("action = ?", filters.Action)
	}
	if category := strings.Trim(filters.Category, ". "); category != "" {
		query = query.Where("action LIKE ? ESCAPE '!'", escapeLike(category)+".%")
	}
	if filters.Resource != "" {
		query = query.Where("resource = ?", filters.Resource)
	}
	if filters.ResourceID != "" {
		query = query.Where("resource_id = ?", filters.ResourceID)
	}
	if filters.Since != nil {
		query = query.Where("created_at >= ?", *filters.Since)
	}
	return query
}
