package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/jobeco/fairprice/internal/models"
	apperrors "github.com/jobeco/fairprice/pkg/errors"
	"github.com/jobeco/fairprice/pkg/validator"
)

var (
	// ErrTradesmanNotFound indicates the requested tradesman does not exist.
	ErrTradesmanNotFound = apperrors.NewNotFound("Tradesman")
	// ErrTradesmanNotEditable is returned to users who did not add the tradesman.
	ErrTradesmanNotEditable = apperrors.NewAuthorization("You can only change tradesmen you added")
)

var phonePattern = regexp.MustCompile(`^\+?[0-9 ()\-]{6,20}$`)

// TradesmanInput carries the tradesman form.
type TradesmanInput struct {
	Trade       string
	FirstName   string
	FamilyName  string
	CompanyName string
	Address     string
	Postcode    string
	Phone       string
	Email       string
}

// TradesmanSummary decorates a tradesman with job statistics.
type TradesmanSummary struct {
	Tradesman     models.Tradesman `json:"tradesman"`
	JobCount      int64            `json:"job_count"`
	AverageRating *float64         `json:"average_rating,omitempty"`
}

// SearchFilter narrows tradesman searches.
type SearchFilter struct {
	Term           string
	Trade          string
	PostcodePrefix string
	Limit          int
}

// TradesmanService manages tradesmen and their visibility in groups.
type TradesmanService struct {
	db           *gorm.DB
	auditService *AuditService
	groups       *GroupService
	now          func() time.Time
}

// NewTradesmanService constructs a TradesmanService instance.
func NewTradesmanService(db *gorm.DB, auditService *AuditService, groups *GroupService) (*TradesmanService, error) {
	if db == nil {
		return nil, errors.New("tradesman service: db is required")
	}
	if groups == nil {
		return nil, errors.New("tradesman service: group service is required")
	}
	return &TradesmanService{
		db:           db,
		auditService: auditService,
		groups:       groups,
		now:          time.Now,
	}, nil
}

func validateTradesmanInput(in TradesmanInput) error {
	err := validator.Fields(
		validator.Check{Field: "trade", Value: in.Trade, Rule: validator.String{Required: true, Max: 100}},
		validator.Check{Field: "first_name", Value: in.FirstName, Rule: validator.String{Max: 100}},
		validator.Check{Field: "family_name", Value: in.FamilyName, Rule: validator.String{Max: 100}},
		validator.Check{Field: "company_name", Value: in.CompanyName, Rule: validator.String{Max: 200}},
		validator.Check{Field: "address", Value: in.Address, Rule: validator.String{Max: 300}},
		validator.Check{Field: "postcode", Value: in.Postcode, Rule: validator.String{
			Max: 10, Pattern: postcodePattern, PatternMessage: "may only contain letters and numbers",
		}},
		validator.Check{Field: "phone", Value: in.Phone, Rule: validator.String{
			Pattern: phonePattern, PatternMessage: "must be a valid phone number",
		}},
		validator.Check{Field: "email", Value: in.Email, Rule: validator.Email{}},
	)
	if err != nil {
		return err
	}
	if strings.TrimSpace(in.FirstName) == "" && strings.TrimSpace(in.FamilyName) == "" && strings.TrimSpace(in.CompanyName) == "" {
		return apperrors.NewValidation("first_name", "Provide a name or a company name")
	}
	return nil
}

func (in TradesmanInput) columns() map[string]any {
	return map[string]any{
		"trade":        strings.TrimSpace(in.Trade),
		"first_name":   strings.TrimSpace(in.FirstName),
		"family_name":  strings.TrimSpace(in.FamilyName),
		"company_name": strings.TrimSpace(in.CompanyName),
		"address":      strings.TrimSpace(in.Address),
		"postcode":     normalisePostcode(in.Postcode),
		"phone":        strings.TrimSpace(in.Phone),
		"email":        normaliseEmail(in.Email),
	}
}

// Create stores the tradesman and records the user as its owner.
func (s *TradesmanService) Create(ctx context.Context, userID string, in TradesmanInput) (*models.Tradesman, error) {
	ctx = ensureContext(ctx)

	if err := validateTradesmanInput(in); err != nil {
		return nil, err
	}

	tradesman := &models.Tradesman{
		Trade:       strings.TrimSpace(in.Trade),
		FirstName:   strings.TrimSpace(in.FirstName),
		FamilyName:  strings.TrimSpace(in.FamilyName),
		CompanyName: strings.TrimSpace(in.CompanyName),
		Address:     strings.TrimSpace(in.Address),
		Postcode:    normalisePostcode(in.Postcode),
		Phone:       strings.TrimSpace(in.Phone),
		Email:       normaliseEmail(in.Email),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(tradesman).Error; err != nil {
			return fmt.Errorf("create tradesman: %w", err)
		}
		link := &models.UserTradesman{
			UserID:      userID,
			TradesmanID: tradesman.ID,
			DateAdded:   s.now().UTC(),
		}
		if err := tx.Create(link).Error; err != nil {
			return fmt.Errorf("link owner: %w", err)
		}
		return nil
	})
	if err != nil {
		if isForeignKeyError(err) {
			return nil, ErrUserNotFound
		}
		return nil, dbError("tradesman", "create tradesman", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:    userID,
		Action:     "tradesman.create",
		Resource:   "tradesman",
		ResourceID: tradesman.ID,
		Metadata:   map[string]any{"trade": tradesman.Trade},
	})

	return tradesman, nil
}

// Update edits a tradesman the user added.
func (s *TradesmanService) Update(ctx context.Context, userID, tradesmanID string, in TradesmanInput) (*models.Tradesman, error) {
	ctx = ensureContext(ctx)

	if err := validateTradesmanInput(in); err != nil {
		return nil, err
	}
	if err := s.requireEditor(ctx, userID, tradesmanID); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(&models.Tradesman{}).
		Where("id = ?", tradesmanID).
		Updates(in.columns()).Error; err != nil {
		return nil, dbError("tradesman", "update tradesman", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:    userID,
		Action:     "tradesman.update",
		Resource:   "tradesman",
		ResourceID: tradesmanID,
	})

	return s.Get(ctx, tradesmanID)
}

// Delete removes a tradesman the user added, with its jobs and links.
func (s *TradesmanService) Delete(ctx context.Context, userID, tradesmanID string) error {
	ctx = ensureContext(ctx)

	if err := s.requireEditor(ctx, userID, tradesmanID); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&models.Tradesman{}, "id = ?", tradesmanID).Error; err != nil {
		return dbError("tradesman", "delete tradesman", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:    userID,
		Action:     "tradesman.delete",
		Resource:   "tradesman",
		ResourceID: tradesmanID,
	})
	return nil
}

// CanEdit reports whether the user added the tradesman.
func (s *TradesmanService) CanEdit(ctx context.Context, userID, tradesmanID string) (bool, error) {
	ctx = ensureContext(ctx)

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.UserTradesman{}).
		Where("user_id = ? AND tradesman_id = ?", userID, tradesmanID).
		Count(&count).Error; err != nil {
		return false, dbError("tradesman", "check owner", err)
	}
	return count > 0, nil
}

func (s *TradesmanService) requireEditor(ctx context.Context, userID, tradesmanID string) error {
	if _, err := s.Get(ctx, tradesmanID); err != nil {
		return err
	}
	ok, err := s.CanEdit(ctx, userID, tradesmanID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrTradesmanNotEditable
	}
	return nil
}

// Get loads a tradesman.
func (s *TradesmanService) Get(ctx context.Context, tradesmanID string) (*models.Tradesman, error) {
	ctx = ensureContext(ctx)

	var tradesman models.Tradesman
	err := s.db.WithContext(ctx).Take(&tradesman, "id = ?", tradesmanID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTradesmanNotFound
	}
	if err != nil {
		return nil, dbError("tradesman", "load tradesman", err)
	}
	return &tradesman, nil
}

// ListForUser returns the tradesmen the user added, newest first.
func (s *TradesmanService) ListForUser(ctx context.Context, userID string) ([]TradesmanSummary, error) {
	ctx = ensureContext(ctx)
	db := s.db.WithContext(ctx)

	var tradesmen []models.Tradesman
	if err := db.Model(&models.Tradesman{}).
		Joins("JOIN user_tradesmen ON user_tradesmen.tradesman_id = tradesmen.id").
		Where("user_tradesmen.user_id = ?", userID).
		Order("user_tradesmen.date_added DESC").
		Find(&tradesmen).Error; err != nil {
		return nil, dbError("tradesman", "list user tradesmen", err)
	}
	return s.summarise(db, tradesmen)
}

// ListForGroup returns the tradesmen visible in a group. The caller must be
// a member.
func (s *TradesmanService) ListForGroup(ctx context.Context, userID, groupID string) ([]TradesmanSummary, error) {
	ctx = ensureContext(ctx)

	if _, err := s.groups.RequireViewer(ctx, userID, groupID); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var tradesmen []models.Tradesman
	if err := db.Model(&models.Tradesman{}).
		Joins("JOIN group_tradesmen ON group_tradesmen.tradesman_id = tradesmen.id").
		Where("group_tradesmen.group_id = ?", groupID).
		Order("tradesmen.trade ASC, tradesmen.company_name ASC, tradesmen.family_name ASC").
		Find(&tradesmen).Error; err != nil {
		return nil, dbError("tradesman", "list group tradesmen", err)
	}
	return s.summarise(db, tradesmen)
}

// AddToGroup shares one of the user's tradesmen with a group they belong to.
func (s *TradesmanService) AddToGroup(ctx context.Context, userID, groupID, tradesmanID string) error {
	ctx = ensureContext(ctx)

	if _, err := s.groups.RequireViewer(ctx, userID, groupID); err != nil {
		return err
	}
	if err := s.requireEditor(ctx, userID, tradesmanID); err != nil {
		return err
	}

	link := &models.GroupTradesman{GroupID: groupID, TradesmanID: tradesmanID}
	if err := s.db.WithContext(ctx).Create(link).Error; err != nil {
		if isUniqueConstraintError(err) {
			return apperrors.NewDuplicate("Tradesman is already in this group")
		}
		return dbError("tradesman", "add to group", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:    userID,
		Action:     "tradesman.add_to_group",
		Resource:   "group",
		ResourceID: groupID,
		Metadata:   map[string]any{"tradesman_id": tradesmanID},
	})
	return nil
}

// RemoveFromGroup unlinks a tradesman from a group; moderators only.
func (s *TradesmanService) RemoveFromGroup(ctx context.Context, actorID, groupID, tradesmanID string) error {
	ctx = ensureContext(ctx)

	if _, err := s.groups.RequireModerator(ctx, actorID, groupID); err != nil {
		return err
	}

	res := s.db.WithContext(ctx).
		Where("group_id = ? AND tradesman_id = ?", groupID, tradesmanID).
		Delete(&models.GroupTradesman{})
	if res.Error != nil {
		return dbError("tradesman", "remove from group", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTradesmanNotFound
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:    actorID,
		Action:     "tradesman.remove_from_group",
		Resource:   "group",
		ResourceID: groupID,
		Metadata:   map[string]any{"tradesman_id": tradesmanID},
	})
	return nil
}

// InGroup reports whether the tradesman is visible in the group.
func (s *TradesmanService) InGroup(ctx context.Context, groupID, tradesmanID string) (bool, error) {
	ctx = ensureContext(ctx)

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.GroupTradesman{}).
		Where("group_id = ? AND tradesman_id = ?", groupID, tradesmanID).
		Count(&count).Error; err != nil {
		return false, dbError("tradesman", "check group link", err)
	}
	return count > 0, nil
}

// Search matches tradesmen by name, company or trade, optionally narrowed by
// exact trade and postcode prefix.
func (s *TradesmanService) Search(ctx context.Context, filter SearchFilter) ([]TradesmanSummary, error) {
	ctx = ensureContext(ctx)
	db := s.db.WithContext(ctx)

	query := db.Model(&models.Tradesman{})
	if strings.TrimSpace(filter.Term) != "" {
		pattern := likePattern(filter.Term)
		query = query.Where(
			"LOWER(first_name) LIKE ? ESCAPE '!' OR LOWER(family_name) LIKE ? ESCAPE '!' OR LOWER(company_name) LIKE ? ESCAPE '!' OR LOWER(trade) LIKE ? ESCAPE '!'",
			pattern, pattern, pattern, pattern,
		)
	}
	if trade := strings.TrimSpace(filter.Trade); trade != "" {
		query = query.Where("LOWER(trade) = ?", strings.ToLower(trade))
	}
	if strings.TrimSpace(filter.PostcodePrefix) != "" {
		query = query.Where("LOWER(postcode) LIKE ? ESCAPE '!'", prefixPattern(filter.PostcodePrefix))
	}

	var tradesmen []models.Tradesman
	if err := query.Order("trade ASC, company_name ASC").
		Limit(clampLimit(filter.Limit, 50, 200)).
		Find(&tradesmen).Error; err != nil {
		return nil, dbError("tradesman", "search tradesmen", err)
	}
	return s.summarise(db, tradesmen)
}

// Trades returns the standard trade list merged with every trade in use.
func (s *TradesmanService) Trades(ctx context.Context) ([]string, error) {
	ctx = ensureContext(ctx)

	var used []string
	if err := s.db.WithContext(ctx).Model(&models.Tradesman{}).
		Distinct("trade").
		Order("trade ASC").
		Pluck("trade", &used).Error; err != nil {
		return nil, dbError("tradesman", "list trades", err)
	}

	seen := make(map[string]struct{}, len(models.TradeTypes)+len(used))
	trades := make([]string, 0, len(models.TradeTypes)+len(used))
	for _, list := range [][]string{models.TradeTypes, used} {
		for _, trade := range list {
			key := strings.ToLower(trade)
			if _, ok := seen[key]; ok || trade == "" {
				continue
			}
			seen[key] = struct{}{}
			trades = append(trades, trade)
		}
	}
	sort.Strings(trades)
	return trades, nil
}

// TopRatedForUser ranks rated tradesmen the user can see, either added by
// them or shared in one of their groups.
func (s *TradesmanService) TopRatedForUser(ctx context.Context, userID string, limit int) ([]TradesmanSummary, error) {
	ctx = ensureContext(ctx)
	db := s.db.WithContext(ctx)

	own := db.Model(&models.UserTradesman{}).Select("tradesman_id").Where("user_id = ?", userID)
	groups := db.Model(&models.UserGroup{}).Select("group_id").
		Where("user_id = ? AND status IN ?", userID, models.ViewerStatuses())
	shared := db.Model(&models.GroupTradesman{}).Select("tradesman_id").Where("group_id IN (?)", groups)

	var tradesmen []models.Tradesman
	if err := db.Model(&models.Tradesman{}).
		Where("id IN (?) OR id IN (?)", own, shared).
		Find(&tradesmen).Error; err != nil {
		return nil, dbError("tradesman", "list visible tradesmen", err)
	}

	summaries, err := s.summarise(db, tradesmen)
	if err != nil {
		return nil, err
	}

	rated := summaries[:0]
	for _, summary := range summaries {
		if summary.AverageRating != nil {
			rated = append(rated, summary)
		}
	}
	sort.SliceStable(rated, func(i, j int) bool {
		if *rated[i].AverageRating != *rated[j].AverageRating {
			return *rated[i].AverageRating > *rated[j].AverageRating
		}
		return rated[i].JobCount > rated[j].JobCount
	})

	limit = clampLimit(limit, 5, 50)
	if len(rated) > limit {
		rated = rated[:limit]
	}
	return rated, nil
}

// AddedBy lists the users who added the tradesman.
func (s *TradesmanService) AddedBy(ctx context.Context, tradesmanID string) ([]models.User, error) {
	ctx = ensureContext(ctx)

	var users []models.User
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Joins("JOIN user_tradesmen ON user_tradesmen.user_id = users.id").
		Where("user_tradesmen.tradesman_id = ?", tradesmanID).
		Order("user_tradesmen.date_added ASC").
		Find(&users).Error; err != nil {
		return nil, dbError("tradesman", "list owners", err)
	}
	return users, nil
}

type tradesmanStats struct {
	TradesmanID   string
	Jobs          int64
	AverageRating *float64
}

func (s *TradesmanService) summarise(db *gorm.DB, tradesmen []models.Tradesman) ([]TradesmanSummary, error) {
	summaries := make([]TradesmanSummary, 0, len(tradesmen))
	if len(tradesmen) == 0 {
		return summaries, nil
	}

	ids := make([]string, 0, len(tradesmen))
	for _, t := range tradesmen {
		ids = append(ids, t.ID)
	}

	var rows []tradesmanStats
	if err := db.Model(&models.Job{}).
		Select("tradesman_id, COUNT(*) AS jobs, AVG(rating) AS average_rating").
		Where("tradesman_id IN ? AND type = ?", ids, models.TypeJob).
		Group("tradesman_id").
		Scan(&rows).Error; err != nil {
		return nil, dbError("tradesman", "aggregate jobs", err)
	}

	stats := make(map[string]tradesmanStats, len(rows))
	for _, row := range rows {
		stats[row.TradesmanID] = row
	}

	for _, t := range tradesmen {
		row := stats[t.ID]
		summaries = append(summaries, TradesmanSummary{
			Tradesman:     t,
			JobCount:      row.Jobs,
			AverageRating: row.AverageRating,
		})
	}
	return summaries, nil
}
