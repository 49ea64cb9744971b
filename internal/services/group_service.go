package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jobeco/fairprice/internal/models"
	apperrors "github.com/jobeco/fairprice/pkg/errors"
	"github.com/jobeco/fairprice/pkg/logger"
	"github.com/jobeco/fairprice/pkg/metrics"
	"github.com/jobeco/fairprice/pkg/validator"
)

var (
	// ErrGroupNotFound indicates the requested group does not exist.
	ErrGroupNotFound = apperrors.NewNotFound("Group")
	// ErrMembershipNotFound indicates the user holds no status in the group.
	ErrMembershipNotFound = apperrors.NewNotFound("Membership")
	// ErrJoinRequestNotFound indicates there is no pending request to act on.
	ErrJoinRequestNotFound = apperrors.NewNotFound("Join request")
	// ErrJoinAlreadyPending is returned for a repeated join request.
	ErrJoinAlreadyPending = apperrors.NewDuplicate("Your request to join this group is already pending")
	// ErrAlreadyMember is returned when the user already belongs to the group.
	ErrAlreadyMember = apperrors.NewDuplicate("You are already a member of this group")
)

// GroupInput carries the editable group fields.
type GroupInput struct {
	Name        string
	Postcode    string
	Description string
}

// GroupSummary is a group as seen by one of its users.
type GroupSummary struct {
	Group       models.Group            `json:"group"`
	Status      models.MembershipStatus `json:"status"`
	MemberCount int64                   `json:"member_count"`
	JobCount    int64                   `json:"job_count"`
}

// MemberView is a membership row joined with its user.
type MemberView struct {
	UserID    string                  `json:"user_id"`
	Username  string                  `json:"username"`
	FirstName string                  `json:"firstname"`
	LastName  string                  `json:"lastname"`
	Status    models.MembershipStatus `json:"status"`
	Since     time.Time               `json:"since"`
}

// JoinRequest is a pending membership awaiting moderation.
type JoinRequest struct {
	GroupID     string    `json:"group_id"`
	GroupName   string    `json:"group_name"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	FirstName   string    `json:"firstname"`
	LastName    string    `json:"lastname"`
	RequestedAt time.Time `json:"requested_at"`
}

// GroupService owns groups, the membership state machine and tradesman
// propagation into groups.
type GroupService struct {
	db           *gorm.DB
	auditService *AuditService
}

// NewGroupService constructs a GroupService instance.
func NewGroupService(db *gorm.DB, auditService *AuditService) (*GroupService, error) {
	if db == nil {
		return nil, errors.New("group service: db is required")
	}
	return &GroupService{db: db, auditService: auditService}, nil
}

func validateGroupInput(in GroupInput) error {
	return validator.Fields(
		validator.Check{Field: "name", Value: in.Name, Rule: validator.String{Required: true, Min: 2, Max: 100}},
		validator.Check{Field: "postcode", Value: in.Postcode, Rule: validator.String{
			Required: true, Max: 10, Pattern: postcodePattern, PatternMessage: "may only contain letters and numbers",
		}},
		validator.Check{Field: "description", Value: in.Description, Rule: validator.String{Max: 500}},
	)
}

// CreateWithCreator inserts the group and the creator's membership in one
// transaction, then links the creator's tradesmen to the new group. It
// returns the number of tradesmen propagated.
func (s *GroupService) CreateWithCreator(ctx context.Context, creatorID string, in GroupInput) (*models.Group, int, error) {
	ctx = ensureContext(ctx)

	if err := validateGroupInput(in); err != nil {
		return nil, 0, err
	}

	group := &models.Group{
		Name:        strings.TrimSpace(in.Name),
		Postcode:    normalisePostcode(in.Postcode),
		Description: strings.TrimSpace(in.Description),
		CreatedBy:   creatorID,
	}

	var propagated int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(group).Error; err != nil {
			return fmt.Errorf("create group: %w", err)
		}
		membership := &models.UserGroup{
			UserID:  creatorID,
			GroupID: group.ID,
			Status:  models.StatusCreator,
		}
		if err := tx.Create(membership).Error; err != nil {
			return fmt.Errorf("add creator: %w", err)
		}
		n, err := propagateTradesmen(tx, creatorID, group.ID)
		if err != nil {
			return err
		}
		propagated = n
		return nil
	})
	if err != nil {
		s.removeOrphan(ctx, group.ID)
		if isForeignKeyError(err) {
			return nil, 0, ErrUserNotFound
		}
		return nil, 0, dbError("group", "create group with creator", err)
	}

	metrics.MembershipTransitions.WithLabelValues("create").Inc()
	metrics.TradesmenPropagated.Add(float64(propagated))

	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:    creatorID,
		Action:     "group.create",
		Resource:   "group",
		ResourceID: group.ID,
		Metadata:   map[string]any{"name": group.Name, "propagated": propagated},
	})

	return group, propagated, nil
}

// removeOrphan deletes a group left behind by a failed creation.
func (s *GroupService) removeOrphan(ctx context.Context, groupID string) {
	if groupID == "" {
		return
	}
	if err := s.db.WithContext(ctx).Delete(&models.Group{}, "id = ?", groupID).Error; err != nil {
		logger.WithModule("groups").Error("failed to remove orphaned group",
			zap.String("group_id", groupID),
			zap.Error(err),
		)
	}
}

// RequestJoin records a pending membership and propagates the requester's
// tradesmen into the group. A second request for the same pair fails with
// DuplicateResource.
func (s *GroupService) RequestJoin(ctx context.Context, userID, groupID string) (int, error) {
	ctx = ensureContext(ctx)

	var propagated int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group models.Group
		if err := tx.Select("id").Take(&group, "id = ?", groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroupNotFound
			}
			return fmt.Errorf("load group: %w", err)
		}

		var existing models.UserGroup
		err := tx.Where("user_id = ? AND group_id = ?", userID, groupID).Take(&existing).Error
		switch {
		case err == nil:
			if existing.Status == models.StatusPending {
				return ErrJoinAlreadyPending
			}
			return ErrAlreadyMember
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("load membership: %w", err)
		}

		membership := &models.UserGroup{UserID: userID, GroupID: groupID, Status: models.StatusPending}
		if err := tx.Create(membership).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrJoinAlreadyPending
			}
			if isForeignKeyError(err) {
				return ErrUserNotFound
			}
			return fmt.Errorf("create membership: %w", err)
		}

		n, err := propagateTradesmen(tx, userID, groupID)
		if err != nil {
			return err
		}
		propagated = n
		return nil
	})
	if err != nil {
		return 0, dbError("group", "request join", err)
	}

	metrics.MembershipTransitions.WithLabelValues("request").Inc()
	metrics.TradesmenPropagated.Add(float64(propagated))

	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:    userID,
		Action:     "group.join_request",
		Resource:   "group",
		ResourceID: groupID,
		Metadata:   map[string]any{"propagated": propagated},
	})

	return propagated, nil
}

// Accept moves a pending membership to member. The row is updated in place.
func (s *GroupService) Accept(ctx context.Context, actorID, groupID, userID string) error {
	ctx = ensureContext(ctx)

	if _, err := s.RequireModerator(ctx, actorID, groupID); err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Model(&models.UserGroup{}).
		Where("user_id = ? AND group_id = ? AND status = ?", userID, groupID, models.StatusPending).
		Update("status", models.StatusMember)
	if res.Error != nil {
		return dbError("group", "accept request", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrJoinRequestNotFound
	}

	metrics.MembershipTransitions.WithLabelValues("accept").Inc()
	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:    actorID,
		Action:     "group.accept",
		Resource:   "group",
		ResourceID: groupID,
		Metadata:   map[string]any{"user_id": userID},
	})
	return nil
}

// Reject deletes a pending membership.
func (s *GroupService) Reject(ctx context.Context, actorID, groupID, userID string) error {
	ctx = ensureContext(ctx)

	if _, err := s.RequireModerator(ctx, actorID, groupID); err != nil {
		return err
	}

	res := s.db.WithContext(ctx).
		Where("user_id = ? AND group_id = ? AND status = ?", userID, groupID, models.StatusPending).
		Delete(&models.UserGroup{})
	if res.Error != nil {
		return dbError("group", "reject request", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrJoinRequestNotFound
	}

	metrics.MembershipTransitions.WithLabelValues("reject").Inc()
	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:    actorID,
		Action:     "group.reject",
		Resource:   "group",
		ResourceID: groupID,
		Metadata:   map[string]any{"user_id": userID},
	})
	return nil
}

// HandleRequest dispatches an "accept" or "reject" action.
func (s *GroupService) HandleRequest(ctx context.Context, actorID, groupID, userID, action string) error {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "accept":
		return s.Accept(ctx, actorID, groupID, userID)
	case "reject":
		return s.Reject(ctx, actorID, groupID, userID)
	default:
		return apperrors.NewValidation("action", "Action must be accept or reject")
	}
}

// AddMember inserts a membership with the given status. It never updates an
// existing row.
func (s *GroupService) AddMember(ctx context.Context, userID, groupID string, status models.MembershipStatus) error {
	ctx = ensureContext(ctx)

	if !status.Valid() {
		return apperrors.NewValidation("status", "Unknown membership status")
	}

	membership := &models.UserGroup{UserID: userID, GroupID: groupID, Status: status}
	if err := s.db.WithContext(ctx).Create(membership).Error; err != nil {
		if isUniqueConstraintError(err) {
			return apperrors.NewDuplicate("User is already a member of this group")
		}
		if isForeignKeyError(err) {
			return ErrGroupNotFound
		}
		return dbError("group", "add member", err)
	}
	return nil
}

// PromoteToAdmin raises a member to admin.
func (s *GroupService) PromoteToAdmin(ctx context.Context, actorID, groupID, userID string) error {
	ctx = ensureContext(ctx)

	if _, err := s.RequireModerator(ctx, actorID, groupID); err != nil {
		return err
	}

	status, err := s.Membership(ctx, userID, groupID)
	if err != nil {
		return err
	}
	switch status {
	case models.StatusPending:
		return apperrors.NewBadRequest("Pending requests must be accepted before promotion")
	case models.StatusAdmin, models.StatusCreator:
		return apperrors.NewDuplicate("User is already an administrator of this group")
	}

	if err := s.setStatus(ctx, userID, groupID, models.StatusAdmin); err != nil {
		return err
	}

	metrics.MembershipTransitions.WithLabelValues("promote").Inc()
	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:    actorID,
		Action:     "group.promote",
		Resource:   "group",
		ResourceID: groupID,
		Metadata:   map[string]any{"user_id": userID},
	})
	return nil
}

// RemoveMember deletes another user's membership. The creator cannot be
// removed and only the creator may remove an admin.
func (s *GroupService) RemoveMember(ctx context.Context, actorID, groupID, userID string) error {
	ctx = ensureContext(ctx)

	actorStatus, err := s.RequireModerator(ctx, actorID, groupID)
	if err != nil {
		return err
	}

	status, err := s.Membership(ctx, userID, groupID)
	if err != nil {
		return err
	}
	if status == models.StatusCreator {
		return apperrors.NewAuthorization("The group creator cannot be removed")
	}
	if status == models.StatusAdmin && actorStatus != models.StatusCreator {
		return apperrors.NewAuthorization("Only the group creator can remove an admin")
	}

	if err := s.deleteMembership(ctx, userID, groupID); err != nil {
		return err
	}

	metrics.MembershipTransitions.WithLabelValues("remove").Inc()
	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:    actorID,
		Action:     "group.remove_member",
		Resource:   "group",
		ResourceID: groupID,
		Metadata:   map[string]any{"user_id": userID},
	})
	return nil
}

// Leave deletes the caller's own membership. Pending requests may be
// withdrawn this way too.
func (s *GroupService) Leave(ctx context.Context, userID, groupID string) error {
	ctx = ensureContext(ctx)

	status, err := s.Membership(ctx, userID, groupID)
	if err != nil {
		return err
	}
	if status == models.StatusCreator {
		return apperrors.NewBadRequest("The group creator cannot leave; delete the group instead")
	}

	if err := s.deleteMembership(ctx, userID, groupID); err != nil {
		return err
	}

	metrics.MembershipTransitions.WithLabelValues("leave").Inc()
	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:    userID,
		Action:     "group.leave",
		Resource:   "group",
		ResourceID: groupID,
	})
	return nil
}

// PropagateTradesmen links every tradesman the user added to the group,
// skipping links that already exist. It returns the number of new links.
func (s *GroupService) PropagateTradesmen(ctx context.Context, userID, groupID string) (int, error) {
	ctx = ensureContext(ctx)

	n, err := propagateTradesmen(s.db.WithContext(ctx), userID, groupID)
	if err != nil {
		return 0, dbError("group", "propagate tradesmen", err)
	}
	metrics.TradesmenPropagated.Add(float64(n))
	return n, nil
}

func propagateTradesmen(tx *gorm.DB, userID, groupID string) (int, error) {
	var tradesmanIDs []string
	if err := tx.Model(&models.UserTradesman{}).
		Where("user_id = ?", userID).
		Pluck("tradesman_id", &tradesmanIDs).Error; err != nil {
		return 0, fmt.Errorf("list user tradesmen: %w", err)
	}
	if len(tradesmanIDs) == 0 {
		return 0, nil
	}

	links := make([]models.GroupTradesman, 0, len(tradesmanIDs))
	for _, id := range tradesmanIDs {
		links = append(links, models.GroupTradesman{GroupID: groupID, TradesmanID: id})
	}

	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&links)
	if res.Error != nil {
		return 0, fmt.Errorf("link tradesmen: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// Membership returns the user's status in the group.
func (s *GroupService) Membership(ctx context.Context, userID, groupID string) (models.MembershipStatus, error) {
	ctx = ensureContext(ctx)

	var membership models.UserGroup
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND group_id = ?", userID, groupID).
		Take(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrMembershipNotFound
	}
	if err != nil {
		return "", dbError("group", "load membership", err)
	}
	return membership.Status, nil
}

// RequireViewer ensures the user is a member, admin or creator of the group.
func (s *GroupService) RequireViewer(ctx context.Context, userID, groupID string) (models.MembershipStatus, error) {
	status, err := s.requireStatus(ctx, userID, groupID)
	if err != nil {
		return "", err
	}
	if !status.CanView() {
		return status, apperrors.NewAuthorization("You must be a member of this group")
	}
	return status, nil
}

// RequireModerator ensures the user is an admin or the creator of the group.
func (s *GroupService) RequireModerator(ctx context.Context, userID, groupID string) (models.MembershipStatus, error) {
	status, err := s.requireStatus(ctx, userID, groupID)
	if err != nil {
		return "", err
	}
	if !status.CanModerate() {
		return status, apperrors.NewAuthorization("Only group admins can perform this action")
	}
	return status, nil
}

func (s *GroupService) requireStatus(ctx context.Context, userID, groupID string) (models.MembershipStatus, error) {
	ctx = ensureContext(ctx)

	status, err := s.Membership(ctx, userID, groupID)
	if err == nil {
		return status, nil
	}
	if !errors.Is(err, ErrMembershipNotFound) {
		return "", err
	}
	if _, gerr := s.Get(ctx, groupID); gerr != nil {
		return "", gerr
	}
	return "", apperrors.NewAuthorization("You must be a member of this group")
}

// Get loads a group.
func (s *GroupService) Get(ctx context.Context, groupID string) (*models.Group, error) {
	ctx = ensureContext(ctx)

	var group models.Group
	err := s.db.WithContext(ctx).Take(&group, "id = ?", groupID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, dbError("group", "load group", err)
	}
	return &group, nil
}

// Update edits a group; admins and the creator may do so.
func (s *GroupService) Update(ctx context.Context, actorID, groupID string, in GroupInput) (*models.Group, error) {
	ctx = ensureContext(ctx)

	if err := validateGroupInput(in); err != nil {
		return nil, err
	}
	if _, err := s.RequireModerator(ctx, actorID, groupID); err != nil {
		return nil, err
	}

	updates := map[string]any{
		"name":        strings.TrimSpace(in.Name),
		"postcode":    normalisePostcode(in.Postcode),
		"description": strings.TrimSpace(in.Description),
	}
	if err := s.db.WithContext(ctx).Model(&models.Group{}).Where("id = ?", groupID).Updates(updates).Error; err != nil {
		return nil, dbError("group", "update group", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:    actorID,
		Action:     "group.update",
		Resource:   "group",
		ResourceID: groupID,
		Metadata:   updates,
	})

	return s.Get(ctx, groupID)
}

// Delete removes a group; only its creator may do so. Memberships,
// tradesman links and invitations cascade.
func (s *GroupService) Delete(ctx context.Context, actorID, groupID string) error {
	ctx = ensureContext(ctx)

	status, err := s.requireStatus(ctx, actorID, groupID)
	if err != nil {
		return err
	}
	if status != models.StatusCreator {
		return apperrors.NewAuthorization("Only the group creator can delete the group")
	}

	if err := s.db.WithContext(ctx).Delete(&models.Group{}, "id = ?", groupID).Error; err != nil {
		return dbError("group", "delete group", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:    actorID,
		Action:     "group.delete",
		Resource:   "group",
		ResourceID: groupID,
	})
	return nil
}

// Search matches groups by name or postcode.
func (s *GroupService) Search(ctx context.Context, term string, limit int) ([]models.Group, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Group{})
	if strings.TrimSpace(term) != "" {
		pattern := likePattern(term)
		query = query.Where("LOWER(name) LIKE ? ESCAPE '!' OR LOWER(postcode) LIKE ? ESCAPE '!'", pattern, pattern)
	}

	var groups []models.Group
	if err := query.Order("name ASC").Limit(clampLimit(limit, 50, 200)).Find(&groups).Error; err != nil {
		return nil, dbError("group", "search groups", err)
	}
	return groups, nil
}

// ListForUser returns every group the user has a status in, including
// pending requests, with member and job counts.
func (s *GroupService) ListForUser(ctx context.Context, userID string) ([]GroupSummary, error) {
	ctx = ensureContext(ctx)
	db := s.db.WithContext(ctx)

	var memberships []models.UserGroup
	if err := db.Preload("Group").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&memberships).Error; err != nil {
		return nil, dbError("group", "list memberships", err)
	}
	if len(memberships) == 0 {
		return []GroupSummary{}, nil
	}

	ids := make([]string, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.GroupID)
	}

	members, err := s.countMembers(db, ids)
	if err != nil {
		return nil, err
	}
	jobs, err := s.countJobs(db, ids)
	if err != nil {
		return nil, err
	}

	summaries := make([]GroupSummary, 0, len(memberships))
	for _, m := range memberships {
		if m.Group == nil {
			continue
		}
		summaries = append(summaries, GroupSummary{
			Group:       *m.Group,
			Status:      m.Status,
			MemberCount: members[m.GroupID],
			JobCount:    jobs[m.GroupID],
		})
	}
	return summaries, nil
}

type groupCount struct {
	GroupID string
	Total   int64
}

func (s *GroupService) countMembers(db *gorm.DB, groupIDs []string) (map[string]int64, error) {
	var rows []groupCount
	if err := db.Model(&models.UserGroup{}).
		Select("group_id, COUNT(*) AS total").
		Where("group_id IN ? AND status IN ?", groupIDs, models.ViewerStatuses()).
		Group("group_id").
		Scan(&rows).Error; err != nil {
		return nil, dbError("group", "count members", err)
	}
	return countsByGroup(rows), nil
}

func (s *GroupService) countJobs(db *gorm.DB, groupIDs []string) (map[string]int64, error) {
	var rows []groupCount
	if err := db.Model(&models.Job{}).
		Select("group_tradesmen.group_id AS group_id, COUNT(*) AS total").
		Joins("JOIN group_tradesmen ON group_tradesmen.tradesman_id = jobs.tradesman_id").
		Where("group_tradesmen.group_id IN ? AND jobs.type = ?", groupIDs, models.TypeJob).
		Group("group_tradesmen.group_id").
		Scan(&rows).Error; err != nil {
		return nil, dbError("group", "count jobs", err)
	}
	return countsByGroup(rows), nil
}

func countsByGroup(rows []groupCount) map[string]int64 {
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.GroupID] = row.Total
	}
	return out
}

var statusRank = map[models.MembershipStatus]int{
	models.StatusCreator: 0,
	models.StatusAdmin:   1,
	models.StatusMember:  2,
	models.StatusPending: 3,
}

// Members lists non-pending memberships, creator first.
func (s *GroupService) Members(ctx context.Context, groupID string) ([]MemberView, error) {
	ctx = ensureContext(ctx)

	var memberships []models.UserGroup
	if err := s.db.WithContext(ctx).Preload("User").
		Where("group_id = ? AND status IN ?", groupID, models.ViewerStatuses()).
		Find(&memberships).Error; err != nil {
		return nil, dbError("group", "list members", err)
	}

	views := make([]MemberView, 0, len(memberships))
	for _, m := range memberships {
		view := MemberView{UserID: m.UserID, Status: m.Status, Since: m.CreatedAt}
		if m.User != nil {
			view.Username = m.User.Username
			view.FirstName = m.User.FirstName
			view.LastName = m.User.LastName
		}
		views = append(views, view)
	}
	sort.SliceStable(views, func(i, j int) bool {
		if statusRank[views[i].Status] != statusRank[views[j].Status] {
			return statusRank[views[i].Status] < statusRank[views[j].Status]
		}
		return views[i].Username < views[j].Username
	})
	return views, nil
}

// PendingRequests lists the group's pending requests for a moderator.
func (s *GroupService) PendingRequests(ctx context.Context, actorID, groupID string) ([]JoinRequest, error) {
	ctx = ensureContext(ctx)

	if _, err := s.RequireModerator(ctx, actorID, groupID); err != nil {
		return nil, err
	}
	return s.pending(s.db.WithContext(ctx).Where("user_groups.group_id = ?", groupID))
}

// PendingRequestsForModerator lists pending requests across every group the
// user administers.
func (s *GroupService) PendingRequestsForModerator(ctx context.Context, userID string) ([]JoinRequest, error) {
	ctx = ensureContext(ctx)
	db := s.db.WithContext(ctx)

	moderated := db.Model(&models.UserGroup{}).
		Select("group_id").
		Where("user_id = ? AND status IN ?", userID, models.ModeratorStatuses())
	return s.pending(db.Where("user_groups.group_id IN (?)", moderated))
}

func (s *GroupService) pending(scope *gorm.DB) ([]JoinRequest, error) {
	var memberships []models.UserGroup
	if err := scope.Preload("User").Preload("Group").
		Where("user_groups.status = ?", models.StatusPending).
		Order("user_groups.created_at ASC").
		Find(&memberships).Error; err != nil {
		return nil, dbError("group", "list pending requests", err)
	}

	requests := make([]JoinRequest, 0, len(memberships))
	for _, m := range memberships {
		req := JoinRequest{GroupID: m.GroupID, UserID: m.UserID, RequestedAt: m.CreatedAt}
		if m.Group != nil {
			req.GroupName = m.Group.Name
		}
		if m.User != nil {
			req.Username = m.User.Username
			req.FirstName = m.User.FirstName
			req.LastName = m.User.LastName
		}
		requests = append(requests, req)
	}
	return requests, nil
}

// MemberCount counts non-pending members.
func (s *GroupService) MemberCount(ctx context.Context, groupID string) (int64, error) {
	ctx = ensureContext(ctx)

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.UserGroup{}).
		Where("group_id = ? AND status IN ?", groupID, models.ViewerStatuses()).
		Count(&count).Error; err != nil {
		return 0, dbError("group", "count members", err)
	}
	return count, nil
}

// JobCount counts jobs logged against tradesmen visible in the group.
func (s *GroupService) JobCount(ctx context.Context, groupID string) (int64, error) {
	counts, err := s.countJobs(s.db.WithContext(ensureContext(ctx)), []string{groupID})
	if err != nil {
		return 0, err
	}
	return counts[groupID], nil
}

// Creator returns the user holding the creator status.
func (s *GroupService) Creator(ctx context.Context, groupID string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var membership models.UserGroup
	err := s.db.WithContext(ctx).Preload("User").
		Where("group_id = ? AND status = ?", groupID, models.StatusCreator).
		Take(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, dbError("group", "load creator", err)
	}
	if membership.User == nil {
		return nil, ErrUserNotFound
	}
	return membership.User, nil
}

func (s *GroupService) setStatus(ctx context.Context, userID, groupID string, status models.MembershipStatus) error {
	res := s.db.WithContext(ctx).Model(&models.UserGroup{}).
		Where("user_id = ? AND group_id = ?", userID, groupID).
		Update("status", status)
	if res.Error != nil {
		return dbError("group", "update membership", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrMembershipNotFound
	}
	return nil
}

func (s *GroupService) deleteMembership(ctx context.Context, userID, groupID string) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND group_id = ?", userID, groupID).
		Delete(&models.UserGroup{})
	if res.Error != nil {
		return dbError("group", "delete membership", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrMembershipNotFound
	}
	return nil
}
