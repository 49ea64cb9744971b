package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jobeco/fairprice/internal/models"
	"github.com/jobeco/fairprice/pkg/crypto"
	apperrors "github.com/jobeco/fairprice/pkg/errors"
	"github.com/jobeco/fairprice/pkg/logger"
	"github.com/jobeco/fairprice/pkg/mail"
	"github.com/jobeco/fairprice/pkg/metrics"
	"github.com/jobeco/fairprice/pkg/validator"
)

const (
	defaultInvitationExpiry    = 7 * 24 * time.Hour
	defaultInvitationTokenSize = 32
	invitationRetention        = 30 * 24 * time.Hour
)

var (
	// ErrInvitationNotFound covers unknown, expired and already used tokens.
	ErrInvitationNotFound = apperrors.NewNotFound("Invitation")
	// ErrMailNotConfigured is returned when invitations cannot be e-mailed.
	ErrMailNotConfigured = apperrors.NewConfiguration("Email delivery is not configured. Ask an administrator to set up the mail provider.")
)

// InvitationOption customises InvitationService behaviour.
type InvitationOption func(*InvitationService)

// WithInvitationExpiry overrides how long invitations stay valid.
func WithInvitationExpiry(d time.Duration) InvitationOption {
	return func(s *InvitationService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithInvitationClock injects a custom clock primarily for testing.
func WithInvitationClock(clock func() time.Time) InvitationOption {
	return func(s *InvitationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithAppURL sets the public base URL used in invitation links.
func WithAppURL(url string) InvitationOption {
	return func(s *InvitationService) {
		s.appURL = strings.TrimRight(strings.TrimSpace(url), "/")
	}
}

// WithTokenSize adjusts the random token length in bytes.
func WithTokenSize(size int) InvitationOption {
	return func(s *InvitationService) {
		if size > 0 {
			s.tokenSize = size
		}
	}
}

// CreatedInvitation pairs a stored invitation with its raw token. The token
// is only available at creation time.
type CreatedInvitation struct {
	Invitation *models.GroupInvitation `json:"invitation"`
	Token      string                  `json:"-"`
	Link       string                  `json:"link"`
}

// InvitationService issues and redeems e-mailed group invitations.
type InvitationService struct {
	db           *gorm.DB
	auditService *AuditService
	groups       *GroupService
	mailer       mail.Mailer
	appURL       string
	expiry       time.Duration
	tokenSize    int
	now          func() time.Time
}

// NewInvitationService constructs an InvitationService. A nil mailer is
// treated as unconfigured.
func NewInvitationService(db *gorm.DB, auditService *AuditService, groups *GroupService, mailer mail.Mailer, opts ...InvitationOption) (*InvitationService, error) {
	if db == nil {
		return nil, errors.New("invitation service: db is required")
	}
	if groups == nil {
		return nil, errors.New("invitation service: group service is required")
	}
	if mailer == nil {
		mailer = mail.Disabled{}
	}

	svc := &InvitationService{
		db:           db,
		auditService: auditService,
		groups:       groups,
		mailer:       mailer,
		expiry:       defaultInvitationExpiry,
		tokenSize:    defaultInvitationTokenSize,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Configured reports whether invitation e-mails can be sent.
func (s *InvitationService) Configured() bool {
	return s.mailer.IsConfigured()
}

// Create stores a pending invitation issued by a group moderator.
func (s *InvitationService) Create(ctx context.Context, actorID, groupID, email string) (*CreatedInvitation, error) {
	ctx = ensureContext(ctx)

	if err := (validator.Email{Required: true}).Validate("email", email); err != nil {
		return nil, err
	}
	email = normaliseEmail(email)

	if _, err := s.groups.RequireModerator(ctx, actorID, groupID); err != nil {
		return nil, err
	}

	member, err := s.emailIsMember(ctx, groupID, email)
	if err != nil {
		return nil, err
	}
	if member {
		return nil, apperrors.NewDuplicate("This person is already a member of the group").WithField("email")
	}

	token, err := crypto.GenerateToken(s.tokenSize)
	if err != nil {
		return nil, fmt.Errorf("invitation service: generate token: %w", err)
	}

	invitation := &models.GroupInvitation{
		GroupID:   groupID,
		InviterID: actorID,
		Email:     email,
		TokenHash: crypto.HashToken(token),
		Status:    models.InvitationPending,
		ExpiresAt: s.now().UTC().Add(s.expiry),
	}
	if err := s.db.WithContext(ctx).Create(invitation).Error; err != nil {
		return nil, dbError("invitation", "create invitation", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:    actorID,
		Action:     "invitation.create",
		Resource:   "group",
		ResourceID: groupID,
		Metadata:   map[string]any{"invitation_id": invitation.ID, "email": email},
	})

	return &CreatedInvitation{
		Invitation: invitation,
		Token:      token,
		Link:       s.link(token),
	}, nil
}

// Invite checks mail configuration, creates the invitation and e-mails it.
// The boolean reports whether delivery succeeded.
func (s *InvitationService) Invite(ctx context.Context, actorID, groupID, email string) (*CreatedInvitation, bool, error) {
	if !s.Configured() {
		metrics.InvitationsSent.WithLabelValues("unconfigured").Inc()
		return nil, false, ErrMailNotConfigured
	}

	created, err := s.Create(ctx, actorID, groupID, email)
	if err != nil {
		return nil, false, err
	}
	sent, err := s.Send(ctx, created)
	if err != nil {
		return created, false, err
	}
	return created, sent, nil
}

// Send e-mails an invitation. An unconfigured mailer is a ConfigurationError;
// a delivery failure is logged and reported as false.
func (s *InvitationService) Send(ctx context.Context, created *CreatedInvitation) (bool, error) {
	ctx = ensureContext(ctx)

	if created == nil || created.Invitation == nil {
		return false, errors.New("invitation service: invitation is required")
	}
	if !s.Configured() {
		metrics.InvitationsSent.WithLabelValues("unconfigured").Inc()
		return false, ErrMailNotConfigured
	}

	group, err := s.groups.Get(ctx, created.Invitation.GroupID)
	if err != nil {
		return false, err
	}
	inviterName := "A member"
	var inviter models.User
	if err := s.db.WithContext(ctx).Take(&inviter, "id = ?", created.Invitation.InviterID).Error; err == nil {
		if name := inviter.FullName(); name != "" {
			inviterName = name
		}
	}

	msg := invitationMessage(created.Invitation.Email, group.Name, inviterName, created.Link, created.Invitation.ExpiresAt)
	if err := s.mailer.Send(ctx, msg); err != nil {
		metrics.InvitationsSent.WithLabelValues("failed").Inc()
		logger.WithModule("invitations").Warn("failed to send invitation email",
			zap.String("invitation_id", created.Invitation.ID),
			zap.Error(err),
		)
		return false, nil
	}

	metrics.InvitationsSent.WithLabelValues("sent").Inc()
	return true, nil
}

func invitationMessage(to, groupName, inviterName, link string, expires time.Time) mail.Message {
	expiresAt := expires.Format("January 2, 2006 at 3:04 PM MST")

	body := fmt.Sprintf(
		"Hello,\n\n%s has invited you to join the group %q on Fair Price Jobs.\n\n"+
			"Accept the invitation here:\n%s\n\n"+
			"This invitation expires on %s.\n\n"+
			"If you were not expecting this e-mail you can ignore it.\n",
		inviterName, groupName, link, expiresAt,
	)
	htmlBody := fmt.Sprintf(
		"<p>Hello,</p><p>%s has invited you to join the group <strong>%s</strong> on Fair Price Jobs.</p>"+
			"<p><a href=\"%s\">Accept the invitation</a></p>"+
			"<p>This invitation expires on %s.</p>"+
			"<p>If you were not expecting this e-mail you can ignore it.</p>",
		html.EscapeString(inviterName), html.EscapeString(groupName), html.EscapeString(link), html.EscapeString(expiresAt),
	)

	return mail.Message{
		To:      []string{to},
		Subject: "Invitation to join " + groupName,
		Body:    body,
		HTML:    htmlBody,
	}
}

// Resolve returns the pending invitation for a token. An invitation found
// past its expiry is marked expired and reported as not found.
func (s *InvitationService) Resolve(ctx context.Context, token string) (*models.GroupInvitation, error) {
	ctx = ensureContext(ctx)

	invitation, err := s.byToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if invitation.Status != models.InvitationPending {
		return nil, ErrInvitationNotFound
	}
	if invitation.ExpiredAt(s.now()) {
		s.markExpired(ctx, invitation.ID)
		return nil, ErrInvitationNotFound
	}
	return invitation, nil
}

// Accept redeems a token for the user. A user who already belongs to the
// group keeps their membership, and accepting again as the same user
// succeeds without further changes.
func (s *InvitationService) Accept(ctx context.Context, token, userID string) (*models.GroupInvitation, error) {
	ctx = ensureContext(ctx)

	invitation, err := s.byToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if invitation.Status == models.InvitationAccepted && invitation.AcceptedBy != nil && *invitation.AcceptedBy == userID {
		return invitation, nil
	}
	if invitation.Status != models.InvitationPending {
		return nil, ErrInvitationNotFound
	}
	if invitation.ExpiredAt(s.now()) {
		s.markExpired(ctx, invitation.ID)
		return nil, ErrInvitationNotFound
	}

	if err := s.joinFromInvitation(ctx, userID, invitation.GroupID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	res := s.db.WithContext(ctx).Model(&models.GroupInvitation{}).
		Where("id = ? AND status = ?", invitation.ID, models.InvitationPending).
		Updates(map[string]any{
			"status":      models.InvitationAccepted,
			"accepted_at": now,
			"accepted_by": userID,
		})
	if res.Error != nil {
		return nil, dbError("invitation", "mark accepted", res.Error)
	}
	if res.RowsAffected > 0 {
		metrics.MembershipTransitions.WithLabelValues("invite").Inc()
		recordAudit(s.auditService, ctx, AuditEntry{
			ActorID:    userID,
			Action:     "invitation.accept",
			Resource:   "group",
			ResourceID: invitation.GroupID,
			Metadata:   map[string]any{"invitation_id": invitation.ID},
		})
	}

	return s.byID(ctx, invitation.ID)
}

// joinFromInvitation makes the user a member. Existing members are left as
// they are and a pending request is approved.
func (s *InvitationService) joinFromInvitation(ctx context.Context, userID, groupID string) error {
	status, err := s.groups.Membership(ctx, userID, groupID)
	switch {
	case err == nil && status == models.StatusPending:
		return s.db.WithContext(ctx).Model(&models.UserGroup{}).
			Where("user_id = ? AND group_id = ? AND status = ?", userID, groupID, models.StatusPending).
			Update("status", models.StatusMember).Error
	case err == nil:
		return nil
	case !errors.Is(err, ErrMembershipNotFound):
		return err
	}

	err = s.groups.AddMember(ctx, userID, groupID, models.StatusMember)
	if errors.Is(err, apperrors.ErrConflict) {
		return nil
	}
	return err
}

// Cancel withdraws a pending invitation. The inviter and the group's
// moderators may cancel.
func (s *InvitationService) Cancel(ctx context.Context, actorID, invitationID string) error {
	ctx = ensureContext(ctx)

	invitation, err := s.byID(ctx, invitationID)
	if err != nil {
		return err
	}
	if invitation.InviterID != actorID {
		if _, err := s.groups.RequireModerator(ctx, actorID, invitation.GroupID); err != nil {
			return err
		}
	}
	if invitation.Status != models.InvitationPending {
		return ErrInvitationNotFound
	}

	if err := s.db.WithContext(ctx).Model(&models.GroupInvitation{}).
		Where("id = ?", invitation.ID).
		Update("status", models.InvitationExpired).Error; err != nil {
		return dbError("invitation", "cancel invitation", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:    actorID,
		Action:     "invitation.cancel",
		Resource:   "group",
		ResourceID: invitation.GroupID,
		Metadata:   map[string]any{"invitation_id": invitation.ID},
	})
	return nil
}

// PendingForGroup lists live invitations for a group's moderators.
func (s *InvitationService) PendingForGroup(ctx context.Context, actorID, groupID string) ([]models.GroupInvitation, error) {
	ctx = ensureContext(ctx)

	if _, err := s.groups.RequireModerator(ctx, actorID, groupID); err != nil {
		return nil, err
	}

	var invitations []models.GroupInvitation
	if err := s.db.WithContext(ctx).
		Where("group_id = ? AND status = ? AND expires_at > ?", groupID, models.InvitationPending, s.now().UTC()).
		Order("created_at DESC").
		Find(&invitations).Error; err != nil {
		return nil, dbError("invitation", "list pending", err)
	}
	return invitations, nil
}

// PurgeExpired marks lapsed pending invitations expired and deletes
// finished invitations older than the retention window.
func (s *InvitationService) PurgeExpired(ctx context.Context) (expired int64, deleted int64, err error) {
	ctx = ensureContext(ctx)
	now := s.now().UTC()

	res := s.db.WithContext(ctx).Model(&models.GroupInvitation{}).
		Where("status = ? AND expires_at <= ?", models.InvitationPending, now).
		Update("status", models.InvitationExpired)
	if res.Error != nil {
		return 0, 0, dbError("invitation", "expire invitations", res.Error)
	}
	expired = res.RowsAffected

	res = s.db.WithContext(ctx).
		Where("status <> ? AND expires_at < ?", models.InvitationPending, now.Add(-invitationRetention)).
		Delete(&models.GroupInvitation{})
	if res.Error != nil {
		return expired, 0, dbError("invitation", "delete old invitations", res.Error)
	}
	return expired, res.RowsAffected, nil
}

func (s *InvitationService) byToken(ctx context.Context, token string) (*models.GroupInvitation, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvitationNotFound
	}

	var invitation models.GroupInvitation
	err := s.db.WithContext(ctx).Preload("Group").
		Where("token_hash = ?", crypto.HashToken(token)).
		Take(&invitation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, dbError("invitation", "load invitation", err)
	}
	return &invitation, nil
}

func (s *InvitationService) byID(ctx context.Context, id string) (*models.GroupInvitation, error) {
	var invitation models.GroupInvitation
	err := s.db.WithContext(ctx).Preload("Group").Take(&invitation, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, dbError("invitation", "load invitation", err)
	}
	return &invitation, nil
}

func (s *InvitationService) markExpired(ctx context.Context, id string) {
	if err := s.db.WithContext(ctx).Model(&models.GroupInvitation{}).
		Where("id = ? AND status = ?", id, models.InvitationPending).
		Update("status", models.InvitationExpired).Error; err != nil {
		logger.WithModule("invitations").Warn("failed to mark invitation expired",
			zap.String("invitation_id", id),
			zap.Error(err),
		)
	}
}

func (s *InvitationService) emailIsMember(ctx context.Context, groupID, email string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.UserGroup{}).
		Joins("JOIN users ON users.id = user_groups.user_id").
		Where("user_groups.group_id = ? AND user_groups.status IN ? AND users.email = ?", groupID, models.ViewerStatuses(), email).
		Count(&count).Error
	if err != nil {
		return false, dbError("invitation", "check membership", err)
	}
	return count > 0, nil
}

func (s *InvitationService) link(token string) string {
	if s.appURL == "" {
		return "/invitation/" + token
	}
	return s.appURL + "/invitation/" + token
}
