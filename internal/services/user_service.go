package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/jobeco/fairprice/internal/models"
	"github.com/jobeco/fairprice/pkg/crypto"
	apperrors "github.com/jobeco/fairprice/pkg/errors"
	"github.com/jobeco/fairprice/pkg/validator"
)

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.NewNotFound("User")
	// ErrUsernameTaken signals a duplicate username at registration.
	ErrUsernameTaken = apperrors.NewDuplicate("Username already exists").WithField("username")
	// ErrEmailTaken signals a duplicate e-mail address.
	ErrEmailTaken = apperrors.NewDuplicate("Email already registered").WithField("email")
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	namePattern     = regexp.MustCompile(`^[\p{L}]+([ '\-][\p{L}]+)*$`)
	postcodePattern = regexp.MustCompile(`^[A-Za-z0-9]+( [A-Za-z0-9]+)*$`)
)

// RegisterInput carries the registration form.
type RegisterInput struct {
	Username        string
	FirstName       string
	LastName        string
	Email           string
	Postcode        string
	Password        string
	ConfirmPassword string
}

// ProfileInput lists the fields a user may edit on their profile.
type ProfileInput struct {
	FirstName string
	LastName  string
	Email     string
	Postcode  string
}

// UserStats summarises a user's activity.
type UserStats struct {
	Tradesmen int64 `json:"tradesmen"`
	Groups    int64 `json:"groups"`
	Jobs      int64 `json:"jobs"`
	Quotes    int64 `json:"quotes"`
}

// UserOption customises a UserService.
type UserOption func(*UserService)

// WithPasswordMinLength overrides the minimum password length.
func WithPasswordMinLength(n int) UserOption {
	return func(s *UserService) {
		if n > 0 {
			s.passwordMin = n
		}
	}
}

// WithBcryptCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) UserOption {
	return func(s *UserService) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

// UserService manages registration, authentication and profiles.
type UserService struct {
	db           *gorm.DB
	auditService *AuditService
	passwordMin  int
	bcryptCost   int
	now          func() time.Time
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB, auditService *AuditService, opts ...UserOption) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	svc := &UserService{
		db:           db,
		auditService: auditService,
		passwordMin:  validator.DefaultPasswordMinLength,
		bcryptCost:   bcrypt.DefaultCost,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// PasswordMinLength reports the configured minimum.
func (s *UserService) PasswordMinLength() int { return s.passwordMin }

func (s *UserService) validateRegistration(in RegisterInput) error {
	return validator.Fields(
		validator.Check{Field: "username", Value: in.Username, Rule: validator.String{
			Required: true, Min: 3, Max: 50, Pattern: usernamePattern,
			PatternMessage: "may only contain letters, numbers and underscores",
		}},
		validator.Check{Field: "firstname", Value: in.FirstName, Rule: validator.String{
			Required: true, Max: 100, Pattern: namePattern, PatternMessage: "may only contain letters",
		}},
		validator.Check{Field: "lastname", Value: in.LastName, Rule: validator.String{
			Required: true, Max: 100, Pattern: namePattern, PatternMessage: "may only contain letters",
		}},
		validator.Check{Field: "email", Value: in.Email, Rule: validator.Email{Required: true}},
		validator.Check{Field: "postcode", Value: in.Postcode, Rule: validator.String{
			Required: true, Max: 10, Pattern: postcodePattern, PatternMessage: "may only contain letters and numbers",
		}},
		validator.Check{Field: "password", Value: in.Password, Rule: validator.Password{Min: s.passwordMin}},
	)
}

// Register validates the form and creates a user with a hashed password.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	if err := s.validateRegistration(in); err != nil {
		return nil, err
	}
	if in.Password != in.ConfirmPassword {
		return nil, apperrors.NewValidation("confirm_password", "Passwords do not match")
	}

	username := strings.TrimSpace(in.Username)
	email := normaliseEmail(in.Email)

	if taken, err := s.exists(ctx, "username = ?", username); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrUsernameTaken
	}
	if taken, err := s.exists(ctx, "email = ?", email); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrEmailTaken
	}

	hashed, err := crypto.HashPasswordWithCost(in.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := &models.User{
		Username:  username,
		Email:     email,
		Password:  hashed,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Postcode:  normalisePostcode(in.Postcode),
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewDuplicate("Username or email already exists")
		}
		return nil, dbError("user", "create user", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:    user.ID,
		Username:   user.Username,
		Action:     "user.register",
		Resource:   "user",
		ResourceID: user.ID,
	})

	return user, nil
}

// Authenticate checks credentials and stamps the login time.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	ctx = ensureContext(ctx)

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.NewValidation("username", "Username and password are required")
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, dbError("user", "load user", err)
	}

	if !crypto.VerifyPassword(user.Password, password) {
		recordAudit(s.auditService, ctx, AuditEntry{
			ActorID:  user.ID,
			Username: user.Username,
			Action:   "user.login",
			Resource: "user",
			Result:   "failure",
		})
		return nil, apperrors.ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		return nil, dbError("user", "record login", err)
	}
	user.LastLoginAt = &now

	return &user, nil
}

// GetByID loads a user.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.findOne(ensureContext(ctx), "id = ?", id)
}

// GetByUsername loads a user by username.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findOne(ensureContext(ctx), "username = ?", strings.TrimSpace(username))
}

// GetByEmail loads a user by e-mail address.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ensureContext(ctx), "email = ?", normaliseEmail(email))
}

// UpdateProfile edits names, e-mail and postcode.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	err := validator.Fields(
		validator.Check{Field: "firstname", Value: in.FirstName, Rule: validator.String{
			Required: true, Max: 100, Pattern: namePattern, PatternMessage: "may only contain letters",
		}},
		validator.Check{Field: "lastname", Value: in.LastName, Rule: validator.String{
			Required: true, Max: 100, Pattern: namePattern, PatternMessage: "may only contain letters",
		}},
		validator.Check{Field: "email", Value: in.Email, Rule: validator.Email{Required: true}},
		validator.Check{Field: "postcode", Value: in.Postcode, Rule: validator.String{
			Required: true, Max: 10, Pattern: postcodePattern, PatternMessage: "may only contain letters and numbers",
		}},
	)
	if err != nil {
		return nil, err
	}

	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	email := normaliseEmail(in.Email)
	if email != user.Email {
		if taken, err := s.exists(ctx, "email = ? AND id <> ?", email, user.ID); err != nil {
			return nil, err
		} else if taken {
			return nil, ErrEmailTaken
		}
	}

	updates := map[string]any{
		"first_name": strings.TrimSpace(in.FirstName),
		"last_name":  strings.TrimSpace(in.LastName),
		"email":      email,
		"postcode":   normalisePostcode(in.Postcode),
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrEmailTaken
		}
		return nil, dbError("user", "update profile", err)
	}

	return s.GetByID(ctx, user.ID)
}

// ChangePassword replaces the password after checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next, confirm string) error {
	ctx = ensureContext(ctx)

	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !crypto.VerifyPassword(user.Password, current) {
		return apperrors.NewValidation("current_password", "Current password is incorrect")
	}
	if err := (validator.Password{Min: s.passwordMin}).Validate("new_password", next); err != nil {
		return err
	}
	if next != confirm {
		return apperrors.NewValidation("confirm_password", "Passwords do not match")
	}

	hashed, err := crypto.HashPasswordWithCost(next, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("user service: hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password", hashed).Error; err != nil {
		return dbError("user", "update password", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:    user.ID,
		Username:   user.Username,
		Action:     "user.password_change",
		Resource:   "user",
		ResourceID: user.ID,
	})
	return nil
}

// Stats counts the user's tradesmen, non-pending groups, jobs and quotes.
func (s *UserService) Stats(ctx context.Context, userID string) (UserStats, error) {
	ctx = ensureContext(ctx)
	db := s.db.WithContext(ctx)

	var stats UserStats
	if err := db.Model(&models.UserTradesman{}).Where("user_id = ?", userID).Count(&stats.Tradesmen).Error; err != nil {
		return stats, dbError("user", "count tradesmen", err)
	}
	if err := db.Model(&models.UserGroup{}).
		Where("user_id = ? AND status IN ?", userID, models.ViewerStatuses()).
		Count(&stats.Groups).Error; err != nil {
		return stats, dbError("user", "count groups", err)
	}
	if err := db.Model(&models.Job{}).Where("user_id = ? AND type = ?", userID, models.TypeJob).Count(&stats.Jobs).Error; err != nil {
		return stats, dbError("user", "count jobs", err)
	}
	if err := db.Model(&models.Job{}).Where("user_id = ? AND type = ?", userID, models.TypeQuote).Count(&stats.Quotes).Error; err != nil {
		return stats, dbError("user", "count quotes", err)
	}
	return stats, nil
}

// Delete removes the account; join rows and jobs cascade.
func (s *UserService) Delete(ctx context.Context, userID string) error {
	ctx = ensureContext(ctx)

	res := s.db.WithContext(ctx).Delete(&models.User{}, "id = ?", userID)
	if res.Error != nil {
		return dbError("user", "delete user", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:    userID,
		Action:     "user.delete",
		Resource:   "user",
		ResourceID: userID,
	})
	return nil
}

func (s *UserService) findOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where(query, args...).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, dbError("user", "load user", err)
	}
	return &user, nil
}

func (s *UserService) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where(query, args...).Count(&count).Error; err != nil {
		return false, dbError("user", "check existing user", err)
	}
	return count > 0, nil
}
