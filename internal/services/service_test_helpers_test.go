package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/jobeco/fairprice/internal/database/testutil"
	"github.com/jobeco/fairprice/internal/models"
	"github.com/jobeco/fairprice/pkg/mail"
)

type serviceEnv struct {
	db          *gorm.DB
	audit       *AuditService
	users       *UserService
	groups      *GroupService
	tradesmen   *TradesmanService
	jobs        *JobService
	invitations *InvitationService
	mailer      *fakeMailer
	clock       *testClock
}

func newServiceEnv(t *testing.T, opts ...InvitationOption) *serviceEnv {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	audit, err := NewAuditService(db)
	require.NoError(t, err)
	users, err := NewUserService(db, audit, WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)
	groups, err := NewGroupService(db, audit)
	require.NoError(t, err)
	tradesmen, err := NewTradesmanService(db, audit, groups)
	require.NoError(t, err)
	jobs, err := NewJobService(db, audit, groups)
	require.NoError(t, err)

	clock := &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	mailer := &fakeMailer{configured: true}
	invitationOpts := append([]InvitationOption{
		WithInvitationClock(clock.Now),
		WithAppURL("https://fairprice.test/"),
	}, opts...)
	invitations, err := NewInvitationService(db, audit, groups, mailer, invitationOpts...)
	require.NoError(t, err)

	return &serviceEnv{
		db:          db,
		audit:       audit,
		users:       users,
		groups:      groups,
		tradesmen:   tradesmen,
		jobs:        jobs,
		invitations: invitations,
		mailer:      mailer,
		clock:       clock,
	}
}

func (e *serviceEnv) mustUser(t *testing.T, username string) *models.User {
	t.Helper()

	user, err := e.users.Register(context.Background(), RegisterInput{
		Username:        username,
		FirstName:       "Test",
		LastName:        "User",
		Email:           username + "@example.com",
		Postcode:        "AB1 2CD",
		Password:        "password123",
		ConfirmPassword: "password123",
	})
	require.NoError(t, err)
	return user
}

func (e *serviceEnv) mustTradesman(t *testing.T, ownerID, first, family, trade string) *models.Tradesman {
	t.Helper()

	tradesman, err := e.tradesmen.Create(context.Background(), ownerID, TradesmanInput{
		Trade:      trade,
		FirstName:  first,
		FamilyName: family,
		Postcode:   "AB1 2CD",
	})
	require.NoError(t, err)
	return tradesman
}

func (e *serviceEnv) mustGroup(t *testing.T, creatorID, name, postcode string) *models.Group {
	t.Helper()

	group, _, err := e.groups.CreateWithCreator(context.Background(), creatorID, GroupInput{Name: name, Postcode: postcode})
	require.NoError(t, err)
	return group
}

// mustMember puts the user in the group with member status via request and accept.
func (e *serviceEnv) mustMember(t *testing.T, moderatorID, userID, groupID string) {
	t.Helper()

	ctx := context.Background()
	_, err := e.groups.RequestJoin(ctx, userID, groupID)
	require.NoError(t, err)
	require.NoError(t, e.groups.Accept(ctx, moderatorID, groupID, userID))
}

func (e *serviceEnv) membershipRows(t *testing.T, userID, groupID string) int64 {
	t.Helper()

	var count int64
	require.NoError(t, e.db.Model(&models.UserGroup{}).
		Where("user_id = ? AND group_id = ?", userID, groupID).
		Count(&count).Error)
	return count
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeMailer struct {
	configured bool
	err        error
	sent       []mail.Message
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	if !m.configured {
		return mail.ErrNotConfigured
	}
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) IsConfigured() bool { return m.configured }

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }
