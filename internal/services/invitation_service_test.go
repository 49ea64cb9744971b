package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jobeco/fairprice/internal/models"
	"github.com/jobeco/fairprice/pkg/crypto"
	apperrors "github.com/jobeco/fairprice/pkg/errors"
)

func (e *serviceEnv) invitationRows(t *testing.T, groupID string) []models.GroupInvitation {
	t.Helper()

	var rows []models.GroupInvitation
	require.NoError(t, e.db.Where("group_id = ?", groupID).Find(&rows).Error)
	return rows
}

func TestInvitationServiceInviteSendsLink(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	alice := env.mustUser(t, "alice")
	group := env.mustGroup(t, alice.ID, "Street Group", "12345")

	created, sent, err := env.invitations.Invite(ctx, alice.ID, group.ID, " Dave@Example.com ")
	require.NoError(t, err)
	require.True(t, sent)
	require.NotEmpty(t, created.Token)
	require.Equal(t, "https://fairprice.test/invitation/"+created.Token, created.Link)
	require.Equal(t, "dave@example.com", created.Invitation.Email)
	require.Equal(t, models.InvitationPending, created.Invitation.Status)
	require.True(t, env.clock.Now().Add(7*24*time.Hour).Equal(created.Invitation.ExpiresAt))

	rows := env.invitationRows(t, group.ID)
	require.Len(t, rows, 1)
	require.Equal(t, crypto.HashToken(created.Token), rows[0].TokenHash)
	require.NotEqual(t, created.Token, rows[0].TokenHash)

	require.Len(t, env.mailer.sent, 1)
	msg := env.mailer.sent[0]
	require.Equal(t, []string{"dave@example.com"}, msg.To)
	require.Equal(t, "Invitation to join Street Group", msg.Subject)
	require.Contains(t, msg.Body, created.Link)
	require.Contains(t, msg.Body, "Test User")
	require.Contains(t, msg.HTML, created.Link)
}

func TestInvitationServiceOnlyModeratorsInvite(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	alice := env.mustUser(t, "alice")
	bob := env.mustUser(t, "bob")
	group := env.mustGroup(t, alice.ID, "Street Group", "12345")
	env.mustMember(t, alice.ID, bob.ID, group.ID)

	_, err := env.invitations.Create(ctx, bob.ID, group.ID, "dave@example.com")
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = env.invitations.Create(ctx, alice.ID, group.ID, "not-an-email")
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = env.invitations.Create(ctx, alice.ID, group.ID, "BOB@example.com")
	require.ErrorIs(t, err, apperrors.ErrConflict)
	require.Equal(t, "email", apperrors.FromError(err).Field)

	require.Empty(t, env.invitationRows(t, group.ID))
}

func TestInvitationServiceUnconfiguredMailCreatesNothing(t *testing.T) {
	env := newServiceEnv(t)
	env.mailer.configured = false
	ctx := context.Background()

	alice := env.mustUser(t, "alice")
	group := env.mustGroup(t, alice.ID, "Street Group", "12345")

	require.False(t, env.invitations.Configured())
	_, _, err := env.invitations.Invite(ctx, alice.ID, group.ID, "dave@example.com")
	require.ErrorIs(t, err, apperrors.ErrConfiguration)
	require.Empty(t, env.invitationRows(t, group.ID))
}

func TestInvitationServiceDeliveryFailureKeepsInvitation(t *testing.T) {
	env := newServiceEnv(t)
	env.mailer.err = errors.New("smtp unavailable")
	ctx := context.Background()

	alice := env.mustUser(t, "alice")
	group := env.mustGroup(t, alice.ID, "Street Group", "12345")

	created, sent, err := env.invitations.Invite(ctx, alice.ID, group.ID, "dave@example.com")
	require.NoError(t, err)
	require.False(t, sent)
	require.NotNil(t, created)
	require.Len(t, env.invitationRows(t, group.ID), 1)
}

func TestInvitationServiceAcceptIsIdempotent(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	alice := env.mustUser(t, "alice")
	dave := env.mustUser(t, "dave")
	carol := env.mustUser(t, "carol")
	group := env.mustGroup(t, alice.ID, "Street Group", "12345")

	created, err := env.invitations.Create(ctx, alice.ID, group.ID, dave.Email)
	require.NoError(t, err)

	resolved, err := env.invitations.Resolve(ctx, created.Token)
	require.NoError(t, err)
	require.Equal(t, created.Invitation.ID, resolved.ID)
	require.NotNil(t, resolved.Group)
	require.Equal(t, "Street Group", resolved.Group.Name)

	accepted, err := env.invitations.Accept(ctx, created.Token, dave.ID)
	require.NoError(t, err)
	require.Equal(t, models.InvitationAccepted, accepted.Status)
	require.NotNil(t, accepted.AcceptedBy)
	require.Equal(t, dave.ID, *accepted.AcceptedBy)

	again, err := env.invitations.Accept(ctx, created.Token, dave.ID)
	require.NoError(t, err)
	require.NotNil(t, again.AcceptedAt)
	require.True(t, accepted.AcceptedAt.Equal(*again.AcceptedAt))

	status, err := env.groups.Membership(ctx, dave.ID, group.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusMember, status)
	require.Equal(t, int64(1), env.membershipRows(t, dave.ID, group.ID))

	_, err = env.invitations.Accept(ctx, created.Token, carol.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = env.invitations.Resolve(ctx, created.Token)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	page, err := env.audit.List(ctx, AuditListOptions{Filters: AuditFilters{Action: "invitation.accept"}})
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)
	require.Len(t, page.Entries, 1)
}

func TestInvitationServiceAcceptApprovesPendingRequest(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	alice := env.mustUser(t, "alice")
	carol := env.mustUser(t, "carol")
	group := env.mustGroup(t, alice.ID, "Street Group", "12345")

	_, err := env.groups.RequestJoin(ctx, carol.ID, group.ID)
	require.NoError(t, err)

	created, err := env.invitations.Create(ctx, alice.ID, group.ID, carol.Email)
	require.NoError(t, err)
	_, err = env.invitations.Accept(ctx, created.Token, carol.ID)
	require.NoError(t, err)

	status, err := env.groups.Membership(ctx, carol.ID, group.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusMember, status)
	require.Equal(t, int64(1), env.membershipRows(t, carol.ID, group.ID))
}

func TestInvitationServiceExpiry(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	alice := env.mustUser(t, "alice")
	dave := env.mustUser(t, "dave")
	group := env.mustGroup(t, alice.ID, "Street Group", "12345")

	created, err := env.invitations.Create(ctx, alice.ID, group.ID, dave.Email)
	require.NoError(t, err)

	env.clock.Advance(7*24*time.Hour + time.Second)

	_, err = env.invitations.Resolve(ctx, created.Token)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = env.invitations.Accept(ctx, created.Token, dave.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	rows := env.invitationRows(t, group.ID)
	require.Len(t, rows, 1)
	require.Equal(t, models.InvitationExpired, rows[0].Status)
	require.Equal(t, int64(0), env.membershipRows(t, dave.ID, group.ID))

	_, err = env.invitations.Resolve(ctx, "unknown-token")
	require.ErrorIs(t, err, ErrInvitationNotFound)
}

func TestInvitationServiceCancel(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	alice := env.mustUser(t, "alice")
	bob := env.mustUser(t, "bob")
	group := env.mustGroup(t, alice.ID, "Street Group", "12345")
	env.mustMember(t, alice.ID, bob.ID, group.ID)

	created, err := env.invitations.Create(ctx, alice.ID, group.ID, "dave@example.com")
	require.NoError(t, err)

	pending, err := env.invitations.PendingForGroup(ctx, alice.ID, group.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	_, err = env.invitations.PendingForGroup(ctx, bob.ID, group.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	require.ErrorIs(t, env.invitations.Cancel(ctx, bob.ID, created.Invitation.ID), apperrors.ErrForbidden)
	require.NoError(t, env.invitations.Cancel(ctx, alice.ID, created.Invitation.ID))
	require.ErrorIs(t, env.invitations.Cancel(ctx, alice.ID, created.Invitation.ID), apperrors.ErrNotFound)

	_, err = env.invitations.Resolve(ctx, created.Token)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	pending, err = env.invitations.PendingForGroup(ctx, alice.ID, group.ID)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestInvitationServicePurgeExpired(t *testing.T) {
	env := newServiceEnv(t, WithInvitationExpiry(24*time.Hour))
	ctx := context.Background()

	alice := env.mustUser(t, "alice")
	group := env.mustGroup(t, alice.ID, "Street Group", "12345")

	_, err := env.invitations.Create(ctx, alice.ID, group.ID, "dave@example.com")
	require.NoError(t, err)

	expired, deleted, err := env.invitations.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, expired)
	require.Zero(t, deleted)

	env.clock.Advance(48 * time.Hour)
	expired, deleted, err = env.invitations.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), expired)
	require.Zero(t, deleted)

	env.clock.Advance(31 * 24 * time.Hour)
	expired, deleted, err = env.invitations.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, expired)
	require.Equal(t, int64(1), deleted)
	require.Empty(t, env.invitationRows(t, group.ID))
}

func TestInvitationMessageEscapesHTML(t *testing.T) {
	expires := time.Date(2025, 3, 8, 9, 0, 0, 0, time.UTC)
	msg := invitationMessage("dave@example.com", "<Oak & Ash>", "Alice", "https://fairprice.test/invitation/abc", expires)

	require.Equal(t, "Invitation to join <Oak & Ash>", msg.Subject)
	require.Contains(t, msg.HTML, "&lt;Oak &amp; Ash&gt;")
	require.False(t, strings.Contains(msg.HTML, "<Oak"))
	require.Contains(t, msg.Body, "March 8, 2025")
}
