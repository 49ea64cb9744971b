package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jobeco/fairprice/internal/models"
	apperrors "github.com/jobeco/fairprice/pkg/errors"
)

func TestGroupServiceCreateAssignsCreator(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	alice, err := env.users.Register(ctx, RegisterInput{
		Username:        "alice",
		FirstName:       "Alice",
		LastName:        "Smith",
		Email:           "alice@example.com",
		Postcode:        "12345",
		Password:        "password123",
		ConfirmPassword: "password123",
	})
	require.NoError(t, err)

	group, propagated, err := env.groups.CreateWithCreator(ctx, alice.ID, GroupInput{Name: "Street Group", Postcode: "12345"})
	require.NoError(t, err)
	require.Zero(t, propagated)

	status, err := env.groups.Membership(ctx, alice.ID, group.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCreator, status)

	count, err := env.groups.MemberCount(ctx, group.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	creator, err := env.groups.Creator(ctx, group.ID)
	require.NoError(t, err)
	require.Equal(t, alice.ID, creator.ID)
}

func TestGroupServiceCreatePropagatesCreatorTradesmen(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	alice := env.mustUser(t, "alice")
	bob := env.mustTradesman(t, alice.ID, "Bob", "Builder", "Builder")

	group, propagated, err := env.groups.CreateWithCreator(ctx, alice.ID, GroupInput{Name: "G2", Postcode: "12345"})
	require.NoError(t, err)
	require.Equal(t, 1, propagated)

	listed, err := env.tradesmen.ListForGroup(ctx, alice.ID, group.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, bob.ID, listed[0].Tradesman.ID)
	require.Equal(t, "Bob Builder", listed[0].Tradesman.DisplayName())
}

func TestGroupServiceCreateValidatesInput(t *testing.T) {
	env := newServiceEnv(t)
	alice := env.mustUser(t, "alice")

	_, _, err := env.groups.CreateWithCreator(context.Background(), alice.ID, GroupInput{Name: "", Postcode: "12345"})
	require.Equal(t, "name", apperrors.FromError(err).Field)

	_, _, err = env.groups.CreateWithCreator(context.Background(), alice.ID, GroupInput{Name: "Street", Postcode: "12-345"})
	require.Equal(t, "postcode", apperrors.FromError(err).Field)
}

func TestGroupServiceCreateLeavesNoOrphanForUnknownCreator(t *testing.T) {
	env := newServiceEnv(t)

	_, _, err := env.groups.CreateWithCreator(context.Background(), "missing-user", GroupInput{Name: "Orphan", Postcode: "12345"})
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	var groups int64
	require.NoError(t, env.db.Model(&models.Group{}).Count(&groups).Error)
	require.Zero(t, groups)
}

func TestGroupServiceCreateLeavesNoOrphanWhenMembershipInsertFails(t *testing.T) {
	env := newServiceEnv(t)
	alice := env.mustUser(t, "alice")

	require.NoError(t, env.db.Callback().Create().Before("gorm:create").Register("test:fail_membership", func(tx *gorm.DB) {
		if tx.Statement.Table == "user_groups" {
			_ = tx.AddError(errors.New("membership insert failed"))
		}
	}))

	_, _, err := env.groups.CreateWithCreator(context.Background(), alice.ID, GroupInput{Name: "Doomed", Postcode: "12345"})
	require.ErrorIs(t, err, apperrors.ErrDatabase)

	var groups int64
	require.NoError(t, env.db.Model(&models.Group{}).Count(&groups).Error)
	require.Zero(t, groups)
}

func TestGroupServiceRepeatJoinRequestIsRejected(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	alice := env.mustUser(t, "alice")
	bob := env.mustUser(t, "bob")
	group := env.mustGroup(t, alice.ID, "Street Group", "12345")

	_, err := env.groups.RequestJoin(ctx, bob.ID, group.ID)
	require.NoError(t, err)

	status, err := env.groups.Membership(ctx, bob.ID, group.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, status)

	_, err = env.groups.RequestJoin(ctx, bob.ID, group.ID)
	require.ErrorIs(t, err, apperrors.ErrConflict)
	require.Contains(t, err.Error(), "already pending")
	require.Equal(t, int64(1), env.membershipRows(t, bob.ID, group.ID))

	_, err = env.groups.RequestJoin(ctx, alice.ID, group.ID)
	require.ErrorIs(t, err, apperrors.ErrConflict)
	require.Contains(t, err.Error(), "already a member")
}

func TestGroupServiceJoinRequestUnknownGroup(t *testing.T) {
	env := newServiceEnv(t)
	bob := env.mustUser(t, "bob")

	_, err := env.groups.RequestJoin(context.Background(), bob.ID, "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	require.Equal(t, int64(0), env.membershipRows(t, bob.ID, "missing"))
}

func TestGroupServiceJoinRequestPropagatesTradesmen(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	alice := env.mustUser(t, "alice")
	bob := env.mustUser(t, "bob")
	group := env.mustGroup(t, alice.ID, "Street Group", "12345")

	env.mustTradesman(t, bob.ID, "Pat", "Plumber", "Plumber")
	env.mustTradesman(t, bob.ID, "Eve", "Sparks", "Electrician")

	propagated, err := env.groups.RequestJoin(ctx, bob.ID, group.ID)
	require.NoError(t, err)
	require.Equal(t, 2, propagated)

	again, err := env.groups.PropagateTradesmen(ctx, bob.ID, group.ID)
	require.NoError(t, err)
	require.Zero(t, again)

	var links int64
	require.NoError(t, env.db.Model(&models.GroupTradesman{}).Where("group_id = ?", group.ID).Count(&links).Error)
	require.Equal(t, int64(2), links)
}

func TestGroupServiceAcceptAndReject(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	alice := env.mustUser(t, "alice")
	bob := env.mustUser(t, "bob")
	carol := env.mustUser(t, "carol")
	group := env.mustGroup(t, alice.ID, "Street Group", "12345")

	_, err := env.groups.RequestJoin(ctx, bob.ID, group.ID)
	require.NoError(t, err)
	_, err = env.groups.RequestJoin(ctx, carol.ID, group.ID)
	require.NoError(t, err)

	require.NoError(t, env.groups.HandleRequest(ctx, alice.ID, group.ID, bob.ID, "accept"))
	status, err := env.groups.Membership(ctx, bob.ID, group.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusMember, status)
	require.Equal(t, int64(1), env.membershipRows(t, bob.ID, group.ID))

	require.NoError(t, env.groups.HandleRequest(ctx, alice.ID, group.ID, carol.ID, "reject"))
	require.Equal(t, int64(0), env.membershipRows(t, carol.ID, group.ID))

	require.ErrorIs(t, env.groups.Accept(ctx, alice.ID, group.ID, bob.ID), apperrors.ErrNotFound)

	err = env.groups.HandleRequest(ctx, alice.ID, group.ID, bob.ID, "ignore")
	require.Equal(t, "action", apperrors.FromError(err).Field)
}

func TestGroupServiceOnlyModeratorsHandleRequests(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	alice := env.mustUser(t, "alice")
	bob := env.mustUser(t, "bob")
	carol := env.mustUser(t, "carol")
	group := env.mustGroup(t, alice.ID, "Street Group", "12345")

	env.mustMember(t, alice.ID, bob.ID, group.ID)
	_, err := env.groups.RequestJoin(ctx, carol.ID, group.ID)
	require.NoError(t, err)

	require.ErrorIs(t, env.groups.Accept(ctx, bob.ID, group.ID, carol.ID), apperrors.ErrForbidden)
	require.ErrorIs(t, env.groups.Accept(ctx, carol.ID, group.ID, carol.ID), apperrors.ErrForbidden)

	require.NoError(t, env.groups.PromoteToAdmin(ctx, alice.ID, group.ID, bob.ID))
	require.NoError(t, env.groups.Accept(ctx, bob.ID, group.ID, carol.ID))

	_, err = env.groups.RequireModerator(ctx, bob.ID, "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGroupServiceRemoveAndLeave(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	alice := env.mustUser(t, "alice")
	bob := env.mustUser(t, "bob")
	carol := env.mustUser(t, "carol")
	dave := env.mustUser(t, "dave")
	group := env.mustGroup(t, alice.ID, "Street Group", "12345")

	env.mustMember(t, alice.ID, bob.ID, group.ID)
	env.mustMember(t, alice.ID, carol.ID, group.ID)
	env.mustMember(t, alice.ID, dave.ID, group.ID)
	require.NoError(t, env.groups.PromoteToAdmin(ctx, alice.ID, group.ID, bob.ID))
	require.NoError(t, env.groups.PromoteToAdmin(ctx, alice.ID, group.ID, carol.ID))

	require.ErrorIs(t, env.groups.RemoveMember(ctx, bob.ID, group.ID, alice.ID), apperrors.ErrForbidden)
	require.ErrorIs(t, env.groups.RemoveMember(ctx, bob.ID, group.ID, carol.ID), apperrors.ErrForbidden)
	require.NoError(t, env.groups.RemoveMember(ctx, bob.ID, group.ID, dave.ID))
	require.NoError(t, env.groups.RemoveMember(ctx, alice.ID, group.ID, carol.ID))

	require.ErrorIs(t, env.groups.Leave(ctx, alice.ID, group.ID), apperrors.ErrBadRequest)
	require.NoError(t, env.groups.Leave(ctx, bob.ID, group.ID))

	members, err := env.groups.Members(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, alice.ID, members[0].UserID)
}

func TestGroupServiceMembersOrderedByRole(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	alice := env.mustUser(t, "alice")
	bob := env.mustUser(t, "bob")
	carol := env.mustUser(t, "carol")
	dave := env.mustUser(t, "dave")
	group := env.mustGroup(t, alice.ID, "Street Group", "12345")

	env.mustMember(t, alice.ID, bob.ID, group.ID)
	env.mustMember(t, alice.ID, carol.ID, group.ID)
	require.NoError(t, env.groups.PromoteToAdmin(ctx, alice.ID, group.ID, carol.ID))
	_, err := env.groups.RequestJoin(ctx, dave.ID, group.ID)
	require.NoError(t, err)

	members, err := env.groups.Members(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, members, 3)
	require.Equal(t, []models.MembershipStatus{models.StatusCreator, models.StatusAdmin, models.StatusMember},
		[]models.MembershipStatus{members[0].Status, members[1].Status, members[2].Status})
}

func TestGroupServicePendingRequestsForModerator(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	alice := env.mustUser(t, "alice")
	bob := env.mustUser(t, "bob")
	carol := env.mustUser(t, "carol")
	first := env.mustGroup(t, alice.ID, "First", "12345")
	second := env.mustGroup(t, alice.ID, "Second", "12345")
	other := env.mustGroup(t, carol.ID, "Other", "12345")

	for _, groupID := range []string{first.ID, second.ID, other.ID} {
		_, err := env.groups.RequestJoin(ctx, bob.ID, groupID)
		require.NoError(t, err)
	}

	requests, err := env.groups.PendingRequestsForModerator(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, requests, 2)
	for _, req := range requests {
		require.Equal(t, "bob", req.Username)
		require.NotEqual(t, other.ID, req.GroupID)
	}

	single, err := env.groups.PendingRequests(ctx, alice.ID, first.ID)
	require.NoError(t, err)
	require.Len(t, single, 1)
	require.Equal(t, "First", single[0].GroupName)

	_, err = env.groups.PendingRequests(ctx, bob.ID, first.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestGroupServiceListForUserCounts(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	alice := env.mustUser(t, "alice")
	bob := env.mustUser(t, "bob")
	tradesman := env.mustTradesman(t, alice.ID, "Bob", "Builder", "Builder")
	group := env.mustGroup(t, alice.ID, "Street Group", "12345")
	env.mustMember(t, alice.ID, bob.ID, group.ID)

	_, err := env.jobs.CreateJob(ctx, alice.ID, tradesman.ID, JobInput{Title: "Wall"})
	require.NoError(t, err)
	_, err = env.jobs.CreateQuote(ctx, alice.ID, tradesman.ID, QuoteInput{Title: "Roof"})
	require.NoError(t, err)

	summaries, err := env.groups.ListForUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, models.StatusCreator, summaries[0].Status)
	require.Equal(t, int64(2), summaries[0].MemberCount)
	require.Equal(t, int64(1), summaries[0].JobCount)

	jobs, err := env.groups.JobCount(ctx, group.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), jobs)
}

func TestGroupServiceUpdateDeleteAndSearch(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	alice := env.mustUser(t, "alice")
	bob := env.mustUser(t, "bob")
	group := env.mustGroup(t, alice.ID, "Street Group", "12345")
	env.mustGroup(t, alice.ID, "Park Lane", "99999")
	env.mustMember(t, alice.ID, bob.ID, group.ID)

	_, err := env.groups.Update(ctx, bob.ID, group.ID, GroupInput{Name: "Renamed", Postcode: "12345"})
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	updated, err := env.groups.Update(ctx, alice.ID, group.ID, GroupInput{Name: "Main Street", Postcode: "12345", Description: "Neighbours"})
	require.NoError(t, err)
	require.Equal(t, "Main Street", updated.Name)

	found, err := env.groups.Search(ctx, "street", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)

	found, err = env.groups.Search(ctx, "999", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "Park Lane", found[0].Name)

	require.NoError(t, env.groups.PromoteToAdmin(ctx, alice.ID, group.ID, bob.ID))
	require.ErrorIs(t, env.groups.Delete(ctx, bob.ID, group.ID), apperrors.ErrForbidden)
	require.NoError(t, env.groups.Delete(ctx, alice.ID, group.ID))

	_, err = env.groups.Get(ctx, group.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	require.Equal(t, int64(0), env.membershipRows(t, bob.ID, group.ID))
}

func TestGroupServiceAddMemberIsInsertOnly(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	alice := env.mustUser(t, "alice")
	bob := env.mustUser(t, "bob")
	group := env.mustGroup(t, alice.ID, "Street Group", "12345")

	require.NoError(t, env.groups.AddMember(ctx, bob.ID, group.ID, models.StatusMember))
	require.ErrorIs(t, env.groups.AddMember(ctx, bob.ID, group.ID, models.StatusAdmin), apperrors.ErrConflict)

	status, err := env.groups.Membership(ctx, bob.ID, group.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusMember, status)

	err = env.groups.AddMember(ctx, bob.ID, group.ID, models.MembershipStatus("owner"))
	require.Equal(t, apperrors.CodeValidation, apperrors.FromError(err).Code)
}
