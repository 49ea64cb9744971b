package handlers_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jobeco/fairprice/internal/handlers/testutil"
	"github.com/jobeco/fairprice/internal/models"
)

type invitePayload struct {
	Invitation struct {
		ID     string `json:"id"`
		Email  string `json:"email"`
		Status string `json:"status"`
	} `json:"invitation"`
	Sent bool   `json:"sent"`
	Link string `json:"link"`
}

type resolvePayload struct {
	Accepted bool   `json:"accepted"`
	Email    string `json:"email"`
	Redirect string `json:"redirect"`
	GroupID  string `json:"group_id"`
}

func invite(t *testing.T, env *testutil.Env, token, groupID, email string) invitePayload {
	t.Helper()
	w := env.Request(http.MethodPost, "/groups/"+groupID+"/invitations", map[string]string{"email": email}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var out invitePayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &out)
	return out
}

func TestInvitationHandler_AnonymousRegistrationJoinsGroup(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.RegisterUser("alice", "12345")
	group := createGroup(t, env, alice.AccessToken, "Street Group", "12345")

	sent := invite(t, env, alice.AccessToken, group.Group.ID, "dora@example.com")
	require.True(t, sent.Sent)
	require.Empty(t, sent.Link)
	require.Equal(t, "dora@example.com", sent.Invitation.Email)

	messages := env.Mailer.Messages()
	require.Len(t, messages, 1)
	require.Equal(t, []string{"dora@example.com"}, messages[0].To)

	token, err := env.Mailer.LastInvitationToken()
	require.NoError(t, err)

	w := env.Request(http.MethodGet, "/invitation/"+token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resolved resolvePayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &resolved)
	require.False(t, resolved.Accepted)
	require.Equal(t, "dora@example.com", resolved.Email)
	require.Contains(t, resolved.Redirect, "/register?invitation_token=")

	dora := env.RegisterWithInvitation("dora", "dora@example.com", "12345", token)
	require.Equal(t, group.Group.ID, dora.JoinedGroupID)

	rows := membershipRows(t, env, dora.User.ID, group.Group.ID)
	require.Len(t, rows, 1)
	require.Equal(t, models.StatusMember, rows[0].Status)
}

func TestInvitationHandler_LoggedInAcceptIsIdempotent(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.RegisterUser("alice", "12345")
	bob := env.RegisterUser("bob", "12345")
	group := createGroup(t, env, alice.AccessToken, "Street Group", "12345")

	invite(t, env, alice.AccessToken, group.Group.ID, "bob@example.com")
	token, err := env.Mailer.LastInvitationToken()
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		w := env.Request(http.MethodGet, "/invitation/"+token, nil, bob.AccessToken)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resolved resolvePayload
		testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &resolved)
		require.True(t, resolved.Accepted)
		require.Equal(t, group.Group.ID, resolved.GroupID)
		require.Equal(t, "/view_group/"+group.Group.ID, resolved.Redirect)
	}

	require.Len(t, membershipRows(t, env, bob.User.ID, group.Group.ID), 1)

	var invitation models.GroupInvitation
	require.NoError(t, env.DB.Where("group_id = ?", group.Group.ID).First(&invitation).Error)
	require.Equal(t, models.InvitationAccepted, invitation.Status)
	require.NotNil(t, invitation.AcceptedBy)
	require.Equal(t, bob.User.ID, *invitation.AcceptedBy)
}

func TestInvitationHandler_FailedDeliveryReturnsLink(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.RegisterUser("alice", "12345")
	group := createGroup(t, env, alice.AccessToken, "Street Group", "12345")

	env.Mailer.Fail = errors.New("smtp down")
	out := invite(t, env, alice.AccessToken, group.Group.ID, "erin@example.com")
	require.False(t, out.Sent)
	require.Contains(t, out.Link, "http://fairprice.test/invitation/")
}

func TestInvitationHandler_OnlyModeratorsInviteAndCancel(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.RegisterUser("alice", "12345")
	bob := env.RegisterUser("bob", "12345")
	group := createGroup(t, env, alice.AccessToken, "Street Group", "12345")

	denied := env.Request(http.MethodPost, "/groups/"+group.Group.ID+"/invitations", map[string]string{"email": "x@example.com"}, bob.AccessToken)
	require.Equal(t, http.StatusForbidden, denied.Code, denied.Body.String())

	created := invite(t, env, alice.AccessToken, group.Group.ID, "frank@example.com")

	pending := env.Request(http.MethodGet, "/groups/"+group.Group.ID+"/invitations", nil, alice.AccessToken)
	require.Equal(t, http.StatusOK, pending.Code, pending.Body.String())
	var list []struct {
		ID string `json:"id"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, pending).Data, &list)
	require.Len(t, list, 1)

	cancelDenied := env.Request(http.MethodDelete, "/invitations/"+created.Invitation.ID, nil, bob.AccessToken)
	require.Equal(t, http.StatusForbidden, cancelDenied.Code, cancelDenied.Body.String())

	cancel := env.Request(http.MethodDelete, "/invitations/"+created.Invitation.ID, nil, alice.AccessToken)
	require.Equal(t, http.StatusOK, cancel.Code, cancel.Body.String())

	token, err := env.Mailer.LastInvitationToken()
	require.NoError(t, err)
	gone := env.Request(http.MethodGet, "/invitation/"+token, nil, "")
	require.Equal(t, http.StatusNotFound, gone.Code, gone.Body.String())
}
