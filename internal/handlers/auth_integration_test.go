package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jobeco/fairprice/internal/handlers/testutil"
)

func TestAuthHandler_RegisterLoginLogout(t *testing.T) {
	env := testutil.NewEnv(t)

	registered := env.RegisterUser("alice", "12345")
	require.Equal(t, "Bearer", registered.TokenType)
	require.Equal(t, "alice@example.com", registered.User.Email)

	login := env.Login("alice", testutil.DefaultPassword)
	require.Equal(t, registered.User.ID, login.User.ID)

	profile := env.Request(http.MethodGet, "/profile", nil, login.AccessToken)
	require.Equal(t, http.StatusOK, profile.Code, profile.Body.String())

	logout := env.Request(http.MethodGet, "/logout", nil, login.AccessToken)
	require.Equal(t, http.StatusOK, logout.Code)

	unauth := env.Request(http.MethodGet, "/profile", nil, "")
	require.Equal(t, http.StatusUnauthorized, unauth.Code)
}

func TestAuthHandler_LoginRejectsBadPassword(t *testing.T) {
	env := testutil.NewEnv(t)
	env.RegisterUser("alice", "12345")

	w := env.Request(http.MethodPost, "/login", map[string]string{
		"username": "alice",
		"password": "wrong-password",
	}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	resp := testutil.DecodeResponse(t, w)
	require.False(t, resp.Success)
	require.Equal(t, "INVALID_CREDENTIALS", resp.Error.Code)
}

func TestAuthHandler_RegisterValidation(t *testing.T) {
	env := testutil.NewEnv(t)
	env.RegisterUser("alice", "12345")

	cases := []struct {
		name    string
		payload map[string]string
		status  int
		field   string
	}{
		{
			name: "duplicate username",
			payload: map[string]string{
				"username": "alice", "firstname": "Alice", "lastname": "Again",
				"email": "other@example.com", "postcode": "12345",
				"password": testutil.DefaultPassword, "confirm_password": testutil.DefaultPassword,
			},
			status: http.StatusConflict,
			field:  "username",
		},
		{
			name: "bad username characters",
			payload: map[string]string{
				"username": "al ice!", "firstname": "Alice", "lastname": "Smith",
				"email": "alice2@example.com", "postcode": "12345",
				"password": testutil.DefaultPassword, "confirm_password": testutil.DefaultPassword,
			},
			status: http.StatusBadRequest,
			field:  "username",
		},
		{
			name: "short password",
			payload: map[string]string{
				"username": "dave", "firstname": "Dave", "lastname": "Smith",
				"email": "dave@example.com", "postcode": "12345",
				"password": "abc", "confirm_password": "abc",
			},
			status: http.StatusBadRequest,
			field:  "password",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.Request(http.MethodPost, "/register", tc.payload, "")
			require.Equal(t, tc.status, w.Code, w.Body.String())
			resp := testutil.DecodeResponse(t, w)
			require.False(t, resp.Success)
			require.Equal(t, tc.field, resp.Error.Field)
		})
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
