package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jobeco/fairprice/internal/api"
	"github.com/jobeco/fairprice/internal/app"
	iauth "github.com/jobeco/fairprice/internal/auth"
	sharedtestutil "github.com/jobeco/fairprice/internal/database/testutil"
	"github.com/jobeco/fairprice/pkg/mail"
	"github.com/jobeco/fairprice/pkg/response"
)

// DefaultPassword is accepted by the registration rules.
const DefaultPassword = "correct-horse-battery"

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T         *testing.T
	DB        *gorm.DB
	Router    *gin.Engine
	JWT       *iauth.JWTService
	Mailer    *RecordingMailer
	UploadDir string
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	jwtSecret := "test-suite-super-secret-key-32-bytes!!"
	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         jwtSecret,
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	uploadDir := t.TempDir()
	cfg := &app.Config{
		Server: app.ServerConfig{Environment: app.EnvDevelopment, MaxBodySize: 8 << 20},
		Auth: app.AuthConfig{
			JWT:               app.JWTSettings{Secret: jwtSecret, Issuer: "test-suite", TokenTTL: time.Hour},
			PasswordMinLength: 6,
			LoginRateLimit:    app.RateLimitConfig{Requests: 100, Window: time.Minute},
		},
		App:         app.AppConfig{URL: "http://fairprice.test"},
		Invitations: app.InvitationConfig{Expiry: 7 * 24 * time.Hour},
		Uploads: app.UploadConfig{
			Backend:           app.UploadBackendLocal,
			Dir:               uploadDir,
			MaxSize:           1 << 20,
			AllowedExtensions: []string{"pdf", "png", "txt"},
		},
	}

	uploads, err := cfg.Uploads.NewUploadService(context.Background())
	require.NoError(t, err)

	mailer := &RecordingMailer{}
	router, err := api.NewRouter(db, jwtSvc, cfg, api.Options{
		Mailer:  mailer,
		Uploads: uploads,
	})
	require.NoError(t, err)

	return &Env{
		T:         t,
		DB:        db,
		Router:    router,
		JWT:       jwtSvc,
		Mailer:    mailer,
		UploadDir: uploadDir,
	}
}

// RecordingMailer keeps every message instead of delivering it. Setting Fail
// makes Send return that error.
type RecordingMailer struct {
	mu       sync.Mutex
	messages []mail.Message
	Fail     error
}

func (m *RecordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *RecordingMailer) IsConfigured() bool { return true }

// Messages returns a copy of the recorded messages.
func (m *RecordingMailer) Messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.messages...)
}

var invitationLinkPattern = regexp.MustCompile(`/invitation/([^\s"<]+)`)

// LastInvitationToken extracts the token from the most recent invitation e-mail.
func (m *RecordingMailer) LastInvitationToken() (string, error) {
	msgs := m.Messages()
	if len(msgs) == 0 {
		return "", errors.New("no messages recorded")
	}
	match := invitationLinkPattern.FindStringSubmatch(msgs[len(msgs)-1].Body)
	if match == nil {
		return "", errors.New("no invitation link in message body")
	}
	return match[1], nil
}

// UserPayload captures the subset of user fields returned from auth endpoints.
type UserPayload struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Postcode  string `json:"postcode"`
}

// TokenResult mirrors the register and login response payload.
type TokenResult struct {
	AccessToken   string      `json:"access_token"`
	TokenType     string      `json:"token_type"`
	ExpiresAt     time.Time   `json:"expires_at"`
	User          UserPayload `json:"user"`
	JoinedGroupID string      `json:"joined_group_id"`
}

// RegisterUser creates an account through POST /register and returns the issued token.
func (e *Env) RegisterUser(username, postcode string) TokenResult {
	e.T.Helper()
	return e.RegisterWithInvitation(username, username+"@example.com", postcode, "")
}

// RegisterWithInvitation registers an account, optionally redeeming an invitation token.
func (e *Env) RegisterWithInvitation(username, email, postcode, invitationToken string) TokenResult {
	e.T.Helper()

	payload := map[string]string{
		"username":         username,
		"firstname":        "Test",
		"lastname":         "User",
		"email":            email,
		"postcode":         postcode,
		"password":         DefaultPassword,
		"confirm_password": DefaultPassword,
	}
	if invitationToken != "" {
		payload["invitation_token"] = invitationToken
	}

	w := e.Request(http.MethodPost, "/register", payload, "")
	require.Equal(e.T, http.StatusCreated, w.Code, w.Body.String())

	var result TokenResult
	DecodeInto(e.T, DecodeResponse(e.T, w).Data, &result)
	require.NotEmpty(e.T, result.AccessToken)
	require.Equal(e.T, username, result.User.Username)
	return result
}

// Login authenticates and returns the issued token.
func (e *Env) Login(username, password string) TokenResult {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	var result TokenResult
	DecodeInto(e.T, DecodeResponse(e.T, w).Data, &result)
	require.NotEmpty(e.T, result.AccessToken)
	return result
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.serve(req, token)
}

// MultipartFile is one file part of a multipart request.
type MultipartFile struct {
	Field    string
	Filename string
	Content  []byte
}

// Multipart posts form fields plus optional files as multipart/form-data.
func (e *Env) Multipart(path string, fields map[string]string, file *MultipartFile, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(e.T, writer.WriteField(key, value))
	}
	if file != nil {
		part, err := writer.CreateFormFile(file.Field, file.Filename)
		require.NoError(e.T, err)
		_, err = part.Write(file.Content)
		require.NoError(e.T, err)
	}
	require.NoError(e.T, writer.Close())

	req, err := http.NewRequest(http.MethodPost, path, &buf)
	require.NoError(e.T, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return e.serve(req, token)
}

func (e *Env) serve(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

var _ mail.Mailer = (*RecordingMailer)(nil)
