package handlers_test

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jobeco/fairprice/internal/handlers/testutil"
	"github.com/jobeco/fairprice/internal/models"
)

type jobPayload struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Status      string   `json:"status"`
	Title       string   `json:"title"`
	HoursWorked *float64 `json:"hours_worked"`
	TotalCost   *float64 `json:"total_cost"`
	TotalQuote  *float64 `json:"total_quote"`
	Rating      *int     `json:"rating"`
	Attachment  string   `json:"attachment"`
}

func addTradesman(t *testing.T, env *testutil.Env, token string) string {
	t.Helper()
	w := env.Request(http.MethodPost, "/add_tradesman", map[string]string{
		"trade":        "Plumber",
		"company_name": "Pipes Ltd",
		"phone":        "01234 567890",
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var out idPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &out)
	return out.ID
}

func TestJobHandler_QuoteConversion(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.RegisterUser("alice", "12345")
	tradesmanID := addTradesman(t, env, alice.AccessToken)

	w := env.Request(http.MethodPost, "/add_quote/"+tradesmanID, map[string]any{
		"title":           "New boiler",
		"date_requested":  "2024-03-01",
		"hourly_rate":     40,
		"hours_estimated": 5,
	}, alice.AccessToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var quote jobPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &quote)
	require.Equal(t, string(models.TypeQuote), quote.Type)
	require.Equal(t, string(models.QuotePending), quote.Status)
	require.NotNil(t, quote.TotalQuote)
	require.InDelta(t, 200, *quote.TotalQuote, 0.001)

	convert := env.Request(http.MethodPost, "/convert_quote_to_job/"+quote.ID, map[string]any{
		"date_finished": "2024-03-10",
		"rating":        4,
	}, alice.AccessToken)
	require.Equal(t, http.StatusOK, convert.Code, convert.Body.String())
	var job jobPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, convert).Data, &job)
	require.Equal(t, quote.ID, job.ID)
	require.Equal(t, string(models.TypeJob), job.Type)
	require.Equal(t, string(models.QuoteAccepted), job.Status)
	require.NotNil(t, job.HoursWorked)
	require.InDelta(t, 5, *job.HoursWorked, 0.001)
	require.NotNil(t, job.TotalCost)
	require.InDelta(t, 200, *job.TotalCost, 0.001)
	require.Nil(t, job.TotalQuote)

	// a converted job is no longer a quote
	again := env.Request(http.MethodPost, "/reject_quote/"+quote.ID, nil, alice.AccessToken)
	require.GreaterOrEqual(t, again.Code, http.StatusBadRequest, again.Body.String())

	var stored models.Job
	require.NoError(t, env.DB.First(&stored, "id = ?", quote.ID).Error)
	require.Equal(t, models.TypeJob, stored.Type)
}

func TestJobHandler_RejectQuote(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.RegisterUser("alice", "12345")
	tradesmanID := addTradesman(t, env, alice.AccessToken)

	w := env.Request(http.MethodPost, "/add_quote/"+tradesmanID, map[string]any{"title": "Leaky tap", "total_quote": 80}, alice.AccessToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var quote jobPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &quote)

	reject := env.Request(http.MethodPost, "/reject_quote/"+quote.ID, nil, alice.AccessToken)
	require.Equal(t, http.StatusOK, reject.Code, reject.Body.String())
	var rejected jobPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, reject).Data, &rejected)
	require.Equal(t, string(models.QuoteDeclined), rejected.Status)
	require.Equal(t, string(models.TypeQuote), rejected.Type)
}

func TestJobHandler_OnlyOwnerMayEditOrDelete(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.RegisterUser("alice", "12345")
	mallory := env.RegisterUser("mallory", "12345")
	tradesmanID := addTradesman(t, env, alice.AccessToken)

	w := env.Request(http.MethodPost, "/add_job/"+tradesmanID, map[string]any{
		"title":      "Fix sink",
		"total_cost": 120,
		"rating":     5,
	}, alice.AccessToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var job jobPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &job)

	edit := env.Request(http.MethodPost, "/edit_job/"+job.ID, map[string]any{"title": "Hijacked"}, mallory.AccessToken)
	require.Equal(t, http.StatusForbidden, edit.Code, edit.Body.String())

	del := env.Request(http.MethodDelete, "/jobs/"+job.ID, nil, mallory.AccessToken)
	require.Equal(t, http.StatusForbidden, del.Code, del.Body.String())

	var stored models.Job
	require.NoError(t, env.DB.First(&stored, "id = ?", job.ID).Error)
	require.Equal(t, "Fix sink", stored.Title)

	own := env.Request(http.MethodPost, "/edit_job/"+job.ID, map[string]any{"title": "Fix kitchen sink", "total_cost": 150}, alice.AccessToken)
	require.Equal(t, http.StatusOK, own.Code, own.Body.String())

	ownDelete := env.Request(http.MethodDelete, "/jobs/"+job.ID, nil, alice.AccessToken)
	require.Equal(t, http.StatusOK, ownDelete.Code, ownDelete.Body.String())
}

func TestJobHandler_RejectsInvalidRating(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.RegisterUser("alice", "12345")
	tradesmanID := addTradesman(t, env, alice.AccessToken)

	w := env.Request(http.MethodPost, "/add_job/"+tradesmanID, map[string]any{"title": "Paint", "rating": 9}, alice.AccessToken)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	resp := testutil.DecodeResponse(t, w)
	require.Equal(t, "rating", resp.Error.Field)
}

func TestJobHandler_RejectsNonFiniteAmounts(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.RegisterUser("alice", "12345")
	tradesmanID := addTradesman(t, env, alice.AccessToken)

	for _, value := range []string{"NaN", "Inf", "-Inf", "1e400"} {
		w := env.Multipart("/add_job/"+tradesmanID, map[string]string{
			"title":      "Boiler service",
			"total_cost": value,
		}, nil, alice.AccessToken)
		require.Equal(t, http.StatusBadRequest, w.Code, value)
		require.Equal(t, "total_cost", testutil.DecodeResponse(t, w).Error.Field)
	}

	overflow := env.Request(http.MethodPost, "/add_job/"+tradesmanID, map[string]any{
		"title":        "Boiler service",
		"hourly_rate":  1e200,
		"hours_worked": 1e200,
	}, alice.AccessToken)
	require.Equal(t, http.StatusBadRequest, overflow.Code, overflow.Body.String())
	require.Equal(t, "total_cost", testutil.DecodeResponse(t, overflow).Error.Field)

	list := env.Request(http.MethodGet, "/jobs", nil, alice.AccessToken)
	require.Equal(t, http.StatusOK, list.Code)
	require.True(t, testutil.DecodeResponse(t, list).Success)
}

func TestJobHandler_AttachmentUploadAndServe(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.RegisterUser("alice", "12345")
	tradesmanID := addTradesman(t, env, alice.AccessToken)

	content := []byte("invoice #42")
	w := env.Multipart("/add_job/"+tradesmanID, map[string]string{
		"title":      "Boiler service",
		"total_cost": "95.50",
	}, &testutil.MultipartFile{Field: "attachment", Filename: "invoice.txt", Content: content}, alice.AccessToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var job jobPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &job)
	require.NotEmpty(t, job.Attachment)
	require.Contains(t, job.Attachment, "invoice.txt")
	require.NotNil(t, job.TotalCost)
	require.InDelta(t, 95.5, *job.TotalCost, 0.001)

	onDisk, err := os.ReadFile(filepath.Join(env.UploadDir, job.Attachment))
	require.NoError(t, err)
	require.Equal(t, content, onDisk)

	serve := env.Request(http.MethodGet, "/uploads/"+job.Attachment, nil, alice.AccessToken)
	require.Equal(t, http.StatusOK, serve.Code)
	require.Equal(t, content, serve.Body.Bytes())

	missing := env.Request(http.MethodGet, "/uploads/nothing-here.txt", nil, alice.AccessToken)
	require.Equal(t, http.StatusNotFound, missing.Code)

	blocked := env.Multipart("/add_job/"+tradesmanID, map[string]string{"title": "Bad file"},
		&testutil.MultipartFile{Field: "attachment", Filename: "run.exe", Content: []byte("MZ")}, alice.AccessToken)
	require.Equal(t, http.StatusBadRequest, blocked.Code, blocked.Body.String())
}
