package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jobeco/fairprice/internal/middleware"
	"github.com/jobeco/fairprice/internal/services"
	apperrors "github.com/jobeco/fairprice/pkg/errors"
	"github.com/jobeco/fairprice/pkg/logger"
	"github.com/jobeco/fairprice/pkg/mail"
	"github.com/jobeco/fairprice/pkg/response"
)

// EmailAdminHandler reports on and exercises the outbound mail setup.
type EmailAdminHandler struct {
	mailer mail.Mailer
	gmail  *mail.GmailMailer
	users  *services.UserService
}

// NewEmailAdminHandler accepts a nil gmail mailer when another provider is configured.
func NewEmailAdminHandler(mailer mail.Mailer, gmail *mail.GmailMailer, users *services.UserService) *EmailAdminHandler {
	return &EmailAdminHandler{mailer: mailer, gmail: gmail, users: users}
}

type testEmailRequest struct {
	To string `json:"to" form:"to" validate:"omitempty,email"`
}

// GET /admin/email/status
func (h *EmailAdminHandler) Status(c *gin.Context) {
	payload := gin.H{"configured": h.mailer != nil && h.mailer.IsConfigured()}
	if h.gmail != nil {
		payload["provider"] = "gmail"
		payload["gmail"] = h.gmail.Status()
	}
	response.Success(c, http.StatusOK, payload)
}

// POST /admin/email/test
//
// Gmail setups refresh a token first; a test message then goes to the
// requested address or the caller's own.
func (h *EmailAdminHandler) Test(c *gin.Context) {
	var req testEmailRequest
	if c.Request.ContentLength != 0 && !bindFormOrJSON(c, &req) {
		return
	}

	ctx := requestContext(c)
	if h.mailer == nil || !h.mailer.IsConfigured() {
		response.Error(c, services.ErrMailNotConfigured)
		return
	}

	if h.gmail != nil {
		if err := h.gmail.TestConnection(ctx); err != nil {
			logger.WithModule("mail").Warn("gmail connection test failed", zap.Error(err))
			response.Error(c, apperrors.NewConfiguration("Could not authenticate with the mail provider"))
			return
		}
	}

	to := strings.TrimSpace(req.To)
	if to == "" {
		user, err := h.users.GetByID(ctx, middleware.CurrentUserID(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		to = user.Email
	}

	err := h.mailer.Send(ctx, mail.Message{
		To:      []string{to},
		Subject: "Fair Price Jobs test e-mail",
		Body:    "This is a test message confirming that e-mail delivery is working.\n",
	})
	if err != nil {
		logger.WithModule("mail").Warn("test e-mail failed", zap.Error(err))
		response.Error(c, apperrors.NewConfiguration("Test e-mail could not be delivered"))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sent": true, "to": to})
}
