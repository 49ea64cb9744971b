package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/jobeco/fairprice/internal/auth"
	"github.com/jobeco/fairprice/internal/models"
	"github.com/jobeco/fairprice/internal/services"
	"github.com/jobeco/fairprice/pkg/errors"
	"github.com/jobeco/fairprice/pkg/logger"
	"github.com/jobeco/fairprice/pkg/metrics"
	"github.com/jobeco/fairprice/pkg/response"
)

// AuthHandler manages registration and token issuance.
type AuthHandler struct {
	users       *services.UserService
	invitations *services.InvitationService
	jwt         *iauth.JWTService
}

func NewAuthHandler(users *services.UserService, invitations *services.InvitationService, jwt *iauth.JWTService) *AuthHandler {
	return &AuthHandler{users: users, invitations: invitations, jwt: jwt}
}

type registerRequest struct {
	Username        string `json:"username" form:"username"`
	FirstName       string `json:"firstname" form:"firstname"`
	LastName        string `json:"lastname" form:"lastname"`
	Email           string `json:"email" form:"email"`
	Postcode        string `json:"postcode" form:"postcode"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
	InvitationToken string `json:"invitation_token" form:"invitation_token"`
}

type loginRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        *models.User `json:"user"`
}

type registerResponse struct {
	tokenResponse
	JoinedGroupID string `json:"joined_group_id,omitempty"`
}

// POST /register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindFormOrJSON(c, &req) {
		return
	}

	ctx := requestContext(c)
	user, err := h.users.Register(ctx, services.RegisterInput{
		Username:        req.Username,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Postcode:        req.Postcode,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	out := registerResponse{}
	// A bad invitation token never fails the registration itself.
	if req.InvitationToken != "" && h.invitations != nil {
		invitation, err := h.invitations.Accept(ctx, req.InvitationToken, user.ID)
		if err != nil {
			logger.WithModule("auth").Warn("invitation not accepted at registration",
				zap.String("user_id", user.ID),
				zap.Error(err),
			)
		} else {
			out.JoinedGroupID = invitation.GroupID
		}
	}

	issued, err := h.jwt.GenerateAccessToken(iauth.AccessTokenInput{UserID: user.ID, Username: user.Username})
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}
	out.tokenResponse = tokenResponse{
		AccessToken: issued.Token,
		TokenType:   "Bearer",
		ExpiresAt:   issued.ExpiresAt,
		User:        user,
	}

	response.Created(c, out)
}

// POST /login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindFormOrJSON(c, &req) {
		return
	}

	user, err := h.users.Authenticate(requestContext(c), req.Username, req.Password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, err)
		return
	}

	issued, err := h.jwt.GenerateAccessToken(iauth.AccessTokenInput{UserID: user.ID, Username: user.Username})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	response.Success(c, http.StatusOK, tokenResponse{
		AccessToken: issued.Token,
		TokenType:   "Bearer",
		ExpiresAt:   issued.ExpiresAt,
		User:        user,
	})
}

// GET /logout
//
// Tokens are stateless; the client discards its copy.
func (h *AuthHandler) Logout(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"logged_out": true})
}
