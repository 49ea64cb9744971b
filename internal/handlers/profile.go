package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jobeco/fairprice/internal/middleware"
	"github.com/jobeco/fairprice/internal/services"
	"github.com/jobeco/fairprice/pkg/response"
)

// ProfileHandler lets users manage their own account.
type ProfileHandler struct {
	users *services.UserService
}

func NewProfileHandler(users *services.UserService) *ProfileHandler {
	return &ProfileHandler{users: users}
}

type updateProfileRequest struct {
	FirstName string `json:"firstname" form:"firstname"`
	LastName  string `json:"lastname" form:"lastname"`
	Email     string `json:"email" form:"email"`
	Postcode  string `json:"postcode" form:"postcode"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" form:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" form:"new_password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password" validate:"required"`
}

// GET /profile
func (h *ProfileHandler) Get(c *gin.Context) {
	ctx := requestContext(c)
	userID := middleware.CurrentUserID(c)

	user, err := h.users.GetByID(ctx, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	stats, err := h.users.Stats(ctx, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": user, "stats": stats})
}

// POST /profile
func (h *ProfileHandler) Update(c *gin.Context) {
	var req updateProfileRequest
	if !bindFormOrJSON(c, &req) {
		return
	}

	user, err := h.users.UpdateProfile(requestContext(c), middleware.CurrentUserID(c), services.ProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Postcode:  req.Postcode,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// POST /profile/password
func (h *ProfileHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bindFormOrJSON(c, &req) {
		return
	}

	err := h.users.ChangePassword(requestContext(c), middleware.CurrentUserID(c),
		req.CurrentPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"password_changed": true})
}

// DELETE /profile
func (h *ProfileHandler) Delete(c *gin.Context) {
	if err := h.users.Delete(requestContext(c), middleware.CurrentUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
