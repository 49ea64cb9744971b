package handlers

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/jobeco/fairprice/internal/middleware"
	"github.com/jobeco/fairprice/internal/services"
	"github.com/jobeco/fairprice/pkg/response"
)

// InvitationHandler issues and redeems group invitations.
type InvitationHandler struct {
	invitations *services.InvitationService
}

func NewInvitationHandler(invitations *services.InvitationService) *InvitationHandler {
	return &InvitationHandler{invitations: invitations}
}

type inviteRequest struct {
	Email string `json:"email" form:"email" validate:"required,email"`
}

// POST /groups/:id/invitations
func (h *InvitationHandler) Create(c *gin.Context) {
	var req inviteRequest
	if !bindFormOrJSON(c, &req) {
		return
	}

	created, sent, err := h.invitations.Invite(requestContext(c), middleware.CurrentUserID(c), c.Param("id"), req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}

	payload := gin.H{
		"invitation": created.Invitation,
		"sent":       sent,
	}
	if sent {
		payload["message"] = "Invitation sent to " + created.Invitation.Email
	} else {
		// the moderator can still pass the link on by hand
		payload["message"] = "Invitation created but the e-mail could not be delivered"
		payload["link"] = created.Link
	}
	response.Created(c, payload)
}

// GET /groups/:id/invitations
func (h *InvitationHandler) ListPending(c *gin.Context) {
	pending, err := h.invitations.PendingForGroup(requestContext(c), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, pending)
}

// DELETE /invitations/:id
func (h *InvitationHandler) Cancel(c *gin.Context) {
	if err := h.invitations.Cancel(requestContext(c), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"cancelled": true})
}

// GET /invitation/:token
//
// Anonymous visitors are sent to registration with the token attached;
// logged in users join the group straight away.
func (h *InvitationHandler) Resolve(c *gin.Context) {
	ctx := requestContext(c)
	token := c.Param("token")

	userID := middleware.CurrentUserID(c)
	if userID == "" {
		invitation, err := h.invitations.Resolve(ctx, token)
		if err != nil {
			response.Error(c, err)
			return
		}
		payload := gin.H{
			"accepted": false,
			"email":    invitation.Email,
			"redirect": "/register?invitation_token=" + url.QueryEscape(token),
		}
		if invitation.Group != nil {
			payload["group"] = invitation.Group
		}
		response.Success(c, http.StatusOK, payload)
		return
	}

	invitation, err := h.invitations.Accept(ctx, token, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"accepted": true,
		"group_id": invitation.GroupID,
		"redirect": "/view_group/" + invitation.GroupID,
	})
}
