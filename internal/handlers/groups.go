package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jobeco/fairprice/internal/middleware"
	"github.com/jobeco/fairprice/internal/models"
	"github.com/jobeco/fairprice/internal/services"
	apperrors "github.com/jobeco/fairprice/pkg/errors"
	"github.com/jobeco/fairprice/pkg/response"
)

// GroupHandler covers group lifecycle, membership administration and the
// tradesmen shared inside a group.
type GroupHandler struct {
	groups    *services.GroupService
	tradesmen *services.TradesmanService
	jobs      *services.JobService
}

func NewGroupHandler(groups *services.GroupService, tradesmen *services.TradesmanService, jobs *services.JobService) *GroupHandler {
	return &GroupHandler{groups: groups, tradesmen: tradesmen, jobs: jobs}
}

type groupRequest struct {
	Name        string `json:"name" form:"name"`
	Postcode    string `json:"postcode" form:"postcode"`
	Description string `json:"description" form:"description"`
}

type handleRequestBody struct {
	UserID string `json:"user_id" form:"user_id" validate:"required"`
}

type groupView struct {
	Group       *models.Group               `json:"group"`
	Status      models.MembershipStatus     `json:"status,omitempty"`
	MemberCount int64                       `json:"member_count"`
	Creator     *models.User                `json:"creator,omitempty"`
	Members     []services.MemberView       `json:"members,omitempty"`
	Tradesmen   []services.TradesmanSummary `json:"tradesmen,omitempty"`
	Jobs        []services.JobListing       `json:"jobs,omitempty"`
	Requests    []services.JoinRequest      `json:"pending_requests,omitempty"`
	CanRequest  bool                        `json:"can_request"`
}

// POST /create_group
func (h *GroupHandler) Create(c *gin.Context) {
	var req groupRequest
	if !bindFormOrJSON(c, &req) {
		return
	}

	group, propagated, err := h.groups.CreateWithCreator(requestContext(c), middleware.CurrentUserID(c), services.GroupInput{
		Name:        req.Name,
		Postcode:    req.Postcode,
		Description: req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"group": group, "tradesmen_added": propagated})
}

// GET /groups
func (h *GroupHandler) List(c *gin.Context) {
	groups, err := h.groups.ListForUser(requestContext(c), middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, groups)
}

// GET /view_group/:id
//
// Viewers get the full group. Everyone else sees the summary and whether a
// join request can still be made.
func (h *GroupHandler) View(c *gin.Context) {
	ctx := requestContext(c)
	userID := middleware.CurrentUserID(c)
	groupID := c.Param("id")

	group, err := h.groups.Get(ctx, groupID)
	if err != nil {
		response.Error(c, err)
		return
	}

	status, err := h.groups.Membership(ctx, userID, groupID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		response.Error(c, err)
		return
	}

	count, err := h.groups.MemberCount(ctx, groupID)
	if err != nil {
		response.Error(c, err)
		return
	}

	view := groupView{Group: group, Status: status, MemberCount: count, CanRequest: status == ""}
	if !status.CanView() {
		response.Success(c, http.StatusOK, view)
		return
	}

	if view.Creator, err = h.groups.Creator(ctx, groupID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		response.Error(c, err)
		return
	}
	if view.Members, err = h.groups.Members(ctx, groupID); err != nil {
		response.Error(c, err)
		return
	}
	if view.Tradesmen, err = h.tradesmen.ListForGroup(ctx, userID, groupID); err != nil {
		response.Error(c, err)
		return
	}
	if view.Jobs, err = h.jobs.ListForGroup(ctx, userID, groupID); err != nil {
		response.Error(c, err)
		return
	}
	if status.CanModerate() {
		if view.Requests, err = h.groups.PendingRequests(ctx, userID, groupID); err != nil {
			response.Error(c, err)
			return
		}
	}

	response.Success(c, http.StatusOK, view)
}

// POST /view_group/:id
func (h *GroupHandler) RequestJoin(c *gin.Context) {
	propagated, err := h.groups.RequestJoin(requestContext(c), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{
		"status":          models.StatusPending,
		"tradesmen_added": propagated,
		"message":         "Your request to join has been sent",
	})
}

// POST /edit_group/:id
func (h *GroupHandler) Update(c *gin.Context) {
	var req groupRequest
	if !bindFormOrJSON(c, &req) {
		return
	}

	group, err := h.groups.Update(requestContext(c), middleware.CurrentUserID(c), c.Param("id"), services.GroupInput{
		Name:        req.Name,
		Postcode:    req.Postcode,
		Description: req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, group)
}

// DELETE /groups/:id
func (h *GroupHandler) Delete(c *gin.Context) {
	if err := h.groups.Delete(requestContext(c), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// POST /handle_request/:id/:action
func (h *GroupHandler) HandleRequest(c *gin.Context) {
	var body handleRequestBody
	if !bindFormOrJSON(c, &body) {
		return
	}

	action := c.Param("action")
	err := h.groups.HandleRequest(requestContext(c), middleware.CurrentUserID(c), c.Param("id"), body.UserID, action)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user_id": body.UserID, "action": action})
}

// POST /groups/:id/members/:user_id/promote
func (h *GroupHandler) Promote(c *gin.Context) {
	err := h.groups.PromoteToAdmin(requestContext(c), middleware.CurrentUserID(c), c.Param("id"), c.Param("user_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user_id": c.Param("user_id"), "status": models.StatusAdmin})
}

// DELETE /groups/:id/members/:user_id
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	err := h.groups.RemoveMember(requestContext(c), middleware.CurrentUserID(c), c.Param("id"), c.Param("user_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}

// POST /groups/:id/leave
func (h *GroupHandler) Leave(c *gin.Context) {
	if err := h.groups.Leave(requestContext(c), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"left": true})
}

// POST /groups/:id/tradesmen/:tradesman_id
func (h *GroupHandler) AddTradesman(c *gin.Context) {
	err := h.tradesmen.AddToGroup(requestContext(c), middleware.CurrentUserID(c), c.Param("id"), c.Param("tradesman_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"group_id": c.Param("id"), "tradesman_id": c.Param("tradesman_id")})
}

// DELETE /groups/:id/tradesmen/:tradesman_id
func (h *GroupHandler) RemoveTradesman(c *gin.Context) {
	err := h.tradesmen.RemoveFromGroup(requestContext(c), middleware.CurrentUserID(c), c.Param("id"), c.Param("tradesman_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}
