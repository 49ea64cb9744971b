package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jobeco/fairprice/internal/middleware"
	"github.com/jobeco/fairprice/internal/services"
	apperrors "github.com/jobeco/fairprice/pkg/errors"
	"github.com/jobeco/fairprice/pkg/response"
)

// ActivityHandler exposes a group's audit trail to its moderators.
type ActivityHandler struct {
	audit  *services.AuditService
	groups *services.GroupService
}

func NewActivityHandler(audit *services.AuditService, groups *services.GroupService) *ActivityHandler {
	return &ActivityHandler{audit: audit, groups: groups}
}

// GET /groups/:id/activity
func (h *ActivityHandler) List(c *gin.Context) {
	ctx := requestContext(c)
	groupID := c.Param("id")

	if _, err := h.groups.RequireModerator(ctx, middleware.CurrentUserID(c), groupID); err != nil {
		response.Error(c, err)
		return
	}

	opts := services.AuditListOptions{
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "per_page", 0),
		Filters: services.AuditFilters{
			Action:   c.Query("action"),
			Category: c.Query("category"),
		},
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, apperrors.NewValidation("since", "since must be an RFC3339 timestamp"))
			return
		}
		opts.Filters.Since = &since
	}

	page, err := h.audit.GroupActivity(ctx, groupID, opts)
	if err != nil {
		response.Error(c, apperrors.NewDatabase(err))
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, page.Entries, &response.Meta{
		Page:    page.Page,
		PerPage: page.PerPage,
		Total:   int(page.Total),
	})
}
