package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jobeco/fairprice/internal/middleware"
	"github.com/jobeco/fairprice/internal/services"
	"github.com/jobeco/fairprice/pkg/response"
)

// DashboardHandler serves the landing page data for a logged in user.
type DashboardHandler struct {
	dashboard *services.DashboardService
}

func NewDashboardHandler(dashboard *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// GET /
func (h *DashboardHandler) Show(c *gin.Context) {
	data, err := h.dashboard.Load(requestContext(c), middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, data)
}
