package api

import (
	"github.com/gin-gonic/gin"

	"github.com/jobeco/fairprice/internal/handlers"
)

func registerDashboardRoutes(api *gin.RouterGroup, h *handlers.DashboardHandler) {
	api.GET("/", h.Show)
}

func registerProfileRoutes(api *gin.RouterGroup, h *handlers.ProfileHandler) {
	profile := api.Group("/profile")
	{
		profile.GET("", h.Get)
		profile.POST("", h.Update)
		profile.DELETE("", h.Delete)
		profile.POST("/password", h.ChangePassword)
	}
}
