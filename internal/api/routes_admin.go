package api

import (
	"github.com/gin-gonic/gin"

	"github.com/jobeco/fairprice/internal/handlers"
)

func registerEmailAdminRoutes(api *gin.RouterGroup, h *handlers.EmailAdminHandler) {
	admin := api.Group("/admin/email")
	{
		admin.GET("/status", h.Status)
		admin.POST("/test", h.Test)
	}
}
