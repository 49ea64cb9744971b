package api

import (
	"github.com/gin-gonic/gin"

	"github.com/jobeco/fairprice/internal/handlers"
)

func registerGroupRoutes(api *gin.RouterGroup, h *handlers.GroupHandler, activity *handlers.ActivityHandler) {
	api.POST("/create_group", h.Create)
	api.GET("/view_group/:id", h.View)
	api.POST("/view_group/:id", h.RequestJoin)
	api.POST("/edit_group/:id", h.Update)
	api.POST("/handle_request/:id/:action", h.HandleRequest)

	groups := api.Group("/groups")
	{
		groups.GET("", h.List)
		groups.DELETE("/:id", h.Delete)
		groups.POST("/:id/leave", h.Leave)
		groups.GET("/:id/activity", activity.List)
		groups.POST("/:id/members/:user_id/promote", h.Promote)
		groups.DELETE("/:id/members/:user_id", h.RemoveMember)
		groups.POST("/:id/tradesmen/:tradesman_id", h.AddTradesman)
		groups.DELETE("/:id/tradesmen/:tradesman_id", h.RemoveTradesman)
	}
}
