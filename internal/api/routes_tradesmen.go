package api

import (
	"github.com/gin-gonic/gin"

	"github.com/jobeco/fairprice/internal/handlers"
)

func registerTradesmanRoutes(api *gin.RouterGroup, h *handlers.TradesmanHandler) {
	api.POST("/add_tradesman", h.Create)
	api.POST("/edit_tradesman/:id", h.Update)
	api.GET("/trades", h.Trades)

	tradesmen := api.Group("/tradesmen")
	{
		tradesmen.GET("", h.List)
		tradesmen.GET("/:id", h.Get)
		tradesmen.DELETE("/:id", h.Delete)
	}
}

func registerSearchRoutes(api *gin.RouterGroup, h *handlers.SearchHandler) {
	api.GET("/search", h.Search)
}
