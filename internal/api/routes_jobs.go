package api

import (
	"github.com/gin-gonic/gin"

	"github.com/jobeco/fairprice/internal/handlers"
)

func registerJobRoutes(api *gin.RouterGroup, h *handlers.JobHandler) {
	api.POST("/add_job/:tradesman_id", h.CreateJob)
	api.POST("/add_quote/:tradesman_id", h.CreateQuote)
	api.POST("/edit_job/:id", h.Update)
	api.POST("/convert_quote_to_job/:id", h.ConvertQuote)
	api.POST("/reject_quote/:id", h.RejectQuote)

	jobs := api.Group("/jobs")
	{
		jobs.GET("", h.List)
		jobs.GET("/:id", h.Get)
		jobs.DELETE("/:id", h.Delete)
	}
}

func registerUploadRoutes(api *gin.RouterGroup, h *handlers.UploadHandler) {
	api.GET("/uploads/:name", h.Serve)
}
