package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/jobeco/fairprice/internal/database"
	"github.com/jobeco/fairprice/pkg/response"
)

// Health returns a status payload useful for readiness checks. A database
// that cannot be reached turns the probe into a 503.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			if err := database.Ping(db); err != nil {
				c.JSON(http.StatusServiceUnavailable, response.Response{
					Success: false,
					Data:    gin.H{"status": "degraded", "database": "unreachable"},
				})
				return
			}
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	}
}
