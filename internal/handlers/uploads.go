package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jobeco/fairprice/internal/services"
	"github.com/jobeco/fairprice/pkg/response"
)

// UploadHandler streams stored attachments back to logged in users.
type UploadHandler struct {
	uploads *services.UploadService
}

func NewUploadHandler(uploads *services.UploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

// GET /uploads/:name
func (h *UploadHandler) Serve(c *gin.Context) {
	name := c.Param("name")
	file, contentType, err := h.uploads.Open(requestContext(c), name)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	c.Header("Content-Disposition", `inline; filename="`+name+`"`)
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}
