package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/jobeco/fairprice/internal/auditctx"
)

// requestContext returns the request context. Anonymous requests such as
// registration still carry the client address into the audit trail.
func requestContext(c *gin.Context) context.Context {
	if c == nil || c.Request == nil {
		return context.Background()
	}
	ctx := c.Request.Context()
	if _, ok := auditctx.FromContext(ctx); ok {
		return ctx
	}
	return auditctx.WithActor(ctx, auditctx.Actor{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
}
