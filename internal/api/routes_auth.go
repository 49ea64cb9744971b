package api

import (
	"github.com/gin-gonic/gin"

	"github.com/jobeco/fairprice/internal/handlers"
)

func registerAuthRoutes(r *gin.Engine, h *handlers.AuthHandler, requireAuth, loginLimit gin.HandlerFunc) {
	r.POST("/register", h.Register)
	r.POST("/login", loginLimit, h.Login)
	r.GET("/logout", requireAuth, h.Logout)
}

func registerInvitationRoutes(r *gin.Engine, h *handlers.InvitationHandler, requireAuth, optionalAuth gin.HandlerFunc) {
	r.GET("/invitation/:token", optionalAuth, h.Resolve)

	r.POST("/groups/:id/invitations", requireAuth, h.Create)
	r.GET("/groups/:id/invitations", requireAuth, h.ListPending)
	r.DELETE("/invitations/:id", requireAuth, h.Cancel)
}
