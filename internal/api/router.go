package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/jobeco/fairprice/internal/app"
	iauth "github.com/jobeco/fairprice/internal/auth"
	"github.com/jobeco/fairprice/internal/handlers"
	"github.com/jobeco/fairprice/internal/middleware"
	"github.com/jobeco/fairprice/internal/services"
	"github.com/jobeco/fairprice/pkg/mail"
)

// Options carries collaborators built from configuration outside the router.
// Zero values fall back to the configured defaults.
type Options struct {
	Mailer    mail.Mailer
	Gmail     *mail.GmailMailer
	Uploads   *services.UploadService
	RateStore middleware.RateStore
	// Clock drives invitation expiry; tests pin it.
	Clock func() time.Time
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, opts Options) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	svc, err := newServiceSet(db, cfg, &opts)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	if handler, ok := corsMiddleware(cfg.App.CORSOrigins); ok {
		r.Use(handler)
	}
	if cfg.Server.MaxBodySize > 0 {
		r.Use(middleware.MaxBodySize(cfg.Server.MaxBodySize))
	}

	r.GET("/health", handlers.Health(db))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	requireAuth := middleware.Auth(jwt)
	limit, window := cfg.Auth.LoginRateLimit.LoginLimit()
	loginLimit := middleware.RateLimit(opts.RateStore, limit, window)

	registerAuthRoutes(r, handlers.NewAuthHandler(svc.users, svc.invitations, jwt), requireAuth, loginLimit)
	registerInvitationRoutes(r, handlers.NewInvitationHandler(svc.invitations), requireAuth, middleware.OptionalAuth(jwt))

	authed := r.Group("/")
	authed.Use(requireAuth)

	registerDashboardRoutes(authed, handlers.NewDashboardHandler(svc.dashboard))
	registerProfileRoutes(authed, handlers.NewProfileHandler(svc.users))
	registerGroupRoutes(authed, handlers.NewGroupHandler(svc.groups, svc.tradesmen, svc.jobs), handlers.NewActivityHandler(svc.audit, svc.groups))
	registerTradesmanRoutes(authed, handlers.NewTradesmanHandler(svc.tradesmen, svc.jobs))
	registerJobRoutes(authed, handlers.NewJobHandler(svc.jobs, svc.uploads))
	registerSearchRoutes(authed, handlers.NewSearchHandler(svc.tradesmen, svc.jobs, svc.groups))
	registerUploadRoutes(authed, handlers.NewUploadHandler(svc.uploads))
	registerEmailAdminRoutes(authed, handlers.NewEmailAdminHandler(opts.Mailer, opts.Gmail, svc.users))

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

type serviceSet struct {
	audit       *services.AuditService
	users       *services.UserService
	groups      *services.GroupService
	tradesmen   *services.TradesmanService
	jobs        *services.JobService
	invitations *services.InvitationService
	uploads     *services.UploadService
	dashboard   *services.DashboardService
}

func newServiceSet(db *gorm.DB, cfg *app.Config, opts *Options) (*serviceSet, error) {
	if opts.Mailer == nil {
		opts.Mailer = mail.Disabled{}
	}
	if opts.RateStore == nil {
		opts.RateStore = middleware.NewMemoryRateStore()
	}
	if opts.Uploads == nil {
		uploads, err := cfg.Uploads.NewUploadService(context.Background())
		if err != nil {
			return nil, err
		}
		opts.Uploads = uploads
	}

	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	users, err := services.NewUserService(db, audit, services.WithPasswordMinLength(cfg.Auth.PasswordMinLength))
	if err != nil {
		return nil, err
	}
	groups, err := services.NewGroupService(db, audit)
	if err != nil {
		return nil, err
	}
	tradesmen, err := services.NewTradesmanService(db, audit, groups)
	if err != nil {
		return nil, err
	}
	jobs, err := services.NewJobService(db, audit, groups)
	if err != nil {
		return nil, err
	}

	invitationOpts := []services.InvitationOption{
		services.WithInvitationExpiry(cfg.Invitations.Expiry),
		services.WithAppURL(cfg.App.URL),
	}
	if opts.Clock != nil {
		invitationOpts = append(invitationOpts, services.WithInvitationClock(opts.Clock))
	}
	invitations, err := services.NewInvitationService(db, audit, groups, opts.Mailer, invitationOpts...)
	if err != nil {
		return nil, err
	}

	dashboard, err := services.NewDashboardService(users, groups, tradesmen, jobs)
	if err != nil {
		return nil, err
	}

	return &serviceSet{
		audit:       audit,
		users:       users,
		groups:      groups,
		tradesmen:   tradesmen,
		jobs:        jobs,
		invitations: invitations,
		uploads:     opts.Uploads,
		dashboard:   dashboard,
	}, nil
}

// corsMiddleware is only installed when origins are configured; "*" allows any origin.
func corsMiddleware(origins []string) (gin.HandlerFunc, bool) {
	cleaned := make([]string, 0, len(origins))
	allowAll := false
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		switch origin {
		case "":
			continue
		case "*":
			allowAll = true
		default:
			cleaned = append(cleaned, strings.TrimRight(origin, "/"))
		}
	}
	if !allowAll && len(cleaned) == 0 {
		return nil, false
	}

	config := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders: []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if allowAll {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = cleaned
		config.AllowCredentials = true
	}
	return cors.New(config), true
}
