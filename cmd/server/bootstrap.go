package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jobeco/fairprice/internal/api"
	"github.com/jobeco/fairprice/internal/app"
	"github.com/jobeco/fairprice/internal/app/maintenance"
	iauth "github.com/jobeco/fairprice/internal/auth"
	"github.com/jobeco/fairprice/internal/cache"
	"github.com/jobeco/fairprice/internal/database"
	"github.com/jobeco/fairprice/internal/middleware"
	"github.com/jobeco/fairprice/internal/services"
	"github.com/jobeco/fairprice/pkg/logger"
	"github.com/jobeco/fairprice/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Cache     *cache.DatabaseStore
	Mailer    mail.Mailer
	Uploads   *services.UploadService
	Cleaner   *maintenance.Cleaner
	RateStore middleware.RateStore
	Router    *gin.Engine
}

// bootstrapRuntime initialises the database, mail, uploads, background jobs and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	stack.Cache = cache.NewDatabaseStore(stack.DB)

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	mailer, gmail, err := cfg.Email.NewMailer()
	if err != nil {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}
	stack.Mailer = mailer
	if !mailer.IsConfigured() {
		log.Warn("email is not configured; invitations cannot be sent", zap.String("provider", cfg.Email.Provider))
	}

	stack.Uploads, err = cfg.Uploads.NewUploadService(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise uploads: %w", err)
	}

	stack.RateStore = cfg.Auth.LoginRateLimit.RateStore(stack.Cache)

	stack.Router, err = api.NewRouter(stack.DB, jwtSvc, cfg, api.Options{
		Mailer:    stack.Mailer,
		Gmail:     gmail,
		Uploads:   stack.Uploads,
		RateStore: stack.RateStore,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	stack.Cleaner, err = newCleaner(stack.DB, stack.Cache, stack.Mailer, cfg)
	if err != nil {
		return nil, err
	}
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	success = true
	return stack, nil
}

func newCleaner(db *gorm.DB, store *cache.DatabaseStore, mailer mail.Mailer, cfg *app.Config) (*maintenance.Cleaner, error) {
	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, fmt.Errorf("initialise audit service: %w", err)
	}
	groups, err := services.NewGroupService(db, audit)
	if err != nil {
		return nil, fmt.Errorf("initialise group service: %w", err)
	}
	invitations, err := services.NewInvitationService(db, audit, groups, mailer,
		services.WithInvitationExpiry(cfg.Invitations.Expiry),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise invitation service: %w", err)
	}

	return maintenance.NewCleaner(invitations,
		maintenance.WithCache(store),
		maintenance.WithAudit(audit, 0),
		maintenance.WithInvitationSchedule(cfg.Maintenance.InvitationCleanupSchedule),
		maintenance.WithCacheSchedule(cfg.Maintenance.CacheCleanupSchedule),
	), nil
}

// Shutdown stops background jobs, runs a final cleanup pass and closes the database.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			<-stopCtx.Done()
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.DB != nil {
		if err := database.Close(s.DB); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
		s.DB = nil
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseSettings()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected",
		zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))),
	)
	return db, nil
}
