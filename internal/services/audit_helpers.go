package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/jobeco/fairprice/internal/auditctx"
	"github.com/jobeco/fairprice/pkg/logger"
)

// recordAudit logs the supplied entry while tolerating audit failures.
// Actor details missing from the entry are taken from the request context.
func recordAudit(audit *AuditService, ctx context.Context, entry AuditEntry) {
	if audit == nil {
		return
	}
	if actor, ok := auditctx.FromContext(ctx); ok {
		if entry.ActorID == "" {
			entry.ActorID = actor.UserID
		}
		if entry.Username == "" {
			entry.Username = actor.Username
		}
		if entry.IPAddress == "" {
			entry.IPAddress = actor.IPAddress
		}
	}
	if entry.Result == "" {
		entry.Result = "success"
	}
	if err := audit.Log(ctx, entry); err != nil {
		logger.WithModule("audit").Warn("failed to record audit entry",
			zap.String("action", entry.Action),
			zap.Error(err),
		)
	}
}
