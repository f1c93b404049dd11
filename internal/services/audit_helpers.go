package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/charlesng35/teamspace/internal/auditctx"
	"github.com/charlesng35/teamspace/pkg/logger"
)

// recordAudit logs the supplied entry while tolerating audit failures. Request
// metadata is taken from the context when the caller did not set it.
func recordAudit(audit *AuditService, ctx context.Context, entry AuditEntry) {
	if audit == nil {
		return
	}

	if actor, ok := auditctx.FromContext(ctx); ok {
		if entry.ActorID == nil {
			entry.ActorID = actor.ID()
		}
		if entry.TeamID == "" {
			entry.TeamID = actor.TeamID
		}
		if entry.IPAddress == "" {
			entry.IPAddress = actor.IPAddress
		}
		if entry.UserAgent == "" {
			entry.UserAgent = actor.UserAgent
		}
	}

	if err := audit.Log(ctx, entry); err != nil {
		logger.WithModule("audit").Warn("failed to record audit entry",
			zap.String("action", entry.Action),
			zap.Error(err),
		)
	}
}
