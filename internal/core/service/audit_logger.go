package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tafelzaak/identity/internal/core/domain"
	"github.com/tafelzaak/identity/internal/core/ports"
	"github.com/tafelzaak/identity/internal/pkg/metrics"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// AuditLogger records security events. Appending is best-effort: a sink
// failure is logged and never reported to the caller, so it cannot unwind a
// mutation that already succeeded.
type AuditLogger struct {
	sink   ports.AuditSink
	reader ports.AuditReader
	log    zerolog.Logger
	now    func() time.Time
}

// NewAuditLogger returns an AuditLogger writing to sink. reader may be nil
// when the deployment has no audit view.
func NewAuditLogger(sink ports.AuditSink, reader ports.AuditReader, log zerolog.Logger) *AuditLogger {
	return &AuditLogger{
		sink:   sink,
		reader: reader,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Append records action by actorID. An empty actorID is stored as
// domain.UnknownActor.
func (a *AuditLogger) Append(ctx context.Context, actorID, action, message string) {
	if actorID == "" {
		actorID = domain.UnknownActor
	}
	entry := domain.AuditLogEntry{
		Timestamp: a.now(),
		ActorID:   actorID,
		Action:    action,
		Message:   message,
	}

	metrics.AuditEntriesTotal.WithLabelValues(action).Inc()

	if err := a.sink.Append(ctx, entry); err != nil {
		metrics.AuditWriteFailuresTotal.Inc()
		a.log.Warn().Err(err).
			Str("actor_id", actorID).
			Str("action", action).
			Msg("failed to append audit entry")
	}
}

// Recent lists audit entries newest first. The limit is clamped to
// (0, maxAuditLimit].
func (a *AuditLogger) Recent(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditLogEntry, error) {
	if a.reader == nil {
		return nil, fmt.Errorf("audit: reader not configured")
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultAuditLimit
	}
	if filter.Limit > maxAuditLimit {
		filter.Limit = maxAuditLimit
	}
	entries, err := a.reader.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	return entries, nil
}
