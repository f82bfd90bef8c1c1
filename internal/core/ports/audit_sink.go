package ports

import (
	"context"

	"github.com/tafelzaak/identity/internal/core/domain"
)

// AuditSink persists audit entries. Implementations must never modify or
// delete an entry once appended.
type AuditSink interface {
	Append(ctx context.Context, entry domain.AuditLogEntry) error
}

// AuditReader lists stored audit entries, newest first.
type AuditReader interface {
	List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditLogEntry, error)
}
