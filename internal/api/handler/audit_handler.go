package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tafelzaak/identity/internal/core/domain"
)

// AuditViewer is the read side of the audit log.
type AuditViewer interface {
	Recent(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditLogEntry, error)
}

// AuditHandler serves the Owner's view of the audit log.
type AuditHandler struct {
	viewer AuditViewer
}

func NewAuditHandler(viewer AuditViewer) *AuditHandler {
	return &AuditHandler{viewer: viewer}
}

// List returns recent audit entries, newest first.
//
// @Summary      List audit log entries
// @Tags         audit
// @Produce      json
// @Security     BearerAuth
// @Param        actor_id  query     string  false  "Filter by actor id"
// @Param        action    query     string  false  "Filter by action label"
// @Param        limit     query     int     false  "Maximum entries (default 50, max 500)"
// @Success      200       {array}   auditEntryResponse
// @Failure      403       {object}  errorResponse
// @Failure      422       {object}  errorResponse
// @Router       /audit [get]
func (h *AuditHandler) List(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	if !actor.IsOwner() {
		return domain.ErrForbidden
	}

	var q auditQuery
	if err := bindAndValidate(c, &q); err != nil {
		return err
	}

	entries, err := h.viewer.Recent(c.Request().Context(), domain.AuditFilter{
		ActorID: q.ActorID,
		Action:  q.Action,
		Limit:   q.Limit,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAuditResponses(entries))
}
