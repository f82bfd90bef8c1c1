package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tafelzaak/identity/internal/api/middleware"
	"github.com/tafelzaak/identity/internal/core/domain"
)

// ctxActor extracts the caller injected by the Auth middleware. A missing
// user id means the route was wired without Auth, which is rejected with 401
// before any service call.
func ctxActor(c echo.Context) (domain.Actor, error) {
	userID, _ := c.Get(middleware.KeyUserID).(string)
	if userID == "" {
		return domain.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}

	username, _ := c.Get(middleware.KeyUsername).(string)
	role, _ := c.Get(middleware.KeyRole).(string)
	sessionID, _ := c.Get(middleware.KeySessionID).(string)

	return domain.Actor{
		UserID:    userID,
		Username:  username,
		Role:      domain.Role(role),
		SessionID: sessionID,
	}, nil
}
