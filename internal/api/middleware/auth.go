package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/tafelzaak/identity/internal/core/ports"
)

// Context keys set by Auth.
const (
	KeyUserID    = "user_id"
	KeyUsername  = "username"
	KeyRole      = "role"
	KeySessionID = "session_id"
)

// Auth validates the JWT, checks that its session is still live and injects
// the claims into context. A token whose session was deleted (logout, account
// deletion) is rejected even before it expires.
func Auth(jwtSecret string, sessions ports.SessionStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			claims := jwt.MapClaims{}
			tkn, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
				if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
					return nil, jwt.ErrTokenSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !tkn.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			userID, _ := claims["sub"].(string)
			sessionID, _ := claims["sid"].(string)
			if userID == "" || sessionID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			owner, err := sessions.Resolve(c.Request().Context(), sessionID)
			if err != nil {
				if errors.Is(err, ports.ErrSessionNotFound) {
					return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
				}
				return err
			}
			if owner != userID {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			username, _ := claims["username"].(string)
			role, _ := claims["role"].(string)

			c.Set(KeyUserID, userID)
			c.Set(KeyUsername, username)
			c.Set(KeyRole, role)
			c.Set(KeySessionID, sessionID)

			return next(c)
		}
	}
}
