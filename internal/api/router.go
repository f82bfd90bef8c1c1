package api

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/tafelzaak/identity/internal/api/handler"
	"github.com/tafelzaak/identity/internal/api/middleware"
	"github.com/tafelzaak/identity/internal/core/domain"
	"github.com/tafelzaak/identity/internal/core/ports"
)

// Deps collects what the router wires into handlers.
type Deps struct {
	Log       zerolog.Logger
	JWTSecret string
	Sessions  ports.SessionStore

	Auth     ports.AuthService
	Reset    ports.PasswordResetService
	Accounts ports.AccountService
	Users    ports.UserAdminService
	Roles    ports.RoleService
	Audit    handler.AuditViewer

	// Readiness lists the dependencies pinged by /health/ready.
	Readiness map[string]handler.Pinger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))

	authHandler := handler.NewAuthHandler(d.Auth, d.Users)
	passwordHandler := handler.NewPasswordHandler(d.Reset)
	accountHandler := handler.NewAccountHandler(d.Accounts)
	userHandler := handler.NewUserHandler(d.Users, d.Roles)
	auditHandler := handler.NewAuditHandler(d.Audit)

	requireSession := middleware.Auth(d.JWTSecret, d.Sessions)
	requireOwner := middleware.RBAC(domain.RoleOwner)

	// --- Auth routes ---
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)
	e.POST("/auth/logout", authHandler.Logout, requireSession)
	e.POST("/auth/forgot-password", passwordHandler.ForgotPassword)
	e.POST("/auth/reset-password", passwordHandler.ResetPassword)

	// --- Own account ---
	e.GET("/account", accountHandler.View, requireSession)
	e.PUT("/account", accountHandler.Update, requireSession)
	e.DELETE("/account", accountHandler.Delete, requireSession)

	// --- Owner administration ---
	e.GET("/users", userHandler.List, requireSession, requireOwner)
	e.POST("/users", userHandler.Create, requireSession, requireOwner)
	e.PUT("/users/:id", userHandler.Edit, requireSession, requireOwner)
	e.DELETE("/users/:id", userHandler.Delete, requireSession, requireOwner)
	e.GET("/roles", userHandler.Roles, requireSession, requireOwner)
	e.GET("/audit", auditHandler.List, requireSession, requireOwner)

	// --- Ops ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(d.Readiness)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", readinessHandler.Readiness)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

// requestLogger logs one line per request through zerolog.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
