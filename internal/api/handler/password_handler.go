package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tafelzaak/identity/internal/core/domain"
	"github.com/tafelzaak/identity/internal/core/ports"
)

const (
	msgResetRequested = "if the address is known, a reset link has been sent"
	msgResetDone      = "password has been reset"
)

// PasswordHandler serves the forgot/reset password flow.
type PasswordHandler struct {
	service ports.PasswordResetService
}

func NewPasswordHandler(service ports.PasswordResetService) *PasswordHandler {
	return &PasswordHandler{service: service}
}

// ForgotPassword mails a reset link when the address belongs to an account.
// The response is the same whether or not it does.
//
// @Summary      Request a password reset link
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      forgotPasswordRequest  true  "Account email"
// @Success      202   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /auth/forgot-password [post]
func (h *PasswordHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.service.RequestReset(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, messageResponse{Message: msgResetRequested})
}

// ResetPassword sets a new password using a token from the reset mail. An
// unknown email gets the success response so accounts cannot be probed.
//
// @Summary      Reset a password with a mailed token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      resetPasswordRequest  true  "Token, email and new password"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /auth/reset-password [post]
func (h *PasswordHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	err := h.service.ResetPassword(c.Request().Context(), req.Token, req.Email, req.Password)
	if err != nil && !errors.Is(err, domain.ErrResetRequestInvalid) {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: msgResetDone})
}
