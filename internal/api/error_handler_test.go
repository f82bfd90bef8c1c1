package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tafelzaak/identity/internal/core/domain"
)

func render(t *testing.T, err error) (int, errorResponse) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	NewHTTPErrorHandler(zerolog.Nop())(err, c)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestHTTPErrorHandler_StatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"invalid credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{"locked out", fmt.Errorf("login: %w", domain.ErrLockedOut), http.StatusLocked},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden},
		{"not found", domain.ErrUserNotFound, http.StatusNotFound},
		{"exists", domain.ErrUserExists, http.StatusConflict},
		{"token", domain.ErrTokenInvalid, http.StatusBadRequest},
		{"echo error", echo.NewHTTPError(http.StatusBadRequest, "invalid payload"), http.StatusBadRequest},
		{"unexpected", errors.New("mongo: connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, resp := render(t, tc.err)
			assert.Equal(t, tc.code, code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestHTTPErrorHandler_UnexpectedErrorIsNotLeaked(t *testing.T) {
	_, resp := render(t, errors.New("mongo: secret connection string"))
	assert.Equal(t, "internal server error", resp.Error)
}

func TestHTTPErrorHandler_ValidationFields(t *testing.T) {
	err := domain.NewValidationError("password", "too short").With("", "password could not be changed")

	code, resp := render(t, fmt.Errorf("change: %w", err))
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, []domain.FieldError{
		{Field: "password", Message: "too short"},
		{Message: "password could not be changed"},
	}, resp.Fields)
}

func TestHTTPErrorHandler_ConflictCarriesField(t *testing.T) {
	code, resp := render(t, &domain.ConflictError{Field: "email"})
	assert.Equal(t, http.StatusConflict, code)
	require.Len(t, resp.Fields, 1)
	assert.Equal(t, "email", resp.Fields[0].Field)
}
