package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tafelzaak/identity/internal/core/domain"
	"github.com/tafelzaak/identity/internal/core/ports"
)

// UserHandler serves Owner administration of staff accounts.
type UserHandler struct {
	users ports.UserAdminService
	roles ports.RoleService
}

func NewUserHandler(users ports.UserAdminService, roles ports.RoleService) *UserHandler {
	return &UserHandler{users: users, roles: roles}
}

// List returns all users grouped by role.
//
// @Summary      List users grouped by role
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   roleGroupResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /users [get]
func (h *UserHandler) List(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	groups, err := h.users.ListUsersByRole(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toRoleGroupResponses(groups))
}

// Create adds a staff account with the requested role.
//
// @Summary      Create a user
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createUserRequest  true  "New account"
// @Success      201   {object}  userResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /users [post]
func (h *UserHandler) Create(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	var req createUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	input, err := toCreateInput(req)
	if err != nil {
		return err
	}

	user, err := h.users.CreateUser(c.Request().Context(), actor, input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toUserResponse(user))
}

// Edit updates another user's profile and replaces their role. An empty
// role clears it.
//
// @Summary      Edit a user
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string           true  "User id"
// @Param        body  body      editUserRequest  true  "Profile fields and role"
// @Success      200   {object}  userResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /users/{id} [put]
func (h *UserHandler) Edit(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	var req editUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	input, err := toEditInput(req)
	if err != nil {
		return err
	}

	user, err := h.users.EditUser(c.Request().Context(), actor, c.Param("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

// Delete removes a user. Deleting an unknown id succeeds.
//
// @Summary      Delete a user
// @Tags         users
// @Security     BearerAuth
// @Param        id  path  string  true  "User id"
// @Success      204
// @Failure      403  {object}  errorResponse
// @Router       /users/{id} [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	if err := h.users.DeleteUser(c.Request().Context(), actor, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Roles lists every assignable role.
//
// @Summary      List roles
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   roleResponse
// @Failure      403  {object}  errorResponse
// @Router       /roles [get]
func (h *UserHandler) Roles(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	if !actor.IsOwner() {
		return domain.ErrForbidden
	}

	roles, err := h.roles.ListRoles(c.Request().Context())
	if err != nil {
		return err
	}
	out := make([]roleResponse, 0, len(roles))
	for _, r := range roles {
		out = append(out, roleResponse{Role: string(r), Name: r.DisplayName()})
	}
	return c.JSON(http.StatusOK, out)
}
