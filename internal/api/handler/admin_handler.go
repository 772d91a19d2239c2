package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/storefront/identity-service/internal/core/ports"
)

// AdminHandler serves the Admin-only user and role endpoints.
type AdminHandler struct {
	service ports.RoleAdministrator
}

func NewAdminHandler(service ports.RoleAdministrator) *AdminHandler {
	return &AdminHandler{service: service}
}

// ListUsers handles GET /admin/users.
//
// @Summary      List users
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Page size (default 20, max 100)"
// @Param        search  query     string  false  "Substring match on username or email"
// @Success      200     {object}  listUsersResponse
// @Failure      400     {object}  ErrorResponse
// @Failure      401     {object}  ErrorResponse
// @Failure      403     {object}  ErrorResponse
// @Router       /admin/users [get]
func (h *AdminHandler) ListUsers(c echo.Context) error {
	page, err := optionalInt(c, "page")
	if err != nil {
		return err
	}
	limit, err := optionalInt(c, "limit")
	if err != nil {
		return err
	}

	res, err := h.service.ListUsers(c.Request().Context(), ports.ListUsersInput{
		Search: c.QueryParam("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toListUsersResponse(res))
}

// ListRoles handles GET /admin/roles.
//
// @Summary      List assignable roles
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  listRolesResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Router       /admin/roles [get]
func (h *AdminHandler) ListRoles(c echo.Context) error {
	roles, err := h.service.ListRoles(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toListRolesResponse(roles))
}

// GetUser handles GET /admin/:name.
//
// @Summary      Get a user by username
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        name  path      string  true  "Username"
// @Success      200   {object}  userResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Router       /admin/{name} [get]
func (h *AdminHandler) GetUser(c echo.Context) error {
	user, err := h.service.GetUser(c.Request().Context(), c.Param("name"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

// ReplaceRoles handles PUT /admin/users/roles?username=.
// The body is the complete list of role names the user must end up with.
//
// @Summary      Replace a user's roles
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        username  query     string    true  "Username"
// @Param        body      body      []string  true  "Role names, e.g. [\"Admin\",\"User\"]"
// @Success      200       {object}  replaceRolesResponse
// @Failure      400       {object}  ErrorResponse
// @Failure      401       {object}  ErrorResponse
// @Failure      403       {object}  ErrorResponse
// @Failure      404       {object}  ErrorResponse
// @Router       /admin/users/roles [put]
func (h *AdminHandler) ReplaceRoles(c echo.Context) error {
	username := strings.TrimSpace(c.QueryParam("username"))
	if username == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username query parameter is required")
	}

	var roles []string
	if err := c.Bind(&roles); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "body must be a JSON array of role names")
	}

	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	change, err := h.service.ReplaceRoles(c.Request().Context(), ports.ReplaceRolesInput{
		Username:  username,
		Roles:     roles,
		ChangedBy: p.Username,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReplaceRolesResponse(change))
}

// RoleHistory handles GET /admin/:name/roles/history.
//
// @Summary      Role change history
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        name   path      string  true   "Username"
// @Param        limit  query     int     false  "Maximum records (default 50)"
// @Success      200    {object}  roleHistoryResponse
// @Failure      401    {object}  ErrorResponse
// @Failure      403    {object}  ErrorResponse
// @Failure      404    {object}  ErrorResponse
// @Router       /admin/{name}/roles/history [get]
func (h *AdminHandler) RoleHistory(c echo.Context) error {
	limit, err := optionalInt(c, "limit")
	if err != nil {
		return err
	}

	username := c.Param("name")
	changes, err := h.service.RoleHistory(c.Request().Context(), username, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toRoleHistoryResponse(username, changes))
}

// optionalInt parses a non-negative integer query parameter; absent means 0.
func optionalInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be a non-negative integer")
	}
	return n, nil
}
