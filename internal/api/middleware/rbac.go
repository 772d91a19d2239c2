package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/storefront/identity-service/internal/core/domain"
)

// RBAC lets the request through when the authenticated principal holds any
// of allowedRoles. Must be mounted after Auth.
func RBAC(allowedRoles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, _ := c.Get("principal").(*domain.Principal)
			if p == nil || !p.HasAnyRole(allowedRoles...) {
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}
