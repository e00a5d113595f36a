package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
	"github.com/iliyamo/hotel-reservation/internal/model"
)

// RequireRole rejects requests whose role, as set by JWTAuth, is not one of
// roles.  It must run after JWTAuth.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, role := Identity(c); !allowed[role] {
				return deny(c, apperr.KindSecurity, http.StatusForbidden, "forbidden")
			}
			return next(c)
		}
	}
}

// RequireStaff admits every staff role.
func RequireStaff() echo.MiddlewareFunc { return RequireRole(model.StaffRoles...) }
