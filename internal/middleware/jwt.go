package middleware // middleware holds the Echo middleware shared by all route groups

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation/internal/utils"
)

// JWTAuth requires a valid Bearer access token and stores its subject and
// role in the context for Identity.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return auth(secret, true)
}

// OptionalJWT authenticates the request when a Bearer token is present and
// lets anonymous requests through.  A token that is present but invalid is
// still rejected so that clients notice expired sessions.
func OptionalJWT(secret string) echo.MiddlewareFunc {
	return auth(secret, false)
}

func auth(secret string, required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" && !required {
				return next(c)
			}
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return unauthorized(c, "missing bearer token")
			}
			id, err := utils.ParseAccessToken(secret, strings.TrimSpace(raw))
			if err != nil {
				return unauthorized(c, "invalid or expired token")
			}
			c.Set(ctxUserID, id.UserID)
			c.Set(ctxRole, id.Role)
			return next(c)
		}
	}
}
