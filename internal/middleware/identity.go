package middleware

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
	"github.com/iliyamo/hotel-reservation/internal/model"
)

// Context keys set by the auth middleware.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// Identity returns the authenticated user id and role.  Anonymous requests
// yield 0 and the empty role.
func Identity(c echo.Context) (uint64, model.Role) {
	id, _ := c.Get(ctxUserID).(uint64)
	role, _ := c.Get(ctxRole).(model.Role)
	return id, role
}

// currentUserID is the rate limiter's view of the caller: the user id, or
// "anon".
func currentUserID(c echo.Context) string {
	if id, _ := Identity(c); id != 0 {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}

// deny writes the standard error envelope without going through a handler.
func deny(c echo.Context, kind apperr.Kind, status int, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "error": kind.String(), "message": msg})
}

func unauthorized(c echo.Context, msg string) error {
	return deny(c, apperr.KindSecurity, http.StatusUnauthorized, msg)
}
