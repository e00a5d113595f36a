package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is the liveness check used by load balancers.  It answers in the
// same envelope as the rest of the API.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"success": true, "status": "ok"})
}
