package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation/internal/handler"
	"github.com/iliyamo/hotel-reservation/internal/middleware"
)

// RegisterIMS mounts the front-desk dashboard under /api/ims.  Only the
// staff login is public; everything else requires a staff token.
func RegisterIMS(e *echo.Echo, h *handler.IMSHandler, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	e.POST("/api/ims/auth/login", a.StaffLogin, limit)

	g := e.Group("/api/ims", limit, middleware.JWTAuth(jwtSecret), middleware.RequireStaff())
	g.GET("/dashboard/stats", h.Stats)

	g.GET("/rooms", h.Rooms)
	g.PATCH("/rooms/:id/status", h.UpdateRoomStatus)
	g.POST("/rooms/:id/hold", h.HoldRoom)
	g.DELETE("/rooms/:id/hold", h.ReleaseHold)

	g.GET("/bookings", h.ListBookings)
	g.PATCH("/bookings/:id/status", h.UpdateBookingStatus)
	g.POST("/bookings/walk-in", h.WalkIn)

	g.GET("/shift/current", h.CurrentShift)
	g.POST("/shift/submit", h.SubmitShift)
	g.GET("/staff", h.Staff)
}

// RegisterDev mounts the sandbox payment tools under /api/dev.
func RegisterDev(e *echo.Echo, h *handler.DevHandler) {
	g := e.Group("/api/dev")
	g.POST("/simulate-payment/:referenceCode", h.SimulatePayment)
	g.GET("/pending-bookings", h.PendingBookings)
}
