package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fuchiball-booking/internal/handler"
	"github.com/iliyamo/fuchiball-booking/internal/middleware"
)

// Admin registers match management and the payment claim queue under
// /v1/admin.  Access is decided by the persisted role, not the token.
func Admin(e *echo.Echo, m *handler.AdminMatchHandler, rv *handler.AdminReviewHandler, jwtSecret string, authz middleware.Authorizer) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireAdmin(authz),
	)

	g.GET("/matches", m.List)
	g.POST("/matches", m.Create)
	g.PUT("/matches/:id", m.Update)
	g.PATCH("/matches/:id", m.SetStatus)
	g.DELETE("/matches/:id", m.Delete)
	g.POST("/matches/:id/last-minute", m.SetLastMinute)
	g.GET("/matches/:id/participants", m.Roster)

	g.GET("/pending-bookings", rv.Pending)
	g.POST("/pending-bookings/:id/review", rv.Review)
}
