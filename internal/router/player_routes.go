package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fuchiball-booking/internal/handler"
	"github.com/iliyamo/fuchiball-booking/internal/identity"
	"github.com/iliyamo/fuchiball-booking/internal/middleware"
)

// Player registers the endpoints of a signed-in player.  Admins may use
// them too.
func Player(e *echo.Echo, r *handler.ReservationHandler, p *handler.ProfileHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(identity.RolePlayer, identity.RoleAdmin),
		limit,
	)
	g.POST("/matches/:id/join", r.Join)
	g.GET("/my-matches", r.MyMatches)
	g.POST("/participations/:id/cancel", r.Cancel)

	g.GET("/profile", p.Get)
	g.PUT("/profile", p.Put)
}
