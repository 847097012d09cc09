package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fuchiball-booking/internal/handler"
	"github.com/iliyamo/fuchiball-booking/internal/middleware"
)

// Public registers the routes that need no session: health, the cached
// match catalog and stored proof downloads.  cache and limit wrap the
// catalog group only.
func Public(e *echo.Echo, health echo.HandlerFunc, cat *handler.CatalogHandler, proofs echo.HandlerFunc, cache, limit echo.MiddlewareFunc) {
	e.GET("/healthz", health)

	g := e.Group("/v1", limit)
	m := g.Group("/matches", cache)
	m.GET("", cat.ListMatches)
	m.GET("/last-minute", cat.LastMinute)
	m.GET("/:id", cat.GetMatch)

	if proofs != nil {
		g.GET("/proofs/*", proofs)
	}
}

// Auth registers the session endpoints.  Register, login and the refresh
// exchanges live under /v1/auth without a token; /v1/me requires one.
func Auth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limit)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// logout reads the bearer itself so an expired access token can still
	// revoke a refresh token
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}
