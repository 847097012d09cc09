package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fuchiball-booking/internal/identity"
)

// principal returns the caller attached by JWTAuth, or the anonymous
// principal on public routes.
func principal(c echo.Context) identity.Principal {
	if p, ok := c.Get(PrincipalKey).(identity.Principal); ok {
		return p
	}
	return identity.FromContext(c.Request().Context())
}

// userID is the rate limit and cache key component for the caller:
// the numeric id, or "guest".
func userID(c echo.Context) string {
	return principal(c).Subject()
}
