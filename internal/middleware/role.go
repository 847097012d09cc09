package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/fuchiball-booking/internal/identity"
)

// RequireRole rejects callers whose token role is not one of roles.  It is
// a cheap first gate; RequireAdmin checks the persisted role.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !allowed[principal(c).Role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

// Authorizer is the admin check, satisfied by *identity.Policy.
type Authorizer interface {
	IsAdmin(ctx context.Context, p identity.Principal) (bool, error)
}

// RequireAdmin lets through only callers whose stored role is ADMIN, so a
// demoted admin is refused even while holding an older token.
func RequireAdmin(authz Authorizer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ok, err := authz.IsAdmin(c.Request().Context(), principal(c))
			if err != nil {
				log.WithError(err).Error("admin check failed")
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
			}
			if !ok {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
