package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/fuchiball-booking/internal/identity"
	"github.com/iliyamo/fuchiball-booking/internal/middleware"
	"github.com/iliyamo/fuchiball-booking/internal/repository"
	"github.com/iliyamo/fuchiball-booking/internal/reservation"
)

// principalOf returns the caller attached by middleware.JWTAuth.
func principalOf(c echo.Context) identity.Principal {
	if p, ok := c.Get(middleware.PrincipalKey).(identity.Principal); ok {
		return p
	}
	return identity.FromContext(c.Request().Context())
}

// dbCtx bounds the database work of one request.
func dbCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

var statusOf = []struct {
	err    error
	status int
}{
	{reservation.ErrNotAuthenticated, http.StatusUnauthorized},
	{reservation.ErrNotAuthorized, http.StatusForbidden},
	{reservation.ErrCapacityExhausted, http.StatusConflict},
	{reservation.ErrUploadFailed, http.StatusBadGateway},
	{reservation.ErrMatchNotFound, http.StatusNotFound},
	{reservation.ErrMatchNotBookable, http.StatusConflict},
	{reservation.ErrMatchStarted, http.StatusConflict},
	{reservation.ErrBookingNotFound, http.StatusNotFound},
	{reservation.ErrBookingAlreadyReviewed, http.StatusConflict},
	{reservation.ErrParticipationNotFound, http.StatusNotFound},
	{reservation.ErrNotCancellable, http.StatusConflict},
	{reservation.ErrInvalidClaim, http.StatusBadRequest},
	{reservation.ErrInvalidDecision, http.StatusBadRequest},
	{reservation.ErrCodeSpaceExhausted, http.StatusInternalServerError},
	{repository.ErrConflict, http.StatusConflict},
	{reservation.ErrPersistenceFailed, http.StatusInternalServerError},
}

// fail writes err as {"error": ...} with the status its sentinel maps to.
// Unmapped errors are logged and reported as 500 without detail.
func fail(c echo.Context, err error) error {
	for _, m := range statusOf {
		if errors.Is(err, m.err) {
			if m.status >= 500 {
				log.WithError(err).WithField("path", c.Path()).Error("request failed")
				return c.JSON(m.status, echo.Map{"error": m.err.Error()})
			}
			return c.JSON(m.status, echo.Map{"error": errorText(err, m.err)})
		}
	}
	log.WithError(err).WithField("path", c.Path()).Error("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// errorText keeps the detail of validation errors ("invalid payment
// claim: phone ...") and the bare sentinel text otherwise.
func errorText(err, sentinel error) string {
	if errors.Is(sentinel, reservation.ErrInvalidClaim) || errors.Is(sentinel, repository.ErrConflict) {
		return err.Error()
	}
	return sentinel.Error()
}

func queryInt(c echo.Context, name string, def, max int) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || n < 0 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}
