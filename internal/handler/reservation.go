package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fuchiball-booking/internal/reservation"
)

// ReservationHandler exposes the player side of the workflow.
type ReservationHandler struct {
	Svc *reservation.Service
}

func NewReservationHandler(svc *reservation.Service) *ReservationHandler {
	return &ReservationHandler{Svc: svc}
}

type claimReq struct {
	Phone string `json:"yape_phone" form:"yape_phone"`
	Name  string `json:"yape_name" form:"yape_name"`
	Code  string `json:"yape_code" form:"yape_code"`
}

// readClaim builds the payment claim from a JSON or multipart body.  It
// returns nil when the body carries no payment details.  The caller closes
// the returned closer, if any, once the claim is processed.
func readClaim(c echo.Context) (*reservation.PaymentClaim, func(), error) {
	done := func() {}
	var req claimReq
	ct := c.Request().Header.Get(echo.HeaderContentType)
	multipart := strings.HasPrefix(ct, echo.MIMEMultipartForm)
	if c.Request().ContentLength != 0 || multipart {
		if err := c.Bind(&req); err != nil {
			return nil, done, errors.New("invalid body")
		}
	}
	if req.Phone == "" && req.Name == "" && req.Code == "" && !multipart {
		return nil, done, nil
	}
	claim := &reservation.PaymentClaim{Phone: req.Phone, Name: req.Name, Code: req.Code}
	if !multipart {
		return claim, done, nil
	}
	fh, err := c.FormFile("proof")
	if errors.Is(err, http.ErrMissingFile) {
		return claim, done, nil
	}
	if err != nil {
		return nil, done, errors.New("invalid proof file")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, done, errors.New("invalid proof file")
	}
	claim.Proof = &reservation.Proof{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Body:        f,
	}
	return claim, func() { _ = f.Close() }, nil
}

// Join handles POST /v1/matches/:id/join.  In direct mode the body is
// ignored; in claim mode it carries the Yape payment details and an
// optional "proof" file.
func (h *ReservationHandler) Join(c echo.Context) error {
	var claim *reservation.PaymentClaim
	if h.Svc.Mode() == reservation.ModeClaim {
		cl, done, err := readClaim(c)
		defer done()
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		claim = cl
	}

	res, err := h.Svc.RequestJoin(c.Request().Context(), principalOf(c), c.Param("id"), claim)
	if err != nil {
		return fail(c, err)
	}
	status := http.StatusOK
	switch {
	case res.Created && res.AwaitingReview():
		status = http.StatusAccepted
	case res.Created:
		status = http.StatusCreated
	}
	return c.JSON(status, res)
}

// MyMatches handles GET /v1/my-matches?scope=upcoming|history|all.
func (h *ReservationHandler) MyMatches(c echo.Context) error {
	scope, ok := reservation.ParseScope(c.QueryParam("scope"))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "scope must be upcoming, history or all"})
	}
	items, err := h.Svc.ListMyMatches(c.Request().Context(), principalOf(c), scope)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Cancel handles POST /v1/participations/:id/cancel.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	p, err := h.Svc.Cancel(c.Request().Context(), principalOf(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// AdminReviewHandler exposes the admin verification queue.
type AdminReviewHandler struct {
	Svc *reservation.Service
}

func NewAdminReviewHandler(svc *reservation.Service) *AdminReviewHandler {
	return &AdminReviewHandler{Svc: svc}
}

// Pending handles GET /v1/admin/pending-bookings.
func (h *AdminReviewHandler) Pending(c echo.Context) error {
	items, err := h.Svc.ListPendingBookings(c.Request().Context(), principalOf(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

type reviewReq struct {
	Decision string `json:"decision"`
}

// Review handles POST /v1/admin/pending-bookings/:id/review.
func (h *AdminReviewHandler) Review(c echo.Context) error {
	var req reviewReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	d := reservation.Decision(strings.ToLower(strings.TrimSpace(req.Decision)))
	res, err := h.Svc.ReviewPendingBooking(c.Request().Context(), principalOf(c), c.Param("id"), d)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
