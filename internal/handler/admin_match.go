package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/fuchiball-booking/internal/model"
	"github.com/iliyamo/fuchiball-booking/internal/repository"
	"github.com/iliyamo/fuchiball-booking/internal/reservation"
)

// AdminMatchHandler manages matches.  Routes are mounted behind
// middleware.RequireAdmin.
type AdminMatchHandler struct {
	Matches      *repository.MatchRepo
	Participants *repository.ParticipantRepo
	Cache        reservation.CacheInvalidator // may be nil
}

func NewAdminMatchHandler(m *repository.MatchRepo, p *repository.ParticipantRepo, cache reservation.CacheInvalidator) *AdminMatchHandler {
	return &AdminMatchHandler{Matches: m, Participants: p, Cache: cache}
}

func (h *AdminMatchHandler) purge(ctx context.Context) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Invalidate(ctx); err != nil {
		log.WithError(err).Warn("catalog cache invalidation failed")
	}
}

func validateMatch(in *repository.MatchInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Location = strings.TrimSpace(in.Location)
	switch {
	case in.Title == "" || len(in.Title) > 255:
		return fmt.Errorf("title is required")
	case in.Location == "" || len(in.Location) > 255:
		return fmt.Errorf("location is required")
	case in.TotalSpots <= 0:
		return fmt.Errorf("total_spots must be positive")
	case in.Price.IsNegative():
		return fmt.Errorf("price must not be negative")
	case !model.ValidLevel(in.Level):
		return fmt.Errorf("level must be one of %s, %s, %s", model.LevelBasic, model.LevelIntermediate, model.LevelAdvanced)
	case in.Duration <= 0:
		return fmt.Errorf("duration must be positive")
	case in.Format <= 0:
		return fmt.Errorf("format must be positive")
	}
	if _, err := time.Parse(model.DateLayout, in.Date); err != nil {
		return fmt.Errorf("date must be YYYY-MM-DD")
	}
	if _, err := time.Parse(model.ClockLayout, in.Time); err != nil {
		return fmt.Errorf("time must be HH:MM")
	}
	return nil
}

// List handles GET /v1/admin/matches: every match, newest first.
func (h *AdminMatchHandler) List(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	items, err := h.Matches.ListAll(ctx, queryInt(c, "limit", 100, 500), queryInt(c, "offset", 0, 0))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": viewsOf(items)})
}

// Create handles POST /v1/admin/matches.
func (h *AdminMatchHandler) Create(c echo.Context) error {
	var in repository.MatchInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := validateMatch(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	m, err := h.Matches.Create(ctx, in, principalOf(c).UserID)
	if err != nil {
		return fail(c, err)
	}
	h.purge(ctx)
	return c.JSON(http.StatusCreated, viewOf(m))
}

// Update handles PUT /v1/admin/matches/:id.
func (h *AdminMatchHandler) Update(c echo.Context) error {
	var in repository.MatchInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := validateMatch(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	m, err := h.Matches.Update(ctx, c.Param("id"), in)
	if err != nil {
		return fail(c, err)
	}
	h.purge(ctx)
	return c.JSON(http.StatusOK, viewOf(m))
}

type statusReq struct {
	Status string `json:"status"`
}

// SetStatus handles PATCH /v1/admin/matches/:id.  Setting "inactive"
// cancels the match: it leaves the catalog and refuses new joins.
func (h *AdminMatchHandler) SetStatus(c echo.Context) error {
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Status != model.MatchActive && req.Status != model.MatchInactive {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be active or inactive"})
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	if err := h.Matches.SetStatus(ctx, c.Param("id"), req.Status); err != nil {
		return fail(c, err)
	}
	h.purge(ctx)
	m, err := h.Matches.GetByID(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(m))
}

type lastMinuteReq struct {
	IsLastMinute       bool `json:"is_last_minute"`
	DiscountPercentage int  `json:"discount_percentage"`
}

// SetLastMinute handles POST /v1/admin/matches/:id/last-minute.
func (h *AdminMatchHandler) SetLastMinute(c echo.Context) error {
	var req lastMinuteReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.DiscountPercentage < 0 || req.DiscountPercentage > 100 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "discount_percentage must be between 0 and 100"})
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	if err := h.Matches.SetLastMinute(ctx, c.Param("id"), req.IsLastMinute, req.DiscountPercentage); err != nil {
		return fail(c, err)
	}
	h.purge(ctx)
	m, err := h.Matches.GetByID(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(m))
}

// Delete handles DELETE /v1/admin/matches/:id.  Referenced matches are
// refused with 409.
func (h *AdminMatchHandler) Delete(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	if err := h.Matches.Delete(ctx, c.Param("id")); err != nil {
		return fail(c, err)
	}
	h.purge(ctx)
	return c.NoContent(http.StatusNoContent)
}

// Roster handles GET /v1/admin/matches/:id/participants.
func (h *AdminMatchHandler) Roster(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	id := c.Param("id")
	if _, err := h.Matches.GetByID(ctx, id); err != nil {
		return fail(c, err)
	}
	items, err := h.Participants.ListByMatch(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
