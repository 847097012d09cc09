package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/fuchiball-booking/internal/model"
	"github.com/iliyamo/fuchiball-booking/internal/repository"
)

// CatalogHandler serves the public match catalog.
type CatalogHandler struct {
	Matches *repository.MatchRepo
}

func NewCatalogHandler(m *repository.MatchRepo) *CatalogHandler {
	return &CatalogHandler{Matches: m}
}

// matchView is a match as the catalog shows it, with the price a player
// pays today.
type matchView struct {
	model.Match
	FinalPrice decimal.Decimal `json:"final_price"`
}

func viewOf(m model.Match) matchView {
	return matchView{Match: m, FinalPrice: m.FinalPrice()}
}

func viewsOf(ms []model.Match) []matchView {
	out := make([]matchView, 0, len(ms))
	for _, m := range ms {
		out = append(out, viewOf(m))
	}
	return out
}

// parseFilter reads the catalog query string.  Invalid values are
// reported rather than ignored.
func parseFilter(c echo.Context) (repository.MatchFilter, string) {
	f := repository.MatchFilter{
		Status: model.MatchActive,
		From:   c.QueryParam("from"),
		To:     c.QueryParam("to"),
		Level:  c.QueryParam("level"),
		Limit:  queryInt(c, "limit", 50, 200),
		Offset: queryInt(c, "offset", 0, 0),
	}
	switch s := c.QueryParam("status"); s {
	case "":
	case "all":
		f.Status = ""
	case model.MatchActive, model.MatchInactive:
		f.Status = s
	default:
		return f, "status must be active, inactive or all"
	}
	for _, d := range []string{f.From, f.To} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(model.DateLayout, d); err != nil {
			return f, "from/to must be YYYY-MM-DD"
		}
	}
	if f.Level != "" && !model.ValidLevel(f.Level) {
		return f, "unknown level"
	}
	if v := c.QueryParam("last_minute"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, "last_minute must be a boolean"
		}
		f.LastMinute = &b
	}
	if f.Limit == 0 {
		f.Limit = 50
	}
	return f, ""
}

// ListMatches handles GET /v1/matches.
func (h *CatalogHandler) ListMatches(c echo.Context) error {
	f, bad := parseFilter(c)
	if bad != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": bad})
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	items, total, err := h.Matches.List(ctx, f)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items":  viewsOf(items),
		"total":  total,
		"limit":  f.Limit,
		"offset": f.Offset,
	})
}

// LastMinute handles GET /v1/matches/last-minute: active discounted matches.
func (h *CatalogHandler) LastMinute(c echo.Context) error {
	on := true
	f := repository.MatchFilter{
		Status:     model.MatchActive,
		LastMinute: &on,
		Limit:      queryInt(c, "limit", 50, 200),
		Offset:     queryInt(c, "offset", 0, 0),
	}
	if f.Limit == 0 {
		f.Limit = 50
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	items, total, err := h.Matches.List(ctx, f)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": viewsOf(items), "total": total})
}

// GetMatch handles GET /v1/matches/:id.
func (h *CatalogHandler) GetMatch(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	m, err := h.Matches.GetByID(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(m))
}
