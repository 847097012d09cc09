package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fuchiball-booking/internal/model"
	"github.com/iliyamo/fuchiball-booking/internal/repository"
	"github.com/iliyamo/fuchiball-booking/internal/reservation"
	"github.com/iliyamo/fuchiball-booking/internal/storage"
)

// ProfileHandler reads and writes the caller's player profile.
type ProfileHandler struct {
	Profiles *repository.ProfileRepo
}

func NewProfileHandler(p *repository.ProfileRepo) *ProfileHandler {
	return &ProfileHandler{Profiles: p}
}

// Get handles GET /v1/profile.
func (h *ProfileHandler) Get(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	p, err := h.Profiles.Get(ctx, principalOf(c).UserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

type profileReq struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Level    string `json:"level"`
}

// Put handles PUT /v1/profile.
func (h *ProfileHandler) Put(c echo.Context) error {
	var req profileReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.FullName == "" || len(req.FullName) > 255 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "full_name is required"})
	}
	if len(req.Phone) > 32 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "phone too long"})
	}
	if req.Level != "" && !model.ValidLevel(req.Level) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown level"})
	}

	uid := principalOf(c).UserID
	ctx, cancel := dbCtx(c)
	defer cancel()
	if err := h.Profiles.Upsert(ctx, model.Profile{UserID: uid, FullName: req.FullName, Phone: req.Phone, Level: req.Level}); err != nil {
		return fail(c, err)
	}
	p, err := h.Profiles.Get(ctx, uid)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// ProofOpener reads stored payment proofs.  *storage.GridFS satisfies it.
type ProofOpener interface {
	Open(ctx context.Context, path string) (io.ReadCloser, string, error)
}

// Proof handles GET /v1/proofs/*, streaming a stored payment proof.  The
// wildcard is the stored path below reservation.ProofDir, so the
// proof_link of a pending booking resolves here unchanged.
func Proof(store ProofOpener) echo.HandlerFunc {
	return func(c echo.Context) error {
		rel := path.Clean("/" + c.Param("*"))[1:]
		if rel == "" {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "proof not found"})
		}
		rc, contentType, err := store.Open(c.Request().Context(), reservation.ProofDir+rel)
		if errors.Is(err, storage.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "proof not found"})
		}
		if err != nil {
			return fail(c, err)
		}
		defer rc.Close()
		if contentType == "" {
			contentType = echo.MIMEOctetStream
		}
		c.Response().Header().Set("Cache-Control", "private, max-age=3600")
		return c.Stream(http.StatusOK, contentType, rc)
	}
}
