package handler_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/fuchiball-booking/internal/handler"
	"github.com/iliyamo/fuchiball-booking/internal/identity"
	"github.com/iliyamo/fuchiball-booking/internal/middleware"
	"github.com/iliyamo/fuchiball-booking/internal/model"
	"github.com/iliyamo/fuchiball-booking/internal/reservation"
	"github.com/iliyamo/fuchiball-booking/internal/reservation/reservationtest"
)

var (
	player = identity.Principal{UserID: 1, Email: "p@example.com", Role: identity.RolePlayer}
	admin  = identity.Principal{UserID: 9, Email: "a@example.com", Role: identity.RoleAdmin}
)

func limaTZ(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Lima")
	require.NoError(t, err)
	return loc
}

type server struct {
	e       *echo.Echo
	store   *reservationtest.Store
	objects *reservationtest.Objects
}

// as stands in for middleware.JWTAuth: it attaches a fixed caller.
func as(p identity.Principal) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if p.Authenticated() {
				c.Set(middleware.PrincipalKey, p)
			}
			return next(c)
		}
	}
}

func newServer(t *testing.T, mode reservation.Mode, caller identity.Principal) *server {
	t.Helper()
	s := &server{store: reservationtest.New(), objects: reservationtest.NewObjects()}
	s.store.AddMatch(model.Match{
		ID: "m1", Title: "Pichanga Surco", Location: "Surco", Date: "2099-05-01", Time: "20:00",
		TotalSpots: 2, AvailableSpots: 2, Price: decimal.NewFromInt(12),
		Level: model.LevelBasic, Status: model.MatchActive, Duration: 60, Format: 5,
	})
	svc := reservation.New(
		reservation.Config{Mode: mode, Location: limaTZ(t), MaxProofBytes: 1 << 20},
		reservation.Deps{
			Store:   s.store,
			Policy:  identity.NewPolicy(identity.StaticRoles{player.UserID: identity.RolePlayer, admin.UserID: identity.RoleAdmin}),
			Objects: s.objects,
			Events:  &reservationtest.Events{},
			Cache:   &reservationtest.Cache{},
		},
	)
	rh := handler.NewReservationHandler(svc)
	ah := handler.NewAdminReviewHandler(svc)

	s.e = echo.New()
	g := s.e.Group("/v1", as(caller))
	g.POST("/matches/:id/join", rh.Join)
	g.GET("/my-matches", rh.MyMatches)
	g.POST("/participations/:id/cancel", rh.Cancel)
	g.GET("/admin/pending-bookings", ah.Pending)
	g.POST("/admin/pending-bookings/:id/review", ah.Review)
	s.e.GET("/v1/proofs/*", handler.Proof(s.objects))
	return s
}

func (s *server) do(method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestDirectJoinListAndCancel(t *testing.T) {
	s := newServer(t, reservation.ModeDirect, player)

	rec := s.do(http.MethodPost, "/v1/matches/m1/join", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res reservation.JoinResult
	decode(t, rec, &res)
	require.NotNil(t, res.Participation)
	assert.True(t, res.Created)
	assert.Equal(t, 1, s.store.Match("m1").AvailableSpots)

	rec = s.do(http.MethodPost, "/v1/matches/m1/join", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, s.store.Match("m1").AvailableSpots)

	rec = s.do(http.MethodGet, "/v1/my-matches?scope=upcoming", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Items []model.ParticipationDetail `json:"items"`
	}
	decode(t, rec, &list)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Pichanga Surco", list.Items[0].Match.Title)

	rec = s.do(http.MethodPost, "/v1/participations/"+res.Participation.ID+"/cancel", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, s.store.Match("m1").AvailableSpots)

	rec = s.do(http.MethodPost, "/v1/participations/"+res.Participation.ID+"/cancel", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/v1/my-matches?scope=past", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/v1/matches/nope/join", "", nil).Code)
}

func TestJoinRequiresCaller(t *testing.T) {
	s := newServer(t, reservation.ModeDirect, identity.Principal{})
	rec := s.do(http.MethodPost, "/v1/matches/m1/join", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"not authenticated"}`, rec.Body.String())
}

func TestClaimJSONAndReview(t *testing.T) {
	s := newServer(t, reservation.ModeClaim, player)

	body := `{"yape_phone":"+51 987654321","yape_name":"Luis Quispe","yape_code":"TX-1"}`
	rec := s.do(http.MethodPost, "/v1/matches/m1/join", echo.MIMEApplicationJSON, []byte(body))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var res reservation.JoinResult
	decode(t, rec, &res)
	require.NotNil(t, res.Booking)
	assert.Equal(t, "987654321", res.Booking.YapePhone)
	assert.Equal(t, 2, s.store.Match("m1").AvailableSpots)

	// the player is not an admin
	rec = s.do(http.MethodPost, "/v1/admin/pending-bookings/"+res.Booking.ID+"/review",
		echo.MIMEApplicationJSON, []byte(`{"decision":"approve"}`))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	adm := newServerSharing(t, s, admin)
	rec = adm.do(http.MethodGet, "/v1/admin/pending-bookings", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), res.Booking.ID)

	rec = adm.do(http.MethodPost, "/v1/admin/pending-bookings/"+res.Booking.ID+"/review",
		echo.MIMEApplicationJSON, []byte(`{"decision":"maybe"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = adm.do(http.MethodPost, "/v1/admin/pending-bookings/"+res.Booking.ID+"/review",
		echo.MIMEApplicationJSON, []byte(`{"decision":"APPROVE"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rr reservation.ReviewResult
	decode(t, rec, &rr)
	assert.Equal(t, model.BookingVerified, rr.Booking.Status)
	require.NotNil(t, rr.Participation)
	assert.Equal(t, 1, s.store.Match("m1").AvailableSpots)

	rec = adm.do(http.MethodPost, "/v1/admin/pending-bookings/"+res.Booking.ID+"/review",
		echo.MIMEApplicationJSON, []byte(`{"decision":"reject"}`))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// newServerSharing serves the admin queue of base's store under another
// caller.
func newServerSharing(t *testing.T, base *server, caller identity.Principal) *server {
	t.Helper()
	svc := reservation.New(
		reservation.Config{Mode: reservation.ModeClaim, Location: limaTZ(t)},
		reservation.Deps{
			Store:   base.store,
			Policy:  identity.NewPolicy(identity.StaticRoles{player.UserID: identity.RolePlayer, admin.UserID: identity.RoleAdmin}),
			Objects: base.objects,
		},
	)
	ah := handler.NewAdminReviewHandler(svc)
	s := &server{e: echo.New(), store: base.store, objects: base.objects}
	g := s.e.Group("/v1", as(caller))
	g.GET("/admin/pending-bookings", ah.Pending)
	g.POST("/admin/pending-bookings/:id/review", ah.Review)
	return s
}

func TestClaimRefusals(t *testing.T) {
	s := newServer(t, reservation.ModeClaim, player)

	rec := s.do(http.MethodPost, "/v1/matches/m1/join", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/v1/matches/m1/join", echo.MIMEApplicationJSON,
		[]byte(`{"yape_phone":"12345","yape_name":"Luis","yape_code":"TX-1"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "yape_phone")

	rec = s.do(http.MethodPost, "/v1/matches/m1/join", echo.MIMEApplicationJSON, []byte(`{not json`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, s.store.BookingCount())
}

func multipartClaim(t *testing.T, proof []byte, proofType string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("yape_phone", "912345678"))
	require.NoError(t, w.WriteField("yape_name", "Rosa Diaz"))
	require.NoError(t, w.WriteField("yape_code", "TX-42"))
	if proof != nil {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="proof"; filename="yape.png"`)
		h.Set("Content-Type", proofType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(proof)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes(), w.FormDataContentType()
}

func TestClaimMultipartWithProof(t *testing.T) {
	s := newServer(t, reservation.ModeClaim, player)
	png := []byte("\x89PNG\r\n\x1a\nfake")

	body, ct := multipartClaim(t, png, "image/png")
	rec := s.do(http.MethodPost, "/v1/matches/m1/join", ct, body)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var res reservation.JoinResult
	decode(t, rec, &res)
	require.NotNil(t, res.Booking.PaymentProofURL)
	stored := *res.Booking.PaymentProofURL
	assert.True(t, strings.HasPrefix(stored, "proofs/m1/"), stored)
	assert.Equal(t, png, s.objects.Files[stored])

	adm := newServerSharing(t, s, admin)
	rec = adm.do(http.MethodGet, "/v1/admin/pending-bookings", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var queue struct {
		Items []model.PendingBookingDetail `json:"items"`
	}
	decode(t, rec, &queue)
	require.Len(t, queue.Items, 1)
	link := queue.Items[0].ProofLink
	require.NotEmpty(t, link)

	rec = s.do(http.MethodGet, link, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, link)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, png, rec.Body.Bytes())

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/v1/proofs/m1/missing.png", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/v1/proofs/../etc/passwd", "", nil).Code)
}

func TestClaimMultipartRejectsExecutable(t *testing.T) {
	s := newServer(t, reservation.ModeClaim, player)
	body, ct := multipartClaim(t, []byte("MZ"), "application/x-msdownload")
	rec := s.do(http.MethodPost, "/v1/matches/m1/join", ct, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, s.objects.Files)
}
