package router_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/fuchiball-booking/internal/handler"
	"github.com/iliyamo/fuchiball-booking/internal/identity"
	"github.com/iliyamo/fuchiball-booking/internal/model"
	"github.com/iliyamo/fuchiball-booking/internal/repository"
	"github.com/iliyamo/fuchiball-booking/internal/router"
	"github.com/iliyamo/fuchiball-booking/internal/utils"
)

const secret = "test-secret"

var (
	adminUser  = identity.Principal{UserID: 1, Email: "admin@example.com", Role: identity.RoleAdmin}
	playerUser = identity.Principal{UserID: 7, Email: "luis@example.com", Role: identity.RolePlayer}
)

var matchCols = []string{
	"id", "title", "location", "date", "time", "total_spots", "available_spots", "price", "level", "status",
	"is_last_minute", "discount_percentage", "duration", "format", "includes", "description", "created_by",
	"created_at", "updated_at",
}

var participantCols = []string{"id", "match_id", "user_id", "code", "status", "joined_at", "cancelled_at", "finished_at"}

func newAdminServer(t *testing.T) (*echo.Echo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	e := echo.New()
	m := handler.NewAdminMatchHandler(repository.NewMatchRepo(db), repository.NewParticipantRepo(db), nil)
	policy := identity.NewPolicy(identity.StaticRoles{adminUser.UserID: identity.RoleAdmin, playerUser.UserID: identity.RolePlayer})
	router.Admin(e, m, handler.NewAdminReviewHandler(nil), secret, policy)
	return e, mock
}

func get(t *testing.T, e *echo.Echo, path string, as identity.Principal) *httptest.ResponseRecorder {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, as, 5)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAdminMatchRoster(t *testing.T) {
	e, mock := newAdminServer(t)
	now := time.Date(2026, 10, 1, 15, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM matches m WHERE m\.id = \?`).WithArgs("m1").
		WillReturnRows(sqlmock.NewRows(matchCols).AddRow(
			"m1", "Pichanga Surco", "Surco", "2099-05-01", "20:00", 10, 8, "12.00", model.LevelBasic, model.MatchActive,
			false, nil, 60, 5, nil, nil, int64(1), now, now))
	mock.ExpectQuery(`FROM match_participants p WHERE p\.match_id = \?`).WithArgs("m1").
		WillReturnRows(sqlmock.NewRows(participantCols).
			AddRow("p1", "m1", int64(7), "FBC-1234", model.ParticipationConfirmed, now, nil, nil).
			AddRow("p2", "m1", int64(8), "FBC-5678", model.ParticipationCancelled, now, now, nil))

	rec := get(t, e, "/v1/admin/matches/m1/participants", adminUser)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Items []model.Participation `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 2)
	assert.Equal(t, "FBC-1234", body.Items[0].Code)
	assert.Equal(t, model.ParticipationCancelled, body.Items[1].Status)
	assert.NotNil(t, body.Items[1].CancelledAt)
}

func TestAdminMatchRosterUnknownMatch(t *testing.T) {
	e, mock := newAdminServer(t)
	mock.ExpectQuery(`FROM matches m WHERE m\.id = \?`).WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(matchCols))

	rec := get(t, e, "/v1/admin/matches/nope/participants", adminUser)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"match not found"}`, rec.Body.String())
}

func TestAdminRoutesRefusePlayers(t *testing.T) {
	e, _ := newAdminServer(t)
	rec := get(t, e, "/v1/admin/matches/m1/participants", playerUser)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
