package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/fuchiball-booking/internal/identity"
	"github.com/iliyamo/fuchiball-booking/internal/utils"
)

const secret = "test-secret"

func bearer(t *testing.T, p identity.Principal) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, p, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func serve(e *echo.Echo, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAttachesPrincipal(t *testing.T) {
	e := echo.New()
	var seen identity.Principal
	e.GET("/x", func(c echo.Context) error {
		seen = identity.FromContext(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	}, JWTAuth(secret))

	p := identity.Principal{UserID: 9, Email: "p@example.com", Role: identity.RolePlayer}
	rec := serve(e, bearer(t, p))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, p, seen)

	assert.Equal(t, http.StatusUnauthorized, serve(e, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, "Bearer nope").Code)
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		JWTAuth(secret), RequireRole(identity.RoleAdmin))

	assert.Equal(t, http.StatusForbidden,
		serve(e, bearer(t, identity.Principal{UserID: 1, Role: identity.RolePlayer})).Code)
	assert.Equal(t, http.StatusNoContent,
		serve(e, bearer(t, identity.Principal{UserID: 1, Role: identity.RoleAdmin})).Code)
}

func TestRequireAdminUsesStoredRole(t *testing.T) {
	roles := identity.StaticRoles{1: identity.RoleAdmin, 2: identity.RolePlayer}
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		JWTAuth(secret), RequireAdmin(identity.NewPolicy(roles)))

	assert.Equal(t, http.StatusNoContent,
		serve(e, bearer(t, identity.Principal{UserID: 1, Role: identity.RoleAdmin})).Code)
	// demoted after the token was issued
	assert.Equal(t, http.StatusForbidden,
		serve(e, bearer(t, identity.Principal{UserID: 2, Role: identity.RoleAdmin})).Code)
	// deleted user
	assert.Equal(t, http.StatusForbidden,
		serve(e, bearer(t, identity.Principal{UserID: 3, Role: identity.RoleAdmin})).Code)
}

func TestPayloadCodec(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.JSONEq(t, `{"ok":true}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 0})
	assert.False(t, ok)
}
