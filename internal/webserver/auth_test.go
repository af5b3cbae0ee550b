package webserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-secret"

func TestIssueAndParseToken(t *testing.T) {
	raw, err := IssueToken(testSecret, 42, "a@b.c", time.Hour)
	require.NoError(t, err)

	token, err := ParseToken(testSecret, raw)
	require.NoError(t, err)
	assert.True(t, token.Valid)

	_, err = ParseToken("other-secret", raw)
	assert.Error(t, err)

	expired, err := IssueToken(testSecret, 42, "a@b.c", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(testSecret, expired)
	assert.Error(t, err)
}

func serveWith(mw echo.MiddlewareFunc, authHeader string) (*httptest.ResponseRecorder, int64, string) {
	e := echo.New()
	var uid int64
	var email string
	e.GET("/", func(c echo.Context) error {
		uid = CurrentUserID(c)
		email = CurrentUserEmail(c)
		return c.NoContent(http.StatusNoContent)
	}, mw)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec, uid, email
}

func TestRequireAuth(t *testing.T) {
	raw, err := IssueToken(testSecret, 7, "seller@example.com", time.Hour)
	require.NoError(t, err)

	rec, uid, email := serveWith(RequireAuth(testSecret), "Bearer "+raw)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.EqualValues(t, 7, uid)
	assert.Equal(t, "seller@example.com", email)

	rec, _, _ = serveWith(RequireAuth(testSecret), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())

	rec, _, _ = serveWith(RequireAuth(testSecret), "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOptionalAuth(t *testing.T) {
	rec, uid, _ := serveWith(OptionalAuth(testSecret), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, uid)

	rec, uid, _ = serveWith(OptionalAuth(testSecret), "Bearer not-a-token")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, uid)

	raw, err := IssueToken(testSecret, 9, "buyer@example.com", time.Hour)
	require.NoError(t, err)
	rec, uid, _ = serveWith(OptionalAuth(testSecret), "Bearer "+raw)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.EqualValues(t, 9, uid)
}

func TestValidatorUsesJSONNames(t *testing.T) {
	type input struct {
		FullName string `json:"full_name" validate:"required"`
	}
	err := NewValidator().Validate(&input{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "full_name")
}

func TestEmptySecretRejected(t *testing.T) {
	_, err := IssueToken("", 42, "a@b.c", time.Hour)
	assert.ErrorIs(t, err, ErrNoSecret)

	forged, err := IssueToken(testSecret, 42, "a@b.c", time.Hour)
	require.NoError(t, err)
	_, err = ParseToken("", forged)
	assert.ErrorIs(t, err, ErrNoSecret)
	rec, uid, _ := serveWith(RequireAuth(""), "Bearer "+forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, uid)
}
