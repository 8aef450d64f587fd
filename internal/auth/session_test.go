package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueVerify(t *testing.T) {
	iss, err := NewIssuer(time.Hour)
	require.NoError(t, err)

	user := uuid.New()
	token, err := iss.Issue(user)
	require.NoError(t, err)

	got, err := iss.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, user, got)
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	a, err := NewIssuer(0)
	require.NoError(t, err)
	b, err := NewIssuer(0)
	require.NoError(t, err)

	token, err := a.Issue(uuid.New())
	require.NoError(t, err)
	_, err = b.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	iss, err := NewIssuer(time.Hour)
	require.NoError(t, err)

	claims := jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(iss.privateKey)
	require.NoError(t, err)

	_, err = iss.Verify(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestVerifyRejectsNonUUIDSubject(t *testing.T) {
	iss, err := NewIssuer(0)
	require.NoError(t, err)
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.RegisteredClaims{Subject: "guest"}).SignedString(iss.privateKey)
	require.NoError(t, err)

	_, err = iss.Verify(token)
	assert.Error(t, err)
}

func TestParseTTL(t *testing.T) {
	for _, never := range []string{"", "0", "never"} {
		d, err := ParseTTL(never)
		require.NoError(t, err)
		assert.Zero(t, d)
	}
	d, err := ParseTTL("72h")
	require.NoError(t, err)
	assert.Equal(t, 72*time.Hour, d)

	_, err = ParseTTL("soon")
	assert.Error(t, err)
}

func TestAuthenticateFromCookieOrBearer(t *testing.T) {
	iss, err := NewIssuer(0)
	require.NoError(t, err)
	user := uuid.New()
	token, err := iss.Issue(user)
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/", nil)
	_, err = iss.Authenticate(r)
	assert.ErrorIs(t, err, ErrNoToken)

	w := httptest.NewRecorder()
	SetCookie(w, token)
	r = httptest.NewRequest("GET", "/", nil)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)
	r.AddCookie(cookies[0])
	got, err := iss.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, user, got)

	r = httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	got, err = iss.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, user, got)
}
