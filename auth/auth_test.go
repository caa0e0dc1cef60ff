package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseToken(t *testing.T, token, secret string) (*Claims, error) {
	t.Helper()
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithIssuer("bookswap-api"), jwt.WithAudience("bookswap"), jwt.WithValidMethods([]string{"HS256"}))
	return &claims, err
}

func TestCreateToken(t *testing.T) {
	issuer := NewIssuer("secret", "bookswap-api", "bookswap", time.Hour)

	token, claims, err := issuer.CreateToken(42, "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)

	parsed, err := parseToken(t, token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", parsed.Username)
	assert.Equal(t, claims.ID, parsed.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), parsed.ExpiresAt.Time, time.Minute)

	id, err := SubjectUserID(parsed.Subject)
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	_, err = parseToken(t, token, "other-secret")
	assert.Error(t, err, "wrong secret")
}

func TestCreateTokenExpiry(t *testing.T) {
	issuer := NewIssuer("secret", "bookswap-api", "bookswap", time.Hour)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	old, _, err := issuer.CreateToken(1, "bob")
	require.NoError(t, err)
	_, err = parseToken(t, old, "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestSubjectUserID(t *testing.T) {
	for _, subject := range []string{"abc", "", "0", "-1"} {
		_, err := SubjectUserID(subject)
		assert.Error(t, err, subject)
	}
	id, err := SubjectUserID("7")
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)
}

func TestCookies(t *testing.T) {
	cookies := Cookies{Domain: ".bookswap.example", Secure: true, MaxAge: time.Hour}

	w := httptest.NewRecorder()
	cookies.Set(w, "tok")
	set := w.Result().Cookies()
	require.Len(t, set, 1)
	assert.Equal(t, CookieName, set[0].Name)
	assert.Equal(t, "tok", set[0].Value)
	assert.Equal(t, 3600, set[0].MaxAge)
	assert.True(t, set[0].HttpOnly)
	assert.True(t, set[0].Secure)

	w = httptest.NewRecorder()
	cookies.Clear(w)
	cleared := w.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, "", cleared[0].Value)
	assert.True(t, cleared[0].MaxAge < 0)
	assert.Equal(t, http.SameSiteLaxMode, cleared[0].SameSite)
}

func TestPasswords(t *testing.T) {
	_, err := HashPassword("short")
	assert.Error(t, err)

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "wrong horse"))
	assert.False(t, CheckPassword("", "correct horse"))
}

func TestMemoryRevoker(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRevoker()
	now := time.Now()
	r.now = func() time.Time { return now }

	require.NoError(t, r.Revoke(ctx, "a", now.Add(time.Hour)))
	require.NoError(t, r.Revoke(ctx, "gone", now.Add(-time.Second)))

	revoked, err := r.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, _ = r.IsRevoked(ctx, "gone")
	assert.False(t, revoked)
	revoked, _ = r.IsRevoked(ctx, "b")
	assert.False(t, revoked)

	now = now.Add(2 * time.Hour)
	revoked, _ = r.IsRevoked(ctx, "a")
	assert.False(t, revoked)
}

func TestNewRedisRevokerBadURL(t *testing.T) {
	_, err := NewRedisRevoker("not a url")
	assert.Error(t, err)

	r, err := NewRedisRevoker("redis://localhost:6379/0")
	require.NoError(t, err)
	assert.NoError(t, r.Close())
}
