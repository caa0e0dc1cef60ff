package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/andrewpaige1/bookswap-api/auth"
	"github.com/andrewpaige1/bookswap-api/metrics"
	"github.com/andrewpaige1/bookswap-api/testutil"
	"github.com/andrewpaige1/bookswap-api/utils"
)

func newIssuer() *auth.Issuer {
	return auth.NewIssuer("test-secret", "bookswap", "bookswap-web", time.Hour)
}

// claimsEcho answers with the token subject, or "anonymous"
var claimsEcho = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	claims, ok := utils.GetClaims(r)
	if !ok {
		w.Write([]byte("anonymous"))
		return
	}
	w.Write([]byte(claims.RegisteredClaims.Subject))
})

func TestEnsureValidToken(t *testing.T) {
	issuer := newIssuer()
	revoker := auth.NewMemoryRevoker()
	mw, err := EnsureValidToken(issuer, revoker, auth.Cookies{}, zap.NewNop())
	require.NoError(t, err)
	handler := mw(claimsEcho)

	token, claims, err := issuer.CreateToken(7, "alice")
	require.NoError(t, err)

	serve := func(r *http.Request) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	t.Run("anonymous", func(t *testing.T) {
		w := serve(httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "anonymous", w.Body.String())
	})

	t.Run("bearer", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := serve(r)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "7", w.Body.String())
	})

	t.Run("cookie", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
		w := serve(r)
		assert.Equal(t, "7", w.Body.String())
	})

	t.Run("foreign signature", func(t *testing.T) {
		other := auth.NewIssuer("other-secret", "bookswap", "bookswap-web", time.Hour)
		forged, _, err := other.CreateToken(7, "alice")
		require.NoError(t, err)

		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", "Bearer "+forged)
		assert.Equal(t, http.StatusUnauthorized, serve(r).Code)
	})

	t.Run("stale cookie is cleared", func(t *testing.T) {
		other := auth.NewIssuer("rotated-secret", "bookswap", "bookswap-web", time.Hour)
		stale, _, err := other.CreateToken(7, "alice")
		require.NoError(t, err)

		for _, value := range []string{stale, "not.a.token"} {
			r := httptest.NewRequest("GET", "/", nil)
			r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: value})
			w := serve(r)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "anonymous", w.Body.String())

			cookies := w.Result().Cookies()
			require.Len(t, cookies, 1)
			assert.Equal(t, auth.CookieName, cookies[0].Name)
			assert.Equal(t, -1, cookies[0].MaxAge)
		}
	})

	t.Run("expired", func(t *testing.T) {
		stale := auth.NewIssuer("test-secret", "bookswap", "bookswap-web", -time.Hour)
		old, _, err := stale.CreateToken(7, "alice")
		require.NoError(t, err)

		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", "Bearer "+old)
		assert.Equal(t, http.StatusUnauthorized, serve(r).Code)
	})

	t.Run("revoked", func(t *testing.T) {
		require.NoError(t, revoker.Revoke(context.Background(), claims.ID, time.Now().Add(time.Hour)))

		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, serve(r).Code)
	})
}

func TestRequireUser(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	issuer := newIssuer()

	mw, err := EnsureValidToken(issuer, auth.NewMemoryRevoker(), auth.Cookies{}, zap.NewNop())
	require.NoError(t, err)

	handler := mw(RequireUser(db, zap.NewNop())(func(w http.ResponseWriter, r *http.Request) {
		user, ok := utils.CurrentUser(r)
		require.True(t, ok)
		w.Write([]byte(user.Username))
	}))

	request := func(token string) *httptest.ResponseRecorder {
		r := httptest.NewRequest("GET", "/", nil)
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, request("").Code)

	token, _, err := issuer.CreateToken(alice.ID, alice.Username)
	require.NoError(t, err)
	w := request(token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", w.Body.String())

	// A token for a deleted account no longer works
	require.NoError(t, db.Delete(&alice).Error)
	assert.Equal(t, http.StatusUnauthorized, request(token).Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2, zap.NewNop())
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	handler := rl.Limit(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	from := func(addr string) *httptest.ResponseRecorder {
		r := httptest.NewRequest("POST", "/login", nil)
		r.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler(w, r)
		return w
	}

	assert.Equal(t, http.StatusNoContent, from("10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusNoContent, from("10.0.0.1:1001").Code)

	w := from("10.0.0.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusNoContent, from("10.0.0.2:1000").Code, "clients are limited separately")

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusNoContent, from("10.0.0.1:1003").Code, "tokens refill")

	now = now.Add(time.Hour)
	from("10.0.0.3:1000")
	rl.mu.Lock()
	assert.Len(t, rl.clients, 1, "idle clients are evicted")
	rl.mu.Unlock()
}

func TestRateLimiterTrustProxy(t *testing.T) {
	rl := NewRateLimiter(1, 1, zap.NewNop())
	handler := rl.Limit(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	from := func(forwarded string) int {
		r := httptest.NewRequest("POST", "/login", nil)
		r.RemoteAddr = "10.0.0.1:443"
		r.Header.Set("X-Forwarded-For", forwarded)
		w := httptest.NewRecorder()
		handler(w, r)
		return w.Code
	}

	// Without trust every client is the proxy
	assert.Equal(t, http.StatusNoContent, from("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, from("203.0.113.2"))

	rl.TrustProxy = true
	assert.Equal(t, http.StatusNoContent, from("203.0.113.3"))
	assert.Equal(t, http.StatusNoContent, from("203.0.113.4"))
	assert.Equal(t, http.StatusTooManyRequests, from("203.0.113.4"))
	// A client cannot pick its bucket by prepending addresses
	assert.Equal(t, http.StatusTooManyRequests, from("198.51.100.9, 203.0.113.4"))
}

func TestLogging(t *testing.T) {
	handler := Logging(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Request-ID", "abc-123")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestMetricsLabelsByPattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /books/{bookID}", func(w http.ResponseWriter, r *http.Request) {})

	reject := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	})
	handler := Metrics(mux)(reject)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/books/abc", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nowhere", nil))

	// Rejected before the mux, still labelled with its route
	r := httptest.NewRequest("GET", "/books/abc", nil)
	r.Header.Set("Authorization", "Bearer bad")
	handler.ServeHTTP(httptest.NewRecorder(), r)

	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, w.Body.String(), `path="GET /books/{bookID}",status="200"`)
	assert.Contains(t, w.Body.String(), `path="GET /books/{bookID}",status="401"`)
	assert.Contains(t, w.Body.String(), `path="unmatched",status="404"`)
}
