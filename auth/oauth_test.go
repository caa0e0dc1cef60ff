package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/andrewpaige1/bookswap-api/errors"
)

func newProviderServer(t *testing.T, userinfo string) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"bad_verification_code"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"access","token_type":"bearer"}`)
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, userinfo)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testProvider(srv *httptest.Server) *Provider {
	p := GitHub("client", "secret", "http://localhost/auth/github/callback")
	p.Config.Endpoint = oauth2.Endpoint{
		AuthURL:   srv.URL + "/authorize",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	p.UserInfoURL = srv.URL + "/user"
	return p
}

func stateOf(t *testing.T, loginURL string) string {
	u, err := url.Parse(loginURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestProvidersExchange(t *testing.T) {
	srv := newProviderServer(t, `{"id":583231,"login":"octocat","name":"","email":"octo@example.com"}`)
	providers := NewProviders(testProvider(srv))
	ctx := context.Background()

	loginURL, err := providers.LoginURL("github")
	require.NoError(t, err)
	state := stateOf(t, loginURL)

	user, err := providers.Exchange(ctx, "github", state, "good-code")
	require.NoError(t, err)
	assert.Equal(t, ProviderUser{ID: "583231", Name: "octocat", Email: "octo@example.com"}, user)

	// states are single use
	_, err = providers.Exchange(ctx, "github", state, "good-code")
	assert.Equal(t, http.StatusBadRequest, errors.Code(err))
}

func TestProvidersExchangeFailures(t *testing.T) {
	srv := newProviderServer(t, `{"login":"no-id"}`)
	providers := NewProviders(testProvider(srv), Google("", "", ""))
	ctx := context.Background()

	assert.Equal(t, []string{"github"}, providers.Names())

	_, err := providers.LoginURL("google")
	assert.Equal(t, http.StatusNotFound, errors.Code(err))

	_, err = providers.Exchange(ctx, "github", "unknown-state", "good-code")
	assert.Equal(t, http.StatusBadRequest, errors.Code(err))

	loginURL, err := providers.LoginURL("github")
	require.NoError(t, err)
	_, err = providers.Exchange(ctx, "github", stateOf(t, loginURL), "bad-code")
	assert.Equal(t, http.StatusBadRequest, errors.Code(err))

	loginURL, err = providers.LoginURL("github")
	require.NoError(t, err)
	_, err = providers.Exchange(ctx, "github", stateOf(t, loginURL), "good-code")
	assert.Error(t, err, "userinfo without an id")
}

func TestProvidersStateExpires(t *testing.T) {
	srv := newProviderServer(t, `{"id":1}`)
	providers := NewProviders(testProvider(srv))
	now := time.Now()
	providers.now = func() time.Time { return now }

	loginURL, err := providers.LoginURL("github")
	require.NoError(t, err)

	now = now.Add(stateTTL + time.Minute)
	_, err = providers.Exchange(context.Background(), "github", stateOf(t, loginURL), "good-code")
	assert.Equal(t, http.StatusBadRequest, errors.Code(err))
}
