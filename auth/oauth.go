package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/andrewpaige1/bookswap-api/errors"
)

const stateTTL = 10 * time.Minute

// ProviderUser is the identity returned by a provider's userinfo endpoint
type ProviderUser struct {
	ID    string
	Name  string
	Email string
}

// Provider describes an OAuth2 provider. The paths are gjson paths into the
// userinfo document; the first non-empty name path wins.
type Provider struct {
	Name        string
	Config      oauth2.Config
	UserInfoURL string
	IDPath      string
	NamePaths   []string
	EmailPath   string
}

func GitHub(clientID, clientSecret, redirectURL string) *Provider {
	return &Provider{
		Name: "github",
		Config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     endpoints.GitHub,
		},
		UserInfoURL: "https://api.github.com/user",
		IDPath:      "id",
		NamePaths:   []string{"name", "login"},
		EmailPath:   "email",
	}
}

func Google(clientID, clientSecret, redirectURL string) *Provider {
	return &Provider{
		Name: "google",
		Config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     endpoints.Google,
		},
		UserInfoURL: "https://www.googleapis.com/oauth2/v3/userinfo",
		IDPath:      "sub",
		NamePaths:   []string{"name", "email"},
		EmailPath:   "email",
	}
}

type pendingState struct {
	provider string
	expires  time.Time
}

// Providers holds the configured providers and the outstanding login states
type Providers struct {
	providers map[string]*Provider

	stateMutex sync.Mutex
	state      map[string]pendingState
	now        func() time.Time
}

func NewProviders(ps ...*Provider) *Providers {
	p := &Providers{
		providers: make(map[string]*Provider),
		state:     make(map[string]pendingState),
		now:       time.Now,
	}
	for _, provider := range ps {
		if provider.Config.ClientID == "" {
			continue
		}
		p.providers[provider.Name] = provider
	}
	return p
}

func (p *Providers) Names() []string {
	names := make([]string, 0, len(p.providers))
	for name := range p.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Providers) get(name string) (*Provider, error) {
	provider, ok := p.providers[name]
	if !ok {
		return nil, errors.New(fmt.Sprintf("unknown provider %q", name), errors.NotFound())
	}
	return provider, nil
}

// LoginURL returns the provider's consent page URL with a fresh state
func (p *Providers) LoginURL(name string) (string, error) {
	provider, err := p.get(name)
	if err != nil {
		return "", err
	}

	state, err := gonanoid.New(32)
	if err != nil {
		return "", err
	}

	now := p.now()
	p.stateMutex.Lock()
	for s, pending := range p.state {
		if now.After(pending.expires) {
			delete(p.state, s)
		}
	}
	p.state[state] = pendingState{provider: name, expires: now.Add(stateTTL)}
	p.stateMutex.Unlock()

	return provider.Config.AuthCodeURL(state), nil
}

// Exchange consumes the state, trades the code for a token and fetches the
// user's identity.
func (p *Providers) Exchange(ctx context.Context, name, state, code string) (ProviderUser, error) {
	provider, err := p.get(name)
	if err != nil {
		return ProviderUser{}, err
	}

	p.stateMutex.Lock()
	pending, ok := p.state[state]
	delete(p.state, state)
	p.stateMutex.Unlock() // no defer because the token exchange could be long

	if !ok || pending.provider != name || p.now().After(pending.expires) {
		return ProviderUser{}, errors.New("invalid state", errors.BadRequest())
	}

	tok, err := provider.Config.Exchange(ctx, code)
	if err != nil {
		return ProviderUser{}, errors.New("could not exchange code", errors.BadRequest(), errors.WithCause(err))
	}

	return provider.fetchUser(ctx, tok)
}

func (provider *Provider) fetchUser(ctx context.Context, tok *oauth2.Token) (ProviderUser, error) {
	client := provider.Config.Client(ctx, tok)
	res, err := client.Get(provider.UserInfoURL)
	if err != nil {
		return ProviderUser{}, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return ProviderUser{}, fmt.Errorf("userinfo returned %s", res.Status)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return ProviderUser{}, err
	}
	if !gjson.ValidBytes(body) {
		return ProviderUser{}, fmt.Errorf("userinfo is not valid JSON")
	}

	user := ProviderUser{
		ID:    gjson.GetBytes(body, provider.IDPath).String(),
		Email: gjson.GetBytes(body, provider.EmailPath).String(),
	}
	for _, path := range provider.NamePaths {
		if user.Name = gjson.GetBytes(body, path).String(); user.Name != "" {
			break
		}
	}

	if user.ID == "" {
		return ProviderUser{}, fmt.Errorf("userinfo has no %q", provider.IDPath)
	}
	return user, nil
}
