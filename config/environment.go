package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

type Environment struct {
	AppEnv string `env:"APP_ENV,default=development"`
	Port   string `env:"PORT,default=8080"`

	DBDriver string `env:"DB_DRIVER,default=sqlite"`
	DBURL    string `env:"DB_URL,default=bookswap.db"`

	JWTSecret   string        `env:"JWT_SECRET_KEY,required"`
	JWTIssuer   string        `env:"JWT_ISSUER,default=bookswap-api"`
	JWTAudience string        `env:"JWT_AUDIENCE,default=bookswap"`
	TokenTTL    time.Duration `env:"TOKEN_TTL,default=24h"`

	// An empty cookie domain means we're in development
	CookieDomain string `env:"COOKIE_DOMAIN"`

	KeystorePath string `env:"KEYSTORE_PATH,default=keys.xml"`
	RedisURL     string `env:"REDIS_URL"`

	AllowedOrigins string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	FrontendURL    string `env:"FRONTEND_URL,default=http://localhost:3000"`

	LoginRate  float64 `env:"LOGIN_RATE,default=1"`
	LoginBurst int     `env:"LOGIN_BURST,default=5"`

	// Set when the API sits behind a reverse proxy that appends X-Forwarded-For
	TrustProxy bool `env:"TRUST_PROXY,default=false"`

	GitHubClientID     string `env:"OAUTH_GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"OAUTH_GITHUB_CLIENT_SECRET"`
	GitHubRedirectURL  string `env:"OAUTH_GITHUB_REDIRECT_URL"`
	GoogleClientID     string `env:"OAUTH_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"OAUTH_GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"OAUTH_GOOGLE_REDIRECT_URL"`
}

// LoadDotEnv loads a .env file outside production. A missing file is not an error.
func LoadDotEnv() error {
	if os.Getenv("APP_ENV") == "production" {
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Load decodes the environment into an Environment
func Load() (Environment, error) {
	var env Environment
	if err := envdecode.Decode(&env); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Environment{}, fmt.Errorf("decode environment: %w", err)
	}

	switch env.DBDriver {
	case "sqlite", "postgres":
	default:
		return Environment{}, fmt.Errorf("unsupported DB_DRIVER %q", env.DBDriver)
	}

	if env.TokenTTL <= 0 {
		return Environment{}, fmt.Errorf("TOKEN_TTL must be positive")
	}

	return env, nil
}

func (e Environment) IsDevelopment() bool { return e.CookieDomain == "" }

func (e Environment) IsProduction() bool { return e.AppEnv == "production" }

// Domain returns the cookie domain, localhost in development
func (e Environment) Domain() string {
	if e.IsDevelopment() {
		return "localhost"
	}
	return e.CookieDomain
}

func (e Environment) CookieSecure() bool { return !e.IsDevelopment() }

func (e Environment) Origins() []string {
	var origins []string
	for _, o := range strings.Split(e.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
