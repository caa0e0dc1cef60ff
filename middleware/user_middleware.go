package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/andrewpaige1/bookswap-api/auth"
	"github.com/andrewpaige1/bookswap-api/models"
	"github.com/andrewpaige1/bookswap-api/utils"
)

var errTokenRevoked = errors.New("token revoked")

// CustomClaims are the non registered claims of a session token
type CustomClaims struct {
	Username string `json:"username"`
}

func (c *CustomClaims) Validate(ctx context.Context) error { return nil }

// EnsureValidToken validates the session token from the Authorization header
// or the auth_token cookie. Requests without a token pass through anonymous.
// An invalid bearer token is rejected with 401; an invalid cookie is cleared
// and the request continues anonymous, so a stale cookie never locks a
// browser out of login.
func EnsureValidToken(issuer *auth.Issuer, revoker auth.Revoker, cookies auth.Cookies, logger *zap.Logger) (func(http.Handler) http.Handler, error) {
	jwtValidator, err := validator.New(
		issuer.KeyFunc,
		validator.HS256,
		issuer.Issuer(),
		[]string{issuer.Audience()},
		validator.WithCustomClaims(func() validator.CustomClaims { return &CustomClaims{} }),
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, err
	}

	validate := func(ctx context.Context, token string) (interface{}, error) {
		claims, err := jwtValidator.ValidateToken(ctx, token)
		if err != nil {
			return nil, err
		}

		validated := claims.(*validator.ValidatedClaims)
		revoked, err := revoker.IsRevoked(ctx, validated.RegisteredClaims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, errTokenRevoked
		}
		return validated, nil
	}

	return func(next http.Handler) http.Handler {
		errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
			if r.Header.Get("Authorization") == "" {
				logger.Info("Cleared invalid session cookie", zap.String("path", r.URL.Path), zap.Error(err))
				cookies.Clear(w)
				next.ServeHTTP(w, r)
				return
			}

			logger.Info("Rejected session token", zap.String("path", r.URL.Path), zap.Error(err))
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		}

		middleware := jwtmiddleware.New(
			validate,
			jwtmiddleware.WithCredentialsOptional(true),
			jwtmiddleware.WithErrorHandler(errorHandler),
			jwtmiddleware.WithTokenExtractor(jwtmiddleware.MultiTokenExtractor(
				jwtmiddleware.AuthHeaderTokenExtractor,
				cookieTokenExtractor(auth.CookieName),
			)),
		)
		return middleware.CheckJWT(next)
	}, nil
}

func cookieTokenExtractor(name string) jwtmiddleware.TokenExtractor {
	return func(r *http.Request) (string, error) {
		cookie, err := r.Cookie(name)
		if errors.Is(err, http.ErrNoCookie) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		return cookie.Value, nil
	}
}

// RequireUser loads the token's user and attaches it to the context
func RequireUser(db *gorm.DB, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			userID, ok := utils.GetUserID(r)
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			var user models.User
			if err := db.WithContext(r.Context()).First(&user, userID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
				logger.Error("RequireUser: failed to load user", zap.Uint("user_id", userID), zap.Error(err))
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(utils.WithUser(r.Context(), &user)))
		}
	}
}
