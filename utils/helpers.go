package utils

import (
	"context"
	"net/http"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/validator"

	"github.com/andrewpaige1/bookswap-api/auth"
	"github.com/andrewpaige1/bookswap-api/models"
)

type contextKey string

const userKey contextKey = "user"

// GetClaims returns the validated token claims attached by the JWT middleware
func GetClaims(r *http.Request) (*validator.ValidatedClaims, bool) {
	claims, ok := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
	return claims, ok && claims != nil
}

// GetUserID returns the user id named by the token subject
func GetUserID(r *http.Request) (uint, bool) {
	claims, ok := GetClaims(r)
	if !ok {
		return 0, false
	}
	id, err := auth.SubjectUserID(claims.RegisteredClaims.Subject)
	return id, err == nil
}

func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// CurrentUser returns the user loaded by middleware.RequireUser
func CurrentUser(r *http.Request) (*models.User, bool) {
	user, ok := r.Context().Value(userKey).(*models.User)
	return user, ok && user != nil
}
