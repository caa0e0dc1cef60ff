package handlers

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/andrewpaige1/bookswap-api/auth"
	"github.com/andrewpaige1/bookswap-api/errors"
	"github.com/andrewpaige1/bookswap-api/models"
	"github.com/andrewpaige1/bookswap-api/trading"
	"github.com/andrewpaige1/bookswap-api/utils"
)

var usernameUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// GET /auth/{provider}
func (db *DBHandler) ProviderLogin(w http.ResponseWriter, r *http.Request) {
	url, err := db.Providers.LoginURL(r.PathValue("provider"))
	if err != nil {
		db.writeError(w, "ProviderLogin: failed to build login URL", err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// GET /auth/{provider}/callback links the provider identity to the signed in
// user, or signs in (creating if needed) the user owning that identity.
func (db *DBHandler) ProviderCallback(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")
	query := r.URL.Query()
	if msg := query.Get("error"); msg != "" {
		http.Error(w, "Provider refused the login: "+msg, http.StatusUnauthorized)
		return
	}
	if query.Get("state") == "" || query.Get("code") == "" {
		http.Error(w, "Missing state or code", http.StatusBadRequest)
		return
	}

	identity, err := db.Providers.Exchange(r.Context(), provider, query.Get("state"), query.Get("code"))
	if err != nil {
		db.writeError(w, "ProviderCallback: exchange failed", err)
		return
	}

	var user *models.User
	if userID, ok := utils.GetUserID(r); ok {
		user, err = db.linkProvider(r, userID, provider, identity)
	} else {
		user, err = db.providerUser(r, provider, identity)
	}
	if err != nil {
		db.writeError(w, "ProviderCallback: failed to resolve user", err)
		return
	}

	token, _, err := db.Tokens.CreateToken(user.ID, user.Username)
	if err != nil {
		db.writeError(w, "ProviderCallback: failed to generate token", err)
		return
	}

	db.Logger.Info("Provider login", zap.String("provider", provider), zap.String("username", user.Username))
	db.Cookies.Set(w, token)
	http.Redirect(w, r, db.FrontendURL, http.StatusFound)
}

func (db *DBHandler) linkProvider(r *http.Request, userID uint, provider string, identity auth.ProviderUser) (*models.User, error) {
	var user models.User
	err := db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, userID).Error; err != nil {
			return errors.New("user not found", errors.Unauthorized(), errors.WithCause(err))
		}

		var existing models.Auth
		err := tx.Where("provider = ? AND provider_id = ?", provider, identity.ID).First(&existing).Error
		switch {
		case err == nil && existing.UserID == userID:
			return nil
		case err == nil:
			return errors.New(fmt.Sprintf("this %s account is linked to another user", provider), errors.Conflict())
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		return tx.Create(&models.Auth{Provider: provider, ProviderID: identity.ID, UserID: userID}).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *DBHandler) providerUser(r *http.Request, provider string, identity auth.ProviderUser) (*models.User, error) {
	var user models.User
	err := db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		var existing models.Auth
		err := tx.Where("provider = ? AND provider_id = ?", provider, identity.ID).First(&existing).Error
		if err == nil {
			return tx.First(&user, existing.UserID).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		username, err := uniqueUsername(tx, identity.Name)
		if err != nil {
			return err
		}
		user = models.User{Username: username, FullName: identity.Name}

		// The provider's email is only kept when nobody else uses it
		if email := strings.ToLower(identity.Email); email != "" {
			var taken int64
			if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&taken).Error; err != nil {
				return err
			}
			if taken == 0 {
				user.Email = &email
			}
		}

		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.Auth{Provider: provider, ProviderID: identity.ID, UserID: user.ID}).Error; err != nil {
			return err
		}
		return trading.Notify(tx, user.ID, models.CategoryInfo, welcomeMessage(user.Username))
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// uniqueUsername derives a free username from a display name, adding a
// numeric suffix until it is unused.
func uniqueUsername(tx *gorm.DB, name string) (string, error) {
	base := strings.Trim(usernameUnsafe.ReplaceAllString(strings.ToLower(name), "-"), "-.")
	if len(base) < 3 {
		base = "reader"
	}
	if len(base) > 90 {
		base = base[:90]
	}

	candidate := base
	for i := 2; ; i++ {
		var n int64
		if err := tx.Unscoped().Model(&models.User{}).Where("username = ?", candidate).Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
}
