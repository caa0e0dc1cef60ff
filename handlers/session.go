package handlers

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/andrewpaige1/bookswap-api/auth"
	"github.com/andrewpaige1/bookswap-api/errors"
	"github.com/andrewpaige1/bookswap-api/models"
	"github.com/andrewpaige1/bookswap-api/utils"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,100}$`)

// POST /signup
func (db *DBHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"fullName"`
		City     string `json:"city"`
		State    string `json:"state"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if !usernamePattern.MatchString(req.Username) {
		http.Error(w, "Username must be 3 to 100 letters, digits, '.', '_' or '-'", http.StatusBadRequest)
		return
	}
	if !strings.Contains(req.Email, "@") {
		http.Error(w, "A valid email is required", http.StatusBadRequest)
		return
	}

	var existing int64
	if err := db.Model(&models.User{}).Where("username = ? OR email = ?", req.Username, req.Email).Count(&existing).Error; err != nil {
		db.writeError(w, "Signup: failed to check existing user", err)
		return
	}
	if existing > 0 {
		http.Error(w, "Username or email already taken", http.StatusConflict)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		db.writeError(w, "Signup: failed to hash password", err)
		return
	}

	user := models.User{
		Username:     req.Username,
		Email:        &req.Email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(req.FullName),
		City:         strings.TrimSpace(req.City),
		State:        strings.TrimSpace(req.State),
	}
	if err := db.Create(&user).Error; err != nil {
		db.writeError(w, "Signup: failed to create user", err)
		return
	}

	db.Logger.Info("Created new user", zap.String("username", user.Username), zap.Uint("user_id", user.ID))
	if err := db.Trading.Notify(r.Context(), user.ID, models.CategoryInfo, welcomeMessage(user.Username)); err != nil {
		db.Logger.Warn("Signup: failed to send welcome notification", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	db.startSession(w, r, &user, http.StatusCreated)
}

func welcomeMessage(username string) string {
	return fmt.Sprintf("Welcome to BookSwap, %s! List a book to start trading.", username)
}

// POST /login
func (db *DBHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	login := strings.TrimSpace(req.Username)
	var user models.User
	err := db.Where("username = ? OR email = ?", login, strings.ToLower(login)).First(&user).Error
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		db.Logger.Info("Login failed", zap.String("login", login))
		http.Error(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	db.startSession(w, r, &user, http.StatusOK)
}

// POST /logout revokes the presented token, if any, and clears the cookie
func (db *DBHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if claims, ok := utils.GetClaims(r); ok {
		until := time.Unix(claims.RegisteredClaims.Expiry, 0)
		if err := db.Revoker.Revoke(r.Context(), claims.RegisteredClaims.ID, until); err != nil {
			db.writeError(w, "Logout: failed to revoke token", err)
			return
		}
	}

	db.Cookies.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// GET /session/user
func (db *DBHandler) SessionUser(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.CurrentUser(r)
	me, err := db.meView(r, user)
	if err != nil {
		db.writeError(w, "SessionUser: failed to build user view", err)
		return
	}
	writeJSON(w, http.StatusOK, me)
}

// POST /session/refresh swaps the current token for a fresh one
func (db *DBHandler) RefreshSession(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.CurrentUser(r)
	if claims, ok := utils.GetClaims(r); ok {
		until := time.Unix(claims.RegisteredClaims.Expiry, 0)
		if err := db.Revoker.Revoke(r.Context(), claims.RegisteredClaims.ID, until); err != nil {
			db.writeError(w, "RefreshSession: failed to revoke token", err)
			return
		}
	}
	db.startSession(w, r, user, http.StatusOK)
}

func (db *DBHandler) startSession(w http.ResponseWriter, r *http.Request, user *models.User, status int) {
	token, _, err := db.Tokens.CreateToken(user.ID, user.Username)
	if err != nil {
		db.writeError(w, "Failed to generate token", err)
		return
	}

	me, err := db.meView(r, user)
	if err != nil {
		db.writeError(w, "Failed to build user view", err)
		return
	}

	db.Cookies.Set(w, token)
	writeJSON(w, status, map[string]interface{}{
		"user":  me,
		"token": token,
	})
}

func (db *DBHandler) meView(r *http.Request, user *models.User) (MeView, error) {
	address, err := db.Keys.Unseal(user.ID, user.Address)
	if err != nil {
		return MeView{}, errors.New("could not read address", errors.WithCause(err))
	}
	zip, err := db.Keys.Unseal(user.ID, user.Zip)
	if err != nil {
		return MeView{}, errors.New("could not read zip", errors.WithCause(err))
	}

	var providers []string
	if err := db.WithContext(r.Context()).Model(&models.Auth{}).Where("user_id = ?", user.ID).Order("provider").Pluck("provider", &providers).Error; err != nil {
		return MeView{}, err
	}
	if providers == nil {
		providers = []string{}
	}

	unread, err := db.Trading.UnreadCount(r.Context(), user.ID)
	if err != nil {
		return MeView{}, err
	}

	me := MeView{
		ID:                  user.ID,
		Username:            user.Username,
		FullName:            user.FullName,
		City:                user.City,
		State:               user.State,
		Address:             address,
		Zip:                 zip,
		HasPassword:         user.PasswordHash != "",
		Providers:           providers,
		UnreadNotifications: unread,
	}
	if user.Email != nil {
		me.Email = *user.Email
	}
	return me, nil
}
