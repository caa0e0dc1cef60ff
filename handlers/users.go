package handlers

import (
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/andrewpaige1/bookswap-api/auth"
	"github.com/andrewpaige1/bookswap-api/errors"
	"github.com/andrewpaige1/bookswap-api/models"
	"github.com/andrewpaige1/bookswap-api/utils"
)

// GET /users/me
func (db *DBHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.CurrentUser(r)
	me, err := db.meView(r, user)
	if err != nil {
		db.writeError(w, "GetMe: failed to build user view", err)
		return
	}
	writeJSON(w, http.StatusOK, me)
}

// PUT /users/me updates the fields present in the body
func (db *DBHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.CurrentUser(r)

	var req struct {
		Email    *string `json:"email"`
		FullName *string `json:"fullName"`
		City     *string `json:"city"`
		State    *string `json:"state"`
		Address  *string `json:"address"`
		Zip      *string `json:"zip"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	updates := map[string]interface{}{}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if !strings.Contains(email, "@") {
			http.Error(w, "A valid email is required", http.StatusBadRequest)
			return
		}
		var taken int64
		if err := db.Model(&models.User{}).Where("email = ? AND id <> ?", email, user.ID).Count(&taken).Error; err != nil {
			db.writeError(w, "UpdateMe: failed to check email", err)
			return
		}
		if taken > 0 {
			http.Error(w, "Email already taken", http.StatusConflict)
			return
		}
		updates["email"] = email
	}
	if req.FullName != nil {
		updates["full_name"] = strings.TrimSpace(*req.FullName)
	}
	if req.City != nil {
		updates["city"] = strings.TrimSpace(*req.City)
	}
	if req.State != nil {
		updates["state"] = strings.TrimSpace(*req.State)
	}
	for column, value := range map[string]*string{"address": req.Address, "zip": req.Zip} {
		if value == nil {
			continue
		}
		sealed, err := db.Keys.Seal(user.ID, strings.TrimSpace(*value))
		if err != nil {
			db.writeError(w, "UpdateMe: failed to seal "+column, err)
			return
		}
		updates[column] = sealed
	}

	if len(updates) > 0 {
		if err := db.Model(user).Updates(updates).Error; err != nil {
			db.writeError(w, "UpdateMe: failed to update user", err)
			return
		}
	}

	var updated models.User
	if err := db.First(&updated, user.ID).Error; err != nil {
		db.writeError(w, "UpdateMe: failed to reload user", err)
		return
	}
	me, err := db.meView(r, &updated)
	if err != nil {
		db.writeError(w, "UpdateMe: failed to build user view", err)
		return
	}
	writeJSON(w, http.StatusOK, me)
}

// PUT /users/me/password. Users without a password (provider only) may set
// one without the current password.
func (db *DBHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.CurrentUser(r)

	var req struct {
		Current string `json:"current"`
		New     string `json:"new"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if user.PasswordHash != "" && !auth.CheckPassword(user.PasswordHash, req.Current) {
		http.Error(w, "Current password is incorrect", http.StatusUnauthorized)
		return
	}

	hash, err := auth.HashPassword(req.New)
	if err != nil {
		db.writeError(w, "ChangePassword: failed to hash password", err)
		return
	}
	if err := db.Model(user).Update("password_hash", hash).Error; err != nil {
		db.writeError(w, "ChangePassword: failed to update password", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GET /users/me/trades
func (db *DBHandler) GetMyTrades(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.CurrentUser(r)
	trades, err := db.Trading.TradesFor(r.Context(), user.ID)
	if err != nil {
		db.writeError(w, "GetMyTrades: failed to load trades", err)
		return
	}

	views := make([]TradeView, len(trades))
	for i, t := range trades {
		views[i] = tradeView(t)
	}
	writeJSON(w, http.StatusOK, views)
}

// GET /users/me/notifications?unread=true
func (db *DBHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.CurrentUser(r)
	unreadOnly := r.URL.Query().Get("unread") == "true"

	notifications, err := db.Trading.Notifications(r.Context(), user.ID, unreadOnly)
	if err != nil {
		db.writeError(w, "GetNotifications: failed to load notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

// POST /users/me/notifications/{notificationID}/read
func (db *DBHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.CurrentUser(r)
	id, ok := pathID(r, "notificationID")
	if !ok {
		http.Error(w, "Invalid notification ID", http.StatusBadRequest)
		return
	}

	if err := db.Trading.MarkRead(r.Context(), user.ID, id); err != nil {
		db.writeError(w, "MarkNotificationRead: failed to mark notification", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /users/me/notifications/{notificationID}
func (db *DBHandler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.CurrentUser(r)
	id, ok := pathID(r, "notificationID")
	if !ok {
		http.Error(w, "Invalid notification ID", http.StatusBadRequest)
		return
	}

	if err := db.Trading.DeleteNotification(r.Context(), user.ID, id); err != nil {
		db.writeError(w, "DeleteNotification: failed to delete notification", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /users/{username}
func (db *DBHandler) GetUserProfile(w http.ResponseWriter, r *http.Request) {
	var user models.User
	err := db.Preload("Books", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("title")
	}).Where("username = ?", r.PathValue("username")).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	if err != nil {
		db.writeError(w, "GetUserProfile: failed to load user", err)
		return
	}

	writeJSON(w, http.StatusOK, profileView(user))
}
