package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/andrewpaige1/bookswap-api/errors"
	"github.com/andrewpaige1/bookswap-api/models"
)

// GET /api/users
func (db *DBHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	var users []models.User
	if err := db.Preload("Books").Order("username").Find(&users).Error; err != nil {
		db.writeError(w, "ListUsers: failed to load users", err)
		return
	}

	views := make([]ProfileView, len(users))
	for i, u := range users {
		views[i] = profileView(u)
	}
	writeJSON(w, http.StatusOK, views)
}

// GET /api/books?q=term&owner=username
func (db *DBHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	query := db.Preload("User").Order("title")

	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		term := "%" + escapeLike(strings.ToLower(q)) + "%"
		query = query.Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(author) LIKE ? ESCAPE '\')`, term, term)
	}
	if owner := r.URL.Query().Get("owner"); owner != "" {
		query = query.Where("user_id IN (?)", db.Model(&models.User{}).Select("id").Where("username = ?", owner))
	}

	var books []models.Book
	if err := query.Find(&books).Error; err != nil {
		db.writeError(w, "ListBooks: failed to load books", err)
		return
	}
	writeJSON(w, http.StatusOK, bookViews(books, ""))
}

// GET /api/books/{bookID} returns the book and its live requests
func (db *DBHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	var book models.Book
	err := db.Preload("User").Where("public_id = ?", r.PathValue("bookID")).First(&book).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		http.Error(w, "Book not found", http.StatusNotFound)
		return
	}
	if err != nil {
		db.writeError(w, "GetBook: failed to load book", err)
		return
	}

	reqs, err := db.Trading.RequestsForBook(r.Context(), book.ID)
	if err != nil {
		db.writeError(w, "GetBook: failed to load requests", err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		BookView
		Requests []RequestView `json:"requests"`
	}{bookView(book, ""), requestViews(reqs)})
}

// GET /api/requests
func (db *DBHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := db.Trading.Pending(r.Context())
	if err != nil {
		db.writeError(w, "ListRequests: failed to load requests", err)
		return
	}
	writeJSON(w, http.StatusOK, requestViews(reqs))
}

// GET /health
func (db *DBHandler) Health(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := db.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		db.Logger.Error("Health check failed", zap.Error(err))
		http.Error(w, "Database unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
