package handlers

import (
	"net/http"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/andrewpaige1/bookswap-api/errors"
	"github.com/andrewpaige1/bookswap-api/models"
	"github.com/andrewpaige1/bookswap-api/utils"
)

type bookRequest struct {
	Title       *string `json:"title"`
	Author      *string `json:"author"`
	Description *string `json:"description"`
}

// GET /books/my
func (db *DBHandler) GetMyBooks(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.CurrentUser(r)

	var books []models.Book
	if err := db.Where("user_id = ?", user.ID).Order("title").Find(&books).Error; err != nil {
		db.writeError(w, "GetMyBooks: failed to load books", err)
		return
	}
	writeJSON(w, http.StatusOK, bookViews(books, user.Username))
}

// POST /books/my
func (db *DBHandler) AddBook(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.CurrentUser(r)

	var req bookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		http.Error(w, "Title is required", http.StatusBadRequest)
		return
	}

	publicID, err := gonanoid.New()
	if err != nil {
		db.writeError(w, "AddBook: failed to generate id", err)
		return
	}

	book := models.Book{PublicID: publicID, UserID: user.ID}
	applyBookRequest(&book, req)

	if err := db.titleAvailable(book.Title, 0); err != nil {
		db.writeError(w, "AddBook: failed to check title", err)
		return
	}
	if err := db.Create(&book).Error; err != nil {
		db.writeError(w, "AddBook: failed to create book", err)
		return
	}

	db.Logger.Info("Book listed", zap.String("title", book.Title), zap.String("owner", user.Username))
	writeJSON(w, http.StatusCreated, bookView(book, user.Username))
}

// PUT /books/my/{bookID}
func (db *DBHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.CurrentUser(r)

	book, ok := db.ownBook(w, r, user)
	if !ok {
		return
	}

	var req bookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		http.Error(w, "Title cannot be empty", http.StatusBadRequest)
		return
	}
	applyBookRequest(book, req)

	if err := db.titleAvailable(book.Title, book.ID); err != nil {
		db.writeError(w, "UpdateBook: failed to check title", err)
		return
	}
	if err := db.Model(book).Select("title", "author", "description").Updates(book).Error; err != nil {
		db.writeError(w, "UpdateBook: failed to update book", err)
		return
	}

	writeJSON(w, http.StatusOK, bookView(*book, user.Username))
}

// DELETE /books/my/{bookID}. Books referenced by pending requests stay.
func (db *DBHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.CurrentUser(r)

	book, ok := db.ownBook(w, r, user)
	if !ok {
		return
	}

	result := db.Where("id = ? AND num_of_requests = 0", book.ID).Delete(&models.Book{})
	if result.Error != nil {
		db.writeError(w, "DeleteBook: failed to delete book", result.Error)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, "Book has pending requests", http.StatusConflict)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ownBook loads the book named in the path, answering 404 or 403 when it is
// missing or owned by someone else.
func (db *DBHandler) ownBook(w http.ResponseWriter, r *http.Request, user *models.User) (*models.Book, bool) {
	var book models.Book
	err := db.Where("public_id = ?", r.PathValue("bookID")).First(&book).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		http.Error(w, "Book not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		db.writeError(w, "Failed to load book", err)
		return nil, false
	}
	if book.UserID != user.ID {
		http.Error(w, "Not your book", http.StatusForbidden)
		return nil, false
	}
	return &book, true
}

// Titles are unique among listed books, ignoring case
func (db *DBHandler) titleAvailable(title string, exceptID uint) error {
	var n int64
	err := db.Model(&models.Book{}).
		Where("LOWER(title) = LOWER(?) AND id <> ?", title, exceptID).
		Count(&n).Error
	if err != nil {
		return err
	}
	if n > 0 {
		return errors.New("a book with this title is already listed", errors.Conflict())
	}
	return nil
}

func applyBookRequest(book *models.Book, req bookRequest) {
	if req.Title != nil {
		book.Title = strings.TrimSpace(*req.Title)
	}
	if req.Author != nil {
		book.Author = strings.TrimSpace(*req.Author)
	}
	if req.Description != nil {
		book.Description = strings.TrimSpace(*req.Description)
	}
}
