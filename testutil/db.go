// Package testutil holds helpers shared by the package tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/andrewpaige1/bookswap-api/config"
	"github.com/andrewpaige1/bookswap-api/models"
)

// NewDB returns a migrated in-memory sqlite database private to the test
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := config.Open("sqlite", dsn, logger.Silent)
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts a user with the given username
func CreateUser(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()

	user := models.User{Username: username, FullName: username}
	require.NoError(t, db.Create(&user).Error)
	return user
}

// CreateBook inserts a book owned by owner
func CreateBook(t *testing.T, db *gorm.DB, owner models.User, title string) models.Book {
	t.Helper()

	book := models.Book{
		PublicID: uuid.NewString(),
		Title:    title,
		Author:   "Anon",
		UserID:   owner.ID,
	}
	require.NoError(t, db.Create(&book).Error)
	return book
}
