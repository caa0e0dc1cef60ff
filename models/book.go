package models

import "gorm.io/gorm"

// Book represents a book listed for trade
type Book struct {
	gorm.Model
	PublicID    string `gorm:"size:100;uniqueIndex"`
	Title       string `gorm:"not null;size:200;uniqueIndex:idx_books_title,where:deleted_at IS NULL"`
	Author      string `gorm:"size:200"`
	Description string `gorm:"size:2000"`

	UserID uint `gorm:"not null;index"`
	User   User `gorm:"foreignKey:UserID" json:"-"`

	NumOfRequests int `gorm:"not null;default:0"`
}
