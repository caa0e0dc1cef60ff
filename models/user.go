package models

import "gorm.io/gorm"

// User represents a trader in the marketplace
type User struct {
	gorm.Model
	Username     string  `gorm:"unique;not null;size:100"`
	Email        *string `gorm:"unique;size:200"`
	PasswordHash string  `gorm:"size:100" json:"-"`
	FullName     string  `gorm:"size:200"`
	City         string  `gorm:"size:100"`
	State        string  `gorm:"size:100"`

	// Sealed with the user's key from the key store
	Address string `gorm:"size:1000" json:"-"`
	Zip     string `gorm:"size:200" json:"-"`

	Books []Book `gorm:"foreignKey:UserID"`
	Auths []Auth `gorm:"foreignKey:UserID" json:"-"`
}
