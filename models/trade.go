package models

import "gorm.io/gorm"

// Trade records a completed exchange
type Trade struct {
	gorm.Model
	GaveUserID uint    `gorm:"not null;index"`
	GaveUser   User    `gorm:"foreignKey:GaveUserID" json:"-"`
	TookUserID uint    `gorm:"not null;index"`
	TookUser   User    `gorm:"foreignKey:TookUserID" json:"-"`
	RequestID  uint    `gorm:"not null;uniqueIndex"`
	Request    Request `gorm:"foreignKey:RequestID"`
}
