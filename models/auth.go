package models

import "gorm.io/gorm"

// Auth links a user to an identity at an OAuth provider
type Auth struct {
	gorm.Model
	Provider   string `gorm:"not null;size:50;uniqueIndex:idx_provider_identity"`
	ProviderID string `gorm:"not null;size:200;uniqueIndex:idx_provider_identity"`
	UserID     uint   `gorm:"not null;index"`
}

// All lists every model managed by the schema migration
func All() []interface{} {
	return []interface{}{&User{}, &Auth{}, &Book{}, &Request{}, &Trade{}, &Notification{}}
}
