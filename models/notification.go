package models

import (
	"time"
)

type NotificationCategory string

const (
	CategoryRequest   NotificationCategory = "request"
	CategoryAccepted  NotificationCategory = "accepted"
	CategoryCancelled NotificationCategory = "cancelled"
	CategoryDeclined  NotificationCategory = "declined"
	CategoryWithdrawn NotificationCategory = "withdrawn"
	CategoryInfo      NotificationCategory = "info"
)

type Notification struct {
	ID       uint                 `gorm:"primaryKey" json:"id"`
	UserID   uint                 `gorm:"not null;index" json:"-"`
	User     User                 `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Message  string               `gorm:"not null;size:500" json:"message"`
	Category NotificationCategory `gorm:"not null;size:20" json:"category"`
	Read     bool                 `gorm:"default:false" json:"read"`
	SentAt   time.Time            `gorm:"autoCreateTime" json:"sentAt"`
}
