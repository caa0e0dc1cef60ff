package trading

import (
	"context"

	"gorm.io/gorm"

	"github.com/andrewpaige1/bookswap-api/errors"
	"github.com/andrewpaige1/bookswap-api/models"
)

// Notify records a notification for the user within tx
func Notify(tx *gorm.DB, userID uint, category models.NotificationCategory, message string) error {
	return tx.Create(&models.Notification{
		UserID:   userID,
		Category: category,
		Message:  message,
	}).Error
}

func (s *Service) Notify(ctx context.Context, userID uint, category models.NotificationCategory, message string) error {
	return Notify(s.db.WithContext(ctx), userID, category, message)
}

// Notifications returns the user's notifications, newest first
func (s *Service) Notifications(ctx context.Context, userID uint, unreadOnly bool) ([]models.Notification, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("read = ?", false)
	}

	notifications := []models.Notification{}
	err := query.Order("sent_at desc").Order("id desc").Find(&notifications).Error
	return notifications, err
}

func (s *Service) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&n).Error
	return n, err
}

func (s *Service) MarkRead(ctx context.Context, userID, notificationID uint) error {
	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("notification not found", errors.NotFound())
	}
	return nil
}

func (s *Service) DeleteNotification(ctx context.Context, userID, notificationID uint) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("notification not found", errors.NotFound())
	}
	return nil
}
