package services

import (
	"context"

	"gorm.io/gorm"

	"research-showcase-api/config"
	"research-showcase-api/models"
	"research-showcase-api/utils"
)

// InboxService reads and acknowledges a user's in-app notifications.
type InboxService struct {
	db *gorm.DB
}

func NewInboxService(db *gorm.DB) *InboxService {
	if db == nil {
		db = config.DB
	}
	return &InboxService{db: db}
}

// List returns notifications newest first.
func (s *InboxService) List(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	items := []models.Notification{}
	if err := q.Order("create_at DESC, notification_id DESC").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, utils.ErrPersistence(err, "failed to load notifications")
	}
	return items, nil
}

func (s *InboxService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error; err != nil {
		return 0, utils.ErrPersistence(err, "failed to count notifications")
	}
	return n, nil
}

// MarkRead flags one of the user's notifications as read.
func (s *InboxService) MarkRead(ctx context.Context, userID, notificationID uint) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("notification_id = ? AND user_id = ?", notificationID, userID).
		Update("is_read", true)
	if res.Error != nil {
		return utils.ErrPersistence(res.Error, "failed to update notification")
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.Notification{}).
			Where("notification_id = ? AND user_id = ?", notificationID, userID).
			Count(&n).Error; err != nil {
			return utils.ErrPersistence(err, "failed to update notification")
		}
		if n == 0 {
			return utils.ErrNotFound("notification")
		}
	}
	return nil
}

// MarkAllRead flags every unread notification of the user and returns how many changed.
func (s *InboxService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, utils.ErrPersistence(res.Error, "failed to update notifications")
	}
	return res.RowsAffected, nil
}
