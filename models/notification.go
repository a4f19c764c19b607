package models

import "time"

// Event kinds carried by status-change notifications.
const (
	EventStatusApproved          = "status_approved"
	EventStatusRejected          = "status_rejected"
	EventStatusRevisionRequested = "status_revision_requested"
)

type Notification struct {
	NotificationID uint      `gorm:"primaryKey;column:notification_id" json:"notification_id"`
	UserID         uint      `gorm:"column:user_id;not null;index" json:"user_id"`
	Kind           string    `gorm:"column:kind;size:50" json:"kind"`
	Message        string    `gorm:"column:message;type:text;not null" json:"message"`
	Link           *string   `gorm:"column:link;size:500" json:"link,omitempty"`
	IsRead         bool      `gorm:"column:is_read;not null;default:false" json:"is_read"`
	CreateAt       time.Time `gorm:"column:create_at;autoCreateTime;index" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }
