package models

import "time"

// StatusHistory records one review transition of a project. Rows are only ever inserted.
type StatusHistory struct {
	HistoryID  uint            `gorm:"primaryKey;column:history_id" json:"history_id"`
	ProjectID  string          `gorm:"column:project_id;type:char(36);not null;index" json:"project_id"`
	ChangedBy  *uint           `gorm:"column:changed_by" json:"changed_by"`
	StatusFrom *ApprovalStatus `gorm:"column:status_from;size:20" json:"status_from"`
	StatusTo   ApprovalStatus  `gorm:"column:status_to;size:20;not null" json:"status_to"`
	Comment    string          `gorm:"column:comment;type:text" json:"comment"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`

	Actor *User `gorm:"foreignKey:ChangedBy;references:UserID" json:"actor,omitempty"`
}

// TableName specifies the table for StatusHistory.
func (StatusHistory) TableName() string {
	return "project_status_history"
}

// ActorName returns "system" for transitions without a recorded user.
func (h StatusHistory) ActorName() string {
	if h.Actor == nil {
		return "system"
	}
	return h.Actor.DisplayName()
}
