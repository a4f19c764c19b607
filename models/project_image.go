package models

import "time"

type ProjectImage struct {
	ImageID   uint      `gorm:"primaryKey;column:image_id" json:"image_id"`
	ProjectID string    `gorm:"column:project_id;type:char(36);not null;index" json:"project_id"`
	Image     string    `gorm:"column:image;size:500;not null" json:"image"`
	Thumbnail string    `gorm:"column:thumbnail;size:500" json:"thumbnail"`
	Caption   string    `gorm:"column:caption;size:255" json:"caption"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (ProjectImage) TableName() string { return "project_images" }
