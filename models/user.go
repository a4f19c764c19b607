package models

import (
	"strings"
	"time"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleFaculty Role = "faculty"
	RoleAdmin   Role = "admin"
)

// ParseRole accepts the stored role names case-insensitively.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleFaculty:
		return RoleFaculty, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// IsAdmin reports whether the role may review submissions.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// IsFacultyOrAdmin reports whether the role may submit projects.
func (r Role) IsFacultyOrAdmin() bool { return r == RoleFaculty || r == RoleAdmin }

func (r Role) Valid() bool { return r == RoleFaculty || r == RoleAdmin }

type User struct {
	UserID                      uint       `gorm:"primaryKey;column:user_id" json:"user_id"`
	Username                    string     `gorm:"column:username;size:150;uniqueIndex" json:"username"`
	Email                       string     `gorm:"column:email;size:255;uniqueIndex" json:"email"`
	FullName                    string     `gorm:"column:full_name;size:255" json:"full_name"`
	Department                  string     `gorm:"column:department;size:100" json:"department"`
	Password                    string     `gorm:"column:password" json:"-"`
	Role                        Role       `gorm:"column:role;size:20;not null;default:faculty" json:"role"`
	NotifyByEmailOnStatusChange bool       `gorm:"column:notify_by_email_on_status_change;not null;default:true" json:"notify_by_email_on_status_change"`
	NotifyInAppOnStatusChange   bool       `gorm:"column:notify_in_app_on_status_change;not null;default:true" json:"notify_in_app_on_status_change"`
	LastActivity                *time.Time `gorm:"column:last_activity" json:"last_activity,omitempty"`
	CreateAt                    time.Time  `gorm:"column:create_at;autoCreateTime" json:"create_at"`
	UpdateAt                    time.Time  `gorm:"column:update_at;autoUpdateTime" json:"update_at"`
}

func (User) TableName() string {
	return "users"
}

// DisplayName falls back to the username when no full name was recorded.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.FullName); name != "" {
		return name
	}
	return u.Username
}
