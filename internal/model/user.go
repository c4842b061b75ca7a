package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"type:varchar(30);not null;uniqueIndex" json:"username"`
	Password  string         `gorm:"type:varchar(100);not null" json:"-"`
	Email     string         `gorm:"type:varchar(100);not null;uniqueIndex" json:"email"`
	Role      string         `gorm:"type:varchar(20);not null;default:'user';index" json:"role"`
	Avatar    string         `gorm:"type:varchar(255)" json:"avatar"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// 推送和会话列表里附带的用户摘要
type UserSummary struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Avatar   string `json:"avatar"`
}

func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{
		ID:       u.ID,
		Username: u.Username,
		Role:     u.Role,
		Avatar:   u.Avatar,
	}
}
