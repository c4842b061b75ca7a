package model

import "time"

// (message_id, user_id) 为主键, 每个用户对每条消息只保留一个反应
type MessageReaction struct {
	MessageID string    `gorm:"type:char(36);primaryKey" json:"-"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Reaction  string    `gorm:"type:varchar(32);not null" json:"reaction"`
	CreatedAt time.Time `json:"created_at"`
}
