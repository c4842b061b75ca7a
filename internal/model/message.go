package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Message struct {
	ID          string                          `gorm:"type:char(36);primaryKey" json:"id"`
	SenderID    uint                            `gorm:"not null;index:idx_messages_pair,priority:1" json:"sender_id"`
	RecipientID uint                            `gorm:"not null;index:idx_messages_pair,priority:2;index" json:"recipient_id"`
	Content     string                          `gorm:"type:text;not null" json:"content"`
	Attachments datatypes.JSONSlice[Attachment] `json:"attachments"`
	CreatedAt   time.Time                       `gorm:"index" json:"created_at"`
	EditedAt    *time.Time                      `json:"edited_at"`
	ReadAt      *time.Time                      `json:"read_at"`
	DeletedAt   gorm.DeletedAt                  `gorm:"index" json:"deleted_at"`

	Reactions []MessageReaction `gorm:"foreignKey:MessageID" json:"reactions"`
	Sender    *UserSummary      `gorm:"-" json:"sender,omitempty"`
	Recipient *UserSummary      `gorm:"-" json:"recipient,omitempty"`
}

// 发送时写入, 之后不再修改
type Attachment struct {
	StoredName   string `json:"stored_name"`
	OriginalName string `json:"original_name"`
	MimeType     string `json:"mime_type"`
	SizeBytes    int64  `json:"size_bytes"`
	Path         string `json:"path"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// 所有读路径共用的可见性判断: 软删除的消息不可见
func (m *Message) IsVisible() bool {
	return !m.DeletedAt.Valid
}

// 对方用户ID, userID 不是参与者时返回 0
func (m *Message) CounterpartOf(userID uint) uint {
	switch userID {
	case m.SenderID:
		return m.RecipientID
	case m.RecipientID:
		return m.SenderID
	}
	return 0
}

func (m *Message) IsParticipant(userID uint) bool {
	return userID == m.SenderID || userID == m.RecipientID
}
