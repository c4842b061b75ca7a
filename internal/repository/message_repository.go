package repository

import (
	"context"
	"errors"
	"go-admin-chat/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrMessageNotFound = errors.New("message not found")

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// 保存新消息, ID 和 CreatedAt 由 gorm 填充
func (r *MessageRepository) Create(ctx context.Context, message *model.Message) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(message).Error
}

// 按ID查找消息, 包括已软删除的消息
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*model.Message, error) {
	var message model.Message
	err := r.db.WithContext(ctx).Unscoped().
		Preload("Reactions", orderReactions).
		Where("id = ?", id).
		First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &message, nil
}

// 获取两个用户之间的聊天记录, 按时间升序
func (r *MessageRepository) ListBetween(ctx context.Context, userID1, userID2 uint) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).Where(
		"(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
		userID1, userID2, userID2, userID1,
	).Order("created_at ASC").
		Order("id ASC").
		Preload("Reactions", orderReactions).
		Find(&messages).Error

	return messages, err
}

// 获取用户发送或接收的所有消息, 按时间降序
func (r *MessageRepository) ListForUser(ctx context.Context, userID uint) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).
		Where("sender_id = ? OR recipient_id = ?", userID, userID).
		Order("created_at DESC").
		Order("id DESC").
		Preload("Reactions", orderReactions).
		Find(&messages).Error

	return messages, err
}

// 修改消息内容并记录编辑时间
func (r *MessageRepository) UpdateContent(ctx context.Context, id string, content string, editedAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"content":   content,
			"edited_at": editedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	// MySQL 默认返回实际改变的行数, 内容和时间都没变时为 0, 需要再确认消息是否存在
	if result.RowsAffected == 0 {
		return r.ensureVisible(ctx, id)
	}
	return nil
}

func (r *MessageRepository) ensureVisible(ctx context.Context, id string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Message{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// 标记已读, 只有 read_at 为空时才写入
// 返回 false 表示消息之前已被读过
func (r *MessageRepository) MarkRead(ctx context.Context, id string, readAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Unscoped().Model(&model.Message{}).
		Where("id = ? AND read_at IS NULL", id).
		Update("read_at", readAt)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// 软删除消息
func (r *MessageRepository) SoftDelete(ctx context.Context, id string) error {
	return checkAffected(r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Message{}))
}

// 新增或覆盖用户对消息的反应, 单条语句完成
func (r *MessageRepository) UpsertReaction(ctx context.Context, messageID string, userID uint, reaction string) error {
	row := &model.MessageReaction{
		MessageID: messageID,
		UserID:    userID,
		Reaction:  reaction,
		CreatedAt: time.Now(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"reaction", "created_at"}),
	}).Create(row).Error
}

// 删除用户对消息的反应, 不存在时不报错
func (r *MessageRepository) RemoveReaction(ctx context.Context, messageID string, userID uint) error {
	return r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		Delete(&model.MessageReaction{}).Error
}

func (r *MessageRepository) ListReactions(ctx context.Context, messageID string) ([]model.MessageReaction, error) {
	var reactions []model.MessageReaction
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("created_at ASC").
		Find(&reactions).Error
	return reactions, err
}

func orderReactions(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}

func checkAffected(result *gorm.DB) error {
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}
