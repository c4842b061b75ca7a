package service

import (
	"context"
	"errors"
	"fmt"
	"go-admin-chat/internal/model"
	"go-admin-chat/internal/repository"
	"go-admin-chat/pkg/logger"
	"go-admin-chat/pkg/metrics"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	EventNewMessage      = "new_message"
	EventMessageEdited   = "message_edited"
	EventMessageDeleted  = "message_deleted"
	EventMessageReaction = "message_reaction"
	EventMessageRead     = "message_read"
	EventError           = "error"
)

// 消息存储, repository.MessageRepository 实现
type MessageStore interface {
	Create(ctx context.Context, message *model.Message) error
	GetByID(ctx context.Context, id string) (*model.Message, error)
	ListBetween(ctx context.Context, userID1, userID2 uint) ([]model.Message, error)
	ListForUser(ctx context.Context, userID uint) ([]model.Message, error)
	UpdateContent(ctx context.Context, id string, content string, editedAt time.Time) error
	MarkRead(ctx context.Context, id string, readAt time.Time) (bool, error)
	SoftDelete(ctx context.Context, id string) error
	UpsertReaction(ctx context.Context, messageID string, userID uint, reaction string) error
	RemoveReaction(ctx context.Context, messageID string, userID uint) error
	ListReactions(ctx context.Context, messageID string) ([]model.MessageReaction, error)
}

// 用户身份查询, 用户不存在时返回 nil, nil
type UserDirectory interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
	FindByIDs(ctx context.Context, ids []uint) ([]model.User, error)
}

// 实时推送, 尽力而为; 返回 false 表示对方不在线或投递被丢弃
type Notifier interface {
	SendToUser(userID uint, event string, payload interface{}) bool
}

type MessageService struct {
	store    MessageStore
	users    UserDirectory
	notifier Notifier
	now      func() time.Time
}

func NewMessageService(store MessageStore, users UserDirectory, notifier Notifier) *MessageService {
	return &MessageService{
		store:    store,
		users:    users,
		notifier: notifier,
		now:      time.Now,
	}
}

// 推送通道通常在服务之后创建, 这里允许延迟注入
func (s *MessageService) SetNotifier(notifier Notifier) {
	s.notifier = notifier
}

type SendMessageRequest struct {
	RecipientID uint   `json:"recipient_id" form:"recipient_id"`
	Content     string `json:"content" form:"content"`

	Attachments []model.Attachment `json:"-" form:"-"`
}

type ConversationSummary struct {
	User        *model.UserSummary `json:"user"`
	LastMessage model.Message      `json:"last_message"`
	UnreadCount int                `json:"unread_count"`
}

type MessageDeletedPayload struct {
	MessageID string `json:"message_id"`
}

type MessageReactionPayload struct {
	MessageID string                  `json:"message_id"`
	Reactions []model.MessageReaction `json:"reactions"`
}

type MessageReadPayload struct {
	MessageID string    `json:"message_id"`
	ReaderID  uint      `json:"reader_id"`
	ReadAt    time.Time `json:"read_at"`
}

func (s *MessageService) Send(ctx context.Context, senderID uint, req SendMessageRequest) (*model.Message, error) {
	content := strings.TrimSpace(req.Content)
	if req.RecipientID == 0 {
		return nil, s.fail("send", invalid("recipient_id", "is required"))
	}
	if content == "" {
		return nil, s.fail("send", invalid("content", "is required"))
	}

	sender, err := s.lookupUser(ctx, senderID)
	if err != nil {
		return nil, s.fail("send", err)
	}
	if sender == nil {
		// 认证之后用户被删除
		return nil, s.fail("send", ErrForbidden)
	}
	recipient, err := s.lookupUser(ctx, req.RecipientID)
	if err != nil {
		return nil, s.fail("send", err)
	}
	if recipient == nil {
		return nil, s.fail("send", ErrRecipientNotFound)
	}

	if !CanMessage(sender.Role, recipient.Role) {
		logger.L.Info("Send denied by policy",
			zap.Uint("senderID", senderID),
			zap.String("senderRole", sender.Role),
			zap.Uint("recipientID", recipient.ID),
			zap.String("recipientRole", recipient.Role))
		return nil, s.fail("send", ErrForbidden)
	}

	attachments := req.Attachments
	if attachments == nil {
		attachments = []model.Attachment{}
	}
	message := &model.Message{
		SenderID:    sender.ID,
		RecipientID: recipient.ID,
		Content:     content,
		Attachments: attachments,
	}
	if err := s.store.Create(ctx, message); err != nil {
		logger.L.Error("Error saving message to DB", zap.Uint("senderID", senderID), zap.Error(err))
		return nil, s.fail("send", fmt.Errorf("%w: failed to save message", ErrInternal))
	}
	logger.L.Debug("Message saved to DB", zap.String("messageID", message.ID))

	if message.Reactions == nil {
		message.Reactions = []model.MessageReaction{}
	}
	message.Sender = sender.Summary()
	message.Recipient = recipient.Summary()

	s.push(recipient.ID, EventNewMessage, message)
	s.ok("send")
	return message, nil
}

func (s *MessageService) Edit(ctx context.Context, actorID uint, messageID string, content string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, s.fail("edit", invalid("content", "is required"))
	}

	message, err := s.getMessage(ctx, messageID)
	if err != nil {
		return nil, s.fail("edit", err)
	}
	// 不存在、已删除、不是发送者统一返回 NotFound
	if !message.IsVisible() || !canEdit(actorID, message) {
		return nil, s.fail("edit", ErrNotFound)
	}

	editedAt := s.now()
	if err := s.store.UpdateContent(ctx, message.ID, content, editedAt); err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, s.fail("edit", ErrNotFound)
		}
		logger.L.Error("Error updating message content", zap.String("messageID", messageID), zap.Error(err))
		return nil, s.fail("edit", fmt.Errorf("%w: failed to edit message", ErrInternal))
	}
	message.Content = content
	message.EditedAt = &editedAt

	if err := s.hydrate(ctx, []*model.Message{message}); err != nil {
		logger.L.Warn("Edit: failed to hydrate users", zap.String("messageID", messageID), zap.Error(err))
	}

	s.push(message.RecipientID, EventMessageEdited, message)
	s.ok("edit")
	return message, nil
}

func (s *MessageService) Delete(ctx context.Context, actorID uint, messageID string) error {
	message, err := s.getMessage(ctx, messageID)
	if err != nil {
		return s.fail("delete", err)
	}
	if !message.IsVisible() || !canEdit(actorID, message) {
		return s.fail("delete", ErrNotFound)
	}

	// 附件文件保留在存储中
	if err := s.store.SoftDelete(ctx, message.ID); err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return s.fail("delete", ErrNotFound)
		}
		logger.L.Error("Error deleting message", zap.String("messageID", messageID), zap.Error(err))
		return s.fail("delete", fmt.Errorf("%w: failed to delete message", ErrInternal))
	}

	s.push(message.RecipientID, EventMessageDeleted, MessageDeletedPayload{MessageID: message.ID})
	s.ok("delete")
	return nil
}

// reaction 为 nil 或空字符串时移除 actor 的反应
func (s *MessageService) React(ctx context.Context, actorID uint, messageID string, reaction *string) ([]model.MessageReaction, error) {
	message, err := s.getMessage(ctx, messageID)
	if err != nil {
		return nil, s.fail("react", err)
	}

	value := ""
	if reaction != nil {
		value = strings.TrimSpace(*reaction)
	}
	if len(value) > 32 {
		return nil, s.fail("react", invalid("reaction", "is too long"))
	}

	if value == "" {
		err = s.store.RemoveReaction(ctx, message.ID, actorID)
	} else {
		err = s.store.UpsertReaction(ctx, message.ID, actorID, value)
	}
	if err != nil {
		logger.L.Error("Error updating reaction", zap.String("messageID", messageID), zap.Uint("actorID", actorID), zap.Error(err))
		return nil, s.fail("react", fmt.Errorf("%w: failed to update reaction", ErrInternal))
	}

	reactions, err := s.store.ListReactions(ctx, message.ID)
	if err != nil {
		logger.L.Error("Error listing reactions", zap.String("messageID", messageID), zap.Error(err))
		return nil, s.fail("react", fmt.Errorf("%w: failed to load reactions", ErrInternal))
	}
	if reactions == nil {
		reactions = []model.MessageReaction{}
	}

	payload := MessageReactionPayload{MessageID: message.ID, Reactions: reactions}
	for _, userID := range []uint{message.SenderID, message.RecipientID} {
		if userID != actorID {
			s.push(userID, EventMessageReaction, payload)
		}
	}
	s.ok("react")
	return reactions, nil
}

func (s *MessageService) MarkAsRead(ctx context.Context, actorID uint, messageID string) error {
	message, err := s.getMessage(ctx, messageID)
	if err != nil {
		return s.fail("read", err)
	}
	if !canMarkRead(actorID, message) {
		return s.fail("read", ErrForbidden)
	}
	if message.ReadAt != nil {
		s.ok("read")
		return nil
	}

	readAt := s.now()
	updated, err := s.store.MarkRead(ctx, message.ID, readAt)
	if err != nil {
		logger.L.Error("Error marking message read", zap.String("messageID", messageID), zap.Error(err))
		return s.fail("read", fmt.Errorf("%w: failed to mark message read", ErrInternal))
	}
	// 并发请求中只有第一个写入成功的发送回执
	if updated {
		s.push(message.SenderID, EventMessageRead, MessageReadPayload{
			MessageID: message.ID,
			ReaderID:  actorID,
			ReadAt:    readAt,
		})
	}
	s.ok("read")
	return nil
}

func (s *MessageService) GetConversation(ctx context.Context, requesterID, otherUserID uint) ([]model.Message, error) {
	requester, err := s.lookupUser(ctx, requesterID)
	if err != nil {
		return nil, s.fail("conversation", err)
	}
	other, err := s.lookupUser(ctx, otherUserID)
	if err != nil {
		return nil, s.fail("conversation", err)
	}
	if requester == nil {
		return nil, s.fail("conversation", ErrForbidden)
	}
	if other == nil {
		return nil, s.fail("conversation", ErrRecipientNotFound)
	}
	if !CanViewConversation(requester.Role, other.Role) {
		return nil, s.fail("conversation", ErrForbidden)
	}

	messages, err := s.store.ListBetween(ctx, requester.ID, other.ID)
	if err != nil {
		logger.L.Error("Error fetching conversation", zap.Error(err),
			zap.Uint("user1", requesterID), zap.Uint("user2", otherUserID))
		return nil, s.fail("conversation", fmt.Errorf("%w: failed to retrieve conversation", ErrInternal))
	}

	visible := make([]model.Message, 0, len(messages))
	for _, m := range messages {
		if m.IsVisible() {
			if m.Reactions == nil {
				m.Reactions = []model.MessageReaction{}
			}
			visible = append(visible, m)
		}
	}

	summaries := map[uint]*model.UserSummary{
		requester.ID: requester.Summary(),
		other.ID:     other.Summary(),
	}
	for i := range visible {
		visible[i].Sender = summaries[visible[i].SenderID]
		visible[i].Recipient = summaries[visible[i].RecipientID]
	}

	s.ok("conversation")
	return visible, nil
}

func (s *MessageService) ListConversations(ctx context.Context, requesterID uint) ([]ConversationSummary, error) {
	requester, err := s.lookupUser(ctx, requesterID)
	if err != nil {
		return nil, s.fail("list", err)
	}
	if requester == nil {
		return nil, s.fail("list", ErrForbidden)
	}

	messages, err := s.store.ListForUser(ctx, requester.ID)
	if err != nil {
		logger.L.Error("Error fetching messages for user", zap.Uint("userID", requesterID), zap.Error(err))
		return nil, s.fail("list", fmt.Errorf("%w: failed to list conversations", ErrInternal))
	}

	// messages 按时间降序, 每个对方的第一条即最新消息
	order := make([]uint, 0)
	latest := make(map[uint]model.Message)
	unread := make(map[uint]int)
	for _, m := range messages {
		if !m.IsVisible() {
			continue
		}
		counterpart := m.CounterpartOf(requester.ID)
		if _, seen := latest[counterpart]; !seen {
			latest[counterpart] = m
			order = append(order, counterpart)
		}
		if m.RecipientID == requester.ID && m.SenderID == counterpart && m.ReadAt == nil {
			unread[counterpart]++
		}
	}

	counterparts, err := s.users.FindByIDs(ctx, order)
	if err != nil {
		logger.L.Error("Error fetching conversation counterparts", zap.Uint("userID", requesterID), zap.Error(err))
		return nil, s.fail("list", fmt.Errorf("%w: failed to list conversations", ErrInternal))
	}
	byID := make(map[uint]*model.User, len(counterparts))
	for i := range counterparts {
		byID[counterparts[i].ID] = &counterparts[i]
	}

	summaries := make([]ConversationSummary, 0, len(order))
	for _, id := range order {
		user, ok := byID[id]
		if !ok {
			continue
		}
		// 普通用户只能看到和管理员的会话
		if !requester.IsAdmin() && !user.IsAdmin() {
			continue
		}
		last := latest[id]
		if last.Reactions == nil {
			last.Reactions = []model.MessageReaction{}
		}
		if last.SenderID == requester.ID {
			last.Sender, last.Recipient = requester.Summary(), user.Summary()
		} else {
			last.Sender, last.Recipient = user.Summary(), requester.Summary()
		}
		summaries = append(summaries, ConversationSummary{
			User:        user.Summary(),
			LastMessage: last,
			UnreadCount: unread[id],
		})
	}

	s.ok("list")
	return summaries, nil
}

// 返回附件文件路径, 只有消息双方可以下载
func (s *MessageService) GetAttachment(ctx context.Context, actorID uint, messageID, storedName string) (*model.Attachment, error) {
	message, err := s.getMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !message.IsVisible() || !message.IsParticipant(actorID) {
		return nil, ErrNotFound
	}
	for i := range message.Attachments {
		if message.Attachments[i].StoredName == storedName {
			return &message.Attachments[i], nil
		}
	}
	return nil, ErrNotFound
}

func (s *MessageService) getMessage(ctx context.Context, messageID string) (*model.Message, error) {
	if strings.TrimSpace(messageID) == "" {
		return nil, ErrNotFound
	}
	message, err := s.store.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, ErrNotFound
		}
		logger.L.Error("Error fetching message", zap.String("messageID", messageID), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to fetch message", ErrInternal)
	}
	if message == nil {
		return nil, ErrNotFound
	}
	return message, nil
}

func (s *MessageService) lookupUser(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		logger.L.Error("Error fetching user", zap.Uint("userID", id), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to fetch user", ErrInternal)
	}
	return user, nil
}

// 填充发送者和接收者摘要, 找不到的用户保持为空
func (s *MessageService) hydrate(ctx context.Context, messages []*model.Message) error {
	idSet := make(map[uint]struct{})
	for _, m := range messages {
		idSet[m.SenderID] = struct{}{}
		idSet[m.RecipientID] = struct{}{}
	}
	ids := make([]uint, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[uint]*model.UserSummary, len(users))
	for i := range users {
		byID[users[i].ID] = users[i].Summary()
	}
	for _, m := range messages {
		m.Sender = byID[m.SenderID]
		m.Recipient = byID[m.RecipientID]
		if m.Reactions == nil {
			m.Reactions = []model.MessageReaction{}
		}
	}
	return nil
}

// 推送失败只记录日志, 不影响调用结果
func (s *MessageService) push(userID uint, event string, payload interface{}) {
	if s.notifier == nil {
		return
	}
	if !s.notifier.SendToUser(userID, event, payload) {
		logger.L.Debug("Realtime push not delivered",
			zap.Uint("userID", userID),
			zap.String("event", event))
	}
}

func (s *MessageService) ok(op string) {
	metrics.MessagingOperations.WithLabelValues(op, "ok").Inc()
}

func (s *MessageService) fail(op string, err error) error {
	outcome := "internal"
	switch {
	case errors.Is(err, ErrValidation):
		outcome = "invalid"
	case errors.Is(err, ErrForbidden):
		outcome = "forbidden"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrRecipientNotFound):
		outcome = "not_found"
	}
	metrics.MessagingOperations.WithLabelValues(op, outcome).Inc()
	return err
}
