package api

import (
	"context"
	"sort"
	"sync"
	"time"

	"go-admin-chat/internal/model"
	"go-admin-chat/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 内存实现的消息存储, 行为与 repository.MessageRepository 一致
type memoryMessageStore struct {
	mu        sync.Mutex
	messages  map[string]*model.Message
	reactions map[string]map[uint]model.MessageReaction
	seq       int
}

func newMemoryMessageStore() *memoryMessageStore {
	return &memoryMessageStore{
		messages:  make(map[string]*model.Message),
		reactions: make(map[string]map[uint]model.MessageReaction),
	}
}

func (s *memoryMessageStore) Create(_ context.Context, message *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	s.seq++
	message.CreatedAt = time.Unix(int64(s.seq), 0)
	stored := *message
	s.messages[message.ID] = &stored
	return nil
}

func (s *memoryMessageStore) GetByID(_ context.Context, id string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, repository.ErrMessageNotFound
	}
	copied := *m
	copied.Reactions = s.reactionList(id)
	return &copied, nil
}

func (s *memoryMessageStore) filter(keep func(*model.Message) bool, desc bool) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]model.Message, 0)
	for _, m := range s.messages {
		if keep(m) {
			copied := *m
			copied.Reactions = s.reactionList(m.ID)
			result = append(result, copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if desc {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (s *memoryMessageStore) ListBetween(_ context.Context, a, b uint) ([]model.Message, error) {
	return s.filter(func(m *model.Message) bool {
		return (m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a)
	}, false), nil
}

func (s *memoryMessageStore) ListForUser(_ context.Context, userID uint) ([]model.Message, error) {
	return s.filter(func(m *model.Message) bool {
		return !m.DeletedAt.Valid && m.IsParticipant(userID)
	}, true), nil
}

func (s *memoryMessageStore) UpdateContent(_ context.Context, id, content string, editedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok || m.DeletedAt.Valid {
		return repository.ErrMessageNotFound
	}
	m.Content = content
	m.EditedAt = &editedAt
	return nil
}

func (s *memoryMessageStore) MarkRead(_ context.Context, id string, readAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok || m.ReadAt != nil {
		return false, nil
	}
	m.ReadAt = &readAt
	return true, nil
}

func (s *memoryMessageStore) SoftDelete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok || m.DeletedAt.Valid {
		return repository.ErrMessageNotFound
	}
	m.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	return nil
}

func (s *memoryMessageStore) UpsertReaction(_ context.Context, messageID string, userID uint, reaction string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reactions[messageID] == nil {
		s.reactions[messageID] = make(map[uint]model.MessageReaction)
	}
	s.reactions[messageID][userID] = model.MessageReaction{MessageID: messageID, UserID: userID, Reaction: reaction}
	return nil
}

func (s *memoryMessageStore) RemoveReaction(_ context.Context, messageID string, userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reactions[messageID], userID)
	return nil
}

func (s *memoryMessageStore) ListReactions(_ context.Context, messageID string) ([]model.MessageReaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reactionList(messageID), nil
}

func (s *memoryMessageStore) reactionList(messageID string) []model.MessageReaction {
	list := make([]model.MessageReaction, 0, len(s.reactions[messageID]))
	for _, r := range s.reactions[messageID] {
		list = append(list, r)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UserID < list[j].UserID })
	return list
}

// 同时满足 UserDirectory, UserStore 和 UserLookup
type memoryUsers struct {
	mu    sync.Mutex
	users map[uint]*model.User
	next  uint
}

func newMemoryUsers(users ...*model.User) *memoryUsers {
	m := &memoryUsers{users: make(map[uint]*model.User)}
	for _, u := range users {
		m.users[u.ID] = u
		if u.ID > m.next {
			m.next = u.ID
		}
	}
	return m
}

func (m *memoryUsers) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	user.ID = m.next
	m.users[user.ID] = user
	return nil
}

func (m *memoryUsers) find(match func(*model.User) bool) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			return u
		}
	}
	return nil
}

func (m *memoryUsers) FindByUsername(_ context.Context, username string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Username == username }), nil
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Email == email }), nil
}

func (m *memoryUsers) FindByID(_ context.Context, id uint) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id], nil
}

func (m *memoryUsers) FindByIDs(_ context.Context, ids []uint) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			result = append(result, *u)
		}
	}
	return result, nil
}

type pushRecord struct {
	UserID uint
	Event  string
}

type recordingNotifier struct {
	mu     sync.Mutex
	pushes []pushRecord
}

func (n *recordingNotifier) SendToUser(userID uint, event string, _ interface{}) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pushes = append(n.pushes, pushRecord{UserID: userID, Event: event})
	return true
}

func (n *recordingNotifier) events(userID uint) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var events []string
	for _, p := range n.pushes {
		if p.UserID == userID {
			events = append(events, p.Event)
		}
	}
	return events
}
