package service

import (
	"context"
	"sync"
	"time"

	"go-admin-chat/internal/model"

	"github.com/stretchr/testify/mock"
)

type mockMessageStore struct {
	mock.Mock
}

func (m *mockMessageStore) Create(ctx context.Context, message *model.Message) error {
	return m.Called(ctx, message).Error(0)
}

func (m *mockMessageStore) GetByID(ctx context.Context, id string) (*model.Message, error) {
	args := m.Called(ctx, id)
	message, _ := args.Get(0).(*model.Message)
	return message, args.Error(1)
}

func (m *mockMessageStore) ListBetween(ctx context.Context, userID1, userID2 uint) ([]model.Message, error) {
	args := m.Called(ctx, userID1, userID2)
	messages, _ := args.Get(0).([]model.Message)
	return messages, args.Error(1)
}

func (m *mockMessageStore) ListForUser(ctx context.Context, userID uint) ([]model.Message, error) {
	args := m.Called(ctx, userID)
	messages, _ := args.Get(0).([]model.Message)
	return messages, args.Error(1)
}

func (m *mockMessageStore) UpdateContent(ctx context.Context, id string, content string, editedAt time.Time) error {
	return m.Called(ctx, id, content, editedAt).Error(0)
}

func (m *mockMessageStore) MarkRead(ctx context.Context, id string, readAt time.Time) (bool, error) {
	args := m.Called(ctx, id, readAt)
	return args.Bool(0), args.Error(1)
}

func (m *mockMessageStore) SoftDelete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockMessageStore) UpsertReaction(ctx context.Context, messageID string, userID uint, reaction string) error {
	return m.Called(ctx, messageID, userID, reaction).Error(0)
}

func (m *mockMessageStore) RemoveReaction(ctx context.Context, messageID string, userID uint) error {
	return m.Called(ctx, messageID, userID).Error(0)
}

func (m *mockMessageStore) ListReactions(ctx context.Context, messageID string) ([]model.MessageReaction, error) {
	args := m.Called(ctx, messageID)
	reactions, _ := args.Get(0).([]model.MessageReaction)
	return reactions, args.Error(1)
}

// 内存中的用户表
type fakeDirectory struct {
	users map[uint]*model.User
	err   error
}

func newFakeDirectory(users ...*model.User) *fakeDirectory {
	d := &fakeDirectory{users: make(map[uint]*model.User)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *fakeDirectory) FindByID(_ context.Context, id uint) (*model.User, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.users[id], nil
}

func (d *fakeDirectory) FindByIDs(_ context.Context, ids []uint) ([]model.User, error) {
	if d.err != nil {
		return nil, d.err
	}
	users := make([]model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			users = append(users, *u)
		}
	}
	return users, nil
}

type push struct {
	UserID  uint
	Event   string
	Payload interface{}
}

type recordingNotifier struct {
	mu     sync.Mutex
	pushes []push
}

func (n *recordingNotifier) SendToUser(userID uint, event string, payload interface{}) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pushes = append(n.pushes, push{UserID: userID, Event: event, Payload: payload})
	return true
}

func (n *recordingNotifier) all() []push {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]push(nil), n.pushes...)
}
