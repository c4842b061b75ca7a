package repository

import (
	"context"
	"go-admin-chat/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestMessages(t *testing.T) (*MessageRepository, *model.User, *model.User) {
	conn := setupTestDB(t)
	userRepo := NewUserRepository(conn)
	admin := createUser(t, userRepo, "testadmin", model.RoleAdmin)
	user := createUser(t, userRepo, "testuser", model.RoleUser)
	return NewMessageRepository(conn), admin, user
}

func newMessage(t *testing.T, repo *MessageRepository, senderID, recipientID uint, content string) *model.Message {
	message := &model.Message{
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
		Attachments: []model.Attachment{},
	}
	require.NoError(t, repo.Create(context.Background(), message))
	return message
}

func TestMessageRepository_Create(t *testing.T) {
	repo, admin, user := setupTestMessages(t)

	message := &model.Message{
		SenderID:    admin.ID,
		RecipientID: user.ID,
		Content:     "Test message",
		Attachments: []model.Attachment{{StoredName: "a_1.txt", OriginalName: "a.txt", MimeType: "text/plain", SizeBytes: 3, Path: "user_1/a_1.txt"}},
	}
	require.NoError(t, repo.Create(context.Background(), message))
	assert.Len(t, message.ID, 36)

	found, err := repo.GetByID(context.Background(), message.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test message", found.Content)
	require.Len(t, found.Attachments, 1)
	assert.Equal(t, "a.txt", found.Attachments[0].OriginalName)
	assert.Nil(t, found.EditedAt)
	assert.Nil(t, found.ReadAt)
}

func TestMessageRepository_GetByIDMissing(t *testing.T) {
	repo, _, _ := setupTestMessages(t)
	_, err := repo.GetByID(context.Background(), "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestMessageRepository_Lists(t *testing.T) {
	repo, admin, user := setupTestMessages(t)
	ctx := context.Background()

	first := newMessage(t, repo, admin.ID, user.ID, "Message 1")
	time.Sleep(10 * time.Millisecond)
	second := newMessage(t, repo, user.ID, admin.ID, "Message 2")

	between, err := repo.ListBetween(ctx, user.ID, admin.ID)
	require.NoError(t, err)
	require.Len(t, between, 2)
	assert.Equal(t, first.ID, between[0].ID)

	forUser, err := repo.ListForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, forUser, 2)
	assert.Equal(t, second.ID, forUser[0].ID)
}

func TestMessageRepository_SoftDelete(t *testing.T) {
	repo, admin, user := setupTestMessages(t)
	ctx := context.Background()
	message := newMessage(t, repo, admin.ID, user.ID, "Test message")

	require.NoError(t, repo.SoftDelete(ctx, message.ID))
	assert.ErrorIs(t, repo.SoftDelete(ctx, message.ID), ErrMessageNotFound)

	// 列表中不可见, 按ID仍能取到
	found, err := repo.ListBetween(ctx, admin.ID, user.ID)
	require.NoError(t, err)
	assert.Empty(t, found)

	row, err := repo.GetByID(ctx, message.ID)
	require.NoError(t, err)
	assert.True(t, row.DeletedAt.Valid)
	assert.False(t, row.IsVisible())

	assert.ErrorIs(t, repo.UpdateContent(ctx, message.ID, "too late", time.Now()), ErrMessageNotFound)
}

func TestMessageRepository_UpdateContent(t *testing.T) {
	repo, admin, user := setupTestMessages(t)
	ctx := context.Background()
	message := newMessage(t, repo, admin.ID, user.ID, "before")

	require.NoError(t, repo.UpdateContent(ctx, message.ID, "after", time.Now()))
	found, err := repo.GetByID(ctx, message.ID)
	require.NoError(t, err)
	assert.Equal(t, "after", found.Content)
	assert.NotNil(t, found.EditedAt)
}

func TestMessageRepository_MarkReadOnce(t *testing.T) {
	repo, admin, user := setupTestMessages(t)
	ctx := context.Background()
	message := newMessage(t, repo, admin.ID, user.ID, "read me")

	first := time.Now().Truncate(time.Second)
	updated, err := repo.MarkRead(ctx, message.ID, first)
	require.NoError(t, err)
	assert.True(t, updated)

	updated, err = repo.MarkRead(ctx, message.ID, first.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, updated)

	found, err := repo.GetByID(ctx, message.ID)
	require.NoError(t, err)
	require.NotNil(t, found.ReadAt)
	assert.WithinDuration(t, first, *found.ReadAt, time.Second)
}

func TestMessageRepository_Reactions(t *testing.T) {
	repo, admin, user := setupTestMessages(t)
	ctx := context.Background()
	message := newMessage(t, repo, admin.ID, user.ID, "react to me")

	require.NoError(t, repo.UpsertReaction(ctx, message.ID, user.ID, "👍"))
	require.NoError(t, repo.UpsertReaction(ctx, message.ID, user.ID, "👍"))
	require.NoError(t, repo.UpsertReaction(ctx, message.ID, admin.ID, "🎉"))

	reactions, err := repo.ListReactions(ctx, message.ID)
	require.NoError(t, err)
	assert.Len(t, reactions, 2)

	// 覆盖为新的反应
	require.NoError(t, repo.UpsertReaction(ctx, message.ID, user.ID, "❤️"))
	found, err := repo.GetByID(ctx, message.ID)
	require.NoError(t, err)
	require.Len(t, found.Reactions, 2)
	for _, r := range found.Reactions {
		if r.UserID == user.ID {
			assert.Equal(t, "❤️", r.Reaction)
		}
	}

	require.NoError(t, repo.RemoveReaction(ctx, message.ID, user.ID))
	require.NoError(t, repo.RemoveReaction(ctx, message.ID, user.ID))
	reactions, err = repo.ListReactions(ctx, message.ID)
	require.NoError(t, err)
	require.Len(t, reactions, 1)
	assert.Equal(t, admin.ID, reactions[0].UserID)
}

func TestMessageRepository_UpdateContentUnchanged(t *testing.T) {
	repo, admin, user := setupTestMessages(t)
	ctx := context.Background()
	message := newMessage(t, repo, admin.ID, user.ID, "same")

	// 同一内容同一时间再次保存, 行数不变也不应当报不存在
	editedAt := time.Now().Truncate(time.Second)
	require.NoError(t, repo.UpdateContent(ctx, message.ID, "same", editedAt))
	require.NoError(t, repo.UpdateContent(ctx, message.ID, "same", editedAt))

	assert.ErrorIs(t, repo.UpdateContent(ctx, "00000000-0000-0000-0000-000000000000", "x", editedAt), ErrMessageNotFound)
}

func TestMessageRepository_ListForUserKeepsReactions(t *testing.T) {
	repo, admin, user := setupTestMessages(t)
	ctx := context.Background()
	message := newMessage(t, repo, admin.ID, user.ID, "react to me")

	require.NoError(t, repo.UpsertReaction(ctx, message.ID, user.ID, "👍"))
	require.NoError(t, repo.UpsertReaction(ctx, message.ID, user.ID, "🎉"))

	forUser, err := repo.ListForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, forUser, 1)
	require.Len(t, forUser[0].Reactions, 1)
	assert.Equal(t, "🎉", forUser[0].Reactions[0].Reaction)
	assert.Equal(t, user.ID, forUser[0].Reactions[0].UserID)
}
