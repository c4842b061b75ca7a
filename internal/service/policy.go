package service

import "go-admin-chat/internal/model"

// CanMessage reports whether a user with senderRole may address a user with recipientRole.
// Admins may message anyone; regular users may only message admins.
func CanMessage(senderRole, recipientRole string) bool {
	switch senderRole {
	case model.RoleAdmin:
		return true
	case model.RoleUser:
		return recipientRole == model.RoleAdmin
	}
	return false
}

// CanViewConversation holds when either side could have started the exchange.
// It is evaluated on every read; nothing is cached on the message.
func CanViewConversation(roleA, roleB string) bool {
	return CanMessage(roleA, roleB) || CanMessage(roleB, roleA)
}

func canEdit(actorID uint, m *model.Message) bool {
	return actorID == m.SenderID
}

func canMarkRead(actorID uint, m *model.Message) bool {
	return actorID == m.RecipientID
}
