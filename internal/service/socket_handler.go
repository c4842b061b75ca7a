package service

import (
	"context"
	"encoding/json"
	"go-admin-chat/internal/interfaces"
	"go-admin-chat/pkg/logger"
	"time"

	"go.uber.org/zap"
)

const (
	inboundSendMessage = "send_message"
	inboundMarkRead    = "mark_read"

	inboundTimeout = 10 * time.Second
)

type markReadFrame struct {
	MessageID string `json:"message_id"`
}

type ErrorPayload struct {
	Event string `json:"event"`
	Error string `json:"error"`
}

// HandleMessage 处理客户端通过 WebSocket 发来的帧, 与 HTTP 接口走同样的校验和授权
func (s *MessageService) HandleMessage(data []byte, senderID uint) {
	logger.L.Debug("HandleMessage called by WebSocket client", zap.Uint("senderID", senderID))

	var frame interfaces.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		logger.L.Warn("Failed to unmarshal frame from WebSocket",
			zap.Uint("senderID", senderID),
			zap.Error(err))
		s.push(senderID, EventError, ErrorPayload{Error: "malformed frame"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), inboundTimeout)
	defer cancel()

	var err error
	switch frame.Event {
	case inboundSendMessage:
		var req SendMessageRequest
		if err = json.Unmarshal(frame.Data, &req); err == nil {
			_, err = s.Send(ctx, senderID, req)
		}
	case inboundMarkRead:
		var req markReadFrame
		if err = json.Unmarshal(frame.Data, &req); err == nil {
			err = s.MarkAsRead(ctx, senderID, req.MessageID)
		}
	default:
		logger.L.Warn("Unknown inbound event", zap.Uint("senderID", senderID), zap.String("event", frame.Event))
		s.push(senderID, EventError, ErrorPayload{Event: frame.Event, Error: "unknown event"})
		return
	}

	if err != nil {
		logger.L.Info("Error processing frame received via WebSocket",
			zap.Uint("senderID", senderID),
			zap.String("event", frame.Event),
			zap.Error(err))
		s.push(senderID, EventError, ErrorPayload{Event: frame.Event, Error: PublicMessage(err)})
	}
}

func (s *MessageService) HandleUserConnected(userID uint) {
	logger.L.Debug("User connected", zap.Uint("userID", userID))
}

func (s *MessageService) HandleUserDisconnected(userID uint) {
	logger.L.Debug("User disconnected", zap.Uint("userID", userID))
}
