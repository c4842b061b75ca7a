package websocket

import (
	"encoding/json"
	"go-admin-chat/internal/interfaces"
	"go-admin-chat/pkg/logger"
	"go-admin-chat/pkg/metrics"

	"go.uber.org/zap"
)

// 跨实例转发的推送, Frame 是已经编码好的 WebSocket 帧
type DirectEnvelope struct {
	Origin string          `json:"origin"`
	UserID uint            `json:"user_id"`
	Event  string          `json:"event"`
	Frame  json.RawMessage `json:"frame"`
}

// 收到其他实例转发的推送, 只投递给本地连接
func (h *Hub) deliverRelayed(data []byte, self string) {
	var envelope DirectEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		logger.L.Error("Failed to unmarshal direct envelope", zap.Error(err))
		return
	}
	if envelope.Origin == self {
		return
	}
	if !h.deliverLocal(envelope.UserID, envelope.Event, envelope.Frame) {
		logger.L.Debug("Relayed frame not delivered on this instance",
			zap.Uint("userID", envelope.UserID),
			zap.String("event", envelope.Event))
	}
}

// 本地投递, 用户不在本实例时交给 publish 转发
func (h *Hub) sendOrRelay(userID uint, event string, payload interface{}, origin string, publish func([]byte) error) bool {
	if h.IsClientConnected(userID) {
		return h.SendToUser(userID, event, payload)
	}

	frame, err := interfaces.EncodeFrame(event, payload)
	if err != nil {
		logger.L.Error("Failed to encode frame", zap.String("event", event), zap.Error(err))
		metrics.DeliveryPushes.WithLabelValues(event, "dropped").Inc()
		return false
	}
	data, err := json.Marshal(DirectEnvelope{Origin: origin, UserID: userID, Event: event, Frame: frame})
	if err != nil {
		metrics.DeliveryPushes.WithLabelValues(event, "dropped").Inc()
		return false
	}
	if err := publish(data); err != nil {
		logger.L.Error("Failed to forward frame", zap.Uint("userID", userID), zap.String("event", event), zap.Error(err))
		metrics.DeliveryPushes.WithLabelValues(event, "dropped").Inc()
		return false
	}

	// 转发之后无法确认对方是否在线
	metrics.DeliveryPushes.WithLabelValues(event, "forwarded").Inc()
	return false
}
