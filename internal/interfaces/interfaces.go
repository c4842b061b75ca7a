package interfaces

import "encoding/json"

type Client interface {
	GetUserID() uint
	QueueBytes(data []byte) error
	Close()
}

// 定义了处理传入消息的接口
// service.MessageService实现
type MessageHandler interface {
	HandleMessage(message []byte, senderID uint)
}

// 定义了处理连接事件的方法
// service.MessageService实现
type ConnectionEventHandler interface {
	HandleUserConnected(userID uint)
	HandleUserDisconnected(userID uint)
}

// 每个用户最多一个在线连接, 后连接的替换先连接的
type PresenceRegistry interface {
	Register(client Client)
	Unregister(client Client)
	SendToUser(userID uint, event string, payload interface{}) bool
	IsClientConnected(userID uint) bool
	SetEventHandler(handler ConnectionEventHandler)
}

// WebSocket 上的帧格式, 双向相同
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func EncodeFrame(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: data})
}
