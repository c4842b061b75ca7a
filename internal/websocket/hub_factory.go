package websocket

import (
	"fmt"
	"go-admin-chat/internal/interfaces"
	"go-admin-chat/pkg/config"
	"go-admin-chat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ProviderChannel = "channel"
	ProviderKafka   = "kafka"
	ProviderRedis   = "redis"
)

// 服务启动后运行, 退出时关闭
type ManagedHub interface {
	interfaces.PresenceRegistry
	Start()
	Close() error
}

// CreateHub 根据配置创建相应的Hub实现
func CreateHub(cfg *config.Config, eventHandler interfaces.ConnectionEventHandler) (ManagedHub, error) {
	provider := cfg.Messaging.Provider
	if provider == "" {
		provider = ProviderChannel
	}
	logger.L.Info("Creating hub with messaging provider", zap.String("provider", provider))

	switch provider {
	case ProviderChannel:
		// 单实例, 推送只到达本进程的连接
		return NewHub(cfg.WebSocket, eventHandler), nil
	case ProviderKafka:
		return NewKafkaHub(cfg.WebSocket, cfg.Messaging, eventHandler)
	case ProviderRedis:
		return NewRedisHub(cfg.WebSocket, cfg.Messaging, eventHandler)
	default:
		return nil, fmt.Errorf("unsupported messaging provider: %s", provider)
	}
}

// 启动Hub
func StartHub(hub ManagedHub) {
	hub.Start()
}

func resolveInstanceID(configured string) string {
	if configured != "" {
		return configured
	}
	return uuid.NewString()
}
