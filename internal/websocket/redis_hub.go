package websocket

import (
	"context"
	"fmt"
	"go-admin-chat/internal/interfaces"
	"go-admin-chat/pkg/config"
	"go-admin-chat/pkg/logger"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisHub 通过 Redis pub/sub 在实例之间转发推送
type RedisHub struct {
	*Hub

	rdb        *redis.Client
	channel    string
	instanceID string
	ctx        context.Context
	cancelFunc context.CancelFunc
}

func NewRedisHub(wsConfig config.WebSocketConfig, msgConfig config.MessagingConfig, eventHandler interfaces.ConnectionEventHandler) (*RedisHub, error) {
	cfg := msgConfig.Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		logger.L.Error("Failed to connect to Redis", zap.String("addr", cfg.Addr), zap.Error(err))
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ctx, cancelFunc := context.WithCancel(context.Background())
	return &RedisHub{
		Hub:        NewHub(wsConfig, eventHandler),
		rdb:        rdb,
		channel:    cfg.Channel,
		instanceID: resolveInstanceID(msgConfig.InstanceID),
		ctx:        ctx,
		cancelFunc: cancelFunc,
	}, nil
}

func (h *RedisHub) Start() {
	h.Hub.Start()
	go h.subscribe()
}

func (h *RedisHub) Close() error {
	h.cancelFunc()
	h.Hub.Close()
	return h.rdb.Close()
}

func (h *RedisHub) SendToUser(userID uint, event string, payload interface{}) bool {
	return h.sendOrRelay(userID, event, payload, h.instanceID, h.publish)
}

func (h *RedisHub) publish(data []byte) error {
	ctx, cancel := context.WithTimeout(h.ctx, 2*time.Second)
	defer cancel()
	return h.rdb.Publish(ctx, h.channel, data).Err()
}

func (h *RedisHub) subscribe() {
	pubsub := h.rdb.Subscribe(h.ctx, h.channel)
	defer pubsub.Close()

	logger.L.Info("Subscribed to redis channel", zap.String("channel", h.channel))
	ch := pubsub.Channel()
	for {
		select {
		case <-h.ctx.Done():
			logger.L.Info("Stopping redis subscriber")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.deliverRelayed([]byte(msg.Payload), h.instanceID)
		}
	}
}
