package websocket

import (
	"errors"
	"go-admin-chat/internal/interfaces"
	"go-admin-chat/pkg/config"
	"go-admin-chat/pkg/logger"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrClientClosed   = errors.New("client connection closed")
	ErrSendBufferFull = errors.New("client send buffer full")
)

type ClientOptions struct {
	SendBufferSize int
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
}

// 从配置读取连接参数, 非法值使用默认值
func OptionsFromConfig(cfg config.WebSocketConfig) ClientOptions {
	opts := ClientOptions{
		SendBufferSize: 256,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 8192,
	}
	if cfg.SendBufferSize > 0 {
		opts.SendBufferSize = cfg.SendBufferSize
	}
	if cfg.WriteWaitSeconds > 0 {
		opts.WriteWait = time.Duration(cfg.WriteWaitSeconds) * time.Second
	}
	if cfg.PongWaitSeconds > 0 {
		opts.PongWait = time.Duration(cfg.PongWaitSeconds) * time.Second
	}
	if cfg.MaxMessageSize > 0 {
		opts.MaxMessageSize = int64(cfg.MaxMessageSize)
	}
	return opts
}

// 发送ping的周期
func (o ClientOptions) pingPeriod() time.Duration {
	return (o.PongWait * 9) / 10
}

type Client struct {
	userID   uint
	conn     *websocket.Conn
	send     chan []byte
	handler  interfaces.MessageHandler
	registry interfaces.PresenceRegistry
	opts     ClientOptions

	// 保护 send 通道的关闭, QueueBytes 和 Close 可能并发调用
	mu     sync.RWMutex
	closed bool
}

func NewClient(userID uint, conn *websocket.Conn, handler interfaces.MessageHandler, registry interfaces.PresenceRegistry, opts ClientOptions) *Client {
	return &Client{
		userID:   userID,
		conn:     conn,
		send:     make(chan []byte, opts.SendBufferSize),
		handler:  handler,
		registry: registry,
		opts:     opts,
	}
}

func (c *Client) GetUserID() uint {
	return c.userID
}

// 非阻塞入队
func (c *Client) QueueBytes(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// 可以重复调用, WritePump 收到关闭后发送 close 帧并断开连接
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.registry.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		return nil
	})

	for {
		messageType, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.L.Warn("Unexpected close error", zap.Uint("userID", c.userID), zap.Error(err))
			} else {
				logger.L.Debug("Read loop finished", zap.Uint("userID", c.userID), zap.Error(err))
			}
			break
		}

		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		if c.handler != nil {
			c.handler.HandleMessage(messageBytes, c.userID)
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case messageBytes, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if !ok {
				// send 通道已关闭
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, messageBytes); err != nil {
				logger.L.Warn("Failed to write message", zap.Uint("userID", c.userID), zap.Error(err))
				return
			}

			// 顺带写出已经排队的消息
			n := len(c.send)
			for i := 0; i < n; i++ {
				batchBytes, ok := <-c.send
				if !ok {
					c.conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.conn.WriteMessage(websocket.TextMessage, batchBytes); err != nil {
					logger.L.Warn("Failed to write batched message", zap.Uint("userID", c.userID), zap.Error(err))
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.L.Debug("Failed to send ping", zap.Uint("userID", c.userID), zap.Error(err))
				return
			}
		}
	}
}
