package websocket

import (
	"errors"
	"go-admin-chat/internal/interfaces"
	"go-admin-chat/pkg/config"
	"go-admin-chat/pkg/logger"
	"go-admin-chat/pkg/metrics"
	"sync"
	"time"

	"go.uber.org/zap"
)

type delivery struct {
	client interfaces.Client
	event  string
	data   []byte
}

// Hub 是进程内的在线用户表, 每个用户只保留最后一次连接
type Hub struct {
	clients   map[uint]interfaces.Client
	clientsMu sync.RWMutex

	deliveries chan delivery
	done       chan struct{}
	closeOnce  sync.Once

	eventHandler interfaces.ConnectionEventHandler
	handlerMu    sync.RWMutex

	// 正在重试的连接及其积压的帧, 按到达顺序发送
	pending   map[interfaces.Client][]delivery
	pendingMu sync.Mutex

	retryCount    int
	retryInterval time.Duration
}

func NewHub(wsConfig config.WebSocketConfig, eventHandler interfaces.ConnectionEventHandler) *Hub {
	retryCount := wsConfig.MessageRetryCount
	if retryCount <= 0 {
		retryCount = 3
		logger.L.Warn("Invalid retryCount, using default", zap.Int("default", retryCount))
	}

	retryInterval := time.Duration(wsConfig.MessageRetryIntervalMs) * time.Millisecond
	if retryInterval <= 0 {
		retryInterval = 100 * time.Millisecond
		logger.L.Warn("Invalid retryInterval, using default", zap.Duration("default", retryInterval))
	}

	bufferSize := wsConfig.DeliveryBufferSize
	if bufferSize <= 0 {
		bufferSize = 256
		logger.L.Warn("Invalid DeliveryBufferSize, using default", zap.Int("default", bufferSize))
	}

	return &Hub{
		clients:       make(map[uint]interfaces.Client),
		deliveries:    make(chan delivery, bufferSize),
		done:          make(chan struct{}),
		eventHandler:  eventHandler,
		pending:       make(map[interfaces.Client][]delivery),
		retryCount:    retryCount,
		retryInterval: retryInterval,
	}
}

// 新连接替换同一用户的旧连接, 旧连接被关闭
func (h *Hub) Register(client interfaces.Client) {
	userID := client.GetUserID()

	h.clientsMu.Lock()
	previous, existed := h.clients[userID]
	h.clients[userID] = client
	h.clientsMu.Unlock()

	if !existed {
		metrics.WebSocketConnections.Inc()
	} else if previous != client {
		previous.Close()
		logger.L.Info("Client replaced by newer connection", zap.Uint("userID", userID))
	}
	logger.L.Info("Client registered", zap.Uint("userID", userID))

	if handler := h.handler(); handler != nil {
		go handler.HandleUserConnected(userID)
	}
}

// 只有当前登记的连接才会被移除, 旧连接的迟到注销不影响新连接
func (h *Hub) Unregister(client interfaces.Client) {
	userID := client.GetUserID()

	h.clientsMu.Lock()
	current, ok := h.clients[userID]
	removed := ok && current == client
	if removed {
		delete(h.clients, userID)
	}
	h.clientsMu.Unlock()

	client.Close()
	if !removed {
		return
	}
	metrics.WebSocketConnections.Dec()
	logger.L.Info("Client unregistered", zap.Uint("userID", userID))

	if handler := h.handler(); handler != nil {
		go handler.HandleUserDisconnected(userID)
	}
}

func (h *Hub) IsClientConnected(userID uint) bool {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

func (h *Hub) SetEventHandler(handler interfaces.ConnectionEventHandler) {
	h.handlerMu.Lock()
	defer h.handlerMu.Unlock()
	h.eventHandler = handler
}

func (h *Hub) handler() interfaces.ConnectionEventHandler {
	h.handlerMu.RLock()
	defer h.handlerMu.RUnlock()
	return h.eventHandler
}

// 编码帧并放入投递队列, 不等待写出; 用户不在线或队列已满时返回 false
func (h *Hub) SendToUser(userID uint, event string, payload interface{}) bool {
	data, err := interfaces.EncodeFrame(event, payload)
	if err != nil {
		logger.L.Error("Failed to encode frame", zap.String("event", event), zap.Error(err))
		metrics.DeliveryPushes.WithLabelValues(event, "dropped").Inc()
		return false
	}
	return h.deliverLocal(userID, event, data)
}

func (h *Hub) deliverLocal(userID uint, event string, data []byte) bool {
	h.clientsMu.RLock()
	client, ok := h.clients[userID]
	h.clientsMu.RUnlock()

	if !ok {
		metrics.DeliveryPushes.WithLabelValues(event, "offline").Inc()
		return false
	}

	select {
	case h.deliveries <- delivery{client: client, event: event, data: data}:
		return true
	default:
		logger.L.Warn("Hub delivery queue full, dropping frame",
			zap.Uint("userID", userID),
			zap.String("event", event))
		metrics.DeliveryPushes.WithLabelValues(event, "dropped").Inc()
		return false
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return
		case d := <-h.deliveries:
			h.trySend(d)
		}
	}
}

func (h *Hub) Start() {
	go h.Run()
}

// 停止投递循环并断开所有连接
func (h *Hub) Close() error {
	h.closeOnce.Do(func() {
		close(h.done)

		h.clientsMu.Lock()
		clients := make([]interfaces.Client, 0, len(h.clients))
		for _, client := range h.clients {
			clients = append(clients, client)
		}
		h.clients = make(map[uint]interfaces.Client)
		h.clientsMu.Unlock()

		for _, client := range clients {
			client.Close()
		}
		metrics.WebSocketConnections.Sub(float64(len(clients)))
	})
	return nil
}

// 尝试一次写入, 缓冲区满时交给该连接自己的重试协程, 不阻塞其他用户的投递
func (h *Hub) trySend(d delivery) {
	h.pendingMu.Lock()
	if backlog, retrying := h.pending[d.client]; retrying {
		h.pending[d.client] = append(backlog, d)
		h.pendingMu.Unlock()
		return
	}
	err := d.client.QueueBytes(d.data)
	if err == nil {
		h.pendingMu.Unlock()
		metrics.DeliveryPushes.WithLabelValues(d.event, "delivered").Inc()
		return
	}
	if errors.Is(err, ErrClientClosed) {
		h.pendingMu.Unlock()
		metrics.DeliveryPushes.WithLabelValues(d.event, "dropped").Inc()
		return
	}
	h.pending[d.client] = []delivery{d}
	h.pendingMu.Unlock()

	go h.retryClient(d.client)
}

func (h *Hub) retryClient(client interfaces.Client) {
	userID := client.GetUserID()
	for attempt := 1; attempt <= h.retryCount; attempt++ {
		logger.L.Warn("Client send buffer full, retry attempt",
			zap.Uint("userID", userID),
			zap.Int("attempt", attempt))

		select {
		case <-time.After(h.retryInterval):
		case <-h.done:
			h.dropPending(client)
			return
		}

		drained, progressed, err := h.flushPending(client)
		if drained {
			return
		}
		if errors.Is(err, ErrClientClosed) {
			break
		}
		if progressed {
			attempt = 0
		}
	}

	h.dropPending(client)
	if !h.isCurrent(client) {
		return
	}
	// 所有重试失败 关闭连接
	logger.L.Error("Client send buffer still full after retries, closing connection",
		zap.Uint("userID", userID),
		zap.Int("attempts", h.retryCount))
	h.Unregister(client)
}

// 按顺序写出积压的帧, 直到写完或再次失败
func (h *Hub) flushPending(client interfaces.Client) (drained, progressed bool, err error) {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()

	backlog := h.pending[client]
	for len(backlog) > 0 {
		if err = client.QueueBytes(backlog[0].data); err != nil {
			h.pending[client] = backlog
			return false, progressed, err
		}
		metrics.DeliveryPushes.WithLabelValues(backlog[0].event, "delivered").Inc()
		backlog = backlog[1:]
		progressed = true
	}
	delete(h.pending, client)
	return true, progressed, nil
}

func (h *Hub) dropPending(client interfaces.Client) {
	h.pendingMu.Lock()
	backlog := h.pending[client]
	delete(h.pending, client)
	h.pendingMu.Unlock()

	for _, d := range backlog {
		metrics.DeliveryPushes.WithLabelValues(d.event, "dropped").Inc()
	}
}

func (h *Hub) isCurrent(client interfaces.Client) bool {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return h.clients[client.GetUserID()] == client
}
