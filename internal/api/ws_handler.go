package api

import (
	"net/http"

	"go-admin-chat/internal/interfaces"
	internalws "go-admin-chat/internal/websocket"
	"go-admin-chat/pkg/config"
	"go-admin-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WSHandler struct {
	registry   interfaces.PresenceRegistry
	msgHandler interfaces.MessageHandler
	upgrader   websocket.Upgrader
	opts       internalws.ClientOptions
}

func NewWSHandler(registry interfaces.PresenceRegistry, msgHandler interfaces.MessageHandler, wsConfig config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		registry:   registry,
		msgHandler: msgHandler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(wsConfig.AllowedOrigins),
		},
		opts: internalws.OptionsFromConfig(wsConfig),
	}
}

// 未配置来源时允许所有来源
func checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func (h *WSHandler) HandleConnection(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		logger.L.Error("userID not found in context for WebSocket")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.L.Warn("Failed to upgrade WebSocket connection", zap.Uint("userID", userID), zap.Error(err))
		return
	}
	logger.L.Info("WebSocket connection upgraded", zap.Uint("userID", userID))

	client := internalws.NewClient(userID, conn, h.msgHandler, h.registry, h.opts)
	h.registry.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
