package api

import (
	"go-admin-chat/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Auth    *AuthHandler
	Message *MessageHandler
	WS      *WSHandler
	Users   middleware.UserLookup
}

// 注册全部路由
func SetupRouter(h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.GinZapLogger(), middleware.Metrics())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 公开路由
	r.POST("/api/auth/register", h.Auth.Register)
	r.POST("/api/auth/login", h.Auth.Login)

	auth := middleware.AuthMiddleware(h.Users)

	// 受保护的路由
	protected := r.Group("/api", auth)
	{
		protected.GET("/users/me", h.Auth.Me)

		messages := protected.Group("/messages")
		messages.POST("", h.Message.SendMessage)
		messages.GET("/list", h.Message.ListConversations)
		messages.GET("/conversation/:userId", h.Message.GetConversation)
		messages.PUT("/:id", h.Message.EditMessage)
		messages.DELETE("/:id", h.Message.DeleteMessage)
		messages.PUT("/:id/read", h.Message.MarkAsRead)
		messages.POST("/:id/reactions", h.Message.React)
		messages.GET("/:id/attachments/:name", h.Message.DownloadAttachment)
	}

	if h.WS != nil {
		r.GET("/ws", auth, h.WS.HandleConnection)
	}

	return r
}
