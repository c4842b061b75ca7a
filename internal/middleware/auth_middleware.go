package middleware

import (
	"context"
	"go-admin-chat/internal/model"
	"go-admin-chat/pkg/logger"
	"go-admin-chat/pkg/utils"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	ContextUserID = "userID"
	ContextUser   = "user"
)

// 按ID查询用户, 不存在时返回 nil, nil
type UserLookup interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
}

// 验证JWT中间件, 浏览器的 WebSocket 握手无法带请求头, 所以也接受 token 查询参数
func AuthMiddleware(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := extractToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header is required"})
			return
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}

		// 解析token
		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		// 角色以数据库为准
		user, err := users.FindByID(c.Request.Context(), claims.UserID)
		if err != nil {
			logger.L.Error("Failed to load user for token", zap.Uint("userID", claims.UserID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}

		c.Set(ContextUserID, user.ID)
		c.Set(ContextUser, user)

		c.Next()
	}
}

// ok 为 false 表示没有提供任何凭证
func extractToken(c *gin.Context) (string, bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		// 通常Authorization格式为: "Bearer token"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", true
		}
		return strings.TrimSpace(parts[1]), true
	}
	if token := c.Query("token"); token != "" {
		return token, true
	}
	return "", false
}
