package api

import (
	"errors"
	"go-admin-chat/internal/middleware"
	"go-admin-chat/internal/service"
	"go-admin-chat/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 把服务层错误映射为HTTP状态码, 内部错误只记录日志
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrRecipientNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		logger.L.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.Error(err)
	}
	c.JSON(status, gin.H{"error": service.PublicMessage(err)})
}

// 认证中间件写入的用户ID
func getUserIDFromContext(c *gin.Context) (uint, bool) {
	value, exists := c.Get(middleware.ContextUserID)
	if !exists {
		return 0, false
	}
	userID, ok := value.(uint)
	return userID, ok && userID != 0
}
