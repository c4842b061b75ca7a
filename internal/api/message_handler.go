package api

import (
	"errors"
	"go-admin-chat/internal/service"
	"go-admin-chat/pkg/logger"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 处理私信相关的HTTP请求
type MessageHandler struct {
	messageService *service.MessageService
	fileService    *service.FileService
}

func NewMessageHandler(messageService *service.MessageService, fileService *service.FileService) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		fileService:    fileService,
	}
}

type editMessageRequest struct {
	Content string `json:"content"`
}

type reactRequest struct {
	Reaction *string `json:"reaction"`
}

// 发送消息, 支持 JSON 和带附件的 multipart 表单
func (h *MessageHandler) SendMessage(c *gin.Context) {
	senderID, ok := getUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req service.SendMessageRequest
	multipart := strings.HasPrefix(c.ContentType(), "multipart/form-data")
	var bindErr error
	if multipart {
		bindErr = c.ShouldBind(&req)
	} else {
		bindErr = c.ShouldBindJSON(&req)
	}
	if bindErr != nil {
		logger.L.Warn("Failed to bind SendMessage request", zap.Error(bindErr))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if multipart && h.fileService != nil {
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
			return
		}
		if files := form.File["attachments"]; len(files) > 0 {
			attachments, err := h.fileService.StoreAttachments(senderID, files)
			if err != nil {
				respondError(c, err)
				return
			}
			req.Attachments = attachments
		}
	}

	message, err := h.messageService.Send(c.Request.Context(), senderID, req)
	if err != nil {
		if len(req.Attachments) > 0 {
			h.fileService.RemoveAttachments(req.Attachments)
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, message)
}

// 获取与某个用户的会话
func (h *MessageHandler) GetConversation(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	otherID, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil || otherID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid userId parameter"})
		return
	}

	messages, err := h.messageService.GetConversation(c.Request.Context(), userID, uint(otherID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (h *MessageHandler) ListConversations(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	summaries, err := h.messageService.ListConversations(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

func (h *MessageHandler) EditMessage(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	message, err := h.messageService.Edit(c.Request.Context(), userID, c.Param("id"), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, message)
}

func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	if err := h.messageService.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *MessageHandler) MarkAsRead(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	if err := h.messageService.MarkAsRead(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// reaction 为 null 或缺省时移除自己的反应
func (h *MessageHandler) React(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req reactRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	reactions, err := h.messageService.React(c.Request.Context(), userID, c.Param("id"), req.Reaction)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reactions": reactions})
}

// DownloadAttachment 提供附件下载, 只有消息双方可以访问
func (h *MessageHandler) DownloadAttachment(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	attachment, err := h.messageService.GetAttachment(c.Request.Context(), userID, c.Param("id"), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}

	filePath := h.fileService.AbsolutePath(*attachment)
	if _, err := os.Stat(filePath); err != nil {
		logger.L.Warn("Attachment missing from storage", zap.String("path", filePath), zap.Error(err))
		respondError(c, service.ErrNotFound)
		return
	}

	c.Header("Content-Type", attachment.MimeType)
	c.FileAttachment(filePath, attachment.OriginalName)
}
