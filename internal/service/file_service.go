package service

import (
	"crypto/sha256"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go-admin-chat/internal/model"
	"go-admin-chat/pkg/config"
	"go-admin-chat/pkg/logger"

	"go.uber.org/zap"
)

// FileService 保存消息附件, 文件在发送时写入, 之后只读
type FileService struct {
	basePath    string
	maxFileSize int64
	maxFiles    int
	allowedExts map[string]struct{}
}

// NewFileService 创建新的文件服务, cfg 为空时使用默认值
func NewFileService(cfg *config.FileConfig) (*FileService, error) {
	s := &FileService{basePath: "uploads"}
	if cfg != nil {
		if cfg.StoragePath != "" {
			s.basePath = cfg.StoragePath
		}
		s.maxFileSize = cfg.MaxFileSize
		s.maxFiles = cfg.MaxFiles
		if len(cfg.AllowedExts) > 0 {
			s.allowedExts = make(map[string]struct{}, len(cfg.AllowedExts))
			for _, ext := range cfg.AllowedExts {
				s.allowedExts[strings.ToLower(ext)] = struct{}{}
			}
		}
	}

	// 确保目录存在
	if err := os.MkdirAll(s.basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return s, nil
}

// StoreAttachments 校验并保存一次发送的全部附件, 任何一个失败时删除已写入的文件
func (s *FileService) StoreAttachments(userID uint, files []*multipart.FileHeader) ([]model.Attachment, error) {
	if s.maxFiles > 0 && len(files) > s.maxFiles {
		return nil, invalid("attachments", fmt.Sprintf("at most %d files allowed", s.maxFiles))
	}
	for _, file := range files {
		if err := s.validate(file); err != nil {
			return nil, err
		}
	}

	attachments := make([]model.Attachment, 0, len(files))
	for _, file := range files {
		attachment, err := s.store(file, userID)
		if err != nil {
			s.RemoveAttachments(attachments)
			return nil, fmt.Errorf("%w: %v", ErrInternal, err)
		}
		attachments = append(attachments, *attachment)
	}
	return attachments, nil
}

func (s *FileService) validate(file *multipart.FileHeader) error {
	if s.maxFileSize > 0 && file.Size > s.maxFileSize {
		return invalid("attachments", fmt.Sprintf("%s exceeds the size limit", file.Filename))
	}
	if s.allowedExts != nil {
		if _, ok := s.allowedExts[strings.ToLower(filepath.Ext(file.Filename))]; !ok {
			return invalid("attachments", fmt.Sprintf("%s has an unsupported file type", file.Filename))
		}
	}
	return nil
}

func (s *FileService) store(file *multipart.FileHeader, userID uint) (*model.Attachment, error) {
	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	fileExt := filepath.Ext(file.Filename)
	timestamp := time.Now().UnixNano()

	// 使用原始文件名+时间戳+用户ID创建哈希值确保唯一性
	h := sha256.New()
	io.WriteString(h, fmt.Sprintf("%s%d%d", file.Filename, timestamp, userID))
	hash := fmt.Sprintf("%x", h.Sum(nil))[:12]

	userDir := fmt.Sprintf("user_%d", userID)
	if err := os.MkdirAll(filepath.Join(s.basePath, userDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create user storage directory: %w", err)
	}

	// 净化原始文件名
	safeName := filepath.Base(file.Filename)
	safeName = strings.ReplaceAll(safeName, " ", "_")
	storedName := fmt.Sprintf("%s_%s%s", strings.TrimSuffix(safeName, fileExt), hash, fileExt)

	relPath := filepath.Join(userDir, storedName)
	dst, err := os.Create(filepath.Join(s.basePath, relPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	size, err := io.Copy(dst, src)
	if err != nil {
		os.Remove(filepath.Join(s.basePath, relPath))
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	attachment := &model.Attachment{
		StoredName:   storedName,
		OriginalName: file.Filename,
		MimeType:     determineMimeType(fileExt),
		SizeBytes:    size,
		Path:         filepath.ToSlash(relPath),
	}

	logger.L.Info("Attachment stored",
		zap.String("storedName", attachment.StoredName),
		zap.String("originalName", attachment.OriginalName),
		zap.Int64("size", attachment.SizeBytes),
		zap.Uint("userID", userID))

	return attachment, nil
}

// 消息保存失败时清理已经写入的附件
func (s *FileService) RemoveAttachments(attachments []model.Attachment) {
	for _, a := range attachments {
		if err := os.Remove(s.AbsolutePath(a)); err != nil && !os.IsNotExist(err) {
			logger.L.Warn("Failed to remove attachment", zap.String("path", a.Path), zap.Error(err))
		}
	}
}

// AbsolutePath 返回附件在磁盘上的位置
func (s *FileService) AbsolutePath(a model.Attachment) string {
	return filepath.Join(s.basePath, filepath.FromSlash(a.Path))
}

// 确定文件的MIME类型
func determineMimeType(fileExt string) string {
	mimeType := "application/octet-stream"
	switch strings.ToLower(fileExt) {
	case ".jpg", ".jpeg":
		mimeType = "image/jpeg"
	case ".png":
		mimeType = "image/png"
	case ".gif":
		mimeType = "image/gif"
	case ".pdf":
		mimeType = "application/pdf"
	case ".doc", ".docx":
		mimeType = "application/msword"
	case ".xls", ".xlsx":
		mimeType = "application/vnd.ms-excel"
	case ".txt":
		mimeType = "text/plain"
	case ".mp3":
		mimeType = "audio/mpeg"
	case ".mp4":
		mimeType = "video/mp4"
	}
	return mimeType
}
