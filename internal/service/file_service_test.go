package service

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"testing"

	"go-admin-chat/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 通过真实的 multipart 请求得到 FileHeader
func multipartFiles(t *testing.T, files map[string]string) []*multipart.FileHeader {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		part, err := writer.CreateFormFile("attachments", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["attachments"]
}

func TestFileService_StoreAttachments(t *testing.T) {
	svc, err := NewFileService(&config.FileConfig{
		StoragePath: t.TempDir(),
		MaxFileSize: 64,
		MaxFiles:    2,
		AllowedExts: []string{".txt", ".PDF"},
	})
	require.NoError(t, err)

	t.Run("Stores files", func(t *testing.T) {
		attachments, err := svc.StoreAttachments(7, multipartFiles(t, map[string]string{"my notes.txt": "hello"}))
		require.NoError(t, err)
		require.Len(t, attachments, 1)

		a := attachments[0]
		assert.Equal(t, "my notes.txt", a.OriginalName)
		assert.Equal(t, "text/plain", a.MimeType)
		assert.Equal(t, int64(5), a.SizeBytes)
		assert.Contains(t, a.Path, "user_7/")
		assert.NotContains(t, a.StoredName, " ")

		content, err := os.ReadFile(svc.AbsolutePath(a))
		require.NoError(t, err)
		assert.Equal(t, "hello", string(content))

		svc.RemoveAttachments(attachments)
		_, err = os.Stat(svc.AbsolutePath(a))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("Extension check is case insensitive", func(t *testing.T) {
		_, err := svc.StoreAttachments(7, multipartFiles(t, map[string]string{"scan.pdf": "%PDF"}))
		assert.NoError(t, err)
	})

	t.Run("Rejects disallowed extension", func(t *testing.T) {
		_, err := svc.StoreAttachments(7, multipartFiles(t, map[string]string{"run.exe": "MZ"}))
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("Rejects oversized file", func(t *testing.T) {
		big := string(bytes.Repeat([]byte("a"), 65))
		_, err := svc.StoreAttachments(7, multipartFiles(t, map[string]string{"big.txt": big}))
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("Rejects too many files", func(t *testing.T) {
		_, err := svc.StoreAttachments(7, multipartFiles(t, map[string]string{"a.txt": "a", "b.txt": "b", "c.txt": "c"}))
		assert.ErrorIs(t, err, ErrValidation)
	})
}
