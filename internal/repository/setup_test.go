package repository

import (
	"go-admin-chat/internal/model"
	"go-admin-chat/pkg/config"
	"go-admin-chat/pkg/db"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// 优先使用 config.test.yaml 中的 MySQL, 连接不上时退回内存 SQLite
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	if err := config.InitTest(); err != nil {
		t.Logf("test config unavailable, using sqlite: %v", err)
		return openSQLite(t)
	}
	if err := db.InitDB(); err != nil {
		t.Logf("test database unavailable, using sqlite: %v", err)
		return openSQLite(t)
	}

	cleanupTables(t, db.DB)
	return db.DB
}

// 内存库只存在于单个连接中, 每个测试一个新库
func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Open(sqlite.Open(":memory:"), config.DatabaseConfig{MaxOpenConns: 1, MaxIdleConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return conn
}

// 帮助函数：清空测试用到的表
func cleanupTables(t *testing.T, conn *gorm.DB) {
	session := conn.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped()
	for _, table := range []interface{}{&model.MessageReaction{}, &model.Message{}, &model.User{}} {
		if err := session.Delete(table).Error; err != nil {
			t.Logf("Failed to cleanup table: %v", err)
		}
	}
}
