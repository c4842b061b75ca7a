package db

import (
	"fmt"
	"go-admin-chat/internal/model"
	"go-admin-chat/pkg/config"
	"go-admin-chat/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// 初始化数据库连接
func InitDB() error {
	cfg := config.GlobalConfig.Database
	if cfg.DSN == "" {
		return fmt.Errorf("database dsn is empty")
	}

	conn, err := Open(mysql.Open(cfg.DSN), cfg)
	if err != nil {
		return err
	}

	DB = conn
	logger.L.Info("Database connected and migrated successfully", zap.Int("maxOpenConns", cfg.MaxOpenConns))
	return nil
}

// Open 用给定的驱动建立连接, 设置连接池并迁移表结构
func Open(dialector gorm.Dialector, cfg config.DatabaseConfig) (*gorm.DB, error) {
	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	// 自动迁移模式
	if err := conn.AutoMigrate(&model.User{}, &model.Message{}, &model.MessageReaction{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return conn, nil
}
