package logger

import (
	"fmt"
	"os"

	"go-admin-chat/pkg/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 全局日志记录器实例, Init 之前为 no-op, 测试中无需初始化
var L = zap.NewNop()

// Init 按 log 配置构建全局日志记录器
func Init(cfg config.LogConfig) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	L = l
	L.Info("Zap logger initialized",
		zap.String("level", ParseLevel(cfg.Level).String()),
		zap.Bool("productionMode", cfg.ProductionMode),
		zap.Strings("outputPaths", cfg.OutputPaths))
	return nil
}

// New 构建日志记录器但不替换全局实例
// production_mode 为 true 时输出 JSON, 否则输出彩色控制台格式
func New(cfg config.LogConfig) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.ProductionMode {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "time"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(ParseLevel(cfg.Level))
	if len(cfg.OutputPaths) > 0 {
		zc.OutputPaths = cfg.OutputPaths
	}

	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize zap logger: %w", err)
	}
	return l, nil
}

// 无法识别的级别退回 info
func ParseLevel(level string) zapcore.Level {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Invalid log level '%s', using default 'info'. Error: %v\n", level, err)
		return zapcore.InfoLevel
	}
	return zapLevel
}

func Sync() {
	_ = L.Sync()
}
