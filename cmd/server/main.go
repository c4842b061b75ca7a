package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-admin-chat/internal/api"
	"go-admin-chat/internal/repository"
	"go-admin-chat/internal/service"
	"go-admin-chat/internal/websocket"
	"go-admin-chat/pkg/config"
	"go-admin-chat/pkg/db"
	"go-admin-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// 初始化配置
	if err := config.Init(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := &config.GlobalConfig

	if err := logger.Init(cfg.Log); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// 初始化数据库连接
	if err := db.InitDB(); err != nil {
		logger.L.Fatal("Failed to initialize database", zap.Error(err))
	}

	messageRepo := repository.NewMessageRepository(db.DB)
	userRepo := repository.NewUserRepository(db.DB)

	authService := service.NewAuthService(userRepo)
	seedCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := authService.SeedAdmin(seedCtx, cfg.Auth.SeedAdmin); err != nil {
		logger.L.Fatal("Failed to seed admin account", zap.Error(err))
	}
	cancel()

	fileService, err := service.NewFileService(cfg.File)
	if err != nil {
		logger.L.Fatal("Failed to initialize file storage", zap.Error(err))
	}

	// 服务同时处理 WebSocket 上行帧和连接事件, 推送通道创建后再注入
	messageService := service.NewMessageService(messageRepo, userRepo, nil)
	hub, err := websocket.CreateHub(cfg, messageService)
	if err != nil {
		logger.L.Fatal("Failed to create hub", zap.Error(err))
	}
	messageService.SetNotifier(hub)
	websocket.StartHub(hub)

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := api.SetupRouter(api.Handlers{
		Auth:    api.NewAuthHandler(authService),
		Message: api.NewMessageHandler(messageService, fileService),
		WS:      api.NewWSHandler(hub, messageService, cfg.WebSocket),
		Users:   userRepo,
	})

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.L.Info("Server starting", zap.String("addr", cfg.Server.Addr), zap.String("provider", cfg.Messaging.Provider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.L.Info("Shutting down server")

	ctx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctx); err != nil {
		logger.L.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := hub.Close(); err != nil {
		logger.L.Error("Failed to close hub", zap.Error(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		sqlDB.Close()
	}
}
