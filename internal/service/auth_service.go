package service

import (
	"context"
	"errors"
	"go-admin-chat/internal/model"
	"go-admin-chat/pkg/config"
	"go-admin-chat/pkg/logger"
	"go-admin-chat/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUsernameTaken      = errors.New("username already exists")
	ErrEmailTaken         = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// 处理认证相关业务逻辑
type AuthService struct {
	userRepo UserStore
}

// 创建一个新的认证服务实例
func NewAuthService(userRepo UserStore) *AuthService {
	return &AuthService{
		userRepo: userRepo,
	}
}

// 用户注册请求
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=30"`
	Password string `json:"password" binding:"required,min=6"`
	Email    string `json:"email" binding:"required,email"`
}

// 用户登陆请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// 注册新用户, 注册的账号都是普通用户
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	return s.createUser(ctx, req, model.RoleUser)
}

func (s *AuthService) createUser(ctx context.Context, req RegisterRequest, role string) (*model.User, error) {
	// 检查用户名是否已存在
	existingUser, err := s.userRepo.FindByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if existingUser != nil {
		return nil, ErrUsernameTaken
	}

	// 检查邮箱是否已存在
	existingEmail, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existingEmail != nil {
		return nil, ErrEmailTaken
	}

	// 加密密码
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username: req.Username,
		Password: string(hashedPassword),
		Email:    req.Email,
		Role:     role,
		Avatar:   "default-avatar.png",
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// 用户登陆
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (string, *model.User, error) {
	// 查找用户
	user, err := s.userRepo.FindByUsername(ctx, req.Username)
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		return "", nil, ErrInvalidCredentials
	}

	// 验证密码
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	// 生成JWT令牌
	token, err := utils.GenerateToken(user.ID, user.Role)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// 确保配置中的管理员账号存在
func (s *AuthService) SeedAdmin(ctx context.Context, cfg config.SeedAdminConfig) error {
	if cfg.Username == "" {
		return nil
	}
	existing, err := s.userRepo.FindByUsername(ctx, cfg.Username)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.Role != model.RoleAdmin {
			logger.L.Warn("Seed admin username belongs to a non-admin account", zap.String("username", cfg.Username))
		}
		return nil
	}

	user, err := s.createUser(ctx, RegisterRequest{
		Username: cfg.Username,
		Password: cfg.Password,
		Email:    cfg.Email,
	}, model.RoleAdmin)
	if err != nil {
		return err
	}
	logger.L.Info("Seeded admin account", zap.Uint("userID", user.ID), zap.String("username", user.Username))
	return nil
}
