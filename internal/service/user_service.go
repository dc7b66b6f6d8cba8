// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"civic-relay-go/internal/model"
	"civic-relay-go/internal/repository"
	"civic-relay-go/pkg/database"
	"civic-relay-go/pkg/hash"
	"civic-relay-go/pkg/log"
	"civic-relay-go/pkg/token"

	"gorm.io/gorm"
)

// PreferencesUpdate 描述一次偏好修改。指针字段为 nil 表示不修改该项。
type PreferencesUpdate struct {
	Topics       *[]string `json:"topics"`
	OtherTopics  *string   `json:"otherTopics"`
	ReadingLevel *int      `json:"readingLevel"`
	Locations    *string   `json:"locations"` // 分号分隔的 "City, State" 列表
}

// UserService 接口定义了所有与用户相关的业务操作。
type UserService interface {
	Register(username, password string) (*model.User, error)
	Login(username, password string) (accessToken, refreshToken string, err error)
	GetProfile(username string) (*model.User, error)
	Logout(tokenString string) error
	RefreshToken(refreshTokenString string) (newAccessToken, newRefreshToken string, err error)
	// UpdatePreferences 更新偏好并结束用户当前的聊天会话：
	// 偏好在会话内不可变，修改生效需要新会话。
	UpdatePreferences(ctx context.Context, username string, update PreferencesUpdate) (*model.User, error)
}

// userService 是 UserService 接口的实现。
type userService struct {
	userRepo    repository.UserRepository
	jwtManager  *token.JWTManager
	chatService ChatService
	feedCache   repository.FeedCacheRepository
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(userRepo repository.UserRepository, jwtManager *token.JWTManager, chatService ChatService, feedCache repository.FeedCacheRepository) UserService {
	return &userService{
		userRepo:    userRepo,
		jwtManager:  jwtManager,
		chatService: chatService,
		feedCache:   feedCache,
	}
}

// Register 处理用户注册的业务逻辑。
func (s *userService) Register(username, password string) (*model.User, error) {
	// 1. 检查用户名是否已存在
	_, err := s.userRepo.FindByUsername(username)
	if err == nil {
		return nil, errors.New("用户名已存在")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 2. 对密码进行哈希处理
	hashedPassword, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}

	// 3. 创建新用户，尚未声明任何议题（此时信息流为空）
	newUser := &model.User{
		Username: username,
		Password: hashedPassword,
		Role:     "USER",
	}
	if err := s.userRepo.Create(newUser); err != nil {
		return nil, err
	}

	return newUser, nil
}

// Login 处理用户登录的业务逻辑。
func (s *userService) Login(username, password string) (accessToken, refreshToken string, err error) {
	// 1. 查找用户
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", errors.New("invalid credentials")
		}
		return "", "", err
	}

	// 2. 验证密码
	if !hash.CheckPasswordHash(password, user.Password) {
		return "", "", errors.New("invalid credentials")
	}

	// 3. 生成 access token 和 refresh token
	accessToken, err = s.jwtManager.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", "", err
	}
	refreshToken, err = s.jwtManager.GenerateRefreshToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

// GetProfile 根据用户名获取用户详细信息。
func (s *userService) GetProfile(username string) (*model.User, error) {
	return s.userRepo.FindByUsername(username)
}

// Logout 处理用户登出逻辑，将 token 加入 Redis 黑名单。
func (s *userService) Logout(tokenString string) error {
	claims, err := s.jwtManager.VerifyToken(tokenString)
	if err != nil {
		return err
	}
	// token 的剩余有效期作为黑名单 key 的过期时间
	expiration := time.Until(claims.ExpiresAt.Time)
	return database.RDB.Set(context.Background(), "blacklist:"+tokenString, "true", expiration).Err()
}

// RefreshToken 验证 refresh token 并签发新的 access token 和 refresh token。
func (s *userService) RefreshToken(refreshTokenString string) (newAccessToken, newRefreshToken string, err error) {
	claims, err := s.jwtManager.VerifyToken(refreshTokenString)
	if err != nil {
		return "", "", errors.New("invalid refresh token")
	}

	user, err := s.userRepo.FindByUsername(claims.Username)
	if err != nil {
		return "", "", errors.New("user not found")
	}

	newAccessToken, err = s.jwtManager.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", "", err
	}
	newRefreshToken, err = s.jwtManager.GenerateRefreshToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", "", err
	}

	return newAccessToken, newRefreshToken, nil
}

// UpdatePreferences 更新用户的阅读偏好。
func (s *userService) UpdatePreferences(ctx context.Context, username string, update PreferencesUpdate) (*model.User, error) {
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		return nil, err
	}

	if update.Topics != nil {
		kept := make([]string, 0, len(*update.Topics))
		for _, t := range *update.Topics {
			t = strings.TrimSpace(t)
			if t != "" {
				kept = append(kept, t)
			}
		}
		user.Topics = strings.Join(kept, ",")
	}
	if update.OtherTopics != nil {
		user.OtherTopics = strings.TrimSpace(*update.OtherTopics)
	}
	if update.ReadingLevel != nil {
		if !model.ValidReadingLevel(*update.ReadingLevel) {
			return nil, fmt.Errorf("阅读级别必须在 1 到 3 之间, got %d", *update.ReadingLevel)
		}
		user.ReadingLevel = *update.ReadingLevel
	}
	if update.Locations != nil {
		user.Locations = strings.TrimSpace(*update.Locations)
	}

	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}

	// 偏好变了：旧的信息流缓存作废，当前聊天会话结束
	if s.feedCache != nil {
		if err := s.feedCache.Invalidate(ctx, user.ID); err != nil {
			log.Warnf("清除信息流缓存失败: %v", err)
		}
	}
	if s.chatService != nil {
		s.chatService.EndSession(user.ID)
	}

	return user, nil
}
