package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"backend-pm/config"
	"backend-pm/internal/dto"
	"backend-pm/internal/model"
	"backend-pm/internal/repository"
	"backend-pm/pkg/jwt"
	"backend-pm/pkg/redis"
)

// ── 认证模块业务错误 ──

var (
	// ErrInvalidCredentials 统一的凭证错误：不区分"用户不存在"与"密码错误"，
	// 避免泄露用户名是否被注册
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrAccountLocked      = errors.New("账户已锁定，请稍后再试")
	ErrAccountInactive    = errors.New("账户已停用")
	ErrInvalidToken       = errors.New("无效的 Token")
)

// AuthService 认证业务接口
type AuthService interface {
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	// Logout 将 Token 的 JWT ID 加入黑名单，剩余有效期内拒绝使用
	Logout(ctx context.Context, accessToken string) error
	// RefreshToken 用 Refresh Token 换取新的 Token 对，旧 Refresh Token 作废
	RefreshToken(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenResponse, error)
}

type authService struct {
	cfg    *config.Config
	repo   *repository.Repository
	jwtMgr *jwt.Manager
	cache  *redis.Client
	logger *zap.Logger
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(cfg *config.Config, repo *repository.Repository, jwtMgr *jwt.Manager, cache *redis.Client, logger *zap.Logger) AuthService {
	return &authService{cfg: cfg, repo: repo, jwtMgr: jwtMgr, cache: cache, logger: logger}
}

// ────────────────────── Login ──────────────────────

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	user, err := s.repo.User.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 锁定检查先于密码校验，锁定期间不消耗失败计数
	if user.IsLocked() {
		return nil, ErrAccountLocked
	}
	if user.Status == model.UserStatusInactive {
		return nil, ErrAccountInactive
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		user.RecordLoginFailureWith(s.cfg.Auth.MaxLoginFailures, s.cfg.Auth.LockoutDuration)
		if err := s.repo.User.Update(ctx, user); err != nil {
			s.logger.Error("记录登录失败失败", zap.String("user_id", user.UserID), zap.Error(err))
		}
		if user.IsLocked() {
			s.logger.Warn("账户因连续失败被锁定",
				zap.String("user_id", user.UserID),
				zap.Int("failed_logins", user.FailedLogins))
		}
		return nil, ErrInvalidCredentials
	}

	user.RecordLoginSuccess()
	if err := s.repo.User.Update(ctx, user); err != nil {
		s.logger.Error("记录登录成功失败", zap.String("user_id", user.UserID), zap.Error(err))
	}

	resp, err := s.issueTokens(user.UserID, user.Username)
	if err != nil {
		return nil, err
	}
	resp.User = *toUserResponse(user)

	s.logger.Info("用户登录", zap.String("user_id", user.UserID), zap.String("username", user.Username))
	return resp, nil
}

// ────────────────────── Logout ──────────────────────

func (s *authService) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.jwtMgr.ParseToken(accessToken)
	if err != nil {
		// 已过期或无效的 Token 无需拉黑
		return nil
	}
	if s.cache == nil {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if err := s.cache.BlacklistToken(ctx, claims.ID, ttl); err != nil {
		s.logger.Error("Token 拉黑失败", zap.String("jti", claims.ID), zap.Error(err))
		return err
	}
	s.logger.Info("用户登出", zap.String("user_id", claims.UserID))
	return nil
}

// ────────────────────── RefreshToken ──────────────────────

func (s *authService) RefreshToken(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenResponse, error) {
	claims, err := s.jwtMgr.ParseToken(req.RefreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != "refresh" {
		return nil, ErrInvalidToken
	}

	if s.cache != nil {
		blacklisted, err := s.cache.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			s.logger.Error("查询 Token 黑名单失败", zap.Error(err))
			return nil, err
		}
		if blacklisted {
			return nil, ErrInvalidToken
		}
	}

	user, err := s.repo.User.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if user.IsLocked() {
		return nil, ErrAccountLocked
	}
	if user.Status == model.UserStatusInactive {
		return nil, ErrAccountInactive
	}

	// 旧 Refresh Token 作废，防止重放
	if s.cache != nil {
		if err := s.cache.BlacklistToken(ctx, claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
			s.logger.Warn("旧 Refresh Token 拉黑失败", zap.Error(err))
		}
	}

	resp, err := s.issueTokens(user.UserID, user.Username)
	if err != nil {
		return nil, err
	}
	resp.User = *toUserResponse(user)
	return resp, nil
}

// ── 内部辅助方法 ──

func (s *authService) issueTokens(userID, username string) (*dto.TokenResponse, error) {
	accessToken, err := s.jwtMgr.GenerateAccessToken(userID, username)
	if err != nil {
		s.logger.Error("生成 Access Token 失败", zap.Error(err))
		return nil, err
	}
	refreshToken, err := s.jwtMgr.GenerateRefreshToken(userID, username)
	if err != nil {
		s.logger.Error("生成 Refresh Token 失败", zap.Error(err))
		return nil, err
	}
	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.cfg.Auth.AccessTokenTTL.Seconds()),
	}, nil
}
