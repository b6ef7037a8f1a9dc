package service

import (
	"go.uber.org/zap"

	"backend-pm/config"
	"backend-pm/internal/repository"
	"backend-pm/pkg/jwt"
	"backend-pm/pkg/redis"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth       AuthService
	User       UserService
	Role       RoleService
	Permission PermissionService
	Menu       MenuService
	Department DepartmentService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	cache *redis.Client,
	logger *zap.Logger,
) *Service {
	permission := NewPermissionService(repo, cache, logger)
	return &Service{
		Auth:       NewAuthService(cfg, repo, jwtMgr, cache, logger),
		User:       NewUserService(repo, cache, logger),
		Role:       NewRoleService(repo, cache, logger),
		Permission: permission,
		Menu:       NewMenuService(repo, permission, logger),
		Department: NewDepartmentService(repo, logger),
	}
}
