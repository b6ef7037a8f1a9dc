package handler

import (
	"backend-pm/internal/service"
)

// Handler 所有 HTTP 处理器的聚合入口
type Handler struct {
	Auth       *AuthHandler
	User       *UserHandler
	Role       *RoleHandler
	Permission *PermissionHandler
	Menu       *MenuHandler
	Department *DepartmentHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:       NewAuthHandler(svc.Auth, svc.User),
		User:       NewUserHandler(svc.User),
		Role:       NewRoleHandler(svc.Role),
		Permission: NewPermissionHandler(svc.Permission),
		Menu:       NewMenuHandler(svc.Menu),
		Department: NewDepartmentHandler(svc.Department),
	}
}
