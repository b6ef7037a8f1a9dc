package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"backend-pm/internal/dto"
	"backend-pm/internal/model"
	"backend-pm/internal/service"
	pkgerrors "backend-pm/pkg/errors"
	"backend-pm/pkg/response"
)

// RoleHandler 角色模块 HTTP 处理器
type RoleHandler struct {
	roleSvc service.RoleService
}

// NewRoleHandler 创建 RoleHandler
func NewRoleHandler(roleSvc service.RoleService) *RoleHandler {
	return &RoleHandler{roleSvc: roleSvc}
}

// CreateRole 创建角色
// POST /api/v1/roles
func (h *RoleHandler) CreateRole(c *gin.Context) {
	var req dto.CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.roleSvc.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleRoleError(c, err)
		return
	}

	response.Created(c, result)
}

// GetRole 获取角色详情
// GET /api/v1/roles/:id
func (h *RoleHandler) GetRole(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "角色ID不能为空")
		return
	}

	result, err := h.roleSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleRoleError(c, err)
		return
	}

	response.OK(c, result)
}

// UpdateRole 更新角色
// PUT /api/v1/roles/:id
func (h *RoleHandler) UpdateRole(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "角色ID不能为空")
		return
	}

	var req dto.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.roleSvc.Update(c.Request.Context(), id, &req)
	if err != nil {
		h.handleRoleError(c, err)
		return
	}

	response.OK(c, result)
}

// DeleteRole 删除角色（软删除，已分配用户时拒绝）
// DELETE /api/v1/roles/:id
func (h *RoleHandler) DeleteRole(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "角色ID不能为空")
		return
	}

	if err := h.roleSvc.Delete(c.Request.Context(), id); err != nil {
		h.handleRoleError(c, err)
		return
	}

	response.OK(c, nil)
}

// EnableRole 启用角色
// PUT /api/v1/roles/:id/enable
func (h *RoleHandler) EnableRole(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "角色ID不能为空")
		return
	}

	if err := h.roleSvc.Enable(c.Request.Context(), id); err != nil {
		h.handleRoleError(c, err)
		return
	}

	response.OK(c, nil)
}

// DisableRole 禁用角色，持有该角色的用户权限缓存同步失效
// PUT /api/v1/roles/:id/disable
func (h *RoleHandler) DisableRole(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "角色ID不能为空")
		return
	}

	if err := h.roleSvc.Disable(c.Request.Context(), id); err != nil {
		h.handleRoleError(c, err)
		return
	}

	response.OK(c, nil)
}

// ListRoles 列出全部角色（平铺）
// GET /api/v1/roles
func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles, err := h.roleSvc.List(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": roles})
}

// GetRoleTree 获取启用角色树，root_id 查询参数可限定子树
// GET /api/v1/roles/tree
func (h *RoleHandler) GetRoleTree(c *gin.Context) {
	tree, err := h.roleSvc.GetTree(c.Request.Context(), c.Query("root_id"))
	if err != nil {
		h.handleRoleError(c, err)
		return
	}

	response.OK(c, gin.H{"list": tree})
}

// SetRoleParent 变更角色父节点并级联修正子树路径
// PUT /api/v1/roles/:id/parent
func (h *RoleHandler) SetRoleParent(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "角色ID不能为空")
		return
	}

	var req dto.SetRoleParentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.roleSvc.SetParent(c.Request.Context(), id, req.ParentID)
	if err != nil {
		h.handleRoleError(c, err)
		return
	}

	response.OK(c, result)
}

// AssignPermissions 全量替换角色的权限集合
// PUT /api/v1/roles/:id/permissions
func (h *RoleHandler) AssignPermissions(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "角色ID不能为空")
		return
	}

	var req dto.AssignPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := h.roleSvc.AssignPermissions(c.Request.Context(), id, req.PermissionIDs); err != nil {
		h.handleRoleError(c, err)
		return
	}

	response.OK(c, nil)
}

// ListRolePermissions 列出角色的权限
// GET /api/v1/roles/:id/permissions
func (h *RoleHandler) ListRolePermissions(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "角色ID不能为空")
		return
	}

	perms, err := h.roleSvc.ListPermissions(c.Request.Context(), id)
	if err != nil {
		h.handleRoleError(c, err)
		return
	}

	response.OK(c, gin.H{"list": perms})
}

// ListRoleUsers 列出持有该角色的用户
// GET /api/v1/roles/:id/users
func (h *RoleHandler) ListRoleUsers(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "角色ID不能为空")
		return
	}

	users, err := h.roleSvc.ListUsers(c.Request.Context(), id)
	if err != nil {
		h.handleRoleError(c, err)
		return
	}

	response.OK(c, gin.H{"list": users})
}

// ── 错误映射 ──

func (h *RoleHandler) handleRoleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRoleNotFound):
		response.NotFound(c, 21001, "角色不存在")
	case errors.Is(err, service.ErrRoleCodeExists):
		response.Conflict(c, 21002, "角色编码已存在")
	case errors.Is(err, service.ErrRoleInUse):
		response.Conflict(c, 21003, "角色已分配给用户，无法删除")
	case errors.Is(err, service.ErrParentRoleNotFound):
		response.NotFound(c, 21004, "父角色不存在")
	case errors.Is(err, service.ErrSelfParent):
		response.BadRequest(c, 21005, "不能将节点设为自身的父节点")
	case errors.Is(err, service.ErrCycleDetected):
		response.BadRequest(c, 21006, "父节点变更会产生环路")
	case errors.Is(err, model.ErrSystemRoleProtected):
		response.Forbidden(c, 21007, "系统内置角色不允许修改或删除")
	case errors.Is(err, service.ErrPermissionNotFound):
		response.NotFound(c, 22001, "权限不存在")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 21008, "数据已被其他操作修改，请刷新后重试")
	default:
		response.InternalError(c)
	}
}
