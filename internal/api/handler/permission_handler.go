package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"backend-pm/internal/dto"
	"backend-pm/internal/model"
	"backend-pm/internal/service"
	"backend-pm/pkg/response"
)

// PermissionHandler 权限模块 HTTP 处理器
type PermissionHandler struct {
	permSvc service.PermissionService
}

// NewPermissionHandler 创建 PermissionHandler
func NewPermissionHandler(permSvc service.PermissionService) *PermissionHandler {
	return &PermissionHandler{permSvc: permSvc}
}

// CreatePermission 创建权限
// POST /api/v1/permissions
func (h *PermissionHandler) CreatePermission(c *gin.Context) {
	var req dto.CreatePermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.permSvc.Create(c.Request.Context(), &req)
	if err != nil {
		h.handlePermissionError(c, err)
		return
	}

	response.Created(c, result)
}

// GetPermission 获取权限详情
// GET /api/v1/permissions/:id
func (h *PermissionHandler) GetPermission(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "权限ID不能为空")
		return
	}

	result, err := h.permSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handlePermissionError(c, err)
		return
	}

	response.OK(c, result)
}

// UpdatePermission 更新权限
// PUT /api/v1/permissions/:id
func (h *PermissionHandler) UpdatePermission(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "权限ID不能为空")
		return
	}

	var req dto.UpdatePermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.permSvc.Update(c.Request.Context(), id, &req)
	if err != nil {
		h.handlePermissionError(c, err)
		return
	}

	response.OK(c, result)
}

// DeletePermission 删除权限（软删除）
// DELETE /api/v1/permissions/:id
func (h *PermissionHandler) DeletePermission(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "权限ID不能为空")
		return
	}

	if err := h.permSvc.Delete(c.Request.Context(), id); err != nil {
		h.handlePermissionError(c, err)
		return
	}

	response.OK(c, nil)
}

// EnablePermission 启用权限
// PUT /api/v1/permissions/:id/enable
func (h *PermissionHandler) EnablePermission(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "权限ID不能为空")
		return
	}

	if err := h.permSvc.Enable(c.Request.Context(), id); err != nil {
		h.handlePermissionError(c, err)
		return
	}

	response.OK(c, nil)
}

// DisablePermission 禁用权限，禁用后不再参与有效权限解析
// PUT /api/v1/permissions/:id/disable
func (h *PermissionHandler) DisablePermission(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "权限ID不能为空")
		return
	}

	if err := h.permSvc.Disable(c.Request.Context(), id); err != nil {
		h.handlePermissionError(c, err)
		return
	}

	response.OK(c, nil)
}

// ListPermissions 列出全部权限
// GET /api/v1/permissions
func (h *PermissionHandler) ListPermissions(c *gin.Context) {
	groupID := c.Query("group_id")

	var (
		perms []dto.PermissionResponse
		err   error
	)
	if groupID != "" {
		perms, err = h.permSvc.ListByGroup(c.Request.Context(), groupID)
	} else {
		perms, err = h.permSvc.List(c.Request.Context())
	}
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": perms})
}

// RegisterAPIPermission 按资源路径幂等注册接口权限
// POST /api/v1/permissions/api
func (h *PermissionHandler) RegisterAPIPermission(c *gin.Context) {
	var req dto.RegisterAPIPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.permSvc.RegisterAPIPermission(c.Request.Context(), &req)
	if err != nil {
		h.handlePermissionError(c, err)
		return
	}

	response.OK(c, result)
}

// GetUserEffectivePermissions 解析用户的有效权限集
// GET /api/v1/users/:id/permissions
func (h *PermissionHandler) GetUserEffectivePermissions(c *gin.Context) {
	userID := c.Param("id")
	if userID == "" {
		response.BadRequest(c, 10001, "用户ID不能为空")
		return
	}

	perms, err := h.permSvc.GetEffectivePermissions(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, service.NewEffectivePermissionsResponse(userID, perms))
}

// CheckUserPermission 校验用户是否持有指定编码的权限
// GET /api/v1/users/:id/permissions/check?code=xxx
func (h *PermissionHandler) CheckUserPermission(c *gin.Context) {
	userID := c.Param("id")
	if userID == "" {
		response.BadRequest(c, 10001, "用户ID不能为空")
		return
	}

	var req dto.CheckPermissionRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	allowed, err := h.permSvc.HasPermission(c.Request.Context(), userID, req.Code)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, dto.CheckPermissionResponse{Allowed: allowed})
}

// ── 错误映射 ──

func (h *PermissionHandler) handlePermissionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionNotFound):
		response.NotFound(c, 22001, "权限不存在")
	case errors.Is(err, service.ErrPermissionCodeExists):
		response.Conflict(c, 22002, "权限编码已存在")
	case errors.Is(err, model.ErrNotAPIPermission):
		response.BadRequest(c, 22003, "仅接口类型权限可设置资源路径")
	default:
		response.InternalError(c)
	}
}
