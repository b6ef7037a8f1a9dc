package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"backend-pm/internal/dto"
	"backend-pm/internal/service"
	pkgerrors "backend-pm/pkg/errors"
	"backend-pm/pkg/response"
)

// MenuHandler 菜单模块 HTTP 处理器
type MenuHandler struct {
	menuSvc service.MenuService
}

// NewMenuHandler 创建 MenuHandler
func NewMenuHandler(menuSvc service.MenuService) *MenuHandler {
	return &MenuHandler{menuSvc: menuSvc}
}

// CreateMenu 创建菜单
// POST /api/v1/menus
func (h *MenuHandler) CreateMenu(c *gin.Context) {
	var req dto.CreateMenuRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.menuSvc.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleMenuError(c, err)
		return
	}

	response.Created(c, result)
}

// GetMenu 获取菜单详情
// GET /api/v1/menus/:id
func (h *MenuHandler) GetMenu(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "菜单ID不能为空")
		return
	}

	result, err := h.menuSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleMenuError(c, err)
		return
	}

	response.OK(c, result)
}

// UpdateMenu 更新菜单
// PUT /api/v1/menus/:id
func (h *MenuHandler) UpdateMenu(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "菜单ID不能为空")
		return
	}

	var req dto.UpdateMenuRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.menuSvc.Update(c.Request.Context(), id, &req)
	if err != nil {
		h.handleMenuError(c, err)
		return
	}

	response.OK(c, result)
}

// DeleteMenu 删除菜单（存在子节点时拒绝）
// DELETE /api/v1/menus/:id
func (h *MenuHandler) DeleteMenu(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "菜单ID不能为空")
		return
	}

	if err := h.menuSvc.Delete(c.Request.Context(), id); err != nil {
		h.handleMenuError(c, err)
		return
	}

	response.OK(c, nil)
}

// EnableMenu 启用菜单
// PUT /api/v1/menus/:id/enable
func (h *MenuHandler) EnableMenu(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "菜单ID不能为空")
		return
	}

	if err := h.menuSvc.Enable(c.Request.Context(), id); err != nil {
		h.handleMenuError(c, err)
		return
	}

	response.OK(c, nil)
}

// DisableMenu 禁用菜单
// PUT /api/v1/menus/:id/disable
func (h *MenuHandler) DisableMenu(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "菜单ID不能为空")
		return
	}

	if err := h.menuSvc.Disable(c.Request.Context(), id); err != nil {
		h.handleMenuError(c, err)
		return
	}

	response.OK(c, nil)
}

// GetMenuTree 获取启用菜单树（管理端），root_id 查询参数可限定子树
// GET /api/v1/menus/tree
func (h *MenuHandler) GetMenuTree(c *gin.Context) {
	tree, err := h.menuSvc.GetTree(c.Request.Context(), c.Query("root_id"))
	if err != nil {
		h.handleMenuError(c, err)
		return
	}

	response.OK(c, gin.H{"list": tree})
}

// GetMyMenuTree 获取当前用户可见的菜单树
// GET /api/v1/menus/me
func (h *MenuHandler) GetMyMenuTree(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	tree, err := h.menuSvc.GetTreeForUser(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": tree})
}

// SetMenuParent 变更菜单父节点并级联修正子树路径
// PUT /api/v1/menus/:id/parent
func (h *MenuHandler) SetMenuParent(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "菜单ID不能为空")
		return
	}

	var req dto.SetMenuParentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.menuSvc.SetParent(c.Request.Context(), id, req.ParentID)
	if err != nil {
		h.handleMenuError(c, err)
		return
	}

	response.OK(c, result)
}

// BindMenuPermissions 全量替换菜单绑定的权限集合
// PUT /api/v1/menus/:id/permissions
func (h *MenuHandler) BindMenuPermissions(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "菜单ID不能为空")
		return
	}

	var req dto.BindMenuPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := h.menuSvc.BindPermissions(c.Request.Context(), id, req.PermissionIDs); err != nil {
		h.handleMenuError(c, err)
		return
	}

	response.OK(c, nil)
}

// ListMenuPermissions 列出菜单绑定的权限
// GET /api/v1/menus/:id/permissions
func (h *MenuHandler) ListMenuPermissions(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "菜单ID不能为空")
		return
	}

	perms, err := h.menuSvc.ListPermissions(c.Request.Context(), id)
	if err != nil {
		h.handleMenuError(c, err)
		return
	}

	response.OK(c, gin.H{"list": perms})
}

// ── 错误映射 ──

func (h *MenuHandler) handleMenuError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMenuNotFound):
		response.NotFound(c, 23001, "菜单不存在")
	case errors.Is(err, service.ErrMenuCodeExists):
		response.Conflict(c, 23002, "菜单编码已存在")
	case errors.Is(err, service.ErrMenuHasChildren):
		response.Conflict(c, 23003, "菜单下存在子节点，无法删除")
	case errors.Is(err, service.ErrParentMenuNotFound):
		response.NotFound(c, 23004, "父菜单不存在")
	case errors.Is(err, service.ErrSelfParent):
		response.BadRequest(c, 23005, "不能将节点设为自身的父节点")
	case errors.Is(err, service.ErrCycleDetected):
		response.BadRequest(c, 23006, "父节点变更会产生环路")
	case errors.Is(err, service.ErrPermissionNotFound):
		response.NotFound(c, 22001, "权限不存在")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 23007, "数据已被其他操作修改，请刷新后重试")
	default:
		response.InternalError(c)
	}
}
