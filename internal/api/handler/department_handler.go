package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"backend-pm/internal/dto"
	"backend-pm/internal/service"
	pkgerrors "backend-pm/pkg/errors"
	"backend-pm/pkg/response"
)

// DepartmentHandler 部门模块 HTTP 处理器
type DepartmentHandler struct {
	deptSvc service.DepartmentService
}

// NewDepartmentHandler 创建 DepartmentHandler
func NewDepartmentHandler(deptSvc service.DepartmentService) *DepartmentHandler {
	return &DepartmentHandler{deptSvc: deptSvc}
}

// CreateDepartment 创建部门
// POST /api/v1/departments
func (h *DepartmentHandler) CreateDepartment(c *gin.Context) {
	var req dto.CreateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.deptSvc.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleDepartmentError(c, err)
		return
	}

	response.Created(c, result)
}

// GetDepartment 获取部门详情
// GET /api/v1/departments/:id
func (h *DepartmentHandler) GetDepartment(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "部门ID不能为空")
		return
	}

	result, err := h.deptSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleDepartmentError(c, err)
		return
	}

	response.OK(c, result)
}

// UpdateDepartment 更新部门
// PUT /api/v1/departments/:id
func (h *DepartmentHandler) UpdateDepartment(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "部门ID不能为空")
		return
	}

	var req dto.UpdateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.deptSvc.Update(c.Request.Context(), id, &req)
	if err != nil {
		h.handleDepartmentError(c, err)
		return
	}

	response.OK(c, result)
}

// DeleteDepartment 删除部门（存在子部门或用户时拒绝）
// DELETE /api/v1/departments/:id
func (h *DepartmentHandler) DeleteDepartment(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "部门ID不能为空")
		return
	}

	if err := h.deptSvc.Delete(c.Request.Context(), id); err != nil {
		h.handleDepartmentError(c, err)
		return
	}

	response.OK(c, nil)
}

// EnableDepartment 启用部门
// PUT /api/v1/departments/:id/enable
func (h *DepartmentHandler) EnableDepartment(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "部门ID不能为空")
		return
	}

	if err := h.deptSvc.Enable(c.Request.Context(), id); err != nil {
		h.handleDepartmentError(c, err)
		return
	}

	response.OK(c, nil)
}

// DisableDepartment 禁用部门
// PUT /api/v1/departments/:id/disable
func (h *DepartmentHandler) DisableDepartment(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "部门ID不能为空")
		return
	}

	if err := h.deptSvc.Disable(c.Request.Context(), id); err != nil {
		h.handleDepartmentError(c, err)
		return
	}

	response.OK(c, nil)
}

// GetDepartmentTree 获取启用部门树，root_id 查询参数可限定子树
// GET /api/v1/departments/tree
func (h *DepartmentHandler) GetDepartmentTree(c *gin.Context) {
	tree, err := h.deptSvc.GetTree(c.Request.Context(), c.Query("root_id"))
	if err != nil {
		h.handleDepartmentError(c, err)
		return
	}

	response.OK(c, gin.H{"list": tree})
}

// SetDepartmentParent 变更部门父节点并级联修正子树路径
// PUT /api/v1/departments/:id/parent
func (h *DepartmentHandler) SetDepartmentParent(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "部门ID不能为空")
		return
	}

	var req dto.SetDepartmentParentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.deptSvc.SetParent(c.Request.Context(), id, req.ParentID)
	if err != nil {
		h.handleDepartmentError(c, err)
		return
	}

	response.OK(c, result)
}

// SetDepartmentLeader 设置部门负责人；负责人不在部门内时自动加入
// PUT /api/v1/departments/:id/leader
func (h *DepartmentHandler) SetDepartmentLeader(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "部门ID不能为空")
		return
	}

	var req dto.SetDepartmentLeaderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.deptSvc.SetLeader(c.Request.Context(), id, req.LeaderID)
	if err != nil {
		h.handleDepartmentError(c, err)
		return
	}

	response.OK(c, result)
}

// ListDepartmentUsers 列出部门用户，可按路径前缀展开整棵子树
// GET /api/v1/departments/:id/users?include_descendants=true
func (h *DepartmentHandler) ListDepartmentUsers(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "部门ID不能为空")
		return
	}

	var req dto.DepartmentUsersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	users, err := h.deptSvc.ListUsers(c.Request.Context(), id, req.IncludeDescendants)
	if err != nil {
		h.handleDepartmentError(c, err)
		return
	}

	response.OK(c, gin.H{"list": users})
}

// ── 用户-部门分配 ──

// AssignUserDepartments 全量替换用户的部门集合并指定主部门
// PUT /api/v1/users/:id/departments
func (h *DepartmentHandler) AssignUserDepartments(c *gin.Context) {
	userID := c.Param("id")
	if userID == "" {
		response.BadRequest(c, 10001, "用户ID不能为空")
		return
	}

	var req dto.AssignDepartmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := h.deptSvc.AssignToUser(c.Request.Context(), userID, req.DepartmentIDs, req.PrimaryDepartmentID); err != nil {
		h.handleDepartmentError(c, err)
		return
	}

	response.OK(c, nil)
}

// SetUserPrimaryDepartment 在既有分配中切换用户的主部门
// PUT /api/v1/users/:id/departments/primary
func (h *DepartmentHandler) SetUserPrimaryDepartment(c *gin.Context) {
	userID := c.Param("id")
	if userID == "" {
		response.BadRequest(c, 10001, "用户ID不能为空")
		return
	}

	var req dto.SetPrimaryDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := h.deptSvc.SetPrimaryForUser(c.Request.Context(), userID, req.DepartmentID); err != nil {
		h.handleDepartmentError(c, err)
		return
	}

	response.OK(c, nil)
}

// ── 错误映射 ──

func (h *DepartmentHandler) handleDepartmentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrDepartmentNotFound):
		response.NotFound(c, 24001, "部门不存在")
	case errors.Is(err, service.ErrDepartmentCodeExists):
		response.Conflict(c, 24002, "部门编码已存在")
	case errors.Is(err, service.ErrDepartmentHasChildren):
		response.Conflict(c, 24003, "部门下存在子部门，无法删除")
	case errors.Is(err, service.ErrDepartmentHasUsers):
		response.Conflict(c, 24004, "部门下存在用户，无法删除")
	case errors.Is(err, service.ErrParentDepartmentNotFound):
		response.NotFound(c, 24005, "父部门不存在")
	case errors.Is(err, service.ErrSelfParent):
		response.BadRequest(c, 24006, "不能将节点设为自身的父节点")
	case errors.Is(err, service.ErrCycleDetected):
		response.BadRequest(c, 24007, "父节点变更会产生环路")
	case errors.Is(err, service.ErrPrimaryNotInAssignment):
		response.BadRequest(c, 24008, "主部门必须在分配的部门列表中")
	case errors.Is(err, service.ErrNotMemberOfDepartment):
		response.BadRequest(c, 24009, "用户不属于该部门")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 20001, "用户不存在")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 24010, "数据已被其他操作修改，请刷新后重试")
	default:
		response.InternalError(c)
	}
}
