package dto

// ── 角色模块 DTO ──

// CreateRoleRequest 创建角色请求
type CreateRoleRequest struct {
	Name        string  `json:"name"        binding:"required,min=2,max=50"`
	Code        string  `json:"code"        binding:"required,min=2,max=50"`
	Description string  `json:"description" binding:"omitempty,max=500"`
	ParentID    *string `json:"parent_id"   binding:"omitempty,uuid"`
	Sort        int     `json:"sort"        binding:"omitempty,min=0"`
}

// UpdateRoleRequest 更新角色请求
type UpdateRoleRequest struct {
	Name        *string `json:"name"        binding:"omitempty,min=2,max=50"`
	Description *string `json:"description" binding:"omitempty,max=500"`
	Sort        *int    `json:"sort"        binding:"omitempty,min=0"`
}

// SetRoleParentRequest 变更角色父节点请求；parent_id 为空表示提升为根节点
type SetRoleParentRequest struct {
	ParentID *string `json:"parent_id" binding:"omitempty,uuid"`
}

// AssignPermissionsRequest 分配权限请求（全量替换）
type AssignPermissionsRequest struct {
	PermissionIDs []string `json:"permission_ids" binding:"required,dive,uuid"`
}

// RoleResponse 角色信息响应
type RoleResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Code        string  `json:"code"`
	Description string  `json:"description,omitempty"`
	IsSystem    bool    `json:"is_system"`
	ParentID    *string `json:"parent_id,omitempty"`
	Path        string  `json:"path"`
	IsEnabled   bool    `json:"is_enabled"`
	Sort        int     `json:"sort"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// RoleTreeNode 角色树节点
type RoleTreeNode struct {
	RoleResponse
	Children []RoleTreeNode `json:"children"`
}
