package dto

// ── 部门模块 DTO ──

// CreateDepartmentRequest 创建部门请求
type CreateDepartmentRequest struct {
	Name        string  `json:"name"        binding:"required,min=2,max=50"`
	Code        string  `json:"code"        binding:"required,min=2,max=50"`
	Description string  `json:"description" binding:"omitempty,max=500"`
	ParentID    *string `json:"parent_id"   binding:"omitempty,uuid"`
	LeaderID    *string `json:"leader_id"   binding:"omitempty,uuid"`
	Sort        int     `json:"sort"        binding:"omitempty,min=0"`
}

// UpdateDepartmentRequest 更新部门请求
type UpdateDepartmentRequest struct {
	Name        *string `json:"name"        binding:"omitempty,min=2,max=50"`
	Description *string `json:"description" binding:"omitempty,max=500"`
	Sort        *int    `json:"sort"        binding:"omitempty,min=0"`
}

// SetDepartmentParentRequest 变更部门父节点请求
type SetDepartmentParentRequest struct {
	ParentID *string `json:"parent_id" binding:"omitempty,uuid"`
}

// SetDepartmentLeaderRequest 设置部门负责人请求；leader_id 为空表示清除
type SetDepartmentLeaderRequest struct {
	LeaderID *string `json:"leader_id" binding:"omitempty,uuid"`
}

// DepartmentUsersRequest 部门用户查询参数
type DepartmentUsersRequest struct {
	IncludeDescendants bool `form:"include_descendants"`
}

// DepartmentResponse 部门信息响应
type DepartmentResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Code        string  `json:"code"`
	Description string  `json:"description,omitempty"`
	ParentID    *string `json:"parent_id,omitempty"`
	Path        string  `json:"path"`
	LeaderID    *string `json:"leader_id,omitempty"`
	IsEnabled   bool    `json:"is_enabled"`
	Sort        int     `json:"sort"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// DepartmentTreeNode 部门树节点
type DepartmentTreeNode struct {
	DepartmentResponse
	Children []DepartmentTreeNode `json:"children"`
}
