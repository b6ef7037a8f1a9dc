package dto

// ── 权限模块 DTO ──

// CreatePermissionRequest 创建权限请求
type CreatePermissionRequest struct {
	Name        string  `json:"name"         binding:"required,min=2,max=100"`
	Code        string  `json:"code"         binding:"required,min=2,max=100"`
	Type        int16   `json:"type"         binding:"omitempty,oneof=0 1 2 3"`
	Description string  `json:"description"  binding:"omitempty,max=500"`
	GroupID     *string `json:"group_id"     binding:"omitempty,uuid"`
	APIResource string  `json:"api_resource" binding:"omitempty,max=255"`
	Sort        int     `json:"sort"         binding:"omitempty,min=0"`
}

// UpdatePermissionRequest 更新权限请求
type UpdatePermissionRequest struct {
	Name        *string `json:"name"        binding:"omitempty,min=2,max=100"`
	Description *string `json:"description" binding:"omitempty,max=500"`
	GroupID     *string `json:"group_id"    binding:"omitempty,uuid"`
	Sort        *int    `json:"sort"        binding:"omitempty,min=0"`
}

// RegisterAPIPermissionRequest 注册接口权限请求
type RegisterAPIPermissionRequest struct {
	Name        string `json:"name"         binding:"required,min=2,max=100"`
	APIResource string `json:"api_resource" binding:"required,max=255"`
	Description string `json:"description"  binding:"omitempty,max=500"`
}

// CheckPermissionRequest 权限校验查询参数
type CheckPermissionRequest struct {
	Code string `form:"code" binding:"required,max=100"`
}

// PermissionResponse 权限信息响应
type PermissionResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Code        string  `json:"code"`
	Type        int16   `json:"type"`
	Description string  `json:"description,omitempty"`
	GroupID     *string `json:"group_id,omitempty"`
	APIResource string  `json:"api_resource,omitempty"`
	IsEnabled   bool    `json:"is_enabled"`
	Sort        int     `json:"sort"`
	CreatedAt   string  `json:"created_at"`
}

// EffectivePermissionsResponse 用户有效权限响应
type EffectivePermissionsResponse struct {
	UserID      string               `json:"user_id"`
	Permissions []PermissionResponse `json:"permissions"`
	Codes       []string             `json:"codes"`
}

// CheckPermissionResponse 权限校验结果
type CheckPermissionResponse struct {
	Allowed bool `json:"allowed"`
}
