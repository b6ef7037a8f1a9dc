package dto

// ── 菜单模块 DTO ──

// CreateMenuRequest 创建菜单请求
type CreateMenuRequest struct {
	Name      string  `json:"name"      binding:"required,min=2,max=50"`
	Code      string  `json:"code"      binding:"required,min=2,max=50"`
	Type      int16   `json:"type"      binding:"omitempty,oneof=0 1 2"`
	ParentID  *string `json:"parent_id" binding:"omitempty,uuid"`
	Component string  `json:"component" binding:"omitempty,max=255"`
	Route     string  `json:"route"     binding:"omitempty,max=255"`
	Icon      string  `json:"icon"      binding:"omitempty,max=100"`
	Sort      int     `json:"sort"      binding:"omitempty,min=0"`
}

// UpdateMenuRequest 更新菜单请求
type UpdateMenuRequest struct {
	Name       *string `json:"name"        binding:"omitempty,min=2,max=50"`
	Component  *string `json:"component"   binding:"omitempty,max=255"`
	Route      *string `json:"route"       binding:"omitempty,max=255"`
	Icon       *string `json:"icon"        binding:"omitempty,max=100"`
	Sort       *int    `json:"sort"        binding:"omitempty,min=0"`
	Visible    *bool   `json:"visible"`
	IsExternal *bool   `json:"is_external"`
	KeepAlive  *bool   `json:"keep_alive"`
}

// SetMenuParentRequest 变更菜单父节点请求
type SetMenuParentRequest struct {
	ParentID *string `json:"parent_id" binding:"omitempty,uuid"`
}

// BindMenuPermissionsRequest 绑定菜单权限请求（全量替换）
type BindMenuPermissionsRequest struct {
	PermissionIDs []string `json:"permission_ids" binding:"required,dive,uuid"`
}

// MenuResponse 菜单信息响应
type MenuResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Code       string  `json:"code"`
	Type       int16   `json:"type"`
	ParentID   *string `json:"parent_id,omitempty"`
	Path       string  `json:"path"`
	Component  string  `json:"component,omitempty"`
	Route      string  `json:"route,omitempty"`
	Icon       string  `json:"icon,omitempty"`
	Sort       int     `json:"sort"`
	Visible    bool    `json:"visible"`
	IsEnabled  bool    `json:"is_enabled"`
	IsExternal bool    `json:"is_external"`
	KeepAlive  bool    `json:"keep_alive"`
	CreatedAt  string  `json:"created_at"`
}

// MenuTreeNode 菜单树节点
type MenuTreeNode struct {
	MenuResponse
	Children []MenuTreeNode `json:"children"`
}
