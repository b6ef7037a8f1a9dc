package model

import "time"

// 关联表均为物理删除：实体软删除后残留的关联行视为悬挂数据，
// 由读取路径过滤，不做级联清理。

// UserRole 用户-角色关联 — 对应 user_roles
type UserRole struct {
	UserID    string    `gorm:"type:uuid;primaryKey" json:"user_id"`
	RoleID    string    `gorm:"type:uuid;primaryKey" json:"role_id"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName 指定表名
func (UserRole) TableName() string { return "user_roles" }

// RolePermission 角色-权限关联 — 对应 role_permissions
type RolePermission struct {
	RoleID       string    `gorm:"type:uuid;primaryKey" json:"role_id"`
	PermissionID string    `gorm:"type:uuid;primaryKey" json:"permission_id"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName 指定表名
func (RolePermission) TableName() string { return "role_permissions" }

// UserDepartment 用户-部门关联 — 对应 user_departments
// 每个用户至多一行 IsPrimary=true（数据库部分唯一索引兜底）
type UserDepartment struct {
	UserID       string    `gorm:"type:uuid;primaryKey" json:"user_id"`
	DepartmentID string    `gorm:"type:uuid;primaryKey" json:"department_id"`
	IsPrimary    bool      `gorm:"not null;default:false" json:"is_primary"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName 指定表名
func (UserDepartment) TableName() string { return "user_departments" }

// MenuPermission 菜单-权限关联 — 对应 menu_permissions
type MenuPermission struct {
	MenuID       string    `gorm:"type:uuid;primaryKey" json:"menu_id"`
	PermissionID string    `gorm:"type:uuid;primaryKey" json:"permission_id"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName 指定表名
func (MenuPermission) TableName() string { return "menu_permissions" }
