package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrSystemRoleProtected 系统角色不允许修改、禁用或删除
var ErrSystemRoleProtected = errors.New("系统角色受保护，不允许此操作")

// Role 角色表 — 对应 roles；支持父子继承树
type Role struct {
	RoleID      string  `gorm:"type:uuid;primaryKey"       json:"role_id"`
	Name        string  `gorm:"type:varchar(50);not null"  json:"name"`
	Code        string  `gorm:"type:varchar(50);not null"  json:"code"`
	Description string  `gorm:"type:text"                  json:"description,omitempty"`
	IsSystem    bool    `gorm:"not null;default:false"     json:"is_system"`
	ParentID    *string `gorm:"type:uuid"                  json:"parent_id,omitempty"`
	Path        string  `gorm:"type:text;not null"         json:"path"`
	IsEnabled   bool    `gorm:"not null;default:true"      json:"is_enabled"`
	Sort        int     `gorm:"not null;default:0"         json:"sort"`
	VersionedModel
}

// TableName 指定表名
func (Role) TableName() string { return "roles" }

// NewRole 创建角色：分配ID、默认启用、初始化物化路径
// parentPath 为父角色的物化路径，无父时传空串
func NewRole(name, code, description string, isSystem bool, parentID *string, parentPath string) *Role {
	r := &Role{
		RoleID:      uuid.NewString(),
		Name:        name,
		Code:        code,
		Description: description,
		IsSystem:    isSystem,
		ParentID:    parentID,
		IsEnabled:   true,
	}
	r.Path = joinedPath(parentPath, r.RoleID)
	return r
}

// Update 更新基本信息；系统角色拒绝
func (r *Role) Update(name, description string) error {
	if r.IsSystem {
		return ErrSystemRoleProtected
	}
	r.Name = name
	r.Description = description
	r.Touch()
	return nil
}

// Enable 启用角色
func (r *Role) Enable() {
	r.IsEnabled = true
	r.Touch()
}

// Disable 禁用角色；系统角色拒绝
func (r *Role) Disable() error {
	if r.IsSystem {
		return ErrSystemRoleProtected
	}
	r.IsEnabled = false
	r.Touch()
	return nil
}

// SetSort 设置排序值
func (r *Role) SetSort(sort int) {
	r.Sort = sort
	r.Touch()
}

// SoftDelete 逻辑删除并禁用；系统角色拒绝
func (r *Role) SoftDelete() error {
	if r.IsSystem {
		return ErrSystemRoleProtected
	}
	r.IsEnabled = false
	r.DeletedAt.Time = time.Now().UTC()
	r.DeletedAt.Valid = true
	r.Touch()
	return nil
}

// ── TreeNode 实现 ──

func (r *Role) NodeID() string        { return r.RoleID }
func (r *Role) NodeParentID() *string { return r.ParentID }
func (r *Role) NodePath() string      { return r.Path }
func (r *Role) NodeSort() int         { return r.Sort }

func (r *Role) SetNodeParent(parentID *string, path string) {
	r.ParentID = parentID
	r.Path = path
	r.Touch()
}

func (r *Role) SetNodePath(path string) {
	r.Path = path
	r.Touch()
}
