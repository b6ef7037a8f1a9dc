package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// PermissionType 权限类型
type PermissionType int16

const (
	PermissionTypeMenu      PermissionType = 0
	PermissionTypeOperation PermissionType = 1
	PermissionTypeAPI       PermissionType = 2
	PermissionTypeData      PermissionType = 3
)

// ErrNotAPIPermission 仅 API 类型权限可设置资源路径
var ErrNotAPIPermission = errors.New("只有 API 类型的权限才能设置资源路径")

// Permission 权限表 — 对应 permissions
// GroupId 仅作分组标记，不构成父子树
type Permission struct {
	PermissionID string         `gorm:"type:uuid;primaryKey"        json:"permission_id"`
	Name         string         `gorm:"type:varchar(100);not null"  json:"name"`
	Code         string         `gorm:"type:varchar(100);not null"  json:"code"`
	Type         PermissionType `gorm:"not null;default:0"          json:"type"`
	Description  string         `gorm:"type:text"                   json:"description,omitempty"`
	GroupID      *string        `gorm:"type:uuid"                   json:"group_id,omitempty"`
	APIResource  string         `gorm:"type:varchar(255)"           json:"api_resource,omitempty"`
	IsEnabled    bool           `gorm:"not null;default:true"       json:"is_enabled"`
	Sort         int            `gorm:"not null;default:0"          json:"sort"`
	SoftDeleteModel
}

// TableName 指定表名
func (Permission) TableName() string { return "permissions" }

// NewPermission 创建权限：分配ID、默认启用
func NewPermission(name, code string, ptype PermissionType, description string) *Permission {
	return &Permission{
		PermissionID: uuid.NewString(),
		Name:         name,
		Code:         code,
		Type:         ptype,
		Description:  description,
		IsEnabled:    true,
	}
}

// Update 更新基本信息
func (p *Permission) Update(name, description string) {
	p.Name = name
	p.Description = description
	p.Touch()
}

// SetGroup 设置所属权限组
func (p *Permission) SetGroup(groupID *string) {
	p.GroupID = groupID
	p.Touch()
}

// SetAPIResource 设置 API 资源路径；非 API 类型拒绝
func (p *Permission) SetAPIResource(apiResource string) error {
	if p.Type != PermissionTypeAPI {
		return ErrNotAPIPermission
	}
	p.APIResource = apiResource
	p.Touch()
	return nil
}

// Enable 启用权限
func (p *Permission) Enable() {
	p.IsEnabled = true
	p.Touch()
}

// Disable 禁用权限
func (p *Permission) Disable() {
	p.IsEnabled = false
	p.Touch()
}

// SetSort 设置排序值
func (p *Permission) SetSort(sort int) {
	p.Sort = sort
	p.Touch()
}

// SoftDelete 逻辑删除并禁用
func (p *Permission) SoftDelete() error {
	p.IsEnabled = false
	p.DeletedAt.Time = time.Now().UTC()
	p.DeletedAt.Valid = true
	p.Touch()
	return nil
}
