package model

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel 通用审计字段（所有业务模型嵌入）
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// Touch 刷新最后修改时间（所有具名变更方法调用）
func (m *BaseModel) Touch() {
	m.UpdatedAt = time.Now().UTC()
}

// SoftDeleteModel 支持软删除的审计字段
// gorm.DeletedAt 使默认查询自动排除已删除记录
type SoftDeleteModel struct {
	BaseModel
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// VersionedModel 支持乐观锁的软删除模型
// Version 由 Repository 在更新时比对，冲突返回 pkg/errors.ErrOptimisticLock
type VersionedModel struct {
	SoftDeleteModel
	Version int `gorm:"not null;default:1" json:"version"`
}

// TreeNode 树形实体能力接口
// Role / Menu / Department 实现；树维护算法只依赖此接口
type TreeNode interface {
	NodeID() string
	NodeParentID() *string
	NodePath() string
	NodeSort() int
	// SetNodeParent 同时更新 parentId 与物化路径，二者不允许分开变更
	SetNodeParent(parentID *string, path string)
	// SetNodePath 仅更新物化路径（级联修正子树时使用）
	SetNodePath(path string)
}

// SoftDeletable 可软删除实体能力接口
// 替代原系统通过反射调用 SoftDelete 的做法，改为静态分发
type SoftDeletable interface {
	SoftDelete() error
}

// joinedPath 计算物化路径：父路径 + "/" + 自身ID，无父时即自身ID
func joinedPath(parentPath, id string) string {
	if parentPath == "" {
		return id
	}
	return parentPath + "/" + id
}
