package model

import (
	"time"

	"github.com/google/uuid"
)

// Department 部门表 — 对应 departments；支持组织架构树
type Department struct {
	DepartmentID string  `gorm:"type:uuid;primaryKey"       json:"department_id"`
	Name         string  `gorm:"type:varchar(50);not null"  json:"name"`
	Code         string  `gorm:"type:varchar(50);not null"  json:"code"`
	Description  string  `gorm:"type:text"                  json:"description,omitempty"`
	ParentID     *string `gorm:"type:uuid"                  json:"parent_id,omitempty"`
	Path         string  `gorm:"type:text;not null"         json:"path"`
	LeaderID     *string `gorm:"type:uuid"                  json:"leader_id,omitempty"`
	IsEnabled    bool    `gorm:"not null;default:true"      json:"is_enabled"`
	Sort         int     `gorm:"not null;default:0"         json:"sort"`
	VersionedModel
}

// TableName 指定表名
func (Department) TableName() string { return "departments" }

// NewDepartment 创建部门：分配ID、默认启用、初始化物化路径
func NewDepartment(name, code, description string, parentID *string, parentPath string) *Department {
	d := &Department{
		DepartmentID: uuid.NewString(),
		Name:         name,
		Code:         code,
		Description:  description,
		ParentID:     parentID,
		IsEnabled:    true,
	}
	d.Path = joinedPath(parentPath, d.DepartmentID)
	return d
}

// Update 更新基本信息
func (d *Department) Update(name, description string) {
	d.Name = name
	d.Description = description
	d.Touch()
}

// SetLeader 设置部门负责人
func (d *Department) SetLeader(leaderID *string) {
	d.LeaderID = leaderID
	d.Touch()
}

// Enable 启用部门
func (d *Department) Enable() {
	d.IsEnabled = true
	d.Touch()
}

// Disable 禁用部门
func (d *Department) Disable() {
	d.IsEnabled = false
	d.Touch()
}

// SetSort 设置排序值
func (d *Department) SetSort(sort int) {
	d.Sort = sort
	d.Touch()
}

// SoftDelete 逻辑删除并禁用
func (d *Department) SoftDelete() error {
	d.IsEnabled = false
	d.DeletedAt.Time = time.Now().UTC()
	d.DeletedAt.Valid = true
	d.Touch()
	return nil
}

// ── TreeNode 实现 ──

func (d *Department) NodeID() string        { return d.DepartmentID }
func (d *Department) NodeParentID() *string { return d.ParentID }
func (d *Department) NodePath() string      { return d.Path }
func (d *Department) NodeSort() int         { return d.Sort }

func (d *Department) SetNodeParent(parentID *string, path string) {
	d.ParentID = parentID
	d.Path = path
	d.Touch()
}

func (d *Department) SetNodePath(path string) {
	d.Path = path
	d.Touch()
}
