package model

import (
	"time"

	"github.com/google/uuid"
)

// MenuType 菜单类型
type MenuType int16

const (
	MenuTypeDirectory MenuType = 0
	MenuTypeMenu      MenuType = 1
	MenuTypeButton    MenuType = 2
)

// Menu 菜单表 — 对应 menus；支持目录/菜单/按钮三级树
type Menu struct {
	MenuID     string   `gorm:"type:uuid;primaryKey"       json:"menu_id"`
	Name       string   `gorm:"type:varchar(50);not null"  json:"name"`
	Code       string   `gorm:"type:varchar(50);not null"  json:"code"`
	Type       MenuType `gorm:"not null;default:0"         json:"type"`
	ParentID   *string  `gorm:"type:uuid"                  json:"parent_id,omitempty"`
	Path       string   `gorm:"type:text;not null"         json:"path"`
	Component  string   `gorm:"type:varchar(255)"          json:"component,omitempty"`
	Route      string   `gorm:"type:varchar(255)"          json:"route,omitempty"`
	Icon       string   `gorm:"type:varchar(100)"          json:"icon,omitempty"`
	Sort       int      `gorm:"not null;default:0"         json:"sort"`
	Visible    bool     `gorm:"not null;default:true"      json:"visible"`
	IsEnabled  bool     `gorm:"not null;default:true"      json:"is_enabled"`
	IsExternal bool     `gorm:"not null;default:false"     json:"is_external"`
	KeepAlive  bool     `gorm:"not null;default:false"     json:"keep_alive"`
	VersionedModel
}

// TableName 指定表名
func (Menu) TableName() string { return "menus" }

// NewMenu 创建菜单：分配ID、默认启用可见、初始化物化路径
func NewMenu(name, code string, mtype MenuType, component, route string, parentID *string, parentPath string) *Menu {
	m := &Menu{
		MenuID:    uuid.NewString(),
		Name:      name,
		Code:      code,
		Type:      mtype,
		Component: component,
		Route:     route,
		ParentID:  parentID,
		Visible:   true,
		IsEnabled: true,
	}
	m.Path = joinedPath(parentPath, m.MenuID)
	return m
}

// Update 更新基本信息
func (m *Menu) Update(name, component, route, icon string) {
	m.Name = name
	m.Component = component
	m.Route = route
	m.Icon = icon
	m.Touch()
}

// SetVisibility 设置可见性
func (m *Menu) SetVisibility(visible bool) {
	m.Visible = visible
	m.Touch()
}

// Enable 启用菜单
func (m *Menu) Enable() {
	m.IsEnabled = true
	m.Touch()
}

// Disable 禁用菜单
func (m *Menu) Disable() {
	m.IsEnabled = false
	m.Touch()
}

// SetSort 设置排序值
func (m *Menu) SetSort(sort int) {
	m.Sort = sort
	m.Touch()
}

// SetExternalLink 设置是否外链
func (m *Menu) SetExternalLink(isExternal bool) {
	m.IsExternal = isExternal
	m.Touch()
}

// SetKeepAlive 设置是否缓存
func (m *Menu) SetKeepAlive(keepAlive bool) {
	m.KeepAlive = keepAlive
	m.Touch()
}

// SoftDelete 逻辑删除并禁用
func (m *Menu) SoftDelete() error {
	m.IsEnabled = false
	m.DeletedAt.Time = time.Now().UTC()
	m.DeletedAt.Valid = true
	m.Touch()
	return nil
}

// ── TreeNode 实现 ──

func (m *Menu) NodeID() string        { return m.MenuID }
func (m *Menu) NodeParentID() *string { return m.ParentID }
func (m *Menu) NodePath() string      { return m.Path }
func (m *Menu) NodeSort() int         { return m.Sort }

func (m *Menu) SetNodeParent(parentID *string, path string) {
	m.ParentID = parentID
	m.Path = path
	m.Touch()
}

func (m *Menu) SetNodePath(path string) {
	m.Path = path
	m.Touch()
}
