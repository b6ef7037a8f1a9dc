package repository

import (
	"context"

	"gorm.io/gorm"

	"backend-pm/internal/model"
	pkgerrors "backend-pm/pkg/errors"
)

// MenuRepository 菜单数据访问接口
type MenuRepository interface {
	Create(ctx context.Context, menu *model.Menu) error
	GetByID(ctx context.Context, id string) (*model.Menu, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Update(ctx context.Context, menu *model.Menu) error
	ListAll(ctx context.Context) ([]model.Menu, error)
	ListEnabled(ctx context.Context) ([]model.Menu, error)
	UpdatePaths(ctx context.Context, paths map[string]string) error
	HasChildren(ctx context.Context, id string) (bool, error)

	// ── 权限关联 ──
	ReplacePermissions(ctx context.Context, menuID string, permissionIDs []string) error
	ListPermissions(ctx context.Context, menuID string) ([]model.Permission, error)
	ListByPermissionIDs(ctx context.Context, permissionIDs []string) ([]model.Menu, error)
}

// menuRepo MenuRepository 的 GORM 实现
type menuRepo struct {
	db *gorm.DB
}

// NewMenuRepo 创建 MenuRepository 实例
func NewMenuRepo(db *gorm.DB) MenuRepository {
	return &menuRepo{db: db}
}

func (r *menuRepo) Create(ctx context.Context, menu *model.Menu) error {
	return r.db.WithContext(ctx).Create(menu).Error
}

func (r *menuRepo) GetByID(ctx context.Context, id string) (*model.Menu, error) {
	var menu model.Menu
	err := r.db.WithContext(ctx).
		Where("menu_id = ?", id).
		First(&menu).Error
	if err != nil {
		return nil, err
	}
	return &menu, nil
}

func (r *menuRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Menu{}).
		Where("code = ?", code).
		Count(&count).Error
	return count > 0, err
}

// Update 带乐观锁的整行更新：版本不匹配时返回 ErrOptimisticLock
func (r *menuRepo) Update(ctx context.Context, menu *model.Menu) error {
	oldVersion := menu.Version
	menu.Version = oldVersion + 1
	res := r.db.WithContext(ctx).
		Model(menu).
		Where("version = ?", oldVersion).
		Select("*").
		Omit("menu_id", "created_at").
		Updates(menu)
	if res.Error != nil {
		menu.Version = oldVersion
		return res.Error
	}
	if res.RowsAffected == 0 {
		menu.Version = oldVersion
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

func (r *menuRepo) ListAll(ctx context.Context) ([]model.Menu, error) {
	var menus []model.Menu
	err := r.db.WithContext(ctx).
		Order("sort ASC, created_at ASC").
		Find(&menus).Error
	return menus, err
}

func (r *menuRepo) ListEnabled(ctx context.Context) ([]model.Menu, error) {
	var menus []model.Menu
	err := r.db.WithContext(ctx).
		Where("is_enabled", true).
		Order("sort ASC, created_at ASC").
		Find(&menus).Error
	return menus, err
}

// UpdatePaths 批量写入级联重算后的物化路径
func (r *menuRepo) UpdatePaths(ctx context.Context, paths map[string]string) error {
	for id, path := range paths {
		if err := r.db.WithContext(ctx).
			Model(&model.Menu{}).
			Where("menu_id = ?", id).
			Update("path", path).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *menuRepo) HasChildren(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Menu{}).
		Where("parent_id = ?", id).
		Count(&count).Error
	return count > 0, err
}

// ── 权限关联 ──

// ReplacePermissions 全量替换菜单绑定的权限集合（先清后插）
func (r *menuRepo) ReplacePermissions(ctx context.Context, menuID string, permissionIDs []string) error {
	if err := r.db.WithContext(ctx).
		Where("menu_id = ?", menuID).
		Delete(&model.MenuPermission{}).Error; err != nil {
		return err
	}
	if len(permissionIDs) == 0 {
		return nil
	}
	links := make([]model.MenuPermission, 0, len(permissionIDs))
	for _, pid := range permissionIDs {
		links = append(links, model.MenuPermission{MenuID: menuID, PermissionID: pid})
	}
	return r.db.WithContext(ctx).Create(&links).Error
}

func (r *menuRepo) ListPermissions(ctx context.Context, menuID string) ([]model.Permission, error) {
	var perms []model.Permission
	err := r.db.WithContext(ctx).
		Model(&model.Permission{}).
		Joins("JOIN menu_permissions mp ON mp.permission_id = permissions.permission_id").
		Where("mp.menu_id = ?", menuID).
		Order("permissions.sort ASC").
		Find(&perms).Error
	return perms, err
}

// ListByPermissionIDs 取出绑定了任一给定权限的菜单（去重）
// 用户菜单树按此结果联合未绑定权限的公共菜单装配
func (r *menuRepo) ListByPermissionIDs(ctx context.Context, permissionIDs []string) ([]model.Menu, error) {
	var menus []model.Menu
	if len(permissionIDs) == 0 {
		return menus, nil
	}
	err := r.db.WithContext(ctx).
		Model(&model.Menu{}).
		Distinct("menus.*").
		Joins("JOIN menu_permissions mp ON mp.menu_id = menus.menu_id").
		Where("mp.permission_id IN ?", permissionIDs).
		Find(&menus).Error
	return menus, err
}
