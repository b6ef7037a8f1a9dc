package repository

import (
	"context"

	"gorm.io/gorm"

	"backend-pm/internal/model"
	pkgerrors "backend-pm/pkg/errors"
)

// RoleRepository 角色数据访问接口
type RoleRepository interface {
	Create(ctx context.Context, role *model.Role) error
	GetByID(ctx context.Context, id string) (*model.Role, error)
	GetByCode(ctx context.Context, code string) (*model.Role, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Update(ctx context.Context, role *model.Role) error
	ListAll(ctx context.Context) ([]model.Role, error)
	ListEnabled(ctx context.Context) ([]model.Role, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Role, error)
	UpdatePaths(ctx context.Context, paths map[string]string) error

	// ── 权限关联 ──
	ReplacePermissions(ctx context.Context, roleID string, permissionIDs []string) error
	ListPermissions(ctx context.Context, roleID string) ([]model.Permission, error)
	ListPermissionsByRoleIDs(ctx context.Context, roleIDs []string) ([]model.Permission, error)

	// ── 用户关联 ──
	ListUsers(ctx context.Context, roleID string) ([]model.User, error)
	ListIDsByPermission(ctx context.Context, permissionID string) ([]string, error)
	CountUsers(ctx context.Context, roleID string) (int64, error)
}

// roleRepo RoleRepository 的 GORM 实现
type roleRepo struct {
	db *gorm.DB
}

// NewRoleRepo 创建 RoleRepository 实例
func NewRoleRepo(db *gorm.DB) RoleRepository {
	return &roleRepo{db: db}
}

func (r *roleRepo) Create(ctx context.Context, role *model.Role) error {
	return r.db.WithContext(ctx).Create(role).Error
}

func (r *roleRepo) GetByID(ctx context.Context, id string) (*model.Role, error) {
	var role model.Role
	err := r.db.WithContext(ctx).
		Where("role_id = ?", id).
		First(&role).Error
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepo) GetByCode(ctx context.Context, code string) (*model.Role, error) {
	var role model.Role
	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&role).Error
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Role{}).
		Where("code = ?", code).
		Count(&count).Error
	return count > 0, err
}

// Update 带乐观锁的整行更新：版本不匹配时返回 ErrOptimisticLock
func (r *roleRepo) Update(ctx context.Context, role *model.Role) error {
	oldVersion := role.Version
	role.Version = oldVersion + 1
	res := r.db.WithContext(ctx).
		Model(role).
		Where("version = ?", oldVersion).
		Select("*").
		Omit("role_id", "created_at").
		Updates(role)
	if res.Error != nil {
		role.Version = oldVersion
		return res.Error
	}
	if res.RowsAffected == 0 {
		role.Version = oldVersion
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

func (r *roleRepo) ListAll(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	err := r.db.WithContext(ctx).
		Order("sort ASC, created_at ASC").
		Find(&roles).Error
	return roles, err
}

func (r *roleRepo) ListEnabled(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	err := r.db.WithContext(ctx).
		Where("is_enabled", true).
		Order("sort ASC, created_at ASC").
		Find(&roles).Error
	return roles, err
}

func (r *roleRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Role, error) {
	var roles []model.Role
	if len(ids) == 0 {
		return roles, nil
	}
	err := r.db.WithContext(ctx).
		Where("role_id IN ?", ids).
		Find(&roles).Error
	return roles, err
}

// UpdatePaths 批量写入级联重算后的物化路径
// 调用方负责置于 WithTx 事务内，保证整棵子树原子生效
func (r *roleRepo) UpdatePaths(ctx context.Context, paths map[string]string) error {
	for id, path := range paths {
		if err := r.db.WithContext(ctx).
			Model(&model.Role{}).
			Where("role_id = ?", id).
			Update("path", path).Error; err != nil {
			return err
		}
	}
	return nil
}

// ── 权限关联 ──

// ReplacePermissions 全量替换角色的权限集合（先清后插）
func (r *roleRepo) ReplacePermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	if err := r.db.WithContext(ctx).
		Where("role_id = ?", roleID).
		Delete(&model.RolePermission{}).Error; err != nil {
		return err
	}
	if len(permissionIDs) == 0 {
		return nil
	}
	links := make([]model.RolePermission, 0, len(permissionIDs))
	for _, pid := range permissionIDs {
		links = append(links, model.RolePermission{RoleID: roleID, PermissionID: pid})
	}
	return r.db.WithContext(ctx).Create(&links).Error
}

func (r *roleRepo) ListPermissions(ctx context.Context, roleID string) ([]model.Permission, error) {
	var perms []model.Permission
	err := r.db.WithContext(ctx).
		Model(&model.Permission{}).
		Joins("JOIN role_permissions rp ON rp.permission_id = permissions.permission_id").
		Where("rp.role_id = ?", roleID).
		Order("permissions.sort ASC").
		Find(&perms).Error
	return perms, err
}

// ListPermissionsByRoleIDs 一次查询取出多个角色关联的全部权限（可能含重复）
// 有效权限解析的去重与启用过滤由服务层完成
func (r *roleRepo) ListPermissionsByRoleIDs(ctx context.Context, roleIDs []string) ([]model.Permission, error) {
	var perms []model.Permission
	if len(roleIDs) == 0 {
		return perms, nil
	}
	err := r.db.WithContext(ctx).
		Model(&model.Permission{}).
		Distinct("permissions.*").
		Joins("JOIN role_permissions rp ON rp.permission_id = permissions.permission_id").
		Where("rp.role_id IN ?", roleIDs).
		Find(&perms).Error
	return perms, err
}

// ── 用户关联 ──

func (r *roleRepo) ListUsers(ctx context.Context, roleID string) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Joins("JOIN user_roles ur ON ur.user_id = users.user_id").
		Where("ur.role_id = ?", roleID).
		Order("users.created_at ASC").
		Find(&users).Error
	return users, err
}

func (r *roleRepo) ListIDsByPermission(ctx context.Context, permissionID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.RolePermission{}).
		Where("permission_id = ?", permissionID).
		Pluck("role_id", &ids).Error
	return ids, err
}

func (r *roleRepo) CountUsers(ctx context.Context, roleID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Joins("JOIN user_roles ur ON ur.user_id = users.user_id").
		Where("ur.role_id = ?", roleID).
		Count(&count).Error
	return count, err
}
