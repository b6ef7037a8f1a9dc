package repository

import (
	"context"

	"gorm.io/gorm"

	"backend-pm/internal/model"
)

// PermissionRepository 权限数据访问接口
type PermissionRepository interface {
	Create(ctx context.Context, perm *model.Permission) error
	GetByID(ctx context.Context, id string) (*model.Permission, error)
	GetByCode(ctx context.Context, code string) (*model.Permission, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	GetByAPIResource(ctx context.Context, apiResource string) (*model.Permission, error)
	Update(ctx context.Context, perm *model.Permission) error
	ListAll(ctx context.Context) ([]model.Permission, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Permission, error)
	ListByGroup(ctx context.Context, groupID string) ([]model.Permission, error)
	ListByType(ctx context.Context, ptype model.PermissionType) ([]model.Permission, error)
}

// permissionRepo PermissionRepository 的 GORM 实现
type permissionRepo struct {
	db *gorm.DB
}

// NewPermissionRepo 创建 PermissionRepository 实例
func NewPermissionRepo(db *gorm.DB) PermissionRepository {
	return &permissionRepo{db: db}
}

func (r *permissionRepo) Create(ctx context.Context, perm *model.Permission) error {
	return r.db.WithContext(ctx).Create(perm).Error
}

func (r *permissionRepo) GetByID(ctx context.Context, id string) (*model.Permission, error) {
	var perm model.Permission
	err := r.db.WithContext(ctx).
		Where("permission_id = ?", id).
		First(&perm).Error
	if err != nil {
		return nil, err
	}
	return &perm, nil
}

func (r *permissionRepo) GetByCode(ctx context.Context, code string) (*model.Permission, error) {
	var perm model.Permission
	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&perm).Error
	if err != nil {
		return nil, err
	}
	return &perm, nil
}

func (r *permissionRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Permission{}).
		Where("code = ?", code).
		Count(&count).Error
	return count > 0, err
}

// GetByAPIResource 按 API 资源路径精确查找，供接口权限注册的幂等判定
func (r *permissionRepo) GetByAPIResource(ctx context.Context, apiResource string) (*model.Permission, error) {
	var perm model.Permission
	err := r.db.WithContext(ctx).
		Where("type = ? AND api_resource = ?", model.PermissionTypeAPI, apiResource).
		First(&perm).Error
	if err != nil {
		return nil, err
	}
	return &perm, nil
}

// Update 权限表无版本列，直接整行更新
func (r *permissionRepo) Update(ctx context.Context, perm *model.Permission) error {
	return r.db.WithContext(ctx).
		Model(perm).
		Select("*").
		Omit("permission_id", "created_at").
		Updates(perm).Error
}

func (r *permissionRepo) ListAll(ctx context.Context) ([]model.Permission, error) {
	var perms []model.Permission
	err := r.db.WithContext(ctx).
		Order("sort ASC, created_at ASC").
		Find(&perms).Error
	return perms, err
}

func (r *permissionRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Permission, error) {
	var perms []model.Permission
	if len(ids) == 0 {
		return perms, nil
	}
	err := r.db.WithContext(ctx).
		Where("permission_id IN ?", ids).
		Find(&perms).Error
	return perms, err
}

func (r *permissionRepo) ListByGroup(ctx context.Context, groupID string) ([]model.Permission, error) {
	var perms []model.Permission
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("sort ASC").
		Find(&perms).Error
	return perms, err
}

func (r *permissionRepo) ListByType(ctx context.Context, ptype model.PermissionType) ([]model.Permission, error) {
	var perms []model.Permission
	err := r.db.WithContext(ctx).
		Where("type = ?", ptype).
		Order("sort ASC").
		Find(&perms).Error
	return perms, err
}
