package repository

import (
	"context"

	"gorm.io/gorm"

	"backend-pm/internal/model"
	pkgerrors "backend-pm/pkg/errors"
)

// DepartmentRepository 部门数据访问接口
type DepartmentRepository interface {
	Create(ctx context.Context, dept *model.Department) error
	GetByID(ctx context.Context, id string) (*model.Department, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Update(ctx context.Context, dept *model.Department) error
	ListAll(ctx context.Context) ([]model.Department, error)
	ListEnabled(ctx context.Context) ([]model.Department, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Department, error)
	ListByPathPrefix(ctx context.Context, pathPrefix string) ([]model.Department, error)
	UpdatePaths(ctx context.Context, paths map[string]string) error
	HasChildren(ctx context.Context, id string) (bool, error)

	// ── 用户关联 ──
	CountUsers(ctx context.Context, departmentID string) (int64, error)
	ListUsers(ctx context.Context, departmentIDs []string) ([]model.User, error)
}

// departmentRepo DepartmentRepository 的 GORM 实现
type departmentRepo struct {
	db *gorm.DB
}

// NewDepartmentRepo 创建 DepartmentRepository 实例
func NewDepartmentRepo(db *gorm.DB) DepartmentRepository {
	return &departmentRepo{db: db}
}

func (r *departmentRepo) Create(ctx context.Context, dept *model.Department) error {
	return r.db.WithContext(ctx).Create(dept).Error
}

func (r *departmentRepo) GetByID(ctx context.Context, id string) (*model.Department, error) {
	var dept model.Department
	err := r.db.WithContext(ctx).
		Where("department_id = ?", id).
		First(&dept).Error
	if err != nil {
		return nil, err
	}
	return &dept, nil
}

func (r *departmentRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Department{}).
		Where("code = ?", code).
		Count(&count).Error
	return count > 0, err
}

// Update 带乐观锁的整行更新：版本不匹配时返回 ErrOptimisticLock
func (r *departmentRepo) Update(ctx context.Context, dept *model.Department) error {
	oldVersion := dept.Version
	dept.Version = oldVersion + 1
	res := r.db.WithContext(ctx).
		Model(dept).
		Where("version = ?", oldVersion).
		Select("*").
		Omit("department_id", "created_at").
		Updates(dept)
	if res.Error != nil {
		dept.Version = oldVersion
		return res.Error
	}
	if res.RowsAffected == 0 {
		dept.Version = oldVersion
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

func (r *departmentRepo) ListAll(ctx context.Context) ([]model.Department, error) {
	var depts []model.Department
	err := r.db.WithContext(ctx).
		Order("sort ASC, created_at ASC").
		Find(&depts).Error
	return depts, err
}

func (r *departmentRepo) ListEnabled(ctx context.Context) ([]model.Department, error) {
	var depts []model.Department
	err := r.db.WithContext(ctx).
		Where("is_enabled", true).
		Order("sort ASC, created_at ASC").
		Find(&depts).Error
	return depts, err
}

func (r *departmentRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Department, error) {
	var depts []model.Department
	if len(ids) == 0 {
		return depts, nil
	}
	err := r.db.WithContext(ctx).
		Where("department_id IN ?", ids).
		Find(&depts).Error
	return depts, err
}

// ListByPathPrefix 按物化路径前缀取整棵子树（含根自身）
func (r *departmentRepo) ListByPathPrefix(ctx context.Context, pathPrefix string) ([]model.Department, error) {
	var depts []model.Department
	err := r.db.WithContext(ctx).
		Where("path = ? OR path LIKE ?", pathPrefix, pathPrefix+"/%").
		Order("path ASC").
		Find(&depts).Error
	return depts, err
}

// UpdatePaths 批量写入级联重算后的物化路径
func (r *departmentRepo) UpdatePaths(ctx context.Context, paths map[string]string) error {
	for id, path := range paths {
		if err := r.db.WithContext(ctx).
			Model(&model.Department{}).
			Where("department_id = ?", id).
			Update("path", path).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *departmentRepo) HasChildren(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Department{}).
		Where("parent_id = ?", id).
		Count(&count).Error
	return count > 0, err
}

// ── 用户关联 ──

func (r *departmentRepo) CountUsers(ctx context.Context, departmentID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.UserDepartment{}).
		Where("department_id = ?", departmentID).
		Count(&count).Error
	return count, err
}

// ListUsers 取出任一给定部门下的用户（去重）
// 子树查询由服务层先按路径前缀展开部门集合再调用
func (r *departmentRepo) ListUsers(ctx context.Context, departmentIDs []string) ([]model.User, error) {
	var users []model.User
	if len(departmentIDs) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Distinct("users.*").
		Joins("JOIN user_departments ud ON ud.user_id = users.user_id").
		Where("ud.department_id IN ?", departmentIDs).
		Order("users.created_at ASC").
		Find(&users).Error
	return users, err
}
