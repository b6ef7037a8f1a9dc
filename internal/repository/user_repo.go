package repository

import (
	"context"

	"gorm.io/gorm"

	"backend-pm/internal/model"
	pkgerrors "backend-pm/pkg/errors"
)

// UserRepository 用户数据访问接口
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	PhoneExists(ctx context.Context, phone string) (bool, error)
	Update(ctx context.Context, user *model.User) error
	List(ctx context.Context, offset, limit int) ([]model.User, int64, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.User, error)

	// ── 角色关联 ──
	ListRoles(ctx context.Context, userID string) ([]model.Role, error)
	ReplaceRoles(ctx context.Context, userID string, roleIDs []string) error

	// ── 部门关联 ──
	ListDepartments(ctx context.Context, userID string) ([]model.Department, error)
	ListDepartmentLinks(ctx context.Context, userID string) ([]model.UserDepartment, error)
	ReplaceDepartments(ctx context.Context, userID string, links []model.UserDepartment) error
	SetPrimaryDepartment(ctx context.Context, userID, departmentID string) error
	GetPrimaryDepartment(ctx context.Context, userID string) (*model.Department, error)
	AddDepartment(ctx context.Context, link *model.UserDepartment) error
	RemoveDepartment(ctx context.Context, userID, departmentID string) error
}

// userRepo UserRepository 的 GORM 实现
type userRepo struct {
	db *gorm.DB
}

// NewUserRepo 创建 UserRepository 实例
func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("user_id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("username = ?", username).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("username = ?", username).
		Count(&count).Error
	return count > 0, err
}

func (r *userRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	if email == "" {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("email = ?", email).
		Count(&count).Error
	return count > 0, err
}

func (r *userRepo) PhoneExists(ctx context.Context, phone string) (bool, error) {
	if phone == "" {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("phone = ?", phone).
		Count(&count).Error
	return count > 0, err
}

func (r *userRepo) Update(ctx context.Context, user *model.User) error {
	oldVersion := user.Version
	user.Version = oldVersion + 1
	res := r.db.WithContext(ctx).
		Model(user).
		Where("version = ?", oldVersion).
		Select("*").
		Omit("user_id", "created_at").
		Updates(user)
	if res.Error != nil {
		user.Version = oldVersion
		return res.Error
	}
	if res.RowsAffected == 0 {
		user.Version = oldVersion
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

func (r *userRepo) List(ctx context.Context, offset, limit int) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	db := r.db.WithContext(ctx).Model(&model.User{})

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func (r *userRepo) ListByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	var users []model.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).
		Where("user_id IN ?", ids).
		Find(&users).Error
	return users, err
}

// ── 角色关联 ──

// ListRoles 返回用户关联的全部未删除角色
// 软删除角色由 roles 表的默认查询条件排除，悬挂关联行随之被过滤
func (r *userRepo) ListRoles(ctx context.Context, userID string) ([]model.Role, error) {
	var roles []model.Role
	err := r.db.WithContext(ctx).
		Model(&model.Role{}).
		Joins("JOIN user_roles ur ON ur.role_id = roles.role_id").
		Where("ur.user_id = ?", userID).
		Order("roles.sort ASC").
		Find(&roles).Error
	return roles, err
}

// ReplaceRoles 全量替换用户的角色集合（先清后插）
// 调用方负责置于 WithTx 事务内
func (r *userRepo) ReplaceRoles(ctx context.Context, userID string, roleIDs []string) error {
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&model.UserRole{}).Error; err != nil {
		return err
	}
	if len(roleIDs) == 0 {
		return nil
	}
	links := make([]model.UserRole, 0, len(roleIDs))
	for _, rid := range roleIDs {
		links = append(links, model.UserRole{UserID: userID, RoleID: rid})
	}
	return r.db.WithContext(ctx).Create(&links).Error
}

// ── 部门关联 ──

func (r *userRepo) ListDepartments(ctx context.Context, userID string) ([]model.Department, error) {
	var depts []model.Department
	err := r.db.WithContext(ctx).
		Model(&model.Department{}).
		Joins("JOIN user_departments ud ON ud.department_id = departments.department_id").
		Where("ud.user_id = ?", userID).
		Order("departments.sort ASC").
		Find(&depts).Error
	return depts, err
}

func (r *userRepo) ListDepartmentLinks(ctx context.Context, userID string) ([]model.UserDepartment, error) {
	var links []model.UserDepartment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&links).Error
	return links, err
}

func (r *userRepo) ReplaceDepartments(ctx context.Context, userID string, links []model.UserDepartment) error {
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&model.UserDepartment{}).Error; err != nil {
		return err
	}
	if len(links) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&links).Error
}

// SetPrimaryDepartment 原子切换主部门：先全部清除再设置目标行
func (r *userRepo) SetPrimaryDepartment(ctx context.Context, userID, departmentID string) error {
	if err := r.db.WithContext(ctx).
		Model(&model.UserDepartment{}).
		Where("user_id = ? AND is_primary", userID).
		Update("is_primary", false).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&model.UserDepartment{}).
		Where("user_id = ? AND department_id = ?", userID, departmentID).
		Update("is_primary", true).Error
}

func (r *userRepo) GetPrimaryDepartment(ctx context.Context, userID string) (*model.Department, error) {
	var dept model.Department
	err := r.db.WithContext(ctx).
		Model(&model.Department{}).
		Joins("JOIN user_departments ud ON ud.department_id = departments.department_id").
		Where("ud.user_id = ? AND ud.is_primary", userID).
		First(&dept).Error
	if err != nil {
		return nil, err
	}
	return &dept, nil
}

func (r *userRepo) AddDepartment(ctx context.Context, link *model.UserDepartment) error {
	return r.db.WithContext(ctx).Create(link).Error
}

func (r *userRepo) RemoveDepartment(ctx context.Context, userID, departmentID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND department_id = ?", userID, departmentID).
		Delete(&model.UserDepartment{}).Error
}
