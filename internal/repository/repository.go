package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	User       UserRepository
	Role       RoleRepository
	Permission PermissionRepository
	Menu       MenuRepository
	Department DepartmentRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:         db,
		User:       NewUserRepo(db),
		Role:       NewRoleRepo(db),
		Permission: NewPermissionRepo(db),
		Menu:       NewMenuRepo(db),
		Department: NewDepartmentRepo(db),
	}
}

// WithTx 在单个数据库事务中执行 fn
// fn 收到绑定事务的 Repository；fn 返回错误时整体回滚。
// 树的级联路径更新与关联表的替换式写入都必须经由此方法执行，
// 保证"全部生效或全部不生效"。
// 并发的树变更不由引擎串行化，依赖存储层的事务隔离与乐观锁。
func (r *Repository) WithTx(ctx context.Context, fn func(txRepo *Repository) error) error {
	if r.db == nil {
		// 未绑定真实数据库（如内存实现）时退化为直接执行
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}
