//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"backend-pm/internal/model"
	"backend-pm/internal/repository"
	pkgerrors "backend-pm/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=backend_pm password=backend_pm_password dbname=backend_pm_test sslmode=disable TimeZone=Asia/Shanghai"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	// 自动迁移测试表结构
	err = testDB.AutoMigrate(
		&model.User{},
		&model.Role{},
		&model.Permission{},
		&model.Menu{},
		&model.Department{},
		&model.UserRole{},
		&model.RolePermission{},
		&model.UserDepartment{},
		&model.MenuPermission{},
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "AutoMigrate 失败: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.Exit(code)
}

func uniqueCode(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// ═══════════════════════════════════════════════════════════
// Test: Transaction
// ═══════════════════════════════════════════════════════════

var errAbortTx = errors.New("abort")

func TestWithTx_RollbackOnError(t *testing.T) {
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	role := model.NewRole("事务角色", uniqueCode("tx-rollback"), "", false, nil, "")
	err := repo.WithTx(ctx, func(txRepo *repository.Repository) error {
		if err := txRepo.Role.Create(ctx, role); err != nil {
			return err
		}
		return errAbortTx
	})
	if !errors.Is(err, errAbortTx) {
		t.Fatalf("期望事务回调错误透传，实际: %v", err)
	}

	if _, err := repo.Role.GetByID(ctx, role.RoleID); err == nil {
		testDB.Unscoped().Where("role_id = ?", role.RoleID).Delete(&model.Role{})
		t.Fatal("期望回滚后查不到角色，但实际查到了")
	}
}

func TestWithTx_Commit(t *testing.T) {
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	role := model.NewRole("事务角色", uniqueCode("tx-commit"), "", false, nil, "")
	err := repo.WithTx(ctx, func(txRepo *repository.Repository) error {
		return txRepo.Role.Create(ctx, role)
	})
	if err != nil {
		t.Fatalf("事务提交失败: %v", err)
	}
	defer testDB.Unscoped().Where("role_id = ?", role.RoleID).Delete(&model.Role{})

	found, err := repo.Role.GetByID(ctx, role.RoleID)
	if err != nil {
		t.Fatalf("提交后查询角色失败: %v", err)
	}
	if found.RoleID != role.RoleID {
		t.Errorf("ID 不匹配: expected %s, got %s", role.RoleID, found.RoleID)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Optimistic Lock
// ═══════════════════════════════════════════════════════════

func TestOptimisticLock_Role_ConflictDetected(t *testing.T) {
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	role := model.NewRole("并发角色", uniqueCode("lock"), "", false, nil, "")
	if err := repo.Role.Create(ctx, role); err != nil {
		t.Fatalf("创建角色失败: %v", err)
	}
	defer testDB.Unscoped().Where("role_id = ?", role.RoleID).Delete(&model.Role{})

	// 模拟并发：获取两份副本
	copy1, _ := repo.Role.GetByID(ctx, role.RoleID)
	copy2, _ := repo.Role.GetByID(ctx, role.RoleID)

	copy1.Description = "第一次更新"
	if err := repo.Role.Update(ctx, copy1); err != nil {
		t.Fatalf("第一次更新应成功: %v", err)
	}

	// 第二次更新应失败（version 已过期）
	copy2.Description = "第二次更新"
	err := repo.Role.Update(ctx, copy2)
	if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("期望 ErrOptimisticLock，得到: %v", err)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Path Cascade
// ═══════════════════════════════════════════════════════════

func TestRoleRepo_UpdatePaths_BatchWrite(t *testing.T) {
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	parent := model.NewRole("父角色", uniqueCode("path-p"), "", false, nil, "")
	if err := repo.Role.Create(ctx, parent); err != nil {
		t.Fatalf("创建父角色失败: %v", err)
	}
	child := model.NewRole("子角色", uniqueCode("path-c"), "", false, &parent.RoleID, parent.Path)
	if err := repo.Role.Create(ctx, child); err != nil {
		t.Fatalf("创建子角色失败: %v", err)
	}
	defer func() {
		testDB.Unscoped().Where("role_id IN ?", []string{parent.RoleID, child.RoleID}).Delete(&model.Role{})
	}()

	newPaths := map[string]string{
		child.RoleID: "relocated/" + child.RoleID,
	}
	if err := repo.Role.UpdatePaths(ctx, newPaths); err != nil {
		t.Fatalf("UpdatePaths 失败: %v", err)
	}

	found, err := repo.Role.GetByID(ctx, child.RoleID)
	if err != nil {
		t.Fatal(err)
	}
	if found.Path != "relocated/"+child.RoleID {
		t.Errorf("路径未更新，实际=%s", found.Path)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Soft Delete Visibility
// ═══════════════════════════════════════════════════════════

func TestUserRepo_SoftDeleteHiddenFromReads(t *testing.T) {
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	user := model.NewUser(uniqueCode("ghost"), "$2a$10$placeholder", "", "")
	if err := repo.User.Create(ctx, user); err != nil {
		t.Fatalf("创建用户失败: %v", err)
	}
	defer testDB.Unscoped().Where("user_id = ?", user.UserID).Delete(&model.User{})

	if err := user.SoftDelete(); err != nil {
		t.Fatal(err)
	}
	if err := repo.User.Update(ctx, user); err != nil {
		t.Fatalf("软删除更新失败: %v", err)
	}

	if _, err := repo.User.GetByID(ctx, user.UserID); err == nil {
		t.Error("软删除后的用户应对常规读取不可见")
	}

	exists, err := repo.User.UsernameExists(ctx, user.Username)
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("软删除后的用户名不应计入唯一性检查")
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Association Replace
// ═══════════════════════════════════════════════════════════

func TestRoleRepo_ReplacePermissions(t *testing.T) {
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	role := model.NewRole("授权角色", uniqueCode("assoc"), "", false, nil, "")
	if err := repo.Role.Create(ctx, role); err != nil {
		t.Fatal(err)
	}
	p1 := model.NewPermission("权限1", uniqueCode("perm1"), model.PermissionTypeOperation, "")
	p2 := model.NewPermission("权限2", uniqueCode("perm2"), model.PermissionTypeOperation, "")
	if err := repo.Permission.Create(ctx, p1); err != nil {
		t.Fatal(err)
	}
	if err := repo.Permission.Create(ctx, p2); err != nil {
		t.Fatal(err)
	}
	defer func() {
		testDB.Unscoped().Where("role_id = ?", role.RoleID).Delete(&model.RolePermission{})
		testDB.Unscoped().Where("permission_id IN ?", []string{p1.PermissionID, p2.PermissionID}).Delete(&model.Permission{})
		testDB.Unscoped().Where("role_id = ?", role.RoleID).Delete(&model.Role{})
	}()

	if err := repo.Role.ReplacePermissions(ctx, role.RoleID, []string{p1.PermissionID}); err != nil {
		t.Fatalf("首次授权失败: %v", err)
	}
	if err := repo.Role.ReplacePermissions(ctx, role.RoleID, []string{p2.PermissionID}); err != nil {
		t.Fatalf("二次授权失败: %v", err)
	}

	perms, err := repo.Role.ListPermissions(ctx, role.RoleID)
	if err != nil {
		t.Fatal(err)
	}
	if len(perms) != 1 || perms[0].PermissionID != p2.PermissionID {
		t.Errorf("授权应为全量替换，实际=%+v", perms)
	}
}
