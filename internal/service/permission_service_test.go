package service

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"backend-pm/config"
	"backend-pm/internal/dto"
	"backend-pm/internal/model"
	"backend-pm/pkg/redis"
)

// ── 测试辅助 ──

func setupTestPermissionService() (PermissionService, *mockStore) {
	store := newMockStore()
	repo := newMockRepository(store)
	svc := NewPermissionService(repo, nil, zap.NewNop())
	return svc, store
}

// seedUserWithRoles 预置一个用户及其角色/权限授予关系
func seedUserWithRoles(store *mockStore, roles ...*model.Role) *model.User {
	u := model.NewUser("alice", "$2a$10$hash", "alice@example.com", "")
	store.users[u.UserID] = u
	ids := make([]string, 0, len(roles))
	for _, r := range roles {
		store.roles[r.RoleID] = r
		ids = append(ids, r.RoleID)
	}
	store.userRoles[u.UserID] = ids
	return u
}

func grant(store *mockStore, role *model.Role, perms ...*model.Permission) {
	for _, p := range perms {
		store.perms[p.PermissionID] = p
		store.rolePerms[role.RoleID] = append(store.rolePerms[role.RoleID], p.PermissionID)
	}
}

// ── GetEffectivePermissions 测试 ──

func TestGetEffectivePermissions_UnionAndDedup(t *testing.T) {
	svc, store := setupTestPermissionService()

	r1 := model.NewRole("角色1", "r1", "", false, nil, "")
	r2 := model.NewRole("角色2", "r2", "", false, nil, "")
	shared := model.NewPermission("共享权限", "perm:shared", model.PermissionTypeOperation, "")
	only1 := model.NewPermission("独有权限", "perm:only1", model.PermissionTypeOperation, "")
	grant(store, r1, shared, only1)
	grant(store, r2, shared)
	user := seedUserWithRoles(store, r1, r2)

	perms, err := svc.GetEffectivePermissions(context.Background(), user.UserID)
	if err != nil {
		t.Fatalf("解析有效权限应成功: %v", err)
	}
	if len(perms) != 2 {
		t.Fatalf("两角色共享权限应去重，期望2个权限，实际=%d", len(perms))
	}
}

func TestGetEffectivePermissions_SkipsDisabledRole(t *testing.T) {
	svc, store := setupTestPermissionService()

	enabled := model.NewRole("启用角色", "r-on", "", false, nil, "")
	disabled := model.NewRole("禁用角色", "r-off", "", false, nil, "")
	disabled.IsEnabled = false
	pOn := model.NewPermission("可用", "perm:on", model.PermissionTypeOperation, "")
	pOff := model.NewPermission("不可用", "perm:off", model.PermissionTypeOperation, "")
	grant(store, enabled, pOn)
	grant(store, disabled, pOff)
	user := seedUserWithRoles(store, enabled, disabled)

	perms, err := svc.GetEffectivePermissions(context.Background(), user.UserID)
	if err != nil {
		t.Fatalf("解析有效权限应成功: %v", err)
	}
	if len(perms) != 1 || perms[0].Code != "perm:on" {
		t.Errorf("禁用角色的授权不应生效，实际=%+v", perms)
	}
}

func TestGetEffectivePermissions_SkipsDisabledPermission(t *testing.T) {
	svc, store := setupTestPermissionService()

	role := model.NewRole("角色", "r1", "", false, nil, "")
	p := model.NewPermission("禁用权限", "perm:x", model.PermissionTypeOperation, "")
	p.Disable()
	grant(store, role, p)
	user := seedUserWithRoles(store, role)

	perms, err := svc.GetEffectivePermissions(context.Background(), user.UserID)
	if err != nil {
		t.Fatalf("解析有效权限应成功: %v", err)
	}
	if len(perms) != 0 {
		t.Errorf("禁用权限不应生效，实际=%d个", len(perms))
	}
}

func TestGetEffectivePermissions_UnknownUserEmptyNotError(t *testing.T) {
	svc, _ := setupTestPermissionService()

	perms, err := svc.GetEffectivePermissions(context.Background(), "no-such-user")
	if err != nil {
		t.Fatalf("未知用户应返回空集而非错误: %v", err)
	}
	if len(perms) != 0 {
		t.Errorf("未知用户权限集应为空，实际=%d个", len(perms))
	}
}

// ── HasPermission 测试 ──

func TestHasPermission_CaseInsensitive(t *testing.T) {
	svc, store := setupTestPermissionService()

	role := model.NewRole("角色", "r1", "", false, nil, "")
	grant(store, role, model.NewPermission("用户列表", "User:List", model.PermissionTypeOperation, ""))
	user := seedUserWithRoles(store, role)

	for _, code := range []string{"User:List", "user:list", "USER:LIST"} {
		ok, err := svc.HasPermission(context.Background(), user.UserID, code)
		if err != nil {
			t.Fatalf("HasPermission(%s) 出错: %v", code, err)
		}
		if !ok {
			t.Errorf("编码比较应不区分大小写: %s", code)
		}
	}

	ok, _ := svc.HasPermission(context.Background(), user.UserID, "user:delete")
	if ok {
		t.Error("未授予的权限不应通过")
	}
}

// ── HasAPIPermission 测试 ──

func TestHasAPIPermission_ResourceOnlyMatch(t *testing.T) {
	svc, store := setupTestPermissionService()

	role := model.NewRole("角色", "r1", "", false, nil, "")
	api := model.NewPermission("用户接口", "api:users", model.PermissionTypeAPI, "")
	if err := api.SetAPIResource("/api/v1/users"); err != nil {
		t.Fatal(err)
	}
	grant(store, role, api)
	user := seedUserWithRoles(store, role)

	// 资源匹配即通过，HTTP 方法不参与判定
	for _, method := range []string{"GET", "POST", "DELETE"} {
		ok, err := svc.HasAPIPermission(context.Background(), user.UserID, "/api/v1/users", method)
		if err != nil {
			t.Fatalf("HasAPIPermission 出错: %v", err)
		}
		if !ok {
			t.Errorf("方法 %s 应通过资源级判定", method)
		}
	}

	ok, _ := svc.HasAPIPermission(context.Background(), user.UserID, "/api/v1/roles", "GET")
	if ok {
		t.Error("未授予的资源不应通过")
	}
}

// ── 缓存失效测试 ──

// newTestCache 启动内存 Redis 并构建缓存客户端
func newTestCache(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	cache, err := redis.NewClient(&config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	if err != nil {
		t.Fatalf("连接测试 Redis 失败: %v", err)
	}
	return cache
}

func TestPermissionService_Disable_InvalidatesHolderCache(t *testing.T) {
	store := newMockStore()
	repo := newMockRepository(store)
	cache := newTestCache(t)
	svc := NewPermissionService(repo, cache, zap.NewNop())

	role := model.NewRole("角色", "r1", "", false, nil, "")
	p := model.NewPermission("用户列表", "user:list", model.PermissionTypeOperation, "")
	grant(store, role, p)
	holder := seedUserWithRoles(store, role)

	outsider := model.NewUser("bob", "$2a$10$hash", "bob@example.com", "")
	store.users[outsider.UserID] = outsider

	ctx := context.Background()
	for _, uid := range []string{holder.UserID, outsider.UserID} {
		if err := cache.SetPermissionCodes(ctx, uid, []string{"user:list"}); err != nil {
			t.Fatalf("预热缓存失败: %v", err)
		}
	}

	if err := svc.Disable(ctx, p.PermissionID); err != nil {
		t.Fatalf("禁用权限应成功: %v", err)
	}

	if _, ok := cache.GetPermissionCodes(ctx, holder.UserID); ok {
		t.Error("禁用权限后持有者的权限缓存应被清除")
	}
	if _, ok := cache.GetPermissionCodes(ctx, outsider.UserID); !ok {
		t.Error("未持有该权限的用户缓存不应受影响")
	}
}

func TestPermissionService_Delete_InvalidatesHolderCache(t *testing.T) {
	store := newMockStore()
	repo := newMockRepository(store)
	cache := newTestCache(t)
	svc := NewPermissionService(repo, cache, zap.NewNop())

	role := model.NewRole("角色", "r1", "", false, nil, "")
	p := model.NewPermission("用户删除", "user:delete", model.PermissionTypeOperation, "")
	grant(store, role, p)
	holder := seedUserWithRoles(store, role)

	ctx := context.Background()
	if err := cache.SetPermissionCodes(ctx, holder.UserID, []string{"user:delete"}); err != nil {
		t.Fatalf("预热缓存失败: %v", err)
	}

	if err := svc.Delete(ctx, p.PermissionID); err != nil {
		t.Fatalf("删除权限应成功: %v", err)
	}
	if _, ok := cache.GetPermissionCodes(ctx, holder.UserID); ok {
		t.Error("删除权限后持有者的权限缓存应被清除")
	}
}

// ── RegisterAPIPermission 测试 ──

func TestRegisterAPIPermission_Idempotent(t *testing.T) {
	svc, _ := setupTestPermissionService()

	req := &dto.RegisterAPIPermissionRequest{Name: "用户接口", APIResource: "/api/v1/users"}
	first, err := svc.RegisterAPIPermission(context.Background(), req)
	if err != nil {
		t.Fatalf("首次注册应成功: %v", err)
	}
	second, err := svc.RegisterAPIPermission(context.Background(), req)
	if err != nil {
		t.Fatalf("重复注册应幂等: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("同资源重复注册应返回同一权限，%s != %s", first.ID, second.ID)
	}
}

func TestRegisterAPIPermission_CodeCollisionSuffix(t *testing.T) {
	svc, store := setupTestPermissionService()

	// 预置占用编码 api:api-v1-users 的权限
	taken := model.NewPermission("占位", "api:api-v1-users", model.PermissionTypeOperation, "")
	store.perms[taken.PermissionID] = taken

	resp, err := svc.RegisterAPIPermission(context.Background(), &dto.RegisterAPIPermissionRequest{
		Name: "用户接口", APIResource: "/api/v1/users",
	})
	if err != nil {
		t.Fatalf("注册应成功: %v", err)
	}
	if resp.Code != "api:api-v1-users-1" {
		t.Errorf("编码冲突应追加数字后缀，实际=%s", resp.Code)
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"/api/v1/users":     "api-v1-users",
		"/API/V1/Users/":    "api-v1-users",
		"users":             "users",
		"/a//b":             "a-b",
	}
	for in, want := range cases {
		if got := slugify(in); got != want {
			t.Errorf("slugify(%q)期望=%s，实际=%s", in, want, got)
		}
	}
}
