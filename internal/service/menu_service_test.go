package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"backend-pm/internal/model"
)

// ── 测试辅助 ──

func setupTestMenuService() (MenuService, *mockStore) {
	store := newMockStore()
	repo := newMockRepository(store)
	permSvc := NewPermissionService(repo, nil, zap.NewNop())
	svc := NewMenuService(repo, permSvc, zap.NewNop())
	return svc, store
}

func seedMenu(store *mockStore, name, code string, parent *model.Menu) *model.Menu {
	var parentID *string
	parentPath := ""
	if parent != nil {
		parentID = &parent.MenuID
		parentPath = parent.Path
	}
	m := model.NewMenu(name, code, model.MenuTypeMenu, "", "/"+code, parentID, parentPath)
	store.menus[m.MenuID] = m
	return m
}

// bindMenu 预置菜单与权限的绑定关系
func bindMenu(store *mockStore, menu *model.Menu, perms ...*model.Permission) {
	for _, p := range perms {
		store.perms[p.PermissionID] = p
		store.menuPerms[menu.MenuID] = append(store.menuPerms[menu.MenuID], p.PermissionID)
	}
}

// ── GetTreeForUser 测试 ──

func TestMenuService_GetTreeForUser_UnboundMenuHidden(t *testing.T) {
	svc, store := setupTestMenuService()

	// 启用且可见但未绑定任何权限的菜单
	seedMenu(store, "仪表盘", "dashboard", nil)
	user := seedUserWithRoles(store)

	tree, err := svc.GetTreeForUser(context.Background(), user.UserID)
	if err != nil {
		t.Fatalf("装配用户菜单树应成功: %v", err)
	}
	if len(tree) != 0 {
		t.Errorf("无任何授权的用户不应看到未绑定权限的菜单，实际=%d个根节点", len(tree))
	}
}

func TestMenuService_GetTreeForUser_GrantedIntersection(t *testing.T) {
	svc, store := setupTestMenuService()

	granted := seedMenu(store, "用户管理", "users", nil)
	denied := seedMenu(store, "系统设置", "settings", nil)
	pUser := model.NewPermission("用户菜单", "menu:users", model.PermissionTypeMenu, "")
	pSettings := model.NewPermission("设置菜单", "menu:settings", model.PermissionTypeMenu, "")
	bindMenu(store, granted, pUser)
	bindMenu(store, denied, pSettings)

	role := model.NewRole("角色", "r1", "", false, nil, "")
	grant(store, role, pUser)
	user := seedUserWithRoles(store, role)

	tree, err := svc.GetTreeForUser(context.Background(), user.UserID)
	if err != nil {
		t.Fatalf("装配用户菜单树应成功: %v", err)
	}
	if len(tree) != 1 || tree[0].Code != "users" {
		t.Fatalf("应仅可见授权绑定的菜单，实际=%+v", tree)
	}
}

func TestMenuService_GetTreeForUser_ExcludesHiddenAndDisabled(t *testing.T) {
	svc, store := setupTestMenuService()

	hidden := seedMenu(store, "隐藏菜单", "hidden", nil)
	hidden.SetVisibility(false)
	off := seedMenu(store, "禁用菜单", "off", nil)
	off.Disable()
	p := model.NewPermission("菜单权限", "menu:any", model.PermissionTypeMenu, "")
	bindMenu(store, hidden, p)
	bindMenu(store, off, p)

	role := model.NewRole("角色", "r1", "", false, nil, "")
	grant(store, role, p)
	user := seedUserWithRoles(store, role)

	tree, err := svc.GetTreeForUser(context.Background(), user.UserID)
	if err != nil {
		t.Fatalf("装配用户菜单树应成功: %v", err)
	}
	if len(tree) != 0 {
		t.Errorf("不可见与禁用的菜单即使已授权也不应出现，实际=%d个", len(tree))
	}
}

// ── GetTree 测试 ──

func TestMenuService_GetTree_SkipsDisabled(t *testing.T) {
	svc, store := setupTestMenuService()

	root := seedMenu(store, "系统", "system", nil)
	off := seedMenu(store, "停用菜单", "legacy", root)
	off.Disable()
	seedMenu(store, "用户管理", "users", root)

	tree, err := svc.GetTree(context.Background(), "")
	if err != nil {
		t.Fatalf("GetTree 应成功: %v", err)
	}
	if len(tree) != 1 || len(tree[0].Children) != 1 {
		t.Fatalf("禁用菜单不应出现在树中，实际=%+v", tree)
	}
	if tree[0].Children[0].Code != "users" {
		t.Errorf("期望仅保留 users，实际=%s", tree[0].Children[0].Code)
	}
}

func TestMenuService_GetTree_RootScoped(t *testing.T) {
	svc, store := setupTestMenuService()

	root := seedMenu(store, "系统", "system", nil)
	users := seedMenu(store, "用户管理", "users", root)
	seedMenu(store, "用户列表", "user-list", users)
	seedMenu(store, "系统设置", "settings", root)

	tree, err := svc.GetTree(context.Background(), users.MenuID)
	if err != nil {
		t.Fatalf("按根节点限定应成功: %v", err)
	}
	if len(tree) != 1 || tree[0].Code != "users" {
		t.Fatalf("期望以用户管理为根，实际=%+v", tree)
	}
	if len(tree[0].Children) != 1 || tree[0].Children[0].Code != "user-list" {
		t.Errorf("子树应仅含用户列表，实际=%+v", tree[0].Children)
	}

	if _, err := svc.GetTree(context.Background(), "9d4b2a7c-1e5f-4a8b-b3c6-7f2e8d901a4b"); !errors.Is(err, ErrMenuNotFound) {
		t.Errorf("未知根节点期望 ErrMenuNotFound，实际: %v", err)
	}
}

// ── BindPermissions 测试 ──

func TestMenuService_BindPermissions_Replace(t *testing.T) {
	svc, store := setupTestMenuService()

	menu := seedMenu(store, "用户管理", "users", nil)
	old := model.NewPermission("旧权限", "perm:old", model.PermissionTypeMenu, "")
	bindMenu(store, menu, old)

	next := model.NewPermission("新权限", "perm:new", model.PermissionTypeMenu, "")
	store.perms[next.PermissionID] = next

	if err := svc.BindPermissions(context.Background(), menu.MenuID, []string{next.PermissionID}); err != nil {
		t.Fatalf("绑定权限应成功: %v", err)
	}
	bound := store.menuPerms[menu.MenuID]
	if len(bound) != 1 || bound[0] != next.PermissionID {
		t.Errorf("绑定应全量替换旧集合，实际=%v", bound)
	}
}

func TestMenuService_BindPermissions_UnknownPermission(t *testing.T) {
	svc, store := setupTestMenuService()

	menu := seedMenu(store, "用户管理", "users", nil)
	err := svc.BindPermissions(context.Background(), menu.MenuID, []string{"3f1a9c5e-8b2d-4e6f-a7c0-5d9e1b3f8a2c"})
	if !errors.Is(err, ErrPermissionNotFound) {
		t.Errorf("绑定不存在的权限期望 ErrPermissionNotFound，实际: %v", err)
	}
}

// ── SetParent 测试 ──

func TestMenuService_SetParent_CascadesSubtreePaths(t *testing.T) {
	svc, store := setupTestMenuService()

	oldRoot := seedMenu(store, "旧目录", "old", nil)
	moved := seedMenu(store, "用户管理", "users", oldRoot)
	leaf := seedMenu(store, "用户列表", "user-list", moved)
	newRoot := seedMenu(store, "新目录", "new", nil)

	if _, err := svc.SetParent(context.Background(), moved.MenuID, &newRoot.MenuID); err != nil {
		t.Fatalf("变更父节点应成功: %v", err)
	}

	wantMoved := newRoot.Path + "/" + moved.MenuID
	if got := store.menus[moved.MenuID].Path; got != wantMoved {
		t.Errorf("节点路径未修正，期望=%s，实际=%s", wantMoved, got)
	}
	wantLeaf := wantMoved + "/" + leaf.MenuID
	if got := store.menus[leaf.MenuID].Path; got != wantLeaf {
		t.Errorf("子树路径未级联修正，期望=%s，实际=%s", wantLeaf, got)
	}
}

func TestMenuService_SetParent_CycleRejected(t *testing.T) {
	svc, store := setupTestMenuService()

	parent := seedMenu(store, "父菜单", "parent", nil)
	child := seedMenu(store, "子菜单", "child", parent)

	if _, err := svc.SetParent(context.Background(), parent.MenuID, &child.MenuID); !errors.Is(err, ErrCycleDetected) {
		t.Errorf("移动到自身子树下期望 ErrCycleDetected，实际: %v", err)
	}
	if _, err := svc.SetParent(context.Background(), parent.MenuID, &parent.MenuID); !errors.Is(err, ErrSelfParent) {
		t.Errorf("自引用期望 ErrSelfParent，实际: %v", err)
	}
}

// ── Delete 测试 ──

func TestMenuService_Delete_HasChildrenGuard(t *testing.T) {
	svc, store := setupTestMenuService()

	parent := seedMenu(store, "父菜单", "parent", nil)
	child := seedMenu(store, "子菜单", "child", parent)

	if err := svc.Delete(context.Background(), parent.MenuID); !errors.Is(err, ErrMenuHasChildren) {
		t.Errorf("存在子节点时删除期望 ErrMenuHasChildren，实际: %v", err)
	}
	if err := svc.Delete(context.Background(), child.MenuID); err != nil {
		t.Fatalf("删除叶子菜单应成功: %v", err)
	}
	if _, err := svc.GetByID(context.Background(), child.MenuID); !errors.Is(err, ErrMenuNotFound) {
		t.Errorf("删除后查询期望 ErrMenuNotFound，实际: %v", err)
	}
}
