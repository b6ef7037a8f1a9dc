package service

import (
	"context"
	"sort"
	"strings"

	"gorm.io/gorm"

	"backend-pm/internal/model"
	"backend-pm/internal/repository"
)

// mockStore 内存数据仓：五类实体与四张关联表共用，
// 便于联查型 Mock 方法（用户角色、角色权限等）直接访问
type mockStore struct {
	users map[string]*model.User
	roles map[string]*model.Role
	perms map[string]*model.Permission
	menus map[string]*model.Menu
	depts map[string]*model.Department

	userRoles map[string][]string               // userID -> roleIDs
	rolePerms map[string][]string               // roleID -> permissionIDs
	userDepts map[string][]model.UserDepartment // userID -> 关联行
	menuPerms map[string][]string               // menuID -> permissionIDs
}

func newMockStore() *mockStore {
	return &mockStore{
		users:     make(map[string]*model.User),
		roles:     make(map[string]*model.Role),
		perms:     make(map[string]*model.Permission),
		menus:     make(map[string]*model.Menu),
		depts:     make(map[string]*model.Department),
		userRoles: make(map[string][]string),
		rolePerms: make(map[string][]string),
		userDepts: make(map[string][]model.UserDepartment),
		menuPerms: make(map[string][]string),
	}
}

// newMockRepository 构建完全内存化的 Repository
// db 为空指针时 WithTx 退化为直接执行，事务语义由测试自行承担
func newMockRepository(store *mockStore) *repository.Repository {
	return &repository.Repository{
		User:       &mockUserRepo{store: store},
		Role:       &mockRoleRepo{store: store},
		Permission: &mockPermissionRepo{store: store},
		Menu:       &mockMenuRepo{store: store},
		Department: &mockDepartmentRepo{store: store},
	}
}

func deleted(d gorm.DeletedAt) bool { return d.Valid }

// ── Mock UserRepository ──

type mockUserRepo struct {
	store *mockStore
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.store.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.store.users[id]; ok && !deleted(u.DeletedAt) {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range m.store.users {
		if u.Username == username && !deleted(u.DeletedAt) {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) UsernameExists(_ context.Context, username string) (bool, error) {
	for _, u := range m.store.users {
		if u.Username == username && !deleted(u.DeletedAt) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepo) EmailExists(_ context.Context, email string) (bool, error) {
	if email == "" {
		return false, nil
	}
	for _, u := range m.store.users {
		if u.Email == email && !deleted(u.DeletedAt) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepo) PhoneExists(_ context.Context, phone string) (bool, error) {
	if phone == "" {
		return false, nil
	}
	for _, u := range m.store.users {
		if u.Phone == phone && !deleted(u.DeletedAt) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	user.Version++
	m.store.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) List(_ context.Context, offset, limit int) ([]model.User, int64, error) {
	var all []model.User
	for _, u := range m.store.users {
		if !deleted(u.DeletedAt) {
			all = append(all, *u)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Username < all[j].Username })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockUserRepo) ListByIDs(_ context.Context, ids []string) ([]model.User, error) {
	var result []model.User
	for _, id := range ids {
		if u, ok := m.store.users[id]; ok && !deleted(u.DeletedAt) {
			result = append(result, *u)
		}
	}
	return result, nil
}

func (m *mockUserRepo) ListRoles(_ context.Context, userID string) ([]model.Role, error) {
	var result []model.Role
	for _, rid := range m.store.userRoles[userID] {
		if r, ok := m.store.roles[rid]; ok && !deleted(r.DeletedAt) {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (m *mockUserRepo) ReplaceRoles(_ context.Context, userID string, roleIDs []string) error {
	m.store.userRoles[userID] = append([]string(nil), roleIDs...)
	return nil
}

func (m *mockUserRepo) ListDepartments(_ context.Context, userID string) ([]model.Department, error) {
	var result []model.Department
	for _, link := range m.store.userDepts[userID] {
		if d, ok := m.store.depts[link.DepartmentID]; ok && !deleted(d.DeletedAt) {
			result = append(result, *d)
		}
	}
	return result, nil
}

func (m *mockUserRepo) ListDepartmentLinks(_ context.Context, userID string) ([]model.UserDepartment, error) {
	return append([]model.UserDepartment(nil), m.store.userDepts[userID]...), nil
}

func (m *mockUserRepo) ReplaceDepartments(_ context.Context, userID string, links []model.UserDepartment) error {
	m.store.userDepts[userID] = append([]model.UserDepartment(nil), links...)
	return nil
}

func (m *mockUserRepo) SetPrimaryDepartment(_ context.Context, userID, departmentID string) error {
	links := m.store.userDepts[userID]
	for i := range links {
		links[i].IsPrimary = links[i].DepartmentID == departmentID
	}
	return nil
}

func (m *mockUserRepo) GetPrimaryDepartment(_ context.Context, userID string) (*model.Department, error) {
	for _, link := range m.store.userDepts[userID] {
		if link.IsPrimary {
			if d, ok := m.store.depts[link.DepartmentID]; ok && !deleted(d.DeletedAt) {
				return d, nil
			}
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) AddDepartment(_ context.Context, link *model.UserDepartment) error {
	m.store.userDepts[link.UserID] = append(m.store.userDepts[link.UserID], *link)
	return nil
}

func (m *mockUserRepo) RemoveDepartment(_ context.Context, userID, departmentID string) error {
	links := m.store.userDepts[userID]
	kept := links[:0]
	for _, l := range links {
		if l.DepartmentID != departmentID {
			kept = append(kept, l)
		}
	}
	m.store.userDepts[userID] = kept
	return nil
}

// ── Mock RoleRepository ──

type mockRoleRepo struct {
	store *mockStore
}

func (m *mockRoleRepo) Create(_ context.Context, role *model.Role) error {
	m.store.roles[role.RoleID] = role
	return nil
}

func (m *mockRoleRepo) GetByID(_ context.Context, id string) (*model.Role, error) {
	if r, ok := m.store.roles[id]; ok && !deleted(r.DeletedAt) {
		return r, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRoleRepo) GetByCode(_ context.Context, code string) (*model.Role, error) {
	for _, r := range m.store.roles {
		if r.Code == code && !deleted(r.DeletedAt) {
			return r, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRoleRepo) CodeExists(_ context.Context, code string) (bool, error) {
	for _, r := range m.store.roles {
		if r.Code == code && !deleted(r.DeletedAt) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRoleRepo) Update(_ context.Context, role *model.Role) error {
	role.Version++
	m.store.roles[role.RoleID] = role
	return nil
}

func (m *mockRoleRepo) ListAll(_ context.Context) ([]model.Role, error) {
	var result []model.Role
	for _, r := range m.store.roles {
		if !deleted(r.DeletedAt) {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Sort != result[j].Sort {
			return result[i].Sort < result[j].Sort
		}
		return strings.Compare(result[i].RoleID, result[j].RoleID) < 0
	})
	return result, nil
}

func (m *mockRoleRepo) ListEnabled(ctx context.Context) ([]model.Role, error) {
	all, _ := m.ListAll(ctx)
	result := all[:0]
	for _, r := range all {
		if r.IsEnabled {
			result = append(result, r)
		}
	}
	return result, nil
}

func (m *mockRoleRepo) ListByIDs(_ context.Context, ids []string) ([]model.Role, error) {
	var result []model.Role
	for _, id := range ids {
		if r, ok := m.store.roles[id]; ok && !deleted(r.DeletedAt) {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (m *mockRoleRepo) UpdatePaths(_ context.Context, paths map[string]string) error {
	for id, path := range paths {
		if r, ok := m.store.roles[id]; ok {
			r.Path = path
		}
	}
	return nil
}

func (m *mockRoleRepo) ReplacePermissions(_ context.Context, roleID string, permissionIDs []string) error {
	m.store.rolePerms[roleID] = append([]string(nil), permissionIDs...)
	return nil
}

func (m *mockRoleRepo) ListPermissions(_ context.Context, roleID string) ([]model.Permission, error) {
	var result []model.Permission
	for _, pid := range m.store.rolePerms[roleID] {
		if p, ok := m.store.perms[pid]; ok && !deleted(p.DeletedAt) {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *mockRoleRepo) ListPermissionsByRoleIDs(_ context.Context, roleIDs []string) ([]model.Permission, error) {
	seen := make(map[string]bool)
	var result []model.Permission
	for _, rid := range roleIDs {
		for _, pid := range m.store.rolePerms[rid] {
			if seen[pid] {
				continue
			}
			if p, ok := m.store.perms[pid]; ok && !deleted(p.DeletedAt) {
				seen[pid] = true
				result = append(result, *p)
			}
		}
	}
	return result, nil
}

func (m *mockRoleRepo) ListIDsByPermission(_ context.Context, permissionID string) ([]string, error) {
	var ids []string
	for rid, pids := range m.store.rolePerms {
		for _, pid := range pids {
			if pid == permissionID {
				ids = append(ids, rid)
				break
			}
		}
	}
	return ids, nil
}

func (m *mockRoleRepo) ListUsers(_ context.Context, roleID string) ([]model.User, error) {
	var result []model.User
	for uid, rids := range m.store.userRoles {
		for _, rid := range rids {
			if rid != roleID {
				continue
			}
			if u, ok := m.store.users[uid]; ok && !deleted(u.DeletedAt) {
				result = append(result, *u)
			}
			break
		}
	}
	return result, nil
}

func (m *mockRoleRepo) CountUsers(ctx context.Context, roleID string) (int64, error) {
	users, _ := m.ListUsers(ctx, roleID)
	return int64(len(users)), nil
}

// ── Mock PermissionRepository ──

type mockPermissionRepo struct {
	store *mockStore
}

func (m *mockPermissionRepo) Create(_ context.Context, perm *model.Permission) error {
	m.store.perms[perm.PermissionID] = perm
	return nil
}

func (m *mockPermissionRepo) GetByID(_ context.Context, id string) (*model.Permission, error) {
	if p, ok := m.store.perms[id]; ok && !deleted(p.DeletedAt) {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPermissionRepo) GetByCode(_ context.Context, code string) (*model.Permission, error) {
	for _, p := range m.store.perms {
		if p.Code == code && !deleted(p.DeletedAt) {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPermissionRepo) CodeExists(_ context.Context, code string) (bool, error) {
	for _, p := range m.store.perms {
		if p.Code == code && !deleted(p.DeletedAt) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockPermissionRepo) GetByAPIResource(_ context.Context, apiResource string) (*model.Permission, error) {
	for _, p := range m.store.perms {
		if p.Type == model.PermissionTypeAPI && p.APIResource == apiResource && !deleted(p.DeletedAt) {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPermissionRepo) Update(_ context.Context, perm *model.Permission) error {
	m.store.perms[perm.PermissionID] = perm
	return nil
}

func (m *mockPermissionRepo) ListAll(_ context.Context) ([]model.Permission, error) {
	var result []model.Permission
	for _, p := range m.store.perms {
		if !deleted(p.DeletedAt) {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

func (m *mockPermissionRepo) ListByIDs(_ context.Context, ids []string) ([]model.Permission, error) {
	var result []model.Permission
	for _, id := range ids {
		if p, ok := m.store.perms[id]; ok && !deleted(p.DeletedAt) {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *mockPermissionRepo) ListByGroup(_ context.Context, groupID string) ([]model.Permission, error) {
	var result []model.Permission
	for _, p := range m.store.perms {
		if p.GroupID != nil && *p.GroupID == groupID && !deleted(p.DeletedAt) {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *mockPermissionRepo) ListByType(_ context.Context, ptype model.PermissionType) ([]model.Permission, error) {
	var result []model.Permission
	for _, p := range m.store.perms {
		if p.Type == ptype && !deleted(p.DeletedAt) {
			result = append(result, *p)
		}
	}
	return result, nil
}

// ── Mock MenuRepository ──

type mockMenuRepo struct {
	store *mockStore
}

func (m *mockMenuRepo) Create(_ context.Context, menu *model.Menu) error {
	m.store.menus[menu.MenuID] = menu
	return nil
}

func (m *mockMenuRepo) GetByID(_ context.Context, id string) (*model.Menu, error) {
	if mn, ok := m.store.menus[id]; ok && !deleted(mn.DeletedAt) {
		return mn, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockMenuRepo) CodeExists(_ context.Context, code string) (bool, error) {
	for _, mn := range m.store.menus {
		if mn.Code == code && !deleted(mn.DeletedAt) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockMenuRepo) Update(_ context.Context, menu *model.Menu) error {
	menu.Version++
	m.store.menus[menu.MenuID] = menu
	return nil
}

func (m *mockMenuRepo) ListAll(_ context.Context) ([]model.Menu, error) {
	var result []model.Menu
	for _, mn := range m.store.menus {
		if !deleted(mn.DeletedAt) {
			result = append(result, *mn)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Sort != result[j].Sort {
			return result[i].Sort < result[j].Sort
		}
		return result[i].MenuID < result[j].MenuID
	})
	return result, nil
}

func (m *mockMenuRepo) ListEnabled(ctx context.Context) ([]model.Menu, error) {
	all, _ := m.ListAll(ctx)
	result := all[:0]
	for _, mn := range all {
		if mn.IsEnabled {
			result = append(result, mn)
		}
	}
	return result, nil
}

func (m *mockMenuRepo) UpdatePaths(_ context.Context, paths map[string]string) error {
	for id, path := range paths {
		if mn, ok := m.store.menus[id]; ok {
			mn.Path = path
		}
	}
	return nil
}

func (m *mockMenuRepo) HasChildren(_ context.Context, id string) (bool, error) {
	for _, mn := range m.store.menus {
		if mn.ParentID != nil && *mn.ParentID == id && !deleted(mn.DeletedAt) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockMenuRepo) ReplacePermissions(_ context.Context, menuID string, permissionIDs []string) error {
	m.store.menuPerms[menuID] = append([]string(nil), permissionIDs...)
	return nil
}

func (m *mockMenuRepo) ListPermissions(_ context.Context, menuID string) ([]model.Permission, error) {
	var result []model.Permission
	for _, pid := range m.store.menuPerms[menuID] {
		if p, ok := m.store.perms[pid]; ok && !deleted(p.DeletedAt) {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *mockMenuRepo) ListByPermissionIDs(_ context.Context, permissionIDs []string) ([]model.Menu, error) {
	want := make(map[string]bool, len(permissionIDs))
	for _, pid := range permissionIDs {
		want[pid] = true
	}
	var result []model.Menu
	for mid, pids := range m.store.menuPerms {
		for _, pid := range pids {
			if !want[pid] {
				continue
			}
			if mn, ok := m.store.menus[mid]; ok && !deleted(mn.DeletedAt) {
				result = append(result, *mn)
			}
			break
		}
	}
	return result, nil
}


// ── Mock DepartmentRepository ──

type mockDepartmentRepo struct {
	store *mockStore
}

func (m *mockDepartmentRepo) Create(_ context.Context, dept *model.Department) error {
	m.store.depts[dept.DepartmentID] = dept
	return nil
}

func (m *mockDepartmentRepo) GetByID(_ context.Context, id string) (*model.Department, error) {
	if d, ok := m.store.depts[id]; ok && !deleted(d.DeletedAt) {
		return d, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDepartmentRepo) CodeExists(_ context.Context, code string) (bool, error) {
	for _, d := range m.store.depts {
		if d.Code == code && !deleted(d.DeletedAt) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockDepartmentRepo) Update(_ context.Context, dept *model.Department) error {
	dept.Version++
	m.store.depts[dept.DepartmentID] = dept
	return nil
}

func (m *mockDepartmentRepo) ListAll(_ context.Context) ([]model.Department, error) {
	var result []model.Department
	for _, d := range m.store.depts {
		if !deleted(d.DeletedAt) {
			result = append(result, *d)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Sort != result[j].Sort {
			return result[i].Sort < result[j].Sort
		}
		return result[i].DepartmentID < result[j].DepartmentID
	})
	return result, nil
}

func (m *mockDepartmentRepo) ListEnabled(ctx context.Context) ([]model.Department, error) {
	all, _ := m.ListAll(ctx)
	result := all[:0]
	for _, d := range all {
		if d.IsEnabled {
			result = append(result, d)
		}
	}
	return result, nil
}

func (m *mockDepartmentRepo) ListByIDs(_ context.Context, ids []string) ([]model.Department, error) {
	var result []model.Department
	for _, id := range ids {
		if d, ok := m.store.depts[id]; ok && !deleted(d.DeletedAt) {
			result = append(result, *d)
		}
	}
	return result, nil
}

func (m *mockDepartmentRepo) ListByPathPrefix(_ context.Context, pathPrefix string) ([]model.Department, error) {
	var result []model.Department
	for _, d := range m.store.depts {
		if deleted(d.DeletedAt) {
			continue
		}
		if d.Path == pathPrefix || strings.HasPrefix(d.Path, pathPrefix+"/") {
			result = append(result, *d)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}

func (m *mockDepartmentRepo) UpdatePaths(_ context.Context, paths map[string]string) error {
	for id, path := range paths {
		if d, ok := m.store.depts[id]; ok {
			d.Path = path
		}
	}
	return nil
}

func (m *mockDepartmentRepo) HasChildren(_ context.Context, id string) (bool, error) {
	for _, d := range m.store.depts {
		if d.ParentID != nil && *d.ParentID == id && !deleted(d.DeletedAt) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockDepartmentRepo) CountUsers(_ context.Context, departmentID string) (int64, error) {
	var count int64
	for _, links := range m.store.userDepts {
		for _, l := range links {
			if l.DepartmentID == departmentID {
				count++
				break
			}
		}
	}
	return count, nil
}

func (m *mockDepartmentRepo) ListUsers(_ context.Context, departmentIDs []string) ([]model.User, error) {
	want := make(map[string]bool, len(departmentIDs))
	for _, id := range departmentIDs {
		want[id] = true
	}
	var result []model.User
	for uid, links := range m.store.userDepts {
		for _, l := range links {
			if !want[l.DepartmentID] {
				continue
			}
			if u, ok := m.store.users[uid]; ok && !deleted(u.DeletedAt) {
				result = append(result, *u)
			}
			break
		}
	}
	return result, nil
}
