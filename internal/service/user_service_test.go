package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"backend-pm/internal/dto"
	"backend-pm/internal/model"
)

// ── 测试辅助 ──

func setupTestUserService() (UserService, *mockStore) {
	store := newMockStore()
	repo := newMockRepository(store)
	svc := NewUserService(repo, nil, zap.NewNop())
	return svc, store
}

// ── Create 测试 ──

func TestUserService_Create_Success(t *testing.T) {
	svc, _ := setupTestUserService()

	resp, err := svc.Create(context.Background(), &dto.CreateUserRequest{
		Username: "alice", Password: "secret123", Email: "alice@example.com",
	})
	if err != nil {
		t.Fatalf("创建用户应成功: %v", err)
	}
	if resp.Status != string(model.UserStatusActive) {
		t.Errorf("新用户状态应为 active，实际=%s", resp.Status)
	}
}

func TestUserService_Create_UniqueChecks(t *testing.T) {
	svc, _ := setupTestUserService()

	base := &dto.CreateUserRequest{
		Username: "alice", Password: "secret123",
		Email: "alice@example.com", Phone: "13800000000",
	}
	if _, err := svc.Create(context.Background(), base); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Create(context.Background(), &dto.CreateUserRequest{
		Username: "alice", Password: "secret123",
	})
	if !errors.Is(err, ErrUsernameExists) {
		t.Errorf("期望 ErrUsernameExists，实际: %v", err)
	}

	_, err = svc.Create(context.Background(), &dto.CreateUserRequest{
		Username: "bob", Password: "secret123", Email: "alice@example.com",
	})
	if !errors.Is(err, ErrEmailExists) {
		t.Errorf("期望 ErrEmailExists，实际: %v", err)
	}

	_, err = svc.Create(context.Background(), &dto.CreateUserRequest{
		Username: "carol", Password: "secret123", Phone: "13800000000",
	})
	if !errors.Is(err, ErrPhoneExists) {
		t.Errorf("期望 ErrPhoneExists，实际: %v", err)
	}
}

// ── ChangePassword 测试 ──

func TestUserService_ChangePassword(t *testing.T) {
	svc, store := setupTestUserService()

	hash, _ := bcrypt.GenerateFromPassword([]byte("old-pass"), bcrypt.MinCost)
	u := model.NewUser("alice", string(hash), "", "")
	store.users[u.UserID] = u

	err := svc.ChangePassword(context.Background(), u.UserID, &dto.ChangePasswordRequest{
		OldPassword: "wrong", NewPassword: "new-pass",
	})
	if !errors.Is(err, ErrWrongPassword) {
		t.Errorf("旧密码错误期望 ErrWrongPassword，实际: %v", err)
	}

	err = svc.ChangePassword(context.Background(), u.UserID, &dto.ChangePasswordRequest{
		OldPassword: "old-pass", NewPassword: "new-pass",
	})
	if err != nil {
		t.Fatalf("修改密码应成功: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("new-pass")) != nil {
		t.Error("新密码未生效")
	}
}

// ── ResetPassword 测试 ──

func TestUserService_ResetPassword_IssuesTempPassword(t *testing.T) {
	svc, store := setupTestUserService()

	hash, _ := bcrypt.GenerateFromPassword([]byte("old"), bcrypt.MinCost)
	u := model.NewUser("alice", string(hash), "", "")
	store.users[u.UserID] = u

	resp, err := svc.ResetPassword(context.Background(), u.UserID)
	if err != nil {
		t.Fatalf("重置密码应成功: %v", err)
	}
	if resp.TempPassword == "" {
		t.Fatal("应返回临时密码")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(resp.TempPassword)) != nil {
		t.Error("临时密码与存储哈希不匹配")
	}
}

// ── AssignRoles 测试 ──

func TestUserService_AssignRoles_ReplaceAndValidate(t *testing.T) {
	svc, store := setupTestUserService()

	u := model.NewUser("alice", "$2a$10$hash", "", "")
	store.users[u.UserID] = u
	r1 := model.NewRole("R1", "r1", "", false, nil, "")
	r2 := model.NewRole("R2", "r2", "", false, nil, "")
	store.roles[r1.RoleID] = r1
	store.roles[r2.RoleID] = r2

	if err := svc.AssignRoles(context.Background(), u.UserID, []string{r1.RoleID}); err != nil {
		t.Fatal(err)
	}
	if err := svc.AssignRoles(context.Background(), u.UserID, []string{r2.RoleID}); err != nil {
		t.Fatal(err)
	}

	roles, err := svc.ListRoles(context.Background(), u.UserID)
	if err != nil {
		t.Fatal(err)
	}
	if len(roles) != 1 || roles[0].Code != "r2" {
		t.Errorf("角色分配应为全量替换，实际=%+v", roles)
	}

	err = svc.AssignRoles(context.Background(), u.UserID, []string{"no-such-role"})
	if !errors.Is(err, ErrRoleNotFound) {
		t.Errorf("期望 ErrRoleNotFound，实际: %v", err)
	}
}

// ── GetDetail 测试 ──

func TestUserService_GetDetail_IncludesRolesAndPrimaryDepartment(t *testing.T) {
	svc, store := setupTestUserService()

	u := model.NewUser("alice", "$2a$10$hash", "", "")
	store.users[u.UserID] = u
	r := model.NewRole("成员", "member", "", false, nil, "")
	store.roles[r.RoleID] = r
	store.userRoles[u.UserID] = []string{r.RoleID}
	d := model.NewDepartment("技术部", "tech", "", nil, "")
	store.depts[d.DepartmentID] = d
	store.userDepts[u.UserID] = []model.UserDepartment{{UserID: u.UserID, DepartmentID: d.DepartmentID, IsPrimary: true}}

	detail, err := svc.GetDetail(context.Background(), u.UserID)
	if err != nil {
		t.Fatalf("GetDetail 应成功: %v", err)
	}
	if len(detail.Roles) != 1 || detail.Roles[0].Code != "member" {
		t.Errorf("角色缺失，实际=%+v", detail.Roles)
	}
	if detail.PrimaryDepartment == nil || detail.PrimaryDepartment.Code != "tech" {
		t.Errorf("主部门缺失，实际=%+v", detail.PrimaryDepartment)
	}
}

// ── 状态管理测试 ──

func TestUserService_Unlock(t *testing.T) {
	svc, store := setupTestUserService()

	u := model.NewUser("alice", "$2a$10$hash", "", "")
	for i := 0; i < model.DefaultMaxLoginFailures; i++ {
		u.RecordLoginFailure()
	}
	store.users[u.UserID] = u

	if err := svc.Unlock(context.Background(), u.UserID); err != nil {
		t.Fatalf("解锁应成功: %v", err)
	}
	if u.IsLocked() || u.FailedLogins != 0 {
		t.Error("解锁后应恢复可登录状态")
	}
}

// ── 列表分页测试 ──

func TestUserService_List_Pagination(t *testing.T) {
	svc, store := setupTestUserService()

	for _, name := range []string{"a", "b", "c"} {
		u := model.NewUser(name, "$2a$10$hash", "", "")
		store.users[u.UserID] = u
	}

	req := &dto.UserListRequest{}
	req.Page = 1
	req.PageSize = 2
	users, total, err := svc.List(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Errorf("期望总数=3，实际=%d", total)
	}
	if len(users) != 2 {
		t.Errorf("期望每页2条，实际=%d", len(users))
	}
}
