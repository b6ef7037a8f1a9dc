package model

import (
	"testing"
	"time"
)

// ── 账户锁定状态机测试 ──

func TestRecordLoginFailure_LockAfterThreshold(t *testing.T) {
	u := NewUser("alice", "$2a$10$hash", "alice@example.com", "")

	for i := 0; i < DefaultMaxLoginFailures-1; i++ {
		u.RecordLoginFailure()
		if u.Status == UserStatusLocked {
			t.Fatalf("第%d次失败不应锁定", i+1)
		}
	}

	u.RecordLoginFailure()
	if u.Status != UserStatusLocked {
		t.Fatalf("第%d次失败应锁定，实际状态=%s", DefaultMaxLoginFailures, u.Status)
	}
	if u.LockoutEnd == nil {
		t.Fatal("锁定后 LockoutEnd 应被设置")
	}
	if !u.IsLocked() {
		t.Error("刚锁定时 IsLocked 应为 true")
	}
}

func TestRecordLoginFailure_NoExtensionWhileLocked(t *testing.T) {
	u := NewUser("alice", "$2a$10$hash", "", "")

	for i := 0; i < DefaultMaxLoginFailures; i++ {
		u.RecordLoginFailure()
	}
	firstEnd := *u.LockoutEnd

	// 已锁定状态下继续失败：计数增加，期限不延长
	u.RecordLoginFailure()
	if u.FailedLogins != DefaultMaxLoginFailures+1 {
		t.Errorf("期望失败计数=%d，实际=%d", DefaultMaxLoginFailures+1, u.FailedLogins)
	}
	if !u.LockoutEnd.Equal(firstEnd) {
		t.Error("已锁定状态下的失败不应延长 LockoutEnd")
	}
}

func TestIsLocked_LazyExpiry(t *testing.T) {
	u := NewUser("alice", "$2a$10$hash", "", "")
	for i := 0; i < DefaultMaxLoginFailures; i++ {
		u.RecordLoginFailure()
	}

	// 模拟锁定期限已过
	past := time.Now().UTC().Add(-time.Minute)
	u.LockoutEnd = &past

	if u.IsLocked() {
		t.Error("锁定期限已过时 IsLocked 应为 false")
	}
	// 惰性过期：状态字段不自动回迁
	if u.Status != UserStatusLocked {
		t.Errorf("过期锁定不应自动改写状态，实际=%s", u.Status)
	}
}

func TestIsLocked_NoEndMeansLocked(t *testing.T) {
	u := NewUser("alice", "$2a$10$hash", "", "")
	u.Status = UserStatusLocked
	u.LockoutEnd = nil

	if !u.IsLocked() {
		t.Error("无期限的锁定应视为锁定中")
	}
}

func TestUnlock_ResetsState(t *testing.T) {
	u := NewUser("alice", "$2a$10$hash", "", "")
	for i := 0; i < DefaultMaxLoginFailures; i++ {
		u.RecordLoginFailure()
	}

	u.Unlock()
	if u.Status != UserStatusActive {
		t.Errorf("解锁后期望状态=active，实际=%s", u.Status)
	}
	if u.LockoutEnd != nil {
		t.Error("解锁后 LockoutEnd 应被清除")
	}
	if u.FailedLogins != 0 {
		t.Errorf("解锁后失败计数应为0，实际=%d", u.FailedLogins)
	}
}

func TestRecordLoginSuccess_ResetsCounterAndStatus(t *testing.T) {
	u := NewUser("alice", "$2a$10$hash", "", "")
	for i := 0; i < DefaultMaxLoginFailures; i++ {
		u.RecordLoginFailure()
	}
	past := time.Now().UTC().Add(-time.Minute)
	u.LockoutEnd = &past // 锁定已过期，允许登录

	u.RecordLoginSuccess()
	if u.FailedLogins != 0 {
		t.Errorf("登录成功后失败计数应为0，实际=%d", u.FailedLogins)
	}
	if u.Status != UserStatusActive {
		t.Errorf("登录成功后状态应回迁为 active，实际=%s", u.Status)
	}
	if u.LastLoginAt == nil {
		t.Error("登录成功应记录 LastLoginAt")
	}
}

// ── 系统角色保护测试 ──

func TestSystemRole_RejectsMutations(t *testing.T) {
	r := NewRole("超级管理员", "admin", "", true, nil, "")

	if err := r.Update("改名", ""); err != ErrSystemRoleProtected {
		t.Errorf("系统角色 Update 应被拒绝，实际: %v", err)
	}
	if err := r.Disable(); err != ErrSystemRoleProtected {
		t.Errorf("系统角色 Disable 应被拒绝，实际: %v", err)
	}
	if err := r.SoftDelete(); err != ErrSystemRoleProtected {
		t.Errorf("系统角色 SoftDelete 应被拒绝，实际: %v", err)
	}
	if !r.IsEnabled {
		t.Error("被拒绝的操作不应产生副作用")
	}
}

func TestNewRole_InitialPath(t *testing.T) {
	root := NewRole("根角色", "root", "", false, nil, "")
	if root.Path != root.RoleID {
		t.Errorf("根节点路径应为自身ID，实际=%s", root.Path)
	}

	child := NewRole("子角色", "child", "", false, &root.RoleID, root.Path)
	want := root.RoleID + "/" + child.RoleID
	if child.Path != want {
		t.Errorf("子节点路径期望=%s，实际=%s", want, child.Path)
	}
}

func TestPermission_SetAPIResourceTypeGuard(t *testing.T) {
	p := NewPermission("用户列表", "user:list", PermissionTypeOperation, "")
	if err := p.SetAPIResource("/api/v1/users"); err != ErrNotAPIPermission {
		t.Errorf("非 API 权限设置资源路径应被拒绝，实际: %v", err)
	}

	api := NewPermission("用户接口", "api:users", PermissionTypeAPI, "")
	if err := api.SetAPIResource("/api/v1/users"); err != nil {
		t.Errorf("API 权限设置资源路径应成功: %v", err)
	}
	if api.APIResource != "/api/v1/users" {
		t.Errorf("期望资源路径=/api/v1/users，实际=%s", api.APIResource)
	}
}
