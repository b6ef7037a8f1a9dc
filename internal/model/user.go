package model

import (
	"time"

	"github.com/google/uuid"
)

// UserStatus 用户状态
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
	UserStatusLocked   UserStatus = "locked"
)

// Gender 性别：0未知 1男 2女
type Gender int16

const (
	GenderUnknown Gender = 0
	GenderMale    Gender = 1
	GenderFemale  Gender = 2
)

// 账户锁定策略：连续失败 DefaultMaxLoginFailures 次后锁定 DefaultLockoutDuration
const (
	DefaultMaxLoginFailures = 5
	DefaultLockoutDuration  = 30 * time.Minute
)

// User 用户表 — 对应 users
type User struct {
	UserID       string     `gorm:"type:uuid;primaryKey"            json:"user_id"`
	Username     string     `gorm:"type:varchar(50);not null"       json:"username"`
	PasswordHash string     `gorm:"type:varchar(255);not null"      json:"-"`
	Email        string     `gorm:"type:varchar(255)"               json:"email,omitempty"`
	Phone        string     `gorm:"type:varchar(20)"                json:"phone,omitempty"`
	Status       UserStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	FailedLogins int        `gorm:"not null;default:0"              json:"-"`
	LockoutEnd   *time.Time `json:"-"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`

	// 个人资料
	RealName string     `gorm:"type:varchar(100)" json:"real_name,omitempty"`
	Avatar   string     `gorm:"type:varchar(255)" json:"avatar,omitempty"`
	Gender   Gender     `gorm:"not null;default:0" json:"gender"`
	Birthday *time.Time `gorm:"type:date"         json:"birthday,omitempty"`

	VersionedModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// NewUser 创建用户：分配ID、默认激活状态
func NewUser(username, passwordHash, email, phone string) *User {
	return &User{
		UserID:       uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		Email:        email,
		Phone:        phone,
		Status:       UserStatusActive,
	}
}

// UpdateProfile 更新个人资料
func (u *User) UpdateProfile(realName, avatar string, gender Gender, birthday *time.Time) {
	u.RealName = realName
	u.Avatar = avatar
	u.Gender = gender
	u.Birthday = birthday
	u.Touch()
}

// ChangePassword 更新密码哈希
func (u *User) ChangePassword(newHash string) {
	u.PasswordHash = newHash
	u.Touch()
}

// UpdateContact 更新邮箱与手机号
func (u *User) UpdateContact(email, phone string) {
	u.Email = email
	u.Phone = phone
	u.Touch()
}

// Activate 启用账户
func (u *User) Activate() {
	u.Status = UserStatusActive
	u.Touch()
}

// Deactivate 停用账户
func (u *User) Deactivate() {
	u.Status = UserStatusInactive
	u.Touch()
}

// Lock 锁定账户至 now + duration
func (u *User) Lock(duration time.Duration) {
	end := time.Now().UTC().Add(duration)
	u.Status = UserStatusLocked
	u.LockoutEnd = &end
	u.Touch()
}

// Unlock 管理员解锁：恢复激活、清除锁定期限、清零失败计数
func (u *User) Unlock() {
	u.Status = UserStatusActive
	u.LockoutEnd = nil
	u.FailedLogins = 0
	u.Touch()
}

// RecordLoginFailure 按默认锁定策略记录一次登录失败
func (u *User) RecordLoginFailure() {
	u.RecordLoginFailureWith(DefaultMaxLoginFailures, DefaultLockoutDuration)
}

// RecordLoginFailureWith 记录一次登录失败
// 达到阈值时锁定；已锁定状态下继续计数但不延长锁定期限
func (u *User) RecordLoginFailureWith(maxFailures int, lockout time.Duration) {
	u.FailedLogins++
	if u.FailedLogins >= maxFailures && u.Status != UserStatusLocked {
		u.Lock(lockout)
	}
}

// RecordLoginSuccess 记录登录成功：清零失败计数、恢复激活状态
func (u *User) RecordLoginSuccess() {
	now := time.Now().UTC()
	u.LastLoginAt = &now
	u.FailedLogins = 0
	if u.Status == UserStatusLocked {
		u.Status = UserStatusActive
		u.LockoutEnd = nil
	}
}

// IsLocked 惰性过期判断：状态为锁定且期限未到（或无期限）才算锁定
// 过期的锁定在读取时视为已解锁，但状态字段不自动回迁
func (u *User) IsLocked() bool {
	return u.Status == UserStatusLocked &&
		(u.LockoutEnd == nil || u.LockoutEnd.After(time.Now().UTC()))
}

// SoftDelete 逻辑删除并停用
func (u *User) SoftDelete() error {
	u.Status = UserStatusInactive
	u.DeletedAt.Time = time.Now().UTC()
	u.DeletedAt.Valid = true
	u.Touch()
	return nil
}
