package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"backend-pm/internal/dto"
	"backend-pm/internal/model"
	"backend-pm/internal/repository"
	"backend-pm/pkg/redis"
)

// ── 用户模块业务错误 ──

var (
	ErrUserNotFound   = errors.New("用户不存在")
	ErrUsernameExists = errors.New("用户名已存在")
	ErrEmailExists    = errors.New("邮箱已被使用")
	ErrPhoneExists    = errors.New("手机号已被使用")
	ErrWrongPassword  = errors.New("原密码不正确")
)

// UserService 用户业务接口
type UserService interface {
	Create(ctx context.Context, req *dto.CreateUserRequest) (*dto.UserResponse, error)
	GetByID(ctx context.Context, id string) (*dto.UserResponse, error)
	GetDetail(ctx context.Context, id string) (*dto.UserDetailResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateUserRequest) (*dto.UserResponse, error)
	UpdateProfile(ctx context.Context, id string, req *dto.UpdateProfileRequest) (*dto.UserResponse, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, req *dto.UserListRequest) ([]dto.UserResponse, int64, error)

	// ── 状态管理 ──
	Activate(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error
	// Unlock 管理员解锁：清除锁定期限与失败计数
	Unlock(ctx context.Context, id string) error

	// ── 密码 ──
	ChangePassword(ctx context.Context, id string, req *dto.ChangePasswordRequest) error
	// ResetPassword 管理员重置密码，返回一次性临时密码
	ResetPassword(ctx context.Context, id string) (*dto.ResetPasswordResponse, error)

	// ── 角色分配 ──
	AssignRoles(ctx context.Context, userID string, roleIDs []string) error
	ListRoles(ctx context.Context, userID string) ([]dto.RoleResponse, error)

	// ── Excel 导入导出 ──
	ParseImportFile(reader io.Reader) ([]ImportUserRow, error)
	ImportUsers(ctx context.Context, rows []ImportUserRow) (*dto.ImportUserResponse, error)
	ExportUsers(ctx context.Context) (*excelize.File, error)
}

// ImportUserRow Excel 导入的单行数据
type ImportUserRow struct {
	Row      int
	Username string
	RealName string
	Email    string
	Phone    string
}

type userService struct {
	repo   *repository.Repository
	cache  *redis.Client
	logger *zap.Logger
}

// NewUserService 创建 UserService 实例
func NewUserService(repo *repository.Repository, cache *redis.Client, logger *zap.Logger) UserService {
	return &userService{repo: repo, cache: cache, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *userService) Create(ctx context.Context, req *dto.CreateUserRequest) (*dto.UserResponse, error) {
	if err := s.checkUnique(ctx, req.Username, req.Email, req.Phone); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}

	user := model.NewUser(req.Username, string(hash), req.Email, req.Phone)
	user.RealName = req.RealName

	if err := s.repo.User.Create(ctx, user); err != nil {
		s.logger.Error("创建用户失败", zap.Error(err))
		return nil, err
	}

	return toUserResponse(user), nil
}

// ────────────────────── GetByID / GetDetail ──────────────────────

func (s *userService) GetByID(ctx context.Context, id string) (*dto.UserResponse, error) {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return toUserResponse(user), nil
}

func (s *userService) GetDetail(ctx context.Context, id string) (*dto.UserDetailResponse, error) {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}

	roles, err := s.repo.User.ListRoles(ctx, id)
	if err != nil {
		s.logger.Error("查询用户角色失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	links, err := s.repo.User.ListDepartmentLinks(ctx, id)
	if err != nil {
		s.logger.Error("查询用户部门失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	deptIDs := make([]string, 0, len(links))
	primarySet := make(map[string]bool, len(links))
	for i := range links {
		deptIDs = append(deptIDs, links[i].DepartmentID)
		if links[i].IsPrimary {
			primarySet[links[i].DepartmentID] = true
		}
	}
	depts, err := s.repo.Department.ListByIDs(ctx, deptIDs)
	if err != nil {
		return nil, err
	}

	detail := &dto.UserDetailResponse{
		UserResponse: *toUserResponse(user),
		Roles:        make([]dto.RoleResponse, 0, len(roles)),
		Departments:  make([]dto.DepartmentMembership, 0, len(depts)),
	}
	for i := range roles {
		detail.Roles = append(detail.Roles, *toRoleResponse(&roles[i]))
	}
	for i := range depts {
		m := dto.DepartmentMembership{
			DepartmentResponse: *toDepartmentResponse(&depts[i]),
			IsPrimary:          primarySet[depts[i].DepartmentID],
		}
		detail.Departments = append(detail.Departments, m)
		if m.IsPrimary {
			primary := m.DepartmentResponse
			detail.PrimaryDepartment = &primary
		}
	}
	return detail, nil
}

// ────────────────────── Update / UpdateProfile ──────────────────────

func (s *userService) Update(ctx context.Context, id string, req *dto.UpdateUserRequest) (*dto.UserResponse, error) {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}

	email := user.Email
	if req.Email != nil && *req.Email != user.Email {
		exists, err := s.repo.User.EmailExists(ctx, *req.Email)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrEmailExists
		}
		email = *req.Email
	}
	phone := user.Phone
	if req.Phone != nil && *req.Phone != user.Phone {
		exists, err := s.repo.User.PhoneExists(ctx, *req.Phone)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrPhoneExists
		}
		phone = *req.Phone
	}
	user.UpdateContact(email, phone)

	if err := s.repo.User.Update(ctx, user); err != nil {
		s.logger.Error("更新用户失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return toUserResponse(user), nil
}

func (s *userService) UpdateProfile(ctx context.Context, id string, req *dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}

	realName := user.RealName
	if req.RealName != nil {
		realName = *req.RealName
	}
	avatar := user.Avatar
	if req.Avatar != nil {
		avatar = *req.Avatar
	}
	gender := user.Gender
	if req.Gender != nil {
		gender = model.Gender(*req.Gender)
	}
	birthday := user.Birthday
	if req.Birthday != nil {
		t, err := time.Parse("2006-01-02", *req.Birthday)
		if err != nil {
			return nil, err
		}
		birthday = &t
	}
	user.UpdateProfile(realName, avatar, gender, birthday)

	if err := s.repo.User.Update(ctx, user); err != nil {
		s.logger.Error("更新用户资料失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return toUserResponse(user), nil
}

// ────────────────────── Delete ──────────────────────

func (s *userService) Delete(ctx context.Context, id string) error {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return err
	}
	if err := user.SoftDelete(); err != nil {
		return err
	}
	if err := s.repo.User.Update(ctx, user); err != nil {
		s.logger.Error("删除用户失败", zap.String("id", id), zap.Error(err))
		return err
	}
	s.invalidateCache(ctx, id)
	return nil
}

// ────────────────────── List ──────────────────────

func (s *userService) List(ctx context.Context, req *dto.UserListRequest) ([]dto.UserResponse, int64, error) {
	users, total, err := s.repo.User.List(ctx, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出用户失败", zap.Error(err))
		return nil, 0, err
	}
	result := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		result = append(result, *toUserResponse(&users[i]))
	}
	return result, total, nil
}

// ────────────────────── 状态管理 ──────────────────────

func (s *userService) Activate(ctx context.Context, id string) error {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return err
	}
	user.Activate()
	return s.repo.User.Update(ctx, user)
}

func (s *userService) Deactivate(ctx context.Context, id string) error {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return err
	}
	user.Deactivate()
	if err := s.repo.User.Update(ctx, user); err != nil {
		return err
	}
	s.invalidateCache(ctx, id)
	return nil
}

func (s *userService) Unlock(ctx context.Context, id string) error {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return err
	}
	user.Unlock()
	return s.repo.User.Update(ctx, user)
}

// ────────────────────── 密码 ──────────────────────

func (s *userService) ChangePassword(ctx context.Context, id string, req *dto.ChangePasswordRequest) error {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)) != nil {
		return ErrWrongPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return err
	}
	user.ChangePassword(string(hash))

	if err := s.repo.User.Update(ctx, user); err != nil {
		s.logger.Error("修改密码失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

func (s *userService) ResetPassword(ctx context.Context, id string) (*dto.ResetPasswordResponse, error) {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}

	tempPassword, err := generateTempPassword()
	if err != nil {
		s.logger.Error("生成临时密码失败", zap.Error(err))
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}
	user.ChangePassword(string(hash))

	if err := s.repo.User.Update(ctx, user); err != nil {
		s.logger.Error("重置密码失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return &dto.ResetPasswordResponse{TempPassword: tempPassword}, nil
}

// ────────────────────── 角色分配 ──────────────────────

func (s *userService) AssignRoles(ctx context.Context, userID string, roleIDs []string) error {
	if _, err := s.getUser(ctx, userID); err != nil {
		return err
	}

	roleIDs = dedupStrings(roleIDs)
	roles, err := s.repo.Role.ListByIDs(ctx, roleIDs)
	if err != nil {
		s.logger.Error("批量查询角色失败", zap.Error(err))
		return err
	}
	if len(roles) != len(roleIDs) {
		return ErrRoleNotFound
	}

	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		return tx.User.ReplaceRoles(ctx, userID, roleIDs)
	})
	if err != nil {
		s.logger.Error("分配用户角色失败", zap.String("user_id", userID), zap.Error(err))
		return err
	}

	s.invalidateCache(ctx, userID)
	return nil
}

func (s *userService) ListRoles(ctx context.Context, userID string) ([]dto.RoleResponse, error) {
	if _, err := s.getUser(ctx, userID); err != nil {
		return nil, err
	}
	roles, err := s.repo.User.ListRoles(ctx, userID)
	if err != nil {
		s.logger.Error("查询用户角色失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	result := make([]dto.RoleResponse, 0, len(roles))
	for i := range roles {
		result = append(result, *toRoleResponse(&roles[i]))
	}
	return result, nil
}

// ────────────────────── ParseImportFile ──────────────────────

const maxImportRows = 1000

var (
	ErrImportNoData      = errors.New("Excel文件无数据行（第一行为表头）")
	ErrImportTooManyRows = fmt.Errorf("数据行数超过上限 %d 行", maxImportRows)
	ErrImportBadHeader   = errors.New("Excel表头缺少必要列（用户名/姓名/邮箱）")
)

// ParseImportFile 解析导入 Excel 文件，返回解析后的行数据
func (s *userService) ParseImportFile(reader io.Reader) ([]ImportUserRow, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("无法解析Excel文件: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	excelRows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("读取工作表失败: %w", err)
	}

	if len(excelRows) < 2 {
		return nil, ErrImportNoData
	}

	// 解析表头（支持灵活列序）
	colIndex := parseHeaderIndex(excelRows[0])
	if colIndex["username"] < 0 || colIndex["real_name"] < 0 || colIndex["email"] < 0 {
		return nil, ErrImportBadHeader
	}

	var rows []ImportUserRow
	for i := 1; i < len(excelRows); i++ {
		row := excelRows[i]
		item := ImportUserRow{Row: i + 1}

		if idx := colIndex["username"]; idx < len(row) {
			item.Username = strings.TrimSpace(row[idx])
		}
		if idx := colIndex["real_name"]; idx < len(row) {
			item.RealName = strings.TrimSpace(row[idx])
		}
		if idx := colIndex["email"]; idx < len(row) {
			item.Email = strings.TrimSpace(row[idx])
		}
		if idx := colIndex["phone"]; idx >= 0 && idx < len(row) {
			item.Phone = strings.TrimSpace(row[idx])
		}

		// 跳过全空行
		if item.Username == "" && item.RealName == "" && item.Email == "" && item.Phone == "" {
			continue
		}

		rows = append(rows, item)
	}

	if len(rows) == 0 {
		return nil, ErrImportNoData
	}
	if len(rows) > maxImportRows {
		return nil, ErrImportTooManyRows
	}

	return rows, nil
}

// parseHeaderIndex 解析 Excel 表头，返回列名 -> 列索引映射
func parseHeaderIndex(header []string) map[string]int {
	idx := map[string]int{
		"username":  -1,
		"real_name": -1,
		"email":     -1,
		"phone":     -1,
	}
	for i, h := range header {
		lower := strings.ToLower(strings.TrimSpace(h))
		switch {
		case lower == "用户名" || lower == "username":
			idx["username"] = i
		case lower == "姓名" || lower == "real_name" || lower == "name":
			idx["real_name"] = i
		case lower == "邮箱" || lower == "email":
			idx["email"] = i
		case lower == "手机号" || lower == "phone":
			idx["phone"] = i
		}
	}
	return idx
}

// ────────────────────── ImportUsers ──────────────────────

func (s *userService) ImportUsers(ctx context.Context, rows []ImportUserRow) (*dto.ImportUserResponse, error) {
	resp := &dto.ImportUserResponse{Total: len(rows)}

	for _, row := range rows {
		if row.Username == "" || row.RealName == "" {
			resp.Failed++
			resp.Errors = append(resp.Errors, dto.ImportUserError{
				Row: row.Row, Reason: "必填字段为空",
			})
			continue
		}

		if err := s.checkUnique(ctx, row.Username, row.Email, row.Phone); err != nil {
			resp.Failed++
			resp.Errors = append(resp.Errors, dto.ImportUserError{
				Row: row.Row, Reason: err.Error(),
			})
			continue
		}

		tempPassword, err := generateTempPassword()
		if err != nil {
			return nil, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}

		user := model.NewUser(row.Username, string(hash), row.Email, row.Phone)
		user.RealName = row.RealName
		if err := s.repo.User.Create(ctx, user); err != nil {
			s.logger.Error("导入用户失败", zap.String("username", row.Username), zap.Error(err))
			resp.Failed++
			resp.Errors = append(resp.Errors, dto.ImportUserError{
				Row: row.Row, Reason: "写入失败",
			})
			continue
		}
		resp.Success++
	}

	s.logger.Info("用户导入完成",
		zap.Int("total", resp.Total),
		zap.Int("success", resp.Success),
		zap.Int("failed", resp.Failed))
	return resp, nil
}

// ────────────────────── ExportUsers ──────────────────────

var exportHeaders = []string{"用户名", "姓名", "邮箱", "手机号", "状态", "创建时间"}

// ExportUsers 导出全部用户为 Excel 工作簿
func (s *userService) ExportUsers(ctx context.Context) (*excelize.File, error) {
	const pageSize = 500
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(exportHeaders))
	f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle)

	rowNum := 2
	for offset := 0; ; offset += pageSize {
		users, _, err := s.repo.User.List(ctx, offset, pageSize)
		if err != nil {
			s.logger.Error("导出用户失败", zap.Error(err))
			return nil, err
		}
		if len(users) == 0 {
			break
		}
		for i := range users {
			u := &users[i]
			values := []interface{}{
				u.Username, u.RealName, u.Email, u.Phone,
				string(u.Status), u.CreatedAt.Format("2006-01-02 15:04:05"),
			}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, rowNum)
				f.SetCellValue(sheet, cell, v)
			}
			rowNum++
		}
		if len(users) < pageSize {
			break
		}
	}

	return f, nil
}

// ── 内部辅助方法 ──

func (s *userService) getUser(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.User.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return user, nil
}

func (s *userService) checkUnique(ctx context.Context, username, email, phone string) error {
	exists, err := s.repo.User.UsernameExists(ctx, username)
	if err != nil {
		return err
	}
	if exists {
		return ErrUsernameExists
	}
	exists, err = s.repo.User.EmailExists(ctx, email)
	if err != nil {
		return err
	}
	if exists {
		return ErrEmailExists
	}
	exists, err = s.repo.User.PhoneExists(ctx, phone)
	if err != nil {
		return err
	}
	if exists {
		return ErrPhoneExists
	}
	return nil
}

func (s *userService) invalidateCache(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	s.cache.InvalidatePermissionCodes(ctx, userID)
}

// generateTempPassword 生成 16 位十六进制临时密码
func generateTempPassword() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func toUserResponse(u *model.User) *dto.UserResponse {
	resp := &dto.UserResponse{
		ID:        u.UserID,
		Username:  u.Username,
		Email:     u.Email,
		Phone:     u.Phone,
		Status:    string(u.Status),
		RealName:  u.RealName,
		Avatar:    u.Avatar,
		Gender:    int16(u.Gender),
		CreatedAt: u.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if u.LastLoginAt != nil {
		resp.LastLoginAt = u.LastLoginAt.Format("2006-01-02T15:04:05Z")
	}
	return resp
}
