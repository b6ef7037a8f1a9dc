package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"backend-pm/internal/dto"
	"backend-pm/internal/model"
	"backend-pm/internal/repository"
	"backend-pm/pkg/redis"
)

// ── 权限模块业务错误 ──

var (
	ErrPermissionNotFound   = errors.New("权限不存在")
	ErrPermissionCodeExists = errors.New("权限编码已存在")
)

// PermissionService 权限业务与解析引擎接口
type PermissionService interface {
	Create(ctx context.Context, req *dto.CreatePermissionRequest) (*dto.PermissionResponse, error)
	GetByID(ctx context.Context, id string) (*dto.PermissionResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdatePermissionRequest) (*dto.PermissionResponse, error)
	Delete(ctx context.Context, id string) error
	Enable(ctx context.Context, id string) error
	Disable(ctx context.Context, id string) error
	List(ctx context.Context) ([]dto.PermissionResponse, error)
	ListByGroup(ctx context.Context, groupID string) ([]dto.PermissionResponse, error)

	// RegisterAPIPermission 按资源路径幂等注册接口权限
	// 已存在同资源的权限时直接返回既有记录，不重复创建
	RegisterAPIPermission(ctx context.Context, req *dto.RegisterAPIPermissionRequest) (*dto.PermissionResponse, error)

	// ── 解析引擎 ──

	// GetEffectivePermissions 解析用户有效权限：
	// 启用角色所授予的启用权限的并集，去重；未知用户返回空集而非错误
	GetEffectivePermissions(ctx context.Context, userID string) ([]model.Permission, error)
	// HasPermission 判断用户是否持有指定编码的权限（编码比较不区分大小写）
	HasPermission(ctx context.Context, userID, code string) (bool, error)
	// HasAPIPermission 判断用户是否可访问指定 API 资源
	// 仅按资源路径匹配；method 参数保留但不参与判定
	HasAPIPermission(ctx context.Context, userID, apiResource, method string) (bool, error)
}

type permissionService struct {
	repo   *repository.Repository
	cache  *redis.Client
	logger *zap.Logger
}

// NewPermissionService 创建 PermissionService 实例
func NewPermissionService(repo *repository.Repository, cache *redis.Client, logger *zap.Logger) PermissionService {
	return &permissionService{repo: repo, cache: cache, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *permissionService) Create(ctx context.Context, req *dto.CreatePermissionRequest) (*dto.PermissionResponse, error) {
	exists, err := s.repo.Permission.CodeExists(ctx, req.Code)
	if err != nil {
		s.logger.Error("查询权限编码失败", zap.Error(err))
		return nil, err
	}
	if exists {
		return nil, ErrPermissionCodeExists
	}

	perm := model.NewPermission(req.Name, req.Code, model.PermissionType(req.Type), req.Description)
	perm.GroupID = req.GroupID
	perm.Sort = req.Sort
	if req.APIResource != "" {
		if err := perm.SetAPIResource(req.APIResource); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Permission.Create(ctx, perm); err != nil {
		s.logger.Error("创建权限失败", zap.Error(err))
		return nil, err
	}

	return toPermissionResponse(perm), nil
}

// ────────────────────── GetByID ──────────────────────

func (s *permissionService) GetByID(ctx context.Context, id string) (*dto.PermissionResponse, error) {
	perm, err := s.getPermission(ctx, id)
	if err != nil {
		return nil, err
	}
	return toPermissionResponse(perm), nil
}

// ────────────────────── Update ──────────────────────

func (s *permissionService) Update(ctx context.Context, id string, req *dto.UpdatePermissionRequest) (*dto.PermissionResponse, error) {
	perm, err := s.getPermission(ctx, id)
	if err != nil {
		return nil, err
	}

	name := perm.Name
	if req.Name != nil {
		name = *req.Name
	}
	description := perm.Description
	if req.Description != nil {
		description = *req.Description
	}
	perm.Update(name, description)
	if req.GroupID != nil {
		perm.SetGroup(req.GroupID)
	}
	if req.Sort != nil {
		perm.SetSort(*req.Sort)
	}

	if err := s.repo.Permission.Update(ctx, perm); err != nil {
		s.logger.Error("更新权限失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return toPermissionResponse(perm), nil
}

// ────────────────────── Delete / Enable / Disable ──────────────────────

func (s *permissionService) Delete(ctx context.Context, id string) error {
	perm, err := s.getPermission(ctx, id)
	if err != nil {
		return err
	}
	if err := perm.SoftDelete(); err != nil {
		return err
	}
	if err := s.repo.Permission.Update(ctx, perm); err != nil {
		s.logger.Error("删除权限失败", zap.String("id", id), zap.Error(err))
		return err
	}
	s.invalidatePermissionHolders(ctx, id)
	return nil
}

func (s *permissionService) Enable(ctx context.Context, id string) error {
	perm, err := s.getPermission(ctx, id)
	if err != nil {
		return err
	}
	perm.Enable()
	if err := s.repo.Permission.Update(ctx, perm); err != nil {
		return err
	}
	s.invalidatePermissionHolders(ctx, id)
	return nil
}

func (s *permissionService) Disable(ctx context.Context, id string) error {
	perm, err := s.getPermission(ctx, id)
	if err != nil {
		return err
	}
	perm.Disable()
	if err := s.repo.Permission.Update(ctx, perm); err != nil {
		return err
	}
	// 禁用权限即时影响所有持有该权限的用户
	s.invalidatePermissionHolders(ctx, id)
	return nil
}

// invalidatePermissionHolders 使持有指定权限的全部用户的权限缓存失效
// 经授予该权限的角色定位成员；查询失败只告警，不阻断主流程
func (s *permissionService) invalidatePermissionHolders(ctx context.Context, permissionID string) {
	if s.cache == nil {
		return
	}
	roleIDs, err := s.repo.Role.ListIDsByPermission(ctx, permissionID)
	if err != nil {
		s.logger.Warn("查询权限所属角色失败，跳过缓存失效", zap.String("permission_id", permissionID), zap.Error(err))
		return
	}
	seen := make(map[string]bool)
	var userIDs []string
	for _, rid := range roleIDs {
		users, err := s.repo.Role.ListUsers(ctx, rid)
		if err != nil {
			s.logger.Warn("查询角色用户失败，跳过缓存失效", zap.String("role_id", rid), zap.Error(err))
			return
		}
		for i := range users {
			if !seen[users[i].UserID] {
				seen[users[i].UserID] = true
				userIDs = append(userIDs, users[i].UserID)
			}
		}
	}
	s.cache.InvalidatePermissionCodes(ctx, userIDs...)
}

// ────────────────────── List ──────────────────────

func (s *permissionService) List(ctx context.Context) ([]dto.PermissionResponse, error) {
	perms, err := s.repo.Permission.ListAll(ctx)
	if err != nil {
		s.logger.Error("列出权限失败", zap.Error(err))
		return nil, err
	}
	return toPermissionResponses(perms), nil
}

func (s *permissionService) ListByGroup(ctx context.Context, groupID string) ([]dto.PermissionResponse, error) {
	perms, err := s.repo.Permission.ListByGroup(ctx, groupID)
	if err != nil {
		s.logger.Error("按分组列出权限失败", zap.String("group_id", groupID), zap.Error(err))
		return nil, err
	}
	return toPermissionResponses(perms), nil
}

// ────────────────────── RegisterAPIPermission ──────────────────────

func (s *permissionService) RegisterAPIPermission(ctx context.Context, req *dto.RegisterAPIPermissionRequest) (*dto.PermissionResponse, error) {
	// 幂等：同资源路径的注册返回既有权限
	existing, err := s.repo.Permission.GetByAPIResource(ctx, req.APIResource)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询接口权限失败", zap.Error(err))
		return nil, err
	}
	if existing != nil {
		return toPermissionResponse(existing), nil
	}

	code, err := s.nextAPICode(ctx, req.APIResource)
	if err != nil {
		return nil, err
	}

	perm := model.NewPermission(req.Name, code, model.PermissionTypeAPI, req.Description)
	if err := perm.SetAPIResource(req.APIResource); err != nil {
		return nil, err
	}

	if err := s.repo.Permission.Create(ctx, perm); err != nil {
		s.logger.Error("注册接口权限失败", zap.String("api_resource", req.APIResource), zap.Error(err))
		return nil, err
	}

	s.logger.Info("注册接口权限",
		zap.String("code", perm.Code),
		zap.String("api_resource", perm.APIResource))
	return toPermissionResponse(perm), nil
}

// nextAPICode 由资源路径派生权限编码，冲突时追加数字后缀
func (s *permissionService) nextAPICode(ctx context.Context, apiResource string) (string, error) {
	base := "api:" + slugify(apiResource)
	code := base
	for i := 1; ; i++ {
		exists, err := s.repo.Permission.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
		code = fmt.Sprintf("%s-%d", base, i)
	}
}

// slugify 将资源路径压缩为编码片段：小写，非字母数字折叠为连字符
func slugify(resource string) string {
	var b strings.Builder
	lastDash := true // 抑制前导连字符
	for _, r := range strings.ToLower(resource) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// ────────────────────── 解析引擎 ──────────────────────

func (s *permissionService) GetEffectivePermissions(ctx context.Context, userID string) ([]model.Permission, error) {
	// 未知用户返回空集：权限判定路径不暴露用户存在性
	if _, err := s.repo.User.GetByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []model.Permission{}, nil
		}
		return nil, err
	}

	roles, err := s.repo.User.ListRoles(ctx, userID)
	if err != nil {
		s.logger.Error("查询用户角色失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	// 仅启用角色参与授权
	roleIDs := make([]string, 0, len(roles))
	for i := range roles {
		if roles[i].IsEnabled {
			roleIDs = append(roleIDs, roles[i].RoleID)
		}
	}
	if len(roleIDs) == 0 {
		s.refreshCodeCache(ctx, userID, nil)
		return []model.Permission{}, nil
	}

	perms, err := s.repo.Role.ListPermissionsByRoleIDs(ctx, roleIDs)
	if err != nil {
		s.logger.Error("查询角色权限失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	// 启用过滤 + 按ID去重（多角色可能授予同一权限）
	seen := make(map[string]bool, len(perms))
	effective := make([]model.Permission, 0, len(perms))
	for i := range perms {
		if !perms[i].IsEnabled || seen[perms[i].PermissionID] {
			continue
		}
		seen[perms[i].PermissionID] = true
		effective = append(effective, perms[i])
	}

	codes := make([]string, 0, len(effective))
	for i := range effective {
		codes = append(codes, effective[i].Code)
	}
	s.refreshCodeCache(ctx, userID, codes)

	return effective, nil
}

func (s *permissionService) HasPermission(ctx context.Context, userID, code string) (bool, error) {
	if s.cache != nil {
		if codes, ok := s.cache.GetPermissionCodes(ctx, userID); ok {
			return containsFold(codes, code), nil
		}
	}

	perms, err := s.GetEffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for i := range perms {
		if strings.EqualFold(perms[i].Code, code) {
			return true, nil
		}
	}
	return false, nil
}

func (s *permissionService) HasAPIPermission(ctx context.Context, userID, apiResource, method string) (bool, error) {
	_ = method // HTTP 方法当前不参与判定，保留参数便于演进

	perms, err := s.GetEffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for i := range perms {
		if perms[i].Type == model.PermissionTypeAPI && perms[i].APIResource == apiResource {
			return true, nil
		}
	}
	return false, nil
}

// ── 内部辅助方法 ──

func (s *permissionService) getPermission(ctx context.Context, id string) (*model.Permission, error) {
	perm, err := s.repo.Permission.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPermissionNotFound
		}
		s.logger.Error("查询权限失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return perm, nil
}

func (s *permissionService) refreshCodeCache(ctx context.Context, userID string, codes []string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetPermissionCodes(ctx, userID, codes); err != nil {
		s.logger.Warn("写入权限缓存失败", zap.String("user_id", userID), zap.Error(err))
	}
}

func containsFold(codes []string, code string) bool {
	for _, c := range codes {
		if strings.EqualFold(c, code) {
			return true
		}
	}
	return false
}

// NewEffectivePermissionsResponse 将有效权限集装配为响应 DTO
func NewEffectivePermissionsResponse(userID string, perms []model.Permission) *dto.EffectivePermissionsResponse {
	codes := make([]string, 0, len(perms))
	for i := range perms {
		codes = append(codes, perms[i].Code)
	}
	return &dto.EffectivePermissionsResponse{
		UserID:      userID,
		Permissions: toPermissionResponses(perms),
		Codes:       codes,
	}
}

func toPermissionResponse(p *model.Permission) *dto.PermissionResponse {
	return &dto.PermissionResponse{
		ID:          p.PermissionID,
		Name:        p.Name,
		Code:        p.Code,
		Type:        int16(p.Type),
		Description: p.Description,
		GroupID:     p.GroupID,
		APIResource: p.APIResource,
		IsEnabled:   p.IsEnabled,
		Sort:        p.Sort,
		CreatedAt:   p.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func toPermissionResponses(perms []model.Permission) []dto.PermissionResponse {
	result := make([]dto.PermissionResponse, 0, len(perms))
	for i := range perms {
		result = append(result, *toPermissionResponse(&perms[i]))
	}
	return result
}
