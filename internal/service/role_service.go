package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"backend-pm/internal/dto"
	"backend-pm/internal/model"
	"backend-pm/internal/repository"
	"backend-pm/pkg/redis"
)

// ── 角色模块业务错误 ──

var (
	ErrRoleNotFound       = errors.New("角色不存在")
	ErrRoleCodeExists     = errors.New("角色编码已存在")
	ErrRoleInUse          = errors.New("角色已分配给用户，无法删除")
	ErrParentRoleNotFound = errors.New("父角色不存在")
)

// RoleService 角色业务接口
type RoleService interface {
	Create(ctx context.Context, req *dto.CreateRoleRequest) (*dto.RoleResponse, error)
	GetByID(ctx context.Context, id string) (*dto.RoleResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateRoleRequest) (*dto.RoleResponse, error)
	Delete(ctx context.Context, id string) error
	Enable(ctx context.Context, id string) error
	Disable(ctx context.Context, id string) error
	List(ctx context.Context) ([]dto.RoleResponse, error)
	// GetTree 装配启用角色的层级树，rootID 非空时仅返回该角色的子树
	GetTree(ctx context.Context, rootID string) ([]dto.RoleTreeNode, error)
	// SetParent 变更父节点并级联修正整棵子树的物化路径
	SetParent(ctx context.Context, id string, parentID *string) (*dto.RoleResponse, error)
	// AssignPermissions 全量替换角色的权限集合
	AssignPermissions(ctx context.Context, roleID string, permissionIDs []string) error
	ListPermissions(ctx context.Context, roleID string) ([]dto.PermissionResponse, error)
	ListUsers(ctx context.Context, roleID string) ([]dto.UserResponse, error)
}

type roleService struct {
	repo   *repository.Repository
	cache  *redis.Client
	logger *zap.Logger
}

// NewRoleService 创建 RoleService 实例
func NewRoleService(repo *repository.Repository, cache *redis.Client, logger *zap.Logger) RoleService {
	return &roleService{repo: repo, cache: cache, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *roleService) Create(ctx context.Context, req *dto.CreateRoleRequest) (*dto.RoleResponse, error) {
	exists, err := s.repo.Role.CodeExists(ctx, req.Code)
	if err != nil {
		s.logger.Error("查询角色编码失败", zap.Error(err))
		return nil, err
	}
	if exists {
		return nil, ErrRoleCodeExists
	}

	var parentPath string
	if req.ParentID != nil {
		parent, err := s.repo.Role.GetByID(ctx, *req.ParentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrParentRoleNotFound
			}
			return nil, err
		}
		parentPath = parent.Path
	}

	role := model.NewRole(req.Name, req.Code, req.Description, false, req.ParentID, parentPath)
	role.Sort = req.Sort

	if err := s.repo.Role.Create(ctx, role); err != nil {
		s.logger.Error("创建角色失败", zap.Error(err))
		return nil, err
	}

	return toRoleResponse(role), nil
}

// ────────────────────── GetByID ──────────────────────

func (s *roleService) GetByID(ctx context.Context, id string) (*dto.RoleResponse, error) {
	role, err := s.getRole(ctx, id)
	if err != nil {
		return nil, err
	}
	return toRoleResponse(role), nil
}

// ────────────────────── Update ──────────────────────

func (s *roleService) Update(ctx context.Context, id string, req *dto.UpdateRoleRequest) (*dto.RoleResponse, error) {
	role, err := s.getRole(ctx, id)
	if err != nil {
		return nil, err
	}

	name := role.Name
	if req.Name != nil {
		name = *req.Name
	}
	description := role.Description
	if req.Description != nil {
		description = *req.Description
	}
	if err := role.Update(name, description); err != nil {
		return nil, err
	}
	if req.Sort != nil {
		role.SetSort(*req.Sort)
	}

	if err := s.repo.Role.Update(ctx, role); err != nil {
		s.logger.Error("更新角色失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return toRoleResponse(role), nil
}

// ────────────────────── Delete ──────────────────────

func (s *roleService) Delete(ctx context.Context, id string) error {
	role, err := s.getRole(ctx, id)
	if err != nil {
		return err
	}

	count, err := s.repo.Role.CountUsers(ctx, id)
	if err != nil {
		s.logger.Error("查询角色用户数失败", zap.String("id", id), zap.Error(err))
		return err
	}
	if count > 0 {
		return ErrRoleInUse
	}

	if err := role.SoftDelete(); err != nil {
		return err
	}
	if err := s.repo.Role.Update(ctx, role); err != nil {
		s.logger.Error("删除角色失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── Enable / Disable ──────────────────────

func (s *roleService) Enable(ctx context.Context, id string) error {
	role, err := s.getRole(ctx, id)
	if err != nil {
		return err
	}
	role.Enable()
	if err := s.repo.Role.Update(ctx, role); err != nil {
		return err
	}
	s.invalidateRoleUsers(ctx, id)
	return nil
}

func (s *roleService) Disable(ctx context.Context, id string) error {
	role, err := s.getRole(ctx, id)
	if err != nil {
		return err
	}
	if err := role.Disable(); err != nil {
		return err
	}
	if err := s.repo.Role.Update(ctx, role); err != nil {
		return err
	}
	// 禁用角色即时影响其成员的有效权限
	s.invalidateRoleUsers(ctx, id)
	return nil
}

// ────────────────────── List / GetTree ──────────────────────

func (s *roleService) List(ctx context.Context) ([]dto.RoleResponse, error) {
	roles, err := s.repo.Role.ListAll(ctx)
	if err != nil {
		s.logger.Error("列出角色失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.RoleResponse, 0, len(roles))
	for i := range roles {
		result = append(result, *toRoleResponse(&roles[i]))
	}
	return result, nil
}

func (s *roleService) GetTree(ctx context.Context, rootID string) ([]dto.RoleTreeNode, error) {
	roles, err := s.repo.Role.ListEnabled(ctx)
	if err != nil {
		s.logger.Error("列出角色失败", zap.Error(err))
		return nil, err
	}
	nodes := make([]*model.Role, 0, len(roles))
	for i := range roles {
		nodes = append(nodes, &roles[i])
	}
	if rootID != "" {
		scoped, ok := scopeToSubtree(nodes, rootID)
		if !ok {
			return nil, ErrRoleNotFound
		}
		nodes = scoped
	}
	tree := buildForest(nodes, func(r *model.Role, children []dto.RoleTreeNode) dto.RoleTreeNode {
		if children == nil {
			children = []dto.RoleTreeNode{}
		}
		return dto.RoleTreeNode{RoleResponse: *toRoleResponse(r), Children: children}
	})
	if tree == nil {
		tree = []dto.RoleTreeNode{}
	}
	return tree, nil
}

// ────────────────────── SetParent ──────────────────────

func (s *roleService) SetParent(ctx context.Context, id string, parentID *string) (*dto.RoleResponse, error) {
	role, err := s.getRole(ctx, id)
	if err != nil {
		return nil, err
	}

	var parent *model.Role
	var parentPath string
	if parentID != nil {
		parent, err = s.repo.Role.GetByID(ctx, *parentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrParentRoleNotFound
			}
			return nil, err
		}
		if err := validateReparent(role, parent); err != nil {
			return nil, err
		}
		parentPath = parent.Path
	}

	all, err := s.repo.Role.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	nodes := make([]*model.Role, 0, len(all))
	for i := range all {
		nodes = append(nodes, &all[i])
	}

	// 先纯计算整棵子树的新路径，再在单个事务内批量写入
	newPath := joinPath(parentPath, role.RoleID)
	paths := computeSubtreePaths(nodes, role.RoleID, newPath)
	role.SetNodeParent(parentID, newPath)

	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.Role.Update(ctx, role); err != nil {
			return err
		}
		delete(paths, role.RoleID) // 根节点路径已随整行更新写入
		return tx.Role.UpdatePaths(ctx, paths)
	})
	if err != nil {
		s.logger.Error("变更角色父节点失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return toRoleResponse(role), nil
}

// ────────────────────── 权限关联 ──────────────────────

func (s *roleService) AssignPermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	if _, err := s.getRole(ctx, roleID); err != nil {
		return err
	}

	perms, err := s.repo.Permission.ListByIDs(ctx, permissionIDs)
	if err != nil {
		s.logger.Error("批量查询权限失败", zap.Error(err))
		return err
	}
	if len(perms) != len(dedupStrings(permissionIDs)) {
		return ErrPermissionNotFound
	}

	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		return tx.Role.ReplacePermissions(ctx, roleID, permissionIDs)
	})
	if err != nil {
		s.logger.Error("分配角色权限失败", zap.String("role_id", roleID), zap.Error(err))
		return err
	}

	s.invalidateRoleUsers(ctx, roleID)
	return nil
}

func (s *roleService) ListPermissions(ctx context.Context, roleID string) ([]dto.PermissionResponse, error) {
	if _, err := s.getRole(ctx, roleID); err != nil {
		return nil, err
	}
	perms, err := s.repo.Role.ListPermissions(ctx, roleID)
	if err != nil {
		s.logger.Error("查询角色权限失败", zap.String("role_id", roleID), zap.Error(err))
		return nil, err
	}
	result := make([]dto.PermissionResponse, 0, len(perms))
	for i := range perms {
		result = append(result, *toPermissionResponse(&perms[i]))
	}
	return result, nil
}

func (s *roleService) ListUsers(ctx context.Context, roleID string) ([]dto.UserResponse, error) {
	if _, err := s.getRole(ctx, roleID); err != nil {
		return nil, err
	}
	users, err := s.repo.Role.ListUsers(ctx, roleID)
	if err != nil {
		s.logger.Error("查询角色用户失败", zap.String("role_id", roleID), zap.Error(err))
		return nil, err
	}
	result := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		result = append(result, *toUserResponse(&users[i]))
	}
	return result, nil
}

// ── 内部辅助方法 ──

func (s *roleService) getRole(ctx context.Context, id string) (*model.Role, error) {
	role, err := s.repo.Role.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		s.logger.Error("查询角色失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return role, nil
}

// invalidateRoleUsers 使角色成员的权限码缓存失效；缓存不可用时仅告警
func (s *roleService) invalidateRoleUsers(ctx context.Context, roleID string) {
	if s.cache == nil {
		return
	}
	users, err := s.repo.Role.ListUsers(ctx, roleID)
	if err != nil {
		s.logger.Warn("查询角色用户失败，跳过缓存失效", zap.String("role_id", roleID), zap.Error(err))
		return
	}
	ids := make([]string, 0, len(users))
	for i := range users {
		ids = append(ids, users[i].UserID)
	}
	s.cache.InvalidatePermissionCodes(ctx, ids...)
}

func toRoleResponse(r *model.Role) *dto.RoleResponse {
	return &dto.RoleResponse{
		ID:          r.RoleID,
		Name:        r.Name,
		Code:        r.Code,
		Description: r.Description,
		IsSystem:    r.IsSystem,
		ParentID:    r.ParentID,
		Path:        r.Path,
		IsEnabled:   r.IsEnabled,
		Sort:        r.Sort,
		CreatedAt:   r.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:   r.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// joinPath 物化路径拼接：父路径为空时即自身ID
func joinPath(parentPath, id string) string {
	if parentPath == "" {
		return id
	}
	return parentPath + "/" + id
}

// dedupStrings 保序去重
func dedupStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
