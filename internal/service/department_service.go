package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"backend-pm/internal/dto"
	"backend-pm/internal/model"
	"backend-pm/internal/repository"
)

// ── 部门模块业务错误 ──

var (
	ErrDepartmentNotFound       = errors.New("部门不存在")
	ErrDepartmentCodeExists     = errors.New("部门编码已存在")
	ErrDepartmentHasChildren    = errors.New("部门下存在子部门，无法删除")
	ErrDepartmentHasUsers       = errors.New("部门下存在用户，无法删除")
	ErrParentDepartmentNotFound = errors.New("父部门不存在")
	ErrPrimaryNotInAssignment   = errors.New("主部门必须在分配的部门列表中")
	ErrNotMemberOfDepartment    = errors.New("用户不属于该部门")
)

// DepartmentService 部门业务接口
type DepartmentService interface {
	Create(ctx context.Context, req *dto.CreateDepartmentRequest) (*dto.DepartmentResponse, error)
	GetByID(ctx context.Context, id string) (*dto.DepartmentResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateDepartmentRequest) (*dto.DepartmentResponse, error)
	Delete(ctx context.Context, id string) error
	Enable(ctx context.Context, id string) error
	Disable(ctx context.Context, id string) error
	// GetTree 装配启用部门的层级树，rootID 非空时仅返回该部门的子树
	GetTree(ctx context.Context, rootID string) ([]dto.DepartmentTreeNode, error)
	// SetParent 变更父节点并级联修正整棵子树的物化路径
	SetParent(ctx context.Context, id string, parentID *string) (*dto.DepartmentResponse, error)
	// SetLeader 设置部门负责人；负责人不在部门内时自动加入
	SetLeader(ctx context.Context, id string, leaderID *string) (*dto.DepartmentResponse, error)
	// ListUsers 列出部门用户；includeDescendants 时按路径前缀展开整棵子树
	ListUsers(ctx context.Context, id string, includeDescendants bool) ([]dto.UserResponse, error)

	// ── 用户-部门分配 ──

	// AssignToUser 全量替换用户的部门集合，可选指定主部门
	AssignToUser(ctx context.Context, userID string, departmentIDs []string, primaryID string) error
	// SetPrimaryForUser 在既有分配中切换用户的主部门
	SetPrimaryForUser(ctx context.Context, userID, departmentID string) error
}

type departmentService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewDepartmentService 创建 DepartmentService 实例
func NewDepartmentService(repo *repository.Repository, logger *zap.Logger) DepartmentService {
	return &departmentService{repo: repo, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *departmentService) Create(ctx context.Context, req *dto.CreateDepartmentRequest) (*dto.DepartmentResponse, error) {
	exists, err := s.repo.Department.CodeExists(ctx, req.Code)
	if err != nil {
		s.logger.Error("查询部门编码失败", zap.Error(err))
		return nil, err
	}
	if exists {
		return nil, ErrDepartmentCodeExists
	}

	var parentPath string
	if req.ParentID != nil {
		parent, err := s.repo.Department.GetByID(ctx, *req.ParentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrParentDepartmentNotFound
			}
			return nil, err
		}
		parentPath = parent.Path
	}

	dept := model.NewDepartment(req.Name, req.Code, req.Description, req.ParentID, parentPath)
	dept.Sort = req.Sort

	if err := s.repo.Department.Create(ctx, dept); err != nil {
		s.logger.Error("创建部门失败", zap.Error(err))
		return nil, err
	}

	if req.LeaderID != nil {
		return s.SetLeader(ctx, dept.DepartmentID, req.LeaderID)
	}
	return toDepartmentResponse(dept), nil
}

// ────────────────────── GetByID ──────────────────────

func (s *departmentService) GetByID(ctx context.Context, id string) (*dto.DepartmentResponse, error) {
	dept, err := s.getDepartment(ctx, id)
	if err != nil {
		return nil, err
	}
	return toDepartmentResponse(dept), nil
}

// ────────────────────── Update ──────────────────────

func (s *departmentService) Update(ctx context.Context, id string, req *dto.UpdateDepartmentRequest) (*dto.DepartmentResponse, error) {
	dept, err := s.getDepartment(ctx, id)
	if err != nil {
		return nil, err
	}

	name := dept.Name
	if req.Name != nil {
		name = *req.Name
	}
	description := dept.Description
	if req.Description != nil {
		description = *req.Description
	}
	dept.Update(name, description)
	if req.Sort != nil {
		dept.SetSort(*req.Sort)
	}

	if err := s.repo.Department.Update(ctx, dept); err != nil {
		s.logger.Error("更新部门失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return toDepartmentResponse(dept), nil
}

// ────────────────────── Delete ──────────────────────

func (s *departmentService) Delete(ctx context.Context, id string) error {
	dept, err := s.getDepartment(ctx, id)
	if err != nil {
		return err
	}

	hasChildren, err := s.repo.Department.HasChildren(ctx, id)
	if err != nil {
		s.logger.Error("查询子部门失败", zap.String("id", id), zap.Error(err))
		return err
	}
	if hasChildren {
		return ErrDepartmentHasChildren
	}

	count, err := s.repo.Department.CountUsers(ctx, id)
	if err != nil {
		s.logger.Error("查询部门用户数失败", zap.String("id", id), zap.Error(err))
		return err
	}
	if count > 0 {
		return ErrDepartmentHasUsers
	}

	if err := dept.SoftDelete(); err != nil {
		return err
	}
	if err := s.repo.Department.Update(ctx, dept); err != nil {
		s.logger.Error("删除部门失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── Enable / Disable ──────────────────────

func (s *departmentService) Enable(ctx context.Context, id string) error {
	dept, err := s.getDepartment(ctx, id)
	if err != nil {
		return err
	}
	dept.Enable()
	return s.repo.Department.Update(ctx, dept)
}

func (s *departmentService) Disable(ctx context.Context, id string) error {
	dept, err := s.getDepartment(ctx, id)
	if err != nil {
		return err
	}
	dept.Disable()
	return s.repo.Department.Update(ctx, dept)
}

// ────────────────────── GetTree ──────────────────────

func (s *departmentService) GetTree(ctx context.Context, rootID string) ([]dto.DepartmentTreeNode, error) {
	depts, err := s.repo.Department.ListEnabled(ctx)
	if err != nil {
		s.logger.Error("列出部门失败", zap.Error(err))
		return nil, err
	}
	nodes := make([]*model.Department, 0, len(depts))
	for i := range depts {
		nodes = append(nodes, &depts[i])
	}
	if rootID != "" {
		scoped, ok := scopeToSubtree(nodes, rootID)
		if !ok {
			return nil, ErrDepartmentNotFound
		}
		nodes = scoped
	}
	tree := buildForest(nodes, func(d *model.Department, children []dto.DepartmentTreeNode) dto.DepartmentTreeNode {
		if children == nil {
			children = []dto.DepartmentTreeNode{}
		}
		return dto.DepartmentTreeNode{DepartmentResponse: *toDepartmentResponse(d), Children: children}
	})
	if tree == nil {
		tree = []dto.DepartmentTreeNode{}
	}
	return tree, nil
}

// ────────────────────── SetParent ──────────────────────

func (s *departmentService) SetParent(ctx context.Context, id string, parentID *string) (*dto.DepartmentResponse, error) {
	dept, err := s.getDepartment(ctx, id)
	if err != nil {
		return nil, err
	}

	var parentPath string
	if parentID != nil {
		parent, err := s.repo.Department.GetByID(ctx, *parentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrParentDepartmentNotFound
			}
			return nil, err
		}
		if err := validateReparent(dept, parent); err != nil {
			return nil, err
		}
		parentPath = parent.Path
	}

	all, err := s.repo.Department.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	nodes := make([]*model.Department, 0, len(all))
	for i := range all {
		nodes = append(nodes, &all[i])
	}

	newPath := joinPath(parentPath, dept.DepartmentID)
	paths := computeSubtreePaths(nodes, dept.DepartmentID, newPath)
	dept.SetNodeParent(parentID, newPath)

	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.Department.Update(ctx, dept); err != nil {
			return err
		}
		delete(paths, dept.DepartmentID)
		return tx.Department.UpdatePaths(ctx, paths)
	})
	if err != nil {
		s.logger.Error("变更部门父节点失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return toDepartmentResponse(dept), nil
}

// ────────────────────── SetLeader ──────────────────────

func (s *departmentService) SetLeader(ctx context.Context, id string, leaderID *string) (*dto.DepartmentResponse, error) {
	dept, err := s.getDepartment(ctx, id)
	if err != nil {
		return nil, err
	}

	if leaderID != nil {
		if _, err := s.repo.User.GetByID(ctx, *leaderID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, err
		}

		// 负责人不在部门内时自动加入（非主部门）
		links, err := s.repo.User.ListDepartmentLinks(ctx, *leaderID)
		if err != nil {
			return nil, err
		}
		member := false
		for i := range links {
			if links[i].DepartmentID == id {
				member = true
				break
			}
		}
		if !member {
			link := &model.UserDepartment{UserID: *leaderID, DepartmentID: id, IsPrimary: len(links) == 0}
			if err := s.repo.User.AddDepartment(ctx, link); err != nil {
				s.logger.Error("负责人加入部门失败", zap.String("department_id", id), zap.Error(err))
				return nil, err
			}
		}
	}

	dept.SetLeader(leaderID)
	if err := s.repo.Department.Update(ctx, dept); err != nil {
		s.logger.Error("设置部门负责人失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return toDepartmentResponse(dept), nil
}

// ────────────────────── ListUsers ──────────────────────

func (s *departmentService) ListUsers(ctx context.Context, id string, includeDescendants bool) ([]dto.UserResponse, error) {
	dept, err := s.getDepartment(ctx, id)
	if err != nil {
		return nil, err
	}

	deptIDs := []string{id}
	if includeDescendants {
		// 物化路径前缀一次取出整棵子树，无需递归
		subtree, err := s.repo.Department.ListByPathPrefix(ctx, dept.Path)
		if err != nil {
			s.logger.Error("查询子树部门失败", zap.String("id", id), zap.Error(err))
			return nil, err
		}
		deptIDs = deptIDs[:0]
		for i := range subtree {
			deptIDs = append(deptIDs, subtree[i].DepartmentID)
		}
	}

	users, err := s.repo.Department.ListUsers(ctx, deptIDs)
	if err != nil {
		s.logger.Error("查询部门用户失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	result := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		result = append(result, *toUserResponse(&users[i]))
	}
	return result, nil
}

// ────────────────────── 用户-部门分配 ──────────────────────

func (s *departmentService) AssignToUser(ctx context.Context, userID string, departmentIDs []string, primaryID string) error {
	if _, err := s.repo.User.GetByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	departmentIDs = dedupStrings(departmentIDs)
	// primaryID 可为空：不标记主部门；指定时必须在分配集合内
	if primaryID != "" {
		primaryFound := false
		for _, id := range departmentIDs {
			if id == primaryID {
				primaryFound = true
				break
			}
		}
		if !primaryFound {
			return ErrPrimaryNotInAssignment
		}
	}

	depts, err := s.repo.Department.ListByIDs(ctx, departmentIDs)
	if err != nil {
		s.logger.Error("批量查询部门失败", zap.Error(err))
		return err
	}
	if len(depts) != len(departmentIDs) {
		return ErrDepartmentNotFound
	}

	links := make([]model.UserDepartment, 0, len(departmentIDs))
	for _, id := range departmentIDs {
		links = append(links, model.UserDepartment{
			UserID:       userID,
			DepartmentID: id,
			IsPrimary:    id == primaryID,
		})
	}

	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		return tx.User.ReplaceDepartments(ctx, userID, links)
	})
	if err != nil {
		s.logger.Error("分配用户部门失败", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	return nil
}

func (s *departmentService) SetPrimaryForUser(ctx context.Context, userID, departmentID string) error {
	links, err := s.repo.User.ListDepartmentLinks(ctx, userID)
	if err != nil {
		s.logger.Error("查询用户部门失败", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	member := false
	for i := range links {
		if links[i].DepartmentID == departmentID {
			member = true
			break
		}
	}
	if !member {
		return ErrNotMemberOfDepartment
	}

	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		return tx.User.SetPrimaryDepartment(ctx, userID, departmentID)
	})
	if err != nil {
		s.logger.Error("切换主部门失败", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	return nil
}

// ── 内部辅助方法 ──

func (s *departmentService) getDepartment(ctx context.Context, id string) (*model.Department, error) {
	dept, err := s.repo.Department.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDepartmentNotFound
		}
		s.logger.Error("查询部门失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return dept, nil
}

func toDepartmentResponse(d *model.Department) *dto.DepartmentResponse {
	return &dto.DepartmentResponse{
		ID:          d.DepartmentID,
		Name:        d.Name,
		Code:        d.Code,
		Description: d.Description,
		ParentID:    d.ParentID,
		Path:        d.Path,
		LeaderID:    d.LeaderID,
		IsEnabled:   d.IsEnabled,
		Sort:        d.Sort,
		CreatedAt:   d.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:   d.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}
