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

// ── 菜单模块业务错误 ──

var (
	ErrMenuNotFound       = errors.New("菜单不存在")
	ErrMenuCodeExists     = errors.New("菜单编码已存在")
	ErrMenuHasChildren    = errors.New("菜单下存在子节点，无法删除")
	ErrParentMenuNotFound = errors.New("父菜单不存在")
)

// MenuService 菜单业务接口
type MenuService interface {
	Create(ctx context.Context, req *dto.CreateMenuRequest) (*dto.MenuResponse, error)
	GetByID(ctx context.Context, id string) (*dto.MenuResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateMenuRequest) (*dto.MenuResponse, error)
	Delete(ctx context.Context, id string) error
	Enable(ctx context.Context, id string) error
	Disable(ctx context.Context, id string) error
	// GetTree 装配启用菜单的层级树，rootID 非空时仅返回该菜单的子树
	GetTree(ctx context.Context, rootID string) ([]dto.MenuTreeNode, error)
	// SetParent 变更父节点并级联修正整棵子树的物化路径
	SetParent(ctx context.Context, id string, parentID *string) (*dto.MenuResponse, error)
	// BindPermissions 全量替换菜单绑定的权限集合
	BindPermissions(ctx context.Context, menuID string, permissionIDs []string) error
	ListPermissions(ctx context.Context, menuID string) ([]dto.PermissionResponse, error)
	// GetTreeForUser 装配用户可见的菜单树：
	// 有效权限集与菜单权限绑定的交集，用户持有任一绑定权限的菜单
	// 才可见。不可见与禁用的菜单一律排除。
	GetTreeForUser(ctx context.Context, userID string) ([]dto.MenuTreeNode, error)
}

type menuService struct {
	repo       *repository.Repository
	permission PermissionService
	logger     *zap.Logger
}

// NewMenuService 创建 MenuService 实例
func NewMenuService(repo *repository.Repository, permission PermissionService, logger *zap.Logger) MenuService {
	return &menuService{repo: repo, permission: permission, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *menuService) Create(ctx context.Context, req *dto.CreateMenuRequest) (*dto.MenuResponse, error) {
	exists, err := s.repo.Menu.CodeExists(ctx, req.Code)
	if err != nil {
		s.logger.Error("查询菜单编码失败", zap.Error(err))
		return nil, err
	}
	if exists {
		return nil, ErrMenuCodeExists
	}

	var parentPath string
	if req.ParentID != nil {
		parent, err := s.repo.Menu.GetByID(ctx, *req.ParentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrParentMenuNotFound
			}
			return nil, err
		}
		parentPath = parent.Path
	}

	menu := model.NewMenu(req.Name, req.Code, model.MenuType(req.Type), req.Component, req.Route, req.ParentID, parentPath)
	menu.Icon = req.Icon
	menu.Sort = req.Sort

	if err := s.repo.Menu.Create(ctx, menu); err != nil {
		s.logger.Error("创建菜单失败", zap.Error(err))
		return nil, err
	}

	return toMenuResponse(menu), nil
}

// ────────────────────── GetByID ──────────────────────

func (s *menuService) GetByID(ctx context.Context, id string) (*dto.MenuResponse, error) {
	menu, err := s.getMenu(ctx, id)
	if err != nil {
		return nil, err
	}
	return toMenuResponse(menu), nil
}

// ────────────────────── Update ──────────────────────

func (s *menuService) Update(ctx context.Context, id string, req *dto.UpdateMenuRequest) (*dto.MenuResponse, error) {
	menu, err := s.getMenu(ctx, id)
	if err != nil {
		return nil, err
	}

	name := menu.Name
	if req.Name != nil {
		name = *req.Name
	}
	component := menu.Component
	if req.Component != nil {
		component = *req.Component
	}
	route := menu.Route
	if req.Route != nil {
		route = *req.Route
	}
	icon := menu.Icon
	if req.Icon != nil {
		icon = *req.Icon
	}
	menu.Update(name, component, route, icon)

	if req.Sort != nil {
		menu.SetSort(*req.Sort)
	}
	if req.Visible != nil {
		menu.SetVisibility(*req.Visible)
	}
	if req.IsExternal != nil {
		menu.SetExternalLink(*req.IsExternal)
	}
	if req.KeepAlive != nil {
		menu.SetKeepAlive(*req.KeepAlive)
	}

	if err := s.repo.Menu.Update(ctx, menu); err != nil {
		s.logger.Error("更新菜单失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return toMenuResponse(menu), nil
}

// ────────────────────── Delete ──────────────────────

func (s *menuService) Delete(ctx context.Context, id string) error {
	menu, err := s.getMenu(ctx, id)
	if err != nil {
		return err
	}

	hasChildren, err := s.repo.Menu.HasChildren(ctx, id)
	if err != nil {
		s.logger.Error("查询子菜单失败", zap.String("id", id), zap.Error(err))
		return err
	}
	if hasChildren {
		return ErrMenuHasChildren
	}

	if err := menu.SoftDelete(); err != nil {
		return err
	}
	if err := s.repo.Menu.Update(ctx, menu); err != nil {
		s.logger.Error("删除菜单失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── Enable / Disable ──────────────────────

func (s *menuService) Enable(ctx context.Context, id string) error {
	menu, err := s.getMenu(ctx, id)
	if err != nil {
		return err
	}
	menu.Enable()
	return s.repo.Menu.Update(ctx, menu)
}

func (s *menuService) Disable(ctx context.Context, id string) error {
	menu, err := s.getMenu(ctx, id)
	if err != nil {
		return err
	}
	menu.Disable()
	return s.repo.Menu.Update(ctx, menu)
}

// ────────────────────── GetTree ──────────────────────

func (s *menuService) GetTree(ctx context.Context, rootID string) ([]dto.MenuTreeNode, error) {
	menus, err := s.repo.Menu.ListEnabled(ctx)
	if err != nil {
		s.logger.Error("列出菜单失败", zap.Error(err))
		return nil, err
	}
	if rootID != "" {
		nodes := make([]*model.Menu, 0, len(menus))
		for i := range menus {
			nodes = append(nodes, &menus[i])
		}
		scoped, ok := scopeToSubtree(nodes, rootID)
		if !ok {
			return nil, ErrMenuNotFound
		}
		sub := make([]model.Menu, 0, len(scoped))
		for _, m := range scoped {
			sub = append(sub, *m)
		}
		menus = sub
	}
	return assembleMenuTree(menus), nil
}

// ────────────────────── SetParent ──────────────────────

func (s *menuService) SetParent(ctx context.Context, id string, parentID *string) (*dto.MenuResponse, error) {
	menu, err := s.getMenu(ctx, id)
	if err != nil {
		return nil, err
	}

	var parentPath string
	if parentID != nil {
		parent, err := s.repo.Menu.GetByID(ctx, *parentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrParentMenuNotFound
			}
			return nil, err
		}
		if err := validateReparent(menu, parent); err != nil {
			return nil, err
		}
		parentPath = parent.Path
	}

	all, err := s.repo.Menu.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	nodes := make([]*model.Menu, 0, len(all))
	for i := range all {
		nodes = append(nodes, &all[i])
	}

	newPath := joinPath(parentPath, menu.MenuID)
	paths := computeSubtreePaths(nodes, menu.MenuID, newPath)
	menu.SetNodeParent(parentID, newPath)

	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.Menu.Update(ctx, menu); err != nil {
			return err
		}
		delete(paths, menu.MenuID)
		return tx.Menu.UpdatePaths(ctx, paths)
	})
	if err != nil {
		s.logger.Error("变更菜单父节点失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return toMenuResponse(menu), nil
}

// ────────────────────── 权限绑定 ──────────────────────

func (s *menuService) BindPermissions(ctx context.Context, menuID string, permissionIDs []string) error {
	if _, err := s.getMenu(ctx, menuID); err != nil {
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
		return tx.Menu.ReplacePermissions(ctx, menuID, permissionIDs)
	})
	if err != nil {
		s.logger.Error("绑定菜单权限失败", zap.String("menu_id", menuID), zap.Error(err))
		return err
	}
	return nil
}

func (s *menuService) ListPermissions(ctx context.Context, menuID string) ([]dto.PermissionResponse, error) {
	if _, err := s.getMenu(ctx, menuID); err != nil {
		return nil, err
	}
	perms, err := s.repo.Menu.ListPermissions(ctx, menuID)
	if err != nil {
		s.logger.Error("查询菜单权限失败", zap.String("menu_id", menuID), zap.Error(err))
		return nil, err
	}
	return toPermissionResponses(perms), nil
}

// ────────────────────── GetTreeForUser ──────────────────────

func (s *menuService) GetTreeForUser(ctx context.Context, userID string) ([]dto.MenuTreeNode, error) {
	perms, err := s.permission.GetEffectivePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	permIDs := make([]string, 0, len(perms))
	for i := range perms {
		permIDs = append(permIDs, perms[i].PermissionID)
	}

	// 用户权限可解锁的菜单集合
	granted, err := s.repo.Menu.ListByPermissionIDs(ctx, permIDs)
	if err != nil {
		s.logger.Error("查询授权菜单失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	grantedSet := make(map[string]bool, len(granted))
	for i := range granted {
		grantedSet[granted[i].MenuID] = true
	}

	all, err := s.repo.Menu.ListEnabled(ctx)
	if err != nil {
		s.logger.Error("列出菜单失败", zap.Error(err))
		return nil, err
	}

	// 仅保留有效权限可解锁的菜单：未授权即不可见
	visible := make([]model.Menu, 0, len(all))
	for i := range all {
		m := all[i]
		if !m.Visible || !grantedSet[m.MenuID] {
			continue
		}
		visible = append(visible, m)
	}

	return assembleMenuTree(visible), nil
}

// ── 内部辅助方法 ──

func (s *menuService) getMenu(ctx context.Context, id string) (*model.Menu, error) {
	menu, err := s.repo.Menu.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMenuNotFound
		}
		s.logger.Error("查询菜单失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return menu, nil
}

func assembleMenuTree(menus []model.Menu) []dto.MenuTreeNode {
	nodes := make([]*model.Menu, 0, len(menus))
	for i := range menus {
		nodes = append(nodes, &menus[i])
	}
	tree := buildForest(nodes, func(m *model.Menu, children []dto.MenuTreeNode) dto.MenuTreeNode {
		if children == nil {
			children = []dto.MenuTreeNode{}
		}
		return dto.MenuTreeNode{MenuResponse: *toMenuResponse(m), Children: children}
	})
	if tree == nil {
		tree = []dto.MenuTreeNode{}
	}
	return tree
}

func toMenuResponse(m *model.Menu) *dto.MenuResponse {
	return &dto.MenuResponse{
		ID:         m.MenuID,
		Name:       m.Name,
		Code:       m.Code,
		Type:       int16(m.Type),
		ParentID:   m.ParentID,
		Path:       m.Path,
		Component:  m.Component,
		Route:      m.Route,
		Icon:       m.Icon,
		Sort:       m.Sort,
		Visible:    m.Visible,
		IsEnabled:  m.IsEnabled,
		IsExternal: m.IsExternal,
		KeepAlive:  m.KeepAlive,
		CreatedAt:  m.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}
