package service

import (
	"errors"
	"strings"

	"backend-pm/internal/model"
)

// ── 树形结构业务错误 ──

var (
	ErrSelfParent    = errors.New("节点不能作为自身的父节点")
	ErrCycleDetected = errors.New("不能将节点移动到其自身的子树下")
)

// childIndex 构建 parentId → 子节点 的索引，保持输入顺序
// 输入应已按 sort 排序，索引不再二次排序
func childIndex[T model.TreeNode](nodes []T) map[string][]T {
	idx := make(map[string][]T, len(nodes))
	for _, n := range nodes {
		if pid := n.NodeParentID(); pid != nil {
			idx[*pid] = append(idx[*pid], n)
		}
	}
	return idx
}

// validateReparent 校验父节点变更的合法性
// 自引用与环（目标父节点位于待移动节点的子树内）均拒绝
// 环检测依赖物化路径前缀，无需加载整棵树
func validateReparent(node, newParent model.TreeNode) error {
	if newParent == nil {
		return nil
	}
	if node.NodeID() == newParent.NodeID() {
		return ErrSelfParent
	}
	if isDescendantPath(node.NodePath(), newParent.NodePath()) {
		return ErrCycleDetected
	}
	return nil
}

// isDescendantPath 判断 path 是否位于 ancestorPath 的子树内（含自身）
func isDescendantPath(ancestorPath, path string) bool {
	return path == ancestorPath || strings.HasPrefix(path, ancestorPath+"/")
}

// scopeToSubtree 将节点集裁剪为以 rootID 为根的子树（含根自身）
// 根节点不在集合中时返回 false
func scopeToSubtree[T model.TreeNode](nodes []T, rootID string) ([]T, bool) {
	var rootPath string
	found := false
	for _, n := range nodes {
		if n.NodeID() == rootID {
			rootPath = n.NodePath()
			found = true
			break
		}
	}
	if !found {
		return nil, false
	}
	scoped := make([]T, 0, len(nodes))
	for _, n := range nodes {
		if isDescendantPath(rootPath, n.NodePath()) {
			scoped = append(scoped, n)
		}
	}
	return scoped, true
}

// computeSubtreePaths 纯计算：以 newRootPath 为子树根的新路径，
// 级联推导整棵子树每个节点的新物化路径，返回 id → 新路径。
// 不修改任何节点；写入由调用方在单个事务内批量完成。
func computeSubtreePaths[T model.TreeNode](nodes []T, rootID, newRootPath string) map[string]string {
	idx := childIndex(nodes)
	paths := make(map[string]string)
	paths[rootID] = newRootPath

	queue := []string{rootID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range idx[cur] {
			id := child.NodeID()
			if _, seen := paths[id]; seen {
				continue // 脏数据防护：重复出现的节点只处理一次
			}
			paths[id] = paths[cur] + "/" + id
			queue = append(queue, id)
		}
	}
	return paths
}

// buildForest 单遍装配树：无父或父节点缺失（悬挂）的节点作为根
// assemble 将节点与已装配的子树合并为响应节点
// visited 防护：父引用损坏形成环时不会无限递归
func buildForest[T model.TreeNode, N any](nodes []T, assemble func(node T, children []N) N) []N {
	idx := childIndex(nodes)
	present := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		present[n.NodeID()] = true
	}

	visited := make(map[string]bool, len(nodes))
	var build func(n T) (N, bool)
	build = func(n T) (N, bool) {
		var zero N
		id := n.NodeID()
		if visited[id] {
			return zero, false
		}
		visited[id] = true
		children := make([]N, 0, len(idx[id]))
		for _, c := range idx[id] {
			if child, ok := build(c); ok {
				children = append(children, child)
			}
		}
		return assemble(n, children), true
	}

	var roots []N
	for _, n := range nodes {
		pid := n.NodeParentID()
		if pid == nil || !present[*pid] {
			if root, ok := build(n); ok {
				roots = append(roots, root)
			}
		}
	}
	return roots
}
