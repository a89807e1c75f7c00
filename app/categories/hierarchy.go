package categories

import (
	"sort"

	"github.com/joefazee/categorias/models"
)

// TreeNode is one category in the hierarchy with its ordered children.
type TreeNode struct {
	Category models.Category `json:"categoria"`
	Children []*TreeNode     `json:"children"`
}

// Tree is the assembled forest of active categories.
type Tree struct {
	Roots []*TreeNode `json:"roots"`
	// Unreachable holds ids of active categories whose parent chain loops
	// back on itself and therefore never reaches a root.
	Unreachable []int64 `json:"unreachable,omitempty"`
}

// BuildTree assembles active categories into a forest. A category whose parent
// is missing or inactive becomes a root. Siblings are ordered by display_order,
// keeping input order for ties.
func BuildTree(categories []models.Category) *Tree {
	nodes := make(map[int64]*TreeNode, len(categories))
	order := make([]int64, 0, len(categories))
	for i := range categories {
		c := categories[i]
		if !c.IsActive {
			continue
		}
		if _, dup := nodes[c.ID]; dup {
			continue
		}
		nodes[c.ID] = &TreeNode{Category: c, Children: []*TreeNode{}}
		order = append(order, c.ID)
	}

	tree := &Tree{Roots: []*TreeNode{}}
	for _, id := range order {
		n := nodes[id]
		parentID := n.Category.ParentID
		if parentID != nil && *parentID != id {
			if parent, ok := nodes[*parentID]; ok {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		tree.Roots = append(tree.Roots, n)
	}

	// Anything not reachable from a root sits on a cycle or hangs off one.
	visited := make(map[int64]bool, len(nodes))
	var walk func(list []*TreeNode)
	walk = func(list []*TreeNode) {
		sortSiblings(list)
		for _, n := range list {
			if visited[n.Category.ID] {
				continue
			}
			visited[n.Category.ID] = true
			walk(n.Children)
		}
	}
	walk(tree.Roots)

	for _, id := range order {
		if !visited[id] {
			tree.Unreachable = append(tree.Unreachable, id)
		}
	}
	return tree
}

func sortSiblings(list []*TreeNode) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Category.DisplayOrder < list[j].Category.DisplayOrder
	})
}

// Walk visits every node depth-first, parents before children.
func (t *Tree) Walk(fn func(n *TreeNode, depth int)) {
	seen := make(map[int64]bool)
	var visit func(list []*TreeNode, depth int)
	visit = func(list []*TreeNode, depth int) {
		for _, n := range list {
			if seen[n.Category.ID] {
				continue
			}
			seen[n.Category.ID] = true
			fn(n, depth)
			visit(n.Children, depth+1)
		}
	}
	visit(t.Roots, 0)
}

// Len returns the number of categories reachable from the roots.
func (t *Tree) Len() int {
	n := 0
	t.Walk(func(*TreeNode, int) { n++ })
	return n
}
