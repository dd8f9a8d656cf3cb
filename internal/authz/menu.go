package authz

import (
	"context"

	"github.com/worklane/worklane/internal/rbac"
)

// Node is one entry of the declarative navigation tree. A node with children
// is a group; a node without children is a leaf. Every node declares the
// permission key and access level required to see it.
type Node struct {
	Label    string      `json:"label"`
	Path     string      `json:"path,omitempty"`
	Key      string      `json:"key"`
	Access   rbac.Access `json:"access"`
	Children []Node      `json:"children,omitempty"`
}

// Filter prunes the tree to what the subject may see. The walk is depth-first
// and structural: a leaf survives iff the subject holds its key, a group
// survives iff it is authorized itself and at least one child survives.
// Children slices are rebuilt, never mutated, so the source tree stays
// reusable across subjects, and sibling order is preserved. Filtering an
// already-filtered tree yields the same tree.
func (e *Engine) Filter(ctx context.Context, tree []Node, subjectID int64) []Node {
	out := make([]Node, 0, len(tree))
	for _, node := range tree {
		access := node.Access
		if access == "" {
			access = rbac.AccessRead
		}
		if !e.CanAccess(ctx, subjectID, node.Key, access) {
			continue
		}
		if len(node.Children) == 0 {
			out = append(out, node)
			continue
		}
		kept := e.Filter(ctx, node.Children, subjectID)
		if len(kept) == 0 {
			continue
		}
		node.Children = kept
		out = append(out, node)
	}
	return out
}
