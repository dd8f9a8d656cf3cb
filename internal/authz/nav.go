package authz

import (
	"github.com/worklane/worklane/internal/rbac"
	"github.com/worklane/worklane/internal/shared"
)

// DefaultNav returns the navigation tree the resource layer renders. The tree
// itself is shared across subjects; Filter produces per-subject copies.
func DefaultNav() []Node {
	return []Node{
		{Label: "Tasks", Key: shared.PermTaskEntry, Children: []Node{
			{Label: "Log work", Path: "/tasks/entry", Key: shared.PermTaskEntry},
			{Label: "My reports", Path: "/tasks/reports", Key: shared.PermTaskReport},
		}},
		{Label: "Projects", Path: "/projects", Key: shared.PermProjectMaster},
		{Label: "Services", Path: "/services", Key: shared.PermServiceMaster},
		{Label: "Cost groups", Path: "/costgroups", Key: shared.PermCostGroup},
		{Label: "Approvals", Path: "/approvals", Key: shared.PermReportApproval},
		{Label: "Administration", Key: shared.PermMemberManagement, Children: []Node{
			{Label: "Members", Path: "/admin/members", Key: shared.PermMemberManagement},
			{Label: "Roles", Path: "/admin/roles", Key: shared.PermRoleManagement},
			{Label: "Grants", Path: "/admin/grants", Key: shared.PermRoleManagement, Access: rbac.AccessWrite},
		}},
	}
}
