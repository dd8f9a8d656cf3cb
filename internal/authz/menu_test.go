package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/worklane/worklane/internal/rbac"
	"github.com/worklane/worklane/internal/shared"
)

func testTree() []Node {
	return []Node{
		{Label: "Tasks", Key: shared.PermTaskEntry, Children: []Node{
			{Label: "My entries", Path: "/tasks", Key: shared.PermTaskEntry},
			{Label: "Reports", Path: "/tasks/reports", Key: shared.PermTaskReport},
		}},
		{Label: "Projects", Path: "/projects", Key: shared.PermProjectMaster},
		{Label: "Administration", Key: shared.PermRoleManagement, Children: []Node{
			{Label: "Grants", Path: "/admin/grants", Key: shared.PermRoleManagement, Access: rbac.AccessWrite},
		}},
	}
}

func TestFilterPrunesUnauthorizedBranches(t *testing.T) {
	engine, _, _ := newFixture(t)
	ctx := context.Background()

	// Subject 10 holds task.entry and task.report read only.
	out := engine.Filter(ctx, testTree(), 10)

	require.Len(t, out, 1)
	require.Equal(t, "Tasks", out[0].Label)
	require.Len(t, out[0].Children, 2)
	require.Equal(t, "My entries", out[0].Children[0].Label)
	require.Equal(t, "Reports", out[0].Children[1].Label)
}

func TestFilterDropsEmptyGroups(t *testing.T) {
	engine, _, reg := newFixture(t)
	ctx := context.Background()

	// Grant the group key but none of its children: the group must vanish.
	require.NoError(t, reg.SetGrant(ctx, 2, shared.PermRoleManagement, true, false))

	out := engine.Filter(ctx, testTree(), 10)
	for _, node := range out {
		require.NotEqual(t, "Administration", node.Label)
	}
}

func TestFilterLeavesSourceTreeIntact(t *testing.T) {
	engine, _, _ := newFixture(t)
	ctx := context.Background()

	tree := testTree()
	_ = engine.Filter(ctx, tree, 10)

	require.Equal(t, testTree(), tree, "filtering must not mutate the shared tree")
}

func TestFilterIsIdempotent(t *testing.T) {
	engine, _, _ := newFixture(t)
	ctx := context.Background()

	once := engine.Filter(ctx, testTree(), 10)
	twice := engine.Filter(ctx, once, 10)
	require.Equal(t, once, twice)
}

func TestFilterForAnonymousSubject(t *testing.T) {
	engine, _, _ := newFixture(t)
	ctx := context.Background()

	out := engine.Filter(ctx, testTree(), 999)
	require.Empty(t, out)
}

func TestFilterHonorsWriteOnlyLeaves(t *testing.T) {
	engine, _, reg := newFixture(t)
	ctx := context.Background()

	// Read-only role management shows the group key but not the write leaf.
	require.NoError(t, reg.SetGrant(ctx, 3, shared.PermRoleManagement, true, false))
	out := engine.Filter(ctx, testTree(), 11)
	for _, node := range out {
		require.NotEqual(t, "Administration", node.Label)
	}

	// Upgrading to write access surfaces the full branch.
	require.NoError(t, reg.SetGrant(ctx, 3, shared.PermRoleManagement, true, true))
	out = engine.Filter(ctx, testTree(), 11)
	var admin *Node
	for i := range out {
		if out[i].Label == "Administration" {
			admin = &out[i]
		}
	}
	require.NotNil(t, admin)
	require.Len(t, admin.Children, 1)
	require.Equal(t, "Grants", admin.Children[0].Label)
}
