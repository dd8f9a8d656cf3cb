package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryRegistryDefaultDeny(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	ok, err := reg.IsGranted(ctx, 1, "task.entry", AccessRead)
	require.NoError(t, err)
	require.False(t, ok)

	grants, err := reg.GrantsFor(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, grants)
}

func TestMemoryRegistryWriteImpliesRead(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	require.NoError(t, reg.SetGrant(ctx, 1, "task.entry", false, true))

	ok, err := reg.IsGranted(ctx, 1, "task.entry", AccessRead)
	require.NoError(t, err)
	require.True(t, ok, "write grant must imply read")

	ok, err = reg.IsGranted(ctx, 1, "task.entry", AccessWrite)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemoryRegistryReadOnlyGrant(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	require.NoError(t, reg.SetGrant(ctx, 1, "task.report", true, false))

	ok, err := reg.IsGranted(ctx, 1, "task.report", AccessWrite)
	require.NoError(t, err)
	require.False(t, ok, "read grant must not allow write")
}

func TestMemoryRegistrySetGrantIdempotent(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	require.NoError(t, reg.SetGrant(ctx, 1, "task.entry", true, true))
	require.NoError(t, reg.SetGrant(ctx, 1, "task.entry", true, true))

	grants, err := reg.GrantsFor(ctx, 1)
	require.NoError(t, err)
	require.Len(t, grants, 1)
}

func TestMemoryRegistryRevokeAbsentGrant(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	require.NoError(t, reg.RevokeGrant(ctx, 1, "task.entry"))

	require.NoError(t, reg.SetGrant(ctx, 1, "task.entry", true, false))
	require.NoError(t, reg.RevokeGrant(ctx, 1, "task.entry"))

	ok, err := reg.IsGranted(ctx, 1, "task.entry", AccessRead)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGrantAllowsUnknownAccess(t *testing.T) {
	g := Grant{Key: "task.entry", CanRead: true, CanWrite: true}
	require.False(t, g.Allows(Access("admin")), "unknown access levels deny")
}
