package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "sekrit")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 120*time.Minute, cfg.IdleTimeout)
	require.Equal(t, time.Minute, cfg.IdleCheckInterval)
	require.Equal(t, 30*time.Minute, cfg.BypassTTL)
	require.Equal(t, []int64{4}, cfg.PendingRoleIDs)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestTestModeRefresh(t *testing.T) {
	t.Setenv("WORKLANE_TEST_MODE", "1")
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv("WORKLANE_TEST_MODE", "")
	RefreshTestMode()
	require.False(t, InTestMode())

	t.Setenv("WORKLANE_TEST_MODE", "1")
	RefreshTestMode()
}
