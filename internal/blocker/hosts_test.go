package blocker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnableWritesHostsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "blocked.hosts")
	b := NewHostsBlocker(path, "")

	err := b.Enable(context.Background(), []string{"YouTube.com", " reddit.com ", "www.twitch.tv", "", "bad host", "youtube.com"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Managed by focusforest")
	assert.Contains(t, string(data), "0.0.0.0")
	assert.Contains(t, string(data), "www.youtube.com")

	hosts, err := b.Blocked()
	require.NoError(t, err)
	assert.Equal(t, []string{"youtube.com", "www.youtube.com", "reddit.com", "www.reddit.com", "www.twitch.tv"}, hosts)
}

func TestEnableReplacesPreviousRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocked.hosts")
	b := NewHostsBlocker(path, "127.0.0.1")
	ctx := context.Background()

	require.NoError(t, b.Enable(ctx, []string{"youtube.com"}))
	require.NoError(t, b.Enable(ctx, []string{"netflix.com"}))

	hosts, err := b.Blocked()
	require.NoError(t, err)
	assert.Equal(t, []string{"netflix.com", "www.netflix.com"}, hosts)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "127.0.0.1")
	assert.NotContains(t, string(data), "youtube.com")
}

func TestDisableClearsRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocked.hosts")
	b := NewHostsBlocker(path, "")
	ctx := context.Background()

	require.NoError(t, b.Disable(ctx), "disabling before any rules is fine")
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "disable does not create the file")

	require.NoError(t, b.Enable(ctx, []string{"tiktok.com"}))
	require.NoError(t, b.Disable(ctx))
	require.NoError(t, b.Disable(ctx))

	hosts, err := b.Blocked()
	require.NoError(t, err)
	assert.Empty(t, hosts)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "tiktok.com")
}

func TestOtherEntriesSurvive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocked.hosts")
	require.NoError(t, os.WriteFile(path, []byte("192.168.1.10 nas.local\n"), 0o644))
	b := NewHostsBlocker(path, "")
	ctx := context.Background()

	require.NoError(t, b.Enable(ctx, []string{"reddit.com"}))
	require.NoError(t, b.Disable(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "nas.local")
	assert.NotContains(t, string(data), "reddit.com")
}

func TestBlockedWithoutFile(t *testing.T) {
	b := NewHostsBlocker(filepath.Join(t.TempDir(), "missing.hosts"), "")
	hosts, err := b.Blocked()
	require.NoError(t, err)
	assert.Nil(t, hosts)
}

func TestCancelledContext(t *testing.T) {
	b := NewHostsBlocker(filepath.Join(t.TempDir(), "blocked.hosts"), "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.Enable(ctx, []string{"x.com"}), context.Canceled)
	assert.ErrorIs(t, b.Disable(ctx), context.Canceled)
}
