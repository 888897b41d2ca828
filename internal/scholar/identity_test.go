package scholar

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestIdentityDefaultUserAgents falls back to the built-in Chrome pool.
func TestIdentityDefaultUserAgents(t *testing.T) {
	t.Parallel()

	id, err := NewIdentity(nil, nil, rand.NewSource(1))
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		require.Contains(t, defaultUserAgents, id.UserAgent())
	}
}

// TestIdentityUserAgentFromPool only hands out configured agents.
func TestIdentityUserAgentFromPool(t *testing.T) {
	t.Parallel()

	pool := []string{"agent-a", "agent-b"}
	id, err := NewIdentity(pool, nil, rand.NewSource(2))
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		ua := id.UserAgent()
		require.Contains(t, pool, ua)
		seen[ua] = true
	}
	require.Len(t, seen, 2, "both agents should eventually rotate in")
}

// TestIdentityProxyDirectFirst keeps the first attempt off the proxy pool.
func TestIdentityProxyDirectFirst(t *testing.T) {
	t.Parallel()

	proxies := []string{"http://p1.example:8080", "http://p2.example:8080"}
	id, err := NewIdentity(nil, proxies, rand.NewSource(3))
	require.NoError(t, err)
	require.True(t, id.HasProxies())

	_, ok := id.Proxy(0)
	require.False(t, ok, "attempt 0 must go direct")

	for attempt := 1; attempt < 5; attempt++ {
		proxy, ok := id.Proxy(attempt)
		require.True(t, ok)
		require.Contains(t, proxies, proxy)
	}
}

// TestIdentityNoProxiesNeverProxies returns no proxy on any attempt.
func TestIdentityNoProxiesNeverProxies(t *testing.T) {
	t.Parallel()

	id, err := NewIdentity(nil, nil, rand.NewSource(4))
	require.NoError(t, err)
	require.False(t, id.HasProxies())
	for attempt := 0; attempt < 4; attempt++ {
		_, ok := id.Proxy(attempt)
		require.False(t, ok)
	}
}

// TestIdentityRejectsBadProxy surfaces malformed pool entries at construction.
func TestIdentityRejectsBadProxy(t *testing.T) {
	t.Parallel()

	_, err := NewIdentity(nil, []string{"http://good.example:1", "://\x7f"}, nil)
	require.Error(t, err)

	_, err = NewIdentity(nil, []string{"nohost"}, nil)
	require.ErrorContains(t, err, "missing host")
}

// TestLoadLines reads pool files, skipping blanks and comments.
func TestLoadLines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "agents.txt")
	content := "# browser agents\nagent-a\n\n  agent-b  \n# trailing comment\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	lines, err := LoadLines(path)
	require.NoError(t, err)
	require.Equal(t, []string{"agent-a", "agent-b"}, lines)
}

// TestLoadLinesEmptyFile treats a pool file with no entries as a configuration error.
func TestLoadLinesEmptyFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte("\n# nothing here\n"), 0o600))

	_, err := LoadLines(path)
	require.ErrorContains(t, err, "no entries")
}

// TestLoadLinesMissingFile propagates the open error.
func TestLoadLinesMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadLines(filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
}
