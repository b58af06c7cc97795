package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, "llc", cfg.Native.LLC)
	require.Equal(t, "clang", cfg.Native.Clang)
	require.Equal(t, 30_000, cfg.Native.TimeoutMs)
	require.False(t, cfg.StrictWarnings)
}

func TestLoadParsesYAMLAndFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kooix.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
module_roots:
  - vendor/kooix
strict_warnings: true
native:
  timeout_ms: 5000
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"vendor/kooix"}, cfg.ModuleRoots)
	require.True(t, cfg.StrictWarnings)
	require.Equal(t, 5000, cfg.Native.TimeoutMs)
	require.Equal(t, "llc", cfg.Native.LLC)
}
