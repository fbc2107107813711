package envx_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/swiftlogistics/platform/pkg/envx"
)

func TestTypedLookups(t *testing.T) {
	t.Setenv("ENVX_STR", "value")
	t.Setenv("ENVX_INT", "42")
	t.Setenv("ENVX_BAD_INT", "forty")
	t.Setenv("ENVX_BOOL", "true")
	t.Setenv("ENVX_DUR", "90s")
	t.Setenv("ENVX_DUR_SECONDS", "30")
	t.Setenv("ENVX_LIST", "a, b,,c")

	require.Equal(t, "value", envx.String("ENVX_STR", "x"))
	require.Equal(t, "x", envx.String("ENVX_UNSET", "x"))
	require.Equal(t, 42, envx.Int("ENVX_INT", 1))
	require.Equal(t, 1, envx.Int("ENVX_BAD_INT", 1))
	require.True(t, envx.Bool("ENVX_BOOL", false))
	require.Equal(t, 90*time.Second, envx.Duration("ENVX_DUR", time.Second))
	require.Equal(t, 30*time.Second, envx.Duration("ENVX_DUR_SECONDS", time.Second))
	require.Equal(t, []string{"a", "b", "c"}, envx.List("ENVX_LIST", nil))
	require.Equal(t, []string{"d"}, envx.List("ENVX_UNSET", []string{"d"}))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("ENVX_FROM_FILE=loaded\nENVX_PRESET=file\n"), 0o600))

	t.Setenv("ENVX_PRESET", "process")
	t.Cleanup(func() { os.Unsetenv("ENVX_FROM_FILE") })

	require.NoError(t, envx.Load(path, filepath.Join(dir, "missing.env"), ""))
	require.Equal(t, "loaded", os.Getenv("ENVX_FROM_FILE"))
	require.Equal(t, "process", os.Getenv("ENVX_PRESET"))
}
