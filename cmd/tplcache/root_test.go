package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) { v, ok := m[k]; return v, ok }
}

func runCLI(t *testing.T, lookup func(string) (string, bool), args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut, lookup)
	return code, out.String(), errOut.String()
}

func TestFlushNotConfigured(t *testing.T) {
	code, out, errOut := runCLI(t, env(nil), "flush")
	assert.Equal(t, 1, code)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "template cache is not enabled or no backend is defined")
}

func TestFlushLocmemFromEnv(t *testing.T) {
	code, out, _ := runCLI(t, env(map[string]string{"TPLCACHE_BACKEND": "locmem://"}), "flush")
	assert.Equal(t, 0, code)
	assert.Equal(t, "Successfully flushed template cache\n", out)
}

func TestFlushRedisFromConfigFile(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("tplcache:tplcache/bytecode/abc", "code"))
	require.NoError(t, mr.Set("unrelated", "keep"))

	p := filepath.Join(t.TempDir(), "tplcache.yaml")
	require.NoError(t, os.WriteFile(p, []byte("enabled: true\nbackend: redis://"+mr.Addr()+"/0\n"), 0o644))

	for _, format := range []string{"zap", "logrus", "slog"} {
		t.Run(format, func(t *testing.T) {
			code, out, errOut := runCLI(t, env(nil), "flush", "--config", p, "--log-format", format, "--log-level", "info")
			require.Equal(t, 0, code, errOut)
			assert.Contains(t, out, "Successfully flushed template cache")
			assert.Contains(t, errOut, "template cache flushed")
		})
	}
	assert.False(t, mr.Exists("tplcache:tplcache/bytecode/abc"))
	assert.True(t, mr.Exists("unrelated"))
}

func TestFlushBackendFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.SetError("LOADING")

	code, _, errOut := runCLI(t, env(map[string]string{"TPLCACHE_BACKEND": "redis://" + mr.Addr()}), "flush")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "failed to flush template cache: ")
}

func TestSlogFormatWiresAsyncHooks(t *testing.T) {
	var errOut bytes.Buffer
	c := &cli{stdout: &bytes.Buffer{}, stderr: &errOut, logFormat: "slog", logLevel: "debug"}
	require.NoError(t, c.setupLogger())
	require.NotNil(t, c.hooks)

	c.hooks.Culled("templates", 7)
	c.hooks.KeyWarning("bad key", "control_char")
	c.shutdown()

	assert.Contains(t, errOut.String(), "tplcache.culled")
	assert.Contains(t, errOut.String(), "removed=7")
	assert.Contains(t, errOut.String(), "tplcache.key_warning")
	assert.NotContains(t, errOut.String(), "bad key", "keys are redacted")

	for _, format := range []string{"zap", "logrus"} {
		c := &cli{stderr: &bytes.Buffer{}, logFormat: format, logLevel: "info"}
		require.NoError(t, c.setupLogger())
		assert.Nil(t, c.hooks, format)
	}
}

func TestInvalidFlags(t *testing.T) {
	for _, args := range [][]string{
		{"flush", "--log-format", "xml"},
		{"flush", "--log-level", "loud"},
		{"flush", "--config", filepath.Join(t.TempDir(), "missing.yaml")},
		{"flush", "extra"},
	} {
		code, _, errOut := runCLI(t, env(map[string]string{"TPLCACHE_BACKEND": "locmem://"}), args...)
		assert.Equal(t, 1, code, strings.Join(args, " "))
		assert.NotEmpty(t, errOut)
	}
}
