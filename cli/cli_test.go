package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"preset-labels/cli"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAddGetRemoveAgainstFileStore(t *testing.T) {
	t.Setenv("PRESET_LABELS_STORE_BACKEND", "file")
	t.Setenv("PRESET_LABELS_STORE_FILE_PATH", filepath.Join(t.TempDir(), "storage.json"))
	t.Setenv("PRESET_LABELS_LOG_LEVEL", "error")

	out, err := run(t, "get")
	require.NoError(t, err)
	require.Equal(t, "null", strings.TrimSpace(out))

	_, err = run(t, "add", "portrait", "landscape", "portrait")
	require.NoError(t, err)

	_, err = run(t, "remove", "portrait")
	require.NoError(t, err)

	out, err = run(t, "get")
	require.NoError(t, err)
	require.Equal(t, `["landscape"]`, strings.TrimSpace(out))
}

func TestAddRequiresArgs(t *testing.T) {
	t.Setenv("PRESET_LABELS_STORE_BACKEND", "memory")
	_, err := run(t, "add")
	require.Error(t, err)
}

func TestBadConfigFails(t *testing.T) {
	t.Setenv("PRESET_LABELS_STORE_BACKEND", "etcd")
	_, err := run(t, "get")
	require.ErrorContains(t, err, "unknown store.backend")
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	_ = w.Close()
	os.Stdout = orig

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	_ = r.Close()
	return buf.String()
}

func TestGetStdoutIsJSONAtDefaultLogLevel(t *testing.T) {
	t.Setenv("PRESET_LABELS_STORE_BACKEND", "file")
	t.Setenv("PRESET_LABELS_STORE_FILE_PATH", filepath.Join(t.TempDir(), "storage.json"))
	t.Setenv("PRESET_LABELS_LOG_LEVEL", "info")

	_, err := run(t, "add", "a", "b")
	require.NoError(t, err)

	var runErr error
	out := captureStdout(t, func() {
		cmd := cli.NewRootCommand()
		cmd.SetArgs([]string{"get"})
		runErr = cmd.ExecuteContext(context.Background())
	})
	require.NoError(t, runErr)

	var labels []string
	require.NoError(t, json.Unmarshal([]byte(out), &labels), "stdout: %q", out)
	require.Equal(t, []string{"a", "b"}, labels)
}

func TestHelpIgnoresInvalidConfig(t *testing.T) {
	t.Setenv("PRESET_LABELS_STORE_BACKEND", "redis")

	out, err := run(t, "help")
	require.NoError(t, err)
	require.Contains(t, out, "remove")
}
