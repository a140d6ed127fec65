package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/browserbridge/internal/domain/build"
)

func setupConfigDir(t *testing.T, body string) string {
	t.Helper()
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("ENV", "")
	t.Setenv("BROWSERBRIDGE_LOG_LEVEL", "error")

	dir := t.TempDir()
	if body != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(body), 0o600))
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app = nil
	configDir = ""
	runEvals = nil
	runExitAfter = 0
	runHost = ""
	runWatch = true
	runReply = ""
	configJSON = false
	evalHost = "script"
	evalTimeout = 30 * time.Second

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConfigPath(t *testing.T) {
	dir := setupConfigDir(t, "")

	out, err := execute(t, "--config-dir", dir, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml")+"\n", out)
	assert.FileExists(t, filepath.Join(dir, "config.toml"))
}

func TestConfigShow(t *testing.T) {
	dir := setupConfigDir(t, "[bridge]\nchannels = [\"phpApp\", \"audit\"]\n")

	out, err := execute(t, "--config-dir", dir, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "host.kind")
	assert.Contains(t, out, "script")
	assert.Contains(t, out, "phpApp, audit")

	out, err = execute(t, "--config-dir", dir, "config", "show", "--json")
	require.NoError(t, err)
	var doc map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "script", doc["host"]["kind"])
	assert.Equal(t, []any{"phpApp", "audit"}, doc["bridge"]["channels"])
}

func TestConfigShow_InvalidConfig(t *testing.T) {
	dir := setupConfigDir(t, "[host]\nkind = \"gecko\"\n")

	_, err := execute(t, "--config-dir", dir, "config", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host.kind")
}

func TestConfigSchema(t *testing.T) {
	out, err := execute(t, "config", "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "BrowserBridge Configuration")
}

func TestEval(t *testing.T) {
	dir := setupConfigDir(t, "")

	out, err := execute(t, "--config-dir", dir, "eval", "1 + 1", "'a' + 'b'", "undefined")
	require.NoError(t, err)
	assert.Contains(t, out, "2\n")
	assert.Contains(t, out, `"ab"`)
	assert.Contains(t, out, "undefined")
}

func TestEval_Stdin(t *testing.T) {
	dir := setupConfigDir(t, "")

	rootCmd.SetIn(bytes.NewBufferString("[1, 2].length\n"))
	defer rootCmd.SetIn(nil)

	out, err := execute(t, "--config-dir", dir, "eval", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "2")
}

func TestEval_FailingScript(t *testing.T) {
	dir := setupConfigDir(t, "")

	out, err := execute(t, "--config-dir", dir, "eval", "1", "missing()")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 scripts failed")
	assert.Contains(t, out, "error:")
}

func TestRun_PrintsMessages(t *testing.T) {
	dir := setupConfigDir(t, "[bridge]\nchannels = [\"phpApp\"]\n")

	page := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(page, []byte(`<title>Run</title>
<script>window.webkit.messageHandlers.phpApp.postMessage("Hello from JavaScript!")</script>`), 0o600))

	out, err := execute(t, "--config-dir", dir, "run", "--watch=false", "--exit-after", "500ms",
		"--eval", "document.title", page)
	require.NoError(t, err)
	assert.Contains(t, out, "[phpApp] Hello from JavaScript!")
	assert.Contains(t, out, `"Run"`)
}

func TestRun_RepliesToEnvelopes(t *testing.T) {
	dir := setupConfigDir(t, "[bridge]\nchannels = [\"phpApp\"]\nreply_callback = \"onReply\"\n")

	page := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(page, []byte(`<script>
window.onReply = function (data, id) {
  window.webkit.messageHandlers.phpApp.postMessage("reply " + id + " " + JSON.stringify(data));
};
window.webkit.messageHandlers.phpApp.postMessage(JSON.stringify({type: "echo", requestId: "r1", payload: {n: 2}}));
</script>`), 0o600))

	out, err := execute(t, "--config-dir", dir, "run", "--watch=false", "--exit-after", "500ms", page)
	require.NoError(t, err)
	assert.Contains(t, out, `[phpApp] reply r1 {"n":2}`)
}

func TestRun_RejectsBadTarget(t *testing.T) {
	dir := setupConfigDir(t, "")

	_, err := execute(t, "--config-dir", dir, "run", "--watch=false", "ftp://example.com/x")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	SetBuildInfo(build.Info{Version: "v1.2.3", Commit: "abc", BuildDate: "today"})

	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "v1.2.3 (abc, built today)")
}
