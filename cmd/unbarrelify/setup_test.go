package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv finds no binaries and no directories unless told otherwise.
func testEnv(t *testing.T, input string) (*setupEnv, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	env := defaultSetupEnv(t.TempDir(), strings.NewReader(input), out)
	env.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	env.stat = func(string) (os.FileInfo, error) { return nil, os.ErrNotExist }
	env.run = func(io.Writer, string, ...string) error { return errors.New("unexpected command") }
	return env, out
}

func servers(t *testing.T, data []byte, key string) map[string]any {
	t.Helper()
	var config map[string]any
	require.NoError(t, json.Unmarshal(data, &config))
	s, ok := config[key].(map[string]any)
	require.True(t, ok, "missing %q", key)
	return s
}

// --- JSON merge ---

func TestMergeServerEntry_EmptyFile(t *testing.T) {
	out, err := mergeServerEntry(nil, "mcpServers", nil)
	require.NoError(t, err)
	require.NotNil(t, out)

	entry := servers(t, out, "mcpServers")[mcpServerName].(map[string]any)
	assert.Equal(t, "unbarrelify", entry["command"])
	assert.Equal(t, []any{"serve"}, entry["args"])
	assert.Equal(t, byte('\n'), out[len(out)-1])
}

func TestMergeServerEntry_ExistingServers(t *testing.T) {
	existing := []byte(`{"mcpServers": {"other-server": {"command": "other", "args": ["start"]}}}`)
	out, err := mergeServerEntry(existing, "mcpServers", nil)
	require.NoError(t, err)

	s := servers(t, out, "mcpServers")
	assert.Contains(t, s, "other-server")
	assert.Contains(t, s, mcpServerName)
}

func TestMergeServerEntry_AlreadyConfigured(t *testing.T) {
	existing := []byte(`{"mcpServers": {"unbarrelify": {"command": "unbarrelify", "args": ["serve"]}}}`)
	out, err := mergeServerEntry(existing, "mcpServers", nil)
	assert.NoError(t, err)
	assert.Nil(t, out)
}

func TestMergeServerEntry_VSCodeFormat(t *testing.T) {
	out, err := mergeServerEntry(nil, "servers", map[string]string{"type": "stdio"})
	require.NoError(t, err)

	entry := servers(t, out, "servers")[mcpServerName].(map[string]any)
	assert.Equal(t, "stdio", entry["type"])
}

func TestMergeServerEntry_InvalidJSON(t *testing.T) {
	_, err := mergeServerEntry([]byte("not json"), "mcpServers", nil)
	assert.ErrorContains(t, err, "invalid JSON")
}

// --- prompts ---

func TestPromptYesNo(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"\n", true},
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"", true},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, promptYesNo(bufio.NewReader(strings.NewReader(tc.input)), &bytes.Buffer{}, "Continue?"), "input %q", tc.input)
	}
}

func TestPromptScope(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1\n", "project"},
		{"2\n", "user"},
		{"3\n", ""},
		{"\n", "project"},
		{"", "project"},
	}
	for _, tc := range tests {
		w := &bytes.Buffer{}
		assert.Equal(t, tc.want, promptScope(bufio.NewReader(strings.NewReader(tc.input)), w, "Claude Code"), "input %q", tc.input)
		assert.Contains(t, w.String(), "Claude Code: add the unbarrelify MCP server?")
	}
}

// --- detection ---

func TestDetect_CLIOnPath(t *testing.T) {
	env, _ := testEnv(t, "")
	env.lookPath = func(name string) (string, error) {
		if name == "claude" {
			return "/usr/bin/claude", nil
		}
		return "", exec.ErrNotFound
	}

	detected := env.detect()
	require.Len(t, detected, 1)
	assert.Equal(t, "claude_code", detected[0].Client.ID)
	assert.False(t, detected[0].AlreadySetup)
}

func TestDetect_CLIAlreadyConfigured(t *testing.T) {
	env, _ := testEnv(t, "")
	env.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }
	require.NoError(t, os.WriteFile(filepath.Join(env.dir, ".mcp.json"), []byte(`{"mcpServers": {"unbarrelify": {}}}`), 0644))

	detected := env.detect()
	require.Len(t, detected, 2)
	assert.True(t, detected[0].AlreadySetup)
}

func TestDetect_NoneDetected(t *testing.T) {
	env, _ := testEnv(t, "")
	assert.Empty(t, env.detect())
}

func TestDetect_FileBasedClient(t *testing.T) {
	env, _ := testEnv(t, "")
	env.stat = func(name string) (os.FileInfo, error) {
		if name == filepath.Join(env.dir, ".vscode") {
			return nil, nil
		}
		return nil, os.ErrNotExist
	}

	detected := env.detect()
	require.Len(t, detected, 1)
	assert.Equal(t, "vscode", detected[0].Client.ID)
	assert.Equal(t, filepath.Join(env.dir, ".vscode", "mcp.json"), detected[0].ResolvedConfig)
}

// --- orchestration ---

func TestExecute_NoClients(t *testing.T) {
	env, out := testEnv(t, "")
	env.execute()
	assert.Contains(t, out.String(), "No supported MCP clients detected.")
}

func TestExecute_AutoFileClient(t *testing.T) {
	env, out := testEnv(t, "")
	env.auto = true
	require.NoError(t, os.MkdirAll(filepath.Join(env.dir, ".cursor"), 0755))
	// keep Claude Desktop out of the picture
	env.stat = func(name string) (os.FileInfo, error) {
		if !strings.HasPrefix(name, env.dir) {
			return nil, os.ErrNotExist
		}
		return os.Stat(name)
	}

	env.execute()

	data, err := os.ReadFile(filepath.Join(env.dir, ".cursor", "mcp.json"))
	require.NoError(t, err)
	entry := servers(t, data, "mcpServers")[mcpServerName].(map[string]any)
	assert.Equal(t, "unbarrelify", entry["command"])
	assert.Contains(t, out.String(), "Cursor configured")
}

func TestExecute_CLIClientWithScope(t *testing.T) {
	env, out := testEnv(t, "y\n2\n")
	env.lookPath = func(name string) (string, error) {
		if name == "codex" {
			return "/usr/bin/codex", nil
		}
		return "", exec.ErrNotFound
	}
	var got []string
	env.run = func(_ io.Writer, name string, args ...string) error {
		got = append([]string{name}, args...)
		return nil
	}

	env.execute()

	assert.Equal(t, []string{"codex", "mcp", "add", "--scope", "user", "unbarrelify", "--", "unbarrelify", "serve"}, got)
	assert.Contains(t, out.String(), "OpenAI Codex configured (scope: user)")
}

func TestExecute_Declined(t *testing.T) {
	env, out := testEnv(t, "n\n")
	env.lookPath = func(string) (string, error) { return "/usr/bin/claude", nil }
	env.execute()
	assert.NotContains(t, out.String(), "configured (")
}

func TestWriteServerEntry_CreatesAndMerges(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "sub", "mcp.json")
	c := Client{ServersKey: "mcpServers"}

	require.NoError(t, writeServerEntry(c, configPath))
	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, servers(t, data, "mcpServers"), mcpServerName)

	require.NoError(t, os.WriteFile(configPath, []byte(`{"mcpServers": {"other": {"command": "other"}}}`), 0644))
	require.NoError(t, writeServerEntry(c, configPath))
	data, err = os.ReadFile(configPath)
	require.NoError(t, err)
	s := servers(t, data, "mcpServers")
	assert.Contains(t, s, "other")
	assert.Contains(t, s, mcpServerName)
}
