package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

// mcpServerName is the key the server is registered under in client configs.
const mcpServerName = "unbarrelify"

// Client describes how to detect an MCP client and register the server
// with it.
type Client struct {
	ID          string
	DisplayName string
	Method      string            // "cli" or "file"
	Binary      string            // cli: binary on PATH
	DirMarkers  []string          // file: project dirs that indicate presence
	ConfigPath  func() string     // file: config path, relative to the project
	ServersKey  string            // "servers" (VS Code) or "mcpServers"
	NeedsScope  bool              // cli: prompt for project/user scope
	ExtraFields map[string]string // extra entry fields, e.g. "type": "stdio"
}

// DetectedClient is a client found for the project.
type DetectedClient struct {
	Client         Client
	AlreadySetup   bool
	ResolvedConfig string
}

// setupEnv is the environment setup runs in. Tests replace its functions.
type setupEnv struct {
	dir      string
	in       *bufio.Reader
	out      io.Writer
	auto     bool
	lookPath func(string) (string, error)
	stat     func(string) (os.FileInfo, error)
	run      func(out io.Writer, name string, args ...string) error
}

func defaultSetupEnv(dir string, in io.Reader, out io.Writer) *setupEnv {
	return &setupEnv{
		dir:      dir,
		in:       bufio.NewReader(in),
		out:      out,
		lookPath: exec.LookPath,
		stat:     os.Stat,
		run: func(out io.Writer, name string, args ...string) error {
			cmd := exec.Command(name, args...)
			cmd.Dir = dir
			cmd.Stdout = out
			cmd.Stderr = out
			return cmd.Run()
		},
	}
}

// clientRegistry lists the supported clients in display order.
var clientRegistry = []Client{
	{
		ID: "claude_code", DisplayName: "Claude Code",
		Method: "cli", Binary: "claude", NeedsScope: true,
	},
	{
		ID: "openai_codex", DisplayName: "OpenAI Codex",
		Method: "cli", Binary: "codex", NeedsScope: true,
	},
	{
		ID: "vscode", DisplayName: "VS Code",
		Method: "file", DirMarkers: []string{".vscode"},
		ConfigPath:  func() string { return filepath.Join(".vscode", "mcp.json") },
		ServersKey:  "servers",
		ExtraFields: map[string]string{"type": "stdio"},
	},
	{
		ID: "cursor", DisplayName: "Cursor",
		Method: "file", DirMarkers: []string{".cursor"},
		ConfigPath: func() string { return filepath.Join(".cursor", "mcp.json") },
		ServersKey: "mcpServers",
	},
	{
		ID: "claude_desktop", DisplayName: "Claude Desktop",
		Method:     "file",
		ConfigPath: claudeDesktopConfigPath,
		ServersKey: "mcpServers",
	},
}

func claudeDesktopConfigPath() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "Claude", "claude_desktop_config.json")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "Claude", "claude_desktop_config.json")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "Claude", "claude_desktop_config.json")
	}
}

func newSetupCmd() *cobra.Command {
	var auto bool
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register the MCP server with detected AI clients",
		Long: `Detects MCP clients for the current project (Claude Code, Codex, VS Code,
Cursor, Claude Desktop) and adds an "unbarrelify serve" server entry to each.
Existing entries are left alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return err
			}
			env := defaultSetupEnv(dir, cmd.InOrStdin(), cmd.OutOrStdout())
			env.auto = auto
			env.execute()
			return nil
		},
	}
	cmd.Flags().BoolVar(&auto, "auto", false, "Configure every detected client without prompting (project scope)")
	return cmd
}

// resolve makes a client config path absolute against the project dir.
func (e *setupEnv) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(e.dir, path)
}

func (e *setupEnv) detect() []DetectedClient {
	var detected []DetectedClient

	for _, c := range clientRegistry {
		switch c.Method {
		case "cli":
			if _, err := e.lookPath(c.Binary); err == nil {
				detected = append(detected, DetectedClient{
					Client:       c,
					AlreadySetup: isConfigured(e.resolve(".mcp.json"), "mcpServers"),
				})
			}

		case "file":
			configPath := ""
			for _, marker := range c.DirMarkers {
				if _, err := e.stat(e.resolve(marker)); err == nil {
					configPath = e.resolve(c.ConfigPath())
					break
				}
			}
			// clients without markers are present when their config dir is
			if configPath == "" && len(c.DirMarkers) == 0 && c.ConfigPath != nil {
				candidate := e.resolve(c.ConfigPath())
				if _, err := e.stat(filepath.Dir(candidate)); err == nil {
					configPath = candidate
				}
			}
			if configPath != "" {
				detected = append(detected, DetectedClient{
					Client:         c,
					ResolvedConfig: configPath,
					AlreadySetup:   isConfigured(configPath, c.ServersKey),
				})
			}
		}
	}

	return detected
}

// isConfigured reports whether the server is registered under serversKey
// in the JSON config at path.
func isConfigured(path, serversKey string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var config map[string]any
	if err := json.Unmarshal(data, &config); err != nil {
		return false
	}
	servers, ok := config[serversKey].(map[string]any)
	if !ok {
		return false
	}
	_, exists := servers[mcpServerName]
	return exists
}

func serverEntry(extra map[string]string) map[string]any {
	entry := map[string]any{
		"command": "unbarrelify",
		"args":    []any{"serve"},
	}
	for k, v := range extra {
		entry[k] = v
	}
	return entry
}

// mergeServerEntry adds the server under serversKey to the existing JSON
// (or a new document). It returns nil, nil when already registered.
func mergeServerEntry(existing []byte, serversKey string, extra map[string]string) ([]byte, error) {
	config := make(map[string]any)
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &config); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	}

	servers, ok := config[serversKey].(map[string]any)
	if !ok {
		servers = make(map[string]any)
	}
	if _, exists := servers[mcpServerName]; exists {
		return nil, nil
	}

	servers[mcpServerName] = serverEntry(extra)
	config[serversKey] = servers

	out, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// writeServerEntry merges the server into the config file at configPath,
// creating it and its directory as needed.
func writeServerEntry(c Client, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	var existing []byte
	if data, err := os.ReadFile(configPath); err == nil {
		existing = data
	}

	merged, err := mergeServerEntry(existing, c.ServersKey, c.ExtraFields)
	if err != nil {
		return err
	}
	if merged == nil {
		return nil
	}
	return os.WriteFile(configPath, merged, 0644)
}

// --- prompts ---

// promptYesNo prints a question and reads Y/n. Empty input and EOF mean yes.
func promptYesNo(r *bufio.Reader, w io.Writer, question string) bool {
	fmt.Fprintf(w, "%s ", question)
	answer, ok := readLine(r)
	if !ok {
		return true
	}
	answer = strings.ToLower(answer)
	return answer == "" || answer == "y" || answer == "yes"
}

// promptScope reads 1/2/3 and returns "project", "user" or "" (skip).
func promptScope(r *bufio.Reader, w io.Writer, clientName string) string {
	fmt.Fprintf(w, "\n%s: add the %s MCP server?\n", clientName, mcpServerName)
	fmt.Fprintln(w, "  [1] Project scope (shared with team)")
	fmt.Fprintln(w, "  [2] User scope (personal, global)")
	fmt.Fprintln(w, "  [3] Skip")
	fmt.Fprintf(w, "  > ")

	answer, ok := readLine(r)
	if !ok {
		return "project"
	}
	switch answer {
	case "1", "":
		return "project"
	case "2":
		return "user"
	default:
		return ""
	}
}

// readLine reads one trimmed line. Prompts share the reader so no input
// is lost between them; ok is false at EOF.
func readLine(r *bufio.Reader) (string, bool) {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	return strings.TrimSpace(line), true
}

// --- orchestration ---

func (e *setupEnv) execute() {
	detected := e.detect()
	if len(detected) == 0 {
		fmt.Fprintln(e.out, "No supported MCP clients detected.")
		return
	}

	fmt.Fprintln(e.out, "Detected MCP clients:")
	for _, d := range detected {
		if d.AlreadySetup {
			fmt.Fprintf(e.out, "  * %s (already configured)\n", d.Client.DisplayName)
		} else {
			fmt.Fprintf(e.out, "  * %s\n", d.Client.DisplayName)
		}
	}
	fmt.Fprintln(e.out)

	if !e.auto && !promptYesNo(e.in, e.out, "Configure clients? [Y/n]") {
		return
	}

	for _, d := range detected {
		if d.AlreadySetup {
			fmt.Fprintf(e.out, "\n%s: already configured, skipping\n", d.Client.DisplayName)
			continue
		}
		e.configure(d)
	}
}

func (e *setupEnv) configure(d DetectedClient) {
	switch d.Client.Method {
	case "cli":
		scope := "project"
		if !e.auto && d.Client.NeedsScope {
			if scope = promptScope(e.in, e.out, d.Client.DisplayName); scope == "" {
				fmt.Fprintln(e.out, "  skipped")
				return
			}
		}
		args := []string{"mcp", "add", "--scope", scope, mcpServerName, "--", "unbarrelify", "serve"}
		if err := e.run(e.out, d.Client.Binary, args...); err != nil {
			fmt.Fprintf(e.out, "  ! %s: failed: %v\n", d.Client.DisplayName, err)
			return
		}
		fmt.Fprintf(e.out, "  + %s configured (scope: %s)\n", d.Client.DisplayName, scope)

	case "file":
		if !e.auto && !promptYesNo(e.in, e.out, fmt.Sprintf("\n%s: add to %s? [Y/n]", d.Client.DisplayName, d.ResolvedConfig)) {
			fmt.Fprintln(e.out, "  skipped")
			return
		}
		if err := writeServerEntry(d.Client, d.ResolvedConfig); err != nil {
			fmt.Fprintf(e.out, "  ! %s: failed: %v\n", d.Client.DisplayName, err)
			return
		}
		fmt.Fprintf(e.out, "  + %s configured (%s)\n", d.Client.DisplayName, d.ResolvedConfig)
	}
}
