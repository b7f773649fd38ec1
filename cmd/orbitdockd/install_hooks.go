package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// hookEventBindings maps the host settings file's hook event names to the
// claude_* event types the hook script forwards (spec §6's hook ingestion
// protocol). install-hooks only rewrites JSON; wiring Claude Code to
// actually invoke the script on each event is the boundary interface spec
// §1 excludes.
var hookEventBindings = []string{
	"SessionStart",
	"SessionEnd",
	"UserPromptSubmit",
	"PreToolUse",
	"PostToolUse",
	"SubagentStop",
}

var installHooksSettingsPath string

var installHooksCmd = &cobra.Command{
	Use:   "install-hooks",
	Short: "Patch the host settings file to forward lifecycle events to orbitdockd",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := installHooksSettingsPath
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return &configError{fmt.Errorf("resolve home directory: %w", err)}
			}
			path = filepath.Join(home, ".claude", "settings.json")
		}

		scriptPath, err := defaultHookScriptPath()
		if err != nil {
			return &configError{err}
		}

		settings, err := readSettings(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		if err := backupSettings(path, settings); err != nil {
			return fmt.Errorf("backup %s: %w", path, err)
		}

		patched := patchHooks(settings, scriptPath)

		out, err := json.MarshalIndent(patched, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal patched settings: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
		if err := os.WriteFile(path, append(out, '\n'), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "patched %s with %d hook bindings (backup alongside as .bak)\n", path, len(hookEventBindings))
		return nil
	},
}

func init() {
	installHooksCmd.Flags().StringVar(&installHooksSettingsPath, "settings", "", "host settings file to patch (default ~/.claude/settings.json)")
}

func defaultHookScriptPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".orbitdock", "hooks", "orbitdock-hook.sh"), nil
}

// readSettings loads an existing settings file as a generic JSON object, or
// returns an empty object if the file doesn't exist yet.
func readSettings(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	settings := map[string]any{}
	if len(raw) == 0 {
		return settings, nil
	}
	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil, fmt.Errorf("parse existing settings json: %w", err)
	}
	return settings, nil
}

// backupSettings writes path+".bak" with the settings content as it stood
// before patching, skipping silently if the file didn't exist yet.
func backupSettings(path string, settings map[string]any) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	raw, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path+".bak", raw, 0o644)
}

// patchHooks merges an "orbitdock-hook" command entry into every event
// binding's hook list without disturbing any hooks another tool installed.
func patchHooks(settings map[string]any, scriptPath string) map[string]any {
	hooksRaw, _ := settings["hooks"].(map[string]any)
	if hooksRaw == nil {
		hooksRaw = map[string]any{}
	}

	for _, event := range hookEventBindings {
		entries, _ := hooksRaw[event].([]any)
		entries = upsertHookEntry(entries, scriptPath)
		hooksRaw[event] = entries
	}

	settings["hooks"] = hooksRaw
	return settings
}

// upsertHookEntry adds a matcher block invoking scriptPath to entries unless
// one already does, so install-hooks is safe to run more than once.
func upsertHookEntry(entries []any, scriptPath string) []any {
	for _, e := range entries {
		block, ok := e.(map[string]any)
		if !ok {
			continue
		}
		if blockInvokes(block, scriptPath) {
			return entries
		}
	}
	return append(entries, map[string]any{
		"matcher": "*",
		"hooks": []any{
			map[string]any{"type": "command", "command": scriptPath},
		},
	})
}

func blockInvokes(block map[string]any, scriptPath string) bool {
	hooks, _ := block["hooks"].([]any)
	for _, h := range hooks {
		hm, ok := h.(map[string]any)
		if !ok {
			continue
		}
		if cmd, _ := hm["command"].(string); cmd == scriptPath {
			return true
		}
	}
	return false
}
