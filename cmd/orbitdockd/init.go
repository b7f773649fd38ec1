package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/orbitdock/orbitdock/internal/config"
	"github.com/orbitdock/orbitdock/internal/persistence"
)

const hookScriptTemplate = `#!/bin/sh
# orbitdock-hook.sh — forwards a Claude Code hook event to orbitdockd.
# Written to <data_dir>/hooks by 'orbitdockd init' and wired into
# settings.json by 'orbitdockd install-hooks'; this file only describes the
# shape of the forwarding call, per spec §1 the actual hook script content is
# a boundary interface, not implemented here.
#
# Claude Code invokes hook scripts with the event JSON on stdin; this
# template forwards that JSON body as-is and does not send the hook name.
set -eu

ORBITDOCK_URL="${ORBITDOCK_BIND_ADDR:-http://127.0.0.1:7630}/api/hook"
BODY="$(cat)"

curl -fsS -X POST "$ORBITDOCK_URL" \
	-H "Content-Type: application/json" \
	${ORBITDOCK_AUTH_TOKEN:+-H "Authorization: Bearer $ORBITDOCK_AUTH_TOKEN"} \
	-d "$BODY" >/dev/null || true
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the data directory, an empty database, and the hook script template",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return &configError{err}
		}

		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}

		store, err := persistence.Open(cfg.DBPath(), persistence.Options{})
		if err != nil {
			return err
		}
		if err := store.Close(); err != nil {
			return fmt.Errorf("close database after init: %w", err)
		}

		hookPath := filepath.Join(cfg.DataDir, "hooks", "orbitdock-hook.sh")
		if err := os.MkdirAll(filepath.Dir(hookPath), 0o755); err != nil {
			return fmt.Errorf("create hooks dir: %w", err)
		}
		if err := os.WriteFile(hookPath, []byte(hookScriptTemplate), 0o755); err != nil {
			return fmt.Errorf("write hook script template: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "initialized %s\n  database: %s\n  hook script: %s\n",
			cfg.DataDir, cfg.DBPath(), hookPath)
		return nil
	},
}
