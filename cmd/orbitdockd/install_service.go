package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/orbitdock/orbitdock/internal/config"
)

const systemdUnitTemplate = `[Unit]
Description=OrbitDock session orchestration server
After=network.target

[Service]
Type=simple
ExecStart=%s start
Restart=on-failure
RestartSec=2
Environment=ORBITDOCK_DATA_DIR=%s

[Install]
WantedBy=default.target
`

var installServiceEnable bool

var installServiceCmd = &cobra.Command{
	Use:   "install-service",
	Short: "Write a systemd user unit for orbitdockd",
	Long: `Writes a systemd user unit at ~/.config/systemd/user/orbitdockd.service.
The actual process-supervision integration (enabling and starting the unit)
is a boundary interface per spec §1 — this verb only templates the unit file
unless --enable is given, in which case it also runs "systemctl --user
enable --now" against it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return &configError{err}
		}

		exePath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolve orbitdockd executable path: %w", err)
		}

		home, err := os.UserHomeDir()
		if err != nil {
			return &configError{fmt.Errorf("resolve home directory: %w", err)}
		}
		unitDir := filepath.Join(home, ".config", "systemd", "user")
		unitPath := filepath.Join(unitDir, "orbitdockd.service")

		if err := os.MkdirAll(unitDir, 0o755); err != nil {
			return fmt.Errorf("create systemd user unit dir: %w", err)
		}

		unit := fmt.Sprintf(systemdUnitTemplate, exePath, cfg.DataDir)
		if err := os.WriteFile(unitPath, []byte(unit), 0o644); err != nil {
			return fmt.Errorf("write unit file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", unitPath)

		if !installServiceEnable {
			return nil
		}

		out, err := exec.Command("systemctl", "--user", "daemon-reload").CombinedOutput()
		if err != nil {
			return fmt.Errorf("systemctl daemon-reload: %w: %s", err, strings.TrimSpace(string(out)))
		}
		out, err = exec.Command("systemctl", "--user", "enable", "--now", "orbitdockd.service").CombinedOutput()
		if err != nil {
			return fmt.Errorf("systemctl enable --now: %w: %s", err, strings.TrimSpace(string(out)))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "enabled and started orbitdockd.service")
		return nil
	},
}

func init() {
	installServiceCmd.Flags().BoolVar(&installServiceEnable, "enable", false, "also run systemctl --user enable --now")
}
