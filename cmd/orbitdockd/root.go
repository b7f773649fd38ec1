package main

import (
	"errors"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/orbitdock/orbitdock/internal/apperr"
)

// Exit codes, spec §6: 0 ok, 1 generic error, 2 bad configuration,
// 3 port in use, 4 migration failure.
const (
	exitOK              = 0
	exitGenericError    = 1
	exitBadConfig       = 2
	exitPortInUse       = 3
	exitMigrationFailed = 4
)

// configError marks an error that resolves to exitBadConfig rather than the
// generic exitGenericError fallback.
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	var cfgErr *configError
	if errors.As(err, &cfgErr) {
		return exitBadConfig
	}
	if kind, ok := apperr.KindOf(err); ok && kind == apperr.Fatal {
		return exitMigrationFailed
	}
	if errors.Is(err, syscall.EADDRINUSE) {
		return exitPortInUse
	}
	return exitGenericError
}

var rootCmd = &cobra.Command{
	Use:   "orbitdockd",
	Short: "OrbitDock session orchestration server",
	Long: `orbitdockd is the local, single-node session orchestration hub for
long-running AI-coding-agent sessions: it owns the SQLite database, runs one
actor per session, and exposes an HTTP+WebSocket surface for hook ingestion,
live subscriptions, and control commands.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(installHooksCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(generateTokenCmd)
	rootCmd.AddCommand(installServiceCmd)
	rootCmd.AddCommand(statusCmd)
}
