package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/orbitdock/orbitdock/internal/bootstrap"
	"github.com/orbitdock/orbitdock/internal/config"
	"github.com/orbitdock/orbitdock/internal/logging"
)

var (
	startBindAddr  string
	startAuthToken string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the orbitdockd server in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return &configError{err}
		}
		if startBindAddr != "" {
			cfg.BindAddr = startBindAddr
		}
		if startAuthToken != "" {
			cfg.AuthToken = startAuthToken
		}

		logFile, err := logging.SetupFile(cfg.LogFilter, cfg.LogFormat, cfg.LogPath(), cfg.TruncateLogOnStart)
		if err != nil {
			return &configError{err}
		}
		defer logFile.Close()

		return bootstrap.Run(context.Background(), cfg)
	},
}

func init() {
	startCmd.Flags().StringVar(&startBindAddr, "bind", "", "override ORBITDOCK_BIND_ADDR (host:port)")
	startCmd.Flags().StringVar(&startAuthToken, "auth-token", "", "override ORBITDOCK_AUTH_TOKEN")
}
