package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/orbitdock/orbitdock/internal/config"
)

// remoteStatus mirrors internal/ingest's statusView wire shape; duplicated
// here rather than imported since cmd/orbitdockd only talks to the server
// over HTTP, the same boundary a third-party ops tool would cross.
type remoteStatus struct {
	SessionCount int            `json:"session_count"`
	ByWorkStatus map[string]int `json:"by_work_status"`
	SpoolDepth   int            `json:"spool_depth_bytes"`
	PersistQueue int            `json:"persist_queue_depth"`
}

var (
	statusAddr  string
	statusToken string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query the running server's session and queue counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := statusAddr
		if addr == "" {
			cfg, err := config.Load()
			if err != nil {
				return &configError{err}
			}
			addr = cfg.BindAddr
		}

		url := "http://" + strings.TrimPrefix(strings.TrimPrefix(addr, "http://"), "https://") + "/api/status"

		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		if statusToken != "" {
			req.Header.Set("Authorization", "Bearer "+statusToken)
		}

		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("query %s: %w", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status request to %s returned %d", url, resp.StatusCode)
		}

		var view remoteStatus
		if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
			return fmt.Errorf("decode status response: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "sessions: %d\n", view.SessionCount)
		for status, count := range view.ByWorkStatus {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d\n", status, count)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "spool depth: %d bytes\n", view.SpoolDepth)
		fmt.Fprintf(cmd.OutOrStdout(), "persist queue depth: %d\n", view.PersistQueue)
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "server bind address (default ORBITDOCK_BIND_ADDR)")
	statusCmd.Flags().StringVar(&statusToken, "auth-token", "", "bearer token, if auth is enabled")
}
