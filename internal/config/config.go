// Package config loads OrbitDock's server configuration from environment
// variables. Per spec §9's "Global state" note, this is the only place that
// reads os.Getenv — everything downstream receives an immutable *Config.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds every tunable OrbitDock reads at startup.
type Config struct {
	// DataDir is the root of persisted state: the SQLite DB, its WAL file,
	// the hook spool, and server logs.
	DataDir string
	// BindAddr is the "host:port" the HTTP+WS listener binds to.
	BindAddr string
	// AuthToken, when non-empty, is the shared secret HS256 tokens are
	// signed and verified against. Empty disables auth (local dev only).
	AuthToken string

	// LogFilter is the slog level string (debug|info|warn|error).
	LogFilter string
	// LogFormat is "json" or "pretty" ("text" is accepted as a synonym for
	// "pretty").
	LogFormat string
	// TruncateLogOnStart truncates <data_dir>/logs/server.log before the
	// first write of a new run.
	TruncateLogOnStart bool

	// PersistenceBatchMax is the max commands batched into one SQLite
	// transaction before it's flushed (spec §4.4: "up to 16 commands").
	PersistenceBatchMax int
	// PersistenceBatchWindow is the max time a batch waits to fill before
	// flushing (spec §4.4: "10 ms").
	PersistenceBatchWindow time.Duration
	// PersistenceQueueSize bounds the channel of pending PersistCmd values.
	PersistenceQueueSize int

	// WSClientQueueSize bounds each WebSocket client's send queue (spec §4.5).
	WSClientQueueSize int
	// WSHeartbeatInterval is how often the server pings a WS client.
	WSHeartbeatInterval time.Duration
	// WSHeartbeatMissLimit is how many missed pongs close a connection.
	WSHeartbeatMissLimit int
	// WSLagThreshold is how many consecutive drop-oldest evictions on a
	// client's queue trigger a LAGGED disconnect.
	WSLagThreshold int

	// SessionMessageReplayLimit bounds how many recent messages are loaded
	// per restored session on bootstrap (spec §4.7: "last-K messages").
	SessionMessageReplayLimit int
	// RegistrySweepInterval controls how often ended sessions are evicted
	// from the in-memory registry (not the DB) once past RegistrySweepTTL.
	RegistrySweepInterval time.Duration
	RegistrySweepTTL      time.Duration

	// ConnectorReconnectDelay, ConnectorMaxRestartTries and
	// ConnectorInitTimeout are loaded from the environment but not passed to
	// internal/connector, which uses retry.DefaultConfig() for its attach
	// backoff and its own DefaultInitTimeout.
	ConnectorReconnectDelay   time.Duration
	ConnectorMaxRestartTries  int
	ConnectorInitTimeout      time.Duration
	ApprovalFingerprintCacheN int
	// ConnectorAgentCommand is the argv used to launch the embedded agent
	// runtime subprocess for a direct-integration session (spec §4.6).
	// Empty disables POST /api/sessions entirely — a server that only
	// ingests hook events has nothing to exec.
	ConnectorAgentCommand []string

	// HTTP server timeouts.
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// ShutdownDrainTimeout bounds how long bootstrap waits for Persistence
	// to drain on SIGTERM/SIGINT.
	ShutdownDrainTimeout time.Duration
}

// Load reads configuration from environment variables, applying the
// defaults spec §6 implies.
func Load() (*Config, error) {
	dataDir := getEnv("ORBITDOCK_DATA_DIR", defaultDataDir())

	cfg := &Config{
		DataDir:   dataDir,
		BindAddr:  getEnv("ORBITDOCK_BIND_ADDR", "127.0.0.1:7630"),
		AuthToken: getEnv("ORBITDOCK_AUTH_TOKEN", ""),

		LogFilter:          getEnv("ORBITDOCK_SERVER_LOG_FILTER", "info"),
		LogFormat:          getEnv("ORBITDOCK_SERVER_LOG_FORMAT", "json"),
		TruncateLogOnStart: getEnvBool("ORBITDOCK_TRUNCATE_SERVER_LOG_ON_START", false),

		PersistenceBatchMax:    getEnvInt("ORBITDOCK_PERSIST_BATCH_MAX", 16),
		PersistenceBatchWindow: getEnvDuration("ORBITDOCK_PERSIST_BATCH_WINDOW", 10*time.Millisecond),
		PersistenceQueueSize:   getEnvInt("ORBITDOCK_PERSIST_QUEUE_SIZE", 4096),

		WSClientQueueSize:    getEnvInt("ORBITDOCK_WS_CLIENT_QUEUE_SIZE", 1024),
		WSHeartbeatInterval:  getEnvDuration("ORBITDOCK_WS_HEARTBEAT_INTERVAL", 20*time.Second),
		WSHeartbeatMissLimit: getEnvInt("ORBITDOCK_WS_HEARTBEAT_MISS_LIMIT", 3),
		WSLagThreshold:       getEnvInt("ORBITDOCK_WS_LAG_THRESHOLD", 8),

		SessionMessageReplayLimit: getEnvInt("ORBITDOCK_SESSION_REPLAY_LIMIT", 200),
		RegistrySweepInterval:     getEnvDuration("ORBITDOCK_REGISTRY_SWEEP_INTERVAL", 5*time.Minute),
		RegistrySweepTTL:          getEnvDuration("ORBITDOCK_REGISTRY_SWEEP_TTL", 24*time.Hour),

		ConnectorReconnectDelay:   getEnvDuration("ORBITDOCK_CONNECTOR_RECONNECT_DELAY", 2*time.Second),
		ConnectorMaxRestartTries:  getEnvInt("ORBITDOCK_CONNECTOR_MAX_RESTART_TRIES", 3),
		ConnectorInitTimeout:      getEnvDuration("ORBITDOCK_CONNECTOR_INIT_TIMEOUT", 30*time.Second),
		ApprovalFingerprintCacheN: getEnvInt("ORBITDOCK_APPROVAL_FINGERPRINT_CACHE", 512),
		ConnectorAgentCommand:     getEnvFields("ORBITDOCK_CONNECTOR_AGENT_COMMAND"),

		HTTPReadTimeout:  getEnvDuration("ORBITDOCK_HTTP_READ_TIMEOUT", 15*time.Second),
		HTTPWriteTimeout: getEnvDuration("ORBITDOCK_HTTP_WRITE_TIMEOUT", 15*time.Second),
		HTTPIdleTimeout:  getEnvDuration("ORBITDOCK_HTTP_IDLE_TIMEOUT", 60*time.Second),

		ShutdownDrainTimeout: getEnvDuration("ORBITDOCK_SHUTDOWN_DRAIN_TIMEOUT", 10*time.Second),
	}

	if strings.TrimSpace(cfg.DataDir) == "" {
		return nil, fmt.Errorf("ORBITDOCK_DATA_DIR resolved to an empty path")
	}

	return cfg, nil
}

// DBPath is <data_dir>/orbitdock.db.
func (c *Config) DBPath() string { return filepath.Join(c.DataDir, "orbitdock.db") }

// SpoolPath is <data_dir>/hook-spool.ndjson.
func (c *Config) SpoolPath() string { return filepath.Join(c.DataDir, "hook-spool.ndjson") }

// DeadSpoolPath is <data_dir>/hook-spool.dead.
func (c *Config) DeadSpoolPath() string { return filepath.Join(c.DataDir, "hook-spool.dead") }

// LogPath is <data_dir>/logs/server.log.
func (c *Config) LogPath() string { return filepath.Join(c.DataDir, "logs", "server.log") }

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".orbitdock")
	}
	return ".orbitdock"
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvFields splits a whitespace-separated env var into argv, returning
// nil (not an empty non-nil slice) when unset so callers can treat "unset"
// and "disabled" identically.
func getEnvFields(key string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	return strings.Fields(v)
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
