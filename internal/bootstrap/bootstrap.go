// Package bootstrap wires every other package together into a running
// server: migrate, restore non-Ended sessions into actors, open the HTTP
// and WS listeners, drain the offline hook spool, then block until a
// shutdown signal and drain persistence. It is the direct descendant of
// the teacher's main.go bootstrap-then-serve shape and its SIGINT/SIGTERM
// select loop, trimmed of the devcontainer/VM-provisioning steps that have
// no analog in a local single-node server.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/orbitdock/orbitdock/internal/approval"
	"github.com/orbitdock/orbitdock/internal/auth"
	"github.com/orbitdock/orbitdock/internal/config"
	"github.com/orbitdock/orbitdock/internal/connector"
	"github.com/orbitdock/orbitdock/internal/ingest"
	"github.com/orbitdock/orbitdock/internal/persistence"
	"github.com/orbitdock/orbitdock/internal/registry"
	"github.com/orbitdock/orbitdock/internal/sessionactor"
	"github.com/orbitdock/orbitdock/internal/transition"
	"github.com/orbitdock/orbitdock/internal/wsplane"
)

// noAutoApprove never auto-approves a pending tool, the conservative
// default for hook-driven sessions until a future embedded-runtime
// provider configures something tool-specific.
func noAutoApprove(string) bool { return false }

// Run opens the database, restores every restorable session, stands up the
// HTTP/WS surface, drains the hook spool, and blocks until ctx is cancelled
// or a SIGINT/SIGTERM arrives, then drains persistence before returning.
func Run(ctx context.Context, cfg *config.Config) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	store, err := persistence.Open(cfg.DBPath(), persistence.Options{
		BatchMax:    cfg.PersistenceBatchMax,
		BatchWindow: cfg.PersistenceBatchWindow,
		QueueSize:   cfg.PersistenceQueueSize,
	})
	if err != nil {
		return fmt.Errorf("open persistence: %w", err)
	}

	reg := registry.New()
	hub := wsplane.NewHub(reg)

	connMgr := connector.NewManager(cfg.ConnectorAgentCommand)
	defer connMgr.StopAll()

	deps := sessionactor.Deps{
		Store:       store,
		AutoApprove: noAutoApprove,
		Basename:    filepath.Base,
		Broadcast:   hub.Broadcast,
		Reply:       hub.DeliverReply,
		Dispatch:    connMgr.Dispatch,
	}

	if err := restoreSessions(ctx, store, reg, deps, cfg.SessionMessageReplayLimit); err != nil {
		return fmt.Errorf("restore sessions: %w", err)
	}

	newActor := func(id string) registry.Handle {
		return sessionactor.New(transition.SessionState{ID: id}, deps)
	}

	var attachDirect ingest.AttachDirectFunc
	if len(cfg.ConnectorAgentCommand) > 0 {
		attachDirect = func(ctx context.Context, sessionID, cwd, previousACPSessionID string, deliver func(transition.Input) bool) error {
			grants := approval.NewCache(cfg.ApprovalFingerprintCacheN)
			_, err := connMgr.AttachWithRetry(ctx, sessionID, cwd, previousACPSessionID, grants, deliver)
			return err
		}
	}

	handler, err := ingest.NewHandler(reg, newActor, attachDirect, store, cfg.SpoolPath(), cfg.DeadSpoolPath())
	if err != nil {
		return fmt.Errorf("build ingest handler: %w", err)
	}
	if err := handler.DrainSpool(); err != nil {
		slog.Error("bootstrap: spool drain failed, continuing with live dispatch", "error", err)
	}
	handler.MarkBootstrapComplete()

	wsHandler := wsplane.NewHandler(hub, reg, cfg.WSClientQueueSize, cfg.WSLagThreshold, cfg.WSHeartbeatInterval, cfg.WSHeartbeatMissLimit)

	validator := auth.NewValidator(cfg.AuthToken)

	mux := http.NewServeMux()
	mux.Handle("/ws", validator.Middleware(wsHandler))
	mux.Handle("/", validator.Middleware(handler))

	srv := &http.Server{
		Addr:         cfg.BindAddr,
		Handler:      mux,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	stopSweeper := startRegistrySweeper(reg, cfg.RegistrySweepInterval, cfg.RegistrySweepTTL)
	defer stopSweeper()

	sigCtx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("orbitdockd listening", "addr", cfg.BindAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-sigCtx.Done():
		slog.Info("orbitdockd shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownDrainTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("bootstrap: http shutdown error", "error", err)
	}

	reg.IterActive(func(_ string, h registry.Handle) { h.Stop() })
	connMgr.StopAll()

	drained := make(chan struct{})
	go func() {
		store.Close()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(cfg.ShutdownDrainTimeout):
		slog.Warn("bootstrap: persistence drain timed out, exiting anyway", "timeout", cfg.ShutdownDrainTimeout)
	}

	return nil
}

// restoreSessions loads every non-Ended session row plus its last-K
// messages and spawns one actor per row, seeded directly from the restored
// state rather than replayed input by input (spec invariant 4: "restore is
// a seed, not a replay").
func restoreSessions(ctx context.Context, store *persistence.Store, reg *registry.Registry, deps sessionactor.Deps, replayLimit int) error {
	sessions, err := store.RestorableSessions(ctx)
	if err != nil {
		return err
	}

	for _, row := range sessions {
		messages, err := store.RecentMessages(ctx, row.ID, replayLimit)
		if err != nil {
			return fmt.Errorf("load messages for session %s: %w", row.ID, err)
		}

		state := sessionactor.FromRow(row, messages)
		actor := sessionactor.New(state, deps)
		if _, ok := reg.Create(row.ID, actor); !ok {
			// Two rows with the same id should never happen (primary key),
			// but stop the orphan defensively rather than leak it.
			actor.Stop()
		}
	}

	slog.Info("bootstrap: restored sessions", "count", len(sessions))
	return nil
}

// startRegistrySweeper periodically evicts Ended sessions older than ttl
// from the in-memory registry (never the DB). Returns a stop func.
func startRegistrySweeper(reg *registry.Registry, interval, ttl time.Duration) func() {
	if interval <= 0 || ttl <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := reg.Sweep(ttl); n > 0 {
					slog.Debug("bootstrap: swept ended sessions", "count", n)
				}
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}
