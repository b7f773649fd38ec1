// Package connector bridges a session to an embedded agent runtime over
// the Agent Client Protocol, exactly as the teacher's internal/acp.Gateway
// and SessionHost bridge a WebSocket viewer to an ACP agent subprocess.
// Where the teacher drives a devcontainer over docker exec, OrbitDock spawns
// the agent directly on the local host (spec §1: single-node, no container
// orchestration layer).
package connector

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	acpsdk "github.com/coder/acp-go-sdk"

	"github.com/orbitdock/orbitdock/internal/approval"
	"github.com/orbitdock/orbitdock/internal/transition"
)

// DefaultInitTimeout bounds the ACP Initialize/NewSession/LoadSession
// handshake, mirroring the teacher's GatewayConfig.InitTimeoutMs default.
const DefaultInitTimeout = 30 * time.Second

// Config is what a Bridge needs to spawn and speak to one agent process.
type Config struct {
	AgentCommand         []string
	Cwd                  string
	PreviousACPSessionID string
	InitTimeout          time.Duration
	GrantCache           *approval.Cache

	// Deliver hands a translated Input to the owning session's actor
	// mailbox. Supplied by the Manager, which wires it to
	// sessionactor.Actor.Send.
	Deliver func(transition.Input) bool
}

type pendingApproval struct {
	resultCh chan transition.ApprovalDecision
}

// Bridge owns one session's agent subprocess and ACP connection.
type Bridge struct {
	sessionID string
	cwd       string
	cfg       Config
	grants    *approval.Cache

	cmd     *exec.Cmd
	conn    *acpsdk.ClientSideConnection
	acpID   acpsdk.SessionId
	deliver func(transition.Input) bool

	mu           sync.Mutex
	pending      map[string]*pendingApproval
	promptCancel context.CancelFunc
	stopped      chan struct{}
	stopOnce     sync.Once
}

// Start spawns the agent process and performs the ACP Initialize +
// NewSession/LoadSession handshake, following the exact sequence of the
// teacher's SessionHost.startAgent.
func Start(ctx context.Context, sessionID string, cfg Config) (*Bridge, error) {
	if len(cfg.AgentCommand) == 0 {
		return nil, fmt.Errorf("connector: no agent command configured")
	}
	if cfg.GrantCache == nil {
		cfg.GrantCache = approval.NewCache(0)
	}

	cmd := exec.Command(cfg.AgentCommand[0], cfg.AgentCommand[1:]...)
	cmd.Dir = cfg.Cwd

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("connector: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("connector: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("connector: start agent process: %w", err)
	}

	b := &Bridge{
		sessionID: sessionID,
		cwd:       cfg.Cwd,
		cfg:       cfg,
		grants:    cfg.GrantCache,
		cmd:       cmd,
		deliver:   cfg.Deliver,
		pending:   make(map[string]*pendingApproval),
		stopped:   make(chan struct{}),
	}

	b.conn = acpsdk.NewClientSideConnection(&clientImpl{bridge: b}, stdin, stdout)

	timeout := cfg.InitTimeout
	if timeout == 0 {
		timeout = DefaultInitTimeout
	}
	initCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	initResp, err := b.conn.Initialize(initCtx, acpsdk.InitializeRequest{
		ProtocolVersion: acpsdk.ProtocolVersionNumber,
		ClientCapabilities: acpsdk.ClientCapabilities{
			Fs: acpsdk.FileSystemCapability{ReadTextFile: false, WriteTextFile: false},
		},
	})
	if err != nil {
		b.killProcess()
		return nil, fmt.Errorf("connector: ACP initialize failed: %w", err)
	}

	if cfg.PreviousACPSessionID != "" && initResp.AgentCapabilities.LoadSession {
		if _, err := b.conn.LoadSession(initCtx, acpsdk.LoadSessionRequest{
			SessionId:  acpsdk.SessionId(cfg.PreviousACPSessionID),
			Cwd:        cfg.Cwd,
			McpServers: []acpsdk.McpServer{},
		}); err == nil {
			b.acpID = acpsdk.SessionId(cfg.PreviousACPSessionID)
			go b.monitorExit()
			return b, nil
		}
		slog.Warn("connector: LoadSession failed, falling back to NewSession", "session_id", sessionID)
	}

	sessResp, err := b.conn.NewSession(initCtx, acpsdk.NewSessionRequest{
		Cwd:        cfg.Cwd,
		McpServers: []acpsdk.McpServer{},
	})
	if err != nil {
		b.killProcess()
		return nil, fmt.Errorf("connector: ACP new session failed: %w", err)
	}
	b.acpID = sessResp.SessionId

	go b.monitorExit()
	return b, nil
}

// ACPSessionID returns the embedded agent's own session id, persisted so a
// future restart can reconnect via LoadSession.
func (b *Bridge) ACPSessionID() string { return string(b.acpID) }

func (b *Bridge) deliverEvent(ev transition.ConnectorEvent) {
	if b.deliver == nil {
		return
	}
	b.deliver(transition.Input{Connector: &ev})
}

func (b *Bridge) registerPending(approvalID string, ch chan transition.ApprovalDecision) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[approvalID] = &pendingApproval{resultCh: ch}
}

func (b *Bridge) unregisterPending(approvalID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, approvalID)
}

// Dispatch executes one ConnectorCommand effect against the live ACP
// connection, the reverse direction of translateNotification.
func (b *Bridge) Dispatch(cmd transition.ConnectorCommand) {
	switch cmd.Kind {
	case transition.ConnCmdSendTurn:
		b.sendTurn(cmd.Prompt)
	case transition.ConnCmdSubmitApproval:
		b.submitApproval(cmd.ApprovalID, cmd.Decision)
	case transition.ConnCmdInterrupt:
		b.interrupt()
	case transition.ConnCmdFork:
		slog.Info("connector: fork requested, spawning sibling session is a bootstrap/Manager concern", "session_id", b.sessionID)
	case transition.ConnCmdDisconnect:
		b.Stop()
	}
}

func (b *Bridge) sendTurn(prompt string) {
	b.mu.Lock()
	if b.promptCancel != nil {
		b.mu.Unlock()
		slog.Warn("connector: prompt already in flight, ignoring concurrent SendTurn", "session_id", b.sessionID)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.promptCancel = cancel
	b.mu.Unlock()

	go func() {
		defer func() {
			b.mu.Lock()
			b.promptCancel = nil
			b.mu.Unlock()
		}()

		resp, err := b.conn.Prompt(ctx, acpsdk.PromptRequest{
			SessionId: b.acpID,
			Prompt:    []acpsdk.ContentBlock{acpsdk.TextBlock(prompt)},
		})
		if err != nil {
			slog.Warn("connector: prompt failed", "session_id", b.sessionID, "error", err)
			b.deliverEvent(transition.ConnectorEvent{Kind: transition.ConnDisconnected, Payload: transition.ConnectorPayload{DisconnectReason: err.Error()}})
			return
		}
		b.deliverEvent(transition.ConnectorEvent{Kind: transition.ConnTurnCompleted, Payload: transition.ConnectorPayload{Content: string(resp.StopReason)}})
	}()
}

func (b *Bridge) submitApproval(approvalID string, decision transition.ApprovalDecision) {
	b.mu.Lock()
	p, ok := b.pending[approvalID]
	b.mu.Unlock()
	if !ok {
		slog.Warn("connector: SubmitApproval for unknown/expired approval", "session_id", b.sessionID, "approval_id", approvalID)
		return
	}
	select {
	case p.resultCh <- decision:
	default:
	}
}

func (b *Bridge) interrupt() {
	b.mu.Lock()
	cancel := b.promptCancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Stop tears down the agent process and unblocks any in-flight
// RequestPermission call.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopped)
		b.interrupt()
		b.killProcess()
	})
}

func (b *Bridge) killProcess() {
	if b.cmd == nil || b.cmd.Process == nil {
		return
	}
	_ = b.cmd.Process.Kill()
}

func (b *Bridge) monitorExit() {
	err := b.cmd.Wait()
	reason := "agent process exited"
	if err != nil {
		reason = err.Error()
	}
	select {
	case <-b.stopped:
		return
	default:
	}
	b.deliverEvent(transition.ConnectorEvent{Kind: transition.ConnDisconnected, Payload: transition.ConnectorPayload{DisconnectReason: reason}})
}

