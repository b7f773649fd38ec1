package connector

import (
	"context"
	"fmt"
	"strings"

	acpsdk "github.com/coder/acp-go-sdk"

	"github.com/orbitdock/orbitdock/internal/approval"
	"github.com/orbitdock/orbitdock/internal/ids"
	"github.com/orbitdock/orbitdock/internal/transition"
)

// clientImpl is the ACP client-side handler a Bridge registers with
// acpsdk.NewClientSideConnection. It translates SessionUpdate/
// RequestPermission callbacks from the embedded agent process into
// transition.ConnectorEvent values delivered to the owning actor's mailbox,
// directly modeled on the teacher's sessionHostClient.
type clientImpl struct {
	bridge *Bridge
}

func (c *clientImpl) SessionUpdate(_ context.Context, params acpsdk.SessionNotification) error {
	for _, ev := range translateNotification(params) {
		c.bridge.deliverEvent(ev)
	}
	return nil
}

// RequestPermission blocks until the owning session's approval is resolved
// via a ConnCmdSubmitApproval dispatch (or the bridge is stopped), matching
// the teacher's pattern of routing session/request_permission straight
// through to the viewer and waiting for a reply — except here the reply
// comes from OrbitDock's own approval flow instead of a raw WS echo.
func (c *clientImpl) RequestPermission(ctx context.Context, params acpsdk.RequestPermissionRequest) (acpsdk.RequestPermissionResponse, error) {
	command := optionSetKey(params.Options)
	fp := approval.NewFingerprint("exec", command, c.bridge.cwd)

	if c.bridge.grants.Granted(fp) {
		if optID, ok := firstAllowOption(params.Options); ok {
			return acpsdk.RequestPermissionResponse{Outcome: acpsdk.NewRequestPermissionOutcomeSelected(optID)}, nil
		}
	}

	approvalID := ids.NewApprovalID()
	resultCh := make(chan transition.ApprovalDecision, 1)
	c.bridge.registerPending(approvalID, resultCh)
	defer c.bridge.unregisterPending(approvalID)

	c.bridge.deliverEvent(transition.ConnectorEvent{
		Kind: transition.ConnApprovalRequested,
		Payload: transition.ConnectorPayload{
			ApprovalKind: transition.ApprovalExec,
			Command:      command,
		},
	})

	var decision transition.ApprovalDecision
	select {
	case decision = <-resultCh:
	case <-ctx.Done():
		decision = transition.DecisionAbort
	case <-c.bridge.stopped:
		decision = transition.DecisionAbort
	}

	switch decision {
	case transition.DecisionApprovedForSession, transition.DecisionApprovedAlways:
		c.bridge.grants.Grant(fp)
		fallthrough
	case transition.DecisionApproved:
		if optID, ok := firstAllowOption(params.Options); ok {
			return acpsdk.RequestPermissionResponse{Outcome: acpsdk.NewRequestPermissionOutcomeSelected(optID)}, nil
		}
	}
	return acpsdk.RequestPermissionResponse{Outcome: acpsdk.NewRequestPermissionOutcomeCancelled()}, nil
}

func firstAllowOption(options []acpsdk.PermissionOption) (acpsdk.PermissionOptionId, bool) {
	for _, opt := range options {
		if strings.Contains(strings.ToLower(string(opt.Kind)), "allow") {
			return opt.OptionId, true
		}
	}
	if len(options) > 0 {
		return options[0].OptionId, true
	}
	return "", false
}

// optionSetKey builds a stable string from a permission request's option
// ids, used as the fingerprint's command field. The same tool call
// presenting the same option set within a session collapses to the same
// grant-cache entry.
func optionSetKey(options []acpsdk.PermissionOption) string {
	var key string
	for _, opt := range options {
		if key != "" {
			key += "|"
		}
		key += string(opt.OptionId)
	}
	return key
}

func (c *clientImpl) ReadTextFile(_ context.Context, params acpsdk.ReadTextFileRequest) (acpsdk.ReadTextFileResponse, error) {
	return acpsdk.ReadTextFileResponse{}, fmt.Errorf("ReadTextFile not supported: OrbitDock is a passive/direct session plane, not a file-exec bridge")
}

func (c *clientImpl) WriteTextFile(_ context.Context, params acpsdk.WriteTextFileRequest) (acpsdk.WriteTextFileResponse, error) {
	return acpsdk.WriteTextFileResponse{}, fmt.Errorf("WriteTextFile not supported")
}

func (c *clientImpl) CreateTerminal(_ context.Context, _ acpsdk.CreateTerminalRequest) (acpsdk.CreateTerminalResponse, error) {
	return acpsdk.CreateTerminalResponse{}, fmt.Errorf("CreateTerminal not supported")
}

func (c *clientImpl) KillTerminalCommand(_ context.Context, _ acpsdk.KillTerminalCommandRequest) (acpsdk.KillTerminalCommandResponse, error) {
	return acpsdk.KillTerminalCommandResponse{}, fmt.Errorf("KillTerminalCommand not supported")
}

func (c *clientImpl) TerminalOutput(_ context.Context, _ acpsdk.TerminalOutputRequest) (acpsdk.TerminalOutputResponse, error) {
	return acpsdk.TerminalOutputResponse{}, fmt.Errorf("TerminalOutput not supported")
}

func (c *clientImpl) ReleaseTerminal(_ context.Context, _ acpsdk.ReleaseTerminalRequest) (acpsdk.ReleaseTerminalResponse, error) {
	return acpsdk.ReleaseTerminalResponse{}, fmt.Errorf("ReleaseTerminal not supported")
}

func (c *clientImpl) WaitForTerminalExit(_ context.Context, _ acpsdk.WaitForTerminalExitRequest) (acpsdk.WaitForTerminalExitResponse, error) {
	return acpsdk.WaitForTerminalExitResponse{}, fmt.Errorf("WaitForTerminalExit not supported")
}

