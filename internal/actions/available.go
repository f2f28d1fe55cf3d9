package actions

import (
	"fmt"

	"tfcview/internal/types"
)

type Kind string

const (
	KindCreateRun      Kind = "create-run"
	KindUnlock         Kind = "unlock"
	KindForceUnlock    Kind = "force-unlock"
	KindLock           Kind = "lock"
	KindApply          Kind = "apply"
	KindDiscard        Kind = "discard"
	KindCancel         Kind = "cancel"
	KindOverridePolicy Kind = "override-policy"
)

type Action struct {
	Kind        Kind
	Icon        string
	Label       string
	Description string
}

// Available lists what the caller can do to ws and its in-progress run,
// which may be nil.
func Available(ws *types.Workspace, current *types.Run) []Action {
	if ws == nil {
		return nil
	}
	var out []Action
	if ws.Permissions.CanQueueRun {
		out = append(out, Action{KindCreateRun, "add", "Create a new run", fmt.Sprintf("Create a new run in the '%s' workspace.", ws.Name)})
	}
	if ws.Locked && current == nil {
		switch {
		case ws.Permissions.CanUnlock:
			out = append(out, Action{KindUnlock, "unlock", "Unlock workspace", fmt.Sprintf("Unlock the '%s' workspace.", ws.Name)})
		case ws.Permissions.CanForceUnlock:
			out = append(out, Action{KindForceUnlock, "unlock", "Force unlock workspace", fmt.Sprintf("Force unlock the '%s' workspace.", ws.Name)})
		}
	}
	if !ws.Locked && ws.Permissions.CanLock {
		out = append(out, Action{KindLock, "lock", "Lock workspace", fmt.Sprintf("Lock the '%s' workspace.", ws.Name)})
	}
	if current == nil {
		return out
	}
	if current.IsConfirmable() {
		out = append(out, Action{KindApply, "pass", "Approve current run", fmt.Sprintf("Confirm the run '%s'.", current.ID)})
	}
	if current.IsDiscardable() {
		out = append(out, Action{KindDiscard, "trash", "Discard current run", fmt.Sprintf("Discard the run '%s'.", current.ID)})
	}
	if current.IsCancelable() {
		out = append(out, Action{KindCancel, "error", "Cancel current run", fmt.Sprintf("Cancel the run '%s'.", current.ID)})
	}
	if current.AwaitingPolicyOverride() {
		out = append(out, Action{KindOverridePolicy, "pass", "Override current run", fmt.Sprintf("Override and continue the run '%s'.", current.ID)})
	}
	return out
}
