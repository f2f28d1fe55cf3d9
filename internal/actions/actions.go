package actions

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"tfcview/internal/client"
	"tfcview/internal/logging"
	"tfcview/internal/types"
)

var (
	ErrNotPermitted = errors.New("not permitted")
	// ErrNotAvailable means the target is not in a state that accepts the action.
	ErrNotAvailable = errors.New("action not available")
	ErrConflict     = errors.New("cannot be performed right now")
)

type API interface {
	CreateRun(ctx context.Context, req client.CreateRunRequest) (*types.Run, error)
	ApplyRun(ctx context.Context, id, comment string) error
	CancelRun(ctx context.Context, id, comment string) error
	DiscardRun(ctx context.Context, id, comment string) error
	ListPolicyChecks(ctx context.Context, runID string) ([]*types.PolicyCheck, error)
	OverridePolicyCheck(ctx context.Context, id, comment string) error
	LockWorkspace(ctx context.Context, id, reason string) (*types.Workspace, error)
	UnlockWorkspace(ctx context.Context, id string) (*types.Workspace, error)
	ForceUnlockWorkspace(ctx context.Context, id string) (*types.Workspace, error)
}

// Notifier hears about workspaces that were written to.
type Notifier interface {
	ChangeInWorkspace(ws *types.Workspace)
}

// Facade performs single remote writes after checking the caller's
// capabilities on the target.
type Facade struct {
	api      API
	notifier Notifier
	logger   logging.Logger
}

func New(api API, notifier Notifier, logger logging.Logger) *Facade {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Facade{api: api, notifier: notifier, logger: logger.With(logging.Component("actions"))}
}

func (f *Facade) ApplyRun(ctx context.Context, run *types.Run, comment string) error {
	if run == nil {
		return errors.New("run is required")
	}
	if !run.IsConfirmable() {
		return fmt.Errorf("run %s is not awaiting confirmation: %w", run.ID, ErrNotAvailable)
	}
	if !run.Permissions.CanApply {
		return fmt.Errorf("apply run %s: %w", run.ID, ErrNotPermitted)
	}
	if err := f.api.ApplyRun(ctx, run.ID, strings.TrimSpace(comment)); err != nil {
		return err
	}
	f.runChanged("run_applied", run)
	return nil
}

func (f *Facade) CancelRun(ctx context.Context, run *types.Run, comment string) error {
	if run == nil {
		return errors.New("run is required")
	}
	if !run.Actions.IsCancelable {
		return fmt.Errorf("run %s cannot be canceled: %w", run.ID, ErrNotAvailable)
	}
	if !run.IsCancelable() {
		return fmt.Errorf("cancel run %s: %w", run.ID, ErrNotPermitted)
	}
	if err := f.api.CancelRun(ctx, run.ID, strings.TrimSpace(comment)); err != nil {
		return err
	}
	f.runChanged("run_canceled", run)
	return nil
}

func (f *Facade) DiscardRun(ctx context.Context, run *types.Run, comment string) error {
	if run == nil {
		return errors.New("run is required")
	}
	if !run.Actions.IsDiscardable {
		return fmt.Errorf("run %s cannot be discarded: %w", run.ID, ErrNotAvailable)
	}
	if !run.IsDiscardable() {
		return fmt.Errorf("discard run %s: %w", run.ID, ErrNotPermitted)
	}
	if err := f.api.DiscardRun(ctx, run.ID, strings.TrimSpace(comment)); err != nil {
		return err
	}
	f.runChanged("run_discarded", run)
	return nil
}

// OverridePolicyCheck overrides every overridable policy check of run and
// returns the ids it overrode. Checks the caller may not override are
// skipped and reported through the returned error.
func (f *Facade) OverridePolicyCheck(ctx context.Context, run *types.Run, comment string) ([]string, error) {
	if run == nil {
		return nil, errors.New("run is required")
	}
	checks, err := f.api.ListPolicyChecks(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	var (
		overridden []string
		errs       []error
	)
	for _, check := range checks {
		if check == nil || !check.IsOverridable {
			continue
		}
		if !check.CanOverride {
			errs = append(errs, fmt.Errorf("override policy check %s: %w", check.ID, ErrNotPermitted))
			continue
		}
		if err := f.api.OverridePolicyCheck(ctx, check.ID, strings.TrimSpace(comment)); err != nil {
			if client.StatusCode(err) == http.StatusConflict {
				return overridden, fmt.Errorf("policy check %s %w", check.ID, ErrConflict)
			}
			return overridden, err
		}
		overridden = append(overridden, check.ID)
	}
	if len(overridden) == 0 && len(errs) == 0 {
		return nil, fmt.Errorf("run %s has no overridable policy checks: %w", run.ID, ErrNotAvailable)
	}
	if len(overridden) > 0 {
		f.runChanged("policy_overridden", run)
	}
	return overridden, errors.Join(errs...)
}

func (f *Facade) LockWorkspace(ctx context.Context, ws *types.Workspace, reason string) (*types.Workspace, error) {
	if ws == nil {
		return nil, errors.New("workspace is required")
	}
	if ws.Locked {
		return nil, fmt.Errorf("workspace %s is already locked: %w", ws.Name, ErrNotAvailable)
	}
	if !ws.Permissions.CanLock {
		return nil, fmt.Errorf("lock workspace %s: %w", ws.Name, ErrNotPermitted)
	}
	updated, err := f.api.LockWorkspace(ctx, ws.ID, strings.TrimSpace(reason))
	if err != nil {
		return nil, err
	}
	if updated == nil || !updated.Locked {
		return nil, fmt.Errorf("failed to lock workspace %s", ws.Name)
	}
	f.workspaceChanged("workspace_locked", ws)
	return updated, nil
}

// UnlockWorkspace unlocks ws, forcing the unlock when the caller may only
// force it.
func (f *Facade) UnlockWorkspace(ctx context.Context, ws *types.Workspace) (*types.Workspace, error) {
	if ws == nil {
		return nil, errors.New("workspace is required")
	}
	if !ws.Locked {
		return nil, fmt.Errorf("workspace %s is not locked: %w", ws.Name, ErrNotAvailable)
	}
	var (
		updated *types.Workspace
		err     error
	)
	switch {
	case ws.Permissions.CanUnlock:
		updated, err = f.api.UnlockWorkspace(ctx, ws.ID)
	case ws.Permissions.CanForceUnlock:
		updated, err = f.api.ForceUnlockWorkspace(ctx, ws.ID)
	default:
		return nil, fmt.Errorf("unlock workspace %s: %w", ws.Name, ErrNotPermitted)
	}
	if err != nil {
		return nil, err
	}
	if updated == nil || updated.Locked {
		return nil, fmt.Errorf("failed to unlock workspace %s", ws.Name)
	}
	f.workspaceChanged("workspace_unlocked", ws)
	return updated, nil
}

// CreateRun queues a run from def in ws.
func (f *Facade) CreateRun(ctx context.Context, ws *types.Workspace, def RunDefinition) (*types.Run, error) {
	if ws == nil {
		return nil, errors.New("workspace is required")
	}
	if !ws.Permissions.CanQueueRun {
		return nil, fmt.Errorf("create a run in %s: %w", ws.Name, ErrNotPermitted)
	}
	def.WorkspaceID = ws.ID
	run, err := f.api.CreateRun(ctx, def.Request())
	if err != nil {
		return nil, err
	}
	f.workspaceChanged("run_created", ws)
	return run, nil
}

func (f *Facade) runChanged(event string, run *types.Run) {
	f.logger.Info(event, logging.F("run_id", run.ID))
	if f.notifier != nil && run.WorkspaceID != "" {
		f.notifier.ChangeInWorkspace(&types.Workspace{ID: run.WorkspaceID})
	}
}

func (f *Facade) workspaceChanged(event string, ws *types.Workspace) {
	f.logger.Info(event, logging.F("workspace_id", ws.ID))
	if f.notifier != nil {
		f.notifier.ChangeInWorkspace(ws)
	}
}
