package testutil

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"tfcview/internal/client"
	"tfcview/internal/types"
)

// FakeAPI is an in-memory remote service. Runs are scripted as a sequence of
// snapshots: each GetRun returns the next one and the last repeats.
type FakeAPI struct {
	mu sync.Mutex

	RunScripts    map[string][]*types.Run
	runCursor     map[string]int
	Plans         map[string]*types.Plan
	Applies       map[string]*types.Apply
	CostEstimates map[string]*types.CostEstimate
	PolicyChecks  map[string][]*types.PolicyCheck
	TaskStages    map[string][]*types.TaskStage
	TaskResults   map[string]*types.TaskResult
	Workspaces    map[string]*types.Workspace
	Organizations map[string]*types.Organization
	WorkspaceRuns map[string][]*types.Run
	User          *types.User

	// Errors maps a call name ("GetRun", "GetPlan", ...) to errors returned
	// in order before the call starts succeeding.
	Errors map[string][]error

	// OnCall runs after a call is recorded and before it returns.
	OnCall func(name string, args ...string)

	// CreatedRun is returned by CreateRun.
	CreatedRun *types.Run

	calls []string
}

func NewFakeAPI() *FakeAPI {
	return &FakeAPI{
		RunScripts:    map[string][]*types.Run{},
		runCursor:     map[string]int{},
		Plans:         map[string]*types.Plan{},
		Applies:       map[string]*types.Apply{},
		CostEstimates: map[string]*types.CostEstimate{},
		PolicyChecks:  map[string][]*types.PolicyCheck{},
		TaskStages:    map[string][]*types.TaskStage{},
		TaskResults:   map[string]*types.TaskResult{},
		Workspaces:    map[string]*types.Workspace{},
		Organizations: map[string]*types.Organization{},
		WorkspaceRuns: map[string][]*types.Run{},
		Errors:        map[string][]error{},
	}
}

// ScriptRun appends snapshots to the run's sequence.
func (f *FakeAPI) ScriptRun(runs ...*types.Run) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, run := range runs {
		f.RunScripts[run.ID] = append(f.RunScripts[run.ID], run)
	}
}

// FailNext queues err as the next result of the named call.
func (f *FakeAPI) FailNext(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[name] = append(f.Errors[name], err)
}

// Calls returns the recorded calls as "Name(arg,...)".
func (f *FakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount counts recorded calls with the given name.
func (f *FakeAPI) CallCount(name string) int {
	count := 0
	for _, call := range f.Calls() {
		if strings.HasPrefix(call, name+"(") {
			count++
		}
	}
	return count
}

func (f *FakeAPI) record(name string, args ...string) error {
	f.mu.Lock()
	f.calls = append(f.calls, name+"("+strings.Join(args, ",")+")")
	var err error
	if queued := f.Errors[name]; len(queued) > 0 {
		err = queued[0]
		f.Errors[name] = queued[1:]
	}
	hook := f.OnCall
	f.mu.Unlock()
	if hook != nil {
		hook(name, args...)
	}
	return err
}

func NotFound(kind, id string) error {
	return &client.APIError{StatusCode: http.StatusNotFound, Message: fmt.Sprintf("%s %s not found", kind, id)}
}

func (f *FakeAPI) GetRun(_ context.Context, id string, include ...string) (*types.Run, error) {
	if err := f.record("GetRun", append([]string{id}, include...)...); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	script := f.RunScripts[id]
	if len(script) == 0 {
		return nil, NotFound("run", id)
	}
	cursor := f.runCursor[id]
	if cursor >= len(script) {
		cursor = len(script) - 1
	}
	f.runCursor[id] = cursor + 1
	return cloneRun(script[cursor]), nil
}

func (f *FakeAPI) ListWorkspaceRuns(_ context.Context, workspaceID string, _ int) ([]*types.Run, error) {
	if err := f.record("ListWorkspaceRuns", workspaceID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.WorkspaceRuns[workspaceID], nil
}

func (f *FakeAPI) GetPlan(_ context.Context, id string) (*types.Plan, error) {
	if err := f.record("GetPlan", id); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if plan, ok := f.Plans[id]; ok {
		return plan, nil
	}
	return nil, NotFound("plan", id)
}

func (f *FakeAPI) GetApply(_ context.Context, id string) (*types.Apply, error) {
	if err := f.record("GetApply", id); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if apply, ok := f.Applies[id]; ok {
		return apply, nil
	}
	return nil, NotFound("apply", id)
}

func (f *FakeAPI) GetCostEstimate(_ context.Context, id string) (*types.CostEstimate, error) {
	if err := f.record("GetCostEstimate", id); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if estimate, ok := f.CostEstimates[id]; ok {
		return estimate, nil
	}
	return nil, NotFound("cost estimate", id)
}

func (f *FakeAPI) ListPolicyChecks(_ context.Context, runID string) ([]*types.PolicyCheck, error) {
	if err := f.record("ListPolicyChecks", runID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PolicyChecks[runID], nil
}

func (f *FakeAPI) ListTaskStages(_ context.Context, runID string, include ...string) ([]*types.TaskStage, error) {
	if err := f.record("ListTaskStages", append([]string{runID}, include...)...); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.TaskStages[runID], nil
}

func (f *FakeAPI) GetTaskResult(_ context.Context, id string) (*types.TaskResult, error) {
	if err := f.record("GetTaskResult", id); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if result, ok := f.TaskResults[id]; ok {
		return result, nil
	}
	return nil, NotFound("task result", id)
}

func (f *FakeAPI) GetWorkspace(_ context.Context, id string) (*types.Workspace, error) {
	if err := f.record("GetWorkspace", id); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if ws, ok := f.Workspaces[id]; ok {
		copied := *ws
		return &copied, nil
	}
	return nil, NotFound("workspace", id)
}

func (f *FakeAPI) GetWorkspaceByName(_ context.Context, organization, name string) (*types.Workspace, error) {
	if err := f.record("GetWorkspaceByName", organization, name); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ws := range f.Workspaces {
		if ws.OrganizationName == organization && ws.Name == name {
			copied := *ws
			return &copied, nil
		}
	}
	return nil, NotFound("workspace", name)
}

func (f *FakeAPI) ListWorkspaces(_ context.Context, organization, search string) ([]*types.Workspace, error) {
	if err := f.record("ListWorkspaces", organization, search); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Workspace
	for _, ws := range f.Workspaces {
		if ws.OrganizationName != organization {
			continue
		}
		if search != "" && !strings.Contains(ws.Name, search) {
			continue
		}
		copied := *ws
		out = append(out, &copied)
	}
	sortWorkspaces(out)
	return out, nil
}

func (f *FakeAPI) GetOrganization(_ context.Context, name string) (*types.Organization, error) {
	if err := f.record("GetOrganization", name); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if org, ok := f.Organizations[name]; ok {
		return org, nil
	}
	return nil, NotFound("organization", name)
}

func (f *FakeAPI) ListOrganizations(context.Context) ([]*types.Organization, error) {
	if err := f.record("ListOrganizations"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*types.Organization, 0, len(f.Organizations))
	for _, org := range f.Organizations {
		out = append(out, org)
	}
	sortOrganizations(out)
	return out, nil
}

func (f *FakeAPI) CurrentUser(context.Context) (*types.User, error) {
	if err := f.record("CurrentUser"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.User == nil {
		return nil, &client.APIError{StatusCode: http.StatusUnauthorized, Message: "unauthorized"}
	}
	return f.User, nil
}

func (f *FakeAPI) CreateRun(_ context.Context, req client.CreateRunRequest) (*types.Run, error) {
	if err := f.record("CreateRun", req.WorkspaceID, req.Message); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreatedRun == nil {
		return &types.Run{ID: "run-created", Status: types.RunStatusPending, WorkspaceID: req.WorkspaceID}, nil
	}
	return cloneRun(f.CreatedRun), nil
}

func (f *FakeAPI) ApplyRun(_ context.Context, id, comment string) error {
	return f.record("ApplyRun", id, comment)
}

func (f *FakeAPI) CancelRun(_ context.Context, id, comment string) error {
	return f.record("CancelRun", id, comment)
}

func (f *FakeAPI) DiscardRun(_ context.Context, id, comment string) error {
	return f.record("DiscardRun", id, comment)
}

func (f *FakeAPI) OverridePolicyCheck(_ context.Context, id, comment string) error {
	return f.record("OverridePolicyCheck", id, comment)
}

func (f *FakeAPI) LockWorkspace(_ context.Context, id, reason string) (*types.Workspace, error) {
	if err := f.record("LockWorkspace", id, reason); err != nil {
		return nil, err
	}
	return f.setLocked(id, true)
}

func (f *FakeAPI) UnlockWorkspace(_ context.Context, id string) (*types.Workspace, error) {
	if err := f.record("UnlockWorkspace", id); err != nil {
		return nil, err
	}
	return f.setLocked(id, false)
}

func (f *FakeAPI) ForceUnlockWorkspace(_ context.Context, id string) (*types.Workspace, error) {
	if err := f.record("ForceUnlockWorkspace", id); err != nil {
		return nil, err
	}
	return f.setLocked(id, false)
}

func (f *FakeAPI) setLocked(id string, locked bool) (*types.Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ws, ok := f.Workspaces[id]
	if !ok {
		return nil, NotFound("workspace", id)
	}
	ws.Locked = locked
	copied := *ws
	return &copied, nil
}

func cloneRun(run *types.Run) *types.Run {
	if run == nil {
		return nil
	}
	copied := *run
	copied.StatusTimestamps = make(map[string]string, len(run.StatusTimestamps))
	for key, value := range run.StatusTimestamps {
		copied.StatusTimestamps[key] = value
	}
	return &copied
}
