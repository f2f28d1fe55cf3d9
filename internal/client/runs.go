package client

import (
	"context"
	"errors"
	"strings"

	tfe "github.com/hashicorp/go-tfe"

	"tfcview/internal/types"
)

// Include values accepted by GetRun.
const (
	IncludePlan         = "plan"
	IncludeApply        = "apply"
	IncludeCostEstimate = "cost_estimate"
	IncludeTaskResults  = "task_results"

	includeTaskStages = "task_stages"
)

// CreateRunRequest is the body of a run creation call.
type CreateRunRequest struct {
	WorkspaceID     string
	Message         string
	AutoApply       *bool
	AllowEmptyApply bool
	PlanOnly        bool
	IsDestroy       bool
}

// GetRun reads a run. Task stages are always included so a finished
// pre_apply stage can be reported.
func (c *Client) GetRun(ctx context.Context, id string, include ...string) (*types.Run, error) {
	if err := requireID("run", id); err != nil {
		return nil, err
	}
	opts := &tfe.RunReadOptions{Include: []tfe.RunIncludeOpt{includeTaskStages}}
	for _, value := range include {
		opts.Include = append(opts.Include, tfe.RunIncludeOpt(value))
	}
	run, err := call(ctx, c, func(ctx context.Context, api *tfe.Client) (*tfe.Run, error) {
		return api.Runs.ReadWithOptions(ctx, id, opts)
	})
	if err != nil {
		return nil, err
	}
	return convertRun(run), nil
}

// ListWorkspaceRuns returns the most recent runs of a workspace, newest first.
func (c *Client) ListWorkspaceRuns(ctx context.Context, workspaceID string, pageSize int) ([]*types.Run, error) {
	if err := requireID("workspace", workspaceID); err != nil {
		return nil, err
	}
	list, err := call(ctx, c, func(ctx context.Context, api *tfe.Client) (*tfe.RunList, error) {
		return api.Runs.List(ctx, workspaceID, &tfe.RunListOptions{ListOptions: tfe.ListOptions{PageSize: pageSize}})
	})
	if err != nil {
		return nil, err
	}
	runs := make([]*types.Run, 0, len(list.Items))
	for _, run := range list.Items {
		runs = append(runs, convertRun(run))
	}
	return runs, nil
}

func (c *Client) GetPlan(ctx context.Context, id string) (*types.Plan, error) {
	if err := requireID("plan", id); err != nil {
		return nil, err
	}
	plan, err := call(ctx, c, func(ctx context.Context, api *tfe.Client) (*tfe.Plan, error) {
		return api.Plans.Read(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return convertPlan(plan), nil
}

func (c *Client) GetApply(ctx context.Context, id string) (*types.Apply, error) {
	if err := requireID("apply", id); err != nil {
		return nil, err
	}
	apply, err := call(ctx, c, func(ctx context.Context, api *tfe.Client) (*tfe.Apply, error) {
		return api.Applies.Read(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return convertApply(apply), nil
}

func (c *Client) GetCostEstimate(ctx context.Context, id string) (*types.CostEstimate, error) {
	if err := requireID("cost estimate", id); err != nil {
		return nil, err
	}
	estimate, err := call(ctx, c, func(ctx context.Context, api *tfe.Client) (*tfe.CostEstimate, error) {
		return api.CostEstimates.Read(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return convertCostEstimate(estimate), nil
}

func (c *Client) ListPolicyChecks(ctx context.Context, runID string) ([]*types.PolicyCheck, error) {
	if err := requireID("run", runID); err != nil {
		return nil, err
	}
	list, err := call(ctx, c, func(ctx context.Context, api *tfe.Client) (*tfe.PolicyCheckList, error) {
		return api.PolicyChecks.List(ctx, runID, nil)
	})
	if err != nil {
		return nil, err
	}
	checks := make([]*types.PolicyCheck, 0, len(list.Items))
	for _, check := range list.Items {
		checks = append(checks, convertPolicyCheck(check))
	}
	return checks, nil
}

// ListTaskStages lists the task stages of a run. With IncludeTaskResults
// each stage is read again with its results attached.
func (c *Client) ListTaskStages(ctx context.Context, runID string, include ...string) ([]*types.TaskStage, error) {
	if err := requireID("run", runID); err != nil {
		return nil, err
	}
	withResults := false
	for _, value := range include {
		if value == IncludeTaskResults {
			withResults = true
		}
	}
	list, err := call(ctx, c, func(ctx context.Context, api *tfe.Client) (*tfe.TaskStageList, error) {
		return api.TaskStages.List(ctx, runID, nil)
	})
	if err != nil {
		return nil, err
	}
	stages := make([]*types.TaskStage, 0, len(list.Items))
	for _, stage := range list.Items {
		if withResults && stage != nil && len(stage.TaskResults) > 0 {
			full, err := call(ctx, c, func(ctx context.Context, api *tfe.Client) (*tfe.TaskStage, error) {
				return api.TaskStages.Read(ctx, stage.ID, &tfe.TaskStageReadOptions{
					Include: []tfe.TaskStageIncludeOpt{tfe.TaskStageIncludeOpt(IncludeTaskResults)},
				})
			})
			if err != nil {
				return nil, err
			}
			stage = full
		}
		stages = append(stages, convertTaskStage(stage))
	}
	return stages, nil
}

func (c *Client) GetTaskResult(ctx context.Context, id string) (*types.TaskResult, error) {
	if err := requireID("task result", id); err != nil {
		return nil, err
	}
	result, err := call(ctx, c, func(ctx context.Context, api *tfe.Client) (*tfe.TaskResult, error) {
		return api.TaskResults.Read(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return convertTaskResult(result), nil
}

func (c *Client) CreateRun(ctx context.Context, req CreateRunRequest) (*types.Run, error) {
	if err := requireID("workspace", req.WorkspaceID); err != nil {
		return nil, err
	}
	opts := tfe.RunCreateOptions{
		Workspace:       &tfe.Workspace{ID: strings.TrimSpace(req.WorkspaceID)},
		AutoApply:       req.AutoApply,
		AllowEmptyApply: optionalBool(req.AllowEmptyApply),
		PlanOnly:        optionalBool(req.PlanOnly),
		IsDestroy:       optionalBool(req.IsDestroy),
	}
	if req.Message != "" {
		opts.Message = tfe.String(req.Message)
	}
	run, err := call(ctx, c, func(ctx context.Context, api *tfe.Client) (*tfe.Run, error) {
		return api.Runs.Create(ctx, opts)
	})
	if err != nil {
		return nil, err
	}
	if run == nil || run.ID == "" {
		return nil, errors.New("created run has no id")
	}
	return convertRun(run), nil
}

func (c *Client) ApplyRun(ctx context.Context, id, comment string) error {
	if err := requireID("run", id); err != nil {
		return err
	}
	return exec(ctx, c, func(ctx context.Context, api *tfe.Client) error {
		return api.Runs.Apply(ctx, id, tfe.RunApplyOptions{Comment: optionalString(comment)})
	})
}

func (c *Client) CancelRun(ctx context.Context, id, comment string) error {
	if err := requireID("run", id); err != nil {
		return err
	}
	return exec(ctx, c, func(ctx context.Context, api *tfe.Client) error {
		return api.Runs.Cancel(ctx, id, tfe.RunCancelOptions{Comment: optionalString(comment)})
	})
}

func (c *Client) DiscardRun(ctx context.Context, id, comment string) error {
	if err := requireID("run", id); err != nil {
		return err
	}
	return exec(ctx, c, func(ctx context.Context, api *tfe.Client) error {
		return api.Runs.Discard(ctx, id, tfe.RunDiscardOptions{Comment: optionalString(comment)})
	})
}

// OverridePolicyCheck overrides a soft-failed policy check. A non-empty
// comment is posted on the check's run, since the override action itself
// takes no body.
func (c *Client) OverridePolicyCheck(ctx context.Context, id, comment string) error {
	if err := requireID("policy check", id); err != nil {
		return err
	}
	check, err := call(ctx, c, func(ctx context.Context, api *tfe.Client) (*tfe.PolicyCheck, error) {
		return api.PolicyChecks.Override(ctx, id)
	})
	if err != nil {
		return err
	}
	comment = strings.TrimSpace(comment)
	if comment == "" || check == nil || check.Run == nil || check.Run.ID == "" {
		return nil
	}
	return exec(ctx, c, func(ctx context.Context, api *tfe.Client) error {
		_, err := api.Comments.Create(ctx, check.Run.ID, tfe.CommentCreateOptions{Body: comment})
		return err
	})
}

func requireID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New(kind + " id is required")
	}
	return nil
}

func optionalBool(value bool) *bool {
	if !value {
		return nil
	}
	return tfe.Bool(true)
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return tfe.String(value)
}
