package client

import (
	"time"

	tfe "github.com/hashicorp/go-tfe"

	"tfcview/internal/types"
)

// Relations that were not included arrive from go-tfe as objects holding
// only their ID, so an empty status means "not included".

func convertRun(r *tfe.Run) *types.Run {
	if r == nil {
		return nil
	}
	run := &types.Run{
		ID:               r.ID,
		Status:           types.RunStatus(r.Status),
		Message:          r.Message,
		AutoApply:        r.AutoApply,
		IsDestroy:        r.IsDestroy,
		PlanOnly:         r.PlanOnly,
		TerraformVersion: r.TerraformVersion,
		CreatedAt:        r.CreatedAt,
		StatusTimestamps: runTimestamps(r.StatusTimestamps),
		HasPolicyChecks:  len(r.PolicyChecks) > 0,
		HasTaskStages:    len(r.TaskStages) > 0,
	}
	if a := r.Actions; a != nil {
		run.Actions = types.RunActions{
			IsCancelable:      a.IsCancelable,
			IsConfirmable:     a.IsConfirmable,
			IsDiscardable:     a.IsDiscardable,
			IsForceCancelable: a.IsForceCancelable,
		}
	}
	if p := r.Permissions; p != nil {
		run.Permissions = types.RunPermissions{
			CanApply:        p.CanApply,
			CanCancel:       p.CanCancel,
			CanDiscard:      p.CanDiscard,
			CanForceExecute: p.CanForceExecute,
			CanForceCancel:  p.CanForceCancel,
		}
	}
	if r.Workspace != nil {
		run.WorkspaceID = r.Workspace.ID
	}
	if r.Plan != nil {
		run.PlanID = r.Plan.ID
		if r.Plan.Status != "" {
			run.Plan = convertPlan(r.Plan)
		}
	}
	if r.Apply != nil {
		run.ApplyID = r.Apply.ID
		if r.Apply.Status != "" {
			run.Apply = convertApply(r.Apply)
		}
	}
	if r.CostEstimate != nil {
		run.CostEstimateID = r.CostEstimate.ID
		if r.CostEstimate.Status != "" {
			run.CostEstimate = convertCostEstimate(r.CostEstimate)
		}
	}
	for _, check := range r.PolicyChecks {
		if check != nil {
			run.PolicyCheckIDs = append(run.PolicyCheckIDs, check.ID)
		}
	}
	for _, stage := range r.TaskStages {
		if stage == nil {
			continue
		}
		run.TaskStageIDs = append(run.TaskStageIDs, stage.ID)
		// The run resource carries no pre-apply timestamp; a finished
		// pre_apply stage stands in for it.
		if string(stage.Stage) == types.StagePreApply && stageFinished(string(stage.Status)) {
			putTimestamp(run.StatusTimestamps, types.TimestampPreApplyCompleted, stage.UpdatedAt)
		}
	}
	return run
}

func runTimestamps(ts *tfe.RunStatusTimestamps) map[string]string {
	out := map[string]string{}
	if ts == nil {
		return out
	}
	putTimestamp(out, types.TimestampPrePlanCompleted, ts.PrePlanCompletedAt)
	putTimestamp(out, types.TimestampPlanned, ts.PlannedAt)
	putTimestamp(out, types.TimestampPostPlanCompleted, ts.PostPlanCompletedAt)
	putTimestamp(out, types.TimestampCostEstimated, ts.CostEstimatedAt)
	putTimestamp(out, types.TimestampPolicyChecked, ts.PolicyCheckedAt)
	putTimestamp(out, types.TimestampApplied, ts.AppliedAt)
	return out
}

func putTimestamp(out map[string]string, key string, at time.Time) {
	if at.IsZero() {
		return
	}
	out[key] = at.UTC().Format(time.RFC3339)
}

func stageFinished(status string) bool {
	switch status {
	case "passed", "failed", "canceled", "errored", "unreachable":
		return true
	}
	return false
}

func convertPlan(p *tfe.Plan) *types.Plan {
	if p == nil {
		return nil
	}
	plan := &types.Plan{
		ID:         p.ID,
		Status:     string(p.Status),
		HasChanges: p.HasChanges,
		LogReadURL: p.LogReadURL,
		Resources: types.ResourceCounts{
			Additions:    p.ResourceAdditions,
			Changes:      p.ResourceChanges,
			Destructions: p.ResourceDestructions,
		},
		StatusTimestamps: map[string]string{},
	}
	if ts := p.StatusTimestamps; ts != nil {
		plan.StartedAt = ts.StartedAt
		plan.FinishedAt = ts.FinishedAt
		putTimestamp(plan.StatusTimestamps, "started-at", ts.StartedAt)
		putTimestamp(plan.StatusTimestamps, "finished-at", ts.FinishedAt)
	}
	return plan
}

func convertApply(a *tfe.Apply) *types.Apply {
	if a == nil {
		return nil
	}
	apply := &types.Apply{
		ID:         a.ID,
		Status:     string(a.Status),
		LogReadURL: a.LogReadURL,
		Resources: types.ResourceCounts{
			Additions:    a.ResourceAdditions,
			Changes:      a.ResourceChanges,
			Destructions: a.ResourceDestructions,
		},
		StatusTimestamps: map[string]string{},
	}
	if ts := a.StatusTimestamps; ts != nil {
		putTimestamp(apply.StatusTimestamps, "started-at", ts.StartedAt)
		putTimestamp(apply.StatusTimestamps, "finished-at", ts.FinishedAt)
	}
	return apply
}

func convertCostEstimate(c *tfe.CostEstimate) *types.CostEstimate {
	if c == nil {
		return nil
	}
	return &types.CostEstimate{
		ID:                      c.ID,
		Status:                  string(c.Status),
		ErrorMessage:            c.ErrorMessage,
		MatchedResourcesCount:   c.MatchedResourcesCount,
		UnmatchedResourcesCount: c.UnmatchedResourcesCount,
		PriorMonthlyCost:        c.PriorMonthlyCost,
		ProposedMonthlyCost:     c.ProposedMonthlyCost,
		DeltaMonthlyCost:        c.DeltaMonthlyCost,
	}
}

func convertPolicyCheck(p *tfe.PolicyCheck) *types.PolicyCheck {
	if p == nil {
		return nil
	}
	check := &types.PolicyCheck{
		ID:     p.ID,
		Status: string(p.Status),
		Scope:  string(p.Scope),
	}
	if r := p.Result; r != nil {
		check.Result = types.PolicyResult{
			Passed:         r.Passed,
			AdvisoryFailed: r.AdvisoryFailed,
			SoftFailed:     r.SoftFailed,
			HardFailed:     r.HardFailed,
			Result:         r.Result,
		}
	}
	if p.Permissions != nil {
		check.CanOverride = p.Permissions.CanOverride
	}
	if p.Actions != nil {
		check.IsOverridable = p.Actions.IsOverridable
	}
	if p.Run != nil {
		check.RunID = p.Run.ID
	}
	return check
}

func convertTaskStage(s *tfe.TaskStage) *types.TaskStage {
	if s == nil {
		return nil
	}
	stage := &types.TaskStage{
		ID:        s.ID,
		Stage:     string(s.Stage),
		Status:    string(s.Status),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	for _, result := range s.TaskResults {
		if result == nil {
			continue
		}
		stage.TaskResultIDs = append(stage.TaskResultIDs, result.ID)
		if result.Status != "" {
			stage.TaskResults = append(stage.TaskResults, convertTaskResult(result))
		}
	}
	return stage
}

func convertTaskResult(r *tfe.TaskResult) *types.TaskResult {
	if r == nil {
		return nil
	}
	return &types.TaskResult{
		ID:       r.ID,
		TaskName: r.TaskName,
		Status:   string(r.Status),
		Message:  r.Message,
		URL:      r.URL,
	}
}

func convertWorkspace(w *tfe.Workspace) *types.Workspace {
	if w == nil {
		return nil
	}
	ws := &types.Workspace{
		ID:               w.ID,
		Name:             w.Name,
		Description:      w.Description,
		Locked:           w.Locked,
		AutoApply:        w.AutoApply,
		TerraformVersion: w.TerraformVersion,
		UpdatedAt:        w.UpdatedAt,
	}
	if p := w.Permissions; p != nil {
		ws.Permissions = types.WorkspacePermissions{
			CanQueueRun:     p.CanQueueRun,
			CanQueueApply:   p.CanQueueApply,
			CanQueueDestroy: p.CanQueueDestroy,
			CanLock:         p.CanLock,
			CanUnlock:       p.CanUnlock,
			CanForceUnlock:  p.CanForceUnlock,
			CanUpdate:       p.CanUpdate,
		}
	}
	if w.Organization != nil {
		ws.OrganizationName = w.Organization.Name
	}
	if w.CurrentRun != nil {
		ws.CurrentRunID = w.CurrentRun.ID
	}
	return ws
}

func convertOrganization(o *tfe.Organization) *types.Organization {
	if o == nil {
		return nil
	}
	return &types.Organization{ID: o.Name, Name: o.Name, Email: o.Email}
}

func convertUser(u *tfe.User) *types.User {
	if u == nil {
		return nil
	}
	return &types.User{ID: u.ID, Username: u.Username, Email: u.Email}
}
