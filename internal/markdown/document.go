package markdown

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tfcview/internal/client"
	"tfcview/internal/logging"
	"tfcview/internal/types"
)

// API is what building a run document reads.
type API interface {
	GetRun(ctx context.Context, id string, include ...string) (*types.Run, error)
	GetPlan(ctx context.Context, id string) (*types.Plan, error)
	GetApply(ctx context.Context, id string) (*types.Apply, error)
	GetCostEstimate(ctx context.Context, id string) (*types.CostEstimate, error)
	ListPolicyChecks(ctx context.Context, runID string) ([]*types.PolicyCheck, error)
	ListTaskStages(ctx context.Context, runID string, include ...string) ([]*types.TaskStage, error)
	GetWorkspace(ctx context.Context, id string) (*types.Workspace, error)
}

type DocumentOptions struct {
	ConsoleURL string
	Location   *time.Location
	Logger     logging.Logger
}

const statusUnreachable = "unreachable"

// RunDocument builds the markdown details page for a run. Only the run
// itself is required; sections whose data cannot be read are left out.
func RunDocument(ctx context.Context, api API, runID string, opts DocumentOptions) (string, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	logger := opts.Logger.With(logging.Component("markdown"), logging.F("run_id", runID))

	run, err := api.GetRun(ctx, runID, client.IncludePlan, client.IncludeApply, client.IncludeCostEstimate)
	if err != nil {
		return "", err
	}
	optional := func(what string, err error) {
		if err != nil {
			logger.Warn("run_document_section_skipped", logging.F("section", what), logging.Err(err))
		}
	}

	var ws *types.Workspace
	if run.WorkspaceID != "" {
		ws, err = api.GetWorkspace(ctx, run.WorkspaceID)
		optional("workspace", err)
	}
	plan := run.Plan
	if plan == nil && run.PlanID != "" {
		plan, err = api.GetPlan(ctx, run.PlanID)
		optional("plan", err)
	}
	apply := run.Apply
	if apply == nil && run.ApplyID != "" {
		apply, err = api.GetApply(ctx, run.ApplyID)
		optional("apply", err)
	}
	estimate := run.CostEstimate
	if estimate == nil && run.CostEstimateID != "" {
		estimate, err = api.GetCostEstimate(ctx, run.CostEstimateID)
		optional("cost_estimate", err)
	}
	var stages []*types.TaskStage
	if run.HasTaskStages {
		stages, err = api.ListTaskStages(ctx, run.ID, client.IncludeTaskResults)
		optional("task_stages", err)
	}
	var checks []*types.PolicyCheck
	if run.HasPolicyChecks {
		checks, err = api.ListPolicyChecks(ctx, run.ID)
		optional("policy_checks", err)
	}

	d := docWriter{loc: opts.Location}
	d.header(run, ws, opts.ConsoleURL)
	d.taskStage(types.FindTaskStage(stages, types.StagePrePlan))
	d.plan(plan)
	d.taskStage(types.FindTaskStage(stages, types.StagePostPlan))
	d.costEstimate(estimate)
	d.policyChecks(checks)
	d.b.WriteString("\n---\n")
	d.taskStage(types.FindTaskStage(stages, types.StagePreApply))
	d.apply(apply)
	return d.b.String(), nil
}

type docWriter struct {
	b   strings.Builder
	loc *time.Location
}

func (d *docWriter) printf(format string, args ...any) {
	fmt.Fprintf(&d.b, format, args...)
}

func (d *docWriter) header(run *types.Run, ws *types.Workspace, root string) {
	d.printf("# Run details\n\n")
	if message := strings.TrimSpace(run.Message); message != "" {
		d.printf("%s\n\n", message)
	}
	id := run.ID
	if url := types.RunURL(root, ws, run.ID); url != "" {
		id = "[" + run.ID + "](" + url + ")"
	}
	d.printf("| Property | Value |\n|----------|-------|\n")
	d.printf("| Id | %s |\n", id)
	d.printf("| Auto Apply | %s |\n", yesNo(run.AutoApply))
	d.printf("| Will Destroy | %s |\n", yesNo(run.IsDestroy))
	d.printf("| Terraform Version | %s |\n", run.TerraformVersion)
	d.printf("| Status | %s |\n", types.PrettyStatus(string(run.Status)))
	if ws != nil {
		d.printf("| Workspace | %s |\n", tableCell(ws.Name))
	}
}

func (d *docWriter) taskStage(stage *types.TaskStage) {
	if stage == nil {
		return
	}
	d.printf("\n## %s tasks\n\n", types.PrettyStatus(stage.Stage))
	if stage.Status != "passed" && stage.Status != "failed" {
		d.printf("Task stage is not available. It is currently %s.\n", types.PrettyStatus(stage.Status))
		return
	}
	d.printf("The task stage %s at %s\n\n", types.PrettyStatus(stage.Status), d.date(stage.UpdatedAt))
	d.printf("| Name | Status | Details |\n| ---- | ------ | ------- |\n")
	for _, result := range stage.TaskResults {
		if result == nil {
			continue
		}
		var details []string
		if msg := tableCell(result.Message); msg != "" {
			details = append(details, msg+".")
		}
		if result.URL != "" {
			details = append(details, "[Link]("+result.URL+")")
		}
		d.printf("| %s | %s | %s |\n", tableCell(result.TaskName), result.Status, strings.Join(details, " "))
	}
}

func (d *docWriter) plan(plan *types.Plan) {
	if plan == nil || plan.Status == statusUnreachable {
		return
	}
	d.printf("\n## Plan\n\n")
	if plan.Status != "finished" {
		d.printf("Plan is not available. It is currently %s.\n", types.PrettyStatus(plan.Status))
		return
	}
	if plan.LogReadURL != "" {
		d.printf("The log file for the plan can be found at this [link](%s).\n\n", plan.LogReadURL)
	}
	d.printf("Resources: **%d** to add, **%d** to change, **%d** to delete\n\n",
		plan.Resources.Additions, plan.Resources.Changes, plan.Resources.Destructions)
	d.printf("Started at %s and finished at %s\n", d.date(plan.StartedAt), d.date(plan.FinishedAt))
}

func (d *docWriter) costEstimate(estimate *types.CostEstimate) {
	if estimate == nil || estimate.Status == statusUnreachable {
		return
	}
	d.printf("\n## Cost Estimate\n\n")
	if estimate.Status != "finished" {
		d.printf("Cost estimate is not available. It is currently %s.\n", types.PrettyStatus(estimate.Status))
		return
	}
	matched := estimate.MatchedResourcesCount
	d.printf("Estimated **%d** of **%d** resources, for a cost of **%s** per month.\n",
		matched, matched+estimate.UnmatchedResourcesCount, currency(estimate.ProposedMonthlyCost, false))
	d.printf("A change of **%s** per month.\n", currency(estimate.DeltaMonthlyCost, true))
}

func (d *docWriter) policyChecks(checks []*types.PolicyCheck) {
	if len(checks) == 0 {
		return
	}
	total := types.PolicyTotals(checks)
	d.printf("\n## Policy Checks\n\n")
	d.printf("| Passed | Advisory failed | Soft failed | Hard failed |\n|--------|-----------------|-------------|-------------|\n")
	d.printf("| %d | %d | %d | %d |\n", total.Passed, total.AdvisoryFailed, total.SoftFailed, total.HardFailed)
}

func (d *docWriter) apply(apply *types.Apply) {
	if apply == nil || apply.Status == statusUnreachable {
		return
	}
	d.printf("\n## Apply\n\n")
	if apply.Status != "finished" {
		d.printf("Apply is not available. It is currently %s.\n", types.PrettyStatus(apply.Status))
		return
	}
	d.printf("Resources: %d to add, %d to change, %d to delete\n\n",
		apply.Resources.Additions, apply.Resources.Changes, apply.Resources.Destructions)
	d.printf("Started: %s\n\n", d.stamp(apply.StatusTimestamps["started-at"]))
	d.printf("Finished: %s\n", d.stamp(apply.StatusTimestamps["finished-at"]))
}

func (d *docWriter) date(t time.Time) string {
	if t.IsZero() {
		return "Unknown"
	}
	return t.In(d.loc).Format("2006-01-02 15:04:05 MST")
}

func (d *docWriter) stamp(raw string) string {
	if raw == "" {
		return "Unknown"
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return d.date(t)
}

func yesNo(value bool) string {
	if value {
		return "Yes"
	}
	return "No"
}

func tableCell(value string) string {
	value = strings.ReplaceAll(value, "\r", "")
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "|", " ")
	return strings.TrimSpace(value)
}

// currency formats a decimal amount as $1,234.56. signed adds a leading +
// for non-negative amounts.
func currency(raw string, signed bool) string {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		value = 0
	}
	sign := ""
	if value < 0 {
		sign = "-"
		value = -value
	} else if signed {
		sign = "+"
	}
	fixed := strconv.FormatFloat(value, 'f', 2, 64)
	whole, frac, _ := strings.Cut(fixed, ".")
	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}
	return sign + "$" + grouped.String() + "." + frac
}
