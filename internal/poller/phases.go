package poller

import (
	"context"

	"tfcview/internal/client"
	"tfcview/internal/logging"
	"tfcview/internal/types"
)

// phase is one step of reconciliation. observe returns the marker that
// shows the phase finished; write reports its details.
type phase struct {
	name    string
	observe func(run *types.Run) string
	write   func(ctx context.Context, run *types.Run) error
	// once phases report only the first marker they see.
	once bool
}

// buildPhases lists the phases in the order a run passes through them.
// Later phases rely on earlier ones having been checked first.
func (p *Poller) buildPhases() []phase {
	phases := []phase{
		{name: "pre-plan", observe: timestamp(types.TimestampPrePlanCompleted), write: p.writeTaskStage(types.StagePrePlan)},
		{name: "plan", observe: timestamp(types.TimestampPlanned), write: p.writePlan},
		{name: "post-plan", observe: timestamp(types.TimestampPostPlanCompleted), write: p.writeTaskStage(types.StagePostPlan)},
	}
	if p.opts.Phases.CostEstimate {
		phases = append(phases, phase{name: "cost-estimate", observe: timestamp(types.TimestampCostEstimated), write: p.writeCostEstimate})
	}
	phases = append(phases,
		phase{name: "policy-check", observe: p.policyCheckedAt, write: p.writePolicyChecks, once: true},
		phase{name: "pre-apply", observe: timestamp(types.TimestampPreApplyCompleted), write: p.writeTaskStage(types.StagePreApply)},
		phase{name: "apply", observe: timestamp(types.TimestampApplied), write: p.writeApply},
	)
	return phases
}

// reconcile compares every phase marker with the last one seen and reports
// the phases that moved. It stops quietly as soon as ctx is cancelled.
func (p *Poller) reconcile(ctx context.Context, run *types.Run) error {
	for _, ph := range p.phases {
		if ctx.Err() != nil {
			return nil
		}
		value := ph.observe(run)
		last := p.seen[ph.name]
		if ph.once {
			if last != "" || value == "" {
				continue
			}
		} else if value == last {
			continue
		}
		p.seen[ph.name] = value
		if value == "" {
			continue
		}
		p.logger.Debug("run_phase_observed", logging.F("phase", ph.name), logging.F("at", value))
		if err := ph.write(ctx, run); err != nil {
			return err
		}
	}
	return nil
}

func timestamp(key string) func(run *types.Run) string {
	return func(run *types.Run) string {
		return run.Timestamp(key)
	}
}

// policyCheckedAt falls back to the current time when the run stopped on a
// policy failure before the service recorded policy-checked-at. Only the
// fact that a value exists matters.
func (p *Poller) policyCheckedAt(run *types.Run) string {
	if value := run.Timestamp(types.TimestampPolicyChecked); value != "" {
		return value
	}
	if !p.opts.Phases.PolicyOverride {
		return ""
	}
	switch run.Status {
	case types.RunStatusPolicySoftFailed, types.RunStatusPolicyOverride:
		return p.clock.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
	}
	return ""
}

func (p *Poller) writePlan(ctx context.Context, run *types.Run) error {
	if run.PlanID == "" {
		return nil
	}
	plan, err := fetch(ctx, p, "plan", func(fetchCtx context.Context) (*types.Plan, error) {
		return p.api.GetPlan(fetchCtx, run.PlanID)
	})
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}
	p.write(resourceLine("Planned resource changes:", plan.Resources))
	return nil
}

func (p *Poller) writeApply(ctx context.Context, run *types.Run) error {
	if run.ApplyID == "" {
		return nil
	}
	apply, err := fetch(ctx, p, "apply", func(fetchCtx context.Context) (*types.Apply, error) {
		return p.api.GetApply(fetchCtx, run.ApplyID)
	})
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}
	p.write(resourceLine("Applied resource changes:", apply.Resources))
	return nil
}

func (p *Poller) writeCostEstimate(ctx context.Context, run *types.Run) error {
	if run.CostEstimateID == "" {
		return nil
	}
	estimate, err := fetch(ctx, p, "cost_estimate", func(fetchCtx context.Context) (*types.CostEstimate, error) {
		return p.api.GetCostEstimate(fetchCtx, run.CostEstimateID)
	})
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}
	p.write(costEstimateLine(estimate))
	return nil
}

func (p *Poller) writePolicyChecks(ctx context.Context, run *types.Run) error {
	if !run.HasPolicyChecks {
		return nil
	}
	checks, err := fetch(ctx, p, "policy_checks", func(fetchCtx context.Context) ([]*types.PolicyCheck, error) {
		return p.api.ListPolicyChecks(fetchCtx, run.ID)
	})
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}
	p.write(policyLine(types.PolicyTotals(checks)))
	return nil
}

func (p *Poller) writeTaskStage(name string) func(ctx context.Context, run *types.Run) error {
	return func(ctx context.Context, run *types.Run) error {
		if !run.HasTaskStages {
			return nil
		}
		stages, err := fetch(ctx, p, "task_stages", func(fetchCtx context.Context) ([]*types.TaskStage, error) {
			return p.api.ListTaskStages(fetchCtx, run.ID, client.IncludeTaskResults)
		})
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		stage := types.FindTaskStage(stages, name)
		if stage == nil {
			return nil
		}
		results, err := p.taskResults(ctx, stage)
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		p.write(taskStageBlock(stage.Stage, results))
		return nil
	}
}

// taskResults returns the stage's results in relationship order, fetching
// those the stage listing did not include.
func (p *Poller) taskResults(ctx context.Context, stage *types.TaskStage) ([]*types.TaskResult, error) {
	included := make(map[string]*types.TaskResult, len(stage.TaskResults))
	for _, result := range stage.TaskResults {
		if result != nil {
			included[result.ID] = result
		}
	}
	ids := stage.TaskResultIDs
	if len(ids) == 0 {
		return stage.TaskResults, nil
	}
	results := make([]*types.TaskResult, 0, len(ids))
	for _, id := range ids {
		if result, ok := included[id]; ok {
			results = append(results, result)
			continue
		}
		if ctx.Err() != nil {
			return results, nil
		}
		result, err := fetch(ctx, p, "task_result", func(fetchCtx context.Context) (*types.TaskResult, error) {
			return p.api.GetTaskResult(fetchCtx, id)
		})
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}
