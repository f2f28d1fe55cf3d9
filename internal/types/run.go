package types

import (
	"strings"
	"time"
)

type RunStatus string

const (
	RunStatusPending            RunStatus = "pending"
	RunStatusQueuing            RunStatus = "queuing"
	RunStatusPlanQueued         RunStatus = "plan_queued"
	RunStatusFetching           RunStatus = "fetching"
	RunStatusPlanning           RunStatus = "planning"
	RunStatusPlanned            RunStatus = "planned"
	RunStatusPostPlanRunning    RunStatus = "post_plan_running"
	RunStatusPostPlanCompleted  RunStatus = "post_plan_completed"
	RunStatusCostEstimating     RunStatus = "cost_estimating"
	RunStatusCostEstimated      RunStatus = "cost_estimated"
	RunStatusPolicyChecking     RunStatus = "policy_checking"
	RunStatusPolicyOverride     RunStatus = "policy_override"
	RunStatusPolicySoftFailed   RunStatus = "policy_soft_failed"
	RunStatusPolicyChecked      RunStatus = "policy_checked"
	RunStatusConfirmed          RunStatus = "confirmed"
	RunStatusPreApplyRunning    RunStatus = "pre_apply_running"
	RunStatusPreApplyCompleted  RunStatus = "pre_apply_completed"
	RunStatusApplyQueued        RunStatus = "apply_queued"
	RunStatusApplying           RunStatus = "applying"
	RunStatusApplied            RunStatus = "applied"
	RunStatusPlannedAndFinished RunStatus = "planned_and_finished"
	RunStatusDiscarded          RunStatus = "discarded"
	RunStatusErrored            RunStatus = "errored"
	RunStatusCanceled           RunStatus = "canceled"
	RunStatusAssessing          RunStatus = "assessing"
	RunStatusAssessed           RunStatus = "assessed"
)

// Keys of Run.StatusTimestamps the poller reconciles.
const (
	TimestampPrePlanCompleted  = "pre-plan-completed-at"
	TimestampPlanned           = "planned-at"
	TimestampPostPlanCompleted = "post-plan-completed-at"
	TimestampCostEstimated     = "cost-estimated-at"
	TimestampPolicyChecked     = "policy-checked-at"
	TimestampPreApplyCompleted = "pre-apply-completed-at"
	TimestampApplied           = "applied-at"
)

var runStatusRank = map[RunStatus]int{
	RunStatusPending:            0,
	RunStatusQueuing:            1,
	RunStatusPlanQueued:         2,
	RunStatusFetching:           3,
	RunStatusPlanning:           4,
	RunStatusPlanned:            5,
	RunStatusPostPlanRunning:    6,
	RunStatusPostPlanCompleted:  7,
	RunStatusCostEstimating:     8,
	RunStatusCostEstimated:      9,
	RunStatusPolicyChecking:     10,
	RunStatusPolicyOverride:     11,
	RunStatusPolicySoftFailed:   12,
	RunStatusPolicyChecked:      12,
	RunStatusConfirmed:          13,
	RunStatusPreApplyRunning:    14,
	RunStatusPreApplyCompleted:  15,
	RunStatusApplyQueued:        16,
	RunStatusApplying:           17,
	RunStatusApplied:            18,
	RunStatusPlannedAndFinished: 18,
}

// Rank orders statuses along the phase sequence of a run. Terminal failure
// statuses (errored, canceled, discarded), health assessment statuses and
// unknown values report -1: they can follow any in-progress status.
func (s RunStatus) Rank() int {
	rank, ok := runStatusRank[s]
	if !ok {
		return -1
	}
	return rank
}

func (s RunStatus) Known() bool {
	switch s {
	case RunStatusErrored, RunStatusCanceled, RunStatusDiscarded,
		RunStatusAssessing, RunStatusAssessed:
		return true
	}
	_, ok := runStatusRank[s]
	return ok
}

type RunActions struct {
	IsCancelable      bool
	IsConfirmable     bool
	IsDiscardable     bool
	IsForceCancelable bool
}

type RunPermissions struct {
	CanApply        bool
	CanCancel       bool
	CanDiscard      bool
	CanForceExecute bool
	CanForceCancel  bool
}

type Run struct {
	ID               string
	Status           RunStatus
	Message          string
	AutoApply        bool
	IsDestroy        bool
	PlanOnly         bool
	TerraformVersion string
	CreatedAt        time.Time
	StatusTimestamps map[string]string
	Actions          RunActions
	Permissions      RunPermissions

	WorkspaceID     string
	PlanID          string
	ApplyID         string
	CostEstimateID  string
	PolicyCheckIDs  []string
	TaskStageIDs    []string
	HasPolicyChecks bool
	HasTaskStages   bool

	// Populated when requested through include.
	Plan         *Plan
	Apply        *Apply
	CostEstimate *CostEstimate
}

// Timestamp returns the recorded value for a status-timestamps key, or ""
// when that phase has not happened yet.
func (r *Run) Timestamp(key string) string {
	if r == nil || r.StatusTimestamps == nil {
		return ""
	}
	return r.StatusTimestamps[key]
}

func (r *Run) IsCompleted() bool {
	if r == nil {
		return false
	}
	switch r.Status {
	case RunStatusErrored, RunStatusApplied, RunStatusDiscarded,
		RunStatusPlannedAndFinished, RunStatusPolicySoftFailed, RunStatusCanceled:
		return true
	}
	return false
}

func (r *Run) IsSuccess() bool {
	if r == nil {
		return false
	}
	switch r.Status {
	case RunStatusDiscarded, RunStatusApplied, RunStatusPlannedAndFinished:
		return true
	}
	return false
}

func (r *Run) HasPlan() bool {
	if r == nil {
		return false
	}
	switch r.Status {
	case RunStatusPlanned, RunStatusConfirmed, RunStatusApplyQueued, RunStatusApplying,
		RunStatusApplied, RunStatusDiscarded, RunStatusCostEstimating, RunStatusCostEstimated,
		RunStatusPolicyChecking, RunStatusPolicyOverride, RunStatusPolicySoftFailed,
		RunStatusPolicyChecked, RunStatusPlannedAndFinished, RunStatusPostPlanRunning,
		RunStatusPostPlanCompleted, RunStatusPreApplyRunning, RunStatusPreApplyCompleted:
		return true
	}
	return false
}

func (r *Run) AwaitingConfirmation() bool {
	return r != nil && r.Actions.IsConfirmable
}

func (r *Run) AwaitingPolicyOverride() bool {
	return r != nil && r.Status == RunStatusPolicyOverride
}

func (r *Run) IsConfirmable() bool {
	return r.AwaitingConfirmation()
}

func (r *Run) IsCancelable() bool {
	return r != nil && r.Actions.IsCancelable && r.Permissions.CanCancel
}

func (r *Run) IsDiscardable() bool {
	return r != nil && r.Actions.IsDiscardable && r.Permissions.CanDiscard
}

// StatusIcon names the codicon a host shows next to a run.
func (r *Run) StatusIcon() string {
	if r == nil {
		return "question"
	}
	if r.IsCompleted() {
		switch {
		case r.IsSuccess():
			return "pass"
		case r.Status == RunStatusErrored:
			return "error"
		default:
			return "stop"
		}
	}
	switch {
	case r.AwaitingConfirmation():
		return "report"
	case r.Status == RunStatusPending:
		return "watch"
	default:
		return "debug-start"
	}
}

func PrettyStatus(value string) string {
	if value == "" {
		return ""
	}
	value = strings.ReplaceAll(value, "_", " ")
	value = strings.ReplaceAll(value, "-", " ")
	return strings.ToUpper(value[:1]) + value[1:]
}
