package types

import "time"

// Task stage names as reported by the remote service.
const (
	StagePrePlan  = "pre_plan"
	StagePostPlan = "post_plan"
	StagePreApply = "pre_apply"
)

type TaskStage struct {
	ID            string
	Stage         string
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	TaskResultIDs []string
	// TaskResults holds results read along with the stage.
	TaskResults []*TaskResult
}

type TaskResult struct {
	ID       string
	TaskName string
	Status   string
	Message  string
	URL      string
}

func FindTaskStage(stages []*TaskStage, name string) *TaskStage {
	for _, stage := range stages {
		if stage != nil && stage.Stage == name {
			return stage
		}
	}
	return nil
}
