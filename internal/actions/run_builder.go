package actions

import (
	"errors"
	"strings"

	"tfcview/internal/client"
	"tfcview/internal/types"
)

// RunDefinition describes a run to queue. AutoApply nil keeps the
// workspace's own setting.
type RunDefinition struct {
	WorkspaceID     string
	WorkspaceName   string
	Message         string
	AutoApply       *bool
	AllowEmptyApply bool
	PlanOnly        bool
	IsDestroy       bool
}

func (d RunDefinition) Request() client.CreateRunRequest {
	return client.CreateRunRequest{
		WorkspaceID:     d.WorkspaceID,
		Message:         d.Message,
		AutoApply:       d.AutoApply,
		AllowEmptyApply: d.AllowEmptyApply,
		PlanOnly:        d.PlanOnly,
		IsDestroy:       d.IsDestroy,
	}
}

type RunBuilder struct {
	def RunDefinition
}

func NewRunBuilder(ws *types.Workspace) *RunBuilder {
	b := &RunBuilder{}
	if ws != nil {
		b.def.WorkspaceID = ws.ID
		b.def.WorkspaceName = ws.Name
	}
	return b
}

func (b *RunBuilder) Message(message string) *RunBuilder {
	b.def.Message = strings.TrimSpace(message)
	return b
}

func (b *RunBuilder) AutoApply(value bool) *RunBuilder {
	b.def.AutoApply = &value
	return b
}

func (b *RunBuilder) AllowEmptyApply(value bool) *RunBuilder {
	b.def.AllowEmptyApply = value
	return b
}

func (b *RunBuilder) PlanOnly(value bool) *RunBuilder {
	b.def.PlanOnly = value
	return b
}

func (b *RunBuilder) Destroy(value bool) *RunBuilder {
	b.def.IsDestroy = value
	return b
}

func (b *RunBuilder) Build() (RunDefinition, error) {
	if strings.TrimSpace(b.def.WorkspaceID) == "" {
		return RunDefinition{}, errors.New("workspace is required")
	}
	if b.def.PlanOnly && b.def.AutoApply != nil && *b.def.AutoApply {
		return RunDefinition{}, errors.New("a plan-only run cannot auto-apply")
	}
	return b.def, nil
}
