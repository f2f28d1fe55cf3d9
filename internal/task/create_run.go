package task

import (
	"context"
	"errors"

	"tfcview/internal/actions"
	"tfcview/internal/poller"
)

// CreateRunTask validates the workspace, queues a run, and follows it.
type CreateRunTask struct {
	Definition  actions.RunDefinition
	Workspaces  Workspaces
	Creator     RunCreator
	PollAPI     poller.API
	PollOptions poller.Options
}

func (t *CreateRunTask) Name() string {
	name := t.Definition.WorkspaceName
	if name == "" {
		name = t.Definition.WorkspaceID
	}
	return "Start a run in " + name + " workspace"
}

func (t *CreateRunTask) Start(ctx context.Context) Execution {
	return start(ctx, t.run)
}

func (t *CreateRunTask) run(ctx context.Context, w lineWriter) int {
	w.printf("Starting task...\n")
	if ctx.Err() != nil {
		return 0
	}

	w.printf("Validating workspace...\n")
	ws, err := t.Workspaces.GetWorkspace(ctx, t.Definition.WorkspaceID, false)
	if ctx.Err() != nil {
		return 0
	}
	if err != nil {
		return errorLine(w, err)
	}
	if ws == nil {
		w.printf("Workspace %s was not found.\n", t.Definition.WorkspaceID)
		return 0
	}

	w.printf("Validating permissions...\n")
	if !ws.Permissions.CanQueueRun {
		w.printf("You do not have permission to create a run in %s.\n", ws.Name)
		return 0
	}

	w.printf("Creating run...\n")
	run, err := t.Creator.CreateRun(ctx, ws, t.Definition)
	if ctx.Err() != nil {
		return 0
	}
	if err != nil {
		return errorLine(w, err)
	}

	runURL, err := t.Workspaces.URLForRun(ctx, run)
	if err == nil && runURL == "" {
		err = errors.New("could not resolve the address of run " + run.ID)
	}
	if err != nil {
		return errorLine(w, err)
	}
	w.printf("Run created with id %s. Browse to %s for more detailed information.\n", idStyle.Render(run.ID), runURL)
	w.printf("\nIf you close this terminal, the Run will continue.\n\n")

	p := poller.New(t.PollAPI, run.ID, w, pollOptions(t.PollOptions, t.Workspaces))
	if err := p.Poll(ctx); err != nil {
		return errorLine(w, err)
	}
	return 0
}
