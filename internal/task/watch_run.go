package task

import (
	"context"

	"tfcview/internal/poller"
)

// WatchRunTask follows an existing run to completion.
type WatchRunTask struct {
	RunID       string
	Workspaces  Workspaces
	PollAPI     poller.API
	PollOptions poller.Options
}

func (t *WatchRunTask) Name() string {
	return "Watch run " + t.RunID
}

func (t *WatchRunTask) Start(ctx context.Context) Execution {
	return start(ctx, t.run)
}

func (t *WatchRunTask) run(ctx context.Context, w lineWriter) int {
	w.printf("Watching run %s...\n", idStyle.Render(t.RunID))
	p := poller.New(t.PollAPI, t.RunID, w, pollOptions(t.PollOptions, t.Workspaces))
	if err := p.Poll(ctx); err != nil {
		return errorLine(w, err)
	}
	return 0
}
