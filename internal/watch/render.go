package watch

import (
	"strings"

	runewidth "github.com/mattn/go-runewidth"

	"tfcview/internal/types"
)

const (
	IconLoading = "loading~spin"
	IconWarning = "warning"
	IconNoRuns  = "stop-circle"
	IconLocked  = "lock"

	unknownTooltip = "Could not find the workspace within Terraform Cloud"
)

// Status is what a host shows for the watched workspace. The zero value
// means nothing is watched.
type Status struct {
	Watching    bool
	Known       bool
	Loading     bool
	Icon        string
	Label       string
	Tooltip     string
	Locked      bool
	Running     bool
	WorkspaceID string
	Workspace   *types.Workspace
	CurrentRun  *types.Run
	LatestRun   *types.Run
	// ActiveRun is the run a click should act on, if one is in progress.
	ActiveRun *types.Run
	Err       error
}

func loadingStatus(loop *watchLoop, tooltip string) Status {
	return Status{
		Watching:    true,
		Loading:     true,
		Icon:        IconLoading,
		Label:       strings.TrimSpace("$(" + IconLoading + ") " + loop.name),
		Tooltip:     tooltip,
		WorkspaceID: loop.workspaceID,
	}
}

func unknownStatus(loop *watchLoop, err error) Status {
	return Status{
		Watching:    true,
		Icon:        IconWarning,
		Label:       "$(" + IconWarning + ")",
		Tooltip:     unknownTooltip,
		WorkspaceID: loop.workspaceID,
		Err:         err,
	}
}

// render picks the run to surface: the current run while it is still in
// progress, otherwise the latest run.
func render(ws *types.Workspace, current, latest *types.Run, opts Options) Status {
	status := Status{
		Watching:    true,
		Known:       true,
		Locked:      ws.Locked,
		WorkspaceID: ws.ID,
		Workspace:   ws,
		CurrentRun:  current,
		LatestRun:   latest,
	}

	var tooltip strings.Builder
	tooltip.WriteString("**" + ws.Name + "**")
	if ws.Description != "" {
		tooltip.WriteString("\n\n" + ws.Description)
	}

	switch {
	case current != nil && !current.IsCompleted():
		status.Running = true
		status.ActiveRun = current
		status.Icon = current.StatusIcon()
		writeRunLink(&tooltip, "Current Run", ws, current, opts.ConsoleURL)
	case latest != nil:
		status.Icon = latest.StatusIcon()
		writeRunLink(&tooltip, "Latest Run", ws, latest, opts.ConsoleURL)
	default:
		status.Icon = IconNoRuns
	}
	if ws.Locked && !status.Running {
		status.Icon = IconLocked
	}

	tooltip.WriteString("\n\nClick to start a run.")
	status.Tooltip = tooltip.String()
	status.Label = "$(" + status.Icon + ") " + truncateName(ws.Name, opts.LabelWidth)
	return status
}

func writeRunLink(b *strings.Builder, title string, ws *types.Workspace, run *types.Run, root string) {
	if url := types.RunURL(root, ws, run.ID); url != "" {
		b.WriteString("\n\n[" + title + "](" + url + ") : ")
	} else {
		b.WriteString("\n\n" + title + " : ")
	}
	b.WriteString(types.PrettyStatus(string(run.Status)))
}

func truncateName(name string, width int) string {
	if width <= 0 || runewidth.StringWidth(name) <= width {
		return name
	}
	return runewidth.Truncate(name, width, "…")
}
