package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"

	"tfcview/internal/actions"
	"tfcview/internal/backoff"
	"tfcview/internal/types"
	"tfcview/internal/watch"
)

type WorkspacesCommand struct {
	wiring commandWiring
}

func NewWorkspacesCommand(wiring commandWiring) *WorkspacesCommand {
	return &WorkspacesCommand{wiring: wiring}
}

func (c *WorkspacesCommand) Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("workspaces", flag.ContinueOnError)
	fs.SetOutput(c.wiring.stderr)
	filter := fs.String("filter", "", "fuzzy filter on workspace name")
	orgName := fs.String("org", "", "organization (defaults to the selected one)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	env, err := c.wiring.open(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	org := strings.TrimSpace(*orgName)
	if org == "" {
		org = env.session.OrganizationName()
	}
	if org == "" {
		return errNoOrganization
	}
	list, err := env.session.FindWorkspaces(ctx, org, *filter)
	if err != nil {
		return describeAccessError(err)
	}
	watching := env.session.WatchingWorkspaceID()
	writer := tabwriter.NewWriter(c.wiring.stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "\tNAME\tID\tLOCKED\tTERRAFORM\tCURRENT RUN")
	for _, ws := range list {
		marker := ""
		if ws.ID == watching {
			marker = "*"
		}
		current := ws.CurrentRunID
		if current == "" {
			current = "-"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%t\t%s\t%s\n", marker, ws.Name, ws.ID, ws.Locked, ws.TerraformVersion, current)
	}
	return writer.Flush()
}

type WorkspaceCommand struct {
	wiring commandWiring
}

func NewWorkspaceCommand(wiring commandWiring) *WorkspaceCommand {
	return &WorkspaceCommand{wiring: wiring}
}

func (c *WorkspaceCommand) Run(ctx context.Context, args []string) error {
	sub, rest, err := subcommand("workspace", args, "lock", "unlock", "watch", "actions")
	if err != nil {
		return err
	}
	switch sub {
	case "lock":
		return c.lock(ctx, rest)
	case "unlock":
		return c.unlock(ctx, rest)
	case "actions":
		return c.actions(ctx, rest)
	default:
		return c.watch(ctx, rest)
	}
}

func (c *WorkspaceCommand) lock(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("workspace lock", flag.ContinueOnError)
	fs.SetOutput(c.wiring.stderr)
	reason := fs.String("reason", "", "lock reason")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("workspace lock requires a workspace name")
	}
	env, err := c.wiring.open(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	ws, err := env.workspace(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if _, err := env.actions.LockWorkspace(ctx, ws, *reason); err != nil {
		return err
	}
	fmt.Fprintf(c.wiring.stdout, "Workspace %s locked\n", ws.Name)
	return nil
}

func (c *WorkspaceCommand) unlock(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("workspace unlock", flag.ContinueOnError)
	fs.SetOutput(c.wiring.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("workspace unlock requires a workspace name")
	}
	env, err := c.wiring.open(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	ws, err := env.workspace(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if _, err := env.actions.UnlockWorkspace(ctx, ws); err != nil {
		return err
	}
	fmt.Fprintf(c.wiring.stdout, "Workspace %s unlocked\n", ws.Name)
	return nil
}

func (c *WorkspaceCommand) actions(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("workspace actions", flag.ContinueOnError)
	fs.SetOutput(c.wiring.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	env, err := c.wiring.open(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	var ws *types.Workspace
	if fs.NArg() > 0 {
		ws, err = env.workspace(ctx, fs.Arg(0))
	} else {
		ws, err = watchedWorkspace(env)
	}
	if err != nil {
		return err
	}
	var current *types.Run
	if ws.CurrentRunID != "" {
		current, err = env.session.GetRun(ctx, ws.CurrentRunID)
		if err != nil {
			return err
		}
		if current != nil && current.IsCompleted() {
			current = nil
		}
	}
	available := actions.Available(ws, current)
	if len(available) == 0 {
		fmt.Fprintf(c.wiring.stdout, "No actions available for %s\n", ws.Name)
		return nil
	}
	writer := tabwriter.NewWriter(c.wiring.stdout, 0, 8, 2, ' ', 0)
	for _, action := range available {
		fmt.Fprintf(writer, "%s\t%s\t%s\n", action.Kind, action.Label, action.Description)
	}
	return writer.Flush()
}

func (c *WorkspaceCommand) watch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("workspace watch", flag.ContinueOnError)
	fs.SetOutput(c.wiring.stderr)
	once := fs.Bool("once", false, "print the first resolved status and exit")
	stop := fs.Bool("stop", false, "stop watching the current workspace")
	if err := fs.Parse(args); err != nil {
		return err
	}
	env, err := c.wiring.open(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	if *stop {
		if err := env.session.StopWatching(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.wiring.stdout, "Stopped watching")
		return nil
	}

	id := env.session.WatchingWorkspaceID()
	if fs.NArg() > 0 {
		ws, err := env.workspace(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		id = ws.ID
	}
	if id == "" {
		return errors.New("no workspace is being watched; pass a workspace name")
	}

	interval := env.cfg.WorkspacePollInterval()
	opts := watch.DefaultOptions()
	opts.Policy = backoff.Policy{Floor: interval.Floor, Ceiling: interval.Ceiling, Multiplier: interval.Multiplier}
	opts.Clock = env.clock
	opts.Logger = env.logger
	opts.ConsoleURL = env.cfg.APIURL()
	scheduler := watch.New(env.api, opts)
	defer scheduler.Close()

	statuses := make(chan watch.Status, 16)
	subID := scheduler.Subscribe(func(status watch.Status) {
		select {
		case statuses <- status:
		default:
		}
	})
	defer scheduler.Unsubscribe(subID)
	unbind := env.session.BindWatch(scheduler)
	defer unbind()

	if err := env.session.WatchWorkspace(ctx, id); err != nil {
		return err
	}

	frame := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case status := <-statuses:
			if !status.Watching {
				fmt.Fprintln(c.wiring.stdout, "Not watching any workspace")
				return nil
			}
			if status.Loading {
				if !*once {
					fmt.Fprintln(c.wiring.stdout, renderLabel(status.Label, frame))
				}
				frame++
				continue
			}
			fmt.Fprintln(c.wiring.stdout, renderLabel(status.Label, frame))
			if *once {
				return nil
			}
		}
	}
}

func watchedWorkspace(env *environment) (*types.Workspace, error) {
	ws := env.session.WatchingWorkspace()
	if ws == nil {
		return nil, errors.New("no workspace is being watched; pass a workspace name")
	}
	return ws, nil
}
