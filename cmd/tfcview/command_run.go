package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"tfcview/internal/actions"
	"tfcview/internal/markdown"
	"tfcview/internal/runfs"
	"tfcview/internal/task"
)

type RunCommand struct {
	wiring commandWiring
}

func NewRunCommand(wiring commandWiring) *RunCommand {
	return &RunCommand{wiring: wiring}
}

func (c *RunCommand) Run(ctx context.Context, args []string) error {
	sub, rest, err := subcommand("run", args, "create", "watch", "show", "url", "apply", "cancel", "discard")
	if err != nil {
		return err
	}
	switch sub {
	case "create":
		return c.create(ctx, rest)
	case "watch":
		return c.watch(ctx, rest)
	case "show":
		return c.show(ctx, rest)
	case "url":
		return c.url(ctx, rest)
	default:
		return c.act(ctx, sub, rest)
	}
}

func (c *RunCommand) create(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run create", flag.ContinueOnError)
	fs.SetOutput(c.wiring.stderr)
	message := fs.String("message", "", "run message")
	autoApply := fs.Bool("auto-apply", false, "apply automatically after a successful plan")
	planOnly := fs.Bool("plan-only", false, "create a speculative plan")
	destroy := fs.Bool("destroy", false, "plan to destroy all resources")
	allowEmpty := fs.Bool("allow-empty-apply", false, "allow applying a plan without changes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	env, err := c.wiring.open(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	ws := env.session.WatchingWorkspace()
	if fs.NArg() > 0 {
		ws, err = env.workspace(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
	}
	if ws == nil {
		return errors.New("run create requires a workspace name")
	}
	builder := actions.NewRunBuilder(ws).
		Message(*message).
		AllowEmptyApply(*allowEmpty).
		PlanOnly(*planOnly).
		Destroy(*destroy)
	if isFlagSet(fs, "auto-apply") {
		builder = builder.AutoApply(*autoApply)
	}
	def, err := builder.Build()
	if err != nil {
		return err
	}
	return runTask(ctx, c.wiring.stdout, &task.CreateRunTask{
		Definition:  def,
		Workspaces:  env.session,
		Creator:     env.actions,
		PollAPI:     env.api,
		PollOptions: env.pollOptions(),
	})
}

func (c *RunCommand) watch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run watch", flag.ContinueOnError)
	fs.SetOutput(c.wiring.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("run watch requires a run id")
	}
	env, err := c.wiring.open(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	return runTask(ctx, c.wiring.stdout, &task.WatchRunTask{
		RunID:       fs.Arg(0),
		Workspaces:  env.session,
		PollAPI:     env.api,
		PollOptions: env.pollOptions(),
	})
}

func (c *RunCommand) show(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run show", flag.ContinueOnError)
	fs.SetOutput(c.wiring.stderr)
	raw := fs.Bool("raw", false, "print markdown without rendering")
	style := fs.String("style", "", "render style: auto|dark|light|notty")
	width := fs.Int("width", 0, "wrap width")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("run show requires a run id")
	}
	env, err := c.wiring.open(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	provider := runfs.NewProvider(env.api, runfs.Options{
		CacheSize:  env.cfg.DocumentCacheSize(),
		TTL:        env.cfg.DocumentTTL(),
		ConsoleURL: env.cfg.APIURL(),
		Logger:     env.logger,
	})
	data, err := provider.ReadFile(ctx, runfs.RunPath(fs.Arg(0)))
	if err != nil {
		if errors.Is(err, runfs.ErrNotFound) {
			return fmt.Errorf("run %s not found", fs.Arg(0))
		}
		return err
	}
	if *raw {
		_, err = c.wiring.stdout.Write(data)
		return err
	}
	renderStyle := env.cfg.RenderStyle()
	if *style != "" {
		renderStyle = *style
	}
	renderWidth := env.cfg.RenderWidth()
	if *width > 0 {
		renderWidth = *width
	}
	_, err = io.WriteString(c.wiring.stdout, markdown.Render(string(data), renderStyle, renderWidth))
	return err
}

func (c *RunCommand) url(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run url", flag.ContinueOnError)
	fs.SetOutput(c.wiring.stderr)
	copyURL := fs.Bool("copy", false, "copy the address to the clipboard")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("run url requires a run id")
	}
	env, err := c.wiring.open(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	run, err := env.run(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	address, err := env.session.URLForRun(ctx, run)
	if err != nil {
		return err
	}
	if address == "" {
		return fmt.Errorf("could not resolve the address of run %s", run.ID)
	}
	fmt.Fprintln(c.wiring.stdout, address)
	if *copyURL {
		method, err := c.wiring.copyText(address)
		if err != nil {
			return fmt.Errorf("copy failed: %w", err)
		}
		fmt.Fprintf(c.wiring.stderr, "copied to clipboard (%s)\n", method)
	}
	return nil
}

func (c *RunCommand) act(ctx context.Context, verb string, args []string) error {
	fs := flag.NewFlagSet("run "+verb, flag.ContinueOnError)
	fs.SetOutput(c.wiring.stderr)
	comment := fs.String("comment", "", "comment recorded with the action")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("run %s requires a run id", verb)
	}
	env, err := c.wiring.open(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	run, err := env.run(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	var done string
	switch verb {
	case "apply":
		err = env.actions.ApplyRun(ctx, run, *comment)
		done = "applied"
	case "cancel":
		err = env.actions.CancelRun(ctx, run, *comment)
		done = "canceled"
	default:
		err = env.actions.DiscardRun(ctx, run, *comment)
		done = "discarded"
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.wiring.stdout, "Run %s %s\n", run.ID, done)
	return nil
}

type PolicyCommand struct {
	wiring commandWiring
}

func NewPolicyCommand(wiring commandWiring) *PolicyCommand {
	return &PolicyCommand{wiring: wiring}
}

func (c *PolicyCommand) Run(ctx context.Context, args []string) error {
	_, rest, err := subcommand("policy", args, "override")
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("policy override", flag.ContinueOnError)
	fs.SetOutput(c.wiring.stderr)
	comment := fs.String("comment", "", "override comment")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("policy override requires a run id")
	}
	env, err := c.wiring.open(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	run, err := env.run(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	overridden, err := env.actions.OverridePolicyCheck(ctx, run, *comment)
	for _, id := range overridden {
		fmt.Fprintf(c.wiring.stdout, "Policy check %s overridden\n", id)
	}
	return err
}

// runTask streams a task's output and turns a non-zero exit into an error.
func runTask(ctx context.Context, out io.Writer, t task.Task) error {
	exec := t.Start(ctx)
	for line := range exec.Output {
		_, _ = io.WriteString(out, line)
	}
	if code := <-exec.Exit; code != 0 {
		return fmt.Errorf("%s exited with code %d", t.Name(), code)
	}
	return nil
}

func isFlagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
