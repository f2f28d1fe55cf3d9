package task

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"tfcview/internal/actions"
	"tfcview/internal/poller"
	"tfcview/internal/types"
)

// Execution streams a task's output. Output closes when the task is done;
// Exit then delivers the exit code once.
type Execution struct {
	Output <-chan string
	Exit   <-chan int
}

type Task interface {
	Name() string
	Start(ctx context.Context) Execution
}

// Workspaces resolves workspaces and console addresses.
type Workspaces interface {
	GetWorkspace(ctx context.Context, id string, useCache bool) (*types.Workspace, error)
	URLForRun(ctx context.Context, run *types.Run) (string, error)
}

type RunCreator interface {
	CreateRun(ctx context.Context, ws *types.Workspace, def actions.RunDefinition) (*types.Run, error)
}

var idStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

// lineWriter hands each write to the output channel until ctx ends.
type lineWriter struct {
	ctx context.Context
	out chan<- string
}

func (w lineWriter) Write(p []byte) (int, error) {
	select {
	case w.out <- string(p):
		return len(p), nil
	case <-w.ctx.Done():
		return 0, w.ctx.Err()
	}
}

func (w lineWriter) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

// start runs body on its own goroutine and wires its writer and exit code
// into an Execution.
func start(ctx context.Context, body func(ctx context.Context, w lineWriter) int) Execution {
	output := make(chan string, 16)
	exit := make(chan int, 1)
	go func() {
		code := body(ctx, lineWriter{ctx: ctx, out: output})
		close(output)
		exit <- code
		close(exit)
	}()
	return Execution{Output: output, Exit: exit}
}

func pollOptions(opts poller.Options, workspaces Workspaces) poller.Options {
	if opts.RunURL == nil && workspaces != nil {
		opts.RunURL = workspaces.URLForRun
	}
	return opts
}

func errorLine(w lineWriter, err error) int {
	w.printf("An error occurred: %v.\n", err)
	return 1
}
