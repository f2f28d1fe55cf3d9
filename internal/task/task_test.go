package task

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	xansi "github.com/charmbracelet/x/ansi"

	"tfcview/internal/actions"
	"tfcview/internal/client"
	"tfcview/internal/poller"
	"tfcview/internal/session"
	"tfcview/internal/testutil"
	"tfcview/internal/types"
)

type taskHarness struct {
	api     *testutil.FakeAPI
	session *session.Session
	facade  *actions.Facade
	opts    poller.Options
}

func newTaskHarness() *taskHarness {
	api := testutil.NewFakeAPI()
	api.Workspaces["ws-1"] = testutil.Workspace("ws-1", "acme", "network")
	sess := session.New(api, session.Options{ConsoleURL: "https://app.terraform.io"})
	opts := poller.DefaultOptions()
	opts.Clock = testutil.NewInstantClock(time.Unix(0, 0))
	return &taskHarness{api: api, session: sess, facade: actions.New(api, sess, nil), opts: opts}
}

func (h *taskHarness) createTask(workspaceID string) *CreateRunTask {
	return &CreateRunTask{
		Definition:  actions.RunDefinition{WorkspaceID: workspaceID, WorkspaceName: "network", Message: "from test"},
		Workspaces:  h.session,
		Creator:     h.facade,
		PollAPI:     h.api,
		PollOptions: h.opts,
	}
}

func collect(t *testing.T, exec Execution) (string, int) {
	t.Helper()
	var b strings.Builder
	timeout := time.After(5 * time.Second)
	for {
		select {
		case line, ok := <-exec.Output:
			if !ok {
				select {
				case code := <-exec.Exit:
					return xansi.Strip(b.String()), code
				case <-timeout:
					t.Fatalf("timed out waiting for exit code")
				}
			}
			b.WriteString(line)
		case <-timeout:
			t.Fatalf("timed out waiting for task output")
		}
	}
}

func TestCreateRunTaskHappyPath(t *testing.T) {
	h := newTaskHarness()
	h.api.CreatedRun = testutil.Run("run-9", types.RunStatusPending)
	h.api.ScriptRun(testutil.Run("run-9", types.RunStatusPlannedAndFinished))

	out, code := collect(t, h.createTask("ws-1").Start(context.Background()))
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, out)
	}
	want := "Starting task...\n" +
		"Validating workspace...\n" +
		"Validating permissions...\n" +
		"Creating run...\n" +
		"Run created with id run-9. Browse to https://app.terraform.io/app/acme/workspaces/network/runs/run-9 for more detailed information.\n" +
		"\nIf you close this terminal, the Run will continue.\n\n" +
		"Run is Planned and finished\n" +
		"Run has completed.\n"
	if out != want {
		t.Fatalf("unexpected output:\n%q\nwant:\n%q", out, want)
	}
	if h.api.CallCount("CreateRun") != 1 {
		t.Fatalf("expected a single create call")
	}
}

func TestCreateRunTaskWorkspaceNotFound(t *testing.T) {
	h := newTaskHarness()
	out, code := collect(t, h.createTask("ws-missing").Start(context.Background()))
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.HasSuffix(out, "Workspace ws-missing was not found.\n") {
		t.Fatalf("unexpected output %q", out)
	}
	if h.api.CallCount("CreateRun") != 0 {
		t.Fatalf("expected no create call")
	}
}

func TestCreateRunTaskWithoutPermission(t *testing.T) {
	h := newTaskHarness()
	h.api.Workspaces["ws-1"].Permissions.CanQueueRun = false
	out, code := collect(t, h.createTask("ws-1").Start(context.Background()))
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.HasSuffix(out, "You do not have permission to create a run in network.\n") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestCreateRunTaskReportsErrors(t *testing.T) {
	h := newTaskHarness()
	h.api.FailNext("CreateRun", &client.APIError{StatusCode: http.StatusUnprocessableEntity, Message: "invalid run"})
	out, code := collect(t, h.createTask("ws-1").Start(context.Background()))
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(out, "An error occurred: ") || !strings.Contains(out, "invalid run") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestCreateRunTaskCancelledBeforeStart(t *testing.T) {
	h := newTaskHarness()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, code := collect(t, h.createTask("ws-1").Start(ctx))
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if h.api.CallCount("GetWorkspace") != 0 || h.api.CallCount("CreateRun") != 0 {
		t.Fatalf("expected no remote calls, got %v", h.api.Calls())
	}
}

func TestWatchRunTask(t *testing.T) {
	h := newTaskHarness()
	h.api.ScriptRun(
		testutil.Run("run-1", types.RunStatusPlanning),
		testutil.Run("run-1", types.RunStatusErrored),
	)
	task := &WatchRunTask{RunID: "run-1", Workspaces: h.session, PollAPI: h.api, PollOptions: h.opts}
	out, code := collect(t, task.Start(context.Background()))
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	want := "Watching run run-1...\nRun is Planning\nRun is Errored\nRun has completed.\n"
	if out != want {
		t.Fatalf("unexpected output %q", out)
	}
	if task.Name() != "Watch run run-1" {
		t.Fatalf("unexpected name %q", task.Name())
	}
}

func TestWatchRunTaskMissingRun(t *testing.T) {
	h := newTaskHarness()
	task := &WatchRunTask{RunID: "run-404", Workspaces: h.session, PollAPI: h.api, PollOptions: h.opts}
	out, code := collect(t, task.Start(context.Background()))
	if code != 1 || !strings.Contains(out, "An error occurred:") {
		t.Fatalf("expected failure, got %d %q", code, out)
	}
}
