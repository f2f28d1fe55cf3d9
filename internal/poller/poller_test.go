package poller

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	xansi "github.com/charmbracelet/x/ansi"

	"tfcview/internal/backoff"
	"tfcview/internal/client"
	"tfcview/internal/testutil"
	"tfcview/internal/types"
)

type harness struct {
	api   *testutil.FakeAPI
	clock *testutil.InstantClock
	out   *bytes.Buffer
	opts  Options
}

func newHarness() *harness {
	clock := testutil.NewInstantClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	opts := DefaultOptions()
	opts.Clock = clock
	return &harness{
		api:   testutil.NewFakeAPI(),
		clock: clock,
		out:   &bytes.Buffer{},
		opts:  opts,
	}
}

func (h *harness) poll(ctx context.Context, runID string) error {
	return New(h.api, runID, h.out, h.opts).Poll(ctx)
}

func (h *harness) output() string {
	return xansi.Strip(h.out.String())
}

func (h *harness) pollDelays() []time.Duration {
	return h.clock.Delays()
}

const (
	ts1 = "2024-05-01T10:01:00Z"
	ts2 = "2024-05-01T10:02:00Z"
)

func TestPollEmitsPhasesInRunOrder(t *testing.T) {
	h := newHarness()
	h.api.ScriptRun(
		testutil.Run("run-1", types.RunStatusPending),
		testutil.Run("run-1", types.RunStatusPostPlanCompleted,
			types.TimestampPostPlanCompleted, ts2,
			types.TimestampPlanned, ts1),
		testutil.Run("run-1", types.RunStatusPlannedAndFinished,
			types.TimestampPostPlanCompleted, ts2,
			types.TimestampPlanned, ts1),
	)
	h.api.Plans["plan-run-1"] = &types.Plan{ID: "plan-run-1", Resources: types.ResourceCounts{Additions: 1, Changes: 2, Destructions: 3}}
	h.api.TaskStages["run-1"] = []*types.TaskStage{{
		ID:            "ts-1",
		Stage:         types.StagePostPlan,
		TaskResultIDs: []string{"tr-1"},
		TaskResults:   []*types.TaskResult{{ID: "tr-1", TaskName: "lint", Status: "passed", Message: "all good"}},
	}}

	if err := h.poll(context.Background(), "run-1"); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	out := h.output()
	want := []string{
		"Run is Pending\n",
		"Planned resource changes: +1 ~2 -3\n",
		"Post-plan Results:\nPASS lint: all good\n",
		"Run is Post plan completed\n",
		"Run is Planned and finished\n",
		"Run has completed.\n",
	}
	assertInOrder(t, out, want)
}

func TestPollEmitsEachPhaseOnce(t *testing.T) {
	h := newHarness()
	h.api.ScriptRun(
		testutil.Run("run-1", types.RunStatusPlanning),
		testutil.Run("run-1", types.RunStatusPlanned, types.TimestampPlanned, ts1),
		testutil.Run("run-1", types.RunStatusPlanned, types.TimestampPlanned, ts1),
		testutil.Run("run-1", types.RunStatusPolicyChecked, types.TimestampPlanned, ts1, types.TimestampPolicyChecked, ts2),
		testutil.Run("run-1", types.RunStatusPlannedAndFinished, types.TimestampPlanned, ts1, types.TimestampPolicyChecked, ts2),
	)
	h.api.Plans["plan-run-1"] = &types.Plan{ID: "plan-run-1"}
	h.api.PolicyChecks["run-1"] = []*types.PolicyCheck{{ID: "pc-1", Result: types.PolicyResult{Passed: 2}}}

	if err := h.poll(context.Background(), "run-1"); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if got := h.api.CallCount("GetPlan"); got != 1 {
		t.Fatalf("expected one plan fetch, got %d", got)
	}
	if got := h.api.CallCount("ListPolicyChecks"); got != 1 {
		t.Fatalf("expected one policy fetch, got %d", got)
	}
	out := h.output()
	if strings.Count(out, "Planned resource changes") != 1 || strings.Count(out, "Policies: 2 passed\n") != 1 {
		t.Fatalf("expected single phase lines, got:\n%s", out)
	}
}

func TestPollResetsIntervalOnStatusChange(t *testing.T) {
	h := newHarness()
	h.api.ScriptRun(
		testutil.Run("run-1", types.RunStatusPending),
		testutil.Run("run-1", types.RunStatusPending),
		testutil.Run("run-1", types.RunStatusPending),
		testutil.Run("run-1", types.RunStatusPending),
		testutil.Run("run-1", types.RunStatusPlanning),
		testutil.Run("run-1", types.RunStatusPlanning),
		testutil.Run("run-1", types.RunStatusErrored),
	)
	if err := h.poll(context.Background(), "run-1"); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	want := []time.Duration{
		10 * time.Millisecond,
		2 * time.Second,
		3 * time.Second,
		4500 * time.Millisecond,
		6750 * time.Millisecond,
		2 * time.Second,
		3 * time.Second,
	}
	assertDelays(t, h.pollDelays(), want)
}

func TestPollBacksOffToCeiling(t *testing.T) {
	h := newHarness()
	const idle = 12
	for i := 0; i <= idle; i++ {
		h.api.ScriptRun(testutil.Run("run-1", types.RunStatusPending))
	}
	h.api.ScriptRun(testutil.Run("run-1", types.RunStatusApplied))

	if err := h.poll(context.Background(), "run-1"); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	delays := h.pollDelays()
	if len(delays) != idle+2 {
		t.Fatalf("expected %d scheduled ticks, got %d: %v", idle+2, len(delays), delays)
	}
	for k := 0; k <= idle; k++ {
		if got, want := delays[k+1], backoff.RunPolicy.After(k); got != want {
			t.Fatalf("after %d idle ticks: got %s, want %s", k, got, want)
		}
	}
	if delays[len(delays)-1] != 30*time.Second {
		t.Fatalf("expected ceiling, got %s", delays[len(delays)-1])
	}
}

func TestPollStopsOnEveryTerminalStatus(t *testing.T) {
	for _, status := range []types.RunStatus{
		types.RunStatusErrored,
		types.RunStatusApplied,
		types.RunStatusDiscarded,
		types.RunStatusPlannedAndFinished,
		types.RunStatusPolicySoftFailed,
		types.RunStatusCanceled,
	} {
		t.Run(string(status), func(t *testing.T) {
			h := newHarness()
			h.api.ScriptRun(testutil.Run("run-1", status))
			if err := h.poll(context.Background(), "run-1"); err != nil {
				t.Fatalf("Poll: %v", err)
			}
			if got := h.api.CallCount("GetRun"); got != 1 {
				t.Fatalf("expected a single tick, got %d", got)
			}
			if len(h.pollDelays()) != 1 {
				t.Fatalf("expected no tick after completion, got delays %v", h.pollDelays())
			}
			if !strings.HasSuffix(h.output(), "Run has completed.\n") {
				t.Fatalf("expected completion notice, got:\n%s", h.output())
			}
		})
	}
}

type cancelOnWrite struct {
	buf    bytes.Buffer
	match  string
	cancel context.CancelFunc
}

func (w *cancelOnWrite) Write(p []byte) (int, error) {
	n, err := w.buf.Write(p)
	if strings.Contains(xansi.Strip(string(p)), w.match) {
		w.cancel()
	}
	return n, err
}

func TestPollCancellationBetweenPhases(t *testing.T) {
	h := newHarness()
	h.api.ScriptRun(testutil.Run("run-1", types.RunStatusPostPlanCompleted,
		types.TimestampPlanned, ts1,
		types.TimestampPostPlanCompleted, ts2))
	h.api.Plans["plan-run-1"] = &types.Plan{ID: "plan-run-1"}
	h.api.TaskStages["run-1"] = []*types.TaskStage{{Stage: types.StagePostPlan}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &cancelOnWrite{match: "Planned resource changes", cancel: cancel}

	done := make(chan error, 1)
	go func() { done <- New(h.api, "run-1", sink, h.opts).Poll(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected silent stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Poll did not return after cancellation")
	}

	out := xansi.Strip(sink.buf.String())
	if out != "Planned resource changes: +0 ~0 -0\n" {
		t.Fatalf("expected only the plan line, got:\n%q", out)
	}
	if h.api.CallCount("ListTaskStages") != 0 {
		t.Fatalf("post-plan phase must not be fetched after cancellation")
	}
}

func TestPollReturnsImmediatelyWhenAlreadyCancelled(t *testing.T) {
	h := newHarness()
	h.api.ScriptRun(testutil.Run("run-1", types.RunStatusPending))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.poll(ctx, "run-1"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if h.api.CallCount("GetRun") != 0 || h.out.Len() != 0 {
		t.Fatalf("expected no work after cancellation")
	}
}

func TestPendingRunBacksOffWithConfiguredMultiplier(t *testing.T) {
	cases := []struct {
		name   string
		policy backoff.Policy
		want   time.Duration
	}{
		{"workspace multiplier", backoff.Policy{Floor: 2 * time.Second, Ceiling: 30 * time.Second, Multiplier: 1.2}, 2400 * time.Millisecond},
		{"run multiplier", backoff.RunPolicy, 3 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			h.opts.Policy = tc.policy
			h.api.ScriptRun(
				testutil.Run("run-1", types.RunStatusPending),
				testutil.Run("run-1", types.RunStatusPending),
				testutil.Run("run-1", types.RunStatusCanceled),
			)
			if err := h.poll(context.Background(), "run-1"); err != nil {
				t.Fatalf("Poll: %v", err)
			}
			delays := h.pollDelays()
			if len(delays) < 3 || delays[1] != 2*time.Second || delays[2] != tc.want {
				t.Fatalf("unexpected delays %v", delays)
			}
			out := h.output()
			if strings.Count(out, "Run is Pending") != 1 || strings.Contains(out, "resource changes") {
				t.Fatalf("unexpected output:\n%s", out)
			}
		})
	}
}

func TestPlanningToErroredSkipsPlanDetail(t *testing.T) {
	h := newHarness()
	h.api.ScriptRun(
		testutil.Run("run-1", types.RunStatusPlanning),
		testutil.Run("run-1", types.RunStatusErrored),
	)
	if err := h.poll(context.Background(), "run-1"); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if h.api.CallCount("GetPlan") != 0 {
		t.Fatalf("plan must not be fetched without planned-at")
	}
	assertInOrder(t, h.output(), []string{"Run is Planning\n", "Run is Errored\n", "Run has completed.\n"})
}

func TestPollRetriesTransientFetchFailures(t *testing.T) {
	h := newHarness()
	h.api.ScriptRun(testutil.Run("run-1", types.RunStatusApplied))
	h.api.FailNext("GetRun", &client.APIError{StatusCode: http.StatusBadGateway, Message: "bad gateway"})
	h.api.FailNext("GetRun", &client.APIError{StatusCode: http.StatusServiceUnavailable, Message: "unavailable"})

	if err := h.poll(context.Background(), "run-1"); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if got := h.api.CallCount("GetRun"); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	assertDelays(t, h.pollDelays(), []time.Duration{10 * time.Millisecond, 250 * time.Millisecond, 500 * time.Millisecond})
}

func TestPollGivesUpAfterRetryBudget(t *testing.T) {
	h := newHarness()
	h.api.ScriptRun(testutil.Run("run-1", types.RunStatusApplied))
	for i := 0; i < 4; i++ {
		h.api.FailNext("GetRun", &client.APIError{StatusCode: http.StatusInternalServerError, Message: "boom"})
	}
	err := h.poll(context.Background(), "run-1")
	if !client.IsTransient(err) {
		t.Fatalf("expected transient error after retries, got %v", err)
	}
	if got := h.api.CallCount("GetRun"); got != 4 {
		t.Fatalf("expected 1 call plus 3 retries, got %d", got)
	}
}

func TestPollFailsFastOnNotFoundAndUnauthorized(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusUnauthorized} {
		h := newHarness()
		h.api.ScriptRun(testutil.Run("run-1", types.RunStatusApplied))
		h.api.FailNext("GetRun", &client.APIError{StatusCode: status, Message: "nope"})
		err := h.poll(context.Background(), "run-1")
		if client.StatusCode(err) != status {
			t.Fatalf("expected %d error, got %v", status, err)
		}
		if got := h.api.CallCount("GetRun"); got != 1 {
			t.Fatalf("status %d: expected no retry, got %d calls", status, got)
		}
	}
}

func TestPolicyOverrideFallbackReportsOnce(t *testing.T) {
	h := newHarness()
	h.opts.RunURL = func(_ context.Context, run *types.Run) (string, error) {
		return "https://app.example.com/app/acme/workspaces/app/runs/" + run.ID, nil
	}
	h.api.ScriptRun(
		testutil.Run("run-1", types.RunStatusPolicyOverride, types.TimestampPlanned, ts1),
		testutil.Run("run-1", types.RunStatusConfirmed, types.TimestampPlanned, ts1),
		testutil.Run("run-1", types.RunStatusApplied, types.TimestampPlanned, ts1),
	)
	h.api.Plans["plan-run-1"] = &types.Plan{ID: "plan-run-1"}
	h.api.PolicyChecks["run-1"] = []*types.PolicyCheck{
		{ID: "pc-1", Result: types.PolicyResult{Passed: 1, SoftFailed: 1}},
		{ID: "pc-2", Result: types.PolicyResult{Passed: 2, AdvisoryFailed: 1, HardFailed: 1}},
	}
	if err := h.poll(context.Background(), "run-1"); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if got := h.api.CallCount("ListPolicyChecks"); got != 1 {
		t.Fatalf("expected one policy fetch, got %d", got)
	}
	assertInOrder(t, h.output(), []string{
		"Planned resource changes",
		"Policies: 3 passed, 1 failed, 1 soft failed, 1 advisory failed\n",
		"Run is Policy override\n",
		"The Run is waiting for a policy override. Browse to https://app.example.com/app/acme/workspaces/app/runs/run-1 for more detailed information.\n",
		"Run is Confirmed\n",
	})
}

func TestPolicyFallbackDisabled(t *testing.T) {
	h := newHarness()
	h.opts.Phases.PolicyOverride = false
	h.api.ScriptRun(testutil.Run("run-1", types.RunStatusPolicySoftFailed))
	if err := h.poll(context.Background(), "run-1"); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if h.api.CallCount("ListPolicyChecks") != 0 {
		t.Fatalf("expected no policy fetch without the fallback")
	}
}

func TestConfirmationPrompt(t *testing.T) {
	h := newHarness()
	run := testutil.Run("run-1", types.RunStatusPlanned)
	run.Actions.IsConfirmable = true
	h.api.ScriptRun(run, testutil.Run("run-1", types.RunStatusDiscarded))
	if err := h.poll(context.Background(), "run-1"); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !strings.Contains(h.output(), "The Run is waiting for confirmation.\n") {
		t.Fatalf("expected confirmation prompt, got:\n%s", h.output())
	}

	h = newHarness()
	h.opts.Phases.Prompts = false
	h.api.ScriptRun(run, testutil.Run("run-1", types.RunStatusDiscarded))
	if err := h.poll(context.Background(), "run-1"); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if strings.Contains(h.output(), "waiting for confirmation") {
		t.Fatalf("expected prompts to be disabled")
	}
}

func TestCostEstimatePhaseIsOptional(t *testing.T) {
	newRun := func() *types.Run {
		run := testutil.Run("run-1", types.RunStatusPlannedAndFinished, types.TimestampCostEstimated, ts1)
		run.CostEstimateID = "ce-1"
		return run
	}
	h := newHarness()
	h.opts.Phases.CostEstimate = true
	h.api.ScriptRun(newRun())
	h.api.CostEstimates["ce-1"] = &types.CostEstimate{
		ID:                      "ce-1",
		Status:                  "finished",
		ProposedMonthlyCost:     "12.00",
		DeltaMonthlyCost:        "2.00",
		MatchedResourcesCount:   3,
		UnmatchedResourcesCount: 1,
	}
	if err := h.poll(context.Background(), "run-1"); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !strings.Contains(h.output(), "Cost estimate: $12.00/month proposed (+$2.00 change), 3 resources matched, 1 unmatched\n") {
		t.Fatalf("expected cost estimate line, got:\n%s", h.output())
	}

	h = newHarness()
	h.api.ScriptRun(newRun())
	if err := h.poll(context.Background(), "run-1"); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if h.api.CallCount("GetCostEstimate") != 0 {
		t.Fatalf("expected cost estimate phase to be off by default")
	}
}

func TestTaskStageFetchesMissingResults(t *testing.T) {
	h := newHarness()
	h.api.ScriptRun(testutil.Run("run-1", types.RunStatusErrored, types.TimestampPrePlanCompleted, ts1))
	h.api.TaskStages["run-1"] = []*types.TaskStage{
		{Stage: types.StagePostPlan},
		{
			Stage:         types.StagePrePlan,
			TaskResultIDs: []string{"tr-1", "tr-2"},
			TaskResults:   []*types.TaskResult{{ID: "tr-1", TaskName: "lint", Status: "passed"}},
		},
	}
	h.api.TaskResults["tr-2"] = &types.TaskResult{ID: "tr-2", TaskName: "scan", Status: "failed", Message: "bad\r\nthing", URL: "https://scan.example.com/1"}
	if err := h.poll(context.Background(), "run-1"); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if got := h.api.CallCount("GetTaskResult"); got != 1 {
		t.Fatalf("expected one task result fetch, got %d", got)
	}
	want := "Pre-plan Results:\nPASS lint\nFAIL scan: bad thing\nhttps://scan.example.com/1\n"
	if !strings.Contains(h.output(), want) {
		t.Fatalf("expected %q in:\n%s", want, h.output())
	}
}

func TestDisappearingTimestampDoesNotEmit(t *testing.T) {
	h := newHarness()
	h.api.ScriptRun(
		testutil.Run("run-1", types.RunStatusPlanned, types.TimestampPlanned, ts1),
		testutil.Run("run-1", types.RunStatusPlanning),
		testutil.Run("run-1", types.RunStatusErrored),
	)
	h.api.Plans["plan-run-1"] = &types.Plan{ID: "plan-run-1"}
	if err := h.poll(context.Background(), "run-1"); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if got := h.api.CallCount("GetPlan"); got != 1 {
		t.Fatalf("expected a single plan fetch, got %d", got)
	}
}

func TestPollPropagatesPhaseFetchError(t *testing.T) {
	h := newHarness()
	h.api.ScriptRun(testutil.Run("run-1", types.RunStatusPlanned, types.TimestampPlanned, ts1))
	err := h.poll(context.Background(), "run-1")
	if !client.IsNotFound(err) {
		t.Fatalf("expected missing plan to fail the session, got %v", err)
	}
	if strings.Contains(h.output(), "Run is") {
		t.Fatalf("no status line expected after a failed reconciliation")
	}
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
}

func assertInOrder(t *testing.T, out string, want []string) {
	t.Helper()
	pos := 0
	for _, part := range want {
		idx := strings.Index(out[pos:], part)
		if idx < 0 {
			t.Fatalf("expected %q after offset %d in:\n%s", part, pos, out)
		}
		pos += idx + len(part)
	}
}

func assertDelays(t *testing.T, got, want []time.Duration) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("delays = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delays = %v, want %v", got, want)
		}
	}
}
