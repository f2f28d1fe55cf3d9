package markdown

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tfcview/internal/client"
	"tfcview/internal/testutil"
	"tfcview/internal/types"
)

func documentFixture() *testutil.FakeAPI {
	api := testutil.NewFakeAPI()
	api.Workspaces["ws-1"] = testutil.Workspace("ws-1", "acme", "network")
	run := testutil.Run("run-1", types.RunStatusPlannedAndFinished)
	run.Message = "  Queued manually  "
	run.AutoApply = true
	run.TerraformVersion = "1.7.5"
	run.CostEstimateID = "ce-1"
	api.ScriptRun(run)
	api.Plans["plan-run-1"] = &types.Plan{
		ID:         "plan-run-1",
		Status:     "finished",
		LogReadURL: "https://logs.example.com/plan",
		Resources:  types.ResourceCounts{Additions: 3, Changes: 1, Destructions: 2},
		StartedAt:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	api.Applies["apply-run-1"] = &types.Apply{ID: "apply-run-1", Status: "unreachable"}
	api.CostEstimates["ce-1"] = &types.CostEstimate{
		ID:                      "ce-1",
		Status:                  "finished",
		MatchedResourcesCount:   4,
		UnmatchedResourcesCount: 2,
		ProposedMonthlyCost:     "1234.5",
		DeltaMonthlyCost:        "12",
	}
	api.TaskStages["run-1"] = []*types.TaskStage{
		{
			Stage:     types.StagePrePlan,
			Status:    "passed",
			UpdatedAt: time.Date(2024, 5, 1, 9, 59, 0, 0, time.UTC),
			TaskResults: []*types.TaskResult{
				{TaskName: "lint", Status: "passed", Message: "All good", URL: "https://tasks.example.com/1"},
			},
		},
		{Stage: types.StagePostPlan, Status: "running"},
	}
	api.PolicyChecks["run-1"] = []*types.PolicyCheck{
		{ID: "pc-1", Result: types.PolicyResult{Passed: 2, SoftFailed: 1}},
	}
	return api
}

func TestRunDocumentSections(t *testing.T) {
	api := documentFixture()
	doc, err := RunDocument(context.Background(), api, "run-1", DocumentOptions{
		ConsoleURL: "https://app.terraform.io",
		Location:   time.UTC,
	})
	if err != nil {
		t.Fatalf("RunDocument: %v", err)
	}
	for _, want := range []string{
		"# Run details\n\nQueued manually\n\n",
		"| Id | [run-1](https://app.terraform.io/app/acme/workspaces/network/runs/run-1) |",
		"| Auto Apply | Yes |",
		"| Will Destroy | No |",
		"| Terraform Version | 1.7.5 |",
		"| Status | Planned and finished |",
		"| Workspace | network |",
		"## Pre plan tasks",
		"The task stage Passed at 2024-05-01 09:59:00 UTC",
		"| lint | passed | All good. [Link](https://tasks.example.com/1) |",
		"## Plan\n\nThe log file for the plan can be found at this [link](https://logs.example.com/plan).",
		"Resources: **3** to add, **1** to change, **2** to delete",
		"Started at 2024-05-01 10:00:00 UTC and finished at Unknown",
		"## Post plan tasks\n\nTask stage is not available. It is currently Running.",
		"Estimated **4** of **6** resources, for a cost of **$1,234.50** per month.",
		"A change of **+$12.00** per month.",
		"| 2 | 0 | 1 | 0 |",
		"\n---\n",
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("expected %q in document:\n%s", want, doc)
		}
	}
	if strings.Contains(doc, "## Apply") {
		t.Fatalf("expected unreachable apply to be skipped:\n%s", doc)
	}
	if strings.Contains(doc, "## Pre apply tasks") {
		t.Fatalf("expected missing stage to be skipped:\n%s", doc)
	}
	if api.CallCount("ListTaskStages") != 1 {
		t.Fatalf("expected one task stage listing, calls=%v", api.Calls())
	}
	calls := api.Calls()
	if calls[0] != "GetRun(run-1,"+client.IncludePlan+","+client.IncludeApply+","+client.IncludeCostEstimate+")" {
		t.Fatalf("unexpected first call %q", calls[0])
	}
}

func TestRunDocumentSkipsFailedSections(t *testing.T) {
	api := documentFixture()
	api.FailNext("GetPlan", errors.New("boom"))
	api.FailNext("ListTaskStages", errors.New("boom"))
	doc, err := RunDocument(context.Background(), api, "run-1", DocumentOptions{Location: time.UTC})
	if err != nil {
		t.Fatalf("RunDocument: %v", err)
	}
	if strings.Contains(doc, "## Plan") || strings.Contains(doc, "tasks") {
		t.Fatalf("expected plan and task sections to be skipped:\n%s", doc)
	}
	if !strings.Contains(doc, "| Id | run-1 |") {
		t.Fatalf("expected plain id without console url:\n%s", doc)
	}
}

func TestRunDocumentUnfinishedApply(t *testing.T) {
	api := documentFixture()
	api.Applies["apply-run-1"] = &types.Apply{ID: "apply-run-1", Status: "running"}
	doc, err := RunDocument(context.Background(), api, "run-1", DocumentOptions{Location: time.UTC})
	if err != nil {
		t.Fatalf("RunDocument: %v", err)
	}
	if !strings.HasSuffix(doc, "## Apply\n\nApply is not available. It is currently Running.\n") {
		t.Fatalf("unexpected apply section:\n%s", doc)
	}
}

func TestRunDocumentFinishedApply(t *testing.T) {
	api := documentFixture()
	api.Applies["apply-run-1"] = &types.Apply{
		ID:               "apply-run-1",
		Status:           "finished",
		Resources:        types.ResourceCounts{Additions: 1},
		StatusTimestamps: map[string]string{"started-at": "2024-05-01T10:05:00Z"},
	}
	doc, err := RunDocument(context.Background(), api, "run-1", DocumentOptions{Location: time.UTC})
	if err != nil {
		t.Fatalf("RunDocument: %v", err)
	}
	for _, want := range []string{
		"Resources: 1 to add, 0 to change, 0 to delete",
		"Started: 2024-05-01 10:05:00 UTC",
		"Finished: Unknown",
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("expected %q in document:\n%s", want, doc)
		}
	}
}

func TestRunDocumentMissingRun(t *testing.T) {
	api := testutil.NewFakeAPI()
	_, err := RunDocument(context.Background(), api, "run-404", DocumentOptions{})
	if !client.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCurrency(t *testing.T) {
	cases := []struct {
		raw    string
		signed bool
		want   string
	}{
		{"0", false, "$0.00"},
		{"1234567.891", false, "$1,234,567.89"},
		{"-42.5", true, "-$42.50"},
		{"3", true, "+$3.00"},
		{"bogus", false, "$0.00"},
	}
	for _, tc := range cases {
		if got := currency(tc.raw, tc.signed); got != tc.want {
			t.Fatalf("currency(%q, %v) = %q, want %q", tc.raw, tc.signed, got, tc.want)
		}
	}
}
