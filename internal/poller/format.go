package poller

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"tfcview/internal/types"
)

var (
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	addStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	changeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	destroyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	passStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	failStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

func statusLine(status types.RunStatus) string {
	return "Run is " + highlightStyle.Render(types.PrettyStatus(string(status))) + "\n"
}

func completedLine() string {
	return "Run has completed.\n"
}

func promptLine(text, url string) string {
	if url == "" {
		return text + "\n"
	}
	return text + " Browse to " + url + " for more detailed information.\n"
}

func resourceLine(label string, counts types.ResourceCounts) string {
	return fmt.Sprintf("%s %s %s %s\n",
		label,
		addStyle.Render(fmt.Sprintf("+%d", counts.Additions)),
		changeStyle.Render(fmt.Sprintf("~%d", counts.Changes)),
		destroyStyle.Render(fmt.Sprintf("-%d", counts.Destructions)),
	)
}

func policyLine(totals types.PolicyResult) string {
	var b strings.Builder
	b.WriteString("Policies: ")
	b.WriteString(highlightStyle.Render(fmt.Sprint(totals.Passed)))
	b.WriteString(" passed")
	for _, part := range []struct {
		count int
		label string
	}{
		{totals.HardFailed, "failed"},
		{totals.SoftFailed, "soft failed"},
		{totals.AdvisoryFailed, "advisory failed"},
	} {
		if part.count > 0 {
			b.WriteString(", ")
			b.WriteString(highlightStyle.Render(fmt.Sprint(part.count)))
			b.WriteString(" " + part.label)
		}
	}
	b.WriteString("\n")
	return b.String()
}

func costEstimateLine(estimate *types.CostEstimate) string {
	if estimate == nil {
		return ""
	}
	if estimate.Status == "errored" {
		message := estimate.ErrorMessage
		if message == "" {
			message = "unknown error"
		}
		return "Cost estimate errored: " + sanitizeMessage(message) + "\n"
	}
	return fmt.Sprintf("Cost estimate: %s/month proposed (%s change), %d resources matched, %d unmatched\n",
		highlightStyle.Render("$"+orZero(estimate.ProposedMonthlyCost)),
		highlightStyle.Render(signedCost(estimate.DeltaMonthlyCost)),
		estimate.MatchedResourcesCount,
		estimate.UnmatchedResourcesCount,
	)
}

func taskStageBlock(stage string, results []*types.TaskResult) string {
	var b strings.Builder
	b.WriteString(StageName(stage))
	b.WriteString(" Results:\n")
	for _, result := range results {
		if result == nil {
			continue
		}
		switch result.Status {
		case "passed":
			b.WriteString(passStyle.Render("PASS"))
		case "failed":
			b.WriteString(failStyle.Render("FAIL"))
		default:
			b.WriteString(highlightStyle.Render(types.PrettyStatus(result.Status)))
		}
		b.WriteString(" ")
		b.WriteString(result.TaskName)
		var detail strings.Builder
		if message := sanitizeMessage(result.Message); message != "" {
			detail.WriteString(message + "\n")
		}
		if result.URL != "" {
			detail.WriteString(result.URL + "\n")
		}
		if detail.Len() > 0 {
			b.WriteString(": ")
			b.WriteString(detail.String())
		} else {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// StageName turns "post_plan" into "Post-plan".
func StageName(stage string) string {
	if stage == "" {
		return ""
	}
	stage = strings.ReplaceAll(stage, "_", "-")
	return strings.ToUpper(stage[:1]) + stage[1:]
}

func sanitizeMessage(value string) string {
	value = strings.ReplaceAll(value, "\r", "")
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.TrimSpace(value)
}

func orZero(value string) string {
	if strings.TrimSpace(value) == "" {
		return "0.00"
	}
	return value
}

func signedCost(delta string) string {
	delta = orZero(delta)
	if strings.HasPrefix(delta, "-") {
		return "-$" + strings.TrimPrefix(delta, "-")
	}
	return "+$" + delta
}
