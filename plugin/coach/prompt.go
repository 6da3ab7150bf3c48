package coach

import (
	"fmt"
	"strings"

	"github.com/hrygo/habitsense/analytics"
	"github.com/hrygo/habitsense/analytics/strategy"
)

// BuildPrompt renders the report as the user message of a coach request.
func BuildPrompt(report *analytics.Report) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Date: %s\n", report.Today)
	fmt.Fprintf(&sb, "Summary: %s\n", report.Summary())
	fmt.Fprintf(&sb, "Global risk: %s. %s\n", report.Risk.Global.Level, report.Risk.Global.Message)

	if critical := report.Risk.Critical(); len(critical) > 0 {
		sb.WriteString("\nCritical habits:\n")
		for _, h := range critical {
			fmt.Fprintf(&sb, "- %s: %s\n", h.Name, h.Message)
		}
	}

	if victories := report.Strategy.Victories; len(victories) > 0 {
		sb.WriteString("\nVictories:\n")
		for _, v := range victories {
			fmt.Fprintf(&sb, "- %s: %s\n", v.Title, v.Description)
		}
	}

	if challenges := report.Strategy.Challenges; len(challenges) > 0 {
		sb.WriteString("\nChallenges:\n")
		for _, c := range challenges {
			fmt.Fprintf(&sb, "- %s: %s (suggestion: %s)\n", c.Title, c.Description, c.Suggestion)
		}
	}

	var risky []strategy.Prediction
	for _, p := range report.Strategy.Predictions {
		if p.Risk != strategy.PredictionSafe {
			risky = append(risky, p)
		}
	}
	if len(risky) > 0 {
		sb.WriteString("\nForecast:\n")
		for _, p := range risky {
			fmt.Fprintf(&sb, "- %s (%s): %s, %s\n", p.Date, p.Weekday, p.Risk, p.Reason)
		}
	}

	return sb.String()
}
