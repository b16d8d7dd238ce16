// Package report renders score computations for humans: plain-text tables
// for terminals, markdown for review docs, CSV for spreadsheets.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ariafx/session-validator/internal/scoring"
)

type Report struct {
	GeneratedAt time.Time
	Source      string
	Policy      scoring.Policy
	Result      scoring.Result
}

// Build assembles a report for a computed result. Source names where the
// parameters came from (usually the parameter file path).
func Build(source string, policy scoring.Policy, res scoring.Result) Report {
	return Report{
		GeneratedAt: time.Now().UTC(),
		Source:      source,
		Policy:      policy,
		Result:      res,
	}
}

func verdictLabel(v scoring.Verdict) string {
	return strings.ToUpper(string(v))
}

// RenderText renders an aligned plain-text table.
func (r Report) RenderText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Overfitting Report: %s\n", r.Source)
	fmt.Fprintf(&b, "Generated At (UTC): %s\n\n", r.GeneratedAt.Format(time.RFC3339))

	fmt.Fprintf(&b, "%-10s %12s %12s %12s\n", "SESSION", "CONF_DEV", "RR_DEV", "COMBINED")
	for _, d := range r.Result.Deviations {
		fmt.Fprintf(&b, "%-10s %12.4f %12.4f %12.4f\n", d.Session, d.Confidence, d.RiskReward, d.Combined)
	}

	fmt.Fprintf(&b, "\nMean Deviation: %.4f\n", r.Result.MeanDeviation)
	fmt.Fprintf(&b, "Max Deviation:  %.4f\n", r.Result.MaxDeviation)
	fmt.Fprintf(&b, "Std Deviation:  %.4f\n", r.Result.StdDeviation)
	fmt.Fprintf(&b, "Raw Score:      %.4f\n", r.Result.RawScore)
	fmt.Fprintf(&b, "Score:          %.4f\n", r.Result.Score)
	fmt.Fprintf(&b, "Verdict:        %s (accept below %.2f)\n", verdictLabel(r.Result.Verdict), r.Policy.WarnThreshold)
	return b.String()
}

// RenderMarkdown renders the report as a markdown document.
func (r Report) RenderMarkdown() string {
	var b strings.Builder
	b.WriteString("# Session Parameter Overfitting Report\n\n")
	fmt.Fprintf(&b, "- Generated At (UTC): %s\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Source: %s\n", r.Source)
	fmt.Fprintf(&b, "- Score: %.4f\n", r.Result.Score)
	fmt.Fprintf(&b, "- Verdict: %s\n", verdictLabel(r.Result.Verdict))
	fmt.Fprintf(&b, "- Accept Threshold: %.2f\n\n", r.Policy.WarnThreshold)

	b.WriteString("## Per-Session Deviation\n")
	b.WriteString("| Session | Confidence | Risk/Reward | Combined |\n")
	b.WriteString("|---------|-----------:|------------:|---------:|\n")
	for _, d := range r.Result.Deviations {
		fmt.Fprintf(&b, "| %s | %.4f | %.4f | %.4f |\n", d.Session, d.Confidence, d.RiskReward, d.Combined)
	}

	b.WriteString("\n## Aggregates\n")
	fmt.Fprintf(&b, "- Mean Deviation: %.4f\n", r.Result.MeanDeviation)
	fmt.Fprintf(&b, "- Max Deviation: %.4f\n", r.Result.MaxDeviation)
	fmt.Fprintf(&b, "- Std Deviation: %.4f\n", r.Result.StdDeviation)
	fmt.Fprintf(&b, "- Raw Score: %.4f\n", r.Result.RawScore)
	return b.String()
}

// WriteCSV writes one record per session followed by a summary record.
func (r Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := []string{
		"generated_at",
		"source",
		"record_type",
		"session",
		"confidence_deviation",
		"risk_reward_deviation",
		"combined_deviation",
		"score",
		"verdict",
		"accepted",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	generatedAt := r.GeneratedAt.Format(time.RFC3339)
	for _, d := range r.Result.Deviations {
		record := []string{
			generatedAt,
			r.Source,
			"session",
			string(d.Session),
			fmt.Sprintf("%.6f", d.Confidence),
			fmt.Sprintf("%.6f", d.RiskReward),
			fmt.Sprintf("%.6f", d.Combined),
			"",
			"",
			"",
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	summary := []string{
		generatedAt,
		r.Source,
		"summary",
		"",
		"",
		"",
		"",
		fmt.Sprintf("%.6f", r.Result.Score),
		string(r.Result.Verdict),
		strconv.FormatBool(r.Result.Accepted),
	}
	if err := cw.Write(summary); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
