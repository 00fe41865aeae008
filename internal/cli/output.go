package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/mamaar/methodobject/pkg/types"
)

// planOutput is the machine-readable form of an extraction.
type planOutput struct {
	ID      string               `json:"id" yaml:"id"`
	Applied bool                 `json:"applied" yaml:"applied"`
	Files   []string             `json:"files" yaml:"files"`
	Bridges []types.BridgeRecord `json:"bridges,omitempty" yaml:"bridges,omitempty"`
	Issues  []issueOutput        `json:"issues,omitempty" yaml:"issues,omitempty"`
	Diff    string               `json:"diff,omitempty" yaml:"diff,omitempty"`
}

type issueOutput struct {
	Severity    string `json:"severity" yaml:"severity"`
	Description string `json:"description" yaml:"description"`
	File        string `json:"file,omitempty" yaml:"file,omitempty"`
	Line        int    `json:"line,omitempty" yaml:"line,omitempty"`
}

func newPlanOutput(plan *types.RefactoringPlan, applied bool, diff string) *planOutput {
	out := &planOutput{
		ID:      plan.ID,
		Applied: applied,
		Files:   plan.AffectedFiles,
		Bridges: plan.Bridges,
		Diff:    diff,
	}
	if plan.Impact != nil {
		for _, issue := range plan.Impact.PotentialIssues {
			out.Issues = append(out.Issues, issueOutput{
				Severity:    issue.Severity.String(),
				Description: issue.Description,
				File:        issue.File,
				Line:        issue.Line,
			})
		}
	}
	return out
}

// encode writes v as JSON or YAML. It reports false for the text format,
// which every command renders itself.
func encode(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	}
	return false, nil
}

func writePlanText(w io.Writer, out *planOutput) {
	if out.Diff != "" {
		fmt.Fprint(w, out.Diff)
	}
	if out.Applied {
		fmt.Fprintf(w, "Applied plan %s:\n", out.ID)
	} else {
		fmt.Fprintf(w, "Plan %s (not applied):\n", out.ID)
	}
	for _, f := range out.Files {
		fmt.Fprintf(w, "  %s\n", f)
	}
	if len(out.Bridges) > 0 {
		fmt.Fprintln(w, "\nBridges:")
		writeRecords(w, out.Bridges)
	}
	if len(out.Issues) > 0 {
		fmt.Fprintln(w, "\nIssues:")
		for _, issue := range out.Issues {
			fmt.Fprintf(w, "  %-7s %s\n", issue.Severity, issue.Description)
			if issue.File != "" {
				fmt.Fprintf(w, "          at %s:%d\n", issue.File, issue.Line)
			}
		}
	}
}

func writeRecords(w io.Writer, records []types.BridgeRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range records {
		outcome := r.Bridge
		switch {
		case r.Skipped != "":
			outcome = "skipped: " + r.Skipped
		case r.Manual:
			outcome = "manual"
		}
		fmt.Fprintf(tw, "  %s:%d:%d\t%s\t%s\t%s\n", r.File, r.Line, r.Column, r.Kind, r.Member, outcome)
	}
	_ = tw.Flush()
}
