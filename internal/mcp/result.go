package mcp

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mamaar/methodobject/pkg/types"
)

// PlanResult is the structured output of extract_method_object.
type PlanResult struct {
	ID            string               `json:"id"`
	Applied       bool                 `json:"applied"`
	AffectedFiles []string             `json:"affected_files"`
	ChangeCount   int                  `json:"change_count"`
	Bridges       []types.BridgeRecord `json:"bridges,omitempty"`
	Issues        []string             `json:"issues,omitempty"`
	Diff          string               `json:"diff,omitempty"`
}

func newPlanResult(plan *types.RefactoringPlan) *PlanResult {
	res := &PlanResult{
		ID:            plan.ID,
		AffectedFiles: plan.AffectedFiles,
		ChangeCount:   len(plan.Changes),
		Bridges:       plan.Bridges,
	}
	if plan.Impact != nil {
		for _, issue := range plan.Impact.PotentialIssues {
			res.Issues = append(res.Issues, issue.Severity.String()+": "+issue.Description)
		}
	}
	return res
}

// textResult marshals v to JSON and wraps it in a single text block.
func textResult(v any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errResult(err)
	}
	return mcp.NewToolResultText(string(b))
}

// errResult returns a CallToolResult that signals an error.
func errResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(err.Error())
}
