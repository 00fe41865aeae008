package refactor

import (
	"fmt"
	"go/parser"
	"go/token"
	"log/slog"
	"strings"

	refactorTypes "github.com/mamaar/methodobject/pkg/types"
)

// Validator validates refactoring plans for safety
type Validator struct {
	logger *slog.Logger
}

func NewValidator(logger *slog.Logger) *Validator {
	return &Validator{
		logger: logger,
	}
}

// ValidatePlan validates a complete refactoring plan
func (v *Validator) ValidatePlan(plan *refactorTypes.RefactoringPlan) error {
	return v.ValidatePlanWithConfig(plan, nil)
}

// ValidatePlanWithConfig validates a complete refactoring plan with configuration options
func (v *Validator) ValidatePlanWithConfig(plan *refactorTypes.RefactoringPlan, config *EngineConfig) error {
	if plan == nil {
		return &refactorTypes.RefactorError{
			Type:    refactorTypes.InvalidOperation,
			Message: "refactoring plan is nil",
		}
	}

	// Use default config if none provided
	if config == nil {
		config = DefaultConfig()
	}

	var allIssues []refactorTypes.Issue

	// Validate each operation
	for i, operation := range plan.Operations {
		for _, issue := range v.validateOperation(operation) {
			issue.Description = fmt.Sprintf("Operation %d: %s", i+1, issue.Description)
			allIssues = append(allIssues, issue)
		}
	}

	// Validate changes for conflicts and consistency
	allIssues = append(allIssues, v.validateChanges(plan.Changes)...)

	// Check that created files parse
	allIssues = append(allIssues, v.validateSyntax(plan)...)

	// Return validation error if any critical issues found, unless AllowBreaking is enabled
	criticalIssues := v.filterCriticalIssues(allIssues)
	if len(criticalIssues) > 0 && !config.AllowBreaking {
		v.logger.Debug("plan rejected", "id", plan.ID, "issues", len(criticalIssues))
		return &refactorTypes.ValidationError{
			Issues: criticalIssues,
		}
	}

	// Update plan with all issues (including warnings)
	if plan.Impact == nil {
		plan.Impact = &refactorTypes.ImpactAnalysis{}
	}
	plan.Impact.PotentialIssues = append(plan.Impact.PotentialIssues, allIssues...)
	return nil
}

func (v *Validator) validateOperation(operation refactorTypes.Operation) []refactorTypes.Issue {
	var issues []refactorTypes.Issue

	switch op := operation.(type) {
	case *ExtractMethodObjectOperation:
		for _, name := range []string{op.Request.ObjectName, op.methodName()} {
			if !v.isValidGoIdentifier(name) {
				issues = append(issues, refactorTypes.Issue{
					Type:        refactorTypes.IssueCompilationError,
					Description: fmt.Sprintf("invalid identifier: %s", name),
					File:        op.Request.SourceFile,
					Line:        op.Request.StartLine,
					Severity:    refactorTypes.Error,
				})
			}
		}
	default:
		issues = append(issues, refactorTypes.Issue{
			Type:        refactorTypes.IssueCompilationError,
			Description: fmt.Sprintf("unsupported operation type: %T", operation),
			Severity:    refactorTypes.Warning,
		})
	}

	return issues
}

func (v *Validator) validateChanges(changes []refactorTypes.Change) []refactorTypes.Issue {
	var issues []refactorTypes.Issue

	// Group changes by file
	fileChanges := make(map[string][]refactorTypes.Change)
	for _, change := range changes {
		fileChanges[change.File] = append(fileChanges[change.File], change)
	}

	// Check for overlapping changes within each file
	for fileName, changes := range fileChanges {
		for i, change1 := range changes {
			for _, change2 := range changes[i+1:] {
				if changesOverlap(change1, change2) {
					issues = append(issues, refactorTypes.Issue{
						Type:        refactorTypes.IssueNameConflict,
						Description: fmt.Sprintf("overlapping changes detected in file %s", fileName),
						File:        fileName,
						Severity:    refactorTypes.Error,
					})
				}
			}
		}
	}

	for _, change := range changes {
		if change.Start < 0 || change.End < change.Start {
			issues = append(issues, refactorTypes.Issue{
				Type:        refactorTypes.IssueCompilationError,
				Description: fmt.Sprintf("invalid change bounds: start=%d, end=%d", change.Start, change.End),
				File:        change.File,
				Severity:    refactorTypes.Error,
			})
		}
	}

	return issues
}

// validateSyntax parses the content of files a plan creates. Edits of
// existing files are statement fragments and are checked when applied.
func (v *Validator) validateSyntax(plan *refactorTypes.RefactoringPlan) []refactorTypes.Issue {
	var issues []refactorTypes.Issue
	for _, change := range plan.Changes {
		if change.Start != 0 || change.End != 0 || !strings.HasPrefix(strings.TrimSpace(change.NewText), "package ") {
			continue
		}
		if _, err := parser.ParseFile(token.NewFileSet(), change.File, change.NewText, parser.ParseComments); err != nil {
			issues = append(issues, refactorTypes.Issue{
				Type:        refactorTypes.IssueCompilationError,
				Description: fmt.Sprintf("syntax error in new file: %v", err),
				File:        change.File,
				Severity:    refactorTypes.Error,
			})
		}
	}
	return issues
}

func (v *Validator) filterCriticalIssues(issues []refactorTypes.Issue) []refactorTypes.Issue {
	var critical []refactorTypes.Issue
	for _, issue := range issues {
		if issue.Severity == refactorTypes.Error {
			critical = append(critical, issue)
		}
	}
	return critical
}

func (v *Validator) isValidGoIdentifier(name string) bool {
	return token.IsIdentifier(name)
}
