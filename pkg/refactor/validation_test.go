package refactor

import (
	"io"
	"log/slog"
	"testing"

	refactorTypes "github.com/mamaar/methodobject/pkg/types"
)

func newTestValidator() *Validator {
	return NewValidator(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestValidator_ValidatePlan_NilPlan(t *testing.T) {
	err := newTestValidator().ValidatePlan(nil)
	if err == nil {
		t.Fatal("Expected error with nil plan")
	}

	// Check that it's a RefactorError
	if refErr, ok := err.(*refactorTypes.RefactorError); ok {
		if refErr.Type != refactorTypes.InvalidOperation {
			t.Errorf("Expected InvalidOperation error, got %v", refErr.Type)
		}
	} else {
		t.Error("Expected RefactorError")
	}
}

func TestValidator_ValidatePlan_EmptyPlan(t *testing.T) {
	plan := &refactorTypes.RefactoringPlan{
		Operations:    make([]refactorTypes.Operation, 0),
		Changes:       make([]refactorTypes.Change, 0),
		AffectedFiles: make([]string, 0),
		Reversible:    true,
	}

	if err := newTestValidator().ValidatePlan(plan); err != nil {
		t.Errorf("Expected no error with empty plan, got %v", err)
	}

	// Check that impact analysis was created
	if plan.Impact == nil {
		t.Error("Expected Impact to be created")
	}
}

func TestValidator_ValidatePlan(t *testing.T) {
	tests := []struct {
		name    string
		plan    *refactorTypes.RefactoringPlan
		wantErr bool
	}{
		{
			name: "valid object",
			plan: &refactorTypes.RefactoringPlan{
				Operations: []refactorTypes.Operation{&ExtractMethodObjectOperation{
					Request: refactorTypes.ExtractMethodObjectRequest{ObjectName: "Worker"},
				}},
				Changes: []refactorTypes.Change{{File: "w.go", NewText: "package w\n\ntype Worker struct{}\n"}},
			},
		},
		{
			name: "invalid method name",
			plan: &refactorTypes.RefactoringPlan{
				Operations: []refactorTypes.Operation{&ExtractMethodObjectOperation{
					Request: refactorTypes.ExtractMethodObjectRequest{ObjectName: "Worker", MethodName: "go"},
				}},
			},
			wantErr: true,
		},
		{
			name: "new file does not parse",
			plan: &refactorTypes.RefactoringPlan{
				Changes: []refactorTypes.Change{{File: "w.go", NewText: "package w\n\nfunc {\n"}},
			},
			wantErr: true,
		},
		{
			name: "overlapping changes",
			plan: &refactorTypes.RefactoringPlan{
				Changes: []refactorTypes.Change{
					{File: "a.go", Start: 10, End: 20, NewText: "x"},
					{File: "a.go", Start: 15, End: 25, NewText: "y"},
				},
			},
			wantErr: true,
		},
		{
			name: "changes in different files",
			plan: &refactorTypes.RefactoringPlan{
				Changes: []refactorTypes.Change{
					{File: "a.go", Start: 10, End: 20, NewText: "x"},
					{File: "b.go", Start: 10, End: 20, NewText: "y"},
				},
			},
		},
		{
			name: "negative bounds",
			plan: &refactorTypes.RefactoringPlan{
				Changes: []refactorTypes.Change{{File: "a.go", Start: -1, End: 2}},
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newTestValidator().ValidatePlan(tt.plan)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidatePlan() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if _, ok := err.(*refactorTypes.ValidationError); !ok {
					t.Errorf("Expected ValidationError, got %T", err)
				}
			}
		})
	}
}

func TestValidator_AllowBreaking(t *testing.T) {
	plan := &refactorTypes.RefactoringPlan{
		Changes: []refactorTypes.Change{{File: "w.go", NewText: "package w\n\nfunc {\n"}},
	}
	config := DefaultConfig()
	config.AllowBreaking = true

	if err := newTestValidator().ValidatePlanWithConfig(plan, config); err != nil {
		t.Fatalf("Expected AllowBreaking to accept the plan, got %v", err)
	}
	if len(plan.Impact.PotentialIssues) != 1 {
		t.Fatalf("Expected the syntax issue to be recorded, got %v", plan.Impact.PotentialIssues)
	}
	if plan.Impact.PotentialIssues[0].Severity != refactorTypes.Error {
		t.Error("Expected an error severity issue")
	}
}
