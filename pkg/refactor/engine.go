package refactor

import (
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/mamaar/methodobject/pkg/accessbridge"
	"github.com/mamaar/methodobject/pkg/analysis"
	"github.com/mamaar/methodobject/pkg/types"
)

// RefactorEngine is the main interface for refactoring operations
type RefactorEngine interface {
	// Workspace management
	LoadWorkspace(path string) (*types.Workspace, error)
	Parser() *analysis.GoParser

	// Refactoring operations
	ExtractMethodObject(ws *types.Workspace, req types.ExtractMethodObjectRequest) (*types.RefactoringPlan, error)
	BridgeReport(ws *types.Workspace, req types.ExtractMethodObjectRequest) ([]types.BridgeRecord, error)

	// Analysis
	ValidateRefactoring(plan *types.RefactoringPlan) error

	// Execution
	ExecutePlan(plan *types.RefactoringPlan) error
	PreviewPlan(plan *types.RefactoringPlan) (string, error)
}

// DefaultEngine implements the RefactorEngine interface
type DefaultEngine struct {
	parser     *analysis.GoParser
	validator  *Validator
	serializer *Serializer
	config     *EngineConfig
	logger     *slog.Logger

	// the parser's workspace importer is not safe for concurrent checks
	mu sync.Mutex
}

// EngineConfig contains configuration options for the refactoring engine
type EngineConfig struct {
	SkipCompilation bool
	AllowBreaking   bool
	// Backup keeps a copy of every file a plan rewrites.
	Backup bool
	// Naming overrides the bridge name prefixes; empty prefixes keep the
	// defaults.
	Naming accessbridge.Naming
	// Receiver is the receiver name of the generated method and of instance
	// bridges.
	Receiver string
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() *EngineConfig {
	return &EngineConfig{
		Naming:   accessbridge.DefaultNaming(),
		Receiver: "o",
	}
}

func CreateEngine(logger *slog.Logger) RefactorEngine {
	return CreateEngineWithConfig(DefaultConfig(), logger)
}

func CreateEngineWithConfig(config *EngineConfig, logger *slog.Logger) RefactorEngine {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DefaultEngine{
		parser:     analysis.NewParser(logger),
		validator:  NewValidator(logger),
		serializer: NewSerializer(logger),
		config:     config,
		logger:     logger,
	}
}

// LoadWorkspace loads and parses a complete workspace
func (e *DefaultEngine) LoadWorkspace(path string) (*types.Workspace, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	workspace, err := e.parser.ParseWorkspace(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse workspace: %w", err)
	}

	if cycles := analysis.NewDependencyAnalyzer(workspace, e.logger).DetectCycles(); len(cycles) > 0 {
		e.logger.Warn("workspace already has import cycles", "count", len(cycles))
	}
	return workspace, nil
}

// Parser returns the parser holding the engine's file set, for keeping a
// loaded workspace in sync with the disk.
func (e *DefaultEngine) Parser() *analysis.GoParser {
	return e.parser
}

func (e *DefaultEngine) operation(req types.ExtractMethodObjectRequest) *ExtractMethodObjectOperation {
	return &ExtractMethodObjectOperation{
		Request:  req,
		parser:   e.parser,
		naming:   e.config.Naming,
		receiver: e.config.Receiver,
		logger:   e.logger,
	}
}

// ExtractMethodObject plans moving a run of statements into a method object
func (e *DefaultEngine) ExtractMethodObject(ws *types.Workspace, req types.ExtractMethodObjectRequest) (*types.RefactoringPlan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	operation := e.operation(req)

	// Validate the operation
	if err := operation.Validate(ws); err != nil {
		return nil, fmt.Errorf("extract method object validation failed: %w", err)
	}

	// Execute the operation to generate the plan
	plan, err := operation.Execute(ws)
	if err != nil {
		return nil, fmt.Errorf("failed to generate extract method object plan: %w", err)
	}

	plan.ID = uuid.NewString()
	plan.Operations = []types.Operation{operation}
	e.logger.Debug("plan created", "id", plan.ID, "changes", len(plan.Changes), "bridges", len(plan.Bridges))
	return plan, nil
}

// BridgeReport lists the references an extraction would bridge or skip
// without generating anything.
func (e *DefaultEngine) BridgeReport(ws *types.Workspace, req types.ExtractMethodObjectRequest) ([]types.BridgeRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	operation := e.operation(req)
	if err := operation.Validate(ws); err != nil {
		return nil, fmt.Errorf("bridge report validation failed: %w", err)
	}
	records, err := operation.Report(ws)
	if err != nil {
		return nil, fmt.Errorf("failed to plan bridges: %w", err)
	}
	return records, nil
}

func (e *DefaultEngine) ValidateRefactoring(plan *types.RefactoringPlan) error {
	return e.validator.ValidatePlanWithConfig(plan, e.config)
}

// ExecutePlan applies the changes of a validated plan
func (e *DefaultEngine) ExecutePlan(plan *types.RefactoringPlan) error {
	// Final validation before execution
	if err := e.ValidateRefactoring(plan); err != nil {
		return err // Return the validation error directly to preserve its type
	}

	// Check for critical issues
	if !e.config.AllowBreaking {
		for _, issue := range plan.Impact.PotentialIssues {
			if issue.Severity == types.Error {
				return &types.RefactorError{
					Type:    types.InvalidOperation,
					Message: fmt.Sprintf("cannot execute plan due to critical issue: %s", issue.Description),
					File:    issue.File,
					Line:    issue.Line,
				}
			}
		}
	}

	if len(plan.Changes) == 0 {
		return nil
	}

	var backups map[string]string
	if e.config.Backup {
		var err error
		backups, err = e.serializer.Backup(plan.ID, plan.AffectedFiles)
		if err != nil {
			return fmt.Errorf("failed to back up files: %w", err)
		}
	}

	if err := e.serializer.ApplyChanges(plan.Changes); err != nil {
		e.restore(backups)
		return fmt.Errorf("failed to apply changes: %w", err)
	}

	// Validate that the refactored code compiles (if not skipped)
	if !e.shouldSkipCompilation() {
		if err := e.validateCompilation(plan.AffectedFiles); err != nil {
			e.restore(backups)
			return fmt.Errorf("refactored code does not compile: %w", err)
		}
	}
	return nil
}

func (e *DefaultEngine) restore(backups map[string]string) {
	for file, backup := range backups {
		if err := e.serializer.RestoreFromBackup(file, backup); err != nil {
			e.logger.Error("failed to restore file", "file", file, "backup", backup, "err", err)
		}
	}
}

// shouldSkipCompilation returns true if compilation validation should be skipped
func (e *DefaultEngine) shouldSkipCompilation() bool {
	return e.config != nil && e.config.SkipCompilation
}

// validateCompilation checks that the modified files still compile
func (e *DefaultEngine) validateCompilation(affectedFiles []string) error {
	if len(affectedFiles) == 0 {
		return nil
	}

	// Get unique directories that need compilation checking
	dirsToCheck := make(map[string]bool)
	for _, file := range affectedFiles {
		dirsToCheck[filepath.Dir(file)] = true
	}

	for dir := range dirsToCheck {
		if err := e.checkDirectoryCompilation(dir); err != nil {
			return fmt.Errorf("compilation failed in %s: %w", dir, err)
		}
	}
	return nil
}

// checkDirectoryCompilation runs go build on a directory to check compilation
func (e *DefaultEngine) checkDirectoryCompilation(dir string) error {
	cmd := exec.Command("go", "build", "-o", "/dev/null", ".")
	cmd.Dir = dir

	output, err := cmd.CombinedOutput()
	if err != nil {
		return &types.RefactorError{
			Type:    types.CompilationError,
			Message: fmt.Sprintf("go build failed: %s", string(output)),
			File:    dir,
			Cause:   err,
		}
	}
	return nil
}

// PreviewPlan renders the changes of a plan as a unified diff
func (e *DefaultEngine) PreviewPlan(plan *types.RefactoringPlan) (string, error) {
	return e.serializer.PreviewChanges(plan.Changes)
}
