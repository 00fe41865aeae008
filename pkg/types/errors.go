package types

import "fmt"

// RefactorError represents errors in refactoring operations
type RefactorError struct {
	Type    ErrorType
	Message string
	File    string
	Line    int
	Column  int
	Cause   error
}

func (e *RefactorError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	}
	return e.Message
}

func (e *RefactorError) Unwrap() error {
	return e.Cause
}

type ErrorType int

const (
	ParseError ErrorType = iota
	SymbolNotFound
	InvalidOperation
	CompilationError
	CyclicDependency
	VisibilityViolation
	NameConflict
	FileSystemError
	UnbridgeableReference
	MutationFailure
)

func (t ErrorType) String() string {
	switch t {
	case ParseError:
		return "parse error"
	case SymbolNotFound:
		return "symbol not found"
	case InvalidOperation:
		return "invalid operation"
	case CompilationError:
		return "compilation error"
	case CyclicDependency:
		return "cyclic dependency"
	case VisibilityViolation:
		return "visibility violation"
	case NameConflict:
		return "name conflict"
	case FileSystemError:
		return "file system error"
	case UnbridgeableReference:
		return "unbridgeable reference"
	case MutationFailure:
		return "mutation failure"
	default:
		return "unknown"
	}
}

// ValidationError represents validation failures
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d issues", len(e.Issues))
}
