package types

// Operation represents any refactoring operation
type Operation interface {
	Type() OperationType
	Validate(ws *Workspace) error
	Execute(ws *Workspace) (*RefactoringPlan, error)
	Description() string
}

type OperationType int

const (
	ExtractMethodObjectOperation OperationType = iota
	BridgeReportOperation
)

func (t OperationType) String() string {
	switch t {
	case ExtractMethodObjectOperation:
		return "extract_method_object"
	case BridgeReportOperation:
		return "bridge_report"
	default:
		return "unknown"
	}
}

// ExtractMethodObjectRequest represents moving a run of statements into a
// new struct type with a single method, possibly in another package.
type ExtractMethodObjectRequest struct {
	SourceFile    string
	StartLine     int
	EndLine       int
	ObjectName    string // Name of the generated struct type
	TargetDir     string // Directory of the package hosting the object; empty means the source package
	TargetFile    string // File name inside TargetDir; derived from ObjectName when empty
	MethodName    string // Defaults to Invoke
	Static        bool   // Bridges become package-level functions instead of methods
	ReplaceSource bool   // Replace the fragment in the source with a call to the object
}

// RefactoringPlan represents a planned set of changes
type RefactoringPlan struct {
	ID            string
	Operations    []Operation
	Changes       []Change
	AffectedFiles []string
	Impact        *ImpactAnalysis
	Bridges       []BridgeRecord
	Reversible    bool
}

// Change represents a specific change to be made
type Change struct {
	File        string
	Start       int
	End         int
	OldText     string
	NewText     string
	Description string
}

// BridgeRecord describes one reference found in an extracted fragment and
// what happened to it.
type BridgeRecord struct {
	Kind    string `json:"kind" yaml:"kind"`
	Member  string `json:"member" yaml:"member"`
	File    string `json:"file" yaml:"file"`
	Line    int    `json:"line" yaml:"line"`
	Column  int    `json:"column" yaml:"column"`
	Bridge  string `json:"bridge,omitempty" yaml:"bridge,omitempty"`
	Skipped string `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Manual  bool   `json:"manual,omitempty" yaml:"manual,omitempty"`
}

// ImpactAnalysis shows what will be affected by a refactoring
type ImpactAnalysis struct {
	AffectedPackages []string
	AffectedFiles    []string
	PotentialIssues  []Issue
	ImportChanges    []ImportChange
}

type Issue struct {
	Type        IssueType
	Description string
	File        string
	Line        int
	Severity    IssueSeverity
}

type IssueType int

const (
	IssueCompilationError IssueType = iota
	IssueImportCycle
	IssueVisibilityError
	IssueNameConflict
	IssueTypeMismatch
	IssueManualAccess
)

type IssueSeverity int

const (
	Error IssueSeverity = iota
	Warning
	Info
)

// String returns the string representation of IssueSeverity
func (s IssueSeverity) String() string {
	switch s {
	case Error:
		return "Error"
	case Warning:
		return "Warning"
	case Info:
		return "Info"
	default:
		return "Unknown"
	}
}

type ImportChange struct {
	File      string
	OldImport string
	NewImport string
	Action    ImportAction
}

type ImportAction int

const (
	AddImport ImportAction = iota
	RemoveImport
	UpdateImport
)
