package refactor

import (
	"bufio"
	"fmt"
	"go/parser"
	"go/token"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/tools/imports"

	refactorTypes "github.com/mamaar/methodobject/pkg/types"
)

// backupRoot is the directory, relative to the system temp dir, holding one
// backup directory per executed plan.
const backupRoot = "methodobject-backups"

// Serializer applies refactoring changes to files while preserving formatting
type Serializer struct {
	fileSet *token.FileSet
	logger  *slog.Logger
}

func NewSerializer(logger *slog.Logger) *Serializer {
	return &Serializer{
		fileSet: token.NewFileSet(),
		logger:  logger,
	}
}

// ApplyChanges applies a list of changes to the files they name. Files that
// do not exist yet are created along with their directories.
func (s *Serializer) ApplyChanges(changes []refactorTypes.Change) error {
	if len(changes) == 0 {
		return nil // No changes to apply
	}

	for _, filePath := range changedFiles(changes) {
		content, err := s.render(filePath, changesFor(changes, filePath))
		if err != nil {
			return &refactorTypes.RefactorError{
				Type:    refactorTypes.FileSystemError,
				Message: fmt.Sprintf("failed to apply changes to file %s: %v", filePath, err),
				File:    filePath,
				Cause:   err,
			}
		}
		if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
			return &refactorTypes.RefactorError{
				Type:    refactorTypes.FileSystemError,
				Message: fmt.Sprintf("failed to create directory for %s: %v", filePath, err),
				File:    filePath,
				Cause:   err,
			}
		}
		if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
			return &refactorTypes.RefactorError{
				Type:    refactorTypes.FileSystemError,
				Message: fmt.Sprintf("failed to write file: %v", err),
				File:    filePath,
				Cause:   err,
			}
		}
	}
	return nil
}

// PreviewChanges renders the changes as one unified diff per file without
// touching the disk.
func (s *Serializer) PreviewChanges(changes []refactorTypes.Change) (string, error) {
	if len(changes) == 0 {
		return "No changes to preview", nil
	}

	var preview strings.Builder
	for _, filePath := range changedFiles(changes) {
		original, err := readOrEmpty(filePath)
		if err != nil {
			return "", err
		}
		modified, err := s.render(filePath, changesFor(changes, filePath))
		if err != nil {
			return "", fmt.Errorf("failed to preview %s: %w", filePath, err)
		}
		diff, err := s.GenerateDiff(filePath, string(original), modified)
		if err != nil {
			return "", err
		}
		preview.WriteString(diff)
	}
	return preview.String(), nil
}

func changedFiles(changes []refactorTypes.Change) []string {
	var files []string
	for _, change := range changes {
		if !slices.Contains(files, change.File) {
			files = append(files, change.File)
		}
	}
	sort.Strings(files)
	return files
}

func changesFor(changes []refactorTypes.Change, filePath string) []refactorTypes.Change {
	var out []refactorTypes.Change
	for _, change := range changes {
		if change.File == filePath {
			out = append(out, change)
		}
	}
	return out
}

func readOrEmpty(filePath string) ([]byte, error) {
	content, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %v", err)
	}
	return content, nil
}

// render computes the new content of a single file
func (s *Serializer) render(filePath string, changes []refactorTypes.Change) (string, error) {
	// Read the current file content, or start with empty content for new files
	content, err := readOrEmpty(filePath)
	if err != nil {
		return "", err
	}

	// Sort changes by position in reverse order so we can apply them without affecting positions
	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].Start > changes[j].Start
	})

	// Validate that changes don't overlap
	if err := s.validateChangePositions(changes); err != nil {
		return "", fmt.Errorf("invalid change positions: %v", err)
	}

	modifiedContent := string(content)
	for _, change := range changes {
		modifiedContent, err = s.applyChange(modifiedContent, change)
		if err != nil {
			return "", fmt.Errorf("failed to apply change: %v", err)
		}
	}

	if strings.HasSuffix(filePath, ".go") {
		formatted, err := s.formatGoCode(filePath, modifiedContent)
		if err != nil {
			// If formatting fails, we still want to save the changes
			s.logger.Warn("failed to format file", "file", filePath, "err", err)
		} else {
			modifiedContent = formatted
		}
	}
	return modifiedContent, nil
}

// applyChange applies a single change to the content
func (s *Serializer) applyChange(content string, change refactorTypes.Change) (string, error) {
	if change.Start < 0 || change.End > len(content) || change.Start > change.End {
		return "", fmt.Errorf("invalid change bounds: start=%d, end=%d, content length=%d",
			change.Start, change.End, len(content))
	}

	// Verify that the old text matches what we expect (if provided)
	if change.OldText != "" {
		actualOldText := content[change.Start:change.End]
		if actualOldText != change.OldText {
			return "", fmt.Errorf("old text mismatch: expected '%s', found '%s'",
				s.truncateText(change.OldText), s.truncateText(actualOldText))
		}
	}

	return content[:change.Start] + change.NewText + content[change.End:], nil
}

// validateChangePositions ensures changes don't overlap
func (s *Serializer) validateChangePositions(changes []refactorTypes.Change) error {
	for i := 0; i < len(changes); i++ {
		for j := i + 1; j < len(changes); j++ {
			if changesOverlap(changes[i], changes[j]) {
				return fmt.Errorf("overlapping changes detected: [%d-%d] and [%d-%d]",
					changes[i].Start, changes[i].End, changes[j].Start, changes[j].End)
			}
		}
	}
	return nil
}

// changesOverlap checks if two changes overlap. Two insertions at the same
// offset overlap as well, since their order would be arbitrary.
func changesOverlap(change1, change2 refactorTypes.Change) bool {
	if change1.Start == change2.Start {
		return true
	}
	return change1.Start < change2.End && change2.Start < change1.End
}

// formatGoCode formats Go source code and drops imports the changes made
// unused.
func (s *Serializer) formatGoCode(filePath, code string) (string, error) {
	// First, try to parse to ensure it's valid Go code
	if _, err := parser.ParseFile(token.NewFileSet(), filePath, code, parser.ParseComments); err != nil {
		return "", fmt.Errorf("invalid Go syntax: %v", err)
	}

	formatted, err := imports.Process(filePath, []byte(code), &imports.Options{
		Comments:  true,
		TabIndent: true,
		TabWidth:  8,
	})
	if err != nil {
		return "", fmt.Errorf("formatting failed: %v", err)
	}
	return string(formatted), nil
}

// truncateText truncates text for display in error messages
func (s *Serializer) truncateText(text string, maxLength ...int) string {
	length := 80 // default max length
	if len(maxLength) > 0 {
		length = maxLength[0]
	}

	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= length {
		return text
	}
	return text[:length-3] + "..."
}

// Backup copies files into a directory named after the plan. It returns the
// backup path of every file; files that do not exist yet get an empty
// backup.
func (s *Serializer) Backup(planID string, files []string) (map[string]string, error) {
	if planID == "" {
		planID = "unnamed"
	}
	dir := filepath.Join(os.TempDir(), backupRoot, planID)
	backups := make(map[string]string, len(files))
	for i, file := range files {
		backupPath := filepath.Join(dir, fmt.Sprintf("%03d-%s", i, filepath.Base(file)))
		if err := s.BackupFile(file, backupPath); err != nil {
			return backups, err
		}
		backups[file] = backupPath
	}
	s.logger.Debug("files backed up", "dir", dir, "count", len(backups))
	return backups, nil
}

// BackupFile copies filePath to backupPath before modifications
func (s *Serializer) BackupFile(filePath, backupPath string) error {
	if err := os.MkdirAll(filepath.Dir(backupPath), 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %v", err)
	}

	content, err := readOrEmpty(filePath)
	if err != nil {
		return err
	}
	if err := os.WriteFile(backupPath, content, 0644); err != nil {
		return fmt.Errorf("failed to create backup: %v", err)
	}
	return nil
}

// RestoreFromBackup restores a file from its backup. An empty backup stands
// for a file that did not exist, which is removed again.
func (s *Serializer) RestoreFromBackup(filePath, backupPath string) error {
	content, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("failed to read backup file: %v", err)
	}

	if len(content) == 0 {
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove created file: %v", err)
		}
		return nil
	}
	if err := os.WriteFile(filePath, content, 0644); err != nil {
		return fmt.Errorf("failed to restore file: %v", err)
	}
	return nil
}

// GenerateDiff generates a unified diff between original and modified content
func (s *Serializer) GenerateDiff(filePath string, originalContent, modifiedContent string) (string, error) {
	from := "a/" + filepath.ToSlash(filePath)
	if originalContent == "" {
		from = "/dev/null"
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(originalContent),
		B:        difflib.SplitLines(modifiedContent),
		FromFile: from,
		ToFile:   "b/" + filepath.ToSlash(filePath),
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("failed to diff %s: %w", filePath, err)
	}
	return text, nil
}

// GetFileLines reads a file and returns its lines with line numbers
func (s *Serializer) GetFileLines(filePath string, startLine, endLine int) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %v", err)
	}
	defer func() { _ = file.Close() }()

	var lines []string
	scanner := bufio.NewScanner(file)
	lineNum := 1

	for scanner.Scan() {
		if lineNum >= startLine && lineNum <= endLine {
			lines = append(lines, fmt.Sprintf("%d: %s", lineNum, scanner.Text()))
		}
		lineNum++

		if lineNum > endLine {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %v", err)
	}
	return lines, nil
}
