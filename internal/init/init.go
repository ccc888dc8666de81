// Package initcmd installs a starter configuration and routine for growth.
package initcmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/npratt/growth/internal/config"
	"github.com/npratt/growth/internal/schedule"
)

// Options configures the init command behavior.
type Options struct {
	DryRun  bool
	Force   bool
	Minimal bool      // Config only, no sample routine
	Global  bool      // Install to the user config directory
	Dir     string    // Project directory (defaults to the working directory)
	Writer  io.Writer // Output writer (defaults to os.Stdout)
}

// InstallFile represents a file to be installed.
type InstallFile struct {
	Path     string // Relative path within the target directory
	Content  string // File content
	IsAppend bool   // If true, maintain a managed section instead of replacing
}

// Result contains the outcome of the init operation.
type Result struct {
	TargetDir   string
	Created     []string
	Appended    []string
	Skipped     []string
	Unchanged   []string
	Overwritten []string
}

// FileStatus represents the status of a file to be installed.
type FileStatus struct {
	Path      string // Relative path within the target directory
	Exists    bool   // True if file exists
	Unchanged bool   // True if existing content matches new content
	Diff      string // Unified diff if changed (empty if unchanged or new)
}

const (
	managedSectionBegin = "# >>> growth-managed"
	managedSectionEnd   = "# <<< growth-managed"
)

// BuildFileList returns the files to install. A global install writes the
// user-level config and, unless minimal, the fallback routine used by
// projects without their own.
func BuildFileList(minimal, global bool) []InstallFile {
	dir := config.ProjectConfigDir
	if global {
		dir = ""
	}

	files := []InstallFile{{
		Path:    filepath.Join(dir, config.ProjectConfigFile),
		Content: MustReadTemplate(configTemplate),
	}}
	if !minimal {
		files = append(files, InstallFile{
			Path:    filepath.Join(dir, config.RoutineFile),
			Content: MustReadTemplate(routineTemplate),
		})
	}
	if !global {
		files = append(files, InstallFile{
			Path:     ".gitignore",
			Content:  MustReadTemplate(gitignoreTemplate),
			IsAppend: true,
		})
	}
	return files
}

// Run executes the init command with the given options.
func Run(opts Options) (*Result, error) {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}

	targetDir, err := getTargetDir(opts.Global, opts.Dir)
	if err != nil {
		return nil, err
	}

	files := BuildFileList(opts.Minimal, opts.Global)
	if err := validateTemplates(files); err != nil {
		return nil, err
	}

	statuses := checkFileStatuses(targetDir, files)

	if opts.DryRun {
		return showDryRun(opts.Writer, targetDir, files, statuses)
	}

	var changed []FileStatus
	for _, s := range statuses {
		if s.Exists && !s.Unchanged {
			changed = append(changed, s)
		}
	}
	if len(changed) > 0 && !opts.Force {
		return showChanges(opts.Writer, targetDir, statuses)
	}

	return installFiles(opts.Writer, targetDir, files, statuses, opts.Force)
}

// getTargetDir returns the directory files are installed under.
func getTargetDir(global bool, dir string) (string, error) {
	if global {
		dir := config.GlobalDir()
		if dir == "" {
			return "", fmt.Errorf("no home directory for the global config")
		}
		return dir, nil
	}
	if dir == "" {
		return ".", nil
	}
	return dir, nil
}

// validateTemplates refuses to install a sample routine the engine would reject.
func validateTemplates(files []InstallFile) error {
	for _, f := range files {
		if filepath.Base(f.Path) != config.RoutineFile {
			continue
		}
		if _, err := schedule.ParseRoutine([]byte(f.Content)); err != nil {
			return fmt.Errorf("sample routine: %w", err)
		}
	}
	return nil
}

// checkFileStatuses checks each replaceable file and returns its status.
func checkFileStatuses(targetDir string, files []InstallFile) []FileStatus {
	var statuses []FileStatus
	for _, f := range files {
		if f.IsAppend {
			continue
		}

		status := FileStatus{Path: f.Path}
		existing, err := os.ReadFile(filepath.Join(targetDir, f.Path))
		if err == nil {
			status.Exists = true
			if string(existing) == f.Content {
				status.Unchanged = true
			} else {
				status.Diff = UnifiedDiff("existing", "new", string(existing), f.Content)
			}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// appendState reports what installing an append file would do: "unchanged",
// "update", "append" or "create".
func appendState(path, content string) string {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return "create"
	}
	existing := string(data)
	if section, ok := currentManagedSection(existing); ok {
		if strings.TrimSpace(section) == strings.TrimSpace(content) {
			return "unchanged"
		}
		return "update"
	}
	return "append"
}

// showDryRun displays what would be changed without making changes.
func showDryRun(w io.Writer, targetDir string, files []InstallFile, statuses []FileStatus) (*Result, error) {
	_, _ = fmt.Fprintln(w, "DRY RUN - No changes will be made")
	_, _ = fmt.Fprintln(w)

	result := &Result{TargetDir: targetDir}

	statusMap := make(map[string]FileStatus)
	for _, s := range statuses {
		statusMap[s.Path] = s
	}

	for _, f := range files {
		path := filepath.Join(targetDir, f.Path)

		if f.IsAppend {
			switch appendState(path, f.Content) {
			case "unchanged":
				_, _ = fmt.Fprintf(w, "Already up to date: %s\n", path)
				result.Unchanged = append(result.Unchanged, f.Path)
			case "update":
				_, _ = fmt.Fprintf(w, "Would update managed section: %s\n", path)
				result.Appended = append(result.Appended, f.Path)
			case "append":
				_, _ = fmt.Fprintf(w, "Would append to: %s\n", path)
				result.Appended = append(result.Appended, f.Path)
			default:
				_, _ = fmt.Fprintf(w, "Would create: %s\n", path)
				result.Created = append(result.Created, f.Path)
			}
			continue
		}

		status := statusMap[f.Path]
		switch {
		case status.Exists && status.Unchanged:
			_, _ = fmt.Fprintf(w, "Already up to date: %s\n", path)
			result.Unchanged = append(result.Unchanged, f.Path)
		case status.Exists:
			_, _ = fmt.Fprintf(w, "Would overwrite (has changes): %s\n", path)
			_, _ = fmt.Fprintln(w, status.Diff)
			result.Skipped = append(result.Skipped, f.Path)
		default:
			_, _ = fmt.Fprintf(w, "Would create: %s\n", path)
			_, _ = fmt.Fprintln(w, "--- BEGIN FILE ---")
			_, _ = fmt.Fprintln(w, f.Content)
			_, _ = fmt.Fprintln(w, "--- END FILE ---")
			_, _ = fmt.Fprintln(w)
			result.Created = append(result.Created, f.Path)
		}
	}

	_, _ = fmt.Fprintln(w, "Run without --dry-run to apply changes.")
	return result, nil
}

// showChanges lists files that differ from the templates and refuses to
// touch them without --force.
func showChanges(w io.Writer, targetDir string, statuses []FileStatus) (*Result, error) {
	result := &Result{TargetDir: targetDir}

	var changed, unchanged []FileStatus
	for _, s := range statuses {
		if !s.Exists {
			continue
		}
		if s.Unchanged {
			unchanged = append(unchanged, s)
		} else {
			changed = append(changed, s)
		}
	}

	if len(changed) > 0 {
		_, _ = fmt.Fprintln(w, "The following files have changes:")
		_, _ = fmt.Fprintln(w)
		for _, s := range changed {
			_, _ = fmt.Fprintf(w, "%s:\n", filepath.Join(targetDir, s.Path))
			_, _ = fmt.Fprintln(w, s.Diff)
			result.Skipped = append(result.Skipped, s.Path)
		}
	}

	if len(unchanged) > 0 {
		_, _ = fmt.Fprintln(w, "Already up to date:")
		for _, s := range unchanged {
			_, _ = fmt.Fprintf(w, "  %s\n", filepath.Join(targetDir, s.Path))
			result.Unchanged = append(result.Unchanged, s.Path)
		}
		_, _ = fmt.Fprintln(w)
	}

	_, _ = fmt.Fprintln(w, "Use --force to overwrite changed files.")
	return result, fmt.Errorf("files have changes (use --force to overwrite)")
}

// installFiles creates directories and writes files.
func installFiles(w io.Writer, targetDir string, files []InstallFile, statuses []FileStatus, force bool) (*Result, error) {
	result := &Result{TargetDir: targetDir}

	statusMap := make(map[string]FileStatus)
	for _, s := range statuses {
		statusMap[s.Path] = s
	}

	for _, f := range files {
		path := filepath.Join(targetDir, f.Path)

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return result, fmt.Errorf("create directory for %s: %w", path, err)
		}

		if f.IsAppend {
			state := appendState(path, f.Content)
			if state == "unchanged" {
				_, _ = fmt.Fprintf(w, "Already up to date: %s\n", path)
				result.Unchanged = append(result.Unchanged, f.Path)
				continue
			}

			existing := ""
			if data, err := os.ReadFile(path); err == nil {
				existing = string(data)
			}
			content := handleManagedSection(existing, strings.TrimRight(f.Content, "\n"))
			if err := os.WriteFile(path, []byte(content+"\n"), 0644); err != nil {
				return result, fmt.Errorf("write %s: %w", path, err)
			}

			if state == "create" {
				_, _ = fmt.Fprintf(w, "Created: %s\n", path)
				result.Created = append(result.Created, f.Path)
			} else {
				_, _ = fmt.Fprintf(w, "Updated managed section: %s\n", path)
				result.Appended = append(result.Appended, f.Path)
			}
			continue
		}

		status := statusMap[f.Path]
		switch {
		case status.Exists && status.Unchanged:
			_, _ = fmt.Fprintf(w, "Already up to date: %s\n", path)
			result.Unchanged = append(result.Unchanged, f.Path)
		case status.Exists && !force:
			_, _ = fmt.Fprintf(w, "Skipped (has changes): %s\n", path)
			result.Skipped = append(result.Skipped, f.Path)
		case status.Exists:
			if err := backupFile(path); err != nil {
				return result, err
			}
			if err := os.WriteFile(path, []byte(f.Content), 0644); err != nil {
				return result, fmt.Errorf("write %s: %w", path, err)
			}
			_, _ = fmt.Fprintf(w, "Overwritten: %s\n", path)
			result.Overwritten = append(result.Overwritten, f.Path)
		default:
			if err := os.WriteFile(path, []byte(f.Content), 0644); err != nil {
				return result, fmt.Errorf("write %s: %w", path, err)
			}
			_, _ = fmt.Fprintf(w, "Created: %s\n", path)
			result.Created = append(result.Created, f.Path)
		}
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "growth initialized successfully!")
	_, _ = fmt.Fprintln(w, "Edit the routine, then run 'growth start' to practice.")

	return result, nil
}

// backupFile copies path to path.bak before it is overwritten.
func backupFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s for backup: %w", path, err)
	}
	if err := os.WriteFile(path+".bak", data, 0644); err != nil {
		return fmt.Errorf("backup %s: %w", path, err)
	}
	return nil
}

// currentManagedSection returns the managed section of content, markers
// included.
func currentManagedSection(content string) (string, bool) {
	beginIdx := strings.Index(content, managedSectionBegin)
	endIdx := strings.Index(content, managedSectionEnd)
	if beginIdx < 0 || endIdx < beginIdx {
		return "", false
	}
	return content[beginIdx : endIdx+len(managedSectionEnd)], true
}

// handleManagedSection handles inserting or replacing managed section content.
// If the managed section markers exist, replaces the content between them.
// Otherwise, appends the new section to the end of the content.
func handleManagedSection(existingContent, newSection string) string {
	beginIdx := strings.Index(existingContent, managedSectionBegin)
	endIdx := strings.Index(existingContent, managedSectionEnd)

	if beginIdx >= 0 && endIdx > beginIdx {
		before := strings.TrimRight(existingContent[:beginIdx], "\n")
		after := strings.TrimLeft(existingContent[endIdx+len(managedSectionEnd):], "\n")
		after = strings.TrimRight(after, "\n")

		if before == "" {
			if after == "" {
				return newSection
			}
			return newSection + "\n\n" + after
		}
		if after == "" {
			return before + "\n\n" + newSection
		}
		return before + "\n\n" + newSection + "\n\n" + after
	}

	if existing := strings.TrimRight(existingContent, "\n"); existing != "" {
		return existing + "\n\n" + newSection
	}
	return newSection
}
