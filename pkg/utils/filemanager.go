// =============================================================================
// Subscription Flow Audit - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for a run:
//   - Directory management
//   - Export discovery in the input directory
//   - Input archival (moving processed exports)
//   - Output file naming
//
// ARCHIVAL STRATEGY:
//   - Exports are moved to input_archive only after every output of the run
//     has been written
//   - A failed run leaves its exports in place
//   - Name collisions in the archive get a numeric suffix instead of
//     overwriting an earlier export
//
// =============================================================================

package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// InputExtensions are the export suffixes picked up by discovery.
var InputExtensions = []string{".csv", ".csv.gz", ".csv.zst", ".xlsx"}

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for a run.
type FileManager struct {
	// InputDir is scanned for exports.
	InputDir string

	// OutputDir receives generated files.
	OutputDir string

	// InputArchiveDir receives processed exports.
	InputArchiveDir string

	// UseTimestampSubdirs creates date-based subdirectories in the archive.
	// Example: input_archive/2024/01/15/orders.csv
	UseTimestampSubdirs bool

	now func() time.Time
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inputDir, outputDir, inputArchiveDir string) *FileManager {
	return &FileManager{
		InputDir:        inputDir,
		OutputDir:       outputDir,
		InputArchiveDir: inputArchiveDir,
		now:             time.Now,
	}
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates the output and archive directories if they
// don't exist. The input directory is never created: a missing input
// directory is reported by discovery.
func (fm *FileManager) EnsureDirectories() error {
	for _, dir := range []string{fm.OutputDir, fm.InputArchiveDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// InputFile is a discovered export.
type InputFile struct {
	Path    string
	ModTime time.Time
}

// DiscoverInputs lists the exports in the input directory (not recursive),
// sorted by file name so runs are reproducible.
//
// RETURNS:
//   - The discovered files; empty when nothing matches.
//   - An error if the directory cannot be read.
func (fm *FileManager) DiscoverInputs() ([]InputFile, error) {
	entries, err := os.ReadDir(fm.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	var files []InputFile
	for _, entry := range entries {
		if entry.IsDir() || !IsInputFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, InputFile{
			Path:    filepath.Join(fm.InputDir, entry.Name()),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// IsInputFile reports whether name carries a supported export suffix.
func IsInputFile(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range InputExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves an export to the archive directory.
//
// RETURNS:
//   - The path to the archived file.
//   - An error if archival fails.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	archivePath := fm.getArchivePath(filePath)

	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// Rename fails across devices; fall back to copy and delete.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}

	return archivePath, nil
}

// getArchivePath constructs a free archive path for a file.
func (fm *FileManager) getArchivePath(filePath string) string {
	dir := fm.InputArchiveDir
	if fm.UseTimestampSubdirs {
		now := fm.clock()
		dir = filepath.Join(dir,
			fmt.Sprintf("%d", now.Year()),
			fmt.Sprintf("%02d", now.Month()),
			fmt.Sprintf("%02d", now.Day()),
		)
	}

	name := filepath.Base(filePath)
	candidate := filepath.Join(dir, name)
	for i := 1; FileExists(candidate); i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%d_%s", i, name))
	}
	return candidate
}

func (fm *FileManager) clock() time.Time {
	if fm.now == nil {
		return time.Now()
	}
	return fm.now()
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// OutputBaseName expands an output name format.
//
// PARAMETERS:
//   - format: The format string. Placeholders:
//       {uuid}      - the run id
//       {timestamp} - run start (YYYYMMDD_HHMMSS)
//       {date}      - run start (YYYYMMDD)
//       {run}       - the literal "flow"
//   - runID: The run id.
//   - started: The run start time.
//
// EXAMPLE:
//   format: "{run}_{timestamp}"
//   output: "flow_20240115_143022"
func OutputBaseName(format, runID string, started time.Time) string {
	replacer := strings.NewReplacer(
		"{uuid}", runID,
		"{timestamp}", started.Format("20060102_150405"),
		"{date}", started.Format("20060102"),
		"{run}", "flow",
	)
	name := replacer.Replace(format)
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, name)
}

// OutputPath joins the output directory, base name and extension.
func (fm *FileManager) OutputPath(base, ext string) string {
	return filepath.Join(fm.OutputDir, base+ext)
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
