package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ValidationSeverity represents the severity of a validation issue.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// ConfigValidationError represents a single validation issue.
type ConfigValidationError struct {
	Field    string             // Config field with issue (e.g., "file_naming.prefix")
	Message  string             // Human-readable description
	Severity ValidationSeverity // "error" or "warning"
}

// ValidationResult contains all validation findings.
type ValidationResult struct {
	Errors   []ConfigValidationError
	Warnings []ConfigValidationError
	Valid    bool // True if no errors (warnings OK)
}

// ValidateConfig checks the configuration for errors and returns all findings.
func ValidateConfig(cfg *Configuration) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ConfigValidationError{},
		Warnings: []ConfigValidationError{},
	}

	var findings []ConfigValidationError
	findings = append(findings, ValidatePaths(cfg)...)
	findings = append(findings, ValidateNaming(cfg)...)
	findings = append(findings, ValidatePolicies(cfg)...)

	for _, f := range findings {
		if f.Severity == SeverityError {
			result.Errors = append(result.Errors, f)
		} else {
			result.Warnings = append(result.Warnings, f)
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// ValidatePaths checks that the input directory exists and the output
// directory exists or can be created.
func ValidatePaths(cfg *Configuration) []ConfigValidationError {
	var errors []ConfigValidationError

	info, err := os.Stat(cfg.DefaultInputDir)
	switch {
	case err != nil && os.IsNotExist(err):
		errors = append(errors, ConfigValidationError{
			Field:    "default_input_dir",
			Message:  "directory does not exist: " + cfg.DefaultInputDir,
			Severity: SeverityError,
		})
	case err != nil:
		errors = append(errors, ConfigValidationError{
			Field:    "default_input_dir",
			Message:  "error accessing directory: " + err.Error(),
			Severity: SeverityError,
		})
	case !info.IsDir():
		errors = append(errors, ConfigValidationError{
			Field:    "default_input_dir",
			Message:  "path is not a directory: " + cfg.DefaultInputDir,
			Severity: SeverityError,
		})
	}

	outDir := cfg.DefaultOutputDir
	if outDir == "" {
		errors = append(errors, ConfigValidationError{
			Field:    "default_output_dir",
			Message:  "output directory cannot be empty",
			Severity: SeverityError,
		})
		return errors
	}

	if info, err := os.Stat(outDir); err == nil {
		if !info.IsDir() {
			errors = append(errors, ConfigValidationError{
				Field:    "default_output_dir",
				Message:  "path exists but is not a directory: " + outDir,
				Severity: SeverityError,
			})
		}
	} else if !os.IsNotExist(err) {
		errors = append(errors, ConfigValidationError{
			Field:    "default_output_dir",
			Message:  "error accessing directory: " + err.Error(),
			Severity: SeverityError,
		})
	} else if parent := nearestExistingParent(outDir); !isDirectoryWritable(parent) {
		errors = append(errors, ConfigValidationError{
			Field:    "default_output_dir",
			Message:  "cannot create output directory, parent is not writable: " + parent,
			Severity: SeverityError,
		})
	}

	if cfg.DefaultInputDir != "" && directoriesOverlap(cfg.DefaultInputDir, outDir) {
		errors = append(errors, ConfigValidationError{
			Field:    "default_output_dir",
			Message:  "output directory overlaps the input directory: " + outDir,
			Severity: SeverityWarning,
		})
	}

	return errors
}

// ValidateNaming checks the filename settings.
func ValidateNaming(cfg *Configuration) []ConfigValidationError {
	var errors []ConfigValidationError
	fn := cfg.FileNaming

	if fn.Prefix == "" {
		errors = append(errors, ConfigValidationError{
			Field:    "file_naming.prefix",
			Message:  "prefix cannot be empty",
			Severity: SeverityError,
		})
	}
	if fn.Separator == "" {
		errors = append(errors, ConfigValidationError{
			Field:    "file_naming.separator",
			Message:  "separator cannot be empty",
			Severity: SeverityError,
		})
	}
	if strings.ContainsAny(fn.Prefix+fn.Separator, `/\`) {
		errors = append(errors, ConfigValidationError{
			Field:    "file_naming",
			Message:  "prefix and separator cannot contain path separators",
			Severity: SeverityError,
		})
	}
	if !strings.HasPrefix(fn.Extension, ".") {
		errors = append(errors, ConfigValidationError{
			Field:    "file_naming.extension",
			Message:  "extension must start with \".\": \"" + fn.Extension + "\"",
			Severity: SeverityError,
		})
	}
	if fn.UUIDMaxLength < 0 {
		errors = append(errors, ConfigValidationError{
			Field:    "file_naming.uuid_max_length",
			Message:  "uuid_max_length must be 0 (no limit) or positive, got " + strconv.Itoa(fn.UUIDMaxLength),
			Severity: SeverityError,
		})
	} else if fn.UUIDMaxLength > 0 && fn.UUIDMaxLength < 8 {
		errors = append(errors, ConfigValidationError{
			Field:    "file_naming.uuid_max_length",
			Message:  "short identifiers may merge unrelated posts into one partition",
			Severity: SeverityWarning,
		})
	}
	if len(cfg.WriterNames) == 0 {
		errors = append(errors, ConfigValidationError{
			Field:    "writer_names",
			Message:  "no writer names configured; the writer property will not be set",
			Severity: SeverityWarning,
		})
	}

	return errors
}

// ValidatePolicies checks that policy values are valid.
func ValidatePolicies(cfg *Configuration) []ConfigValidationError {
	var errors []ConfigValidationError

	switch cfg.FileNaming.ExistingPolicy {
	case PolicyOverwrite, PolicyRename:
	default:
		errors = append(errors, ConfigValidationError{
			Field:    "file_naming.existing_policy",
			Message:  "invalid existing policy: \"" + cfg.FileNaming.ExistingPolicy + "\". Must be \"overwrite\" or \"rename\"",
			Severity: SeverityError,
		})
	}

	switch cfg.SymlinkPolicy {
	case "", "follow", "skip", "error":
	default:
		errors = append(errors, ConfigValidationError{
			Field:    "symlink_policy",
			Message:  "invalid symlink policy: \"" + cfg.SymlinkPolicy + "\". Must be \"follow\", \"skip\", or \"error\"",
			Severity: SeverityError,
		})
	}

	if cfg.Watch.DebounceSeconds < 0 || cfg.Watch.StableThresholdMs < 0 {
		errors = append(errors, ConfigValidationError{
			Field:    "watch",
			Message:  "debounce_seconds and stable_threshold_ms must be non-negative",
			Severity: SeverityError,
		})
	}

	return errors
}

// directoriesOverlap checks if two directories overlap (one is parent/ancestor of the other).
func directoriesOverlap(dir1, dir2 string) bool {
	clean1 := filepath.Clean(dir1)
	clean2 := filepath.Clean(dir2)

	if clean1 == clean2 {
		return true
	}
	if strings.HasPrefix(clean2, clean1+string(filepath.Separator)) {
		return true
	}
	return strings.HasPrefix(clean1, clean2+string(filepath.Separator))
}

// nearestExistingParent walks up from dir to the first ancestor that exists.
func nearestExistingParent(dir string) string {
	current := filepath.Clean(dir)
	for {
		parent := filepath.Dir(current)
		if _, err := os.Stat(parent); err == nil || parent == current {
			return parent
		}
		current = parent
	}
}

// isDirectoryWritable checks if a directory is writable by attempting to create a temp file.
func isDirectoryWritable(dir string) bool {
	f, err := os.CreateTemp(dir, ".vidmeta_write_test")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}
