package watcher

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultIgnorePatterns returns the patterns of partial downloads and editor
// temp files that never trigger a cycle.
func DefaultIgnorePatterns() []string {
	return []string{
		"*.tmp",
		"*.part",
		"*.download",
		"*.crdownload", // Chrome partial downloads
		"*.partial",
		".~*",
	}
}

// FileFilter decides which paths trigger a cycle: the path must carry one of
// the watched extensions and match none of the ignore patterns.
type FileFilter struct {
	patterns   []string
	extensions []string
}

// NewFileFilter creates a FileFilter. Empty patterns fall back to the
// defaults; empty extensions accept every extension.
func NewFileFilter(patterns, extensions []string) *FileFilter {
	if len(patterns) == 0 {
		patterns = DefaultIgnorePatterns()
	}
	lowered := make([]string, len(extensions))
	for i, ext := range extensions {
		lowered[i] = strings.ToLower(ext)
	}
	return &FileFilter{patterns: patterns, extensions: lowered}
}

// ShouldIgnore reports whether the base name of path matches an ignore
// pattern. Patterns use filepath.Match syntax; a bare ".ext" pattern matches
// as a case-insensitive suffix.
func (f *FileFilter) ShouldIgnore(path string) bool {
	filename := filepath.Base(path)

	for _, pattern := range f.patterns {
		if matched, err := filepath.Match(pattern, filename); err == nil && matched {
			return true
		}
		if strings.HasPrefix(pattern, ".") && !strings.ContainsAny(pattern, "*?[") {
			if strings.HasSuffix(strings.ToLower(filename), strings.ToLower(pattern)) {
				return true
			}
		}
	}
	return false
}

// IsRelevant reports whether path should trigger a cycle.
func (f *FileFilter) IsRelevant(path string) bool {
	if f.ShouldIgnore(path) {
		return false
	}
	if len(f.extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range f.extensions {
		if ext == want {
			return true
		}
	}
	return false
}

// GetPatterns returns a copy of the ignore patterns.
func (f *FileFilter) GetPatterns() []string {
	result := make([]string, len(f.patterns))
	copy(result, f.patterns)
	return result
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
