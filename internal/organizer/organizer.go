// Package organizer prepares output destinations for tagged videos.
package organizer

import (
	"fmt"
	"os"
	"path/filepath"
)

// Existing destination policies.
const (
	PolicyOverwrite = "overwrite"
	PolicyRename    = "rename"
)

// PlaceErrorType represents the type of placement error.
type PlaceErrorType string

const (
	// SourceNotFound indicates the source video does not exist.
	SourceNotFound PlaceErrorType = "SOURCE_NOT_FOUND"
	// PermissionDenied indicates insufficient permissions for the operation.
	PermissionDenied PlaceErrorType = "PERMISSION_DENIED"
	// RemoveFailed indicates an existing destination could not be removed.
	RemoveFailed PlaceErrorType = "REMOVE_FAILED"
	// SameFile indicates the destination is the source itself.
	SameFile PlaceErrorType = "SAME_FILE"
	// NotAFile indicates the destination path is occupied by a directory.
	NotAFile PlaceErrorType = "NOT_A_FILE"
)

// PlaceError represents an error that occurred while preparing a destination.
type PlaceError struct {
	Type PlaceErrorType
	Path string
	Err  error
}

func (e *PlaceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Path)
}

func (e *PlaceError) Unwrap() error {
	return e.Err
}

// Placement is a destination ready to be written.
type Placement struct {
	SourcePath      string
	DestinationPath string
	Replaced        bool   // an existing file was removed (overwrite policy)
	IsDuplicate     bool   // the name was changed (rename policy)
	OriginalName    string // requested filename when IsDuplicate
}

// Plan returns where source would be written under policy without touching
// the filesystem.
func Plan(source, destDir, filename, policy string) Placement {
	p := Placement{SourcePath: source, DestinationPath: filepath.Join(destDir, filename)}
	if !FileExists(p.DestinationPath) {
		return p
	}
	if policy == PolicyRename {
		p.IsDuplicate = true
		p.OriginalName = filename
		p.DestinationPath = filepath.Join(destDir, GenerateDuplicateName(destDir, filename))
		return p
	}
	p.Replaced = true
	return p
}

// Prepare creates destDir and resolves an existing destination per policy:
// overwrite removes the old file, rename picks a _duplicate name.
func Prepare(source, destDir, filename, policy string) (*Placement, error) {
	if _, err := os.Stat(source); err != nil {
		if os.IsNotExist(err) {
			return nil, &PlaceError{Type: SourceNotFound, Path: source, Err: err}
		}
		return nil, classify(source, err)
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, classify(destDir, err)
	}

	dest := filepath.Join(destDir, filename)
	if same, _ := sameFile(source, dest); same {
		return nil, &PlaceError{Type: SameFile, Path: dest}
	}

	p := Plan(source, destDir, filename, policy)
	if p.Replaced {
		info, err := os.Lstat(dest)
		if err == nil && info.IsDir() {
			return nil, &PlaceError{Type: NotAFile, Path: dest}
		}
		if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
			return nil, &PlaceError{Type: RemoveFailed, Path: dest, Err: err}
		}
	}
	return &p, nil
}

func sameFile(a, b string) (bool, error) {
	ai, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	return os.SameFile(ai, bi), nil
}

func classify(path string, err error) error {
	if os.IsPermission(err) {
		return &PlaceError{Type: PermissionDenied, Path: path, Err: err}
	}
	return err
}
