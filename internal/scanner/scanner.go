// Package scanner finds metadata sidecars and pairs them with their videos.
package scanner

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScanErrorType represents the type of scanning error.
type ScanErrorType string

const (
	// DirectoryNotFound indicates the directory does not exist.
	DirectoryNotFound ScanErrorType = "DIRECTORY_NOT_FOUND"
	// PermissionDenied indicates insufficient permissions to read the directory.
	PermissionDenied ScanErrorType = "PERMISSION_DENIED"
	// SymlinkError indicates a symlink was encountered with "error" policy.
	SymlinkError ScanErrorType = "SYMLINK_ERROR"
)

// Symlink policy constants
const (
	SymlinkPolicyFollow = "follow"
	SymlinkPolicySkip   = "skip"
	SymlinkPolicyError  = "error"
)

// Default sidecar and video extensions written by the downloader.
const (
	MetaExtension  = ".json"
	VideoExtension = ".mp4"
)

// ScanError represents an error that occurred during directory scanning.
type ScanError struct {
	Type ScanErrorType
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return string(e.Type) + ": " + e.Path
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// ScanOptions configures scanning behavior.
type ScanOptions struct {
	MaxDepth       int    // Maximum depth to scan (0 = immediate only, -1 = unlimited)
	SymlinkPolicy  string // "follow", "skip", or "error"
	VideoExtension string // Extension paired with each sidecar (default ".mp4")
}

// DefaultScanOptions returns the default scan options.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		MaxDepth:       0,
		SymlinkPolicy:  SymlinkPolicySkip,
		VideoExtension: VideoExtension,
	}
}

// Pair is a metadata sidecar and the video sharing its base name.
type Pair struct {
	Stem      string // Path of the pair relative to the scan root, without extension
	MetaPath  string // Absolute path of the sidecar
	VideoPath string // Absolute path of the video
}

// PairScan is the result of ScanPairs.
type PairScan struct {
	Pairs   []Pair // Sidecars with a matching video, sorted by Stem
	Missing []Pair // Sidecars without a matching video (VideoPath is the expected path)
	// Duplicates are sidecars whose stem was already taken by another
	// sidecar differing only in extension case, e.g. a.JSON next to a.json.
	Duplicates []Pair
}

// ScanPairs enumerates the sidecars below directory and pairs each with
// <stem><VideoExtension> in the same directory.
func ScanPairs(directory string, opts ScanOptions) (*PairScan, error) {
	if opts.VideoExtension == "" {
		opts.VideoExtension = VideoExtension
	}

	root, err := resolveRoot(directory, opts)
	if err != nil {
		return nil, err
	}
	if root == "" {
		return &PairScan{}, nil
	}

	files := make(map[string]bool)
	var sidecars []string
	if err := walk(root, opts, 0, func(path string) {
		files[path] = true
		if strings.EqualFold(filepath.Ext(path), MetaExtension) {
			sidecars = append(sidecars, path)
		}
	}); err != nil {
		return nil, err
	}

	// the exact-case extension claims a stem first, then path order
	sort.Slice(sidecars, func(i, j int) bool {
		ei := filepath.Ext(sidecars[i]) == MetaExtension
		ej := filepath.Ext(sidecars[j]) == MetaExtension
		if ei != ej {
			return ei
		}
		return sidecars[i] < sidecars[j]
	})

	result := &PairScan{}
	seen := make(map[string]bool, len(sidecars))
	for _, metaPath := range sidecars {
		base := strings.TrimSuffix(metaPath, filepath.Ext(metaPath))
		rel, err := filepath.Rel(root, base)
		if err != nil {
			rel = filepath.Base(base)
		}
		pair := Pair{
			Stem:      filepath.ToSlash(rel),
			MetaPath:  metaPath,
			VideoPath: base + opts.VideoExtension,
		}
		if seen[base] {
			result.Duplicates = append(result.Duplicates, pair)
			continue
		}
		seen[base] = true
		if files[pair.VideoPath] {
			result.Pairs = append(result.Pairs, pair)
		} else {
			result.Missing = append(result.Missing, pair)
		}
	}

	sort.Slice(result.Pairs, func(i, j int) bool { return result.Pairs[i].Stem < result.Pairs[j].Stem })
	sort.Slice(result.Missing, func(i, j int) bool { return result.Missing[i].Stem < result.Missing[j].Stem })
	sort.Slice(result.Duplicates, func(i, j int) bool { return result.Duplicates[i].MetaPath < result.Duplicates[j].MetaPath })
	return result, nil
}

// resolveRoot validates the scan root and returns its absolute path. It
// returns "" without error when the root is a symlink skipped by policy.
func resolveRoot(directory string, opts ScanOptions) (string, error) {
	info, err := os.Lstat(directory)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &ScanError{Type: DirectoryNotFound, Path: directory, Err: err}
		}
		if os.IsPermission(err) {
			return "", &ScanError{Type: PermissionDenied, Path: directory, Err: err}
		}
		return "", err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		switch opts.SymlinkPolicy {
		case SymlinkPolicyError:
			return "", &ScanError{
				Type: SymlinkError,
				Path: directory,
				Err:  errors.New("symlink encountered with error policy"),
			}
		case SymlinkPolicyFollow:
			if info, err = os.Stat(directory); err != nil {
				return "", err
			}
		default:
			return "", nil
		}
	}

	if !info.IsDir() {
		return "", &ScanError{
			Type: DirectoryNotFound,
			Path: directory,
			Err:  errors.New("path is not a directory"),
		}
	}

	abs, err := filepath.Abs(directory)
	if err != nil {
		return directory, nil
	}
	return abs, nil
}

// walk visits every regular file below directory up to opts.MaxDepth.
func walk(directory string, opts ScanOptions, depth int, visit func(path string)) error {
	entries, err := os.ReadDir(directory)
	if err != nil {
		if os.IsPermission(err) {
			return &ScanError{Type: PermissionDenied, Path: directory, Err: err}
		}
		return err
	}

	for _, entry := range entries {
		fullPath := filepath.Join(directory, entry.Name())

		info, err := os.Lstat(fullPath)
		if err != nil {
			continue
		}

		if info.Mode()&os.ModeSymlink != 0 {
			switch opts.SymlinkPolicy {
			case SymlinkPolicyError:
				return &ScanError{
					Type: SymlinkError,
					Path: fullPath,
					Err:  errors.New("symlink encountered with error policy"),
				}
			case SymlinkPolicyFollow:
				if info, err = os.Stat(fullPath); err != nil {
					continue // broken link
				}
			default:
				continue
			}
		}

		if info.IsDir() {
			if opts.MaxDepth == -1 || depth < opts.MaxDepth {
				if err := walk(fullPath, opts, depth+1, visit); err != nil {
					return err
				}
			}
			continue
		}

		if info.Mode().IsRegular() {
			visit(fullPath)
		}
	}
	return nil
}
