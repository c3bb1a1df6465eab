// Package extattr stores the writer names of a tagged video in a user
// extended attribute.
package extattr

import (
	"errors"
	"strings"
)

// Separator joins writer names in the attribute value.
const Separator = "; "

var (
	// ErrUnsupported is returned when the platform or filesystem has no user
	// extended attributes.
	ErrUnsupported = errors.New("extended attributes not supported")
	// ErrNotFound is returned by Writers when the attribute is absent.
	ErrNotFound = errors.New("extended attribute not set")
)

// JoinWriters returns the attribute value for names.
func JoinWriters(names []string) string {
	kept := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			kept = append(kept, n)
		}
	}
	return strings.Join(kept, Separator)
}

// SplitWriters parses an attribute value written by JoinWriters.
func SplitWriters(value string) []string {
	var names []string
	for _, n := range strings.Split(value, ";") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// SetWriters writes names to attr on path. An empty list is a no-op.
func SetWriters(path, attr string, names []string) error {
	value := JoinWriters(names)
	if value == "" {
		return nil
	}
	return set(path, attr, []byte(value))
}

// Writers reads the writer names stored in attr on path.
func Writers(path, attr string) ([]string, error) {
	data, err := get(path, attr)
	if err != nil {
		return nil, err
	}
	return SplitWriters(string(data)), nil
}

// Supported reports whether dir accepts user extended attributes by writing a
// test attribute to a scratch file.
func Supported(dir, attr string) bool {
	return trySet(dir, attr) == nil
}
