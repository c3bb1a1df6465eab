// Package naming builds output filenames from grouping assignments.
package naming

import (
	"strconv"
	"strings"
)

// Default naming settings, matching the downloader's own file prefix.
const (
	DefaultPrefix    = "grok_video"
	DefaultSeparator = "_"
	DefaultExtension = ".mp4"
)

// Options is the immutable naming configuration shared by the grouping engine
// and Synthesize.
type Options struct {
	Prefix        string
	Separator     string
	Extension     string // including the leading dot
	UUIDMaxLength int    // 0 = no truncation
}

// DefaultOptions returns Options with the default prefix, separator and extension.
func DefaultOptions() Options {
	return Options{
		Prefix:    DefaultPrefix,
		Separator: DefaultSeparator,
		Extension: DefaultExtension,
	}
}

// Synthesize returns the output filename for an assignment:
//
//	<prefix><sep><identifier><sep>P<group><sep>v<version><ext>
//
// When identifier is empty its segment is omitted entirely.
func Synthesize(identifier string, groupIndex, versionIndex int, opts Options) string {
	var b strings.Builder
	b.WriteString(opts.Prefix)
	if identifier != "" {
		b.WriteString(opts.Separator)
		b.WriteString(identifier)
	}
	b.WriteString(opts.Separator)
	b.WriteString("P")
	b.WriteString(strconv.Itoa(groupIndex))
	b.WriteString(opts.Separator)
	b.WriteString("v")
	b.WriteString(strconv.Itoa(versionIndex))
	b.WriteString(opts.Extension)
	return b.String()
}
