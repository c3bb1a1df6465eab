// Package identifier extracts the grouping identifier from a generation's reference URL.
package identifier

import "regexp"

// Blank is the partition key used for records without an identifier.
const Blank = "_blank_"

// postPattern captures the hex-and-hyphen segment after a "post" path component,
// e.g. https://grok.com/imagine/post/fa3f4731-15e3-4a53-ac93-2b2810a2c910.
var postPattern = regexp.MustCompile(`/post/([a-f0-9-]+)`)

// Extract returns the identifier found in rawReference, truncated to maxLength
// bytes when maxLength is positive. It returns "" when rawReference is empty or
// contains no post segment; a missing identifier is not an error.
func Extract(rawReference string, maxLength int) string {
	if rawReference == "" {
		return ""
	}

	m := postPattern.FindStringSubmatch(rawReference)
	if m == nil {
		return ""
	}

	id := m[1]
	if maxLength > 0 && len(id) > maxLength {
		id = id[:maxLength]
	}
	return id
}

// GroupKey maps an extracted identifier to its partition key.
func GroupKey(id string) string {
	if id == "" {
		return Blank
	}
	return id
}
