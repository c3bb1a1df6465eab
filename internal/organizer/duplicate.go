package organizer

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

// duplicatePattern matches names carrying a _duplicate or _duplicate_N suffix
// before the extension.
var duplicatePattern = regexp.MustCompile(`^(.+)_duplicate(?:_(\d+))?(\.[^.]+)?$`)

// FileExists checks if a file exists at the given path.
func FileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// GenerateDuplicateName returns filename if it is free in destDir, otherwise
// the first free name in the sequence _duplicate, _duplicate_2, _duplicate_3...
// A name that already carries a suffix continues its own sequence.
//
//	grok_video_P1_v1.mp4           -> grok_video_P1_v1_duplicate.mp4
//	grok_video_P1_v1_duplicate.mp4 -> grok_video_P1_v1_duplicate_2.mp4
func GenerateDuplicateName(destDir, filename string) string {
	if !FileExists(filepath.Join(destDir, filename)) {
		return filename
	}

	ext := filepath.Ext(filename)
	base := filename[:len(filename)-len(ext)]
	next := 1
	if m := duplicatePattern.FindStringSubmatch(filename); m != nil {
		base, ext = m[1], m[3]
		next = 2
		if m[2] != "" {
			n, _ := strconv.Atoi(m[2])
			next = n + 1
		}
	}

	for n := next; ; n++ {
		candidate := base + "_duplicate" + ext
		if n > 1 {
			candidate = base + "_duplicate_" + strconv.Itoa(n) + ext
		}
		if !FileExists(filepath.Join(destDir, candidate)) {
			return candidate
		}
	}
}
