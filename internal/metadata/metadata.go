// Package metadata reads download sidecars into records for the grouping engine.
package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"vidmeta/internal/prompt"
	"vidmeta/internal/scanner"
)

// ReadErrorType represents the type of sidecar read error.
type ReadErrorType string

const (
	ReadFailed  ReadErrorType = "READ_FAILED"
	InvalidJSON ReadErrorType = "INVALID_JSON"
)

// ReadError represents a sidecar that could not be turned into a Record.
type ReadError struct {
	Type ReadErrorType
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	switch e.Type {
	case InvalidJSON:
		return fmt.Sprintf("invalid JSON in %s: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("failed to read %s: %v", e.Path, e.Err)
	}
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// SkipReason explains why a sidecar produced no record.
type SkipReason string

const (
	ReasonMissingVideo  SkipReason = "MISSING_VIDEO"
	ReasonInvalidJSON   SkipReason = "INVALID_JSON"
	ReasonReadFailed    SkipReason = "READ_FAILED"
	ReasonDuplicateStem SkipReason = "DUPLICATE_STEM" // another sidecar claimed the stem
)

// Skip is a sidecar excluded from the batch.
type Skip struct {
	Stem   string
	Path   string
	Reason SkipReason
	Err    error
}

// Record is the immutable view of one asset's sidecar.
type Record struct {
	Identity         string          // Stem of the pair, unique within a batch
	RawReference     string          // metadata.url
	OriginalPrompt   json.RawMessage // original_prompt, as written
	StructuredPrompt json.RawMessage // structured_prompt, as written
	TimestampText    string          // metadata.download_time
	VideoID          string          // metadata.video_id
	VideoQuality     string          // metadata.video_quality
	MetaPath         string
	VideoPath        string
}

// sidecar mirrors the JSON written by the downloader.
type sidecar struct {
	StructuredPrompt json.RawMessage `json:"structured_prompt"`
	OriginalPrompt   json.RawMessage `json:"original_prompt"`
	Metadata         *struct {
		URL          json.RawMessage `json:"url"`
		DownloadTime json.RawMessage `json:"download_time"`
		VideoID      json.RawMessage `json:"video_id"`
		VideoQuality json.RawMessage `json:"video_quality"`
	} `json:"metadata"`
}

// Read loads the sidecar of a scanned pair.
func Read(pair scanner.Pair) (*Record, error) {
	data, err := os.ReadFile(pair.MetaPath)
	if err != nil {
		return nil, &ReadError{Type: ReadFailed, Path: pair.MetaPath, Err: err}
	}
	return Parse(pair, data)
}

// Parse decodes sidecar bytes for pair. The root must be a JSON object and
// "metadata", when present, must be an object or null.
func Parse(pair scanner.Pair, data []byte) (*Record, error) {
	var sc sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, &ReadError{Type: InvalidJSON, Path: pair.MetaPath, Err: err}
	}
	if root := bytes.TrimSpace(data); len(root) == 0 || root[0] != '{' {
		return nil, &ReadError{Type: InvalidJSON, Path: pair.MetaPath, Err: errors.New("root is not an object")}
	}

	rec := &Record{
		Identity:         pair.Stem,
		OriginalPrompt:   sc.OriginalPrompt,
		StructuredPrompt: sc.StructuredPrompt,
		MetaPath:         pair.MetaPath,
		VideoPath:        pair.VideoPath,
	}
	if sc.Metadata != nil {
		rec.RawReference = stringValue(sc.Metadata.URL)
		rec.TimestampText = stringValue(sc.Metadata.DownloadTime)
		rec.VideoID = stringValue(sc.Metadata.VideoID)
		rec.VideoQuality = stringValue(sc.Metadata.VideoQuality)
	}
	return rec, nil
}

// ReadBatch reads every pair of a scan. Sidecars without a video and sidecars
// that fail to read or decode are returned as skips; they never reach the
// grouping engine.
func ReadBatch(scan *scanner.PairScan) ([]Record, []Skip) {
	records := make([]Record, 0, len(scan.Pairs))
	var skips []Skip

	for _, missing := range scan.Missing {
		skips = append(skips, Skip{
			Stem:   missing.Stem,
			Path:   missing.MetaPath,
			Reason: ReasonMissingVideo,
			Err:    fmt.Errorf("video not found: %s", missing.VideoPath),
		})
	}

	for _, dup := range scan.Duplicates {
		skips = append(skips, Skip{
			Stem:   dup.Stem,
			Path:   dup.MetaPath,
			Reason: ReasonDuplicateStem,
			Err:    fmt.Errorf("another sidecar already provides %s", dup.Stem),
		})
	}

	for _, pair := range scan.Pairs {
		rec, err := Read(pair)
		if err != nil {
			reason := ReasonReadFailed
			var readErr *ReadError
			if errors.As(err, &readErr) && readErr.Type == InvalidJSON {
				reason = ReasonInvalidJSON
			}
			skips = append(skips, Skip{Stem: pair.Stem, Path: pair.MetaPath, Reason: reason, Err: err})
			continue
		}
		records = append(records, *rec)
	}

	return records, skips
}

// PromptKey resolves the record's logical prompt.
func (r Record) PromptKey() prompt.Resolution {
	return prompt.Resolve(r.OriginalPrompt, r.StructuredPrompt)
}

// CommentTag is the container comment: the compact structured prompt.
func (r Record) CommentTag() string {
	s, err := prompt.Compact(r.StructuredPrompt)
	if err != nil {
		return string(bytes.TrimSpace(r.StructuredPrompt))
	}
	return s
}

// TitleTag is the container title: the original prompt.
func (r Record) TitleTag() string {
	return prompt.Original(r.OriginalPrompt)
}

// GenreTag is the container genre: the raw reference URL.
func (r Record) GenreTag() string {
	return r.RawReference
}

// stringValue returns a JSON string's value, or "" for any other value.
func stringValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
