// Package audit keeps an append-only JSON Lines record of every tagging run,
// so runs can be listed, inspected and undone.
package audit

import "time"

// RunID is a unique identifier for each program execution (UUID v4).
type RunID string

// EventType represents the type of audit event.
type EventType string

const (
	// Run lifecycle events
	EventRunStart EventType = "RUN_START"
	EventRunEnd   EventType = "RUN_END"

	// File events
	EventTagged        EventType = "TAGGED"
	EventSkip          EventType = "SKIP"
	EventError         EventType = "ERROR"
	EventWriterWarning EventType = "WRITER_WARNING"

	// Undo events
	EventUndoRemove EventType = "UNDO_REMOVE"
	EventUndoSkip   EventType = "UNDO_SKIP"

	// System events
	EventLogInitialized EventType = "LOG_INITIALIZED"
)

// OperationStatus represents the outcome of an operation.
type OperationStatus string

const (
	StatusSuccess OperationStatus = "SUCCESS"
	StatusFailure OperationStatus = "FAILURE"
	StatusSkipped OperationStatus = "SKIPPED"
)

// ReasonCode provides the detailed reason for a skip or warning.
type ReasonCode string

const (
	// Skip reasons
	ReasonMissingVideo  ReasonCode = "MISSING_VIDEO"
	ReasonInvalidJSON   ReasonCode = "INVALID_JSON"
	ReasonReadFailed    ReasonCode = "READ_FAILED"
	ReasonDuplicateStem ReasonCode = "DUPLICATE_STEM"
	ReasonUnchanged     ReasonCode = "UNCHANGED"

	// Writer property reasons
	ReasonXattrUnsupported ReasonCode = "XATTR_UNSUPPORTED"
	ReasonXattrFailed      ReasonCode = "XATTR_FAILED"

	// Undo skip reasons
	ReasonIdentityMismatch     ReasonCode = "IDENTITY_MISMATCH"
	ReasonOutputMissing        ReasonCode = "OUTPUT_MISSING"
	ReasonConflictWithLaterRun ReasonCode = "CONFLICT_WITH_LATER_RUN"
)

// RunStatus represents the status of a run.
type RunStatus string

const (
	RunStatusInProgress  RunStatus = "IN_PROGRESS"
	RunStatusCompleted   RunStatus = "COMPLETED"
	RunStatusFailed      RunStatus = "FAILED"
	RunStatusInterrupted RunStatus = "INTERRUPTED"
)

// RunType represents the type of run.
type RunType string

const (
	RunTypeTag   RunType = "TAG"
	RunTypeWatch RunType = "WATCH"
	RunTypeUndo  RunType = "UNDO"
)

// Metadata keys written on TAGGED events.
const (
	MetaIdentity    = "identity"
	MetaGroup       = "group"
	MetaVersion     = "version"
	MetaPromptForm  = "promptForm"
	MetaSourceHash  = "sourceHash"
	MetaSidecarHash = "sidecarHash"
)

// FileIdentity captures the attributes used to recognise a file later.
type FileIdentity struct {
	ContentHash string    `json:"contentHash"` // SHA-256 hex string
	Size        int64     `json:"size"`        // File size in bytes
	ModTime     time.Time `json:"modTime"`     // File modification timestamp
}

// ErrorDetails contains detailed information about an error.
type ErrorDetails struct {
	ErrorType    string `json:"errorType"`
	ErrorMessage string `json:"errorMessage"`
	Operation    string `json:"operation"`
}

// AuditEvent represents a single audit record.
type AuditEvent struct {
	Timestamp       time.Time         `json:"timestamp"`
	RunID           RunID             `json:"runId"`
	EventType       EventType         `json:"eventType"`
	Status          OperationStatus   `json:"status"`
	SourcePath      string            `json:"sourcePath,omitempty"`
	DestinationPath string            `json:"destinationPath,omitempty"`
	ReasonCode      ReasonCode        `json:"reasonCode,omitempty"`
	FileIdentity    *FileIdentity     `json:"fileIdentity,omitempty"` // identity of the written output
	ErrorDetails    *ErrorDetails     `json:"errorDetails,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// RunSummary contains statistics for a completed run.
type RunSummary struct {
	TotalFiles int `json:"totalFiles"`
	Tagged     int `json:"tagged"`
	Skipped    int `json:"skipped"`
	Errors     int `json:"errors"`
	Warnings   int `json:"warnings"`
}

// RunInfo contains metadata and summary for a run.
type RunInfo struct {
	RunID        RunID      `json:"runId"`
	StartTime    time.Time  `json:"startTime"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	Status       RunStatus  `json:"status"`
	RunType      RunType    `json:"runType"`
	AppVersion   string     `json:"appVersion"`
	MachineID    string     `json:"machineId"`
	Summary      RunSummary `json:"summary"`
	UndoTargetID *RunID     `json:"undoTargetId,omitempty"` // For UNDO runs
}

// LogFileName is the name of the audit log inside the log directory.
const LogFileName = "vidmeta-audit.jsonl"
