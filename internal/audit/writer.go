package audit

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNoActiveRun is returned by the Record methods before StartRun.
var ErrNoActiveRun = errors.New("no active run: call StartRun first")

// AuditWriter appends events to the audit log. Every event is flushed and
// synced before the call returns.
type AuditWriter struct {
	mu         sync.Mutex
	file       *os.File
	writer     *bufio.Writer
	logPath    string
	currentRun *RunID
	now        func() time.Time
}

// NewAuditWriter opens (or creates) the log in logDir. A new log starts with a
// LOG_INITIALIZED event.
func NewAuditWriter(logDir string) (*AuditWriter, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, LogFileName)
	_, statErr := os.Stat(logPath)
	isNewLog := os.IsNotExist(statErr)

	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	w := &AuditWriter{
		file:    file,
		writer:  bufio.NewWriter(file),
		logPath: logPath,
		now:     func() time.Time { return time.Now().UTC() },
	}

	if isNewLog {
		err := w.writeEventLocked(AuditEvent{
			Timestamp: w.now(),
			EventType: EventLogInitialized,
			Status:    StatusSuccess,
			Metadata:  map[string]string{"logPath": logPath},
		})
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write LOG_INITIALIZED event: %w", err)
		}
	}

	return w, nil
}

// GenerateRunID returns a new UUID v4 run ID.
func GenerateRunID() RunID {
	return RunID(uuid.NewString())
}

// StartRun begins a run of runType and writes its RUN_START event. extra is
// merged into the event metadata.
func (w *AuditWriter) StartRun(runType RunType, appVersion, machineID string, extra map[string]string) (RunID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	runID := GenerateRunID()
	meta := map[string]string{
		"appVersion": appVersion,
		"machineId":  machineID,
		"runType":    string(runType),
	}
	for k, v := range extra {
		meta[k] = v
	}

	event := AuditEvent{
		Timestamp: w.now(),
		RunID:     runID,
		EventType: EventRunStart,
		Status:    StatusSuccess,
		Metadata:  meta,
	}
	if err := w.writeEventLocked(event); err != nil {
		return "", fmt.Errorf("failed to write RUN_START event: %w", err)
	}

	w.currentRun = &runID
	return runID, nil
}

// StartUndoRun begins an UNDO run targeting target.
func (w *AuditWriter) StartUndoRun(appVersion, machineID string, target RunID) (RunID, error) {
	return w.StartRun(RunTypeUndo, appVersion, machineID, map[string]string{"undoTargetId": string(target)})
}

// WriteEvent writes a single audit event to the log.
func (w *AuditWriter) WriteEvent(event AuditEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeEventLocked(event)
}

func (w *AuditWriter) writeEventLocked(event AuditEvent) error {
	data, err := event.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := w.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush event: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync event to disk: %w", err)
	}
	return nil
}

// record stamps event with the current run and time and writes it.
func (w *AuditWriter) record(event AuditEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentRun == nil {
		return ErrNoActiveRun
	}
	event.Timestamp = w.now()
	event.RunID = *w.currentRun
	return w.writeEventLocked(event)
}

// EndRun records the run completion status and summary.
func (w *AuditWriter) EndRun(runID RunID, status RunStatus, summary RunSummary) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	event := AuditEvent{
		Timestamp: w.now(),
		RunID:     runID,
		EventType: EventRunEnd,
		Status:    runStatusToOperationStatus(status),
		Metadata: map[string]string{
			"status":     string(status),
			"totalFiles": strconv.Itoa(summary.TotalFiles),
			"tagged":     strconv.Itoa(summary.Tagged),
			"skipped":    strconv.Itoa(summary.Skipped),
			"errors":     strconv.Itoa(summary.Errors),
			"warnings":   strconv.Itoa(summary.Warnings),
		},
	}
	if err := w.writeEventLocked(event); err != nil {
		return fmt.Errorf("failed to write RUN_END event: %w", err)
	}

	w.currentRun = nil
	return nil
}

func runStatusToOperationStatus(status RunStatus) OperationStatus {
	switch status {
	case RunStatusFailed, RunStatusInterrupted:
		return StatusFailure
	default:
		return StatusSuccess
	}
}

// Close flushes any buffered data and closes the audit log file.
func (w *AuditWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close audit log: %w", err)
	}
	return nil
}

// CurrentRunID returns the current run ID, or nil if no run is active.
func (w *AuditWriter) CurrentRunID() *RunID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currentRun
}

// LogPath returns the path to the audit log file.
func (w *AuditWriter) LogPath() string {
	return w.logPath
}

// RecordTagged records a TAGGED event for a written output.
func (w *AuditWriter) RecordTagged(source, dest string, output *FileIdentity, meta map[string]string) error {
	return w.record(AuditEvent{
		EventType:       EventTagged,
		Status:          StatusSuccess,
		SourcePath:      source,
		DestinationPath: dest,
		FileIdentity:    output,
		Metadata:        meta,
	})
}

// RecordSkip records a SKIP event.
func (w *AuditWriter) RecordSkip(source string, reason ReasonCode, message string) error {
	var meta map[string]string
	if message != "" {
		meta = map[string]string{"message": message}
	}
	return w.record(AuditEvent{
		EventType:  EventSkip,
		Status:     StatusSkipped,
		SourcePath: source,
		ReasonCode: reason,
		Metadata:   meta,
	})
}

// RecordError records an ERROR event for a file that failed.
func (w *AuditWriter) RecordError(source, dest, errType, errMsg, operation string) error {
	return w.record(AuditEvent{
		EventType:       EventError,
		Status:          StatusFailure,
		SourcePath:      source,
		DestinationPath: dest,
		ErrorDetails: &ErrorDetails{
			ErrorType:    errType,
			ErrorMessage: errMsg,
			Operation:    operation,
		},
	})
}

// RecordWriterWarning records a WRITER_WARNING event when the writer property
// could not be set on an output that was otherwise written.
func (w *AuditWriter) RecordWriterWarning(dest string, reason ReasonCode, message string) error {
	return w.record(AuditEvent{
		EventType:       EventWriterWarning,
		Status:          StatusSuccess,
		DestinationPath: dest,
		ReasonCode:      reason,
		Metadata:        map[string]string{"message": message},
	})
}

// RecordUndoRemove records an UNDO_REMOVE event for a removed output.
func (w *AuditWriter) RecordUndoRemove(source, dest string, identity *FileIdentity) error {
	return w.record(AuditEvent{
		EventType:       EventUndoRemove,
		Status:          StatusSuccess,
		SourcePath:      source,
		DestinationPath: dest,
		FileIdentity:    identity,
	})
}

// RecordUndoSkip records an UNDO_SKIP event for an output left in place.
func (w *AuditWriter) RecordUndoSkip(source, dest string, reason ReasonCode, message string) error {
	return w.record(AuditEvent{
		EventType:       EventUndoSkip,
		Status:          StatusSkipped,
		SourcePath:      source,
		DestinationPath: dest,
		ReasonCode:      reason,
		Metadata:        map[string]string{"message": message},
	})
}
