package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// ErrRunNotFound is returned when a run ID does not appear in the log.
var ErrRunNotFound = errors.New("run not found")

// IntegrityStatus represents the result of a log integrity check.
type IntegrityStatus string

const (
	IntegrityOK      IntegrityStatus = "OK"
	IntegrityMissing IntegrityStatus = "MISSING"
	IntegrityCorrupt IntegrityStatus = "CORRUPT"
	IntegrityEmpty   IntegrityStatus = "EMPTY"
)

// LogIntegrityResult contains the result of a log integrity check.
type LogIntegrityResult struct {
	Status       IntegrityStatus
	FilePath     string
	TotalLines   int    // Number of valid lines in the file
	ErrorMessage string // Description of any error found
	ErrorLine    int    // Line number where error was found (0 if N/A)
}

// EventFilter defines criteria for filtering audit events.
type EventFilter struct {
	EventTypes []EventType     // empty = all types
	Status     OperationStatus // empty = all statuses
	StartTime  *time.Time
	EndTime    *time.Time
}

// AuditReader reads events back from the audit log.
type AuditReader struct {
	logDir string
}

// NewAuditReader creates a new AuditReader for the given log directory.
func NewAuditReader(logDir string) *AuditReader {
	return &AuditReader{logDir: logDir}
}

// LogPath returns the path of the audit log.
func (r *AuditReader) LogPath() string {
	return filepath.Join(r.logDir, LogFileName)
}

// ListRuns returns every run, oldest first.
func (r *AuditReader) ListRuns() ([]RunInfo, error) {
	events, err := r.readAllEvents()
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return extractRunInfos(events), nil
}

// GetRun returns all events of runID in log order.
func (r *AuditReader) GetRun(runID RunID) ([]AuditEvent, error) {
	events, err := r.readAllEvents()
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	var runEvents []AuditEvent
	for _, event := range events {
		if event.RunID == runID {
			runEvents = append(runEvents, event)
		}
	}
	if len(runEvents) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return runEvents, nil
}

// GetRunByID returns the RunInfo of runID.
func (r *AuditReader) GetRunByID(runID RunID) (*RunInfo, error) {
	runs, err := r.ListRuns()
	if err != nil {
		return nil, err
	}
	for i := range runs {
		if runs[i].RunID == runID {
			return &runs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
}

// GetLatestRun returns the most recent run of any type other than UNDO.
func (r *AuditReader) GetLatestRun() (*RunInfo, error) {
	runs, err := r.ListRuns()
	if err != nil {
		return nil, err
	}
	for i := len(runs) - 1; i >= 0; i-- {
		if runs[i].RunType != RunTypeUndo {
			return &runs[i], nil
		}
	}
	return nil, ErrRunNotFound
}

// FilterEvents returns the events of runID matching filter.
func (r *AuditReader) FilterEvents(runID RunID, filter EventFilter) ([]AuditEvent, error) {
	events, err := r.GetRun(runID)
	if err != nil {
		return nil, err
	}

	var filtered []AuditEvent
	for _, event := range events {
		if matchesFilter(event, filter) {
			filtered = append(filtered, event)
		}
	}
	return filtered, nil
}

// LatestOutputs returns, per destination path, the most recent TAGGED event
// that has not been undone since.
func (r *AuditReader) LatestOutputs() (map[string]AuditEvent, error) {
	events, err := r.readAllEvents()
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	outputs := make(map[string]AuditEvent)
	for _, event := range events {
		switch event.EventType {
		case EventTagged:
			outputs[event.DestinationPath] = event
		case EventUndoRemove:
			delete(outputs, event.DestinationPath)
		}
	}
	return outputs, nil
}

func matchesFilter(event AuditEvent, filter EventFilter) bool {
	if len(filter.EventTypes) > 0 {
		found := false
		for _, et := range filter.EventTypes {
			if event.EventType == et {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.Status != "" && event.Status != filter.Status {
		return false
	}
	if filter.StartTime != nil && event.Timestamp.Before(*filter.StartTime) {
		return false
	}
	if filter.EndTime != nil && event.Timestamp.After(*filter.EndTime) {
		return false
	}
	return true
}

// readAllEvents reads the log. A final line without a trailing newline is an
// interrupted write and is ignored; any other undecodable line is an error.
func (r *AuditReader) readAllEvents() ([]AuditEvent, error) {
	data, err := os.ReadFile(r.LogPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	lines := bytes.Split(data, []byte("\n"))
	events := make([]AuditEvent, 0, len(lines))
	for i, line := range lines {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		event, err := UnmarshalJSONLine(line)
		if err != nil {
			if i == len(lines)-1 {
				break
			}
			return nil, fmt.Errorf("failed to parse line %d: %w", i+1, err)
		}
		events = append(events, *event)
	}
	return events, nil
}

func extractRunInfos(events []AuditEvent) []RunInfo {
	runEvents := make(map[RunID][]AuditEvent)
	for _, event := range events {
		if event.RunID == "" {
			continue
		}
		runEvents[event.RunID] = append(runEvents[event.RunID], event)
	}

	runs := make([]RunInfo, 0, len(runEvents))
	for runID, events := range runEvents {
		runs = append(runs, buildRunInfo(runID, events))
	}

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartTime.Equal(runs[j].StartTime) {
			return runs[i].RunID < runs[j].RunID
		}
		return runs[i].StartTime.Before(runs[j].StartTime)
	})
	return runs
}

func buildRunInfo(runID RunID, events []AuditEvent) RunInfo {
	info := RunInfo{
		RunID:   runID,
		Status:  RunStatusInProgress,
		RunType: RunTypeTag,
	}

	var counted RunSummary
	ended := false
	for _, event := range events {
		switch event.EventType {
		case EventRunStart:
			info.StartTime = event.Timestamp
			info.AppVersion = event.Metadata["appVersion"]
			info.MachineID = event.Metadata["machineId"]
			if rt := event.Metadata["runType"]; rt != "" {
				info.RunType = RunType(rt)
			}
			if target := event.Metadata["undoTargetId"]; target != "" {
				id := RunID(target)
				info.UndoTargetID = &id
				info.RunType = RunTypeUndo
			}
		case EventRunEnd:
			end := event.Timestamp
			info.EndTime = &end
			ended = true
			if status := event.Metadata["status"]; status != "" {
				info.Status = RunStatus(status)
			}
			info.Summary = parseSummary(event.Metadata)
		case EventTagged, EventUndoRemove:
			counted.TotalFiles++
			counted.Tagged++
		case EventSkip, EventUndoSkip:
			counted.TotalFiles++
			counted.Skipped++
		case EventError:
			counted.TotalFiles++
			counted.Errors++
		case EventWriterWarning:
			counted.Warnings++
		}
	}

	if !ended {
		info.Summary = counted
	}
	return info
}

func parseSummary(meta map[string]string) RunSummary {
	atoi := func(key string) int {
		n, _ := strconv.Atoi(meta[key])
		return n
	}
	return RunSummary{
		TotalFiles: atoi("totalFiles"),
		Tagged:     atoi("tagged"),
		Skipped:    atoi("skipped"),
		Errors:     atoi("errors"),
		Warnings:   atoi("warnings"),
	}
}

// CheckLogIntegrity validates that every line of the log decodes and that the
// file ends with a newline.
func (r *AuditReader) CheckLogIntegrity() (*LogIntegrityResult, error) {
	path := r.LogPath()
	result := &LogIntegrityResult{FilePath: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		result.Status = IntegrityMissing
		result.ErrorMessage = "log file does not exist"
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}
	if len(data) == 0 {
		result.Status = IntegrityEmpty
		result.ErrorMessage = "log file is empty"
		return result, nil
	}

	for i, line := range bytes.Split(bytes.TrimSuffix(data, []byte("\n")), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var event AuditEvent
		if err := json.Unmarshal(line, &event); err != nil {
			result.Status = IntegrityCorrupt
			result.ErrorLine = i + 1
			result.ErrorMessage = fmt.Sprintf("failed to parse event at line %d: %v", i+1, err)
			return result, nil
		}
		result.TotalLines++
	}

	if data[len(data)-1] != '\n' {
		result.Status = IntegrityCorrupt
		result.ErrorLine = result.TotalLines
		result.ErrorMessage = "truncated last line: file does not end with newline"
		return result, nil
	}

	result.Status = IntegrityOK
	return result, nil
}
