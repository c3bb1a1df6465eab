package audit

import (
	"errors"
	"fmt"
	"os"
)

// ErrUndoOfUndo is returned when asked to undo an UNDO run.
var ErrUndoOfUndo = errors.New("cannot undo an UNDO run")

// UndoResult contains the result of an undo operation.
type UndoResult struct {
	UndoRunID      RunID       // The run ID of the undo operation itself
	TargetRunID    RunID       // The run ID that was undone
	TotalEvents    int         // TAGGED events considered
	Removed        int         // Outputs removed
	Skipped        int         // Outputs left in place
	FailureDetails []UndoError // Why each skipped output was kept
}

// UndoError describes an output that was not removed.
type UndoError struct {
	SourcePath string
	DestPath   string
	Reason     ReasonCode
	Message    string
}

// UndoPreviewEvent is one output an undo would consider.
type UndoPreviewEvent struct {
	SourcePath string
	DestPath   string
	WillRemove bool
	Reason     ReasonCode // set when WillRemove is false
}

// UndoEngine removes the outputs written by a run. Only outputs whose content
// still matches the recorded identity are removed; sources are never touched.
type UndoEngine struct {
	reader     *AuditReader
	writer     *AuditWriter
	appVersion string
	machineID  string
}

// NewUndoEngine creates a new UndoEngine with the given reader and writer.
func NewUndoEngine(reader *AuditReader, writer *AuditWriter, appVersion, machineID string) *UndoEngine {
	return &UndoEngine{
		reader:     reader,
		writer:     writer,
		appVersion: appVersion,
		machineID:  machineID,
	}
}

// UndoLatest undoes the most recent non-undo run.
func (e *UndoEngine) UndoLatest() (*UndoResult, error) {
	latest, err := e.reader.GetLatestRun()
	if err != nil {
		return nil, err
	}
	return e.UndoRun(latest.RunID)
}

// UndoRun removes the outputs of runID, newest first, recording the outcome
// of each as an UNDO run.
func (e *UndoEngine) UndoRun(runID RunID) (*UndoResult, error) {
	plan, err := e.plan(runID)
	if err != nil {
		return nil, err
	}

	undoRunID, err := e.writer.StartUndoRun(e.appVersion, e.machineID, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to start undo run: %w", err)
	}

	result := &UndoResult{UndoRunID: undoRunID, TargetRunID: runID, TotalEvents: len(plan)}
	for _, step := range plan {
		if step.preview.WillRemove {
			if err := os.Remove(step.preview.DestPath); err != nil && !os.IsNotExist(err) {
				step.preview.WillRemove = false
				step.preview.Reason = ReasonOutputMissing
				step.message = err.Error()
			}
		}

		if step.preview.WillRemove {
			result.Removed++
			if err := e.writer.RecordUndoRemove(step.preview.SourcePath, step.preview.DestPath, step.identity); err != nil {
				return result, err
			}
			continue
		}

		result.Skipped++
		result.FailureDetails = append(result.FailureDetails, UndoError{
			SourcePath: step.preview.SourcePath,
			DestPath:   step.preview.DestPath,
			Reason:     step.preview.Reason,
			Message:    step.message,
		})
		if err := e.writer.RecordUndoSkip(step.preview.SourcePath, step.preview.DestPath, step.preview.Reason, step.message); err != nil {
			return result, err
		}
	}

	status := RunStatusCompleted
	if result.Skipped > 0 && result.Removed == 0 {
		status = RunStatusFailed
	}
	summary := RunSummary{
		TotalFiles: result.TotalEvents,
		Tagged:     result.Removed,
		Skipped:    result.Skipped,
	}
	if err := e.writer.EndRun(undoRunID, status, summary); err != nil {
		return result, fmt.Errorf("failed to end undo run: %w", err)
	}
	return result, nil
}

// PreviewUndo reports what UndoRun would do without touching any file.
func (e *UndoEngine) PreviewUndo(runID RunID) ([]UndoPreviewEvent, error) {
	plan, err := e.plan(runID)
	if err != nil {
		return nil, err
	}
	out := make([]UndoPreviewEvent, len(plan))
	for i, step := range plan {
		out[i] = step.preview
	}
	return out, nil
}

type undoStep struct {
	preview  UndoPreviewEvent
	identity *FileIdentity
	message  string
}

func (e *UndoEngine) plan(runID RunID) ([]undoStep, error) {
	info, err := e.reader.GetRunByID(runID)
	if err != nil {
		return nil, err
	}
	if info.RunType == RunTypeUndo {
		return nil, ErrUndoOfUndo
	}

	all, err := e.reader.readAllEvents()
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	// Outputs rewritten by a later run belong to that run.
	laterWriter := make(map[string]RunID)
	var tagged []AuditEvent
	for _, event := range all {
		if event.EventType != EventTagged {
			continue
		}
		if event.RunID == runID {
			tagged = append(tagged, event)
		} else if !event.Timestamp.Before(info.StartTime) {
			laterWriter[event.DestinationPath] = event.RunID
		}
	}

	steps := make([]undoStep, 0, len(tagged))
	for i := len(tagged) - 1; i >= 0; i-- {
		event := tagged[i]
		step := undoStep{
			preview: UndoPreviewEvent{
				SourcePath: event.SourcePath,
				DestPath:   event.DestinationPath,
			},
			identity: event.FileIdentity,
		}

		switch {
		case laterWriter[event.DestinationPath] != "":
			step.preview.Reason = ReasonConflictWithLaterRun
			step.message = fmt.Sprintf("output was rewritten by run %s", laterWriter[event.DestinationPath])
		case event.FileIdentity == nil:
			step.preview.Reason = ReasonIdentityMismatch
			step.message = "no identity recorded for output"
		default:
			match, err := VerifyIdentity(event.DestinationPath, *event.FileIdentity)
			switch {
			case err != nil:
				step.preview.Reason = ReasonIdentityMismatch
				step.message = err.Error()
			case match == IdentityNotFound:
				step.preview.Reason = ReasonOutputMissing
				step.message = "output no longer exists"
			case match != IdentityMatches:
				step.preview.Reason = ReasonIdentityMismatch
				step.message = "output changed since it was written"
			default:
				step.preview.WillRemove = true
			}
		}
		steps = append(steps, step)
	}
	return steps, nil
}
