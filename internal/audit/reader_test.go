package audit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRun(t *testing.T, w *AuditWriter, dests ...string) RunID {
	t.Helper()
	runID, err := w.StartRun(RunTypeTag, "1.0.0", "host", nil)
	require.NoError(t, err)
	for _, d := range dests {
		id, err := CaptureIdentity(d)
		require.NoError(t, err)
		require.NoError(t, w.RecordTagged("src/"+filepath.Base(d), d, id, nil))
	}
	require.NoError(t, w.EndRun(runID, RunStatusCompleted, RunSummary{TotalFiles: len(dests), Tagged: len(dests)}))
	return runID
}

func TestReaderListAndGetRuns(t *testing.T) {
	dir := t.TempDir()
	w, err := NewAuditWriter(dir)
	require.NoError(t, err)
	defer w.Close()

	out := t.TempDir()
	a := filepath.Join(out, "a.mp4")
	require.NoError(t, os.WriteFile(a, []byte("a"), 0644))

	first := writeRun(t, w, a)
	second := writeRun(t, w)

	r := NewAuditReader(dir)
	runs, err := r.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first, runs[0].RunID)
	assert.Equal(t, RunStatusCompleted, runs[0].Status)
	assert.Equal(t, 1, runs[0].Summary.Tagged)
	assert.Equal(t, RunTypeTag, runs[0].RunType)

	events, err := r.GetRun(first)
	require.NoError(t, err)
	assert.Len(t, events, 3)

	latest, err := r.GetLatestRun()
	require.NoError(t, err)
	assert.Equal(t, second, latest.RunID)

	_, err = r.GetRun("nope")
	assert.ErrorIs(t, err, ErrRunNotFound)

	tagged, err := r.FilterEvents(first, EventFilter{EventTypes: []EventType{EventTagged}})
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, a, tagged[0].DestinationPath)
}

func TestReaderInProgressRunCountsEvents(t *testing.T) {
	dir := t.TempDir()
	w, err := NewAuditWriter(dir)
	require.NoError(t, err)
	defer w.Close()

	runID, err := w.StartRun(RunTypeWatch, "1.0.0", "host", nil)
	require.NoError(t, err)
	require.NoError(t, w.RecordSkip("x.json", ReasonInvalidJSON, ""))

	info, err := NewAuditReader(dir).GetRunByID(runID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusInProgress, info.Status)
	assert.Equal(t, RunTypeWatch, info.RunType)
	assert.Equal(t, 1, info.Summary.Skipped)
	assert.Nil(t, info.EndTime)
}

func TestReaderMissingLog(t *testing.T) {
	r := NewAuditReader(t.TempDir())
	runs, err := r.ListRuns()
	require.NoError(t, err)
	assert.Empty(t, runs)

	result, err := r.CheckLogIntegrity()
	require.NoError(t, err)
	assert.Equal(t, IntegrityMissing, result.Status)
}

func TestReaderToleratesTruncatedLastLine(t *testing.T) {
	dir := t.TempDir()
	w, err := NewAuditWriter(dir)
	require.NoError(t, err)
	writeRun(t, w)
	require.NoError(t, w.Close())

	f, err := os.OpenFile(w.LogPath(), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"timestamp":"2025-`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	r := NewAuditReader(dir)
	runs, err := r.ListRuns()
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	result, err := r.CheckLogIntegrity()
	require.NoError(t, err)
	assert.Equal(t, IntegrityCorrupt, result.Status)
}

func TestReaderRejectsInteriorCorruption(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, LogFileName)
	require.NoError(t, os.WriteFile(path, []byte("not json\n{}\n"), 0644))

	_, err := NewAuditReader(dir).ListRuns()
	assert.Error(t, err)

	result, err := NewAuditReader(dir).CheckLogIntegrity()
	require.NoError(t, err)
	assert.Equal(t, IntegrityCorrupt, result.Status)
	assert.Equal(t, 1, result.ErrorLine)
}

func TestLatestOutputs(t *testing.T) {
	dir := t.TempDir()
	w, err := NewAuditWriter(dir)
	require.NoError(t, err)
	defer w.Close()

	out := t.TempDir()
	a := filepath.Join(out, "a.mp4")
	b := filepath.Join(out, "b.mp4")
	require.NoError(t, os.WriteFile(a, []byte("a"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("b"), 0644))

	writeRun(t, w, a, b)
	second := writeRun(t, w, a)

	runID, err := w.StartUndoRun("1.0.0", "host", second)
	require.NoError(t, err)
	require.NoError(t, w.RecordUndoRemove("", b, nil))
	require.NoError(t, w.EndRun(runID, RunStatusCompleted, RunSummary{}))

	outputs, err := NewAuditReader(dir).LatestOutputs()
	require.NoError(t, err)
	require.Contains(t, outputs, a)
	assert.Equal(t, second, outputs[a].RunID)
	assert.NotContains(t, outputs, b)
}
