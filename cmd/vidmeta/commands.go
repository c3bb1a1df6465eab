package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"vidmeta/internal/audit"
	"vidmeta/internal/extattr"
	"vidmeta/internal/logging"
	"vidmeta/internal/orchestrator"
	"vidmeta/internal/output"
	"vidmeta/internal/prompt"
	"vidmeta/internal/scanner"
	"vidmeta/internal/tagger"
	"vidmeta/internal/watcher"
)

func planCmd(ctx context.Context, e *env, args []string) int {
	if err := applyPositional(e.cfg, args); err != nil {
		e.out.Error("vidmeta: %v", err)
		return exitUsage
	}
	if !e.validate() {
		return exitUsage
	}

	orch := orchestrator.New(e.cfg, orchestrator.Deps{Log: e.log})
	result, err := orch.Run(ctx, orchestrator.RunOptions{DryRun: true})
	if err != nil {
		e.out.Error("vidmeta: %v", err)
		return exitFailed
	}

	e.out.PlanTable(planRows(result.Plan))
	for _, skip := range result.Plan.Skips {
		e.out.Warn("skipped %s: %s", skip.Path, skip.Reason)
	}
	e.out.Summary(totals(result))
	return exitOK
}

func runCmd(ctx context.Context, e *env, args []string) int {
	if err := applyPositional(e.cfg, args); err != nil {
		e.out.Error("vidmeta: %v", err)
		return exitUsage
	}
	if !e.validate() {
		return exitUsage
	}

	orch, closeAudit, err := e.orchestrator()
	if err != nil {
		e.out.Error("vidmeta: %v", err)
		return exitFailed
	}
	defer closeAudit()

	result, err := orch.Run(ctx, orchestrator.RunOptions{RunType: audit.RunTypeTag})
	if result != nil {
		report(e, result)
	}
	if err != nil {
		e.out.Error("vidmeta: %v", err)
		return exitFailed
	}
	if result.HasErrors() || ctx.Err() != nil {
		return exitFailed
	}
	return exitOK
}

func watchCmd(ctx context.Context, e *env, args []string) int {
	if err := applyPositional(e.cfg, args); err != nil {
		e.out.Error("vidmeta: %v", err)
		return exitUsage
	}
	if !e.validate() {
		return exitUsage
	}

	orch, closeAudit, err := e.orchestrator()
	if err != nil {
		e.out.Error("vidmeta: %v", err)
		return exitFailed
	}
	defer closeAudit()

	handler := func(ctx context.Context) (watcher.CycleResult, error) {
		result, err := orch.Run(ctx, orchestrator.RunOptions{SkipUnchanged: true, RunType: audit.RunTypeWatch})
		if result == nil {
			return watcher.CycleResult{}, err
		}
		if result.Summary.Tagged > 0 || result.Summary.Failed > 0 {
			report(e, result)
		}
		return watcher.CycleResult{
			Tagged:  result.Summary.Tagged,
			Skipped: result.Summary.Skipped,
			Failed:  result.Summary.Failed,
		}, err
	}

	opts := watcher.Options{
		Debounce:        e.cfg.Debounce(),
		StableThreshold: e.cfg.StableThreshold(),
		IgnorePatterns:  e.cfg.Watch.IgnorePatterns,
		Extensions:      []string{scanner.MetaExtension, scanner.VideoExtension},
		Recursive:       e.cfg.Recursive,
	}
	w := watcher.New(opts, handler, logging.Component(e.log, "watcher"))
	if err := w.Start(ctx, []string{e.cfg.DefaultInputDir}); err != nil {
		e.out.Error("vidmeta: cannot watch %s: %v", e.cfg.DefaultInputDir, err)
		return exitFailed
	}
	e.out.Info("Watching %s (Ctrl+C to stop)", e.cfg.DefaultInputDir)
	w.Trigger()

	<-ctx.Done()
	summary := w.Stop()
	e.out.Info("Watched for %s: %d cycle(s), %d tagged, %d failed, %d cycle error(s)",
		summary.Duration.Round(time.Second), summary.Cycles, summary.Tagged, summary.Failed, summary.Errors)
	return exitOK
}

func historyCmd(ctx context.Context, e *env, args []string) int {
	runs, err := e.auditReader().ListRuns()
	if err != nil {
		e.out.Error("vidmeta: %v", err)
		return exitFailed
	}
	if len(runs) == 0 {
		e.out.Info("No runs recorded in %s", e.auditReader().LogPath())
		return exitOK
	}
	for _, r := range runs {
		line := fmt.Sprintf("%s  %-5s  %-11s  %s  tagged=%d skipped=%d errors=%d",
			r.RunID, r.RunType, r.Status, r.StartTime.Local().Format("2006-01-02 15:04:05"),
			r.Summary.Tagged, r.Summary.Skipped, r.Summary.Errors)
		if r.UndoTargetID != nil {
			line += "  undoes=" + string(*r.UndoTargetID)
		}
		e.out.Info("%s", line)
	}
	return exitOK
}

func undoCmd(ctx context.Context, e *env, args []string) int {
	if len(args) != 1 && !(len(args) == 2 && args[1] == "preview") {
		e.out.Error("usage: vidmeta undo <run-id|latest> [preview]")
		return exitUsage
	}
	target := args[0]
	reader := e.auditReader()

	runID := audit.RunID(target)
	if target == "latest" {
		latest, err := reader.GetLatestRun()
		if err != nil {
			e.out.Error("vidmeta: no run to undo: %v", err)
			return exitFailed
		}
		runID = latest.RunID
	}

	if len(args) == 2 {
		preview, err := audit.NewUndoEngine(reader, nil, version, e.machineID).PreviewUndo(runID)
		if err != nil {
			e.out.Error("vidmeta: %v", err)
			return exitFailed
		}
		for _, p := range preview {
			if p.WillRemove {
				e.out.Info("remove  %s", p.DestPath)
			} else {
				e.out.Info("keep    %s (%s)", p.DestPath, p.Reason)
			}
		}
		return exitOK
	}

	writer, err := audit.NewAuditWriter(e.cfg.Audit.LogDirectory)
	if err != nil {
		e.out.Error("vidmeta: %v", err)
		return exitFailed
	}
	defer writer.Close()

	result, err := audit.NewUndoEngine(reader, writer, version, e.machineID).UndoRun(runID)
	if err != nil {
		e.out.Error("vidmeta: %v", err)
		return exitFailed
	}
	for _, f := range result.FailureDetails {
		e.out.Warn("kept %s: %s", f.DestPath, f.Reason)
	}
	e.out.Info("Undid run %s: %d removed, %d kept", result.TargetRunID, result.Removed, result.Skipped)
	return exitOK
}

func checkCmd(ctx context.Context, e *env, args []string) int {
	if err := applyPositional(e.cfg, args); err != nil {
		e.out.Error("vidmeta: %v", err)
		return exitUsage
	}
	code := exitOK

	path, err := tagger.Find(e.cfg.FFmpegPath, e.cfg.CommonFFmpegPaths)
	if err != nil {
		e.out.Error("ffmpeg: %v", err)
		code = exitFailed
	} else {
		v, err := tagger.New(path, e.log).Version(ctx)
		if err != nil {
			e.out.Error("ffmpeg: %s: %v", path, err)
			code = exitFailed
		} else {
			e.out.Info("ffmpeg: %s (%s)", path, v)
		}
	}

	dir := existingDir(e.cfg.DefaultOutputDir)
	if extattr.Supported(dir, e.cfg.WriterAttribute) {
		e.out.Info("writer property: %s supported in %s", e.cfg.WriterAttribute, dir)
	} else {
		e.out.Warn("writer property: %s not supported in %s", e.cfg.WriterAttribute, dir)
	}

	if !e.validate() {
		code = exitFailed
	}

	e.out.Info("\nEffective configuration:")
	if err := toml.NewEncoder(e.stdout).Encode(e.cfg); err != nil {
		e.out.Error("vidmeta: %v", err)
		return exitFailed
	}
	return code
}

// orchestrator builds a tagging orchestrator. The returned func closes the
// audit log.
func (e *env) orchestrator() (*orchestrator.Orchestrator, func(), error) {
	path, err := tagger.Find(e.cfg.FFmpegPath, e.cfg.CommonFFmpegPaths)
	if err != nil {
		return nil, nil, err
	}
	e.log.Debug("using ffmpeg", zap.String("path", path))

	writer, err := e.auditWriter()
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open audit log: %w", err)
	}
	closeAudit := func() {
		if writer != nil {
			if err := writer.Close(); err != nil {
				e.log.Warn("closing audit log", zap.Error(err))
			}
		}
	}

	orch := orchestrator.New(e.cfg, orchestrator.Deps{
		Tagger:      tagger.New(path, logging.Component(e.log, "tagger")),
		AuditWriter: writer,
		AuditReader: e.auditReader(),
		Log:         e.log,
		Progress:    e.out,
		AppVersion:  version,
		MachineID:   e.machineID,
	})
	return orch, closeAudit, nil
}

func report(e *env, result *orchestrator.RunResult) {
	for _, r := range result.Results {
		switch {
		case r.Error != nil && r.Skipped:
			e.out.Warn("skipped %s: %s", r.SourcePath, r.SkipReason)
		case r.Error != nil:
			e.out.Error("failed %s: %v", r.SourcePath, r.Error)
		case r.Success:
			e.out.Verbose("%s -> %s", r.SourcePath, filepath.Base(r.DestinationPath))
			if r.Warning != nil {
				e.out.Warn("%s: writer property not set: %v", filepath.Base(r.DestinationPath), r.Warning)
			}
		}
	}
	e.out.Summary(totals(result))
	if result.RunID != "" {
		e.out.Verbose("run id: %s", result.RunID)
	}
}

func planRows(plan *orchestrator.PlanResult) []output.PlanRow {
	rows := make([]output.PlanRow, 0, len(plan.Entries))
	for _, entry := range plan.Entries {
		row := output.PlanRow{
			Source:      relTo(plan.InputDir, entry.SourcePath),
			Destination: filepath.Base(entry.Destination),
			Group:       entry.Assignment.GroupIndex,
			Version:     entry.Assignment.VersionIndex,
		}
		switch {
		case entry.IsDuplicate:
			row.Note = "renamed"
		case entry.Replaces:
			row.Note = "overwrite"
		}
		if entry.PromptForm == prompt.FormFallback {
			row.Note = joinNote(row.Note, "fallback key")
		}
		rows = append(rows, row)
	}
	return rows
}

func totals(result *orchestrator.RunResult) output.Totals {
	s := result.Summary
	return output.Totals{
		Tagged:   s.Tagged,
		Failed:   s.Failed,
		Skipped:  s.Skipped,
		Warnings: s.Warnings,
		Fallback: s.Fallback,
		Duration: s.Duration,
		DryRun:   result.DryRun,
	}
}

func joinNote(a, b string) string {
	if a == "" {
		return b
	}
	return a + ", " + b
}

func relTo(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil {
		return rel
	}
	return path
}

// existingDir returns dir, or its nearest existing ancestor.
func existingDir(dir string) string {
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

