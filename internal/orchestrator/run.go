package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"vidmeta/internal/audit"
	"vidmeta/internal/extattr"
	"vidmeta/internal/metadata"
	"vidmeta/internal/organizer"
	"vidmeta/internal/tagger"
)

// Run plans the batch and, unless opts.DryRun, tags every entry into the
// output directory. Per-asset failures are reported in the results and never
// stop the batch; a failed audit write does, with ErrAuditWrite.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	start := time.Now()

	plan, err := o.Plan(ctx)
	if err != nil {
		return nil, err
	}

	result := &RunResult{Plan: plan, DryRun: opts.DryRun}
	if opts.DryRun {
		for _, e := range plan.Entries {
			result.Results = append(result.Results, Result{
				Identity:        e.Identity,
				SourcePath:      e.SourcePath,
				DestinationPath: e.Destination,
				Assignment:      e.Assignment,
				Success:         true,
			})
		}
		result.Summary = GenerateSummary(result, time.Since(start))
		return result, nil
	}

	if opts.RunType == "" {
		opts.RunType = audit.RunTypeTag
	}
	if o.auditing() {
		runID, err := o.deps.AuditWriter.StartRun(opts.RunType, o.deps.AppVersion, o.deps.MachineID, map[string]string{
			"inputDir":  plan.InputDir,
			"outputDir": plan.OutputDir,
		})
		if err != nil {
			return nil, auditErr(err)
		}
		result.RunID = runID
	}

	runErr := o.execute(ctx, plan, opts, result)

	result.Summary = GenerateSummary(result, time.Since(start))
	if o.auditing() {
		status := audit.RunStatusCompleted
		switch {
		case errors.Is(runErr, ErrAuditWrite):
			status = audit.RunStatusFailed
		case ctx.Err() != nil:
			status = audit.RunStatusInterrupted
		}
		if err := o.deps.AuditWriter.EndRun(result.RunID, status, result.Summary.Audit()); err != nil && runErr == nil {
			runErr = auditErr(err)
		}
	}

	o.log.Info("run complete",
		zap.String("runId", string(result.RunID)),
		zap.Int("tagged", result.Summary.Tagged),
		zap.Int("failed", result.Summary.Failed),
		zap.Int("skipped", result.Summary.Skipped),
		zap.Duration("duration", result.Summary.Duration))
	return result, runErr
}

func (o *Orchestrator) execute(ctx context.Context, plan *PlanResult, opts RunOptions, result *RunResult) error {
	for _, skip := range plan.Skips {
		result.Results = append(result.Results, Result{
			Identity:   skip.Stem,
			SourcePath: skip.Path,
			Skipped:    true,
			SkipReason: skipReason(skip.Reason),
			Error:      skip.Err,
		})
		if o.auditing() {
			if err := o.deps.AuditWriter.RecordSkip(skip.Path, skipReason(skip.Reason), errString(skip.Err)); err != nil {
				return auditErr(err)
			}
		}
	}

	var latest map[string]audit.AuditEvent
	if opts.SkipUnchanged && o.deps.AuditReader != nil {
		var err error
		if latest, err = o.deps.AuditReader.LatestOutputs(); err != nil {
			o.log.Warn("could not read previous outputs; tagging everything", zap.Error(err))
		}
	}

	if p := o.deps.Progress; p != nil {
		p.StartProgress(len(plan.Entries))
		defer p.EndProgress()
	}

	for i, entry := range plan.Entries {
		if ctx.Err() != nil {
			o.log.Warn("run interrupted", zap.Int("remaining", len(plan.Entries)-i))
			return nil
		}
		if p := o.deps.Progress; p != nil {
			p.UpdateProgress(i+1, filepath.Base(entry.SourcePath))
		}

		res, err := o.processEntry(ctx, plan, entry, latest)
		result.Results = append(result.Results, res)
		if err != nil {
			return err
		}
	}
	return nil
}

// processEntry tags one entry. The returned error is only ever an audit failure.
func (o *Orchestrator) processEntry(ctx context.Context, plan *PlanResult, entry Entry, latest map[string]audit.AuditEvent) (Result, error) {
	cfg := o.config
	res := Result{
		Identity:   entry.Identity,
		SourcePath: entry.SourcePath,
		Assignment: entry.Assignment,
	}
	log := o.log.With(zap.String("identity", entry.Identity))

	var sourceHash, sidecarHash string
	if o.auditing() || latest != nil {
		var err error
		if sourceHash, err = audit.HashFile(entry.SourcePath); err != nil {
			log.Warn("could not hash source", zap.Error(err))
		}
		if sidecarHash, err = audit.HashFile(entry.MetaPath); err != nil {
			log.Warn("could not hash sidecar", zap.Error(err))
		}
	}

	if prev, ok := latest[plan.canonicalDestination(entry)]; ok && unchanged(prev, entry, sourceHash, sidecarHash) {
		res.DestinationPath = prev.DestinationPath
		res.Skipped = true
		res.SkipReason = audit.ReasonUnchanged
		log.Debug("output unchanged", zap.String("destination", prev.DestinationPath))
		if o.auditing() {
			if err := o.deps.AuditWriter.RecordSkip(entry.SourcePath, audit.ReasonUnchanged, prev.DestinationPath); err != nil {
				return res, auditErr(err)
			}
		}
		return res, nil
	}

	placement, err := organizer.Prepare(entry.SourcePath, cfg.DefaultOutputDir, entry.Filename, cfg.FileNaming.ExistingPolicy)
	if err != nil {
		return o.fail(res, "", "PREPARE", err)
	}
	res.DestinationPath = placement.DestinationPath

	job := tagger.Job{
		Source:      entry.SourcePath,
		Destination: placement.DestinationPath,
		Comment:     entry.Record.CommentTag(),
		Title:       entry.Record.TitleTag(),
		Genre:       entry.Record.GenreTag(),
	}
	if err := o.deps.Tagger.Tag(ctx, job); err != nil {
		return o.fail(res, placement.DestinationPath, "TAG", err)
	}

	if err := extattr.SetWriters(placement.DestinationPath, cfg.WriterAttribute, cfg.WriterNames); err != nil {
		res.Warning = err
		reason := audit.ReasonXattrFailed
		if errors.Is(err, extattr.ErrUnsupported) {
			reason = audit.ReasonXattrUnsupported
		}
		log.Warn("could not set writer property", zap.String("path", placement.DestinationPath), zap.Error(err))
		if o.auditing() {
			if err := o.deps.AuditWriter.RecordWriterWarning(placement.DestinationPath, reason, err.Error()); err != nil {
				return res, auditErr(err)
			}
		}
	}

	res.Success = true
	log.Info("tagged", zap.String("destination", placement.DestinationPath))

	if !o.auditing() {
		return res, nil
	}
	identity, err := audit.CaptureIdentity(placement.DestinationPath)
	if err != nil {
		log.Warn("could not capture output identity", zap.Error(err))
	}
	meta := map[string]string{
		audit.MetaIdentity:    entry.Identity,
		audit.MetaGroup:       strconv.Itoa(entry.Assignment.GroupIndex),
		audit.MetaVersion:     strconv.Itoa(entry.Assignment.VersionIndex),
		audit.MetaPromptForm:  string(entry.PromptForm),
		audit.MetaSourceHash:  sourceHash,
		audit.MetaSidecarHash: sidecarHash,
	}
	if err := o.deps.AuditWriter.RecordTagged(entry.SourcePath, placement.DestinationPath, identity, meta); err != nil {
		return res, auditErr(err)
	}
	return res, nil
}

func (o *Orchestrator) fail(res Result, dest, operation string, err error) (Result, error) {
	res.Error = err
	o.log.Error("tagging failed",
		zap.String("identity", res.Identity),
		zap.String("operation", operation),
		zap.Error(err))
	if !o.auditing() {
		return res, nil
	}
	if werr := o.deps.AuditWriter.RecordError(res.SourcePath, dest, errorType(err), err.Error(), operation); werr != nil {
		return res, auditErr(werr)
	}
	return res, nil
}

// unchanged reports whether prev still describes the output entry would
// produce: same asset, same source and sidecar bytes, output untouched.
func unchanged(prev audit.AuditEvent, entry Entry, sourceHash, sidecarHash string) bool {
	if prev.FileIdentity == nil || sourceHash == "" || sidecarHash == "" {
		return false
	}
	if prev.Metadata[audit.MetaIdentity] != entry.Identity ||
		prev.Metadata[audit.MetaSourceHash] != sourceHash ||
		prev.Metadata[audit.MetaSidecarHash] != sidecarHash {
		return false
	}
	match, err := audit.VerifyIdentity(prev.DestinationPath, *prev.FileIdentity)
	return err == nil && match == audit.IdentityMatches
}

func skipReason(r metadata.SkipReason) audit.ReasonCode {
	switch r {
	case metadata.ReasonMissingVideo:
		return audit.ReasonMissingVideo
	case metadata.ReasonInvalidJSON:
		return audit.ReasonInvalidJSON
	case metadata.ReasonDuplicateStem:
		return audit.ReasonDuplicateStem
	default:
		return audit.ReasonReadFailed
	}
}

func errorType(err error) string {
	var placeErr *organizer.PlaceError
	if errors.As(err, &placeErr) {
		return string(placeErr.Type)
	}
	var execErr *tagger.ExecError
	if errors.As(err, &execErr) {
		return "FFMPEG_FAILED"
	}
	if errors.Is(err, context.Canceled) {
		return "CANCELLED"
	}
	return "UNKNOWN"
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
