// Package orchestrator runs a batch: scan the input directory, assign names,
// tag each video into the output directory and record what happened.
package orchestrator

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"vidmeta/internal/audit"
	"vidmeta/internal/config"
	"vidmeta/internal/grouping"
	"vidmeta/internal/tagger"
)

// ErrAuditWrite wraps an audit log failure. A run stops at the first one so
// the log never misses an output that was written.
var ErrAuditWrite = errors.New("audit write failed")

// Progress receives per-file progress. *output.Output implements it.
type Progress interface {
	StartProgress(total int)
	UpdateProgress(current int, name string)
	EndProgress()
}

// Deps are the collaborators of an Orchestrator. Tagger is required for Run;
// everything else is optional.
type Deps struct {
	Tagger      *tagger.Tagger
	AuditWriter *audit.AuditWriter
	AuditReader *audit.AuditReader
	Log         *zap.Logger
	Progress    Progress
	AppVersion  string
	MachineID   string
}

// Orchestrator coordinates one configuration's batches.
type Orchestrator struct {
	config *config.Configuration
	deps   Deps
	log    *zap.Logger
}

// New creates an Orchestrator for cfg.
func New(cfg *config.Configuration, deps Deps) *Orchestrator {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{config: cfg, deps: deps, log: log.With(zap.String("component", "orchestrator"))}
}

// Result represents the outcome for a single asset.
type Result struct {
	Identity        string
	SourcePath      string
	DestinationPath string
	Assignment      grouping.Assignment
	Success         bool
	Skipped         bool
	SkipReason      audit.ReasonCode
	Error           error
	Warning         error // writer property could not be set
}

// RunOptions controls Run.
type RunOptions struct {
	DryRun bool
	// SkipUnchanged leaves alone outputs whose source, sidecar and output
	// still match the last TAGGED event for that destination.
	SkipUnchanged bool
	RunType       audit.RunType
}

// RunResult is the outcome of Run.
type RunResult struct {
	RunID   audit.RunID
	Plan    *PlanResult
	Results []Result
	Summary RunSummary
	DryRun  bool
}

// HasErrors returns true if any asset failed.
func (r *RunResult) HasErrors() bool {
	return r.Summary.Failed > 0
}

func (o *Orchestrator) auditing() bool {
	return o.deps.AuditWriter != nil
}

func auditErr(err error) error {
	return fmt.Errorf("%w: %v", ErrAuditWrite, err)
}
