package orchestrator

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"vidmeta/internal/grouping"
	"vidmeta/internal/metadata"
	"vidmeta/internal/organizer"
	"vidmeta/internal/prompt"
	"vidmeta/internal/scanner"
)

// Entry is one asset of the plan in output order: partition, then group
// index, then version index.
type Entry struct {
	Identity    string
	SourcePath  string
	MetaPath    string
	Filename    string // synthesized name before the existing-file policy
	Destination string // where the output will be written
	Assignment  grouping.Assignment
	PromptForm  prompt.Form
	Replaces    bool // an existing output will be overwritten
	IsDuplicate bool // the rename policy changed the name
	Record      metadata.Record
}

// PlanResult is the naming plan of one batch.
type PlanResult struct {
	InputDir   string
	OutputDir  string
	Entries    []Entry
	Skips      []metadata.Skip
	Partitions int
	Fallback   int // entries whose prompt key is a fallback form
}

// Plan scans the input directory and assigns every asset its output name. It
// never modifies the filesystem.
func (o *Orchestrator) Plan(ctx context.Context) (*PlanResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := o.config
	opts := scanner.DefaultScanOptions()
	if cfg.Recursive {
		opts.MaxDepth = -1
	}
	if cfg.SymlinkPolicy != "" {
		opts.SymlinkPolicy = cfg.SymlinkPolicy
	}

	scan, err := scanner.ScanPairs(cfg.DefaultInputDir, opts)
	if err != nil {
		return nil, err
	}
	records, skips := metadata.ReadBatch(scan)
	for _, skip := range skips {
		o.log.Warn("skipping sidecar",
			zap.String("path", skip.Path),
			zap.String("reason", string(skip.Reason)),
			zap.Error(skip.Err))
	}

	naming := cfg.NamingOptions()
	partitions := grouping.Build(records, naming)

	result := &PlanResult{
		InputDir:   cfg.DefaultInputDir,
		OutputDir:  cfg.DefaultOutputDir,
		Entries:    make([]Entry, 0, len(records)),
		Skips:      skips,
		Partitions: len(partitions),
	}

	for _, part := range partitions {
		result.Fallback += part.FallbackMembers()
		for _, g := range part.Groups {
			for v, m := range g.Members {
				assignment := grouping.Assignment{
					Identifier:   part.Identifier,
					GroupIndex:   g.Index,
					VersionIndex: v + 1,
				}
				filename := assignment.Filename(naming)
				placement := organizer.Plan(m.Record.VideoPath, cfg.DefaultOutputDir, filename, cfg.FileNaming.ExistingPolicy)
				if m.Prompt.Form == prompt.FormFallback {
					o.log.Warn("prompt key uses fallback form",
						zap.String("identity", m.Record.Identity),
						zap.Error(m.Prompt.Err))
				}

				result.Entries = append(result.Entries, Entry{
					Identity:    m.Record.Identity,
					SourcePath:  m.Record.VideoPath,
					MetaPath:    m.Record.MetaPath,
					Filename:    filename,
					Destination: placement.DestinationPath,
					Assignment:  assignment,
					PromptForm:  m.Prompt.Form,
					Replaces:    placement.Replaced,
					IsDuplicate: placement.IsDuplicate,
					Record:      m.Record,
				})
			}
		}
	}

	o.log.Debug("plan built",
		zap.Int("entries", len(result.Entries)),
		zap.Int("skips", len(result.Skips)),
		zap.Int("partitions", result.Partitions))
	return result, nil
}

// canonicalDestination is the destination before any rename-policy suffix.
func (p *PlanResult) canonicalDestination(e Entry) string {
	return filepath.Join(p.OutputDir, e.Filename)
}
