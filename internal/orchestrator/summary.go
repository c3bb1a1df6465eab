package orchestrator

import (
	"time"

	"vidmeta/internal/audit"
)

// RunSummary contains statistics from a run.
type RunSummary struct {
	Planned   int           // Entries in the naming plan
	Tagged    int           // Outputs written (or that would be, on a dry run)
	Failed    int           // Entries that could not be tagged
	Skipped   int           // Sidecars skipped plus unchanged outputs
	Unchanged int           // Outputs left alone because nothing changed
	Warnings  int           // Outputs without the writer property
	Fallback  int           // Entries grouped by a fallback prompt key
	Duration  time.Duration // Total processing time
}

// GenerateSummary tallies result.
func GenerateSummary(result *RunResult, duration time.Duration) RunSummary {
	summary := RunSummary{Duration: duration}
	if result == nil {
		return summary
	}
	if result.Plan != nil {
		summary.Planned = len(result.Plan.Entries)
		summary.Fallback = result.Plan.Fallback
	}

	for _, r := range result.Results {
		switch {
		case r.Skipped:
			summary.Skipped++
			if r.SkipReason == audit.ReasonUnchanged {
				summary.Unchanged++
			}
		case r.Success:
			summary.Tagged++
			if r.Warning != nil {
				summary.Warnings++
			}
		default:
			summary.Failed++
		}
	}

	// A dry run produces no results for skipped sidecars.
	if result.DryRun && result.Plan != nil {
		summary.Skipped += len(result.Plan.Skips)
	}
	return summary
}

// Audit converts the summary to the form stored on RUN_END.
func (s RunSummary) Audit() audit.RunSummary {
	return audit.RunSummary{
		TotalFiles: s.Tagged + s.Failed + s.Skipped,
		Tagged:     s.Tagged,
		Skipped:    s.Skipped,
		Errors:     s.Failed,
		Warnings:   s.Warnings,
	}
}
