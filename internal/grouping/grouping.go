// Package grouping assigns group and version ordinals to a batch of records.
//
// Records are partitioned by the identifier extracted from their reference
// URL, then by logical prompt key. Within a partition, groups are ranked by
// descending size, then by ascending latest timestamp, then by key; members of
// a group are ranked by ascending timestamp, then by identity. The ranks are
// the 1-based GroupIndex and VersionIndex of each record's Assignment.
//
// The computation is a pure function of the batch contents: input order and
// map iteration order never reach the output.
package grouping

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"vidmeta/internal/dateparser"
	"vidmeta/internal/identifier"
	"vidmeta/internal/metadata"
	"vidmeta/internal/naming"
	"vidmeta/internal/prompt"
)

// Assignment is the naming decision for one record.
type Assignment struct {
	Identifier   string // "" when the reference carried no identifier
	GroupIndex   int    // 1-based
	VersionIndex int    // 1-based
}

// Filename returns the output filename for the assignment.
func (a Assignment) Filename(opts naming.Options) string {
	return naming.Synthesize(a.Identifier, a.GroupIndex, a.VersionIndex, opts)
}

// Member is a record with its resolved sort and grouping keys.
type Member struct {
	Record    metadata.Record
	Timestamp time.Time // dateparser.MinTime when unparsable
	Prompt    prompt.Resolution
}

// Group is the set of members sharing one prompt key within a partition.
type Group struct {
	Key     string
	Index   int      // 1-based rank within the partition
	Members []Member // ordered by CompareMembers
}

// Partition holds the groups sharing one identifier.
type Partition struct {
	Identifier string
	Groups     []Group // ordered by CompareGroups
}

// GroupSize is the primary group ranking key.
func GroupSize(g Group) int {
	return len(g.Members)
}

// MaxTimestamp is the latest member timestamp, the secondary group ranking key.
func MaxTimestamp(g Group) time.Time {
	latest := dateparser.MinTime
	for _, m := range g.Members {
		if m.Timestamp.After(latest) {
			latest = m.Timestamp
		}
	}
	return latest
}

// CompareGroups orders groups by descending size, then ascending
// MaxTimestamp, then ascending key.
func CompareGroups(a, b Group) int {
	if c := cmp.Compare(GroupSize(b), GroupSize(a)); c != 0 {
		return c
	}
	if c := MaxTimestamp(a).Compare(MaxTimestamp(b)); c != 0 {
		return c
	}
	return strings.Compare(a.Key, b.Key)
}

// CompareMembers orders members by ascending timestamp, then ascending identity.
func CompareMembers(a, b Member) int {
	if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
		return c
	}
	return strings.Compare(a.Record.Identity, b.Record.Identity)
}

// Build partitions records and ranks every group and member. Partitions are
// returned in ascending identifier order, "" first.
func Build(records []metadata.Record, opts naming.Options) []Partition {
	type bucket struct {
		groups map[string]*Group
	}
	buckets := make(map[string]*bucket)

	for _, rec := range records {
		id := identifier.Extract(rec.RawReference, opts.UUIDMaxLength)
		b, ok := buckets[id]
		if !ok {
			b = &bucket{groups: make(map[string]*Group)}
			buckets[id] = b
		}

		res := rec.PromptKey()
		g, ok := b.groups[res.Key]
		if !ok {
			g = &Group{Key: res.Key}
			b.groups[res.Key] = g
		}
		g.Members = append(g.Members, Member{
			Record:    rec,
			Timestamp: dateparser.ParseOrMin(rec.TimestampText),
			Prompt:    res,
		})
	}

	partitions := make([]Partition, 0, len(buckets))
	for id, b := range buckets {
		part := Partition{Identifier: id, Groups: make([]Group, 0, len(b.groups))}
		for _, g := range b.groups {
			slices.SortFunc(g.Members, CompareMembers)
			part.Groups = append(part.Groups, *g)
		}
		slices.SortFunc(part.Groups, CompareGroups)
		for i := range part.Groups {
			part.Groups[i].Index = i + 1
		}
		partitions = append(partitions, part)
	}

	slices.SortFunc(partitions, func(a, b Partition) int {
		return strings.Compare(a.Identifier, b.Identifier)
	})
	return partitions
}

// Assign returns the Assignment of every record keyed by identity.
func Assign(records []metadata.Record, opts naming.Options) map[string]Assignment {
	assignments := make(map[string]Assignment, len(records))
	for _, part := range Build(records, opts) {
		for _, g := range part.Groups {
			for v, m := range g.Members {
				assignments[m.Record.Identity] = Assignment{
					Identifier:   part.Identifier,
					GroupIndex:   g.Index,
					VersionIndex: v + 1,
				}
			}
		}
	}
	return assignments
}

// PartitionKey returns the partition's display key, identifier.Blank for "".
func (p Partition) PartitionKey() string {
	return identifier.GroupKey(p.Identifier)
}

// FallbackMembers counts members whose prompt key is a fallback form.
func (p Partition) FallbackMembers() int {
	n := 0
	for _, g := range p.Groups {
		for _, m := range g.Members {
			if m.Prompt.Form == prompt.FormFallback {
				n++
			}
		}
	}
	return n
}
