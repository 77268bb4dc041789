// Package diff classifies how every module and test suite changed between a
// baseline snapshot and the current one.
package diff

import (
	"sort"

	"retrospec/internal/project"
)

// ChangeKind describes how a keyed entry differs between two snapshots.
type ChangeKind string

const (
	Added     ChangeKind = "added"
	Edited    ChangeKind = "edited"
	Moved     ChangeKind = "moved"
	Deleted   ChangeKind = "deleted"
	Unchanged ChangeKind = "unchanged"
)

// Kinds lists every change kind in display order.
func Kinds() []ChangeKind {
	return []ChangeKind{Added, Edited, Moved, Deleted, Unchanged}
}

// Seeds reports whether an entry with this kind can start impact propagation.
func (k ChangeKind) Seeds() bool {
	return k == Added || k == Edited || k == Moved
}

// Change is the classification of one key.
type Change struct {
	ID      string     `json:"id"`
	Kind    ChangeKind `json:"change"`
	OldPath string     `json:"oldPath,omitempty"`
	NewPath string     `json:"newPath,omitempty"`
}

// Result is the outcome of comparing two projects.
type Result struct {
	Modules    []Change `json:"modules"`
	TestSuites []Change `json:"testSuites"`
}

// Entry is what the comparison needs from a keyed record.
type Entry interface {
	Hash() string
	Location() string
}

// Compare diffs original against modified. A nil original stands for
// "no baseline": every entry of modified is Added, which makes selection
// pick every test suite. Output is sorted by key.
func Compare(original, modified *project.Project) *Result {
	if original == nil {
		original = project.Empty()
	}
	if modified == nil {
		modified = project.Empty()
	}
	return &Result{
		Modules:    Map(original.Modules, modified.Modules),
		TestSuites: Map(original.TestSuites, modified.TestSuites),
	}
}

// Map compares two keyed maps of entries.
func Map[E Entry](original, modified map[string]E) []Change {
	changes := make([]Change, 0, len(modified)+len(original))

	for key, before := range original {
		after, ok := modified[key]
		if !ok {
			changes = append(changes, Change{ID: key, Kind: Deleted, OldPath: before.Location()})
			continue
		}
		c := Change{ID: key, OldPath: before.Location(), NewPath: after.Location()}
		switch {
		case before.Hash() != after.Hash():
			c.Kind = Edited
		case before.Location() != after.Location():
			c.Kind = Moved
		default:
			c.Kind = Unchanged
		}
		changes = append(changes, c)
	}

	for key, after := range modified {
		if _, ok := original[key]; !ok {
			changes = append(changes, Change{ID: key, Kind: Added, NewPath: after.Location()})
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].ID < changes[j].ID })
	return changes
}

// Counts tallies changes by kind.
func Counts(changes []Change) map[ChangeKind]int {
	out := make(map[ChangeKind]int, len(Kinds()))
	for _, c := range changes {
		out[c.Kind]++
	}
	return out
}

// Kind returns the classification of id, or "" when id is absent.
func Kind(changes []Change, id string) ChangeKind {
	i := sort.Search(len(changes), func(i int) bool { return changes[i].ID >= id })
	if i < len(changes) && changes[i].ID == id {
		return changes[i].Kind
	}
	return ""
}

// Changed returns only entries whose kind is not Unchanged.
func Changed(changes []Change) []Change {
	out := make([]Change, 0, len(changes))
	for _, c := range changes {
		if c.Kind != Unchanged {
			out = append(out, c)
		}
	}
	return out
}

// IsEmpty reports whether nothing changed.
func (r *Result) IsEmpty() bool {
	return len(Changed(r.Modules)) == 0 && len(Changed(r.TestSuites)) == 0
}
