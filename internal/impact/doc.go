// Package impact selects the test suites that must be re-run for a change.
//
// Selection runs against the current snapshot's dependency graph:
//
//   - every test suite that was added, edited or moved is selected;
//   - every module that was added, edited or moved seeds a walk over the
//     reverse dependency graph, and every test suite that depends on a
//     module reached by the walk is selected.
//
// The walk keeps its visited set local to one call, so cycles terminate and
// concurrent selections never interfere. Dependency ids with no matching
// module are leaves. Deleted modules never seed a walk.
//
// Basic usage:
//
//	d := diff.Compare(baseline, current)
//	tests := impact.Select(current, d)
package impact
