package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"retrospec/internal/diff"
	"retrospec/internal/engine"
	"retrospec/internal/impact"
	"retrospec/internal/project"
	"retrospec/internal/snapshot"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
	FormatList  OutputFormat = "list"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	kindStyles  = map[diff.ChangeKind]lipgloss.Style{
		diff.Added:   lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		diff.Edited:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		diff.Moved:   lipgloss.NewStyle().Foreground(lipgloss.Color("226")),
		diff.Deleted: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

func parseFormat(s string, allowed ...OutputFormat) (OutputFormat, error) {
	for _, f := range allowed {
		if OutputFormat(s) == f {
			return f, nil
		}
	}
	names := make([]string, len(allowed))
	for i, f := range allowed {
		names[i] = string(f)
	}
	return "", fmt.Errorf("unsupported format: %s (use %s)", s, strings.Join(names, ", "))
}

// formatJSON formats the response as JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

func header(title string) string {
	return headerStyle.Render(title) + "\n" + strings.Repeat("=", lipgloss.Width(title)) + "\n"
}

// SelectResponseCLI is the JSON form of `retrospec select`.
type SelectResponseCLI struct {
	FirstRun        bool                  `json:"firstRun"`
	Total           int                   `json:"total"`
	Seeds           []string              `json:"seeds"`
	ImpactedModules []string              `json:"impactedModules"`
	Tests           []impact.SelectedTest `json:"tests"`
	Skipped         int                   `json:"skippedFiles"`
}

func convertSelection(a *engine.Analysis) *SelectResponseCLI {
	skipped := 0
	if a.Report != nil {
		skipped = len(a.Report.Modules.Skipped) + len(a.Report.TestSuites.Skipped)
	}
	return &SelectResponseCLI{
		FirstRun:        a.FirstRun,
		Total:           len(a.Current.TestSuites),
		Seeds:           a.Selection.Seeds,
		ImpactedModules: a.Selection.ImpactedModules,
		Tests:           a.Selection.Tests,
		Skipped:         skipped,
	}
}

func describeSelected(t impact.SelectedTest) string {
	switch t.Reason {
	case impact.ReasonTestChanged:
		return fmt.Sprintf("test %s", t.Change)
	case impact.ReasonDirect:
		return fmt.Sprintf("depends on changed module %s", t.Module)
	case impact.ReasonTransitive:
		hops := "hops"
		if t.Depth == 1 {
			hops = "hop"
		}
		return fmt.Sprintf("depends on %s, %d %s from changed module %s", t.Module, t.Depth, hops, t.Seed)
	default:
		return string(t.Reason)
	}
}

func formatSelectionHuman(resp *SelectResponseCLI) string {
	var b strings.Builder
	b.WriteString(header(fmt.Sprintf("Selected %d of %d test suites", len(resp.Tests), resp.Total)))

	if resp.FirstRun {
		b.WriteString(dimStyle.Render("No baseline snapshot: every test suite is selected.") + "\n")
	}
	if len(resp.Seeds) > 0 {
		b.WriteString(fmt.Sprintf("Changed modules:  %s\n", strings.Join(resp.Seeds, ", ")))
	}
	if len(resp.ImpactedModules) > 0 {
		b.WriteString(fmt.Sprintf("Impacted modules: %s\n", strings.Join(resp.ImpactedModules, ", ")))
	}
	if resp.Skipped > 0 {
		b.WriteString(fmt.Sprintf("Skipped files:    %d (see warnings)\n", resp.Skipped))
	}

	if len(resp.Tests) == 0 {
		b.WriteString("\nNo test suites affected.\n")
		return b.String()
	}

	width := 0
	for _, t := range resp.Tests {
		width = max(width, len(t.Path))
	}
	b.WriteString("\n")
	for _, t := range resp.Tests {
		b.WriteString(fmt.Sprintf("  %-*s  %s\n", width, t.Path, dimStyle.Render(describeSelected(t))))
	}
	return b.String()
}

func formatSelectionList(tests []impact.SelectedTest) string {
	var b strings.Builder
	for _, t := range tests {
		b.WriteString(t.Path)
		b.WriteString("\n")
	}
	return b.String()
}

// DiffResponseCLI is the JSON form of `retrospec diff`.
type DiffResponseCLI struct {
	BaselineFound bool          `json:"baselineFound"`
	Modules       []diff.Change `json:"modules"`
	TestSuites    []diff.Change `json:"testSuites"`
}

func convertDiff(a *engine.Analysis, all bool) *DiffResponseCLI {
	resp := &DiffResponseCLI{BaselineFound: a.BaselineFound, Modules: a.Diff.Modules, TestSuites: a.Diff.TestSuites}
	if !all {
		resp.Modules = diff.Changed(resp.Modules)
		resp.TestSuites = diff.Changed(resp.TestSuites)
	}
	return resp
}

func formatChanges(b *strings.Builder, title string, changes []diff.Change) {
	counts := diff.Counts(changes)
	parts := make([]string, 0, len(counts))
	for _, k := range diff.Kinds() {
		if counts[k] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[k], k))
		}
	}
	summary := "no changes"
	if len(parts) > 0 {
		summary = strings.Join(parts, ", ")
	}
	b.WriteString(fmt.Sprintf("\n%s (%s)\n", headerStyle.Render(title), summary))

	for _, c := range changes {
		kind := string(c.Kind)
		if st, ok := kindStyles[c.Kind]; ok {
			kind = st.Render(kind)
		}
		line := fmt.Sprintf("  %-9s %s", kind, c.ID)
		if c.Kind == diff.Moved {
			line += dimStyle.Render(fmt.Sprintf("  %s -> %s", c.OldPath, c.NewPath))
		}
		b.WriteString(line + "\n")
	}
}

func formatDiffHuman(resp *DiffResponseCLI) string {
	var b strings.Builder
	b.WriteString(header("Snapshot diff"))
	if !resp.BaselineFound {
		b.WriteString(dimStyle.Render("No baseline snapshot: everything is new.") + "\n")
	}
	formatChanges(&b, "Modules", resp.Modules)
	formatChanges(&b, "Test suites", resp.TestSuites)
	return b.String()
}

// ProjectSummaryCLI describes a stored or freshly built snapshot.
type ProjectSummaryCLI struct {
	Location   string              `json:"location"`
	Modules    int                 `json:"modules"`
	TestSuites int                 `json:"testSuites"`
	Dangling   map[string][]string `json:"danglingDependencies,omitempty"`
}

func convertProject(p *project.Project, location string) *ProjectSummaryCLI {
	return &ProjectSummaryCLI{
		Location:   location,
		Modules:    len(p.Modules),
		TestSuites: len(p.TestSuites),
		Dangling:   p.DanglingDependencies(),
	}
}

func formatProjectHuman(resp *ProjectSummaryCLI) string {
	var b strings.Builder
	b.WriteString(header("Snapshot"))
	b.WriteString(fmt.Sprintf("Location:    %s\n", resp.Location))
	b.WriteString(fmt.Sprintf("Modules:     %d\n", resp.Modules))
	b.WriteString(fmt.Sprintf("Test suites: %d\n", resp.TestSuites))
	if len(resp.Dangling) > 0 {
		ids := make([]string, 0, len(resp.Dangling))
		for id := range resp.Dangling {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		b.WriteString("\nUnresolved dependencies:\n")
		for _, id := range ids {
			b.WriteString(fmt.Sprintf("  %s -> %s\n", id, strings.Join(resp.Dangling[id], ", ")))
		}
	}
	return b.String()
}

func formatHistoryHuman(runs []snapshot.Run) string {
	if len(runs) == 0 {
		return "No runs recorded.\n"
	}
	var b strings.Builder
	b.WriteString(header("Run history"))
	for _, r := range runs {
		saved := ""
		if r.Saved {
			saved = " saved"
		}
		b.WriteString(fmt.Sprintf("%s  %-8s %4d/%-4d %8s%s  %s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Outcome,
			r.Selected, r.Total,
			r.Duration.Round(time.Millisecond),
			saved,
			dimStyle.Render(r.ID.String()[:8]),
		))
	}
	return b.String()
}

func formatRunSummary(res *engine.RunResult) string {
	r := res.Run
	switch r.Outcome {
	case snapshot.OutcomeNoTests:
		msg := "No test suites affected."
		if r.Saved {
			msg += " Snapshot saved."
		}
		return msg + "\n"
	case snapshot.OutcomeDryRun:
		return dimStyle.Render(fmt.Sprintf("Dry run: %d of %d test suites selected, nothing executed.", r.Selected, r.Total)) + "\n"
	}

	msg := fmt.Sprintf("Ran %d of %d test suites: %s in %s.", r.Selected, r.Total, r.Outcome, r.Duration.Round(time.Millisecond))
	if r.Saved {
		msg += " Snapshot saved."
	}
	return msg + "\n"
}
