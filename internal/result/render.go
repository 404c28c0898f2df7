package result

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/typeset-tools/textest/internal/util"
)

// Testfile lists longer than maxTestfilesShown collapse to the first
// maxTestfilesCollapsed names plus a count of the rest.
const (
	maxTestfilesShown     = 5
	maxTestfilesCollapsed = 3
)

// String renders the outcome of one testfile: "Success", or a section per
// kind of failure. Exit codes and diffs are grouped so that ten commands
// failing the same way read as one finding.
func (r *TestResult) String() string {
	var lines []string
	if r.Passed() {
		lines = append(lines, "Success")
	} else {
		if !r.ExitedSuccessfully() {
			lines = append(lines, "Some commands produced non-zero exit codes:")
			groups := lo.GroupBy(r.Subresults, func(sub SubResult) int { return sub.ExitCode })
			for _, exitCode := range sortedKeys(groups) {
				subresults := groups[exitCode]
				commands := formatCommands(commandsOf(subresults))
				if exitCode == 0 {
					lines = append(lines, fmt.Sprintf("- Command%s %s exited successfully.", plural(len(subresults)), commands))
				} else {
					lines = append(lines, fmt.Sprintf("- Command%s %s produced exit code %d.", plural(len(subresults)), commands, exitCode))
				}
			}
			lines = append(lines, "")
		}
		if !r.OutputsMatch() {
			lines = append(lines, "Some commands produced unexpected outputs:")
			groups := lo.GroupBy(r.Subresults, func(sub SubResult) string { return sub.Diff })
			for _, diff := range sortedKeys(groups) {
				subresults := groups[diff]
				commands := formatCommands(commandsOf(subresults))
				if diff == "" {
					lines = append(lines, fmt.Sprintf("- Command%s %s produced expected output.", plural(len(subresults)), commands))
				} else {
					lines = append(lines, fmt.Sprintf("- Command%s %s produced unexpected output with the following diff:", plural(len(subresults)), commands))
					lines = append(lines, "")
					for _, diffLine := range util.Lines(diff) {
						lines = append(lines, "  "+diffLine)
					}
					lines = append(lines, "")
				}
			}
			if lines[len(lines)-1] != "" { // Make sure that we don't produce double blank lines in the output.
				lines = append(lines, "")
			}
			switch r.Update {
			case UpdateSucceeded:
				lines = append(lines, "We successfully updated the testfile.")
			case UpdateFailed:
				lines = append(lines, "We tried to update the testfile and failed.")
			}
		}
	}
	if len(lines) > 0 && lines[len(lines)-1] == "" { // Make sure that we don't produce a blank line at the end of the output.
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// Summarize renders one testfile's outcome as a standalone block, the form
// fail-fast prints before stopping.
func (r *TestResult) Summarize() string {
	lines := []string{"", fmt.Sprintf("Testfile %s:", formatTestfiles([]string{r.File})), ""}
	for _, line := range util.Lines(r.String()) {
		lines = append(lines, "  "+line)
	}
	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// Summarize renders the outcome of a whole run. Testfiles with identical
// outcomes are reported as one block, ordered by their rendered text.
func Summarize(results []TestResult) string {
	lines := []string{""}
	groups := lo.GroupBy(results, func(r TestResult) string { return r.String() })
	for _, summary := range sortedKeys(groups) {
		grouped := groups[summary]
		files := lo.Map(grouped, func(r TestResult, _ int) string { return r.File })
		lines = append(lines, fmt.Sprintf("Testfile%s %s:", plural(len(grouped)), formatTestfiles(files)), "")
		for _, line := range util.Lines(summary) {
			lines = append(lines, "  "+line)
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func commandsOf(subresults []SubResult) [][]string {
	return lo.Map(subresults, func(sub SubResult, _ int) []string { return sub.Context.Command })
}

// formatCommands joins each argv with spaces; a list of several commands
// quotes each one so their boundaries stay visible.
func formatCommands(commands [][]string) string {
	texts := lo.Map(commands, func(command []string, _ int) string { return strings.Join(command, " ") })
	if len(texts) > 1 {
		texts = lo.Map(texts, func(text string, _ int) string { return `"` + text + `"` })
	}
	return strings.Join(texts, ", ")
}

// formatTestfiles renders a list of testfile names, quoting them when there
// are several and collapsing very long lists.
func formatTestfiles(files []string) string {
	texts := files
	if len(texts) > 1 {
		texts = lo.Map(files, func(file string, _ int) string { return `"` + file + `"` })
	}
	if len(texts) > maxTestfilesShown {
		hidden := len(texts) - maxTestfilesCollapsed
		texts = append(texts[:maxTestfilesCollapsed:maxTestfilesCollapsed], fmt.Sprintf("and %d others", hidden))
	}
	return strings.Join(texts, ", ")
}

func plural(count int) string {
	if count > 1 {
		return "s"
	}
	return ""
}

func sortedKeys[K cmp.Ordered, V any](groups map[K][]V) []K {
	keys := lo.Keys(groups)
	slices.Sort(keys)
	return keys
}
