// Package result models test outcomes. A SubResult is one case under one
// execution context; a TestResult collects every context's subresult for one
// testfile. Results are computed once, at construction, so they can cross
// worker boundaries and be rendered repeatedly without touching scratch
// directories again.
package result

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/sirupsen/logrus"

	"github.com/typeset-tools/textest/internal/compose"
	"github.com/typeset-tools/textest/internal/matrix"
	"github.com/typeset-tools/textest/internal/testfile"
)

// diffContextLines is how much surrounding context a rendered diff carries.
const diffContextLines = 3

// UpdateOutcome records whether a testfile update was attempted and how it
// went.
type UpdateOutcome int

const (
	UpdateNotAttempted UpdateOutcome = iota
	UpdateFailed
	UpdateSucceeded
)

// SubResult is the outcome of one test case under one execution context.
// Diff is computed at construction and empty exactly when Expected and
// Actual are identical.
type SubResult struct {
	Context    matrix.Context
	ScratchDir string
	Index      int
	ExitCode   int
	Expected   string
	Actual     string
	Diff       string
}

// NewSubResult builds an immutable subresult for the case at index in its
// batch. The diff labels point at the expected and actual output files the
// batch run left in the scratch directory.
func NewSubResult(context matrix.Context, scratchDir string, index, exitCode int, expected, actual string) SubResult {
	return SubResult{
		Context:    context,
		ScratchDir: scratchDir,
		Index:      index,
		ExitCode:   exitCode,
		Expected:   expected,
		Actual:     actual,
		Diff: contextDiff(expected, actual,
			filepath.Join(scratchDir, fmt.Sprintf(compose.ExpectedFilenameFormat, index)),
			filepath.Join(scratchDir, fmt.Sprintf(compose.ActualFilenameFormat, index))),
	}
}

func (s SubResult) ExitedSuccessfully() bool { return s.ExitCode == 0 }

func (s SubResult) OutputMatches() bool { return s.Diff == "" }

func (s SubResult) Passed() bool { return s.ExitedSuccessfully() && s.OutputMatches() }

func contextDiff(expected, actual, expectedFile, actualFile string) string {
	if expected == actual {
		return ""
	}
	text, err := difflib.GetContextDiffString(difflib.ContextDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: expectedFile,
		ToFile:   actualFile,
		Context:  diffContextLines,
		Eol:      "\n",
	})
	if err != nil {
		// GetContextDiffString writes to an in-memory buffer; this cannot
		// happen.
		panic(err)
	}
	return text
}

// TestResult is the aggregated outcome of one testfile across every
// execution context, in matrix order.
type TestResult struct {
	File       string
	Setup      string
	Input      string
	Subresults []SubResult
	Update     UpdateOutcome
}

// Passed reports whether every context passed.
func (r *TestResult) Passed() bool {
	for _, sub := range r.Subresults {
		if !sub.Passed() {
			return false
		}
	}
	return true
}

func (r *TestResult) ExitedSuccessfully() bool {
	for _, sub := range r.Subresults {
		if !sub.ExitedSuccessfully() {
			return false
		}
	}
	return true
}

func (r *TestResult) OutputsMatch() bool {
	for _, sub := range r.Subresults {
		if !sub.OutputMatches() {
			return false
		}
	}
	return true
}

// Accepted reports whether the testfile counts as in order for the run's
// exit code: it either passed outright or was successfully updated.
func (r *TestResult) Accepted() bool {
	return r.Update == UpdateSucceeded || r.Passed()
}

// TryUpdateFile rewrites the testfile with the output the run actually
// observed. It only makes sense for a failing result, and only works when
// every context exited successfully and produced the same output; otherwise
// the outcome is UpdateFailed and the testfile is left alone. Calling it
// twice, or on a passing result, is a programming error.
func (r *TestResult) TryUpdateFile() error {
	if r.Update != UpdateNotAttempted {
		panic("result: testfile update attempted twice for " + r.File)
	}
	if r.Passed() {
		panic("result: testfile update attempted on a passing result for " + r.File)
	}

	if !r.ExitedSuccessfully() {
		r.Update = UpdateFailed
		logrus.Debugf("Cannot update testfile %s, some commands produced non-zero exit codes", r.File)
		return nil
	}

	actual := r.Subresults[0].Actual
	for _, sub := range r.Subresults[1:] {
		if sub.Actual != actual {
			r.Update = UpdateFailed
			logrus.Debugf("Cannot update testfile %s, different commands produced different outputs", r.File)
			return nil
		}
	}

	if err := testfile.Write(r.File, testfile.Case{Setup: r.Setup, Input: r.Input, Expected: actual}); err != nil {
		r.Update = UpdateFailed
		return errors.Wrapf(err, "update testfile %s", r.File)
	}
	r.Update = UpdateSucceeded
	return nil
}

// Aggregate turns per-context subresult rows into one TestResult per
// testfile. byContext holds one row per execution context, each with exactly
// one subresult per testfile, in testfile order; anything else is an
// internal inconsistency.
func Aggregate(files []string, cases []testfile.Case, byContext [][]SubResult) ([]TestResult, error) {
	if len(files) != len(cases) {
		return nil, errors.Errorf("have %d testfiles but %d cases", len(files), len(cases))
	}
	if len(byContext) == 0 {
		return nil, errors.New("no execution contexts produced subresults")
	}

	byFile, err := transpose(byContext)
	if err != nil {
		return nil, err
	}
	if len(byFile) != len(files) {
		return nil, errors.Errorf("have %d testfiles but %d subresult columns", len(files), len(byFile))
	}

	results := make([]TestResult, len(files))
	for i := range files {
		results[i] = TestResult{
			File:       files[i],
			Setup:      cases[i].Setup,
			Input:      cases[i].Input,
			Subresults: byFile[i],
		}
	}
	return results, nil
}

// transpose flips an m×n rectangle into n×m, erroring on ragged input.
func transpose[T any](rows [][]T) ([][]T, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	width := len(rows[0])
	for i, row := range rows {
		if len(row) != width {
			return nil, errors.Errorf("row %d has %d entries, expected %d", i, len(row), width)
		}
	}

	columns := make([][]T, width)
	for j := range columns {
		column := make([]T, len(rows))
		for i, row := range rows {
			column[i] = row[j]
		}
		columns[j] = column
	}
	return columns, nil
}
