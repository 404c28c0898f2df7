// Package core runs batches of test cases through the compile pipeline:
// compose a combined document, invoke the compiler, extract per-case output
// from the log, and bisect when a crashed run leaves the output short.
package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/typeset-tools/textest/internal/compose"
	"github.com/typeset-tools/textest/internal/matrix"
	"github.com/typeset-tools/textest/internal/result"
	"github.com/typeset-tools/textest/internal/testfile"
	"github.com/typeset-tools/textest/internal/texlog"
	"github.com/typeset-tools/textest/internal/util"
)

// Batch is one unit of compilation: a slice of testfiles run together under
// one execution context.
type Batch struct {
	Files   []string
	Cases   []testfile.Case
	Context matrix.Context
}

// Runner owns the pipeline for one process. It is safe for concurrent use;
// every batch run works in its own scratch directory.
type Runner struct {
	catalog  *matrix.Catalog
	composer *compose.Composer
	invoker  Invoker
}

func NewRunner(catalog *matrix.Catalog, composer *compose.Composer, invoker Invoker) *Runner {
	return &Runner{catalog: catalog, composer: composer, invoker: invoker}
}

// RunAll takes one partition batch of testfiles through every execution
// context and returns one aggregated result per testfile, in input order.
// Testfiles are read once and their cases reused across contexts.
func (r *Runner) RunAll(ctx context.Context, files []string) ([]result.TestResult, error) {
	logrus.Debugf("Testfiles %s", strings.Join(files, ", "))

	cases := make([]testfile.Case, len(files))
	for i, file := range files {
		tc, err := testfile.Read(file)
		if err != nil {
			return nil, err
		}
		cases[i] = tc
	}

	contexts, err := r.catalog.Contexts(ctx)
	if err != nil {
		return nil, err
	}

	byContext := make([][]result.SubResult, 0, len(contexts))
	for _, execContext := range contexts {
		subresults, err := r.runBatch(ctx, Batch{Files: files, Cases: cases, Context: execContext})
		if err != nil {
			return nil, err
		}
		byContext = append(byContext, subresults)
	}
	return result.Aggregate(files, cases, byContext)
}

// runBatch compiles one batch under one execution context and returns
// exactly one subresult per case. The scratch directory is removed when
// every case passed and kept for inspection otherwise.
func (r *Runner) runBatch(ctx context.Context, batch Batch) ([]result.SubResult, error) {
	if len(batch.Files) == 0 {
		return nil, errors.New("empty batch")
	}

	scratch, runID, err := compose.NewScratchDir()
	if err != nil {
		return nil, err
	}
	logrus.Debugf("Run %s: %d cases under %s in %s", runID, len(batch.Files), batch.Context, scratch)

	if err := r.composer.Compose(ctx, scratch, batch.Context.Template, batch.Cases); err != nil {
		return nil, err
	}

	exitCode, err := r.invoker.Invoke(ctx, scratch, batch.Context.Command)
	if err != nil {
		return nil, err
	}

	outputs := extractOutputs(scratch)
	if len(outputs) > len(batch.Files) {
		return nil, errors.Errorf("run %s produced %d output blocks for %d cases", runID, len(outputs), len(batch.Files))
	}

	subresults, err := r.resolve(ctx, batch, scratch, exitCode, outputs)
	if err != nil {
		return nil, err
	}

	if lo.EveryBy(subresults, func(sub result.SubResult) bool { return sub.Passed() }) {
		if err := os.RemoveAll(scratch); err != nil {
			logrus.Warnf("Failed to remove scratch directory %s: %v", scratch, err)
		}
	} else {
		logrus.Debugf("Run %s: keeping scratch directory %s for inspection", runID, scratch)
	}
	return subresults, nil
}

// resolve pairs extracted output blocks with cases. A complete set pairs by
// index. A short set means the compiler died mid-run: a multi-case batch is
// split in half and each half rerun on its own, while a single case is
// resolved as-is with empty output, so its result reflects the crash.
func (r *Runner) resolve(ctx context.Context, batch Batch, scratch string, exitCode int, outputs []string) ([]result.SubResult, error) {
	switch {
	case len(outputs) == len(batch.Files):
		subresults := make([]result.SubResult, len(batch.Files))
		for i := range batch.Files {
			subresults[i] = result.NewSubResult(batch.Context, scratch, i, exitCode, batch.Cases[i].Expected, outputs[i])
		}
		return subresults, nil

	case len(batch.Files) > 1:
		half := len(batch.Files) / 2
		logrus.Debugf("Bisecting %d cases after %d output blocks under %s", len(batch.Files), len(outputs), batch.Context)
		first, err := r.runBatch(ctx, Batch{Files: batch.Files[:half], Cases: batch.Cases[:half], Context: batch.Context})
		if err != nil {
			return nil, err
		}
		second, err := r.runBatch(ctx, Batch{Files: batch.Files[half:], Cases: batch.Cases[half:], Context: batch.Context})
		if err != nil {
			return nil, err
		}
		return append(first, second...), nil

	default:
		sub := result.NewSubResult(batch.Context, scratch, 0, exitCode, batch.Cases[0].Expected, "")
		return []result.SubResult{sub}, nil
	}
}

// extractOutputs filters the raw compiler log and splits it into per-case
// blocks, leaving both the filtered log and the per-case files in scratch
// for later inspection. Extraction trouble degrades to "no output": a
// crashed compiler may leave no log at all, and the bisection machinery
// handles the shortfall.
func extractOutputs(scratch string) []string {
	raw, err := os.Open(filepath.Join(scratch, compose.RawLogFilename))
	if err != nil {
		logrus.Debugf("Failed to extract test output from log file: %v", err)
		return nil
	}
	defer raw.Close()

	filtered, err := texlog.Filter(raw)
	if err != nil {
		logrus.Debugf("Failed to extract test output from log file: %v", err)
		return nil
	}
	if err := util.WriteText(filepath.Join(scratch, compose.FilteredLogFilename), filtered); err != nil {
		logrus.Debugf("Failed to extract test output from log file: %v", err)
		return nil
	}

	outputs := texlog.Demux(filtered)
	for i, output := range outputs {
		path := filepath.Join(scratch, fmt.Sprintf(compose.ActualFilenameFormat, i))
		if err := util.WriteText(path, output); err != nil {
			logrus.Debugf("Failed to write %s: %v", path, err)
		}
	}
	return outputs
}
