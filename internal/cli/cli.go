// Package cli wires the harness together behind the textest command: flag
// parsing, settings, the compile pipeline, and the run loop that turns
// streamed results into summaries and an exit status.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/typeset-tools/textest/internal/compose"
	"github.com/typeset-tools/textest/internal/config"
	"github.com/typeset-tools/textest/internal/core"
	"github.com/typeset-tools/textest/internal/log"
	"github.com/typeset-tools/textest/internal/m4"
	"github.com/typeset-tools/textest/internal/matrix"
	"github.com/typeset-tools/textest/internal/result"
	"github.com/typeset-tools/textest/internal/schedule"
)

// ErrTestsFailed reports that the run completed but some testfiles failed.
// The summaries have already been printed when it is returned.
var ErrTestsFailed = errors.New("some tests failed")

// errStopEarly aborts result consumption on the first unaccepted result.
var errStopEarly = errors.New("stopping after first failure")

// scheduler is the slice of schedule.Scheduler the run loop needs.
type scheduler interface {
	Run(ctx context.Context, files []string, yield func(result.TestResult) error) error
}

// Cli parses the command line and runs the harness.
func Cli() error {
	options, err := parseArgs(os.Args[1:])
	if err != nil {
		if flags.WroteHelp(err) {
			fmt.Println(err)
			return nil
		}
		return err
	}

	settings, err := config.Load()
	if err != nil {
		return err
	}
	log.Init(log.LevelFromInt(settings.Verbosity))

	expander := m4.New(settings.M4Bin)
	runner := core.NewRunner(
		matrix.NewCatalog(settings.TemplateDir, expander),
		compose.NewComposer(settings.SupportDir, expander),
		core.ExecInvoker{},
	)
	return runTests(schedule.New(runner, settings.BatchSize, settings.Workers), options)
}

// runTests drives the scheduler and renders the outcome. Failing results
// are updated first when update-tests is on; a result that still is not
// accepted trips fail-fast or marks the run as failed.
func runTests(s scheduler, options *Options) error {
	logrus.Infof("Running tests for %d testfiles", len(options.Testfiles))

	someTestsFailed := false
	var results []result.TestResult
	err := s.Run(context.Background(), options.Testfiles, func(res result.TestResult) error {
		if !res.Passed() && options.UpdateTests {
			if err := res.TryUpdateFile(); err != nil {
				return err
			}
			if res.Update == result.UpdateSucceeded {
				logrus.Infof("Updated testfile %s", res.File)
			}
		}
		if !res.Accepted() {
			someTestsFailed = true
			if options.FailFast {
				fmt.Fprintln(os.Stderr, res.Summarize())
				return errStopEarly
			}
		}
		results = append(results, res)
		return nil
	})
	if errors.Is(err, errStopEarly) {
		return ErrTestsFailed
	}
	if err != nil {
		return err
	}

	if someTestsFailed {
		logrus.Error("Some tests failed, see the summary below:")
		fmt.Fprintln(os.Stderr, result.Summarize(results))
		return ErrTestsFailed
	}
	logrus.Info("All tests succeeded!")
	return nil
}
