package cli

import (
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

// rawFlags is the go-flags view of the command line. The on and off sides of
// each toggle are separate switches; resolveToggle folds them afterwards, so
// both can appear and the one mentioned last wins.
type rawFlags struct {
	UpdateTests   bool `long:"update-tests" description:"Update testfiles with unexpected results"`
	NoUpdateTests bool `long:"no-update-tests" description:"Do not update testfiles with unexpected results (default)"`
	FailFast      bool `long:"fail-fast" description:"When a test fails, stop immediately"`
	NoFailFast    bool `long:"no-fail-fast" description:"Keep running after a test fails (default)"`

	Positional struct {
		Testfiles []string `positional-arg-name:"testfile" description:"Testfiles to run" required:"1"`
	} `positional-args:"yes"`
}

// Options is the resolved command line.
type Options struct {
	UpdateTests bool
	FailFast    bool
	Testfiles   []string
}

// parseArgs parses argv (without the program name) into Options. Every
// testfile must exist. Help requests surface as the go-flags help error for
// the caller to print.
func parseArgs(argv []string) (*Options, error) {
	var raw rawFlags
	parser := flags.NewParser(&raw, flags.HelpFlag|flags.PassDoubleDash)
	parser.Usage = "[OPTIONS] testfile..."
	if _, err := parser.ParseArgs(argv); err != nil {
		return nil, err
	}

	options := &Options{
		UpdateTests: resolveToggle(argv, "--update-tests", "--no-update-tests", false),
		FailFast:    resolveToggle(argv, "--fail-fast", "--no-fail-fast", false),
		Testfiles:   raw.Positional.Testfiles,
	}

	for _, file := range options.Testfiles {
		info, err := os.Stat(file)
		if err != nil {
			return nil, errors.Errorf("testfile %s does not exist", file)
		}
		if info.IsDir() {
			return nil, errors.Errorf("testfile %s is a directory, not a file", file)
		}
	}
	return options, nil
}

// resolveToggle returns the state selected by whichever of the on and off
// switches appears last in argv, or fallback when neither does.
func resolveToggle(argv []string, on, off string, fallback bool) bool {
	state := fallback
	for _, arg := range argv {
		switch arg {
		case on:
			state = true
		case off:
			state = false
		}
	}
	return state
}
