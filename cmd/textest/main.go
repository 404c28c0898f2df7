package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/typeset-tools/textest/internal/cli"
)

func main() {
	if err := cli.Cli(); err != nil {
		// Test failures have already been summarized on stderr.
		if !errors.Is(err, cli.ErrTestsFailed) {
			fmt.Fprintf(os.Stderr, "textest: %v\n", err)
		}
		os.Exit(1)
	}
}
