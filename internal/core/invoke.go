package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// Invoker runs one compiler command inside a scratch directory and reports
// its exit code. A non-zero exit code is a normal outcome the caller turns
// into a test result; err is reserved for invocation infrastructure
// failures, a missing executable for instance.
type Invoker interface {
	Invoke(ctx context.Context, dir string, argv []string) (int, error)
}

// ExecInvoker runs commands through os/exec. Compiler output goes to the
// wire-level log; the output that matters is whatever the compiler wrote
// into its log file.
type ExecInvoker struct{}

func (ExecInvoker) Invoke(ctx context.Context, dir string, argv []string) (int, error) {
	if len(argv) == 0 {
		return 0, errors.New("empty command")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	if text := strings.TrimSpace(output.String()); text != "" {
		logrus.Tracef("%s: %s", strings.Join(argv, " "), text)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return 0, fmt.Errorf("invoke %q: %w", strings.Join(argv, " "), err)
	}
	return 0, nil
}
