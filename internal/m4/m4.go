// Package m4 shells out to the m4 macro processor, which expands the
// template fragments and command lists a test run is built from.
package m4

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Expander expands one template file with a set of macro definitions.
// templateFile is read by the harness and fed to the expander on stdin; dir,
// when non-empty, is the working directory for the expansion so templates
// can include files relative to it.
type Expander interface {
	Expand(ctx context.Context, templateFile string, definitions map[string]string, dir string) (string, error)
}

// CLI runs the m4 binary. A failing expansion is a broken template tree, so
// any non-zero exit is returned as an error.
type CLI struct {
	Bin string
}

// New returns a CLI expander using bin, falling back to "m4" on PATH.
func New(bin string) *CLI {
	if bin == "" {
		bin = "m4"
	}
	return &CLI{Bin: bin}
}

func (c *CLI) Expand(ctx context.Context, templateFile string, definitions map[string]string, dir string) (string, error) {
	text, err := os.ReadFile(templateFile)
	if err != nil {
		return "", errors.Wrap(err, "read template")
	}

	args := definitionArgs(definitions)
	logrus.Tracef("expanding %s with %s %s", templateFile, c.Bin, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, c.Bin, args...)
	cmd.Dir = dir
	cmd.Stdin = bytes.NewReader(text)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if message := strings.TrimSpace(stderr.String()); message != "" {
			return "", errors.Wrapf(err, "expand %s: %s", templateFile, message)
		}
		return "", errors.Wrapf(err, "expand %s", templateFile)
	}
	return stdout.String(), nil
}

// definitionArgs renders definitions as -Dname=value arguments in name
// order, so repeated expansions of the same template are identical.
func definitionArgs(definitions map[string]string) []string {
	names := make([]string, 0, len(definitions))
	for name := range definitions {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]string, 0, len(definitions))
	for _, name := range names {
		args = append(args, fmt.Sprintf("-D%s=%s", name, definitions[name]))
	}
	return args
}
