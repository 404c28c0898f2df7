// Package matrix enumerates the execution contexts every testfile is tested
// under: the cross product of discovered TeX formats, template variants, and
// compiler commands.
package matrix

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/typeset-tools/textest/internal/compose"
	"github.com/typeset-tools/textest/internal/m4"
	"github.com/typeset-tools/textest/internal/util"
)

const commandsFilename = "COMMANDS.m4"

// Context is one cell of the execution matrix. Template is the path to the
// template variant directory; Command is the compiler argv to run against
// the composed document.
type Context struct {
	Format   string
	Template string
	Command  []string
}

func (c Context) String() string {
	return "format " + c.Format + ", template " + filepath.Base(c.Template) + ", command " + strings.Join(c.Command, " ")
}

// Catalog discovers execution contexts under a template directory exactly
// once per process and hands the frozen list to every caller. The scheduler
// runs its first batch synchronously, so discovery has happened by the time
// workers fan out.
type Catalog struct {
	dir    string
	expand m4.Expander

	mu       sync.Mutex
	contexts []Context
	frozen   bool
}

func NewCatalog(dir string, expand m4.Expander) *Catalog {
	return &Catalog{dir: dir, expand: expand}
}

// Contexts returns every execution context, in format, template, command
// order. The first successful call freezes the list; an error leaves the
// catalog unfrozen so a later call may retry.
func (c *Catalog) Contexts(ctx context.Context) ([]Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return c.contexts, nil
	}

	contexts, err := c.discover(ctx)
	if err != nil {
		return nil, err
	}
	c.contexts = contexts
	c.frozen = true
	return contexts, nil
}

func (c *Catalog) discover(ctx context.Context) ([]Context, error) {
	formats, err := childDirs(c.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "list formats under %s", c.dir)
	}

	var contexts []Context
	for _, format := range formats {
		logrus.Debugf("  Format %s", format)
		commands, err := c.commands(ctx, format)
		if err != nil {
			return nil, err
		}
		templates, err := childDirs(filepath.Join(c.dir, format))
		if err != nil {
			return nil, errors.Wrapf(err, "list templates for format %s", format)
		}
		for _, template := range templates {
			logrus.Debugf("    Template %s", template)
			for _, command := range commands {
				logrus.Debugf("      Command %s", strings.Join(command, " "))
				contexts = append(contexts, Context{
					Format:   format,
					Template: filepath.Join(c.dir, format, template),
					Command:  command,
				})
			}
		}
	}
	if len(contexts) == 0 {
		return nil, errors.Errorf("no execution contexts found under %s", c.dir)
	}
	return contexts, nil
}

// commands expands the format's COMMANDS.m4 and parses one compiler argv
// per non-blank line.
func (c *Catalog) commands(ctx context.Context, format string) ([][]string, error) {
	commandsFile := filepath.Join(c.dir, format, commandsFilename)
	text, err := c.expand.Expand(ctx, commandsFile, map[string]string{
		"TEST_FILENAME": compose.DocumentFilename,
	}, "")
	if err != nil {
		return nil, err
	}

	var commands [][]string
	for _, line := range util.Lines(text) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		command, err := shellquote.Split(line)
		if err != nil {
			return nil, errors.Wrapf(err, "parse command %q in %s", line, commandsFile)
		}
		if len(command) > 0 {
			commands = append(commands, command)
		}
	}
	return commands, nil
}

// childDirs lists the names of directories directly under dir, symlinked
// directories included, in sorted order.
func childDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || util.IsSymlinkToDir(filepath.Join(dir, entry.Name())) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
