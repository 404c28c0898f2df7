// Package compose builds the scratch directory a batch run compiles in: the
// support files, the per-case scratch files, and the combined document that
// stitches every case in the batch into one compiler invocation.
package compose

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	cp "github.com/otiai10/copy"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/typeset-tools/textest/internal/m4"
	"github.com/typeset-tools/textest/internal/testfile"
)

// Scratch directory filenames. The compiler is pointed at DocumentFilename
// and leaves its log in RawLogFilename; extraction writes the remaining two.
const (
	DocumentFilename    = "test.tex"
	RawLogFilename      = "test.log"
	FilteredLogFilename = "test-actual.log"
)

// Per-case scratch filename formats, indexed by the case's position in the
// batch.
const (
	SetupFilenameFormat    = "test-setup-%03d.tex"
	InputFilenameFormat    = "test-input-%03d.md"
	ExpectedFilenameFormat = "test-expected-%03d.log"
	ActualFilenameFormat   = "test-actual-%03d.log"
)

// Template fragment filenames inside one template variant directory.
const (
	headFilename = "head.tex"
	bodyFilename = "body.tex.m4"
	footFilename = "foot.tex"
)

// NewScratchDir allocates a fresh scratch directory for one batch run and
// returns its path together with the short run id embedded in its name. The
// id ties log lines to the directory left behind by a failing run.
func NewScratchDir() (string, string, error) {
	runID := uuid.NewString()[:8]
	dir, err := os.MkdirTemp("", fmt.Sprintf("textest-%s-", runID))
	if err != nil {
		return "", "", errors.Wrap(err, "create scratch directory")
	}
	return dir, runID, nil
}

// Composer populates scratch directories. The same composer is shared by
// every worker; it holds no per-run state.
type Composer struct {
	SupportDir string
	Expand     m4.Expander
}

func NewComposer(supportDir string, expand m4.Expander) *Composer {
	return &Composer{SupportDir: supportDir, Expand: expand}
}

// Compose fills scratch with everything one compiler invocation needs for
// cases under the template variant at templateDir: the support files, three
// scratch files per case, and the combined document. The document is head,
// one expanded body per case, and foot, with each fragment stripped of
// leading and trailing newlines and the fragments joined by single newlines.
func (c *Composer) Compose(ctx context.Context, scratch, templateDir string, cases []testfile.Case) error {
	if err := c.copySupportFiles(scratch); err != nil {
		return err
	}

	fragments := make([]string, 0, len(cases)+2)

	head, err := os.ReadFile(filepath.Join(templateDir, headFilename))
	if err != nil {
		return errors.Wrap(err, "read template head")
	}
	fragments = append(fragments, string(head))

	for caseNumber, tc := range cases {
		setupFilename := fmt.Sprintf(SetupFilenameFormat, caseNumber)
		inputFilename := fmt.Sprintf(InputFilenameFormat, caseNumber)
		expectedFilename := fmt.Sprintf(ExpectedFilenameFormat, caseNumber)

		if err := writeScratchFile(scratch, setupFilename, tc.Setup); err != nil {
			return err
		}
		if err := writeScratchFile(scratch, inputFilename, tc.Input); err != nil {
			return err
		}
		if err := writeScratchFile(scratch, expectedFilename, tc.Expected); err != nil {
			return err
		}

		body, err := c.Expand.Expand(ctx, filepath.Join(templateDir, bodyFilename), map[string]string{
			"TEST_SETUP_FILENAME": setupFilename,
			"TEST_INPUT_FILENAME": inputFilename,
		}, scratch)
		if err != nil {
			return errors.Wrapf(err, "expand body for case %d", caseNumber)
		}
		fragments = append(fragments, body)
	}

	foot, err := os.ReadFile(filepath.Join(templateDir, footFilename))
	if err != nil {
		return errors.Wrap(err, "read template foot")
	}
	fragments = append(fragments, string(foot))

	document := joinFragments(fragments)
	documentPath := filepath.Join(scratch, DocumentFilename)
	if err := os.WriteFile(documentPath, []byte(document+"\n"), 0o644); err != nil {
		return errors.Wrap(err, "write combined document")
	}

	logrus.Tracef("composed %s for %d cases, sha256 %s", documentPath, len(cases), fingerprint(document))
	return nil
}

// copySupportFiles mirrors the support directory into scratch. A missing
// support directory is fine; not every template tree needs one.
func (c *Composer) copySupportFiles(scratch string) error {
	if _, err := os.Stat(c.SupportDir); errors.Is(err, fs.ErrNotExist) {
		logrus.Debugf("support directory %s does not exist, copying nothing", c.SupportDir)
		return nil
	}
	if err := cp.Copy(c.SupportDir, scratch); err != nil {
		return errors.Wrapf(err, "copy support files from %s", c.SupportDir)
	}
	return nil
}

func writeScratchFile(scratch, filename, text string) error {
	if err := os.WriteFile(filepath.Join(scratch, filename), []byte(text+"\n"), 0o644); err != nil {
		return errors.Wrapf(err, "write %s", filename)
	}
	return nil
}

func joinFragments(fragments []string) string {
	trimmed := make([]string, len(fragments))
	for i, fragment := range fragments {
		trimmed[i] = strings.Trim(fragment, "\r\n")
	}
	return strings.Join(trimmed, "\n")
}

// fingerprint identifies a composed document in wire-level logs, so two runs
// of the same batch can be told apart from two different compositions.
func fingerprint(document string) string {
	digest := sha256.Sum256([]byte(document))
	return hex.EncodeToString(digest[:])
}
