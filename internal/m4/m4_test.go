package m4

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinitionArgsAreSorted(t *testing.T) {
	args := definitionArgs(map[string]string{
		"TEST_SETUP_FILENAME": "test-setup-000.tex",
		"TEST_INPUT_FILENAME": "test-input-000.md",
		"TEST_FILENAME":       "test.tex",
	})
	assert.Equal(t, []string{
		"-DTEST_FILENAME=test.tex",
		"-DTEST_INPUT_FILENAME=test-input-000.md",
		"-DTEST_SETUP_FILENAME=test-setup-000.tex",
	}, args)
}

func TestDefinitionArgsEmpty(t *testing.T) {
	assert.Empty(t, definitionArgs(nil))
}

func TestExpandMissingTemplate(t *testing.T) {
	expander := New("")
	_, err := expander.Expand(context.Background(), filepath.Join(t.TempDir(), "missing.m4"), nil, "")
	assert.Error(t, err)
}

func TestExpandPassesTemplateOnStdin(t *testing.T) {
	// cat with no definitions behaves like an identity expander, which is
	// enough to exercise the stdin and stdout plumbing.
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}

	template := filepath.Join(t.TempDir(), "body.tex.m4")
	require.NoError(t, os.WriteFile(template, []byte("\\input{TEST_SETUP_FILENAME}\n"), 0o644))

	expander := &CLI{Bin: "cat"}
	expanded, err := expander.Expand(context.Background(), template, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "\\input{TEST_SETUP_FILENAME}\n", expanded)
}

func TestExpandReportsFailure(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}

	template := filepath.Join(t.TempDir(), "broken.m4")
	require.NoError(t, os.WriteFile(template, []byte("anything\n"), 0o644))

	expander := &CLI{Bin: "false"}
	_, err := expander.Expand(context.Background(), template, nil, "")
	assert.Error(t, err)
}
