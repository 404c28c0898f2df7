package matrix

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExpander returns canned text per COMMANDS.m4 path and counts calls.
type fakeExpander struct {
	texts map[string]string
	calls atomic.Int64
	defs  map[string]string
}

func (f *fakeExpander) Expand(_ context.Context, templateFile string, definitions map[string]string, _ string) (string, error) {
	f.calls.Add(1)
	f.defs = definitions
	return f.texts[templateFile], nil
}

// writeTree lays out templates/<format>/<variant>/ directories with a
// COMMANDS.m4 per format.
func writeTree(t *testing.T, formats map[string][]string) string {
	t.Helper()
	dir := t.TempDir()
	for format, variants := range formats {
		for _, variant := range variants {
			require.NoError(t, os.MkdirAll(filepath.Join(dir, format, variant), 0o755))
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, format, "COMMANDS.m4"), []byte("expanded elsewhere\n"), 0o644))
	}
	return dir
}

func TestContextsCrossProduct(t *testing.T) {
	dir := writeTree(t, map[string][]string{
		"latex": {"tabs", "spaces"},
		"plain": {"default"},
	})
	expander := &fakeExpander{texts: map[string]string{
		filepath.Join(dir, "latex", "COMMANDS.m4"): "pdflatex test.tex\nlualatex test.tex\n",
		filepath.Join(dir, "plain", "COMMANDS.m4"): "luatex test.tex\n",
	}}

	contexts, err := NewCatalog(dir, expander).Contexts(context.Background())
	require.NoError(t, err)

	expected := []Context{
		{Format: "latex", Template: filepath.Join(dir, "latex", "spaces"), Command: []string{"pdflatex", "test.tex"}},
		{Format: "latex", Template: filepath.Join(dir, "latex", "spaces"), Command: []string{"lualatex", "test.tex"}},
		{Format: "latex", Template: filepath.Join(dir, "latex", "tabs"), Command: []string{"pdflatex", "test.tex"}},
		{Format: "latex", Template: filepath.Join(dir, "latex", "tabs"), Command: []string{"lualatex", "test.tex"}},
		{Format: "plain", Template: filepath.Join(dir, "plain", "default"), Command: []string{"luatex", "test.tex"}},
	}
	assert.Equal(t, expected, contexts)
}

func TestContextsPassesDocumentFilename(t *testing.T) {
	dir := writeTree(t, map[string][]string{"plain": {"default"}})
	expander := &fakeExpander{texts: map[string]string{
		filepath.Join(dir, "plain", "COMMANDS.m4"): "luatex test.tex\n",
	}}

	_, err := NewCatalog(dir, expander).Contexts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"TEST_FILENAME": "test.tex"}, expander.defs)
}

func TestContextsSkipsBlankCommandLines(t *testing.T) {
	dir := writeTree(t, map[string][]string{"plain": {"default"}})
	expander := &fakeExpander{texts: map[string]string{
		filepath.Join(dir, "plain", "COMMANDS.m4"): "\n  \nluatex --interaction=batchmode test.tex\n\n",
	}}

	contexts, err := NewCatalog(dir, expander).Contexts(context.Background())
	require.NoError(t, err)
	require.Len(t, contexts, 1)
	assert.Equal(t, []string{"luatex", "--interaction=batchmode", "test.tex"}, contexts[0].Command)
}

func TestContextsSplitsQuotedArguments(t *testing.T) {
	dir := writeTree(t, map[string][]string{"plain": {"default"}})
	expander := &fakeExpander{texts: map[string]string{
		filepath.Join(dir, "plain", "COMMANDS.m4"): `luatex "--output-comment=test run" test.tex` + "\n",
	}}

	contexts, err := NewCatalog(dir, expander).Contexts(context.Background())
	require.NoError(t, err)
	require.Len(t, contexts, 1)
	assert.Equal(t, []string{"luatex", "--output-comment=test run", "test.tex"}, contexts[0].Command)
}

func TestContextsEmptyMatrixIsAnError(t *testing.T) {
	_, err := NewCatalog(t.TempDir(), &fakeExpander{}).Contexts(context.Background())
	assert.Error(t, err)
}

func TestContextsDiscoversOnce(t *testing.T) {
	dir := writeTree(t, map[string][]string{"plain": {"default"}})
	expander := &fakeExpander{texts: map[string]string{
		filepath.Join(dir, "plain", "COMMANDS.m4"): "luatex test.tex\n",
	}}
	catalog := NewCatalog(dir, expander)

	first, err := catalog.Contexts(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			contexts, err := catalog.Contexts(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, first, contexts)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), expander.calls.Load(), "discovery expands COMMANDS.m4 once per format")
}

func TestContextString(t *testing.T) {
	c := Context{Format: "latex", Template: "templates/latex/tabs", Command: []string{"pdflatex", "test.tex"}}
	assert.Equal(t, "format latex, template tabs, command pdflatex test.tex", c.String())
}
