package texlog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterDropsCompilerChatter(t *testing.T) {
	log := strings.Join([]string{
		"This is pdfTeX, Version 3.141592653",
		"(./test.tex",
		"TEST INPUT BEGIN",
		"documentBegin",
		"TEST INPUT END",
		"[1{/var/lib/texmf/fonts/map}]",
		"TEST INPUT BEGIN",
		"Hello world!",
		"TEST INPUT END",
		"Output written on test.pdf (1 page).",
	}, "\n")

	filtered, err := Filter(strings.NewReader(log))
	require.NoError(t, err)
	assert.Equal(t, "documentBegin\nHello world!", filtered)
}

func TestFilterReassemblesWrappedLines(t *testing.T) {
	// The compiler wraps long lines at a fixed column, so one logical line
	// arrives as several physical fragments.
	log := strings.Join([]string{
		"TEST INPUT BEGIN",
		"A very long line that the compi",
		"ler wrapped at its output colum",
		"n limit",
		"TEST INPUT END",
	}, "\n")

	filtered, err := Filter(strings.NewReader(log))
	require.NoError(t, err)
	assert.Equal(t, "A very long line that the compiler wrapped at its output column limit", filtered)
}

func TestFilterEdgeCases(t *testing.T) {
	tests := []struct {
		name     string
		log      string
		expected string
	}{
		{name: "empty log", log: "", expected: ""},
		{name: "no sentinels", log: "chatter\nmore chatter", expected: ""},
		{name: "unterminated pair is dropped", log: "TEST INPUT BEGIN\nlost fragment", expected: ""},
		{name: "end without begin is dropped", log: "TEST INPUT END\nchatter", expected: ""},
		{
			name:     "begin inside a pair is content",
			log:      "TEST INPUT BEGIN\nTEST INPUT BEGIN\nTEST INPUT END",
			expected: "TEST INPUT BEGIN",
		},
		{
			name:     "sentinels match with surrounding whitespace",
			log:      "  TEST INPUT BEGIN  \npayload\n\tTEST INPUT END",
			expected: "payload",
		},
		{
			name:     "empty pair yields an empty logical line",
			log:      "TEST INPUT BEGIN\nTEST INPUT END\nTEST INPUT BEGIN\nsecond\nTEST INPUT END",
			expected: "\nsecond",
		},
		{
			name:     "carriage returns are stripped",
			log:      "TEST INPUT BEGIN\r\npayload\r\nTEST INPUT END\r\n",
			expected: "payload",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filtered, err := Filter(strings.NewReader(tt.log))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, filtered)
		})
	}
}

func TestDemuxSplitsPerCaseBlocks(t *testing.T) {
	text := strings.Join([]string{
		"documentBegin",
		"first case output",
		"documentEnd",
		"documentBegin",
		"second case output",
		"spanning two lines",
		"documentEnd",
	}, "\n")

	blocks := Demux(text)
	require.Len(t, blocks, 2)
	assert.Equal(t, "documentBegin\nfirst case output\ndocumentEnd", blocks[0])
	assert.Equal(t, "documentBegin\nsecond case output\nspanning two lines\ndocumentEnd", blocks[1])
}

func TestDemuxEdgeCases(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{name: "empty text", text: "", expected: nil},
		{name: "no markers", text: "stray output", expected: nil},
		{
			name:     "unterminated block is dropped",
			text:     "documentBegin\ncomplete\ndocumentEnd\ndocumentBegin\ncrashed here",
			expected: []string{"documentBegin\ncomplete\ndocumentEnd"},
		},
		{
			name:     "text outside blocks is dropped",
			text:     "before\ndocumentBegin\ninside\ndocumentEnd\nafter",
			expected: []string{"documentBegin\ninside\ndocumentEnd"},
		},
		{
			name:     "empty block keeps its markers",
			text:     "documentBegin\ndocumentEnd",
			expected: []string{"documentBegin\ndocumentEnd"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Demux(tt.text))
		})
	}
}

func TestFilterThenDemux(t *testing.T) {
	// A two-case batch log the way a compiler actually produces it: markers
	// and payload hidden between sentinel pairs, chatter everywhere else.
	log := strings.Join([]string{
		"This is LuaTeX, Version 1.18.0",
		"TEST INPUT BEGIN",
		"documentBegin",
		"TEST INPUT END",
		"(./test-setup-000.tex)",
		"TEST INPUT BEGIN",
		"HELLO",
		"TEST INPUT END",
		"TEST INPUT BEGIN",
		"documentEnd",
		"TEST INPUT END",
		"TEST INPUT BEGIN",
		"documentBegin",
		"TEST INPUT END",
		"TEST INPUT BEGIN",
		"WORLD",
		"TEST INPUT END",
		"TEST INPUT BEGIN",
		"documentEnd",
		"TEST INPUT END",
		"No pages of output.",
	}, "\n")

	filtered, err := Filter(strings.NewReader(log))
	require.NoError(t, err)

	blocks := Demux(filtered)
	require.Len(t, blocks, 2)
	assert.Equal(t, "documentBegin\nHELLO\ndocumentEnd", blocks[0])
	assert.Equal(t, "documentBegin\nWORLD\ndocumentEnd", blocks[1])
}
