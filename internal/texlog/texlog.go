// Package texlog extracts test output from combined TeX compiler logs.
//
// The log of a batch run interleaves compiler chatter with output the test
// macros emit between sentinel lines. Extraction happens in two passes:
// Filter collects the sentinel-bracketed fragments into logical output
// lines, and Demux splits the filtered text into one block per test case.
package texlog

import (
	"bufio"
	"io"
	"strings"

	"github.com/typeset-tools/textest/internal/util"
)

const (
	// lineBegin and lineEnd bracket one logical output line in the raw log.
	// The compiler hard-wraps long lines, so the material between the two
	// sentinels may span several physical lines; the fragments are rejoined
	// without a separator.
	lineBegin = "TEST INPUT BEGIN"
	lineEnd   = "TEST INPUT END"

	// caseBegin and caseEnd bracket one test case's output in the filtered
	// log. Unlike the line sentinels, the marker lines belong to the block.
	caseBegin = "documentBegin"
	caseEnd   = "documentEnd"
)

// Scanner limits for raw compiler logs, which can carry very long lines.
const (
	initialScanBuffer = 64 * 1024
	maxScanBuffer     = 1024 * 1024
)

// Filter reads a raw compiler log and returns the logical output lines
// hidden in it, joined with newlines. Material outside a sentinel pair is
// compiler chatter and is dropped, as is an opened pair the log never
// closes.
func Filter(r io.Reader) (string, error) {
	var logicalLines []string
	var fragments []string
	inside := false

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, initialScanBuffer), maxScanBuffer)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch strings.TrimSpace(line) {
		case lineBegin:
			if !inside {
				inside = true
				continue
			}
		case lineEnd:
			if inside {
				logicalLines = append(logicalLines, strings.Join(fragments, ""))
				fragments = fragments[:0]
				inside = false
				continue
			}
		}
		if inside {
			fragments = append(fragments, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return strings.Join(logicalLines, "\n"), nil
}

// Demux splits filtered log text into per-case blocks. Each block spans one
// caseBegin/caseEnd marker pair, markers included. Text outside a pair is
// dropped, and so is a block the text never closes; callers compare the
// number of blocks against the number of cases in the batch.
func Demux(text string) []string {
	var blocks []string
	var blockLines []string
	inside := false

	for _, line := range util.Lines(text) {
		switch strings.TrimSpace(line) {
		case caseBegin:
			if !inside {
				inside = true
				blockLines = append(blockLines, line)
				continue
			}
		case caseEnd:
			if inside {
				blockLines = append(blockLines, line)
				blocks = append(blocks, strings.Join(blockLines, "\n"))
				blockLines = blockLines[:0]
				inside = false
				continue
			}
		}
		if inside {
			blockLines = append(blockLines, line)
		}
	}
	return blocks
}
