// Package testfile reads and writes the on-disk testfile format: three text
// sections (setup, input, expected output) separated by delimiter lines.
package testfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	// inputDelimiter separates the setup section from the input section.
	inputDelimiter = "<<<"
	// outputDelimiter separates the input section from the expected output.
	outputDelimiter = ">>>"
)

// maxLineSize bounds a single testfile line. Compiler output embedded in the
// expected section is wrapped well below this.
const maxLineSize = 1024 * 1024

// Case is the parsed content of one testfile. All three fields are raw text
// with lines joined by \n and no trailing newline. A Case is immutable once
// read.
type Case struct {
	Setup    string
	Input    string
	Expected string
}

// Read loads and parses the testfile at path.
func Read(path string) (Case, error) {
	f, err := os.Open(path)
	if err != nil {
		return Case{}, fmt.Errorf("read testfile: %w", err)
	}
	defer f.Close()

	c, err := Parse(f)
	if err != nil {
		return Case{}, fmt.Errorf("read testfile %s: %w", path, err)
	}
	return c, nil
}

// Parse splits r into the three testfile sections. A line whose trimmed
// content is exactly "<<<" ends the setup section, and a later line whose
// trimmed content is exactly ">>>" ends the input section; the delimiter
// lines themselves are not part of any section. Delimiters appearing out of
// order are ordinary content. Blank lines within a section are preserved.
func Parse(r io.Reader) (Case, error) {
	type section int
	const (
		inSetup section = iota
		inInput
		inExpected
	)

	var lines [3][]string
	current := inSetup

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case current == inSetup && strings.TrimSpace(line) == inputDelimiter:
			current = inInput
		case current == inInput && strings.TrimSpace(line) == outputDelimiter:
			current = inExpected
		default:
			lines[current] = append(lines[current], line)
		}
	}
	if err := scanner.Err(); err != nil {
		return Case{}, err
	}

	return Case{
		Setup:    strings.Join(lines[inSetup], "\n"),
		Input:    strings.Join(lines[inInput], "\n"),
		Expected: strings.Join(lines[inExpected], "\n"),
	}, nil
}

// Write rewrites the testfile at path from c. Each section is written with a
// trailing newline, which Parse folds back out, so Read(Write(c)) == c for
// any section text whose lines do not trim to a bare delimiter.
func Write(path string, c Case) error {
	var b strings.Builder
	b.WriteString(c.Setup)
	b.WriteByte('\n')
	b.WriteString(inputDelimiter)
	b.WriteByte('\n')
	b.WriteString(c.Input)
	b.WriteByte('\n')
	b.WriteString(outputDelimiter)
	b.WriteByte('\n')
	b.WriteString(c.Expected)
	b.WriteByte('\n')

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write testfile: %w", err)
	}
	return nil
}
