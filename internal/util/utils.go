package util

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Lines splits s into lines the way the harness treats all of its text: "\n"
// separated, with a trailing newline not producing a final empty line. An
// empty string has no lines.
func Lines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// ExpandHome resolves a leading ~ in path against the user's home directory.
// Other paths are returned unchanged; relative paths stay relative to the
// working directory the harness was started from.
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve home directory")
	}
	return filepath.Join(home, path[1:]), nil
}

// IsSymlinkToDir checks whether path is a symlink that points to a
// directory. Template variants are commonly shared between formats as
// symlinks.
func IsSymlinkToDir(path string) bool {
	fileInfo, err := os.Lstat(path)
	if err != nil {
		return false
	}

	if fileInfo.Mode()&os.ModeSymlink != 0 {
		resolvedPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return false
		}

		fileInfo, err = os.Stat(resolvedPath)
		if err != nil {
			return false
		}

		return fileInfo.IsDir()
	}

	return false // Regular directories should not be treated as symlinks
}

// WriteText writes text to path with a single trailing newline, which is how
// every file in a scratch directory is laid out.
func WriteText(path, text string) error {
	return os.WriteFile(path, []byte(text+"\n"), 0o644)
}
