// Package histfile reads shell history files line by line.
package histfile

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// MaxLineSize bounds a single history line.
const MaxLineSize = 1024 * 1024

var (
	// zsh EXTENDED_HISTORY: ": 1690000000:0;ls -la"
	extendedPrefix = regexp.MustCompile(`^: ?\d+:\d+;`)
	// bash HISTTIMEFORMAT marker lines: "#1690000001"
	timestampMarker = regexp.MustCompile(`^#\d+$`)
)

// LineKind classifies a history line
type LineKind int

const (
	Command LineKind = iota
	Blank
	Marker
)

// ParseLine strips known metadata prefixes and reports what the line is.
// Invalid UTF-8 bytes are dropped.
func ParseLine(line string) (string, LineKind) {
	line = strings.ToValidUTF8(line, "")
	line = strings.TrimRight(line, "\r\n")

	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", Blank
	}
	if timestampMarker.MatchString(trimmed) {
		return "", Marker
	}

	if loc := extendedPrefix.FindStringIndex(line); loc != nil {
		line = line[loc[1]:]
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return "", Blank
	}
	return line, Command
}

// Reader yields history lines one at a time so memory stays proportional to
// a single line. Lines longer than MaxLineSize are discarded and counted.
type Reader struct {
	r         *bufio.Reader
	line      string
	err       error
	oversized int
}

// NewReader wraps r
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next advances to the next line, returning false at end of input or on a
// read error.
func (hr *Reader) Next() bool {
	for {
		var (
			buf       []byte
			got       bool
			oversized bool
		)
		for {
			chunk, isPrefix, err := hr.r.ReadLine()
			if err != nil {
				if err != io.EOF {
					hr.err = err
				}
				break
			}
			got = true
			if !oversized && len(buf)+len(chunk) > MaxLineSize {
				oversized = true
				buf = nil
			}
			if !oversized {
				buf = append(buf, chunk...)
			}
			if !isPrefix {
				break
			}
		}

		if !got {
			return false
		}
		if oversized {
			hr.oversized++
			if hr.err != nil {
				return false
			}
			continue
		}
		hr.line = string(buf)
		return true
	}
}

// Line returns the current raw line without its line terminator
func (hr *Reader) Line() string {
	return hr.line
}

// Err returns the first non-EOF read error
func (hr *Reader) Err() error {
	return hr.err
}

// Oversized returns how many lines were discarded for exceeding MaxLineSize
func (hr *Reader) Oversized() int {
	return hr.oversized
}

// DetectFile returns the default history file for a shell name
// ("zsh", "bash", "fish" or a path like /bin/zsh). HISTFILE wins when set.
func DetectFile(shell string) string {
	if histfile := os.Getenv("HISTFILE"); histfile != "" {
		return histfile
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch filepath.Base(shell) {
	case "zsh":
		return filepath.Join(home, ".zsh_history")
	case "fish":
		return filepath.Join(home, ".local/share/fish/fish_history")
	default:
		return filepath.Join(home, ".bash_history")
	}
}
