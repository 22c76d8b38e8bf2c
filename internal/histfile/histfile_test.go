package histfile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantText string
		wantKind LineKind
	}{
		{"plain", "echo hi", "echo hi", Command},
		{"zsh extended", ": 1690000000:0;ls -la", "ls -la", Command},
		{"zsh extended with duration", ": 1690000000:12;make test", "make test", Command},
		{"zsh extended without space", ":1690000000:0;pwd", "pwd", Command},
		{"bash marker", "#1690000001", "", Marker},
		{"bash marker with spaces", "  #1690000001  ", "", Marker},
		{"comment is a command", "# not a marker", "# not a marker", Command},
		{"blank", "", "", Blank},
		{"whitespace", "   \t ", "", Blank},
		{"crlf", "git status\r\n", "git status", Command},
		{"empty after prefix", ": 1690000000:0;", "", Blank},
		{"semicolon inside command", "a; b", "a; b", Command},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, kind := ParseLine(tt.line)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantText, text)
		})
	}
}

func TestParseLine_DropsInvalidUTF8(t *testing.T) {
	text, kind := ParseLine("echo \xff\xfehi")
	assert.Equal(t, Command, kind)
	assert.Equal(t, "echo hi", text)
}

func TestReader_Lines(t *testing.T) {
	r := NewReader(strings.NewReader("ls\n\necho hi\r\nlast"))

	var lines []string
	for r.Next() {
		lines = append(lines, r.Line())
	}
	require.NoError(t, r.Err())
	assert.Equal(t, []string{"ls", "", "echo hi", "last"}, lines)
}

func TestReader_OversizedLineIsSkipped(t *testing.T) {
	long := strings.Repeat("x", MaxLineSize+10)
	r := NewReader(strings.NewReader("pwd\n" + long + "\nls\n"))

	var lines []string
	for r.Next() {
		lines = append(lines, r.Line())
	}
	require.NoError(t, r.Err())
	assert.Equal(t, []string{"pwd", "ls"}, lines)
	assert.Equal(t, 1, r.Oversized())
}

func TestReader_LongLineWithinLimit(t *testing.T) {
	long := strings.Repeat("y", 200*1024)
	r := NewReader(strings.NewReader(long + "\n"))

	require.True(t, r.Next())
	assert.Len(t, r.Line(), len(long))
	assert.False(t, r.Next())
}

func TestDetectFile(t *testing.T) {
	t.Setenv("HISTFILE", "")
	t.Setenv("HOME", "/home/test")

	assert.Equal(t, "/home/test/.zsh_history", DetectFile("/usr/bin/zsh"))
	assert.Equal(t, "/home/test/.bash_history", DetectFile("bash"))
	assert.Equal(t, "/home/test/.local/share/fish/fish_history", DetectFile("fish"))

	t.Setenv("HISTFILE", "/tmp/custom")
	assert.Equal(t, "/tmp/custom", DetectFile("zsh"))
}
